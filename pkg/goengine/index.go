package goengine

import (
	"bytes"
	"encoding/binary"
	"slices"

	art "github.com/plar/go-adaptive-radix-tree"
)

// entryIDLength trailing bytes of every index entry hold the record position,
// which keeps duplicate key values distinct and ordered by insertion.
const entryIDLength = 4

// index orders the records of a file by one key. Entries are the normalized
// key value followed by the big-endian record position.
//
// The tree holds the entry set and answers exact lookups; it offers no seek,
// so ordered positioning binary-searches the sorted view kept beside it.
type index struct {
	key     *keyDef
	tree    art.Tree
	ordered [][]byte
}

func newIndex(key *keyDef) *index {
	return &index{key: key, tree: art.New()}
}

func entryFor(norm []byte, id uint32) []byte {
	entry := make([]byte, len(norm)+entryIDLength)
	copy(entry, norm)
	binary.BigEndian.PutUint32(entry[len(norm):], id)
	return entry
}

func entryID(entry []byte) uint32 {
	return binary.BigEndian.Uint32(entry[len(entry)-entryIDLength:])
}

// lowBound and highBound bracket every entry carrying the value norm.
func lowBound(norm []byte) []byte  { return entryFor(norm, 0) }
func highBound(norm []byte) []byte { return entryFor(norm, ^uint32(0)) }

func (ix *index) insert(norm []byte, id uint32) {
	entry := entryFor(norm, id)
	if _, updated := ix.tree.Insert(art.Key(entry), entry); updated {
		return
	}
	pos, _ := slices.BinarySearchFunc(ix.ordered, entry, bytes.Compare)
	ix.ordered = slices.Insert(ix.ordered, pos, entry)
}

func (ix *index) remove(norm []byte, id uint32) {
	entry := entryFor(norm, id)
	if _, deleted := ix.tree.Delete(art.Key(entry)); !deleted {
		return
	}
	if pos, found := slices.BinarySearchFunc(ix.ordered, entry, bytes.Compare); found {
		ix.ordered = slices.Delete(ix.ordered, pos, pos+1)
	}
}

// contains reports whether a record other than exclude carries norm.
func (ix *index) contains(norm []byte, exclude uint32) bool {
	pos, _ := slices.BinarySearchFunc(ix.ordered, lowBound(norm), bytes.Compare)
	for ; pos < len(ix.ordered) && bytes.HasPrefix(ix.ordered[pos], norm); pos++ {
		if entryID(ix.ordered[pos]) != exclude {
			return true
		}
	}
	return false
}

// distinct counts the different key values in the index.
func (ix *index) distinct() uint32 {
	var count uint32
	var last []byte
	for _, entry := range ix.ordered {
		value := entry[:ix.key.length]
		if last == nil || !bytes.Equal(last, value) {
			count++
			last = value
		}
	}
	return count
}

func (ix *index) first() ([]byte, bool) {
	if ix.size() == 0 {
		return nil, false
	}
	return entryValue(ix.tree.Minimum())
}

func (ix *index) last() ([]byte, bool) {
	if ix.size() == 0 {
		return nil, false
	}
	return entryValue(ix.tree.Maximum())
}

func entryValue(value art.Value, found bool) ([]byte, bool) {
	if !found || value == nil {
		return nil, false
	}
	return value.([]byte), true
}

// after returns the smallest entry above bound, or at bound when inclusive.
func (ix *index) after(bound []byte, inclusive bool) ([]byte, bool) {
	pos, found := slices.BinarySearchFunc(ix.ordered, bound, bytes.Compare)
	if found && !inclusive {
		pos++
	}
	if pos >= len(ix.ordered) {
		return nil, false
	}
	return ix.ordered[pos], true
}

// before returns the largest entry below bound, or at bound when inclusive.
func (ix *index) before(bound []byte, inclusive bool) ([]byte, bool) {
	pos, found := slices.BinarySearchFunc(ix.ordered, bound, bytes.Compare)
	if found && inclusive {
		return ix.ordered[pos], true
	}
	if pos == 0 {
		return nil, false
	}
	return ix.ordered[pos-1], true
}

func (ix *index) size() int {
	return ix.tree.Size()
}
