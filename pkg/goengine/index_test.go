package goengine

import (
	"bytes"
	"encoding/binary"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntIndex(t *testing.T) *index {
	t.Helper()
	key := singleKey(t, KeySpec{Position: 1, Length: 2, Attributes: AttrExtendedDataType | AttrDuplicates, ExtendedDataType: TypeInteger}, 2)
	return newIndex(key)
}

func intNorm(ix *index, v int16) []byte {
	raw := make([]byte, 2)
	binary.LittleEndian.PutUint16(raw, uint16(v))
	return ix.key.normalize(raw)
}

// scanAfter and scanBefore are the linear reference lookups.
func scanAfter(entries [][]byte, bound []byte, inclusive bool) []byte {
	for _, e := range entries {
		if c := bytes.Compare(e, bound); c > 0 || (inclusive && c == 0) {
			return e
		}
	}
	return nil
}

func scanBefore(entries [][]byte, bound []byte, inclusive bool) []byte {
	var found []byte
	for _, e := range entries {
		if c := bytes.Compare(e, bound); c < 0 || (inclusive && c == 0) {
			found = e
		}
	}
	return found
}

func TestIndexEmpty(t *testing.T) {
	ix := newIntIndex(t)

	_, ok := ix.first()
	assert.False(t, ok)
	_, ok = ix.last()
	assert.False(t, ok)
	_, ok = ix.after(lowBound(intNorm(ix, 0)), true)
	assert.False(t, ok)
	_, ok = ix.before(highBound(intNorm(ix, 0)), true)
	assert.False(t, ok)

	ix.insert(intNorm(ix, 7), 1)
	ix.remove(intNorm(ix, 7), 1)
	_, ok = ix.first()
	assert.False(t, ok, "removing the only entry empties the index")
	assert.Equal(t, 0, ix.size())
}

func TestIndexSeeksMatchLinearScan(t *testing.T) {
	ix := newIntIndex(t)

	type item struct {
		v  int16
		id uint32
	}
	var items []item
	for v := int16(-300); v <= 300; v += 3 {
		items = append(items, item{v, uint32(len(items) + 1)})
		if v%9 == 0 {
			items = append(items, item{v, uint32(len(items) + 1)})
		}
	}
	for _, it := range items {
		ix.insert(intNorm(ix, it.v), it.id)
	}
	for i := 0; i < len(items); i += 5 {
		ix.remove(intNorm(ix, items[i].v), items[i].id)
	}
	ix.remove(intNorm(ix, 1000), 1)

	entries := slices.Clone(ix.ordered)
	require.Len(t, entries, len(items)-(len(items)+4)/5)
	require.True(t, slices.IsSortedFunc(entries, bytes.Compare))
	require.Equal(t, len(entries), ix.size(), "sorted view and tree hold the same entries")

	first, ok := ix.first()
	require.True(t, ok)
	assert.Equal(t, entries[0], first)
	last, ok := ix.last()
	require.True(t, ok)
	assert.Equal(t, entries[len(entries)-1], last)

	for v := int16(-310); v <= 310; v++ {
		norm := intNorm(ix, v)
		for _, bound := range [][]byte{lowBound(norm), highBound(norm)} {
			for _, inclusive := range []bool{false, true} {
				got, _ := ix.after(bound, inclusive)
				assert.Equal(t, scanAfter(entries, bound, inclusive), got, "after %d inclusive=%v", v, inclusive)
				got, _ = ix.before(bound, inclusive)
				assert.Equal(t, scanBefore(entries, bound, inclusive), got, "before %d inclusive=%v", v, inclusive)
			}
		}
	}

	for _, e := range entries[:len(entries)-1] {
		next, ok := ix.after(e, false)
		require.True(t, ok)
		assert.Negative(t, bytes.Compare(e, next))
		prev, ok := ix.before(next, false)
		require.True(t, ok)
		assert.Equal(t, e, prev, "stepping back from a successor returns the entry")
	}
}

func TestIndexContainsAndDistinct(t *testing.T) {
	ix := newIntIndex(t)
	ix.insert(intNorm(ix, 5), 1)
	ix.insert(intNorm(ix, 5), 2)
	ix.insert(intNorm(ix, 6), 3)

	assert.True(t, ix.contains(intNorm(ix, 5), 1))
	assert.True(t, ix.contains(intNorm(ix, 6), 1))
	assert.False(t, ix.contains(intNorm(ix, 6), 3), "the excluded record does not count")
	assert.False(t, ix.contains(intNorm(ix, 4), 0))
	assert.Equal(t, uint32(2), ix.distinct())

	ix.insert(intNorm(ix, 5), 1)
	assert.Equal(t, 3, ix.size(), "reinserting an entry does not duplicate it")
	assert.Len(t, ix.ordered, 3)
}
