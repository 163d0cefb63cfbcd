package goengine

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/golang/snappy"
	"github.com/hashicorp/go-msgpack/v2/codec"
)

// fileMagic prefixes every file written by the engine.
var fileMagic = []byte("BTRG")

const fileFormatVersion = 1

var errNotEngineFile = errors.New("goengine: not an engine file")

// fileImage is the persisted form of a data file.
type fileImage struct {
	Spec    FileSpec      `codec:"spec"`
	Keys    []KeySpec     `codec:"keys"`
	Records []recordImage `codec:"records"`
	NextID  uint32        `codec:"next"`
}

type recordImage struct {
	ID   uint32 `codec:"id"`
	Data []byte `codec:"data"`
}

// dataFile is an open file shared by every handle that opened the same path.
type dataFile struct {
	mu sync.Mutex

	path      string
	spec      FileSpec
	keySpecs  []KeySpec
	keys      []*keyDef
	indexes   []*index
	records   map[uint32][]byte
	order     []uint32
	nextID    uint32
	refs      int
	exclusive bool
}

func newDataFile(path string, spec FileSpec, keySpecs []KeySpec) (*dataFile, int32) {
	if spec.RecordLength == 0 {
		return nil, StatusBadRecordLength
	}
	keys, status := buildKeys(keySpecs, int(spec.RecordLength))
	if status != StatusSuccess {
		return nil, status
	}

	f := &dataFile{
		path:     path,
		spec:     spec,
		keySpecs: slices.Clone(keySpecs),
		keys:     keys,
		records:  make(map[uint32][]byte),
		nextID:   1,
	}
	f.spec.NumberOfKeys = uint8(len(keys))
	f.spec.RecordCount = 0
	for _, key := range keys {
		f.indexes = append(f.indexes, newIndex(key))
	}
	return f, StatusSuccess
}

// loadDataFile reads a file written by save.
func loadDataFile(path string) (*dataFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw) < len(fileMagic)+1 || !bytes.Equal(raw[:len(fileMagic)], fileMagic) {
		return nil, errNotEngineFile
	}
	if raw[len(fileMagic)] != fileFormatVersion {
		return nil, fmt.Errorf("%w: format version %d", errNotEngineFile, raw[len(fileMagic)])
	}

	payload, err := snappy.Decode(nil, raw[len(fileMagic)+1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errNotEngineFile, err)
	}

	var image fileImage
	if err := codec.NewDecoderBytes(payload, &codec.MsgpackHandle{}).Decode(&image); err != nil {
		return nil, fmt.Errorf("%w: %v", errNotEngineFile, err)
	}

	f, status := newDataFile(path, image.Spec, image.Keys)
	if status != StatusSuccess {
		return nil, fmt.Errorf("%w: invalid key layout (status %d)", errNotEngineFile, status)
	}
	for _, rec := range image.Records {
		f.store(rec.ID, rec.Data)
	}
	f.nextID = max(image.NextID, f.nextID)
	return f, nil
}

// save writes the file image next to path and renames it into place.
func (f *dataFile) save() error {
	image := fileImage{
		Spec:    f.spec,
		Keys:    f.keySpecs,
		Records: make([]recordImage, 0, len(f.order)),
		NextID:  f.nextID,
	}
	for _, id := range f.order {
		image.Records = append(image.Records, recordImage{ID: id, Data: f.records[id]})
	}

	var payload []byte
	if err := codec.NewEncoderBytes(&payload, &codec.MsgpackHandle{}).Encode(&image); err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}

	out := make([]byte, 0, len(fileMagic)+1+snappy.MaxEncodedLen(len(payload)))
	out = append(out, fileMagic...)
	out = append(out, fileFormatVersion)
	out = append(out, snappy.Encode(nil, payload)...)

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// store adds a record that already passed validation.
func (f *dataFile) store(id uint32, record []byte) {
	f.records[id] = record
	pos, _ := slices.BinarySearch(f.order, id)
	f.order = slices.Insert(f.order, pos, id)
	for i, key := range f.keys {
		f.indexes[i].insert(key.normalize(key.extract(record)), id)
	}
	if id >= f.nextID {
		f.nextID = id + 1
	}
	f.spec.RecordCount = uint32(len(f.records))
}

func (f *dataFile) drop(id uint32) {
	record := f.records[id]
	for i, key := range f.keys {
		f.indexes[i].remove(key.normalize(key.extract(record)), id)
	}
	delete(f.records, id)
	if pos, found := slices.BinarySearch(f.order, id); found {
		f.order = slices.Delete(f.order, pos, pos+1)
	}
	f.spec.RecordCount = uint32(len(f.records))
}

// shape pads or truncates a record to the fixed record length. Variable
// length files keep longer records but still reject short ones.
func (f *dataFile) shape(record []byte) ([]byte, int32) {
	length := int(f.spec.RecordLength)
	if f.spec.FileFlags&FlagVariableLength != 0 {
		if len(record) < length {
			return nil, StatusBadRecordLength
		}
		return slices.Clone(record), StatusSuccess
	}
	shaped := make([]byte, length)
	copy(shaped, record)
	return shaped, StatusSuccess
}

// assignAutoInc fills zero auto-increment keys with one past the current
// maximum.
func (f *dataFile) assignAutoInc(record []byte) {
	for i, key := range f.keys {
		seg, ok := key.autoInc()
		if !ok {
			continue
		}
		field := record[seg.offset : seg.offset+seg.length]
		if !isZero(field) {
			continue
		}
		var next int64 = 1
		if entry, found := f.indexes[i].last(); found {
			last := f.records[entryID(entry)]
			next = readInt(last[seg.offset:seg.offset+seg.length]) + 1
		}
		writeInt(field, next)
	}
}

// checkUnique returns StatusDuplicateKeyValue when record collides with
// another record on a unique key.
func (f *dataFile) checkUnique(record []byte, self uint32) int32 {
	for i, key := range f.keys {
		if !key.unique() {
			continue
		}
		if f.indexes[i].contains(key.normalize(key.extract(record)), self) {
			return StatusDuplicateKeyValue
		}
	}
	return StatusSuccess
}

func (f *dataFile) insert(record []byte) (uint32, int32) {
	shaped, status := f.shape(record)
	if status != StatusSuccess {
		return 0, status
	}
	f.assignAutoInc(shaped)
	if status := f.checkUnique(shaped, 0); status != StatusSuccess {
		return 0, status
	}

	id := f.nextID
	f.store(id, shaped)
	if err := f.save(); err != nil {
		f.drop(id)
		return 0, StatusIOError
	}
	return id, StatusSuccess
}

func (f *dataFile) update(id uint32, record []byte) int32 {
	old, ok := f.records[id]
	if !ok {
		return StatusInvalidPositioning
	}
	shaped, status := f.shape(record)
	if status != StatusSuccess {
		return status
	}
	for _, key := range f.keys {
		if !key.modifiable() && !bytes.Equal(key.extract(old), key.extract(shaped)) {
			return StatusNonModifiableKeyValue
		}
	}
	if status := f.checkUnique(shaped, id); status != StatusSuccess {
		return status
	}

	f.drop(id)
	f.store(id, shaped)
	if err := f.save(); err != nil {
		f.drop(id)
		f.store(id, old)
		return StatusIOError
	}
	return StatusSuccess
}

func (f *dataFile) remove(id uint32) int32 {
	old, ok := f.records[id]
	if !ok {
		return StatusInvalidPositioning
	}
	f.drop(id)
	if err := f.save(); err != nil {
		f.store(id, old)
		return StatusIOError
	}
	return StatusSuccess
}

// stat encodes the file and key specs with current counts into out and
// returns the number of bytes written, or -1 when out is too small.
func (f *dataFile) stat(out []byte) int {
	need := FileSpecLength + KeySpecLength*len(f.keySpecs)
	if len(out) < need {
		return -1
	}
	f.spec.Encode(out)

	pos := FileSpecLength
	keyIndex := 0
	for _, spec := range f.keySpecs {
		s := spec
		if keyIndex < len(f.indexes) {
			s.UniqueKeys = f.indexes[keyIndex].distinct()
			s.Number = uint8(keyIndex)
		}
		s.Encode(out[pos:])
		pos += KeySpecLength
		if !spec.Segmented() {
			keyIndex++
		}
	}
	return need
}

// nextPhysical returns the first record position after id.
func (f *dataFile) nextPhysical(id uint32) (uint32, bool) {
	pos, found := slices.BinarySearch(f.order, id)
	if found {
		pos++
	}
	if pos >= len(f.order) {
		return 0, false
	}
	return f.order[pos], true
}

// prevPhysical returns the last record position before id.
func (f *dataFile) prevPhysical(id uint32) (uint32, bool) {
	pos, _ := slices.BinarySearch(f.order, id)
	if pos == 0 {
		return 0, false
	}
	return f.order[pos-1], true
}
