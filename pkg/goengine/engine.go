package goengine

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

type handleID [handleLength]byte

// handle is the engine side of one position block.
type handle struct {
	id       handleID
	file     *dataFile
	readOnly bool

	// physical currency; zero when no record has been visited
	position uint32
	// logical currency left by the last successful keyed operation
	query *query
}

type query struct {
	key   int
	entry []byte
}

// request is one call, mirroring the BTRCALL parameter list.
type request struct {
	op         uint16
	pos        []byte
	data       []byte
	dataLength *uint32
	key        []byte
	keyLength  uint8
	keyNumber  int8
}

// capacity is the number of data bytes the caller allows the engine to use.
func (r *request) capacity() int {
	if r.dataLength == nil {
		return 0
	}
	return min(int(*r.dataLength), len(r.data))
}

func (r *request) setLength(n int) {
	if r.dataLength != nil {
		*r.dataLength = uint32(n)
	}
}

// keyBytes returns the transmitted part of the key buffer.
func (r *request) keyBytes() []byte {
	return r.key[:min(int(r.keyLength), len(r.key))]
}

// path decodes the NUL-terminated file name carried in the key buffer.
func (r *request) path() string {
	name := r.keyBytes()
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return string(name)
}

// Engine is a process-wide engine instance. It is safe for concurrent use by
// calls on different position blocks.
type Engine struct {
	mu      sync.Mutex
	files   map[string]*dataFile
	handles map[handleID]*handle
}

// New returns an engine with no open files.
func New() *Engine {
	return &Engine{
		files:   make(map[string]*dataFile),
		handles: make(map[handleID]*handle),
	}
}

// Call performs one operation. Its parameters match the native entry point:
// pos is the position block, data and dataLength the data buffer and its
// in/out length, key and keyLength the key buffer and its transmitted length,
// keyNumber the key index or operation-specific sentinel.
func (e *Engine) Call(op uint16, pos []byte, data []byte, dataLength *uint32, key []byte, keyLength uint8, keyNumber int8) int32 {
	if len(pos) < PositionBlockLength {
		return StatusPositionBlockLength
	}
	req := &request{
		op:         baseOperation(op),
		pos:        pos,
		data:       data,
		dataLength: dataLength,
		key:        key,
		keyLength:  keyLength,
		keyNumber:  keyNumber,
	}

	switch req.op {
	case OpOpen:
		return e.open(req)
	case OpCreate:
		return e.create(req)
	}

	h := e.lookup(pos)
	if h == nil {
		return StatusFileNotOpen
	}

	if req.op == OpClose {
		return e.close(h)
	}

	h.file.mu.Lock()
	defer h.file.mu.Unlock()

	switch req.op {
	case OpStat:
		return h.stat(req)
	case OpInsert:
		return h.insert(req)
	case OpUpdate:
		return h.update(req)
	case OpDelete:
		return h.delete()
	case OpStepFirst, OpStepLast, OpStepNext, OpStepNextExtended, OpStepPrevious, OpStepPreviousExtended:
		return h.step(req)
	case OpGetPosition:
		return h.getPosition(req)
	case OpGetDirect:
		return h.getDirect(req)
	}
	if isKeyed(req.op) {
		return h.keyed(req)
	}
	return StatusInvalidOperation
}

// baseOperation strips the +100..+400 record lock biases, which the engine
// accepts and ignores.
func baseOperation(op uint16) uint16 {
	if op >= 100 && op < 500 {
		return op % 100
	}
	return op
}

func (e *Engine) lookup(pos []byte) *handle {
	var id handleID
	copy(id[:], pos)
	if id == (handleID{}) {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handles[id]
}

func canonicalPath(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", false
	}
	return filepath.Clean(abs), true
}

func (e *Engine) open(req *request) int32 {
	if req.key == nil {
		return StatusInvalidFileName
	}
	path, ok := canonicalPath(req.path())
	if !ok {
		return StatusInvalidFileName
	}
	if e.lookup(req.pos) != nil {
		return StatusOperationNotAllowed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	f, loaded := e.files[path]
	if !loaded {
		var err error
		f, err = loadDataFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return StatusFileNotFound
		case errors.Is(err, errNotEngineFile):
			return StatusNotBtrieveFile
		case err != nil:
			return StatusIOError
		}
	}

	exclusive := req.keyNumber == ModeExclusive
	if f.refs > 0 && (exclusive || f.exclusive) {
		return StatusAccessDenied
	}

	var id handleID
	if _, err := rand.Read(id[:]); err != nil {
		return StatusIOError
	}

	h := &handle{
		id:       id,
		file:     f,
		readOnly: req.keyNumber == ModeReadOnly,
	}
	f.mu.Lock()
	if len(f.order) > 0 {
		h.position = f.order[0]
	}
	f.refs++
	f.exclusive = f.exclusive || exclusive
	f.mu.Unlock()

	e.files[path] = f
	e.handles[id] = h
	copy(req.pos[:handleLength], id[:])
	return StatusSuccess
}

func (e *Engine) close(h *handle) int32 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.handles[h.id]; !ok {
		return StatusFileNotOpen
	}
	delete(e.handles, h.id)

	f := h.file
	f.mu.Lock()
	f.refs--
	if f.refs == 0 {
		f.exclusive = false
		delete(e.files, f.path)
	}
	f.mu.Unlock()
	return StatusSuccess
}

func (e *Engine) create(req *request) int32 {
	if req.key == nil {
		return StatusInvalidFileName
	}
	path, ok := canonicalPath(req.path())
	if !ok {
		return StatusInvalidFileName
	}

	raw := req.data[:req.capacity()]
	spec, ok := DecodeFileSpec(raw)
	if !ok {
		return StatusDataBufferLengthOverrun
	}
	keySpecs := make([]KeySpec, 0, spec.NumberOfKeys)
	for off := FileSpecLength; countKeys(keySpecs) < int(spec.NumberOfKeys); off += KeySpecLength {
		ks, ok := DecodeKeySpec(raw[min(off, len(raw)):])
		if !ok {
			return StatusInvalidNumberOfKeys
		}
		keySpecs = append(keySpecs, ks)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, open := e.files[path]; open {
		return StatusAccessDenied
	}
	if req.keyNumber == CreateNoOverwrite {
		if _, err := os.Stat(path); err == nil {
			return StatusFileAlreadyExists
		}
	}

	f, status := newDataFile(path, spec, keySpecs)
	if status != StatusSuccess {
		return status
	}
	if err := f.save(); err != nil {
		return StatusIOError
	}
	return StatusSuccess
}

// countKeys counts complete keys in a run of segment specs.
func countKeys(specs []KeySpec) int {
	n := 0
	for _, s := range specs {
		if !s.Segmented() {
			n++
		}
	}
	return n
}

func (h *handle) stat(req *request) int32 {
	n := h.file.stat(req.data[:req.capacity()])
	if n < 0 {
		return StatusDataBufferLengthOverrun
	}
	req.setLength(n)
	return StatusSuccess
}

// validKey reports whether the request's key number selects a key.
func (h *handle) validKey(req *request) bool {
	return req.keyNumber >= 0 && int(req.keyNumber) < len(h.file.keys)
}

// establish sets logical currency on the request's key for record id and
// returns the key value through the key buffer.
func (h *handle) establish(req *request, id uint32) int32 {
	if !h.validKey(req) {
		return StatusSuccess
	}
	kn := int(req.keyNumber)
	key := h.file.keys[kn]
	raw := key.extract(h.file.records[id])
	if int(req.keyLength) < key.length || len(req.key) < key.length {
		return StatusKeyBufferTooShort
	}
	copy(req.key, raw)
	h.query = &query{key: kn, entry: entryFor(key.normalize(raw), id)}
	return StatusSuccess
}

func (h *handle) insert(req *request) int32 {
	if h.readOnly {
		return StatusAccessDenied
	}
	if h.validKey(req) && int(req.keyLength) < h.file.keys[req.keyNumber].length {
		return StatusKeyBufferTooShort
	}
	id, status := h.file.insert(req.data[:req.capacity()])
	if status != StatusSuccess {
		return status
	}
	h.position = id
	return h.establish(req, id)
}

func (h *handle) update(req *request) int32 {
	if h.readOnly {
		return StatusAccessDenied
	}
	if h.position == 0 {
		return StatusInvalidPositioning
	}
	if h.validKey(req) && int(req.keyLength) < h.file.keys[req.keyNumber].length {
		return StatusKeyBufferTooShort
	}
	if status := h.file.update(h.position, req.data[:req.capacity()]); status != StatusSuccess {
		return status
	}
	return h.establish(req, h.position)
}

func (h *handle) delete() int32 {
	if h.readOnly {
		return StatusAccessDenied
	}
	if h.position == 0 {
		return StatusInvalidPositioning
	}
	return h.file.remove(h.position)
}

// putRecord copies record id into the data buffer.
func (h *handle) putRecord(req *request, id uint32) int32 {
	record := h.file.records[id]
	if req.capacity() < len(record) {
		return StatusDataBufferLengthOverrun
	}
	copy(req.data, record)
	req.setLength(len(record))
	return StatusSuccess
}

func (h *handle) step(req *request) int32 {
	f := h.file
	var id uint32
	var ok bool

	switch req.op {
	case OpStepFirst:
		if ok = len(f.order) > 0; ok {
			id = f.order[0]
		}
	case OpStepLast:
		if ok = len(f.order) > 0; ok {
			id = f.order[len(f.order)-1]
		}
	case OpStepNext, OpStepNextExtended:
		id, ok = f.nextPhysical(h.position)
	case OpStepPrevious, OpStepPreviousExtended:
		id, ok = f.prevPhysical(h.position)
	}
	if !ok {
		return StatusInvalidPositioning
	}

	h.position = id
	return h.putRecord(req, id)
}

func (h *handle) getPosition(req *request) int32 {
	if _, ok := h.file.records[h.position]; !ok {
		return StatusInvalidPositioning
	}
	if req.capacity() < 4 {
		return StatusDataBufferLengthOverrun
	}
	binary.LittleEndian.PutUint32(req.data, h.position)
	req.setLength(4)
	return StatusSuccess
}

func (h *handle) getDirect(req *request) int32 {
	if req.capacity() < 4 {
		return StatusDataBufferLengthOverrun
	}
	id := binary.LittleEndian.Uint32(req.data)
	if _, ok := h.file.records[id]; !ok {
		return StatusInvalidRecordAddress
	}
	if !h.validKey(req) {
		return StatusInvalidKeyNumber
	}
	h.position = id
	if status := h.establish(req, id); status != StatusSuccess {
		return status
	}
	return h.putRecord(req, id)
}
