// Package btrcall provides a Go bridge to Btrieve-style record engines that
// expose the fixed BTRCALL entry point, with support for both a native
// engine loaded at runtime (CGO) and an in-process pure Go engine via build
// tags.
//
// Build Tags:
//   - Default: Uses the pure Go reference engine (pkg/goengine)
//   - -tags btrcallcgo: Loads the native engine with dlopen and calls BTRCALL
//
// Every call copies the position block, data buffer, data length and key
// buffer into transient native memory, invokes the engine once, copies the
// results back into the caller's buffers and releases the native memory on
// every exit path. Engine status codes are returned as ResponseCode values
// and never converted into errors.
//
// Basic usage:
//
//	var pos btrcall.PositionBlock
//	var length uint32
//	rc, err := btrcall.Invoke(btrcall.Open, pos.Bytes(), nil, &length,
//		btrcall.PathKey("/data/users.dat"), btrcall.OpenNormal)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if rc != btrcall.Success {
//		log.Fatalf("open: %s", rc)
//	}
//
//	data := make([]byte, 8192)
//	length = uint32(len(data))
//	rc, _ = btrcall.Invoke(btrcall.AcquireFirst, pos.Bytes(), data, &length, make([]byte, 255), 0)
//
// A position block belongs to one logical file handle. Distinct position
// blocks may be driven from different goroutines at the same time; a single
// position block must never be used by two calls concurrently.
package btrcall

import (
	"errors"
	"fmt"
	"sync"
)

const (
	// PositionBlockLength is the fixed size of the engine's per-handle state.
	PositionBlockLength = 128

	// MaxKeyLength caps the number of key bytes transmitted per call.
	MaxKeyLength = 255

	// dataLengthCell is the size of the native capacity/length cell.
	dataLengthCell = 4
)

// Bridge-level faults. Engine status codes are never reported through these.
var (
	ErrPositionBlockLength = errors.New("btrcall: position block must be 128 bytes")
	ErrDataLength          = errors.New("btrcall: data buffer shorter than declared length")
	ErrAlloc               = errors.New("btrcall: native allocation failed")
	ErrLibrary             = errors.New("btrcall: engine library unavailable")
)

// Backend represents the engine implementation compiled into the package
type Backend int

const (
	BackendPureGo Backend = iota // Default: in-process reference engine
	BackendNative                // Native engine library loaded through CGO
)

// String returns the backend name
func (b Backend) String() string {
	switch b {
	case BackendPureGo:
		return "Pure Go (goengine)"
	case BackendNative:
		return "CGO (BTRCALL)"
	default:
		return "Unknown"
	}
}

// PositionBlock is the opaque per-handle engine state. Its contents belong to
// the engine; callers zero it before the first Open and pass it unchanged to
// every later call on the same handle.
type PositionBlock [PositionBlockLength]byte

// Bytes returns the block as a slice sharing its storage.
func (p *PositionBlock) Bytes() []byte {
	return p[:]
}

// Reset zeroes the block so it can be reused for a new handle.
func (p *PositionBlock) Reset() {
	*p = PositionBlock{}
}

// PathKey encodes path for the key buffer of Open and Create, which carries a
// NUL-terminated file name instead of key data.
func PathKey(path string) []byte {
	key := make([]byte, len(path)+1)
	copy(key, path)
	return key
}

// Frame is one engine call laid out in native memory. All slices alias
// regions owned by the bridge for the duration of the call only.
type Frame struct {
	Operation     OperationCode
	PositionBlock []byte
	Data          []byte  // nil when the caller supplied no data buffer
	DataLength    *uint32 // capacity in, bytes produced out
	Key           []byte  // nil when the caller supplied no key buffer
	KeyLength     uint8
	KeyNumber     KeyNumber
}

// Binding performs exactly one engine operation.
type Binding interface {
	Call(f *Frame) ResponseCode
}

// BindingFunc adapts a function to Binding.
type BindingFunc func(f *Frame) ResponseCode

// Call calls fn(f).
func (fn BindingFunc) Call(f *Frame) ResponseCode {
	return fn(f)
}

// Allocator hands out zeroed memory regions outside the Go heap.
type Allocator interface {
	Alloc(size int) ([]byte, error)
	Free(region []byte)
}

type config struct {
	binding   Binding
	allocator Allocator
	library   string
}

// Option configures a Bridge.
type Option func(*config)

// WithBinding replaces the compiled-in engine, typically with a test double.
func WithBinding(b Binding) Option {
	return func(c *config) {
		c.binding = b
	}
}

// WithAllocator replaces the native memory allocator.
func WithAllocator(a Allocator) Option {
	return func(c *config) {
		c.allocator = a
	}
}

// WithLibrary sets the path of the native engine library. Only the
// btrcallcgo backend loads a library; the pure Go backend ignores it.
func WithLibrary(path string) Option {
	return func(c *config) {
		c.library = path
	}
}

// Bridge marshals calls to one engine binding. A Bridge holds no per-call
// state and is safe for concurrent use.
type Bridge struct {
	binding   Binding
	allocator Allocator
	backend   Backend
	closer    func() error
}

// New creates a Bridge for the compiled-in backend unless WithBinding is given.
func New(opts ...Option) (*Bridge, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Bridge{
		binding:   cfg.binding,
		allocator: cfg.allocator,
		backend:   backend,
	}

	if b.binding == nil {
		binding, closer, err := defaultBinding(&cfg)
		if err != nil {
			return nil, err
		}
		b.binding = binding
		b.closer = closer
	}
	if b.allocator == nil {
		b.allocator = defaultAllocator()
	}

	return b, nil
}

// Backend returns the backend compiled into the package.
func (b *Bridge) Backend() Backend {
	return b.backend
}

// Close releases the engine library loaded by New, if any.
func (b *Bridge) Close() error {
	if b.closer == nil {
		return nil
	}
	closer := b.closer
	b.closer = nil
	return closer()
}

// Invoke performs one engine call.
//
// pos must be exactly PositionBlockLength bytes. data may be nil; when it is
// supplied, *dataLength declares how many of its bytes the engine may use and
// receives the number of bytes the engine produced, never more than the
// declared value. key may be nil; at most MaxKeyLength of its bytes are sent
// and written back. keyNumber is passed through uninterpreted.
//
// The returned error is non-nil only for bridge faults. A nonzero engine
// status is returned as rc with a nil error.
func (b *Bridge) Invoke(op OperationCode, pos []byte, data []byte, dataLength *uint32, key []byte, keyNumber KeyNumber) (rc ResponseCode, err error) {
	if len(pos) != PositionBlockLength {
		return 0, fmt.Errorf("%w: got %d bytes", ErrPositionBlockLength, len(pos))
	}

	var capacity uint32
	if dataLength != nil {
		capacity = *dataLength
	}
	if len(data) > 0 && int64(capacity) > int64(len(data)) {
		return 0, fmt.Errorf("%w: declared %d, buffer holds %d", ErrDataLength, capacity, len(data))
	}

	a := newArena(b.allocator)
	defer a.release()

	frame := Frame{
		Operation: op,
		KeyNumber: keyNumber,
	}

	if frame.PositionBlock, err = a.take(PositionBlockLength); err != nil {
		return 0, err
	}
	copy(frame.PositionBlock, pos)

	cell, err := a.take(dataLengthCell)
	if err != nil {
		return 0, err
	}
	frame.DataLength = cellPointer(cell)
	*frame.DataLength = capacity

	if len(data) > 0 {
		if frame.Data, err = a.take(len(data)); err != nil {
			return 0, err
		}
		copy(frame.Data, data)
	}

	if len(key) > 0 {
		frame.KeyLength = uint8(min(MaxKeyLength, len(key)))
		// one spare zero byte terminates file names passed in the key buffer
		region, err := a.take(len(key) + 1)
		if err != nil {
			return 0, err
		}
		copy(region, key[:frame.KeyLength])
		frame.Key = region[:len(key)]
	}

	rc = b.binding.Call(&frame)

	copy(pos, frame.PositionBlock)

	produced := min(*frame.DataLength, capacity)
	if dataLength != nil {
		*dataLength = produced
	}
	if frame.Data != nil && produced > 0 {
		copy(data[:produced], frame.Data[:produced])
	}

	if frame.KeyLength > 0 {
		copy(key[:frame.KeyLength], frame.Key[:frame.KeyLength])
	}

	return rc, nil
}

var defaultBridge struct {
	once   sync.Once
	bridge *Bridge
	err    error
}

// Default returns the process-wide Bridge for the compiled-in backend,
// creating it on first use.
func Default() (*Bridge, error) {
	defaultBridge.once.Do(func() {
		defaultBridge.bridge, defaultBridge.err = New()
	})
	return defaultBridge.bridge, defaultBridge.err
}

// Invoke performs one engine call through the default Bridge.
// See (*Bridge).Invoke for the buffer contract.
func Invoke(op OperationCode, pos []byte, data []byte, dataLength *uint32, key []byte, keyNumber KeyNumber) (ResponseCode, error) {
	b, err := Default()
	if err != nil {
		return 0, err
	}
	return b.Invoke(op, pos, data, dataLength, key, keyNumber)
}
