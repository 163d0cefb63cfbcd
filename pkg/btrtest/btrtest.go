// Package btrtest provides test doubles for btrcall: a Recorder binding that
// captures every frame and answers from a script, and an Allocator that
// accounts for every region the bridge acquires and releases.
package btrtest

import (
	"errors"
	"slices"
	"sync"
	"unsafe"

	"github.com/mkfoss/btrcall"
)

// Call is a snapshot of one frame as the engine saw it.
type Call struct {
	Operation     btrcall.OperationCode
	PositionBlock []byte
	Data          []byte // nil when the bridge passed a null data pointer
	DataLength    uint32
	Key           []byte // the transmitted key bytes; nil for a null key pointer
	KeyRegion     int    // size of the key region the engine may write into
	KeyLength     uint8
	KeyNumber     btrcall.KeyNumber
}

// Step scripts the engine's reaction to one call. Nil fields leave the
// corresponding region untouched.
type Step struct {
	Code          btrcall.ResponseCode
	PositionBlock []byte
	Data          []byte
	DataLength    *uint32
	Key           []byte
	Panic         any
}

// Recorder is a btrcall.Binding that records calls and replays a script.
// Once the script is exhausted it answers with Fallback.
type Recorder struct {
	Fallback btrcall.ResponseCode

	mu     sync.Mutex
	calls  []Call
	script []Step
}

// NewRecorder returns a Recorder that plays steps in order.
func NewRecorder(steps ...Step) *Recorder {
	return &Recorder{script: steps}
}

// Call implements btrcall.Binding.
func (r *Recorder) Call(f *btrcall.Frame) btrcall.ResponseCode {
	r.mu.Lock()
	r.calls = append(r.calls, snapshot(f))
	var step Step
	scripted := len(r.script) > 0
	if scripted {
		step = r.script[0]
		r.script = r.script[1:]
	}
	r.mu.Unlock()

	if !scripted {
		return r.Fallback
	}
	if step.Panic != nil {
		panic(step.Panic)
	}
	if step.PositionBlock != nil {
		copy(f.PositionBlock, step.PositionBlock)
	}
	if step.Data != nil {
		copy(f.Data, step.Data)
	}
	if step.DataLength != nil {
		*f.DataLength = *step.DataLength
	}
	if step.Key != nil {
		copy(f.Key, step.Key)
	}
	return step.Code
}

// Calls returns the calls recorded so far.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func snapshot(f *btrcall.Frame) Call {
	c := Call{
		Operation:     f.Operation,
		PositionBlock: slices.Clone(f.PositionBlock),
		DataLength:    *f.DataLength,
		KeyLength:     f.KeyLength,
		KeyNumber:     f.KeyNumber,
	}
	if f.Data != nil {
		c.Data = slices.Clone(f.Data)
	}
	if f.Key != nil {
		c.Key = slices.Clone(f.Key[:f.KeyLength])
		c.KeyRegion = len(f.Key)
	}
	return c
}

// ErrInjected is returned by Allocator once its failure point is reached.
var ErrInjected = errors.New("btrtest: injected allocation failure")

// Allocator is a btrcall.Allocator on the Go heap that tracks live regions.
// Set FailAfter to a positive n to make the (n+1)th allocation fail.
type Allocator struct {
	FailAfter int

	mu          sync.Mutex
	live        map[*byte]int
	allocs      int
	frees       int
	doubleFrees int
}

// NewAllocator returns an empty Allocator.
func NewAllocator() *Allocator {
	return &Allocator{live: make(map[*byte]int)}
}

// Alloc implements btrcall.Allocator.
func (a *Allocator) Alloc(size int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.FailAfter > 0 && a.allocs >= a.FailAfter {
		return nil, ErrInjected
	}
	region := make([]byte, size, max(size, 1))
	a.live[unsafe.SliceData(region)] = size
	a.allocs++
	return region, nil
}

// Free implements btrcall.Allocator.
func (a *Allocator) Free(region []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := unsafe.SliceData(region)
	if _, ok := a.live[p]; !ok {
		a.doubleFrees++
		return
	}
	delete(a.live, p)
	a.frees++
}

// Outstanding returns the number of regions allocated and not yet freed.
func (a *Allocator) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Allocs returns the number of successful allocations.
func (a *Allocator) Allocs() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocs
}

// Frees returns the number of regions released.
func (a *Allocator) Frees() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frees
}

// DoubleFrees returns the number of Free calls for regions that were not live.
func (a *Allocator) DoubleFrees() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.doubleFrees
}
