package btrcall

import (
	"fmt"
	"unsafe"
)

// arena owns the native regions acquired for a single call. release frees
// each region exactly once, in reverse order of acquisition.
type arena struct {
	alloc   Allocator
	regions [][]byte
}

func newArena(alloc Allocator) *arena {
	return &arena{alloc: alloc, regions: make([][]byte, 0, 4)}
}

func (a *arena) take(size int) ([]byte, error) {
	region, err := a.alloc.Alloc(size)
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes: %v", ErrAlloc, size, err)
	}
	if len(region) < size {
		a.alloc.Free(region)
		return nil, fmt.Errorf("%w: %d bytes: allocator returned %d", ErrAlloc, size, len(region))
	}
	a.regions = append(a.regions, region)
	return region[:size], nil
}

func (a *arena) release() {
	for i := len(a.regions) - 1; i >= 0; i-- {
		a.alloc.Free(a.regions[i])
		a.regions[i] = nil
	}
	a.regions = a.regions[:0]
}

// cellPointer views a native length cell as the uint32 the engine updates.
func cellPointer(cell []byte) *uint32 {
	return (*uint32)(unsafe.Pointer(unsafe.SliceData(cell)))
}
