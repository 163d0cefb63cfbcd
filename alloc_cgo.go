//go:build btrcallcgo

package btrcall

/*
#include <stdlib.h>
*/
import "C"
import (
	"errors"
	"unsafe"
)

// cAllocator hands out calloc'd regions that the engine may keep pointers
// into for the duration of a call.
type cAllocator struct{}

func defaultAllocator() Allocator {
	return cAllocator{}
}

func (cAllocator) Alloc(size int) ([]byte, error) {
	n := max(size, 1)
	p := C.calloc(C.size_t(n), 1)
	if p == nil {
		return nil, errors.New("calloc returned NULL")
	}
	return unsafe.Slice((*byte)(p), n)[:size], nil
}

func (cAllocator) Free(region []byte) {
	C.free(unsafe.Pointer(unsafe.SliceData(region)))
}
