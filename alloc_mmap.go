//go:build !btrcallcgo && unix

package btrcall

import "golang.org/x/sys/unix"

// mmapAllocator backs each region with a private anonymous mapping, keeping
// call buffers outside the Go heap without CGO. Mappings are zero-filled.
type mmapAllocator struct{}

func defaultAllocator() Allocator {
	return mmapAllocator{}
}

func (mmapAllocator) Alloc(size int) ([]byte, error) {
	region, err := unix.Mmap(-1, 0, max(size, 1), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return region[:size], nil
}

func (mmapAllocator) Free(region []byte) {
	_ = unix.Munmap(region[:cap(region)])
}
