//go:build !btrcallcgo && !unix

package btrcall

// heapAllocator is used where neither CGO nor anonymous mappings are
// available. Regions live on the Go heap and are reclaimed by the collector.
type heapAllocator struct{}

func defaultAllocator() Allocator {
	return heapAllocator{}
}

func (heapAllocator) Alloc(size int) ([]byte, error) {
	return make([]byte, size, max(size, 1)), nil
}

func (heapAllocator) Free([]byte) {}
