package alloc

import (
	"reflect"
	"sync"
	"unsafe"
)

// stdAllocator draws memory from the Go runtime heap and is the default
// capability of every container. Typed allocations are plain garbage
// collected objects, so Release is a logical no-op for them and any
// element type is safe. Raw blocks are retained in a live set until
// released, otherwise the collector would reclaim them behind the
// caller's back.
type stdAllocator struct {
	lock   sync.Mutex
	blocks map[uintptr][]byte
}

var _ Allocator = (*stdAllocator)(nil)

var std = &stdAllocator{
	blocks: make(map[uintptr][]byte, 64),
}

// Std returns the process-wide Go heap allocator. It never reports
// allocation failure and is safe for concurrent use.
func Std() Allocator {
	return std
}

func (a *stdAllocator) Allocate(size uintptr) (unsafe.Pointer, bool) {
	if size == 0 {
		return nil, false
	}
	block := make([]byte, size)
	ptr := unsafe.Pointer(unsafe.SliceData(block))
	a.lock.Lock()
	a.blocks[uintptr(ptr)] = block
	a.lock.Unlock()
	return ptr, true
}

func (a *stdAllocator) AllocateTyped(typ reflect.Type) (unsafe.Pointer, bool) {
	if typ == nil {
		return nil, false
	}
	// The collector tracks the object through the caller's typed
	// pointers, no retention required here.
	return reflect.New(typ).UnsafePointer(), true
}

func (a *stdAllocator) Reallocate(ptr unsafe.Pointer, oldSize, newSize uintptr) (unsafe.Pointer, bool) {
	if ptr == nil {
		return a.Allocate(newSize)
	}
	if newSize == 0 {
		return nil, false
	}
	a.lock.Lock()
	old, tracked := a.blocks[uintptr(ptr)]
	a.lock.Unlock()
	if !tracked {
		// Typed or foreign memory cannot be resized in place.
		return nil, false
	}
	grown, ok := a.Allocate(newSize)
	if !ok {
		return nil, false
	}
	copy(unsafe.Slice((*byte)(grown), newSize), old[:min(oldSize, newSize)])
	a.Release(ptr, oldSize)
	return grown, true
}

func (a *stdAllocator) Release(ptr unsafe.Pointer, size uintptr) {
	if ptr == nil {
		return
	}
	a.lock.Lock()
	delete(a.blocks, uintptr(ptr))
	a.lock.Unlock()
}

func (a *stdAllocator) Unmanaged() bool {
	return false
}
