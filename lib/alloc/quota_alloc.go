package alloc

import (
	"reflect"
	"sync"
	"unsafe"
)

// quotaAllocator delegates to another allocator but refuses any
// allocation that would push the live byte count past a fixed budget.
// It turns allocation failure from a theoretical outcome into a
// deterministic one, which bounded-memory hosts rely on and which the
// container tests use to drive their failure paths.
type quotaAllocator struct {
	inner  Allocator
	lock   sync.Mutex
	budget uintptr
	used   uintptr
}

var _ Allocator = (*quotaAllocator)(nil)

func NewQuotaAllocator(inner Allocator, budget uintptr) Allocator {
	if inner == nil {
		inner = Std()
	}
	return &quotaAllocator{inner: inner, budget: budget}
}

func (a *quotaAllocator) charge(size uintptr) bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.used+size > a.budget {
		return false
	}
	a.used += size
	return true
}

func (a *quotaAllocator) refund(size uintptr) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.used >= size {
		a.used -= size
	} else {
		a.used = 0
	}
}

func (a *quotaAllocator) Allocate(size uintptr) (unsafe.Pointer, bool) {
	if !a.charge(size) {
		return nil, false
	}
	ptr, ok := a.inner.Allocate(size)
	if !ok {
		a.refund(size)
	}
	return ptr, ok
}

func (a *quotaAllocator) AllocateTyped(typ reflect.Type) (unsafe.Pointer, bool) {
	if typ == nil {
		return nil, false
	}
	if !a.charge(typ.Size()) {
		return nil, false
	}
	ptr, ok := a.inner.AllocateTyped(typ)
	if !ok {
		a.refund(typ.Size())
	}
	return ptr, ok
}

func (a *quotaAllocator) Reallocate(ptr unsafe.Pointer, oldSize, newSize uintptr) (unsafe.Pointer, bool) {
	if ptr == nil {
		return a.Allocate(newSize)
	}
	if newSize > oldSize && !a.charge(newSize-oldSize) {
		return nil, false
	}
	grown, ok := a.inner.Reallocate(ptr, oldSize, newSize)
	if !ok {
		if newSize > oldSize {
			a.refund(newSize - oldSize)
		}
		return nil, false
	}
	if newSize < oldSize {
		a.refund(oldSize - newSize)
	}
	return grown, true
}

func (a *quotaAllocator) Release(ptr unsafe.Pointer, size uintptr) {
	if ptr == nil {
		return
	}
	a.inner.Release(ptr, size)
	a.refund(size)
}

func (a *quotaAllocator) Unmanaged() bool {
	return a.inner.Unmanaged()
}
