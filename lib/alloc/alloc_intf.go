package alloc

import (
	"errors"
	"reflect"
	"unsafe"
)

var (
	ErrAllocatorLeak         = errors.New("[x-alloc] allocation leaked")
	ErrAllocatorUntrackedPtr = errors.New("[x-alloc] release of untracked pointer")
	ErrAllocatorChunkUnmap   = errors.New("[x-alloc] arena chunk unmap failed")
)

// Allocator is the capability every container in this module draws its
// memory from. It is injected once at container construction and stored
// by value, so one allocator instance can back many containers.
//
// Failure is reported through the boolean, never through a panic, and a
// failed call leaves the allocator untouched. Memory handed out by
// Allocate and AllocateTyped is zeroed. Release never fails.
//
// Allocate returns raw memory that the Go collector does not scan. It
// is only suitable for payloads free of Go pointers; payloads holding
// pointers must come from AllocateTyped on a managed allocator, which
// returns memory carrying full type information for the collector.
//
// Reallocate moves a raw block to a new size. On success the old
// pointer is invalid; on failure the old block is left intact. It is
// not used by the tree container but belongs to the shared contract and
// backs the growable containers.
type Allocator interface {
	Allocate(size uintptr) (unsafe.Pointer, bool)
	AllocateTyped(typ reflect.Type) (unsafe.Pointer, bool)
	Reallocate(ptr unsafe.Pointer, oldSize, newSize uintptr) (unsafe.Pointer, bool)
	Release(ptr unsafe.Pointer, size uintptr)
	// Unmanaged reports whether the memory handed out by this allocator
	// is invisible to the Go garbage collector. Containers over an
	// unmanaged allocator must hold pointer-free elements only.
	Unmanaged() bool
}

// New allocates a zeroed T through the capability. The pointer must be
// returned to the same allocator via Free once the value is dead.
func New[T any](a Allocator) (*T, bool) {
	ptr, ok := a.AllocateTyped(typeOf[T]())
	if !ok {
		return nil, false
	}
	return (*T)(ptr), true
}

// Free releases a pointer obtained from New.
func Free[T any](a Allocator, obj *T) {
	if obj == nil {
		return
	}
	a.Release(unsafe.Pointer(obj), unsafe.Sizeof(*obj))
}

// MakeSlice allocates a zeroed, fully addressable []T with len == cap == n.
// The slice must be released through FreeSlice or grown through
// ResizeSlice, always on the same allocator.
func MakeSlice[T any](a Allocator, n int) ([]T, bool) {
	if n < 0 {
		panic("[x-alloc] negative slice length")
	}
	if n == 0 {
		return nil, true
	}
	ptr, ok := a.AllocateTyped(reflect.ArrayOf(n, typeOf[T]()))
	if !ok {
		return nil, false
	}
	return unsafe.Slice((*T)(ptr), n), true
}

// ResizeSlice moves s, previously produced by MakeSlice or ResizeSlice
// on the same allocator, to length n, preserving the leading elements
// both sizes share. On failure s is returned unchanged and still valid.
// Unmanaged allocators take the Reallocate fast path; managed ones copy
// through a fresh typed block so the collector keeps scanning it.
func ResizeSlice[T any](a Allocator, s []T, n int) ([]T, bool) {
	if n < 0 {
		panic("[x-alloc] negative slice length")
	}
	if n == 0 {
		FreeSlice(a, s)
		return nil, true
	}
	if cap(s) == 0 {
		return MakeSlice[T](a, n)
	}
	elemSize := unsafe.Sizeof(*new(T))
	if a.Unmanaged() {
		ptr, ok := a.Reallocate(
			unsafe.Pointer(unsafe.SliceData(s)),
			uintptr(cap(s))*elemSize,
			uintptr(n)*elemSize,
		)
		if !ok {
			return s, false
		}
		return unsafe.Slice((*T)(ptr), n), true
	}
	grown, ok := MakeSlice[T](a, n)
	if !ok {
		return s, false
	}
	copy(grown, s[:min(cap(s), n)])
	FreeSlice(a, s)
	return grown, true
}

// FreeSlice releases a slice produced by MakeSlice or ResizeSlice.
func FreeSlice[T any](a Allocator, s []T) {
	if cap(s) == 0 {
		return
	}
	a.Release(
		unsafe.Pointer(unsafe.SliceData(s[:cap(s)])),
		uintptr(cap(s))*unsafe.Sizeof(*new(T)),
	)
}

// TypeHasGoPointers reports whether values of typ embed any pointer the
// garbage collector would have to trace (pointers, maps, chans, funcs,
// interfaces, slices, strings). Containers use it to refuse pointerful
// element types on unmanaged allocators.
func TypeHasGoPointers(typ reflect.Type) bool {
	if typ == nil {
		return false
	}
	switch typ.Kind() {
	case reflect.Ptr, reflect.UnsafePointer, reflect.Map, reflect.Chan,
		reflect.Func, reflect.Interface, reflect.Slice, reflect.String:
		return true
	case reflect.Array:
		return typ.Len() > 0 && TypeHasGoPointers(typ.Elem())
	case reflect.Struct:
		for i := 0; i < typ.NumField(); i++ {
			if TypeHasGoPointers(typ.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
