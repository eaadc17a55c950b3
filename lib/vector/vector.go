package vector

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/benz9527/xcontainer/lib/alloc"
)

var (
	ErrVectorNotReady    = errors.New("[x-vector] vector not initialized or already released")
	ErrVectorAllocFailed = errors.New("[x-vector] buffer allocation failed")
)

const defaultVectorCapacity = 8

// ElementReleaser destroys whatever resources an element owns when the
// vector drops it (overwrite, Clear, Release). Popped elements are the
// caller's business. Must tolerate already-released elements.
type ElementReleaser[E any] func(e *E, a alloc.Allocator)

// Vector is a growable contiguous array over an allocator capability.
// The backing buffer always spans the full capacity, length tracks the
// live prefix. The zero value is not ready, run Init (or build through
// NewVector) first. Like the tree it carries no internal locking.
type Vector[E any] struct {
	buf       []E
	length    int64
	initCap   int64
	allocator alloc.Allocator
	releaser  ElementReleaser[E]
}

type VectorOption[E any] func(*Vector[E])

func WithVectorAllocator[E any](a alloc.Allocator) VectorOption[E] {
	return func(vec *Vector[E]) {
		vec.allocator = a
	}
}

// WithVectorCapacity reserves room for n elements at Init, so the
// first n appends never reallocate.
func WithVectorCapacity[E any](n int64) VectorOption[E] {
	return func(vec *Vector[E]) {
		vec.initCap = n
	}
}

func WithVectorElementReleaser[E any](fn ElementReleaser[E]) VectorOption[E] {
	return func(vec *Vector[E]) {
		vec.releaser = fn
	}
}

// Init prepares a zero or released vector value for use. Without
// options it falls back to the GC-managed std allocator, a no-op
// releaser and an empty buffer that materializes on the first append.
// A failed reservation leaves the value in the not-ready state.
// Unmanaged allocators are rejected when E carries Go pointers.
func (vec *Vector[E]) Init(opts ...VectorOption[E]) (*Vector[E], error) {
	vec.buf = nil
	vec.length = 0
	vec.initCap = 0
	vec.allocator = nil
	vec.releaser = nil
	for _, o := range opts {
		o(vec)
	}
	if vec.allocator == nil {
		vec.allocator = alloc.Std()
	}
	if vec.allocator.Unmanaged() && alloc.TypeHasGoPointers(reflect.TypeOf((*E)(nil)).Elem()) {
		panic("[x-vector] unmanaged allocator holding elements that contain Go pointers")
	}
	if vec.initCap > 0 {
		buf, ok := alloc.MakeSlice[E](vec.allocator, int(vec.initCap))
		if !ok {
			vec.allocator = nil
			vec.releaser = nil
			return nil, ErrVectorAllocFailed
		}
		vec.buf = buf
	}
	return vec, nil
}

func NewVector[E any](opts ...VectorOption[E]) (*Vector[E], error) {
	return new(Vector[E]).Init(opts...)
}

func (vec *Vector[E]) isReady() bool {
	return vec != nil && vec.allocator != nil
}

func (vec *Vector[E]) releaseElement(e *E) {
	if vec.releaser != nil {
		vec.releaser(e, vec.allocator)
	}
}

func (vec *Vector[E]) Len() int64 {
	if vec == nil {
		return 0
	}
	return vec.length
}

func (vec *Vector[E]) Cap() int64 {
	if vec == nil {
		return 0
	}
	return int64(cap(vec.buf))
}

// Append places e behind the live prefix, doubling the buffer through
// the allocator when it is full. A failed growth leaves the vector
// unchanged and still usable.
func (vec *Vector[E]) Append(e E) error {
	if !vec.isReady() {
		return ErrVectorNotReady
	}
	if vec.length == int64(cap(vec.buf)) {
		newCap := int64(cap(vec.buf)) << 1
		if newCap == 0 {
			newCap = defaultVectorCapacity
		}
		grown, ok := alloc.ResizeSlice(vec.allocator, vec.buf, int(newCap))
		if !ok {
			return ErrVectorAllocFailed
		}
		vec.buf = grown
	}
	vec.buf[vec.length] = e
	vec.length++
	return nil
}

// Pop hands the last element over to the caller, who takes ownership.
// The releaser does not run on popped elements.
func (vec *Vector[E]) Pop() (E, bool) {
	var zero E
	if !vec.isReady() || vec.length == 0 {
		return zero, false
	}
	vec.length--
	e := vec.buf[vec.length]
	// Drop the stale copy.
	vec.buf[vec.length] = zero
	return e, true
}

func (vec *Vector[E]) At(i int64) E {
	if i < 0 || i >= vec.Len() {
		panic(fmt.Sprintf("[x-vector] index %d out of range [0, %d)", i, vec.Len()))
	}
	return vec.buf[i]
}

// Set destroys the previous occupant of slot i through the releaser,
// then stores e there.
func (vec *Vector[E]) Set(i int64, e E) {
	if i < 0 || i >= vec.Len() {
		panic(fmt.Sprintf("[x-vector] index %d out of range [0, %d)", i, vec.Len()))
	}
	vec.releaseElement(&vec.buf[i])
	vec.buf[i] = e
}

func (vec *Vector[E]) Foreach(action func(idx int64, e E) bool) {
	if !vec.isReady() {
		return
	}
	for i := int64(0); i < vec.length; i++ {
		if !action(i, vec.buf[i]) {
			return
		}
	}
}

// Clear destroys every live element but keeps the buffer and the
// configuration, so the vector can be refilled without reallocating.
func (vec *Vector[E]) Clear() {
	if !vec.isReady() {
		return
	}
	var zero E
	for i := int64(0); i < vec.length; i++ {
		vec.releaseElement(&vec.buf[i])
		vec.buf[i] = zero
	}
	vec.length = 0
}

// Release destroys every live element, returns the buffer to the
// allocator and zeroes the configuration. The value stays unusable
// until Init runs again, releasing twice is a safe no-op.
func (vec *Vector[E]) Release() {
	if !vec.isReady() {
		return
	}
	for i := int64(0); i < vec.length; i++ {
		vec.releaseElement(&vec.buf[i])
	}
	alloc.FreeSlice(vec.allocator, vec.buf)
	vec.buf = nil
	vec.length = 0
	vec.allocator = nil
	vec.releaser = nil
}
