package tree

import (
	"errors"

	"github.com/benz9527/xcontainer/lib/alloc"
)

var (
	ErrAVLTreeNotReady    = errors.New("[x-avl] tree not initialized or already released")
	ErrAVLTreeDuplicate   = errors.New("[x-avl] duplicate element")
	ErrAVLTreeAllocFailed = errors.New("[x-avl] node allocation failed")
)

// ElementComparator defines the total order of a tree. It reports a
// negative number when i sorts before j, zero when they rank equal and
// a positive number when i sorts after j. The order must stay stable
// for the whole tree lifetime.
type ElementComparator[E any] func(i, j E) int64

// ElementReleaser destroys whatever resources an element owns right
// before its node memory is freed. It must tolerate being called on an
// element whose resources are already gone and it never fails.
type ElementReleaser[E any] func(e *E, a alloc.Allocator)

// ElementConstructor builds an element in place at e for Emplace. The
// construction arguments travel inside the closure. On failure it must
// leave e in a state the element releaser can clean up.
type ElementConstructor[E any] func(e *E, a alloc.Allocator) error

// ElementCloner deep-copies src into dst for Clone. dst starts zeroed.
type ElementCloner[E any] func(dst, src *E, a alloc.Allocator) error

// AVLNode is the read-only view of a tree node. All accessors are nil
// safe so validators and tests can probe absent children freely.
type AVLNode[E any] interface {
	Element() E
	ElementRef() *E
	Height() int32
	Left() AVLNode[E]
	Right() AVLNode[E]
	Parent() AVLNode[E]
}
