package tree

import (
	"reflect"
	"sync/atomic"

	"github.com/benz9527/xcontainer/lib/alloc"
)

var (
	_ AVLNode[struct{}] = (*avlNode[struct{}])(nil)
)

type avlNode[E any] struct {
	left    *avlNode[E]
	right   *avlNode[E]
	parent  *avlNode[E]
	height  int32
	element E
}

func (node *avlNode[E]) Element() E {
	if node == nil {
		var zero E
		return zero
	}
	return node.element
}

// ElementRef exposes the tree-owned element storage. The reference
// stays valid until the element is removed or the tree is torn down.
func (node *avlNode[E]) ElementRef() *E {
	if node == nil {
		return nil
	}
	return &node.element
}

// Height of an absent subtree is 0, any present node has height >= 1.
func (node *avlNode[E]) Height() int32 {
	if node == nil {
		return 0
	}
	return node.height
}

func (node *avlNode[E]) Left() AVLNode[E] {
	if node == nil || node.left == nil {
		return nil
	}
	return node.left
}

func (node *avlNode[E]) Right() AVLNode[E] {
	if node == nil || node.right == nil {
		return nil
	}
	return node.right
}

func (node *avlNode[E]) Parent() AVLNode[E] {
	if node == nil || node.parent == nil {
		return nil
	}
	return node.parent
}

func (node *avlNode[E]) balanceFactor() int32 {
	return node.left.Height() - node.right.Height()
}

func (node *avlNode[E]) fixHeight() {
	lh, rh := node.left.Height(), node.right.Height()
	if lh < rh {
		lh = rh
	}
	node.height = lh + 1
}

func (node *avlNode[E]) minimum() *avlNode[E] {
	aux := node
	for ; aux != nil && aux.left != nil; aux = aux.left {
	}
	return aux
}

func (node *avlNode[E]) maximum() *avlNode[E] {
	aux := node
	for ; aux != nil && aux.right != nil; aux = aux.right {
	}
	return aux
}

// References:
// https://en.wikipedia.org/wiki/AVL_tree
// avltree properties:
// p1. The height of a node is 1 plus the larger child height, where a
//   missing child counts as height 0. So every present node has
//   height >= 1.
// p2. The balance factor bf(X) = height(X.left) - height(X.right) of
//   every node stays within {-1, 0, +1}. (balance-violation)
// p3. One insertion or removal only disturbs heights along a single
//   root-to-leaf path, so repairing each ancestor on the way back up
//   restores p2 everywhere.
// A subtree repaired after a removal can still end up one shorter than
// before, which re-disturbs its ancestor. The upward walk therefore
// must continue to the root instead of stopping at the first balanced
// ancestor.

/*
	     |                          |
	     X                          Y
	    / \     rotateLeft(X)      / \
	   L   Y    =============>    X   R
	      / \                    / \
	     C   R                  L   C
*/
func rotateLeft[E any](x *avlNode[E]) *avlNode[E] {
	if x == nil || x.right == nil {
		// impossible run to here
		panic( /* debug assertion */ "[x-avl] left rotate node x is nil or x.right is nil")
	}

	y := x.right
	x.right, y.left = y.left, x
	if x.right != nil {
		x.right.parent = x
	}
	y.parent, x.parent = x.parent, y

	// X got demoted below Y, so X recomputes first.
	x.fixHeight()
	y.fixHeight()
	return y
}

/*
	     |                          |
	     X                          Y
	    / \     rotateRight(X)     / \
	   Y   R    ==============>   L   X
	  / \                            / \
	 L   C                          C   R
*/
func rotateRight[E any](x *avlNode[E]) *avlNode[E] {
	if x == nil || x.left == nil {
		// impossible run to here
		panic( /* debug assertion */ "[x-avl] right rotate node x is nil or x.left is nil")
	}

	y := x.left
	x.left, y.right = y.right, x
	if x.left != nil {
		x.left.parent = x
	}
	y.parent, x.parent = x.parent, y

	x.fixHeight()
	y.fixHeight()
	return y
}

// rebalance repairs the subtree rooted at node after one insertion or
// removal below it and returns the new subtree root. The caller links
// the returned root back into node's former parent slot.
// The case order is load-bearing: the equal-height ties (>= 0, <= 0)
// must take the single rotation before the double-rotation cases are
// considered.
func rebalance[E any](node *avlNode[E]) *avlNode[E] {
	bf := node.balanceFactor()
	switch {
	case /* left-left */ bf > 1 && node.left.balanceFactor() >= 0:
		return rotateRight(node)
	case /* right-right */ bf < -1 && node.right.balanceFactor() <= 0:
		return rotateLeft(node)
	case /* left-right */ bf > 1:
		node.left = rotateLeft(node.left)
		return rotateRight(node)
	case /* right-left */ bf < -1:
		node.right = rotateRight(node.right)
		return rotateLeft(node)
	default:
		node.fixHeight()
	}
	return node
}

// AVLTree is a self-balancing binary search tree with caller-supplied
// allocation and element lifetime hooks. The zero value is not ready
// for use, run Init (or build through NewAVLTree) first.
// A tree instance is not safe for concurrent mutation or for reads
// overlapping a mutation. Callers who share one instance across
// goroutines must serialize access themselves, distinct instances are
// fully independent.
type AVLTree[E any] struct {
	root      *avlNode[E]
	count     int64
	cmp       ElementComparator[E]
	allocator alloc.Allocator
	releaser  ElementReleaser[E]
}

type AVLTreeOption[E any] func(*AVLTree[E])

func WithAVLTreeAllocator[E any](a alloc.Allocator) AVLTreeOption[E] {
	return func(tree *AVLTree[E]) {
		tree.allocator = a
	}
}

func WithAVLTreeElementReleaser[E any](fn ElementReleaser[E]) AVLTreeOption[E] {
	return func(tree *AVLTree[E]) {
		tree.releaser = fn
	}
}

// Init prepares a zero or released tree value for use, it allocates no
// nodes. Without options the tree falls back to the GC-managed std
// allocator and a no-op element releaser.
// An unmanaged allocator is rejected when E carries Go pointers, the
// collector cannot see into unmanaged memory and would reclaim
// whatever those pointers reference.
func (tree *AVLTree[E]) Init(cmp ElementComparator[E], opts ...AVLTreeOption[E]) *AVLTree[E] {
	if cmp == nil {
		panic("[x-avl] nil element comparator")
	}
	tree.root = nil
	atomic.StoreInt64(&tree.count, 0)
	tree.cmp = cmp
	tree.allocator = nil
	tree.releaser = nil
	for _, o := range opts {
		o(tree)
	}
	if tree.allocator == nil {
		tree.allocator = alloc.Std()
	}
	if tree.allocator.Unmanaged() && alloc.TypeHasGoPointers(reflect.TypeOf((*E)(nil)).Elem()) {
		panic("[x-avl] unmanaged allocator holding elements that contain Go pointers")
	}
	return tree
}

func NewAVLTree[E any](cmp ElementComparator[E], opts ...AVLTreeOption[E]) *AVLTree[E] {
	return new(AVLTree[E]).Init(cmp, opts...)
}

func (tree *AVLTree[E]) isReady() bool {
	return tree != nil && tree.cmp != nil
}

func (tree *AVLTree[E]) releaseElement(e *E) {
	if tree.releaser != nil {
		tree.releaser(e, tree.allocator)
	}
}

func (tree *AVLTree[E]) Len() int64 {
	if tree == nil {
		return 0
	}
	return atomic.LoadInt64(&tree.count)
}

func (tree *AVLTree[E]) Root() AVLNode[E] {
	if tree == nil || tree.root == nil {
		return nil
	}
	return tree.root
}

func (tree *AVLTree[E]) searchNode(e E) *avlNode[E] {
	for aux := tree.root; aux != nil; {
		res := tree.cmp(e, aux.element)
		if /* equal */ res == 0 {
			return aux
		} else /* less */ if res < 0 {
			aux = aux.left
		} else /* greater */ {
			aux = aux.right
		}
	}
	return nil
}

// rebalanceUpward repairs every ancestor from node to the root. The
// parent is captured before rebalance because the rotations rewrite
// parent pointers, and the changed subtree root is re-linked into the
// slot the old one occupied.
func (tree *AVLTree[E]) rebalanceUpward(node *avlNode[E]) {
	for aux := node; aux != nil; {
		parent := aux.parent
		subtree := rebalance(aux)
		switch {
		case parent == nil:
			tree.root = subtree
		case parent.left == aux:
			parent.left = subtree
		case parent.right == aux:
			parent.right = subtree
		default:
			// impossible run to here
			panic( /* debug assertion */ "[x-avl] rebalanced subtree detached from its parent")
		}
		aux = parent
	}
}

// i1: Empty avltree, the new node becomes the root and no walk runs.
// i2: The comparator-guided descent meets an equal element, reject
//   before any allocation so the tree stays byte-for-byte untouched.
// i3: Attach the new leaf under the last visited node, then repair
//   every ancestor on the way back to the root and finally bump the
//   size.
func (tree *AVLTree[E]) Insert(e E) error {
	if !tree.isReady() {
		return ErrAVLTreeNotReady
	}

	if /* i1 */ tree.root == nil {
		node, ok := alloc.New[avlNode[E]](tree.allocator)
		if !ok {
			return ErrAVLTreeAllocFailed
		}
		node.height, node.element = 1, e
		tree.root = node
		atomic.AddInt64(&tree.count, 1)
		return nil
	}

	var x, y *avlNode[E] = tree.root, nil
	var res int64
	for x != nil {
		y = x
		res = tree.cmp(e, x.element)
		if /* i2 */ res == 0 {
			return ErrAVLTreeDuplicate
		} else /* less */ if res < 0 {
			x = x.left
		} else /* greater */ {
			x = x.right
		}
	}

	node, ok := alloc.New[avlNode[E]](tree.allocator)
	if !ok {
		return ErrAVLTreeAllocFailed
	}
	node.height, node.element, node.parent = 1, e, y
	if /* i3 */ res < 0 {
		y.left = node
	} else {
		y.right = node
	}
	tree.rebalanceUpward(node)
	atomic.AddInt64(&tree.count, 1)
	return nil
}

// Emplace constructs an element directly inside freshly allocated node
// storage and links it like Insert. The node is allocated before ctor
// runs so a failed construction (or a duplicate discovered afterwards)
// only costs releasing the partial element and freeing that node, the
// tree itself is never touched on any failure path.
// On success the returned reference points at the tree-owned element
// and stays valid until that element is removed or the tree is torn
// down. Beware that removing an unrelated element may relocate element
// values when the removal borrows the in-order successor.
func (tree *AVLTree[E]) Emplace(ctor ElementConstructor[E]) (*E, error) {
	if !tree.isReady() {
		return nil, ErrAVLTreeNotReady
	}
	if ctor == nil {
		panic("[x-avl] nil element constructor")
	}

	node, ok := alloc.New[avlNode[E]](tree.allocator)
	if !ok {
		return nil, ErrAVLTreeAllocFailed
	}
	if err := ctor(&node.element, tree.allocator); err != nil {
		tree.releaseElement(&node.element)
		alloc.Free(tree.allocator, node)
		return nil, err
	}
	node.height = 1

	if tree.root == nil {
		tree.root = node
		atomic.AddInt64(&tree.count, 1)
		return &node.element, nil
	}

	var x, y *avlNode[E] = tree.root, nil
	var res int64
	for x != nil {
		y = x
		res = tree.cmp(node.element, x.element)
		if /* equal */ res == 0 {
			tree.releaseElement(&node.element)
			alloc.Free(tree.allocator, node)
			return nil, ErrAVLTreeDuplicate
		} else /* less */ if res < 0 {
			x = x.left
		} else /* greater */ {
			x = x.right
		}
	}

	node.parent = y
	if /* less */ res < 0 {
		y.left = node
	} else /* greater */ {
		y.right = node
	}
	tree.rebalanceUpward(node)
	atomic.AddInt64(&tree.count, 1)
	return &node.element, nil
}

// r1: Two children, exchange element values with the in-order
//   successor (minimum of the right subtree, it owns no left child)
//   and unlink that successor node instead. No clone, no allocation,
//   after the exchange the successor node holds the doomed value.
// r2: Zero or one child, splice the sole child (or nothing) into the
//   unlinked node's parent slot.
// r3: Destroy the element and free the node memory.
// r4: Repair every ancestor starting from the former parent of the
//   unlinked node, then account for the shrink.
func (tree *AVLTree[E]) removeNode(z *avlNode[E]) {
	if /* r1 */ z.left != nil && z.right != nil {
		succ := z.right.minimum()
		z.element, succ.element = succ.element, z.element
		z = succ
	}

	/* r2 */
	child := z.left
	if child == nil {
		child = z.right
	}
	parent := z.parent
	if child != nil {
		child.parent = parent
	}
	switch {
	case parent == nil:
		tree.root = child
	case parent.left == z:
		parent.left = child
	case parent.right == z:
		parent.right = child
	default:
		// impossible run to here
		panic( /* debug assertion */ "[x-avl] remove target detached from its parent")
	}

	/* r3 */
	tree.releaseElement(&z.element)
	alloc.Free(tree.allocator, z)

	/* r4 */
	tree.rebalanceUpward(parent)
	atomic.AddInt64(&tree.count, -1)
}

// Remove unlinks the node holding an element equal to e, destroys the
// element and frees the node. Removing an absent element is a defined
// no-op reported as false, same for a tree that is not ready (nothing
// can be stored in it).
func (tree *AVLTree[E]) Remove(e E) bool {
	if !tree.isReady() {
		return false
	}
	z := tree.searchNode(e)
	if z == nil {
		return false
	}
	tree.removeNode(z)
	return true
}

func (tree *AVLTree[E]) Contains(e E) bool {
	if !tree.isReady() {
		return false
	}
	return tree.searchNode(e) != nil
}

func (tree *AVLTree[E]) Load(e E) (E, bool) {
	if ref := tree.LoadRef(e); ref != nil {
		return *ref, true
	}
	var zero E
	return zero, false
}

// LoadRef returns the tree-owned storage of the element equal to e, or
// nil when absent. Mutating the referent must not change its ordering
// rank.
func (tree *AVLTree[E]) LoadRef(e E) *E {
	if !tree.isReady() {
		return nil
	}
	if node := tree.searchNode(e); node != nil {
		return &node.element
	}
	return nil
}

func (tree *AVLTree[E]) Min() (E, bool) {
	if !tree.isReady() || tree.root == nil {
		var zero E
		return zero, false
	}
	return tree.root.minimum().element, true
}

func (tree *AVLTree[E]) Max() (E, bool) {
	if !tree.isReady() || tree.root == nil {
		var zero E
		return zero, false
	}
	return tree.root.maximum().element, true
}

// Inorder traversal to implement the DFS.
func (tree *AVLTree[E]) Foreach(action func(idx int64, e E) bool) {
	if !tree.isReady() {
		return
	}
	size := atomic.LoadInt64(&tree.count)
	aux := tree.root
	if size <= 0 || aux == nil {
		return
	}

	stack := make([]*avlNode[E], 0, size>>1)
	defer func() {
		clear(stack)
	}()

	for ; aux != nil; aux = aux.left {
		stack = append(stack, aux)
	}

	idx := int64(0)
	for size = int64(len(stack)); size > 0; size = int64(len(stack)) {
		if aux = stack[size-1]; !action(idx, aux.element) {
			return
		}
		idx++
		stack = stack[:size-1]
		if aux.right != nil {
			for aux = aux.right; aux != nil; aux = aux.left {
				stack = append(stack, aux)
			}
		}
	}
}

// releaseSubtree destroys every element and frees every node of the
// subtree rooted at root, threading through the parent references
// instead of recursing or keeping an auxiliary stack. previous records
// where the walk just came from, which tells whether the left subtree,
// the right subtree or neither is finished for the current node.
// t1: Arrived from the parent, first visit. Descend left, else right,
//   else the node is a leaf and dies now.
// t2: Arrived climbing out of the left subtree. Descend right if
//   present, otherwise the node dies.
// t3: Arrived climbing out of the right subtree, the node dies.
// A freed child is only ever compared by pointer value on the way up,
// never dereferenced.
func (tree *AVLTree[E]) releaseSubtree(root *avlNode[E]) {
	if root == nil {
		return
	}
	root.parent = nil

	var previous *avlNode[E]
	current := root
	for current != nil {
		switch {
		case /* t1 */ previous == current.parent:
			if current.left != nil {
				previous, current = current, current.left
				continue
			}
			if current.right != nil {
				previous, current = current, current.right
				continue
			}
		case /* t2 */ previous == current.left:
			if current.right != nil {
				previous, current = current, current.right
				continue
			}
		case /* t3 */ previous == current.right:
		default:
			// impossible run to here
			panic( /* debug assertion */ "[x-avl] teardown arrived from an unlinked node")
		}

		parent := current.parent
		tree.releaseElement(&current.element)
		alloc.Free(tree.allocator, current)
		previous, current = current, parent
	}
}

// Clear destroys every element and frees every node, visiting each
// exactly once, but keeps the comparator, allocator and releaser so
// the tree can be refilled.
func (tree *AVLTree[E]) Clear() {
	if !tree.isReady() {
		return
	}
	tree.releaseSubtree(tree.root)
	tree.root = nil
	atomic.StoreInt64(&tree.count, 0)
}

// Release tears the whole tree down and zeroes its configuration,
// leaving the value unusable until Init runs again. Releasing an
// already released or zero tree is a safe no-op.
func (tree *AVLTree[E]) Release() {
	if !tree.isReady() {
		return
	}
	tree.releaseSubtree(tree.root)
	tree.root = nil
	atomic.StoreInt64(&tree.count, 0)
	tree.cmp = nil
	tree.allocator = nil
	tree.releaser = nil
}

// Clone builds an independent deep copy that shares the comparator,
// allocator and releaser of the receiver. cloneFn copies each element
// into the zeroed destination, nil means a plain value copy, which is
// only sound for self-contained element types. On any failure the
// partial copy is torn down node by node and the receiver stays
// untouched.
func (tree *AVLTree[E]) Clone(cloneFn ElementCloner[E]) (*AVLTree[E], error) {
	if !tree.isReady() {
		return nil, ErrAVLTreeNotReady
	}
	cloned := &AVLTree[E]{
		cmp:       tree.cmp,
		allocator: tree.allocator,
		releaser:  tree.releaser,
	}
	root, err := tree.cloneSubtree(tree.root, nil, cloneFn)
	if err != nil {
		return nil, err
	}
	cloned.root = root
	atomic.StoreInt64(&cloned.count, tree.Len())
	return cloned, nil
}

// cloneSubtree copies src and both its subtrees, attaching the copies
// under parent. Heights carry over because the copy is shape
// identical. On failure everything this call built is destroyed before
// the error propagates, so no caller ever sees a half-built subtree.
// Recursion depth stays bounded by the balanced height, about
// 1.44*log2(n).
func (tree *AVLTree[E]) cloneSubtree(src, parent *avlNode[E], cloneFn ElementCloner[E]) (*avlNode[E], error) {
	if src == nil {
		return nil, nil
	}

	node, ok := alloc.New[avlNode[E]](tree.allocator)
	if !ok {
		return nil, ErrAVLTreeAllocFailed
	}
	node.parent, node.height = parent, src.height
	if cloneFn == nil {
		node.element = src.element
	} else if err := cloneFn(&node.element, &src.element, tree.allocator); err != nil {
		tree.releaseElement(&node.element)
		alloc.Free(tree.allocator, node)
		return nil, err
	}

	var err error
	if node.left, err = tree.cloneSubtree(src.left, node, cloneFn); err == nil {
		node.right, err = tree.cloneSubtree(src.right, node, cloneFn)
	}
	if err != nil {
		tree.releaseSubtree(node)
		return nil, err
	}
	return node, nil
}
