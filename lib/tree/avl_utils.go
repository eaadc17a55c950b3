package tree

import (
	"errors"
)

func nodeHeight[E any](node AVLNode[E]) int32 {
	if node == nil {
		return 0
	}
	return node.Height()
}

// BFS traversal to load every node.
func bfsNodes[E any](tree *AVLTree[E]) []AVLNode[E] {
	size := tree.Len()
	var aux AVLNode[E] = tree.Root()
	if aux == nil {
		return nil
	}

	nodes := make([]AVLNode[E], 0, size+1)
	stack := make([]AVLNode[E], 0, size>>1+1)
	defer func() {
		clear(stack)
	}()
	stack = append(stack, aux)

	for len(stack) > 0 {
		aux = stack[0]
		nodes = append(nodes, aux)
		if l := aux.Left(); l != nil {
			stack = append(stack, l)
		}
		if r := aux.Right(); r != nil {
			stack = append(stack, r)
		}
		stack = stack[1:]
	}
	return nodes
}

// avltree rule validation utilities.

// Inorder traversal to validate the strict ascending order under the
// tree's own comparator.
func OrderViolationValidate[E any](tree *AVLTree[E]) error {
	size := tree.Len()
	var aux AVLNode[E] = tree.Root()
	if size < 0 || aux == nil {
		return nil
	}

	stack := make([]AVLNode[E], 0, size>>1)
	defer func() {
		clear(stack)
	}()

	for ; aux != nil; aux = aux.Left() {
		stack = append(stack, aux)
	}

	var prev *E
	for size = int64(len(stack)); size > 0; size = int64(len(stack)) {
		aux = stack[size-1]
		if prev != nil && tree.cmp(*prev, aux.Element()) >= 0 {
			return errors.New("avltree order violation")
		}
		prev = aux.ElementRef()
		stack = stack[:size-1]
		if aux.Right() != nil {
			for aux = aux.Right(); aux != nil; aux = aux.Left() {
				stack = append(stack, aux)
			}
		}
	}
	return nil
}

// A stored height is locally consistent when it equals 1 plus the
// larger stored child height, absent children counting 0. Local
// consistency at every node makes all stored heights globally correct
// by induction from the leaves.
func HeightViolationValidate[E any](tree *AVLTree[E]) error {
	for _, node := range bfsNodes(tree) {
		expected := nodeHeight(node.Left())
		if rh := nodeHeight(node.Right()); expected < rh {
			expected = rh
		}
		if node.Height() != expected+1 {
			return errors.New("avltree height violation")
		}
	}
	return nil
}

func BalanceViolationValidate[E any](tree *AVLTree[E]) error {
	for _, node := range bfsNodes(tree) {
		if bf := nodeHeight(node.Left()) - nodeHeight(node.Right()); bf < -1 || bf > 1 {
			return errors.New("avltree balance violation")
		}
	}
	return nil
}

// Child links and parent back references must agree pairwise, with the
// root owning no parent at all.
func ParentViolationValidate[E any](tree *AVLTree[E]) error {
	root := tree.Root()
	if root != nil && root.Parent() != nil {
		return errors.New("avltree parent violation")
	}
	for _, node := range bfsNodes(tree) {
		if l := node.Left(); l != nil && l.Parent() != node {
			return errors.New("avltree parent violation")
		}
		if r := node.Right(); r != nil && r.Parent() != node {
			return errors.New("avltree parent violation")
		}
	}
	return nil
}
