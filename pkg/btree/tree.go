package btree

import "fmt"

// overflow is the tree-owned scratch slot used transiently by insert/split/
// concatenate when a node would otherwise hold more than order-1 elements.
// owner is NullNode whenever the slot is empty, which spec invariant 6
// requires to be true immediately before and after every public operation.
type overflow[T any] struct {
	owner    NodeID
	hasElem  bool
	elem     T
	hasLink  bool
	link     Link
	linkSlot int // index the link belongs at within owner, when hasLink
}

func (o *overflow[T]) clear() {
	var zero overflow[T]
	*o = zero
}

// Tree is an ordered associative container over a B-tree of the configured
// order. It supports key-ordered lookup via Comparator, O(log n) positional
// indexing, and bidirectional iteration, over a pluggable Store.
type Tree[T any] struct {
	store   Store[T]
	order   int
	options Options

	cmp          Comparator[T]
	acquire      AcquireFunc[T]
	release      ReleaseFunc[T]
	defaultGroup any

	overflow   overflow[T]
	finalized  bool
}

// New constructs a tree of the given order over store. cmp may be nil for an
// index-only tree (AllowIndex-style operations become the only valid ones).
func New[T any](store Store[T], cmp Comparator[T], opts Options) (*Tree[T], error) {
	order := store.Order()
	if order < 3 {
		return nil, fmt.Errorf("%w: order must be >= 3, got %d", ErrInvalidArgument, order)
	}
	if cmp == nil && !opts.has(AllowIndex) {
		return nil, fmt.Errorf("%w: comparator-less tree requires AllowIndex", ErrInvalidArgument)
	}
	return &Tree[T]{
		store:   store,
		order:   order,
		options: opts,
		cmp:     cmp,
	}, nil
}

// SetGroupDefault sets the group value passed to the comparator by the
// plain (non-Group) search and mutation operations.
func (t *Tree[T]) SetGroupDefault(group any) { t.defaultGroup = group }

// SetHooks installs the optional acquire/release reference-count callbacks.
func (t *Tree[T]) SetHooks(acquire AcquireFunc[T], release ReleaseFunc[T]) {
	t.acquire = acquire
	t.release = release
}

// Order returns the tree's configured branching factor.
func (t *Tree[T]) Order() int { return t.order }

func (t *Tree[T]) checkLive() error {
	if t.finalized {
		return ErrFinalized
	}
	if t.options.has(ReadOnly) {
		return ErrReadOnly
	}
	return nil
}

// Size returns the number of elements in the tree, computed per spec
// invariant 7 from the root's link metadata rather than a cached counter.
func (t *Tree[T]) Size() (int, error) {
	root := t.store.Root()
	if root == NullNode {
		return 0, nil
	}
	n, err := t.store.Get(root)
	if err != nil {
		return 0, err
	}
	defer t.store.Release(root)
	l := n.Links[n.Fill]
	return l.Offset + l.Count, nil
}

// Clear empties the tree, invoking the release hook on every element and
// freeing every node.
func (t *Tree[T]) Clear() error {
	if err := t.checkLive(); err != nil {
		return err
	}
	root := t.store.Root()
	if root == NullNode {
		return nil
	}
	if err := t.clearSubtree(root); err != nil {
		return err
	}
	t.store.SetRoot(NullNode)
	return nil
}

func (t *Tree[T]) clearSubtree(id NodeID) error {
	n, err := t.store.Get(id)
	if err != nil {
		return err
	}
	leaf := n.IsLeaf()
	children := make([]NodeID, 0, t.order)
	if !leaf {
		for i := 0; i <= n.Fill; i++ {
			children = append(children, n.Links[i].Child)
		}
	}
	if t.release != nil {
		for i := 0; i < n.Fill; i++ {
			t.release(n.Elements[i])
		}
	}
	t.store.Release(id)
	for _, c := range children {
		if c != NullNode {
			if err := t.clearSubtree(c); err != nil {
				return err
			}
		}
	}
	return t.store.Free(id)
}

// Destroy finalizes the tree, clearing it and marking it unusable for
// further operations. A no-op Clear failure is surfaced to the caller.
func (t *Tree[T]) Destroy() error {
	if t.finalized {
		return nil
	}
	err := t.Clear()
	t.finalized = true
	return err
}

// Finalize marks the tree as finalized without clearing it; further
// mutations (and Write) return ErrFinalized. Useful when the backing store outlives
// this handle (e.g. the persistent store is being closed by another owner).
func (t *Tree[T]) Finalize() { t.finalized = true }

// IsFinalized reports whether Destroy/Finalize has been called.
func (t *Tree[T]) IsFinalized() bool { return t.finalized }

func (t *Tree[T]) group(g any) any {
	if g != nil {
		return g
	}
	return t.defaultGroup
}
