package btree

import "fmt"

// Iterator is a stable bidirectional cursor over a Tree, per spec §4.6: the
// tuple (node, pos) it holds is re-resolved through the Store on every
// access, so it survives the persistent store's cache evicting and
// reloading the underlying buffer between calls.
type Iterator[T any] struct {
	tree  *Tree[T]
	node  NodeID
	pos   int
	atEnd bool
}

// Begin returns an iterator positioned at the smallest element.
func (t *Tree[T]) Begin() (*Iterator[T], error) {
	root := t.store.Root()
	if root == NullNode {
		return &Iterator[T]{tree: t, atEnd: true}, nil
	}
	id := root
	for {
		n, err := t.store.Get(id)
		if err != nil {
			return nil, err
		}
		if n.IsLeaf() {
			t.store.Release(id)
			return &Iterator[T]{tree: t, node: id, pos: 0}, nil
		}
		child := n.Links[0].Child
		t.store.Release(id)
		id = child
	}
}

// End returns the iterator one-past-the-last-element (spec's canonical end
// position: the rightmost leaf's trailing slot).
func (t *Tree[T]) End() (*Iterator[T], error) {
	root := t.store.Root()
	if root == NullNode {
		return &Iterator[T]{tree: t, atEnd: true}, nil
	}
	id := root
	for {
		n, err := t.store.Get(id)
		if err != nil {
			return nil, err
		}
		fill := n.Fill
		if n.IsLeaf() {
			t.store.Release(id)
			return &Iterator[T]{tree: t, node: id, pos: fill, atEnd: true}, nil
		}
		child := n.Links[fill].Child
		t.store.Release(id)
		id = child
	}
}

func (t *Tree[T]) cursorToIterator(c cursor) (*Iterator[T], error) {
	if c.node == NullNode {
		return &Iterator[T]{tree: t, atEnd: true}, nil
	}
	n, err := t.store.Get(c.node)
	if err != nil {
		return nil, err
	}
	fill := n.Fill
	t.store.Release(c.node)
	return &Iterator[T]{tree: t, node: c.node, pos: c.pos, atEnd: c.pos >= fill}, nil
}

// FindLower returns an iterator at the lower bound of key.
func (t *Tree[T]) FindLower(key T) (*Iterator[T], error) {
	c, err := t.findLower(key, t.defaultGroup)
	if err != nil {
		return nil, err
	}
	return t.cursorToIterator(c)
}

// FindLowerGroup is FindLower with an explicit comparator group.
func (t *Tree[T]) FindLowerGroup(key T, group any) (*Iterator[T], error) {
	c, err := t.findLower(key, t.group(group))
	if err != nil {
		return nil, err
	}
	return t.cursorToIterator(c)
}

// FindUpper returns an iterator at the upper bound of key.
func (t *Tree[T]) FindUpper(key T) (*Iterator[T], error) {
	c, err := t.findUpper(key, t.defaultGroup)
	if err != nil {
		return nil, err
	}
	return t.cursorToIterator(c)
}

// FindUpperGroup is FindUpper with an explicit comparator group.
func (t *Tree[T]) FindUpperGroup(key T, group any) (*Iterator[T], error) {
	c, err := t.findUpper(key, t.group(group))
	if err != nil {
		return nil, err
	}
	return t.cursorToIterator(c)
}

// FindIndex returns an iterator at global rank index.
func (t *Tree[T]) FindIndex(index int) (*Iterator[T], error) {
	c, err := t.findByIndex(index)
	if err != nil {
		return nil, err
	}
	return t.cursorToIterator(c)
}

// Next advances the iterator to the next element in key order (spec §4.6):
// descend into the subtree immediately to the right when one exists,
// otherwise take the next element still resident in the current node, and
// otherwise ascend until a parent position remains unconsumed.
func (it *Iterator[T]) Next() error {
	if it.atEnd {
		return ErrNotFound
	}
	t := it.tree
	n, err := t.store.Get(it.node)
	if err != nil {
		return err
	}
	fill := n.Fill
	it.pos++
	if it.pos <= fill && n.Links[it.pos].Child != NullNode {
		id := n.Links[it.pos].Child
		t.store.Release(it.node)
		for {
			cn, err := t.store.Get(id)
			if err != nil {
				return err
			}
			if cn.IsLeaf() {
				it.node = id
				it.pos = 0
				t.store.Release(id)
				return nil
			}
			next := cn.Links[0].Child
			t.store.Release(id)
			id = next
		}
	}
	if it.pos < fill {
		t.store.Release(it.node)
		return nil
	}

	parentID := n.Parent
	child := it.node
	t.store.Release(it.node)
	for parentID != NullNode {
		pn, err := t.store.Get(parentID)
		if err != nil {
			return err
		}
		ci, err := t.childIndex(pn, child)
		if err != nil {
			t.store.Release(parentID)
			return err
		}
		if ci < pn.Fill {
			it.node = parentID
			it.pos = ci
			t.store.Release(parentID)
			return nil
		}
		gp := pn.Parent
		t.store.Release(parentID)
		child = parentID
		parentID = gp
	}
	end, err := t.End()
	if err != nil {
		return err
	}
	*it = *end
	return nil
}

// Prev retreats the iterator to the previous element, mirroring Next.
func (it *Iterator[T]) Prev() error {
	t := it.tree
	if it.atEnd {
		if it.node == NullNode {
			return ErrNotFound
		}
		n, err := t.store.Get(it.node)
		if err != nil {
			return err
		}
		pos := n.Fill - 1
		t.store.Release(it.node)
		if pos < 0 {
			return ErrNotFound
		}
		it.pos = pos
		it.atEnd = false
		return nil
	}

	n, err := t.store.Get(it.node)
	if err != nil {
		return err
	}
	if n.Links[it.pos].Child != NullNode {
		id := n.Links[it.pos].Child
		t.store.Release(it.node)
		for {
			cn, err := t.store.Get(id)
			if err != nil {
				return err
			}
			if cn.IsLeaf() {
				if cn.Fill == 0 {
					t.store.Release(id)
					return fmt.Errorf("btree: corrupt tree: empty leaf during iteration")
				}
				it.node = id
				it.pos = cn.Fill - 1
				t.store.Release(id)
				return nil
			}
			next := cn.Links[cn.Fill].Child
			t.store.Release(id)
			id = next
		}
	}
	if it.pos > 0 {
		it.pos--
		t.store.Release(it.node)
		return nil
	}

	parentID := n.Parent
	child := it.node
	t.store.Release(it.node)
	for parentID != NullNode {
		pn, err := t.store.Get(parentID)
		if err != nil {
			return err
		}
		ci, err := t.childIndex(pn, child)
		if err != nil {
			t.store.Release(parentID)
			return err
		}
		if ci > 0 {
			it.node = parentID
			it.pos = ci - 1
			t.store.Release(parentID)
			return nil
		}
		gp := pn.Parent
		t.store.Release(parentID)
		child = parentID
		parentID = gp
	}
	return ErrNotFound
}

// Element returns the element currently under the iterator.
func (it *Iterator[T]) Element() (T, error) {
	var zero T
	if it.atEnd || it.node == NullNode {
		return zero, ErrNotFound
	}
	t := it.tree
	n, err := t.store.Get(it.node)
	if err != nil {
		return zero, err
	}
	defer t.store.Release(it.node)
	if it.pos >= n.Fill {
		return zero, ErrNotFound
	}
	return n.Elements[it.pos], nil
}

// Index returns the iterator's current global rank.
func (it *Iterator[T]) Index() (int, error) {
	if it.node == NullNode {
		return 0, nil
	}
	return it.tree.rankOf(it.node, it.pos)
}

// AtEnd reports whether the iterator is at the one-past-the-last position.
func (it *Iterator[T]) AtEnd() bool { return it.atEnd }

// Refresh re-validates the iterator's stored (node,pos) against the
// current node state. Element already re-fetches through the Store on
// every call; Refresh exists to detect a position a concurrent mutation on
// the same tree handle has invalidated, e.g. after the persistent cache
// evicted and reloaded the page from disk.
func (it *Iterator[T]) Refresh() error {
	if it.atEnd || it.node == NullNode {
		return nil
	}
	t := it.tree
	n, err := t.store.Get(it.node)
	if err != nil {
		return err
	}
	defer t.store.Release(it.node)
	if it.pos >= n.Fill {
		return ErrNotFound
	}
	return nil
}

// rankOf computes the global rank of (id,pos) by summing the local rank
// within id with every ancestor's Offset along the spine to the root.
func (t *Tree[T]) rankOf(id NodeID, pos int) (int, error) {
	n, err := t.store.Get(id)
	if err != nil {
		return 0, err
	}
	local := n.Links[pos].Offset + n.Links[pos].Count
	parentID := n.Parent
	t.store.Release(id)
	child := id
	for parentID != NullNode {
		pn, err := t.store.Get(parentID)
		if err != nil {
			return 0, err
		}
		ci, err := t.childIndex(pn, child)
		if err != nil {
			t.store.Release(parentID)
			return 0, err
		}
		local += pn.Links[ci].Offset
		gp := pn.Parent
		t.store.Release(parentID)
		child = parentID
		parentID = gp
	}
	return local, nil
}
