package btree

import "fmt"

// Remove deletes the first element comparing equal to key.
func (t *Tree[T]) Remove(key T) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	if t.cmp == nil {
		return fmt.Errorf("%w: Remove requires a comparator", ErrInvalidArgument)
	}
	c, err := t.findLower(key, t.defaultGroup)
	if err != nil {
		return err
	}
	if !c.found {
		return ErrNotFound
	}
	return t.removeAtCursor(c)
}

// RemoveAt deletes the element at global rank index.
func (t *Tree[T]) RemoveAt(index int) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	c, err := t.findByIndex(index)
	if err != nil {
		return err
	}
	if c.node == NullNode {
		return ErrOutOfRange
	}
	n, err := t.store.Get(c.node)
	if err != nil {
		return err
	}
	if c.pos >= n.Fill {
		t.store.Release(c.node)
		return ErrOutOfRange
	}
	t.store.Release(c.node)
	return t.removeAtCursor(c)
}

// shiftLeft removes the element at pos from a leaf, closing the gap.
func (t *Tree[T]) shiftLeft(n *Node[T], pos int) {
	copy(n.Elements[pos:n.Fill-1], n.Elements[pos+1:n.Fill])
	n.Fill--
}

// removeAtCursor implements spec §4.4: a leaf removal just closes the gap;
// an internal removal is resolved by swapping in the leftmost element of
// the right child's subtree (the in-order successor) and deleting that
// leaf position instead.
func (t *Tree[T]) removeAtCursor(c cursor) error {
	n, err := t.store.Get(c.node)
	if err != nil {
		return err
	}
	removed := n.Elements[c.pos]
	leaf := n.IsLeaf()

	var leafID NodeID
	if leaf {
		leafID = c.node
		t.shiftLeft(n, c.pos)
		t.store.MarkDirty(c.node)
		t.store.Release(c.node)
	} else {
		rightChild := n.Links[c.pos+1].Child
		t.store.Release(c.node)

		succID := rightChild
		sn, err := t.store.Get(succID)
		if err != nil {
			return err
		}
		for !sn.IsLeaf() {
			child := sn.Links[0].Child
			t.store.Release(succID)
			sn, err = t.store.Get(child)
			if err != nil {
				return err
			}
			succID = child
		}
		succElem := sn.Elements[0]
		t.shiftLeft(sn, 0)
		t.store.MarkDirty(succID)
		t.store.Release(succID)

		n2, err := t.store.Get(c.node)
		if err != nil {
			return err
		}
		n2.Elements[c.pos] = succElem
		t.store.MarkDirty(c.node)
		t.store.Release(c.node)
		leafID = succID
	}

	if t.release != nil {
		t.release(removed)
	}
	if err := t.updateCount(leafID, -1); err != nil {
		return err
	}
	return t.adjust(leafID)
}
