package btree

import "fmt"

// insertLeafElement implements spec §4.3 step 3 (node_insert) for a leaf: if
// pos lands on the order-th (out of bounds) slot, the new element itself
// becomes the overflow; otherwise a full node first parks its own tail
// element in the overflow slot before the rightward shift makes room.
func (t *Tree[T]) insertLeafElement(id NodeID, n *Node[T], pos int, elem T) {
	if pos == t.order-1 {
		t.overflow = overflow[T]{owner: id, hasElem: true, elem: elem}
		return
	}
	if n.Fill == t.order-1 {
		last := n.Elements[n.Fill-1]
		t.overflow = overflow[T]{owner: id, hasElem: true, elem: last}
		n.Fill--
	}
	copy(n.Elements[pos+1:n.Fill+1], n.Elements[pos:n.Fill])
	n.Elements[pos] = elem
	n.Fill++
}

// insertInternalPair inserts elem at elements[pos] and childLink at
// links[pos+1], shifting both arrays rightward. It is the same primitive
// the split rebalancer uses to install a promoted key and its new right
// sibling into the parent (spec §4.5.1).
func (t *Tree[T]) insertInternalPair(id NodeID, n *Node[T], pos int, elem T, childLink Link) {
	if pos == t.order-1 {
		t.overflow = overflow[T]{owner: id, hasElem: true, elem: elem, hasLink: true, link: childLink}
		return
	}
	if n.Fill == t.order-1 {
		lastElem := n.Elements[n.Fill-1]
		lastLink := n.Links[n.Fill]
		t.overflow = overflow[T]{owner: id, hasElem: true, elem: lastElem, hasLink: true, link: lastLink}
		n.Fill--
	}
	copy(n.Elements[pos+1:n.Fill+1], n.Elements[pos:n.Fill])
	n.Elements[pos] = elem
	copy(n.Links[pos+2:n.Fill+2], n.Links[pos+1:n.Fill+1])
	n.Links[pos+1] = childLink
	n.Fill++
	recomputeOffsets(n)
}

// recomputeOffsets rebuilds every link's Offset from its Count, per spec
// invariant 3: offset(k) = sum_{j<k}(count(j)+1). Called after any mutation
// that shifts or changes a node's link array, instead of tracking offsets
// incrementally through every case.
func recomputeOffsets[T any](n *Node[T]) {
	offset := 0
	for k := 0; k <= n.Fill; k++ {
		n.Links[k].Offset = offset
		offset += n.Links[k].Count + 1
	}
}

// childIndex returns the slot child occupies within parent: the child's own
// ChildIndex field for the in-memory store (which can hold a live parent
// pointer), or parent's child-index map for the persistent store.
func (t *Tree[T]) childIndex(parent *Node[T], child NodeID) (int, error) {
	if !t.store.Persistent() {
		c, err := t.store.Get(child)
		if err != nil {
			return -1, err
		}
		ci := c.ChildIndex
		t.store.Release(child)
		return ci, nil
	}
	return parent.cimGet(child), nil
}

// reparentChild records newParentID/newIndex as child's position, via
// ChildIndex (in-memory) or the parent's CIM (persistent).
func (t *Tree[T]) reparentChild(child, newParentID NodeID, newIndex int) error {
	if child == NullNode {
		return nil
	}
	c, err := t.store.Get(child)
	if err != nil {
		return err
	}
	c.Parent = newParentID
	if !t.store.Persistent() {
		c.ChildIndex = newIndex
	}
	t.store.MarkDirty(child)
	t.store.Release(child)
	if t.store.Persistent() {
		p, err := t.store.Get(newParentID)
		if err != nil {
			return err
		}
		p.cimSet(child, newIndex)
		t.store.MarkDirty(newParentID)
		t.store.Release(newParentID)
	}
	return nil
}

// reparentChildren re-seats every child in newParent.Links[from:to) to
// newParentID at its current index. Used after any insert/shift/merge that
// may have moved children between nodes or renumbered their slot.
func (t *Tree[T]) reparentChildren(newParentID NodeID, newParent *Node[T], from, to int) error {
	for i := from; i < to; i++ {
		if err := t.reparentChild(newParent.Links[i].Child, newParentID, i); err != nil {
			return err
		}
	}
	return nil
}

// updateCount propagates a +1/-1 delta from a just-mutated node up the
// spine to the root, fixing each ancestor's link Count and the Offset of
// every later sibling (spec §4.5, "rank bookkeeping").
func (t *Tree[T]) updateCount(start NodeID, delta int) error {
	child := start
	for {
		n, err := t.store.Get(child)
		if err != nil {
			return err
		}
		parentID := n.Parent
		t.store.Release(child)
		if parentID == NullNode {
			return nil
		}
		p, err := t.store.Get(parentID)
		if err != nil {
			return err
		}
		ci, err := t.childIndex(p, child)
		if err != nil {
			t.store.Release(parentID)
			return err
		}
		if ci < 0 {
			t.store.Release(parentID)
			return fmt.Errorf("btree: corrupt tree: child %d missing from parent %d", child, parentID)
		}
		p.Links[ci].Count += delta
		for j := ci + 1; j <= p.Fill; j++ {
			p.Links[j].Offset += delta
		}
		t.store.MarkDirty(parentID)
		t.store.Release(parentID)
		child = parentID
	}
}

// Insert adds elem under its own key. In unique mode (no MultiKey) it fails
// with ErrAlreadyExists if an equal key is already present; in MultiKey
// mode it inserts a new duplicate at the upper end of the equal-key run
// (or the lower end, if InsertLower is set).
func (t *Tree[T]) Insert(elem T) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	if t.cmp == nil {
		return fmt.Errorf("%w: Insert requires a comparator", ErrInvalidArgument)
	}
	var c cursor
	var err error
	switch {
	case !t.options.has(MultiKey):
		c, err = t.findLower(elem, t.defaultGroup)
		if err != nil {
			return err
		}
		if c.found {
			return ErrAlreadyExists
		}
	case t.options.has(InsertLower):
		c, err = t.findLower(elem, t.defaultGroup)
	default:
		c, err = t.findUpper(elem, t.defaultGroup)
	}
	if err != nil {
		return err
	}
	return t.insertAtCursor(c, elem)
}

// insertAtCursor walks the candidate position down to a leaf (spec §4.3
// step 2), stores the element there, fires the acquire hook, updates rank
// counters, and rebalances.
func (t *Tree[T]) insertAtCursor(c cursor, elem T) error {
	nodeID := c.node
	pos := c.pos
	if nodeID == NullNode {
		id, n, err := t.store.Alloc()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrOutOfMemory, err)
		}
		n.Parent = NullNode
		n.Fill = 0
		t.store.SetRoot(id)
		t.store.Release(id)
		nodeID, pos = id, 0
	}
	n, err := t.store.Get(nodeID)
	if err != nil {
		return err
	}
	for !n.IsLeaf() {
		child := n.Links[pos].Child
		t.store.Release(nodeID)
		n, err = t.store.Get(child)
		if err != nil {
			return err
		}
		pos = n.Fill
		nodeID = child
	}
	t.insertLeafElement(nodeID, n, pos, elem)
	t.store.MarkDirty(nodeID)
	t.store.Release(nodeID)

	if t.acquire != nil {
		t.acquire(elem)
	}
	if err := t.updateCount(nodeID, 1); err != nil {
		return err
	}
	return t.adjust(nodeID)
}

// elementAt returns the element at global rank i.
func (t *Tree[T]) elementAt(i int) (T, error) {
	var zero T
	c, err := t.findByIndex(i)
	if err != nil {
		return zero, err
	}
	if c.node == NullNode {
		return zero, ErrNotFound
	}
	n, err := t.store.Get(c.node)
	if err != nil {
		return zero, err
	}
	defer t.store.Release(c.node)
	if c.pos >= n.Fill {
		return zero, ErrNotFound
	}
	return n.Elements[c.pos], nil
}

// validateIndexInsert checks that inserting elem at index would not violate
// comparator order against its neighbours — the check spec §9 notes the
// original validate_at left disabled.
func (t *Tree[T]) validateIndexInsert(index, size int, elem T) error {
	if index > 0 {
		left, err := t.elementAt(index - 1)
		if err != nil {
			return err
		}
		if t.cmp(left, elem, t.defaultGroup) > 0 {
			return fmt.Errorf("%w: insert at %d would violate order with predecessor", ErrInvalidArgument, index)
		}
	}
	if index < size {
		right, err := t.elementAt(index)
		if err != nil {
			return err
		}
		if t.cmp(right, elem, t.defaultGroup) < 0 {
			return fmt.Errorf("%w: insert at %d would violate order with successor", ErrInvalidArgument, index)
		}
	}
	return nil
}

// InsertAt inserts elem at rank index. Valid on a comparator-less tree, or
// on a keyed tree that has AllowIndex set — in which case the insertion is
// validated against its neighbours so the resulting order stays consistent.
func (t *Tree[T]) InsertAt(index int, elem T) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	size, err := t.Size()
	if err != nil {
		return err
	}
	if index < 0 || index > size {
		return ErrOutOfRange
	}
	if t.cmp != nil {
		if !t.options.has(AllowIndex) {
			return fmt.Errorf("%w: index-based insert requires AllowIndex when a comparator is set", ErrInvalidArgument)
		}
		if err := t.validateIndexInsert(index, size, elem); err != nil {
			return err
		}
	}
	c, err := t.findByIndex(index)
	if err != nil {
		return err
	}
	return t.insertAtCursor(c, elem)
}

// Put inserts elem, or replaces the first element comparing equal to it.
func (t *Tree[T]) Put(elem T) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	if t.cmp == nil {
		return fmt.Errorf("%w: Put requires a comparator", ErrInvalidArgument)
	}
	c, err := t.findLower(elem, t.defaultGroup)
	if err != nil {
		return err
	}
	if c.found {
		n, err := t.store.Get(c.node)
		if err != nil {
			return err
		}
		old := n.Elements[c.pos]
		n.Elements[c.pos] = elem
		t.store.MarkDirty(c.node)
		t.store.Release(c.node)
		if t.release != nil {
			t.release(old)
		}
		if t.acquire != nil {
			t.acquire(elem)
		}
		return nil
	}
	return t.insertAtCursor(c, elem)
}

// PutAt replaces the element at rank index with elem, or appends if
// index==size. On a keyed tree with AllowIndex, the replacement is
// validated against its neighbours.
func (t *Tree[T]) PutAt(index int, elem T) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	size, err := t.Size()
	if err != nil {
		return err
	}
	if index < 0 || index > size {
		return ErrOutOfRange
	}
	if index == size {
		return t.InsertAt(index, elem)
	}
	if t.cmp != nil && t.options.has(AllowIndex) {
		if index > 0 {
			left, err := t.elementAt(index - 1)
			if err != nil {
				return err
			}
			if t.cmp(left, elem, t.defaultGroup) > 0 {
				return fmt.Errorf("%w: put at %d would violate order with predecessor", ErrInvalidArgument, index)
			}
		}
		if index+1 < size {
			right, err := t.elementAt(index + 1)
			if err != nil {
				return err
			}
			if t.cmp(right, elem, t.defaultGroup) < 0 {
				return fmt.Errorf("%w: put at %d would violate order with successor", ErrInvalidArgument, index)
			}
		}
	}
	c, err := t.findByIndex(index)
	if err != nil {
		return err
	}
	n, err := t.store.Get(c.node)
	if err != nil {
		return err
	}
	old := n.Elements[c.pos]
	n.Elements[c.pos] = elem
	t.store.MarkDirty(c.node)
	t.store.Release(c.node)
	if t.release != nil {
		t.release(old)
	}
	if t.acquire != nil {
		t.acquire(elem)
	}
	return nil
}
