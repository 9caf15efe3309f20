package btree

import "fmt"

// subtreeSize returns the total element count rooted at id, including
// anything currently parked in the overflow slot under id's ownership.
func (t *Tree[T]) subtreeSize(id NodeID, n *Node[T]) int {
	base := n.Links[n.Fill].Offset + n.Links[n.Fill].Count
	if t.overflow.owner == id {
		base++
		if t.overflow.hasLink {
			base += t.overflow.link.Count
		}
	}
	return base
}

// split implements spec §4.5.1: node (the current overflow owner, not the
// root) sheds its tail half into a fresh right sibling and promotes the
// median element into the parent, recursively overflowing the parent if it
// has no room.
func (t *Tree[T]) split(nodeID NodeID) error {
	node, err := t.store.Get(nodeID)
	if err != nil {
		return err
	}
	parentID := node.Parent
	p, err := t.store.Get(parentID)
	if err != nil {
		t.store.Release(nodeID)
		return err
	}
	ci, err := t.childIndex(p, nodeID)
	if err != nil {
		t.store.Release(nodeID)
		t.store.Release(parentID)
		return err
	}

	sidx := t.order / 2
	rightID, right, err := t.store.Alloc()
	if err != nil {
		t.store.Release(nodeID)
		t.store.Release(parentID)
		return fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}
	right.Fill = (t.order - 1) - sidx

	ov := t.overflow
	right.Elements[right.Fill-1] = ov.elem
	right.Links[right.Fill] = ov.link

	promoted := node.Elements[sidx]
	oldFill := node.Fill
	copy(right.Elements[0:right.Fill-1], node.Elements[sidx+1:oldFill])
	copy(right.Links[0:right.Fill], node.Links[sidx+1:oldFill+1])
	if ov.hasLink && ov.link.Child != NullNode {
		node.cimDelete(ov.link.Child)
	}
	for i := sidx + 1; i <= oldFill; i++ {
		if c := node.Links[i].Child; c != NullNode {
			node.cimDelete(c)
		}
	}
	node.Fill = sidx
	recomputeOffsets(right)
	right.Parent = parentID
	t.overflow.clear()

	rSize := right.Links[right.Fill].Offset + right.Links[right.Fill].Count
	newLink := Link{Child: rightID, Count: rSize}

	if ci+1 == t.order {
		oldCount := p.Links[ci].Count
		p.Links[ci].Count = oldCount - 1 - rSize
		recomputeOffsets(p)
		t.overflow = overflow[T]{owner: parentID, hasElem: true, elem: promoted, hasLink: true, link: newLink}
	} else {
		oldCount := p.Links[ci].Count
		t.insertInternalPair(parentID, p, ci, promoted, newLink)
		p.Links[ci].Count = oldCount - 1 - rSize
		recomputeOffsets(p)
	}

	t.store.MarkDirty(nodeID)
	t.store.MarkDirty(rightID)
	t.store.Release(nodeID)

	if err := t.reparentChildren(rightID, right, 0, right.Fill+1); err != nil {
		t.store.Release(rightID)
		t.store.Release(parentID)
		return err
	}
	t.store.Release(rightID)

	if err := t.reparentChildren(parentID, p, ci+1, p.Fill+1); err != nil {
		t.store.Release(parentID)
		return err
	}
	t.store.MarkDirty(parentID)
	t.store.Release(parentID)
	return nil
}

// splitRoot allocates a fresh root over the current (overflowing) root and
// then runs the ordinary split against it, per spec §4.5 ("node holds
// overflow and is root").
func (t *Tree[T]) splitRoot(rootID NodeID) error {
	root, err := t.store.Get(rootID)
	if err != nil {
		return err
	}
	size := t.subtreeSize(rootID, root)
	t.store.Release(rootID)

	newRootID, newRoot, err := t.store.Alloc()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}
	newRoot.Fill = 0
	newRoot.Parent = NullNode
	newRoot.Links[0] = Link{Offset: 0, Count: size, Child: rootID}
	t.store.MarkDirty(newRootID)
	t.store.Release(newRootID)

	if err := t.reparentChild(rootID, newRootID, 0); err != nil {
		return err
	}
	t.store.SetRoot(newRootID)
	return t.split(rootID)
}

// collapseRoot frees an emptied internal root and promotes its sole
// remaining child to root, per spec §4.5 ("node underflowing root, fill=0").
func (t *Tree[T]) collapseRoot(rootID, childID NodeID) error {
	t.store.SetRoot(childID)
	c, err := t.store.Get(childID)
	if err != nil {
		return err
	}
	c.Parent = NullNode
	c.ChildIndex = -1
	t.store.MarkDirty(childID)
	t.store.Release(childID)
	return t.store.Free(rootID)
}

// lrRedistribute moves one element/link from l to r through their shared
// parent (spec §4.5.2). l may be the current overflow owner (draining the
// overflow slot instead of l's real tail) or a plain donor sibling with
// surplus fill during underflow relief.
func (t *Tree[T]) lrRedistribute(lID, rID NodeID) error {
	l, err := t.store.Get(lID)
	if err != nil {
		return err
	}
	parentID := l.Parent
	p, err := t.store.Get(parentID)
	if err != nil {
		t.store.Release(lID)
		return err
	}
	ci, err := t.childIndex(p, lID)
	if err != nil {
		t.store.Release(lID)
		t.store.Release(parentID)
		return err
	}
	r, err := t.store.Get(rID)
	if err != nil {
		t.store.Release(lID)
		t.store.Release(parentID)
		return err
	}

	copy(r.Elements[1:r.Fill+1], r.Elements[0:r.Fill])
	copy(r.Links[1:r.Fill+2], r.Links[0:r.Fill+1])
	r.Elements[0] = p.Elements[ci]

	if t.overflow.owner == lID {
		r.Links[0] = t.overflow.link
		p.Elements[ci] = t.overflow.elem
		t.overflow.clear()
	} else {
		p.Elements[ci] = l.Elements[l.Fill-1]
		r.Links[0] = l.Links[l.Fill]
		l.Fill--
	}
	if c := r.Links[0].Child; c != NullNode {
		l.cimDelete(c)
	}
	r.Fill++

	moved := r.Links[0].Count + 1
	p.Links[ci].Count -= moved
	p.Links[ci+1].Count += moved
	recomputeOffsets(p)
	recomputeOffsets(r)

	t.store.MarkDirty(lID)
	t.store.MarkDirty(rID)
	t.store.MarkDirty(parentID)
	t.store.Release(lID)
	t.store.Release(parentID)

	if err := t.reparentChildren(rID, r, 0, r.Fill+1); err != nil {
		t.store.Release(rID)
		return err
	}
	t.store.Release(rID)
	return nil
}

// rlRedistribute moves one element/link from r to l through their shared
// parent (spec §4.5.3), the mirror of lrRedistribute.
func (t *Tree[T]) rlRedistribute(lID, rID NodeID) error {
	l, err := t.store.Get(lID)
	if err != nil {
		return err
	}
	parentID := l.Parent
	p, err := t.store.Get(parentID)
	if err != nil {
		t.store.Release(lID)
		return err
	}
	ci, err := t.childIndex(p, lID)
	if err != nil {
		t.store.Release(lID)
		t.store.Release(parentID)
		return err
	}
	r, err := t.store.Get(rID)
	if err != nil {
		t.store.Release(lID)
		t.store.Release(parentID)
		return err
	}

	l.Elements[l.Fill] = p.Elements[ci]

	p.Elements[ci] = r.Elements[0]
	takenLink := r.Links[0]
	copy(r.Elements[0:r.Fill-1], r.Elements[1:r.Fill])
	copy(r.Links[0:r.Fill], r.Links[1:r.Fill+1])
	if t.overflow.owner == rID {
		// r's overflowed tail moves into the slot the shift freed.
		r.Elements[r.Fill-1] = t.overflow.elem
		r.Links[r.Fill] = t.overflow.link
		t.overflow.clear()
	} else {
		r.Fill--
	}
	if takenLink.Child != NullNode {
		r.cimDelete(takenLink.Child)
	}
	l.Links[l.Fill+1] = takenLink
	l.Fill++

	moved := takenLink.Count + 1
	p.Links[ci].Count += moved
	p.Links[ci+1].Count -= moved
	recomputeOffsets(p)
	recomputeOffsets(l)
	recomputeOffsets(r)

	t.store.MarkDirty(lID)
	t.store.MarkDirty(rID)
	t.store.MarkDirty(parentID)
	t.store.Release(parentID)

	if err := t.reparentChildren(lID, l, 0, l.Fill+1); err != nil {
		t.store.Release(lID)
		t.store.Release(rID)
		return err
	}
	t.store.Release(lID)
	if err := t.reparentChildren(rID, r, 0, r.Fill+1); err != nil {
		t.store.Release(rID)
		return err
	}
	t.store.Release(rID)
	return nil
}

// concatenate merges right into left through their shared parent's
// separator (spec §4.5.4), freeing right and shrinking the parent by one
// element/link. If the merged size is exactly order, the tail element/link
// becomes a fresh overflow owned by left rather than overflowing the array.
func (t *Tree[T]) concatenate(leftID, rightID NodeID) error {
	left, err := t.store.Get(leftID)
	if err != nil {
		return err
	}
	parentID := left.Parent
	p, err := t.store.Get(parentID)
	if err != nil {
		t.store.Release(leftID)
		return err
	}
	ci, err := t.childIndex(p, leftID)
	if err != nil {
		t.store.Release(leftID)
		t.store.Release(parentID)
		return err
	}
	right, err := t.store.Get(rightID)
	if err != nil {
		t.store.Release(leftID)
		t.store.Release(parentID)
		return err
	}

	sep := p.Elements[ci]
	lf := left.Fill
	rf := right.Fill
	combined := lf + 1 + rf

	left.Elements[lf] = sep
	if combined <= t.order-1 {
		copy(left.Elements[lf+1:combined], right.Elements[:rf])
		copy(left.Links[lf+1:lf+1+rf+1], right.Links[:rf+1])
		left.Fill = combined
	} else {
		copy(left.Elements[lf+1:t.order-1], right.Elements[:rf-1])
		copy(left.Links[lf+1:lf+1+rf], right.Links[:rf])
		left.Fill = t.order - 1
		t.overflow = overflow[T]{
			owner:   leftID,
			hasElem: true,
			elem:    right.Elements[rf-1],
			hasLink: true,
			link:    right.Links[rf],
		}
	}
	recomputeOffsets(left)
	left.Parent = parentID

	// right's children have all migrated into left above; drop its CIM
	// outright rather than leaving stale entries behind for a node about to
	// be freed.
	right.CIM = nil

	t.store.MarkDirty(leftID)
	t.store.Release(rightID)
	if err := t.store.Free(rightID); err != nil {
		t.store.Release(leftID)
		t.store.Release(parentID)
		return err
	}

	if err := t.reparentChildren(leftID, left, 0, left.Fill+1); err != nil {
		t.store.Release(leftID)
		t.store.Release(parentID)
		return err
	}
	t.store.Release(leftID)

	oldFill := p.Fill
	p.Links[ci].Count += 1 + p.Links[ci+1].Count
	p.cimDelete(rightID)
	copy(p.Elements[ci:oldFill-1], p.Elements[ci+1:oldFill])
	copy(p.Links[ci+1:oldFill], p.Links[ci+2:oldFill+1])
	p.Fill = oldFill - 1
	recomputeOffsets(p)
	if err := t.reparentChildren(parentID, p, ci+1, p.Fill+1); err != nil {
		t.store.Release(parentID)
		return err
	}
	t.store.MarkDirty(parentID)
	t.store.Release(parentID)
	return nil
}

// adjust performs spec §4.5's single rebalancing pass per level, escalating
// toward the root until a level needs no further work. It dispatches on
// whether id currently holds the tree overflow or is underflowing, choosing
// redistribution over split/concatenate whenever a sibling has slack.
func (t *Tree[T]) adjust(id NodeID) error {
	for {
		n, err := t.store.Get(id)
		if err != nil {
			return err
		}
		parentID := n.Parent
		fill := n.Fill
		isOverflow := t.overflow.owner == id

		if parentID == NullNode {
			if isOverflow {
				t.store.Release(id)
				return t.splitRoot(id)
			}
			if fill == 0 {
				if n.IsLeaf() {
					t.store.Release(id)
					t.store.SetRoot(NullNode)
					return t.store.Free(id)
				}
				child := n.Links[0].Child
				t.store.Release(id)
				return t.collapseRoot(id, child)
			}
			t.store.Release(id)
			return nil
		}

		threshold := t.order / 2
		isUnderflow := !isOverflow && fill < threshold
		if !isOverflow && !isUnderflow {
			t.store.Release(id)
			return nil
		}

		p, err := t.store.Get(parentID)
		if err != nil {
			t.store.Release(id)
			return err
		}
		ci, err := t.childIndex(p, id)
		if err != nil {
			t.store.Release(id)
			t.store.Release(parentID)
			return err
		}
		var leftSib, rightSib NodeID
		if ci > 0 {
			leftSib = p.Links[ci-1].Child
		}
		if ci < p.Fill {
			rightSib = p.Links[ci+1].Child
		}
		t.store.Release(id)
		t.store.Release(parentID)

		if isOverflow {
			if rightSib != NullNode {
				rf, err := t.fillOf(rightSib)
				if err != nil {
					return err
				}
				if rf < t.order-2 {
					return t.lrRedistribute(id, rightSib)
				}
			}
			if leftSib != NullNode {
				lf, err := t.fillOf(leftSib)
				if err != nil {
					return err
				}
				if lf < t.order-2 {
					return t.rlRedistribute(leftSib, id)
				}
			}
			if err := t.split(id); err != nil {
				return err
			}
			id = parentID
			continue
		}

		if leftSib != NullNode {
			lf, err := t.fillOf(leftSib)
			if err != nil {
				return err
			}
			if lf > threshold {
				return t.lrRedistribute(leftSib, id)
			}
		}
		if rightSib != NullNode {
			rf, err := t.fillOf(rightSib)
			if err != nil {
				return err
			}
			if rf > threshold {
				return t.rlRedistribute(id, rightSib)
			}
		}
		switch {
		case rightSib != NullNode:
			if err := t.concatenate(id, rightSib); err != nil {
				return err
			}
		case leftSib != NullNode:
			if err := t.concatenate(leftSib, id); err != nil {
				return err
			}
		default:
			return nil
		}
		if owner := t.overflow.owner; owner != NullNode {
			// The merge filled left past order-1; splitting it again hands
			// the parent back the separator the merge consumed.
			return t.split(owner)
		}
		id = parentID
	}
}

func (t *Tree[T]) fillOf(id NodeID) (int, error) {
	n, err := t.store.Get(id)
	if err != nil {
		return 0, err
	}
	fill := n.Fill
	t.store.Release(id)
	return fill, nil
}
