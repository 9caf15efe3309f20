package btree

// cursor is the internal result of a top-down search: the node holding the
// candidate position and the position itself. pos==node.Fill denotes the
// imaginary end-of-node slot (used both for "insert here to append" and for
// the global end iterator). found is meaningful only for findLower.
type cursor struct {
	node  NodeID
	pos   int
	found bool
}

// findLower descends from the root to the smallest position whose element
// compares >= key under group, per spec §4.2. On an empty tree it returns
// the zero cursor (node==NullNode). If every key is strictly less than key,
// it returns the rightmost leaf's end-of-node slot so insertion can append.
func (t *Tree[T]) findLower(key T, group any) (cursor, error) {
	id := t.store.Root()
	if id == NullNode {
		return cursor{}, nil
	}
	var candidate cursor
	have := false
	for {
		n, err := t.store.Get(id)
		if err != nil {
			return cursor{}, err
		}
		fill := n.Fill
		lo, hi := 0, fill
		for lo < hi {
			mid := (lo + hi) / 2
			if t.cmp(n.Elements[mid], key, group) < 0 {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		m := lo
		var next NodeID
		leaf := n.IsLeaf()
		if m < fill {
			candidate = cursor{node: id, pos: m, found: t.cmp(n.Elements[m], key, group) == 0}
			have = true
			next = n.Links[m].Child
		} else {
			next = n.Links[fill].Child
		}
		thisID, thisFill := id, fill
		t.store.Release(id)
		if leaf {
			if m == fill {
				if have {
					return candidate, nil
				}
				return cursor{node: thisID, pos: thisFill}, nil
			}
			return candidate, nil
		}
		id = next
	}
}

// findUpper is findLower with a strict '>' comparison; it never sets found.
func (t *Tree[T]) findUpper(key T, group any) (cursor, error) {
	id := t.store.Root()
	if id == NullNode {
		return cursor{}, nil
	}
	var candidate cursor
	have := false
	for {
		n, err := t.store.Get(id)
		if err != nil {
			return cursor{}, err
		}
		fill := n.Fill
		lo, hi := 0, fill
		for lo < hi {
			mid := (lo + hi) / 2
			if t.cmp(n.Elements[mid], key, group) > 0 {
				hi = mid
			} else {
				lo = mid + 1
			}
		}
		m := lo
		var next NodeID
		leaf := n.IsLeaf()
		if m < fill {
			candidate = cursor{node: id, pos: m}
			have = true
			next = n.Links[m].Child
		} else {
			next = n.Links[fill].Child
		}
		thisID, thisFill := id, fill
		t.store.Release(id)
		if leaf {
			if m == fill {
				if have {
					return candidate, nil
				}
				return cursor{node: thisID, pos: thisFill}, nil
			}
			return candidate, nil
		}
		id = next
	}
}

// findByIndex descends using per-link (offset,count) rank metadata to reach
// the element at global rank i in O(log n), or the trailing slot when
// i == size, per spec §4.2.
func (t *Tree[T]) findByIndex(i int) (cursor, error) {
	id := t.store.Root()
	if id == NullNode {
		return cursor{}, nil
	}
	idx := i
	for {
		n, err := t.store.Get(id)
		if err != nil {
			return cursor{}, err
		}
		fill := n.Fill
		lo, hi := 0, fill+1
		for lo < hi {
			mid := (lo + hi) / 2
			if n.Links[mid].Offset+n.Links[mid].Count < idx {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		m := lo
		if m > fill {
			t.store.Release(id)
			return cursor{node: id, pos: fill}, nil
		}
		hit := n.Links[m].Offset+n.Links[m].Count == idx
		if hit {
			t.store.Release(id)
			return cursor{node: id, pos: m}, nil
		}
		child := n.Links[m].Child
		localIdx := idx - n.Links[m].Offset
		t.store.Release(id)
		id = child
		idx = localIdx
	}
}
