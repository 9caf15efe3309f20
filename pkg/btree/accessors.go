package btree

// Contains reports whether any element compares equal to key.
func (t *Tree[T]) Contains(key T) (bool, error) {
	c, err := t.findLower(key, t.defaultGroup)
	if err != nil {
		return false, err
	}
	return c.found, nil
}

// ContainsGroup is Contains with an explicit comparator group.
func (t *Tree[T]) ContainsGroup(key T, group any) (bool, error) {
	c, err := t.findLower(key, t.group(group))
	if err != nil {
		return false, err
	}
	return c.found, nil
}

// Get returns the first element comparing equal to key.
func (t *Tree[T]) Get(key T) (T, error) {
	var zero T
	c, err := t.findLower(key, t.defaultGroup)
	if err != nil {
		return zero, err
	}
	if !c.found {
		return zero, ErrNotFound
	}
	n, err := t.store.Get(c.node)
	if err != nil {
		return zero, err
	}
	defer t.store.Release(c.node)
	return n.Elements[c.pos], nil
}

// GetGroup is Get with an explicit comparator group.
func (t *Tree[T]) GetGroup(key T, group any) (T, error) {
	var zero T
	c, err := t.findLower(key, t.group(group))
	if err != nil {
		return zero, err
	}
	if !c.found {
		return zero, ErrNotFound
	}
	n, err := t.store.Get(c.node)
	if err != nil {
		return zero, err
	}
	defer t.store.Release(c.node)
	return n.Elements[c.pos], nil
}

// GetAt returns the element at global rank index.
func (t *Tree[T]) GetAt(index int) (T, error) {
	return t.elementAt(index)
}

// Swap exchanges the elements at global ranks i and j.
func (t *Tree[T]) Swap(i, j int) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	if i == j {
		return nil
	}
	ci, err := t.findByIndex(i)
	if err != nil {
		return err
	}
	cj, err := t.findByIndex(j)
	if err != nil {
		return err
	}
	if ci.node == NullNode || cj.node == NullNode {
		return ErrOutOfRange
	}

	if ci.node == cj.node {
		n, err := t.store.Get(ci.node)
		if err != nil {
			return err
		}
		if ci.pos >= n.Fill || cj.pos >= n.Fill {
			t.store.Release(ci.node)
			return ErrOutOfRange
		}
		n.Elements[ci.pos], n.Elements[cj.pos] = n.Elements[cj.pos], n.Elements[ci.pos]
		t.store.MarkDirty(ci.node)
		t.store.Release(ci.node)
		return nil
	}

	ni, err := t.store.Get(ci.node)
	if err != nil {
		return err
	}
	if ci.pos >= ni.Fill {
		t.store.Release(ci.node)
		return ErrOutOfRange
	}
	ei := ni.Elements[ci.pos]
	t.store.Release(ci.node)

	nj, err := t.store.Get(cj.node)
	if err != nil {
		return err
	}
	if cj.pos >= nj.Fill {
		t.store.Release(cj.node)
		return ErrOutOfRange
	}
	ej := nj.Elements[cj.pos]
	nj.Elements[cj.pos] = ei
	t.store.MarkDirty(cj.node)
	t.store.Release(cj.node)

	ni2, err := t.store.Get(ci.node)
	if err != nil {
		return err
	}
	ni2.Elements[ci.pos] = ej
	t.store.MarkDirty(ci.node)
	t.store.Release(ci.node)
	return nil
}
