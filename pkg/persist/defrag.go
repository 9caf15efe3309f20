package persist

import (
	"fmt"

	"github.com/libbtreego/libbtree/pkg/btree"
)

// Defrag repeatedly moves the highest-numbered live record into the free
// list's head slot, fixing up the relocated node's parent (its link and CIM entry)
// and its children's parent pointers, then trims any free records left
// dangling at the tail — shrinking MaxRecno back down after a burst of
// deletes, per spec's defragmentation operation.
func (s *Store[T]) Defrag() error {
	if s.readOnly {
		return fmt.Errorf("%w: cannot defrag a read-only store", btree.ErrReadOnly)
	}
	for {
		// Trim first so the record at MaxRecno is live before it is moved.
		if err := s.trim(); err != nil {
			return err
		}
		moved, err := s.defragStep()
		if err != nil {
			return err
		}
		if !moved {
			break
		}
	}
	return s.trim()
}

// defragStep performs one relocation, returning false once the free list is
// empty or its head is already at or past the tail (nothing left to pack).
func (s *Store[T]) defragStep() (bool, error) {
	if s.freeListHead == 0 || s.maxRecno == 0 {
		return false, nil
	}
	target := s.freeListHead
	last := s.maxRecno
	if target >= last {
		return false, nil
	}

	if _, err := s.popFreeList(); err != nil {
		return false, err
	}

	s.cache.Forget(last)
	raw, err := s.records.Get(last)
	if err != nil {
		return false, fmt.Errorf("%w: %v", btree.ErrIoError, err)
	}
	n := decodeNode[T](raw, s.order, s.elemSize, s.codec)

	if n.Parent == btree.NullNode {
		s.root = btree.NodeID(target)
	} else {
		parent, err := s.load(uint32(n.Parent))
		if err != nil {
			return false, err
		}
		ci := parent.CIMGet(btree.NodeID(last))
		if ci >= 0 {
			parent.Links[ci].Child = btree.NodeID(target)
			parent.CIMDelete(btree.NodeID(last))
			parent.CIMSet(btree.NodeID(target), ci)
		}
		if err := s.flush(uint32(n.Parent), parent); err != nil {
			return false, err
		}
	}

	if !n.IsLeaf() {
		for i := 0; i <= n.Fill; i++ {
			child := n.Links[i].Child
			if child == btree.NullNode {
				continue
			}
			cn, err := s.load(uint32(child))
			if err != nil {
				return false, err
			}
			cn.Parent = btree.NodeID(target)
			if err := s.flush(uint32(child), cn); err != nil {
				return false, err
			}
		}
	}

	if err := s.flush(target, n); err != nil {
		return false, err
	}

	if last == s.maxRecno {
		s.maxRecno--
	}
	return true, nil
}

// trim erases trailing free records contiguous with the tail, walking
// downward from MaxRecno while the record at that number is marked free.
func (s *Store[T]) trim() error {
	for s.maxRecno > 0 {
		raw, err := s.records.Get(s.maxRecno)
		if err != nil {
			return fmt.Errorf("%w: %v", btree.ErrIoError, err)
		}
		if !isFreeRecord(raw) {
			break
		}
		next, prev := decodeFreeRecord(raw)
		s.unlinkFree(s.maxRecno, next, prev)
		s.records.Del(s.maxRecno)
		s.maxRecno--
	}
	return nil
}

// unlinkFree removes recno from the doubly linked free list given its
// stored next/prev, patching its neighbors (or FreeListHead) in place.
func (s *Store[T]) unlinkFree(recno, next, prev uint32) {
	size := NodeRecordSize(s.order, s.elemSize)
	if prev != 0 {
		if raw, err := s.records.Get(prev); err == nil && isFreeRecord(raw) {
			_, prevOfPrev := decodeFreeRecord(raw)
			s.records.Put(prev, encodeFreeRecord(size, next, prevOfPrev))
		}
	}
	if next != 0 {
		if raw, err := s.records.Get(next); err == nil && isFreeRecord(raw) {
			nextOfNext, _ := decodeFreeRecord(raw)
			s.records.Put(next, encodeFreeRecord(size, nextOfNext, prev))
		}
	}
	if s.freeListHead == recno {
		s.freeListHead = next
	}
}
