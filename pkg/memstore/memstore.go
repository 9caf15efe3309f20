// Package memstore implements btree.Store over a plain Go slice arena: no
// eviction, no bounded capacity, and a live parent pointer kept directly on
// each Node (so the engine never needs a child-index map for this variant).
// It is the "pointer mode"/"inline mode" in-memory backing from the design
// notes — the other Store, pkg/persist, fronts a bounded page cache instead.
package memstore

import (
	"fmt"

	"github.com/libbtreego/libbtree/pkg/btree"
)

// Store is an in-memory, unbounded btree.Store[T]. Node ids are 1-based
// arena slots; id 0 (btree.NullNode) is never issued.
type Store[T any] struct {
	order     int
	root      btree.NodeID
	nodes     []*btree.Node[T]
	free      []btree.NodeID
	keepNodes bool
}

// New creates an empty in-memory store for a tree of the given order.
// keepNodes retains freed node slots for reuse instead of letting them be
// garbage collected, trading memory for fewer allocations on churn-heavy
// workloads (btree.KeepNodes's in-memory counterpart).
func New[T any](order int, keepNodes bool) *Store[T] {
	return &Store[T]{
		order:     order,
		nodes:     make([]*btree.Node[T], 1, 64), // slot 0 reserved for NullNode
		keepNodes: keepNodes,
	}
}

func (s *Store[T]) Order() int { return s.order }

func (s *Store[T]) Root() btree.NodeID { return s.root }

func (s *Store[T]) SetRoot(id btree.NodeID) { s.root = id }

func (s *Store[T]) Get(id btree.NodeID) (*btree.Node[T], error) {
	if id == btree.NullNode || int(id) >= len(s.nodes) || s.nodes[id] == nil {
		return nil, fmt.Errorf("%w: no such node %d", btree.ErrInvalidArgument, id)
	}
	return s.nodes[id], nil
}

// Release is a no-op: the in-memory store never evicts, so nothing needs
// unpinning.
func (s *Store[T]) Release(btree.NodeID) {}

// MarkDirty is a no-op: there is no write-back path to track dirtiness for.
func (s *Store[T]) MarkDirty(btree.NodeID) {}

func (s *Store[T]) Alloc() (btree.NodeID, *btree.Node[T], error) {
	n := newNode[T](s.order)
	if len(s.free) > 0 {
		id := s.free[len(s.free)-1]
		s.free = s.free[:len(s.free)-1]
		s.nodes[id] = n
		return id, n, nil
	}
	id := btree.NodeID(len(s.nodes))
	s.nodes = append(s.nodes, n)
	return id, n, nil
}

func (s *Store[T]) Free(id btree.NodeID) error {
	if id == btree.NullNode || int(id) >= len(s.nodes) || s.nodes[id] == nil {
		return fmt.Errorf("%w: no such node %d", btree.ErrInvalidArgument, id)
	}
	if s.keepNodes {
		s.free = append(s.free, id)
		s.nodes[id] = nil
		return nil
	}
	s.nodes[id] = nil
	return nil
}

func (s *Store[T]) Persistent() bool { return false }

// Len reports how many live (non-freed) node slots are currently allocated,
// for diagnostics and tests.
func (s *Store[T]) Len() int {
	n := 0
	for _, slot := range s.nodes {
		if slot != nil {
			n++
		}
	}
	return n
}

// newNode mirrors btree.newNode's layout (unexported there), since memstore
// needs to build nodes without a public constructor in the btree package.
func newNode[T any](order int) *btree.Node[T] {
	n := &btree.Node[T]{
		ChildIndex: -1,
		Elements:   make([]T, order-1),
		Links:      make([]btree.Link, order),
	}
	for i := range n.Links {
		n.Links[i] = btree.Link{Offset: i}
	}
	return n
}
