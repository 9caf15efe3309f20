package btree

// Store is the backing-store abstraction the algorithmic core is written
// against. pkg/memstore implements it directly over a slice arena with no
// eviction; pkg/persist implements it over a bounded, pin-counted page
// cache fronting an external record-number database. Both variants share
// every file in this package — only Store differs.
//
// Every Get must be paired with exactly one Release on every exit path,
// including error paths; Get conceptually pins the node for the duration of
// the caller's use of it, and a persistent Store refuses to evict a pinned
// buffer.
type Store[T any] interface {
	// Order returns the tree's configured branching factor.
	Order() int

	// Root returns the current root id, or NullNode for an empty tree.
	Root() NodeID
	// SetRoot updates the root id.
	SetRoot(id NodeID)

	// Get loads and pins the node for id. The returned pointer is valid
	// until the matching Release.
	Get(id NodeID) (*Node[T], error)
	// Release unpins the node previously returned by Get for id.
	Release(id NodeID)
	// MarkDirty marks the node for id as modified, so a persistent store
	// writes it back on eviction or flush. A no-op for the in-memory store.
	MarkDirty(id NodeID)

	// Alloc reserves a fresh node id and returns it pinned, ready for the
	// caller to populate via the returned *Node.
	Alloc() (NodeID, *Node[T], error)
	// Free releases id back to the store. The in-memory store keeps the
	// slot for a later Alloc only when it was built with keepNodes; the
	// persistent store always pushes the record onto its free list, which
	// the next Alloc pops.
	Free(id NodeID) error

	// Persistent reports whether this store fronts an external record
	// store (true) or is a pure in-memory arena (false). The engine uses
	// this only to decide whether to maintain CIM entries.
	Persistent() bool
}
