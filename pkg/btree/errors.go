// Package btree implements a rank-augmented B-tree engine shared by an
// in-memory node store (pkg/memstore) and a page-cached persistent node
// store (pkg/persist). It supports key-ordered lookup via a caller-supplied
// comparator, O(log n) positional indexing by rank, and stable bidirectional
// iteration.
package btree

import "errors"

// Sentinel errors returned by tree operations. Wrap with fmt.Errorf("...: %w", ...)
// where additional context is useful; callers should compare with errors.Is.
var (
	// ErrInvalidArgument is returned for a bad order, a bad element size, an
	// index-only operation on a keyed tree without AllowIndex, a key-only
	// operation on a comparator-less tree, or an order violation on InsertAt/PutAt.
	ErrInvalidArgument = errors.New("btree: invalid argument")

	// ErrNotFound is returned when a key or index is absent, or an iterator
	// has moved past an end.
	ErrNotFound = errors.New("btree: not found")

	// ErrAlreadyExists is returned by Insert in unique-key mode when the key
	// is already present.
	ErrAlreadyExists = errors.New("btree: already exists")

	// ErrOutOfRange is returned when an index falls outside [0, size) (or
	// [0, size] for insertion).
	ErrOutOfRange = errors.New("btree: index out of range")

	// ErrOutOfMemory is returned when the backing store fails to allocate a node.
	ErrOutOfMemory = errors.New("btree: out of memory")

	// ErrResourceExhausted is returned by the persistent store's page cache
	// when no buffer can be evicted (all buffers pinned by the current
	// compound operation).
	ErrResourceExhausted = errors.New("btree: resource exhausted")

	// ErrIoError wraps a failure from the underlying record store. After
	// receiving it, the caller must abort the enclosing transaction and call
	// Tree.Reload before further use.
	ErrIoError = errors.New("btree: io error")

	// ErrReadOnly is returned by a mutation attempted on a read-only handle.
	ErrReadOnly = errors.New("btree: read-only")

	// ErrFinalized is returned by every mutating operation, Swap, Read and
	// Write on a tree marked Finalize'd. Queries such as Size, Get, GetAt and
	// iteration do not check it.
	ErrFinalized = errors.New("btree: finalized")
)
