package btree

// Options is a bit set of construction-time flags recognized by New and Open.
type Options uint32

const (
	// KeepNodes is recorded on the tree but not passed to its Store, and
	// neither store reads it: memstore.New takes its own keepNodes argument,
	// and pkg/persist always reuses freed records through its free list.
	KeepNodes Options = 1 << iota

	// MultiKey allows duplicate keys under the comparator; Get/Put/Remove
	// target the first matching element.
	MultiKey

	// InsertLower, combined with MultiKey, inserts a new duplicate at the
	// lower end of the equal-key range instead of the upper end.
	InsertLower

	// AllowIndex permits index-based InsertAt/PutAt even when the tree also
	// has a comparator; the insertion position is validated against its
	// neighbours.
	AllowIndex

	// ReadOnly opens the backing record store read-only (persistent variant).
	ReadOnly
)

func (o Options) has(f Options) bool { return o&f != 0 }

// Comparator orders a stored element against a caller-supplied key. The
// first argument is always the stored element, the second is the key being
// searched for. group is the tree's default group for plain searches, or a
// caller-supplied group for the Group variants of the search operations.
// Grouping comparators must preserve the property that for any two groups
// G1, G2, every element of G1 compares strictly less than every element of
// G2 iff G1 < G2 under the group order.
type Comparator[T any] func(elem, key T, group any) int

// AcquireFunc is invoked on an element when it is transferred into the tree
// (insert/put). ReleaseFunc is invoked when an element is transferred out
// (remove, clear, destroy). Both are optional reference-count hooks.
type AcquireFunc[T any] func(elem T)
type ReleaseFunc[T any] func(elem T)
