package btree

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Serialized streams use the same walk-based pre-order bracket format as the
// tree's in-memory backing (spec §4.8, resolved from original_source's
// btree_write/walk): a node writes a descend marker, its fill and elements,
// then recursively its children each bracketed the same way, then its own
// ascend marker. Rank metadata (Offset/Count) is never serialized — it is
// rebuilt from Fill and the reconstructed child sizes on read.
const (
	magic         = "BTREEGO1"
	formatVersion = uint32(1)
	walkDescend   = byte(1)
	walkAscend    = byte(2)
	walkEmpty     = byte(0)
)

// ElementCodec supplies the wire encoding for a tree's element type. Write
// and Read must be exact inverses of each other.
type ElementCodec[T any] struct {
	Write func(w io.Writer, elem T) error
	Read  func(r io.Reader) (T, error)
}

func writeU8(w io.Writer, v byte) error {
	_, err := w.Write([]byte{v})
	return err
}

func readU8(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIoError, err)
	}
	return b[0], nil
}

func writeU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIoError, err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeHeader(w io.Writer, order int, opts Options) error {
	if _, err := w.Write([]byte(magic)); err != nil {
		return fmt.Errorf("%w: %v", ErrIoError, err)
	}
	if err := writeU32(w, formatVersion); err != nil {
		return fmt.Errorf("%w: %v", ErrIoError, err)
	}
	if err := writeU32(w, uint32(order)); err != nil {
		return fmt.Errorf("%w: %v", ErrIoError, err)
	}
	return writeU32(w, uint32(opts))
}

func readHeader(r io.Reader) (order int, opts Options, err error) {
	m := make([]byte, len(magic))
	if _, err := io.ReadFull(r, m); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrIoError, err)
	}
	if string(m) != magic {
		return 0, 0, fmt.Errorf("%w: bad magic in serialized stream", ErrIoError)
	}
	version, err := readU32(r)
	if err != nil {
		return 0, 0, err
	}
	if version != formatVersion {
		return 0, 0, fmt.Errorf("%w: unsupported serialization version %d", ErrIoError, version)
	}
	o, err := readU32(r)
	if err != nil {
		return 0, 0, err
	}
	op, err := readU32(r)
	if err != nil {
		return 0, 0, err
	}
	return int(o), Options(op), nil
}

// Write serializes the tree to w.
func (t *Tree[T]) Write(w io.Writer, codec ElementCodec[T]) error {
	if t.IsFinalized() {
		return ErrFinalized
	}
	if err := writeHeader(w, t.order, t.options); err != nil {
		return err
	}
	root := t.store.Root()
	if root == NullNode {
		return writeU8(w, walkEmpty)
	}
	return t.walkWrite(w, root, codec)
}

func (t *Tree[T]) walkWrite(w io.Writer, id NodeID, codec ElementCodec[T]) error {
	n, err := t.store.Get(id)
	if err != nil {
		return err
	}
	fill := n.Fill
	if err := writeU8(w, walkDescend); err != nil {
		t.store.Release(id)
		return fmt.Errorf("%w: %v", ErrIoError, err)
	}
	if err := writeU32(w, uint32(fill)); err != nil {
		t.store.Release(id)
		return fmt.Errorf("%w: %v", ErrIoError, err)
	}
	for i := 0; i < fill; i++ {
		if err := codec.Write(w, n.Elements[i]); err != nil {
			t.store.Release(id)
			return err
		}
	}
	leaf := n.IsLeaf()
	var children []NodeID
	if !leaf {
		children = make([]NodeID, fill+1)
		for i := 0; i <= fill; i++ {
			children[i] = n.Links[i].Child
		}
	}
	t.store.Release(id)
	for _, c := range children {
		if err := t.walkWrite(w, c, codec); err != nil {
			return err
		}
	}
	return writeU8(w, walkAscend)
}

// Read replaces the tree's contents with the stream written by Write. The
// tree must have order matching the stream's header.
func (t *Tree[T]) Read(r io.Reader, codec ElementCodec[T]) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	if err := t.Clear(); err != nil {
		return err
	}
	order, opts, err := readHeader(r)
	if err != nil {
		return err
	}
	if order != t.order {
		return fmt.Errorf("%w: serialized order %d does not match tree order %d", ErrInvalidArgument, order, t.order)
	}
	t.options = opts

	marker, err := readU8(r)
	if err != nil {
		return err
	}
	if marker == walkEmpty {
		t.store.SetRoot(NullNode)
		return nil
	}
	if marker != walkDescend {
		return fmt.Errorf("%w: expected root node marker", ErrIoError)
	}
	id, _, err := t.readNode(r, NullNode, 0, codec)
	if err != nil {
		return err
	}
	t.store.SetRoot(id)
	return nil
}

// readNode reads one node's fill/elements (the walkDescend marker for it
// has already been consumed by the caller) followed by zero or more
// bracketed children, stopping at its own walkAscend marker. It returns the
// new node's id and the total element count in its subtree.
func (t *Tree[T]) readNode(r io.Reader, parentID NodeID, childIndex int, codec ElementCodec[T]) (NodeID, int, error) {
	fill32, err := readU32(r)
	if err != nil {
		return NullNode, 0, err
	}
	fill := int(fill32)
	id, n, err := t.store.Alloc()
	if err != nil {
		return NullNode, 0, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}
	n.Parent = parentID
	if !t.store.Persistent() {
		n.ChildIndex = childIndex
	}
	n.Fill = fill
	for i := 0; i < fill; i++ {
		e, err := codec.Read(r)
		if err != nil {
			t.store.Release(id)
			return NullNode, 0, err
		}
		n.Elements[i] = e
	}
	t.store.MarkDirty(id)
	t.store.Release(id)

	total := fill
	childIdx := 0
	for {
		marker, err := readU8(r)
		if err != nil {
			return NullNode, 0, err
		}
		if marker == walkAscend {
			break
		}
		if marker != walkDescend {
			return NullNode, 0, fmt.Errorf("%w: unexpected marker %d in stream", ErrIoError, marker)
		}
		childID, childSize, err := t.readNode(r, id, childIdx, codec)
		if err != nil {
			return NullNode, 0, err
		}
		nn, err := t.store.Get(id)
		if err != nil {
			return NullNode, 0, err
		}
		nn.Links[childIdx].Child = childID
		nn.Links[childIdx].Count = childSize
		if t.store.Persistent() {
			nn.cimSet(childID, childIdx)
		}
		t.store.MarkDirty(id)
		t.store.Release(id)
		total += childSize
		childIdx++
	}

	nn, err := t.store.Get(id)
	if err != nil {
		return NullNode, 0, err
	}
	recomputeOffsets(nn)
	t.store.MarkDirty(id)
	t.store.Release(id)
	return id, total, nil
}
