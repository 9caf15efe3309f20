package persist

import (
	"encoding/binary"

	"github.com/libbtreego/libbtree/pkg/btree"
)

// Fixed per-record layout (little-endian, per the persistent on-disk
// layout): |parent u32|fill u32|elements[order-1]*elemSize|links[order] of
// (offset u32, count u32, child u32)|cim[order] of (child u32, index u32)|.
// A free record reuses the same fixed length: parent is overwritten with
// headerRecno as the free marker, and the next 8 bytes hold the doubly
// linked free list's next/prev record numbers.
const (
	nodeFixedPrefix = 8  // parent + fill
	linkEncodedSize = 12 // offset, count, child
	cimEncodedSize  = 8  // child, index
)

// NodeRecordSize returns the fixed record length for a node of the given
// order whose elements encode to elemSize bytes each.
func NodeRecordSize(order, elemSize int) int {
	return nodeFixedPrefix + (order-1)*elemSize + order*linkEncodedSize + order*cimEncodedSize
}

func encodeNode[T any](n *btree.Node[T], order, elemSize int, codec FixedCodec[T]) []byte {
	buf := make([]byte, NodeRecordSize(order, elemSize))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(n.Parent))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(n.Fill))

	off := nodeFixedPrefix
	for i := 0; i < order-1; i++ {
		if i < n.Fill {
			codec.Encode(n.Elements[i], buf[off:off+elemSize])
		}
		off += elemSize
	}
	for i := 0; i < order; i++ {
		var l btree.Link
		if i < len(n.Links) {
			l = n.Links[i]
		}
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(l.Offset))
		binary.LittleEndian.PutUint32(buf[off+4:off+8], uint32(l.Count))
		binary.LittleEndian.PutUint32(buf[off+8:off+12], uint32(l.Child))
		off += linkEncodedSize
	}
	written := 0
	for _, e := range n.CIM {
		if written >= order {
			break
		}
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(e.Child))
		binary.LittleEndian.PutUint32(buf[off+4:off+8], uint32(e.Index))
		off += cimEncodedSize
		written++
	}
	return buf
}

func decodeNode[T any](buf []byte, order, elemSize int, codec FixedCodec[T]) *btree.Node[T] {
	n := &btree.Node[T]{
		ChildIndex: -1,
		Elements:   make([]T, order-1),
		Links:      make([]btree.Link, order),
	}
	n.Parent = btree.NodeID(binary.LittleEndian.Uint32(buf[0:4]))
	n.Fill = int(binary.LittleEndian.Uint32(buf[4:8]))

	off := nodeFixedPrefix
	for i := 0; i < order-1; i++ {
		if i < n.Fill {
			n.Elements[i] = codec.Decode(buf[off : off+elemSize])
		}
		off += elemSize
	}
	for i := 0; i < order; i++ {
		offset := int(binary.LittleEndian.Uint32(buf[off : off+4]))
		count := int(binary.LittleEndian.Uint32(buf[off+4 : off+8]))
		child := btree.NodeID(binary.LittleEndian.Uint32(buf[off+8 : off+12]))
		n.Links[i] = btree.Link{Offset: offset, Count: count, Child: child}
		off += linkEncodedSize
	}
	for i := 0; i < order; i++ {
		child := btree.NodeID(binary.LittleEndian.Uint32(buf[off : off+4]))
		index := int(binary.LittleEndian.Uint32(buf[off+4 : off+8]))
		off += cimEncodedSize
		if child == btree.NullNode {
			continue
		}
		n.CIM = append(n.CIM, btree.CIMEntry{Child: child, Index: index})
	}
	return n
}

// encodeFreeRecord overwrites a record's bytes with the free marker:
// parent=headerRecno, followed by the doubly linked free list's next and
// prev record numbers. The remaining bytes are left zeroed.
func encodeFreeRecord(size int, next, prev uint32) []byte {
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], headerRecno)
	binary.LittleEndian.PutUint32(buf[4:8], next)
	binary.LittleEndian.PutUint32(buf[8:12], prev)
	return buf
}

func isFreeRecord(buf []byte) bool {
	return binary.LittleEndian.Uint32(buf[0:4]) == headerRecno
}

func decodeFreeRecord(buf []byte) (next, prev uint32) {
	return binary.LittleEndian.Uint32(buf[4:8]), binary.LittleEndian.Uint32(buf[8:12])
}
