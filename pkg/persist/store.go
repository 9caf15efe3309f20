package persist

import (
	"fmt"

	"github.com/libbtreego/libbtree/pkg/btree"
	"github.com/libbtreego/libbtree/pkg/pagecache"
	"github.com/libbtreego/libbtree/pkg/recordstore"
)

// Store is the persistent btree.Store[T]: nodes live as fixed-size records
// in a recordstore.Store, fronted by a bounded pagecache.Cache so only a
// handful of decoded nodes are resident at once, exactly as spec's
// page-cache/free-list section describes for the persistent variant.
type Store[T any] struct {
	records  recordstore.Store
	cache    *pagecache.Cache[btree.Node[T]]
	order    int
	elemSize int
	codec    FixedCodec[T]
	readOnly bool

	options      uint32
	root         btree.NodeID
	freeListHead uint32
	maxRecno     uint32
}

// Create initializes a brand-new persistent tree over records (which must
// be empty) and writes its header record. cacheCapacity is the page cache's
// buffer count (spec requires >= 3).
func Create[T any](records recordstore.Store, order, elemSize int, codec FixedCodec[T], options uint32, cacheCapacity int) (*Store[T], error) {
	if order < 3 {
		return nil, fmt.Errorf("%w: order must be >= 3", btree.ErrInvalidArgument)
	}
	want := NodeRecordSize(order, elemSize)
	if records.RecordSize() != want {
		return nil, fmt.Errorf("%w: record store configured for record size %d, tree needs %d", btree.ErrInvalidArgument, records.RecordSize(), want)
	}
	s := &Store[T]{
		records:  records,
		order:    order,
		elemSize: elemSize,
		codec:    codec,
		options:  options,
		root:     btree.NullNode,
	}
	var err error
	s.cache, err = pagecache.New(cacheCapacity, s.load, s.flush)
	if err != nil {
		return nil, err
	}
	h := header{
		Magic:        headerMagic,
		Version:      headerFormatVersion,
		Order:        uint32(order),
		ElementSize:  uint32(elemSize),
		Options:      options,
		Root:         0,
		FreeListHead: 0,
		MaxRecno:     0,
	}
	recno, err := records.Append(padToRecordSize(h.encode(), want))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", btree.ErrIoError, err)
	}
	if recno != headerRecno {
		return nil, fmt.Errorf("%w: header record landed at %d, expected %d", btree.ErrInvalidArgument, recno, headerRecno)
	}
	return s, nil
}

// Open re-attaches to an existing persistent tree's header record.
func Open[T any](records recordstore.Store, codec FixedCodec[T], cacheCapacity int) (*Store[T], error) {
	raw, err := records.Get(headerRecno)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", btree.ErrIoError, err)
	}
	h := decodeHeader(raw)
	if h.Magic != headerMagic {
		return nil, fmt.Errorf("%w: bad header magic", btree.ErrInvalidArgument)
	}
	if h.Version != headerFormatVersion {
		return nil, fmt.Errorf("%w: unsupported header version %d", btree.ErrInvalidArgument, h.Version)
	}
	s := &Store[T]{
		records:      records,
		order:        int(h.Order),
		elemSize:     int(h.ElementSize),
		codec:        codec,
		options:      h.Options,
		root:         btree.NodeID(h.Root),
		freeListHead: h.FreeListHead,
		maxRecno:     h.MaxRecno,
	}
	var err2 error
	s.cache, err2 = pagecache.New(cacheCapacity, s.load, s.flush)
	if err2 != nil {
		return nil, err2
	}
	return s, nil
}

func padToRecordSize(b []byte, size int) []byte {
	if len(b) >= size {
		return b[:size]
	}
	out := make([]byte, size)
	copy(out, b)
	return out
}

func (s *Store[T]) load(recno uint32) (*btree.Node[T], error) {
	raw, err := s.records.Get(recno)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", btree.ErrIoError, err)
	}
	return decodeNode[T](raw, s.order, s.elemSize, s.codec), nil
}

func (s *Store[T]) flush(recno uint32, n *btree.Node[T]) error {
	if s.readOnly {
		return fmt.Errorf("%w: cannot flush with a read-only store", btree.ErrReadOnly)
	}
	buf := encodeNode(n, s.order, s.elemSize, s.codec)
	if err := s.records.Put(recno, buf); err != nil {
		return fmt.Errorf("%w: %v", btree.ErrIoError, err)
	}
	return nil
}

func (s *Store[T]) Order() int { return s.order }

func (s *Store[T]) Root() btree.NodeID { return s.root }

func (s *Store[T]) SetRoot(id btree.NodeID) { s.root = id }

func (s *Store[T]) Get(id btree.NodeID) (*btree.Node[T], error) {
	return s.cache.Get(uint32(id))
}

func (s *Store[T]) Release(id btree.NodeID) { s.cache.Release(uint32(id)) }

func (s *Store[T]) MarkDirty(id btree.NodeID) { s.cache.MarkDirty(uint32(id)) }

func (s *Store[T]) Alloc() (btree.NodeID, *btree.Node[T], error) {
	if s.readOnly {
		return btree.NullNode, nil, fmt.Errorf("%w: cannot allocate with a read-only store", btree.ErrReadOnly)
	}
	recno, err := s.popFreeList()
	if err != nil {
		return btree.NullNode, nil, err
	}
	n := &btree.Node[T]{
		ChildIndex: -1,
		Elements:   make([]T, s.order-1),
		Links:      make([]btree.Link, s.order),
	}
	for i := range n.Links {
		n.Links[i] = btree.Link{Offset: i}
	}
	if recno == 0 {
		zero := make([]byte, NodeRecordSize(s.order, s.elemSize))
		recno, err = s.records.Append(zero)
		if err != nil {
			return btree.NullNode, nil, fmt.Errorf("%w: %v", btree.ErrOutOfMemory, err)
		}
	}
	if recno > s.maxRecno {
		s.maxRecno = recno
	}
	if err := s.cache.Put(recno, n); err != nil {
		return btree.NullNode, nil, err
	}
	s.cache.MarkDirty(recno)
	return btree.NodeID(recno), n, nil
}

func (s *Store[T]) Free(id btree.NodeID) error {
	if s.readOnly {
		return fmt.Errorf("%w: cannot free with a read-only store", btree.ErrReadOnly)
	}
	recno := uint32(id)
	size := NodeRecordSize(s.order, s.elemSize)
	buf := encodeFreeRecord(size, s.freeListHead, 0)
	if s.freeListHead != 0 {
		oldHead, err := s.records.Get(s.freeListHead)
		if err == nil && isFreeRecord(oldHead) {
			next, _ := decodeFreeRecord(oldHead)
			fixed := encodeFreeRecord(size, next, recno)
			s.records.Put(s.freeListHead, fixed)
		}
	}
	if err := s.records.Put(recno, buf); err != nil {
		return fmt.Errorf("%w: %v", btree.ErrIoError, err)
	}
	s.freeListHead = recno
	s.cache.Forget(recno)
	return nil
}

// popFreeList removes and returns the free list's head record number, or 0
// if the list is empty (the caller should Append a fresh record instead).
func (s *Store[T]) popFreeList() (uint32, error) {
	if s.freeListHead == 0 {
		return 0, nil
	}
	recno := s.freeListHead
	raw, err := s.records.Get(recno)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", btree.ErrIoError, err)
	}
	if !isFreeRecord(raw) {
		return 0, fmt.Errorf("%w: free list head %d is not marked free", btree.ErrInvalidArgument, recno)
	}
	next, _ := decodeFreeRecord(raw)
	s.freeListHead = next
	return recno, nil
}

func (s *Store[T]) Persistent() bool { return true }

// Flush writes back every dirty cached node plus the header record (root,
// free-list head, max record number) and syncs the backing record store.
// This is the persistent store's narrow stand-in for a transaction commit.
func (s *Store[T]) Flush() error {
	if s.readOnly {
		return fmt.Errorf("%w: cannot flush a read-only store", btree.ErrReadOnly)
	}
	if err := s.cache.Flush(); err != nil {
		return err
	}
	h := header{
		Magic:        headerMagic,
		Version:      headerFormatVersion,
		Order:        uint32(s.order),
		ElementSize:  uint32(s.elemSize),
		Options:      s.options,
		Root:         uint32(s.root),
		FreeListHead: s.freeListHead,
		MaxRecno:     s.maxRecno,
	}
	if err := s.records.Put(headerRecno, padToRecordSize(h.encode(), s.records.RecordSize())); err != nil {
		return fmt.Errorf("%w: %v", btree.ErrIoError, err)
	}
	if err := s.records.Sync(); err != nil {
		return fmt.Errorf("%w: %v", btree.ErrIoError, err)
	}
	return nil
}

// Reload implements btree.Reloadable: it discards every cached buffer and
// re-reads the header record, resynchronizing root/free-list-head/max-recno
// with whatever the backing record store currently holds. Used after an
// ErrIoError, per spec's documented recovery path.
func (s *Store[T]) Reload() error {
	raw, err := s.records.Get(headerRecno)
	if err != nil {
		return fmt.Errorf("%w: %v", btree.ErrIoError, err)
	}
	h := decodeHeader(raw)
	if h.Magic != headerMagic {
		return fmt.Errorf("%w: bad header magic on reload", btree.ErrInvalidArgument)
	}
	s.root = btree.NodeID(h.Root)
	s.freeListHead = h.FreeListHead
	s.maxRecno = h.MaxRecno
	s.options = h.Options
	s.cache.Reset()
	return nil
}

// MaxRecno reports the highest record number ever allocated to a node,
// mirroring the header field of the same name.
func (s *Store[T]) MaxRecno() uint32 { return s.maxRecno }

// FreeListHead reports the current free list head record number, or 0 if
// the free list is empty.
func (s *Store[T]) FreeListHead() uint32 { return s.freeListHead }

// SetReadOnly marks the store read-only, matching the persistent variant's
// RDONLY open flag: Alloc/Free/Flush all fail after this.
func (s *Store[T]) SetReadOnly(ro bool) { s.readOnly = ro }
