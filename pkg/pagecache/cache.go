// Package pagecache implements the bounded, pin-counted buffer pool spec
// §4.7 requires of the persistent backing store: a fixed number of node
// buffers, reference-counted pins that make a buffer un-evictable while any
// caller holds it, and write-back of dirty buffers on eviction. It is
// adapted from the LRU + pin pattern in pkg/pager/pager.go (container/list
// front-to-back ordering, per-entry dirty flag), generalized from raw pages
// to a typed value per entry so pkg/persist can cache decoded nodes
// directly instead of re-parsing bytes on every access.
package pagecache

import (
	"container/list"
	"errors"
	"fmt"
)

// ErrResourceExhausted is returned by Get/Put when the cache is full and
// every resident buffer is currently pinned, so nothing can be evicted.
var ErrResourceExhausted = errors.New("pagecache: resource exhausted")

// Loader fetches the value for id from the underlying store on a cache
// miss.
type Loader[T any] func(id uint32) (*T, error)

// Flusher writes a dirty value back to the underlying store, called just
// before a dirty buffer is evicted or on an explicit Flush.
type Flusher[T any] func(id uint32, v *T) error

type entry[T any] struct {
	value *T
	pins  int
	dirty bool
	elem  *list.Element
}

// Cache is a bounded pool of pinned buffers over ids of type uint32,
// holding at most capacity entries at a time. capacity must be >= 3, per
// spec §4.7 (enough room for a node, its parent and one sibling during a
// rebalance).
type Cache[T any] struct {
	capacity int
	entries  map[uint32]*entry[T]
	lru      *list.List // front = most recently used; stores uint32 ids
	load     Loader[T]
	flush    Flusher[T]
}

// New creates a cache of the given capacity, using load on misses and
// flush to write back dirty entries before eviction.
func New[T any](capacity int, load Loader[T], flush Flusher[T]) (*Cache[T], error) {
	if capacity < 3 {
		return nil, fmt.Errorf("pagecache: capacity must be >= 3, got %d", capacity)
	}
	return &Cache[T]{
		capacity: capacity,
		entries:  make(map[uint32]*entry[T]),
		lru:      list.New(),
		load:     load,
		flush:    flush,
	}, nil
}

// Get returns the pinned value for id, loading it via Loader on a miss and
// evicting an unpinned buffer first if the cache is at capacity.
func (c *Cache[T]) Get(id uint32) (*T, error) {
	if e, ok := c.entries[id]; ok {
		e.pins++
		c.lru.MoveToFront(e.elem)
		return e.value, nil
	}
	if err := c.makeRoom(); err != nil {
		return nil, err
	}
	v, err := c.load(id)
	if err != nil {
		return nil, err
	}
	e := &entry[T]{value: v, pins: 1}
	e.elem = c.lru.PushFront(id)
	c.entries[id] = e
	return v, nil
}

// Put installs a freshly allocated or newly decoded value into the cache,
// pinned, without going through Loader. Used right after the backing store
// hands back a new record number.
func (c *Cache[T]) Put(id uint32, v *T) error {
	if e, ok := c.entries[id]; ok {
		e.value = v
		e.pins++
		c.lru.MoveToFront(e.elem)
		return nil
	}
	if err := c.makeRoom(); err != nil {
		return err
	}
	e := &entry[T]{value: v, pins: 1}
	e.elem = c.lru.PushFront(id)
	c.entries[id] = e
	return nil
}

// Release unpins id. It is not an error to release an id that isn't
// resident (a no-op), matching the tolerant semantics of the teacher's
// page unref.
func (c *Cache[T]) Release(id uint32) {
	e, ok := c.entries[id]
	if !ok || e.pins == 0 {
		return
	}
	e.pins--
}

// MarkDirty flags id's buffer to be written back before it is evicted or
// flushed.
func (c *Cache[T]) MarkDirty(id uint32) {
	if e, ok := c.entries[id]; ok {
		e.dirty = true
	}
}

// Forget drops id from the cache without writing it back, for ids the
// caller has freed at the store level.
func (c *Cache[T]) Forget(id uint32) {
	e, ok := c.entries[id]
	if !ok {
		return
	}
	c.lru.Remove(e.elem)
	delete(c.entries, id)
}

// Flush writes back every dirty, currently-resident entry.
func (c *Cache[T]) Flush() error {
	for id, e := range c.entries {
		if e.dirty {
			if err := c.flush(id, e.value); err != nil {
				return err
			}
			e.dirty = false
		}
	}
	return nil
}

// Reset drops every cached entry without flushing, for use after an I/O
// fault that has made the in-memory copies suspect (btree.Reloadable).
func (c *Cache[T]) Reset() {
	c.entries = make(map[uint32]*entry[T])
	c.lru.Init()
}

// makeRoom evicts the least-recently-used unpinned entry, if the cache is
// at capacity. It scans back-to-front since the LRU list keeps
// most-recently-used at the front.
func (c *Cache[T]) makeRoom() error {
	if len(c.entries) < c.capacity {
		return nil
	}
	for el := c.lru.Back(); el != nil; el = el.Prev() {
		id := el.Value.(uint32)
		e := c.entries[id]
		if e.pins > 0 {
			continue
		}
		if e.dirty {
			if err := c.flush(id, e.value); err != nil {
				return err
			}
		}
		c.lru.Remove(el)
		delete(c.entries, id)
		return nil
	}
	return ErrResourceExhausted
}
