package pagecache_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/libbtreego/libbtree/pkg/pagecache"
)

func newTestCache(t *testing.T, capacity int) (*pagecache.Cache[int], map[uint32]int, *[]uint32) {
	t.Helper()
	backing := make(map[uint32]int)
	var flushed []uint32
	c, err := pagecache.New[int](capacity, func(id uint32) (*int, error) {
		v, ok := backing[id]
		if !ok {
			return nil, fmt.Errorf("no such id %d", id)
		}
		return &v, nil
	}, func(id uint32, v *int) error {
		backing[id] = *v
		flushed = append(flushed, id)
		return nil
	})
	require.NoError(t, err)
	return c, backing, &flushed
}

func TestCapacityBelowThreeRejected(t *testing.T) {
	_, err := pagecache.New[int](2, nil, nil)
	require.Error(t, err)
}

func TestPutThenGetReturnsSameValue(t *testing.T) {
	c, _, _ := newTestCache(t, 3)
	v := 42
	require.NoError(t, c.Put(1, &v))
	got, err := c.Get(1)
	require.NoError(t, err)
	require.Equal(t, 42, *got)
}

func TestEvictionWritesBackDirtyEntries(t *testing.T) {
	c, backing, flushed := newTestCache(t, 3)
	for i := uint32(1); i <= 3; i++ {
		v := int(i) * 10
		require.NoError(t, c.Put(i, &v))
		c.MarkDirty(i)
		c.Release(i)
	}
	// Cache is now full with 3 unpinned dirty entries; a 4th Put should evict
	// the least-recently-used one (id 1) and flush it.
	v4 := 999
	require.NoError(t, c.Put(4, &v4))

	require.Equal(t, 10, backing[1])
	require.Contains(t, *flushed, uint32(1))
}

func TestResourceExhaustedWhenAllPinned(t *testing.T) {
	c, _, _ := newTestCache(t, 3)
	for i := uint32(1); i <= 3; i++ {
		v := int(i)
		require.NoError(t, c.Put(i, &v)) // leaves each pinned once
	}
	v := 4
	err := c.Put(4, &v)
	require.ErrorIs(t, err, pagecache.ErrResourceExhausted)
}

func TestReleaseUnpinsAndAllowsEviction(t *testing.T) {
	c, _, _ := newTestCache(t, 3)
	for i := uint32(1); i <= 3; i++ {
		v := int(i)
		require.NoError(t, c.Put(i, &v))
		c.Release(i)
	}
	v := 4
	require.NoError(t, c.Put(4, &v))
}

func TestResetDropsEntriesWithoutFlushing(t *testing.T) {
	c, _, flushed := newTestCache(t, 3)
	v := 1
	require.NoError(t, c.Put(1, &v))
	c.MarkDirty(1)
	c.Reset()
	require.Empty(t, *flushed)
}
