package persist_test

import (
	"encoding/binary"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/libbtreego/libbtree/pkg/btree"
	"github.com/libbtreego/libbtree/pkg/persist"
	"github.com/libbtreego/libbtree/pkg/recordstore"
)

const order = 5
const elemSize = 8

var intCodec = persist.FixedCodec[int]{
	Size: elemSize,
	Encode: func(v int, buf []byte) {
		binary.LittleEndian.PutUint64(buf, uint64(int64(v)))
	},
	Decode: func(buf []byte) int {
		return int(int64(binary.LittleEndian.Uint64(buf)))
	},
}

func cmpInt(elem, key int, _ any) int { return elem - key }

func newPersistentTree(t *testing.T) (*btree.Tree[int], *persist.Store[int]) {
	t.Helper()
	records := recordstore.NewMemory(persist.NodeRecordSize(order, elemSize))
	store, err := persist.Create[int](records, order, elemSize, intCodec, 0, 4)
	require.NoError(t, err)
	tree, err := btree.New[int](store, cmpInt, 0)
	require.NoError(t, err)
	return tree, store
}

func TestPersistentInsertGetRemove(t *testing.T) {
	tree, _ := newPersistentTree(t)
	rng := rand.New(rand.NewSource(3))
	values := rng.Perm(200)
	for _, v := range values {
		require.NoError(t, tree.Insert(v))
	}

	size, err := tree.Size()
	require.NoError(t, err)
	require.Equal(t, 200, size)

	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	for i, want := range sorted {
		got, err := tree.GetAt(i)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	for _, v := range values[:50] {
		require.NoError(t, tree.Remove(v))
	}
	size, err = tree.Size()
	require.NoError(t, err)
	require.Equal(t, 150, size)
}

func TestFlushWritesHeaderAndSyncs(t *testing.T) {
	tree, store := newPersistentTree(t)
	for i := 0; i < 30; i++ {
		require.NoError(t, tree.Insert(i))
	}
	require.NoError(t, store.Flush())
	require.Greater(t, store.MaxRecno(), uint32(0))
}

func TestReopenAfterFlushSeesSameData(t *testing.T) {
	records := recordstore.NewMemory(persist.NodeRecordSize(order, elemSize))
	store, err := persist.Create[int](records, order, elemSize, intCodec, 0, 4)
	require.NoError(t, err)
	tree, err := btree.New[int](store, cmpInt, 0)
	require.NoError(t, err)

	for i := 0; i < 40; i++ {
		require.NoError(t, tree.Insert(i))
	}
	require.NoError(t, store.Flush())

	store2, err := persist.Open[int](records, intCodec, 4)
	require.NoError(t, err)
	tree2, err := btree.New[int](store2, cmpInt, 0)
	require.NoError(t, err)

	size, err := tree2.Size()
	require.NoError(t, err)
	require.Equal(t, 40, size)
	for i := 0; i < 40; i++ {
		ok, err := tree2.Contains(i)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestReloadAfterFlushPreservesSize(t *testing.T) {
	tree, store := newPersistentTree(t)
	for i := 0; i < 20; i++ {
		require.NoError(t, tree.Insert(i))
	}
	require.NoError(t, store.Flush())
	require.NoError(t, store.Reload())

	size, err := tree.Size()
	require.NoError(t, err)
	require.Equal(t, 20, size)
}

func TestDefragCompactsFreedRecords(t *testing.T) {
	tree, store := newPersistentTree(t)
	rng := rand.New(rand.NewSource(9))
	values := rng.Perm(100)
	for _, v := range values {
		require.NoError(t, tree.Insert(v))
	}
	require.NoError(t, store.Flush())
	before := store.MaxRecno()

	for _, v := range values[:60] {
		require.NoError(t, tree.Remove(v))
	}
	require.NoError(t, store.Flush())
	require.NoError(t, store.Defrag())

	after := store.MaxRecno()
	require.LessOrEqual(t, after, before)

	size, err := tree.Size()
	require.NoError(t, err)
	require.Equal(t, 40, size)

	sorted := append([]int(nil), values[60:]...)
	sort.Ints(sorted)
	for i, want := range sorted {
		got, err := tree.GetAt(i)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestReadOnlyStoreRejectsMutation(t *testing.T) {
	_, store := newPersistentTree(t)
	require.NoError(t, store.Flush())

	store.SetReadOnly(true)
	_, _, err := store.Alloc()
	require.ErrorIs(t, err, btree.ErrReadOnly)
	require.ErrorIs(t, store.Flush(), btree.ErrReadOnly)
}
