package btree_test

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/libbtreego/libbtree/pkg/btree"
	"github.com/libbtreego/libbtree/pkg/memstore"
)

func cmpInt(elem, key int, _ any) int { return elem - key }

func newIntTree(t *testing.T, order int, opts btree.Options) *btree.Tree[int] {
	t.Helper()
	store := memstore.New[int](order, false)
	tree, err := btree.New[int](store, cmpInt, opts)
	require.NoError(t, err)
	return tree
}

func drain(t *testing.T, tree *btree.Tree[int]) []int {
	t.Helper()
	var out []int
	it, err := tree.Begin()
	require.NoError(t, err)
	for !it.AtEnd() {
		v, err := it.Element()
		require.NoError(t, err)
		out = append(out, v)
		require.NoError(t, it.Next())
	}
	return out
}

func TestInsertKeepsSortedOrder(t *testing.T) {
	for _, order := range []int{3, 4, 5, 8, 16} {
		tree := newIntTree(t, order, 0)
		rng := rand.New(rand.NewSource(42))
		values := rng.Perm(500)
		for _, v := range values {
			require.NoError(t, tree.Insert(v))
		}

		size, err := tree.Size()
		require.NoError(t, err)
		require.Equal(t, 500, size)

		got := drain(t, tree)
		require.True(t, sort.IntsAreSorted(got), "order=%d", order)
		require.Len(t, got, 500)
	}
}

func TestInsertDuplicateRejectedWithoutMultiKey(t *testing.T) {
	tree := newIntTree(t, 4, 0)
	require.NoError(t, tree.Insert(5))
	err := tree.Insert(5)
	require.ErrorIs(t, err, btree.ErrAlreadyExists)
}

func TestInsertDuplicateAllowedWithMultiKey(t *testing.T) {
	tree := newIntTree(t, 4, btree.MultiKey)
	for i := 0; i < 3; i++ {
		require.NoError(t, tree.Insert(7))
	}
	size, err := tree.Size()
	require.NoError(t, err)
	require.Equal(t, 3, size)
}

func TestGetAndContains(t *testing.T) {
	tree := newIntTree(t, 5, 0)
	for _, v := range []int{10, 20, 30, 40, 50} {
		require.NoError(t, tree.Insert(v))
	}
	ok, err := tree.Contains(30)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = tree.Contains(35)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = tree.Get(35)
	require.ErrorIs(t, err, btree.ErrNotFound)
}

func TestRemoveShrinksSizeAndPreservesOrder(t *testing.T) {
	tree := newIntTree(t, 4, 0)
	rng := rand.New(rand.NewSource(7))
	values := rng.Perm(200)
	for _, v := range values {
		require.NoError(t, tree.Insert(v))
	}

	toRemove := values[:100]
	for _, v := range toRemove {
		require.NoError(t, tree.Remove(v))
	}

	size, err := tree.Size()
	require.NoError(t, err)
	require.Equal(t, 100, size)

	got := drain(t, tree)
	require.True(t, sort.IntsAreSorted(got))
	require.Len(t, got, 100)

	for _, v := range toRemove {
		ok, err := tree.Contains(v)
		require.NoError(t, err)
		require.False(t, ok, "value %d should have been removed", v)
	}
}

func TestRemoveNotFound(t *testing.T) {
	tree := newIntTree(t, 4, 0)
	require.NoError(t, tree.Insert(1))
	err := tree.Remove(99)
	require.ErrorIs(t, err, btree.ErrNotFound)
}

func TestIndexedAccessMatchesRank(t *testing.T) {
	tree := newIntTree(t, 6, 0)
	rng := rand.New(rand.NewSource(11))
	values := rng.Perm(300)
	for _, v := range values {
		require.NoError(t, tree.Insert(v))
	}
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)

	for i, want := range sorted {
		got, err := tree.GetAt(i)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestRemoveAtByRank(t *testing.T) {
	tree := newIntTree(t, 4, 0)
	for _, v := range []int{1, 2, 3, 4, 5} {
		require.NoError(t, tree.Insert(v))
	}
	require.NoError(t, tree.RemoveAt(2)) // removes the value 3

	got := drain(t, tree)
	require.Equal(t, []int{1, 2, 4, 5}, got)
}

func TestSwapExchangesByRank(t *testing.T) {
	tree := newIntTree(t, 4, btree.AllowIndex)
	for _, v := range []int{1, 2, 3, 4, 5} {
		require.NoError(t, tree.Insert(v))
	}
	require.NoError(t, tree.Swap(0, 4))
	a, err := tree.GetAt(0)
	require.NoError(t, err)
	b, err := tree.GetAt(4)
	require.NoError(t, err)
	require.Equal(t, 5, a)
	require.Equal(t, 1, b)
}

func TestClearAndDestroy(t *testing.T) {
	tree := newIntTree(t, 4, 0)
	for i := 0; i < 50; i++ {
		require.NoError(t, tree.Insert(i))
	}
	require.NoError(t, tree.Clear())
	size, err := tree.Size()
	require.NoError(t, err)
	require.Equal(t, 0, size)

	require.NoError(t, tree.Insert(1))
	require.NoError(t, tree.Destroy())
	require.True(t, tree.IsFinalized())
	require.ErrorIs(t, tree.Insert(2), btree.ErrFinalized)
}

func TestOrderTooSmallRejected(t *testing.T) {
	store := memstore.New[int](2, false)
	_, err := btree.New[int](store, cmpInt, 0)
	require.ErrorIs(t, err, btree.ErrInvalidArgument)
}

func TestComparatorlessTreeRequiresAllowIndex(t *testing.T) {
	store := memstore.New[int](4, false)
	_, err := btree.New[int](store, nil, 0)
	require.ErrorIs(t, err, btree.ErrInvalidArgument)

	store2 := memstore.New[int](4, false)
	tree, err := btree.New[int](store2, nil, btree.AllowIndex)
	require.NoError(t, err)
	require.NoError(t, tree.InsertAt(0, 5))
}
