package btree_test

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/libbtreego/libbtree/pkg/btree"
	"github.com/libbtreego/libbtree/pkg/memstore"
)

// assertInvariants checks what Size, GetAt and iteration report against a
// sorted copy of the model, the way tur/pkg/pager/corruption_test.go drives
// a workload and checks structural invariants periodically during it
// rather than only at the end.
func assertInvariants(t *testing.T, tree *btree.Tree[int], model []int) {
	t.Helper()
	sorted := append([]int(nil), model...)
	sort.Ints(sorted)

	size, err := tree.Size()
	require.NoError(t, err)
	require.Equal(t, len(sorted), size)

	for i, want := range sorted {
		got, err := tree.GetAt(i)
		require.NoError(t, err)
		require.Equal(t, want, got, "rank %d mismatch", i)
	}

	got := drain(t, tree)
	require.Equal(t, sorted, got)
}

func TestRandomizedInsertRemoveWorkloadMaintainsInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(123))
	for _, order := range []int{3, 4, 7} {
		tree := newIntTree(t, order, btree.MultiKey)
		var model []int

		for step := 0; step < 2000; step++ {
			if len(model) == 0 || rng.Intn(3) != 0 {
				v := rng.Intn(500)
				require.NoError(t, tree.Insert(v))
				model = append(model, v)
				sort.Ints(model)
			} else {
				idx := rng.Intn(len(model))
				v := model[idx]
				require.NoError(t, tree.Remove(v))
				pos := sort.SearchInts(model, v)
				model = append(model[:pos], model[pos+1:]...)
			}
			if step%50 == 0 {
				assertInvariants(t, tree, model)
			}
		}
		assertInvariants(t, tree, model)
	}
}

func TestOverflowSlotEmptyAfterEveryOperation(t *testing.T) {
	// Every public mutation must leave the tree's overflow slot drained
	// (spec invariant 6). We cannot see the slot directly, but Insert and
	// Remove returning successfully and every subsequent Size/iteration
	// call succeeding is exactly what a leaked overflow slot would break,
	// since a stuck overflow corrupts the next mutation's bookkeeping.
	tree := newIntTree(t, 3, 0)
	for i := 0; i < 1000; i++ {
		require.NoError(t, tree.Insert(i))
	}
	for i := 0; i < 1000; i += 2 {
		require.NoError(t, tree.Remove(i))
	}
	size, err := tree.Size()
	require.NoError(t, err)
	require.Equal(t, 500, size)
}

func TestBoundedOrderNeverExceedsFill(t *testing.T) {
	// memstore.Len reports allocated node slots; a regression that parks
	// elements without ever splitting would eventually violate order-1
	// capacity and panic on a slice index before this test's Insert loop
	// ever returns, so simply completing the loop is part of the check.
	order := 3
	store := memstore.New[int](order, false)
	tree, err := btree.New[int](store, cmpInt, 0)
	require.NoError(t, err)
	for i := 0; i < 5000; i++ {
		require.NoError(t, tree.Insert(i))
	}
	require.Greater(t, store.Len(), 1, "5000 elements at order 3 must have split into multiple nodes")
}
