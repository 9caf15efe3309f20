package memstore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/libbtreego/libbtree/pkg/btree"
	"github.com/libbtreego/libbtree/pkg/memstore"
)

func TestAllocFreeReuseWithKeepNodes(t *testing.T) {
	s := memstore.New[int](4, true)
	id1, _, err := s.Alloc()
	require.NoError(t, err)
	require.NoError(t, s.Free(id1))

	id2, _, err := s.Alloc()
	require.NoError(t, err)
	require.Equal(t, id1, id2, "freed slot should be reused when KeepNodes is set")
}

func TestAllocWithoutKeepNodesDoesNotReuse(t *testing.T) {
	s := memstore.New[int](4, false)
	id1, _, err := s.Alloc()
	require.NoError(t, err)
	require.NoError(t, s.Free(id1))

	id2, _, err := s.Alloc()
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
}

func TestGetUnknownNodeFails(t *testing.T) {
	s := memstore.New[int](4, false)
	_, err := s.Get(btree.NodeID(999))
	require.ErrorIs(t, err, btree.ErrInvalidArgument)
}

func TestRootRoundTrips(t *testing.T) {
	s := memstore.New[int](4, false)
	require.Equal(t, btree.NullNode, s.Root())
	id, _, err := s.Alloc()
	require.NoError(t, err)
	s.SetRoot(id)
	require.Equal(t, id, s.Root())
}

func TestPersistentIsFalse(t *testing.T) {
	s := memstore.New[int](4, false)
	require.False(t, s.Persistent())
}
