package filestore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/libbtreego/libbtree/pkg/recordstore/filestore"
)

func TestAppendGetRoundTripsThroughMmap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	s, err := filestore.Open(path, 8)
	require.NoError(t, err)
	defer s.Close()

	recno, err := s.Append([]byte("12345678"))
	require.NoError(t, err)

	got, err := s.Get(recno)
	require.NoError(t, err)
	require.Equal(t, []byte("12345678"), got)
}

func TestReopenPreservesRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	s, err := filestore.Open(path, 8)
	require.NoError(t, err)
	recno, err := s.Append([]byte("persist!"))
	require.NoError(t, err)
	require.NoError(t, s.Sync())
	require.NoError(t, s.Close())

	s2, err := filestore.Open(path, 8)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Get(recno)
	require.NoError(t, err)
	require.Equal(t, []byte("persist!"), got)
}

func TestAppendGrowsFileBeyondInitialCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	s, err := filestore.Open(path, 4)
	require.NoError(t, err)
	defer s.Close()

	var last uint32
	for i := 0; i < 64; i++ {
		recno, err := s.Append([]byte("xyzw"))
		require.NoError(t, err)
		last = recno
	}
	got, err := s.Get(last)
	require.NoError(t, err)
	require.Equal(t, []byte("xyzw"), got)
}

func TestDelThreadsFreeListForReuse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	s, err := filestore.Open(path, 8)
	require.NoError(t, err)
	defer s.Close()

	recno, err := s.Append([]byte("aaaaaaaa"))
	require.NoError(t, err)
	require.NoError(t, s.Del(recno))

	recno2, err := s.Append([]byte("bbbbbbbb"))
	require.NoError(t, err)
	require.Equal(t, recno, recno2)
}
