package recordstore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/libbtreego/libbtree/pkg/recordstore"
)

func TestAppendGetRoundTrips(t *testing.T) {
	m := recordstore.NewMemory(8)
	recno, err := m.Append([]byte("abcdefgh"))
	require.NoError(t, err)
	require.Equal(t, uint32(1), recno)

	got, err := m.Get(recno)
	require.NoError(t, err)
	require.Equal(t, []byte("abcdefgh"), got)
}

func TestPutOverwritesExistingRecord(t *testing.T) {
	m := recordstore.NewMemory(4)
	recno, err := m.Append([]byte("aaaa"))
	require.NoError(t, err)
	require.NoError(t, m.Put(recno, []byte("bbbb")))

	got, err := m.Get(recno)
	require.NoError(t, err)
	require.Equal(t, []byte("bbbb"), got)
}

func TestPutOnMissingRecordFails(t *testing.T) {
	m := recordstore.NewMemory(4)
	err := m.Put(999, []byte("aaaa"))
	require.ErrorIs(t, err, recordstore.ErrNoSuchRecord)
}

func TestDelFreesRecordForReuse(t *testing.T) {
	m := recordstore.NewMemory(4)
	recno, err := m.Append([]byte("aaaa"))
	require.NoError(t, err)
	require.NoError(t, m.Del(recno))

	_, err = m.Get(recno)
	require.ErrorIs(t, err, recordstore.ErrNoSuchRecord)

	recno2, err := m.Append([]byte("bbbb"))
	require.NoError(t, err)
	require.Equal(t, recno, recno2, "freed record number should be reused")
}

func TestAppendWrongSizeRejected(t *testing.T) {
	m := recordstore.NewMemory(8)
	_, err := m.Append([]byte("short"))
	require.Error(t, err)
}

func TestRecnosReportsLiveRecordsSorted(t *testing.T) {
	m := recordstore.NewMemory(2)
	_, _ = m.Append([]byte("aa"))
	_, _ = m.Append([]byte("bb"))
	_, _ = m.Append([]byte("cc"))
	require.Equal(t, []uint32{1, 2, 3}, m.Recnos())
}
