package storage

import (
	"testing"

	"github.com/aleksaelezovic/tritensor/pkg/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *BadgerStorage {
	t.Helper()
	s, err := NewMemoryStorage()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTransaction_SetGetDelete(t *testing.T) {
	s := newTestStorage(t)

	txn, err := s.Begin(true)
	require.NoError(t, err)
	require.NoError(t, txn.Set(tensor.TableID2Str, []byte("k"), []byte("v")))

	// own writes are visible before commit
	ok, err := txn.Has(tensor.TableID2Str, []byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, txn.Commit())

	txn, err = s.Begin(false)
	require.NoError(t, err)
	value, err := txn.Get(tensor.TableID2Str, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)

	// tables are namespaced
	_, err = txn.Get(tensor.TableSPO, []byte("k"))
	assert.ErrorIs(t, err, tensor.ErrNotFound)
	assert.ErrorIs(t, txn.Set(tensor.TableSPO, []byte("k"), nil), tensor.ErrTransactionRO)
	require.NoError(t, txn.Rollback())

	txn, err = s.Begin(true)
	require.NoError(t, err)
	require.NoError(t, txn.Delete(tensor.TableID2Str, []byte("k")))
	ok, err = txn.Has(tensor.TableID2Str, []byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, txn.Commit())
}

func TestTransaction_ScanPrefix(t *testing.T) {
	s := newTestStorage(t)

	txn, err := s.Begin(true)
	require.NoError(t, err)
	for _, k := range []string{"aa1", "aa2", "ab1", "b"} {
		require.NoError(t, txn.Set(tensor.TableSPO, []byte(k), nil))
	}
	require.NoError(t, txn.Set(tensor.TablePOS, []byte("aa3"), nil))
	require.NoError(t, txn.Commit())

	scan := func(prefix string) []string {
		txn, err := s.Begin(false)
		require.NoError(t, err)
		defer txn.Rollback()

		var p []byte
		if prefix != "" {
			p = []byte(prefix)
		}
		it, err := txn.Scan(tensor.TableSPO, p)
		require.NoError(t, err)
		defer it.Close()

		var keys []string
		for it.Next() {
			keys = append(keys, string(it.Key()))
		}
		return keys
	}

	assert.Equal(t, []string{"aa1", "aa2"}, scan("aa"))
	assert.Equal(t, []string{"aa1", "aa2", "ab1"}, scan("a"))
	assert.Equal(t, []string{"aa1", "aa2", "ab1", "b"}, scan(""))
	assert.Empty(t, scan("c"))
}

func TestBadgerStorage_Persistent(t *testing.T) {
	dir := t.TempDir()

	s, err := NewBadgerStorage(dir)
	require.NoError(t, err)
	txn, err := s.Begin(true)
	require.NoError(t, err)
	require.NoError(t, txn.Set(tensor.TableMeta, []byte("size"), []byte{1}))
	require.NoError(t, txn.Commit())
	require.NoError(t, s.Sync())
	require.NoError(t, s.Close())

	s, err = NewBadgerStorage(dir)
	require.NoError(t, err)
	defer s.Close()
	txn, err = s.Begin(false)
	require.NoError(t, err)
	defer txn.Rollback()
	value, err := txn.Get(tensor.TableMeta, []byte("size"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, value)
}
