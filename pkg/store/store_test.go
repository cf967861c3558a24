package store_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aleksaelezovic/tritensor/internal/storage"
	"github.com/aleksaelezovic/tritensor/pkg/rdf"
	"github.com/aleksaelezovic/tritensor/pkg/sparql"
	"github.com/aleksaelezovic/tritensor/pkg/store"
	"github.com/aleksaelezovic/tritensor/pkg/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func iri(s string) *rdf.NamedNode {
	return rdf.NewNamedNode("http://example.org/" + s)
}

func entry(s, p, o string) tensor.NonZeroEntry {
	return tensor.NonZeroEntry{iri(s), iri(p), iri(o)}
}

func newStore(t *testing.T) *store.TripleStore {
	t.Helper()
	st, err := storage.NewMemoryStorage()
	require.NoError(t, err)
	bt, err := tensor.Open(st)
	require.NoError(t, err)
	t.Cleanup(func() {
		bt.Close()
		_ = st.Close()
	})
	return store.NewTripleStore(bt)
}

func insert(t *testing.T, s *store.TripleStore, entries ...tensor.NonZeroEntry) uint64 {
	t.Helper()
	wl := s.AcquireWriterLock()
	defer wl.Release()
	n, err := s.Insert(entries, wl)
	require.NoError(t, err)
	return n
}

func remove(t *testing.T, s *store.TripleStore, entries ...tensor.NonZeroEntry) uint64 {
	t.Helper()
	wl := s.AcquireWriterLock()
	defer wl.Release()
	n, err := s.Remove(entries, wl)
	require.NoError(t, err)
	return n
}

func count(t *testing.T, s *store.TripleStore, query string) uint64 {
	t.Helper()
	q, err := sparql.Parse(query)
	require.NoError(t, err)
	n, err := s.Count(q, store.NoDeadline)
	require.NoError(t, err)
	return n
}

func size(t *testing.T, s *store.TripleStore) uint64 {
	t.Helper()
	n, err := s.Size()
	require.NoError(t, err)
	return n
}

func TestInsert_Idempotent(t *testing.T) {
	s := newStore(t)

	assert.Equal(t, uint64(2), insert(t, s, entry("a", "p", "b"), entry("a", "p", "c"), entry("a", "p", "b")))
	assert.Equal(t, uint64(0), insert(t, s, entry("a", "p", "b"), entry("a", "p", "c")))
	assert.Equal(t, uint64(2), size(t, s))

	ok, err := s.Contains(rdf.NewTriple(iri("a"), iri("p"), iri("c")))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInsertRemove_Inverse(t *testing.T) {
	s := newStore(t)
	insert(t, s, entry("x", "p", "y"))
	before := size(t, s)

	batch := []tensor.NonZeroEntry{entry("a", "p", "b"), entry("b", "q", "c"), entry("c", "r", "a")}
	assert.Equal(t, uint64(3), insert(t, s, batch...))
	assert.Equal(t, uint64(3), remove(t, s, batch...))

	assert.Equal(t, before, size(t, s))
	assert.Equal(t, uint64(1), count(t, s, "SELECT * WHERE { ?s ?p ?o }"))
}

func TestMutation_EmptyBatch(t *testing.T) {
	s := newStore(t)
	insert(t, s, entry("a", "p", "b"))

	called := false
	wl := s.AcquireWriterLock()
	defer wl.Release()

	n, err := s.Insert(nil, wl, store.WithProgress(func(_, _, _ uint64) { called = true }))
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.Remove([]tensor.NonZeroEntry{}, wl)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.False(t, called)
	assert.Equal(t, uint64(1), size(t, s))
}

// The scenario from the store contract: duplicates inside one batch are
// counted once, and a second removal changes nothing.
func TestMutation_CountsAgainstSelect(t *testing.T) {
	s := newStore(t)
	const all = "SELECT * WHERE { ?s ?p ?o }"

	assert.Equal(t, uint64(2), insert(t, s, entry("a", "p", "b"), entry("a", "p", "c"), entry("a", "p", "b")))
	assert.Equal(t, uint64(2), size(t, s))
	assert.Equal(t, uint64(2), count(t, s, all))

	assert.Equal(t, uint64(1), remove(t, s, entry("a", "p", "b")))
	assert.Equal(t, uint64(1), size(t, s))
	assert.Equal(t, uint64(1), count(t, s, all))

	assert.Equal(t, uint64(0), remove(t, s, entry("a", "p", "b")))
	assert.Equal(t, uint64(1), size(t, s))
	assert.Equal(t, uint64(1), count(t, s, all))
}

func TestMutation_ProgressAndRejectedEntries(t *testing.T) {
	s := newStore(t)

	type call struct{ processed, total, errors uint64 }
	var calls []call
	entries := []tensor.NonZeroEntry{
		entry("a", "p", "b"),
		{iri("a"), rdf.NewLiteral("not a predicate"), iri("b")},
		entry("a", "p", "c"),
	}

	wl := s.AcquireWriterLock()
	n, err := s.Insert(entries, wl,
		store.WithBulkSize(2),
		store.WithProgress(func(p, total, errs uint64) { calls = append(calls, call{p, total, errs}) }))
	wl.Release()

	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	assert.Equal(t, []call{{2, 3, 1}, {3, 3, 1}}, calls)
}

func TestLocks_WritersAreExclusive(t *testing.T) {
	s := newStore(t)

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			wl := s.AcquireWriterLock()
			defer wl.Release()

			cur := active.Add(1)
			if cur > maxActive.Load() {
				maxActive.Store(cur)
			}
			_, err := s.Insert([]tensor.NonZeroEntry{entry(fmt.Sprintf("s%d", i), "p", "o")}, wl)
			assert.NoError(t, err)
			time.Sleep(time.Millisecond)
			active.Add(-1)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
	assert.Equal(t, uint64(8), size(t, s))
}

func TestLocks_ReaderBlocksWriter(t *testing.T) {
	s := newStore(t)
	rl := s.AcquireReaderLock()
	rl2 := s.AcquireReaderLock()

	acquired := make(chan struct{})
	go func() {
		wl := s.AcquireWriterLock()
		close(acquired)
		wl.Release()
	}()

	rl.Release()
	select {
	case <-acquired:
		t.Fatal("writer acquired the lock while a reader held it")
	case <-time.After(50 * time.Millisecond):
	}

	rl2.Release()
	rl2.Release()
	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("writer never acquired the lock")
	}
}

func TestLocks_MisusePanics(t *testing.T) {
	s := newStore(t)
	other := newStore(t)
	entries := []tensor.NonZeroEntry{entry("a", "p", "b")}
	q, err := sparql.Parse("SELECT * WHERE { ?s ?p ?o }")
	require.NoError(t, err)

	assert.Panics(t, func() { _, _ = s.Insert(entries, nil) })

	wl := s.AcquireWriterLock()
	wl.Release()
	assert.Panics(t, func() { _, _ = s.Insert(entries, wl) })

	owl := other.AcquireWriterLock()
	defer owl.Release()
	assert.Panics(t, func() { _, _ = s.Remove(entries, owl) })

	assert.Panics(t, func() { _, _ = s.CountLocked(nil, q, store.NoDeadline) })
	rl := s.AcquireReaderLock()
	rl.Release()
	assert.Panics(t, func() { _, _ = s.EvalAskLocked(rl, q, store.NoDeadline) })
}

func TestLockedVariants_ShareOneAcquisition(t *testing.T) {
	s := newStore(t)
	insert(t, s, entry("a", "p", "b"), entry("b", "p", "c"))

	all, err := sparql.Parse("SELECT * WHERE { ?s ?p ?o }")
	require.NoError(t, err)
	chain, err := sparql.Parse("ASK { ?x <http://example.org/p> ?y . ?y <http://example.org/p> ?z }")
	require.NoError(t, err)

	rl := s.AcquireReaderLock()
	defer rl.Release()

	n, err := s.CountLocked(rl, all, store.NoDeadline)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	ok, err := s.EvalAskLocked(rl, chain, store.NoDeadline)
	require.NoError(t, err)
	assert.True(t, ok)

	sol, err := s.EvalSelectLocked(rl, all, store.NoDeadline)
	require.NoError(t, err)
	rows := 0
	for sol.Next() {
		rows++
	}
	require.NoError(t, sol.Err())
	require.NoError(t, sol.Close())
	assert.Equal(t, 2, rows)
}
