// Package tensor stores a set of RDF triples as a sparse boolean rank-3
// tensor: a coordinate is present iff the triple is in the set. Terms are
// interned into 17-byte identifiers and every tuple is written to the three
// permutation indexes spo, pos and osp.
package tensor

import (
	"encoding/binary"
	"sync"

	"github.com/aleksaelezovic/tritensor/internal/encoding"
	"github.com/aleksaelezovic/tritensor/pkg/rdf"
	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"
)

// Rank is the number of coordinates of a fact tuple
const Rank = 3

// NonZeroEntry is one fact tuple (subject, predicate, object)
type NonZeroEntry [Rank]rdf.Term

// Triple returns the entry as an rdf.Triple
func (e NonZeroEntry) Triple() *rdf.Triple {
	return rdf.NewTriple(e[0], e[1], e[2])
}

// EntryOf converts a triple into a fact tuple
func EntryOf(t *rdf.Triple) NonZeroEntry {
	return NonZeroEntry{t.Subject, t.Predicate, t.Object}
}

// Entry is one row of a query result in projection order
type Entry []rdf.Term

// SliceKey selects a slice of the tensor. A nil slot is free.
type SliceKey [Rank]rdf.Term

// BulkProcessedFunc reports progress of a bulk insert or remove after every
// flushed chunk. processed and errors are cumulative; total is the number of
// tuples handed to the bulk writer so far, or the announced total if larger.
type BulkProcessedFunc func(processed, total, errors uint64)

var (
	// ErrInvalidEntry marks a tuple that cannot be encoded
	ErrInvalidEntry = errors.New("invalid entry")

	metaSizeKey    = []byte("size")
	metaVersionKey = []byte("version")
)

const formatVersion = 1

// DefaultTermCacheSize is the default cost budget of the decoded-term cache
const DefaultTermCacheSize = 64 << 20

// Option configures a BoolTensor
type Option func(*BoolTensor)

// WithLogger sets the logger
func WithLogger(log *zap.SugaredLogger) Option {
	return func(t *BoolTensor) {
		t.log = log
	}
}

// WithTermCacheSize bounds the decoded-term cache in bytes. Zero disables it.
func WithTermCacheSize(bytes int64) Option {
	return func(t *BoolTensor) {
		t.cacheSize = bytes
	}
}

// BoolTensor is a persistent sparse boolean tensor of rank 3 over RDF terms.
// Reads may run concurrently; writes are serialized internally, but callers
// are expected to provide their own reader/writer exclusion so that readers
// never observe a write in progress across several transactions.
type BoolTensor struct {
	storage   Storage
	encoder   *encoding.TermEncoder
	decoder   *encoding.TermDecoder
	cache     *ristretto.Cache[string, rdf.Term]
	cacheSize int64
	log       *zap.SugaredLogger

	writeMu sync.Mutex
}

// Open wraps storage, initializing an empty tensor if storage holds none
func Open(storage Storage, opts ...Option) (*BoolTensor, error) {
	t := &BoolTensor{
		storage:   storage,
		encoder:   encoding.NewTermEncoder(),
		decoder:   encoding.NewTermDecoder(),
		cacheSize: DefaultTermCacheSize,
		log:       zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.cacheSize > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config[string, rdf.Term]{
			NumCounters: max(t.cacheSize/64, 1024),
			MaxCost:     t.cacheSize,
			BufferItems: 64,
		})
		if err != nil {
			return nil, errors.Wrap(err, "creating term cache")
		}
		t.cache = cache
	}

	if err := t.init(); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func (t *BoolTensor) init() error {
	txn, err := t.storage.Begin(true)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer txn.Rollback()

	version, err := txn.Get(TableMeta, metaVersionKey)
	switch {
	case errors.Is(err, ErrNotFound):
		if err := txn.Set(TableMeta, metaVersionKey, encodeUint64(formatVersion)); err != nil {
			return err
		}
		if err := txn.Set(TableMeta, metaSizeKey, encodeUint64(0)); err != nil {
			return err
		}
		t.log.Debugw("initialized empty tensor", "version", formatVersion)
		return txn.Commit()
	case err != nil:
		return errors.Wrap(err, "reading format version")
	}

	if v := decodeUint64(version); v != formatVersion {
		return errors.WithHint(
			errors.Newf("unsupported storage format version %d", v),
			"the data directory was written by an incompatible version")
	}
	return nil
}

// Close releases the term cache. The storage stays open; it belongs to the
// caller.
func (t *BoolTensor) Close() {
	if t.cache != nil {
		t.cache.Close()
		t.cache = nil
	}
}

// Size returns the number of stored tuples
func (t *BoolTensor) Size() (uint64, error) {
	snap, err := t.Snapshot()
	if err != nil {
		return 0, err
	}
	defer snap.Close()
	return snap.Size()
}

// Contains reports whether the tuple is stored
func (t *BoolTensor) Contains(e NonZeroEntry) (bool, error) {
	snap, err := t.Snapshot()
	if err != nil {
		return false, err
	}
	defer snap.Close()
	return snap.Contains(e)
}

// Sync flushes storage to disk
func (t *BoolTensor) Sync() error {
	return t.storage.Sync()
}

// encodedEntry holds the identifiers of a tuple in s, p, o order along with
// the canonical strings for the dictionary
type encodedEntry struct {
	ids   [Rank]encoding.EncodedTerm
	terms [Rank]string
}

func (t *BoolTensor) encodeEntry(e NonZeroEntry) (encodedEntry, error) {
	var enc encodedEntry
	if err := e.Triple().Validate(); err != nil {
		return enc, errors.Mark(err, ErrInvalidEntry)
	}
	for i, term := range e {
		id, canonical, err := t.encoder.EncodeTerm(term)
		if err != nil {
			return enc, errors.Mark(err, ErrInvalidEntry)
		}
		enc.ids[i] = id
		enc.terms[i] = canonical
	}
	return enc, nil
}

func (t *BoolTensor) cachedTerm(id encoding.EncodedTerm) (rdf.Term, bool) {
	if t.cache == nil {
		return nil, false
	}
	return t.cache.Get(string(id[:]))
}

func (t *BoolTensor) cacheTerm(id encoding.EncodedTerm, term rdf.Term, canonical string) {
	if t.cache == nil {
		return
	}
	t.cache.Set(string(id[:]), term, int64(len(canonical)+encoding.EncodedTermSize))
}

// index describes one permutation index: order[i] is the tuple position
// stored at key slot i
type index struct {
	table Table
	order [Rank]int
}

var (
	indexSPO = index{TableSPO, [Rank]int{0, 1, 2}}
	indexPOS = index{TablePOS, [Rank]int{1, 2, 0}}
	indexOSP = index{TableOSP, [Rank]int{2, 0, 1}}

	allIndexes = []index{indexSPO, indexPOS, indexOSP}
)

func (idx index) key(ids [Rank]encoding.EncodedTerm) []byte {
	return encoding.EncodeKey(ids[idx.order[0]], ids[idx.order[1]], ids[idx.order[2]])
}

// selectIndex picks the index whose key order puts every bound slot first
func selectIndex(bound [Rank]bool) index {
	s, p, o := bound[0], bound[1], bound[2]
	switch {
	case s && !p && o:
		return indexOSP
	case s:
		return indexSPO
	case p:
		return indexPOS
	case o:
		return indexOSP
	default:
		return indexSPO
	}
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func decodeUint64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
