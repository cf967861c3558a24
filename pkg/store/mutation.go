package store

import (
	"time"

	"github.com/aleksaelezovic/tritensor/internal/logger"
	"github.com/aleksaelezovic/tritensor/pkg/rdf"
	"github.com/aleksaelezovic/tritensor/pkg/tensor"
	"github.com/cockroachdb/errors"
)

// DefaultBulkSize is the number of tuples pushed to the tensor between two
// progress reports
const DefaultBulkSize uint32 = 1_000_000

type bulkOptions struct {
	bulkSize uint32
	progress tensor.BulkProcessedFunc
	onError  func(*rdf.ParseError)
}

// BulkOption configures Insert, Remove and LoadFile
type BulkOption func(*bulkOptions)

// WithBulkSize sets the chunk size. Zero keeps the default.
func WithBulkSize(n uint32) BulkOption {
	return func(o *bulkOptions) {
		if n > 0 {
			o.bulkSize = n
		}
	}
}

// WithProgress registers a callback invoked after every chunk
func WithProgress(fn tensor.BulkProcessedFunc) BulkOption {
	return func(o *bulkOptions) {
		o.progress = fn
	}
}

// WithErrorHandler registers a callback for malformed input rows. Only
// LoadFile produces such rows.
func WithErrorHandler(fn func(*rdf.ParseError)) BulkOption {
	return func(o *bulkOptions) {
		o.onError = fn
	}
}

func newBulkOptions(opts []BulkOption) bulkOptions {
	o := bulkOptions{bulkSize: DefaultBulkSize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Insert adds entries and returns how many of them were new. Entries
// already present, and duplicates within entries, are skipped silently.
// Entries that cannot be stored, such as ones with a literal predicate, are
// reported through the progress callback's error count. The call runs to
// completion once started.
func (s *TripleStore) Insert(entries []tensor.NonZeroEntry, wl *WriterLock, opts ...BulkOption) (uint64, error) {
	s.mustHoldWriter(wl)
	if len(entries) == 0 {
		return 0, nil
	}
	o := newBulkOptions(opts)
	return s.mutate("insert", entries, s.tensor.NewBulkInserter(o.bulkSize, o.progress))
}

// Remove deletes entries and returns how many of them were present
func (s *TripleStore) Remove(entries []tensor.NonZeroEntry, wl *WriterLock, opts ...BulkOption) (uint64, error) {
	s.mustHoldWriter(wl)
	if len(entries) == 0 {
		return 0, nil
	}
	o := newBulkOptions(opts)
	return s.mutate("remove", entries, s.tensor.NewBulkRemover(o.bulkSize, o.progress))
}

func (s *TripleStore) mutate(op string, entries []tensor.NonZeroEntry, w *tensor.BulkWriter) (uint64, error) {
	start := time.Now()
	before, err := s.tensor.Size()
	if err != nil {
		return 0, err
	}

	w.Expect(uint64(len(entries)))
	for _, e := range entries {
		if err := w.Add(e); err != nil {
			return 0, errors.Wrapf(err, "bulk %s", op)
		}
	}
	if err := w.Flush(); err != nil {
		return 0, errors.Wrapf(err, "bulk %s", op)
	}

	after, err := s.tensor.Size()
	if err != nil {
		return 0, err
	}
	mutations := delta(before, after)

	s.log.Debugw("bulk mutation finished",
		logger.FieldOperation, op,
		logger.FieldTripleCount, len(entries),
		logger.FieldSizeBefore, before,
		logger.FieldSizeAfter, after,
		logger.FieldErrors, w.Errors(),
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return mutations, nil
}

// delta is the absolute size change of one bulk operation
func delta(before, after uint64) uint64 {
	if after >= before {
		return after - before
	}
	return before - after
}
