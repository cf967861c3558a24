package store

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aleksaelezovic/tritensor/internal/logger"
	"github.com/aleksaelezovic/tritensor/pkg/rdf"
	"github.com/aleksaelezovic/tritensor/pkg/tensor"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// parseBatchSize is the number of parsed tuples handed from the parser to
// the inserter at once
const parseBatchSize = 4096

// LoadFile inserts the triples of an N-Triples file (optionally gzipped,
// by ".gz" suffix) under one writer lock and returns how many were new.
// Malformed lines go to the WithErrorHandler callback and are skipped.
func (s *TripleStore) LoadFile(path string, opts ...BulkOption) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return 0, errors.Wrapf(err, "opening %s", path)
		}
		defer gz.Close()
		r = gz
	}

	wl := s.AcquireWriterLock()
	defer wl.Release()

	n, err := s.Load(r, wl, opts...)
	if err != nil {
		return n, errors.Wrapf(err, "loading %s", path)
	}
	return n, nil
}

// Load inserts the N-Triples read from r. Parsing runs in its own goroutine
// and feeds the inserter; the error handler is called from the parsing
// goroutine, the progress callback from the caller's.
func (s *TripleStore) Load(r io.Reader, wl *WriterLock, opts ...BulkOption) (uint64, error) {
	s.mustHoldWriter(wl)
	o := newBulkOptions(opts)
	start := time.Now()

	before, err := s.tensor.Size()
	if err != nil {
		return 0, err
	}

	batches := make(chan []tensor.NonZeroEntry, 4)
	g, ctx := errgroup.WithContext(context.Background())

	var parseErrors uint64
	g.Go(func() error {
		defer close(batches)
		reader := rdf.NewNTriplesReader(r)
		batch := make([]tensor.NonZeroEntry, 0, parseBatchSize)
		for {
			triple, err := reader.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			var perr *rdf.ParseError
			if errors.As(err, &perr) {
				parseErrors++
				if o.onError != nil {
					o.onError(perr)
				}
				continue
			}
			if err != nil {
				return err
			}

			batch = append(batch, tensor.EntryOf(triple))
			if len(batch) == parseBatchSize {
				select {
				case batches <- batch:
				case <-ctx.Done():
					return ctx.Err()
				}
				batch = make([]tensor.NonZeroEntry, 0, parseBatchSize)
			}
		}
		if len(batch) > 0 {
			select {
			case batches <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	w := s.tensor.NewBulkInserter(o.bulkSize, o.progress)
	g.Go(func() error {
		for batch := range batches {
			for _, e := range batch {
				if err := w.Add(e); err != nil {
					return err
				}
			}
		}
		return w.Flush()
	})

	if err := g.Wait(); err != nil {
		return 0, err
	}

	after, err := s.tensor.Size()
	if err != nil {
		return 0, err
	}
	if err := s.tensor.Sync(); err != nil {
		return 0, err
	}

	s.log.Infow("load finished",
		logger.FieldProcessed, w.Processed(),
		logger.FieldMutationCount, delta(before, after),
		logger.FieldSize, after,
		logger.FieldErrors, parseErrors+w.Errors(),
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return delta(before, after), nil
}
