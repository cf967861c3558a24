// Package store coordinates access to a tensor.BoolTensor: readers share it,
// a single writer excludes everyone, and every operation that touches more
// than one tuple requires the caller to present the matching lock token.
package store

import (
	"sync"

	"github.com/aleksaelezovic/tritensor/internal/logger"
	"github.com/aleksaelezovic/tritensor/pkg/rdf"
	"github.com/aleksaelezovic/tritensor/pkg/tensor"
	"go.uber.org/zap"
)

// Option configures a TripleStore
type Option func(*TripleStore)

// WithLogger sets the logger
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *TripleStore) {
		s.log = log
	}
}

// TripleStore is the coordination layer over a tensor. It does not own the
// tensor; the tensor must outlive it.
type TripleStore struct {
	tensor *tensor.BoolTensor
	mu     sync.RWMutex
	log    *zap.SugaredLogger
}

// NewTripleStore wraps t
func NewTripleStore(t *tensor.BoolTensor, opts ...Option) *TripleStore {
	s := &TripleStore{
		tensor: t,
		log:    logger.ComponentLogger("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tensor returns the underlying tensor
func (s *TripleStore) Tensor() *tensor.BoolTensor {
	return s.tensor
}

// Size returns the number of stored triples. Without a lock the value may
// be taken between two chunks of a running bulk mutation.
func (s *TripleStore) Size() (uint64, error) {
	return s.tensor.Size()
}

// Contains reports whether triple is stored
func (s *TripleStore) Contains(triple *rdf.Triple) (bool, error) {
	return s.tensor.Contains(tensor.EntryOf(triple))
}
