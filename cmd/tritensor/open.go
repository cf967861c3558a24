package main

import (
	"github.com/aleksaelezovic/tritensor/internal/config"
	"github.com/aleksaelezovic/tritensor/internal/logger"
	"github.com/aleksaelezovic/tritensor/internal/storage"
	"github.com/aleksaelezovic/tritensor/pkg/store"
	"github.com/aleksaelezovic/tritensor/pkg/tensor"
	"github.com/cockroachdb/errors"
)

// database bundles the open storage, tensor and store of one command run
type database struct {
	storage *storage.BadgerStorage
	tensor  *tensor.BoolTensor
	store   *store.TripleStore
}

func openDatabase(c config.StorageConfig) (*database, error) {
	st, err := storage.Open(storage.Options{
		Path:       c.Path,
		InMemory:   c.InMemory,
		SyncWrites: c.SyncWrites,
		Logger:     logger.ComponentLogger("badger"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open storage")
	}

	bt, err := tensor.Open(st,
		tensor.WithLogger(logger.ComponentLogger("tensor")),
		tensor.WithTermCacheSize(c.TermCacheMB<<20))
	if err != nil {
		_ = st.Close()
		return nil, errors.Wrap(err, "failed to open tensor")
	}

	return &database{
		storage: st,
		tensor:  bt,
		store:   store.NewTripleStore(bt, store.WithLogger(logger.ComponentLogger("store"))),
	}, nil
}

func (d *database) Close() error {
	d.tensor.Close()
	return d.storage.Close()
}
