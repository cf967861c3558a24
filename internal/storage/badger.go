package storage

import (
	"github.com/aleksaelezovic/tritensor/pkg/tensor"
	"github.com/cockroachdb/errors"
	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// Options configures a BadgerStorage
type Options struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM; nothing survives Close.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives badger's own log output. Nil silences it.
	Logger *zap.SugaredLogger
}

// BadgerStorage implements tensor.Storage using BadgerDB
type BadgerStorage struct {
	db *badger.DB
}

// NewBadgerStorage creates a new BadgerDB-backed storage at path
func NewBadgerStorage(path string) (*BadgerStorage, error) {
	return Open(Options{Path: path})
}

// NewMemoryStorage creates a BadgerDB storage that lives only in memory
func NewMemoryStorage() (*BadgerStorage, error) {
	return Open(Options{InMemory: true})
}

// Open creates a BadgerDB-backed storage from opts
func Open(o Options) (*BadgerStorage, error) {
	var opts badger.Options
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(o.Path)
	}
	opts.SyncWrites = o.SyncWrites
	if o.Logger != nil {
		opts.Logger = &badgerLogger{o.Logger}
	} else {
		opts.Logger = nil
	}

	// Writers are serialized by the store, so conflict detection is wasted work
	opts.DetectConflicts = false
	opts.NumCompactors = 4
	opts.ValueThreshold = 1 << 10

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open badger db")
	}

	return &BadgerStorage{db: db}, nil
}

// Begin starts a new transaction
func (s *BadgerStorage) Begin(writable bool) (tensor.Transaction, error) {
	return &BadgerTransaction{
		txn:      s.db.NewTransaction(writable),
		writable: writable,
	}, nil
}

// Close closes the storage
func (s *BadgerStorage) Close() error {
	return s.db.Close()
}

// Sync flushes writes to disk
func (s *BadgerStorage) Sync() error {
	if s.db.Opts().InMemory {
		return nil
	}
	return s.db.Sync()
}

// BadgerTransaction implements tensor.Transaction using BadgerDB
type BadgerTransaction struct {
	txn      *badger.Txn
	writable bool
}

// Get retrieves a value by key
func (t *BadgerTransaction) Get(table tensor.Table, key []byte) ([]byte, error) {
	item, err := t.txn.Get(tensor.PrefixKey(table, key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, tensor.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get from %s", table)
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, errors.Wrapf(err, "read value from %s", table)
	}
	return value, nil
}

// Has reports whether key exists
func (t *BadgerTransaction) Has(table tensor.Table, key []byte) (bool, error) {
	_, err := t.txn.Get(tensor.PrefixKey(table, key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "lookup in %s", table)
	}
	return true, nil
}

// Set stores a key-value pair
func (t *BadgerTransaction) Set(table tensor.Table, key, value []byte) error {
	if !t.writable {
		return tensor.ErrTransactionRO
	}
	return t.txn.Set(tensor.PrefixKey(table, key), value)
}

// Delete removes a key
func (t *BadgerTransaction) Delete(table tensor.Table, key []byte) error {
	if !t.writable {
		return tensor.ErrTransactionRO
	}
	return t.txn.Delete(tensor.PrefixKey(table, key))
}

// Scan iterates over every key of table that starts with prefix
func (t *BadgerTransaction) Scan(table tensor.Table, prefix []byte) (tensor.Iterator, error) {
	scanPrefix := tensor.PrefixKey(table, prefix)

	opts := badger.DefaultIteratorOptions
	opts.Prefix = scanPrefix
	// index entries carry no payload
	opts.PrefetchValues = false

	return &BadgerIterator{
		it:         t.txn.NewIterator(opts),
		scanPrefix: scanPrefix,
	}, nil
}

// Commit commits the transaction
func (t *BadgerTransaction) Commit() error {
	if err := t.txn.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// Rollback rolls back the transaction
func (t *BadgerTransaction) Rollback() error {
	t.txn.Discard()
	return nil
}

// BadgerIterator implements tensor.Iterator using BadgerDB
type BadgerIterator struct {
	it         *badger.Iterator
	scanPrefix []byte
	started    bool
	hasValue   bool
}

// Next advances to the next item
func (i *BadgerIterator) Next() bool {
	if !i.started {
		i.it.Seek(i.scanPrefix)
		i.started = true
	} else {
		i.it.Next()
	}
	i.hasValue = i.it.ValidForPrefix(i.scanPrefix)
	return i.hasValue
}

// Key returns the current key (without the table prefix)
func (i *BadgerIterator) Key() []byte {
	if !i.hasValue {
		return nil
	}
	return i.it.Item().Key()[1:]
}

// Value returns the current value
func (i *BadgerIterator) Value() ([]byte, error) {
	if !i.hasValue {
		return nil, tensor.ErrNotFound
	}
	return i.it.Item().ValueCopy(nil)
}

// Close closes the iterator
func (i *BadgerIterator) Close() error {
	i.it.Close()
	return nil
}

// badgerLogger routes badger's internal logging into zap
type badgerLogger struct {
	log *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}
