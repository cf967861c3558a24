package tensor

import (
	"github.com/aleksaelezovic/tritensor/internal/encoding"
	"github.com/aleksaelezovic/tritensor/pkg/rdf"
	"github.com/cockroachdb/errors"
)

// CheckpointInterval is the number of index keys visited between two
// checkpoint calls
const CheckpointInterval = 1024

// CheckpointFunc is polled during long scans. A non-nil error aborts the
// scan and is returned unchanged.
type CheckpointFunc func() error

// Snapshot is a consistent read-only view of the tensor. It must be closed.
// A Snapshot is not safe for concurrent use.
type Snapshot struct {
	tensor     *BoolTensor
	txn        Transaction
	checkpoint CheckpointFunc
	visited    uint64
}

// Snapshot opens a read-only view of the current state
func (t *BoolTensor) Snapshot() (*Snapshot, error) {
	txn, err := t.storage.Begin(false)
	if err != nil {
		return nil, errors.Wrap(err, "begin read transaction")
	}
	return &Snapshot{tensor: t, txn: txn}, nil
}

// SetCheckpoint installs fn to be polled every CheckpointInterval keys
// visited by Scan and Count.
func (s *Snapshot) SetCheckpoint(fn CheckpointFunc) {
	s.checkpoint = fn
}

// visit counts one key and runs the checkpoint when due
func (s *Snapshot) visit() error {
	s.visited++
	if s.checkpoint != nil && s.visited%CheckpointInterval == 0 {
		return s.checkpoint()
	}
	return nil
}

// Close releases the view
func (s *Snapshot) Close() error {
	return s.txn.Rollback()
}

// Size returns the number of stored tuples
func (s *Snapshot) Size() (uint64, error) {
	value, err := s.txn.Get(TableMeta, metaSizeKey)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "reading size")
	}
	return decodeUint64(value), nil
}

// Contains reports whether the tuple is stored. Tuples that could never be
// stored, such as ones with a literal predicate, are simply absent.
func (s *Snapshot) Contains(e NonZeroEntry) (bool, error) {
	enc, err := s.tensor.encodeEntry(e)
	if errors.Is(err, rdf.ErrInvalidTriple) {
		for _, term := range e {
			if term == nil {
				return false, err
			}
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.txn.Has(TableSPO, indexSPO.key(enc.ids))
}

// Count returns the number of stored tuples matching key
func (s *Snapshot) Count(key SliceKey) (uint64, error) {
	var bound int
	for _, term := range key {
		if term != nil {
			bound++
		}
	}
	switch bound {
	case 0:
		return s.Size()
	case Rank:
		ok, err := s.Contains(NonZeroEntry(key))
		if ok {
			return 1, err
		}
		return 0, err
	}

	idx, prefix, err := s.prefix(key)
	if err != nil {
		return 0, err
	}
	it, err := s.txn.Scan(idx.table, prefix)
	if err != nil {
		return 0, errors.Wrapf(err, "scanning %s", idx.table)
	}
	defer it.Close()

	var n uint64
	for it.Next() {
		n++
		if err := s.visit(); err != nil {
			return 0, err
		}
	}
	return n, nil
}

// prefix encodes the bound slots of key in the order of the chosen index
func (s *Snapshot) prefix(key SliceKey) (index, []byte, error) {
	var bound [Rank]bool
	for i, term := range key {
		bound[i] = term != nil
	}
	idx := selectIndex(bound)

	var ids []encoding.EncodedTerm
	for _, pos := range idx.order {
		if key[pos] == nil {
			break
		}
		id, _, err := s.tensor.encoder.EncodeTerm(key[pos])
		if err != nil {
			return idx, nil, err
		}
		ids = append(ids, id)
	}
	return idx, encoding.EncodeKey(ids...), nil
}

// Scan iterates over the stored tuples matching key
func (s *Snapshot) Scan(key SliceKey) *SliceIterator {
	idx, prefix, err := s.prefix(key)
	if err != nil {
		return &SliceIterator{err: err, done: true}
	}
	it, err := s.txn.Scan(idx.table, prefix)
	if err != nil {
		return &SliceIterator{err: errors.Wrapf(err, "scanning %s", idx.table), done: true}
	}
	return &SliceIterator{snapshot: s, index: idx, it: it}
}

// Term looks up the term behind an identifier
func (s *Snapshot) Term(id encoding.EncodedTerm) (rdf.Term, error) {
	if term, ok := s.tensor.cachedTerm(id); ok {
		return term, nil
	}
	value, err := s.txn.Get(TableID2Str, id[:])
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errors.AssertionFailedf("dictionary has no entry for %x", id[:])
		}
		return nil, errors.Wrap(err, "reading dictionary")
	}
	canonical := string(value)
	term, err := s.tensor.decoder.DecodeTerm(id, canonical)
	if err != nil {
		return nil, err
	}
	s.tensor.cacheTerm(id, term, canonical)
	return term, nil
}

// TermCount returns the number of dictionary entries
func (s *Snapshot) TermCount() (uint64, error) {
	it, err := s.txn.Scan(TableID2Str, nil)
	if err != nil {
		return 0, errors.Wrap(err, "scanning dictionary")
	}
	defer it.Close()

	var n uint64
	for it.Next() {
		n++
	}
	return n, nil
}

// SliceIterator yields the tuples of a slice in index order
type SliceIterator struct {
	snapshot *Snapshot
	index    index
	it       Iterator
	current  NonZeroEntry
	err      error
	done     bool
}

// Next advances to the next tuple
func (i *SliceIterator) Next() bool {
	if i.done {
		return false
	}
	if !i.it.Next() {
		i.finish()
		return false
	}
	if err := i.snapshot.visit(); err != nil {
		i.fail(err)
		return false
	}

	ids, err := encoding.DecodeKey(i.it.Key())
	if err != nil || len(ids) != Rank {
		i.fail(errors.AssertionFailedf("corrupt key in %s", i.index.table))
		return false
	}
	for slot, pos := range i.index.order {
		term, err := i.snapshot.Term(ids[slot])
		if err != nil {
			i.fail(err)
			return false
		}
		i.current[pos] = term
	}
	return true
}

// Entry returns the current tuple
func (i *SliceIterator) Entry() NonZeroEntry {
	return i.current
}

// Err returns the error that stopped the iteration, if any
func (i *SliceIterator) Err() error {
	return i.err
}

// Close releases the iterator. It is safe to call more than once.
func (i *SliceIterator) Close() error {
	i.finish()
	return nil
}

func (i *SliceIterator) fail(err error) {
	i.err = err
	i.finish()
}

func (i *SliceIterator) finish() {
	if i.it != nil {
		i.it.Close()
		i.it = nil
	}
	i.done = true
}
