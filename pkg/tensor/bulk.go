package tensor

import (
	"github.com/aleksaelezovic/tritensor/internal/encoding"
	"github.com/cockroachdb/errors"
)

// txnEntryLimit bounds the tuples written per storage transaction. Each
// inserted tuple costs up to six writes (three index keys, three dictionary
// entries), which keeps a transaction well under badger's batch limits.
const txnEntryLimit = 5000

// BulkWriter buffers tuples and applies them to the tensor in chunks. It is
// created by NewBulkInserter or NewBulkRemover and is not safe for concurrent
// use.
type BulkWriter struct {
	tensor   *BoolTensor
	remove   bool
	bulkSize int
	buffer   []NonZeroEntry
	callback BulkProcessedFunc

	added     uint64
	expected  uint64
	processed uint64
	errors    uint64
}

// NewBulkInserter returns a writer that inserts tuples, skipping those
// already present. cb may be nil.
func (t *BoolTensor) NewBulkInserter(bulkSize uint32, cb BulkProcessedFunc) *BulkWriter {
	return t.newBulkWriter(false, bulkSize, cb)
}

// NewBulkRemover returns a writer that removes tuples, skipping those not
// present. cb may be nil.
func (t *BoolTensor) NewBulkRemover(bulkSize uint32, cb BulkProcessedFunc) *BulkWriter {
	return t.newBulkWriter(true, bulkSize, cb)
}

func (t *BoolTensor) newBulkWriter(remove bool, bulkSize uint32, cb BulkProcessedFunc) *BulkWriter {
	if bulkSize == 0 {
		bulkSize = 1
	}
	return &BulkWriter{
		tensor:   t,
		remove:   remove,
		bulkSize: int(bulkSize),
		buffer:   make([]NonZeroEntry, 0, min(int(bulkSize), txnEntryLimit)),
		callback: cb,
	}
}

// Expect announces the total number of tuples that will be added, for
// progress reporting.
func (w *BulkWriter) Expect(total uint64) {
	w.expected = total
}

// Add buffers e and flushes once bulkSize tuples are pending
func (w *BulkWriter) Add(e NonZeroEntry) error {
	w.buffer = append(w.buffer, e)
	w.added++
	if len(w.buffer) >= w.bulkSize {
		return w.Flush()
	}
	return nil
}

// Flush applies all pending tuples and reports progress. Flushing an empty
// buffer does nothing.
func (w *BulkWriter) Flush() error {
	if len(w.buffer) == 0 {
		return nil
	}
	rejected, err := w.tensor.apply(w.buffer, w.remove)
	if err != nil {
		return err
	}
	w.processed += uint64(len(w.buffer))
	w.errors += rejected
	w.buffer = w.buffer[:0]

	if w.callback != nil {
		w.callback(w.processed, max(w.added, w.expected), w.errors)
	}
	return nil
}

// Processed returns the number of tuples flushed so far
func (w *BulkWriter) Processed() uint64 {
	return w.processed
}

// Errors returns the number of tuples rejected so far
func (w *BulkWriter) Errors() uint64 {
	return w.errors
}

// apply writes entries in transactions of at most txnEntryLimit tuples and
// returns how many were rejected as invalid
func (t *BoolTensor) apply(entries []NonZeroEntry, remove bool) (uint64, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	var rejected uint64
	encoded := make([]encodedEntry, 0, min(len(entries), txnEntryLimit))
	for len(entries) > 0 {
		n := min(len(entries), txnEntryLimit)
		encoded = encoded[:0]
		for _, e := range entries[:n] {
			enc, err := t.encodeEntry(e)
			if err != nil {
				t.log.Debugw("skipping invalid entry", "error", err)
				rejected++
				continue
			}
			encoded = append(encoded, enc)
		}
		entries = entries[n:]

		if err := t.writeTxn(encoded, remove); err != nil {
			return rejected, err
		}
	}
	return rejected, nil
}

func (t *BoolTensor) writeTxn(entries []encodedEntry, remove bool) error {
	if len(entries) == 0 {
		return nil
	}
	txn, err := t.storage.Begin(true)
	if err != nil {
		return errors.Wrap(err, "begin write transaction")
	}
	defer txn.Rollback()

	value, err := txn.Get(TableMeta, metaSizeKey)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Wrap(err, "reading size")
	}
	size := decodeUint64(value)

	for _, e := range entries {
		present, err := txn.Has(TableSPO, indexSPO.key(e.ids))
		if err != nil {
			return err
		}
		switch {
		case !remove && !present:
			if err := t.insertEntry(txn, e); err != nil {
				return err
			}
			size++
		case remove && present:
			for _, idx := range allIndexes {
				if err := txn.Delete(idx.table, idx.key(e.ids)); err != nil {
					return errors.Wrapf(err, "deleting from %s", idx.table)
				}
			}
			size--
		}
	}

	if err := txn.Set(TableMeta, metaSizeKey, encodeUint64(size)); err != nil {
		return errors.Wrap(err, "writing size")
	}
	if err := txn.Commit(); err != nil {
		return errors.Wrap(err, "committing bulk write")
	}
	return nil
}

func (t *BoolTensor) insertEntry(txn Transaction, e encodedEntry) error {
	for _, idx := range allIndexes {
		if err := txn.Set(idx.table, idx.key(e.ids), nil); err != nil {
			return errors.Wrapf(err, "writing %s", idx.table)
		}
	}
	for i, id := range e.ids {
		if err := t.storeString(txn, id, e.terms[i]); err != nil {
			return err
		}
	}
	return nil
}

// storeString adds a dictionary entry unless one exists. The dictionary is
// append-only: removing tuples never deletes terms.
func (t *BoolTensor) storeString(txn Transaction, id encoding.EncodedTerm, canonical string) error {
	if _, ok := t.cachedTerm(id); ok {
		return nil
	}
	exists, err := txn.Has(TableID2Str, id[:])
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := txn.Set(TableID2Str, id[:], []byte(canonical)); err != nil {
		return errors.Wrap(err, "writing dictionary")
	}
	return nil
}
