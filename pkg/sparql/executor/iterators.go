package executor

import (
	"strings"

	"github.com/aleksaelezovic/tritensor/pkg/rdf"
	"github.com/aleksaelezovic/tritensor/pkg/sparql"
	"github.com/aleksaelezovic/tritensor/pkg/tensor"
)

// Binding maps variable names to terms
type Binding map[string]rdf.Term

// Clone returns a copy of b
func (b Binding) Clone() Binding {
	c := make(Binding, len(b)+2)
	for k, v := range b {
		c[k] = v
	}
	return c
}

// Rows is a lazy, single-pass sequence of result rows
type Rows interface {
	// Next advances to the next row
	Next() bool

	// Entry returns the current row. It is only valid until the next call to
	// Next.
	Entry() tensor.Entry

	// Err returns the error that ended the sequence, if any
	Err() error

	// Close releases resources held by the sequence
	Close() error
}

type bindingIterator interface {
	Next() bool
	Binding() Binding
	Err() error
	Close() error
}

// emptyIterator yields nothing
type emptyIterator struct{}

func (it *emptyIterator) Next() bool       { return false }
func (it *emptyIterator) Binding() Binding { return nil }
func (it *emptyIterator) Err() error       { return nil }
func (it *emptyIterator) Close() error     { return nil }

// singletonIterator yields one empty binding, the seed of a join chain
type singletonIterator struct {
	done bool
}

func (it *singletonIterator) Next() bool {
	if it.done {
		return false
	}
	it.done = true
	return true
}

func (it *singletonIterator) Binding() Binding { return Binding{} }
func (it *singletonIterator) Err() error       { return nil }
func (it *singletonIterator) Close() error     { return nil }

// bindJoinIterator substitutes each left binding into pattern and scans the
// resulting slice
type bindJoinIterator struct {
	left     bindingIterator
	pattern  *sparql.TriplePattern
	snapshot *tensor.Snapshot

	leftBinding Binding
	right       *tensor.SliceIterator
	current     Binding
	err         error
}

func (it *bindJoinIterator) Next() bool {
	for {
		if it.err != nil {
			return false
		}
		if it.right == nil {
			if !it.left.Next() {
				it.err = it.left.Err()
				return false
			}
			it.leftBinding = it.left.Binding()
			it.right = it.snapshot.Scan(substitute(it.pattern, it.leftBinding))
		}

		for it.right.Next() {
			if binding, ok := extend(it.leftBinding, it.pattern, it.right.Entry()); ok {
				it.current = binding
				return true
			}
		}
		it.err = it.right.Err()
		it.right.Close()
		it.right = nil
	}
}

func (it *bindJoinIterator) Binding() Binding {
	return it.current
}

func (it *bindJoinIterator) Err() error {
	return it.err
}

func (it *bindJoinIterator) Close() error {
	if it.right != nil {
		it.right.Close()
		it.right = nil
	}
	return it.left.Close()
}

// substitute builds the slice key of tp under binding
func substitute(tp *sparql.TriplePattern, binding Binding) tensor.SliceKey {
	var key tensor.SliceKey
	for i, node := range tp.Nodes() {
		if !node.IsVariable() {
			key[i] = node.Term
		} else if term, ok := binding[node.Variable.Name]; ok {
			key[i] = term
		}
	}
	return key
}

// extend adds the variables of tp matched by e to binding. It fails when a
// variable occurring twice in tp matched two different terms.
func extend(binding Binding, tp *sparql.TriplePattern, e tensor.NonZeroEntry) (Binding, bool) {
	result := binding.Clone()
	for i, node := range tp.Nodes() {
		if !node.IsVariable() {
			continue
		}
		name := node.Variable.Name
		if existing, ok := result[name]; ok {
			if !existing.Equals(e[i]) {
				return nil, false
			}
			continue
		}
		result[name] = e[i]
	}
	return result, true
}

// projectionIterator turns bindings into rows over variables
type projectionIterator struct {
	input     bindingIterator
	variables []string
	entry     tensor.Entry
}

func (it *projectionIterator) Next() bool {
	if !it.input.Next() {
		return false
	}
	binding := it.input.Binding()
	if it.entry == nil {
		it.entry = make(tensor.Entry, len(it.variables))
	}
	for i, name := range it.variables {
		it.entry[i] = binding[name]
	}
	return true
}

func (it *projectionIterator) Entry() tensor.Entry {
	return it.entry
}

func (it *projectionIterator) Err() error {
	return it.input.Err()
}

func (it *projectionIterator) Close() error {
	return it.input.Close()
}

// distinctIterator drops rows already produced
type distinctIterator struct {
	input Rows
	seen  map[string]struct{}
}

func (it *distinctIterator) Next() bool {
	for it.input.Next() {
		key := entryKey(it.input.Entry())
		if _, dup := it.seen[key]; dup {
			continue
		}
		it.seen[key] = struct{}{}
		return true
	}
	return false
}

func (it *distinctIterator) Entry() tensor.Entry {
	return it.input.Entry()
}

func (it *distinctIterator) Err() error {
	return it.input.Err()
}

func (it *distinctIterator) Close() error {
	it.seen = nil
	return it.input.Close()
}

func entryKey(e tensor.Entry) string {
	var sb strings.Builder
	for _, term := range e {
		if term != nil {
			sb.WriteString(term.String())
		}
		sb.WriteByte(0)
	}
	return sb.String()
}

// offsetIterator skips the first offset rows
type offsetIterator struct {
	input   Rows
	offset  int
	skipped bool
}

func (it *offsetIterator) Next() bool {
	if !it.skipped {
		it.skipped = true
		for i := 0; i < it.offset; i++ {
			if !it.input.Next() {
				return false
			}
		}
	}
	return it.input.Next()
}

func (it *offsetIterator) Entry() tensor.Entry {
	return it.input.Entry()
}

func (it *offsetIterator) Err() error {
	return it.input.Err()
}

func (it *offsetIterator) Close() error {
	return it.input.Close()
}

// limitIterator stops after limit rows
type limitIterator struct {
	input Rows
	limit int
	count int
}

func (it *limitIterator) Next() bool {
	if it.count >= it.limit {
		return false
	}
	if !it.input.Next() {
		return false
	}
	it.count++
	return true
}

func (it *limitIterator) Entry() tensor.Entry {
	return it.input.Entry()
}

func (it *limitIterator) Err() error {
	return it.input.Err()
}

func (it *limitIterator) Close() error {
	return it.input.Close()
}
