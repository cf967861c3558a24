package executor

import (
	"sort"

	"github.com/aleksaelezovic/tritensor/pkg/sparql"
	"github.com/aleksaelezovic/tritensor/pkg/tensor"
	"github.com/cockroachdb/errors"
)

// Plan is an ordered evaluation plan for one query
type Plan struct {
	Query     *sparql.Query
	Patterns  []*sparql.TriplePattern // join order
	Estimates []uint64                // exact slice size of each pattern, variables left free
	Variables []string

	// Empty is set when some pattern has no match, so the query has no
	// solutions at all
	Empty bool
}

// Executor evaluates queries against one snapshot
type Executor struct {
	snapshot *tensor.Snapshot
}

// NewExecutor creates an executor reading from snapshot
func NewExecutor(snapshot *tensor.Snapshot) *Executor {
	return &Executor{snapshot: snapshot}
}

// Plan orders the patterns of q. Every pattern is counted with its
// variables free; evaluation starts at the smallest slice and then greedily
// follows the smallest pattern sharing a variable with those already joined.
func (e *Executor) Plan(q *sparql.Query) (*Plan, error) {
	if q.Form != sparql.QueryFormSelect && q.Form != sparql.QueryFormAsk {
		return nil, errors.Newf("unsupported query form %s", q.Form)
	}
	plan := &Plan{Query: q, Variables: q.ProjectedVariables()}
	if len(q.Where) == 0 {
		return plan, nil
	}

	type candidate struct {
		pattern *sparql.TriplePattern
		count   uint64
	}
	candidates := make([]candidate, len(q.Where))
	for i, tp := range q.Where {
		count, err := e.snapshot.Count(constantKey(tp))
		if err != nil {
			return nil, err
		}
		if count == 0 {
			plan.Empty = true
		}
		candidates[i] = candidate{tp, count}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].count < candidates[j].count
	})

	bound := make(map[string]bool)
	for len(candidates) > 0 {
		pick := 0
		for i, c := range candidates {
			if sharesVariable(c.pattern, bound) {
				pick = i
				break
			}
		}
		c := candidates[pick]
		candidates = append(candidates[:pick], candidates[pick+1:]...)

		plan.Patterns = append(plan.Patterns, c.pattern)
		plan.Estimates = append(plan.Estimates, c.count)
		for _, node := range c.pattern.Nodes() {
			if node.IsVariable() {
				bound[node.Variable.Name] = true
			}
		}
	}
	return plan, nil
}

// constantKey is the slice of tp with every variable left free
func constantKey(tp *sparql.TriplePattern) tensor.SliceKey {
	var key tensor.SliceKey
	for i, node := range tp.Nodes() {
		if !node.IsVariable() {
			key[i] = node.Term
		}
	}
	return key
}

func sharesVariable(tp *sparql.TriplePattern, bound map[string]bool) bool {
	for _, node := range tp.Nodes() {
		if node.IsVariable() && bound[node.Variable.Name] {
			return true
		}
	}
	return false
}

// Execute returns the rows of plan in projection order. ASK queries yield
// empty rows, one per solution.
func (e *Executor) Execute(plan *Plan) Rows {
	var bindings bindingIterator
	if plan.Empty {
		bindings = &emptyIterator{}
	} else {
		bindings = &singletonIterator{}
		for _, tp := range plan.Patterns {
			bindings = &bindJoinIterator{
				left:     bindings,
				pattern:  tp,
				snapshot: e.snapshot,
			}
		}
	}

	q := plan.Query
	var rows Rows = &projectionIterator{input: bindings, variables: plan.Variables}
	if q.Distinct {
		rows = &distinctIterator{input: rows, seen: make(map[string]struct{})}
	}
	if q.Offset != nil && *q.Offset > 0 {
		rows = &offsetIterator{input: rows, offset: *q.Offset}
	}
	if q.Limit != nil {
		rows = &limitIterator{input: rows, limit: *q.Limit}
	}
	return rows
}

// Count returns the number of rows plan produces. A lone pattern without
// repeated variables or modifiers is answered by counting index keys.
func (e *Executor) Count(plan *Plan) (uint64, error) {
	q := plan.Query
	if len(plan.Patterns) == 1 && !q.Distinct && q.Limit == nil && q.Offset == nil && !hasRepeatedVariable(plan.Patterns[0]) {
		return e.snapshot.Count(constantKey(plan.Patterns[0]))
	}

	rows := e.Execute(plan)
	defer rows.Close()
	var n uint64
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}

func hasRepeatedVariable(tp *sparql.TriplePattern) bool {
	seen := make(map[string]bool)
	for _, node := range tp.Nodes() {
		if !node.IsVariable() {
			continue
		}
		if seen[node.Variable.Name] {
			return true
		}
		seen[node.Variable.Name] = true
	}
	return false
}
