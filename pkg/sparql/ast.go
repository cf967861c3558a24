package sparql

import (
	"github.com/aleksaelezovic/tritensor/pkg/rdf"
)

// QueryForm represents the form of a SPARQL query
type QueryForm int

const (
	QueryFormSelect QueryForm = iota
	QueryFormAsk
)

func (f QueryForm) String() string {
	switch f {
	case QueryFormSelect:
		return "SELECT"
	case QueryFormAsk:
		return "ASK"
	default:
		return "UNKNOWN"
	}
}

// Query is a parsed SELECT or ASK query over a basic graph pattern
type Query struct {
	Form      QueryForm
	Prefixes  map[string]string
	Distinct  bool
	Star      bool        // SELECT *
	Variables []*Variable // explicit projection, empty for SELECT * and ASK
	Where     []*TriplePattern
	Limit     *int
	Offset    *int

	// Text is the source the query was parsed from
	Text string
}

// ProjectedVariables returns the names of the result columns. For SELECT *
// these are the named variables of the pattern in order of first appearance.
func (q *Query) ProjectedVariables() []string {
	if q.Form == QueryFormAsk {
		return nil
	}
	if !q.Star {
		names := make([]string, len(q.Variables))
		for i, v := range q.Variables {
			names[i] = v.Name
		}
		return names
	}
	return q.PatternVariables(false)
}

// PatternVariables returns the distinct variables of the WHERE clause in
// order of first appearance. Blank node variables are included only when
// withBlank is set.
func (q *Query) PatternVariables(withBlank bool) []string {
	var names []string
	seen := make(map[string]bool)
	for _, tp := range q.Where {
		for _, node := range tp.Nodes() {
			if !node.IsVariable() || seen[node.Variable.Name] {
				continue
			}
			if node.Variable.Blank && !withBlank {
				continue
			}
			seen[node.Variable.Name] = true
			names = append(names, node.Variable.Name)
		}
	}
	return names
}

// TriplePattern represents a triple pattern with possible variables
type TriplePattern struct {
	Subject   TermOrVariable
	Predicate TermOrVariable
	Object    TermOrVariable
}

// Nodes returns subject, predicate and object in order
func (tp *TriplePattern) Nodes() [3]TermOrVariable {
	return [3]TermOrVariable{tp.Subject, tp.Predicate, tp.Object}
}

func (tp *TriplePattern) String() string {
	return tp.Subject.String() + " " + tp.Predicate.String() + " " + tp.Object.String() + " ."
}

// TermOrVariable can be either an RDF term or a variable
type TermOrVariable struct {
	Term     rdf.Term
	Variable *Variable
}

// IsVariable returns true if this is a variable
func (t TermOrVariable) IsVariable() bool {
	return t.Variable != nil
}

func (t TermOrVariable) String() string {
	if t.Variable != nil {
		return t.Variable.String()
	}
	return t.Term.String()
}

// Variable represents a SPARQL variable. Blank nodes in a pattern behave as
// variables that are never projected; their Name keeps the "_:" prefix so it
// cannot clash with a named variable.
type Variable struct {
	Name  string
	Blank bool
}

func (v *Variable) String() string {
	if v.Blank {
		return v.Name
	}
	return "?" + v.Name
}

// UpdateOperation is the kind of a data update
type UpdateOperation int

const (
	UpdateInsertData UpdateOperation = iota
	UpdateDeleteData
)

func (o UpdateOperation) String() string {
	if o == UpdateDeleteData {
		return "DELETE DATA"
	}
	return "INSERT DATA"
}

// UpdateData is a parsed INSERT DATA or DELETE DATA request
type UpdateData struct {
	Operation UpdateOperation
	Triples   []*rdf.Triple
}
