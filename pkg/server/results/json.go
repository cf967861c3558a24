package results

import (
	"encoding/json"

	"github.com/aleksaelezovic/tritensor/pkg/rdf"
)

// SPARQL JSON Results Format
// https://www.w3.org/TR/sparql11-results-json/

// SPARQLResultsJSON represents the JSON format for SPARQL query results
type SPARQLResultsJSON struct {
	Head    ResultHead      `json:"head"`
	Results *ResultBindings `json:"results,omitempty"`
	Boolean *bool           `json:"boolean,omitempty"`
}

// ResultHead contains the variable names
type ResultHead struct {
	Vars []string `json:"vars"`
}

// ResultBindings contains the result bindings
type ResultBindings struct {
	Bindings []map[string]BindingValue `json:"bindings"`
}

// BindingValue represents a single bound value
type BindingValue struct {
	Type     string  `json:"type"`
	Value    string  `json:"value"`
	Datatype *string `json:"datatype,omitempty"`
	XMLLang  *string `json:"xml:lang,omitempty"`
}

// FormatSelectJSON renders t in SPARQL JSON format
func FormatSelectJSON(t Table) ([]byte, error) {
	vars := t.Variables()
	bindings := make([]map[string]BindingValue, 0)
	for t.Next() {
		row := make(map[string]BindingValue, len(vars))
		for i, term := range t.Entry() {
			if term != nil {
				row[vars[i]] = termToBindingValue(term)
			}
		}
		bindings = append(bindings, row)
	}
	if err := t.Err(); err != nil {
		return nil, err
	}

	return json.Marshal(SPARQLResultsJSON{
		Head:    ResultHead{Vars: nonNil(vars)},
		Results: &ResultBindings{Bindings: bindings},
	})
}

// FormatAskJSON renders an ASK result in SPARQL JSON format
func FormatAskJSON(result bool) ([]byte, error) {
	return json.Marshal(SPARQLResultsJSON{
		Head:    ResultHead{Vars: []string{}},
		Boolean: &result,
	})
}

func termToBindingValue(term rdf.Term) BindingValue {
	switch t := term.(type) {
	case *rdf.NamedNode:
		return BindingValue{Type: "uri", Value: t.IRI}
	case *rdf.BlankNode:
		return BindingValue{Type: "bnode", Value: t.ID}
	case *rdf.Literal:
		bv := BindingValue{Type: "literal", Value: t.Value}
		if t.Language != "" {
			lang := t.Language
			bv.XMLLang = &lang
		} else if t.Datatype != nil {
			datatype := t.Datatype.IRI
			bv.Datatype = &datatype
		}
		return bv
	default:
		return BindingValue{Type: "literal", Value: term.String()}
	}
}

func nonNil(vars []string) []string {
	if vars == nil {
		return []string{}
	}
	return vars
}
