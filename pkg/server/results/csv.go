package results

import (
	"bytes"
	"encoding/csv"

	"github.com/aleksaelezovic/tritensor/pkg/rdf"
)

// SPARQL CSV Results Format
// https://www.w3.org/TR/sparql11-results-csv-tsv/

// FormatSelectCSV renders t in SPARQL CSV format
func FormatSelectCSV(t Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true

	vars := t.Variables()
	if err := w.Write(nonNil(vars)); err != nil {
		return nil, err
	}
	row := make([]string, len(vars))
	for t.Next() {
		for i, term := range t.Entry() {
			row[i] = ""
			if term != nil {
				row[i] = termToCSVValue(term)
			}
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	if err := t.Err(); err != nil {
		return nil, err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FormatAskCSV renders an ASK result in SPARQL CSV format
func FormatAskCSV(result bool) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true
	value := "false"
	if result {
		value = "true"
	}
	if err := w.WriteAll([][]string{{"result"}, {value}}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// termToCSVValue drops the N-Triples decoration: IRIs without brackets,
// literals by lexical form only
func termToCSVValue(term rdf.Term) string {
	switch t := term.(type) {
	case *rdf.NamedNode:
		return t.IRI
	case *rdf.BlankNode:
		return "_:" + t.ID
	case *rdf.Literal:
		return t.Value
	default:
		return term.String()
	}
}
