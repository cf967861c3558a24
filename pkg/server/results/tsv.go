package results

import (
	"strings"

	"github.com/aleksaelezovic/tritensor/pkg/rdf"
)

// SPARQL TSV Results Format
// https://www.w3.org/TR/sparql11-results-csv-tsv/

// FormatSelectTSV renders t in SPARQL TSV format. Terms are written in their
// N-Triples form except plain numerics.
func FormatSelectTSV(t Table) ([]byte, error) {
	var b strings.Builder
	vars := t.Variables()

	for i, name := range vars {
		if i > 0 {
			b.WriteByte('\t')
		}
		b.WriteByte('?')
		b.WriteString(name)
	}
	b.WriteByte('\n')

	for t.Next() {
		for i, term := range t.Entry() {
			if i > 0 {
				b.WriteByte('\t')
			}
			if term != nil {
				b.WriteString(termToTSVValue(term))
			}
		}
		b.WriteByte('\n')
	}
	if err := t.Err(); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

// FormatAskTSV renders an ASK result in SPARQL TSV format
func FormatAskTSV(result bool) []byte {
	if result {
		return []byte("?result\ntrue\n")
	}
	return []byte("?result\nfalse\n")
}

func termToTSVValue(term rdf.Term) string {
	if lit, ok := term.(*rdf.Literal); ok && lit.Datatype != nil {
		switch lit.Datatype.IRI {
		case rdf.XSDInteger.IRI, rdf.XSDDecimal.IRI, rdf.XSDDouble.IRI:
			return lit.Value
		}
	}
	// the N-Triples form already escapes tabs and newlines
	return term.String()
}
