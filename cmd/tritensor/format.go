package main

import (
	"fmt"
	"io"

	"github.com/aleksaelezovic/tritensor/pkg/rdf"
	"github.com/aleksaelezovic/tritensor/pkg/store"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// printSolutions renders sol as a markdown table and returns the row count
func printSolutions(w io.Writer, sol *store.Solutions, short bool) (int, error) {
	vars := sol.Variables()
	alignment := make([]tw.Align, len(vars))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	headers := make([]string, len(vars))
	for i, v := range vars {
		headers[i] = "?" + v
	}
	table.Header(headers)

	rows := 0
	for sol.Next() {
		entry := sol.Entry()
		row := make([]string, len(entry))
		for i, term := range entry {
			row[i] = formatTerm(term, short)
		}
		if err := table.Append(row); err != nil {
			return rows, err
		}
		rows++
	}
	if err := sol.Err(); err != nil {
		return rows, err
	}
	if err := table.Render(); err != nil {
		return rows, err
	}
	fmt.Fprintf(w, "\n_%s rows_\n", color.GreenString("%d", rows))
	return rows, nil
}

// formatTerm prints term in N-Triples form, or by local name and lexical
// value when short is set
func formatTerm(term rdf.Term, short bool) string {
	if term == nil {
		return ""
	}
	if !short {
		return term.String()
	}
	switch t := term.(type) {
	case *rdf.NamedNode:
		iri := t.IRI
		for i := len(iri) - 1; i >= 0; i-- {
			if iri[i] == '/' || iri[i] == '#' {
				return iri[i+1:]
			}
		}
		return iri
	case *rdf.Literal:
		return t.Value
	default:
		return term.String()
	}
}
