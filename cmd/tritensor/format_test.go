package main

import (
	"testing"

	"github.com/aleksaelezovic/tritensor/pkg/rdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNode(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want rdf.Term
	}{
		{"http://example.org/list", rdf.NewNamedNode("http://example.org/list")},
		{"<http://example.org/list>", rdf.NewNamedNode("http://example.org/list")},
		{"_:l0", rdf.NewBlankNode("l0")},
	} {
		got, err := parseNode(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equals(got), "%s parsed as %s", tt.in, got)
	}

	_, err := parseNode("<http://example.org/unterminated")
	assert.Error(t, err)
}

func TestFormatTerm(t *testing.T) {
	name := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name")
	typ := rdf.NewNamedNode("http://www.w3.org/1999/02/22-rdf-syntax-ns#type")
	lit := rdf.NewLiteralWithLanguage("Alice", "en")

	assert.Equal(t, "<http://xmlns.com/foaf/0.1/name>", formatTerm(name, false))
	assert.Equal(t, "name", formatTerm(name, true))
	assert.Equal(t, "type", formatTerm(typ, true))
	assert.Equal(t, `"Alice"@en`, formatTerm(lit, false))
	assert.Equal(t, "Alice", formatTerm(lit, true))
	assert.Equal(t, "_:b1", formatTerm(rdf.NewBlankNode("b1"), true))
	assert.Equal(t, "", formatTerm(nil, true))
}
