package rdf

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== NamedNode Tests =====

func TestNamedNode_String(t *testing.T) {
	node := NewNamedNode("http://example.org/resource")
	assert.Equal(t, TermTypeNamedNode, node.Type())
	assert.Equal(t, "<http://example.org/resource>", node.String())
}

func TestNamedNode_Equals(t *testing.T) {
	node1 := NewNamedNode("http://example.org/resource")
	node2 := NewNamedNode("http://example.org/resource")
	node3 := NewNamedNode("http://example.org/different")

	assert.True(t, node1.Equals(node2))
	assert.False(t, node1.Equals(node3))
	assert.False(t, node1.Equals(NewLiteral("http://example.org/resource")))
}

// ===== BlankNode Tests =====

func TestBlankNode_String(t *testing.T) {
	node := NewBlankNode("b1")
	assert.Equal(t, TermTypeBlankNode, node.Type())
	assert.Equal(t, "_:b1", node.String())
	assert.True(t, node.Equals(NewBlankNode("b1")))
	assert.False(t, node.Equals(NewBlankNode("b2")))
}

// ===== Literal Tests =====

func TestLiteral_String(t *testing.T) {
	tests := []struct {
		name     string
		literal  *Literal
		expected string
	}{
		{"simple", NewLiteral("hello"), `"hello"`},
		{"language", NewLiteralWithLanguage("hello", "EN"), `"hello"@en`},
		{"typed", NewIntegerLiteral(42), `"42"^^<http://www.w3.org/2001/XMLSchema#integer>`},
		{"xsd string folds", NewLiteralWithDatatype("x", XSDString), `"x"`},
		{"escapes", NewLiteral("a\"b\\c\nd"), `"a\"b\\c\nd"`},
		{"boolean", NewBooleanLiteral(true), `"true"^^<http://www.w3.org/2001/XMLSchema#boolean>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.literal.String())
		})
	}
}

func TestLiteral_Equals(t *testing.T) {
	assert.True(t, NewLiteral("x").Equals(NewLiteralWithDatatype("x", XSDString)))
	assert.False(t, NewLiteral("1").Equals(NewIntegerLiteral(1)))
	assert.False(t, NewLiteralWithLanguage("x", "en").Equals(NewLiteralWithLanguage("x", "de")))
	assert.True(t, NewIntegerLiteral(7).Equals(NewLiteralWithDatatype("7", XSDInteger)))
	assert.False(t, NewLiteral("x").Equals(NewNamedNode("x")))
}

func TestDateTimeLiteral(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	lit := NewDateTimeLiteral(ts)
	assert.Equal(t, "2024-03-01T12:00:00Z", lit.Value)
	assert.True(t, lit.Datatype.Equals(XSDDateTime))
}

// ===== Triple Tests =====

func TestTriple_Validate(t *testing.T) {
	s := NewNamedNode("http://example.org/s")
	p := NewNamedNode("http://example.org/p")
	o := NewLiteral("o")

	require.NoError(t, NewTriple(s, p, o).Validate())
	require.NoError(t, NewTriple(NewBlankNode("b"), p, s).Validate())

	err := NewTriple(o, p, s).Validate()
	assert.True(t, errors.Is(err, ErrInvalidTriple))

	err = NewTriple(s, NewBlankNode("b"), o).Validate()
	assert.True(t, errors.Is(err, ErrInvalidTriple))

	err = NewTriple(s, nil, o).Validate()
	assert.True(t, errors.Is(err, ErrInvalidTriple))
}

func TestTriple_String(t *testing.T) {
	triple := NewTriple(
		NewNamedNode("http://example.org/s"),
		RDFType,
		NewLiteralWithLanguage("chat", "fr"),
	)
	assert.Equal(t, `<http://example.org/s> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> "chat"@fr .`, triple.String())
}
