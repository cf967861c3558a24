package sparql

import (
	"testing"

	"github.com/aleksaelezovic/tritensor/pkg/rdf"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Select(t *testing.T) {
	q, err := Parse(`
		PREFIX ex: <http://example.org/>
		SELECT DISTINCT ?s ?o WHERE {
			?s ex:p ?o ;
			   a ex:Thing .
			?o ex:label "x"@en, 42 .
		} LIMIT 10 OFFSET 5`)
	require.NoError(t, err)

	assert.Equal(t, QueryFormSelect, q.Form)
	assert.True(t, q.Distinct)
	assert.Equal(t, []string{"s", "o"}, q.ProjectedVariables())
	require.Len(t, q.Where, 4)
	require.NotNil(t, q.Limit)
	assert.Equal(t, 10, *q.Limit)
	require.NotNil(t, q.Offset)
	assert.Equal(t, 5, *q.Offset)

	assert.True(t, q.Where[0].Predicate.Term.Equals(rdf.NewNamedNode("http://example.org/p")))
	assert.True(t, q.Where[1].Predicate.Term.Equals(rdf.RDFType))
	assert.True(t, q.Where[1].Object.Term.Equals(rdf.NewNamedNode("http://example.org/Thing")))
	assert.Equal(t, "s", q.Where[1].Subject.Variable.Name)
	assert.True(t, q.Where[2].Object.Term.Equals(rdf.NewLiteralWithLanguage("x", "en")))
	assert.True(t, q.Where[3].Object.Term.Equals(rdf.NewIntegerLiteral(42)))
}

func TestParse_SelectStar(t *testing.T) {
	q, err := Parse(`SELECT * { ?a <http://example.org/p> ?b . _:x <http://example.org/q> ?a }`)
	require.NoError(t, err)
	assert.True(t, q.Star)
	assert.Equal(t, []string{"a", "b"}, q.ProjectedVariables())
	assert.Equal(t, []string{"a", "b", "_:x"}, q.PatternVariables(true))
	assert.True(t, q.Where[1].Subject.Variable.Blank)
}

func TestParse_Ask(t *testing.T) {
	q, err := Parse(`ASK { <http://example.org/a> <http://example.org/p> "v" }`)
	require.NoError(t, err)
	assert.Equal(t, QueryFormAsk, q.Form)
	assert.Nil(t, q.ProjectedVariables())
	require.Len(t, q.Where, 1)
}

func TestParse_Literals(t *testing.T) {
	q, err := Parse(`PREFIX xsd: <http://www.w3.org/2001/XMLSchema#>
		SELECT ?s { ?s <http://e/p> 1.5, -3, 2e10, true, 'single', """long
text""", "typed"^^xsd:date, "esc\"aped" . }`)
	require.NoError(t, err)
	want := []rdf.Term{
		rdf.NewLiteralWithDatatype("1.5", rdf.XSDDecimal),
		rdf.NewIntegerLiteral(-3),
		rdf.NewLiteralWithDatatype("2e10", rdf.XSDDouble),
		rdf.NewBooleanLiteral(true),
		rdf.NewLiteral("single"),
		rdf.NewLiteral("long\ntext"),
		rdf.NewLiteralWithDatatype("typed", rdf.NewNamedNode("http://www.w3.org/2001/XMLSchema#date")),
		rdf.NewLiteral(`esc"aped`),
	}
	require.Len(t, q.Where, len(want))
	for i, term := range want {
		assert.True(t, q.Where[i].Object.Term.Equals(term), "object %d: got %s", i, q.Where[i].Object.Term)
	}
}

func TestParse_Base(t *testing.T) {
	q, err := Parse(`BASE <http://example.org/dir/> SELECT ?x { ?x <p> <#frag> }`)
	require.NoError(t, err)
	assert.True(t, q.Where[0].Predicate.Term.Equals(rdf.NewNamedNode("http://example.org/dir/p")))
	assert.True(t, q.Where[0].Object.Term.Equals(rdf.NewNamedNode("http://example.org/dir/#frag")))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		unsupported bool
	}{
		{"garbage", "HELLO", false},
		{"unclosed", "SELECT ?x { ?x ?p ?o", false},
		{"undefined prefix", "SELECT ?x { ?x foo:bar ?o }", false},
		{"literal subject", `SELECT ?x { "a" ?p ?x }`, false},
		{"literal predicate", `SELECT ?x { ?x "p" ?o }`, false},
		{"trailing input", "SELECT ?x { ?x ?p ?o } garbage", false},
		{"no projection", "SELECT { ?x ?p ?o }", false},
		{"filter", "SELECT ?x { ?x ?p ?o FILTER(?o > 1) }", true},
		{"optional", "SELECT ?x { ?x ?p ?o OPTIONAL { ?x ?q ?z } }", true},
		{"construct", "CONSTRUCT { ?x ?p ?o } WHERE { ?x ?p ?o }", true},
		{"order by", "SELECT ?x { ?x ?p ?o } ORDER BY ?x", true},
		{"unbound projection", "SELECT ?y { ?x ?p ?o }", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.query)
			require.Error(t, err)
			var perr *ParseError
			assert.True(t, errors.As(err, &perr), "expected a ParseError, got %v", err)
			assert.Equal(t, tt.unsupported, errors.Is(err, ErrUnsupported))
		})
	}
}

func TestParseUpdate(t *testing.T) {
	update, err := ParseUpdate(`PREFIX ex: <http://example.org/>
		INSERT DATA {
			ex:a ex:p ex:b , ex:c .
			_:n ex:q "v" ;
			    ex:r 7 .
		}`)
	require.NoError(t, err)
	assert.Equal(t, UpdateInsertData, update.Operation)
	require.Len(t, update.Triples, 4)
	assert.Equal(t, `<http://example.org/a> <http://example.org/p> <http://example.org/c> .`, update.Triples[1].String())
	assert.True(t, update.Triples[2].Subject.Equals(rdf.NewBlankNode("n")))
	assert.True(t, update.Triples[3].Object.Equals(rdf.NewIntegerLiteral(7)))

	update, err = ParseUpdate(`DELETE DATA { <http://e/a> <http://e/p> <http://e/b> }`)
	require.NoError(t, err)
	assert.Equal(t, UpdateDeleteData, update.Operation)
	require.Len(t, update.Triples, 1)

	update, err = ParseUpdate(`INSERT DATA { }`)
	require.NoError(t, err)
	assert.Empty(t, update.Triples)
}

func TestParseUpdate_Errors(t *testing.T) {
	for _, text := range []string{
		`INSERT DATA { ?x <http://e/p> <http://e/b> }`,
		`DELETE DATA { _:b <http://e/p> <http://e/b> }`,
		`DELETE WHERE { ?x ?p ?o }`,
		`INSERT DATA { <http://e/a> <http://e/p> <http://e/b> } ; INSERT DATA { }`,
		`CLEAR ALL`,
		`SELECT * { ?s ?p ?o }`,
	} {
		t.Run(text, func(t *testing.T) {
			_, err := ParseUpdate(text)
			var perr *ParseError
			assert.True(t, errors.As(err, &perr), "expected a ParseError, got %v", err)
		})
	}
}
