package rdf

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// TermType represents the type of an RDF term
type TermType byte

const (
	TermTypeNamedNode TermType = iota + 1
	TermTypeBlankNode
	TermTypeLiteral
)

func (t TermType) String() string {
	switch t {
	case TermTypeNamedNode:
		return "iri"
	case TermTypeBlankNode:
		return "bnode"
	case TermTypeLiteral:
		return "literal"
	default:
		return "unknown"
	}
}

// Term represents an RDF term (IRI, blank node, or literal).
// String returns the canonical N-Triples form, which is also the identity
// used by the term dictionary: two terms are equal iff their String() is.
type Term interface {
	Type() TermType
	String() string
	Equals(other Term) bool
}

// NamedNode represents an IRI
type NamedNode struct {
	IRI string
}

func NewNamedNode(iri string) *NamedNode {
	return &NamedNode{IRI: iri}
}

func (n *NamedNode) Type() TermType {
	return TermTypeNamedNode
}

func (n *NamedNode) String() string {
	return "<" + n.IRI + ">"
}

func (n *NamedNode) Equals(other Term) bool {
	if on, ok := other.(*NamedNode); ok {
		return n.IRI == on.IRI
	}
	return false
}

// BlankNode represents a blank node
type BlankNode struct {
	ID string
}

func NewBlankNode(id string) *BlankNode {
	return &BlankNode{ID: id}
}

func (b *BlankNode) Type() TermType {
	return TermTypeBlankNode
}

func (b *BlankNode) String() string {
	return "_:" + b.ID
}

func (b *BlankNode) Equals(other Term) bool {
	if ob, ok := other.(*BlankNode); ok {
		return b.ID == ob.ID
	}
	return false
}

// Literal represents an RDF literal. A nil Datatype with an empty Language
// is a simple literal (xsd:string).
type Literal struct {
	Value    string
	Language string
	Datatype *NamedNode
}

func NewLiteral(value string) *Literal {
	return &Literal{Value: value}
}

// NewLiteralWithLanguage creates a language-tagged string. Tags are
// compared case-insensitively, so they are stored lower-cased.
func NewLiteralWithLanguage(value, language string) *Literal {
	return &Literal{Value: value, Language: strings.ToLower(language)}
}

// NewLiteralWithDatatype creates a typed literal. xsd:string is folded into
// the simple literal form.
func NewLiteralWithDatatype(value string, datatype *NamedNode) *Literal {
	if datatype == nil || datatype.IRI == XSDString.IRI {
		return &Literal{Value: value}
	}
	return &Literal{Value: value, Datatype: datatype}
}

func (l *Literal) Type() TermType {
	return TermTypeLiteral
}

func (l *Literal) String() string {
	var sb strings.Builder
	sb.WriteByte('"')
	sb.WriteString(EscapeString(l.Value))
	sb.WriteByte('"')
	if l.Language != "" {
		sb.WriteByte('@')
		sb.WriteString(l.Language)
	} else if l.Datatype != nil {
		sb.WriteString("^^")
		sb.WriteString(l.Datatype.String())
	}
	return sb.String()
}

func (l *Literal) Equals(other Term) bool {
	ol, ok := other.(*Literal)
	if !ok {
		return false
	}
	if l.Value != ol.Value || l.Language != ol.Language {
		return false
	}
	if l.Datatype == nil || ol.Datatype == nil {
		return l.Datatype == nil && ol.Datatype == nil
	}
	return l.Datatype.Equals(ol.Datatype)
}

// EscapeString escapes a literal lexical form for N-Triples output
func EscapeString(s string) string {
	if !strings.ContainsAny(s, "\\\"\n\r\t") {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; ch {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteByte(ch)
		}
	}
	return sb.String()
}

// Triple represents an RDF triple (subject, predicate, object)
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

func NewTriple(subject, predicate, object Term) *Triple {
	return &Triple{
		Subject:   subject,
		Predicate: predicate,
		Object:    object,
	}
}

func (t *Triple) String() string {
	return t.Subject.String() + " " + t.Predicate.String() + " " + t.Object.String() + " ."
}

// ErrInvalidTriple is returned by Validate for triples that cannot be stored
var ErrInvalidTriple = errors.New("invalid triple")

// Validate checks the RDF positional constraints: no literal subjects and
// IRI-only predicates.
func (t *Triple) Validate() error {
	if t.Subject == nil || t.Predicate == nil || t.Object == nil {
		return errors.Wrap(ErrInvalidTriple, "missing term")
	}
	if t.Subject.Type() == TermTypeLiteral {
		return errors.Wrapf(ErrInvalidTriple, "literal subject %s", t.Subject)
	}
	if t.Predicate.Type() != TermTypeNamedNode {
		return errors.Wrapf(ErrInvalidTriple, "predicate %s is not an IRI", t.Predicate)
	}
	return nil
}

const (
	RDFNamespace = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	XSDNamespace = "http://www.w3.org/2001/XMLSchema#"
)

// RDF vocabulary
var (
	RDFType       = NewNamedNode(RDFNamespace + "type")
	RDFFirst      = NewNamedNode(RDFNamespace + "first")
	RDFRest       = NewNamedNode(RDFNamespace + "rest")
	RDFNil        = NewNamedNode(RDFNamespace + "nil")
	RDFLangString = NewNamedNode(RDFNamespace + "langString")
)

// Helper functions for common XSD datatypes
var (
	XSDString   = NewNamedNode(XSDNamespace + "string")
	XSDInteger  = NewNamedNode(XSDNamespace + "integer")
	XSDDecimal  = NewNamedNode(XSDNamespace + "decimal")
	XSDDouble   = NewNamedNode(XSDNamespace + "double")
	XSDBoolean  = NewNamedNode(XSDNamespace + "boolean")
	XSDDateTime = NewNamedNode(XSDNamespace + "dateTime")
)

func NewIntegerLiteral(value int64) *Literal {
	return NewLiteralWithDatatype(strconv.FormatInt(value, 10), XSDInteger)
}

func NewDoubleLiteral(value float64) *Literal {
	return NewLiteralWithDatatype(strconv.FormatFloat(value, 'E', -1, 64), XSDDouble)
}

func NewBooleanLiteral(value bool) *Literal {
	return NewLiteralWithDatatype(strconv.FormatBool(value), XSDBoolean)
}

func NewDateTimeLiteral(value time.Time) *Literal {
	return NewLiteralWithDatatype(value.Format(time.RFC3339), XSDDateTime)
}
