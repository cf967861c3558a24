package rdf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// maxLineSize bounds a single N-Triples statement
const maxLineSize = 16 * 1024 * 1024

// ParseError reports a malformed N-Triples statement
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

// NTriplesReader reads triples one statement at a time. A malformed line
// yields a *ParseError from Next; the reader stays usable and continues with
// the following line.
type NTriplesReader struct {
	scanner *bufio.Scanner
	line    int
}

// NewNTriplesReader creates a reader over r
func NewNTriplesReader(r io.Reader) *NTriplesReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &NTriplesReader{scanner: scanner}
}

// Next returns the next triple, io.EOF at the end of input, a *ParseError for
// a malformed statement or any other error from the underlying reader.
func (r *NTriplesReader) Next() (*Triple, error) {
	for r.scanner.Scan() {
		r.line++
		p := newTermParser(r.scanner.Text())
		p.skipWhitespaceAndComments()
		if p.done() {
			continue
		}
		triple, err := p.parseStatement()
		if err != nil {
			return nil, &ParseError{Line: r.line, Msg: err.Error()}
		}
		return triple, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading line %d", r.line+1)
	}
	return nil, io.EOF
}

// Line returns the number of the last line read
func (r *NTriplesReader) Line() int {
	return r.line
}

// ParseNTriples parses a whole N-Triples document, failing on the first
// malformed statement.
func ParseNTriples(input string) ([]*Triple, error) {
	reader := NewNTriplesReader(strings.NewReader(input))
	var triples []*Triple
	for {
		triple, err := reader.Next()
		if err == io.EOF {
			return triples, nil
		}
		if err != nil {
			return nil, err
		}
		triples = append(triples, triple)
	}
}

// ParseTerm parses a single term in N-Triples syntax. It is the inverse of
// Term.String.
func ParseTerm(s string) (Term, error) {
	p := newTermParser(s)
	p.skipWhitespaceAndComments()
	if p.done() {
		return nil, &ParseError{Msg: "empty term"}
	}
	term, err := p.parseTerm()
	if err != nil {
		return nil, &ParseError{Msg: err.Error()}
	}
	p.skipWhitespaceAndComments()
	if !p.done() {
		return nil, &ParseError{Msg: fmt.Sprintf("trailing input at position %d", p.pos)}
	}
	return term, nil
}

type termParser struct {
	input  string
	pos    int
	length int
}

func newTermParser(input string) *termParser {
	return &termParser{input: input, length: len(input)}
}

func (p *termParser) done() bool {
	return p.pos >= p.length
}

func (p *termParser) skipWhitespaceAndComments() {
	for p.pos < p.length {
		ch := p.input[p.pos]
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			p.pos++
			continue
		}
		if ch == '#' {
			p.pos = p.length
		}
		break
	}
}

// parseStatement parses: subject predicate object .
func (p *termParser) parseStatement() (*Triple, error) {
	subject, err := p.parseTerm()
	if err != nil {
		return nil, errors.Wrap(err, "subject")
	}
	p.skipWhitespaceAndComments()
	predicate, err := p.parseTerm()
	if err != nil {
		return nil, errors.Wrap(err, "predicate")
	}
	p.skipWhitespaceAndComments()
	object, err := p.parseTerm()
	if err != nil {
		return nil, errors.Wrap(err, "object")
	}
	p.skipWhitespaceAndComments()
	if p.done() || p.input[p.pos] != '.' {
		return nil, errors.New("expected '.' at end of triple")
	}
	p.pos++
	p.skipWhitespaceAndComments()
	if !p.done() {
		return nil, errors.Newf("unexpected input after '.' at position %d", p.pos)
	}

	triple := NewTriple(subject, predicate, object)
	if err := triple.Validate(); err != nil {
		return nil, err
	}
	return triple, nil
}

func (p *termParser) parseTerm() (Term, error) {
	if p.done() {
		return nil, errors.New("unexpected end of input")
	}
	switch ch := p.input[p.pos]; ch {
	case '<':
		iri, err := p.parseIRI()
		if err != nil {
			return nil, err
		}
		return NewNamedNode(iri), nil
	case '_':
		return p.parseBlankNode()
	case '"':
		return p.parseLiteral()
	default:
		return nil, errors.Newf("unexpected character %q at position %d", ch, p.pos)
	}
}

// parseIRI parses an absolute IRI enclosed in < >
func (p *termParser) parseIRI() (string, error) {
	if p.done() || p.input[p.pos] != '<' {
		return "", errors.New("expected '<' at start of IRI")
	}
	p.pos++

	var result strings.Builder
	for p.pos < p.length && p.input[p.pos] != '>' {
		ch := p.input[p.pos]
		if ch == '\\' {
			escaped, err := p.processUnicodeEscape()
			if err != nil {
				return "", err
			}
			result.WriteString(escaped)
			continue
		}
		if ch == ' ' || ch == '<' || ch == '"' || ch == '{' || ch == '}' ||
			ch == '|' || ch == '^' || ch == '`' || ch <= 0x1F {
			return "", errors.Newf("invalid character %q in IRI at position %d", ch, p.pos)
		}
		result.WriteByte(ch)
		p.pos++
	}
	if p.done() {
		return "", errors.New("unclosed IRI")
	}
	p.pos++

	iri := result.String()
	if !strings.Contains(iri, ":") {
		return "", errors.Newf("relative IRI not allowed: %s", iri)
	}
	return iri, nil
}

func (p *termParser) parseBlankNode() (Term, error) {
	if p.pos+1 >= p.length || p.input[p.pos+1] != ':' {
		return nil, errors.New("expected '_:' at start of blank node")
	}
	p.pos += 2

	start := p.pos
	for p.pos < p.length {
		ch := p.input[p.pos]
		if ch == ' ' || ch == '\t' || ch == '<' || ch == '"' {
			break
		}
		p.pos++
	}
	// a trailing '.' terminates the statement, not the label
	for p.pos > start && p.input[p.pos-1] == '.' {
		p.pos--
	}
	if p.pos == start {
		return nil, errors.New("empty blank node label")
	}
	return NewBlankNode(p.input[start:p.pos]), nil
}

func (p *termParser) parseLiteral() (Term, error) {
	p.pos++

	var value strings.Builder
	for {
		if p.done() {
			return nil, errors.New("unclosed string literal")
		}
		ch := p.input[p.pos]
		if ch == '"' {
			break
		}
		if ch != '\\' {
			value.WriteByte(ch)
			p.pos++
			continue
		}
		if p.pos+1 >= p.length {
			return nil, errors.New("unexpected end of input in escape sequence")
		}
		switch esc := p.input[p.pos+1]; esc {
		case 'n':
			value.WriteByte('\n')
		case 't':
			value.WriteByte('\t')
		case 'r':
			value.WriteByte('\r')
		case 'b':
			value.WriteByte('\b')
		case 'f':
			value.WriteByte('\f')
		case '"':
			value.WriteByte('"')
		case '\'':
			value.WriteByte('\'')
		case '\\':
			value.WriteByte('\\')
		case 'u', 'U':
			escaped, err := p.processUnicodeEscape()
			if err != nil {
				return nil, err
			}
			value.WriteString(escaped)
			continue
		default:
			return nil, errors.Newf("invalid escape sequence \\%c at position %d", esc, p.pos)
		}
		p.pos += 2
	}
	p.pos++

	if p.pos < p.length && p.input[p.pos] == '@' {
		p.pos++
		start := p.pos
		for p.pos < p.length {
			ch := p.input[p.pos]
			if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
				(ch == '-' && p.pos > start) || (ch >= '0' && ch <= '9' && p.pos > start) {
				p.pos++
				continue
			}
			break
		}
		if p.pos == start {
			return nil, errors.New("empty language tag")
		}
		return NewLiteralWithLanguage(value.String(), p.input[start:p.pos]), nil
	}
	if p.pos+1 < p.length && p.input[p.pos] == '^' && p.input[p.pos+1] == '^' {
		p.pos += 2
		datatype, err := p.parseIRI()
		if err != nil {
			return nil, errors.Wrap(err, "datatype")
		}
		return NewLiteralWithDatatype(value.String(), NewNamedNode(datatype)), nil
	}
	return NewLiteral(value.String()), nil
}

// processUnicodeEscape decodes \uXXXX or \UXXXXXXXX at the current position
func (p *termParser) processUnicodeEscape() (string, error) {
	if p.pos+1 >= p.length {
		return "", errors.New("unexpected end of input in escape sequence")
	}
	var digits int
	switch p.input[p.pos+1] {
	case 'u':
		digits = 4
	case 'U':
		digits = 8
	default:
		return "", errors.Newf("invalid escape sequence at position %d", p.pos)
	}
	p.pos += 2
	if p.pos+digits > p.length {
		return "", errors.New("incomplete unicode escape sequence")
	}
	hex := p.input[p.pos : p.pos+digits]
	codePoint, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return "", errors.Newf("invalid hex digits in unicode escape: %s", hex)
	}
	p.pos += digits
	return string(rune(codePoint)), nil
}
