// Package sparql parses the SPARQL subset served by tritensor: SELECT and
// ASK over a basic graph pattern with DISTINCT, LIMIT and OFFSET, plus
// INSERT DATA and DELETE DATA updates.
package sparql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aleksaelezovic/tritensor/pkg/rdf"
	"github.com/cockroachdb/errors"
)

// ParseError reports malformed query text
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s", e.Pos, e.Msg)
}

// ErrUnsupported marks well-formed SPARQL outside the supported subset
var ErrUnsupported = errors.New("unsupported SPARQL feature")

// Parse parses a SELECT or ASK query
func Parse(text string) (*Query, error) {
	p := newParser(text)
	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	q.Text = text
	return q, nil
}

// ParseUpdate parses an INSERT DATA or DELETE DATA request
func ParseUpdate(text string) (*UpdateData, error) {
	return newParser(text).parseUpdate()
}

// Parser parses SPARQL text
type Parser struct {
	input    string
	pos      int
	length   int
	prefixes map[string]string
	base     string
	anon     int
}

func newParser(input string) *Parser {
	return &Parser{
		input:    input,
		length:   len(input),
		prefixes: make(map[string]string),
	}
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return &ParseError{Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) unsupported(feature string) error {
	return errors.Mark(p.errorf("%s is not supported", feature), ErrUnsupported)
}

func (p *Parser) parseQuery() (*Query, error) {
	if err := p.parsePrologue(); err != nil {
		return nil, err
	}
	q := &Query{Prefixes: p.prefixes}

	switch {
	case p.matchKeyword("SELECT"):
		q.Form = QueryFormSelect
		if p.matchKeyword("DISTINCT") {
			q.Distinct = true
		} else if p.matchKeyword("REDUCED") {
			return nil, p.unsupported("REDUCED")
		}
		if err := p.parseProjection(q); err != nil {
			return nil, err
		}
	case p.matchKeyword("ASK"):
		q.Form = QueryFormAsk
	case p.matchKeyword("CONSTRUCT"):
		return nil, p.unsupported("CONSTRUCT")
	case p.matchKeyword("DESCRIBE"):
		return nil, p.unsupported("DESCRIBE")
	default:
		return nil, p.errorf("expected SELECT or ASK")
	}

	p.matchKeyword("WHERE")
	where, err := p.parseGroupGraphPattern()
	if err != nil {
		return nil, err
	}
	q.Where = where

	if err := p.parseModifiers(q); err != nil {
		return nil, err
	}

	p.skipWhitespace()
	if p.pos < p.length {
		return nil, p.errorf("unexpected input %q", p.snippet())
	}

	if q.Form == QueryFormSelect && !q.Star {
		bound := make(map[string]bool)
		for _, name := range q.PatternVariables(false) {
			bound[name] = true
		}
		// projecting an unbound variable is legal SPARQL; it yields unbound
		// cells, which this subset has no representation for
		for _, v := range q.Variables {
			if !bound[v.Name] {
				return nil, errors.Mark(&ParseError{Pos: p.pos,
					Msg: fmt.Sprintf("projected variable ?%s does not occur in the pattern", v.Name)}, ErrUnsupported)
			}
		}
	}
	return q, nil
}

func (p *Parser) parsePrologue() error {
	for {
		switch {
		case p.matchKeyword("PREFIX"):
			p.skipWhitespace()
			start := p.pos
			for p.pos < p.length && p.input[p.pos] != ':' && !isSpace(p.input[p.pos]) {
				p.pos++
			}
			if p.peek() != ':' {
				return p.errorf("expected ':' after prefix name")
			}
			name := p.input[start:p.pos]
			p.advance()
			p.skipWhitespace()
			iri, err := p.parseIRIRef()
			if err != nil {
				return err
			}
			p.prefixes[name] = iri
		case p.matchKeyword("BASE"):
			p.skipWhitespace()
			iri, err := p.parseIRIRef()
			if err != nil {
				return err
			}
			p.base = iri
		default:
			return nil
		}
	}
}

func (p *Parser) parseProjection(q *Query) error {
	p.skipWhitespace()
	if p.peek() == '*' {
		p.advance()
		q.Star = true
		return nil
	}
	seen := make(map[string]bool)
	for {
		p.skipWhitespace()
		ch := p.peek()
		if ch == '(' {
			return p.unsupported("projection expressions")
		}
		if ch != '?' && ch != '$' {
			break
		}
		v, err := p.parseVariable()
		if err != nil {
			return err
		}
		if !seen[v.Name] {
			seen[v.Name] = true
			q.Variables = append(q.Variables, v)
		}
	}
	if len(q.Variables) == 0 {
		return p.errorf("expected variables or '*' after SELECT")
	}
	return nil
}

func (p *Parser) parseModifiers(q *Query) error {
	for {
		switch {
		case p.matchKeyword("LIMIT"):
			n, err := p.parseInteger()
			if err != nil {
				return err
			}
			q.Limit = &n
		case p.matchKeyword("OFFSET"):
			n, err := p.parseInteger()
			if err != nil {
				return err
			}
			q.Offset = &n
		case p.matchKeyword("ORDER"):
			return p.unsupported("ORDER BY")
		case p.matchKeyword("GROUP"):
			return p.unsupported("GROUP BY")
		default:
			return nil
		}
	}
}

// parseGroupGraphPattern parses { triples } into triple patterns
func (p *Parser) parseGroupGraphPattern() ([]*TriplePattern, error) {
	p.skipWhitespace()
	if p.peek() != '{' {
		return nil, p.errorf("expected '{'")
	}
	p.advance()

	var patterns []*TriplePattern
	for {
		p.skipWhitespace()
		switch ch := p.peek(); {
		case ch == '}':
			p.advance()
			return patterns, nil
		case ch == 0:
			return nil, p.errorf("unclosed '{'")
		case ch == '{':
			return nil, p.unsupported("nested group patterns")
		}
		if err := p.unsupportedClause(); err != nil {
			return nil, err
		}

		block, err := p.parseTriplesSameSubject(true)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, block...)

		p.skipWhitespace()
		switch p.peek() {
		case '.':
			p.advance()
		case '}':
		default:
			if err := p.unsupportedClause(); err != nil {
				return nil, err
			}
			return nil, p.errorf("expected '.' or '}' after triple pattern")
		}
	}
}

// unsupportedClause rejects graph pattern clauses beyond plain triples
func (p *Parser) unsupportedClause() error {
	for _, kw := range []string{"FILTER", "OPTIONAL", "UNION", "MINUS", "GRAPH", "BIND", "VALUES", "SERVICE"} {
		if p.matchKeyword(kw) {
			return p.unsupported(kw)
		}
	}
	return nil
}

// parseTriplesSameSubject parses one subject with its ';' and ',' separated
// predicate-object lists
func (p *Parser) parseTriplesSameSubject(allowVariables bool) ([]*TriplePattern, error) {
	subject, err := p.parseTermOrVariable(allowVariables)
	if err != nil {
		return nil, err
	}
	if !subject.IsVariable() && subject.Term.Type() == rdf.TermTypeLiteral {
		return nil, p.errorf("literal %s cannot be a subject", subject.Term)
	}

	var patterns []*TriplePattern
	for {
		p.skipWhitespace()
		var predicate TermOrVariable
		if p.matchA() {
			predicate = TermOrVariable{Term: rdf.RDFType}
		} else {
			predicate, err = p.parseTermOrVariable(allowVariables)
			if err != nil {
				return nil, err
			}
			if !predicate.IsVariable() && predicate.Term.Type() != rdf.TermTypeNamedNode {
				return nil, p.errorf("predicate %s must be an IRI", predicate.Term)
			}
		}

		for {
			object, err := p.parseTermOrVariable(allowVariables)
			if err != nil {
				return nil, err
			}
			patterns = append(patterns, &TriplePattern{Subject: subject, Predicate: predicate, Object: object})

			p.skipWhitespace()
			if p.peek() != ',' {
				break
			}
			p.advance()
		}

		p.skipWhitespace()
		if p.peek() != ';' {
			return patterns, nil
		}
		for p.peek() == ';' {
			p.advance()
			p.skipWhitespace()
		}
		if ch := p.peek(); ch == '.' || ch == '}' {
			return patterns, nil
		}
	}
}

// matchA consumes the keyword 'a' used as a predicate
func (p *Parser) matchA() bool {
	if p.peek() != 'a' {
		return false
	}
	if p.pos+1 < p.length && !isSpace(p.input[p.pos+1]) && p.input[p.pos+1] != '<' && p.input[p.pos+1] != '?' {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) parseTermOrVariable(allowVariables bool) (TermOrVariable, error) {
	p.skipWhitespace()
	switch ch := p.peek(); {
	case ch == '?' || ch == '$':
		if !allowVariables {
			return TermOrVariable{}, p.errorf("variables are not allowed in data")
		}
		v, err := p.parseVariable()
		if err != nil {
			return TermOrVariable{}, err
		}
		return TermOrVariable{Variable: v}, nil
	case ch == '<':
		iri, err := p.parseIRIRef()
		if err != nil {
			return TermOrVariable{}, err
		}
		return TermOrVariable{Term: rdf.NewNamedNode(iri)}, nil
	case ch == '_':
		label, err := p.parseBlankNodeLabel()
		if err != nil {
			return TermOrVariable{}, err
		}
		if allowVariables {
			return TermOrVariable{Variable: &Variable{Name: "_:" + label, Blank: true}}, nil
		}
		return TermOrVariable{Term: rdf.NewBlankNode(label)}, nil
	case ch == '[':
		p.advance()
		p.skipWhitespace()
		if p.peek() != ']' {
			return TermOrVariable{}, p.unsupported("blank node property lists")
		}
		p.advance()
		p.anon++
		label := fmt.Sprintf("anon%d", p.anon)
		if allowVariables {
			return TermOrVariable{Variable: &Variable{Name: "_:" + label, Blank: true}}, nil
		}
		return TermOrVariable{Term: rdf.NewBlankNode(label)}, nil
	case ch == '(':
		return TermOrVariable{}, p.unsupported("collections")
	case ch == '"' || ch == '\'':
		lit, err := p.parseStringLiteral()
		if err != nil {
			return TermOrVariable{}, err
		}
		return TermOrVariable{Term: lit}, nil
	case ch == '+' || ch == '-' || ch == '.' || isDigit(ch):
		lit, err := p.parseNumericLiteral()
		if err != nil {
			return TermOrVariable{}, err
		}
		return TermOrVariable{Term: lit}, nil
	case ch == 0:
		return TermOrVariable{}, p.errorf("unexpected end of input")
	default:
		if p.matchKeyword("true") {
			return TermOrVariable{Term: rdf.NewBooleanLiteral(true)}, nil
		}
		if p.matchKeyword("false") {
			return TermOrVariable{Term: rdf.NewBooleanLiteral(false)}, nil
		}
		iri, err := p.parsePrefixedName()
		if err != nil {
			return TermOrVariable{}, err
		}
		return TermOrVariable{Term: rdf.NewNamedNode(iri)}, nil
	}
}

func (p *Parser) parseVariable() (*Variable, error) {
	p.advance()
	start := p.pos
	for p.pos < p.length && isNameChar(p.input[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return nil, p.errorf("empty variable name")
	}
	return &Variable{Name: p.input[start:p.pos]}, nil
}

// parseIRIRef parses <iri> and resolves it against BASE
func (p *Parser) parseIRIRef() (string, error) {
	if p.peek() != '<' {
		return "", p.errorf("expected '<'")
	}
	p.advance()
	start := p.pos
	for p.pos < p.length && p.input[p.pos] != '>' {
		ch := p.input[p.pos]
		if ch == ' ' || ch == '<' || ch == '"' || ch == '{' || ch == '}' || ch <= 0x1F {
			return "", p.errorf("invalid character %q in IRI", ch)
		}
		p.pos++
	}
	if p.pos >= p.length {
		return "", p.errorf("unclosed IRI")
	}
	iri := p.input[start:p.pos]
	p.advance()
	return p.resolve(iri)
}

func (p *Parser) resolve(iri string) (string, error) {
	if strings.Contains(iri, ":") {
		return iri, nil
	}
	if p.base == "" {
		return "", p.errorf("relative IRI <%s> without BASE", iri)
	}
	if strings.HasPrefix(iri, "#") || strings.HasSuffix(p.base, "/") || strings.HasSuffix(p.base, "#") {
		return p.base + iri, nil
	}
	if i := strings.LastIndexByte(p.base, '/'); i >= 0 {
		return p.base[:i+1] + iri, nil
	}
	return p.base + iri, nil
}

func (p *Parser) parsePrefixedName() (string, error) {
	start := p.pos
	for p.pos < p.length && p.input[p.pos] != ':' && isNameChar(p.input[p.pos]) {
		p.pos++
	}
	if p.peek() != ':' {
		p.pos = start
		return "", p.errorf("unexpected input %q", p.snippet())
	}
	prefix := p.input[start:p.pos]
	ns, ok := p.prefixes[prefix]
	if !ok {
		p.pos = start
		return "", p.errorf("undefined prefix %q", prefix)
	}
	p.advance()

	localStart := p.pos
	for p.pos < p.length {
		ch := p.input[p.pos]
		if isNameChar(ch) || ch == ':' || ch == '.' || ch == '%' || ch >= 0x80 {
			p.pos++
			continue
		}
		if ch == '\\' && p.pos+1 < p.length {
			p.pos += 2
			continue
		}
		break
	}
	// a trailing '.' ends the triple
	for p.pos > localStart && p.input[p.pos-1] == '.' {
		p.pos--
	}
	local := strings.ReplaceAll(p.input[localStart:p.pos], "\\", "")
	return ns + local, nil
}

func (p *Parser) parseBlankNodeLabel() (string, error) {
	if p.pos+1 >= p.length || p.input[p.pos+1] != ':' {
		return "", p.errorf("expected '_:'")
	}
	p.pos += 2
	start := p.pos
	for p.pos < p.length && (isNameChar(p.input[p.pos]) || p.input[p.pos] == '.') {
		p.pos++
	}
	for p.pos > start && p.input[p.pos-1] == '.' {
		p.pos--
	}
	if p.pos == start {
		return "", p.errorf("empty blank node label")
	}
	return p.input[start:p.pos], nil
}

func (p *Parser) parseStringLiteral() (*rdf.Literal, error) {
	quote := p.input[p.pos]
	long := strings.HasPrefix(p.input[p.pos:], strings.Repeat(string(quote), 3))
	if long {
		p.pos += 3
	} else {
		p.pos++
	}

	var value strings.Builder
	for {
		if p.pos >= p.length {
			return nil, p.errorf("unclosed string literal")
		}
		ch := p.input[p.pos]
		if long && strings.HasPrefix(p.input[p.pos:], strings.Repeat(string(quote), 3)) {
			p.pos += 3
			break
		}
		if !long && ch == quote {
			p.pos++
			break
		}
		if !long && (ch == '\n' || ch == '\r') {
			return nil, p.errorf("line break in string literal")
		}
		if ch != '\\' {
			value.WriteByte(ch)
			p.pos++
			continue
		}
		if p.pos+1 >= p.length {
			return nil, p.errorf("unexpected end of input in escape sequence")
		}
		switch esc := p.input[p.pos+1]; esc {
		case 't':
			value.WriteByte('\t')
		case 'n':
			value.WriteByte('\n')
		case 'r':
			value.WriteByte('\r')
		case 'b':
			value.WriteByte('\b')
		case 'f':
			value.WriteByte('\f')
		case '"', '\'', '\\':
			value.WriteByte(esc)
		case 'u', 'U':
			digits := 4
			if esc == 'U' {
				digits = 8
			}
			if p.pos+2+digits > p.length {
				return nil, p.errorf("incomplete unicode escape")
			}
			cp, err := strconv.ParseUint(p.input[p.pos+2:p.pos+2+digits], 16, 32)
			if err != nil {
				return nil, p.errorf("invalid unicode escape")
			}
			value.WriteRune(rune(cp))
			p.pos += 2 + digits
			continue
		default:
			return nil, p.errorf("invalid escape sequence \\%c", esc)
		}
		p.pos += 2
	}

	switch {
	case p.peek() == '@':
		p.advance()
		start := p.pos
		for p.pos < p.length && (isAlpha(p.input[p.pos]) || isDigit(p.input[p.pos]) || p.input[p.pos] == '-') {
			p.pos++
		}
		if p.pos == start {
			return nil, p.errorf("empty language tag")
		}
		return rdf.NewLiteralWithLanguage(value.String(), p.input[start:p.pos]), nil
	case strings.HasPrefix(p.input[p.pos:], "^^"):
		p.pos += 2
		var datatype string
		var err error
		if p.peek() == '<' {
			datatype, err = p.parseIRIRef()
		} else {
			datatype, err = p.parsePrefixedName()
		}
		if err != nil {
			return nil, err
		}
		return rdf.NewLiteralWithDatatype(value.String(), rdf.NewNamedNode(datatype)), nil
	}
	return rdf.NewLiteral(value.String()), nil
}

func (p *Parser) parseNumericLiteral() (*rdf.Literal, error) {
	start := p.pos
	if ch := p.peek(); ch == '+' || ch == '-' {
		p.advance()
	}
	digits := 0
	for isDigit(p.peek()) {
		p.advance()
		digits++
	}
	datatype := rdf.XSDInteger
	// a '.' followed by a digit is a decimal point, otherwise it ends the triple
	if p.peek() == '.' && p.pos+1 < p.length && isDigit(p.input[p.pos+1]) {
		datatype = rdf.XSDDecimal
		p.advance()
		for isDigit(p.peek()) {
			p.advance()
			digits++
		}
	}
	if ch := p.peek(); (ch == 'e' || ch == 'E') && digits > 0 {
		datatype = rdf.XSDDouble
		p.advance()
		if ch := p.peek(); ch == '+' || ch == '-' {
			p.advance()
		}
		if !isDigit(p.peek()) {
			return nil, p.errorf("malformed exponent")
		}
		for isDigit(p.peek()) {
			p.advance()
		}
	}
	if digits == 0 {
		p.pos = start
		return nil, p.errorf("malformed number")
	}
	return rdf.NewLiteralWithDatatype(p.input[start:p.pos], datatype), nil
}

func (p *Parser) parseInteger() (int, error) {
	p.skipWhitespace()
	start := p.pos
	for isDigit(p.peek()) {
		p.advance()
	}
	if start == p.pos {
		return 0, p.errorf("expected integer")
	}
	n, err := strconv.Atoi(p.input[start:p.pos])
	if err != nil {
		return 0, p.errorf("integer out of range: %s", p.input[start:p.pos])
	}
	return n, nil
}

func (p *Parser) peek() byte {
	if p.pos >= p.length {
		return 0
	}
	return p.input[p.pos]
}

func (p *Parser) advance() {
	if p.pos < p.length {
		p.pos++
	}
}

// skipWhitespace skips whitespace and # comments
func (p *Parser) skipWhitespace() {
	for p.pos < p.length {
		ch := p.input[p.pos]
		if isSpace(ch) {
			p.pos++
			continue
		}
		if ch == '#' {
			for p.pos < p.length && p.input[p.pos] != '\n' {
				p.pos++
			}
			continue
		}
		return
	}
}

// matchKeyword consumes keyword case-insensitively if it is followed by a
// non-name character
func (p *Parser) matchKeyword(keyword string) bool {
	p.skipWhitespace()
	end := p.pos + len(keyword)
	if end > p.length || !strings.EqualFold(p.input[p.pos:end], keyword) {
		return false
	}
	if end < p.length && (isNameChar(p.input[end]) || p.input[end] == ':') {
		return false
	}
	p.pos = end
	return true
}

func (p *Parser) snippet() string {
	end := min(p.pos+20, p.length)
	return p.input[p.pos:end]
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isAlpha(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isNameChar(ch byte) bool {
	return isAlpha(ch) || isDigit(ch) || ch == '_' || ch == '-'
}
