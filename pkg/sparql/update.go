package sparql

import (
	"github.com/aleksaelezovic/tritensor/pkg/rdf"
)

func (p *Parser) parseUpdate() (*UpdateData, error) {
	if err := p.parsePrologue(); err != nil {
		return nil, err
	}

	update := &UpdateData{}
	var keyword string
	switch {
	case p.matchKeyword("INSERT"):
		update.Operation, keyword = UpdateInsertData, "INSERT"
	case p.matchKeyword("DELETE"):
		update.Operation, keyword = UpdateDeleteData, "DELETE"
	default:
		for _, kw := range []string{"LOAD", "CLEAR", "CREATE", "DROP", "COPY", "MOVE", "ADD", "WITH"} {
			if p.matchKeyword(kw) {
				return nil, p.unsupported(kw)
			}
		}
		return nil, p.errorf("expected INSERT DATA or DELETE DATA")
	}
	if !p.matchKeyword("DATA") {
		return nil, p.unsupported(keyword + " with a WHERE clause")
	}

	p.skipWhitespace()
	if p.peek() != '{' {
		return nil, p.errorf("expected '{'")
	}
	p.advance()

	for {
		p.skipWhitespace()
		switch p.peek() {
		case '}':
			p.advance()
			p.skipWhitespace()
			if p.peek() == ';' {
				p.advance()
				p.skipWhitespace()
			}
			if p.pos < p.length {
				return nil, p.unsupported("multiple update operations")
			}
			return update, nil
		case 0:
			return nil, p.errorf("unclosed '{'")
		}
		if p.matchKeyword("GRAPH") {
			return nil, p.unsupported("GRAPH")
		}

		patterns, err := p.parseTriplesSameSubject(false)
		if err != nil {
			return nil, err
		}
		for _, tp := range patterns {
			triple := rdf.NewTriple(tp.Subject.Term, tp.Predicate.Term, tp.Object.Term)
			if update.Operation == UpdateDeleteData {
				for _, term := range []rdf.Term{triple.Subject, triple.Object} {
					if term.Type() == rdf.TermTypeBlankNode {
						return nil, p.errorf("blank nodes are not allowed in DELETE DATA")
					}
				}
			}
			update.Triples = append(update.Triples, triple)
		}

		p.skipWhitespace()
		if p.peek() == '.' {
			p.advance()
		} else if p.peek() != '}' {
			return nil, p.errorf("expected '.' or '}' after triple")
		}
	}
}
