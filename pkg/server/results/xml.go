package results

import (
	"bytes"
	"encoding/xml"

	"github.com/aleksaelezovic/tritensor/pkg/rdf"
)

// SPARQL XML Results Format
// https://www.w3.org/TR/rdf-sparql-XMLres/

const sparqlResultsNS = "http://www.w3.org/2005/sparql-results#"

// Results is the <sparql> document
type Results struct {
	XMLName xml.Name        `xml:"sparql"`
	XMLNS   string          `xml:"xmlns,attr"`
	Head    Head            `xml:"head"`
	Results *ResultsElement `xml:"results,omitempty"`
	Boolean *bool           `xml:"boolean,omitempty"`
}

// Head represents the head element with variable names
type Head struct {
	Variables []Variable `xml:"variable"`
}

// Variable represents a variable declaration
type Variable struct {
	Name string `xml:"name,attr"`
}

// ResultsElement contains the result bindings
type ResultsElement struct {
	Results []Result `xml:"result"`
}

// Result represents a single solution
type Result struct {
	Bindings []Binding `xml:"binding"`
}

// Binding represents a variable binding in a result
type Binding struct {
	Name    string   `xml:"name,attr"`
	URI     *string  `xml:"uri"`
	Literal *Literal `xml:"literal"`
	BNode   *string  `xml:"bnode"`
}

// Literal represents a literal value
type Literal struct {
	Value    string `xml:",chardata"`
	Lang     string `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Datatype string `xml:"datatype,attr,omitempty"`
}

// FormatSelectXML renders t in SPARQL XML format
func FormatSelectXML(t Table) ([]byte, error) {
	vars := t.Variables()
	doc := Results{XMLNS: sparqlResultsNS, Results: &ResultsElement{}}
	for _, name := range vars {
		doc.Head.Variables = append(doc.Head.Variables, Variable{Name: name})
	}

	for t.Next() {
		var result Result
		for i, term := range t.Entry() {
			if term != nil {
				result.Bindings = append(result.Bindings, termToBinding(vars[i], term))
			}
		}
		doc.Results.Results = append(doc.Results.Results, result)
	}
	if err := t.Err(); err != nil {
		return nil, err
	}
	return marshalXML(doc)
}

// FormatAskXML renders an ASK result in SPARQL XML format
func FormatAskXML(result bool) ([]byte, error) {
	return marshalXML(Results{XMLNS: sparqlResultsNS, Boolean: &result})
}

func marshalXML(doc Results) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func termToBinding(name string, term rdf.Term) Binding {
	b := Binding{Name: name}
	switch t := term.(type) {
	case *rdf.NamedNode:
		b.URI = &t.IRI
	case *rdf.BlankNode:
		b.BNode = &t.ID
	case *rdf.Literal:
		lit := &Literal{Value: t.Value, Lang: t.Language}
		if t.Datatype != nil {
			lit.Datatype = t.Datatype.IRI
		}
		b.Literal = lit
	default:
		b.Literal = &Literal{Value: term.String()}
	}
	return b
}
