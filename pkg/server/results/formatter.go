// Package results renders solution sequences in the SPARQL 1.1 result
// formats: JSON, XML, CSV and TSV.
package results

import (
	"strings"

	"github.com/aleksaelezovic/tritensor/pkg/tensor"
)

// Table is a sequence of solutions. *store.Solutions implements it.
type Table interface {
	Variables() []string
	Next() bool
	Entry() tensor.Entry
	Err() error
}

// Format is a SPARQL result serialization
type Format int

const (
	FormatJSON Format = iota
	FormatXML
	FormatCSV
	FormatTSV
)

// ContentType returns the media type sent for f
func (f Format) ContentType() string {
	switch f {
	case FormatXML:
		return "application/sparql-results+xml; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatTSV:
		return "text/tab-separated-values; charset=utf-8"
	default:
		return "application/sparql-results+json; charset=utf-8"
	}
}

// Negotiate picks the format for an Accept header. JSON is the default.
func Negotiate(accept string) Format {
	accept = strings.ToLower(accept)
	switch {
	case strings.Contains(accept, "application/sparql-results+xml"):
		return FormatXML
	case strings.Contains(accept, "application/sparql-results+json"):
		return FormatJSON
	case strings.Contains(accept, "text/csv"):
		return FormatCSV
	case strings.Contains(accept, "text/tab-separated-values"):
		return FormatTSV
	case strings.Contains(accept, "application/json"):
		return FormatJSON
	case strings.Contains(accept, "text/xml"), strings.Contains(accept, "application/xml"):
		return FormatXML
	default:
		return FormatJSON
	}
}

// Select drains t and renders it. Nothing is returned when t ends with an
// error, so a timed out evaluation never yields a partial document.
func Select(f Format, t Table) ([]byte, error) {
	switch f {
	case FormatXML:
		return FormatSelectXML(t)
	case FormatCSV:
		return FormatSelectCSV(t)
	case FormatTSV:
		return FormatSelectTSV(t)
	default:
		return FormatSelectJSON(t)
	}
}

// Ask renders a boolean result
func Ask(f Format, result bool) ([]byte, error) {
	switch f {
	case FormatXML:
		return FormatAskXML(result)
	case FormatCSV:
		return FormatAskCSV(result)
	case FormatTSV:
		return FormatAskTSV(result), nil
	default:
		return FormatAskJSON(result)
	}
}
