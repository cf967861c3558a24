package encoding

import (
	"encoding/binary"

	"github.com/aleksaelezovic/tritensor/pkg/rdf"
	"github.com/cockroachdb/errors"
	"github.com/zeebo/xxh3"
)

// EncodedTermSize is a type byte followed by a 128-bit hash
const EncodedTermSize = 17

// EncodedTerm is the fixed-size identifier of a term inside index keys
type EncodedTerm [EncodedTermSize]byte

// ErrUnsupportedTerm is returned for nil terms or term implementations
// outside the rdf package
var ErrUnsupportedTerm = errors.New("unsupported term")

// Type returns the term type recorded in the first byte
func (e EncodedTerm) Type() rdf.TermType {
	return rdf.TermType(e[0])
}

// TermEncoder maps terms to their identifiers. The identifier is derived
// from the canonical N-Triples form, so equal terms always share one.
type TermEncoder struct{}

func NewTermEncoder() *TermEncoder {
	return &TermEncoder{}
}

// Hash128 computes a 128-bit xxhash3 hash of the input string
func (e *TermEncoder) Hash128(s string) [16]byte {
	hash := xxh3.HashString128(s)
	var result [16]byte
	binary.BigEndian.PutUint64(result[0:8], hash.Hi)
	binary.BigEndian.PutUint64(result[8:16], hash.Lo)
	return result
}

// EncodeTerm returns the identifier of term together with the canonical
// string the dictionary stores for it.
func (e *TermEncoder) EncodeTerm(term rdf.Term) (EncodedTerm, string, error) {
	var encoded EncodedTerm
	switch term.(type) {
	case *rdf.NamedNode, *rdf.BlankNode, *rdf.Literal:
	default:
		return encoded, "", errors.Wrapf(ErrUnsupportedTerm, "%T", term)
	}
	canonical := term.String()
	encoded[0] = byte(term.Type())
	hash := e.Hash128(canonical)
	copy(encoded[1:], hash[:])
	return encoded, canonical, nil
}

// EncodeKey concatenates encoded terms into an index key or key prefix
func EncodeKey(terms ...EncodedTerm) []byte {
	key := make([]byte, 0, len(terms)*EncodedTermSize)
	for _, t := range terms {
		key = append(key, t[:]...)
	}
	return key
}
