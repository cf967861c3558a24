package encoding

import (
	"github.com/aleksaelezovic/tritensor/pkg/rdf"
	"github.com/cockroachdb/errors"
)

// TermDecoder turns dictionary strings back into terms
type TermDecoder struct{}

// NewTermDecoder creates a new term decoder
func NewTermDecoder() *TermDecoder {
	return &TermDecoder{}
}

// DecodeTerm parses the canonical string stored for encoded and checks that
// it agrees with the type byte.
func (d *TermDecoder) DecodeTerm(encoded EncodedTerm, canonical string) (rdf.Term, error) {
	term, err := rdf.ParseTerm(canonical)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding dictionary entry %q", canonical)
	}
	if term.Type() != encoded.Type() {
		return nil, errors.AssertionFailedf("dictionary entry %q has type %s, key says %s",
			canonical, term.Type(), encoded.Type())
	}
	return term, nil
}

// DecodeKey splits an index key into its encoded terms
func DecodeKey(key []byte) ([]EncodedTerm, error) {
	if len(key)%EncodedTermSize != 0 {
		return nil, errors.Newf("key length %d is not a multiple of %d", len(key), EncodedTermSize)
	}
	terms := make([]EncodedTerm, len(key)/EncodedTermSize)
	for i := range terms {
		copy(terms[i][:], key[i*EncodedTermSize:(i+1)*EncodedTermSize])
	}
	return terms, nil
}
