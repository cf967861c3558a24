package store

import (
	"fmt"

	"github.com/aleksaelezovic/tritensor/pkg/rdf"
	"github.com/aleksaelezovic/tritensor/pkg/tensor"
	"github.com/cockroachdb/errors"
)

// ErrMalformedList is matched by every *MalformedListError
var ErrMalformedList = errors.New("malformed RDF list")

// MalformedListError names the node where a list walk failed
type MalformedListError struct {
	Node   rdf.Term
	Reason string
}

func (e *MalformedListError) Error() string {
	return fmt.Sprintf("%s at %s: %s", ErrMalformedList, e.Node, e.Reason)
}

// Is makes errors.Is(err, ErrMalformedList) hold
func (e *MalformedListError) Is(target error) bool {
	return target == ErrMalformedList
}

// IsRDFList reports whether node is rdf:nil or a list cell: a node with
// exactly one rdf:first and exactly one rdf:rest.
func (s *TripleStore) IsRDFList(node rdf.Term) (bool, error) {
	snap, err := s.tensor.Snapshot()
	if err != nil {
		return false, err
	}
	defer snap.Close()
	return isListNode(snap, node)
}

func isListNode(snap *tensor.Snapshot, node rdf.Term) (bool, error) {
	if node == nil {
		return false, errors.AssertionFailedf("nil list node")
	}
	if node.Equals(rdf.RDFNil) {
		return true, nil
	}
	for _, p := range []rdf.Term{rdf.RDFFirst, rdf.RDFRest} {
		n, err := snap.Count(tensor.SliceKey{node, p, nil})
		if err != nil {
			return false, err
		}
		if n != 1 {
			return false, nil
		}
	}
	return true, nil
}

// GetRDFList returns the members of the list starting at node in order. A
// node on the way that is not a list cell, or a walk longer than the store
// (a cycle), yields a *MalformedListError.
func (s *TripleStore) GetRDFList(node rdf.Term) ([]rdf.Term, error) {
	if node == nil {
		return nil, errors.AssertionFailedf("nil list node")
	}
	snap, err := s.tensor.Snapshot()
	if err != nil {
		return nil, err
	}
	defer snap.Close()

	size, err := snap.Size()
	if err != nil {
		return nil, err
	}

	var members []rdf.Term
	for steps := uint64(0); ; steps++ {
		if node.Equals(rdf.RDFNil) {
			return members, nil
		}
		if steps >= size {
			return nil, &MalformedListError{Node: node, Reason: "list does not terminate"}
		}
		ok, err := isListNode(snap, node)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &MalformedListError{Node: node, Reason: "expected exactly one rdf:first and one rdf:rest"}
		}

		first, err := object(snap, node, rdf.RDFFirst)
		if err != nil {
			return nil, err
		}
		rest, err := object(snap, node, rdf.RDFRest)
		if err != nil {
			return nil, err
		}
		members = append(members, first)
		node = rest
	}
}

// object returns the object of the single (subject, predicate, ?) tuple
func object(snap *tensor.Snapshot, subject, predicate rdf.Term) (rdf.Term, error) {
	it := snap.Scan(tensor.SliceKey{subject, predicate, nil})
	defer it.Close()
	if !it.Next() {
		if err := it.Err(); err != nil {
			return nil, err
		}
		return nil, errors.AssertionFailedf("%s %s vanished from snapshot", subject, predicate)
	}
	return it.Entry()[2], nil
}
