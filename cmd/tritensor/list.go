package main

import (
	"fmt"
	"strings"

	"github.com/aleksaelezovic/tritensor/pkg/rdf"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <node>",
	Short: "Print the members of an RDF list",
	Long: `Print the members of the RDF list (rdf:first / rdf:rest chain) starting at
node. The node is an IRI, <iri> or _:label.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		node, err := parseNode(args[0])
		if err != nil {
			return err
		}
		db, err := openDatabase(cfg.Storage)
		if err != nil {
			return err
		}
		defer db.Close()

		members, err := db.store.GetRDFList(node)
		if err != nil {
			return err
		}
		for i, m := range members {
			fmt.Printf("%d\t%s\n", i, m)
		}
		return nil
	},
}

func parseNode(s string) (rdf.Term, error) {
	if strings.HasPrefix(s, "<") || strings.HasPrefix(s, "_:") {
		term, err := rdf.ParseTerm(s)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid node %q", s)
		}
		return term, nil
	}
	return rdf.NewNamedNode(s), nil
}
