package main

import (
	"fmt"
	"os"

	"github.com/aleksaelezovic/tritensor/internal/config"
	"github.com/aleksaelezovic/tritensor/pkg/rdf"
	"github.com/aleksaelezovic/tritensor/pkg/sparql"
	"github.com/aleksaelezovic/tritensor/pkg/store"
	"github.com/aleksaelezovic/tritensor/pkg/tensor"
	"github.com/spf13/cobra"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a demo with sample data in an in-memory store",
	RunE:  runDemo,
}

func runDemo(cmd *cobra.Command, args []string) error {
	fmt.Println("=== tritensor demo ===")
	fmt.Println()

	db, err := openDatabase(config.StorageConfig{InMemory: true, TermCacheMB: cfg.Storage.TermCacheMB})
	if err != nil {
		return err
	}
	defer db.Close()

	alice := rdf.NewNamedNode("http://example.org/alice")
	bob := rdf.NewNamedNode("http://example.org/bob")
	carol := rdf.NewNamedNode("http://example.org/carol")
	knows := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/knows")
	name := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name")
	age := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/age")
	friends := rdf.NewNamedNode("http://example.org/friends")
	cell1, cell2 := rdf.NewBlankNode("c1"), rdf.NewBlankNode("c2")

	triples := []*rdf.Triple{
		rdf.NewTriple(alice, name, rdf.NewLiteral("Alice")),
		rdf.NewTriple(alice, age, rdf.NewIntegerLiteral(30)),
		rdf.NewTriple(alice, knows, bob),
		rdf.NewTriple(bob, name, rdf.NewLiteral("Bob")),
		rdf.NewTriple(bob, age, rdf.NewIntegerLiteral(25)),
		rdf.NewTriple(bob, knows, carol),
		rdf.NewTriple(carol, name, rdf.NewLiteral("Carol")),
		rdf.NewTriple(carol, age, rdf.NewIntegerLiteral(28)),
		rdf.NewTriple(alice, friends, cell1),
		rdf.NewTriple(cell1, rdf.RDFFirst, bob),
		rdf.NewTriple(cell1, rdf.RDFRest, cell2),
		rdf.NewTriple(cell2, rdf.RDFFirst, carol),
		rdf.NewTriple(cell2, rdf.RDFRest, rdf.RDFNil),
	}
	entries := make([]tensor.NonZeroEntry, len(triples))
	for i, t := range triples {
		entries[i] = tensor.EntryOf(t)
		fmt.Printf("  ✓ %s\n", t)
	}

	wl := db.store.AcquireWriterLock()
	n, err := db.store.Insert(entries, wl)
	wl.Release()
	if err != nil {
		return err
	}
	fmt.Printf("\nInserted %d triples\n\n", n)

	query := `PREFIX foaf: <http://xmlns.com/foaf/0.1/>
SELECT ?person ?name ?age WHERE {
	?person foaf:name ?name ;
	        foaf:age ?age .
}`
	fmt.Printf("Query:\n%s\n\n", query)
	q, err := sparql.Parse(query)
	if err != nil {
		return err
	}
	sol, err := db.store.EvalSelect(q, store.NoDeadline)
	if err != nil {
		return err
	}
	_, err = printSolutions(os.Stdout, sol, true)
	sol.Close()
	if err != nil {
		return err
	}

	members, err := db.store.GetRDFList(cell1)
	if err != nil {
		return err
	}
	fmt.Printf("\nFriends of alice (RDF list):\n")
	for _, m := range members {
		fmt.Printf("  - %s\n", formatTerm(m, true))
	}

	fmt.Println("\n=== Demo complete ===")
	return nil
}
