package main

import (
	"fmt"
	"os"
	"time"

	"github.com/aleksaelezovic/tritensor/pkg/rdf"
	"github.com/aleksaelezovic/tritensor/pkg/store"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var loadBulkSize uint32

var loadCmd = &cobra.Command{
	Use:   "load <file.nt>...",
	Short: "Bulk load N-Triples files",
	Long: `Bulk load N-Triples files (optionally gzip compressed, by .gz suffix).

Malformed lines are reported and skipped. Triples already stored are not
counted again.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bulkSize := cfg.Loader.BulkSize
		if loadBulkSize > 0 {
			bulkSize = loadBulkSize
		}

		db, err := openDatabase(cfg.Storage)
		if err != nil {
			return err
		}
		defer db.Close()

		var total uint64
		for _, path := range args {
			n, err := loadFile(db, path, bulkSize, true)
			if err != nil {
				return err
			}
			total += n
		}
		size, err := db.store.Size()
		if err != nil {
			return err
		}
		fmt.Printf("%s %d new triples, %d stored\n", color.GreenString("done:"), total, size)
		return nil
	},
}

func init() {
	loadCmd.Flags().Uint32Var(&loadBulkSize, "bulk-size", 0, "triples per chunk (overrides loader.bulk_size)")
}

// loadFile loads one file, printing progress and malformed lines when
// verbose
func loadFile(db *database, path string, bulkSize uint32, verbose bool) (uint64, error) {
	start := time.Now()
	opts := []store.BulkOption{
		store.WithBulkSize(bulkSize),
		store.WithErrorHandler(func(e *rdf.ParseError) {
			fmt.Fprintf(os.Stderr, "%s %s:%d: %s\n", color.RedString("error"), path, e.Line, e.Msg)
		}),
	}
	if verbose {
		opts = append(opts, store.WithProgress(func(processed, _, errors uint64) {
			fmt.Printf("%s %s: %d triples processed, %d rejected\n",
				color.CyanString("progress"), path, processed, errors)
		}))
	}

	n, err := db.store.LoadFile(path, opts...)
	if err != nil {
		return 0, err
	}
	if verbose {
		fmt.Printf("%s %s: %d new triples in %s\n",
			color.GreenString("loaded"), path, n, time.Since(start).Round(time.Millisecond))
	}
	return n, nil
}
