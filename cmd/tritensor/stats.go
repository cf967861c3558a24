package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cfg.Storage)
		if err != nil {
			return err
		}
		defer db.Close()

		rl := db.store.AcquireReaderLock()
		defer rl.Release()
		snap, err := db.tensor.Snapshot()
		if err != nil {
			return err
		}
		defer snap.Close()

		size, err := snap.Size()
		if err != nil {
			return err
		}
		terms, err := snap.TermCount()
		if err != nil {
			return err
		}

		fmt.Printf("Database Statistics\n")
		fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
		if cfg.Storage.InMemory {
			fmt.Printf("Database Path:  (in memory)\n")
		} else {
			fmt.Printf("Database Path:  %s\n", cfg.Storage.Path)
		}
		fmt.Printf("Triples:        %d\n", size)
		fmt.Printf("Distinct terms: %d\n", terms)
		return nil
	},
}
