package main

import (
	"fmt"
	"os"
	"time"

	"github.com/aleksaelezovic/tritensor/pkg/sparql"
	"github.com/aleksaelezovic/tritensor/pkg/store"
	"github.com/aleksaelezovic/tritensor/pkg/tensor"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var (
	queryTimeout time.Duration
	queryShort   bool
)

var queryCmd = &cobra.Command{
	Use:   "query <sparql>",
	Short: "Evaluate a SELECT or ASK query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := sparql.Parse(args[0])
		if err != nil {
			return err
		}
		db, err := openDatabase(cfg.Storage)
		if err != nil {
			return err
		}
		defer db.Close()

		deadline := queryDeadline()
		if q.Form == sparql.QueryFormAsk {
			ok, err := db.store.EvalAsk(q, deadline)
			if err != nil {
				return err
			}
			fmt.Println(ok)
			return nil
		}

		sol, err := db.store.EvalSelect(q, deadline)
		if err != nil {
			return err
		}
		defer sol.Close()
		_, err = printSolutions(os.Stdout, sol, queryShort)
		return err
	},
}

var countCmd = &cobra.Command{
	Use:   "count <sparql>",
	Short: "Count the solutions of a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := sparql.Parse(args[0])
		if err != nil {
			return err
		}
		db, err := openDatabase(cfg.Storage)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.store.Count(q, queryDeadline())
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <sparql-update>",
	Short: "Apply an INSERT DATA or DELETE DATA request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		update, err := sparql.ParseUpdate(args[0])
		if err != nil {
			return err
		}
		db, err := openDatabase(cfg.Storage)
		if err != nil {
			return err
		}
		defer db.Close()

		entries := make([]tensor.NonZeroEntry, len(update.Triples))
		for i, t := range update.Triples {
			entries[i] = tensor.EntryOf(t)
		}

		wl := db.store.AcquireWriterLock()
		defer wl.Release()
		var n uint64
		if update.Operation == sparql.UpdateDeleteData {
			n, err = db.store.Remove(entries, wl, store.WithBulkSize(cfg.Loader.BulkSize))
		} else {
			n, err = db.store.Insert(entries, wl, store.WithBulkSize(cfg.Loader.BulkSize))
		}
		if err != nil {
			return errors.Wrap(err, update.Operation.String())
		}
		fmt.Printf("mutation count: %d\n", n)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{queryCmd, countCmd} {
		cmd.Flags().DurationVar(&queryTimeout, "timeout", 0, "evaluation timeout (default server.timeout)")
	}
	queryCmd.Flags().BoolVar(&queryShort, "short", false, "print local names and lexical values only")
}

func queryDeadline() time.Time {
	timeout := cfg.Server.Timeout
	if queryTimeout > 0 {
		timeout = queryTimeout
	}
	if timeout <= 0 {
		return store.NoDeadline
	}
	return time.Now().Add(timeout)
}
