package main

import (
	"fmt"
	"os"

	"github.com/aleksaelezovic/tritensor/internal/config"
	"github.com/aleksaelezovic/tritensor/internal/logger"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tritensor",
	Short: "tritensor - RDF triple store on a boolean tensor",
	Long: `tritensor stores RDF triples as the non-zero entries of a rank-3 boolean
tensor kept in BadgerDB and answers SPARQL basic graph pattern queries.

Examples:
  tritensor load data.nt              # Bulk load N-Triples
  tritensor serve                     # Start the SPARQL endpoint
  tritensor query 'SELECT * WHERE { ?s ?p ?o } LIMIT 10'
  tritensor count 'SELECT * WHERE { ?s a ?type }'
  tritensor update 'INSERT DATA { <http://ex/a> <http://ex/p> "v" }'
  tritensor list http://example.org/list
  tritensor stats`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if err := logger.Initialize(cfg.Log.Level, cfg.Log.JSON); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./tritensor.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(demoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
