package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/aleksaelezovic/tritensor/internal/logger"
	"github.com/aleksaelezovic/tritensor/pkg/server"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve [file.nt...]",
	Short: "Start the SPARQL HTTP endpoint",
	Long: `Start the SPARQL HTTP endpoint, loading the given N-Triples files first.

Endpoints:
  GET|POST /sparql   SELECT and ASK queries (JSON, XML, CSV or TSV by Accept)
  GET|POST /count    {"count": n} for a query
  POST     /update   INSERT DATA / DELETE DATA (application/sparql-update)`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.address)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Address = serveAddr
	}
	log := logger.ComponentLogger("serve")

	db, err := openDatabase(cfg.Storage)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, path := range args {
		if _, err := loadFile(db, path, cfg.Loader.BulkSize, false); err != nil {
			return err
		}
	}

	size, err := db.store.Size()
	if err != nil {
		return err
	}
	log.Infow("database opened", "path", cfg.Storage.Path, logger.FieldSize, size)

	srv, err := server.NewServer(db.store, cfg.Server.Address,
		server.WithLogger(logger.ComponentLogger("server")),
		server.WithTimeout(cfg.Server.Timeout),
		server.WithThreads(cfg.Server.Threads),
		server.WithQueryCacheSize(cfg.Server.QueryCacheSize),
		server.WithUpdateRate(cfg.Server.UpdateRate),
		server.WithBulkSize(cfg.Loader.BulkSize),
	)
	if err != nil {
		return err
	}

	fmt.Printf("SPARQL endpoint: http://%s/sparql\n", cfg.Server.Address)
	fmt.Printf("Web UI:          http://%s/\n", cfg.Server.Address)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		log.Infow("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutting down server")
		}
		return nil
	})
	return g.Wait()
}
