// Package server exposes a TripleStore over HTTP: SPARQL SELECT and ASK on
// /sparql, solution counts on /count and INSERT DATA / DELETE DATA on
// /update.
package server

import (
	"context"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/aleksaelezovic/tritensor/internal/logger"
	"github.com/aleksaelezovic/tritensor/pkg/sparql"
	"github.com/aleksaelezovic/tritensor/pkg/store"
	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout        = 180 * time.Second
	DefaultQueryCacheSize = 1000
)

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithTimeout bounds the evaluation time of each request. Zero disables the
// deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// WithThreads bounds the number of requests evaluated at once
func WithThreads(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.threads = n
		}
	}
}

// WithQueryCacheSize sets how many parsed queries are kept. Zero disables
// the cache.
func WithQueryCacheSize(n int) Option {
	return func(s *Server) {
		s.cacheSize = n
	}
}

// WithUpdateRate limits /update to perSecond requests. Zero means no limit.
func WithUpdateRate(perSecond float64) Option {
	return func(s *Server) {
		if perSecond > 0 {
			s.updates = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			s.updates = nil
		}
	}
}

// WithBulkSize sets the chunk size used for /update mutations
func WithBulkSize(n uint32) Option {
	return func(s *Server) {
		s.bulkSize = n
	}
}

// Server represents the HTTP SPARQL server
type Server struct {
	store     *store.TripleStore
	addr      string
	log       *zap.SugaredLogger
	timeout   time.Duration
	threads   int
	cacheSize int
	bulkSize  uint32

	queries *lru.Cache[string, *sparql.Query]
	slots   *semaphore.Weighted
	updates *rate.Limiter
	http    *http.Server
}

// NewServer creates a new SPARQL HTTP server for st listening on addr
func NewServer(st *store.TripleStore, addr string, opts ...Option) (*Server, error) {
	s := &Server{
		store:     st,
		addr:      addr,
		log:       logger.ComponentLogger("server"),
		timeout:   DefaultTimeout,
		threads:   runtime.NumCPU(),
		cacheSize: DefaultQueryCacheSize,
		bulkSize:  store.DefaultBulkSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cacheSize > 0 {
		cache, err := lru.New[string, *sparql.Query](s.cacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "creating query cache")
		}
		s.queries = cache
	}
	s.slots = semaphore.NewWeighted(int64(s.threads))

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if s.timeout > 0 {
		s.http.WriteTimeout = s.timeout + 15*time.Second
	}
	return s, nil
}

// Handler returns the endpoint's routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sparql", s.handle(s.handleSPARQL))
	mux.HandleFunc("/count", s.handle(s.handleCount))
	mux.HandleFunc("/update", s.handle(s.handleUpdate))
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

// Start listens on the configured address and serves until Shutdown
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", s.addr)
	}
	return s.Serve(l)
}

// Serve serves on l until Shutdown
func (s *Server) Serve(l net.Listener) error {
	s.log.Infow("SPARQL endpoint listening",
		"address", l.Addr().String(),
		"threads", s.threads,
		"timeout", s.timeout.String())
	if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for running ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// deadline returns the evaluation deadline for a request starting now
func (s *Server) deadline() time.Time {
	if s.timeout <= 0 {
		return store.NoDeadline
	}
	return time.Now().Add(s.timeout)
}

// parseQuery parses text, reusing an earlier parse of the same text
func (s *Server) parseQuery(text string) (*sparql.Query, error) {
	if s.queries != nil {
		if q, ok := s.queries.Get(text); ok {
			return q, nil
		}
	}
	q, err := sparql.Parse(text)
	if err != nil {
		return nil, err
	}
	if s.queries != nil {
		s.queries.Add(text, q)
	}
	return q, nil
}
