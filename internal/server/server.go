// Package server exposes the optimizer over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"

	"github.com/green-hash/fleet-optimizer/internal/catalog"
	"github.com/green-hash/fleet-optimizer/internal/metrics"
	"github.com/green-hash/fleet-optimizer/internal/prices"
	"github.com/green-hash/fleet-optimizer/pkg/core"
	"github.com/green-hash/fleet-optimizer/pkg/solver"
)

const (
	maxBodyBytes    = 8 << 20
	shutdownTimeout = 10 * time.Second
)

// Optimizer solves a validated problem.
type Optimizer interface {
	Optimize(ctx context.Context, p *core.Problem) (*solver.Solution, error)
}

// invalidator is implemented by price sources that cache snapshots.
type invalidator interface {
	Invalidate()
}

// Options configure a Server.
type Options struct {
	Optimizer Optimizer
	Store     *catalog.Store
	Prices    prices.Source
	// Periods is the default horizon of GET /optimization-data.
	Periods int
	// RateLimit is the sustained POST /optimize rate per second. Zero disables limiting.
	RateLimit float64
	Burst     int
}

// Server routes the HTTP API.
type Server struct {
	optimizer Optimizer
	store     *catalog.Store
	prices    prices.Source
	periods   int
	limiter   *rate.Limiter
	router    *mux.Router
	now       func() time.Time
}

// New creates a server from opts.
func New(opts Options) (*Server, error) {
	if opts.Optimizer == nil {
		return nil, errors.New("server needs an optimizer")
	}
	if opts.Store == nil {
		opts.Store = catalog.NewStore()
	}
	if opts.Periods <= 0 {
		return nil, fmt.Errorf("periods must be positive, got %d", opts.Periods)
	}
	s := &Server{
		optimizer: opts.Optimizer,
		store:     opts.Store,
		prices:    opts.Prices,
		periods:   opts.Periods,
		now:       time.Now,
	}
	if opts.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(opts.Burst, 1))
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := mux.NewRouter()
	r.Use(s.withRequestLogger)

	r.HandleFunc("/optimization-data", s.handleOptimizationData).Methods(http.MethodGet)
	r.Handle("/optimize", s.rateLimited(http.HandlerFunc(s.handleOptimize))).Methods(http.MethodPost)
	r.HandleFunc("/sites", s.handleListSites).Methods(http.MethodGet)
	r.HandleFunc("/sites/{id}", s.handleGetSite).Methods(http.MethodGet)
	r.HandleFunc("/config", s.handleConfig).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.PathPrefix("/healthz").Handler(http.StripPrefix("/healthz", &healthz.Handler{
		Checks: map[string]healthz.Checker{"ping": healthz.Ping},
	}))
	r.PathPrefix("/readyz").Handler(http.StripPrefix("/readyz", &healthz.Handler{
		Checks: map[string]healthz.Checker{"ping": healthz.Ping, "catalog": s.catalogReady},
	}))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Endpoint not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	s.router = r
}

// Handler returns the root handler, CORS included.
func (s *Server) Handler() http.Handler {
	return withCORS(s.router)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	logger := ctrl.LoggerFrom(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) catalogReady(_ *http.Request) error {
	if s.store.Len() == 0 {
		return errors.New("site catalog is empty")
	}
	return nil
}
