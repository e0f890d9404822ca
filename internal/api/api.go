// Package api provides HTTP handlers and the main API server logic for the
// greenlight service.
//
// It exposes the page-ping, greenlight, press-ack, and inventory endpoints
// consumed by the browser client, wired to the coordination core and the
// inventory store.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freightpilot/greenlight/internal/greenlight"
	"github.com/freightpilot/greenlight/internal/store"
)

// Default configuration values.
const (
	// DefaultAddr is the default API listen address.
	DefaultAddr = ":8080"
	// DefaultAddLoadURL is the exchange page a successful publish returns to.
	DefaultAddLoadURL = "https://www.bursatransport.com/freightexchange/addload"
	// DefaultRecoveryWindow bounds how old a pending episode may be and
	// still qualify for auto-finalize.
	DefaultRecoveryWindow = 12 * time.Second
	// DefaultRetentionHorizon bounds how long finalized records linger
	// before the eviction sweep removes them.
	DefaultRetentionHorizon = time.Hour
	// evictInterval is how often the eviction sweep runs.
	evictInterval = 5 * time.Minute
)

// Opts holds API server configuration.
type Opts struct {
	Addr             string
	AddLoadURL       string
	RecoveryWindow   time.Duration
	RetentionHorizon time.Duration
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithAddLoadURL sets the add-load page URL used to phrase the publish
// result message on empty-page pings.
func WithAddLoadURL(url string) Option {
	return func(o *Opts) { o.AddLoadURL = url }
}

// WithRecoveryWindow sets the auto-finalize freshness window.
func WithRecoveryWindow(d time.Duration) Option {
	return func(o *Opts) { o.RecoveryWindow = d }
}

// WithRetentionHorizon sets how long finalized records are retained.
func WithRetentionHorizon(d time.Duration) Option {
	return func(o *Opts) { o.RetentionHorizon = d }
}

// Server wires the HTTP endpoints to the coordination core and the
// inventory store.
type Server struct {
	coord          *greenlight.Coordinator
	states         *greenlight.InMemoryStateStore
	inv            store.Store
	addLoadURL     string
	recoveryWindow time.Duration
}

// NewServer creates an API server over the given coordination state store
// and inventory store.
func NewServer(states *greenlight.InMemoryStateStore, inv store.Store, opts ...Option) *Server {
	cfg := Opts{
		AddLoadURL:     DefaultAddLoadURL,
		RecoveryWindow: DefaultRecoveryWindow,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		coord:          greenlight.NewCoordinator(states, inv),
		states:         states,
		inv:            inv,
		addLoadURL:     cfg.AddLoadURL,
		recoveryWindow: cfg.RecoveryWindow,
	}
}

// Handler returns the routed HTTP handler. Paths match the protocol the
// browser client speaks.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/page-ping/", s.pageEventHandler)
	mux.HandleFunc("/api/greenlight/", s.greenlightCheckHandler)
	mux.HandleFunc("/api/greenlight/set", s.setGreenlightHandler)
	mux.HandleFunc("/api/greenlight/delete", s.deleteGreenlightHandler)
	mux.HandleFunc("/api/press-ack/", s.pressAckHandler)
	mux.HandleFunc("/api/active-products/", s.activeProductsHandler)
	mux.HandleFunc("/api/deleted-products/", s.deletedProductsHandler)
	mux.HandleFunc("/api/cargo/ids", s.userIDsHandler)
	mux.HandleFunc("/api/cargo/meta", s.cargoMetaHandler)
	mux.HandleFunc("/api/ping/active", s.pingActiveHandler)
	mux.HandleFunc("/api/ping/deleted", s.pingDeletedHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run bootstraps the service: inventory store from storeOpts, coordination
// state store, HTTP server, the eviction sweep, and graceful shutdown on
// SIGINT/SIGTERM. It blocks until the server exits.
func Run(storeOpts []store.Option, apiOpts []Option) error {
	var storeCfg store.Opts
	for _, opt := range storeOpts {
		opt(&storeCfg)
	}
	cfg := Opts{
		Addr:             DefaultAddr,
		AddLoadURL:       DefaultAddLoadURL,
		RecoveryWindow:   DefaultRecoveryWindow,
		RetentionHorizon: DefaultRetentionHorizon,
	}
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	inv, err := store.NewFromDSN(storeCfg.DSN)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := inv.Close(); cerr != nil {
			slog.Error("api.Run: failed to close inventory store", "error", cerr)
		}
	}()

	states := greenlight.NewInMemoryStateStore()
	srv := NewServer(states, inv,
		WithAddLoadURL(cfg.AddLoadURL),
		WithRecoveryWindow(cfg.RecoveryWindow),
	)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Finalized records are kept briefly for idempotent echoes, then swept
	// so the state store stays bounded by in-flight episodes.
	go func() {
		ticker := time.NewTicker(evictInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				states.EvictOlderThan(cfg.RetentionHorizon)
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Greenlight API running", "addr", cfg.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		slog.Info("Shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
