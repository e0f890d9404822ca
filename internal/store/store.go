// Package store provides inventory storage backends for the greenlight
// service.
//
// Each user has one inventory document: the cargo identifiers currently
// listed on the exchange plus per-identifier metadata. An in-memory store
// covers tests and single-process deployments; SQLite and PostgreSQL
// backends persist the inventory across restarts.
package store

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/freightpilot/greenlight/internal/models"
)

// Store is the inventory document store contract.
type Store interface {
	// GetCargoDoc returns the user's inventory document, or an empty
	// document if none is stored.
	GetCargoDoc(user string) (models.CargoDoc, error)

	// ReplaceIDs replaces the user's stored identifiers and metadata
	// wholesale with the given page snapshot.
	ReplaceIDs(user string, ids []string, meta []models.CargoMeta) error

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithDSN sets the backend DSN: a postgres:// URL for PostgreSQL or a file
// path for SQLite.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// NewFromDSN selects a backend by sniffing the DSN: postgres URLs open a
// PostgreSQL store, non-empty paths an SQLite store, and an empty DSN the
// in-memory store.
func NewFromDSN(dsn string) (Store, error) {
	switch {
	case dsn == "":
		slog.Info("store.NewFromDSN: no DSN configured, using in-memory inventory store")
		return NewInMemoryStore(), nil
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		st, err := NewPostgresStore(WithDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres inventory store: %w", err)
		}
		return st, nil
	default:
		st, err := NewSQLiteStore(WithDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite inventory store: %w", err)
		}
		return st, nil
	}
}

var (
	docIDUnsafe     = regexp.MustCompile(`[/\r\n\t]`)
	docIDWhitespace = regexp.MustCompile(`\s+`)
)

// docIDFromUser normalizes a user name into a storage document id. Path and
// control characters become underscores and whitespace runs collapse, so the
// same user always maps to the same document.
func docIDFromUser(user string) string {
	safe := docIDUnsafe.ReplaceAllString(strings.TrimSpace(user), "_")
	safe = strings.TrimSpace(docIDWhitespace.ReplaceAllString(safe, " "))
	if safe == "" {
		return "unknown"
	}
	return safe
}
