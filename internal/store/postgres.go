// Package store provides inventory storage backends for the greenlight
// service.
//
// This file implements the PostgreSQL-backed inventory store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/freightpilot/greenlight/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists inventory documents in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL inventory store. The DSN is a
// postgres:// connection URL.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres inventory store ready")

	return &PostgresStore{db: db}, nil
}

// GetCargoDoc returns the user's inventory document.
func (s *PostgresStore) GetCargoDoc(user string) (models.CargoDoc, error) {
	docID := docIDFromUser(user)

	rows, err := s.db.Query(
		`SELECT cargo_id, start_date, for_days FROM cargo_ids WHERE doc_id = $1 ORDER BY position`, docID)
	if err != nil {
		slog.Error("PostgresStore GetCargoDoc query failed", "error", err, "docID", docID)
		return models.CargoDoc{}, fmt.Errorf("failed to query cargo ids for %s: %w", docID, err)
	}
	defer rows.Close()

	ids, meta, err := collectCargoRows(rows)
	if err != nil {
		slog.Error("PostgresStore GetCargoDoc scan failed", "error", err, "docID", docID)
		return models.CargoDoc{}, err
	}
	slog.Debug("PostgresStore GetCargoDoc succeeded", "docID", docID, "count", len(ids))
	return models.CargoDoc{User: user, IDs: ids, IDsMeta: meta}, nil
}

// ReplaceIDs replaces the user's stored identifiers and metadata wholesale,
// inside one transaction so readers never observe a partial replacement.
func (s *PostgresStore) ReplaceIDs(user string, ids []string, meta []models.CargoMeta) error {
	docID := docIDFromUser(user)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin replace transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO cargo_docs (doc_id, user_name) VALUES ($1, $2)
		 ON CONFLICT (doc_id) DO UPDATE SET user_name = EXCLUDED.user_name`, docID, user); err != nil {
		return fmt.Errorf("failed to upsert cargo doc %s: %w", docID, err)
	}
	if _, err := tx.Exec(`DELETE FROM cargo_ids WHERE doc_id = $1`, docID); err != nil {
		return fmt.Errorf("failed to clear cargo ids for %s: %w", docID, err)
	}

	metaByID := metaIndex(meta)
	for pos, id := range ids {
		m := metaByID[id]
		if _, err := tx.Exec(
			`INSERT INTO cargo_ids (doc_id, position, cargo_id, start_date, for_days) VALUES ($1, $2, $3, $4, $5)`,
			docID, pos, id, nilIfEmpty(m.StartDate), nullableInt(m.ForDays)); err != nil {
			return fmt.Errorf("failed to insert cargo id %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit replace transaction: %w", err)
	}
	slog.Debug("PostgresStore ReplaceIDs succeeded", "docID", docID, "count", len(ids))
	return nil
}

// Close closes the underlying database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
