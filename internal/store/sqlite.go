// Package store provides inventory storage backends for the greenlight
// service.
//
// This file implements the SQLite-backed inventory store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/freightpilot/greenlight/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists inventory documents in an SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite inventory store. The DSN is a file
// path to the database file; the parent directory is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite inventory store ready", "path", cfg.DSN)

	return &SQLiteStore{db: db}, nil
}

// GetCargoDoc returns the user's inventory document.
func (s *SQLiteStore) GetCargoDoc(user string) (models.CargoDoc, error) {
	docID := docIDFromUser(user)

	rows, err := s.db.Query(
		`SELECT cargo_id, start_date, for_days FROM cargo_ids WHERE doc_id = ? ORDER BY position`, docID)
	if err != nil {
		slog.Error("SQLiteStore GetCargoDoc query failed", "error", err, "docID", docID)
		return models.CargoDoc{}, fmt.Errorf("failed to query cargo ids for %s: %w", docID, err)
	}
	defer rows.Close()

	ids, meta, err := collectCargoRows(rows)
	if err != nil {
		slog.Error("SQLiteStore GetCargoDoc scan failed", "error", err, "docID", docID)
		return models.CargoDoc{}, err
	}
	slog.Debug("SQLiteStore GetCargoDoc succeeded", "docID", docID, "count", len(ids))
	return models.CargoDoc{User: user, IDs: ids, IDsMeta: meta}, nil
}

// ReplaceIDs replaces the user's stored identifiers and metadata wholesale,
// inside one transaction so readers never observe a partial replacement.
func (s *SQLiteStore) ReplaceIDs(user string, ids []string, meta []models.CargoMeta) error {
	docID := docIDFromUser(user)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin replace transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO cargo_docs (doc_id, user_name) VALUES (?, ?)
		 ON CONFLICT(doc_id) DO UPDATE SET user_name = excluded.user_name`, docID, user); err != nil {
		return fmt.Errorf("failed to upsert cargo doc %s: %w", docID, err)
	}
	if _, err := tx.Exec(`DELETE FROM cargo_ids WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("failed to clear cargo ids for %s: %w", docID, err)
	}

	metaByID := metaIndex(meta)
	for pos, id := range ids {
		m := metaByID[id]
		if _, err := tx.Exec(
			`INSERT INTO cargo_ids (doc_id, position, cargo_id, start_date, for_days) VALUES (?, ?, ?, ?, ?)`,
			docID, pos, id, nilIfEmpty(m.StartDate), nullableInt(m.ForDays)); err != nil {
			return fmt.Errorf("failed to insert cargo id %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit replace transaction: %w", err)
	}
	slog.Debug("SQLiteStore ReplaceIDs succeeded", "docID", docID, "count", len(ids))
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
