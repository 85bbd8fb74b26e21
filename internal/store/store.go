// Package store is the SQLite persistence layer for reqgraph.
//
// It implements requirements.Store, links.Store and
// criteria.VerificationStore on one database file. Every table carries a
// project_id and every query is scoped by it. List results are ordered by
// sort_order (or updated_at for links) with the id as tiebreak.
//
// Requirement rows carry a version column. Updates must present the version
// they read; a mismatch fails with ErrConflict instead of silently
// overwriting another session's edits.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrConflict is returned when a write carries a stale version.
var ErrConflict = errors.New("version conflict: record was modified by another session")

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Config holds store configuration.
type Config struct {
	DataDir string
	// FileName defaults to "reqgraph.db".
	FileName string
}

// Store is the SQLite-backed store.
type Store struct {
	db    *sql.DB
	hooks storeHooks
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type storeHooks struct {
	exec    func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error)
	beginTx func(ctx context.Context, db *sql.DB) (*sql.Tx, error)
	commit  func(tx *sql.Tx) error
}

func defaultStoreHooks() storeHooks {
	return storeHooks{
		exec: func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
			return db.ExecContext(ctx, query, args...)
		},
		beginTx: func(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
			return db.BeginTx(ctx, nil)
		},
		commit: func(tx *sql.Tx) error {
			return tx.Commit()
		},
	}
}

func (s *Store) execHook(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(ctx, db, query, args...)
	}
	return db.ExecContext(ctx, query, args...)
}

func (s *Store) beginTxHook(ctx context.Context) (*sql.Tx, error) {
	if s.hooks.beginTx != nil {
		return s.hooks.beginTx(ctx, s.db)
	}
	return s.db.BeginTx(ctx, nil)
}

func (s *Store) commitHook(tx *sql.Tx) error {
	if s.hooks.commit != nil {
		return s.hooks.commit(tx)
	}
	return tx.Commit()
}

// New opens (creating if needed) the database under cfg.DataDir, applies
// the SQLite pragmas and runs migrations.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	name := cfg.FileName
	if name == "" {
		name = "reqgraph.db"
	}

	db, err := openDB("sqlite", filepath.Join(cfg.DataDir, name))
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, hooks: defaultStoreHooks()}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS business_requirements (
			id                             TEXT    NOT NULL,
			project_id                     TEXT    NOT NULL,
			task_id                        TEXT    NOT NULL,
			title                          TEXT    NOT NULL DEFAULT '',
			summary                        TEXT    NOT NULL DEFAULT '',
			goal                           TEXT    NOT NULL DEFAULT '',
			constraints                    TEXT    NOT NULL DEFAULT '',
			owner                          TEXT    NOT NULL DEFAULT '',
			concept_ids                    TEXT    NOT NULL DEFAULT '[]',
			srf_id                         TEXT,
			system_domain_ids              TEXT    NOT NULL DEFAULT '[]',
			impacts                        TEXT    NOT NULL DEFAULT '',
			related_system_requirement_ids TEXT    NOT NULL DEFAULT '[]',
			priority                       TEXT    NOT NULL DEFAULT '',
			acceptance_criteria_json       TEXT    NOT NULL DEFAULT '[]',
			acceptance_criteria            TEXT    NOT NULL DEFAULT '[]',
			sort_order                     INTEGER NOT NULL DEFAULT 0,
			version                        INTEGER NOT NULL DEFAULT 1,
			created_at                     TEXT    NOT NULL,
			updated_at                     TEXT    NOT NULL,
			PRIMARY KEY (project_id, id)
		);

		CREATE INDEX IF NOT EXISTS idx_br_task ON business_requirements(project_id, task_id, sort_order, id);
		CREATE INDEX IF NOT EXISTS idx_br_srf  ON business_requirements(project_id, srf_id);

		CREATE TABLE IF NOT EXISTS system_requirements (
			id                       TEXT    NOT NULL,
			project_id               TEXT    NOT NULL,
			task_id                  TEXT    NOT NULL,
			srf_id                   TEXT,
			title                    TEXT    NOT NULL DEFAULT '',
			summary                  TEXT    NOT NULL DEFAULT '',
			category                 TEXT    NOT NULL,
			concept_ids              TEXT    NOT NULL DEFAULT '[]',
			impacts                  TEXT    NOT NULL DEFAULT '',
			business_requirement_ids TEXT    NOT NULL DEFAULT '[]',
			related_deliverable_ids  TEXT    NOT NULL DEFAULT '[]',
			acceptance_criteria_json TEXT    NOT NULL DEFAULT '[]',
			acceptance_criteria      TEXT    NOT NULL DEFAULT '[]',
			system_domain_ids        TEXT    NOT NULL DEFAULT '[]',
			sort_order               INTEGER NOT NULL DEFAULT 0,
			version                  INTEGER NOT NULL DEFAULT 1,
			created_at               TEXT    NOT NULL,
			updated_at               TEXT    NOT NULL,
			PRIMARY KEY (project_id, id)
		);

		CREATE INDEX IF NOT EXISTS idx_sr_task ON system_requirements(project_id, task_id, sort_order, id);
		CREATE INDEX IF NOT EXISTS idx_sr_srf  ON system_requirements(project_id, srf_id);

		CREATE TABLE IF NOT EXISTS acceptance_criteria (
			project_id     TEXT    NOT NULL,
			criterion_id   TEXT    NOT NULL,
			requirement_id TEXT    NOT NULL,
			status         TEXT    NOT NULL DEFAULT 'unverified',
			verified_by    TEXT,
			verified_at    TEXT,
			evidence       TEXT,
			sort_order     INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (project_id, criterion_id)
		);

		CREATE INDEX IF NOT EXISTS idx_ac_requirement ON acceptance_criteria(project_id, requirement_id, sort_order);

		CREATE TABLE IF NOT EXISTS requirement_links (
			id             TEXT    PRIMARY KEY,
			project_id     TEXT    NOT NULL,
			source_type    TEXT    NOT NULL,
			source_id      TEXT    NOT NULL,
			target_type    TEXT    NOT NULL,
			target_id      TEXT    NOT NULL,
			link_type      TEXT    NOT NULL DEFAULT 'relates_to',
			suspect        INTEGER NOT NULL DEFAULT 0,
			suspect_reason TEXT,
			created_at     TEXT    NOT NULL,
			updated_at     TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_link_suspect ON requirement_links(project_id, suspect, updated_at);
		CREATE INDEX IF NOT EXISTS idx_link_source  ON requirement_links(project_id, source_type, source_id);
		CREATE INDEX IF NOT EXISTS idx_link_target  ON requirement_links(project_id, target_type, target_id);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_link_unique
			ON requirement_links(project_id, source_type, source_id, target_type, target_id, link_type);
	`
	_, err := s.execHook(ctx, s.db, schema)
	return err
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func now() string {
	return timeNow().UTC().Format(time.RFC3339Nano)
}

func nullableString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

// encodeIDs stores a string list as a JSON array; nil becomes "[]".
func encodeIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeIDs reads a JSON string array column. Malformed content yields an
// empty list.
func decodeIDs(text string) []string {
	ids := []string{}
	if err := json.Unmarshal([]byte(text), &ids); err != nil || ids == nil {
		return []string{}
	}
	return ids
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// isUniqueViolation checks if an error is a SQLite UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
