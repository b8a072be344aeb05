// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the transactional SQLite store backing the
// indexer: files and their contents, build actions with source/target
// associations, AST nodes, hash-keyed entity relations, header inclusions
// and the generic typed relationship graph.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("storage: record not found")

// Config configures the store location.
type Config struct {
	// DataDir is the directory where the SQLite database lives.
	// Defaults to ~/.cxi/data/<project_id>.
	DataDir string

	// ProjectID namespaces the default data directory.
	ProjectID string
}

// Store is the single shared mutable resource of the indexer. Every
// read-then-write sequence against it must go through WithTx so concurrent
// workers never observe partial state.
type Store struct {
	db  *sql.DB
	dbq // non-transactional access
}

// Tx exposes the record accessors inside one transaction.
type Tx struct {
	tx *sql.Tx
	dbq
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dbq carries the accessor methods; embedded by Store and Tx.
type dbq struct {
	q querier
}

const schema = `
CREATE TABLE IF NOT EXISTS file_contents (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	hash    TEXT NOT NULL UNIQUE,
	content TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	path         TEXT NOT NULL UNIQUE,
	type         TEXT NOT NULL DEFAULT 'other',
	parse_status INTEGER NOT NULL DEFAULT 0,
	content_id   INTEGER REFERENCES file_contents(id)
);

CREATE TABLE IF NOT EXISTS build_actions (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	command TEXT NOT NULL,
	type    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS build_sources (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id   INTEGER NOT NULL REFERENCES files(id),
	action_id INTEGER NOT NULL REFERENCES build_actions(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_build_sources_file ON build_sources(file_id);

CREATE TABLE IF NOT EXISTS build_targets (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id   INTEGER NOT NULL REFERENCES files(id),
	action_id INTEGER NOT NULL REFERENCES build_actions(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_build_targets_file ON build_targets(file_id);

CREATE TABLE IF NOT EXISTS ast_nodes (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id           INTEGER NOT NULL,
	start_line        INTEGER NOT NULL DEFAULT 0,
	start_col         INTEGER NOT NULL DEFAULT 0,
	end_line          INTEGER NOT NULL DEFAULT 0,
	end_col           INTEGER NOT NULL DEFAULT 0,
	ast_type          INTEGER NOT NULL,
	mangled_name_hash INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ast_nodes_file_type ON ast_nodes(file_id, ast_type);

CREATE TABLE IF NOT EXISTS entities (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	mangled_name_hash INTEGER NOT NULL,
	name              TEXT NOT NULL DEFAULT '',
	qualified_name    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_entities_hash ON entities(mangled_name_hash);

CREATE TABLE IF NOT EXISTS inheritance (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	derived INTEGER NOT NULL,
	base    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_inheritance_derived ON inheritance(derived);

CREATE TABLE IF NOT EXISTS friendships (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	target INTEGER NOT NULL,
	friend INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_friendships_target ON friendships(target);

CREATE TABLE IF NOT EXISTS header_inclusions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	includer_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	included_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	UNIQUE(includer_id, included_id)
);
CREATE INDEX IF NOT EXISTS idx_inclusions_included ON header_inclusions(included_id);

CREATE TABLE IF NOT EXISTS graph_nodes (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	domain    INTEGER NOT NULL,
	domain_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_graph_nodes_key ON graph_nodes(domain, domain_id);

CREATE TABLE IF NOT EXISTS graph_edges (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	from_id INTEGER NOT NULL REFERENCES graph_nodes(id),
	to_id   INTEGER NOT NULL REFERENCES graph_nodes(id),
	type    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_graph_edges_from ON graph_edges(from_id);
CREATE INDEX IF NOT EXISTS idx_graph_edges_to ON graph_edges(to_id);

CREATE TABLE IF NOT EXISTS project_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Open opens (creating if necessary) the project database and ensures the
// schema exists. Safe to call on an existing database.
func Open(cfg Config) (*Store, error) {
	if cfg.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		cfg.DataDir = filepath.Join(homeDir, ".cxi", "data")
		if cfg.ProjectID != "" {
			cfg.DataDir = filepath.Join(cfg.DataDir, cfg.ProjectID)
		}
	}

	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	// The pragmas go in the DSN so that every connection the database/sql
	// pool opens gets them. A plain db.Exec would configure only the one
	// connection it happens to grab, leaving the rest without foreign key
	// enforcement and with a zero busy timeout.
	dbPath := filepath.Join(cfg.DataDir, "index.db")
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Store{db: db, dbq: dbq{q: db}}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a single transaction. The transaction is rolled back
// if fn returns an error or panics, committed otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	tx := &Tx{tx: sqlTx, dbq: dbq{q: sqlTx}}
	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetMeta retrieves a project metadata value. Returns "" for a missing key.
func (d dbq) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := d.q.QueryRowContext(ctx,
		`SELECT value FROM project_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get meta %q: %w", key, err)
	}
	return value, nil
}

// SetMeta stores a project metadata value.
func (d dbq) SetMeta(ctx context.Context, key, value string) error {
	_, err := d.q.ExecContext(ctx,
		`INSERT INTO project_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}
	return nil
}

// RawQuery runs a read-only SQL query and returns headers plus rows of
// stringified values. Used by the 'cxi query' command.
func (d dbq) RawQuery(ctx context.Context, query string) ([]string, [][]string, error) {
	rows, err := d.q.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	headers, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]string
	for rows.Next() {
		raw := make([]any, len(headers))
		ptrs := make([]any, len(headers))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make([]string, len(headers))
		for i, v := range raw {
			switch val := v.(type) {
			case nil:
				row[i] = ""
			case []byte:
				row[i] = string(val)
			default:
				row[i] = fmt.Sprint(val)
			}
		}
		out = append(out, row)
	}
	return headers, out, rows.Err()
}
