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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/cxi/internal/errors"
	"github.com/kraklabs/cxi/pkg/storage"
)

// runQuery executes the 'query' CLI command, running a read-only SQL query
// against the project's index database.
//
// Command-specific flags:
//   - --timeout: Query timeout duration (default: 30s)
//   - --limit: Append a LIMIT clause (default: 0, no limit)
//
// Examples:
//
//	cxi query "SELECT path, parse_status FROM files" --limit 10
//	cxi query "SELECT COUNT(*) FROM build_actions" --json
func runQuery(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	timeout := fs.Duration("timeout", 30*time.Second, "Query timeout")
	limit := fs.Int("limit", 0, "Append LIMIT to query (0 = no limit)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cxi query [options] <sql>

Description:
  Execute a read-only SQL query against the index database. Use this for
  ad-hoc inspection beyond what 'cxi status' reports.

  Results are formatted as a table (default) or JSON for scripting.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # List files and their parse status
  cxi query "SELECT path, parse_status FROM files" --limit 20

  # Count files that only parsed partially
  cxi query "SELECT COUNT(*) FROM files WHERE parse_status = 1"

  # Inspect recorded compile commands
  cxi query "SELECT id, type, command FROM build_actions" --json

Tables:
  files, file_contents, build_actions, build_sources, build_targets,
  ast_nodes, entities, inheritance, friendships, header_inclusions,
  graph_nodes, graph_edges

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() == 0 {
		fs.Usage()
		errors.FatalError(errors.NewInputError(
			"Query argument required",
			"No SQL query provided",
			"Provide a query: cxi query 'SELECT path FROM files'",
		), globals.JSON)
	}

	query := strings.TrimSpace(fs.Arg(0))
	if *limit > 0 && !strings.Contains(strings.ToLower(query), "limit") {
		query = fmt.Sprintf("%s LIMIT %d", query, *limit)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	dataDir, err := projectDataDir(cfg, configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		errors.FatalError(errors.NewDatabaseError(
			fmt.Sprintf("Project '%s' not indexed yet", cfg.ProjectID),
			"The index database does not exist for this project",
			"Run 'cxi index' to index the project first",
			err,
		), globals.JSON)
	}

	store, err := storage.Open(storage.Config{DataDir: dataDir, ProjectID: cfg.ProjectID})
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot open index database",
			"The database exists but could not be opened",
			"Try 'cxi reset --yes' to rebuild it",
			err,
		), globals.JSON)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	headers, rows, err := store.RawQuery(ctx, query)
	if err != nil {
		errors.FatalError(errors.NewInputError(
			"Query failed",
			"The database rejected the query",
			"Check the SQL syntax and table names ('cxi query --help' lists them)",
			err,
		), globals.JSON)
	}

	if globals.JSON {
		out := struct {
			Headers []string   `json:"headers"`
			Rows    [][]string `json:"rows"`
		}{Headers: headers, Rows: rows}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
	fmt.Fprintf(os.Stderr, "%d row(s)\n", len(rows))
}
