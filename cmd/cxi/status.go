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

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/cxi/internal/errors"
	"github.com/kraklabs/cxi/internal/ui"
	"github.com/kraklabs/cxi/pkg/storage"
)

// statusResult holds the counters shown by 'cxi status'.
type statusResult struct {
	ProjectID    string `json:"project_id"`
	DataDir      string `json:"data_dir"`
	Indexed      bool   `json:"indexed"`
	Files        int    `json:"files"`
	BuildActions int    `json:"build_actions"`
	GraphNodes   int    `json:"graph_nodes"`
	GraphEdges   int    `json:"graph_edges"`
}

// runStatus executes the 'status' CLI command, printing index counters for
// the current project.
func runStatus(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cxi status [--json]

Description:
  Show the current project's index statistics: tracked files, recorded
  build actions and graph size.

`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	dataDir, err := projectDataDir(cfg, configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	result := statusResult{ProjectID: cfg.ProjectID, DataDir: dataDir}

	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		printStatus(result, globals)
		if !globals.JSON {
			ui.Warningf("Project '%s' not indexed yet. Run 'cxi index' first.", cfg.ProjectID)
		}
		return
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

	ctx := context.Background()
	result.Indexed = true
	if result.Files, err = store.CountFiles(ctx); err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot read index statistics", "Counting files failed",
			"Try 'cxi reset --yes' to rebuild the database", err,
		), globals.JSON)
	}
	result.BuildActions, _ = store.CountBuildActions(ctx)
	result.GraphNodes, _ = store.CountGraphNodes(ctx)
	result.GraphEdges, _ = store.CountGraphEdges(ctx)

	printStatus(result, globals)
}

func printStatus(result statusResult, globals GlobalFlags) {
	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return
	}

	ui.Header("CXI Project Status")
	fmt.Printf("%s    %s\n", ui.Label("Project ID:"), result.ProjectID)
	fmt.Printf("%s      %s\n", ui.Label("Data Dir:"), ui.DimText(result.DataDir))

	if !result.Indexed {
		return
	}

	ui.SubHeader("Index:")
	fmt.Printf("  Files:         %s\n", ui.CountText(result.Files))
	fmt.Printf("  Build Actions: %s\n", ui.CountText(result.BuildActions))
	fmt.Printf("  Graph Nodes:   %s\n", ui.CountText(result.GraphNodes))
	fmt.Printf("  Graph Edges:   %s\n", ui.CountText(result.GraphEdges))
	fmt.Println()
}
