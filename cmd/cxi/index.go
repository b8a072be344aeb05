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
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/cxi/internal/errors"
	"github.com/kraklabs/cxi/internal/ui"
	"github.com/kraklabs/cxi/pkg/indexing"
	"github.com/kraklabs/cxi/pkg/storage"
)

// runIndex executes the 'index' CLI command: it loads every given
// compilation database and parses the compile commands in parallel,
// skipping commands already present in the build history. By default the
// run is incremental - before parsing, files whose content changed since
// the last run (and everything including them) are invalidated and cleaned
// up from the index.
//
// Flags:
//   - --full: Skip incremental invalidation and keep existing records
//   - --jobs: Number of parallel parse workers (default: from config)
//   - --skip-doc-comments: Tell the parser not to collect doc comments
//   - --debug: Enable debug logging
//   - --metrics-addr: HTTP address for Prometheus metrics (default: disabled)
func runIndex(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	full := fs.Bool("full", false, "Skip incremental invalidation (parse against existing records)")
	jobs := fs.Int("jobs", 0, "Number of parallel parse workers (0 = from config)")
	skipDocComments := fs.Bool("skip-doc-comments", false, "Do not collect documentation comments")
	debug := fs.Bool("debug", false, "Enable debug logging")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cxi index [options] [compile_commands.json ...]

Description:
  Parse the compile commands of one or more JSON compilation databases
  and store the resulting build actions, files and symbol records in the
  local index. Without arguments, ./compile_commands.json is used.

  Runs are incremental by default: files whose content changed since the
  last run are detected by content hash, every file that transitively
  includes a changed header is invalidated too, and all their derived
  records are deleted before parsing. Identical compile commands that
  were already parsed are skipped.

  Indexed data is stored locally in ~/.cxi/data/<project_id>/

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Index the default compilation database incrementally
  cxi index

  # Index a specific database with 8 workers
  cxi index --jobs 8 build/compile_commands.json

  # Parse everything the database names, without cleanup of stale records
  cxi index --full

  # Enable debug logging and expose metrics
  cxi index --debug --metrics-addr :9090

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON) // LoadConfig returns UserError
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	if globals.Quiet {
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Optional Prometheus metrics endpoint
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
			logger.Info("metrics.http.start", "addr", *metricsAddr, "path", "/metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	// Graceful shutdown on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	cwd, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewInternalError(
			"Cannot access current directory",
			"Failed to determine working directory",
			"This is unexpected. Please report this issue at github.com/kraklabs/cxi/issues",
			err,
		), globals.JSON)
	}

	inputs := fs.Args()
	if len(inputs) == 0 {
		inputs = []string{"compile_commands.json"}
	}
	for _, input := range inputs {
		if _, err := os.Stat(input); err != nil {
			errors.FatalError(errors.NewInputError(
				"Compilation database not found",
				fmt.Sprintf("Cannot access %s", input),
				"Generate one with 'cmake -DCMAKE_EXPORT_COMPILE_COMMANDS=ON' or 'bear -- make'",
				err,
			), globals.JSON)
		}
	}

	dataDir, err := projectDataDir(cfg, configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	store, err := storage.Open(storage.Config{DataDir: dataDir, ProjectID: cfg.ProjectID})
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot open index database",
			"Failed to open or initialize the local database",
			"Try 'cxi reset --yes' to rebuild the database, or close other CXI instances",
			err,
		), globals.JSON)
	}
	defer func() { _ = store.Close() }()

	effectiveJobs := cfg.Indexing.Jobs
	if *jobs > 0 {
		effectiveJobs = *jobs
	}

	pipelineCfg := indexing.DefaultConfig()
	pipelineCfg.ProjectID = cfg.ProjectID
	pipelineCfg.Inputs = inputs
	pipelineCfg.Jobs = effectiveJobs
	pipelineCfg.Incremental = !*full
	pipelineCfg.SkipDocComments = *skipDocComments
	pipelineCfg.Exclude = append(pipelineCfg.Exclude, cfg.Indexing.Exclude...)
	pipelineCfg.RunLogDir = ConfigDir(cwd)

	parser := &indexing.ToolParser{
		Command:         cfg.Parser.Command,
		SkipDocComments: *skipDocComments,
		Logger:          logger,
	}

	pipeline, err := indexing.NewPipeline(pipelineCfg, store, parser, logger)
	if err != nil {
		errors.FatalError(errors.NewInternalError(
			"Cannot initialize indexing pipeline",
			"The pipeline configuration was rejected",
			"Check the flags and .cxi/project.yaml indexing settings",
			err,
		), globals.JSON)
	}

	// Progress bars per pipeline phase
	progressCfg := NewProgressConfig(globals)
	var currentBar *progressbar.ProgressBar
	var currentPhase string

	pipeline.SetProgressCallback(func(current, total int64, phase string) {
		if phase != currentPhase {
			if currentBar != nil {
				_ = currentBar.Finish()
			}
			currentPhase = phase
			currentBar = NewProgressBar(progressCfg, total, phaseDescription(phase))
		}
		if currentBar != nil {
			_ = currentBar.Set64(current)
		}
	})

	logger.Info("indexing.starting",
		"project_id", cfg.ProjectID,
		"inputs", inputs,
		"jobs", effectiveJobs,
		"incremental", !*full,
	)

	result, err := pipeline.Run(ctx)

	if currentBar != nil {
		_ = currentBar.Finish()
	}

	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Indexing operation failed",
			"An error occurred while updating the index",
			"Check the error details above. If this persists, try 'cxi reset --yes'",
			err,
		), globals.JSON)
	}

	printResult(result, cfg, dataDir, globals)

	if !result.Success {
		os.Exit(1)
	}
}

// phaseDescription returns a human-readable description for each pipeline phase.
func phaseDescription(phase string) string {
	switch phase {
	case "parsing":
		return "Parsing commands"
	case "invalidating":
		return "Invalidating files"
	default:
		return phase
	}
}

// printResult prints the indexing result summary to stdout.
func printResult(result *indexing.Result, cfg *Config, dataDir string, globals GlobalFlags) {
	if globals.JSON {
		printResultJSON(result, cfg)
		return
	}
	fmt.Println()

	// Detect no-op incremental run (everything up to date)
	if result.CommandsParsed == 0 && result.CommandsFailed == 0 && result.FilesInvalidated == 0 {
		ui.Header("Index Up to Date")
		fmt.Printf("%s %s\n", ui.Label("Project ID:"), cfg.ProjectID)
		_, _ = ui.Green.Println("Every compile command is already indexed. No changes detected.")
		fmt.Println()
		fmt.Println("To parse everything the databases name:")
		fmt.Println("  cxi reset --yes && cxi index")
		return
	}

	ui.Header("Indexing Complete")
	fmt.Printf("%s %s\n", ui.Label("Project ID:"), cfg.ProjectID)

	fmt.Printf("Commands Parsed: %s ", ui.CountText(result.CommandsParsed))
	if result.CommandsFailed > 0 {
		_, _ = ui.Yellow.Printf("(%d with parse errors)\n", result.CommandsFailed)
	} else {
		_, _ = ui.Green.Println("✓")
	}

	fmt.Printf("Commands Skipped: %s\n", ui.CountText(result.CommandsSkipped))
	if result.CommandsExcluded > 0 {
		fmt.Printf("Commands Excluded: %s\n", ui.CountText(result.CommandsExcluded))
	}
	fmt.Printf("Files Invalidated: %s\n", ui.CountText(result.FilesInvalidated))

	if !result.Success {
		_, _ = ui.Yellow.Println("Some compilation databases could not be loaded.")
	}

	fmt.Println()
	ui.SubHeader("Timings:")
	if result.InvalidateDuration > 0 {
		fmt.Printf("  Invalidate: %s\n", ui.DimText(result.InvalidateDuration.String()))
	}
	fmt.Printf("  Parse: %s\n", ui.DimText(result.ParseDuration.String()))
	fmt.Printf("  Total: %s\n", ui.DimText(result.TotalDuration.String()))
	fmt.Println()

	fmt.Printf("Data stored in: %s\n", ui.DimText(dataDir))
}

// printResultJSON emits the result as a single JSON object for scripting.
func printResultJSON(result *indexing.Result, cfg *Config) {
	fmt.Printf(`{"success":%t,"project_id":%q,"commands_parsed":%d,"commands_skipped":%d,"commands_excluded":%d,"commands_failed":%d,"files_invalidated":%d,"duration_ms":%d}`+"\n",
		result.Success, cfg.ProjectID,
		result.CommandsParsed, result.CommandsSkipped, result.CommandsExcluded,
		result.CommandsFailed, result.FilesInvalidated,
		result.TotalDuration.Milliseconds())
}
