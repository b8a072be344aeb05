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

// Package indexing implements the incremental parse orchestrator: compile
// command deduplication, concurrent parse scheduling over compilation
// databases, build-action bookkeeping, and dependency-graph invalidation
// driven by content-hash change detection.
package indexing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kraklabs/cxi/pkg/storage"
)

// ProgressCallback reports pipeline progress to the CLI.
// current and total count compile commands; phase names the current step.
type ProgressCallback func(current, total int64, phase string)

// Result summarizes one pipeline run.
type Result struct {
	// Success is false when any compilation database failed to load.
	// Per-command failures are reported through logs and parse status
	// only.
	Success bool

	// CommandsParsed is the number of commands dispatched to the parser.
	CommandsParsed int

	// CommandsSkipped is the number of commands dropped because an
	// identical command line was already parsed.
	CommandsSkipped int

	// CommandsExcluded is the number of commands dropped by exclude
	// globs.
	CommandsExcluded int

	// CommandsFailed is the number of dispatched commands whose parse
	// reported an error.
	CommandsFailed int

	// FilesInvalidated is the number of files cleaned up by incremental
	// invalidation.
	FilesInvalidated int

	InvalidateDuration time.Duration
	ParseDuration      time.Duration
	TotalDuration      time.Duration
}

// runCounters are the per-run statistics shared with the workers.
type runCounters struct {
	parsed   atomic.Int64
	failed   atomic.Int64
	progress atomic.Int64
}

// Pipeline is the top-level coordinator of one indexing run. All per-run
// mutable state (the command-hash set, the file classification map) is
// owned by the instance and discarded with it.
type Pipeline struct {
	config Config
	logger *slog.Logger
	store  *storage.Store
	parser TranslationUnitParser
	dedup  *CommandDeduplicator
	ledger *BuildActionLedger

	onProgress ProgressCallback
}

// NewPipeline creates a pipeline over an open store and a translation-unit
// parser collaborator.
func NewPipeline(config Config, store *storage.Store, parser TranslationUnitParser, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if parser == nil {
		return nil, fmt.Errorf("no translation unit parser given")
	}

	return &Pipeline{
		config: config,
		logger: logger,
		store:  store,
		parser: parser,
		dedup:  NewCommandDeduplicator(),
		ledger: NewBuildActionLedger(store, logger),
	}, nil
}

// SetProgressCallback sets an optional callback for progress reporting.
func (p *Pipeline) SetProgressCallback(cb ProgressCallback) {
	p.onProgress = cb
}

func (p *Pipeline) reportProgress(current, total int64, phase string) {
	if p.onProgress != nil {
		p.onProgress(current, total, phase)
	}
}

// Run executes the pipeline: incremental cleanup if requested, command
// deduplication seeding from build history, then orchestrated parsing of
// every input compilation database.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	startTime := time.Now()
	result := &Result{Success: true}

	p.logger.Info("index.start",
		"project_id", p.config.ProjectID,
		"inputs", len(p.config.Inputs),
		"jobs", p.config.Jobs,
		"incremental", p.config.Incremental,
	)
	AppendRunLog(p.config.RunLogDir, "index started")

	if p.config.Incremental {
		p.logger.Info("index.incremental.enabled")
		invStart := time.Now()

		invalidator := NewGraphInvalidator(p.store, p.logger)
		invalidator.SetProgressCallback(func(done, total int64) {
			p.reportProgress(done, total, "invalidating")
		})
		cleaned, err := invalidator.Run(ctx)
		if err != nil {
			return nil, fmt.Errorf("incremental invalidation: %w", err)
		}

		for _, path := range invalidator.Changes().Paths() {
			class, _ := invalidator.Changes().Get(path)
			AppendRunLog(p.config.RunLogDir, fmt.Sprintf("%s %s", class, path))
		}

		result.FilesInvalidated = cleaned
		result.InvalidateDuration = time.Since(invStart)
		p.logger.Info("index.incremental.complete",
			"files_invalidated", cleaned,
			"duration_ms", result.InvalidateDuration.Milliseconds(),
		)
	}

	history, err := p.store.ListBuildActionCommands(ctx)
	if err != nil {
		return nil, fmt.Errorf("load build action history: %w", err)
	}
	p.dedup.Seed(history)
	p.logger.Debug("index.dedup.seeded", "commands", len(history))

	parseStart := time.Now()
	for _, input := range p.config.Inputs {
		info, err := os.Stat(input)
		if err != nil || !info.Mode().IsRegular() {
			p.logger.Debug("index.input.not_regular", "path", input)
			continue
		}
		if !p.parseDatabase(ctx, input, result) {
			result.Success = false
		}
	}
	result.ParseDuration = time.Since(parseStart)
	result.TotalDuration = time.Since(startTime)

	p.logger.Info("index.complete",
		"success", result.Success,
		"commands_parsed", result.CommandsParsed,
		"commands_skipped", result.CommandsSkipped,
		"commands_failed", result.CommandsFailed,
		"files_invalidated", result.FilesInvalidated,
		"total_duration_ms", result.TotalDuration.Milliseconds(),
	)
	AppendRunLog(p.config.RunLogDir, fmt.Sprintf(
		"index completed parsed=%d skipped=%d failed=%d",
		result.CommandsParsed, result.CommandsSkipped, result.CommandsFailed))

	return result, nil
}

// parseDatabase loads one compilation database and drives the worker pool
// over its commands. Returns false when the database itself cannot be
// loaded; per-command failures never fail the database.
func (p *Pipeline) parseDatabase(ctx context.Context, path string, result *Result) bool {
	commands, err := LoadCompilationDatabase(path)
	if err != nil {
		p.logger.Error("index.database.load_failed", "path", path, "err", err)
		AppendRunLog(p.config.RunLogDir, fmt.Sprintf("load failed %s: %v", path, err))
		return false
	}

	total := int64(len(commands))
	counters := &runCounters{}
	p.logger.Info("index.database.loaded", "path", path, "commands", total)

	orch := NewOrchestrator(p.config.Jobs, func(job ParseJob) {
		p.worker(ctx, job, total, counters)
	})

	for i, command := range commands {
		index := i + 1

		if p.excluded(command.Filename) {
			result.CommandsExcluded++
			current := counters.progress.Add(1)
			p.reportProgress(current, total, "parsing")
			continue
		}

		// Claim on the submitting goroutine, before any worker can see
		// the job, so the same command line is never dispatched twice.
		if !p.dedup.TryClaim(command.Line()) {
			p.logger.Info("index.already_parsed",
				"index", index, "total", total, "file", command.Filename)
			commandsSkipped.Inc()
			result.CommandsSkipped++
			current := counters.progress.Add(1)
			p.reportProgress(current, total, "parsing")
			continue
		}

		orch.Enqueue(ParseJob{Command: command, Index: index})
	}

	orch.Wait()

	result.CommandsParsed += int(counters.parsed.Load())
	result.CommandsFailed += int(counters.failed.Load())
	return true
}

// worker handles one parse job: records the build action, invokes the
// external translation-unit parse, and books the outcome. Failures are
// warnings; the pool keeps running.
func (p *Pipeline) worker(ctx context.Context, job ParseJob, total int64, counters *runCounters) {
	defer func() {
		current := counters.progress.Add(1)
		p.reportProgress(current, total, "parsing")
	}()

	command := job.Command
	p.logger.Info("index.parsing",
		"index", job.Index, "total", total, "file", command.Filename)

	if len(command.Arguments) < 2 {
		// Compiler name alone cannot form a translation unit parse.
		p.logger.Error("index.command.invalid",
			"index", job.Index, "file", command.Filename,
			"err", "command line has no arguments beyond the compiler")
		commandsFailed.Inc()
		counters.failed.Add(1)
		return
	}

	actionID, err := p.ledger.RecordAction(ctx, command)
	if err != nil {
		p.logger.Error("index.action.record_failed",
			"index", job.Index, "file", command.Filename, "err", err)
		commandsFailed.Inc()
		counters.failed.Add(1)
		return
	}

	// Compiler name stripped; the collaborator gets only the arguments.
	parseErr := p.parser.ParseTranslationUnit(ctx, command.Arguments[1:], command.Filename)
	if parseErr != nil {
		p.logger.Warn("index.parsing.failed",
			"index", job.Index, "total", total,
			"file", command.Filename, "err", parseErr)
		commandsFailed.Inc()
		counters.failed.Add(1)
	}

	if err := p.ledger.RecordOutcome(ctx, command, actionID, parseErr == nil); err != nil {
		p.logger.Error("index.outcome.record_failed",
			"index", job.Index, "file", command.Filename, "err", err)
		if parseErr == nil {
			// Not yet booked as failed above; every non-success exit counts.
			commandsFailed.Inc()
			counters.failed.Add(1)
		}
		return
	}

	commandsParsed.Inc()
	counters.parsed.Add(1)
}

// excluded reports whether the filename matches any exclude glob.
func (p *Pipeline) excluded(filename string) bool {
	for _, pattern := range p.config.Exclude {
		if ok, err := doublestar.Match(pattern, filename); err == nil && ok {
			p.logger.Debug("index.excluded", "file", filename, "pattern", pattern)
			return true
		}
	}
	return false
}
