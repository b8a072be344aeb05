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

package indexing

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/cxi/pkg/storage"
)

// countingParser records every filename it was asked to parse.
type countingParser struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (p *countingParser) ParseTranslationUnit(ctx context.Context, args []string, filename string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, filename)
	if p.fail[filename] {
		return errors.New("simulated parse failure")
	}
	return nil
}

func (p *countingParser) parsed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// writeCompileDB writes a compilation database over real source files so
// that incremental change detection sees them on disk.
func writeCompileDB(t *testing.T, dir string, names ...string) string {
	t.Helper()

	entries := "["
	for i, name := range names {
		src := filepath.Join(dir, name)
		writeTestFile(t, src, "int "+name[:1]+";")
		if i > 0 {
			entries += ","
		}
		entries += fmt.Sprintf(
			`{"directory": %q, "arguments": ["gcc", "-c", %q], "file": %q}`,
			dir, src, src)
	}
	entries += "]"

	dbPath := filepath.Join(dir, "compile_commands.json")
	writeTestFile(t, dbPath, entries)
	return dbPath
}

func testConfig(t *testing.T, inputs ...string) Config {
	cfg := DefaultConfig()
	cfg.ProjectID = "test-project"
	cfg.Inputs = inputs
	cfg.Jobs = 2
	cfg.Incremental = true
	cfg.RunLogDir = t.TempDir()
	return cfg
}

func TestPipelineParsesEveryCommand(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	dbPath := writeCompileDB(t, dir, "a.cpp", "b.cpp")

	parser := &countingParser{}
	p, err := NewPipeline(testConfig(t, dbPath), s, parser, newTestLogger())
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.CommandsParsed)
	assert.Zero(t, result.CommandsSkipped)
	assert.Len(t, parser.parsed(), 2)

	// Both sources were booked with their derived object targets.
	src, err := s.GetFile(context.Background(), filepath.Join(dir, "a.cpp"))
	require.NoError(t, err)
	assert.Equal(t, storage.ParseStatusFullyParsed, src.ParseStatus)
}

func TestPipelineSecondRunSkipsParsedCommands(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	dbPath := writeCompileDB(t, dir, "a.cpp", "b.cpp")

	first := &countingParser{}
	p1, err := NewPipeline(testConfig(t, dbPath), s, first, newTestLogger())
	require.NoError(t, err)
	_, err = p1.Run(context.Background())
	require.NoError(t, err)

	// Nothing changed on disk, so the second incremental run finds every
	// command already in the build history.
	second := &countingParser{}
	p2, err := NewPipeline(testConfig(t, dbPath), s, second, newTestLogger())
	require.NoError(t, err)
	result, err := p2.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Zero(t, result.CommandsParsed)
	assert.Equal(t, 2, result.CommandsSkipped)
	assert.Zero(t, result.FilesInvalidated)
	assert.Empty(t, second.parsed())
}

func TestPipelineDeduplicatesWithinOneRun(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()

	src := filepath.Join(dir, "a.cpp")
	writeTestFile(t, src, "int a;")
	entry := fmt.Sprintf(
		`{"directory": %q, "arguments": ["gcc", "-c", %q], "file": %q}`,
		dir, src, src)
	dbPath := filepath.Join(dir, "compile_commands.json")
	writeTestFile(t, dbPath, "["+entry+","+entry+"]")

	parser := &countingParser{}
	p, err := NewPipeline(testConfig(t, dbPath), s, parser, newTestLogger())
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.CommandsParsed)
	assert.Equal(t, 1, result.CommandsSkipped)
	assert.Len(t, parser.parsed(), 1)
}

func TestPipelineParallelWorkersBookEveryCommand(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()

	// Two distinct commands over the same source file, handled by two
	// workers at once. Both build actions must land in the store.
	src := filepath.Join(dir, "shared.cpp")
	writeTestFile(t, src, "int shared;")
	entryA := fmt.Sprintf(
		`{"directory": %q, "arguments": ["gcc", "-c", "-DVARIANT_A", %q], "file": %q}`,
		dir, src, src)
	entryB := fmt.Sprintf(
		`{"directory": %q, "arguments": ["gcc", "-c", "-DVARIANT_B", %q], "file": %q}`,
		dir, src, src)
	dbPath := filepath.Join(dir, "compile_commands.json")
	writeTestFile(t, dbPath, "["+entryA+","+entryB+"]")

	parser := &countingParser{}
	p, err := NewPipeline(testConfig(t, dbPath), s, parser, newTestLogger())
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.CommandsParsed)
	assert.Zero(t, result.CommandsFailed)

	ctx := context.Background()
	f, err := s.GetFile(ctx, src)
	require.NoError(t, err)
	actions, err := s.ActionsWithSource(ctx, f.ID)
	require.NoError(t, err)
	assert.Len(t, actions, 2, "every worker's bookkeeping must land")
}

func TestPipelineInvalidCommandCountsAsFailed(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()

	src := filepath.Join(dir, "a.cpp")
	writeTestFile(t, src, "int a;")
	entry := fmt.Sprintf(
		`{"directory": %q, "arguments": ["gcc"], "file": %q}`, dir, src)
	dbPath := filepath.Join(dir, "compile_commands.json")
	writeTestFile(t, dbPath, "["+entry+"]")

	parser := &countingParser{}
	p, err := NewPipeline(testConfig(t, dbPath), s, parser, newTestLogger())
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Zero(t, result.CommandsParsed)
	assert.Equal(t, 1, result.CommandsFailed,
		"a command without arguments beyond the compiler is a failure")
	assert.Empty(t, parser.parsed())
}

func TestPipelineBadDatabaseFailsRunButContinues(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	writeTestFile(t, bad, "{not json")
	good := writeCompileDB(t, dir, "a.cpp")

	parser := &countingParser{}
	p, err := NewPipeline(testConfig(t, bad, good), s, parser, newTestLogger())
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Success, "a failed database load must fail the run")
	assert.Equal(t, 1, result.CommandsParsed, "remaining databases still parse")
}

func TestPipelineParseFailureIsNotFatal(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	dbPath := writeCompileDB(t, dir, "a.cpp", "b.cpp")

	parser := &countingParser{fail: map[string]bool{filepath.Join(dir, "a.cpp"): true}}
	p, err := NewPipeline(testConfig(t, dbPath), s, parser, newTestLogger())
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success, "parse failures do not fail the run")
	assert.Equal(t, 2, result.CommandsParsed)
	assert.Equal(t, 1, result.CommandsFailed)

	// The failed file is booked as partially parsed, not dropped.
	f, err := s.GetFile(context.Background(), filepath.Join(dir, "a.cpp"))
	require.NoError(t, err)
	assert.Equal(t, storage.ParseStatusPartiallyParsed, f.ParseStatus)
}

func TestPipelineExcludeGlobs(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	dbPath := writeCompileDB(t, dir, "a.cpp", "conftest.c")

	cfg := testConfig(t, dbPath)
	parser := &countingParser{}
	p, err := NewPipeline(cfg, s, parser, newTestLogger())
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.CommandsParsed)
	assert.Equal(t, 1, result.CommandsExcluded)
	assert.NotContains(t, parser.parsed(), filepath.Join(dir, "conftest.c"))
}

func TestPipelineIgnoresNonRegularInputs(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()

	parser := &countingParser{}
	p, err := NewPipeline(testConfig(t, dir), s, parser, newTestLogger())
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success, "a directory input is ignored, not an error")
	assert.Zero(t, result.CommandsParsed)
}

func TestPipelineReportsProgress(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	dbPath := writeCompileDB(t, dir, "a.cpp", "b.cpp")

	parser := &countingParser{}
	p, err := NewPipeline(testConfig(t, dbPath), s, parser, newTestLogger())
	require.NoError(t, err)

	var mu sync.Mutex
	var maxCurrent, lastTotal int64
	p.SetProgressCallback(func(current, total int64, phase string) {
		mu.Lock()
		defer mu.Unlock()
		if current > maxCurrent {
			maxCurrent = current
		}
		lastTotal = total
	})

	_, err = p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), maxCurrent)
	assert.Equal(t, int64(2), lastTotal)
}

func TestPipelineReportsInvalidationProgress(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	dbPath := writeCompileDB(t, dir, "a.cpp")

	// A tracked file whose stored content no longer matches disk makes the
	// incremental run clean it up before parsing.
	stale := filepath.Join(dir, "stale.cpp")
	writeTestFile(t, stale, "int stale;")
	trackFile(t, s, stale, "previously recorded content")

	parser := &countingParser{}
	p, err := NewPipeline(testConfig(t, dbPath), s, parser, newTestLogger())
	require.NoError(t, err)

	var mu sync.Mutex
	phases := map[string]int64{}
	p.SetProgressCallback(func(current, total int64, phase string) {
		mu.Lock()
		defer mu.Unlock()
		if total > phases[phase] {
			phases[phase] = total
		}
	})

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesInvalidated)
	assert.Equal(t, int64(1), phases["invalidating"],
		"the invalidation phase must report its progress")
	assert.Equal(t, int64(1), phases["parsing"])
}

func TestNewPipelineValidation(t *testing.T) {
	s := newTestStore(t)

	_, err := NewPipeline(testConfig(t), s, &countingParser{}, newTestLogger())
	assert.Error(t, err, "empty inputs must be rejected")

	_, err = NewPipeline(testConfig(t, "x.json"), s, nil, newTestLogger())
	assert.Error(t, err, "a nil parser must be rejected")
}
