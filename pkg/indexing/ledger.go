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
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/kraklabs/cxi/pkg/storage"
)

// sourceExtensions are the argument extensions recognized as build inputs.
var sourceExtensions = []string{".c", ".cc", ".cpp", ".cxx", ".o", ".so", ".a"}

// BuildActionLedger records one build action per compile command together
// with the source/target file associations it produced. The action row is
// written before the parse runs, so a crash mid-parse still leaves an audit
// record; the outcome is booked afterwards in a single transaction.
type BuildActionLedger struct {
	store  *storage.Store
	logger *slog.Logger
}

// NewBuildActionLedger creates a ledger over the given store.
func NewBuildActionLedger(store *storage.Store, logger *slog.Logger) *BuildActionLedger {
	if logger == nil {
		logger = slog.Default()
	}
	return &BuildActionLedger{store: store, logger: logger}
}

// isSourceFile reports whether the argument has a recognized source or
// object extension, case-insensitively.
func isSourceFile(arg string) bool {
	ext := strings.ToLower(filepath.Ext(arg))
	for _, e := range sourceExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// isLinkerPassthrough reports whether the argument is forwarded to the
// linker rather than naming a file.
func isLinkerPassthrough(arg string) bool {
	return strings.HasPrefix(arg, "-Wl,")
}

// absoluteAgainst resolves a path against the command's working directory.
func absoluteAgainst(path, dir string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(dir, path))
}

// extractInputOutputs derives the input-to-output file mapping of a compile
// command from its argument list. Arguments with a source extension that
// are not linker passthroughs are inputs; the argument after -o is the
// explicit output. Without an explicit output, -c maps each input to its
// own path with the extension replaced by .o; otherwise every input maps to
// one output, defaulting to <dir>/a.out.
func extractInputOutputs(command CompileCommand) map[string]string {
	inToOut := make(map[string]string)

	var (
		sources   []string
		output    string
		hasCParam bool
		wantOut   bool
	)

	for _, arg := range command.Arguments {
		switch {
		case wantOut:
			output = absoluteAgainst(arg, command.Directory)
			wantOut = false
		case isSourceFile(arg) && !isLinkerPassthrough(arg):
			sources = append(sources, absoluteAgainst(arg, command.Directory))
		case arg == "-c":
			hasCParam = true
		case arg == "-o":
			wantOut = true
		}
	}

	if output == "" && hasCParam {
		for _, src := range sources {
			ext := filepath.Ext(src)
			inToOut[src] = strings.TrimSuffix(src, ext) + ".o"
		}
		return inToOut
	}

	if output == "" {
		output = filepath.Join(command.Directory, "a.out")
	}
	for _, src := range sources {
		inToOut[src] = output
	}

	return inToOut
}

// RecordAction persists the build action for a command before the parse
// attempt runs and returns its id. The action type is derived from the
// compiled file's extension: object and library targets mean a link step.
func (l *BuildActionLedger) RecordAction(ctx context.Context, command CompileCommand) (int64, error) {
	typ := storage.ActionCompile
	switch strings.ToLower(filepath.Ext(command.Filename)) {
	case ".o", ".so", ".a":
		typ = storage.ActionLink
	}

	var actionID int64
	err := l.store.WithTx(ctx, func(tx *storage.Tx) error {
		var err error
		actionID, err = tx.CreateBuildAction(ctx, command.Line(), typ)
		return err
	})
	if err != nil {
		return 0, err
	}
	return actionID, nil
}

// RecordOutcome books the result of a parse attempt: every input file's
// parse status, every output file's promotion to binary, and the
// source/target rows referencing the action. All mutations for the command
// are prepared first and land in one transaction.
func (l *BuildActionLedger) RecordOutcome(ctx context.Context, command CompileCommand, actionID int64, succeeded bool) error {
	status := storage.ParseStatusFullyParsed
	if !succeeded {
		status = storage.ParseStatusPartiallyParsed
	}

	inToOut := extractInputOutputs(command)

	return l.store.WithTx(ctx, func(tx *storage.Tx) error {
		for input, output := range inToOut {
			src, err := tx.GetOrCreateFile(ctx, input)
			if err != nil {
				return err
			}
			if err := tx.UpdateFileStatus(ctx, src.ID, status); err != nil {
				return err
			}

			tgt, err := tx.GetOrCreateFile(ctx, output)
			if err != nil {
				return err
			}
			if tgt.Type != storage.FileTypeBinary {
				if err := tx.UpdateFileType(ctx, tgt.ID, storage.FileTypeBinary); err != nil {
					return err
				}
			}

			if err := tx.CreateBuildSource(ctx, src.ID, actionID); err != nil {
				return err
			}
			if err := tx.CreateBuildTarget(ctx, tgt.ID, actionID); err != nil {
				return err
			}
		}
		return nil
	})
}
