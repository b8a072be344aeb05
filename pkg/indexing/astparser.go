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
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

// TranslationUnitParser walks the AST of a single translation unit and
// records the extracted nodes, entities, relations and documentation in the
// store. The indexer only schedules it and books the outcome; the walk
// itself is a collaborator concern.
type TranslationUnitParser interface {
	// ParseTranslationUnit receives the compiler arguments with the
	// compiler name already stripped, plus the primary filename. A non-nil
	// error means the unit was only partially parsed.
	ParseTranslationUnit(ctx context.Context, args []string, filename string) error
}

// ParserFunc adapts a plain function to TranslationUnitParser.
type ParserFunc func(ctx context.Context, args []string, filename string) error

func (f ParserFunc) ParseTranslationUnit(ctx context.Context, args []string, filename string) error {
	return f(ctx, args, filename)
}

// ToolParser runs an external AST extractor process per translation unit.
// The tool receives the filename followed by "--" and the compiler
// arguments, and signals partial failure through its exit code.
type ToolParser struct {
	// Command is the extractor binary to execute.
	Command string

	// SkipDocComments is forwarded to the tool via CXI_SKIP_DOCCOMMENT=1.
	SkipDocComments bool

	Logger *slog.Logger
}

func (t *ToolParser) ParseTranslationUnit(ctx context.Context, args []string, filename string) error {
	if t.Command == "" {
		return fmt.Errorf("no AST extractor configured")
	}

	argv := make([]string, 0, len(args)+2)
	argv = append(argv, filename, "--")
	argv = append(argv, args...)

	cmd := exec.CommandContext(ctx, t.Command, argv...)
	cmd.Env = os.Environ()
	if t.SkipDocComments {
		cmd.Env = append(cmd.Env, "CXI_SKIP_DOCCOMMENT=1")
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		if t.Logger != nil {
			t.Logger.Debug("astparser.tool.output", "file", filename, "output", string(out))
		}
		return fmt.Errorf("ast extractor %s: %w", t.Command, err)
	}
	return nil
}
