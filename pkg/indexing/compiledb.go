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
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// CompileCommand is one compiler invocation from a compilation database:
// the working directory, the full argument list (compiler name first) and
// the primary file being compiled.
type CompileCommand struct {
	Directory string
	Arguments []string
	Filename  string
}

// Line returns the full command line joined by single spaces. This exact
// string is what gets persisted with the build action and hashed for
// deduplication, so joining is not reversible and not meant to be.
func (c CompileCommand) Line() string {
	return strings.Join(c.Arguments, " ")
}

// compileDBEntry mirrors the on-disk JSON form. Exactly one of "command"
// and "arguments" is expected per entry.
type compileDBEntry struct {
	Directory string   `json:"directory"`
	Command   string   `json:"command"`
	Arguments []string `json:"arguments"`
	File      string   `json:"file"`
}

// LoadCompilationDatabase reads a JSON compilation database
// (compile_commands.json) and returns its commands in file order.
func LoadCompilationDatabase(path string) ([]CompileCommand, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compilation database %s: %w", path, err)
	}

	var entries []compileDBEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse compilation database %s: %w", path, err)
	}

	commands := make([]CompileCommand, 0, len(entries))
	for i, entry := range entries {
		args := entry.Arguments
		if len(args) == 0 {
			args = splitCommandLine(entry.Command)
		}
		if len(args) == 0 {
			return nil, fmt.Errorf("compilation database %s: entry %d has neither command nor arguments", path, i)
		}
		commands = append(commands, CompileCommand{
			Directory: entry.Directory,
			Arguments: args,
			Filename:  entry.File,
		})
	}

	return commands, nil
}

// splitCommandLine splits a shell command string into arguments, honoring
// single quotes, double quotes and backslash escapes. Enough for the GNU
// syntax compile_commands.json uses; no variable expansion.
func splitCommandLine(s string) []string {
	var args []string
	var current strings.Builder
	inArg := false

	const (
		stateNone = iota
		stateSingle
		stateDouble
	)
	state := stateNone
	escaped := false

	for _, r := range s {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\' && state != stateSingle:
			escaped = true
			inArg = true
		case r == '\'' && state == stateNone:
			state = stateSingle
			inArg = true
		case r == '\'' && state == stateSingle:
			state = stateNone
		case r == '"' && state == stateNone:
			state = stateDouble
			inArg = true
		case r == '"' && state == stateDouble:
			state = stateNone
		case (r == ' ' || r == '\t') && state == stateNone:
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(r)
			inArg = true
		}
	}
	if inArg {
		args = append(args, current.String())
	}

	return args
}
