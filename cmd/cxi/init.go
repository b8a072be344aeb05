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
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/cxi/internal/errors"
	"github.com/kraklabs/cxi/internal/ui"
)

var projectIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// runInit executes the 'init' CLI command, creating .cxi/project.yaml in
// the current directory.
//
// Flags:
//   - --project-id: Project identifier (default: sanitized directory name)
//   - --force: Overwrite an existing configuration
func runInit(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	projectID := fs.String("project-id", "", "Project identifier (default: directory name)")
	force := fs.Bool("force", false, "Overwrite existing configuration")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cxi init [options]

Description:
  Create the .cxi/project.yaml configuration file for this project.
  The project ID defaults to the current directory name; pass
  --project-id to choose your own.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  cxi init
  cxi init --project-id my-service
  cxi init --force

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewInternalError(
			"Cannot access current directory",
			"Failed to determine working directory",
			"Check system permissions and try again",
			err,
		), globals.JSON)
	}

	configPath := ConfigPath(cwd)
	if _, err := os.Stat(configPath); err == nil && !*force {
		errors.FatalError(errors.NewConfigError(
			"Configuration already exists",
			fmt.Sprintf("%s is already present", configPath),
			"Use 'cxi init --force' to overwrite it",
		), globals.JSON)
	}

	id := *projectID
	if id == "" {
		id = sanitizeProjectID(filepath.Base(cwd))
	}
	if !projectIDPattern.MatchString(id) {
		errors.FatalError(errors.NewInputError(
			"Invalid project ID",
			fmt.Sprintf("'%s' contains characters outside [a-z0-9._-]", id),
			"Pass a lowercase alphanumeric ID with --project-id",
		), globals.JSON)
	}

	cfg := DefaultConfig(id)
	if err := SaveConfig(cfg, configPath); err != nil {
		errors.FatalError(err, globals.JSON)
	}

	ui.Successf("Created %s", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Generate a compilation database (e.g. %s)\n",
		ui.Cyan.Sprint("cmake -DCMAKE_EXPORT_COMPILE_COMMANDS=ON"))
	fmt.Printf("  2. Run '%s' to build the index\n", ui.Cyan.Sprint("cxi index"))
	fmt.Printf("  3. Run '%s' to verify indexing\n", ui.Cyan.Sprint("cxi status"))
}

// sanitizeProjectID lowercases the name and replaces unsupported runes so a
// directory name like "My Project" becomes a usable ID.
func sanitizeProjectID(name string) string {
	name = strings.ToLower(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
