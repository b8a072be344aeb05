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

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/cxi/internal/errors"
	"github.com/kraklabs/cxi/internal/ui"
)

// runReset deletes the locally indexed data for the current project, or the
// whole data root when no configuration resolves.
func runReset(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	confirm := fs.Bool("yes", false, "Confirm deletion of all indexed data (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cxi reset --yes

Description:
  Deletes the project's local index database. Every tracked file, stored
  file content, recorded build action, symbol record and the dependency
  graph are removed; the next 'cxi index' run starts from scratch.

  The configuration file (.cxi/project.yaml) is kept. When no
  configuration is found, the whole data root is removed instead.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  cxi reset --yes

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if !*confirm {
		errors.FatalError(errors.NewInputError(
			"Confirmation required",
			"reset deletes all locally indexed data and cannot be undone",
			"Re-run as 'cxi reset --yes' if that is what you want",
		), globals.JSON)
	}

	target, label, err := resetTarget(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	if _, err := os.Stat(target); os.IsNotExist(err) {
		ui.Infof("Nothing to delete for %s", label)
		return
	}

	if err := os.RemoveAll(target); err != nil {
		errors.FatalError(errors.NewPermissionError(
			"Cannot delete indexed data",
			fmt.Sprintf("Removing %s failed", target),
			"Close running cxi processes and check the directory permissions",
			err,
		), globals.JSON)
	}

	ui.Successf("Deleted indexed data for %s (%s)", label, target)
	fmt.Println()
	fmt.Println("Run 'cxi index' to rebuild the index.")
}

// resetTarget picks the directory to delete: the project's data directory
// when a configuration resolves, otherwise the whole data root.
func resetTarget(configPath string) (string, string, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		root, rootErr := dataRoot(nil, configPath)
		return root, "all projects", rootErr
	}
	dir, err := projectDataDir(cfg, configPath)
	return dir, "project " + cfg.ProjectID, err
}
