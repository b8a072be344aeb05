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
	"fmt"
	"runtime"
)

// Config configures one indexing run. The per-run mutable caches (command
// hashes, file classifications) live on the Pipeline instance, not here.
type Config struct {
	// ProjectID namespaces the data directory.
	ProjectID string

	// Inputs are paths to compilation databases. Each must be a regular
	// file; anything else is skipped with a warning.
	Inputs []string

	// Jobs is the parse worker count, minimum 1.
	Jobs int

	// Incremental enables change detection and cascade cleanup before
	// parsing.
	Incremental bool

	// SkipDocComments asks the AST collaborator to skip documentation
	// comment extraction.
	SkipDocComments bool

	// Exclude holds doublestar glob patterns; compile commands whose
	// primary file matches any pattern are skipped.
	Exclude []string

	// RunLogDir is the directory for the append-only run log. Empty
	// disables the log.
	RunLogDir string
}

// DefaultConfig returns a config with sensible local defaults.
func DefaultConfig() Config {
	return Config{
		Jobs: runtime.NumCPU(),
		Exclude: []string{
			"**/CMakeFiles/**",
			"**/conftest.c",
		},
	}
}

// Validate checks the config for obvious mistakes.
func (c *Config) Validate() error {
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	if len(c.Inputs) == 0 {
		return fmt.Errorf("no compilation database inputs given")
	}
	return nil
}
