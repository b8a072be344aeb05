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
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/cxi/internal/errors"
)

const (
	defaultConfigDir  = ".cxi"
	defaultConfigFile = "project.yaml"
	configVersion     = "1"
)

// Config represents the .cxi/project.yaml configuration file.
type Config struct {
	Version   string         `yaml:"version"`
	ProjectID string         `yaml:"project_id"`
	Indexing  IndexingConfig `yaml:"indexing"`
	Parser    ParserConfig   `yaml:"parser"`
}

// IndexingConfig contains indexing settings.
type IndexingConfig struct {
	Jobs         int      `yaml:"jobs"`                     // parallel parse workers
	Exclude      []string `yaml:"exclude"`                  // glob patterns
	LocalDataDir string   `yaml:"local_data_dir,omitempty"` // overrides ~/.cxi/data
}

// ParserConfig configures the external translation-unit parser tool.
type ParserConfig struct {
	Command         string `yaml:"command"`           // parser executable
	SkipDocComments bool   `yaml:"skip_doc_comments"` // drop doc comment collection
}

// DefaultConfig returns a config with sensible defaults for local use.
func DefaultConfig(projectID string) *Config {
	return &Config{
		Version:   configVersion,
		ProjectID: projectID,
		Indexing: IndexingConfig{
			Jobs: runtime.NumCPU(),
			Exclude: []string{
				"**/CMakeFiles/**",
				"**/conftest.c",
			},
		},
		Parser: ParserConfig{
			Command: getEnv("CXI_PARSER_COMMAND", "cxi-astdump"),
		},
	}
}

// LoadConfig loads configuration from the specified path or finds it
// automatically. If configPath is empty, CXI_CONFIG_PATH is consulted and
// then .cxi/project.yaml is searched for in the current directory and its
// parents. Environment overrides are applied after loading.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = os.Getenv("CXI_CONFIG_PATH")
	}
	if configPath == "" {
		var err error
		configPath, err = findConfigFile()
		if err != nil {
			return nil, err // findConfigFile returns UserError
		}
	}

	data, err := os.ReadFile(configPath) //nolint:gosec // G304: Path comes from user config or discovery
	if err != nil {
		return nil, errors.NewConfigError(
			"Cannot read configuration file",
			fmt.Sprintf("Failed to read %s", configPath),
			"Check file permissions and ensure the file exists",
			err,
		)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewConfigError(
			"Invalid configuration format",
			"YAML parsing failed - the config file contains syntax errors",
			fmt.Sprintf("Edit %s to fix syntax errors, or run 'cxi init --force' to recreate", configPath),
			err,
		)
	}

	if cfg.Version != configVersion {
		return nil, errors.NewConfigError(
			"Unsupported configuration version",
			fmt.Sprintf("Config version '%s' is not supported (expected '%s')", cfg.Version, configVersion),
			"Run 'cxi init --force' to regenerate the configuration file",
		)
	}

	cfg.applyEnvOverrides()

	return &cfg, nil
}

// SaveConfig writes the configuration as YAML, creating the .cxi directory
// if needed.
func SaveConfig(cfg *Config, configPath string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.NewInternalError(
			"Cannot encode configuration",
			"YAML marshaling failed unexpectedly",
			"This is a bug. Please report it with your configuration details",
			err,
		)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return errors.NewPermissionError(
			"Cannot create configuration directory",
			fmt.Sprintf("Permission denied creating %s", dir),
			"Check directory permissions or run with appropriate privileges",
			err,
		)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return errors.NewPermissionError(
			"Cannot write configuration file",
			fmt.Sprintf("Permission denied writing to %s", configPath),
			"Check file permissions and ensure sufficient disk space",
			err,
		)
	}

	return nil
}

// ConfigPath returns <dir>/.cxi/project.yaml.
func ConfigPath(dir string) string {
	return filepath.Join(dir, defaultConfigDir, defaultConfigFile)
}

// ConfigDir returns <dir>/.cxi.
func ConfigDir(dir string) string {
	return filepath.Join(dir, defaultConfigDir)
}

// dataRoot returns the directory holding indexed data for every project.
// The CXI_DATA_DIR environment variable wins, then the config's
// indexing.local_data_dir, then ~/.cxi/data. A relative local_data_dir is
// anchored at the directory containing project.yaml so that the same config
// resolves identically from any working directory.
func dataRoot(cfg *Config, configPath string) (string, error) {
	dir := os.Getenv("CXI_DATA_DIR")
	if dir == "" && cfg != nil && cfg.Indexing.LocalDataDir != "" {
		dir = cfg.Indexing.LocalDataDir
		if !filepath.IsAbs(dir) {
			if base, err := configFileDir(configPath); err == nil {
				dir = filepath.Join(base, dir)
			}
		}
	}
	if dir != "" {
		return filepath.Abs(dir)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternalError(
			"Cannot locate home directory",
			"The data root defaults to ~/.cxi/data but no home directory is available",
			"Set the HOME environment variable, or point CXI_DATA_DIR at a writable directory",
			err,
		)
	}
	return filepath.Join(home, ".cxi", "data"), nil
}

// projectDataDir returns the per-project data directory under the data root.
func projectDataDir(cfg *Config, configPath string) (string, error) {
	root, err := dataRoot(cfg, configPath)
	if err != nil || cfg == nil || cfg.ProjectID == "" {
		return root, err
	}
	return filepath.Join(root, cfg.ProjectID), nil
}

// configFileDir resolves the directory containing the effective config file,
// using the same precedence as LoadConfig: explicit path, CXI_CONFIG_PATH,
// then parent-directory discovery.
func configFileDir(configPath string) (string, error) {
	if configPath == "" {
		configPath = os.Getenv("CXI_CONFIG_PATH")
	}
	if configPath == "" {
		found, err := findConfigFile()
		if err != nil {
			return "", err
		}
		configPath = found
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return "", err
	}
	return filepath.Dir(abs), nil
}

// findConfigFile searches for .cxi/project.yaml in the current directory
// and every parent up to the filesystem root.
func findConfigFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", errors.NewInternalError(
			"Cannot access working directory",
			"Failed to determine current directory path",
			"Check system permissions and try again",
			err,
		)
	}

	for {
		configPath := ConfigPath(dir)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.NewConfigError(
		"Configuration not found",
		"No .cxi/project.yaml file found in current directory or any parent directory",
		"Run 'cxi init' to create a new configuration",
	)
}

// applyEnvOverrides lets environment variables take precedence over the
// file-based configuration.
//
// Supported variables:
//   - CXI_PROJECT_ID: Override project identifier
//   - CXI_PARSER_COMMAND: Override the parser executable
//   - CXI_JOBS is deliberately not supported; use the --jobs flag
func (c *Config) applyEnvOverrides() {
	if id := os.Getenv("CXI_PROJECT_ID"); id != "" {
		c.ProjectID = id
	}
	if cmd := os.Getenv("CXI_PARSER_COMMAND"); cmd != "" {
		c.Parser.Command = cmd
	}
}

// getEnv retrieves an environment variable or returns a fallback.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
