// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// ProgressConfig decides whether interactive progress bars are shown.
type ProgressConfig struct {
	Enabled bool
}

// NewProgressConfig enables bars only for interactive terminal sessions
// that are not quiet or JSON-scripted.
func NewProgressConfig(globals GlobalFlags) ProgressConfig {
	if globals.Quiet || globals.JSON {
		return ProgressConfig{Enabled: false}
	}
	return ProgressConfig{Enabled: isatty.IsTerminal(os.Stderr.Fd())}
}

// NewProgressBar creates a progress bar for one pipeline phase, or nil when
// progress display is disabled.
func NewProgressBar(cfg ProgressConfig, total int64, description string) *progressbar.ProgressBar {
	if !cfg.Enabled || total <= 0 {
		return nil
	}
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
