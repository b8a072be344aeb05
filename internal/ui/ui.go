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

// Package ui holds the terminal output helpers shared by the CLI commands:
// colored prefixes, headers and value formatting. Colors degrade to plain
// text when stdout is not a terminal or --no-color is set.
package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Shared color printers. Commands use these directly for one-off styling.
var (
	Green  = color.New(color.FgGreen)
	Yellow = color.New(color.FgYellow)
	Red    = color.New(color.FgRed)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
	Dim    = color.New(color.Faint)
)

// InitColors disables color output when requested or when stdout is not a
// terminal. Must run before any command prints.
func InitColors(noColor bool) {
	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
		return
	}
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

// Header prints a bold section header followed by a blank line.
func Header(text string) {
	fmt.Println()
	_, _ = Bold.Println(text)
	fmt.Println()
}

// SubHeader prints a bold sub-section header.
func SubHeader(text string) {
	fmt.Println()
	_, _ = Bold.Println(text)
}

// Label renders a field label in bold for aligned key/value output.
func Label(text string) string {
	return Bold.Sprint(text)
}

// CountText renders a numeric value in cyan.
func CountText[T int | int64 | uint64](n T) string {
	return Cyan.Sprintf("%d", n)
}

// DimText renders secondary information faintly.
func DimText(text string) string {
	return Dim.Sprint(text)
}

// ErrorPrefix returns the red marker used in front of fatal errors.
func ErrorPrefix() string {
	return Red.Sprint("Error:")
}

// Success prints a green checkmark line.
func Success(text string) {
	_, _ = Green.Printf("✓ %s\n", text)
}

// Successf is Success with formatting.
func Successf(format string, args ...any) {
	Success(fmt.Sprintf(format, args...))
}

// Info prints a plain informational line.
func Info(text string) {
	fmt.Println(text)
}

// Infof is Info with formatting.
func Infof(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}

// Warning prints a yellow warning line to stderr.
func Warning(text string) {
	_, _ = Yellow.Fprintf(os.Stderr, "Warning: %s\n", text)
}

// Warningf is Warning with formatting.
func Warningf(format string, args ...any) {
	Warning(fmt.Sprintf(format, args...))
}
