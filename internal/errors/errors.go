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

// Package errors provides user-facing CLI errors: a title for what went
// wrong, a detail for context, and a suggestion for what to do about it.
package errors

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kraklabs/cxi/internal/ui"
)

// Kind classifies a UserError for JSON output and exit reporting.
type Kind string

const (
	KindConfig     Kind = "config"
	KindDatabase   Kind = "database"
	KindInternal   Kind = "internal"
	KindPermission Kind = "permission"
	KindNetwork    Kind = "network"
	KindInput      Kind = "input"
)

// UserError is an error meant to be shown to a person, not just logged.
type UserError struct {
	Kind       Kind   `json:"kind"`
	Title      string `json:"title"`
	Detail     string `json:"detail"`
	Suggestion string `json:"suggestion,omitempty"`
	Err        error  `json:"-"`
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Title, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Title, e.Detail)
}

func (e *UserError) Unwrap() error {
	return e.Err
}

func newUserError(kind Kind, title, detail, suggestion string, errs []error) *UserError {
	ue := &UserError{Kind: kind, Title: title, Detail: detail, Suggestion: suggestion}
	if len(errs) > 0 {
		ue.Err = errs[0]
	}
	return ue
}

// NewConfigError reports a problem with the project configuration.
func NewConfigError(title, detail, suggestion string, err ...error) *UserError {
	return newUserError(KindConfig, title, detail, suggestion, err)
}

// NewDatabaseError reports a problem with the local index database.
func NewDatabaseError(title, detail, suggestion string, err ...error) *UserError {
	return newUserError(KindDatabase, title, detail, suggestion, err)
}

// NewInternalError reports a bug or an unexpected condition.
func NewInternalError(title, detail, suggestion string, err ...error) *UserError {
	return newUserError(KindInternal, title, detail, suggestion, err)
}

// NewPermissionError reports a filesystem or OS permission failure.
func NewPermissionError(title, detail, suggestion string, err ...error) *UserError {
	return newUserError(KindPermission, title, detail, suggestion, err)
}

// NewNetworkError reports a failure reaching an external endpoint.
func NewNetworkError(title, detail, suggestion string, err ...error) *UserError {
	return newUserError(KindNetwork, title, detail, suggestion, err)
}

// NewInputError reports invalid arguments or input files.
func NewInputError(title, detail, suggestion string, err ...error) *UserError {
	return newUserError(KindInput, title, detail, suggestion, err)
}

// FatalError prints the error and exits with status 1. UserErrors render
// with their title, detail and suggestion; anything else prints verbatim.
// With jsonOutput the error is emitted as a single JSON object on stdout so
// scripted callers can parse it.
func FatalError(err error, jsonOutput bool) {
	if jsonOutput {
		printJSON(err)
		os.Exit(1)
	}

	if ue, ok := err.(*UserError); ok {
		fmt.Fprintf(os.Stderr, "%s %s\n", ui.ErrorPrefix(), ue.Title)
		if ue.Detail != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", ue.Detail)
		}
		if ue.Err != nil {
			fmt.Fprintf(os.Stderr, "  %s\n", ui.DimText(ue.Err.Error()))
		}
		if ue.Suggestion != "" {
			fmt.Fprintf(os.Stderr, "\n  %s\n", ue.Suggestion)
		}
	} else {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.ErrorPrefix(), err)
	}
	os.Exit(1)
}

func printJSON(err error) {
	out := struct {
		Success bool   `json:"success"`
		Error   any    `json:"error"`
		Message string `json:"message"`
	}{Success: false, Message: err.Error()}

	if ue, ok := err.(*UserError); ok {
		out.Error = ue
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}
