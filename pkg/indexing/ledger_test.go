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
	"reflect"
	"testing"

	"github.com/kraklabs/cxi/pkg/storage"
)

func TestExtractInputOutputs(t *testing.T) {
	tests := []struct {
		name string
		dir  string
		args []string
		want map[string]string
	}{
		{
			name: "explicit output",
			dir:  "/src",
			args: []string{"gcc", "-c", "a.cpp", "-o", "a.o"},
			want: map[string]string{"/src/a.cpp": "/src/a.o"},
		},
		{
			name: "compile only derives object name",
			dir:  "/src",
			args: []string{"gcc", "-c", "a.cpp"},
			want: map[string]string{"/src/a.cpp": "/src/a.o"},
		},
		{
			name: "link maps every input to one output",
			dir:  "/src",
			args: []string{"gcc", "a.cpp", "b.cpp", "-o", "prog"},
			want: map[string]string{"/src/a.cpp": "/src/prog", "/src/b.cpp": "/src/prog"},
		},
		{
			name: "default output is a.out in the working directory",
			dir:  "/src",
			args: []string{"gcc", "a.cpp"},
			want: map[string]string{"/src/a.cpp": "/src/a.out"},
		},
		{
			name: "linker passthrough is not an input",
			dir:  "/src",
			args: []string{"gcc", "main.o", "-Wl,libfoo.so", "-o", "prog"},
			want: map[string]string{"/src/main.o": "/src/prog"},
		},
		{
			name: "absolute paths stay absolute",
			dir:  "/src",
			args: []string{"gcc", "-c", "/other/a.cpp", "-o", "/out/a.o"},
			want: map[string]string{"/other/a.cpp": "/out/a.o"},
		},
		{
			name: "uppercase extension still recognized",
			dir:  "/src",
			args: []string{"gcc", "-c", "a.CPP"},
			want: map[string]string{"/src/a.CPP": "/src/a.o"},
		},
		{
			name: "no inputs yields empty mapping",
			dir:  "/src",
			args: []string{"gcc", "--version"},
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractInputOutputs(CompileCommand{Directory: tt.dir, Arguments: tt.args})
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("extractInputOutputs() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestRecordActionType(t *testing.T) {
	s := newTestStore(t)
	l := NewBuildActionLedger(s, newTestLogger())
	ctx := context.Background()

	tests := []struct {
		filename string
		want     storage.BuildActionType
	}{
		{"a.cpp", storage.ActionCompile},
		{"a.o", storage.ActionLink},
		{"libx.so", storage.ActionLink},
		{"libx.a", storage.ActionLink},
	}

	for _, tt := range tests {
		actionID, err := l.RecordAction(ctx, CompileCommand{
			Directory: "/src",
			Arguments: []string{"gcc", tt.filename},
			Filename:  tt.filename,
		})
		if err != nil {
			t.Fatalf("RecordAction(%s) failed: %v", tt.filename, err)
		}

		_, rows, err := s.RawQuery(ctx,
			fmt.Sprintf("SELECT type FROM build_actions WHERE id = %d", actionID))
		if err != nil || len(rows) != 1 {
			t.Fatalf("lookup of action %d failed: %v", actionID, err)
		}
		if want := fmt.Sprintf("%d", tt.want); rows[0][0] != want {
			t.Errorf("%s: action type %s, want %s", tt.filename, rows[0][0], want)
		}
	}
}

func TestRecordOutcomeSuccess(t *testing.T) {
	s := newTestStore(t)
	l := NewBuildActionLedger(s, newTestLogger())
	ctx := context.Background()

	command := CompileCommand{
		Directory: "/src",
		Arguments: []string{"gcc", "-c", "a.cpp", "-o", "a.o"},
		Filename:  "a.cpp",
	}
	actionID, err := l.RecordAction(ctx, command)
	if err != nil {
		t.Fatalf("RecordAction failed: %v", err)
	}
	if err := l.RecordOutcome(ctx, command, actionID, true); err != nil {
		t.Fatalf("RecordOutcome failed: %v", err)
	}

	src, err := s.GetFile(ctx, "/src/a.cpp")
	if err != nil {
		t.Fatalf("source file missing: %v", err)
	}
	if src.ParseStatus != storage.ParseStatusFullyParsed {
		t.Errorf("source status %v, want fully parsed", src.ParseStatus)
	}

	tgt, err := s.GetFile(ctx, "/src/a.o")
	if err != nil {
		t.Fatalf("target file missing: %v", err)
	}
	if tgt.Type != storage.FileTypeBinary {
		t.Errorf("target type %q, want binary", tgt.Type)
	}

	actions, err := s.ActionsWithSource(ctx, src.ID)
	if err != nil {
		t.Fatalf("ActionsWithSource failed: %v", err)
	}
	if len(actions) != 1 || actions[0] != actionID {
		t.Errorf("expected source linked to action %d, got %v", actionID, actions)
	}
}

func TestRecordOutcomeFailureMarksPartiallyParsed(t *testing.T) {
	s := newTestStore(t)
	l := NewBuildActionLedger(s, newTestLogger())
	ctx := context.Background()

	command := CompileCommand{
		Directory: "/src",
		Arguments: []string{"gcc", "-c", "a.cpp"},
		Filename:  "a.cpp",
	}
	actionID, err := l.RecordAction(ctx, command)
	if err != nil {
		t.Fatalf("RecordAction failed: %v", err)
	}
	if err := l.RecordOutcome(ctx, command, actionID, false); err != nil {
		t.Fatalf("RecordOutcome failed: %v", err)
	}

	src, err := s.GetFile(ctx, "/src/a.cpp")
	if err != nil {
		t.Fatalf("source file missing: %v", err)
	}
	if src.ParseStatus != storage.ParseStatusPartiallyParsed {
		t.Errorf("source status %v, want partially parsed", src.ParseStatus)
	}
}
