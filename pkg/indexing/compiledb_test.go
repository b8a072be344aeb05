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
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestSplitCommandLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"plain", "gcc -c a.cpp", []string{"gcc", "-c", "a.cpp"}},
		{"collapsed whitespace", "gcc   -c\ta.cpp", []string{"gcc", "-c", "a.cpp"}},
		{"double quotes", `gcc -DMSG="hello world" a.cpp`, []string{"gcc", "-DMSG=hello world", "a.cpp"}},
		{"single quotes", `gcc -I'/opt/my include' a.cpp`, []string{"gcc", "-I/opt/my include", "a.cpp"}},
		{"escaped space", `gcc a\ b.cpp`, []string{"gcc", "a b.cpp"}},
		{"backslash in single quotes is literal", `gcc 'a\b.cpp'`, []string{"gcc", `a\b.cpp`}},
		{"empty quoted argument", `gcc "" a.cpp`, []string{"gcc", "", "a.cpp"}},
		{"empty string", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitCommandLine(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitCommandLine(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoadCompilationDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "compile_commands.json")
	writeTestFile(t, path, `[
		{"directory": "/src", "arguments": ["gcc", "-c", "a.cpp"], "file": "a.cpp"},
		{"directory": "/src", "command": "gcc -c b.cpp -o b.o", "file": "b.cpp"}
	]`)

	commands, err := LoadCompilationDatabase(path)
	if err != nil {
		t.Fatalf("LoadCompilationDatabase failed: %v", err)
	}
	if len(commands) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(commands))
	}

	want := []string{"gcc", "-c", "a.cpp"}
	if !reflect.DeepEqual(commands[0].Arguments, want) {
		t.Errorf("arguments entry: got %#v, want %#v", commands[0].Arguments, want)
	}

	want = []string{"gcc", "-c", "b.cpp", "-o", "b.o"}
	if !reflect.DeepEqual(commands[1].Arguments, want) {
		t.Errorf("command entry: got %#v, want %#v", commands[1].Arguments, want)
	}
	if commands[1].Directory != "/src" || commands[1].Filename != "b.cpp" {
		t.Errorf("entry metadata wrong: %+v", commands[1])
	}
}

func TestLoadCompilationDatabaseErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadCompilationDatabase(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("missing file should error")
	}

	bad := filepath.Join(dir, "bad.json")
	writeTestFile(t, bad, `{not json`)
	if _, err := LoadCompilationDatabase(bad); err == nil {
		t.Error("malformed JSON should error")
	}

	empty := filepath.Join(dir, "empty_entry.json")
	writeTestFile(t, empty, `[{"directory": "/src", "file": "a.cpp"}]`)
	if _, err := LoadCompilationDatabase(empty); err == nil {
		t.Error("entry without command or arguments should error")
	}
}

func TestCommandLine(t *testing.T) {
	c := CompileCommand{Arguments: []string{"gcc", "-c", "a.cpp"}}
	if got := c.Line(); got != "gcc -c a.cpp" {
		t.Errorf("Line() = %q", got)
	}
}
