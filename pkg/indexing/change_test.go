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
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/cxi/pkg/storage"
)

func TestChangeSetFirstClassificationWins(t *testing.T) {
	cs := NewChangeSet()

	if !cs.Mark("/src/a.cpp", ClassModified) {
		t.Fatal("first mark should succeed")
	}
	if cs.Mark("/src/a.cpp", ClassDeleted) {
		t.Error("second mark of the same path should be rejected")
	}

	class, ok := cs.Get("/src/a.cpp")
	if !ok || class != ClassModified {
		t.Errorf("expected modified to stick, got %v (ok=%v)", class, ok)
	}
	if cs.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", cs.Len())
	}
}

func TestHashContentStable(t *testing.T) {
	h1 := HashContent([]byte("int main() {}"))
	h2 := HashContent([]byte("int main() {}"))
	h3 := HashContent([]byte("int main() { return 1; }"))

	if h1 != h2 {
		t.Error("same content must hash identically")
	}
	if h1 == h3 {
		t.Error("different content must hash differently")
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
}

// trackFile registers a file in the store with the given on-disk content
// hashed and attached, simulating what ingestion records during a parse.
func trackFile(t *testing.T, s *storage.Store, path, content string) *storage.File {
	t.Helper()
	ctx := context.Background()

	f, err := s.GetOrCreateFile(ctx, path)
	if err != nil {
		t.Fatalf("GetOrCreateFile(%s) failed: %v", path, err)
	}
	if content != "" {
		if err := s.SetFileContent(ctx, f.ID, HashContent([]byte(content)), content); err != nil {
			t.Fatalf("SetFileContent(%s) failed: %v", path, err)
		}
		f, err = s.GetFile(ctx, path)
		if err != nil {
			t.Fatalf("reload of %s failed: %v", path, err)
		}
	}
	return f
}

func TestDetectClassifiesModifiedAndDeleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	unchanged := filepath.Join(dir, "same.cpp")
	modified := filepath.Join(dir, "touched.cpp")
	deleted := filepath.Join(dir, "gone.cpp")
	untracked := filepath.Join(dir, "nocontent.cpp")

	writeTestFile(t, unchanged, "int a;")
	writeTestFile(t, modified, "int b;")
	writeTestFile(t, untracked, "int d;")

	trackFile(t, s, unchanged, "int a;")
	trackFile(t, s, modified, "int b;")
	trackFile(t, s, deleted, "int c;")
	trackFile(t, s, untracked, "") // tracked but without stored content

	// Change one file on disk after its content was recorded.
	writeTestFile(t, modified, "int b; int bb;")

	changes := NewChangeSet()
	var modifiedPaths []string
	detector := NewContentChangeDetector(s, newTestLogger())
	err := detector.Detect(ctx, changes, func(ctx context.Context, f *storage.File) error {
		modifiedPaths = append(modifiedPaths, f.Path)
		changes.Mark(f.Path, ClassModified)
		return nil
	})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(modifiedPaths) != 1 || modifiedPaths[0] != modified {
		t.Errorf("expected only %s reported modified, got %v", modified, modifiedPaths)
	}
	if class, ok := changes.Get(deleted); !ok || class != ClassDeleted {
		t.Errorf("expected %s classified deleted, got %v (ok=%v)", deleted, class, ok)
	}
	if changes.Has(unchanged) {
		t.Errorf("unchanged file %s must not be classified", unchanged)
	}
	if changes.Has(untracked) {
		t.Errorf("file without stored content %s must not be classified", untracked)
	}
	if changes.Len() != 2 {
		t.Errorf("expected 2 classifications, got %d", changes.Len())
	}
}

func TestDetectSkipsAlreadyClassified(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	path := filepath.Join(dir, "a.cpp")
	writeTestFile(t, path, "int a;")
	trackFile(t, s, path, "different stored content")

	changes := NewChangeSet()
	changes.Mark(path, ClassModified)

	calls := 0
	detector := NewContentChangeDetector(s, newTestLogger())
	err := detector.Detect(ctx, changes, func(ctx context.Context, f *storage.File) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if calls != 0 {
		t.Errorf("already classified file must not be re-reported, got %d calls", calls)
	}
}

func TestDetectIgnoresUnreadableFiles(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}

	s := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	path := filepath.Join(dir, "a.cpp")
	writeTestFile(t, path, "int a;")
	trackFile(t, s, path, "int a;")
	if err := os.Chmod(path, 0000); err != nil {
		t.Fatalf("chmod failed: %v", err)
	}
	t.Cleanup(func() { os.Chmod(path, 0644) })

	changes := NewChangeSet()
	detector := NewContentChangeDetector(s, newTestLogger())
	err := detector.Detect(ctx, changes, func(ctx context.Context, f *storage.File) error {
		t.Errorf("unreadable file must not be reported modified: %s", f.Path)
		return nil
	})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if changes.Len() != 0 {
		t.Errorf("unreadable file must stay unclassified, got %d entries", changes.Len())
	}
}
