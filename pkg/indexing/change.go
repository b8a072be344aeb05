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
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"

	"github.com/kraklabs/cxi/pkg/storage"
)

// Classification is the terminal per-run state of a changed file.
type Classification int

const (
	ClassModified Classification = iota
	ClassDeleted
)

func (c Classification) String() string {
	if c == ClassDeleted {
		return "deleted"
	}
	return "modified"
}

// ChangeSet is the per-run file classification map. A path is classified at
// most once; unchanged files never enter the set. Owned by the pipeline
// instance and discarded at run end.
type ChangeSet struct {
	status map[string]Classification
	order  []string
}

// NewChangeSet creates an empty classification map.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{status: make(map[string]Classification)}
}

// Mark classifies a path. Returns false when the path was already
// classified this run; the first classification wins.
func (c *ChangeSet) Mark(path string, class Classification) bool {
	if _, done := c.status[path]; done {
		return false
	}
	c.status[path] = class
	c.order = append(c.order, path)
	return true
}

// Has reports whether the path has been classified this run.
func (c *ChangeSet) Has(path string) bool {
	_, done := c.status[path]
	return done
}

// Paths returns the classified paths in classification order.
func (c *ChangeSet) Paths() []string {
	return c.order
}

// Get returns a path's classification.
func (c *ChangeSet) Get(path string) (Classification, bool) {
	class, ok := c.status[path]
	return class, ok
}

// Len returns the number of classified paths.
func (c *ChangeSet) Len() int {
	return len(c.order)
}

// HashContent computes the content hash used for change detection.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ContentChangeDetector compares every tracked file's stored content hash
// against its current on-disk bytes. Files missing from disk are classified
// deleted without a hash comparison; files whose hash differs are reported
// modified through the onModified callback so the caller can cascade the
// classification. Files with no stored content, files already classified
// this run, and unchanged files are left alone.
//
// Newly added files are deliberately not detected here: they are discovered
// by the ingestion step while executing compile commands.
type ContentChangeDetector struct {
	store  *storage.Store
	logger *slog.Logger
}

// NewContentChangeDetector creates a detector over the given store.
func NewContentChangeDetector(store *storage.Store, logger *slog.Logger) *ContentChangeDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentChangeDetector{store: store, logger: logger}
}

// Detect seeds the change set from disk state. onModified is invoked for
// every directly modified file; deletions are marked on the set directly.
func (d *ContentChangeDetector) Detect(ctx context.Context, changes *ChangeSet, onModified func(ctx context.Context, f *storage.File) error) error {
	files, err := d.store.ListTrackedFiles(ctx)
	if err != nil {
		return err
	}

	for i := range files {
		f := &files[i]

		if _, err := os.Stat(f.Path); err != nil {
			if changes.Mark(f.Path, ClassDeleted) {
				d.logger.Debug("change.deleted", "path", f.Path)
			}
			continue
		}

		if changes.Has(f.Path) {
			continue
		}

		storedHash, err := d.store.ContentHash(ctx, f)
		if err != nil {
			return err
		}
		if storedHash == "" {
			// No stored content, nothing to compare against.
			continue
		}

		content, err := os.ReadFile(f.Path)
		if err != nil {
			d.logger.Warn("change.read_failed", "path", f.Path, "err", err)
			continue
		}

		if HashContent(content) != storedHash {
			if err := onModified(ctx, f); err != nil {
				return err
			}
		}
	}

	return nil
}
