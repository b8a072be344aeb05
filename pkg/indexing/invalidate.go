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
	"errors"
	"fmt"
	"log/slog"

	"github.com/kraklabs/cxi/pkg/storage"
)

// GraphInvalidator reconciles the stored file set against disk state and
// deletes everything derived from changed or removed files: entities keyed
// by the definitions' mangled-name hashes, inheritance and friendship
// edges, generic graph components, build actions, and finally the file
// itself. Modification cascades through the header-inclusion graph, so a
// touched header invalidates every file that transitively includes it.
type GraphInvalidator struct {
	store    *storage.Store
	detector *ContentChangeDetector
	logger   *slog.Logger

	changes    *ChangeSet
	onProgress func(done, total int64)
}

// NewGraphInvalidator creates an invalidator with a fresh per-run change
// set.
func NewGraphInvalidator(store *storage.Store, logger *slog.Logger) *GraphInvalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphInvalidator{
		store:    store,
		detector: NewContentChangeDetector(store, logger),
		logger:   logger,
		changes:  NewChangeSet(),
	}
}

// SetProgressCallback sets an optional callback invoked after each cleanup
// unit, successful or not.
func (g *GraphInvalidator) SetProgressCallback(cb func(done, total int64)) {
	g.onProgress = cb
}

// Changes exposes the classification map, mainly for reporting.
func (g *GraphInvalidator) Changes() *ChangeSet {
	return g.changes
}

// MarkModified classifies a file as modified and cascades the
// classification to every file that includes it. Already-classified files
// stop the recursion, which also guards against revisiting.
func (g *GraphInvalidator) MarkModified(ctx context.Context, f *storage.File) error {
	if !g.changes.Mark(f.Path, ClassModified) {
		return nil
	}
	g.logger.Debug("invalidate.modified", "path", f.Path)

	includerIDs, err := g.store.Includers(ctx, f.ID)
	if err != nil {
		return err
	}
	for _, id := range includerIDs {
		includer, err := g.store.GetFileByID(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := g.MarkModified(ctx, includer); err != nil {
			return err
		}
	}
	return nil
}

// Run performs change detection followed by cascade cleanup. Each affected
// file is cleaned up in its own transaction; a failed transaction aborts
// only that file's unit of work and the run continues, leaving the
// previously committed units intact.
func (g *GraphInvalidator) Run(ctx context.Context) (int, error) {
	if err := g.detector.Detect(ctx, g.changes, g.MarkModified); err != nil {
		return 0, fmt.Errorf("change detection: %w", err)
	}

	paths := g.changes.Paths()
	cleaned := 0
	for i, path := range paths {
		class, _ := g.changes.Get(path)
		g.logger.Info("invalidate.cleanup", "path", path, "reason", class.String())

		err := g.store.WithTx(ctx, func(tx *storage.Tx) error {
			return g.cleanupFile(ctx, tx, path)
		})
		if g.onProgress != nil {
			g.onProgress(int64(i+1), int64(len(paths)))
		}
		if err != nil {
			g.logger.Error("invalidate.cleanup.failed", "path", path, "err", err)
			continue
		}
		cleaned++
		filesInvalidated.Inc()
	}

	return cleaned, nil
}

// cleanupFile deletes every record derived from one file. Modified and
// deleted files are treated identically: the next parse rebuilds whatever
// is still wanted. Deletion order satisfies referential constraints only
// (hash-keyed relations before graph nodes before the owning file).
func (g *GraphInvalidator) cleanupFile(ctx context.Context, tx *storage.Tx, path string) error {
	f, err := tx.GetFile(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	defNodes, err := tx.DefinitionNodes(ctx, f.ID)
	if err != nil {
		return err
	}
	for _, node := range defNodes {
		if err := tx.DeleteEntitiesByHash(ctx, node.MangledNameHash); err != nil {
			return err
		}
		if err := tx.DeleteInheritanceByDerived(ctx, node.MangledNameHash); err != nil {
			return err
		}
		if err := tx.DeleteFriendshipsByTarget(ctx, node.MangledNameHash); err != nil {
			return err
		}
		if err := g.deleteComponents(ctx, tx, storage.DomainAstNode, storage.GraphKey(node.ID)); err != nil {
			return err
		}
	}

	actionIDs, err := tx.ActionsWithSource(ctx, f.ID)
	if err != nil {
		return err
	}
	for _, actionID := range actionIDs {
		if err := tx.DeleteBuildAction(ctx, actionID); err != nil {
			return err
		}
	}

	if err := g.deleteComponents(ctx, tx, storage.DomainFile, storage.GraphKey(f.ID)); err != nil {
		return err
	}

	if err := tx.DeleteAstNodesForFile(ctx, f.ID); err != nil {
		return err
	}

	return tx.DeleteFile(ctx, f)
}

// deleteComponents removes every graph node wrapping the domain object,
// each together with its whole connected component.
func (g *GraphInvalidator) deleteComponents(ctx context.Context, tx *storage.Tx, domain storage.NodeDomain, domainID string) error {
	nodes, err := tx.GraphNodesByKey(ctx, domain, domainID)
	if err != nil {
		return err
	}
	for _, node := range nodes {
		component, err := tx.CollectComponent(ctx, node.ID)
		if err != nil {
			return err
		}
		if err := tx.DeleteComponent(ctx, component); err != nil {
			return err
		}
	}
	return nil
}
