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

package storage

import (
	"context"
	"fmt"
)

// CreateAstNode persists an AST node occurrence.
func (d dbq) CreateAstNode(ctx context.Context, n *AstNode) (int64, error) {
	res, err := d.q.ExecContext(ctx,
		`INSERT INTO ast_nodes (file_id, start_line, start_col, end_line, end_col, ast_type, mangled_name_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.FileID, n.StartLine, n.StartCol, n.EndLine, n.EndCol, n.AstType, int64(n.MangledNameHash))
	if err != nil {
		return 0, fmt.Errorf("create ast node: %w", err)
	}
	return res.LastInsertId()
}

// DefinitionNodes returns every AST node of type definition whose location
// belongs to the given file.
func (d dbq) DefinitionNodes(ctx context.Context, fileID int64) ([]AstNode, error) {
	rows, err := d.q.QueryContext(ctx,
		`SELECT id, file_id, start_line, start_col, end_line, end_col, ast_type, mangled_name_hash
		 FROM ast_nodes WHERE file_id = ? AND ast_type = ?`, fileID, AstDefinition)
	if err != nil {
		return nil, fmt.Errorf("query definition nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var nodes []AstNode
	for rows.Next() {
		var n AstNode
		var hash int64
		if err := rows.Scan(&n.ID, &n.FileID, &n.StartLine, &n.StartCol,
			&n.EndLine, &n.EndCol, &n.AstType, &hash); err != nil {
			return nil, err
		}
		n.MangledNameHash = uint64(hash)
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// DeleteAstNodesForFile removes every AST node located in the given file.
func (d dbq) DeleteAstNodesForFile(ctx context.Context, fileID int64) error {
	_, err := d.q.ExecContext(ctx, `DELETE FROM ast_nodes WHERE file_id = ?`, fileID)
	if err != nil {
		return fmt.Errorf("delete ast nodes: %w", err)
	}
	return nil
}

// CreateEntity persists an entity record keyed by its mangled-name hash.
func (d dbq) CreateEntity(ctx context.Context, e *Entity) (int64, error) {
	res, err := d.q.ExecContext(ctx,
		`INSERT INTO entities (mangled_name_hash, name, qualified_name) VALUES (?, ?, ?)`,
		int64(e.MangledNameHash), e.Name, e.QualifiedName)
	if err != nil {
		return 0, fmt.Errorf("create entity: %w", err)
	}
	return res.LastInsertId()
}

// CountEntitiesByHash returns the number of entities sharing a hash.
func (d dbq) CountEntitiesByHash(ctx context.Context, hash uint64) (int, error) {
	var n int
	err := d.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entities WHERE mangled_name_hash = ?`, int64(hash)).Scan(&n)
	return n, err
}

// DeleteEntitiesByHash removes every entity sharing the mangled-name hash.
func (d dbq) DeleteEntitiesByHash(ctx context.Context, hash uint64) error {
	_, err := d.q.ExecContext(ctx,
		`DELETE FROM entities WHERE mangled_name_hash = ?`, int64(hash))
	if err != nil {
		return fmt.Errorf("delete entities: %w", err)
	}
	return nil
}

// CreateInheritance persists a derived-base edge keyed by hashes.
func (d dbq) CreateInheritance(ctx context.Context, derived, base uint64) error {
	_, err := d.q.ExecContext(ctx,
		`INSERT INTO inheritance (derived, base) VALUES (?, ?)`,
		int64(derived), int64(base))
	if err != nil {
		return fmt.Errorf("create inheritance: %w", err)
	}
	return nil
}

// DeleteInheritanceByDerived removes every inheritance edge whose derived
// side carries the hash. Deletable purely from the hash, no entity load.
func (d dbq) DeleteInheritanceByDerived(ctx context.Context, hash uint64) error {
	_, err := d.q.ExecContext(ctx,
		`DELETE FROM inheritance WHERE derived = ?`, int64(hash))
	if err != nil {
		return fmt.Errorf("delete inheritance: %w", err)
	}
	return nil
}

// CreateFriendship persists a friend-declaration edge keyed by hashes.
func (d dbq) CreateFriendship(ctx context.Context, target, friend uint64) error {
	_, err := d.q.ExecContext(ctx,
		`INSERT INTO friendships (target, friend) VALUES (?, ?)`,
		int64(target), int64(friend))
	if err != nil {
		return fmt.Errorf("create friendship: %w", err)
	}
	return nil
}

// DeleteFriendshipsByTarget removes every friendship edge targeting the hash.
func (d dbq) DeleteFriendshipsByTarget(ctx context.Context, hash uint64) error {
	_, err := d.q.ExecContext(ctx,
		`DELETE FROM friendships WHERE target = ?`, int64(hash))
	if err != nil {
		return fmt.Errorf("delete friendships: %w", err)
	}
	return nil
}
