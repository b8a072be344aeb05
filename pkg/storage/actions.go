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

// CreateBuildAction persists a build action and returns its id.
func (d dbq) CreateBuildAction(ctx context.Context, command string, typ BuildActionType) (int64, error) {
	res, err := d.q.ExecContext(ctx,
		`INSERT INTO build_actions (command, type) VALUES (?, ?)`, command, typ)
	if err != nil {
		return 0, fmt.Errorf("create build action: %w", err)
	}
	return res.LastInsertId()
}

// ListBuildActionCommands returns the command line of every persisted build
// action. Used to seed command deduplication across incremental runs.
func (d dbq) ListBuildActionCommands(ctx context.Context) ([]string, error) {
	rows, err := d.q.QueryContext(ctx, `SELECT command FROM build_actions`)
	if err != nil {
		return nil, fmt.Errorf("list build actions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var commands []string
	for rows.Next() {
		var cmd string
		if err := rows.Scan(&cmd); err != nil {
			return nil, err
		}
		commands = append(commands, cmd)
	}
	return commands, rows.Err()
}

// CountBuildActions returns the number of build action records.
func (d dbq) CountBuildActions(ctx context.Context) (int, error) {
	var n int
	err := d.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM build_actions`).Scan(&n)
	return n, err
}

// CreateBuildSource records that a file was an input of an action.
func (d dbq) CreateBuildSource(ctx context.Context, fileID, actionID int64) error {
	_, err := d.q.ExecContext(ctx,
		`INSERT INTO build_sources (file_id, action_id) VALUES (?, ?)`, fileID, actionID)
	if err != nil {
		return fmt.Errorf("create build source: %w", err)
	}
	return nil
}

// CreateBuildTarget records that a file was an output of an action.
func (d dbq) CreateBuildTarget(ctx context.Context, fileID, actionID int64) error {
	_, err := d.q.ExecContext(ctx,
		`INSERT INTO build_targets (file_id, action_id) VALUES (?, ?)`, fileID, actionID)
	if err != nil {
		return fmt.Errorf("create build target: %w", err)
	}
	return nil
}

// ActionsWithSource returns the ids of every build action that used the
// given file as an input.
func (d dbq) ActionsWithSource(ctx context.Context, fileID int64) ([]int64, error) {
	rows, err := d.q.QueryContext(ctx,
		`SELECT action_id FROM build_sources WHERE file_id = ?`, fileID)
	if err != nil {
		return nil, fmt.Errorf("query actions by source: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteBuildAction removes a build action; its source and target rows go
// with it via foreign-key cascade.
func (d dbq) DeleteBuildAction(ctx context.Context, actionID int64) error {
	_, err := d.q.ExecContext(ctx,
		`DELETE FROM build_actions WHERE id = ?`, actionID)
	if err != nil {
		return fmt.Errorf("delete build action %d: %w", actionID, err)
	}
	return nil
}
