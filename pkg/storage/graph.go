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
	"strconv"
)

// GraphKey builds the domain id string for a numeric domain object id.
func GraphKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// CreateGraphNode persists a graph node wrapping a domain object.
func (d dbq) CreateGraphNode(ctx context.Context, domain NodeDomain, domainID string) (int64, error) {
	res, err := d.q.ExecContext(ctx,
		`INSERT INTO graph_nodes (domain, domain_id) VALUES (?, ?)`, domain, domainID)
	if err != nil {
		return 0, fmt.Errorf("create graph node: %w", err)
	}
	return res.LastInsertId()
}

// CreateGraphEdge persists a directed edge between two graph nodes.
func (d dbq) CreateGraphEdge(ctx context.Context, fromID, toID int64, typ string) (int64, error) {
	res, err := d.q.ExecContext(ctx,
		`INSERT INTO graph_edges (from_id, to_id, type) VALUES (?, ?, ?)`, fromID, toID, typ)
	if err != nil {
		return 0, fmt.Errorf("create graph edge: %w", err)
	}
	return res.LastInsertId()
}

// GraphNodesByKey returns every graph node wrapping the given domain object.
func (d dbq) GraphNodesByKey(ctx context.Context, domain NodeDomain, domainID string) ([]GraphNode, error) {
	rows, err := d.q.QueryContext(ctx,
		`SELECT id, domain, domain_id FROM graph_nodes WHERE domain = ? AND domain_id = ?`,
		domain, domainID)
	if err != nil {
		return nil, fmt.Errorf("query graph nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var nodes []GraphNode
	for rows.Next() {
		var n GraphNode
		if err := rows.Scan(&n.ID, &n.Domain, &n.DomainID); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// CountGraphNodes returns the number of graph node records.
func (d dbq) CountGraphNodes(ctx context.Context) (int, error) {
	var n int
	err := d.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM graph_nodes`).Scan(&n)
	return n, err
}

// CountGraphEdges returns the number of graph edge records.
func (d dbq) CountGraphEdges(ctx context.Context) (int, error) {
	var n int
	err := d.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM graph_edges`).Scan(&n)
	return n, err
}

// neighbors returns the opposite endpoints of every edge touching the node.
func (d dbq) neighbors(ctx context.Context, nodeID int64) ([]int64, error) {
	rows, err := d.q.QueryContext(ctx,
		`SELECT to_id FROM graph_edges WHERE from_id = ?
		 UNION ALL
		 SELECT from_id FROM graph_edges WHERE to_id = ?`, nodeID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
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

// CollectComponent returns the full connected component reachable from the
// start node, traversing edges as undirected. Breadth-first with a visited
// set, so it terminates on cyclic graphs and visits each node once.
func (d dbq) CollectComponent(ctx context.Context, startID int64) ([]int64, error) {
	visited := map[int64]bool{startID: true}
	component := []int64{startID}
	queue := []int64{startID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		next, err := d.neighbors(ctx, current)
		if err != nil {
			return nil, err
		}
		for _, id := range next {
			if visited[id] {
				continue
			}
			visited[id] = true
			component = append(component, id)
			queue = append(queue, id)
		}
	}

	return component, nil
}

// DeleteComponent erases a set of graph nodes as a unit: first every edge
// touching any member, then the nodes themselves, so no edge can be left
// referencing a deleted node.
func (d dbq) DeleteComponent(ctx context.Context, nodeIDs []int64) error {
	for _, id := range nodeIDs {
		if _, err := d.q.ExecContext(ctx,
			`DELETE FROM graph_edges WHERE from_id = ? OR to_id = ?`, id, id); err != nil {
			return fmt.Errorf("delete edges of node %d: %w", id, err)
		}
	}
	for _, id := range nodeIDs {
		if _, err := d.q.ExecContext(ctx,
			`DELETE FROM graph_nodes WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete node %d: %w", id, err)
		}
	}
	return nil
}
