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
	"database/sql"
	"errors"
	"fmt"
)

func scanFile(row *sql.Row) (*File, error) {
	var f File
	var contentID sql.NullInt64
	err := row.Scan(&f.ID, &f.Path, &f.Type, &f.ParseStatus, &contentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	f.ContentID = contentID.Int64
	return &f, nil
}

// GetFile retrieves a file record by absolute path.
func (d dbq) GetFile(ctx context.Context, path string) (*File, error) {
	row := d.q.QueryRowContext(ctx,
		`SELECT id, path, type, parse_status, content_id FROM files WHERE path = ?`, path)
	return scanFile(row)
}

// GetFileByID retrieves a file record by id.
func (d dbq) GetFileByID(ctx context.Context, id int64) (*File, error) {
	row := d.q.QueryRowContext(ctx,
		`SELECT id, path, type, parse_status, content_id FROM files WHERE id = ?`, id)
	return scanFile(row)
}

// GetOrCreateFile returns the file record for path, creating it with type
// "other" and status "not parsed" on first reference.
func (d dbq) GetOrCreateFile(ctx context.Context, path string) (*File, error) {
	f, err := d.GetFile(ctx, path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	res, err := d.q.ExecContext(ctx,
		`INSERT INTO files (path, type, parse_status) VALUES (?, ?, ?)`,
		path, FileTypeOther, ParseStatusNotParsed)
	if err != nil {
		return nil, fmt.Errorf("create file %q: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &File{ID: id, Path: path, Type: FileTypeOther, ParseStatus: ParseStatusNotParsed}, nil
}

// UpdateFileStatus sets the parse status of a file.
func (d dbq) UpdateFileStatus(ctx context.Context, id int64, status ParseStatus) error {
	_, err := d.q.ExecContext(ctx,
		`UPDATE files SET parse_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update file status: %w", err)
	}
	return nil
}

// UpdateFileType sets the type of a file. Used to promote build targets to
// binary.
func (d dbq) UpdateFileType(ctx context.Context, id int64, typ FileType) error {
	_, err := d.q.ExecContext(ctx,
		`UPDATE files SET type = ? WHERE id = ?`, typ, id)
	if err != nil {
		return fmt.Errorf("update file type: %w", err)
	}
	return nil
}

// ListTrackedFiles returns every file that participates in change detection:
// anything that is neither a directory nor a binary build product.
func (d dbq) ListTrackedFiles(ctx context.Context) ([]File, error) {
	rows, err := d.q.QueryContext(ctx,
		`SELECT id, path, type, parse_status, content_id FROM files
		 WHERE type NOT IN (?, ?) ORDER BY path`,
		FileTypeDirectory, FileTypeBinary)
	if err != nil {
		return nil, fmt.Errorf("list tracked files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []File
	for rows.Next() {
		var f File
		var contentID sql.NullInt64
		if err := rows.Scan(&f.ID, &f.Path, &f.Type, &f.ParseStatus, &contentID); err != nil {
			return nil, err
		}
		f.ContentID = contentID.Int64
		files = append(files, f)
	}
	return files, rows.Err()
}

// CountFiles returns the number of file records.
func (d dbq) CountFiles(ctx context.Context) (int, error) {
	var n int
	err := d.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n)
	return n, err
}

// SetFileContent attaches content to a file, creating the content record if
// no other file carries the same hash yet.
func (d dbq) SetFileContent(ctx context.Context, fileID int64, hash, content string) error {
	var contentID int64
	err := d.q.QueryRowContext(ctx,
		`SELECT id FROM file_contents WHERE hash = ?`, hash).Scan(&contentID)
	if errors.Is(err, sql.ErrNoRows) {
		res, insErr := d.q.ExecContext(ctx,
			`INSERT INTO file_contents (hash, content) VALUES (?, ?)`, hash, content)
		if insErr != nil {
			return fmt.Errorf("insert content: %w", insErr)
		}
		contentID, insErr = res.LastInsertId()
		if insErr != nil {
			return insErr
		}
	} else if err != nil {
		return fmt.Errorf("lookup content: %w", err)
	}

	_, err = d.q.ExecContext(ctx,
		`UPDATE files SET content_id = ? WHERE id = ?`, contentID, fileID)
	if err != nil {
		return fmt.Errorf("attach content: %w", err)
	}
	return nil
}

// ContentHash returns the stored content hash of a file, or "" when the file
// has no content record.
func (d dbq) ContentHash(ctx context.Context, f *File) (string, error) {
	if f.ContentID == 0 {
		return "", nil
	}
	var hash string
	err := d.q.QueryRowContext(ctx,
		`SELECT hash FROM file_contents WHERE id = ?`, f.ContentID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("content hash: %w", err)
	}
	return hash, nil
}

// DeleteFile removes a file record. Its content record is removed too when
// no other file shares it.
func (d dbq) DeleteFile(ctx context.Context, f *File) error {
	if _, err := d.q.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, f.ID); err != nil {
		return fmt.Errorf("delete file %q: %w", f.Path, err)
	}

	if f.ContentID == 0 {
		return nil
	}

	var refs int
	err := d.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM files WHERE content_id = ?`, f.ContentID).Scan(&refs)
	if err != nil {
		return err
	}
	if refs == 0 {
		if _, err := d.q.ExecContext(ctx,
			`DELETE FROM file_contents WHERE id = ?`, f.ContentID); err != nil {
			return fmt.Errorf("delete content: %w", err)
		}
	}
	return nil
}

// AddHeaderInclusion records that includer includes included. Duplicate
// edges are ignored.
func (d dbq) AddHeaderInclusion(ctx context.Context, includerID, includedID int64) error {
	_, err := d.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO header_inclusions (includer_id, included_id) VALUES (?, ?)`,
		includerID, includedID)
	if err != nil {
		return fmt.Errorf("add inclusion: %w", err)
	}
	return nil
}

// Includers returns the ids of every file that directly includes the given
// file. This is the inverse inclusion view used for cascade invalidation.
func (d dbq) Includers(ctx context.Context, includedID int64) ([]int64, error) {
	rows, err := d.q.QueryContext(ctx,
		`SELECT includer_id FROM header_inclusions WHERE included_id = ?`, includedID)
	if err != nil {
		return nil, fmt.Errorf("query includers: %w", err)
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
