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

// FileType classifies a file record.
type FileType string

const (
	FileTypeDirectory FileType = "directory"
	FileTypeBinary    FileType = "binary"
	FileTypeOther     FileType = "other"
)

// ParseStatus describes how completely a file has been parsed.
type ParseStatus int

const (
	ParseStatusNotParsed ParseStatus = iota
	ParseStatusPartiallyParsed
	ParseStatusFullyParsed
)

// String returns a human-readable status name.
func (s ParseStatus) String() string {
	switch s {
	case ParseStatusPartiallyParsed:
		return "partially parsed"
	case ParseStatusFullyParsed:
		return "fully parsed"
	default:
		return "not parsed"
	}
}

// File is one known file of the indexed codebase. Content is an optional
// reference into file_contents; multiple File rows may share one content row.
type File struct {
	ID          int64
	Path        string
	Type        FileType
	ParseStatus ParseStatus

	// ContentID is 0 when no content record is attached.
	ContentID int64
}

// FileContent holds the text of a file together with its content hash.
type FileContent struct {
	ID      int64
	Hash    string
	Content string
}

// BuildActionType distinguishes compile from link invocations.
type BuildActionType int

const (
	ActionCompile BuildActionType = iota
	ActionLink
)

// BuildAction records one compiler invocation. The command is the full
// argument line joined by single spaces.
type BuildAction struct {
	ID      int64
	Command string
	Type    BuildActionType
}

// BuildSource associates an input file with a build action.
type BuildSource struct {
	ID       int64
	FileID   int64
	ActionID int64
}

// BuildTarget associates an output file with a build action.
type BuildTarget struct {
	ID       int64
	FileID   int64
	ActionID int64
}

// AstType is the role of an AST node occurrence.
type AstType int

const (
	AstDeclaration AstType = iota
	AstDefinition
	AstUsage
)

// AstNode is one symbol occurrence emitted by the AST-walking collaborator.
// It links to entities only through the mangled-name hash, never by row id,
// so multiple declarations of the same symbol converge on one hash.
type AstNode struct {
	ID              int64
	FileID          int64
	StartLine       int
	StartCol        int
	EndLine         int
	EndCol          int
	AstType         AstType
	MangledNameHash uint64
}

// Entity is a named symbol keyed by its mangled-name hash.
type Entity struct {
	ID              int64
	MangledNameHash uint64
	Name            string
	QualifiedName   string
}

// Inheritance is a (derived, base) edge between entities, keyed by hash.
type Inheritance struct {
	ID      int64
	Derived uint64
	Base    uint64
}

// Friendship is a friend-declaration edge between entities, keyed by hash.
type Friendship struct {
	ID     int64
	Target uint64
	Friend uint64
}

// HeaderInclusion is a directed (includer, included) edge between files.
type HeaderInclusion struct {
	ID         int64
	IncluderID int64
	IncludedID int64
}

// NodeDomain tags which kind of domain object a graph node wraps.
type NodeDomain int

const (
	DomainAstNode NodeDomain = iota
	DomainFile
)

// GraphNode wraps a domain object so that arbitrary derived relationships
// (diagram edges and the like) can reference it uniformly.
type GraphNode struct {
	ID       int64
	Domain   NodeDomain
	DomainID string
}

// GraphEdge connects two graph nodes. Edges are stored directionally but
// traversed as undirected for reachability.
type GraphEdge struct {
	ID     int64
	FromID int64
	ToID   int64
	Type   string
}
