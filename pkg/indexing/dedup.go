// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package indexing

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// CommandDeduplicator remembers which compile command lines have already
// been parsed, as 64-bit hashes of the exact space-joined line. Matching is
// exact, not semantic: a permuted or re-whitespaced command line hashes
// differently and is treated as new. Hash collisions are an accepted
// approximation; no collision resolution is attempted.
type CommandDeduplicator struct {
	mu     sync.Mutex
	hashes map[uint64]struct{}
}

// NewCommandDeduplicator creates an empty deduplicator.
func NewCommandDeduplicator() *CommandDeduplicator {
	return &CommandDeduplicator{hashes: make(map[uint64]struct{})}
}

// Seed registers previously executed command lines, normally the build
// action history of an earlier run.
func (d *CommandDeduplicator) Seed(commands []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cmd := range commands {
		d.hashes[xxhash.Sum64String(cmd)] = struct{}{}
	}
}

// TryClaim atomically claims a command line. It returns true exactly once
// per unique line: the caller that gets true owns the parse, every later
// caller gets false and skips.
func (d *CommandDeduplicator) TryClaim(commandLine string) bool {
	hash := xxhash.Sum64String(commandLine)

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, seen := d.hashes[hash]; seen {
		return false
	}
	d.hashes[hash] = struct{}{}
	return true
}

// Len returns the number of distinct claimed commands.
func (d *CommandDeduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.hashes)
}
