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
	"sync"
	"sync/atomic"
	"testing"
)

func TestTryClaimExactlyOnce(t *testing.T) {
	d := NewCommandDeduplicator()

	if !d.TryClaim("gcc -c a.cpp") {
		t.Fatal("first claim should succeed")
	}
	if d.TryClaim("gcc -c a.cpp") {
		t.Error("second claim of the same line should fail")
	}
	if !d.TryClaim("gcc -c b.cpp") {
		t.Error("a different line should claim independently")
	}
	if d.Len() != 2 {
		t.Errorf("expected 2 claimed hashes, got %d", d.Len())
	}
}

func TestTryClaimIsExactMatch(t *testing.T) {
	d := NewCommandDeduplicator()

	// Semantically equivalent but textually different lines are distinct.
	if !d.TryClaim("gcc -c a.cpp -o a.o") {
		t.Fatal("first claim should succeed")
	}
	if !d.TryClaim("gcc -o a.o -c a.cpp") {
		t.Error("reordered arguments form a different line and should claim")
	}
	if !d.TryClaim("gcc  -c a.cpp -o a.o") {
		t.Error("extra whitespace forms a different line and should claim")
	}
}

func TestSeedBlocksHistoricCommands(t *testing.T) {
	d := NewCommandDeduplicator()
	d.Seed([]string{"gcc -c a.cpp", "gcc -c b.cpp"})

	if d.TryClaim("gcc -c a.cpp") {
		t.Error("seeded command should not be claimable")
	}
	if !d.TryClaim("gcc -c c.cpp") {
		t.Error("unseeded command should be claimable")
	}
}

func TestTryClaimConcurrent(t *testing.T) {
	d := NewCommandDeduplicator()

	const goroutines = 32
	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.TryClaim("gcc -c shared.cpp") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly one winner, got %d", wins.Load())
	}
}
