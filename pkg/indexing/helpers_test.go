// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package indexing

import (
	"io"
	"log/slog"
	"testing"

	"github.com/kraklabs/cxi/pkg/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()

	s, err := storage.Open(storage.Config{DataDir: t.TempDir(), ProjectID: "test-project"})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
