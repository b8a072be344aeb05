// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package indexing

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var runLogMu sync.Mutex

// AppendRunLog appends a timestamped line to <dotCxiDir>/index.log. The log
// survives across runs and is meant for grepping what happened to a given
// file: `grep "src/foo.cpp" .cxi/index.log`. Failures are silently ignored;
// the log is best-effort.
func AppendRunLog(dotCxiDir, message string) {
	if dotCxiDir == "" {
		return
	}
	runLogMu.Lock()
	defer runLogMu.Unlock()
	if err := os.MkdirAll(dotCxiDir, 0750); err != nil {
		return
	}
	logPath := filepath.Join(dotCxiDir, "index.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return
	}
	line := fmt.Sprintf("%s %s\n", time.Now().Format(time.RFC3339), message)
	_, _ = f.WriteString(line)
	_ = f.Close()
}
