// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package indexing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters exposed on the optional --metrics-addr endpoint.
var (
	commandsParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cxi_commands_parsed_total",
		Help: "Compile commands dispatched to the translation-unit parser.",
	})
	commandsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cxi_commands_skipped_total",
		Help: "Compile commands skipped because an identical line was already parsed.",
	})
	commandsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cxi_commands_failed_total",
		Help: "Compile commands whose translation-unit parse reported an error.",
	})
	filesInvalidated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cxi_files_invalidated_total",
		Help: "Files whose derived records were deleted during incremental cleanup.",
	})
)
