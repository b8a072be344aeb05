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
)

// ParseJob is one unit of work for the worker pool: a compile command and
// its 1-based position in the compilation database.
type ParseJob struct {
	Command CompileCommand
	Index   int
}

// Orchestrator is a fixed-size worker pool over a shared job queue. Jobs
// are enqueued by a single submitting goroutine and executed by the workers
// with no ordering guarantee between completions; the handler owns all
// per-job side effects. There is no cancellation: an enqueued job always
// runs to completion or reports failure through the handler.
type Orchestrator struct {
	jobs chan ParseJob
	wg   sync.WaitGroup
}

// NewOrchestrator starts workerCount workers running handler. The queue is
// buffered so submission rarely blocks on slow workers.
func NewOrchestrator(workerCount int, handler func(job ParseJob)) *Orchestrator {
	if workerCount < 1 {
		workerCount = 1
	}

	o := &Orchestrator{jobs: make(chan ParseJob, workerCount*2)}
	for w := 0; w < workerCount; w++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for job := range o.jobs {
				handler(job)
			}
		}()
	}
	return o
}

// Enqueue pushes a job onto the queue. Must not be called after Wait.
func (o *Orchestrator) Enqueue(job ParseJob) {
	o.jobs <- job
}

// Wait closes the queue and blocks until every in-flight and queued job has
// finished.
func (o *Orchestrator) Wait() {
	close(o.jobs)
	o.wg.Wait()
}
