// Copyright 2025 Velora, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package executor

import (
	"time"

	"github.com/pingcap/errors"

	"github.com/veloradb/velora/metrics"
	"github.com/veloradb/velora/util/chunk"
)

// withOperatorScope wraps one operator call: it checks the interrupt flag
// before entering, times the call, records the produced rows in the thread
// profiler and the process metrics, and verifies the output chunk on
// success. chk may be nil for calls that produce no chunk, e.g. a sink.
//
// The interrupt check here is the cooperative cancellation point of the
// whole engine: every source fetch, operator call and sink call passes
// through this scope.
func (e *PipelineExecutor) withOperatorScope(id int, name string, chk *chunk.Chunk, fn func() error) error {
	if e.ctx.Client.Interrupted() {
		return errors.Trace(ErrInterrupted)
	}
	start := time.Now()
	err := fn()
	rows := 0
	if chk != nil {
		rows = chk.NumRows()
	}
	e.ctx.Profiler.Record(id, name, time.Since(start), rows)
	if rows > 0 {
		metrics.ExecutorChunksProcessed.WithLabelValues(name).Inc()
		metrics.ExecutorRowsProcessed.WithLabelValues(name).Add(float64(rows))
	}
	if err != nil {
		return errors.Trace(err)
	}
	if chk != nil {
		if verr := chk.Verify(); verr != nil {
			return errors.Annotatef(ErrOperatorContract,
				"operator %s produced a malformed chunk: %v", name, verr)
		}
	}
	return nil
}
