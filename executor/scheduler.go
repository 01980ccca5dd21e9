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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veloradb/velora/metrics"
	"github.com/veloradb/velora/util/chunk"
	"github.com/veloradb/velora/util/execdetails"
)

// PipelineScheduler runs the executors of a push-mode pipeline in parallel.
// All executors share the pipeline's global states, a first-error slot and
// the scheduler's chunk pool; the first failing executor interrupts its
// siblings through the client context.
type PipelineScheduler struct {
	concurrency int
	statsColl   *execdetails.RuntimeStatsColl
	pool        *chunk.Pool
}

// SchedulerOption customizes scheduler construction.
type SchedulerOption func(*PipelineScheduler)

// WithConcurrency sets the number of parallel executors per pipeline.
func WithConcurrency(n int) SchedulerOption {
	return func(s *PipelineScheduler) {
		s.concurrency = n
	}
}

// WithStatsCollector directs every executor to flush its runtime stats
// into coll.
func WithStatsCollector(coll *execdetails.RuntimeStatsColl) SchedulerOption {
	return func(s *PipelineScheduler) {
		s.statsColl = coll
	}
}

// WithSchedulerChunkPool makes all executors allocate their intermediate
// chunks from pool.
func WithSchedulerChunkPool(pool *chunk.Pool) SchedulerOption {
	return func(s *PipelineScheduler) {
		s.pool = pool
	}
}

// NewPipelineScheduler creates a scheduler. The default concurrency is one
// executor.
func NewPipelineScheduler(opts ...SchedulerOption) *PipelineScheduler {
	s := &PipelineScheduler{concurrency: 1}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes p to completion with the configured number of parallel
// executors and returns the first error any of them raised. Every executor
// that was successfully constructed is finalized, so sink Combine runs for
// each of them even when a sibling failed.
func (s *PipelineScheduler) Run(client *ClientContext, p *Pipeline) error {
	if p.Sink == nil {
		return errors.New("scheduler requires a push-mode pipeline with a sink")
	}
	start := time.Now()
	errs := &ErrorHolder{}

	var eg errgroup.Group
	for i := 0; i < s.concurrency; i++ {
		eg.Go(func() error {
			exec, err := NewPipelineExecutor(client, p,
				WithRuntimeStats(s.statsColl),
				WithErrorHolder(errs),
				WithChunkPool(s.pool))
			if err != nil {
				s.recordError(client, errs, err)
				return nil
			}
			if err := exec.Execute(); err != nil {
				s.recordError(client, errs, err)
				if !exec.Finalized() {
					// finalize anyway so Combine still folds this
					// executor's partial result into the global state
					if ferr := exec.PushFinalize(); ferr != nil {
						client.Logger().Warn("pipeline executor finalize failed after error",
							zap.Error(ferr))
					}
				}
			}
			return nil
		})
	}
	_ = eg.Wait()

	err := errs.Get()
	metrics.PipelineDurationHistogram.WithLabelValues(resultLabel(err)).Observe(time.Since(start).Seconds())
	return errors.Trace(err)
}

// recordError stores err as the pipeline error if it is the first one and
// interrupts the sibling executors.
func (s *PipelineScheduler) recordError(client *ClientContext, errs *ErrorHolder, err error) {
	if errs.Set(err) {
		client.Logger().Warn("pipeline executor failed, interrupting siblings", zap.Error(err))
		client.Interrupt()
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.LblOK
	case errors.Cause(err) == ErrInterrupted:
		return metrics.LblInterrupt
	default:
		return metrics.LblError
	}
}
