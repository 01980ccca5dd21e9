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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Label constants.
const (
	LblOperator = "operator"
	LblResult   = "result"
	LblOK       = "ok"
	LblError    = "error"
	LblInterrupt = "interrupt"
)

// Metrics.
var (
	ExecutorChunksProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "velora",
			Subsystem: "executor",
			Name:      "chunks_processed_total",
			Help:      "Counter of chunks produced per operator.",
		}, []string{LblOperator})

	ExecutorRowsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "velora",
			Subsystem: "executor",
			Name:      "rows_processed_total",
			Help:      "Counter of rows produced per operator.",
		}, []string{LblOperator})

	ChunkCacheAppends = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "velora",
			Subsystem: "executor",
			Name:      "chunk_cache_appends_total",
			Help:      "Counter of sparse chunks coalesced into the chunk cache.",
		})

	ChunkCacheFlushes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "velora",
			Subsystem: "executor",
			Name:      "chunk_cache_flushes_total",
			Help:      "Counter of full or finalize-time chunk cache flushes.",
		})

	PipelineDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "velora",
			Subsystem: "executor",
			Name:      "pipeline_duration_seconds",
			Help:      "Bucketed histogram of pipeline execution time (s).",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 24),
		}, []string{LblResult})

	CollectionSpillCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "velora",
			Subsystem: "collection",
			Name:      "spill_total",
			Help:      "Counter of column data collections written to disk.",
		})
)

// RegisterMetrics registers all metrics with the default registry.
func RegisterMetrics() {
	prometheus.MustRegister(ExecutorChunksProcessed)
	prometheus.MustRegister(ExecutorRowsProcessed)
	prometheus.MustRegister(ChunkCacheAppends)
	prometheus.MustRegister(ChunkCacheFlushes)
	prometheus.MustRegister(PipelineDurationHistogram)
	prometheus.MustRegister(CollectionSpillCounter)
}
