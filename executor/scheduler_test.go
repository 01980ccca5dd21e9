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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veloradb/velora/util/chunk"
	"github.com/veloradb/velora/util/execdetails"
)

func TestSchedulerParallelExecution(t *testing.T) {
	const totalRows = 100_000
	client := NewClientContext()
	source := NewNumbersScan(totalRows)
	filter := evenFilter()
	sink := NewRowCountSink(filter.OutputTypes())
	p, err := NewPipeline(client, source, []PhysicalOperator{filter}, sink)
	require.NoError(t, err)

	coll := execdetails.NewRuntimeStatsColl()
	scheduler := NewPipelineScheduler(
		WithConcurrency(4),
		WithStatsCollector(coll),
		WithSchedulerChunkPool(chunk.NewPool()),
	)
	require.NoError(t, scheduler.Run(client, p))

	require.Equal(t, int64(totalRows/2), p.SinkState.(*RowCountSinkState).Rows())
	require.Equal(t, int64(totalRows), coll.GetBasicRuntimeStats(0).Rows())
}

func TestSchedulerEveryRowExactlyOnce(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(40, 32)...)
	sink := &recordingSink{}
	p, err := NewPipeline(client, source, nil, sink, WithVectorSize(32))
	require.NoError(t, err)

	scheduler := NewPipelineScheduler(WithConcurrency(8))
	require.NoError(t, scheduler.Run(client, p))

	global := p.SinkState.(*recordingSinkGlobal)
	require.Equal(t, 8, global.combines)
	require.Len(t, global.rows, 40*32)
	for i, v := range global.sortedRows() {
		require.Equal(t, int64(i), v)
	}
}

func TestSchedulerFirstErrorWinsAndCombinesRun(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(100, 16)...)
	source.errAt = 50
	sink := &recordingSink{}
	p, err := NewPipeline(client, source, nil, sink, WithVectorSize(16))
	require.NoError(t, err)

	scheduler := NewPipelineScheduler(WithConcurrency(4))
	err = scheduler.Run(client, p)
	require.Error(t, err)
	require.Contains(t, err.Error(), "mock source failure")
	require.True(t, client.Interrupted())

	// every executor was finalized, so every local state was combined
	global := p.SinkState.(*recordingSinkGlobal)
	require.Equal(t, 4, global.combines)
}

func TestSchedulerRequiresSink(t *testing.T) {
	client := NewClientContext()
	p, err := NewPipeline(client, newMockSource([]int64{1}), nil, nil)
	require.NoError(t, err)
	require.Error(t, NewPipelineScheduler().Run(client, p))
}

func TestSchedulerLimitSharedAcrossExecutors(t *testing.T) {
	client := NewClientContext()
	source := NewNumbersScan(1 << 16)
	limit := NewLimit(int64Fields(), 1000)
	sink := NewRowCountSink(limit.OutputTypes())
	p, err := NewPipeline(client, source, []PhysicalOperator{limit}, sink)
	require.NoError(t, err)

	scheduler := NewPipelineScheduler(WithConcurrency(4))
	require.NoError(t, scheduler.Run(client, p))
	require.Equal(t, int64(1000), p.SinkState.(*RowCountSinkState).Rows())
}
