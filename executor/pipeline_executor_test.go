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

	"github.com/pingcap/errors"
	"github.com/pingcap/failpoint"
	"github.com/stretchr/testify/require"

	"github.com/veloradb/velora/types"
	"github.com/veloradb/velora/util/chunk"
	"github.com/veloradb/velora/util/execdetails"
)

func runPush(t *testing.T, client *ClientContext, p *Pipeline, opts ...ExecutorOption) {
	exec, err := NewPipelineExecutor(client, p, opts...)
	require.NoError(t, err)
	require.NoError(t, exec.Execute())
}

func TestPushSourceToSink(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(5, 16)...)
	sink := &recordingSink{}
	p, err := NewPipeline(client, source, nil, sink)
	require.NoError(t, err)

	runPush(t, client, p)

	global := p.SinkState.(*recordingSinkGlobal)
	require.Equal(t, 1, global.combines)
	require.Len(t, global.rows, 80)
	for i, v := range global.sortedRows() {
		require.Equal(t, int64(i), v)
	}
}

func TestPushWithOperators(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(4, 10)...)
	sink := &recordingSink{}
	p, err := NewPipeline(client, source, []PhysicalOperator{evenFilter()}, sink)
	require.NoError(t, err)

	runPush(t, client, p)

	global := p.SinkState.(*recordingSinkGlobal)
	require.Len(t, global.rows, 20)
	for _, v := range global.rows {
		require.Zero(t, v%2)
	}
}

func TestPipelineRequiresSource(t *testing.T) {
	client := NewClientContext()
	_, err := NewPipeline(client, nil, nil, &recordingSink{})
	require.Error(t, err)
}

func TestPipelineRejectsInvalidVectorSize(t *testing.T) {
	client := NewClientContext()
	_, err := NewPipeline(client, newMockSource(), nil, &recordingSink{}, WithVectorSize(0))
	require.Error(t, err)
}

func TestPushRequiresSink(t *testing.T) {
	client := NewClientContext()
	p, err := NewPipeline(client, newMockSource([]int64{1}), nil, nil)
	require.NoError(t, err)
	exec, err := NewPipelineExecutor(client, p)
	require.NoError(t, err)
	require.Error(t, exec.Execute())
	require.NoError(t, exec.PullFinalize())
}

func TestChunkCacheCoalesces(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(10, 8)...)
	sink := &recordingSink{}
	p, err := NewPipeline(client, source, []PhysicalOperator{sparseFilter(8)}, sink,
		WithVectorSize(8), WithForceChunkCache())
	require.NoError(t, err)

	runPush(t, client, p)

	global := p.SinkState.(*recordingSinkGlobal)
	// one surviving row per 8-row batch; the cache coalesces them into
	// half-vector chunks, with the remainder flushed at finalize
	require.Equal(t, []int{4, 4, 2}, global.chunkSizes)
	require.Equal(t, []int64{0, 8, 16, 24, 32, 40, 48, 56, 64, 72}, global.sortedRows())
}

func TestChunkCacheDisabledBelowMinVectorSize(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(8, 8)...)
	sink := &recordingSink{}
	// no WithForceChunkCache: vector size 8 is below the cache threshold
	p, err := NewPipeline(client, source, []PhysicalOperator{sparseFilter(8)}, sink,
		WithVectorSize(8))
	require.NoError(t, err)

	runPush(t, client, p)

	global := p.SinkState.(*recordingSinkGlobal)
	require.Equal(t, []int{1, 1, 1, 1, 1, 1, 1, 1}, global.chunkSizes)
}

func TestChunkCacheDisabledForOrderSensitiveSink(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(8, 8)...)
	sink := &recordingSink{orderMatters: true}
	p, err := NewPipeline(client, source, []PhysicalOperator{sparseFilter(8)}, sink,
		WithVectorSize(8), WithForceChunkCache())
	require.NoError(t, err)

	runPush(t, client, p)

	global := p.SinkState.(*recordingSinkGlobal)
	require.Equal(t, []int{1, 1, 1, 1, 1, 1, 1, 1}, global.chunkSizes)
	// with the cache off, arrival order is the source order
	require.Equal(t, []int64{0, 8, 16, 24, 32, 40, 48, 56}, global.rows)
}

type listOp struct {
	passThroughOp
}

func (o *listOp) Name() string {
	return "ListOp"
}

func (o *listOp) OutputTypes() []*types.FieldType {
	return []*types.FieldType{types.NewListType(types.NewFieldType(types.TypeInt64))}
}

func (o *listOp) RequiresCache() bool {
	return true
}

func (o *listOp) Execute(_ *ExecContext, input, output *chunk.Chunk, _ OperatorState) (OperatorResult, error) {
	for i := 0; i < input.NumRows(); i++ {
		output.AppendOpaque(0, []byte{byte(input.GetRow(i).GetInt64(0))})
	}
	return NeedMoreInput, nil
}

func TestChunkCacheSkipsUncacheableTypes(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(2, 8)...)
	sink := &recordingSink{}
	p, err := NewPipeline(client, source, []PhysicalOperator{&listOp{}}, sink,
		WithVectorSize(8), WithForceChunkCache())
	require.NoError(t, err)

	exec, err := NewPipelineExecutor(client, p)
	require.NoError(t, err)
	require.Nil(t, exec.cachedChunks[0])
	require.NoError(t, exec.PushFinalize())
}

func TestHaveMoreOutputResume(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(3, 9)...)
	rebatch, err := NewRebatch(int64Fields(), 4)
	require.NoError(t, err)
	sink := &recordingSink{}
	p, err := NewPipeline(client, source, []PhysicalOperator{rebatch}, sink, WithVectorSize(16))
	require.NoError(t, err)

	runPush(t, client, p)

	global := p.SinkState.(*recordingSinkGlobal)
	// each 9-row batch splits into 4+4+1
	require.Equal(t, []int{4, 4, 1, 4, 4, 1, 4, 4, 1}, global.chunkSizes)
	for i, v := range global.sortedRows() {
		require.Equal(t, int64(i), v)
	}
}

func TestOperatorFinishedStopsPipeline(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(10, 8)...)
	limit := NewLimit(int64Fields(), 20)
	sink := &recordingSink{}
	p, err := NewPipeline(client, source, []PhysicalOperator{limit}, sink, WithVectorSize(8))
	require.NoError(t, err)

	runPush(t, client, p)

	global := p.SinkState.(*recordingSinkGlobal)
	require.Len(t, global.rows, 20)
	require.Equal(t, 1, global.combines)
	// the source was not drained: the limit terminated the pipeline early
	require.Less(t, source.consumedBatches(p.SourceState), 10)
}

func TestSinkFinishedStopsPipeline(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(10, 8)...)
	sink := &recordingSink{finishAfter: 16}
	p, err := NewPipeline(client, source, nil, sink, WithVectorSize(8))
	require.NoError(t, err)

	runPush(t, client, p)

	global := p.SinkState.(*recordingSinkGlobal)
	require.Len(t, global.rows, 16)
	require.Less(t, source.consumedBatches(p.SourceState), 10)
}

func TestInterruptStopsExecutionButCombines(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(4, 8)...)
	sink := &recordingSink{}
	p, err := NewPipeline(client, source, nil, sink, WithVectorSize(8))
	require.NoError(t, err)

	client.Interrupt()
	exec, err := NewPipelineExecutor(client, p)
	require.NoError(t, err)
	err = exec.Execute()
	require.Error(t, err)
	require.True(t, errors.ErrorEqual(errors.Cause(err), ErrInterrupted))

	require.False(t, exec.Finalized())
	require.NoError(t, exec.PushFinalize())
	global := p.SinkState.(*recordingSinkGlobal)
	require.Equal(t, 1, global.combines)
	require.Empty(t, global.rows)
}

func TestOperatorContractViolation(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(1, 8)...)
	sink := &recordingSink{}
	p, err := NewPipeline(client, source, []PhysicalOperator{&brokenOp{}}, sink, WithVectorSize(8))
	require.NoError(t, err)

	exec, err := NewPipelineExecutor(client, p)
	require.NoError(t, err)
	err = exec.Execute()
	require.Error(t, err)
	require.True(t, errors.ErrorEqual(errors.Cause(err), ErrOperatorContract))
	require.NoError(t, exec.PushFinalize())
}

func TestDoubleFinalize(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(1, 4)...)
	sink := &recordingSink{}
	p, err := NewPipeline(client, source, nil, sink, WithVectorSize(8))
	require.NoError(t, err)

	exec, err := NewPipelineExecutor(client, p)
	require.NoError(t, err)
	require.NoError(t, exec.Execute())
	require.True(t, exec.Finalized())
	err = exec.PushFinalize()
	require.True(t, errors.ErrorEqual(errors.Cause(err), ErrAlreadyFinalized))
}

func TestLocalSinkStateClosedAtFinalize(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(1, 4)...)
	sink := &recordingSink{}
	p, err := NewPipeline(client, source, nil, sink, WithVectorSize(8))
	require.NoError(t, err)

	exec, err := NewPipelineExecutor(client, p)
	require.NoError(t, err)
	local := exec.localSinkState.(*recordingSinkLocal)
	require.NoError(t, exec.Execute())
	require.True(t, local.closed)
}

func TestExecutePull(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(4, 8)...)
	p, err := NewPipeline(client, source, []PhysicalOperator{evenFilter()}, nil, WithVectorSize(8))
	require.NoError(t, err)

	exec, err := NewPipelineExecutor(client, p)
	require.NoError(t, err)

	result := chunk.NewWithCapacity(p.finalTypes(), 8)
	var rows []int64
	for {
		result.Reset()
		require.NoError(t, exec.ExecutePull(result))
		if result.NumRows() == 0 {
			break
		}
		for i := 0; i < result.NumRows(); i++ {
			rows = append(rows, result.GetRow(i).GetInt64(0))
		}
	}
	require.Len(t, rows, 16)
	require.NoError(t, exec.PullFinalize())
}

func TestExecutePullRejectsSink(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(1, 4)...)
	p, err := NewPipeline(client, source, nil, &recordingSink{}, WithVectorSize(8))
	require.NoError(t, err)
	exec, err := NewPipelineExecutor(client, p)
	require.NoError(t, err)
	require.Error(t, exec.ExecutePull(chunk.NewWithCapacity(int64Fields(), 8)))
	require.NoError(t, exec.PushFinalize())
}

func TestExecutePullPrefersSiblingError(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(2, 4)...)
	source.errAt = 0
	errs := &ErrorHolder{}
	siblingErr := errors.New("sibling failed first")
	require.True(t, errs.Set(siblingErr))

	p, err := NewPipeline(client, source, nil, nil, WithVectorSize(8))
	require.NoError(t, err)
	exec, err := NewPipelineExecutor(client, p, WithErrorHolder(errs))
	require.NoError(t, err)

	err = exec.ExecutePull(chunk.NewWithCapacity(int64Fields(), 8))
	require.Error(t, err)
	require.True(t, errors.ErrorEqual(errors.Cause(err), siblingErr))
	require.NoError(t, exec.PullFinalize())
}

func TestFetchFromSourceFailpoint(t *testing.T) {
	require.NoError(t, failpoint.Enable("github.com/veloradb/velora/executor/fetchFromSourceError", "return(true)"))
	defer func() {
		require.NoError(t, failpoint.Disable("github.com/veloradb/velora/executor/fetchFromSourceError"))
	}()

	client := NewClientContext()
	source := newMockSource(batchesOf(2, 4)...)
	sink := &recordingSink{}
	p, err := NewPipeline(client, source, nil, sink, WithVectorSize(8))
	require.NoError(t, err)
	exec, err := NewPipelineExecutor(client, p)
	require.NoError(t, err)
	err = exec.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "injected")
	require.NoError(t, exec.PushFinalize())
}

func TestRuntimeStatsCollected(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(4, 8)...)
	sink := &recordingSink{}
	p, err := NewPipeline(client, source, []PhysicalOperator{evenFilter()}, sink, WithVectorSize(8))
	require.NoError(t, err)

	coll := execdetails.NewRuntimeStatsColl()
	runPush(t, client, p, WithRuntimeStats(coll))

	sourceStats := coll.GetBasicRuntimeStats(0)
	require.NotNil(t, sourceStats)
	require.Equal(t, int64(32), sourceStats.Rows())
	// one extra loop observes the empty end-of-stream fetch
	require.Equal(t, int64(5), sourceStats.Loops())

	filterStats := coll.GetBasicRuntimeStats(1)
	require.NotNil(t, filterStats)
	require.Equal(t, int64(16), filterStats.Rows())
}

func TestExecutorUsesChunkPool(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(2, 8)...)
	sink := &recordingSink{}
	p, err := NewPipeline(client, source, []PhysicalOperator{evenFilter()}, sink, WithVectorSize(8))
	require.NoError(t, err)

	pool := chunk.NewPool()
	runPush(t, client, p, WithChunkPool(pool))

	// the executor returned its chunks: the next allocation reuses them
	chk := pool.GetChunk(int64Fields(), 8)
	require.Equal(t, 0, chk.NumRows())
}
