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
	"fmt"
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"

	"github.com/veloradb/velora/collection"
	"github.com/veloradb/velora/types"
	"github.com/veloradb/velora/util/chunk"
)

func TestNumbersScan(t *testing.T) {
	client := NewClientContext()
	source := NewNumbersScan(1000)
	sink := &recordingSink{}
	p, err := NewPipeline(client, source, nil, sink, WithVectorSize(64))
	require.NoError(t, err)

	require.Implements(t, (*TotalWorkHinter)(nil), p.SourceState)
	require.Equal(t, 1000, p.SourceState.(TotalWorkHinter).TotalRows())

	runPush(t, client, p)

	global := p.SinkState.(*recordingSinkGlobal)
	require.Len(t, global.rows, 1000)
	for i, v := range global.sortedRows() {
		require.Equal(t, int64(i), v)
	}
}

func TestCollectionScanAndSink(t *testing.T) {
	fields := []*types.FieldType{
		types.NewFieldType(types.TypeInt64),
		types.NewFieldType(types.TypeString),
	}
	input := collection.New(fields, collection.WithSegmentCapacity(128))
	chk := chunk.NewWithCapacity(fields, 64)
	for i := 0; i < 500; {
		chk.Reset()
		for ; i < 500 && !chk.IsFull(); i++ {
			chk.AppendInt64(0, int64(i))
			chk.AppendString(1, fmt.Sprintf("name-%d", i))
		}
		require.NoError(t, input.Append(chk))
	}

	client := NewClientContext()
	source := NewCollectionScan(input)
	sink := NewCollectionSink(fields)
	p, err := NewPipeline(client, source, nil, sink, WithVectorSize(64))
	require.NoError(t, err)

	require.Equal(t, 500, p.SourceState.(TotalWorkHinter).TotalRows())

	runPush(t, client, p)

	result := p.SinkState.(*CollectionSinkState).Result()
	require.Equal(t, 500, result.NumRows())
}

func TestFilterPredicateError(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(2, 8)...)
	failing := NewFilter(int64Fields(), func(row chunk.Row) (bool, error) {
		if row.GetInt64(0) == 5 {
			return false, errors.New("predicate blew up")
		}
		return true, nil
	})
	sink := &recordingSink{}
	p, err := NewPipeline(client, source, []PhysicalOperator{failing}, sink, WithVectorSize(8))
	require.NoError(t, err)

	exec, err := NewPipelineExecutor(client, p)
	require.NoError(t, err)
	err = exec.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "predicate blew up")
	require.NoError(t, exec.PushFinalize())
}

func TestProjection(t *testing.T) {
	fields := []*types.FieldType{
		types.NewFieldType(types.TypeInt64),
		types.NewFieldType(types.TypeString),
		types.NewFieldType(types.TypeFloat64),
	}
	proj, err := NewProjection(fields, []int{2, 0})
	require.NoError(t, err)
	require.Len(t, proj.OutputTypes(), 2)
	require.Equal(t, types.TypeFloat64, proj.OutputTypes()[0].ID)
	require.Equal(t, types.TypeInt64, proj.OutputTypes()[1].ID)

	input := chunk.NewWithCapacity(fields, 8)
	for i := 0; i < 5; i++ {
		input.AppendInt64(0, int64(i))
		input.AppendString(1, "x")
		input.AppendFloat64(2, float64(i)*1.5)
	}
	output := chunk.NewWithCapacity(proj.OutputTypes(), 8)
	result, err := proj.Execute(nil, input, output, nil)
	require.NoError(t, err)
	require.Equal(t, NeedMoreInput, result)
	require.Equal(t, 5, output.NumRows())
	for i := 0; i < 5; i++ {
		require.Equal(t, float64(i)*1.5, output.GetRow(i).GetFloat64(0))
		require.Equal(t, int64(i), output.GetRow(i).GetInt64(1))
	}
}

func TestProjectionRejectsBadColumn(t *testing.T) {
	_, err := NewProjection(int64Fields(), []int{1})
	require.Error(t, err)
	_, err = NewProjection(int64Fields(), []int{-1})
	require.Error(t, err)
}

func TestRebatchRejectsBadSize(t *testing.T) {
	_, err := NewRebatch(int64Fields(), 0)
	require.Error(t, err)
}

func TestLimitExactAcrossBatches(t *testing.T) {
	client := NewClientContext()
	source := newMockSource(batchesOf(5, 7)...)
	limit := NewLimit(int64Fields(), 10)
	sink := &recordingSink{}
	p, err := NewPipeline(client, source, []PhysicalOperator{limit}, sink, WithVectorSize(8))
	require.NoError(t, err)

	runPush(t, client, p)

	global := p.SinkState.(*recordingSinkGlobal)
	require.Len(t, global.rows, 10)
	require.Equal(t, []int{7, 3}, global.chunkSizes)
}

func TestOperatorResultString(t *testing.T) {
	require.Equal(t, "NeedMoreInput", NeedMoreInput.String())
	require.Equal(t, "HaveMoreOutput", HaveMoreOutput.String())
	require.Equal(t, "Finished", OperatorFinished.String())
	require.Equal(t, "Unknown", OperatorResult(42).String())
}
