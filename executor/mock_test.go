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
	"sync"

	"github.com/pingcap/errors"
	atomic2 "go.uber.org/atomic"

	"github.com/veloradb/velora/types"
	"github.com/veloradb/velora/util/chunk"
)

func int64Fields() []*types.FieldType {
	return []*types.FieldType{types.NewFieldType(types.TypeInt64)}
}

// mockSource produces a fixed sequence of int64 batches. Batches are
// claimed from a shared cursor so parallel executors each see a disjoint
// subset.
type mockSource struct {
	batches [][]int64
	errAt   int // batch index that fails, -1 for never
}

var _ SourceOperator = (*mockSource)(nil)

func newMockSource(batches ...[]int64) *mockSource {
	return &mockSource{batches: batches, errAt: -1}
}

func (s *mockSource) Name() string {
	return "MockSource"
}

func (s *mockSource) OutputTypes() []*types.FieldType {
	return int64Fields()
}

type mockSourceGlobal struct {
	cursor atomic2.Int64
	total  int
}

func (g *mockSourceGlobal) TotalRows() int {
	return g.total
}

func (s *mockSource) InitGlobalSourceState(*ClientContext) (GlobalSourceState, error) {
	total := 0
	for _, b := range s.batches {
		total += len(b)
	}
	return &mockSourceGlobal{total: total}, nil
}

func (s *mockSource) InitLocalSourceState(*ExecContext, GlobalSourceState) (LocalSourceState, error) {
	return nil, nil
}

func (s *mockSource) GetData(_ *ExecContext, out *chunk.Chunk, global GlobalSourceState, _ LocalSourceState) error {
	g := global.(*mockSourceGlobal)
	idx := int(g.cursor.Add(1)) - 1
	if idx >= len(s.batches) {
		return nil
	}
	if idx == s.errAt {
		return errors.New("mock source failure")
	}
	for _, v := range s.batches[idx] {
		out.AppendInt64(0, v)
	}
	return nil
}

// consumedBatches reports how many batches have been claimed from global.
func (s *mockSource) consumedBatches(global GlobalSourceState) int {
	n := int(global.(*mockSourceGlobal).cursor.Load())
	if n > len(s.batches) {
		n = len(s.batches)
	}
	return n
}

// batchesOf builds n batches of size rows holding consecutive integers.
func batchesOf(n, size int) [][]int64 {
	batches := make([][]int64, 0, n)
	next := int64(0)
	for i := 0; i < n; i++ {
		batch := make([]int64, 0, size)
		for j := 0; j < size; j++ {
			batch = append(batch, next)
			next++
		}
		batches = append(batches, batch)
	}
	return batches
}

// passThroughOp copies its input unchanged.
type passThroughOp struct{}

var _ PhysicalOperator = (*passThroughOp)(nil)

func (o *passThroughOp) Name() string {
	return "PassThrough"
}

func (o *passThroughOp) OutputTypes() []*types.FieldType {
	return int64Fields()
}

func (o *passThroughOp) InitOperatorState(*ClientContext) (OperatorState, error) {
	return nil, nil
}

func (o *passThroughOp) RequiresCache() bool {
	return false
}

func (o *passThroughOp) Execute(_ *ExecContext, input, output *chunk.Chunk, _ OperatorState) (OperatorResult, error) {
	output.Append(input)
	return NeedMoreInput, nil
}

// brokenOp violates the operator contract by reporting HaveMoreOutput
// with an empty output chunk.
type brokenOp struct {
	passThroughOp
}

func (o *brokenOp) Name() string {
	return "Broken"
}

func (o *brokenOp) Execute(*ExecContext, *chunk.Chunk, *chunk.Chunk, OperatorState) (OperatorResult, error) {
	return HaveMoreOutput, nil
}

// recordingSink collects every row it sees together with the size of each
// chunk it was handed, and counts Combine calls.
type recordingSink struct {
	orderMatters bool
	finishAfter  int64 // report SinkFinished once this many rows arrived, 0 for never
}

var _ SinkOperator = (*recordingSink)(nil)

func (s *recordingSink) Name() string {
	return "RecordingSink"
}

func (s *recordingSink) OutputTypes() []*types.FieldType {
	return int64Fields()
}

type recordingSinkGlobal struct {
	mu         sync.Mutex
	rows       []int64
	chunkSizes []int
	combines   int
	sunk       atomic2.Int64
}

func (g *recordingSinkGlobal) sortedRows() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]int64, len(g.rows))
	copy(out, g.rows)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

type recordingSinkLocal struct {
	rows       []int64
	chunkSizes []int
	closed     bool
}

func (l *recordingSinkLocal) Close() error {
	l.closed = true
	return nil
}

func (s *recordingSink) InitGlobalSinkState(*ClientContext) (GlobalSinkState, error) {
	return &recordingSinkGlobal{}, nil
}

func (s *recordingSink) InitLocalSinkState(*ExecContext) (LocalSinkState, error) {
	return &recordingSinkLocal{}, nil
}

func (s *recordingSink) Sink(_ *ExecContext, global GlobalSinkState, local LocalSinkState, input *chunk.Chunk) (SinkResult, error) {
	g := global.(*recordingSinkGlobal)
	l := local.(*recordingSinkLocal)
	l.chunkSizes = append(l.chunkSizes, input.NumRows())
	for i := 0; i < input.NumRows(); i++ {
		l.rows = append(l.rows, input.GetRow(i).GetInt64(0))
	}
	if s.finishAfter > 0 && g.sunk.Add(int64(input.NumRows())) >= s.finishAfter {
		return SinkFinished, nil
	}
	return SinkNeedMoreInput, nil
}

func (s *recordingSink) Combine(_ *ExecContext, global GlobalSinkState, local LocalSinkState) error {
	g := global.(*recordingSinkGlobal)
	l := local.(*recordingSinkLocal)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rows = append(g.rows, l.rows...)
	g.chunkSizes = append(g.chunkSizes, l.chunkSizes...)
	g.combines++
	return nil
}

func (s *recordingSink) SinkOrderMatters() bool {
	return s.orderMatters
}

// evenFilter keeps rows whose value is even.
func evenFilter() *Filter {
	return NewFilter(int64Fields(), func(row chunk.Row) (bool, error) {
		return row.GetInt64(0)%2 == 0, nil
	})
}

// sparseFilter keeps rows whose value is divisible by mod, turning dense
// batches sparse.
func sparseFilter(mod int64) *Filter {
	return NewFilter(int64Fields(), func(row chunk.Row) (bool, error) {
		return row.GetInt64(0)%mod == 0, nil
	})
}
