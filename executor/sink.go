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
	"github.com/pingcap/errors"
	atomic2 "go.uber.org/atomic"

	"github.com/veloradb/velora/collection"
	"github.com/veloradb/velora/types"
	"github.com/veloradb/velora/util/chunk"
	"github.com/veloradb/velora/util/memory"
)

// CollectionSink materializes the pipeline output into a
// ColumnDataCollection. Each executor accumulates into a private local
// collection; Combine folds the locals into the shared result, so the sink
// itself never contends during the hot loop.
type CollectionSink struct {
	fields        []*types.FieldType
	preserveOrder bool
}

var _ SinkOperator = (*CollectionSink)(nil)

// CollectionSinkOption customizes a collection sink.
type CollectionSinkOption func(*CollectionSink)

// WithPreserveOrder marks the sink as order sensitive, which disables the
// chunk cache for its pipeline.
func WithPreserveOrder() CollectionSinkOption {
	return func(s *CollectionSink) {
		s.preserveOrder = true
	}
}

// NewCollectionSink creates a sink collecting rows of the given types.
func NewCollectionSink(fields []*types.FieldType, opts ...CollectionSinkOption) *CollectionSink {
	s := &CollectionSink{fields: fields}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Operator.
func (s *CollectionSink) Name() string {
	return "CollectionSink"
}

// OutputTypes implements Operator.
func (s *CollectionSink) OutputTypes() []*types.FieldType {
	return s.fields
}

// CollectionSinkState is the global state of a CollectionSink; Result
// exposes the combined collection once execution has finished.
type CollectionSinkState struct {
	shared *collection.SharedCollection
}

// Result returns the combined collection. Only valid after every executor
// of the pipeline has been finalized.
func (s *CollectionSinkState) Result() *collection.ColumnDataCollection {
	return s.shared.Collection()
}

// InitGlobalSinkState implements SinkOperator.
func (s *CollectionSink) InitGlobalSinkState(client *ClientContext) (GlobalSinkState, error) {
	result := collection.New(s.fields, collection.WithMemTracker(s.newTracker(client, "collection-sink")))
	return &CollectionSinkState{shared: collection.NewShared(result)}, nil
}

func (s *CollectionSink) newTracker(client *ClientContext, label string) *memory.Tracker {
	t := memory.NewTracker(label, 0)
	t.AttachTo(client.MemTracker())
	return t
}

// InitLocalSinkState implements SinkOperator.
func (s *CollectionSink) InitLocalSinkState(ctx *ExecContext) (LocalSinkState, error) {
	return collection.New(s.fields, collection.WithMemTracker(s.newTracker(ctx.Client, "collection-sink-local"))), nil
}

// Sink implements SinkOperator.
func (s *CollectionSink) Sink(_ *ExecContext, _ GlobalSinkState, local LocalSinkState, input *chunk.Chunk) (SinkResult, error) {
	if err := local.(*collection.ColumnDataCollection).Append(input); err != nil {
		return SinkNeedMoreInput, errors.Trace(err)
	}
	return SinkNeedMoreInput, nil
}

// Combine implements SinkOperator.
func (s *CollectionSink) Combine(_ *ExecContext, global GlobalSinkState, local LocalSinkState) error {
	global.(*CollectionSinkState).shared.MergeFrom(local.(*collection.ColumnDataCollection))
	return nil
}

// SinkOrderMatters implements SinkOperator.
func (s *CollectionSink) SinkOrderMatters() bool {
	return s.preserveOrder
}

// RowCountSink counts the rows reaching it and discards the data. Useful
// for benchmarks and for pipelines executed purely for side effects.
type RowCountSink struct {
	fields []*types.FieldType
}

var _ SinkOperator = (*RowCountSink)(nil)

// NewRowCountSink creates a counting sink for rows of the given types.
func NewRowCountSink(fields []*types.FieldType) *RowCountSink {
	return &RowCountSink{fields: fields}
}

// Name implements Operator.
func (s *RowCountSink) Name() string {
	return "RowCountSink"
}

// OutputTypes implements Operator.
func (s *RowCountSink) OutputTypes() []*types.FieldType {
	return s.fields
}

// RowCountSinkState is the global state of a RowCountSink.
type RowCountSinkState struct {
	rows atomic2.Int64
}

// Rows returns the combined row count. Only valid after every executor of
// the pipeline has been finalized.
func (s *RowCountSinkState) Rows() int64 {
	return s.rows.Load()
}

type rowCountLocalState struct {
	rows int64
}

// InitGlobalSinkState implements SinkOperator.
func (s *RowCountSink) InitGlobalSinkState(*ClientContext) (GlobalSinkState, error) {
	return &RowCountSinkState{}, nil
}

// InitLocalSinkState implements SinkOperator.
func (s *RowCountSink) InitLocalSinkState(*ExecContext) (LocalSinkState, error) {
	return &rowCountLocalState{}, nil
}

// Sink implements SinkOperator.
func (s *RowCountSink) Sink(_ *ExecContext, _ GlobalSinkState, local LocalSinkState, input *chunk.Chunk) (SinkResult, error) {
	local.(*rowCountLocalState).rows += int64(input.NumRows())
	return SinkNeedMoreInput, nil
}

// Combine implements SinkOperator.
func (s *RowCountSink) Combine(_ *ExecContext, global GlobalSinkState, local LocalSinkState) error {
	global.(*RowCountSinkState).rows.Add(local.(*rowCountLocalState).rows)
	return nil
}

// SinkOrderMatters implements SinkOperator.
func (s *RowCountSink) SinkOrderMatters() bool {
	return false
}
