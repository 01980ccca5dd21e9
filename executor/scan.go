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
	atomic2 "go.uber.org/atomic"

	"github.com/veloradb/velora/collection"
	"github.com/veloradb/velora/types"
	"github.com/veloradb/velora/util/chunk"
)

// CollectionScan is a parallel source over a materialized
// ColumnDataCollection. All executors of the pipeline share one scan
// cursor, so every row is produced exactly once regardless of how many
// threads scan.
type CollectionScan struct {
	collection *collection.ColumnDataCollection
}

var _ SourceOperator = (*CollectionScan)(nil)

// NewCollectionScan creates a source over c.
func NewCollectionScan(c *collection.ColumnDataCollection) *CollectionScan {
	return &CollectionScan{collection: c}
}

// Name implements Operator.
func (s *CollectionScan) Name() string {
	return "CollectionScan"
}

// OutputTypes implements Operator.
func (s *CollectionScan) OutputTypes() []*types.FieldType {
	return s.collection.Types()
}

type collectionScanGlobalState struct {
	scan      *collection.ScanState
	totalRows int
}

// TotalRows implements TotalWorkHinter.
func (s *collectionScanGlobalState) TotalRows() int {
	return s.totalRows
}

// InitGlobalSourceState implements SourceOperator.
func (s *CollectionScan) InitGlobalSourceState(*ClientContext) (GlobalSourceState, error) {
	return &collectionScanGlobalState{
		scan:      s.collection.InitScan(),
		totalRows: s.collection.NumRows(),
	}, nil
}

// InitLocalSourceState implements SourceOperator.
func (s *CollectionScan) InitLocalSourceState(*ExecContext, GlobalSourceState) (LocalSourceState, error) {
	return nil, nil
}

// GetData implements SourceOperator.
func (s *CollectionScan) GetData(_ *ExecContext, out *chunk.Chunk, global GlobalSourceState, _ LocalSourceState) error {
	s.collection.Scan(global.(*collectionScanGlobalState).scan, out)
	return nil
}

// NumbersScan is a parallel source producing the integers [0, total) in a
// single int64 column. Executors claim disjoint ranges from a shared
// cursor.
type NumbersScan struct {
	total  int64
	fields []*types.FieldType
}

var _ SourceOperator = (*NumbersScan)(nil)

// NewNumbersScan creates a source producing total rows.
func NewNumbersScan(total int64) *NumbersScan {
	return &NumbersScan{
		total:  total,
		fields: []*types.FieldType{types.NewFieldType(types.TypeInt64)},
	}
}

// Name implements Operator.
func (s *NumbersScan) Name() string {
	return "NumbersScan"
}

// OutputTypes implements Operator.
func (s *NumbersScan) OutputTypes() []*types.FieldType {
	return s.fields
}

type numbersScanGlobalState struct {
	cursor atomic2.Int64
	total  int64
}

// TotalRows implements TotalWorkHinter.
func (s *numbersScanGlobalState) TotalRows() int {
	return int(s.total)
}

// InitGlobalSourceState implements SourceOperator.
func (s *NumbersScan) InitGlobalSourceState(*ClientContext) (GlobalSourceState, error) {
	return &numbersScanGlobalState{total: s.total}, nil
}

// InitLocalSourceState implements SourceOperator.
func (s *NumbersScan) InitLocalSourceState(*ExecContext, GlobalSourceState) (LocalSourceState, error) {
	return nil, nil
}

// GetData implements SourceOperator.
func (s *NumbersScan) GetData(_ *ExecContext, out *chunk.Chunk, global GlobalSourceState, _ LocalSourceState) error {
	state := global.(*numbersScanGlobalState)
	batch := int64(out.Capacity())
	begin := state.cursor.Add(batch) - batch
	if begin >= state.total {
		return nil
	}
	end := begin + batch
	if end > state.total {
		end = state.total
	}
	for i := begin; i < end; i++ {
		out.AppendInt64(0, i)
	}
	return nil
}
