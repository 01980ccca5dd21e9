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

	"github.com/veloradb/velora/types"
	"github.com/veloradb/velora/util/chunk"
)

// Rebatch splits input chunks into output chunks of at most batchSize rows.
// An input larger than batchSize is emitted in several calls: the operator
// reports HaveMoreOutput and keeps its position in the input across the
// re-entrant calls.
type Rebatch struct {
	fields    []*types.FieldType
	batchSize int
}

var _ PhysicalOperator = (*Rebatch)(nil)

// NewRebatch creates a rebatcher emitting chunks of at most batchSize rows.
func NewRebatch(fields []*types.FieldType, batchSize int) (*Rebatch, error) {
	if batchSize <= 0 {
		return nil, errors.Errorf("invalid rebatch size %d", batchSize)
	}
	return &Rebatch{fields: fields, batchSize: batchSize}, nil
}

// Name implements Operator.
func (r *Rebatch) Name() string {
	return "Rebatch"
}

// OutputTypes implements Operator.
func (r *Rebatch) OutputTypes() []*types.FieldType {
	return r.fields
}

type rebatchState struct {
	offset int
}

// InitOperatorState implements PhysicalOperator.
func (r *Rebatch) InitOperatorState(*ClientContext) (OperatorState, error) {
	return &rebatchState{}, nil
}

// RequiresCache implements PhysicalOperator.
func (r *Rebatch) RequiresCache() bool {
	return false
}

// Execute implements PhysicalOperator.
func (r *Rebatch) Execute(_ *ExecContext, input, output *chunk.Chunk, state OperatorState) (OperatorResult, error) {
	s := state.(*rebatchState)
	end := s.offset + r.batchSize
	if end > input.NumRows() {
		end = input.NumRows()
	}
	output.AppendRange(input, s.offset, end)
	if end < input.NumRows() {
		s.offset = end
		return HaveMoreOutput, nil
	}
	s.offset = 0
	return NeedMoreInput, nil
}
