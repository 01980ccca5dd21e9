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

// Projection reorders and narrows columns: output column i is input column
// colIdxs[i]. Row data is copied column-wise, never row by row.
type Projection struct {
	colIdxs []int
	fields  []*types.FieldType
}

var _ PhysicalOperator = (*Projection)(nil)

// NewProjection creates a projection of the given input columns.
func NewProjection(inputTypes []*types.FieldType, colIdxs []int) (*Projection, error) {
	fields := make([]*types.FieldType, 0, len(colIdxs))
	for _, idx := range colIdxs {
		if idx < 0 || idx >= len(inputTypes) {
			return nil, errors.Errorf("projection column %d out of range, input has %d columns", idx, len(inputTypes))
		}
		fields = append(fields, inputTypes[idx])
	}
	return &Projection{colIdxs: colIdxs, fields: fields}, nil
}

// Name implements Operator.
func (p *Projection) Name() string {
	return "Projection"
}

// OutputTypes implements Operator.
func (p *Projection) OutputTypes() []*types.FieldType {
	return p.fields
}

// InitOperatorState implements PhysicalOperator.
func (p *Projection) InitOperatorState(*ClientContext) (OperatorState, error) {
	return nil, nil
}

// RequiresCache implements PhysicalOperator.
func (p *Projection) RequiresCache() bool {
	return false
}

// Execute implements PhysicalOperator.
func (p *Projection) Execute(_ *ExecContext, input, output *chunk.Chunk, _ OperatorState) (OperatorResult, error) {
	output.CopyColumns(input, p.colIdxs)
	return NeedMoreInput, nil
}
