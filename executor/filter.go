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

// Predicate decides whether one row passes a filter.
type Predicate func(row chunk.Row) (bool, error)

// Filter keeps the rows for which the predicate holds. A selective filter
// emits sparse chunks, so filters opt in to the chunk cache.
type Filter struct {
	fields    []*types.FieldType
	predicate Predicate
}

var _ PhysicalOperator = (*Filter)(nil)

// NewFilter creates a filter over rows of the given types.
func NewFilter(fields []*types.FieldType, predicate Predicate) *Filter {
	return &Filter{fields: fields, predicate: predicate}
}

// Name implements Operator.
func (f *Filter) Name() string {
	return "Filter"
}

// OutputTypes implements Operator.
func (f *Filter) OutputTypes() []*types.FieldType {
	return f.fields
}

// InitOperatorState implements PhysicalOperator.
func (f *Filter) InitOperatorState(*ClientContext) (OperatorState, error) {
	return nil, nil
}

// RequiresCache implements PhysicalOperator.
func (f *Filter) RequiresCache() bool {
	return true
}

// Execute implements PhysicalOperator.
func (f *Filter) Execute(_ *ExecContext, input, output *chunk.Chunk, _ OperatorState) (OperatorResult, error) {
	for i := 0; i < input.NumRows(); i++ {
		row := input.GetRow(i)
		keep, err := f.predicate(row)
		if err != nil {
			return NeedMoreInput, errors.Trace(err)
		}
		if keep {
			output.AppendRow(row)
		}
	}
	return NeedMoreInput, nil
}
