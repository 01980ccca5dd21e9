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

	"github.com/veloradb/velora/types"
	"github.com/veloradb/velora/util/chunk"
)

// Limit passes at most the first n rows. The budget is shared across all
// executors of the pipeline, so the total never exceeds n even under
// parallel execution; which rows pass depends on executor scheduling. Once
// the budget is spent the operator reports Finished, terminating its
// executor early.
type Limit struct {
	fields    []*types.FieldType
	remaining atomic2.Int64
}

var _ PhysicalOperator = (*Limit)(nil)

// NewLimit creates a limit of n rows over the given types.
func NewLimit(fields []*types.FieldType, n int64) *Limit {
	l := &Limit{fields: fields}
	l.remaining.Store(n)
	return l
}

// Name implements Operator.
func (l *Limit) Name() string {
	return "Limit"
}

// OutputTypes implements Operator.
func (l *Limit) OutputTypes() []*types.FieldType {
	return l.fields
}

// InitOperatorState implements PhysicalOperator.
func (l *Limit) InitOperatorState(*ClientContext) (OperatorState, error) {
	return nil, nil
}

// RequiresCache implements PhysicalOperator.
func (l *Limit) RequiresCache() bool {
	return false
}

// claim atomically reserves up to want rows from the shared budget.
func (l *Limit) claim(want int64) int64 {
	for {
		remaining := l.remaining.Load()
		if remaining == 0 {
			return 0
		}
		granted := want
		if granted > remaining {
			granted = remaining
		}
		if l.remaining.CompareAndSwap(remaining, remaining-granted) {
			return granted
		}
	}
}

// Execute implements PhysicalOperator.
func (l *Limit) Execute(_ *ExecContext, input, output *chunk.Chunk, _ OperatorState) (OperatorResult, error) {
	granted := l.claim(int64(input.NumRows()))
	if granted == 0 {
		return OperatorFinished, nil
	}
	output.AppendRange(input, 0, int(granted))
	return NeedMoreInput, nil
}
