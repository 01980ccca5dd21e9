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
	"github.com/veloradb/velora/types"
	"github.com/veloradb/velora/util/chunk"
)

// OperatorResult is returned by a unary operator's Execute call.
type OperatorResult int

const (
	// NeedMoreInput means the current input has been fully consumed and
	// the operator wants the next input chunk.
	NeedMoreInput OperatorResult = iota
	// HaveMoreOutput means the operator produced an output chunk and can
	// produce more from the same input; the executor re-enters the
	// operator before fetching new input.
	HaveMoreOutput
	// OperatorFinished means the operator will never produce output again;
	// the pipeline terminates.
	OperatorFinished
)

// String implements fmt.Stringer.
func (r OperatorResult) String() string {
	switch r {
	case NeedMoreInput:
		return "NeedMoreInput"
	case HaveMoreOutput:
		return "HaveMoreOutput"
	case OperatorFinished:
		return "Finished"
	}
	return "Unknown"
}

// SinkResult is returned by a sink's Sink call.
type SinkResult int

const (
	// SinkNeedMoreInput means the sink accepted the chunk and wants more.
	SinkNeedMoreInput SinkResult = iota
	// SinkFinished means the sink needs no further input and the pipeline
	// terminates, e.g. a satisfied LIMIT.
	SinkFinished
)

// Operator state tiers. Global states are shared across the parallel
// executors of one pipeline and created once by the pipeline owner; local
// states belong to a single executor and live from its construction until
// finalize. A local state implementing io.Closer is closed at finalize.
type (
	// GlobalSourceState is the shared state of a source operator.
	GlobalSourceState interface{}
	// LocalSourceState is the per-executor state of a source operator.
	LocalSourceState interface{}
	// OperatorState is the per-executor state of a unary operator.
	OperatorState interface{}
	// GlobalSinkState is the shared state of a sink; it accumulates the
	// combined result and must synchronize its own mutation in Combine.
	GlobalSinkState interface{}
	// LocalSinkState is the per-executor state of a sink.
	LocalSinkState interface{}
)

// TotalWorkHinter is optionally implemented by a GlobalSourceState to
// expose how many rows the source expects to produce in total.
type TotalWorkHinter interface {
	TotalRows() int
}

// Operator is the capability set common to sources, unary operators and
// sinks.
type Operator interface {
	// Name identifies the operator in logs and runtime stats.
	Name() string
	// OutputTypes returns the types of the chunks the operator produces.
	OutputTypes() []*types.FieldType
}

// SourceOperator produces the input chunks of a pipeline.
type SourceOperator interface {
	Operator
	// InitGlobalSourceState creates the state shared by all executors.
	InitGlobalSourceState(client *ClientContext) (GlobalSourceState, error)
	// InitLocalSourceState creates the per-executor state.
	InitLocalSourceState(ctx *ExecContext, global GlobalSourceState) (LocalSourceState, error)
	// GetData fills out with up to its capacity of rows. Leaving out empty
	// signals end of stream.
	GetData(ctx *ExecContext, out *chunk.Chunk, global GlobalSourceState, local LocalSourceState) error
}

// PhysicalOperator transforms input chunks into output chunks.
type PhysicalOperator interface {
	Operator
	// InitOperatorState creates the per-executor state.
	InitOperatorState(client *ClientContext) (OperatorState, error)
	// Execute consumes input and fills output. When it returns
	// HaveMoreOutput the output must be non-empty; when it returns
	// Finished the output must be empty.
	Execute(ctx *ExecContext, input, output *chunk.Chunk, state OperatorState) (OperatorResult, error)
	// RequiresCache reports whether the operator can emit sparse chunks
	// worth coalescing, e.g. a selective filter.
	RequiresCache() bool
}

// SinkOperator consumes the output of a pipeline and accumulates a
// per-executor result that Combine folds into the global state.
type SinkOperator interface {
	Operator
	// InitGlobalSinkState creates the state shared by all executors.
	InitGlobalSinkState(client *ClientContext) (GlobalSinkState, error)
	// InitLocalSinkState creates the per-executor state.
	InitLocalSinkState(ctx *ExecContext) (LocalSinkState, error)
	// Sink consumes one chunk.
	Sink(ctx *ExecContext, global GlobalSinkState, local LocalSinkState, input *chunk.Chunk) (SinkResult, error)
	// Combine folds local into global. It runs exactly once per local
	// state, during finalize, and also after errors or interrupts, so it
	// must tolerate a partially populated local state. Implementations
	// synchronize access to the global state themselves.
	Combine(ctx *ExecContext, global GlobalSinkState, local LocalSinkState) error
	// SinkOrderMatters reports whether the sink is sensitive to the
	// arrival order of chunks. An order-sensitive sink disables the chunk
	// cache, which may mildly perturb arrival order.
	SinkOrderMatters() bool
}
