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
	"io"

	"github.com/pingcap/errors"
	"github.com/pingcap/failpoint"
	"go.uber.org/zap"

	"github.com/veloradb/velora/metrics"
	"github.com/veloradb/velora/types"
	"github.com/veloradb/velora/util/chunk"
	"github.com/veloradb/velora/util/execdetails"
)

// PipelineExecutor drives one pipeline to completion on a single thread.
// It owns all per-thread state: the local operator states, the chunks
// buffered between operators, the chunk caches and the stack of in-process
// operators. Multiple executors of the same pipeline run in parallel, each
// on its own thread; the pipeline and the global states are shared.
//
// An executor is a use-once object: after an error or a finalize it must
// not be reused. When Execute or ExecutePull fails, the owner must still
// call the matching finalize to release sink state.
type PipelineExecutor struct {
	pipeline *Pipeline
	ctx      *ExecContext

	statsColl *execdetails.RuntimeStatsColl
	errs      *ErrorHolder
	pool      *chunk.Pool

	localSourceState LocalSourceState
	localSinkState   LocalSinkState

	// intermediateChunks[i] buffers the input of operator i; it is typed
	// to the output of the producer before it (the source for i == 0).
	intermediateChunks []*chunk.Chunk
	intermediateTypes  [][]*types.FieldType
	intermediateStates []OperatorState

	// cachedChunks[i] coalesces sparse outputs of operator i; nil when
	// operator i is not cached.
	cachedChunks []*chunk.Chunk

	// finalChunk buffers the sink-bound output of the last operator.
	finalChunk *chunk.Chunk

	// inProcessOperators holds the positions of operators that reported
	// HaveMoreOutput on their last call; the top is resumed before any new
	// input is fetched.
	inProcessOperators []int

	finalized          bool
	finishedProcessing bool
}

// ExecutorOption customizes executor construction.
type ExecutorOption func(*PipelineExecutor)

// WithRuntimeStats directs the executor to flush its per-thread operator
// stats into coll at finalize.
func WithRuntimeStats(coll *execdetails.RuntimeStatsColl) ExecutorOption {
	return func(e *PipelineExecutor) {
		e.statsColl = coll
	}
}

// WithErrorHolder shares the pipeline-wide first-error slot with the
// executor; sibling errors take precedence over local ones in pull mode.
func WithErrorHolder(h *ErrorHolder) ExecutorOption {
	return func(e *PipelineExecutor) {
		e.errs = h
	}
}

// WithChunkPool makes the executor allocate its intermediate chunks from
// pool and return them at finalize.
func WithChunkPool(pool *chunk.Pool) ExecutorOption {
	return func(e *PipelineExecutor) {
		e.pool = pool
	}
}

// NewPipelineExecutor creates an executor for p and builds all of its local
// state: local source and sink states, one operator state and one
// intermediate chunk per operator, the cache slots of eligible operators
// and the final chunk.
func NewPipelineExecutor(client *ClientContext, p *Pipeline, opts ...ExecutorOption) (*PipelineExecutor, error) {
	e := &PipelineExecutor{
		pipeline: p,
		ctx:      NewExecContext(client),
	}
	for _, opt := range opts {
		opt(e)
	}

	var err error
	e.localSourceState, err = p.Source.InitLocalSourceState(e.ctx, p.SourceState)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if p.Sink != nil {
		e.localSinkState, err = p.Sink.InitLocalSinkState(e.ctx)
		if err != nil {
			return nil, errors.Trace(err)
		}
	}

	numOps := len(p.Operators)
	e.intermediateChunks = make([]*chunk.Chunk, 0, numOps)
	e.intermediateTypes = make([][]*types.FieldType, 0, numOps)
	e.intermediateStates = make([]OperatorState, 0, numOps)
	e.cachedChunks = make([]*chunk.Chunk, numOps)
	cacheEnabled := p.cacheEnabled()
	for i, op := range p.Operators {
		inputTypes := p.operatorInputTypes(i)
		e.intermediateChunks = append(e.intermediateChunks, e.newChunk(inputTypes))
		e.intermediateTypes = append(e.intermediateTypes, inputTypes)
		state, err := op.InitOperatorState(client)
		if err != nil {
			return nil, errors.Trace(err)
		}
		e.intermediateStates = append(e.intermediateStates, state)
		if cacheEnabled && op.RequiresCache() && typesCacheable(op.OutputTypes()) {
			e.cachedChunks[i] = chunk.NewWithCapacity(op.OutputTypes(), p.VectorSize())
		}
	}
	e.finalChunk = e.newChunk(p.finalTypes())
	return e, nil
}

func typesCacheable(fields []*types.FieldType) bool {
	for _, ft := range fields {
		if !ft.Cacheable() {
			return false
		}
	}
	return true
}

func (e *PipelineExecutor) newChunk(fields []*types.FieldType) *chunk.Chunk {
	if e.pool != nil {
		return e.pool.GetChunk(fields, e.pipeline.VectorSize())
	}
	return chunk.NewWithCapacity(fields, e.pipeline.VectorSize())
}

// sourceChunk returns the chunk the source writes into: the input of the
// first operator, or the final chunk when there are no operators.
func (e *PipelineExecutor) sourceChunk() *chunk.Chunk {
	if len(e.pipeline.Operators) == 0 {
		return e.finalChunk
	}
	return e.intermediateChunks[0]
}

// Execute drives the pipeline in push mode until the source is exhausted
// or the sink reports it is finished, then finalizes. It requires a sink.
func (e *PipelineExecutor) Execute() error {
	if e.pipeline.Sink == nil {
		return errors.New("push execution requires a sink")
	}
	sourceChunk := e.sourceChunk()
	for {
		sourceChunk.Reset()
		if err := e.fetchFromSource(sourceChunk); err != nil {
			return errors.Trace(err)
		}
		if sourceChunk.NumRows() == 0 {
			break
		}
		result, err := e.executePushInternal(sourceChunk, 0)
		if err != nil {
			return errors.Trace(err)
		}
		if result == OperatorFinished {
			e.finishedProcessing = true
			break
		}
	}
	return e.PushFinalize()
}

// ExecutePush feeds one externally produced chunk through the operators
// and into the sink. The caller must invoke PushFinalize when done.
func (e *PipelineExecutor) ExecutePush(input *chunk.Chunk) (OperatorResult, error) {
	return e.executePushInternal(input, 0)
}

func (e *PipelineExecutor) executePushInternal(input *chunk.Chunk, initialIdx int) (OperatorResult, error) {
	if input.NumRows() == 0 {
		return NeedMoreInput, nil
	}
	for {
		result := NeedMoreInput
		if len(e.pipeline.Operators) > 0 {
			e.finalChunk.Reset()
			var err error
			result, err = e.execute(input, e.finalChunk, initialIdx)
			if err != nil {
				return result, errors.Trace(err)
			}
			if result == OperatorFinished {
				return OperatorFinished, nil
			}
		}
		sinkChunk := e.finalChunk
		if len(e.pipeline.Operators) == 0 {
			sinkChunk = input
		}
		if sinkChunk.NumRows() > 0 {
			sink := e.pipeline.Sink
			var sinkResult SinkResult
			err := e.withOperatorScope(e.sinkID(), sink.Name(), nil, func() error {
				var err error
				sinkResult, err = sink.Sink(e.ctx, e.pipeline.SinkState, e.localSinkState, sinkChunk)
				return err
			})
			if err != nil {
				return result, errors.Trace(err)
			}
			if sinkResult == SinkFinished {
				return OperatorFinished, nil
			}
		}
		if result == NeedMoreInput {
			return NeedMoreInput, nil
		}
	}
}

// goToSource decides where the next operator call starts: at the deepest
// in-process operator if any is pending, else back at initialIdx.
func (e *PipelineExecutor) goToSource(initialIdx int) int {
	if n := len(e.inProcessOperators); n > 0 {
		idx := e.inProcessOperators[n-1]
		e.inProcessOperators = e.inProcessOperators[:n-1]
		return idx
	}
	return initialIdx
}

// execute runs the re-entrant operator traversal: it pulls input through
// operators initialIdx..n-1, resuming at a stacked in-process operator
// when one is pending, and leaves one sink-bound chunk in result. It
// returns HaveMoreOutput when in-process operators remain for this input.
func (e *PipelineExecutor) execute(input, result *chunk.Chunk, initialIdx int) (OperatorResult, error) {
	if input.NumRows() == 0 {
		return NeedMoreInput, nil
	}
	numOps := len(e.pipeline.Operators)

	currentIdx := e.goToSource(initialIdx)
	resumed := currentIdx != initialIdx
	if !resumed {
		currentIdx++
	}
	if currentIdx > numOps {
		// no operator applies to this input; hand it through unchanged
		result.SwapContents(input)
		return NeedMoreInput, nil
	}
	for {
		currentChunk := result
		if currentIdx < numOps {
			currentChunk = e.intermediateChunks[currentIdx]
		}
		currentChunk.Reset()

		prevChunk := input
		if currentIdx != initialIdx+1 {
			prevChunk = e.intermediateChunks[currentIdx-1]
		}
		opIdx := currentIdx - 1
		op := e.pipeline.Operators[opIdx]

		var opResult OperatorResult
		err := e.withOperatorScope(opIdx+1, op.Name(), currentChunk, func() error {
			var err error
			opResult, err = op.Execute(e.ctx, prevChunk, currentChunk, e.intermediateStates[opIdx])
			return err
		})
		if err != nil {
			return NeedMoreInput, errors.Trace(err)
		}
		switch opResult {
		case HaveMoreOutput:
			if currentChunk.NumRows() == 0 {
				return NeedMoreInput, errors.Annotatef(ErrOperatorContract,
					"operator %s returned HaveMoreOutput with an empty chunk", op.Name())
			}
			e.inProcessOperators = append(e.inProcessOperators, currentIdx)
		case OperatorFinished:
			if currentChunk.NumRows() != 0 {
				return NeedMoreInput, errors.Annotatef(ErrOperatorContract,
					"operator %s returned Finished with a non-empty chunk", op.Name())
			}
			return OperatorFinished, nil
		}
		e.cacheChunk(prevChunk, currentChunk, opIdx)

		if currentChunk.NumRows() == 0 {
			// no output from this operator: resume a stacked operator if
			// one is pending, otherwise ask for fresh input
			currentIdx = e.goToSource(initialIdx)
			if currentIdx == initialIdx {
				break
			}
			continue
		}
		currentIdx++
		if currentIdx > numOps {
			// the last operator produced a sink-bound chunk
			break
		}
	}
	if len(e.inProcessOperators) > 0 {
		return HaveMoreOutput, nil
	}
	return NeedMoreInput, nil
}

// ExecutePull produces the next result chunk of a sink-less pipeline. An
// empty result after the call signals end of stream. If a sibling executor
// has already recorded a pipeline error, that error is surfaced in
// preference to the local one.
func (e *PipelineExecutor) ExecutePull(result *chunk.Chunk) error {
	err := e.executePull(result)
	if err != nil && e.errs != nil {
		if first := e.errs.Get(); first != nil {
			return errors.Trace(first)
		}
	}
	return errors.Trace(err)
}

func (e *PipelineExecutor) executePull(result *chunk.Chunk) error {
	if e.pipeline.Sink != nil {
		return errors.New("pull execution requires a pipeline without a sink")
	}
	sourceChunk := result
	if len(e.pipeline.Operators) > 0 {
		sourceChunk = e.intermediateChunks[0]
	}
	for result.NumRows() == 0 {
		if len(e.inProcessOperators) == 0 {
			sourceChunk.Reset()
			if err := e.fetchFromSource(sourceChunk); err != nil {
				return errors.Trace(err)
			}
			if sourceChunk.NumRows() == 0 {
				break
			}
		}
		if len(e.pipeline.Operators) > 0 {
			if _, err := e.execute(sourceChunk, result, 0); err != nil {
				return errors.Trace(err)
			}
		}
	}
	return nil
}

// PushFinalize finishes a push-mode executor exactly once: it flushes the
// chunk caches (unless a Finished result stopped the pipeline or the client
// was interrupted), folds the local sink state into the global one via
// Combine, flushes the per-thread runtime stats and releases all local
// state. Combine runs even when the main loop stopped on an error or
// interrupt, so sinks must tolerate partially populated local state; an
// error raised while flushing a cache is returned before Combine.
func (e *PipelineExecutor) PushFinalize() error {
	if e.finalized {
		return errors.Trace(ErrAlreadyFinalized)
	}
	e.finalized = true
	if !e.finishedProcessing && !e.ctx.Client.Interrupted() {
		for i, cc := range e.cachedChunks {
			if cc == nil || cc.NumRows() == 0 {
				continue
			}
			metrics.ChunkCacheFlushes.Inc()
			if _, err := e.executePushInternal(cc, i+1); err != nil {
				return errors.Trace(err)
			}
			e.cachedChunks[i] = nil
		}
	}
	err := e.pipeline.Sink.Combine(e.ctx, e.pipeline.SinkState, e.localSinkState)
	e.ctx.Profiler.Flush(e.statsColl)
	e.closeLocalStates()
	e.releaseChunks()
	e.localSinkState = nil
	return errors.Trace(err)
}

// PullFinalize finishes a pull-mode executor exactly once, flushing the
// per-thread runtime stats and releasing local state.
func (e *PipelineExecutor) PullFinalize() error {
	if e.finalized {
		return errors.Trace(ErrAlreadyFinalized)
	}
	e.finalized = true
	e.ctx.Profiler.Flush(e.statsColl)
	e.closeLocalStates()
	e.releaseChunks()
	return nil
}

func (e *PipelineExecutor) fetchFromSource(out *chunk.Chunk) error {
	return e.withOperatorScope(0, e.pipeline.Source.Name(), out, func() error {
		var injected error
		failpoint.Inject("fetchFromSourceError", func() {
			injected = errors.New("fetchFromSource injected error")
		})
		if injected != nil {
			return injected
		}
		return e.pipeline.Source.GetData(e.ctx, out, e.pipeline.SourceState, e.localSourceState)
	})
}

// Finalized reports whether the executor has been finalized. Owners use it
// to decide whether a failed Execute still needs an explicit finalize.
func (e *PipelineExecutor) Finalized() bool {
	return e.finalized
}

func (e *PipelineExecutor) sinkID() int {
	return len(e.pipeline.Operators) + 1
}

func (e *PipelineExecutor) closeLocalStates() {
	closeState := func(state interface{}, what string) {
		if closer, ok := state.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				e.ctx.Client.Logger().Warn("failed to close operator state",
					zap.String("state", what), zap.Error(err))
			}
		}
	}
	closeState(e.localSourceState, "source")
	for _, state := range e.intermediateStates {
		closeState(state, "operator")
	}
	closeState(e.localSinkState, "sink")
}

func (e *PipelineExecutor) releaseChunks() {
	if e.pool == nil {
		return
	}
	for i, chk := range e.intermediateChunks {
		e.pool.PutChunk(e.intermediateTypes[i], chk)
	}
	e.intermediateChunks = nil
	e.pool.PutChunk(e.pipeline.finalTypes(), e.finalChunk)
	e.finalChunk = nil
}
