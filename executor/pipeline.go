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

// MinCacheVectorSize is the smallest vector size for which chunk caching
// amortizes; below it the cache stays disabled unless forced.
const MinCacheVectorSize = 128

// Pipeline is an immutable description of one linear execution topology:
// a source, an ordered list of unary operators, and an optional sink,
// together with the global states shared by all its executors.
type Pipeline struct {
	Source    SourceOperator
	Operators []PhysicalOperator
	Sink      SinkOperator

	SourceState GlobalSourceState
	SinkState   GlobalSinkState

	vectorSize        int
	forceChunkCache   bool
	disableChunkCache bool
}

// PipelineOption customizes pipeline construction.
type PipelineOption func(*Pipeline)

// WithVectorSize sets the number of rows per chunk for this pipeline.
func WithVectorSize(n int) PipelineOption {
	return func(p *Pipeline) {
		p.vectorSize = n
	}
}

// WithForceChunkCache enables the chunk cache even below
// MinCacheVectorSize.
func WithForceChunkCache() PipelineOption {
	return func(p *Pipeline) {
		p.forceChunkCache = true
	}
}

// WithChunkCacheDisabled turns the chunk cache off regardless of vector
// size.
func WithChunkCacheDisabled() PipelineOption {
	return func(p *Pipeline) {
		p.disableChunkCache = true
	}
}

// NewPipeline builds a pipeline and creates its global source and sink
// states. sink may be nil for pull-mode pipelines.
func NewPipeline(client *ClientContext, source SourceOperator, operators []PhysicalOperator, sink SinkOperator, opts ...PipelineOption) (*Pipeline, error) {
	if source == nil {
		return nil, errors.New("pipeline requires a source")
	}
	p := &Pipeline{
		Source:     source,
		Operators:  operators,
		Sink:       sink,
		vectorSize: chunk.VectorSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.vectorSize <= 0 {
		return nil, errors.Errorf("invalid pipeline vector size %d", p.vectorSize)
	}
	var err error
	p.SourceState, err = source.InitGlobalSourceState(client)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if sink != nil {
		p.SinkState, err = sink.InitGlobalSinkState(client)
		if err != nil {
			return nil, errors.Trace(err)
		}
	}
	return p, nil
}

// VectorSize returns the number of rows per chunk for this pipeline.
func (p *Pipeline) VectorSize() int {
	return p.vectorSize
}

// cacheEnabled reports whether the chunk cache applies to this pipeline at
// all; per-operator eligibility is decided at executor construction.
func (p *Pipeline) cacheEnabled() bool {
	if p.disableChunkCache || p.Sink == nil || p.Sink.SinkOrderMatters() {
		return false
	}
	return p.forceChunkCache || p.vectorSize >= MinCacheVectorSize
}

// operatorInputTypes returns the output types of the producer feeding operator
// position i: the source for i == 0, otherwise operator i-1.
func (p *Pipeline) operatorInputTypes(i int) []*types.FieldType {
	if i == 0 {
		return p.Source.OutputTypes()
	}
	return p.Operators[i-1].OutputTypes()
}

// finalTypes returns the types of the chunks feeding the sink or the
// pull-mode caller.
func (p *Pipeline) finalTypes() []*types.FieldType {
	if len(p.Operators) == 0 {
		return p.Source.OutputTypes()
	}
	return p.Operators[len(p.Operators)-1].OutputTypes()
}
