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
	"github.com/veloradb/velora/metrics"
	"github.com/veloradb/velora/util/chunk"
)

// cacheChunk coalesces sparse operator outputs. When operator opIdx turned
// a reasonably full input into a sparse output, the output rows are moved
// into the operator's cache slot instead of travelling downstream; once the
// cache holds close to a full vector it is handed downstream in one piece.
// Chunks that are already dense pass through untouched.
func (e *PipelineExecutor) cacheChunk(prevChunk, currentChunk *chunk.Chunk, opIdx int) {
	cache := e.cachedChunks[opIdx]
	if cache == nil {
		return
	}
	threshold := e.pipeline.VectorSize() / 2
	if prevChunk.NumRows() < threshold || currentChunk.NumRows() >= threshold {
		return
	}
	cache.Append(currentChunk)
	metrics.ChunkCacheAppends.Inc()
	if cache.NumRows() >= e.pipeline.VectorSize()-threshold {
		currentChunk.SwapContents(cache)
		cache.Reset()
		metrics.ChunkCacheFlushes.Inc()
	} else {
		currentChunk.Reset()
	}
}
