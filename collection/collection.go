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

// Package collection provides ColumnDataCollection, a growable columnar row
// store used as the materialized input and output of pipelines. Rows are
// packed densely into fixed-capacity chunk segments so a collection built
// from sparse chunks still scans at full vector width.
package collection

import (
	"sync"

	"github.com/pingcap/errors"

	"github.com/veloradb/velora/types"
	"github.com/veloradb/velora/util/chunk"
	"github.com/veloradb/velora/util/memory"
)

// ColumnDataCollection accumulates rows in chunk segments of a fixed
// capacity. Append packs rows densely: every segment except the last holds
// exactly segmentCapacity rows.
//
// Append and Merge require external synchronization; scanning through
// ScanState is safe for concurrent use once writes have stopped.
type ColumnDataCollection struct {
	fields          []*types.FieldType
	segments        []*chunk.Chunk
	segmentCapacity int
	numRows         int

	memTracker *memory.Tracker
}

// CollectionOption customizes collection construction.
type CollectionOption func(*ColumnDataCollection)

// WithSegmentCapacity sets the number of rows per segment.
func WithSegmentCapacity(n int) CollectionOption {
	return func(c *ColumnDataCollection) {
		c.segmentCapacity = n
	}
}

// WithMemTracker attaches a memory tracker; segment allocations are
// reported to it and a quota overrun fails the offending Append.
func WithMemTracker(t *memory.Tracker) CollectionOption {
	return func(c *ColumnDataCollection) {
		c.memTracker = t
	}
}

// New creates an empty collection for rows of the given field types.
func New(fields []*types.FieldType, opts ...CollectionOption) *ColumnDataCollection {
	c := &ColumnDataCollection{
		fields:          fields,
		segmentCapacity: chunk.VectorSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Types returns the field types of the collection rows.
func (c *ColumnDataCollection) Types() []*types.FieldType {
	return c.fields
}

// NumRows returns the number of rows stored.
func (c *ColumnDataCollection) NumRows() int {
	return c.numRows
}

// NumSegments returns the number of chunk segments.
func (c *ColumnDataCollection) NumSegments() int {
	return len(c.segments)
}

// Segment returns segment i. The returned chunk is owned by the collection
// and must not be mutated.
func (c *ColumnDataCollection) Segment(i int) *chunk.Chunk {
	return c.segments[i]
}

func (c *ColumnDataCollection) growSegment() (*chunk.Chunk, error) {
	seg := chunk.NewWithCapacity(c.fields, c.segmentCapacity)
	if c.memTracker != nil {
		if err := c.memTracker.Consume(seg.MemoryUsage()); err != nil {
			c.memTracker.Release(seg.MemoryUsage())
			return nil, errors.Trace(err)
		}
	}
	c.segments = append(c.segments, seg)
	return seg, nil
}

func (c *ColumnDataCollection) lastSegmentWithRoom() (*chunk.Chunk, error) {
	if n := len(c.segments); n > 0 && !c.segments[n-1].IsFull() {
		return c.segments[n-1], nil
	}
	return c.growSegment()
}

// Append copies all rows of chk into the collection, packing them densely
// across segments.
func (c *ColumnDataCollection) Append(chk *chunk.Chunk) error {
	begin := 0
	for begin < chk.NumRows() {
		seg, err := c.lastSegmentWithRoom()
		if err != nil {
			return errors.Trace(err)
		}
		end := begin + (seg.Capacity() - seg.NumRows())
		if end > chk.NumRows() {
			end = chk.NumRows()
		}
		seg.AppendRange(chk, begin, end)
		c.numRows += end - begin
		begin = end
	}
	return nil
}

// AppendRow copies one row into the collection.
func (c *ColumnDataCollection) AppendRow(row chunk.Row) error {
	seg, err := c.lastSegmentWithRoom()
	if err != nil {
		return errors.Trace(err)
	}
	seg.AppendRow(row)
	c.numRows++
	return nil
}

// Merge moves all segments of other into c and empties other. Row packing
// is preserved per segment, so a merged collection may contain partially
// filled segments in the middle; scans tolerate that.
func (c *ColumnDataCollection) Merge(other *ColumnDataCollection) {
	c.segments = append(c.segments, other.segments...)
	c.numRows += other.numRows
	if c.memTracker != nil && other.memTracker != nil && c.memTracker != other.memTracker {
		moved := int64(0)
		for _, seg := range other.segments {
			moved += seg.MemoryUsage()
		}
		other.memTracker.Release(moved)
		_ = c.memTracker.Consume(moved)
	}
	other.segments = nil
	other.numRows = 0
}

// Reset drops all rows and segments, releasing their tracked memory.
func (c *ColumnDataCollection) Reset() {
	if c.memTracker != nil {
		for _, seg := range c.segments {
			c.memTracker.Release(seg.MemoryUsage())
		}
	}
	c.segments = nil
	c.numRows = 0
}

// MemoryUsage returns the total size of the segment buffers in bytes.
func (c *ColumnDataCollection) MemoryUsage() int64 {
	var sum int64
	for _, seg := range c.segments {
		sum += seg.MemoryUsage()
	}
	return sum
}

// GetRow returns row idx of the collection. Valid only while the collection
// is not reset.
func (c *ColumnDataCollection) GetRow(idx int) chunk.Row {
	for _, seg := range c.segments {
		if idx < seg.NumRows() {
			return seg.GetRow(idx)
		}
		idx -= seg.NumRows()
	}
	panic("row index out of range")
}

// ScanState is a shared cursor over the rows of a collection. Multiple
// scanners may share one state; each row is handed out exactly once.
type ScanState struct {
	mu     sync.Mutex
	segIdx int
	rowIdx int
}

// InitScan creates a scan state positioned before the first row.
func (c *ColumnDataCollection) InitScan() *ScanState {
	return &ScanState{}
}

// claim reserves up to maxRows contiguous rows from a single segment.
// It returns ok == false when the collection is exhausted.
func (c *ColumnDataCollection) claim(state *ScanState, maxRows int) (segIdx, begin, end int, ok bool) {
	state.mu.Lock()
	defer state.mu.Unlock()
	for state.segIdx < len(c.segments) {
		seg := c.segments[state.segIdx]
		remaining := seg.NumRows() - state.rowIdx
		if remaining == 0 {
			state.segIdx++
			state.rowIdx = 0
			continue
		}
		n := remaining
		if n > maxRows {
			n = maxRows
		}
		segIdx, begin, end = state.segIdx, state.rowIdx, state.rowIdx+n
		state.rowIdx += n
		return segIdx, begin, end, true
	}
	return 0, 0, 0, false
}

// Scan copies the next unclaimed rows into out, at most out's capacity and
// never across a segment boundary. The row copy runs outside the cursor
// lock so concurrent scanners only contend on the claim. Leaving out empty
// signals that all rows have been scanned.
func (c *ColumnDataCollection) Scan(state *ScanState, out *chunk.Chunk) {
	out.Reset()
	segIdx, begin, end, ok := c.claim(state, out.Capacity())
	if !ok {
		return
	}
	out.AppendRange(c.segments[segIdx], begin, end)
}

// SharedCollection wraps a collection with a mutex for sinks that merge
// per-thread results concurrently.
type SharedCollection struct {
	mu         sync.Mutex
	collection *ColumnDataCollection
}

// NewShared creates a shared wrapper around collection.
func NewShared(collection *ColumnDataCollection) *SharedCollection {
	return &SharedCollection{collection: collection}
}

// MergeFrom folds other into the shared collection under the lock.
func (s *SharedCollection) MergeFrom(other *ColumnDataCollection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection.Merge(other)
}

// Collection returns the wrapped collection. Callers must ensure all
// concurrent merges have finished.
func (s *SharedCollection) Collection() *ColumnDataCollection {
	return s.collection
}
