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

package chunk

import (
	"github.com/pingcap/errors"

	"github.com/veloradb/velora/types"
)

// VectorSize is the default number of rows held by one chunk. Executors may
// run with a different per-pipeline size; this is the value used when the
// caller does not specify one.
const VectorSize = 1024

// Chunk stores multiple rows of data in a column-wise layout. All columns
// have the same number of rows. Chunks are reused across operator calls:
// Reset clears the rows but keeps the allocated buffers.
type Chunk struct {
	columns  []*Column
	capacity int
}

// New creates a Chunk for the given field types with the default capacity.
func New(fields []*types.FieldType) *Chunk {
	return NewWithCapacity(fields, VectorSize)
}

// NewWithCapacity creates a Chunk for the given field types, pre-sizing the
// column buffers for capacity rows.
func NewWithCapacity(fields []*types.FieldType, capacity int) *Chunk {
	chk := &Chunk{
		columns:  make([]*Column, 0, len(fields)),
		capacity: capacity,
	}
	for _, ft := range fields {
		chk.columns = append(chk.columns, NewColumn(ft, capacity))
	}
	return chk
}

// NumCols returns the number of columns in the chunk.
func (c *Chunk) NumCols() int {
	return len(c.columns)
}

// NumRows returns the number of rows in the chunk.
func (c *Chunk) NumRows() int {
	if len(c.columns) == 0 {
		return 0
	}
	return c.columns[0].length
}

// Capacity returns the number of rows the chunk was sized for.
func (c *Chunk) Capacity() int {
	return c.capacity
}

// IsFull reports whether the chunk has reached its capacity.
func (c *Chunk) IsFull() bool {
	return c.NumRows() >= c.capacity
}

// Reset truncates the chunk to zero rows, keeping the allocated buffers.
func (c *Chunk) Reset() {
	for _, col := range c.columns {
		col.reset()
	}
}

// Column returns the column at colIdx.
func (c *Chunk) Column(colIdx int) *Column {
	return c.columns[colIdx]
}

// SwapContents exchanges the row data of two chunks. Both chunks must have
// been created for the same field types.
func (c *Chunk) SwapContents(other *Chunk) {
	c.columns, other.columns = other.columns, c.columns
}

// AppendNull appends a null value to colIdx.
func (c *Chunk) AppendNull(colIdx int) {
	c.columns[colIdx].appendNull()
}

// AppendInt64 appends an int64 value to colIdx.
func (c *Chunk) AppendInt64(colIdx int, i int64) {
	c.columns[colIdx].appendInt64(i)
}

// AppendTimestamp appends a timestamp, stored as microseconds since epoch.
func (c *Chunk) AppendTimestamp(colIdx int, micros int64) {
	c.columns[colIdx].appendInt64(micros)
}

// AppendFloat64 appends a float64 value to colIdx.
func (c *Chunk) AppendFloat64(colIdx int, f float64) {
	c.columns[colIdx].appendFloat64(f)
}

// AppendBool appends a bool value to colIdx.
func (c *Chunk) AppendBool(colIdx int, b bool) {
	c.columns[colIdx].appendBool(b)
}

// AppendString appends a string value to colIdx.
func (c *Chunk) AppendString(colIdx int, str string) {
	c.columns[colIdx].appendString(str)
}

// AppendBytes appends a bytes value to colIdx.
func (c *Chunk) AppendBytes(colIdx int, b []byte) {
	c.columns[colIdx].appendBytes(b)
}

// AppendOpaque appends the encoded payload of a nested value (struct, list
// or map) to colIdx.
func (c *Chunk) AppendOpaque(colIdx int, payload []byte) {
	c.columns[colIdx].appendBytes(payload)
}

// AppendRow appends one row to the chunk.
func (c *Chunk) AppendRow(row Row) {
	for i, col := range c.columns {
		col.appendElem(row.c.columns[i], row.idx)
	}
}

// Append copies all rows of src into c.
func (c *Chunk) Append(src *Chunk) {
	c.AppendRange(src, 0, src.NumRows())
}

// AppendRange copies rows [begin, end) of src into c.
func (c *Chunk) AppendRange(src *Chunk, begin, end int) {
	for i, col := range c.columns {
		col.appendRange(src.columns[i], begin, end)
	}
}

// CopyColumns copies all rows of the selected columns of src into c:
// column i of c receives column colIdxs[i] of src. The selected columns
// must match c's column types.
func (c *Chunk) CopyColumns(src *Chunk, colIdxs []int) {
	numRows := src.NumRows()
	for i, srcIdx := range colIdxs {
		c.columns[i].appendRange(src.columns[srcIdx], 0, numRows)
	}
}

// GetRow returns the row at rowIdx. The Row is a cheap reference into the
// chunk, valid until the chunk is reset.
func (c *Chunk) GetRow(rowIdx int) Row {
	return Row{c: c, idx: rowIdx}
}

// MemoryUsage returns the total size of the chunk buffers in bytes.
func (c *Chunk) MemoryUsage() int64 {
	var sum int64
	for _, col := range c.columns {
		sum += col.MemoryUsage()
	}
	return sum
}

// Verify checks the chunk invariants: every column holds the same number of
// rows and variable-width columns keep monotonic offsets.
func (c *Chunk) Verify() error {
	numRows := c.NumRows()
	for i, col := range c.columns {
		if col.length != numRows {
			return errors.Errorf("chunk column %d holds %d rows, expected %d", i, col.length, numRows)
		}
		if !col.isFixed() {
			if len(col.offsets) != col.length+1 {
				return errors.Errorf("chunk column %d has %d offsets for %d rows", i, len(col.offsets), col.length)
			}
			for j := 1; j < len(col.offsets); j++ {
				if col.offsets[j] < col.offsets[j-1] {
					return errors.Errorf("chunk column %d offsets decrease at %d", i, j)
				}
			}
		}
	}
	return nil
}

// Row is a reference to one row of a Chunk.
type Row struct {
	c   *Chunk
	idx int
}

// Idx returns the position of the row inside its chunk.
func (r Row) Idx() int {
	return r.idx
}

// Len returns the number of columns of the row.
func (r Row) Len() int {
	return r.c.NumCols()
}

// IsNull reports whether the value at colIdx is null.
func (r Row) IsNull(colIdx int) bool {
	return r.c.columns[colIdx].IsNull(r.idx)
}

// GetInt64 returns the int64 value at colIdx.
func (r Row) GetInt64(colIdx int) int64 {
	return r.c.columns[colIdx].getInt64(r.idx)
}

// GetTimestamp returns the timestamp at colIdx as microseconds since epoch.
func (r Row) GetTimestamp(colIdx int) int64 {
	return r.c.columns[colIdx].getInt64(r.idx)
}

// GetFloat64 returns the float64 value at colIdx.
func (r Row) GetFloat64(colIdx int) float64 {
	return r.c.columns[colIdx].getFloat64(r.idx)
}

// GetBool returns the bool value at colIdx.
func (r Row) GetBool(colIdx int) bool {
	return r.c.columns[colIdx].getBool(r.idx)
}

// GetString returns the string value at colIdx.
func (r Row) GetString(colIdx int) string {
	return r.c.columns[colIdx].getString(r.idx)
}

// GetBytes returns the bytes value at colIdx. The slice aliases the chunk
// buffer and is only valid until the chunk is reset.
func (r Row) GetBytes(colIdx int) []byte {
	return r.c.columns[colIdx].getBytes(r.idx)
}
