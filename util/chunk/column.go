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
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/veloradb/velora/types"
)

// Column stores one column of data in a Chunk. Fixed-width types keep
// elements back to back in data; variable-width types additionally keep
// an offsets array with length+1 entries.
type Column struct {
	length     int
	nullBitmap []byte
	offsets    []int64
	data       []byte
	elemBuf    []byte
}

func newFixedLenColumn(elemLen, capacity int) *Column {
	return &Column{
		elemBuf:    make([]byte, elemLen),
		data:       make([]byte, 0, capacity*elemLen),
		nullBitmap: make([]byte, 0, (capacity+7)>>3),
	}
}

func newVarLenColumn(capacity int) *Column {
	estimatedElemLen := 8
	return &Column{
		offsets:    make([]int64, 1, capacity+1),
		data:       make([]byte, 0, capacity*estimatedElemLen),
		nullBitmap: make([]byte, 0, (capacity+7)>>3),
	}
}

// NewColumn creates a column suited for the given field type and capacity.
func NewColumn(ft *types.FieldType, capacity int) *Column {
	if elemLen := ft.FixedLen(); elemLen != types.VarElemLen {
		return newFixedLenColumn(elemLen, capacity)
	}
	return newVarLenColumn(capacity)
}

func (c *Column) isFixed() bool {
	return c.elemBuf != nil
}

// Length returns the number of elements stored in the column.
func (c *Column) Length() int {
	return c.length
}

func (c *Column) reset() {
	c.length = 0
	c.nullBitmap = c.nullBitmap[:0]
	if len(c.offsets) > 0 {
		c.offsets = c.offsets[:1]
	}
	c.data = c.data[:0]
}

// IsNull reports whether the element at rowIdx is null.
func (c *Column) IsNull(rowIdx int) bool {
	nullByte := c.nullBitmap[rowIdx/8]
	return nullByte&(1<<(uint(rowIdx)&7)) == 0
}

func (c *Column) appendNullBitmap(notNull bool) {
	idx := c.length >> 3
	if idx >= len(c.nullBitmap) {
		c.nullBitmap = append(c.nullBitmap, 0)
	}
	if notNull {
		pos := uint(c.length) & 7
		c.nullBitmap[idx] |= byte(1 << pos)
	}
}

func (c *Column) appendNull() {
	c.appendNullBitmap(false)
	if c.isFixed() {
		c.data = append(c.data, c.elemBuf...)
	} else {
		c.offsets = append(c.offsets, c.offsets[c.length])
	}
	c.length++
}

func (c *Column) finishAppendFixed() {
	c.data = append(c.data, c.elemBuf...)
	c.appendNullBitmap(true)
	c.length++
}

func (c *Column) appendInt64(i int64) {
	binary.LittleEndian.PutUint64(c.elemBuf, uint64(i))
	c.finishAppendFixed()
}

func (c *Column) appendFloat64(f float64) {
	binary.LittleEndian.PutUint64(c.elemBuf, math.Float64bits(f))
	c.finishAppendFixed()
}

func (c *Column) appendBool(b bool) {
	if b {
		c.elemBuf[0] = 1
	} else {
		c.elemBuf[0] = 0
	}
	c.finishAppendFixed()
}

func (c *Column) finishAppendVar() {
	c.appendNullBitmap(true)
	c.offsets = append(c.offsets, int64(len(c.data)))
	c.length++
}

func (c *Column) appendString(str string) {
	c.data = append(c.data, str...)
	c.finishAppendVar()
}

func (c *Column) appendBytes(b []byte) {
	c.data = append(c.data, b...)
	c.finishAppendVar()
}

func (c *Column) getInt64(rowIdx int) int64 {
	return int64(binary.LittleEndian.Uint64(c.data[rowIdx*8:]))
}

func (c *Column) getFloat64(rowIdx int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(c.data[rowIdx*8:]))
}

func (c *Column) getBool(rowIdx int) bool {
	return c.data[rowIdx] == 1
}

func (c *Column) getBytes(rowIdx int) []byte {
	start, end := c.offsets[rowIdx], c.offsets[rowIdx+1]
	return c.data[start:end]
}

func (c *Column) getString(rowIdx int) string {
	b := c.getBytes(rowIdx)
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// appendElem copies the element at rowIdx of src into c. Both columns must
// share the same representation.
func (c *Column) appendElem(src *Column, rowIdx int) {
	c.appendNullBitmap(!src.IsNull(rowIdx))
	if src.isFixed() {
		elemLen := len(src.elemBuf)
		offset := rowIdx * elemLen
		c.data = append(c.data, src.data[offset:offset+elemLen]...)
	} else {
		start, end := src.offsets[rowIdx], src.offsets[rowIdx+1]
		c.data = append(c.data, src.data[start:end]...)
		c.offsets = append(c.offsets, int64(len(c.data)))
	}
	c.length++
}

// appendRange copies rows [begin, end) of src into c.
func (c *Column) appendRange(src *Column, begin, end int) {
	for i := begin; i < end; i++ {
		c.appendElem(src, i)
	}
}

// MemoryUsage returns the size of the column buffers in bytes.
func (c *Column) MemoryUsage() int64 {
	return int64(cap(c.data) + cap(c.nullBitmap) + cap(c.elemBuf) + cap(c.offsets)*8)
}
