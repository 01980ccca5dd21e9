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

var _ Iterator = (*Iterator4Chunk)(nil)

// Iterator iterates the rows inside a container.
type Iterator interface {
	// Begin resets the cursor and returns the first Row.
	Begin() Row
	// Next returns the next Row.
	Next() Row
	// End returns the invalid end Row.
	End() Row
	// Len returns the length of the container.
	Len() int
}

// Iterator4Chunk is used to iterate the rows of one Chunk.
type Iterator4Chunk struct {
	chk    *Chunk
	cursor int
}

// NewIterator4Chunk creates an iterator over chk.
func NewIterator4Chunk(chk *Chunk) *Iterator4Chunk {
	return &Iterator4Chunk{chk: chk}
}

// Begin implements the Iterator interface.
func (it *Iterator4Chunk) Begin() Row {
	if it.chk.NumRows() == 0 {
		return it.End()
	}
	it.cursor = 1
	return it.chk.GetRow(0)
}

// Next implements the Iterator interface.
func (it *Iterator4Chunk) Next() Row {
	if it.cursor >= it.chk.NumRows() {
		it.cursor = it.chk.NumRows() + 1
		return it.End()
	}
	row := it.chk.GetRow(it.cursor)
	it.cursor++
	return row
}

// End implements the Iterator interface.
func (it *Iterator4Chunk) End() Row {
	return Row{c: it.chk, idx: -1}
}

// Len implements the Iterator interface.
func (it *Iterator4Chunk) Len() int {
	return it.chk.NumRows()
}
