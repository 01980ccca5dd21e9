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
	"container/list"
	"math/rand"
	"sync"

	"github.com/veloradb/velora/types"
)

// Pool reuses column buffers across executors. Columns are pooled by their
// element width so a returned buffer always fits the requested type.
type Pool struct {
	varLenColPool  *colPool
	fixLenColPool1 *colPool
	fixLenColPool8 *colPool
}

// NewPool creates a column pool.
func NewPool() *Pool {
	numShards := 8
	return &Pool{
		varLenColPool:  newColPool(numShards, types.VarElemLen),
		fixLenColPool1: newColPool(numShards, 1),
		fixLenColPool8: newColPool(numShards, 8),
	}
}

// GetChunk assembles a chunk for the given field types from pooled columns.
func (p *Pool) GetChunk(fields []*types.FieldType, capacity int) *Chunk {
	chk := &Chunk{
		columns:  make([]*Column, 0, len(fields)),
		capacity: capacity,
	}
	for _, ft := range fields {
		switch ft.FixedLen() {
		case 1:
			chk.columns = append(chk.columns, p.fixLenColPool1.get(capacity))
		case 8:
			chk.columns = append(chk.columns, p.fixLenColPool8.get(capacity))
		default:
			chk.columns = append(chk.columns, p.varLenColPool.get(capacity))
		}
	}
	return chk
}

// PutChunk returns the columns of chk to the pool. The chunk must not be
// used afterwards.
func (p *Pool) PutChunk(fields []*types.FieldType, chk *Chunk) {
	for i, ft := range fields {
		col := chk.columns[i]
		col.reset()
		switch ft.FixedLen() {
		case 1:
			p.fixLenColPool1.put(col)
		case 8:
			p.fixLenColPool8.put(col)
		default:
			p.varLenColPool.put(col)
		}
	}
	chk.columns = nil
}

type colPool struct {
	shards  []colPoolShard
	elemLen int
}

func newColPool(numShards, elemLen int) *colPool {
	cp := &colPool{
		shards:  make([]colPoolShard, numShards),
		elemLen: elemLen,
	}
	for i := range cp.shards {
		cp.shards[i].cols = list.New()
	}
	return cp
}

func (cp *colPool) put(col *Column) {
	ordinal := rand.Int() % len(cp.shards)
	cp.shards[ordinal].put(col)
}

func (cp *colPool) get(capacity int) *Column {
	ordinal := rand.Int() % len(cp.shards)
	col := cp.shards[ordinal].get()
	if col != nil {
		return col
	}
	if cp.elemLen == types.VarElemLen {
		return newVarLenColumn(capacity)
	}
	return newFixedLenColumn(cp.elemLen, capacity)
}

type colPoolShard struct {
	sync.Mutex
	cols *list.List
}

func (ps *colPoolShard) put(col *Column) {
	ps.Lock()
	defer ps.Unlock()

	ps.cols.PushFront(col)
}

func (ps *colPoolShard) get() *Column {
	ps.Lock()
	defer ps.Unlock()

	if ps.cols.Len() > 0 {
		head := ps.cols.Front()
		return ps.cols.Remove(head).(*Column)
	}
	return nil
}
