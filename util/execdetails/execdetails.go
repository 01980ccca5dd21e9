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

package execdetails

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// BasicRuntimeStats records the execution cost of one operator: how often
// it was invoked, how many rows it produced, and the wall time spent in it.
type BasicRuntimeStats struct {
	loops   int64
	rows    int64
	consume time.Duration
}

// Record adds one invocation to the stats.
func (s *BasicRuntimeStats) Record(d time.Duration, rows int) {
	s.loops++
	s.rows += int64(rows)
	s.consume += d
}

// Merge folds other into s.
func (s *BasicRuntimeStats) Merge(other *BasicRuntimeStats) {
	s.loops += other.loops
	s.rows += other.rows
	s.consume += other.consume
}

// Loops returns the number of recorded invocations.
func (s *BasicRuntimeStats) Loops() int64 { return s.loops }

// Rows returns the number of recorded output rows.
func (s *BasicRuntimeStats) Rows() int64 { return s.rows }

// Consume returns the recorded wall time.
func (s *BasicRuntimeStats) Consume() time.Duration { return s.consume }

// String implements fmt.Stringer.
func (s *BasicRuntimeStats) String() string {
	return fmt.Sprintf("time:%v, loops:%d, rows:%d", s.consume, s.loops, s.rows)
}

// RuntimeStatsColl collects operator stats across all executors of one
// pipeline, keyed by operator id. Safe for concurrent Flush calls.
type RuntimeStatsColl struct {
	mu    sync.Mutex
	names map[int]string
	stats map[int]*BasicRuntimeStats
}

// NewRuntimeStatsColl creates an empty collection.
func NewRuntimeStatsColl() *RuntimeStatsColl {
	return &RuntimeStatsColl{
		names: make(map[int]string),
		stats: make(map[int]*BasicRuntimeStats),
	}
}

// GetBasicRuntimeStats returns the merged stats of one operator, or nil if
// nothing was recorded for it.
func (c *RuntimeStatsColl) GetBasicRuntimeStats(id int) *BasicRuntimeStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats[id]
}

func (c *RuntimeStatsColl) merge(id int, name string, s *BasicRuntimeStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	got, ok := c.stats[id]
	if !ok {
		got = &BasicRuntimeStats{}
		c.stats[id] = got
		c.names[id] = name
	}
	got.Merge(s)
}

// String renders a per-operator summary ordered by operator id.
func (c *RuntimeStatsColl) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int, 0, len(c.stats))
	for id := range c.stats {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	var sb strings.Builder
	for i, id := range ids {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s#%d: %s", c.names[id], id, c.stats[id].String())
	}
	return sb.String()
}

// ThreadProfiler accumulates operator stats for a single executor thread
// without synchronization. Flush merges the accumulated stats into a shared
// RuntimeStatsColl and resets the profiler.
type ThreadProfiler struct {
	names map[int]string
	stats map[int]*BasicRuntimeStats
}

// NewThreadProfiler creates an empty per-thread profiler.
func NewThreadProfiler() *ThreadProfiler {
	return &ThreadProfiler{
		names: make(map[int]string),
		stats: make(map[int]*BasicRuntimeStats),
	}
}

// Record adds one invocation of the operator identified by id.
func (p *ThreadProfiler) Record(id int, name string, d time.Duration, rows int) {
	s, ok := p.stats[id]
	if !ok {
		s = &BasicRuntimeStats{}
		p.stats[id] = s
		p.names[id] = name
	}
	s.Record(d, rows)
}

// Flush merges the accumulated stats into coll and resets the profiler.
// A nil coll discards the stats.
func (p *ThreadProfiler) Flush(coll *RuntimeStatsColl) {
	if coll != nil {
		for id, s := range p.stats {
			coll.merge(id, p.names[id], s)
		}
	}
	p.stats = make(map[int]*BasicRuntimeStats)
	p.names = make(map[int]string)
}
