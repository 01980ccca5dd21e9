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
	atomic2 "go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/veloradb/velora/util/execdetails"
	"github.com/veloradb/velora/util/logutil"
	"github.com/veloradb/velora/util/memory"
)

// ClientContext carries per-query state shared by all executors of the
// query: the cooperative interrupt flag, the query memory tracker and the
// query logger.
type ClientContext struct {
	interrupted atomic2.Bool
	memTracker  *memory.Tracker
	logger      *zap.Logger
}

// NewClientContext creates a client context with an unlimited memory
// tracker and the global logger.
func NewClientContext() *ClientContext {
	return &ClientContext{
		memTracker: memory.NewTracker("query", 0),
		logger:     logutil.BgLogger(),
	}
}

// Interrupt requests cooperative cancellation. Executors observe the flag
// at the next operator boundary.
func (c *ClientContext) Interrupt() {
	c.interrupted.Store(true)
}

// Interrupted reports whether cancellation was requested.
func (c *ClientContext) Interrupted() bool {
	return c.interrupted.Load()
}

// MemTracker returns the query-level memory tracker.
func (c *ClientContext) MemTracker() *memory.Tracker {
	return c.memTracker
}

// SetMemTracker replaces the query-level memory tracker.
func (c *ClientContext) SetMemTracker(t *memory.Tracker) {
	c.memTracker = t
}

// Logger returns the query logger.
func (c *ClientContext) Logger() *zap.Logger {
	return c.logger
}

// SetLogger replaces the query logger.
func (c *ClientContext) SetLogger(l *zap.Logger) {
	c.logger = l
}

// ExecContext is the per-executor execution context handed to every
// operator call: the shared client context plus this thread's profiler.
type ExecContext struct {
	Client   *ClientContext
	Profiler *execdetails.ThreadProfiler
}

// NewExecContext creates an execution context for one executor thread.
func NewExecContext(client *ClientContext) *ExecContext {
	return &ExecContext{
		Client:   client,
		Profiler: execdetails.NewThreadProfiler(),
	}
}
