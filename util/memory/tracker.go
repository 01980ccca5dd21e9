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

package memory

import (
	"fmt"
	"sync"

	"github.com/pingcap/errors"
	atomic2 "go.uber.org/atomic"
)

// ErrMemoryExceeded is returned when a tracker with a limit observes a
// consumption beyond it.
var ErrMemoryExceeded = errors.New("memory quota exceeded")

// Tracker tracks the memory usage of an execution component. Trackers form
// a tree: consumption reported to a tracker is also reported to all of its
// ancestors, and a limit on any ancestor applies to the whole subtree.
//
// Consume, Release and BytesConsumed are safe for concurrent use; tree
// shaping (AttachTo) is not and must happen before execution starts.
type Tracker struct {
	label         string
	bytesLimit    int64
	bytesConsumed atomic2.Int64
	maxConsumed   atomic2.Int64

	mu struct {
		sync.Mutex
		children []*Tracker
	}
	parent *Tracker
}

// NewTracker creates a tracker. bytesLimit <= 0 means no limit.
func NewTracker(label string, bytesLimit int64) *Tracker {
	return &Tracker{label: label, bytesLimit: bytesLimit}
}

// Label returns the tracker label.
func (t *Tracker) Label() string {
	return t.label
}

// AttachTo attaches t as a child of parent.
func (t *Tracker) AttachTo(parent *Tracker) {
	parent.mu.Lock()
	parent.mu.children = append(parent.mu.children, t)
	parent.mu.Unlock()
	t.parent = parent
	if consumed := t.bytesConsumed.Load(); consumed != 0 {
		// carry what the child already holds up the new chain
		for p := parent; p != nil; p = p.parent {
			p.bytesConsumed.Add(consumed)
		}
	}
}

// Consume reports bytes of additional usage (negative to release) to t and
// all ancestors. It returns ErrMemoryExceeded if any tracker on the chain
// goes over its limit; the consumption is still recorded so the caller can
// unwind with Release.
func (t *Tracker) Consume(bytes int64) error {
	var exceeded *Tracker
	for tracker := t; tracker != nil; tracker = tracker.parent {
		consumed := tracker.bytesConsumed.Add(bytes)
		if tracker.bytesLimit > 0 && consumed > tracker.bytesLimit {
			exceeded = tracker
		}
		for {
			maxNow := tracker.maxConsumed.Load()
			if consumed <= maxNow || tracker.maxConsumed.CompareAndSwap(maxNow, consumed) {
				break
			}
		}
	}
	if exceeded != nil {
		return errors.Annotatef(ErrMemoryExceeded, "tracker %q limit %d", exceeded.label, exceeded.bytesLimit)
	}
	return nil
}

// Release returns bytes of usage to the tracker chain.
func (t *Tracker) Release(bytes int64) {
	_ = t.Consume(-bytes)
}

// BytesConsumed returns the current consumption of the subtree rooted at t.
func (t *Tracker) BytesConsumed() int64 {
	return t.bytesConsumed.Load()
}

// MaxConsumed returns the high-water mark of the subtree rooted at t.
func (t *Tracker) MaxConsumed() int64 {
	return t.maxConsumed.Load()
}

// String implements fmt.Stringer.
func (t *Tracker) String() string {
	return fmt.Sprintf("%s: consumed %d, max %d, limit %d",
		t.label, t.BytesConsumed(), t.MaxConsumed(), t.bytesLimit)
}
