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
	"sync"

	"github.com/pingcap/errors"
)

// Error instances.
var (
	// ErrInterrupted is returned when the client interrupt flag is observed
	// at an operator boundary.
	ErrInterrupted = errors.New("query execution was interrupted")
	// ErrAlreadyFinalized is returned on a second finalize of the same
	// pipeline executor.
	ErrAlreadyFinalized = errors.New("pipeline executor has already been finalized")
	// ErrOperatorContract is returned when an operator violates the
	// pipeline operator contract.
	ErrOperatorContract = errors.New("operator violated the pipeline operator contract")
)

// ErrorHolder keeps the first error raised by any executor of a pipeline.
// Later errors are dropped so the first root cause wins.
type ErrorHolder struct {
	mu  sync.Mutex
	err error
}

// Set records err if no error has been recorded yet. It reports whether err
// became the pipeline error.
func (h *ErrorHolder) Set(err error) bool {
	if err == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return false
	}
	h.err = err
	return true
}

// Get returns the recorded error, or nil.
func (h *ErrorHolder) Get() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// HasError reports whether an error has been recorded.
func (h *ErrorHolder) HasError() bool {
	return h.Get() != nil
}
