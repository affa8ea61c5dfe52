// SPDX-License-Identifier: MIT
package handoff

import (
	"sync"

	"musualiser/internal/spectrum"
)

// Queue is an unbounded FIFO of batches. Ownership of a sent batch moves to
// the queue; the producer must not touch it afterwards.
type Queue struct {
	mu      sync.Mutex
	pending []spectrum.Batch
	closed  bool
	dropped uint64
}

var _ Channel = (*Queue)(nil)

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Send appends b. It never blocks.
func (q *Queue) Send(b spectrum.Batch) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.pending = append(q.pending, b)
	return nil
}

// Latest drains every pending batch and returns the newest.
func (q *Queue) Latest() (spectrum.Batch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	if n == 0 {
		return nil, false
	}
	b := q.pending[n-1]
	q.dropped += uint64(n - 1)
	clear(q.pending)
	q.pending = q.pending[:0]
	return b, true
}

// Next pops the oldest pending batch.
func (q *Queue) Next() (spectrum.Batch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, false
	}
	b := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return b, true
}

// Len returns the number of batches waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Superseded returns how many batches Latest has skipped in total.
func (q *Queue) Superseded() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close rejects further sends and drops anything pending.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.pending = nil
}
