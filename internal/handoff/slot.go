// SPDX-License-Identifier: MIT
package handoff

import (
	"sync"

	"musualiser/internal/spectrum"
)

// Slot holds the most recent batch only. Send overwrites whatever is stored;
// Latest copies it out if it is newer than the last read.
type Slot struct {
	mu     sync.Mutex
	batch  spectrum.Batch
	seq    uint64
	read   uint64
	closed bool
}

var _ Channel = (*Slot)(nil)

// NewSlot returns an empty Slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Send stores b, replacing any batch not yet read.
func (s *Slot) Send(b spectrum.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.batch = b
	s.seq++
	return nil
}

// Latest returns a copy of the stored batch if it has not been read yet.
func (s *Slot) Latest() (spectrum.Batch, bool) {
	s.mu.Lock()
	if s.seq == s.read {
		s.mu.Unlock()
		return nil, false
	}
	s.read = s.seq
	b := s.batch.Clone()
	s.mu.Unlock()
	return b, true
}

// Seq returns the number of batches sent so far.
func (s *Slot) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Close rejects further sends.
func (s *Slot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.batch = nil
}
