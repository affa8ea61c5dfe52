// SPDX-License-Identifier: MIT
/*
Package handoff moves spectrum batches from a capture goroutine to the render
goroutine.

Two variants are provided:

  - Queue is an unbounded FIFO. The producer never blocks and nothing is
    dropped on send; the consumer drains everything pending and keeps the
    newest batch.
  - Slot keeps only the most recent batch. The producer overwrites it under a
    short lock and the consumer copies it out.

Producers treat ErrClosed as benign: the consumer going away is the normal
way a session ends.
*/
package handoff

import (
	"errors"
	"fmt"
	"strings"

	"musualiser/internal/spectrum"
)

// ErrClosed is returned by Send once the receiving side has been closed.
var ErrClosed = errors.New("handoff closed")

// Sender is the producer side of a handoff.
type Sender interface {
	Send(spectrum.Batch) error
}

// Receiver is the consumer side of a handoff. Latest never blocks; it returns
// false when no batch has arrived since the previous call.
type Receiver interface {
	Latest() (spectrum.Batch, bool)
}

// Channel is both ends of a handoff plus Close.
type Channel interface {
	Sender
	Receiver
	Close()
}

// Mode names a handoff variant.
type Mode string

const (
	ModeQueue Mode = "queue"
	ModeSlot  Mode = "slot"
)

// ParseMode converts a config value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeQueue, ModeSlot:
		return m, nil
	case "":
		return ModeQueue, nil
	default:
		return "", fmt.Errorf("unknown handoff mode %q", s)
	}
}

// New returns a handoff of the requested mode.
func New(mode Mode) (Channel, error) {
	switch mode {
	case ModeQueue, "":
		return NewQueue(), nil
	case ModeSlot:
		return NewSlot(), nil
	default:
		return nil, fmt.Errorf("unknown handoff mode %q", mode)
	}
}

// Discard is a Sender that drops everything.
type Discard struct{}

func (Discard) Send(spectrum.Batch) error { return nil }
