// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedTarget is returned when a backend cannot bind the target kind.
	ErrUnsupportedTarget = errors.New("capture target not supported by backend")

	// ErrBufferTimeout is returned by Client.Wait when no buffer arrives in time.
	ErrBufferTimeout = errors.New("timed out waiting for audio buffer")

	// ErrDeviceNotFound is returned when a named device does not exist or
	// cannot capture.
	ErrDeviceNotFound = errors.New("audio device not found")

	// ErrControllerClosed is returned by control calls after Close.
	ErrControllerClosed = errors.New("capture controller closed")
)

// Session operations reported in SessionError.Op.
const (
	OpOpen  = "open"
	OpPlan  = "plan"
	OpStart = "start"
	OpWait  = "wait"
	OpRead  = "read"
)

// SessionError describes why a capture session ended.
type SessionError struct {
	Op     string
	Target Target
	Err    error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("capture %s %v: %v", e.Op, e.Target, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// Fatal reports whether retrying the same target is pointless until something
// external changes. Opening and planning failures are fatal; device stalls
// are not.
func (e *SessionError) Fatal() bool {
	return e.Op == OpOpen || e.Op == OpPlan
}

// IsFatal reports whether err carries a fatal SessionError.
func IsFatal(err error) bool {
	var se *SessionError
	return errors.As(err, &se) && se.Fatal()
}
