// SPDX-License-Identifier: MIT
/*
Package audio captures live audio and keeps a single capture goroutine alive
for the visualiser.

A Backend opens Clients bound to a Target. The Controller owns at most one
worker goroutine at a time; the worker opens the client, parks on the
playback Gate while paused, streams windows through the analyzer into a
handoff, and exits on its own when the default device changes, when the
platform stops delivering buffers, or when the Controller kills it to retarget.

Thread Safety:
  - The worker locks its OS thread for the lifetime of a session.
  - Every device call happens on the worker goroutine; the Controller only
    flips the gate and closes channels.
*/
package audio

import (
	"fmt"
	"time"
)

// TargetKind distinguishes system-wide capture from a single process.
type TargetKind int

const (
	// KindSystem captures a loopback or monitor device.
	KindSystem TargetKind = iota
	// KindProcess captures one application's audio session.
	KindProcess
)

// Target names what a capture session binds to.
type Target struct {
	Kind      TargetKind
	Device    string // Device name for KindSystem; empty means the system default.
	ProcessID uint32 // Process id for KindProcess.
	Name      string // Display name.
}

// SystemTarget captures device, or the default device when device is empty.
func SystemTarget(device string) Target {
	return Target{Kind: KindSystem, Device: device, Name: device}
}

// ProcessTarget captures a single process's audio session.
func ProcessTarget(pid uint32, name string) Target {
	return Target{Kind: KindProcess, ProcessID: pid, Name: name}
}

// FollowsDefault reports whether the session should be replaced when the
// system default device changes.
func (t Target) FollowsDefault() bool {
	return t.Kind == KindProcess || t.Device == ""
}

func (t Target) String() string {
	switch {
	case t.Kind == KindProcess && t.Name != "":
		return fmt.Sprintf("process %d (%s)", t.ProcessID, t.Name)
	case t.Kind == KindProcess:
		return fmt.Sprintf("process %d", t.ProcessID)
	case t.Device == "":
		return "default device"
	default:
		return fmt.Sprintf("device %q", t.Device)
	}
}

// Format is the stream format requested from the platform.
type Format struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
	LowLatency      bool
}

// Session is one capturable source offered for selection.
type Session struct {
	Name      string
	ProcessID uint32
	Device    string
	Default   bool
}

// Target converts the session into a capture target.
func (s Session) Target() Target {
	if s.ProcessID != 0 {
		return ProcessTarget(s.ProcessID, s.Name)
	}
	if s.Default {
		return SystemTarget("")
	}
	return SystemTarget(s.Device)
}

// Backend is the platform audio layer.
type Backend interface {
	// DefaultDeviceID returns an opaque identity for the current default
	// capture device. Workers poll it to replace default-following sessions,
	// so a backend that cannot see the system default move returns the same
	// identity until it is reinitialized.
	DefaultDeviceID() (string, error)
	// Open binds a client to target with the requested format.
	Open(target Target, format Format) (Client, error)
	// Sessions lists capturable sources.
	Sessions() ([]Session, error)
}

// Client is an open capture stream. It is used from one goroutine only.
type Client interface {
	// DeviceID returns the identity of the bound device.
	DeviceID() string
	// SampleRate returns the actual stream rate in Hz.
	SampleRate() int
	Start() error
	Stop() error
	// Wait blocks until a buffer is ready or timeout elapses, in which case
	// it returns ErrBufferTimeout.
	Wait(timeout time.Duration) error
	// ReadAvailable appends every ready frame to dst as native-endian
	// float32 bytes, first channel only.
	ReadAvailable(dst []byte) ([]byte, error)
	Close() error
}

// Tap receives a copy of the raw capture stream. Capture is called on the
// worker goroutine with native-endian float32 bytes and must not retain p.
type Tap interface {
	Capture(sampleRate int, p []byte) error
}
