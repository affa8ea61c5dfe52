// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"musualiser/internal/frame"
)

// Library hooks, swapped in tests.
var (
	paInitialize         = portaudio.Initialize
	paTerminate          = portaudio.Terminate
	paDevicesFunc        = portaudio.Devices
	paDefaultInputDevice = portaudio.DefaultInputDevice
	paOpenStream         = func(p portaudio.StreamParameters, args ...any) (paStream, error) {
		return portaudio.OpenStream(p, args...)
	}
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := paInitialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize().
func Terminate() error {
	if err := paTerminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// PortAudioBackend captures from PortAudio input devices. Loopback capture is
// done by binding a monitor or loopback input device. Per-process sessions
// are not available through PortAudio.
//
// PortAudio enumerates devices once in Initialize. A default-following
// session therefore stays on the device that was default at startup, and a
// new default is only picked up after Terminate and Initialize.
type PortAudioBackend struct{}

var _ Backend = PortAudioBackend{}

// DefaultDeviceID returns the name of the default input device. PortAudio
// snapshots devices at Initialize, so this only changes across restarts of
// the library.
func (PortAudioBackend) DefaultDeviceID() (string, error) {
	dev, err := paDefaultInputDevice()
	if err != nil {
		return "", fmt.Errorf("default input device: %w", err)
	}
	return dev.Name, nil
}

// Sessions lists every input-capable device as a system target.
func (PortAudioBackend) Sessions() ([]Session, error) {
	devices, err := HostDevices()
	if err != nil {
		return nil, err
	}
	var defaultName string
	if dev, err := paDefaultInputDevice(); err == nil {
		defaultName = dev.Name
	}

	sessions := make([]Session, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels == 0 {
			continue
		}
		sessions = append(sessions, Session{
			Name:    d.Name,
			Device:  d.Name,
			Default: d.Name == defaultName,
		})
	}
	return sessions, nil
}

// Open binds an input stream to target. The stream runs in callback mode
// with float32 samples; each callback hands channel 0 to Wait.
func (PortAudioBackend) Open(target Target, format Format) (Client, error) {
	if target.Kind != KindSystem {
		return nil, fmt.Errorf("%v: %w", target, ErrUnsupportedTarget)
	}
	dev, err := InputDevice(target.Device)
	if err != nil {
		return nil, err
	}

	channels := max(1, min(format.Channels, dev.MaxInputChannels))
	frames := format.FramesPerBuffer
	if frames <= 0 {
		frames = 1024
	}
	latency := dev.DefaultHighInputLatency
	if format.LowLatency {
		latency = dev.DefaultLowInputLatency
	}

	c := &paClient{
		device:   dev.Name,
		rate:     format.SampleRate,
		channels: channels,
		mono:     make([]float32, 0, frames),
		ready:    make(chan []byte, queueDepth),
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: channels,
			Latency:  latency,
		},
		SampleRate:      float64(format.SampleRate),
		FramesPerBuffer: frames,
	}
	stream, err := paOpenStream(params, c.process)
	if err != nil {
		return nil, fmt.Errorf("open input stream on %q: %w", dev.Name, err)
	}
	c.stream = stream
	if info := stream.Info(); info != nil && info.SampleRate > 0 {
		c.rate = int(info.SampleRate)
	}
	return c, nil
}

// queueDepth is how many callback buffers wait for the worker before new
// ones are dropped.
const queueDepth = 32

// paStream is the part of *portaudio.Stream a client drives.
type paStream interface {
	Start() error
	Stop() error
	Close() error
	Info() *portaudio.StreamInfo
}

// paClient is a callback-mode PortAudio input stream. The callback converts
// each buffer to mono bytes and queues it; the worker blocks in Wait.
type paClient struct {
	stream   paStream
	device   string
	rate     int
	channels int
	running  bool

	// mono is owned by the callback.
	mono    []float32
	ready   chan []byte
	pending [][]byte
	dropped atomic.Uint64
}

func (c *paClient) DeviceID() string { return c.device }
func (c *paClient) SampleRate() int  { return c.rate }

// process runs on the PortAudio thread.
func (c *paClient) process(in []float32) {
	c.mono = frame.FirstChannel(c.mono[:0], in, c.channels)
	chunk := frame.AppendBytes(make([]byte, 0, 4*len(c.mono)), c.mono)
	select {
	case c.ready <- chunk:
	default:
		if n := c.dropped.Add(1); n == 1 || n%100 == 0 {
			logger.Warnf("%s: worker behind, dropped %d buffers", c.device, n)
		}
	}
}

// Start discards buffers left over from before the last Stop.
func (c *paClient) Start() error {
	if c.running {
		return nil
	}
	c.discard()
	if err := c.stream.Start(); err != nil {
		return err
	}
	c.running = true
	return nil
}

func (c *paClient) Stop() error {
	if !c.running {
		return nil
	}
	c.running = false
	return c.stream.Stop()
}

// Wait blocks until the callback has delivered a buffer.
func (c *paClient) Wait(timeout time.Duration) error {
	if len(c.pending) > 0 {
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case chunk := <-c.ready:
		c.pending = append(c.pending, chunk)
		return nil
	case <-timer.C:
		return ErrBufferTimeout
	}
}

// ReadAvailable appends every queued buffer to dst without blocking.
func (c *paClient) ReadAvailable(dst []byte) ([]byte, error) {
	for _, chunk := range c.pending {
		dst = append(dst, chunk...)
	}
	c.pending = c.pending[:0]
	return c.drain(dst), nil
}

func (c *paClient) drain(dst []byte) []byte {
	for {
		select {
		case chunk := <-c.ready:
			dst = append(dst, chunk...)
		default:
			return dst
		}
	}
}

func (c *paClient) discard() {
	c.pending = c.pending[:0]
	for {
		select {
		case <-c.ready:
		default:
			return
		}
	}
}

func (c *paClient) Close() error {
	if err := c.Stop(); err != nil {
		logger.Debugf("stop before close: %v", err)
	}
	return c.stream.Close()
}
