// SPDX-License-Identifier: MIT
package media

import (
	"errors"
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"
)

// Output plays interleaved float32 samples. Write blocks until the samples
// are queued on the device.
type Output interface {
	Write(samples []float32) error
	Close() error
}

// OutputFactory opens an Output for a stream's format.
type OutputFactory func(sampleRate, channels int) (Output, error)

const (
	outputFramesPerBuffer = 1024
	maxNullLag            = 100 * time.Millisecond
)

var paOpenDefaultStream = portaudio.OpenDefaultStream

// PortAudioOutput opens a blocking stream on the default output device.
// PortAudio must be initialised.
func PortAudioOutput(sampleRate, channels int) (Output, error) {
	o := &paOutput{buffer: make([]float32, outputFramesPerBuffer*channels)}
	stream, err := paOpenDefaultStream(0, channels, float64(sampleRate), outputFramesPerBuffer, o.buffer)
	if err != nil {
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start output stream: %w", err)
	}
	o.stream = stream
	return o, nil
}

type paOutput struct {
	stream *portaudio.Stream
	buffer []float32
	fill   int
}

// Write copies samples into the stream buffer and writes every full buffer.
// A partial tail waits for the next call or for Close.
func (o *paOutput) Write(samples []float32) error {
	for len(samples) > 0 {
		n := copy(o.buffer[o.fill:], samples)
		o.fill += n
		samples = samples[n:]
		if o.fill < len(o.buffer) {
			return nil
		}
		if err := o.flush(); err != nil {
			return err
		}
	}
	return nil
}

func (o *paOutput) flush() error {
	clear(o.buffer[o.fill:])
	o.fill = 0
	if err := o.stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
		return err
	}
	return nil
}

func (o *paOutput) Close() error {
	var err error
	if o.fill > 0 {
		err = o.flush()
	}
	if serr := o.stream.Stop(); err == nil {
		err = serr
	}
	if cerr := o.stream.Close(); err == nil {
		err = cerr
	}
	return err
}

// NullOutput discards samples at the rate a device would consume them, so
// file playback keeps real-time pacing without a sound card.
func NullOutput(sampleRate, channels int) (Output, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("null output: invalid format %d Hz x %d", sampleRate, channels)
	}
	return &nullOutput{rate: sampleRate, channels: channels}, nil
}

type nullOutput struct {
	rate, channels int
	start          time.Time
	frames         int64
}

func (o *nullOutput) Write(samples []float32) error {
	if o.start.IsZero() {
		o.start = time.Now()
	}
	o.frames += int64(len(samples) / o.channels)
	due := o.start.Add(time.Duration(o.frames) * time.Second / time.Duration(o.rate))
	switch d := time.Until(due); {
	case d > 0:
		time.Sleep(d)
	case d < -maxNullLag:
		// Resumed after a pause; restart the clock.
		o.start, o.frames = time.Now(), 0
	}
	return nil
}

func (o *nullOutput) Close() error { return nil }
