// SPDX-License-Identifier: MIT
package media

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"musualiser/internal/audio"
	"musualiser/internal/frame"
)

const recordBitDepth = 32

// ErrRateChanged is returned when a capture session delivers samples at a
// different rate than the recording was started with.
var ErrRateChanged = errors.New("capture rate changed during recording")

// Recorder writes the live capture stream to a mono 32-bit PCM WAV file.
// The file is created on the first captured chunk, when the stream rate is
// known.
type Recorder struct {
	mu   sync.Mutex
	path string

	file    *os.File
	enc     *wav.Encoder
	buf     *goaudio.IntBuffer
	scratch []float32
	rate    int
	frames  int
	closed  bool
}

var _ audio.Tap = (*Recorder)(nil)

func NewRecorder(path string) *Recorder {
	return &Recorder{path: path}
}

func (r *Recorder) Path() string { return r.path }

// Capture appends p, native-endian float32 bytes, to the recording.
func (r *Recorder) Capture(sampleRate int, p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	if r.enc == nil {
		if err := r.createLocked(sampleRate); err != nil {
			return err
		}
	}
	if sampleRate != r.rate {
		return fmt.Errorf("%d Hz into a %d Hz file: %w", sampleRate, r.rate, ErrRateChanged)
	}

	r.scratch = frame.AppendSamples(r.scratch[:0], p)
	if cap(r.buf.Data) < len(r.scratch) {
		r.buf.Data = make([]int, len(r.scratch))
	}
	r.buf.Data = r.buf.Data[:len(r.scratch)]
	for i, s := range r.scratch {
		r.buf.Data[i] = toPCM32(s)
	}
	if err := r.enc.Write(r.buf); err != nil {
		return fmt.Errorf("write %s: %w", r.path, err)
	}
	r.frames += len(r.scratch)
	return nil
}

func (r *Recorder) createLocked(sampleRate int) error {
	file, err := os.Create(r.path)
	if err != nil {
		return err
	}
	r.file = file
	r.rate = sampleRate
	r.enc = wav.NewEncoder(file, sampleRate, recordBitDepth, 1, wavFormatPCM)
	r.buf = &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: recordBitDepth,
	}
	logger.Infof("recording capture to %s at %d Hz", r.path, sampleRate)
	return nil
}

// Frames returns how many samples have been written.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close finalises the WAV header and closes the file. Closing a recorder
// that never captured anything creates no file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.enc == nil {
		return nil
	}

	err := r.enc.Close()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	r.enc, r.file = nil, nil
	return err
}

func toPCM32(s float32) int {
	v := float64(s) * math.MaxInt32
	return int(max(math.MinInt32, min(math.MaxInt32, v)))
}
