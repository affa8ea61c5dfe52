// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"math/cmplx"
	"sync"

	"musualiser/internal/spectrum"
)

// MockTransport records everything sent to it instead of transmitting.
type MockTransport struct {
	mu     sync.Mutex
	Sent   []any
	Closed bool
}

// Send stores the payload for later inspection.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, data)
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Last returns the most recent payload, or nil.
func (m *MockTransport) Last() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return nil
	}
	return m.Sent[len(m.Sent)-1]
}

// RecordingSender collects spectrum batches in the order they are sent.
type RecordingSender struct {
	mu      sync.Mutex
	batches []spectrum.Batch
	notify  chan struct{}
}

// NewRecordingSender returns a sender that signals on Notify after every send.
func NewRecordingSender() *RecordingSender {
	return &RecordingSender{notify: make(chan struct{}, 1)}
}

// Send records b.
func (r *RecordingSender) Send(b spectrum.Batch) error {
	r.mu.Lock()
	r.batches = append(r.batches, b)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

// Notify fires at least once after each Send.
func (r *RecordingSender) Notify() <-chan struct{} { return r.notify }

// Batches returns a copy of everything recorded so far.
func (r *RecordingSender) Batches() []spectrum.Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]spectrum.Batch, len(r.batches))
	copy(out, r.batches)
	return out
}

// Len returns the number of recorded batches.
func (r *RecordingSender) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

// GenerateSineWave returns size samples of a full-scale sine at frequency Hz.
func GenerateSineWave(size int, sampleRate, frequency float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(math.Sin(2 * math.Pi * frequency * t))
	}
	return buffer
}

// GenerateComplexWave returns a 440 Hz fundamental with two harmonics.
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// Interleave repeats every mono sample across channels, with the first
// channel carrying the signal and the rest carrying the negated signal.
func Interleave(mono []float32, channels int) []float32 {
	out := make([]float32, 0, len(mono)*channels)
	for _, s := range mono {
		out = append(out, s)
		for c := 1; c < channels; c++ {
			out = append(out, -s)
		}
	}
	return out
}

// FindPeakBin returns the index of the largest magnitude in [startBin, endBin].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}

// Magnitudes returns the complex norm of every bin in b.
func Magnitudes(b spectrum.Batch) []float64 {
	out := make([]float64, len(b))
	for i, bin := range b {
		out[i] = cmplx.Abs(bin.Amplitude)
	}
	return out
}
