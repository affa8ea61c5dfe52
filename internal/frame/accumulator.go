// SPDX-License-Identifier: MIT
/*
Package frame turns irregular sample deliveries into fixed-size, overlapping
analysis windows.

Each window keeps the last three quarters of the previous one: once a window
has been handed out, the next call to Next discards only its leading quarter
before checking whether another full window is available.
*/
package frame

import (
	"encoding/binary"
	"math"
)

// WindowLength returns the analysis window length for a stream sampled at
// sampleRate and analysed frequency times per second.
func WindowLength(sampleRate, frequency int) int {
	if frequency <= 0 {
		return 0
	}
	return sampleRate / frequency
}

// Accumulator buffers mono float32 samples into overlapping windows. It is not
// safe for concurrent use; each capture goroutine owns its own.
type Accumulator struct {
	windowLen int
	advance   int
	buf       []float32

	pending  [4]byte
	npending int

	yielded  bool
	consumed int
}

// NewAccumulator returns an Accumulator for windows of windowLen samples.
func NewAccumulator(windowLen int) *Accumulator {
	advance := windowLen / 4
	if advance < 1 {
		advance = 1
	}
	return &Accumulator{
		windowLen: windowLen,
		advance:   advance,
		buf:       make([]float32, 0, windowLen+windowLen/2),
	}
}

// WindowLen returns the configured window length.
func (a *Accumulator) WindowLen() int { return a.windowLen }

// PushBytes queues raw native-endian float32 bytes. Trailing bytes that do
// not complete a sample are held until the next push.
func (a *Accumulator) PushBytes(p []byte) {
	if a.npending > 0 {
		need := 4 - a.npending
		if len(p) < need {
			a.npending += copy(a.pending[a.npending:], p)
			return
		}
		copy(a.pending[a.npending:], p[:need])
		a.buf = append(a.buf, math.Float32frombits(binary.NativeEndian.Uint32(a.pending[:])))
		p = p[need:]
		a.npending = 0
	}
	for len(p) >= 4 {
		a.buf = append(a.buf, math.Float32frombits(binary.NativeEndian.Uint32(p)))
		p = p[4:]
	}
	a.npending = copy(a.pending[:], p)
}

// PushSamples queues already decoded samples.
func (a *Accumulator) PushSamples(samples []float32) {
	a.buf = append(a.buf, samples...)
}

// Next returns the next full window, or false when fewer than WindowLen
// samples are buffered. The returned slice aliases internal storage and is
// only valid until the next call on the Accumulator.
func (a *Accumulator) Next() ([]float32, bool) {
	if a.yielded {
		n := copy(a.buf, a.buf[a.advance:])
		a.buf = a.buf[:n]
		a.consumed += a.advance
		a.yielded = false
	}
	if len(a.buf) < a.windowLen {
		return nil, false
	}
	a.yielded = true
	return a.buf[:a.windowLen], true
}

// Buffered returns the number of complete samples currently held.
func (a *Accumulator) Buffered() int {
	return len(a.buf)
}

// Consumed returns how many samples have been permanently discarded so far.
// A window currently handed out is not counted until the next call to Next.
func (a *Accumulator) Consumed() int {
	return a.consumed
}

// Reset drops all buffered samples and partial bytes.
func (a *Accumulator) Reset() {
	a.buf = a.buf[:0]
	a.npending = 0
	a.yielded = false
	a.consumed = 0
}

// FirstChannel appends the first channel of an interleaved buffer to dst and
// returns the extended slice. Remaining channels are discarded.
func FirstChannel(dst, interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return append(dst, interleaved...)
	}
	for i := 0; i < len(interleaved); i += channels {
		dst = append(dst, interleaved[i])
	}
	return dst
}

// AppendBytes appends samples to dst as native-endian float32 bytes.
func AppendBytes(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		dst = binary.NativeEndian.AppendUint32(dst, math.Float32bits(s))
	}
	return dst
}

// AppendSamples decodes every complete native-endian float32 in p onto dst.
// Trailing bytes that do not form a sample are ignored.
func AppendSamples(dst []float32, p []byte) []float32 {
	for ; len(p) >= 4; p = p[4:] {
		dst = append(dst, math.Float32frombits(binary.NativeEndian.Uint32(p)))
	}
	return dst
}
