// SPDX-License-Identifier: MIT
package media

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// WAVDecoder decodes integer PCM WAV files of 8 to 32 bits.
type WAVDecoder struct{}

func (WAVDecoder) Decode(r io.ReadSeeker) (Stream, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		if err := dec.Err(); err != nil {
			return nil, fmt.Errorf("invalid WAV file: %w", err)
		}
		return nil, fmt.Errorf("invalid WAV file")
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("WAV format %d: %w", dec.WavAudioFormat, ErrUnsupportedEncoding)
	}
	depth := int(dec.BitDepth)
	if depth < 8 || depth > 32 {
		return nil, fmt.Errorf("WAV bit depth %d: %w", depth, ErrUnsupportedEncoding)
	}

	channels := max(1, int(dec.NumChans))
	return &wavStream{
		dec:      dec,
		rate:     int(dec.SampleRate),
		channels: channels,
		depth:    depth,
		scale:    1 / float32(int64(1)<<(depth-1)),
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{NumChannels: channels, SampleRate: int(dec.SampleRate)},
		},
	}, nil
}

type wavStream struct {
	dec      *wav.Decoder
	rate     int
	channels int
	depth    int
	scale    float32
	buf      *goaudio.IntBuffer
}

func (s *wavStream) SampleRate() int { return s.rate }
func (s *wavStream) Channels() int   { return s.channels }
func (s *wavStream) Close() error    { return nil }

func (s *wavStream) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if cap(s.buf.Data) < len(dst) {
		s.buf.Data = make([]int, len(dst))
	}
	s.buf.Data = s.buf.Data[:len(dst)]

	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil && err != io.EOF {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}

	for i, v := range s.buf.Data[:n] {
		if s.depth == 8 {
			// 8-bit WAV data is unsigned.
			v -= 128
		}
		dst[i] = float32(v) * s.scale
	}
	return n, nil
}
