// SPDX-License-Identifier: MIT
package media

import (
	"encoding/binary"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

// go-mp3 always produces 16-bit little-endian stereo.
const mp3Channels = 2

// MP3Decoder decodes MPEG-1/2 layer III files.
type MP3Decoder struct{}

func (MP3Decoder) Decode(r io.ReadSeeker) (Stream, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	return &mp3Stream{dec: dec, rate: dec.SampleRate()}, nil
}

type mp3Stream struct {
	dec  *gomp3.Decoder
	rate int
	buf  []byte
}

func (s *mp3Stream) SampleRate() int { return s.rate }
func (s *mp3Stream) Channels() int   { return mp3Channels }
func (s *mp3Stream) Close() error    { return nil }

func (s *mp3Stream) ReadSamples(dst []float32) (int, error) {
	need := len(dst) * 2
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	s.buf = s.buf[:need]

	n, err := io.ReadFull(s.dec, s.buf)
	samples := n / 2
	for i := range samples {
		dst[i] = float32(int16(binary.LittleEndian.Uint16(s.buf[2*i:]))) / 32768
	}

	switch {
	case samples > 0:
		return samples, nil
	case err == nil, err == io.ErrUnexpectedEOF:
		return 0, io.EOF
	default:
		return 0, err
	}
}
