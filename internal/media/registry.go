// SPDX-License-Identifier: MIT
/*
Package media decodes audio files and plays them back while feeding the same
spectral analysis as live capture.

Decoders are registered by file extension. Every decoder produces a Stream of
interleaved float32 samples in [-1, 1] that reports the file's true sample
rate and channel count.
*/
package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Stream is a decoded audio file.
type Stream interface {
	SampleRate() int
	Channels() int
	// ReadSamples fills dst with interleaved samples and returns how many
	// values were written. It returns 0, io.EOF once the stream is finished.
	ReadSamples(dst []float32) (int, error)
	Close() error
}

// Decoder builds a Stream from an open file.
type Decoder interface {
	Decode(r io.ReadSeeker) (Stream, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(r io.ReadSeeker) (Stream, error)

func (f DecoderFunc) Decode(r io.ReadSeeker) (Stream, error) { return f(r) }

// Registry maps lower-case extensions, without the dot, to decoders.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// DefaultRegistry returns a registry with the built-in WAV, MP3 and Ogg
// Vorbis decoders.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("wav", WAVDecoder{})
	r.Register("wave", WAVDecoder{})
	r.Register("mp3", MP3Decoder{})
	r.Register("ogg", VorbisDecoder{})
	r.Register("oga", VorbisDecoder{})
	return r
}

func (r *Registry) Register(ext string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[normalizeExt(ext)] = d
}

func (r *Registry) Lookup(ext string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[normalizeExt(ext)]
	return d, ok
}

// Formats returns the registered extensions in sorted order.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.decoders))
	for ext := range r.decoders {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Supports reports whether path has a registered extension.
func (r *Registry) Supports(path string) bool {
	_, ok := r.Lookup(filepath.Ext(path))
	return ok
}

// Open decodes the file at path. Closing the stream closes the file.
func (r *Registry) Open(path string) (Stream, error) {
	d, ok := r.Lookup(filepath.Ext(path))
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s, err := d.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &fileStream{Stream: s, file: f}, nil
}

var defaultRegistry = DefaultRegistry()

// Open decodes path with the default registry.
func Open(path string) (Stream, error) {
	return defaultRegistry.Open(path)
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

type fileStream struct {
	Stream
	file *os.File
}

func (s *fileStream) Close() error {
	err := s.Stream.Close()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}
