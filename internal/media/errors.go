// SPDX-License-Identifier: MIT
package media

import "errors"

var (
	// ErrUnknownFormat is returned for files without a registered decoder.
	ErrUnknownFormat = errors.New("unknown audio format")
	// ErrUnsupportedEncoding is returned for files the decoder recognises
	// but cannot convert, such as compressed WAV data.
	ErrUnsupportedEncoding = errors.New("unsupported audio encoding")
	// ErrNoSong is returned when a song index is out of range.
	ErrNoSong = errors.New("no such song")
	ErrPlayerClosed = errors.New("player closed")
)
