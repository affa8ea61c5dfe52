// SPDX-License-Identifier: MIT
package analysis

import "errors"

var (
	// ErrInvalidWindow is returned when a transform cannot be planned for the
	// requested window length.
	ErrInvalidWindow = errors.New("invalid analysis window length")

	// ErrUnknownWindowFunc is returned by ParseWindowFunc for unrecognised names.
	ErrUnknownWindowFunc = errors.New("unknown window function")
)
