// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"time"
)

// Headless canvas size in cells. The curve is still rasterised so transports
// see the same coordinates as a terminal of this size.
const (
	HeadlessCols = 120
	HeadlessRows = 40
)

// RunHeadless runs the per-frame work of the terminal UI on a ticker until
// ctx is done: reconcile the capture worker, rebuild the curve and forward
// new curves to the transports.
func RunHeadless(ctx context.Context, opts Options) error {
	m := New(opts)
	m.canvas.Resize(HeadlessCols, HeadlessRows)

	ticker := time.NewTicker(time.Second / time.Duration(m.opts.FPS))
	defer ticker.Stop()

	logger.Infof("headless render loop at %d fps", m.opts.FPS)
	for {
		select {
		case <-ctx.Done():
			logger.Infof("headless render loop stopped after %d frames", m.frames)
			return nil
		case <-ticker.C:
			m.frame()
		}
	}
}
