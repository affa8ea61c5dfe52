// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"
)

// LoggingTransport reports every message at debug level. Headless runs use
// it so that a session without remote viewers still shows progress.
type LoggingTransport struct {
	sent atomic.Uint64
}

func NewLoggingTransport() *LoggingTransport {
	logger.Infof("using logging transport")
	return &LoggingTransport{}
}

// Send logs a one-line summary of data.
func (lt *LoggingTransport) Send(data any) error {
	n := lt.sent.Add(1)
	switch msg := encode(data).(type) {
	case CurveMessage:
		if len(msg.Points) == 0 {
			logger.Debugf("message %d: empty curve", n)
			return nil
		}
		lo, hi := msg.Points[0][1], msg.Points[0][1]
		for _, p := range msg.Points[1:] {
			lo, hi = min(lo, p[1]), max(hi, p[1])
		}
		logger.Debugf("message %d: curve of %d points, y in [%.1f, %.1f]", n, len(msg.Points), lo, hi)
	default:
		logger.Debugf("message %d: %T", n, data)
	}
	return nil
}

// Sent returns how many messages have been logged.
func (lt *LoggingTransport) Sent() uint64 { return lt.sent.Load() }

func (lt *LoggingTransport) Close() error {
	logger.Debugf("logging transport closed after %d messages", lt.sent.Load())
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
