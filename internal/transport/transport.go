// SPDX-License-Identifier: MIT
/*
Package transport publishes rendered curves to remote viewers.
*/
package transport

import (
	"errors"

	"musualiser/internal/log"
	"musualiser/internal/spectrum"
)

var logger = log.Named("transport")

// Transport defines a generic interface for sending rendered data or events.
// Implementations are safe for concurrent use and never block the caller
// on a slow peer.
type Transport interface {
	Send(data any) error
	Close() error
}

// CurveMessage is the wire form of a curve.
type CurveMessage struct {
	Type   string       `json:"type"`
	Points [][2]float64 `json:"points"`
}

// MessageTypeCurve tags CurveMessage values.
const MessageTypeCurve = "curve"

// NewCurveMessage converts c into its wire form.
func NewCurveMessage(c spectrum.Curve) CurveMessage {
	points := make([][2]float64, len(c))
	for i, p := range c {
		points[i] = [2]float64{p.X, p.Y}
	}
	return CurveMessage{Type: MessageTypeCurve, Points: points}
}

// encode wraps curves in a CurveMessage and passes everything else through.
func encode(data any) any {
	if c, ok := data.(spectrum.Curve); ok {
		return NewCurveMessage(c)
	}
	return data
}

// Multi fans every call out to a set of transports.
type Multi []Transport

func (m Multi) Send(data any) error {
	var errs []error
	for _, t := range m {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, t := range m {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Transport = Multi(nil)
