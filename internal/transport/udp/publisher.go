// SPDX-License-Identifier: MIT
/*
Package udp streams the latest rendered curve as fixed-layout datagrams.
*/
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"musualiser/internal/log"
	"musualiser/internal/spectrum"
)

var logger = log.Named("udp")

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 16 * time.Millisecond

// maxDatagram is the largest UDP payload over IPv4.
const maxDatagram = 65507

// MaxPoints is the most points that fit one datagram.
const MaxPoints = (maxDatagram - headerSize) / 8

const headerSize = 4 + 8 + 2

// CurveProvider returns the most recently rendered curve.
type CurveProvider interface {
	Latest() spectrum.Curve
}

/*
Packet layout, big-endian:

	| seq uint32 | timestamp int64 (ns since epoch) | count uint16 | count * (x float32, y float32) |
*/

// Packet is a decoded datagram.
type Packet struct {
	Seq       uint32
	Timestamp time.Time
	Points    spectrum.Curve
}

// AppendPacket encodes one datagram onto dst. Curves longer than MaxPoints
// are truncated.
func AppendPacket(dst []byte, seq uint32, ts time.Time, c spectrum.Curve) []byte {
	if len(c) > MaxPoints {
		c = c[:MaxPoints]
	}
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(ts.UnixNano()))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(c)))
	for _, p := range c {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(p.X)))
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(p.Y)))
	}
	return dst
}

// ErrShortPacket is returned for datagrams smaller than their header claims.
var ErrShortPacket = errors.New("short curve packet")

// ParsePacket decodes a datagram produced by AppendPacket.
func ParsePacket(b []byte) (Packet, error) {
	if len(b) < headerSize {
		return Packet{}, fmt.Errorf("%d bytes: %w", len(b), ErrShortPacket)
	}
	pkt := Packet{
		Seq:       binary.BigEndian.Uint32(b),
		Timestamp: time.Unix(0, int64(binary.BigEndian.Uint64(b[4:]))),
	}
	n := int(binary.BigEndian.Uint16(b[12:]))
	body := b[headerSize:]
	if len(body) < n*8 {
		return Packet{}, fmt.Errorf("%d points in %d bytes: %w", n, len(body), ErrShortPacket)
	}
	pkt.Points = make(spectrum.Curve, n)
	for i := range pkt.Points {
		pkt.Points[i] = spectrum.Point{
			X: float64(math.Float32frombits(binary.BigEndian.Uint32(body[8*i:]))),
			Y: float64(math.Float32frombits(binary.BigEndian.Uint32(body[8*i+4:]))),
		}
	}
	return pkt, nil
}

// Publisher periodically sends the provider's latest curve. Empty curves are
// skipped.
type Publisher struct {
	sender   PacketSender
	provider CurveProvider
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup

	seq    uint32
	packet []byte
}

// NewPublisher validates its arguments and returns a stopped publisher.
func NewPublisher(interval time.Duration, sender PacketSender, provider CurveProvider) (*Publisher, error) {
	if sender == nil {
		return nil, errors.New("udp publisher: sender cannot be nil")
	}
	if provider == nil {
		return nil, errors.New("udp publisher: curve provider cannot be nil")
	}
	if interval <= 0 {
		logger.Warnf("invalid interval %s, defaulting to %s", interval, DefaultInterval)
		interval = DefaultInterval
	}
	return &Publisher{
		sender:   sender,
		provider: provider,
		interval: interval,
		now:      time.Now,
	}, nil
}

// Start launches the ticker goroutine. Calling Start on a running publisher
// does nothing.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	stop := make(chan struct{})
	p.stop = stop

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		logger.Infof("publishing every %s", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-stop:
				return
			}
		}
	}()
}

// Stop ends the ticker goroutine and waits for it.
func (p *Publisher) Stop() {
	p.mu.Lock()
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	p.wg.Wait()
}

// Close stops the publisher. The sender is left open.
func (p *Publisher) Close() error {
	p.Stop()
	return nil
}

// Sequence returns the sequence number of the last packet sent.
func (p *Publisher) Sequence() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq
}

func (p *Publisher) publish() {
	curve := p.provider.Latest()
	if len(curve) == 0 {
		return
	}

	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	p.packet = AppendPacket(p.packet[:0], seq, p.now(), curve)
	if err := p.sender.Send(p.packet); err != nil {
		logger.Warnf("packet %d: %v", seq, err)
		return
	}
	logger.Debugf("sent packet %d (%d bytes)", seq, len(p.packet))
}
