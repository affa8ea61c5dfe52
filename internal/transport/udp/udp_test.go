// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"musualiser/internal/spectrum"
)

type staticProvider struct {
	mu    sync.Mutex
	curve spectrum.Curve
}

func (p *staticProvider) Latest() spectrum.Curve {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.curve
}

func (p *staticProvider) set(c spectrum.Curve) {
	p.mu.Lock()
	p.curve = c
	p.mu.Unlock()
}

type recordingSender struct {
	mu      sync.Mutex
	packets [][]byte
}

func (s *recordingSender) Send(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packets = append(s.packets, append([]byte(nil), b...))
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.packets)
}

func TestPacketRoundTrip(t *testing.T) {
	ts := time.Unix(1700000000, 123456789)
	curve := spectrum.Curve{{X: 0, Y: 99}, {X: 2.5, Y: -1}, {X: 1024, Y: 0.25}}

	b := AppendPacket(nil, 7, ts, curve)
	if len(b) != headerSize+8*len(curve) {
		t.Fatalf("packet is %d bytes, want %d", len(b), headerSize+8*len(curve))
	}
	// Header is big-endian.
	if b[3] != 7 || b[13] != 3 {
		t.Errorf("header bytes = % x", b[:headerSize])
	}

	pkt, err := ParsePacket(b)
	if err != nil {
		t.Fatalf("ParsePacket() error = %v", err)
	}
	if pkt.Seq != 7 || !pkt.Timestamp.Equal(ts) {
		t.Errorf("header = %d, %v", pkt.Seq, pkt.Timestamp)
	}
	for i := range curve {
		if pkt.Points[i] != curve[i] {
			t.Errorf("point %d = %v, want %v", i, pkt.Points[i], curve[i])
		}
	}
}

func TestParsePacketShort(t *testing.T) {
	full := AppendPacket(nil, 1, time.Now(), spectrum.Curve{{X: 1, Y: 2}})
	for _, n := range []int{0, headerSize - 1, len(full) - 1} {
		if _, err := ParsePacket(full[:n]); !errors.Is(err, ErrShortPacket) {
			t.Errorf("ParsePacket(%d bytes) error = %v", n, err)
		}
	}
}

func TestAppendPacketTruncates(t *testing.T) {
	long := make(spectrum.Curve, MaxPoints+10)
	b := AppendPacket(nil, 1, time.Now(), long)
	if len(b) > 65507 {
		t.Errorf("packet is %d bytes, larger than one UDP datagram", len(b))
	}
	pkt, err := ParsePacket(b)
	if err != nil {
		t.Fatal(err)
	}
	if len(pkt.Points) != MaxPoints {
		t.Errorf("packet carries %d points, want %d", len(pkt.Points), MaxPoints)
	}
}

func TestNewPublisherValidates(t *testing.T) {
	if _, err := NewPublisher(time.Millisecond, nil, &staticProvider{}); err == nil {
		t.Error("nil sender accepted")
	}
	if _, err := NewPublisher(time.Millisecond, &recordingSender{}, nil); err == nil {
		t.Error("nil provider accepted")
	}
	p, err := NewPublisher(0, &recordingSender{}, &staticProvider{})
	if err != nil || p.interval != DefaultInterval {
		t.Errorf("zero interval: %v, %v", p, err)
	}
}

func TestPublisherSkipsEmptyAndSequences(t *testing.T) {
	sender := &recordingSender{}
	provider := &staticProvider{}
	p, err := NewPublisher(time.Millisecond, sender, provider)
	if err != nil {
		t.Fatal(err)
	}

	p.publish()
	if sender.count() != 0 {
		t.Fatal("empty curve was published")
	}

	provider.set(spectrum.Curve{{X: 1, Y: 2}, {X: 3, Y: 4}})
	p.publish()
	p.publish()
	if sender.count() != 2 || p.Sequence() != 2 {
		t.Fatalf("sent %d packets, sequence %d", sender.count(), p.Sequence())
	}
	for i, raw := range sender.packets {
		pkt, err := ParsePacket(raw)
		if err != nil {
			t.Fatal(err)
		}
		if pkt.Seq != uint32(i+1) || len(pkt.Points) != 2 {
			t.Errorf("packet %d = %+v", i, pkt)
		}
	}
}

func TestPublisherStartStop(t *testing.T) {
	sender := &recordingSender{}
	provider := &staticProvider{curve: spectrum.Curve{{X: 0, Y: 0}}}
	p, _ := NewPublisher(time.Millisecond, sender, provider)

	p.Start()
	p.Start()
	deadline := time.Now().Add(time.Second)
	for sender.count() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("publisher never sent")
		}
		time.Sleep(time.Millisecond)
	}
	p.Stop()
	n := sender.count()
	time.Sleep(10 * time.Millisecond)
	if sender.count() != n {
		t.Error("publisher kept sending after Stop()")
	}
	p.Stop()
	if err := p.Close(); err != nil {
		t.Error(err)
	}
}

func TestSenderLoopback(t *testing.T) {
	ln, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	s, err := NewSender(ln.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender() error = %v", err)
	}
	want := AppendPacket(nil, 9, time.Now(), spectrum.Curve{{X: 1, Y: 1}})
	if err := s.Send(want); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	buf := make([]byte, 1500)
	ln.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := ln.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	pkt, err := ParsePacket(buf[:n])
	if err != nil || pkt.Seq != 9 {
		t.Errorf("received %+v, %v", pkt, err)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Send(want); !errors.Is(err, ErrSenderClosed) {
		t.Errorf("Send() after Close() = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Error(err)
	}
}

func TestNewSenderBadAddress(t *testing.T) {
	if _, err := NewSender("not an address"); err == nil {
		t.Error("NewSender accepted a bad address")
	}
}
