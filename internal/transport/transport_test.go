// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"musualiser/internal/spectrum"
	"musualiser/pkg/utils"
)

var testCurve = spectrum.Curve{{X: 0, Y: 10}, {X: 1.5, Y: 4}, {X: 3, Y: 9.25}}

func TestNewCurveMessage(t *testing.T) {
	msg := NewCurveMessage(testCurve)
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"curve","points":[[0,10],[1.5,4],[3,9.25]]}`
	if string(raw) != want {
		t.Errorf("json = %s, want %s", raw, want)
	}

	if got := encode("hello"); got != "hello" {
		t.Errorf("encode passed through %v", got)
	}
}

type failingTransport struct{ err error }

func (f failingTransport) Send(any) error { return f.err }
func (f failingTransport) Close() error   { return f.err }

func TestMulti(t *testing.T) {
	a, b := &utils.MockTransport{}, &utils.MockTransport{}
	boom := errors.New("boom")
	m := Multi{a, failingTransport{boom}, b}

	if err := m.Send(testCurve); !errors.Is(err, boom) {
		t.Errorf("Send() error = %v, want boom", err)
	}
	if len(a.Sent) != 1 || len(b.Sent) != 1 {
		t.Errorf("fan-out stopped at the failing transport: %d, %d", len(a.Sent), len(b.Sent))
	}
	if err := m.Close(); !errors.Is(err, boom) || !a.Closed || !b.Closed {
		t.Errorf("Close() = %v, closed %v %v", err, a.Closed, b.Closed)
	}
}

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport()
	for _, msg := range []any{testCurve, spectrum.Curve{}, 42} {
		if err := lt.Send(msg); err != nil {
			t.Errorf("Send(%T) error = %v", msg, err)
		}
	}
	if lt.Sent() != 3 {
		t.Errorf("Sent() = %d, want 3", lt.Sent())
	}
	if err := lt.Close(); err != nil {
		t.Error(err)
	}
}

func dialTransport(t *testing.T, wst *WebSocketTransport) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wst.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(time.Second)
	for wst.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(time.Millisecond)
	}
	return conn
}

func TestWebSocketBroadcast(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewWebSocketTransport() error = %v", err)
	}
	defer wst.Close()

	c1 := dialTransport(t, wst)
	c2 := dialTransport(t, wst)
	if wst.ClientCount() != 2 {
		t.Fatalf("ClientCount() = %d, want 2", wst.ClientCount())
	}

	if err := wst.Send(testCurve); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	for i, c := range []*websocket.Conn{c1, c2} {
		c.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg CurveMessage
		if err := c.ReadJSON(&msg); err != nil {
			t.Fatalf("client %d read: %v", i, err)
		}
		if msg.Type != MessageTypeCurve || len(msg.Points) != len(testCurve) || msg.Points[2] != [2]float64{3, 9.25} {
			t.Errorf("client %d got %+v", i, msg)
		}
	}
}

func TestWebSocketClientDisconnect(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer wst.Close()

	conn := dialTransport(t, wst)
	conn.Close()

	deadline := time.Now().Add(time.Second)
	for wst.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("disconnected client still registered")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWebSocketClose(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	conn := dialTransport(t, wst)

	if err := wst.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := wst.Send(testCurve); err == nil {
		t.Error("Send() after Close() succeeded")
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("client connection survived Close()")
	}
}

func TestWebSocketBindError(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer wst.Close()

	if _, err := NewWebSocketTransport(wst.Addr().String()); err == nil {
		t.Error("second transport bound the same address")
	}
}
