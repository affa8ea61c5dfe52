// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"

	"musualiser/internal/frame"
	"musualiser/pkg/utils"
)

var (
	fakeMic     = &portaudio.DeviceInfo{Name: "Built-in Microphone", MaxInputChannels: 2, DefaultSampleRate: 48000}
	fakeMonitor = &portaudio.DeviceInfo{Name: "Monitor of Speakers", MaxInputChannels: 2, DefaultSampleRate: 44100,
		HostApi: &portaudio.HostApiInfo{Name: "ALSA"}}
	fakeSpeaker = &portaudio.DeviceInfo{Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 44100}
)

// withFakeDevices swaps the PortAudio device hooks for the duration of t.
func withFakeDevices(t *testing.T, devices []*portaudio.DeviceInfo, def *portaudio.DeviceInfo) {
	t.Helper()
	origDevices, origDefault := paDevicesFunc, paDefaultInputDevice
	t.Cleanup(func() {
		paDevicesFunc, paDefaultInputDevice = origDevices, origDefault
	})
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return devices, nil }
	paDefaultInputDevice = func() (*portaudio.DeviceInfo, error) {
		if def == nil {
			return nil, fmt.Errorf("no default input")
		}
		return def, nil
	}
}

func TestHostDevices(t *testing.T) {
	withFakeDevices(t, []*portaudio.DeviceInfo{fakeMic, fakeMonitor, fakeSpeaker}, fakeMic)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("HostDevices returned %d devices, want 3", len(devices))
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
	}
	if devices[1].HostAPI != "ALSA" {
		t.Errorf("HostAPI = %q, want ALSA", devices[1].HostAPI)
	}

	kinds := []string{devices[0].Kind(), devices[2].Kind(), Device{MaxInputChannels: 1, MaxOutputChannels: 1}.Kind(), Device{}.Kind()}
	want := []string{"Input", "Output", "Input/Output", "Unknown"}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("Kind() #%d = %q, want %q", i, kinds[i], want[i])
		}
	}
}

func TestHostDevices_paDevicesError(t *testing.T) {
	orig := paDevicesFunc
	defer func() { paDevicesFunc = orig }()
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock error")
	}

	_, err := HostDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestInputDevice(t *testing.T) {
	withFakeDevices(t, []*portaudio.DeviceInfo{fakeMic, fakeMonitor, fakeSpeaker}, fakeMic)

	tests := []struct {
		name    string
		device  string
		want    string
		wantErr string
	}{
		{"default", "", fakeMic.Name, ""},
		{"named monitor", fakeMonitor.Name, fakeMonitor.Name, ""},
		{"output only", fakeSpeaker.Name, "", "does not support input"},
		{"missing", "Nope", "", "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := InputDevice(tt.device)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("InputDevice(%q) error = %v, want substring %q", tt.device, err, tt.wantErr)
				}
				if !errors.Is(err, ErrDeviceNotFound) {
					t.Errorf("InputDevice(%q) error does not wrap ErrDeviceNotFound", tt.device)
				}
				return
			}
			if err != nil {
				t.Fatalf("InputDevice(%q) error: %v", tt.device, err)
			}
			if dev.Name != tt.want {
				t.Errorf("InputDevice(%q) = %q, want %q", tt.device, dev.Name, tt.want)
			}
		})
	}
}

func TestInputDevice_paDefaultInputDeviceError(t *testing.T) {
	withFakeDevices(t, nil, nil)

	_, err := InputDevice("")
	if err == nil || !strings.Contains(err.Error(), "no default input") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestErrorInitialize(t *testing.T) {
	orig := paInitialize
	defer func() { paInitialize = orig }()

	paInitialize = func() error { return nil }
	if err := Initialize(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paInitialize = func() error { return fmt.Errorf("mock init error") }
	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "mock init error") {
		t.Errorf("expected mock init error, got %v", err)
	}
}

func TestErrorTerminate(t *testing.T) {
	orig := paTerminate
	defer func() { paTerminate = orig }()

	paTerminate = func() error { return nil }
	if err := Terminate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paTerminate = func() error { return fmt.Errorf("mock term error") }
	if err := Terminate(); err == nil || !strings.Contains(err.Error(), "mock term error") {
		t.Errorf("expected mock term error, got %v", err)
	}
}

func TestListDevices(t *testing.T) {
	withFakeDevices(t, []*portaudio.DeviceInfo{fakeMic, fakeMonitor}, fakeMonitor)

	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatalf("ListDevices error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"[0] Built-in Microphone (Input)",
		"[1] Monitor of Speakers (Input) *default input*",
		"Default sample rate: 48000 Hz",
		"Host API: ALSA",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("ListDevices output missing %q:\n%s", want, out)
		}
	}
}

func TestPortAudioBackendSessions(t *testing.T) {
	withFakeDevices(t, []*portaudio.DeviceInfo{fakeMic, fakeMonitor, fakeSpeaker}, fakeMonitor)

	var b PortAudioBackend
	sessions, err := b.Sessions()
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Sessions() returned %d entries, want 2 input devices", len(sessions))
	}
	if sessions[0].Default || !sessions[1].Default {
		t.Errorf("default flag misplaced: %+v", sessions)
	}
	if got := sessions[1].Target(); got != SystemTarget("") {
		t.Errorf("default session target = %v, want default device", got)
	}
	if got := sessions[0].Target(); got != SystemTarget(fakeMic.Name) {
		t.Errorf("named session target = %v", got)
	}

	id, err := b.DefaultDeviceID()
	if err != nil || id != fakeMonitor.Name {
		t.Errorf("DefaultDeviceID() = %q, %v", id, err)
	}
}

func TestPortAudioBackendRejectsProcessTargets(t *testing.T) {
	_, err := PortAudioBackend{}.Open(ProcessTarget(1234, "player"), Format{SampleRate: 44100, Channels: 1})
	if !errors.Is(err, ErrUnsupportedTarget) {
		t.Errorf("Open(process) error = %v, want ErrUnsupportedTarget", err)
	}
}

func TestTargetString(t *testing.T) {
	tests := []struct {
		target Target
		want   string
	}{
		{SystemTarget(""), "default device"},
		{SystemTarget("Monitor"), `device "Monitor"`},
		{ProcessTarget(42, "spotify"), "process 42 (spotify)"},
		{ProcessTarget(42, ""), "process 42"},
	}
	for _, tt := range tests {
		if got := tt.target.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
	if SystemTarget("Monitor").FollowsDefault() {
		t.Error("named device should not follow the default")
	}
	if !SystemTarget("").FollowsDefault() || !ProcessTarget(1, "").FollowsDefault() {
		t.Error("default and process targets should follow the default device")
	}
}

func TestSessionErrorFatal(t *testing.T) {
	base := errors.New("boom")
	for _, op := range []string{OpOpen, OpPlan, OpStart, OpWait, OpRead} {
		err := fmt.Errorf("wrapped: %w", &SessionError{Op: op, Target: SystemTarget(""), Err: base})
		want := op == OpOpen || op == OpPlan
		if IsFatal(err) != want {
			t.Errorf("IsFatal(%s) = %v, want %v", op, IsFatal(err), want)
		}
		if !errors.Is(err, base) {
			t.Errorf("SessionError(%s) does not unwrap", op)
		}
	}
	if IsFatal(base) {
		t.Error("IsFatal() on plain error = true")
	}
}

type fakeStream struct {
	started, stopped, closed int
}

func (s *fakeStream) Start() error { s.started++; return nil }
func (s *fakeStream) Stop() error  { s.stopped++; return nil }
func (s *fakeStream) Close() error { s.closed++; return nil }
func (s *fakeStream) Info() *portaudio.StreamInfo {
	return &portaudio.StreamInfo{SampleRate: 48000}
}

// openFakeStream opens a stereo client on fakeMic and returns the callback
// the client registered with PortAudio.
func openFakeStream(t *testing.T) (*paClient, func([]float32), *fakeStream) {
	t.Helper()
	withFakeDevices(t, []*portaudio.DeviceInfo{fakeMic}, fakeMic)
	orig := paOpenStream
	t.Cleanup(func() { paOpenStream = orig })

	stream := &fakeStream{}
	var callback func([]float32)
	paOpenStream = func(p portaudio.StreamParameters, args ...any) (paStream, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("stream opened with %d args, want one callback", len(args))
		}
		cb, ok := args[0].(func([]float32))
		if !ok {
			return nil, fmt.Errorf("stream opened with %T, want a callback", args[0])
		}
		callback = cb
		return stream, nil
	}

	client, err := PortAudioBackend{}.Open(SystemTarget(""), Format{SampleRate: 44100, Channels: 2, FramesPerBuffer: 4})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return client.(*paClient), callback, stream
}

func TestPortAudioClientWaitsForCallback(t *testing.T) {
	c, callback, stream := openFakeStream(t)
	defer c.Close()

	if c.SampleRate() != 48000 {
		t.Errorf("SampleRate() = %d, want the stream's 48000", c.SampleRate())
	}
	if err := c.Start(); err != nil || stream.started != 1 {
		t.Fatalf("Start() = %v, stream started %d times", err, stream.started)
	}

	first := []float32{0.1, 0.2, 0.3, 0.4}
	go func() {
		time.Sleep(10 * time.Millisecond)
		callback(utils.Interleave(first, 2))
	}()
	start := time.Now()
	if err := c.Wait(time.Second); err != nil {
		t.Fatalf("Wait() = %v, want the first callback", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Wait() took %v, want it to return on the callback", elapsed)
	}

	second := []float32{-0.5, 0.5, -0.5, 0.5}
	callback(utils.Interleave(second, 2))
	got, err := c.ReadAvailable(nil)
	if err != nil {
		t.Fatalf("ReadAvailable() error = %v", err)
	}
	want := frame.AppendBytes(frame.AppendBytes(nil, first), second)
	if !bytes.Equal(got, want) {
		t.Errorf("ReadAvailable() = % x, want channel 0 of both buffers % x", got, want)
	}

	if got, _ := c.ReadAvailable(nil); len(got) != 0 {
		t.Errorf("second ReadAvailable() returned %d bytes, want none", len(got))
	}
}

func TestPortAudioClientWaitTimesOut(t *testing.T) {
	c, _, _ := openFakeStream(t)
	defer c.Close()
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := c.Wait(20 * time.Millisecond); !errors.Is(err, ErrBufferTimeout) {
		t.Fatalf("Wait() = %v, want ErrBufferTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Wait() returned after %v, before the timeout", elapsed)
	}
}

func TestPortAudioClientDropsWhenBehind(t *testing.T) {
	c, callback, stream := openFakeStream(t)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}

	in := utils.Interleave([]float32{1, 2, 3, 4}, 2)
	for range queueDepth + 3 {
		callback(in)
	}
	if got := c.dropped.Load(); got != 3 {
		t.Errorf("dropped %d buffers, want 3", got)
	}
	got, _ := c.ReadAvailable(nil)
	if len(got) != queueDepth*4*4 {
		t.Errorf("ReadAvailable() returned %d bytes, want %d queued buffers", len(got), queueDepth)
	}

	// Buffers queued while stopped do not survive a restart.
	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}
	callback(in)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if err := c.Wait(10 * time.Millisecond); !errors.Is(err, ErrBufferTimeout) {
		t.Errorf("Wait() after restart = %v, want ErrBufferTimeout", err)
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if stream.stopped != 2 || stream.closed != 1 {
		t.Errorf("stream stopped %d and closed %d times", stream.stopped, stream.closed)
	}
}
