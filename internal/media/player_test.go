// SPDX-License-Identifier: MIT
package media

import (
	"errors"
	"math"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"musualiser/internal/analysis"
	"musualiser/pkg/utils"
)

const (
	songRate      = 8000
	songFrames    = 16000
	songFrequency = 10 // 800-sample windows
)

// fakeOutput records writes and takes delay per call to mimic a device.
type fakeOutput struct {
	mu      sync.Mutex
	delay   time.Duration
	written int
	closed  bool
}

func (o *fakeOutput) Write(samples []float32) error {
	time.Sleep(o.delay)
	o.mu.Lock()
	o.written += len(samples)
	o.mu.Unlock()
	return nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return nil
}

func (o *fakeOutput) state() (int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.written, o.closed
}

type outputs struct {
	mu    sync.Mutex
	delay time.Duration
	all   []*fakeOutput
	err   error
}

func (f *outputs) open(rate, channels int) (Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	o := &fakeOutput{delay: f.delay}
	f.all = append(f.all, o)
	return o, nil
}

func (f *outputs) get(i int) *fakeOutput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.all[i]
}

// writeSong writes a stereo song with a 1 kHz tone on the left and 3 kHz on
// the right.
func writeSong(t *testing.T, dir, name string) string {
	t.Helper()
	left := utils.GenerateSineWave(songFrames, songRate, 1000)
	right := utils.GenerateSineWave(songFrames, songRate, 3000)
	samples := make([]float32, 0, 2*songFrames)
	for i := range left {
		samples = append(samples, 0.5*left[i], 0.5*right[i])
	}
	path := filepath.Join(dir, name)
	writeWAV(t, path, songRate, 2, samples)
	return path
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func newTestPlayer(t *testing.T, outs *outputs, rec *utils.RecordingSender) *Player {
	t.Helper()
	p := NewPlayer(nil, analysis.NewPlanner(), rec, outs.open, songFrequency, analysis.None)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPlayerSongList(t *testing.T) {
	p := newTestPlayer(t, &outputs{}, utils.NewRecordingSender())

	if got := p.OpenSongs(); len(got) != 1 || got[0] != StopEntry {
		t.Errorf("initial OpenSongs() = %v", got)
	}
	if p.SelectedSongIndex() != NoSelection {
		t.Errorf("initial SelectedSongIndex() = %d", p.SelectedSongIndex())
	}
	if p.IsPaused() {
		t.Error("new player is paused")
	}

	p.UpdateOpenSongs([]string{"a.wav", "b.mp3"})
	got := p.OpenSongs()
	if len(got) != 3 || got[0] != StopEntry || got[2] != "b.mp3" {
		t.Errorf("OpenSongs() = %v", got)
	}

	for _, idx := range []int{-1, 3} {
		if err := p.ChangeCurrentSong(idx); !errors.Is(err, ErrNoSong) {
			t.Errorf("ChangeCurrentSong(%d) error = %v, want ErrNoSong", idx, err)
		}
	}
	if err := p.ChangeCurrentSong(0); err != nil || p.SelectedSongIndex() != 0 {
		t.Errorf("ChangeCurrentSong(0) = %v, selected %d", err, p.SelectedSongIndex())
	}
}

func TestPlayerPlaysAndAnalysesFirstChannel(t *testing.T) {
	outs := &outputs{}
	rec := utils.NewRecordingSender()
	p := newTestPlayer(t, outs, rec)
	p.UpdateOpenSongs([]string{writeSong(t, t.TempDir(), "song.wav")})

	if err := p.ChangeCurrentSong(1); err != nil {
		t.Fatalf("ChangeCurrentSong(1) error = %v", err)
	}
	if p.SelectedSongIndex() != 1 {
		t.Errorf("SelectedSongIndex() = %d, want 1", p.SelectedSongIndex())
	}
	waitFor(t, "song to finish", func() bool { return !p.Playing() })

	written, closed := outs.get(0).state()
	if written != 2*songFrames || !closed {
		t.Errorf("output got %d samples (closed %v), want %d", written, closed, 2*songFrames)
	}

	// (frames - window) / (window / 4) + 1 overlapping windows.
	window := songRate / songFrequency
	wantBatches := (songFrames-window)/(window/4) + 1
	if rec.Len() != wantBatches {
		t.Fatalf("sent %d batches, want %d", rec.Len(), wantBatches)
	}

	batch := rec.Batches()[wantBatches/2]
	mags := utils.Magnitudes(batch)
	peak := batch[utils.FindPeakBin(mags, 0, len(mags)-1)].Frequency
	if math.Abs(peak-1000) > 10 {
		t.Errorf("peak at %v Hz, want the left channel's 1000 Hz", peak)
	}
	peakMag := slices.Max(mags)
	for i, bin := range batch {
		if math.Abs(bin.Frequency-3000) < 1 && mags[i] > 0.01*peakMag {
			t.Errorf("right channel leaked into the analysis: %v at 3 kHz", mags[i])
		}
	}
	if p.Err() != nil {
		t.Errorf("Err() = %v", p.Err())
	}
}

func TestPlayerPauseParks(t *testing.T) {
	outs := &outputs{delay: 5 * time.Millisecond}
	p := newTestPlayer(t, outs, utils.NewRecordingSender())
	p.UpdateOpenSongs([]string{writeSong(t, t.TempDir(), "song.wav")})

	if err := p.ChangeCurrentSong(1); err != nil {
		t.Fatal(err)
	}
	p.Pause()
	if !p.IsPaused() {
		t.Fatal("IsPaused() = false after Pause()")
	}

	time.Sleep(20 * time.Millisecond)
	before, _ := outs.get(0).state()
	time.Sleep(30 * time.Millisecond)
	after, _ := outs.get(0).state()
	if before != after {
		t.Errorf("paused player wrote %d samples", after-before)
	}
	if !p.Playing() {
		t.Error("paused song should still be loaded")
	}

	p.Play()
	waitFor(t, "song to finish", func() bool { return !p.Playing() })
	if written, _ := outs.get(0).state(); written != 2*songFrames {
		t.Errorf("resumed song wrote %d samples, want %d", written, 2*songFrames)
	}
}

func TestPlayerChangeSong(t *testing.T) {
	dir := t.TempDir()
	outs := &outputs{delay: 5 * time.Millisecond}
	p := newTestPlayer(t, outs, utils.NewRecordingSender())
	p.UpdateOpenSongs([]string{writeSong(t, dir, "one.wav"), writeSong(t, dir, "two.wav")})

	if err := p.ChangeCurrentSong(1); err != nil {
		t.Fatal(err)
	}
	// Reselecting the current song does not restart it.
	if err := p.ChangeCurrentSong(1); err != nil {
		t.Fatal(err)
	}
	outs.mu.Lock()
	opened := len(outs.all)
	outs.mu.Unlock()
	if opened != 1 {
		t.Fatalf("reselecting opened %d outputs, want 1", opened)
	}

	if err := p.ChangeCurrentSong(2); err != nil {
		t.Fatal(err)
	}
	if _, closed := outs.get(0).state(); !closed {
		t.Error("switching songs left the first output open")
	}
	if p.SelectedSongIndex() != 2 || !p.Playing() {
		t.Errorf("selected %d, playing %v", p.SelectedSongIndex(), p.Playing())
	}

	if err := p.ChangeCurrentSong(0); err != nil {
		t.Fatal(err)
	}
	if _, closed := outs.get(1).state(); !closed || p.Playing() {
		t.Error("Stop entry did not stop playback")
	}
}

func TestPlayerOpenErrors(t *testing.T) {
	dir := t.TempDir()
	outs := &outputs{}
	p := newTestPlayer(t, outs, utils.NewRecordingSender())
	p.UpdateOpenSongs([]string{
		filepath.Join(dir, "missing.wav"),
		filepath.Join(dir, "notes.txt"),
		writeSong(t, dir, "fine.wav"),
	})

	if err := p.ChangeCurrentSong(1); err == nil {
		t.Error("missing file opened")
	}
	if p.SelectedSongIndex() != 0 {
		t.Errorf("failed open left selection on %d, want 0", p.SelectedSongIndex())
	}
	if err := p.ChangeCurrentSong(2); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("ChangeCurrentSong(txt) = %v, want ErrUnknownFormat", err)
	}

	outs.mu.Lock()
	outs.err = errors.New("no device")
	outs.mu.Unlock()
	if err := p.ChangeCurrentSong(3); err == nil || p.Playing() {
		t.Errorf("output failure: err = %v, playing = %v", err, p.Playing())
	}
	if p.Err() == nil {
		t.Error("Err() lost the open failure")
	}
}

func TestPlayerClose(t *testing.T) {
	outs := &outputs{delay: 5 * time.Millisecond}
	p := newTestPlayer(t, outs, utils.NewRecordingSender())
	p.UpdateOpenSongs([]string{writeSong(t, t.TempDir(), "song.wav")})
	if err := p.ChangeCurrentSong(1); err != nil {
		t.Fatal(err)
	}
	p.Pause()

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, closed := outs.get(0).state(); !closed {
		t.Error("Close() returned before the output was released")
	}
	if err := p.ChangeCurrentSong(1); !errors.Is(err, ErrPlayerClosed) {
		t.Errorf("ChangeCurrentSong after Close() = %v", err)
	}
}
