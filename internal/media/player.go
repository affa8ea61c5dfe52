// SPDX-License-Identifier: MIT
package media

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"musualiser/internal/analysis"
	"musualiser/internal/audio"
	"musualiser/internal/frame"
	"musualiser/internal/handoff"
	"musualiser/internal/log"
)

var logger = log.Named("player")

// StopEntry is the label of the first song slot. Selecting it stops playback.
const StopEntry = "Stop"

// NoSelection is the selected index before any song has been chosen.
const NoSelection = -1

const playbackChunk = 4096

// Player plays one file at a time and sends the analysis of its first
// channel to a handoff sender, exactly as live capture does.
type Player struct {
	mu sync.Mutex

	registry  *Registry
	planner   analysis.Planner
	sender    handoff.Sender
	output    OutputFactory
	frequency int
	window    analysis.WindowFunc
	gate      *audio.Gate

	songs    []string
	selected int
	current  *playback
	err      error
	closed   bool
}

// NewPlayer returns an unpaused player with an empty song list. Nil
// arguments fall back to the default registry, a fresh planner, a discarding
// sender and the PortAudio output.
func NewPlayer(registry *Registry, planner analysis.Planner, sender handoff.Sender, output OutputFactory, frequency int, window analysis.WindowFunc) *Player {
	if registry == nil {
		registry = defaultRegistry
	}
	if planner == nil {
		planner = analysis.NewPlanner()
	}
	if sender == nil {
		sender = handoff.Discard{}
	}
	if output == nil {
		output = PortAudioOutput
	}
	p := &Player{
		registry:  registry,
		planner:   planner,
		sender:    sender,
		output:    output,
		frequency: frequency,
		window:    window,
		gate:      audio.NewGate(),
		songs:     []string{StopEntry},
		selected:  NoSelection,
	}
	p.gate.Set(true)
	return p
}

// UpdateOpenSongs replaces the song list. The Stop entry is inserted at
// index 0. The current song keeps playing until the selection changes.
func (p *Player) UpdateOpenSongs(paths []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.songs = append([]string{StopEntry}, paths...)
}

// OpenSongs returns the song list, Stop entry first.
func (p *Player) OpenSongs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.songs...)
}

// SelectedSongIndex returns the selected index, or NoSelection.
func (p *Player) SelectedSongIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected
}

// ChangeCurrentSong stops the current song and starts the one at index.
// Index 0 only stops. Selecting the current song again does nothing. When
// the new song cannot be opened the player is left stopped on index 0.
func (p *Player) ChangeCurrentSong(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPlayerClosed
	}
	if index < 0 || index >= len(p.songs) {
		return fmt.Errorf("song %d of %d: %w", index, len(p.songs), ErrNoSong)
	}

	if index == 0 {
		p.stopLocked()
		p.selected = 0
		return nil
	}
	if index == p.selected {
		return nil
	}

	p.stopLocked()
	p.selected = index
	if err := p.startLocked(p.songs[index]); err != nil {
		p.selected = 0
		p.err = err
		return err
	}
	p.gate.Set(true)
	return nil
}

func (p *Player) startLocked(path string) error {
	stream, err := p.registry.Open(path)
	if err != nil {
		return err
	}

	rate := stream.SampleRate()
	analyzer, err := analysis.NewAnalyzer(p.planner, rate, frame.WindowLength(rate, p.frequency), p.window)
	if err != nil {
		stream.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	out, err := p.output(rate, stream.Channels())
	if err != nil {
		stream.Close()
		return fmt.Errorf("%s: %w", path, err)
	}

	pb := &playback{
		path:     path,
		stream:   stream,
		out:      out,
		analyzer: analyzer,
		kill:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	p.current = pb
	p.err = nil
	logger.Infof("playing %s (%d Hz, %d channels, window %d)", path, rate, stream.Channels(), analyzer.WindowLen())
	go pb.run(p.gate, p.sender)
	return nil
}

// stopLocked kills the current playback and waits for it to release the
// output. The playback goroutine never takes p.mu.
func (p *Player) stopLocked() {
	pb := p.current
	if pb == nil {
		return
	}
	close(pb.kill)
	p.gate.Wake()
	<-pb.done
	if pb.err != nil {
		p.err = pb.err
	}
	p.current = nil
}

// Play opens the pause gate.
func (p *Player) Play() {
	p.gate.Set(true)
}

// Pause closes the pause gate. The playback goroutine parks before its next
// chunk and keeps its position.
func (p *Player) Pause() {
	p.gate.Set(false)
}

func (p *Player) IsPaused() bool {
	return !p.gate.Playing()
}

// Playing reports whether a song is loaded and has not reached its end.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil && !p.current.finished()
}

// Err returns the error that ended the most recent song, if any.
func (p *Player) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil && p.current.finished() && p.current.err != nil {
		return p.current.err
	}
	return p.err
}

// Close stops playback. Later song changes return ErrPlayerClosed.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.stopLocked()
	return nil
}

// playback is one song being decoded, played and analysed.
type playback struct {
	path     string
	stream   Stream
	out      Output
	analyzer *analysis.Analyzer

	kill chan struct{}
	done chan struct{}
	err  error // written before done closes
}

func (pb *playback) finished() bool {
	select {
	case <-pb.done:
		return true
	default:
		return false
	}
}

func (pb *playback) run(gate *audio.Gate, sender handoff.Sender) {
	defer close(pb.done)
	defer func() {
		if err := pb.out.Close(); err != nil {
			logger.Warnf("%s: close output: %v", pb.path, err)
		}
		if err := pb.stream.Close(); err != nil {
			logger.Warnf("%s: close stream: %v", pb.path, err)
		}
	}()

	pb.err = pb.play(gate, sender)
	switch {
	case pb.err != nil:
		logger.Errorf("%s: %v", pb.path, pb.err)
	default:
		logger.Debugf("%s: playback ended", pb.path)
	}
}

func (pb *playback) play(gate *audio.Gate, sender handoff.Sender) error {
	channels := max(1, pb.stream.Channels())
	chunk := make([]float32, playbackChunk-playbackChunk%channels)
	mono := make([]float32, 0, len(chunk)/channels)
	acc := frame.NewAccumulator(pb.analyzer.WindowLen())

	for {
		if !gate.WaitPlaying(pb.kill) {
			return nil
		}

		n, err := pb.stream.ReadSamples(chunk)
		if n > 0 {
			mono = frame.FirstChannel(mono[:0], chunk[:n-n%channels], channels)
			acc.PushSamples(mono)
			for {
				window, ok := acc.Next()
				if !ok {
					break
				}
				if serr := sender.Send(pb.analyzer.Analyze(window)); serr != nil && !errors.Is(serr, handoff.ErrClosed) {
					logger.Warnf("%s: handoff: %v", pb.path, serr)
				}
			}
			if werr := pb.out.Write(chunk[:n]); werr != nil {
				return fmt.Errorf("write output: %w", werr)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("decode: %w", err)
		}

		select {
		case <-pb.kill:
			return nil
		default:
		}
	}
}
