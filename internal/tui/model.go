// SPDX-License-Identifier: MIT
/*
Package tui is the terminal front end: it drives the render loop at a fixed
frame rate, draws the spectrum curve with braille characters and maps keys
to the live capture controller and the file player.
*/
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"musualiser/internal/audio"
	"musualiser/internal/log"
	"musualiser/internal/render"
	"musualiser/internal/spectrum"
	"musualiser/internal/transport"
)

var logger = log.Named("tui")

// LiveSource is the subset of the capture controller the UI drives.
type LiveSource interface {
	Start() error
	Stop() error
	IsPlaying() bool
	CheckDevice() error
	Update(target audio.Target) error
	Target() audio.Target
	State() audio.State
}

// FileSource is the subset of the file player the UI drives.
type FileSource interface {
	OpenSongs() []string
	SelectedSongIndex() int
	ChangeCurrentSong(index int) error
	Play()
	Pause()
	IsPaused() bool
	Playing() bool
}

// Mode selects which source the keys control.
type Mode int

const (
	ModeLive Mode = iota
	ModeFile
)

func (m Mode) String() string {
	if m == ModeFile {
		return "file"
	}
	return "live"
}

// Options wire the model to the rest of the program. Live and Renderer are
// required; Files, Sessions and Transport may be nil.
type Options struct {
	Title     string
	Live      LiveSource
	Sessions  func() ([]audio.Session, error)
	Files     FileSource
	Renderer  *render.Renderer
	Transport transport.Transport
	FPS       int
	Mode      Mode
}

const defaultFPS = 60

type (
	tickMsg     time.Time
	sessionsMsg struct {
		sessions []audio.Session
		err      error
	}
)

// Model is the bubbletea model.
type Model struct {
	opts   Options
	keys   keyMap
	help   help.Model
	canvas *Canvas

	mode     Mode
	cursor   int
	sessions []audio.Session

	width, height int
	ready         bool
	sent          uint64
	frames        uint64

	status     string
	captureErr error
}

func New(opts Options) Model {
	if opts.FPS <= 0 {
		opts.FPS = defaultFPS
	}
	if opts.Title == "" {
		opts.Title = "musualiser"
	}
	if opts.Files == nil {
		opts.Mode = ModeLive
	}
	return Model{
		opts:   opts,
		keys:   defaultKeys(),
		help:   help.New(),
		canvas: NewCanvas(0, 0),
		mode:   opts.Mode,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.fetchSessions())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.opts.FPS), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) fetchSessions() tea.Cmd {
	if m.opts.Sessions == nil {
		return nil
	}
	list := m.opts.Sessions
	return func() tea.Msg {
		sessions, err := list()
		return sessionsMsg{sessions, err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.canvas.Resize(m.canvasCols(), m.canvasRows())
		m.ready = true
		return m, nil

	case tickMsg:
		m.frame()
		return m, m.tick()

	case sessionsMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("list sources: %v", msg.err)
			return m, nil
		}
		m.sessions = msg.sessions
		if m.mode == ModeLive {
			m.cursor = min(m.cursor, max(0, len(m.sessions)-1))
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// frame runs one render tick: reconcile the capture worker, rebuild the
// curve, draw it and forward new curves to the transports.
func (m *Model) frame() {
	m.frames++
	if err := m.opts.Live.CheckDevice(); err != nil {
		if m.captureErr == nil || err.Error() != m.captureErr.Error() {
			logger.Errorf("capture: %v", err)
		}
		m.captureErr = err
	} else {
		m.captureErr = nil
	}

	m.canvas.Clear()
	curve := m.opts.Renderer.Render(m.canvas.Size(), spectrum.Point{}, m.canvas)
	if u := m.opts.Renderer.Updates(); u != m.sent && len(curve) > 0 {
		m.sent = u
		if m.opts.Transport != nil {
			if err := m.opts.Transport.Send(curve); err != nil {
				logger.Debugf("transport: %v", err)
			}
		}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Toggle):
		m.togglePlayback()

	case key.Matches(msg, m.keys.Mode):
		m.switchMode()

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < m.listLen()-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Select):
		m.selectEntry()

	case key.Matches(msg, m.keys.Refresh):
		return m, m.fetchSessions()
	}
	return m, nil
}

func (m *Model) togglePlayback() {
	var err error
	switch m.mode {
	case ModeLive:
		if m.opts.Live.IsPlaying() {
			err = m.opts.Live.Stop()
		} else {
			err = m.opts.Live.Start()
		}
	case ModeFile:
		if m.opts.Files.IsPaused() {
			m.opts.Files.Play()
		} else {
			m.opts.Files.Pause()
		}
	}
	m.setStatus(err)
}

// switchMode pauses the source being left. The other source is not resumed
// until asked.
func (m *Model) switchMode() {
	if m.opts.Files == nil {
		m.status = "no songs loaded"
		return
	}
	if m.mode == ModeLive {
		m.setStatus(m.opts.Live.Stop())
		m.mode = ModeFile
		m.cursor = max(0, m.opts.Files.SelectedSongIndex())
		return
	}
	m.opts.Files.Pause()
	m.mode = ModeLive
	m.cursor = 0
	for i, s := range m.sessions {
		if s.Target() == m.opts.Live.Target() {
			m.cursor = i
		}
	}
}

func (m *Model) selectEntry() {
	switch m.mode {
	case ModeLive:
		if m.cursor >= len(m.sessions) {
			return
		}
		target := m.sessions[m.cursor].Target()
		if err := m.opts.Live.Update(target); err != nil {
			m.setStatus(err)
			return
		}
		m.setStatus(m.opts.Live.Start())
	case ModeFile:
		m.setStatus(m.opts.Files.ChangeCurrentSong(m.cursor))
	}
}

func (m *Model) setStatus(err error) {
	if err != nil {
		m.status = err.Error()
		return
	}
	m.status = ""
}

func (m Model) listLen() int {
	if m.mode == ModeFile {
		return len(m.opts.Files.OpenSongs())
	}
	return len(m.sessions)
}

// Layout: one header line, a blank line, the body, then help and status.
const chromeLines = 4

func (m Model) canvasCols() int { return max(0, m.width-panelWidth-2) }
func (m Model) canvasRows() int { return max(0, m.height-chromeLines) }

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := titleStyle.Render(m.opts.Title) + " " + infoStyle.Render(m.describe())

	var list string
	if m.mode == ModeFile {
		f := m.opts.Files
		list = renderSongs(f.OpenSongs(), m.cursor, f.SelectedSongIndex(), panelWidth-2)
	} else {
		list = renderSessions(m.sessions, m.cursor, m.opts.Live.Target(), panelWidth-2)
	}
	panel := panelStyle.Width(panelWidth).Height(m.canvasRows()).Render(list)
	body := lipgloss.JoinHorizontal(lipgloss.Top, curveStyle.Render(m.canvas.String()), panel)

	status := m.status
	if m.captureErr != nil {
		status = m.captureErr.Error()
	}
	return fmt.Sprintf("%s\n\n%s\n%s\n%s", header, body, m.help.View(m.keys), errorStyle.Render(status))
}

func (m Model) describe() string {
	if m.mode == ModeFile {
		state := "stopped"
		switch {
		case m.opts.Files.Playing() && m.opts.Files.IsPaused():
			state = "paused"
		case m.opts.Files.Playing():
			state = "playing"
		}
		return fmt.Sprintf("file • %s", state)
	}
	return fmt.Sprintf("live • %s • %v", m.opts.Live.State(), m.opts.Live.Target())
}

// Mode returns the active mode.
func (m Model) Mode() Mode { return m.mode }

// Run starts the program on the alternate screen and blocks until quit.
func Run(opts Options) error {
	p := tea.NewProgram(New(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
