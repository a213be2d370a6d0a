package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-pianoroll/debug"
	"go-pianoroll/midi"
	"go-pianoroll/notes"
	"go-pianoroll/playback"
	"go-pianoroll/theme"
	"go-pianoroll/widgets"
)

const frameRate = 40 * time.Millisecond

// Options are the knobs main passes through from config
type Options struct {
	File        string
	SeekStep    float64 // seconds
	TempoStep   float64 // bpm
	VolumeStep  float64
	LaneSeconds float64 // visible span of the roll
	Output      string  // output label when there is no watcher
}

type Model struct {
	Controller *playback.Controller
	Watcher    *midi.Watcher // may be nil
	Theme      *theme.Theme

	opts     Options
	roll     *widgets.Roll
	store    *notes.Store
	output   string
	status   string
	awaiting bool // listening for the end of the current session
	showHelp bool
	quitting bool
}

type tickMsg time.Time

type endedMsg struct{}

type DeviceEventMsg midi.DeviceEvent

func NewModel(c *playback.Controller, w *midi.Watcher, th *theme.Theme, opts Options) Model {
	if opts.SeekStep <= 0 {
		opts.SeekStep = 5
	}
	if opts.TempoStep <= 0 {
		opts.TempoStep = 5
	}
	if opts.VolumeStep <= 0 {
		opts.VolumeStep = 0.1
	}
	m := Model{
		Controller: c,
		Watcher:    w,
		Theme:      th,
		opts:       opts,
		roll:       widgets.NewRoll(th),
		store:      notes.NewStore(c.Notes()),
		output:     opts.Output,
	}
	if m.output == "" {
		m.output = "none"
	}
	if opts.LaneSeconds > 0 {
		m.roll.Seconds = opts.LaneSeconds
	}
	// a watched port names itself
	if w != nil {
		m.output = "none"
		if cur := w.Current(); cur != nil {
			m.output = cur.Name()
		}
	}
	return m
}

func tick() tea.Cmd {
	return tea.Tick(frameRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// ListenForEnd waits for the current session's natural end
func ListenForEnd(c *playback.Controller) tea.Cmd {
	done := c.Done()
	return func() tea.Msg {
		<-done
		return endedMsg{}
	}
}

func ListenForDevices(w *midi.Watcher) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-w.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tick()}
	if m.Watcher != nil {
		cmds = append(cmds, ListenForDevices(m.Watcher))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	c := m.Controller

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if err := c.Close(); err != nil {
				debug.Log("tui", "close: %v", err)
			}
			return m, tea.Quit

		case " ":
			c.Toggle()
			return m.afterPlay()

		case "s":
			if err := c.Stop(); err != nil {
				m.status = err.Error()
			} else {
				m.status = ""
			}

		case "left", "h":
			c.Seek(c.Position() - m.opts.SeekStep)

		case "right", "l":
			c.Seek(c.Position() + m.opts.SeekStep)

		case "0", "home":
			c.Seek(0)

		case "+", "=":
			c.SetTempo(c.Tempo() + m.opts.TempoStep)

		case "-", "_":
			// SetTempo ignores non-positive values
			c.SetTempo(c.Tempo() - m.opts.TempoStep)

		case "]":
			c.SetVolume(c.Volume() + m.opts.VolumeStep)

		case "[":
			c.SetVolume(c.Volume() - m.opts.VolumeStep)

		case "!":
			c.Panic()
			m.status = "panic sent"

		case "?":
			m.showHelp = !m.showHelp
		}

	case tickMsg:
		return m, tick()

	case endedMsg:
		m.awaiting = false
		m.status = "finished"

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		var err error
		if event.Type == midi.DeviceConnected {
			err = c.SetSink(event.Port)
			m.output = event.Name
			m.status = "connected " + event.Name
		} else if event.Type == midi.DeviceDisconnected {
			err = c.SetSink(nil)
			m.output = "none"
			m.status = "disconnected " + event.Name
			// the loop is off the port now; it is ours to close
			if err == nil && event.Port != nil {
				if cerr := event.Port.Close(); cerr != nil {
					debug.Log("tui", "close %s: %v", event.Name, cerr)
				}
			}
		}
		if err != nil {
			m.status = err.Error()
		}
		if m.Watcher == nil {
			return m, nil
		}
		return m, ListenForDevices(m.Watcher)
	}

	return m, nil
}

// afterPlay arms the end listener once a new session is running
func (m Model) afterPlay() (tea.Model, tea.Cmd) {
	if !m.Controller.IsPlaying() {
		return m, nil
	}
	m.status = ""
	if m.awaiting {
		return m, nil
	}
	m.awaiting = true
	return m, ListenForEnd(m.Controller)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	c := m.Controller
	th := m.Theme

	// Styles
	headerStyle := lipgloss.NewStyle().Foreground(th.Accent())
	nameStyle := lipgloss.NewStyle().Foreground(th.FG()).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	statusStyle := lipgloss.NewStyle().Foreground(th.Warning())

	mode := c.Mode()
	symbol := th.Symbols.Stop
	switch mode {
	case playback.Playing:
		symbol = th.Symbols.Play
	case playback.Paused:
		symbol = th.Symbols.Pause
	}

	name := "untitled"
	if m.opts.File != "" {
		name = filepath.Base(m.opts.File)
	}

	pos := c.Position()
	header := headerStyle.Render("go-pianoroll  ") + nameStyle.Render(name) +
		headerStyle.Render(fmt.Sprintf("  %c %-7s %5.1fbpm  vol %3.0f%%  out: %s",
			symbol, strings.ToUpper(mode.String()), c.Tempo(), c.Volume()*100, m.output))

	var help string
	if m.showHelp {
		help = m.renderHelp()
	} else {
		help = dimStyle.Render(widgets.RenderKeyLine([]widgets.KeyBinding{
			{Key: "space", Desc: "play/pause"},
			{Key: "s", Desc: "stop"},
			{Key: "←/→", Desc: "seek"},
			{Key: "+/-", Desc: "tempo"},
			{Key: "?", Desc: "help"},
			{Key: "q", Desc: "quit"},
		}))
	}

	// Build output
	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(m.roll.Render(m.store, pos))
	out.WriteString("\n\n")
	out.WriteString(widgets.RenderProgress(th, pos, m.store.Duration(), m.roll.Width-20))
	out.WriteString(fmt.Sprintf("  %d notes", m.store.Len()))
	out.WriteString("\n\n")
	out.WriteString(help)

	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(statusStyle.Render(m.status))
	}

	return out.String()
}

var keySections = []widgets.KeySection{
	{Title: "Transport", Keys: []widgets.KeyBinding{
		{Key: "space", Desc: "play / pause"},
		{Key: "s", Desc: "stop and rewind"},
		{Key: "←/h  →/l", Desc: "seek back / forward"},
		{Key: "0, home", Desc: "back to start"},
	}},
	{Title: "Sound", Keys: []widgets.KeyBinding{
		{Key: "+/-", Desc: "tempo"},
		{Key: "[/]", Desc: "volume"},
		{Key: "!", Desc: "panic: all notes off everywhere"},
	}},
	{Keys: []widgets.KeyBinding{
		{Key: "?", Desc: "close help"},
		{Key: "q", Desc: "quit"},
	}},
}

func (m Model) renderHelp() string {
	titleStyle := lipgloss.NewStyle().Foreground(m.Theme.Active())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())

	lines := strings.Split(widgets.RenderKeyHelp(keySections), "\n")
	for i, l := range lines {
		if strings.HasPrefix(l, " ") {
			lines[i] = dimStyle.Render(l)
		} else {
			lines[i] = titleStyle.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}
