package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-pianoroll/midi"
	"go-pianoroll/notes"
	"go-pianoroll/playback"
	"go-pianoroll/theme"
)

var frozen = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T) (Model, *midi.Recorder) {
	t.Helper()
	rec := midi.NewRecorder()
	c := playback.New(rec, playback.WithClock(func() time.Time { return frozen }))
	require.NoError(t, c.SetNotes([]notes.Note{
		{Pitch: 60, Velocity: 100, Start: 0, End: 30},
		{Pitch: 64, Velocity: 100, Start: 10, End: 40},
	}))
	t.Cleanup(func() { c.Close() })
	return NewModel(c, nil, theme.New(nil), Options{File: "song.mid"}), rec
}

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "home":
		return tea.KeyMsg{Type: tea.KeyHome}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m Model, keys ...string) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(key(k))
		m = next.(Model)
	}
	return m, cmd
}

func TestSpaceTogglesPlayback(t *testing.T) {
	m, _ := newTestModel(t)

	m, cmd := press(m, " ")
	assert.Equal(t, playback.Playing, m.Controller.Mode())
	assert.NotNil(t, cmd, "end listener armed")
	assert.True(t, m.awaiting)

	m, _ = press(m, " ")
	assert.Equal(t, playback.Paused, m.Controller.Mode())

	// resuming keeps the existing listener
	m, cmd = press(m, " ")
	assert.Equal(t, playback.Playing, m.Controller.Mode())
	assert.Nil(t, cmd)
}

func TestSeekKeys(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(m, "right", "right")
	assert.Equal(t, 10.0, m.Controller.Position())

	m, _ = press(m, "left")
	assert.Equal(t, 5.0, m.Controller.Position())

	m, _ = press(m, "left", "left")
	assert.Zero(t, m.Controller.Position())

	m, _ = press(m, "right", "home")
	assert.Zero(t, m.Controller.Position())
}

func TestTempoKeys(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(m, "+", "+")
	assert.Equal(t, 130.0, m.Controller.Tempo())

	for i := 0; i < 40; i++ {
		m, _ = press(m, "-")
	}
	assert.Equal(t, 5.0, m.Controller.Tempo(), "tempo never reaches zero")
}

func TestVolumeKeys(t *testing.T) {
	m, rec := newTestModel(t)

	m, _ = press(m, "[", "[")
	assert.InDelta(t, 0.8, m.Controller.Volume(), 1e-9)
	assert.Len(t, rec.Filter(midi.CC), 2)

	m, _ = press(m, "]", "]", "]", "]")
	assert.Equal(t, 1.0, m.Controller.Volume())
}

func TestStopAndPanicKeys(t *testing.T) {
	m, rec := newTestModel(t)

	m, _ = press(m, " ")
	require.Eventually(t, func() bool { return len(rec.Filter(midi.NoteOn)) == 1 }, time.Second, time.Millisecond)

	m, _ = press(m, "s")
	assert.Equal(t, playback.Stopped, m.Controller.Mode())
	assert.Empty(t, rec.Sounding())

	rec.Reset()
	m, _ = press(m, "!")
	assert.Len(t, rec.Filter(midi.CC), 2*midi.NumChannels)
	assert.Equal(t, "panic sent", m.status)
}

func TestQuitClosesController(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(m, " ")
	m, cmd := press(m, "q")
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.Equal(t, playback.Stopped, m.Controller.Mode())
	assert.Empty(t, m.View())

	// closed controllers ignore play
	m.Controller.Play()
	assert.False(t, m.Controller.IsPlaying())
}

func TestDeviceEvents(t *testing.T) {
	m, _ := newTestModel(t)
	next := midi.NewRecorder()
	port := &namedPort{Recorder: next, name: "Synth"}

	updated, _ := m.Update(DeviceEventMsg{Type: midi.DeviceConnected, Port: port, Name: "Synth"})
	m = updated.(Model)
	assert.Equal(t, "Synth", m.output)

	m.Controller.Play()
	require.Eventually(t, func() bool { return len(next.Filter(midi.NoteOn)) == 1 }, time.Second, time.Millisecond)

	updated, _ = m.Update(DeviceEventMsg{Type: midi.DeviceDisconnected, Port: port, Name: "Synth"})
	m = updated.(Model)
	assert.Equal(t, "none", m.output)
	assert.Empty(t, next.Sounding())
	assert.Equal(t, playback.Stopped, m.Controller.Mode())
	assert.True(t, port.closed, "closed once detached")

	// no output: play does nothing
	m.Controller.Play()
	assert.False(t, m.Controller.IsPlaying())
}

func TestEndedMessage(t *testing.T) {
	m, _ := newTestModel(t)
	m.awaiting = true
	updated, _ := m.Update(endedMsg{})
	m = updated.(Model)
	assert.False(t, m.awaiting)
	assert.Equal(t, "finished", m.status)
}

func TestLaneSecondsWidensRoll(t *testing.T) {
	m, _ := newTestModel(t)
	// default lane: E4 starts 10s in, outside the window
	assert.NotContains(t, m.View(), "E4")

	rec := midi.NewRecorder()
	c := playback.New(rec, playback.WithClock(func() time.Time { return frozen }))
	require.NoError(t, c.SetNotes(m.Controller.Notes()))
	t.Cleanup(func() { c.Close() })

	wide := NewModel(c, nil, theme.New(nil), Options{File: "song.mid", LaneSeconds: 48})
	assert.Equal(t, 48.0, wide.roll.Seconds)
	assert.Contains(t, wide.View(), "E4")
	assert.Contains(t, wide.View(), "C4")
}

func TestOutputLabel(t *testing.T) {
	m, _ := newTestModel(t)
	assert.Equal(t, "none", m.output)

	dry := NewModel(m.Controller, nil, theme.New(nil), Options{Output: "dry run"})
	assert.Equal(t, "dry run", dry.output)
	assert.Contains(t, dry.View(), "out: dry run")

	// with a watcher the label follows the watched port, not the option
	w := midi.NewWatcher("Synth", time.Second)
	watched := NewModel(m.Controller, w, theme.New(nil), Options{Output: "stale"})
	assert.Equal(t, "none", watched.output)

	updated, _ := watched.Update(DeviceEventMsg{Type: midi.DeviceConnected, Port: &namedPort{Recorder: midi.NewRecorder(), name: "Synth"}, Name: "Synth"})
	assert.Equal(t, "Synth", updated.(Model).output)
}

func TestHelpKeyTogglesFullHelp(t *testing.T) {
	m, _ := newTestModel(t)
	assert.NotContains(t, m.View(), "Transport")

	m, _ = press(m, "?")
	v := m.View()
	assert.Contains(t, v, "Transport")
	assert.Contains(t, v, "stop and rewind")
	assert.Contains(t, v, "panic: all notes off everywhere")

	m, _ = press(m, "?")
	assert.NotContains(t, m.View(), "Transport")
}

func TestViewShowsTransport(t *testing.T) {
	m, _ := newTestModel(t)
	v := m.View()
	assert.Contains(t, v, "song.mid")
	assert.Contains(t, v, "STOPPED")
	assert.Contains(t, v, "2 notes")
}

type namedPort struct {
	*midi.Recorder
	name   string
	closed bool
}

func (p *namedPort) Name() string { return p.name }
func (p *namedPort) Close() error { p.closed = true; return nil }
