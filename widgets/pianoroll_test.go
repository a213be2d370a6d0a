package widgets

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-pianoroll/notes"
	"go-pianoroll/theme"
)

func init() {
	// plain runes, no escape codes
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestRollRowsHighestFirst(t *testing.T) {
	r := NewRoll(theme.New(nil))
	r.Width = 5 + 16
	r.Seconds = 8 // half a second per column

	store := notes.NewStore([]notes.Note{
		{Pitch: 60, Velocity: 100, Start: 0, End: 1},
		{Pitch: 67, Velocity: 100, Start: 2, End: 3},
		{Pitch: 90, Velocity: 100, Start: 50, End: 51}, // off screen
	})

	out := r.Render(store, 0)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "G4"))
	assert.True(t, strings.HasPrefix(lines[1], "C4"))

	// window starts 2s before the playhead: C4 lives in columns 4-5
	row := []rune(lines[1])[labelWidth:]
	assert.Equal(t, '▓', row[4])
	assert.Equal(t, '▓', row[5])
	assert.NotEqual(t, '▓', row[6])
}

func TestRollMaxRows(t *testing.T) {
	r := NewRoll(theme.New(nil))
	r.MaxRows = 2

	var ns []notes.Note
	for p := 60; p < 66; p++ {
		ns = append(ns, notes.Note{Pitch: p, Velocity: 90, Start: 0, End: 1})
	}
	lines := strings.Split(r.Render(notes.NewStore(ns), 0.5), "\n")
	assert.Len(t, lines, 2)
}

func TestRollEmpty(t *testing.T) {
	r := NewRoll(theme.New(nil))
	assert.Contains(t, r.Render(notes.NewStore(nil), 0), "no notes")
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "0:00.0", FormatClock(0))
	assert.Equal(t, "1:05.5", FormatClock(65.5))
	assert.Equal(t, "0:00.0", FormatClock(-3))
}

func TestRenderProgress(t *testing.T) {
	out := RenderProgress(theme.New(nil), 5, 10, 10)
	assert.Equal(t, "━━━━━─────  0:05.0 / 0:10.0", out)
}

func TestRenderKeyLine(t *testing.T) {
	assert.Equal(t, "space:play  q:quit", RenderKeyLine([]KeyBinding{
		{Key: "space", Desc: "play"},
		{Key: "q", Desc: "quit"},
	}))
}

func TestRenderKeyHelpAlignsSections(t *testing.T) {
	out := RenderKeyHelp([]KeySection{
		{Title: "Transport", Keys: []KeyBinding{
			{Key: "space", Desc: "play"},
			{Key: "←/→", Desc: "seek"},
		}},
		{Keys: []KeyBinding{{Key: "q", Desc: "quit"}}},
	})
	assert.Equal(t, strings.Join([]string{
		"Transport",
		"  space  play",
		"  ←/→    seek",
		"",
		"  q      quit",
	}, "\n"), out)
}

func TestRollPlayheadColumn(t *testing.T) {
	r := NewRoll(theme.New(nil))
	r.Width = 5 + 16
	r.Seconds = 8

	// the note is ahead of the playhead, so column 4 is empty
	store := notes.NewStore([]notes.Note{
		{Pitch: 60, Velocity: 100, Start: 4, End: 5},
	})
	row := []rune(strings.Split(r.Render(store, 0), "\n")[0])[labelWidth:]
	assert.Equal(t, theme.New(nil).Symbols.Playhead, row[4])
}
