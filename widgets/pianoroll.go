package widgets

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-pianoroll/midi"
	"go-pianoroll/notes"
	"go-pianoroll/theme"
)

const labelWidth = 5

// Roll renders the notes around the playhead, one row per pitch with the
// highest pitch on top. The playhead sits a quarter of the way in.
type Roll struct {
	Theme   *theme.Theme
	Width   int     // total columns including the pitch label
	Seconds float64 // visible time span
	MaxRows int
}

func NewRoll(th *theme.Theme) *Roll {
	return &Roll{Theme: th, Width: 72, Seconds: 8, MaxRows: 12}
}

// window returns the visible time span and seconds per column
func (r *Roll) window(pos float64) (from, to, step float64) {
	cols := r.Width - labelWidth
	if cols < 1 {
		cols = 1
	}
	from = pos - r.Seconds/4
	to = from + r.Seconds
	return from, to, r.Seconds / float64(cols)
}

// Render draws store around pos
func (r *Roll) Render(store *notes.Store, pos float64) string {
	from, to, step := r.window(pos)
	visible := store.Window(from, to)

	muted := lipgloss.NewStyle().Foreground(r.Theme.Muted())
	if len(visible) == 0 {
		return muted.Render("(no notes here)")
	}

	rows := r.pitches(visible)
	cols := r.Width - labelWidth
	playCol := int(math.Floor((pos - from) / step))

	var lines []string
	for _, pitch := range rows {
		var line strings.Builder
		line.WriteString(muted.Render(fmt.Sprintf("%-*s", labelWidth, midi.NoteName(pitch))))

		for col := 0; col < cols; col++ {
			t0 := from + float64(col)*step
			t1 := t0 + step
			line.WriteString(r.cell(visible, pitch, t0, t1, pos, col == playCol))
		}
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// pitches returns the rows to draw, highest first
func (r *Roll) pitches(visible []notes.Note) []int {
	seen := make(map[int]bool)
	var out []int
	for _, n := range visible {
		if !seen[n.Pitch] {
			seen[n.Pitch] = true
			out = append(out, n.Pitch)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	if r.MaxRows > 0 && len(out) > r.MaxRows {
		out = out[:r.MaxRows]
	}
	return out
}

func (r *Roll) cell(visible []notes.Note, pitch int, t0, t1, pos float64, playhead bool) string {
	sym := r.Theme.Symbols

	for _, n := range visible {
		if n.Pitch != pitch || n.End <= t0 || n.Start >= t1 {
			continue
		}
		ch := sym.NoteBody
		if n.Start >= t0 {
			ch = sym.NoteStart
		}
		style := lipgloss.NewStyle().Foreground(r.Theme.Velocity(n.Velocity))
		if n.Start <= pos && n.End > pos {
			ch = sym.NoteLive
			style = style.Foreground(r.Theme.Success())
		}
		return style.Render(string(ch))
	}

	switch {
	case playhead:
		return lipgloss.NewStyle().Foreground(r.Theme.Cursor()).Render(string(sym.Playhead))
	case math.Floor(t0) != math.Floor(t1) || t0 == math.Floor(t0):
		return lipgloss.NewStyle().Foreground(r.Theme.Surface()).Render(string(sym.Beat))
	}
	return lipgloss.NewStyle().Foreground(r.Theme.Surface()).Render(string(sym.Empty))
}

// RenderProgress draws a position bar: "━━━━━━╸──────  0:12 / 0:45"
func RenderProgress(th *theme.Theme, pos, duration float64, width int) string {
	if width < 1 {
		width = 1
	}
	frac := 0.0
	if duration > 0 {
		frac = math.Max(0, math.Min(1, pos/duration))
	}
	done := int(frac * float64(width))

	bar := lipgloss.NewStyle().Foreground(th.Accent()).Render(strings.Repeat("━", done)) +
		lipgloss.NewStyle().Foreground(th.Muted()).Render(strings.Repeat("─", width-done))
	return fmt.Sprintf("%s  %s / %s", bar, FormatClock(pos), FormatClock(duration))
}

// FormatClock renders seconds as m:ss.t
func FormatClock(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	tenths := int(sec * 10)
	return fmt.Sprintf("%d:%02d.%d", tenths/600, tenths/10%60, tenths%10)
}
