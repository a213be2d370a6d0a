package theme

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gpl = `GIMP Palette
Name: test ramp
Columns: 2
# black to white
  0   0   0	Black
255 255 255	White
300 0 0	Overflow
`

func writePalette(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "p.gpl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadGPL(t *testing.T) {
	p, err := LoadGPL(writePalette(t, gpl))
	require.NoError(t, err)
	assert.Equal(t, "test ramp", p.Name)
	require.Len(t, p.Colors, 2)
	assert.Equal(t, RGB{255, 255, 255}, p.Colors[1])
}

func TestLoadGPLEmpty(t *testing.T) {
	_, err := LoadGPL(writePalette(t, "GIMP Palette\nName: nothing\n"))
	assert.Error(t, err)

	_, err = LoadGPL(filepath.Join(t.TempDir(), "missing.gpl"))
	assert.Error(t, err)
}

func TestLoadFallsBackToPlasma(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "plasma", p.Name)
}

func TestLookupInterpolates(t *testing.T) {
	p := &Palette{Colors: []RGB{{0, 0, 0}, {200, 100, 50}}}
	assert.Equal(t, RGB{0, 0, 0}, p.Lookup(-1))
	assert.Equal(t, RGB{100, 50, 25}, p.Lookup(0.5))
	assert.Equal(t, RGB{200, 100, 50}, p.Lookup(2))

	single := &Palette{Colors: []RGB{{1, 2, 3}}}
	assert.Equal(t, RGB{1, 2, 3}, single.Lookup(0.5))
	assert.Equal(t, RGB{1, 2, 3}, single.Index(4))
}

func TestThemeColors(t *testing.T) {
	th := New(nil)
	assert.Equal(t, "plasma", th.Palette.Name)
	assert.Equal(t, lipgloss.Color("#0d0887"), th.BG())
	assert.Equal(t, lipgloss.Color("#f0f921"), th.Success())
	assert.Equal(t, th.Muted(), th.Velocity(0))
	assert.Equal(t, "#ff0080", Hex(RGB{255, 0, 128}))
}
