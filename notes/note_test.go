package notes

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		note Note
		ok   bool
	}{
		{"valid", Note{Pitch: 60, Velocity: 100, Start: 0, End: 1}, true},
		{"silent velocity", Note{Pitch: 60, Velocity: 0, Start: 0, End: 1}, true},
		{"pitch high", Note{Pitch: 128, Velocity: 100, Start: 0, End: 1}, false},
		{"pitch negative", Note{Pitch: -1, Velocity: 100, Start: 0, End: 1}, false},
		{"velocity high", Note{Pitch: 60, Velocity: 300, Start: 0, End: 1}, false},
		{"negative start", Note{Pitch: 60, Velocity: 100, Start: -0.5, End: 1}, false},
		{"zero duration", Note{Pitch: 60, Velocity: 100, Start: 1, End: 1}, false},
		{"negative duration", Note{Pitch: 60, Velocity: 100, Start: 2, End: 1}, false},
		{"nan end", Note{Pitch: 60, Velocity: 100, Start: 0, End: math.NaN()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.note.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrInvalidNote), "got %v", err)
			}
		})
	}
}

func TestNewStoreSortsAndDrops(t *testing.T) {
	input := []Note{
		{Pitch: 64, Velocity: 90, Start: 1.0, End: 1.5},
		{Pitch: 60, Velocity: 90, Start: 0.0, End: 0.5},
		{Pitch: 62, Velocity: 90, Start: 1.0, End: 2.5},
		{Pitch: 70, Velocity: 90, Start: 3.0, End: 3.0}, // zero length
	}
	s := NewStore(input)

	require.Equal(t, 3, s.Len())
	assert.Equal(t, 60, s.At(0).Pitch)
	// equal starts keep input order
	assert.Equal(t, 64, s.At(1).Pitch)
	assert.Equal(t, 62, s.At(2).Pitch)
	assert.Equal(t, 2.5, s.Duration())

	// store owns its copy
	input[1].Pitch = 0
	assert.Equal(t, 60, s.At(0).Pitch)
	got := s.Notes()
	got[0].Pitch = 1
	assert.Equal(t, 60, s.At(0).Pitch)
}

func TestEmptyStore(t *testing.T) {
	s := NewStore(nil)
	assert.True(t, s.Empty())
	assert.Zero(t, s.Duration())

	var nilStore *Store
	assert.True(t, nilStore.Empty())
	assert.Nil(t, nilStore.Notes())
}

func TestWindow(t *testing.T) {
	s := NewStore([]Note{
		{Pitch: 60, Velocity: 90, Start: 0, End: 2},
		{Pitch: 62, Velocity: 90, Start: 1, End: 1.5},
		{Pitch: 64, Velocity: 90, Start: 3, End: 4},
	})

	w := s.Window(1.6, 3)
	require.Len(t, w, 1)
	assert.Equal(t, 60, w[0].Pitch)

	assert.Len(t, s.Window(0, 10), 3)
	assert.Empty(t, s.Window(5, 6))
}

func TestSMFRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mid")
	in := []Note{
		{Pitch: 60, Velocity: 100, Start: 0, End: 0.5},
		{Pitch: 64, Velocity: 80, Start: 0.5, End: 1.0},
		{Pitch: 64, Velocity: 70, Start: 1.0, End: 1.25}, // retrigger on shared tick
		{Pitch: 67, Velocity: 60, Start: 0.25, End: 2.0},
	}
	require.NoError(t, WriteSMF(path, in, 90, 0))

	out, err := ReadSMF(path)
	require.NoError(t, err)
	require.Len(t, out, len(in))

	want := NewStore(in).Notes()
	for i := range want {
		assert.Equal(t, want[i].Pitch, out[i].Pitch, "note %d", i)
		assert.Equal(t, want[i].Velocity, out[i].Velocity, "note %d", i)
		assert.InDelta(t, want[i].Start, out[i].Start, 0.002, "note %d", i)
		assert.InDelta(t, want[i].End, out[i].End, 0.002, "note %d", i)
	}
}

func TestWriteSMFRejectsBadTempo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.mid")
	assert.Error(t, WriteSMF(path, nil, 0, 0))
	assert.Error(t, WriteSMF(path, nil, 120, 16))
}

func TestReadSMFMissingFile(t *testing.T) {
	_, err := ReadSMF(filepath.Join(t.TempDir(), "nope.mid"))
	assert.Error(t, err)
}
