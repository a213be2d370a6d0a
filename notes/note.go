package notes

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"go-pianoroll/debug"
)

// ErrInvalidNote is wrapped by every Validate failure
var ErrInvalidNote = errors.New("invalid note")

// Note is a single pitched event on the timeline, in seconds
type Note struct {
	Pitch    int     `json:"pitch"`
	Velocity int     `json:"velocity"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
}

// Duration returns End - Start
func (n Note) Duration() float64 {
	return n.End - n.Start
}

// Validate checks ranges and that the note has a positive duration
func (n Note) Validate() error {
	switch {
	case n.Pitch < 0 || n.Pitch > 127:
		return fmt.Errorf("%w: pitch %d out of range", ErrInvalidNote, n.Pitch)
	case n.Velocity < 0 || n.Velocity > 127:
		return fmt.Errorf("%w: velocity %d out of range", ErrInvalidNote, n.Velocity)
	case math.IsNaN(n.Start) || math.IsInf(n.Start, 0) || n.Start < 0:
		return fmt.Errorf("%w: start %v", ErrInvalidNote, n.Start)
	case math.IsNaN(n.End) || math.IsInf(n.End, 0):
		return fmt.Errorf("%w: end %v", ErrInvalidNote, n.End)
	case n.End <= n.Start:
		return fmt.Errorf("%w: end %.3f not after start %.3f", ErrInvalidNote, n.End, n.Start)
	}
	return nil
}

// Store is an immutable, start-sorted snapshot of notes.
// Replace it wholesale; never edit it.
type Store struct {
	notes    []Note
	duration float64
}

// NewStore copies ns, drops invalid notes and sorts by start (stable).
func NewStore(ns []Note) *Store {
	s := &Store{notes: make([]Note, 0, len(ns))}
	for i, n := range ns {
		if err := n.Validate(); err != nil {
			debug.Log("notes", "dropping note %d: %v", i, err)
			continue
		}
		s.notes = append(s.notes, n)
		if n.End > s.duration {
			s.duration = n.End
		}
	}
	sort.SliceStable(s.notes, func(i, j int) bool {
		return s.notes[i].Start < s.notes[j].Start
	})
	return s
}

// Len returns the number of notes
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.notes)
}

// Empty reports whether there is nothing to play
func (s *Store) Empty() bool {
	return s.Len() == 0
}

// At returns the i-th note in start order
func (s *Store) At(i int) Note {
	return s.notes[i]
}

// Notes returns a copy of the sorted notes
func (s *Store) Notes() []Note {
	if s == nil {
		return nil
	}
	out := make([]Note, len(s.notes))
	copy(out, s.notes)
	return out
}

// Duration returns the latest note end, 0 for an empty store
func (s *Store) Duration() float64 {
	if s == nil {
		return 0
	}
	return s.duration
}

// Window returns the notes overlapping [from, to)
func (s *Store) Window(from, to float64) []Note {
	if s == nil {
		return nil
	}
	// notes starting at or after `to` can be skipped
	end := sort.Search(len(s.notes), func(i int) bool {
		return s.notes[i].Start >= to
	})
	var out []Note
	for _, n := range s.notes[:end] {
		if n.End > from {
			out = append(out, n)
		}
	}
	return out
}
