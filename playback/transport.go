package playback

import (
	"math"
	"sync/atomic"
	"time"
)

// Mode is the transport state
type Mode int

const (
	Stopped Mode = iota
	Playing
	Paused
)

func (m Mode) String() string {
	switch m {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	}
	return "unknown"
}

// transport is an immutable snapshot. Every change publishes a new one,
// so readers never see a half-updated set of fields.
type transport struct {
	mode     Mode
	position float64   // logical seconds at anchor
	anchor   time.Time // wall clock matching position while playing
	bpm      float64
	scale    float64 // bpm / reference bpm

	// epoch changes whenever the loop must drop its cursor and
	// sounding notes (seek, pause, stop, reload)
	epoch uint64
}

// positionAt returns the logical position at wall time now
func (t *transport) positionAt(now time.Time) float64 {
	if t.mode != Playing {
		return t.position
	}
	elapsed := now.Sub(t.anchor).Seconds()
	if elapsed < 0 {
		// clock stepped backwards
		return t.position
	}
	return t.position + elapsed*t.scale
}

// transportState holds the current snapshot
type transportState struct {
	p atomic.Pointer[transport]
}

func (s *transportState) load() *transport {
	return s.p.Load()
}

// update applies fn to a copy of the current snapshot and publishes it.
// fn returns false to leave the state untouched. Retries if the loop
// published in between, so fn must be free of side effects.
func (s *transportState) update(fn func(t *transport) bool) (old, cur *transport, changed bool) {
	for {
		old = s.p.Load()
		next := *old
		if !fn(&next) {
			return old, old, false
		}
		if s.p.CompareAndSwap(old, &next) {
			return old, &next, true
		}
	}
}

// replace publishes next only if nothing changed since old was loaded
func (s *transportState) replace(old, next *transport) bool {
	return s.p.CompareAndSwap(old, next)
}

func validBPM(bpm float64) bool {
	return bpm > 0 && !math.IsNaN(bpm) && !math.IsInf(bpm, 0)
}
