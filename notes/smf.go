package notes

import (
	"fmt"
	"math"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"go-pianoroll/debug"
)

// TicksPerQuarter is the resolution used for exported files
const TicksPerQuarter = 960

// ReadSMF loads every note of a Standard MIDI File, on any track or channel.
// Times come out in seconds, honoring the file's tempo map.
func ReadSMF(path string) ([]Note, error) {
	type key struct {
		track   int
		channel uint8
		pitch   uint8
	}
	type pending struct {
		start    float64
		velocity uint8
	}

	open := make(map[key][]pending)
	var out []Note
	var last float64

	rd := smf.ReadTracks(path).Do(func(ev smf.TrackEvent) {
		at := float64(ev.AbsMicroSeconds) / 1e6
		if at > last {
			last = at
		}

		var ch, pitch, vel uint8
		msg := midi.Message(ev.Message)
		switch {
		case msg.GetNoteStart(&ch, &pitch, &vel):
			k := key{ev.TrackNo, ch, pitch}
			open[k] = append(open[k], pending{start: at, velocity: vel})
		case msg.GetNoteEnd(&ch, &pitch):
			k := key{ev.TrackNo, ch, pitch}
			stack := open[k]
			if len(stack) == 0 {
				return
			}
			// first in, first out for overlapping notes of the same key
			p := stack[0]
			open[k] = stack[1:]
			out = append(out, Note{
				Pitch:    int(pitch),
				Velocity: int(p.velocity),
				Start:    p.start,
				End:      at,
			})
		}
	})
	if err := rd.Error(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	// notes never released end with the file
	for k, stack := range open {
		for _, p := range stack {
			debug.Log("notes", "unterminated note %d on track %d, ending at %.3fs", k.pitch, k.track, last)
			out = append(out, Note{Pitch: int(k.pitch), Velocity: int(p.velocity), Start: p.start, End: last})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	return out, nil
}

// WriteSMF exports ns as a format 1 file at a fixed tempo: a tempo track
// followed by one note track on channel.
func WriteSMF(path string, ns []Note, bpm float64, channel uint8) error {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return fmt.Errorf("invalid tempo %v", bpm)
	}
	if channel > 15 {
		return fmt.Errorf("invalid channel %d", channel)
	}

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	var tempo smf.Track
	tempo.Add(0, smf.MetaMeter(4, 4))
	tempo.Add(0, smf.MetaTempo(bpm))
	tempo.Close(0)
	if err := sm.Add(tempo); err != nil {
		return fmt.Errorf("error adding tempo track: %w", err)
	}

	type tickEvent struct {
		tick uint32
		off  bool
		msg  midi.Message
	}

	ticksPerSecond := bpm / 60 * TicksPerQuarter
	toTick := func(sec float64) uint32 {
		return uint32(math.Round(sec * ticksPerSecond))
	}

	var events []tickEvent
	for _, n := range NewStore(ns).notes {
		events = append(events,
			tickEvent{tick: toTick(n.Start), msg: midi.NoteOn(channel, uint8(n.Pitch), uint8(n.Velocity))},
			tickEvent{tick: toTick(n.End), off: true, msg: midi.NoteOff(channel, uint8(n.Pitch))},
		)
	}
	// releases go first on a shared tick so repeated keys retrigger
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].off && !events[j].off
	})

	var track smf.Track
	var prev uint32
	for _, e := range events {
		track.Add(e.tick-prev, e.msg)
		prev = e.tick
	}
	track.Close(0)
	if err := sm.Add(track); err != nil {
		return fmt.Errorf("error adding note track: %w", err)
	}

	if err := sm.WriteFile(path); err != nil {
		return fmt.Errorf("error writing MIDI file: %w", err)
	}
	return nil
}
