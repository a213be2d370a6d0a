package midi

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"go-pianoroll/debug"
)

// Sink is the destination for playback events. Implementations are handed
// to the engine already open; the engine never opens or closes them.
type Sink interface {
	NoteOn(channel, key, velocity uint8) error
	NoteOff(channel, key uint8) error
	ControlChange(channel, controller, value uint8) error
}

// ProgramChanger is implemented by sinks that can switch instruments
type ProgramChanger interface {
	ProgramChange(channel, program uint8) error
}

// Output validates and serializes calls into a Sink. It is safe for
// concurrent use and never panics, whatever state the sink is in.
type Output struct {
	mu   sync.Mutex
	sink Sink
	log  *log.Entry
}

// NewOutput wraps s. A nil sink is allowed; every call becomes a no-op.
func NewOutput(s Sink) *Output {
	return &Output{
		sink: s,
		log:  debug.Category("sink"),
	}
}

// SetSink replaces the sink; nil detaches it
func (o *Output) SetSink(s Sink) {
	o.mu.Lock()
	o.sink = s
	o.mu.Unlock()
}

// Available reports whether a sink is attached
func (o *Output) Available() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sink != nil
}

// NoteOn sends a note-on. Out of range values are logged and dropped.
func (o *Output) NoteOn(channel, pitch, velocity int) {
	if !validChannel(channel) || !validData(pitch) || !validData(velocity) {
		o.log.WithFields(log.Fields{
			"channel":  channel,
			"pitch":    pitch,
			"velocity": velocity,
		}).Warn("note on rejected")
		return
	}
	o.send("note on", func(s Sink) error {
		return s.NoteOn(uint8(channel), uint8(pitch), uint8(velocity))
	})
}

// NoteOff sends a note-off. Out of range values are logged and dropped.
func (o *Output) NoteOff(channel, pitch int) {
	if !validChannel(channel) || !validData(pitch) {
		o.log.WithFields(log.Fields{
			"channel": channel,
			"pitch":   pitch,
		}).Warn("note off rejected")
		return
	}
	o.send("note off", func(s Sink) error {
		return s.NoteOff(uint8(channel), uint8(pitch))
	})
}

// AllNotesOff sends CC 123 on channel, or on every channel for AllChannels
func (o *Output) AllNotesOff(channel int) {
	o.controlChange(channel, CCAllNotesOff, 0)
}

// Panic sends all-sound-off and all-notes-off on every channel
func (o *Output) Panic() {
	o.log.Info("panic")
	for ch := 0; ch < NumChannels; ch++ {
		o.controlChange(ch, CCAllSoundOff, 0)
		o.controlChange(ch, CCAllNotesOff, 0)
	}
}

// Volume sets channel volume (CC 7); v is clamped to 0..1
func (o *Output) Volume(channel int, v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	o.controlChange(channel, CCVolume, int(v*maxDataByte+0.5))
}

// ProgramChange selects an instrument if the sink supports it
func (o *Output) ProgramChange(channel, program int) {
	if !validChannel(channel) || !validData(program) {
		o.log.WithFields(log.Fields{
			"channel": channel,
			"program": program,
		}).Warn("program change rejected")
		return
	}
	o.send("program change", func(s Sink) error {
		pc, ok := s.(ProgramChanger)
		if !ok {
			o.log.Debug("sink has no program change")
			return nil
		}
		return pc.ProgramChange(uint8(channel), uint8(program))
	})
}

func (o *Output) controlChange(channel int, controller uint8, value int) {
	if channel == AllChannels {
		for ch := 0; ch < NumChannels; ch++ {
			o.controlChange(ch, controller, value)
		}
		return
	}
	if !validChannel(channel) || !validData(value) {
		o.log.WithFields(log.Fields{
			"channel":    channel,
			"controller": controller,
			"value":      value,
		}).Warn("control change rejected")
		return
	}
	o.send("control change", func(s Sink) error {
		return s.ControlChange(uint8(channel), controller, uint8(value))
	})
}

// send runs fn against the sink under the lock, turning errors and panics
// from misbehaving sinks into log lines.
func (o *Output) send(what string, fn func(Sink) error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.log.WithField("panic", fmt.Sprint(r)).Errorf("%s: sink panicked", what)
		}
	}()
	if err := fn(o.sink); err != nil {
		o.log.WithError(err).Errorf("%s failed", what)
	}
}

func validChannel(ch int) bool {
	return ch >= 0 && ch < NumChannels
}

func validData(v int) bool {
	return v >= 0 && v <= maxDataByte
}
