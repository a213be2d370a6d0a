package midi

import (
	"sync"
	"time"
)

// Recorder is an in-memory Sink that keeps every event it receives
type Recorder struct {
	mu     sync.Mutex
	now    func() time.Time
	events []Event
	err    error
}

// NewRecorder creates a recorder stamping events with time.Now
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// NewRecorderWithClock stamps events with now instead of time.Now
func NewRecorderWithClock(now func() time.Time) *Recorder {
	return &Recorder{now: now}
}

// FailWith makes every following call return err (events are still kept)
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *Recorder) add(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.At = r.now()
	r.events = append(r.events, e)
	return r.err
}

func (r *Recorder) NoteOn(channel, key, velocity uint8) error {
	return r.add(Event{Type: NoteOn, Channel: channel, Note: key, Velocity: velocity})
}

func (r *Recorder) NoteOff(channel, key uint8) error {
	return r.add(Event{Type: NoteOff, Channel: channel, Note: key})
}

func (r *Recorder) ControlChange(channel, controller, value uint8) error {
	return r.add(Event{Type: CC, Channel: channel, Note: controller, Velocity: value})
}

func (r *Recorder) ProgramChange(channel, program uint8) error {
	return r.add(Event{Type: Program, Channel: channel, Note: program})
}

// Events returns a copy of everything recorded so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of recorded events
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Reset forgets all recorded events
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Filter returns recorded events of the given type
func (r *Recorder) Filter(typ uint8) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// Sounding replays the recording and returns the keys per channel that got
// a note-on without a later note-off or all-notes-off.
func (r *Recorder) Sounding() map[uint8][]uint8 {
	held := make(map[[2]uint8]bool)
	for _, e := range r.Events() {
		switch {
		case e.Type == NoteOn && e.Velocity > 0:
			held[[2]uint8{e.Channel, e.Note}] = true
		case e.Type == NoteOn, e.Type == NoteOff:
			delete(held, [2]uint8{e.Channel, e.Note})
		case e.Type == CC && (e.Note == CCAllNotesOff || e.Note == CCAllSoundOff):
			for k := range held {
				if k[0] == e.Channel {
					delete(held, k)
				}
			}
		}
	}
	out := make(map[uint8][]uint8)
	for k := range held {
		out[k[0]] = append(out[k[0]], k[1])
	}
	return out
}
