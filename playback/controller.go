package playback

import (
	"errors"
	"fmt"
	"math"
	"sync"

	log "github.com/sirupsen/logrus"

	"go-pianoroll/midi"
	"go-pianoroll/notes"
)

// ErrLoopStuck means the scheduler loop did not exit in time. Notes may
// still be sounding on the old sink.
var ErrLoopStuck = errors.New("playback loop did not stop")

// Controller is the transport: it owns the playback position, starts and
// stops the scheduler loop and guarantees an all-notes-off whenever
// notes may be left sounding. All methods are safe for concurrent use.
type Controller struct {
	mu    sync.Mutex // serializes writers
	state transportState

	opts options
	log  *log.Entry
	out  *midi.Output

	store   *notes.Store
	loop    *scheduler
	ended   chan struct{}
	volume  float64 // < 0 until set
	program int     // < 0 until set
	closed  bool
}

// New creates a stopped controller playing into sink. A nil sink is
// allowed; Play does nothing until one is installed with SetSink.
func New(sink midi.Sink, opts ...Option) *Controller {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &Controller{
		opts:    o,
		log:     o.log,
		out:     midi.NewOutput(sink),
		store:   notes.NewStore(nil),
		ended:   make(chan struct{}),
		volume:  -1,
		program: -1,
	}
	c.state.p.Store(&transport{
		mode:  Stopped,
		bpm:   o.bpm,
		scale: o.bpm / o.referenceBPM,
	})
	return c
}

// SetNotes stops playback and replaces the note store. Position goes
// back to 0. The only error is a loop that would not stop.
func (c *Controller) SetNotes(ns []notes.Note) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// the old loop may still read the old store
	if err := c.stopLocked(); err != nil {
		return fmt.Errorf("set notes: %w", err)
	}
	c.store = notes.NewStore(ns)
	c.log.WithFields(log.Fields{
		"notes":    c.store.Len(),
		"dropped":  len(ns) - c.store.Len(),
		"duration": c.store.Duration(),
	}).Info("notes loaded")
	return nil
}

// Play starts or resumes playback. It logs and does nothing when there
// are no notes or no sink.
func (c *Controller) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.log.Warn("play after close")
		return
	}
	if c.store.Empty() {
		c.log.Warn("play: no notes loaded")
		return
	}
	if !c.out.Available() {
		c.log.Warn("play: no output available")
		return
	}
	if c.loop != nil && c.loop.alive() && c.loop.halting() {
		c.log.Error("play: previous loop still shutting down")
		return
	}

	now := c.opts.now()
	old, cur, changed := c.state.update(func(t *transport) bool {
		if t.mode == Playing {
			return false
		}
		// paused or stopped: resume from the frozen position
		t.mode = Playing
		t.anchor = now
		return true
	})
	if changed {
		c.log.WithFields(log.Fields{
			"from":     old.mode,
			"position": cur.position,
			"bpm":      cur.bpm,
		}).Info("play")
	}

	// a loop alive while stopped is finishing its natural end
	if old.mode == Stopped || c.loop == nil || !c.loop.alive() {
		if c.loop != nil {
			if err := c.loop.halt(c.opts.stopTimeout); err != nil {
				c.log.WithError(err).Error("play")
				c.state.update(func(t *transport) bool {
					t.mode = Stopped
					t.epoch++
					return true
				})
				return
			}
		}
		if isClosed(c.ended) {
			c.ended = make(chan struct{})
		}
		c.loop = newScheduler(c, c.ended)
		c.loop.start()
	}
}

// Pause freezes the position and silences sounding notes. No-op unless
// playing.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.now()
	_, cur, changed := c.state.update(func(t *transport) bool {
		if t.mode != Playing {
			return false
		}
		t.position = t.positionAt(now)
		t.mode = Paused
		t.epoch++
		return true
	})
	if !changed {
		return
	}
	c.out.AllNotesOff(c.opts.channel)
	c.log.WithField("position", cur.position).Info("pause")
}

// Toggle pauses while playing and plays otherwise
func (c *Controller) Toggle() {
	if c.IsPlaying() {
		c.Pause()
	} else {
		c.Play()
	}
}

// Stop halts the loop, silences notes and rewinds to 0. Safe to call in
// any state; a second call does nothing.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *Controller) stopLocked() error {
	live := c.loop != nil && c.loop.alive()

	_, _, changed := c.state.update(func(t *transport) bool {
		if t.mode == Stopped && t.position == 0 {
			return false
		}
		t.mode = Stopped
		t.position = 0
		t.epoch++
		return true
	})
	if !live && !changed {
		c.loop = nil
		return nil
	}

	if c.loop != nil {
		if err := c.loop.halt(c.opts.stopTimeout); err != nil {
			// the loop may be blocked inside the sink; don't queue behind it
			c.log.WithError(err).Error("stop")
			return err
		}
		c.loop = nil
	}
	c.out.AllNotesOff(c.opts.channel)
	c.log.Info("stop")
	return nil
}

// Seek moves the playhead. Negative positions clamp to 0. Sounding notes
// are silenced in every mode; while playing, notes straddling the new
// position are restarted and notes already elapsed are skipped.
func (c *Controller) Seek(pos float64) {
	if math.IsNaN(pos) {
		c.log.Warn("seek: NaN position ignored")
		return
	}
	if pos < 0 {
		pos = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.out.AllNotesOff(c.opts.channel)
	now := c.opts.now()
	c.state.update(func(t *transport) bool {
		t.position = pos
		t.anchor = now
		t.epoch++
		return true
	})
	c.log.WithField("position", pos).Debug("seek")
}

// SetTempo changes the tempo without moving the playhead. Non-positive
// values are ignored.
func (c *Controller) SetTempo(bpm float64) {
	if !validBPM(bpm) {
		c.log.WithField("bpm", bpm).Warn("set tempo: invalid bpm ignored")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.now()
	c.state.update(func(t *transport) bool {
		t.position = t.positionAt(now)
		t.anchor = now
		t.bpm = bpm
		t.scale = bpm / c.opts.referenceBPM
		return true
	})
	c.log.WithField("bpm", bpm).Debug("tempo")
}

// Position returns the logical playhead in seconds. Lock free.
func (c *Controller) Position() float64 {
	return c.state.load().positionAt(c.opts.now())
}

func (c *Controller) IsPlaying() bool {
	return c.state.load().mode == Playing
}

func (c *Controller) Mode() Mode {
	return c.state.load().mode
}

// Tempo returns the current bpm
func (c *Controller) Tempo() float64 {
	return c.state.load().bpm
}

// Duration returns the end of the last note in seconds
func (c *Controller) Duration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Duration()
}

func (c *Controller) NoteCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}

// Notes returns a copy of the loaded notes in start order
func (c *Controller) Notes() []notes.Note {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Notes()
}

// Done is closed when the current play session reaches its natural end.
// Stop does not close it. A Play after the end starts a new session with
// a new channel.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

// SetInstrument sends a program change on the playback channel
func (c *Controller) SetInstrument(program int) {
	if program < 0 || program > 127 {
		c.log.WithField("program", program).Warn("set instrument: out of range")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.program = program
	c.out.ProgramChange(c.opts.channel, program)
}

// SetVolume sets channel volume, 0..1
func (c *Controller) SetVolume(v float64) {
	if math.IsNaN(v) {
		return
	}
	v = math.Max(0, math.Min(1, v))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = v
	c.out.Volume(c.opts.channel, v)
}

// Volume returns the last volume set, or 1 if never set
func (c *Controller) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.volume < 0 {
		return 1
	}
	return c.volume
}

// SetSink stops playback on the current sink and switches to s (nil to
// detach). Instrument and volume are sent again to the new sink.
func (c *Controller) SetSink(s midi.Sink) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.stopLocked(); err != nil {
		return fmt.Errorf("set sink: %w", err)
	}
	c.out.SetSink(s)
	if s == nil {
		c.log.Info("output detached")
		return nil
	}
	if c.program >= 0 {
		c.out.ProgramChange(c.opts.channel, c.program)
	}
	if c.volume >= 0 {
		c.out.Volume(c.opts.channel, c.volume)
	}
	c.log.Info("output attached")
	return nil
}

// Panic sends all-sound-off and all-notes-off on every channel
func (c *Controller) Panic() {
	c.out.Panic()
}

// Close stops playback. Further Play calls are ignored.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.stopLocked()
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
