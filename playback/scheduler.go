package playback

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"go-pianoroll/debug"
	"go-pianoroll/midi"
	"go-pianoroll/notes"
)

// scheduler is one playback session's timing loop. It owns next and
// sounding; everything else it only reads.
type scheduler struct {
	state   *transportState
	store   *notes.Store
	out     *midi.Output
	channel int
	opts    options
	log     *log.Entry

	quit     chan struct{}
	quitOnce sync.Once
	exited   chan struct{}
	ended    chan struct{} // closed on natural end

	epoch    uint64
	next     int
	sounding map[int]float64 // store index -> position of its note on
}

func newScheduler(c *Controller, ended chan struct{}) *scheduler {
	return &scheduler{
		state:    &c.state,
		store:    c.store,
		out:      c.out,
		channel:  c.opts.channel,
		opts:     c.opts,
		log:      c.log,
		quit:     make(chan struct{}),
		exited:   make(chan struct{}),
		ended:    ended,
		epoch:    c.state.load().epoch,
		sounding: make(map[int]float64),
	}
}

func (s *scheduler) start() {
	go s.run()
}

func (s *scheduler) run() {
	finished := false

	defer func() {
		s.out.AllNotesOff(s.channel)
		if finished {
			close(s.ended)
		}
		close(s.exited)
		if finished {
			s.log.Info("playback finished")
			if s.opts.onEnd != nil {
				s.opts.onEnd()
			}
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", fmt.Sprint(r)).Error("scheduler loop crashed")
			s.abort()
		}
	}()

	s.log.WithField("notes", s.store.Len()).Debug("loop started")

	for {
		select {
		case <-s.quit:
			s.log.Debug("loop stopped")
			return
		default:
		}

		snap := s.state.load()
		if snap.epoch != s.epoch {
			s.reset(snap.epoch)
		}

		if snap.mode == Playing {
			if s.step(snap) {
				finished = true
				return
			}
		}

		if !s.sleep(s.interval(snap)) {
			s.log.Debug("loop stopped")
			return
		}
	}
}

// step emits everything due at the snapshot's current position.
// Returns true once playback has reached its natural end.
func (s *scheduler) step(snap *transport) bool {
	if s.opts.beforeStep != nil {
		s.opts.beforeStep()
	}
	pos := snap.positionAt(s.opts.now())

	// offs first, so a key ending where the next one starts retriggers
	for _, i := range slices.Sorted(maps.Keys(s.sounding)) {
		n := s.store.At(i)
		if n.End <= pos {
			s.out.NoteOff(s.channel, n.Pitch)
			delete(s.sounding, i)
		}
	}

	for s.next < s.store.Len() {
		n := s.store.At(s.next)
		if n.Start > pos {
			break
		}
		// already elapsed notes are skipped (forward seek)
		if n.End > pos {
			s.out.NoteOn(s.channel, n.Pitch, n.Velocity)
			s.sounding[s.next] = pos
		}
		s.next++
	}

	debug.LogEvery(500, "playback", "pos=%.3f next=%d sounding=%d", pos, s.next, len(s.sounding))

	if s.next < s.store.Len() || len(s.sounding) > 0 {
		return false
	}

	// a concurrent stop, seek or pause wins over the natural end
	end := *snap
	end.mode = Stopped
	end.position = 0
	end.epoch++
	if !s.state.replace(snap, &end) {
		return false
	}
	s.epoch = end.epoch
	return true
}

// reset drops the cursor and silences anything still sounding
func (s *scheduler) reset(epoch uint64) {
	if len(s.sounding) > 0 {
		s.out.AllNotesOff(s.channel)
		clear(s.sounding)
	}
	s.next = 0
	s.epoch = epoch
}

// abort leaves the transport stopped after a crash
func (s *scheduler) abort() {
	s.state.update(func(t *transport) bool {
		if t.mode == Stopped {
			return false
		}
		t.mode = Stopped
		t.position = 0
		t.epoch++
		return true
	})
}

// interval scales the poll with tempo: faster playback, finer polling
func (s *scheduler) interval(snap *transport) time.Duration {
	if snap.mode != Playing {
		return s.opts.maxPoll
	}
	d := time.Duration(float64(s.opts.basePoll) / snap.scale)
	if d < s.opts.minPoll {
		d = s.opts.minPoll
	}
	if d > s.opts.maxPoll {
		d = s.opts.maxPoll
	}
	return d
}

// sleep waits d; false means quit was requested
func (s *scheduler) sleep(d time.Duration) bool {
	select {
	case <-s.quit:
		return false
	case <-time.After(d):
		return true
	}
}

// halt asks the loop to exit and waits up to timeout
func (s *scheduler) halt(timeout time.Duration) error {
	s.quitOnce.Do(func() { close(s.quit) })
	select {
	case <-s.exited:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%w after %v", ErrLoopStuck, timeout)
	}
}

func (s *scheduler) alive() bool {
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

func (s *scheduler) halting() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}
