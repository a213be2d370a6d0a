package playback

import (
	"time"

	log "github.com/sirupsen/logrus"

	"go-pianoroll/debug"
)

// Defaults for the scheduler loop
const (
	DefaultReferenceBPM = 120.0
	DefaultStopTimeout  = 500 * time.Millisecond

	defaultBasePoll = 5 * time.Millisecond
	defaultMinPoll  = 1 * time.Millisecond
	defaultMaxPoll  = 10 * time.Millisecond
)

type Option func(*options)

type options struct {
	now          func() time.Time
	channel      int
	referenceBPM float64
	bpm          float64
	basePoll     time.Duration
	minPoll      time.Duration
	maxPoll      time.Duration
	stopTimeout  time.Duration
	onEnd        func()
	log          *log.Entry

	beforeStep func() // test hook, runs at the top of every step
}

func defaultOptions() options {
	return options{
		now:          time.Now,
		referenceBPM: DefaultReferenceBPM,
		bpm:          DefaultReferenceBPM,
		basePoll:     defaultBasePoll,
		minPoll:      defaultMinPoll,
		maxPoll:      defaultMaxPoll,
		stopTimeout:  DefaultStopTimeout,
		log:          debug.Category("playback"),
	}
}

// WithClock replaces time.Now for position math. The loop still sleeps
// in real time, so a fake clock only needs to be advanced.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithChannel sets the MIDI channel notes are played on (0-15)
func WithChannel(ch int) Option {
	return func(o *options) {
		if ch >= 0 && ch < 16 {
			o.channel = ch
		}
	}
}

// WithReferenceBPM sets the tempo at which logical seconds equal wall seconds
func WithReferenceBPM(bpm float64) Option {
	return func(o *options) {
		if validBPM(bpm) {
			o.referenceBPM = bpm
		}
	}
}

// WithTempo sets the starting tempo
func WithTempo(bpm float64) Option {
	return func(o *options) {
		if validBPM(bpm) {
			o.bpm = bpm
		}
	}
}

// WithPollInterval bounds the loop's sleep between iterations
func WithPollInterval(min, max time.Duration) Option {
	return func(o *options) {
		if min > 0 && max >= min {
			o.minPoll, o.maxPoll = min, max
		}
	}
}

// WithStopTimeout bounds how long Stop waits for the loop to exit
func WithStopTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.stopTimeout = d
		}
	}
}

// WithEndHandler installs a callback for natural end of playback.
// It runs on the loop goroutine after the loop has finished; it may call
// back into the Controller.
func WithEndHandler(fn func()) Option {
	return func(o *options) {
		o.onEnd = fn
	}
}

func WithLogger(entry *log.Entry) Option {
	return func(o *options) {
		if entry != nil {
			o.log = entry
		}
	}
}
