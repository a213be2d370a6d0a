package midi

import (
	"context"
	"sync"
	"time"

	"go-pianoroll/debug"
)

// Port is an opened output the watcher can hand out and later close
type Port interface {
	Sink
	Name() string
	Close() error
}

// DeviceEvent is emitted when the watched output connects/disconnects.
// On disconnect Port is the port that went away, still open: the receiver
// closes it once nothing sends to it any more.
type DeviceEvent struct {
	Type DeviceEventType
	Port Port
	Name string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// Watcher handles hot-plug detection of the configured output port
type Watcher struct {
	portName string
	pollRate time.Duration
	events   chan DeviceEvent

	mu      sync.Mutex
	current Port

	// swapped in tests
	list func() ([]string, error)
	open func(name string) (Port, error)
}

// NewWatcher watches for an output port matching portName (empty = first port)
func NewWatcher(portName string, pollRate time.Duration) *Watcher {
	if pollRate <= 0 {
		pollRate = time.Second
	}
	return &Watcher{
		portName: portName,
		pollRate: pollRate,
		events:   make(chan DeviceEvent, 16),
		list:     ListOutPorts,
		open: func(name string) (Port, error) {
			return OpenPortSink(name)
		},
	}
}

// Events returns a channel of connect/disconnect events
func (w *Watcher) Events() <-chan DeviceEvent {
	return w.events
}

// Current returns the connected port, or nil
func (w *Watcher) Current() Port {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run starts the polling loop (blocking - run in goroutine)
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollRate)
	defer ticker.Stop()

	// Initial scan
	w.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			w.closeCurrent()
			close(w.events)
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *Watcher) scan(ctx context.Context) {
	names, err := w.list()
	if err != nil {
		// enumeration hung or failed - skip this scan
		debug.Log("watcher", "list ports: %v", err)
		return
	}

	idx := MatchPort(names, w.portName)

	w.mu.Lock()
	cur := w.current
	w.mu.Unlock()

	if cur != nil {
		for _, n := range names {
			if n == cur.Name() {
				return
			}
		}
		// Configured port went away
		name := cur.Name()
		w.mu.Lock()
		w.current = nil
		w.mu.Unlock()
		debug.Log("watcher", "disconnected %s", name)
		if !w.emit(ctx, DeviceEvent{Type: DeviceDisconnected, Port: cur, Name: name}) {
			// nobody will receive it
			cur.Close()
			return
		}
	}

	if idx < 0 {
		return
	}

	port, err := w.open(names[idx])
	if err != nil {
		debug.Log("watcher", "open %s: %v", names[idx], err)
		return
	}

	w.mu.Lock()
	w.current = port
	w.mu.Unlock()

	debug.Log("watcher", "connected %s", port.Name())
	w.emit(ctx, DeviceEvent{Type: DeviceConnected, Port: port, Name: port.Name()})
}

func (w *Watcher) emit(ctx context.Context, ev DeviceEvent) bool {
	select {
	case w.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *Watcher) closeCurrent() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current != nil {
		w.current.Close()
		w.current = nil
	}
}
