package midi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// ErrPortNotFound is returned when no output port matches the requested name
var ErrPortNotFound = errors.New("midi output port not found")

// portTimeout bounds port enumeration (CoreMIDI can hang)
const portTimeout = 3 * time.Second

// PortSink sends events to a hardware or virtual MIDI output port
type PortSink struct {
	port drivers.Out
	send func(msg gomidi.Message) error
}

// NewPortSink opens out for sending
func NewPortSink(out drivers.Out) (*PortSink, error) {
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", out.String(), err)
	}
	return &PortSink{port: out, send: send}, nil
}

// OpenPortSink finds the output port matching name and opens it.
// An empty name picks the first output port.
func OpenPortSink(name string) (*PortSink, error) {
	outs, err := outPorts()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(outs))
	for i, p := range outs {
		names[i] = p.String()
	}
	idx := MatchPort(names, name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrPortNotFound, name)
	}
	return NewPortSink(outs[idx])
}

func (p *PortSink) Name() string {
	return p.port.String()
}

func (p *PortSink) NoteOn(channel, key, velocity uint8) error {
	return p.send(gomidi.NoteOn(channel, key, velocity))
}

func (p *PortSink) NoteOff(channel, key uint8) error {
	return p.send(gomidi.NoteOff(channel, key))
}

func (p *PortSink) ControlChange(channel, controller, value uint8) error {
	return p.send(gomidi.ControlChange(channel, controller, value))
}

func (p *PortSink) ProgramChange(channel, program uint8) error {
	return p.send(gomidi.ProgramChange(channel, program))
}

// Close closes the underlying port
func (p *PortSink) Close() error {
	return p.port.Close()
}

// ListOutPorts returns the names of all output ports
func ListOutPorts() ([]string, error) {
	outs, err := outPorts()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(outs))
	for i, p := range outs {
		names[i] = p.String()
	}
	return names, nil
}

// CloseDriver releases the MIDI driver; call once at program exit
func CloseDriver() {
	gomidi.CloseDriver()
}

func outPorts() ([]drivers.Out, error) {
	ch := make(chan []drivers.Out, 1)
	go func() {
		ch <- gomidi.GetOutPorts()
	}()

	select {
	case outs := <-ch:
		return outs, nil
	case <-time.After(portTimeout):
		// User needs to run: sudo killall coreaudiod midiserver
		return nil, errors.New("midi port enumeration timed out")
	}
}

// MatchPort returns the index of the port called want: an exact match
// wins, then a case-insensitive substring match. Empty want picks the
// first port. Returns -1 if nothing matches.
func MatchPort(names []string, want string) int {
	if len(names) == 0 {
		return -1
	}
	if want == "" {
		return 0
	}
	for i, n := range names {
		if n == want {
			return i
		}
	}
	lw := strings.ToLower(want)
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), lw) {
			return i
		}
	}
	return -1
}
