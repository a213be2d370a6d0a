package midi

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"go-pianoroll/debug"
)

// LogSink writes every event to the debug log instead of a device.
// Used for dry runs.
type LogSink struct {
	log *log.Entry
}

func NewLogSink() *LogSink {
	return &LogSink{log: debug.Category("dry-run")}
}

func (s *LogSink) NoteOn(channel, key, velocity uint8) error {
	s.log.WithFields(log.Fields{"ch": channel + 1, "note": NoteName(int(key)), "vel": velocity}).Info("note on")
	return nil
}

func (s *LogSink) NoteOff(channel, key uint8) error {
	s.log.WithFields(log.Fields{"ch": channel + 1, "note": NoteName(int(key))}).Info("note off")
	return nil
}

func (s *LogSink) ControlChange(channel, controller, value uint8) error {
	s.log.WithFields(log.Fields{"ch": channel + 1, "cc": controller, "value": value}).Debug("control change")
	return nil
}

func (s *LogSink) ProgramChange(channel, program uint8) error {
	s.log.WithFields(log.Fields{"ch": channel + 1, "program": program}).Info("program change")
	return nil
}

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName renders a MIDI key as scientific pitch, e.g. 60 -> C4
func NoteName(key int) string {
	if key < 0 || key > maxDataByte {
		return "?"
	}
	return fmt.Sprintf("%s%d", noteNames[key%12], key/12-1)
}
