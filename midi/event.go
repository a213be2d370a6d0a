package midi

import "time"

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
	CC      uint8 = 0xB0
	Program uint8 = 0xC0
)

// Controller numbers used by the output helpers
const (
	CCVolume       uint8 = 7
	CCAllSoundOff  uint8 = 120
	CCAllNotesOff  uint8 = 123
	NumChannels          = 16
	AllChannels          = -1
	maxDataByte          = 127
)

// Event is a single message delivered to a sink
type Event struct {
	At       time.Time
	Type     uint8 // NoteOn, NoteOff, CC, Program
	Channel  uint8
	Note     uint8 // key for notes, controller number for CC, program for Program
	Velocity uint8 // velocity for notes, value for CC
}

// IsAllNotesOff reports whether e is a CC 123 message
func (e Event) IsAllNotesOff() bool {
	return e.Type == CC && e.Note == CCAllNotesOff
}
