package midi

import "errors"

// Tee sends every event to all of its sinks, in order. Errors are joined;
// one failing sink does not stop the others.
type Tee []Sink

func (t Tee) NoteOn(channel, key, velocity uint8) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.NoteOn(channel, key, velocity))
	}
	return errors.Join(errs...)
}

func (t Tee) NoteOff(channel, key uint8) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.NoteOff(channel, key))
	}
	return errors.Join(errs...)
}

func (t Tee) ControlChange(channel, controller, value uint8) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.ControlChange(channel, controller, value))
	}
	return errors.Join(errs...)
}

// ProgramChange reaches only the sinks that support it
func (t Tee) ProgramChange(channel, program uint8) error {
	var errs []error
	for _, s := range t {
		if pc, ok := s.(ProgramChanger); ok {
			errs = append(errs, pc.ProgramChange(channel, program))
		}
	}
	return errors.Join(errs...)
}
