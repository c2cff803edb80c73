// Package converter provides conversion between TD-3 SysEx dumps, the editable text format and MIDI files
package converter

import (
	"fmt"
	"strings"
)

// Pattern dimensions
const (
	StepCount          = 16
	DefaultActiveSteps = 1
	UpperC             = 12 // note index of the C one octave up ("C^")
)

// NoteNames maps a step note (0-12) to its text token
var NoteNames = [...]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B", "C^"}

// NoteName returns the text token of a note, or "?" when out of range
func NoteName(note uint8) string {
	if int(note) >= len(NoteNames) {
		return "?"
	}
	return NoteNames[note]
}

// Transpose is the octave register of a step
type Transpose uint8

const (
	TransposeDown   Transpose = 0
	TransposeNormal Transpose = 1
	TransposeUp     Transpose = 2
)

var transposeNames = [...]string{"Down", "Normal", "Up"}

func (t Transpose) String() string {
	if int(t) < len(transposeNames) {
		return transposeNames[t]
	}
	return fmt.Sprintf("Transpose(%d)", uint8(t))
}

// Valid reports whether t is one of the three registers
func (t Transpose) Valid() bool {
	return t <= TransposeUp
}

// MarshalText implements encoding.TextMarshaler
func (t Transpose) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: transpose %d", ErrMalformedField, uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *Transpose) UnmarshalText(text []byte) error {
	for i, name := range transposeNames {
		if strings.EqualFold(name, string(text)) {
			*t = Transpose(i)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown transpose %q", ErrMalformedField, text)
}

// Time is the tie/rest class of a step. The values are the wire bits:
// bit 0 is the tie-mask bit, bit 1 is the rest-mask bit.
type Time uint8

const (
	TimeTie     Time = 0b00
	TimeNormal  Time = 0b01
	TimeTieRest Time = 0b10
	TimeRest    Time = 0b11
)

var timeNames = [...]string{"Tie", "Normal", "TieRest", "Rest"}

func (t Time) String() string {
	if int(t) < len(timeNames) {
		return timeNames[t]
	}
	return fmt.Sprintf("Time(%d)", uint8(t))
}

// Valid reports whether t is one of the four classes
func (t Time) Valid() bool {
	return t <= TimeRest
}

// TieBit returns the bit stored in the tie mask
func (t Time) TieBit() uint16 {
	return uint16(t) & 0b01
}

// RestBit returns the bit stored in the rest mask
func (t Time) RestBit() uint16 {
	return (uint16(t) & 0b10) >> 1
}

// TimeFromBits combines a tie-mask bit and a rest-mask bit
func TimeFromBits(tie, rest uint16) Time {
	return Time((tie & 1) | (rest&1)<<1)
}

// IsRest reports whether the step is silent
func (t Time) IsRest() bool {
	return t.RestBit() == 1
}

// MarshalText implements encoding.TextMarshaler
func (t Time) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: time %d", ErrMalformedField, uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *Time) UnmarshalText(text []byte) error {
	for i, name := range timeNames {
		if strings.EqualFold(name, string(text)) {
			*t = Time(i)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown time %q", ErrMalformedField, text)
}

// Step represents a single step in a pattern
type Step struct {
	Note      uint8     `json:"note"` // 0-11 chromatic, 12 = C^
	Transpose Transpose `json:"transpose"`
	Accent    bool      `json:"accent"`
	Slide     bool      `json:"slide"`
	Time      Time      `json:"time"`
}

// DefaultStep returns an untransposed C with no accent, slide, tie or rest.
// The zero Step is not the default: its transpose is Down and its time is Tie.
func DefaultStep() Step {
	return Step{Note: 0, Transpose: TransposeNormal, Time: TimeNormal}
}

// Validate checks that every field is inside its range
func (s Step) Validate() error {
	if s.Note > UpperC {
		return fmt.Errorf("%w: note %d out of range 0-%d", ErrMalformedField, s.Note, UpperC)
	}
	if !s.Transpose.Valid() {
		return fmt.Errorf("%w: transpose %d out of range", ErrMalformedField, uint8(s.Transpose))
	}
	if !s.Time.Valid() {
		return fmt.Errorf("%w: time %d out of range", ErrMalformedField, uint8(s.Time))
	}
	return nil
}

// Pattern represents a TD-3 sequencer pattern
type Pattern struct {
	Steps       [StepCount]Step `json:"steps"`
	Triplet     bool            `json:"triplet"`
	ActiveSteps uint8           `json:"active_steps"`
}

// NewPattern returns a pattern of 16 default steps with one active step
func NewPattern() *Pattern {
	p := &Pattern{ActiveSteps: DefaultActiveSteps}
	for i := range p.Steps {
		p.Steps[i] = DefaultStep()
	}
	return p
}

// Validate checks every step of the pattern
func (p *Pattern) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil pattern", ErrMalformedField)
	}
	for i, s := range p.Steps {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

// Slot addresses a pattern memory on the device. All fields are 0-based.
type Slot struct {
	Group   uint8 `json:"group"`   // 0-3
	Pattern uint8 `json:"pattern"` // 0-7
	AB      uint8 `json:"ab"`      // 0 = A, 1 = B
}

// ParseSlot parses the 1-based group ("1".."4") and pattern ("1A".."8B") arguments
func ParseSlot(group, pattern string) (Slot, error) {
	var slot Slot
	if len(group) != 1 || group[0] < '1' || group[0] > '4' {
		return slot, fmt.Errorf("group %q is invalid: should be from 1 to 4", group)
	}
	slot.Group = group[0] - '1'

	if len(pattern) != 2 {
		return slot, fmt.Errorf("pattern %q is invalid: should consist of number from 1 to 8 and letter A or B", pattern)
	}
	if pattern[0] < '1' || pattern[0] > '8' {
		return slot, fmt.Errorf("pattern %q is invalid: should start with number from 1 to 8", pattern)
	}
	slot.Pattern = pattern[0] - '1'

	switch pattern[1] {
	case 'A', 'a':
		slot.AB = 0
	case 'B', 'b':
		slot.AB = 1
	default:
		return slot, fmt.Errorf("pattern %q is invalid: should end with letter A or B", pattern)
	}
	return slot, nil
}

// Validate checks the slot against the device's memory layout
func (s Slot) Validate() error {
	switch {
	case s.Group > 3:
		return fmt.Errorf("invalid group %d", s.Group)
	case s.Pattern > 7:
		return fmt.Errorf("invalid pattern %d", s.Pattern)
	case s.AB > 1:
		return fmt.Errorf("invalid ab %d", s.AB)
	}
	return nil
}

// Side returns "A" or "B"
func (s Slot) Side() string {
	if s.AB == 0 {
		return "A"
	}
	return "B"
}

// String renders the slot the way it is typed on the command line, e.g. "Group 1 Pattern 2B"
func (s Slot) String() string {
	return fmt.Sprintf("Group %d Pattern %d%s", s.Group+1, s.Pattern+1, s.Side())
}

// Device interface for device-specific binary handling
type Device interface {
	Name() string
	// SysExHeader is the part of every SysEx message between F0 and the command byte
	SysExHeader() []byte
	DecodePattern(payload []byte) (*Pattern, error)
	EncodePattern(pattern *Pattern, slot Slot) ([]byte, error)
}

// Converter handles format conversions
type Converter struct {
	device Device
	slot   Slot
	tempo  float64
}

// New creates a new Converter with the specified device
func New(device Device) *Converter {
	return &Converter{device: device}
}

// GetDevice returns the current device
func (c *Converter) GetDevice() Device {
	return c.device
}

// SetDevice sets the device for conversion
func (c *Converter) SetDevice(device Device) {
	c.device = device
}

// Slot returns the slot written into generated SysEx
func (c *Converter) Slot() Slot {
	return c.slot
}

// SetSlot sets the slot written into generated SysEx
func (c *Converter) SetSlot(slot Slot) {
	c.slot = slot
}

// Tempo returns the tempo written into generated MIDI, or the one read by the last MIDI load
func (c *Converter) Tempo() float64 {
	return c.midiConverter().Tempo()
}

// SetTempo sets the tempo written into generated MIDI. Non-positive values keep the default.
func (c *Converter) SetTempo(bpm float64) {
	if bpm > 0 {
		c.tempo = bpm
	}
}

func (c *Converter) midiConverter() *MIDIConverter {
	m := NewMIDIConverter()
	m.SetTempo(c.tempo)
	return m
}
