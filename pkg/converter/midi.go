package converter

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// MIDI mapping constants
const (
	// MIDINoteOffset is added to the wire note value (12 + note + transpose*12)
	// to get the MIDI note; an untransposed C plays as MIDI 48
	MIDINoteOffset = 24

	lowestMIDINote  = MIDINoteOffset + 12
	normalVelocity  = 100
	accentVelocity  = 127
	accentThreshold = 100
)

// MIDINote returns the MIDI note number a step plays
func (s Step) MIDINote() uint8 {
	return MIDINoteOffset + 12 + s.Note + uint8(s.Transpose)*12
}

// StepFromMIDINote maps a MIDI note onto the note/transpose range of a step.
// Notes outside the three octaves plus upper C are folded in by octaves.
func StepFromMIDINote(note uint8) Step {
	rel := int(note) - lowestMIDINote
	for rel < 0 {
		rel += 12
	}
	for rel > 36 {
		rel -= 12
	}

	step := DefaultStep()
	if rel == 36 {
		step.Note = UpperC
		step.Transpose = TransposeUp
		return step
	}
	step.Note = uint8(rel % 12)
	step.Transpose = Transpose(rel / 12)
	return step
}

// MIDIConverter handles MIDI file parsing and generation
type MIDIConverter struct {
	ticksPerQuarter uint16
	tempo           float64
}

// NewMIDIConverter creates a new MIDI converter
func NewMIDIConverter() *MIDIConverter {
	return &MIDIConverter{
		ticksPerQuarter: 480,
		tempo:           120.0,
	}
}

// Tempo returns the tempo used for generated files, or the one found by the last ParseMIDI
func (m *MIDIConverter) Tempo() float64 {
	return m.tempo
}

// SetTempo sets the tempo written into generated files
func (m *MIDIConverter) SetTempo(bpm float64) {
	if bpm > 0 {
		m.tempo = bpm
	}
}

// ParseMIDIFile reads a MIDI file and extracts pattern data
func (m *MIDIConverter) ParseMIDIFile(filename string) (*Pattern, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read MIDI file: %w", err)
	}
	return m.ParseMIDI(data)
}

// ParseMIDI quantizes the first bar of MIDI data into a pattern
func (m *MIDIConverter) ParseMIDI(data []byte) (*Pattern, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		m.ticksPerQuarter = mt.Resolution()
	}
	ticksPerStep := int64(m.ticksPerQuarter) / 4
	if ticksPerStep == 0 {
		return nil, errors.New("MIDI resolution too low")
	}

	type noteSpan struct {
		start, end int64
		note       uint8
		velocity   uint8
	}
	var spans []noteSpan

	for _, track := range s.Tracks {
		var tick int64
		open := make(map[uint8]int)
		for _, ev := range track {
			tick += int64(ev.Delta)

			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) && bpm > 0 {
				m.tempo = bpm
			}

			msg := midi.Message(ev.Message)
			var channel, key, velocity uint8
			switch {
			case msg.GetNoteStart(&channel, &key, &velocity):
				open[key] = len(spans)
				spans = append(spans, noteSpan{start: tick, end: -1, note: key, velocity: velocity})
			case msg.GetNoteEnd(&channel, &key):
				if i, ok := open[key]; ok {
					spans[i].end = tick
					delete(open, key)
				}
			}
		}
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	pattern := NewPattern()
	for i := range pattern.Steps {
		pattern.Steps[i].Time = TimeRest
	}

	last := -1
	for _, sp := range spans {
		idx := int(sp.start / ticksPerStep)
		if idx >= StepCount {
			break
		}
		step := StepFromMIDINote(sp.note)
		step.Accent = sp.velocity > accentThreshold
		pattern.Steps[idx] = step
		last = max(last, idx)

		// sustained notes become ties
		if sp.end < 0 {
			continue
		}
		endIdx := int((sp.end - 1) / ticksPerStep)
		for t := idx + 1; t <= endIdx && t < StepCount; t++ {
			if pattern.Steps[t].Time != TimeRest {
				break
			}
			tied := step
			tied.Accent = false
			tied.Time = TimeTie
			pattern.Steps[t] = tied
			last = max(last, t)
		}
	}

	pattern.ActiveSteps = StepCount
	if last >= 0 {
		pattern.ActiveSteps = uint8(last + 1)
	}
	return pattern, nil
}

// GenerateMIDI creates a one bar MIDI file from a Pattern
func (m *MIDIConverter) GenerateMIDI(pattern *Pattern) ([]byte, error) {
	if pattern == nil {
		return nil, errors.New("nil pattern")
	}
	if err := pattern.Validate(); err != nil {
		return nil, err
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(m.ticksPerQuarter)

	var track smf.Track
	track.Add(0, smf.MetaTempo(m.tempo))
	track.Add(0, smf.MetaMeter(4, 4))

	// 16th notes, or 16th triplets in triplet time
	ticksPerStep := uint32(m.ticksPerQuarter) / 4
	if pattern.Triplet {
		ticksPerStep = uint32(m.ticksPerQuarter) / 6
	}

	numSteps := int(pattern.ActiveSteps)
	if numSteps < 1 {
		numSteps = 1
	}
	if numSteps > StepCount {
		numSteps = StepCount
	}
	totalTicks := uint32(numSteps) * ticksPerStep

	// 75% of a step for the staccato 303 feel
	gate := (ticksPerStep * 3) / 4

	type timedMsg struct {
		tick uint32
		msg  midi.Message
	}
	var events []timedMsg
	channel := uint8(0)

	for i := 0; i < numSteps; i++ {
		step := pattern.Steps[i]
		if step.Time != TimeNormal {
			continue
		}

		start := uint32(i) * ticksPerStep
		velocity := uint8(normalVelocity)
		if step.Accent {
			velocity = accentVelocity
		}

		// slides overlap into the next step
		duration := gate
		if step.Slide {
			duration = ticksPerStep + ticksPerStep/4
		}

		ties := 0
		for j := i + 1; j < numSteps && pattern.Steps[j].Time == TimeTie; j++ {
			ties++
		}
		if ties > 0 {
			duration = ticksPerStep * uint32(ties+1)
			if !step.Slide {
				duration -= ticksPerStep / 8
			}
		}

		events = append(events,
			timedMsg{tick: start, msg: midi.NoteOn(channel, step.MIDINote(), velocity)},
			timedMsg{tick: start + duration, msg: midi.NoteOff(channel, step.MIDINote())},
		)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].tick < events[j].tick })

	var currentTick uint32
	for _, ev := range events {
		track.Add(ev.tick-currentTick, ev.msg)
		currentTick = ev.tick
	}

	// pad to exactly one pattern length
	if currentTick < totalTicks {
		track.Close(totalTicks - currentTick)
	} else {
		track.Close(0)
	}

	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteMIDIFile writes MIDI data to a file
func (m *MIDIConverter) WriteMIDIFile(pattern *Pattern, filename string) error {
	data, err := m.GenerateMIDI(pattern)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
