package converter

import (
	"testing"
)

func TestStepMIDINote(t *testing.T) {
	tests := []struct {
		step Step
		want uint8
	}{
		{Step{Note: 0, Transpose: TransposeDown}, 36},
		{Step{Note: 0, Transpose: TransposeNormal}, 48},
		{Step{Note: 11, Transpose: TransposeNormal}, 59},
		{Step{Note: UpperC, Transpose: TransposeNormal}, 60},
		{Step{Note: UpperC, Transpose: TransposeUp}, 72},
	}

	for _, tt := range tests {
		if got := tt.step.MIDINote(); got != tt.want {
			t.Errorf("MIDINote(%d/%v) = %d, want %d", tt.step.Note, tt.step.Transpose, got, tt.want)
		}
	}
}

func TestStepFromMIDINote(t *testing.T) {
	tests := []struct {
		midi      uint8
		note      uint8
		transpose Transpose
	}{
		{36, 0, TransposeDown},
		{48, 0, TransposeNormal},
		{59, 11, TransposeNormal},
		{60, 0, TransposeUp},
		{71, 11, TransposeUp},
		{72, UpperC, TransposeUp},
		{24, 0, TransposeDown},  // folded up
		{85, 1, TransposeUp},    // folded down
		{127, 7, TransposeUp},   // folded down twice
		{0, 0, TransposeDown},   // folded up three octaves
	}

	for _, tt := range tests {
		step := StepFromMIDINote(tt.midi)
		if step.Note != tt.note || step.Transpose != tt.transpose {
			t.Errorf("StepFromMIDINote(%d) = %d/%v, want %d/%v", tt.midi, step.Note, step.Transpose, tt.note, tt.transpose)
		}
		if err := step.Validate(); err != nil {
			t.Errorf("StepFromMIDINote(%d) produced invalid step: %v", tt.midi, err)
		}
	}
}

func TestGenerateMIDINil(t *testing.T) {
	m := NewMIDIConverter()
	if _, err := m.GenerateMIDI(nil); err == nil {
		t.Error("GenerateMIDI(nil) expected error")
	}
}

func TestMIDIRoundTrip(t *testing.T) {
	original := NewPattern()
	original.ActiveSteps = 16
	for i := range original.Steps {
		original.Steps[i].Time = TimeRest
	}
	original.Steps[0] = Step{Note: 0, Transpose: TransposeNormal, Time: TimeNormal}
	original.Steps[1] = Step{Note: 2, Transpose: TransposeNormal, Accent: true, Time: TimeNormal}
	original.Steps[4] = Step{Note: 7, Transpose: TransposeDown, Time: TimeNormal}
	original.Steps[5] = Step{Note: 7, Transpose: TransposeDown, Time: TimeTie}
	original.Steps[8] = Step{Note: 3, Transpose: TransposeUp, Time: TimeNormal}
	original.Steps[15] = Step{Note: UpperC, Transpose: TransposeUp, Time: TimeNormal}

	m := NewMIDIConverter()
	m.SetTempo(130)
	data, err := m.GenerateMIDI(original)
	if err != nil {
		t.Fatalf("GenerateMIDI() error = %v", err)
	}
	if DetectFormatFromContent(data) != FormatMIDI {
		t.Fatal("GenerateMIDI() did not produce a MIDI file")
	}

	parser := NewMIDIConverter()
	parsed, err := parser.ParseMIDI(data)
	if err != nil {
		t.Fatalf("ParseMIDI() error = %v", err)
	}

	if parser.Tempo() < 129.9 || parser.Tempo() > 130.1 {
		t.Errorf("Tempo() = %v, want 130", parser.Tempo())
	}
	if parsed.ActiveSteps != 16 {
		t.Errorf("ActiveSteps = %d, want 16", parsed.ActiveSteps)
	}

	for i, want := range original.Steps {
		got := parsed.Steps[i]
		if got.Time != want.Time {
			t.Errorf("step %d time = %v, want %v", i+1, got.Time, want.Time)
			continue
		}
		if want.Time.IsRest() {
			continue
		}
		if got.Note != want.Note || got.Transpose != want.Transpose {
			t.Errorf("step %d note = %d/%v, want %d/%v", i+1, got.Note, got.Transpose, want.Note, want.Transpose)
		}
		if want.Time == TimeNormal && got.Accent != want.Accent {
			t.Errorf("step %d accent = %v, want %v", i+1, got.Accent, want.Accent)
		}
	}
}

func TestGenerateMIDISlideOverlap(t *testing.T) {
	p := NewPattern()
	p.ActiveSteps = 2
	p.Steps[0].Slide = true
	p.Steps[1].Note = 5

	data, err := NewMIDIConverter().GenerateMIDI(p)
	if err != nil {
		t.Fatalf("GenerateMIDI() error = %v", err)
	}

	parsed, err := NewMIDIConverter().ParseMIDI(data)
	if err != nil {
		t.Fatalf("ParseMIDI() error = %v", err)
	}
	if parsed.Steps[0].Note != 0 || parsed.Steps[1].Note != 5 {
		t.Errorf("notes = %d, %d, want 0, 5", parsed.Steps[0].Note, parsed.Steps[1].Note)
	}
	if parsed.Steps[1].Time != TimeNormal {
		t.Errorf("step 2 time = %v, want Normal", parsed.Steps[1].Time)
	}
}

func TestParseMIDIInvalid(t *testing.T) {
	if _, err := NewMIDIConverter().ParseMIDI([]byte("not a midi file")); err == nil {
		t.Error("ParseMIDI() expected error for invalid data")
	}
}
