package devices

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/james-see/td3pattern/pkg/converter"
)

func TestTD3Name(t *testing.T) {
	td3 := NewTD3()
	if td3.Name() != "Behringer TD-3" {
		t.Errorf("Name() = %q, want %q", td3.Name(), "Behringer TD-3")
	}
}

func TestTD3ID(t *testing.T) {
	td3 := NewTD3()
	if td3.ID() != TD3DeviceID {
		t.Errorf("ID() = %d, want %d", td3.ID(), TD3DeviceID)
	}
}

func TestTD3SysExHeader(t *testing.T) {
	want := []byte{0x00, 0x20, 0x32, 0x00, 0x01, 0x0A}
	if got := NewTD3().SysExHeader(); !bytes.Equal(got, want) {
		t.Errorf("SysExHeader() = % X, want % X", got, want)
	}
}

func TestTD3Requests(t *testing.T) {
	td3 := NewTD3()

	if got := td3.ProductNameRequest(); !bytes.Equal(got, []byte{0x06}) {
		t.Errorf("ProductNameRequest() = % X, want 06", got)
	}
	if got := td3.FirmwareVersionRequest(); !bytes.Equal(got, []byte{0x08, 0x00}) {
		t.Errorf("FirmwareVersionRequest() = % X, want 08 00", got)
	}

	got, err := td3.PatternRequest(converter.Slot{Group: 3, Pattern: 6, AB: 1})
	if err != nil {
		t.Fatalf("PatternRequest() error = %v", err)
	}
	if want := []byte{0x77, 0x03, 0x0E}; !bytes.Equal(got, want) {
		t.Errorf("PatternRequest() = % X, want % X", got, want)
	}

	if _, err := td3.PatternRequest(converter.Slot{Group: 4}); err == nil {
		t.Error("PatternRequest() expected error for group 4")
	}
}

func TestMaskPacking(t *testing.T) {
	tests := []struct {
		wire [4]byte
		mask uint16
	}{
		{[4]byte{0x0, 0x0, 0x0, 0x0}, 0x0000},
		{[4]byte{0x0, 0x1, 0x0, 0x0}, 0x0001},
		{[4]byte{0x1, 0x0, 0x0, 0x0}, 0x0010},
		{[4]byte{0x0, 0x0, 0x0, 0x1}, 0x0100},
		{[4]byte{0x0, 0x0, 0x1, 0x0}, 0x1000},
		{[4]byte{0x1, 0x2, 0x3, 0x4}, 0x3412},
		{[4]byte{0xF, 0xF, 0xF, 0xF}, 0xFFFF},
	}

	for _, tt := range tests {
		if got := BytesToMask(tt.wire); got != tt.mask {
			t.Errorf("BytesToMask(% X) = 0x%04X, want 0x%04X", tt.wire, got, tt.mask)
		}
		if got := MaskToBytes(tt.mask); got != tt.wire {
			t.Errorf("MaskToBytes(0x%04X) = % X, want % X", tt.mask, got, tt.wire)
		}
	}
}

func TestEncodeDefaultPattern(t *testing.T) {
	td3 := NewTD3()
	p := converter.NewPattern()
	p.ActiveSteps = 16
	p.Triplet = true

	payload, err := td3.EncodePattern(p, converter.Slot{Group: 1, Pattern: 2, AB: 1})
	if err != nil {
		t.Fatalf("EncodePattern() error = %v", err)
	}
	if len(payload) != PayloadSize {
		t.Fatalf("len(payload) = %d, want %d", len(payload), PayloadSize)
	}

	if want := []byte{0x78, 0x01, 0x0A, 0x00, 0x01}; !bytes.Equal(payload[:5], want) {
		t.Errorf("payload header = % X, want % X", payload[:5], want)
	}
	// C with normal transpose composes to 24
	if payload[NotesOffset] != 0x01 || payload[NotesOffset+1] != 0x08 {
		t.Errorf("note pair = %02X %02X, want 01 08", payload[NotesOffset], payload[NotesOffset+1])
	}
	if payload[TripletOffset] != 1 {
		t.Errorf("triplet byte = %d, want 1", payload[TripletOffset])
	}
	if payload[ActiveStepsOffset] != 0x01 || payload[ActiveStepsOffset+1] != 0x00 {
		t.Errorf("active steps = %02X %02X, want 01 00", payload[ActiveStepsOffset], payload[ActiveStepsOffset+1])
	}
	// every step Normal: tie bits set, rest bits clear
	if got := BytesToMask([4]byte(payload[TieOffset : TieOffset+4])); got != 0xFFFF {
		t.Errorf("tie mask = 0x%04X, want 0xFFFF", got)
	}
	if got := BytesToMask([4]byte(payload[RestOffset : RestOffset+4])); got != 0 {
		t.Errorf("rest mask = 0x%04X, want 0", got)
	}

	decoded, err := td3.DecodePattern(payload)
	if err != nil {
		t.Fatalf("DecodePattern() error = %v", err)
	}
	if *decoded != *p {
		t.Errorf("DecodePattern() = %+v, want %+v", *decoded, *p)
	}
}

func TestEncodeNoteNibbles(t *testing.T) {
	tests := []struct {
		name   string
		step   converter.Step
		hi, lo byte
	}{
		{"C down", converter.Step{Note: 0, Transpose: converter.TransposeDown}, 0x00, 0x0C},
		{"B up", converter.Step{Note: 11, Transpose: converter.TransposeUp}, 0x02, 0x0F},
		{"upper C down", converter.Step{Note: converter.UpperC, Transpose: converter.TransposeDown}, 0x09, 0x08},
		{"upper C up", converter.Step{Note: converter.UpperC, Transpose: converter.TransposeUp}, 0x0B, 0x00},
	}

	td3 := NewTD3()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := converter.NewPattern()
			tt.step.Time = converter.TimeNormal
			p.Steps[3] = tt.step

			payload, err := td3.EncodePattern(p, converter.Slot{})
			if err != nil {
				t.Fatalf("EncodePattern() error = %v", err)
			}
			hi, lo := payload[NotesOffset+6], payload[NotesOffset+7]
			if hi != tt.hi || lo != tt.lo {
				t.Errorf("note pair = %02X %02X, want %02X %02X", hi, lo, tt.hi, tt.lo)
			}

			decoded, err := td3.DecodePattern(payload)
			if err != nil {
				t.Fatalf("DecodePattern() error = %v", err)
			}
			if decoded.Steps[3] != tt.step {
				t.Errorf("decoded step = %+v, want %+v", decoded.Steps[3], tt.step)
			}
		})
	}
}

func mixedPattern() *converter.Pattern {
	p := converter.NewPattern()
	for i := range p.Steps {
		p.Steps[i] = converter.Step{
			Note:      uint8(i % 13),
			Transpose: converter.Transpose(i % 3),
			Accent:    i%2 == 0,
			Slide:     i%4 == 1,
			Time:      converter.Time(i % 4),
		}
	}
	p.ActiveSteps = 11
	return p
}

func TestRoundTrip(t *testing.T) {
	td3 := NewTD3()
	p := mixedPattern()
	slot := converter.Slot{Group: 2, Pattern: 7, AB: 0}

	payload, err := td3.EncodePattern(p, slot)
	if err != nil {
		t.Fatalf("EncodePattern() error = %v", err)
	}
	decoded, err := td3.DecodePattern(payload)
	if err != nil {
		t.Fatalf("DecodePattern() error = %v", err)
	}
	if *decoded != *p {
		t.Fatalf("DecodePattern() = %+v, want %+v", *decoded, *p)
	}

	again, err := td3.EncodePattern(decoded, slot)
	if err != nil {
		t.Fatalf("EncodePattern() error = %v", err)
	}
	if !bytes.Equal(again, payload) {
		t.Errorf("re-encoded payload differs\n got % X\nwant % X", again, payload)
	}
}

func TestDecodeEncodeDevicePayload(t *testing.T) {
	td3 := NewTD3()

	// composed note nibble pairs: C, B up, upper C down, upper C up, F down, upper C
	notes := [][2]byte{{0x01, 0x08}, {0x02, 0x0F}, {0x09, 0x08}, {0x0B, 0x00}, {0x01, 0x01}, {0x0A, 0x04}}

	payload := make([]byte, PayloadSize)
	payload[0] = CmdPatternDump
	payload[GroupOffset] = 3
	payload[SlotOffset] = 6 + 1<<3
	payload[4] = 0x01
	for n := 0; n < converter.StepCount; n++ {
		pair := notes[n%len(notes)]
		payload[NotesOffset+2*n] = pair[0]
		payload[NotesOffset+1+2*n] = pair[1]
		payload[AccentsOffset+1+2*n] = byte(n % 2)
		payload[SlidesOffset+1+2*n] = byte(n / 3 % 2)
	}
	payload[TripletOffset] = 1
	payload[ActiveStepsOffset+1] = 0x0D
	copy(payload[TieOffset:], []byte{0x0F, 0x0A, 0x03, 0x0C})
	copy(payload[RestOffset:], []byte{0x01, 0x00, 0x08, 0x04})

	p, err := td3.DecodePattern(payload)
	if err != nil {
		t.Fatalf("DecodePattern() error = %v", err)
	}
	if p.ActiveSteps != 13 || !p.Triplet {
		t.Errorf("ActiveSteps = %d, Triplet = %v, want 13, true", p.ActiveSteps, p.Triplet)
	}

	slot := converter.Slot{Group: 3, Pattern: 6, AB: 1}
	again, err := td3.EncodePattern(p, slot)
	if err != nil {
		t.Fatalf("EncodePattern() error = %v", err)
	}
	if !bytes.Equal(again, payload) {
		t.Errorf("re-encoded payload differs\n got % X\nwant % X", again, payload)
	}
}

func TestDecodeUpperCSpecialCase(t *testing.T) {
	td3 := NewTD3()
	payload, err := td3.EncodePattern(converter.NewPattern(), converter.Slot{})
	if err != nil {
		t.Fatalf("EncodePattern() error = %v", err)
	}

	// raw 0x30 without the upper-C nibble bit
	payload[NotesOffset] = 0x03
	payload[NotesOffset+1] = 0x00

	p, err := td3.DecodePattern(payload)
	if err != nil {
		t.Fatalf("DecodePattern() error = %v", err)
	}
	if p.Steps[0].Note != converter.UpperC || p.Steps[0].Transpose != converter.TransposeUp {
		t.Errorf("step 1 = %d/%v, want %d/%v", p.Steps[0].Note, p.Steps[0].Transpose, converter.UpperC, converter.TransposeUp)
	}
}

func TestDecodeTieRestBits(t *testing.T) {
	td3 := NewTD3()
	payload, err := td3.EncodePattern(converter.NewPattern(), converter.Slot{})
	if err != nil {
		t.Fatalf("EncodePattern() error = %v", err)
	}

	tie := MaskToBytes(0b0101)
	rest := MaskToBytes(0b0011)
	copy(payload[TieOffset:], tie[:])
	copy(payload[RestOffset:], rest[:])

	p, err := td3.DecodePattern(payload)
	if err != nil {
		t.Fatalf("DecodePattern() error = %v", err)
	}

	want := []converter.Time{converter.TimeRest, converter.TimeTieRest, converter.TimeNormal, converter.TimeTie}
	for i, w := range want {
		if p.Steps[i].Time != w {
			t.Errorf("step %d time = %v, want %v", i+1, p.Steps[i].Time, w)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	td3 := NewTD3()

	for _, size := range []int{0, 1, PayloadSize - 1, PayloadSize + 1} {
		_, err := td3.DecodePattern(make([]byte, size))
		if !errors.Is(err, converter.ErrPayloadSize) {
			t.Errorf("DecodePattern(%d bytes) error = %v, want ErrPayloadSize", size, err)
		}
	}

	// raw note 0 yields transpose -1
	_, err := td3.DecodePattern(make([]byte, PayloadSize))
	if !errors.Is(err, converter.ErrMalformedField) {
		t.Errorf("DecodePattern(zeros) error = %v, want ErrMalformedField", err)
	}

	// raw note 12 is C with transpose Down
	payload := make([]byte, PayloadSize)
	for n := 0; n < converter.StepCount; n++ {
		payload[NotesOffset+1+2*n] = 0x0C
	}
	p, err := td3.DecodePattern(payload)
	if err != nil {
		t.Fatalf("DecodePattern() error = %v", err)
	}
	if p.Steps[0].Transpose != converter.TransposeDown || p.Steps[0].Note != 0 {
		t.Errorf("step 1 = %d/%v, want 0/Down", p.Steps[0].Note, p.Steps[0].Transpose)
	}
	if p.Steps[0].Time != converter.TimeTie {
		t.Errorf("step 1 time = %v, want Tie", p.Steps[0].Time)
	}
}

func TestEncodeErrors(t *testing.T) {
	td3 := NewTD3()

	p := converter.NewPattern()
	p.Steps[0].Note = 13
	if _, err := td3.EncodePattern(p, converter.Slot{}); !errors.Is(err, converter.ErrMalformedField) {
		t.Errorf("EncodePattern() error = %v, want ErrMalformedField", err)
	}

	if _, err := td3.EncodePattern(converter.NewPattern(), converter.Slot{AB: 2}); err == nil {
		t.Error("EncodePattern() expected error for invalid slot")
	}

	if _, err := td3.EncodePattern(nil, converter.Slot{}); err == nil {
		t.Error("EncodePattern(nil) expected error")
	}
}

func TestTD3SyxFraming(t *testing.T) {
	td3 := NewTD3()
	syx := converter.NewSyxConverter(td3)
	p := mixedPattern()

	data, err := syx.GenerateSyx(p, converter.Slot{Group: 0, Pattern: 0, AB: 1})
	if err != nil {
		t.Fatalf("GenerateSyx() error = %v", err)
	}
	if len(data) != 1+len(td3.SysExHeader())+PayloadSize+1 {
		t.Errorf("len(syx) = %d, want %d", len(data), 1+len(td3.SysExHeader())+PayloadSize+1)
	}
	if !converter.IsBehringerSyx(data) {
		t.Error("IsBehringerSyx() = false for generated dump")
	}

	back, err := syx.ParseSyx(data)
	if err != nil {
		t.Fatalf("ParseSyx() error = %v", err)
	}
	if *back != *p {
		t.Errorf("ParseSyx() = %+v, want %+v", *back, *p)
	}
}

func TestSaveFileAddressesSlot(t *testing.T) {
	td3 := NewTD3()
	conv := converter.New(td3)
	conv.SetSlot(converter.Slot{Group: 1, Pattern: 1, AB: 1})

	path := filepath.Join(t.TempDir(), "pattern1-2B.syx")
	if err := conv.SaveFile(mixedPattern(), path); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	payload, err := converter.NewSyxConverter(td3).Unwrap(data)
	if err != nil {
		t.Fatalf("Unwrap() error = %v", err)
	}
	if payload[GroupOffset] != 1 || payload[SlotOffset] != 1+8 {
		t.Errorf("slot bytes = %d %d, want 1 9", payload[GroupOffset], payload[SlotOffset])
	}

	back, err := conv.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if *back != *mixedPattern() {
		t.Errorf("LoadFile() = %+v, want %+v", *back, *mixedPattern())
	}
}
