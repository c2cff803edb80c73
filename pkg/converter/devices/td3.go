// Package devices provides device-specific format handlers
package devices

import (
	"fmt"

	"github.com/james-see/td3pattern/pkg/converter"
)

// TD3 device constants
const (
	TD3DeviceID     = 0x00 // TD-3 device ID in SysEx
	TD3Manufacturer = 0x20 // Behringer manufacturer ID (part 1)
	TD3ManufID2     = 0x32 // Behringer manufacturer ID (part 2)
	TD3ModelID      = 0x01 // TD-3 model ID
	TD3CommandBank  = 0x0A
	TD3ProductName  = "TD-3"
)

// SysEx command bytes
const (
	CmdProductName     = 0x06
	CmdFirmwareVersion = 0x08
	CmdPatternRequest  = 0x77
	CmdPatternDump     = 0x78
)

// Pattern payload layout. Offsets are relative to the payload that follows
// the SysEx header, i.e. the command byte is at offset 0.
const (
	PayloadSize       = 115
	GroupOffset       = 0x01
	SlotOffset        = 0x02
	NotesOffset       = 0x05 // 16 nibble pairs, high nibble first
	AccentsOffset     = 0x25 // 16 byte pairs, flag in the second byte
	SlidesOffset      = 0x45 // 16 byte pairs, flag in the second byte
	TripletOffset     = 0x66
	ActiveStepsOffset = 0x67 // nibble pair
	TieOffset         = 0x6B // 4 bytes, nibble-interleaved mask
	RestOffset        = 0x6F // 4 bytes, nibble-interleaved mask

	upperCFlag = 0x08 // bit 3 of the high note nibble
	upperCNote = 0x30 // raw value the sequencer also uses for upper C
)

// TD3 implements the Device interface for Behringer TD-3
type TD3 struct{}

// NewTD3 creates a new TD-3 device handler
func NewTD3() *TD3 {
	return &TD3{}
}

// Name returns the device name
func (t *TD3) Name() string {
	return "Behringer TD-3"
}

// ID returns the device ID
func (t *TD3) ID() uint8 {
	return TD3DeviceID
}

// SysExHeader returns the bytes between F0 and the command byte
func (t *TD3) SysExHeader() []byte {
	return []byte{0x00, TD3Manufacturer, TD3ManufID2, TD3DeviceID, TD3ModelID, TD3CommandBank}
}

// ProductNameRequest returns the payload asking for the product name
func (t *TD3) ProductNameRequest() []byte {
	return []byte{CmdProductName}
}

// FirmwareVersionRequest returns the payload asking for the firmware version
func (t *TD3) FirmwareVersionRequest() []byte {
	return []byte{CmdFirmwareVersion, 0x00}
}

// PatternRequest returns the payload asking for the pattern stored in slot
func (t *TD3) PatternRequest(slot converter.Slot) ([]byte, error) {
	if err := slot.Validate(); err != nil {
		return nil, err
	}
	return []byte{CmdPatternRequest, slot.Group, slot.Pattern + slot.AB<<3}, nil
}

// BytesToMask assembles a 16 bit step mask from four nibbles.
// Wire order is bits 4-7, 0-3, 12-15, 8-11.
func BytesToMask(b [4]byte) uint16 {
	return uint16(b[0])<<4 | uint16(b[1]) | uint16(b[2])<<12 | uint16(b[3])<<8
}

// MaskToBytes splits a 16 bit step mask into the four wire nibbles
func MaskToBytes(mask uint16) [4]byte {
	return [4]byte{
		byte((mask & 0x00F0) >> 4),
		byte(mask & 0x000F),
		byte((mask & 0xF000) >> 12),
		byte((mask & 0x0F00) >> 8),
	}
}

// DecodePattern decodes a pattern dump payload
func (t *TD3) DecodePattern(payload []byte) (*converter.Pattern, error) {
	if len(payload) != PayloadSize {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", converter.ErrPayloadSize, len(payload), PayloadSize)
	}

	tie := BytesToMask([4]byte(payload[TieOffset : TieOffset+4]))
	rest := BytesToMask([4]byte(payload[RestOffset : RestOffset+4]))

	pattern := converter.NewPattern()
	for n := range pattern.Steps {
		dn := n * 2
		hi := payload[NotesOffset+dn]
		raw := (int(payload[NotesOffset+1+dn]) + int(hi)<<4) & 0x7F

		upperC := int(hi&upperCFlag) >> 3
		if raw == upperCNote {
			upperC = 1
		}

		transpose := raw/12 - 1 - upperC
		if transpose < int(converter.TransposeDown) || transpose > int(converter.TransposeUp) {
			return nil, fmt.Errorf("%w: step %d: transpose %d from raw note 0x%02X", converter.ErrMalformedField, n+1, transpose, raw)
		}

		pattern.Steps[n] = converter.Step{
			Note:      uint8(raw%12 + upperC*12),
			Transpose: converter.Transpose(transpose),
			Accent:    payload[AccentsOffset+1+dn] == 1,
			Slide:     payload[SlidesOffset+1+dn] == 1,
			Time:      converter.TimeFromBits(tie>>n, rest>>n),
		}
	}

	pattern.Triplet = payload[TripletOffset] == 1
	pattern.ActiveSteps = payload[ActiveStepsOffset]<<4 + payload[ActiveStepsOffset+1]
	return pattern, nil
}

// EncodePattern encodes a pattern into a 115 byte dump payload addressed to slot
func (t *TD3) EncodePattern(pattern *converter.Pattern, slot converter.Slot) ([]byte, error) {
	if err := pattern.Validate(); err != nil {
		return nil, err
	}
	if err := slot.Validate(); err != nil {
		return nil, err
	}

	payload := make([]byte, PayloadSize)
	payload[0] = CmdPatternDump
	payload[GroupOffset] = slot.Group
	payload[SlotOffset] = slot.Pattern + slot.AB<<3
	payload[3] = 0x00
	payload[4] = 0x01

	var tie, rest uint16
	for i, step := range pattern.Steps {
		d := i * 2
		note := 12 + step.Note + uint8(step.Transpose)*12
		if step.Note >= converter.UpperC {
			note += 0x80
		}
		payload[NotesOffset+d] = (note & 0xF0) >> 4
		payload[NotesOffset+1+d] = note & 0x0F
		payload[AccentsOffset+1+d] = boolByte(step.Accent)
		payload[SlidesOffset+1+d] = boolByte(step.Slide)

		tie |= step.Time.TieBit() << i
		rest |= step.Time.RestBit() << i
	}

	payload[TripletOffset] = boolByte(pattern.Triplet)
	payload[ActiveStepsOffset] = (pattern.ActiveSteps & 0xF0) >> 4
	payload[ActiveStepsOffset+1] = pattern.ActiveSteps & 0x0F

	tieBytes := MaskToBytes(tie)
	restBytes := MaskToBytes(rest)
	copy(payload[TieOffset:], tieBytes[:])
	copy(payload[RestOffset:], restBytes[:])
	return payload, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
