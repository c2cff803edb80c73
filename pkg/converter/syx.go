package converter

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gitlab.com/gomidi/midi/v2"
)

// SysEx constants
const (
	SysExStart = 0xF0
	SysExEnd   = 0xF7
)

// SyxConverter handles .syx file parsing and generation
type SyxConverter struct {
	device Device
}

// NewSyxConverter creates a new .syx converter
func NewSyxConverter(device Device) *SyxConverter {
	return &SyxConverter{device: device}
}

// ParseSyxFile reads a .syx file and returns a Pattern
func (s *SyxConverter) ParseSyxFile(filename string) (*Pattern, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read syx file: %w", err)
	}
	return s.ParseSyx(data)
}

// ParseSyx parses .syx data and returns a Pattern
func (s *SyxConverter) ParseSyx(data []byte) (*Pattern, error) {
	payload, err := s.Unwrap(data)
	if err != nil {
		return nil, err
	}
	return s.device.DecodePattern(payload)
}

// GenerateSyx creates .syx data from a Pattern
func (s *SyxConverter) GenerateSyx(pattern *Pattern, slot Slot) ([]byte, error) {
	if s.device == nil {
		return nil, errors.New("no device configured")
	}
	payload, err := s.device.EncodePattern(pattern, slot)
	if err != nil {
		return nil, err
	}
	return s.Wrap(payload), nil
}

// WriteSyxFile writes .syx data to a file
func (s *SyxConverter) WriteSyxFile(pattern *Pattern, slot Slot, filename string) error {
	data, err := s.GenerateSyx(pattern, slot)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// Wrap frames a payload as a complete SysEx message for the device
func (s *SyxConverter) Wrap(payload []byte) []byte {
	header := s.device.SysExHeader()
	body := make([]byte, 0, len(header)+len(payload))
	body = append(body, header...)
	body = append(body, payload...)
	return midi.SysEx(body).Bytes()
}

// Unwrap validates a complete SysEx message and returns the payload after the device header
func (s *SyxConverter) Unwrap(data []byte) ([]byte, error) {
	if s.device == nil {
		return nil, errors.New("no device configured")
	}
	if err := s.ValidateSyx(data); err != nil {
		return nil, err
	}
	header := s.device.SysExHeader()
	body := data[1 : len(data)-1]
	if !bytes.HasPrefix(body, header) {
		if !IsBehringerSyx(data) {
			if id, err := ExtractManufacturerID(data[:len(data)-1]); err == nil {
				return nil, fmt.Errorf("SysEx from manufacturer % X is not a Behringer dump", id)
			}
		}
		return nil, fmt.Errorf("unrecognized SysEx header % X, expected % X", body[:min(len(body), len(header))], header)
	}
	return body[len(header):], nil
}

// ValidateSyx validates .syx data structure
func (s *SyxConverter) ValidateSyx(data []byte) error {
	if len(data) < 2 {
		return errors.New("syx data too short")
	}

	if data[0] != SysExStart {
		return fmt.Errorf("invalid SysEx: expected start byte 0x%02X, got 0x%02X", SysExStart, data[0])
	}

	if data[len(data)-1] != SysExEnd {
		return fmt.Errorf("invalid SysEx: expected end byte 0x%02X, got 0x%02X", SysExEnd, data[len(data)-1])
	}

	// Check all data bytes are 7-bit (valid MIDI data)
	for i := 1; i < len(data)-1; i++ {
		if data[i] > 127 {
			return fmt.Errorf("invalid SysEx: byte at position %d is > 127 (0x%02X)", i, data[i])
		}
	}

	return nil
}

// ExtractManufacturerID extracts the manufacturer ID from SysEx data
func ExtractManufacturerID(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, errors.New("syx data too short for manufacturer ID")
	}

	if data[0] != SysExStart {
		return nil, errors.New("invalid SysEx start")
	}

	// Check if extended manufacturer ID (starts with 0x00)
	if data[1] == 0x00 {
		return data[1:4], nil
	}

	// Single byte manufacturer ID
	return data[1:2], nil
}

// IsBehringerSyx checks if the SysEx data is from a Behringer device
func IsBehringerSyx(data []byte) bool {
	if len(data) < 5 {
		return false
	}

	// Behringer extended manufacturer ID: 00 20 32
	return data[0] == SysExStart &&
		data[1] == 0x00 &&
		data[2] == 0x20 &&
		data[3] == 0x32
}
