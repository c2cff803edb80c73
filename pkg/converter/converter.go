package converter

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format represents a file format
type Format string

const (
	FormatText    Format = "txt"
	FormatSyx     Format = "syx"
	FormatMIDI    Format = "midi"
	FormatUnknown Format = "unknown"
)

// Extension returns the default file extension of a format
func (f Format) Extension() string {
	switch f {
	case FormatText:
		return ".txt"
	case FormatSyx:
		return ".syx"
	case FormatMIDI:
		return ".mid"
	default:
		return ""
	}
}

// DetectFormat detects the format of a file based on extension
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt", ".td3":
		return FormatText
	case ".syx":
		return FormatSyx
	case ".mid", ".midi":
		return FormatMIDI
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	if len(data) < 4 {
		return FormatUnknown
	}

	// Check for MIDI file signature "MThd"
	if string(data[:4]) == "MThd" {
		return FormatMIDI
	}

	// Check for SysEx (starts with F0)
	if data[0] == SysExStart {
		return FormatSyx
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte(TextHeader)) || bytes.HasPrefix(trimmed, []byte("//")) {
		return FormatText
	}

	return FormatUnknown
}

// Load decodes data of the given format into a Pattern
func (c *Converter) Load(data []byte, format Format) (*Pattern, error) {
	switch format {
	case FormatText:
		return ParseText(string(data))
	case FormatSyx:
		return NewSyxConverter(c.device).ParseSyx(data)
	case FormatMIDI:
		m := c.midiConverter()
		p, err := m.ParseMIDI(data)
		if err != nil {
			return nil, err
		}
		c.tempo = m.Tempo()
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported input format: %s", format)
	}
}

// Store encodes a Pattern into the given format
func (c *Converter) Store(pattern *Pattern, format Format) ([]byte, error) {
	switch format {
	case FormatText:
		text, err := RenderText(pattern)
		if err != nil {
			return nil, err
		}
		return []byte(text), nil
	case FormatSyx:
		return NewSyxConverter(c.device).GenerateSyx(pattern, c.slot)
	case FormatMIDI:
		return c.midiConverter().GenerateMIDI(pattern)
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Convert converts data between two formats
func (c *Converter) Convert(data []byte, from, to Format) ([]byte, error) {
	if from == to {
		return nil, fmt.Errorf("unsupported conversion: %s to %s", from, to)
	}
	pattern, err := c.Load(data, from)
	if err != nil {
		return nil, err
	}
	return c.Store(pattern, to)
}

// ConvertFile converts a file from one format to another
func (c *Converter) ConvertFile(inputPath, outputPath string) error {
	outputFormat := DetectFormat(outputPath)
	if outputFormat == FormatUnknown {
		return errors.New("cannot determine output format from filename")
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	inputFormat := DetectFormat(inputPath)
	if inputFormat == FormatUnknown {
		inputFormat = DetectFormatFromContent(data)
	}

	outputData, err := c.Convert(data, inputFormat, outputFormat)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	if err := os.WriteFile(outputPath, outputData, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	return nil
}

// LoadFile reads a pattern file. The format comes from the extension, or from
// the content when the extension is not recognized.
func (c *Converter) LoadFile(path string) (*Pattern, error) {
	switch DetectFormat(path) {
	case FormatText:
		return ReadTextFile(path)
	case FormatSyx:
		return NewSyxConverter(c.device).ParseSyxFile(path)
	case FormatMIDI:
		m := c.midiConverter()
		p, err := m.ParseMIDIFile(path)
		if err != nil {
			return nil, err
		}
		c.tempo = m.Tempo()
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern file: %w", err)
	}
	format := DetectFormatFromContent(data)
	if format == FormatUnknown {
		return nil, fmt.Errorf("cannot determine format of %s", path)
	}
	return c.Load(data, format)
}

// SaveFile writes a pattern in the format named by the file extension.
// Unrecognized extensions get the text format; .syx files are addressed to the converter's slot.
func (c *Converter) SaveFile(pattern *Pattern, path string) error {
	switch DetectFormat(path) {
	case FormatSyx:
		return NewSyxConverter(c.device).WriteSyxFile(pattern, c.slot, path)
	case FormatMIDI:
		return c.midiConverter().WriteMIDIFile(pattern, path)
	default:
		return WriteTextFile(pattern, path)
	}
}

// SyxToText converts .syx data to the text format
func (c *Converter) SyxToText(syxData []byte) ([]byte, error) {
	return c.Convert(syxData, FormatSyx, FormatText)
}

// TextToSyx converts text pattern data to .syx format
func (c *Converter) TextToSyx(text []byte) ([]byte, error) {
	return c.Convert(text, FormatText, FormatSyx)
}

// SyxToMIDI converts .syx data to MIDI format
func (c *Converter) SyxToMIDI(syxData []byte) ([]byte, error) {
	return c.Convert(syxData, FormatSyx, FormatMIDI)
}

// TextToMIDI converts text pattern data to MIDI format
func (c *Converter) TextToMIDI(text []byte) ([]byte, error) {
	return c.Convert(text, FormatText, FormatMIDI)
}

// MIDIToText converts MIDI data to the text format
func (c *Converter) MIDIToText(midiData []byte) ([]byte, error) {
	return c.Convert(midiData, FormatMIDI, FormatText)
}

// MIDIToSyx converts MIDI data to .syx format
func (c *Converter) MIDIToSyx(midiData []byte) ([]byte, error) {
	return c.Convert(midiData, FormatMIDI, FormatSyx)
}

// GetSupportedConversions returns a list of supported conversion paths
func GetSupportedConversions() []string {
	return []string{
		"syx -> txt",
		"txt -> syx",
		"syx -> midi",
		"txt -> midi",
		"midi -> txt",
		"midi -> syx",
	}
}
