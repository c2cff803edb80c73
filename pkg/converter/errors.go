package converter

import "errors"

var (
	// ErrPayloadSize is returned when a binary payload is not exactly the expected size
	ErrPayloadSize = errors.New("payload size mismatch")

	// ErrMalformedField is returned when a decoded or supplied field is outside its range
	ErrMalformedField = errors.New("malformed field")

	// ErrTextGrammar is returned when a text pattern does not follow the format
	ErrTextGrammar = errors.New("text pattern format error")
)
