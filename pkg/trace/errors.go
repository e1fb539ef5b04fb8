package trace

import "github.com/pkg/errors"

// Errors returned when a trace cannot be read. They are wrapped with
// context describing the record being processed; use errors.Is to test for
// them.
var (
	ErrEmptyTrace          = errors.New("trace contains no events")
	ErrMalformedTrace      = errors.New("malformed trace")
	ErrMissingDebugInfo    = errors.New("debug info not found")
	ErrMissingFunction     = errors.New("function entry not found in debug info")
	ErrMissingFile         = errors.New("file not found")
	ErrUnsupportedLocation = errors.New("unsupported location type")
	ErrUnexpectedSummary   = errors.New("unexpected external summary event")
)
