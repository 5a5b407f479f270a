package export

import (
	"errors"
	"strings"
)

var (
	// ErrNoFormats is returned when an export request names no output format.
	ErrNoFormats = errors.New("no export formats requested")

	// ErrInsufficientSpace aborts the export before any file is written.
	ErrInsufficientSpace = errors.New("insufficient free space for export")
)

// ValidationError aggregates every validation message of a snapshot, so the
// caller sees all problems at once instead of fixing them one by one.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "checkup validation failed: " + strings.Join(e.Messages, "; ")
}

// AsValidationError unwraps err into a *ValidationError when possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
