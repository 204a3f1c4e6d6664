package attendance

import "errors"

// ErrNotFound is returned when no record or file has the requested id.
var ErrNotFound = errors.New("attendance: not found")

// ValidationError carries the messages of a rejected edit.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Messages) == 0 {
		return "attendance: validation failed"
	}
	return "attendance: validation failed: " + e.Messages[0]
}
