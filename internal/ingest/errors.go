package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingSection means no "Attendee Details" block was found, or it
	// had no header row below it.
	ErrMissingSection = errors.New("ingest: attendee details section not found")
	// ErrTimeout means reading the sheet exceeded the ingest time budget.
	ErrTimeout = errors.New("ingest: timeout while reading sheet")
)

// TooLargeError rejects an upload over the configured cap.
type TooLargeError struct {
	Size int64
	Max  int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("ingest: file of %d bytes exceeds limit of %d", e.Size, e.Max)
}

// StorageError wraps a failure to persist the descriptor or the records.
// Records stored before the failure are kept.
type StorageError struct {
	Op     string
	Stored int
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ingest: storage failed during %s after %d records: %v", e.Op, e.Stored, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Kind buckets ingest failures for the HTTP layer.
type Kind int

const (
	KindUnknown Kind = iota
	KindTooLarge
	KindMissingSection
	KindTimeout
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindTooLarge:
		return "too_large"
	case KindMissingSection:
		return "missing_section"
	case KindTimeout:
		return "timeout"
	case KindStorage:
		return "storage"
	}
	return "unknown"
}

// Classify maps an error to its Kind. Typed errors win; otherwise the message
// is inspected, since sheet readers report resource exhaustion only as text.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var tooLarge *TooLargeError
	var storage *StorageError
	switch {
	case errors.As(err, &tooLarge):
		return KindTooLarge
	case errors.Is(err, ErrMissingSection):
		return KindMissingSection
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &storage):
		return KindStorage
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return KindTimeout
	case strings.Contains(msg, "memory"), strings.Contains(msg, "heap"):
		return KindTooLarge
	}
	return KindUnknown
}
