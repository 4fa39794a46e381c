package protocol

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a frame could not be decoded.
type ErrorKind int

const (
	KindInvalidHeader ErrorKind = iota + 1
	KindMissingChecksum
	KindChecksumMismatch
	KindIncompleteFrame
	KindInvalidField
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidHeader:
		return "invalid_header"
	case KindMissingChecksum:
		return "missing_checksum"
	case KindChecksumMismatch:
		return "checksum_mismatch"
	case KindIncompleteFrame:
		return "incomplete_frame"
	case KindInvalidField:
		return "invalid_field"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is against a *DecodeError.
var (
	ErrInvalidHeader    = errors.New("invalid protocol header")
	ErrMissingChecksum  = errors.New("missing checksum")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrIncompleteFrame  = errors.New("incomplete frame")
	ErrInvalidField     = errors.New("invalid field")
)

// DecodeError is the only error type returned by Decode.
type DecodeError struct {
	Kind ErrorKind
	// Field names the offending field for KindInvalidField.
	Field string
	// Received and Expected are set for KindChecksumMismatch.
	Received string
	Expected string
	Err      error
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case KindInvalidHeader:
		return "Invalid protocol header"
	case KindMissingChecksum:
		return "Missing checksum"
	case KindChecksumMismatch:
		return fmt.Sprintf("Checksum mismatch (got %s, expected %s)", e.Received, e.Expected)
	case KindIncompleteFrame:
		if e.Err != nil {
			return "Incomplete frame: " + e.Err.Error()
		}
		return "Incomplete frame"
	case KindInvalidField:
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return "decode error"
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrInvalidHeader:
		return e.Kind == KindInvalidHeader
	case ErrMissingChecksum:
		return e.Kind == KindMissingChecksum
	case ErrChecksumMismatch:
		return e.Kind == KindChecksumMismatch
	case ErrIncompleteFrame:
		return e.Kind == KindIncompleteFrame
	case ErrInvalidField:
		return e.Kind == KindInvalidField
	}
	return false
}

// IsIntegrity reports whether the frame was corrupted in transit, as opposed to malformed.
func (e *DecodeError) IsIntegrity() bool { return e.Kind == KindChecksumMismatch }

func fieldError(field string, err error) *DecodeError {
	return &DecodeError{Kind: KindInvalidField, Field: field, Err: err}
}
