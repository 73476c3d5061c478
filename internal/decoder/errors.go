package decoder

import (
	"errors"
	"fmt"
)

// ErrResourceExhausted marks an allocation failure at one sample size.
// The decoder treats it as recoverable and escalates.
var ErrResourceExhausted = errors.New("decoder: resource exhausted")

var errEmptySource = errors.New("empty source")

// FormatError reports input that is not a decodable image.
type FormatError struct {
	SampleSize int
	Err        error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("decoder: invalid image at sample size %d: %v", e.SampleSize, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ExhaustedError is returned when every sample size up to the ceiling
// failed to allocate.
type ExhaustedError struct {
	// SampleSize is the coarsest sample size tried.
	SampleSize int
	Attempts   int
	Err        error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("decoder: out of memory after %d attempts (last sample size %d): %v",
		e.Attempts, e.SampleSize, e.Err)
}

// Unwrap always reaches ErrResourceExhausted.
func (e *ExhaustedError) Unwrap() []error {
	switch {
	case e.Err == nil:
		return []error{ErrResourceExhausted}
	case errors.Is(e.Err, ErrResourceExhausted):
		return []error{e.Err}
	default:
		return []error{ErrResourceExhausted, e.Err}
	}
}

// IsFormat reports whether err is a *FormatError.
func IsFormat(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsExhausted reports whether err is a resource exhaustion failure.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrResourceExhausted)
}
