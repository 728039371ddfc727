package opusenc

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when the encoder is used before a required
	// parameter is set, or when a parameter is changed after the native
	// encoder was created.
	ErrConfiguration = errors.New("opusenc: configuration error")

	// ErrValidation is returned for an out-of-range channel count, sample
	// rate, frame size or similar parameter.
	ErrValidation = errors.New("opusenc: invalid value")
)

// EncodeError reports a failed native encode call.
type EncodeError struct {
	// Native is the error string reported by the codec library.
	Native string
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("opusenc: encode failed: %s", e.Native)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ErrClosed is returned when an encoder is used after Close.
var ErrClosed = errors.New("opusenc: encoder closed")
