package oggopus

import (
	"errors"
	"fmt"

	"github.com/haivivi/oggvoice/pkg/audio/opusenc"
)

var (
	// ErrValidation is returned for an out-of-range option such as a custom
	// pre-skip. It is the same value as opusenc.ErrValidation.
	ErrValidation = opusenc.ErrValidation

	// ErrStreamState is returned when an operation is not allowed in the
	// writer's current state.
	ErrStreamState = errors.New("oggopus: invalid stream state")

	// ErrStreamFinished is returned by Write after Close. It matches
	// ErrStreamState with errors.Is.
	ErrStreamFinished = fmt.Errorf("%w: stream finished", ErrStreamState)

	// ErrNativeMux is matched by every *MuxError.
	ErrNativeMux = errors.New("oggopus: ogg multiplexing failed")
)

// Mux stages reported by MuxError.
const (
	StagePacketIn = "packet-in"
	StagePageOut  = "page-out"
	StageFlush    = "flush"
	StageHeader   = "header"
	StageWrite    = "write"
)

// MuxError reports a failure while placing packets into the Ogg stream or
// writing pages to the sink. The stream cannot be continued after one.
type MuxError struct {
	Stage string
	Err   error
}

func (e *MuxError) Error() string {
	return fmt.Sprintf("oggopus: %s failed: %v", e.Stage, e.Err)
}

func (e *MuxError) Unwrap() []error {
	return []error{ErrNativeMux, e.Err}
}
