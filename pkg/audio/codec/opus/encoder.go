package opus

// For go build: use pkg-config to find system libopus
// For bazel build: cdeps provides opus headers and library

/*
#cgo pkg-config: opus
#include <opus.h>
#include <stdlib.h>

// Wrapper functions for variadic opus_encoder_ctl
static int opus_encoder_set_bitrate(OpusEncoder *enc, opus_int32 bitrate) {
    return opus_encoder_ctl(enc, OPUS_SET_BITRATE(bitrate));
}

static int opus_encoder_set_complexity(OpusEncoder *enc, opus_int32 complexity) {
    return opus_encoder_ctl(enc, OPUS_SET_COMPLEXITY(complexity));
}

static int opus_encoder_get_lookahead(OpusEncoder *enc, opus_int32 *lookahead) {
    return opus_encoder_ctl(enc, OPUS_GET_LOOKAHEAD(lookahead));
}
*/
import "C"
import (
	"errors"
	"fmt"
	"unsafe"
)

// DefaultMaxPacketSize is the default upper bound on the size of one encoded
// packet.
const DefaultMaxPacketSize = 4000

// ErrClosed is returned when an operation is attempted on a closed encoder
// or decoder.
var ErrClosed = errors.New("opus: codec is closed")

// Error is a failure reported by libopus.
type Error struct {
	Op   string // "encoder create", "encode", "decode", ...
	Code int    // negative libopus status
	Msg  string // opus_strerror(Code)
}

func (e *Error) Error() string {
	return fmt.Sprintf("opus: %s failed: %s", e.Op, e.Msg)
}

func newError(op string, code C.int) *Error {
	return &Error{Op: op, Code: int(code), Msg: C.GoString(C.opus_strerror(code))}
}

// Encoder wraps an Opus encoder.
//
// Encoded frames returned by Encode and EncodeBytes share one output buffer
// that is overwritten by the next call; copy a frame to retain it.
type Encoder struct {
	channels int
	cEnc     *C.OpusEncoder
	out      []byte
}

// NewEncoder creates a new Opus encoder.
//
// Parameters:
//   - sampleRate: Sample rate of input signal (8000, 12000, 16000, 24000, or 48000)
//   - channels: Number of channels (1 or 2)
//   - app: Intended application (ApplicationVoIP, ApplicationAudio, etc.)
func NewEncoder(sampleRate, channels int, app Application) (*Encoder, error) {
	var err C.int
	cEnc := C.opus_encoder_create(C.opus_int32(sampleRate), C.int(channels), C.int(app.native()), &err)
	if err != C.OPUS_OK {
		return nil, newError("encoder create", err)
	}
	return &Encoder{
		channels: channels,
		cEnc:     cEnc,
		out:      make([]byte, DefaultMaxPacketSize),
	}, nil
}

// Close releases the encoder resources.
func (e *Encoder) Close() {
	if e.cEnc != nil {
		C.opus_encoder_destroy(e.cEnc)
		e.cEnc = nil
	}
}

// Encode encodes frameSize samples per channel of interleaved PCM into one
// Opus packet. The returned frame is valid until the next call to Encode or
// EncodeBytes.
func (e *Encoder) Encode(pcm []int16, frameSize int) (Frame, error) {
	if e.cEnc == nil {
		return nil, ErrClosed
	}
	if frameSize <= 0 || len(pcm) < frameSize*e.channels {
		return nil, fmt.Errorf("opus: encode: have %d samples, need %d", len(pcm), frameSize*e.channels)
	}

	n := C.opus_encode(e.cEnc,
		(*C.opus_int16)(unsafe.Pointer(&pcm[0])), C.int(frameSize),
		(*C.uchar)(unsafe.Pointer(&e.out[0])), C.opus_int32(len(e.out)))
	if n < 0 {
		return nil, newError("encode", n)
	}
	return e.out[:n], nil
}

// EncodeBytes is Encode for s16le PCM.
func (e *Encoder) EncodeBytes(pcm []byte, frameSize int) (Frame, error) {
	if len(pcm) < frameSize*e.channels*2 || len(pcm) < 2 {
		return nil, fmt.Errorf("opus: encode: have %d bytes, need %d", len(pcm), frameSize*e.channels*2)
	}
	samples := unsafe.Slice((*int16)(unsafe.Pointer(&pcm[0])), len(pcm)/2)
	return e.Encode(samples, frameSize)
}

// Lookahead returns the encoder's algorithmic delay in samples per channel at
// the encoder sample rate.
func (e *Encoder) Lookahead() (int, error) {
	if e.cEnc == nil {
		return 0, ErrClosed
	}
	var v C.opus_int32
	ret := C.opus_encoder_get_lookahead(e.cEnc, &v)
	if ret != C.OPUS_OK {
		return 0, newError("get lookahead", ret)
	}
	return int(v), nil
}

// SetMaxPacketSize sets the size of the output buffer, which caps the size
// of a single encoded packet.
func (e *Encoder) SetMaxPacketSize(n int) error {
	if n <= 0 {
		return fmt.Errorf("opus: invalid max packet size %d", n)
	}
	e.out = make([]byte, n)
	return nil
}

// SetBitrate sets the target bitrate in bits per second.
func (e *Encoder) SetBitrate(bitrate int) error {
	if e.cEnc == nil {
		return ErrClosed
	}
	ret := C.opus_encoder_set_bitrate(e.cEnc, C.opus_int32(bitrate))
	if ret != C.OPUS_OK {
		return newError("set bitrate", ret)
	}
	return nil
}

// SetComplexity sets the encoder's computational complexity (0-10).
func (e *Encoder) SetComplexity(complexity int) error {
	if e.cEnc == nil {
		return ErrClosed
	}
	ret := C.opus_encoder_set_complexity(e.cEnc, C.opus_int32(complexity))
	if ret != C.OPUS_OK {
		return newError("set complexity", ret)
	}
	return nil
}
