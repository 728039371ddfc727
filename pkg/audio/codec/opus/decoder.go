package opus

/*
#cgo pkg-config: opus
#include <opus.h>
#include <stdlib.h>
*/
import "C"
import "unsafe"

// maxPacketSamples is the longest packet libopus can produce, 120 ms at
// 48 kHz, in samples per channel.
const maxPacketSamples = 5760

// Decoder wraps an Opus decoder.
type Decoder struct {
	sampleRate int
	channels   int
	cDec       *C.OpusDecoder
}

// NewDecoder creates a new Opus decoder.
//
// Parameters:
//   - sampleRate: Sample rate to decode at (8000, 12000, 16000, 24000, or 48000)
//   - channels: Number of channels (1 or 2)
func NewDecoder(sampleRate, channels int) (*Decoder, error) {
	var err C.int
	cDec := C.opus_decoder_create(C.opus_int32(sampleRate), C.int(channels), &err)
	if err != C.OPUS_OK {
		return nil, newError("decoder create", err)
	}
	return &Decoder{
		sampleRate: sampleRate,
		channels:   channels,
		cDec:       cDec,
	}, nil
}

// Close releases the decoder resources.
func (d *Decoder) Close() {
	if d.cDec != nil {
		C.opus_decoder_destroy(d.cDec)
		d.cDec = nil
	}
}

// Decode decodes one Opus packet to s16le interleaved PCM. Each call
// returns a new slice.
func (d *Decoder) Decode(f Frame) ([]byte, error) {
	return d.decode("decode", f, maxPacketSamples*d.sampleRate/48000)
}

// DecodePLC synthesizes samples (per channel) of audio in place of a lost
// packet.
func (d *Decoder) DecodePLC(samples int) ([]byte, error) {
	return d.decode("plc decode", nil, samples)
}

// decode runs opus_decode into a fresh buffer of room samples per channel.
// A nil packet asks libopus for concealment.
func (d *Decoder) decode(op string, f Frame, room int) ([]byte, error) {
	if d.cDec == nil {
		return nil, ErrClosed
	}
	if room <= 0 {
		return nil, nil
	}

	var data *C.uchar
	if len(f) > 0 {
		data = (*C.uchar)(unsafe.Pointer(&f[0]))
	}
	buf := make([]int16, room*d.channels)
	n := C.opus_decode(d.cDec, data, C.opus_int32(len(f)),
		(*C.opus_int16)(unsafe.Pointer(&buf[0])), C.int(room), 0)
	if n < 0 {
		return nil, newError(op, n)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&buf[0])), 2*int(n)*d.channels), nil
}
