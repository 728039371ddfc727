// Package opusenc turns a stream of arbitrary-length PCM writes into
// fixed-duration Opus frames.
//
// An Encoder is configured once (channels, sample rate, frame size,
// application), then fed with BufferedEncode. Input that does not fill a
// frame is held in a one-frame buffer until more arrives or the caller
// flushes, at which point the partial frame is zero-padded and encoded.
// Every emitted Packet reports the number of genuine (non-padding) samples
// it carries, so callers can keep exact granule positions.
//
// An Encoder is not safe for concurrent use.
package opusenc

import (
	"log/slog"
	"slices"

	"github.com/haivivi/oggvoice/pkg/audio/codec/opus"
)

// Packet is one encoded frame.
type Packet struct {
	// Data is the encoded frame. In a BufferedEncode callback it is only
	// valid until the callback returns.
	Data []byte
	// Samples is the number of input samples per channel the packet
	// represents, excluding zero padding.
	Samples int
	// Final is set on the zero-padded packet produced by a flush.
	Final bool
}

// SampleRates lists the input sample rates Opus accepts.
var SampleRates = []int{8000, 12000, 16000, 24000, 48000}

// Option configures an Encoder.
type Option func(*Encoder)

// WithNativeFactory replaces the function that creates the native codec.
func WithNativeFactory(f NativeFactory) Option {
	return func(e *Encoder) { e.newNative = f }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Encoder) { e.logger = l }
}

// Encoder buffers PCM and encodes it one frame at a time.
type Encoder struct {
	channels   int
	sampleRate int
	frame      opus.FrameDuration
	app        opus.Application
	maxBytes   int
	bitrate    int
	complexity int

	newNative NativeFactory
	native    Native
	closed    bool
	logger    *slog.Logger

	buf []byte
	idx int

	packets int64
	samples int64
}

// New returns an unconfigured Encoder.
func New(opts ...Option) *Encoder {
	e := &Encoder{
		maxBytes:   opus.DefaultMaxPacketSize,
		complexity: -1,
		newNative:  NewNative,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

func (e *Encoder) mutable(what string) error {
	if e.closed {
		return ErrClosed
	}
	if e.native != nil {
		return configErr("cannot change %s after the encoder was created", what)
	}
	return nil
}

// SetChannels sets the channel count, 1 or 2.
func (e *Encoder) SetChannels(n int) error {
	if err := e.mutable("channels"); err != nil {
		return err
	}
	if n != 1 && n != 2 {
		return validationErr("channels must be 1 or 2, got %d", n)
	}
	e.channels = n
	e.allocBuffer()
	return nil
}

// SetSampleRate sets the input sample rate. Opus accepts 8000, 12000,
// 16000, 24000 and 48000 Hz.
func (e *Encoder) SetSampleRate(hz int) error {
	if err := e.mutable("sample rate"); err != nil {
		return err
	}
	if !slices.Contains(SampleRates, hz) {
		return validationErr("unsupported sample rate %d", hz)
	}
	e.sampleRate = hz
	e.allocBuffer()
	return nil
}

// SetFrameSize sets the frame duration in milliseconds: 2.5, 5, 10, 20, 40
// or 60.
func (e *Encoder) SetFrameSize(ms float64) error {
	if err := e.mutable("frame size"); err != nil {
		return err
	}
	fd, err := opus.ParseFrameDuration(ms)
	if err != nil {
		return validationErr("frame size %gms", ms)
	}
	e.frame = fd
	e.allocBuffer()
	return nil
}

// SetApplication selects the coding mode: "voip", "audio" or
// "restricted_lowdelay".
func (e *Encoder) SetApplication(mode string) error {
	if err := e.mutable("application"); err != nil {
		return err
	}
	app, err := opus.ParseApplication(mode)
	if err != nil {
		return validationErr("application %q", mode)
	}
	e.app = app
	return nil
}

// SetMaxBytesPerFrame caps the size of one encoded packet. The default is
// 4000 bytes.
func (e *Encoder) SetMaxBytesPerFrame(n int) error {
	if err := e.mutable("max bytes per frame"); err != nil {
		return err
	}
	if n <= 0 {
		return validationErr("max bytes per frame must be positive, got %d", n)
	}
	e.maxBytes = n
	return nil
}

// SetBitrate sets the target bitrate in bits per second.
func (e *Encoder) SetBitrate(bps int) error {
	if err := e.mutable("bitrate"); err != nil {
		return err
	}
	if bps < 500 || bps > 512000 {
		return validationErr("bitrate %d out of range 500-512000", bps)
	}
	e.bitrate = bps
	return nil
}

// SetComplexity sets the encoder complexity, 0 to 10.
func (e *Encoder) SetComplexity(c int) error {
	if err := e.mutable("complexity"); err != nil {
		return err
	}
	if c < 0 || c > 10 {
		return validationErr("complexity %d out of range 0-10", c)
	}
	e.complexity = c
	return nil
}

// allocBuffer sizes the frame buffer once channels, rate and frame size are
// all known.
func (e *Encoder) allocBuffer() {
	if e.channels == 0 || e.sampleRate == 0 || e.frame == 0 {
		return
	}
	e.buf = make([]byte, e.FrameSamples()*e.channels*2)
	e.idx = 0
}

// Channels returns the configured channel count.
func (e *Encoder) Channels() int { return e.channels }

// SampleRate returns the configured sample rate.
func (e *Encoder) SampleRate() int { return e.sampleRate }

// FrameDuration returns the configured frame duration.
func (e *Encoder) FrameDuration() opus.FrameDuration { return e.frame }

// Application returns the configured application.
func (e *Encoder) Application() opus.Application { return e.app }

// FrameSamples returns the number of samples per channel in one frame, or 0
// while the frame size or sample rate is unset.
func (e *Encoder) FrameSamples() int {
	if e.frame == 0 || e.sampleRate == 0 {
		return 0
	}
	return e.frame.Samples(e.sampleRate)
}

// FrameBytes returns the size of one frame of input PCM.
func (e *Encoder) FrameBytes() int {
	return len(e.buf)
}

// Buffered returns the number of input bytes waiting for a full frame.
func (e *Encoder) Buffered() int {
	return e.idx
}

// Packets returns the number of packets emitted so far.
func (e *Encoder) Packets() int64 { return e.packets }

// Samples returns the number of samples per channel emitted so far.
func (e *Encoder) Samples() int64 { return e.samples }

// init creates the native encoder on first use.
func (e *Encoder) init() error {
	if e.closed {
		return ErrClosed
	}
	if e.native != nil {
		return nil
	}
	switch {
	case e.channels == 0:
		return configErr("channels must be set before encoding")
	case e.sampleRate == 0:
		return configErr("sample rate must be set before encoding")
	case e.app == 0:
		return configErr("application must be set before encoding")
	}
	native, err := e.newNative(NativeParams{
		SampleRate:    e.sampleRate,
		Channels:      e.channels,
		Application:   e.app,
		MaxPacketSize: e.maxBytes,
		Bitrate:       e.bitrate,
		Complexity:    e.complexity,
	})
	if err != nil {
		return &EncodeError{Native: nativeMessage(err), Err: err}
	}
	e.native = native
	e.logger.Debug("opusenc: encoder created",
		"rate", e.sampleRate, "channels", e.channels,
		"application", e.app.String(), "frame", e.frame.String())
	return nil
}

// Lookahead returns the native encoder's algorithmic delay in samples per
// channel. It creates the native encoder, which freezes the configuration.
func (e *Encoder) Lookahead() (int, error) {
	if err := e.init(); err != nil {
		return 0, err
	}
	n, err := e.native.Lookahead()
	if err != nil {
		return 0, &EncodeError{Native: nativeMessage(err), Err: err}
	}
	return n, nil
}

// Encode encodes exactly one frame of PCM, bypassing the buffer. The
// returned frame is overwritten by the next encode.
func (e *Encoder) Encode(frame []byte) (opus.Frame, error) {
	if e.frame == 0 {
		return nil, configErr("frame size must be set before encoding")
	}
	if err := e.init(); err != nil {
		return nil, err
	}
	if len(frame) != len(e.buf) {
		return nil, validationErr("frame is %d bytes, want %d", len(frame), len(e.buf))
	}
	return e.encode(frame)
}

func (e *Encoder) encode(frame []byte) (opus.Frame, error) {
	data, err := e.native.EncodeBytes(frame, e.FrameSamples())
	if err != nil {
		return nil, &EncodeError{Native: nativeMessage(err), Err: err}
	}
	return data, nil
}

// BufferedEncode consumes s16le interleaved PCM of any length and calls fn
// once per encoded frame, synchronously and in order. With flush set, a
// partial frame left in the buffer is zero-padded and emitted as the Final
// packet. An error from fn stops encoding and is returned unchanged.
func (e *Encoder) BufferedEncode(pcm []byte, flush bool, fn func(Packet) error) error {
	if len(pcm) == 0 && !flush {
		return nil
	}
	if e.frame == 0 {
		return configErr("frame size must be set before encoding")
	}
	if err := e.init(); err != nil {
		return err
	}

	size := len(e.buf)
	for len(pcm) > 0 {
		if e.idx == 0 && len(pcm) >= size {
			// Full frame available: encode straight from the input.
			if err := e.emit(pcm[:size], size, false, fn); err != nil {
				return err
			}
			pcm = pcm[size:]
			continue
		}
		n := copy(e.buf[e.idx:], pcm)
		e.idx += n
		pcm = pcm[n:]
		if e.idx == size {
			e.idx = 0
			if err := e.emit(e.buf, size, false, fn); err != nil {
				return err
			}
		}
	}

	if flush && e.idx > 0 {
		n := e.idx
		clear(e.buf[n:])
		e.idx = 0
		return e.emit(e.buf, n, true, fn)
	}
	return nil
}

// BufferedEncodeAll is BufferedEncode collecting the packets. Packet data is
// copied.
func (e *Encoder) BufferedEncodeAll(pcm []byte, flush bool) ([]Packet, error) {
	var out []Packet
	err := e.BufferedEncode(pcm, flush, func(p Packet) error {
		p.Data = slices.Clone(p.Data)
		out = append(out, p)
		return nil
	})
	return out, err
}

func (e *Encoder) emit(frame []byte, genuine int, final bool, fn func(Packet) error) error {
	data, err := e.encode(frame)
	if err != nil {
		return err
	}
	samples := genuine / e.channels / 2
	e.packets++
	e.samples += int64(samples)
	if fn == nil {
		return nil
	}
	return fn(Packet{Data: data, Samples: samples, Final: final})
}

// Close releases the native encoder. Buffered input that was not flushed is
// discarded. Calling Close again is a no-op.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.native != nil {
		e.native.Close()
		e.native = nil
	}
	e.idx = 0
	return nil
}
