// Package oggopus writes and reads Opus audio in the Ogg container
// (RFC 7845).
//
// A Writer owns one logical Ogg stream. The first Write emits the OpusHead
// and OpusTags headers on a page of their own, then feeds pre-skip samples
// of silence through the encoder so its output is settled before real audio
// arrives. Close drains the encoder, marks the last packet end-of-stream and
// flushes the remaining pages.
//
//	enc, _ := opusenc.NewFromConfig(opusenc.DefaultConfig())
//	w, _ := oggopus.Create("out.opus", enc)
//	w.Write(pcm)
//	w.Close()
package oggopus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"runtime"

	"github.com/haivivi/oggvoice/pkg/audio/codec/ogg"
	"github.com/haivivi/oggvoice/pkg/audio/codec/opus"
	"github.com/haivivi/oggvoice/pkg/audio/opusenc"
	"github.com/haivivi/oggvoice/pkg/audio/pcm"
	"github.com/haivivi/oggvoice/pkg/storage"
)

// PreSkipMargin is added to the encoder delay before choosing the pre-skip.
const PreSkipMargin = 120

// DefaultVendor is written to OpusTags unless WithVendor is given.
const DefaultVendor = "ENCODER=oggvoice"

// PreSkip returns the pre-skip for an encoder with the given algorithmic
// delay: the shortest Opus frame at sampleRate that is longer than
// lookahead+PreSkipMargin samples.
func PreSkip(lookahead, sampleRate int) (int, error) {
	for _, fd := range opus.FrameDurations {
		if n := fd.Samples(sampleRate); n > lookahead+PreSkipMargin {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: encoder delay of %d samples exceeds the longest frame", ErrValidation, lookahead)
}

type state int

const (
	stateHeadersPending state = iota
	stateStreaming
	stateFinished
)

func (s state) String() string {
	switch s {
	case stateHeadersPending:
		return "headers-pending"
	case stateStreaming:
		return "streaming"
	case stateFinished:
		return "finished"
	}
	return "invalid"
}

// Option configures a Writer.
type Option func(*options)

type options struct {
	preSkip     int
	hasPreSkip  bool
	vendor      string
	serialNo    int32
	hasSerialNo bool
	inputRate   int
	timebase48k bool
	logger      *slog.Logger
}

// WithPreSkip writes n as the header pre-skip and disables the warm-up
// silence. n must be in 0..65535.
func WithPreSkip(n int) Option {
	return func(o *options) { o.preSkip, o.hasPreSkip = n, true }
}

// WithVendor sets the OpusTags vendor string.
func WithVendor(v string) Option {
	return func(o *options) { o.vendor = v }
}

// WithSerialNo fixes the stream serial number instead of drawing a random
// one.
func WithSerialNo(n int32) Option {
	return func(o *options) { o.serialNo, o.hasSerialNo = n, true }
}

// WithInputSampleRate records the sample rate of the original audio in
// OpusHead. The default 0 means unspecified; hz must fit in 32 bits.
func WithInputSampleRate(hz int) Option {
	return func(o *options) { o.inputRate = hz }
}

// WithTimebase48k counts granule positions and pre-skip in 48 kHz samples
// regardless of the encoder rate. Without it they are counted at the encoder
// rate, which is the same thing for 48 kHz encoders.
func WithTimebase48k() Option {
	return func(o *options) { o.timebase48k = true }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Stats describes the stream written so far.
type Stats struct {
	SerialNo int32 `json:"serial_no" yaml:"serial_no"`
	PreSkip  int   `json:"pre_skip" yaml:"pre_skip"`
	// Packets counts audio packets placed into the stream.
	Packets int64 `json:"packets" yaml:"packets"`
	Pages   int64 `json:"pages" yaml:"pages"`
	Bytes   int64 `json:"bytes" yaml:"bytes"`
	Granule int64 `json:"granule" yaml:"granule"`
	// Samples counts PCM samples per channel accepted by Write, excluding
	// warm-up silence.
	Samples int64 `json:"samples" yaml:"samples"`
}

// Writer encodes PCM into an OggOpus stream. It implements io.WriteCloser;
// Write takes s16le interleaved PCM in the encoder's format.
//
// A Writer is not safe for concurrent use. Nothing else may write to the
// sink while the Writer is open.
type Writer struct {
	*stream
	cleanup runtime.Cleanup
}

type stream struct {
	enc    *opusenc.Encoder
	ogg    *ogg.Encoder
	closer io.Closer
	opts   options
	logger *slog.Logger

	state   state
	err     error
	preSkip int
	scale   int64

	packet   ogg.Packet
	packetNo int64
	granule  int64
	packets  int64
	// input counts PCM bytes accepted by Write.
	input int64

	// The most recent encoded packet is held back so that Close can flag
	// the stream's last packet as end-of-stream.
	pending        []byte
	pendingSamples int
	hasPending     bool
}

// NewWriter returns a Writer that streams to w. w is owned by the caller
// and is not closed by Close.
func NewWriter(w io.Writer, enc *opusenc.Encoder, opts ...Option) (*Writer, error) {
	return newWriter(w, nil, enc, opts)
}

// Create creates the file at path, failing if it already exists, and
// returns a Writer that closes the file on Close.
func Create(path string, enc *opusenc.Encoder, opts ...Option) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	w, err := newWriter(f, f, enc, opts)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return w, nil
}

// NewStoreWriter opens name in store and returns a Writer that closes it on
// Close.
func NewStoreWriter(ctx context.Context, store storage.FileStore, name string, enc *opusenc.Encoder, opts ...Option) (*Writer, error) {
	wc, err := store.Write(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("oggopus: open %s: %w", name, err)
	}
	w, err := newWriter(wc, wc, enc, opts)
	if err != nil {
		wc.Close()
		return nil, err
	}
	return w, nil
}

func newWriter(w io.Writer, closer io.Closer, enc *opusenc.Encoder, opts []Option) (*Writer, error) {
	if enc == nil {
		return nil, errors.New("oggopus: nil encoder")
	}
	o := options{vendor: DefaultVendor}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.hasPreSkip && (o.preSkip < 0 || o.preSkip > 0xffff) {
		return nil, fmt.Errorf("%w: pre-skip %d out of range 0-65535", ErrValidation, o.preSkip)
	}
	if o.inputRate < 0 || int64(o.inputRate) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: input sample rate %d", ErrValidation, o.inputRate)
	}
	if !o.hasSerialNo {
		n, err := ogg.RandomSerialNo()
		if err != nil {
			return nil, err
		}
		o.serialNo = n
	}
	oe, err := ogg.NewEncoder(w, o.serialNo)
	if err != nil {
		return nil, &MuxError{Stage: StageHeader, Err: err}
	}

	s := &stream{
		enc:    enc,
		ogg:    oe,
		closer: closer,
		opts:   o,
		logger: o.logger.With("serial", o.serialNo),
		scale:  1,
	}
	wr := &Writer{stream: s}
	wr.cleanup = runtime.AddCleanup(wr, (*stream).abandon, s)
	return wr, nil
}

// SerialNo returns the Ogg stream serial number.
func (s *stream) SerialNo() int32 {
	return s.opts.serialNo
}

// Stats returns counters for the stream written so far.
func (s *stream) Stats() Stats {
	return Stats{
		SerialNo: s.opts.serialNo,
		PreSkip:  s.preSkip,
		Packets:  s.packets,
		Pages:    s.ogg.Pages(),
		Bytes:    s.ogg.Bytes(),
		Granule:  s.granule,
		Samples:  s.input / int64(2*s.enc.Channels()),
	}
}

// Write encodes pcm and writes every page that becomes complete. The first
// call emits the stream headers and the warm-up silence.
func (s *stream) Write(pcm []byte) (int, error) {
	if s.state == stateFinished {
		return 0, ErrStreamFinished
	}
	if s.err != nil {
		return 0, s.err
	}
	if s.state == stateHeadersPending {
		if err := s.fail(s.writeHeaders()); err != nil {
			return 0, err
		}
	}
	if err := s.fail(s.enc.BufferedEncode(pcm, false, s.onPacket)); err != nil {
		return 0, err
	}
	s.input += int64(len(pcm))
	return len(pcm), nil
}

// WriteChunk writes a pcm.Chunk. Its format must match the encoder.
func (s *stream) WriteChunk(c pcm.Chunk) error {
	f := c.Format()
	if f.SampleRate != s.enc.SampleRate() || f.Channels != s.enc.Channels() {
		return fmt.Errorf("%w: chunk format %s does not match the encoder", ErrValidation, f)
	}
	_, err := c.WriteTo(s)
	return err
}

// fail records err as the stream's terminal error.
func (s *stream) fail(err error) error {
	if err != nil && s.err == nil {
		s.err = err
	}
	return err
}

func (s *stream) writeHeaders() error {
	if s.state != stateHeadersPending {
		return fmt.Errorf("%w: headers already written", ErrStreamState)
	}

	if s.opts.timebase48k {
		s.scale = int64(48000 / s.enc.SampleRate())
	}
	warmup := 0
	headerPreSkip := s.opts.preSkip
	if !s.opts.hasPreSkip {
		lookahead, err := s.enc.Lookahead()
		if err != nil {
			return err
		}
		if warmup, err = PreSkip(lookahead, s.enc.SampleRate()); err != nil {
			return err
		}
		headerPreSkip = warmup * int(s.scale)
		s.logger.Debug("oggopus: pre-skip chosen", "lookahead", lookahead, "pre_skip", headerPreSkip)
	}
	s.preSkip = headerPreSkip

	head, err := OpusHead{
		Channels:        uint8(s.enc.Channels()),
		PreSkip:         uint16(headerPreSkip),
		InputSampleRate: uint32(s.opts.inputRate),
	}.MarshalBinary()
	if err != nil {
		return &MuxError{Stage: StageHeader, Err: err}
	}
	tags, err := OpusTags{Vendor: s.opts.vendor}.MarshalBinary()
	if err != nil {
		return &MuxError{Stage: StageHeader, Err: err}
	}

	s.packet = ogg.Packet{Data: head, BOS: true, PacketNo: s.packetNo}
	if err := s.writePacket(); err != nil {
		return err
	}
	s.packet = ogg.Packet{Data: tags, PacketNo: s.packetNo}
	if err := s.writePacket(); err != nil {
		return err
	}
	// Headers must sit alone on the first page.
	if err := s.ogg.Flush(); err != nil {
		return muxError(err)
	}
	s.state = stateStreaming
	s.logger.Debug("oggopus: headers written", "channels", s.enc.Channels(), "rate", s.enc.SampleRate())

	if warmup > 0 {
		silence := pcm.Format{SampleRate: s.enc.SampleRate(), Channels: s.enc.Channels()}.SilenceChunk(int64(warmup))
		if _, err := silence.WriteTo(encodeWriter{s}); err != nil {
			return err
		}
	}
	return nil
}

// encodeWriter feeds the encoder without the header and sample accounting
// done by Write.
type encodeWriter struct{ s *stream }

func (w encodeWriter) Write(p []byte) (int, error) {
	if err := w.s.enc.BufferedEncode(p, false, w.s.onPacket); err != nil {
		return 0, err
	}
	return len(p), nil
}

// onPacket receives every encoded frame. It writes out the previously held
// packet and holds on to this one.
func (s *stream) onPacket(p opusenc.Packet) error {
	if s.hasPending {
		if err := s.writeAudio(false); err != nil {
			return err
		}
	}
	s.pending = append(s.pending[:0], p.Data...)
	s.pendingSamples = p.Samples
	s.hasPending = true
	return nil
}

func (s *stream) writeAudio(eos bool) error {
	s.granule += int64(s.pendingSamples) * s.scale
	s.packet = ogg.Packet{
		Data:       s.pending,
		GranulePos: s.granule,
		PacketNo:   s.packetNo,
		EOS:        eos,
	}
	s.hasPending = false
	s.packets++
	return s.writePacket()
}

func (s *stream) writePacket() error {
	err := s.ogg.WritePacket(&s.packet)
	s.packet.Data = nil
	if err != nil {
		return muxError(err)
	}
	s.packetNo++
	return nil
}

func muxError(err error) error {
	var oe *ogg.Error
	if errors.As(err, &oe) {
		return &MuxError{Stage: oe.Op, Err: oe.Err}
	}
	return &MuxError{Stage: StageWrite, Err: err}
}

// Close finishes the stream: it flushes the encoder, flags the final packet
// end-of-stream, writes the remaining pages and closes the sink if the
// Writer opened it. A stream that never saw a Write still gets its headers
// and warm-up. Calling Close again is a no-op.
//
// The encoder is not closed.
func (w *Writer) Close() error {
	w.cleanup.Stop()
	return w.stream.close()
}

func (s *stream) close() error {
	if s.state == stateFinished {
		return nil
	}

	var errs []error
	if s.err == nil {
		errs = append(errs, s.finish())
	}
	s.state = stateFinished
	errs = append(errs, s.ogg.Close())
	if s.closer != nil {
		errs = append(errs, s.closer.Close())
		s.closer = nil
	}
	s.logger.Debug("oggopus: stream finished", "stats", s.Stats())
	return errors.Join(errs...)
}

func (s *stream) finish() error {
	if s.state == stateHeadersPending {
		if err := s.writeHeaders(); err != nil {
			return err
		}
	}
	if err := s.enc.BufferedEncode(nil, true, s.onPacket); err != nil {
		return err
	}
	if s.hasPending {
		if err := s.writeAudio(true); err != nil {
			return err
		}
	}
	if err := s.ogg.Flush(); err != nil {
		return muxError(err)
	}
	return nil
}

// abandon finishes a stream whose Writer was garbage collected without
// Close.
func (s *stream) abandon() {
	if s.state == stateFinished {
		return
	}
	s.logger.Warn("oggopus: writer was not closed")
	if err := s.close(); err != nil {
		s.logger.Warn("oggopus: implicit close failed", "error", err)
	}
}
