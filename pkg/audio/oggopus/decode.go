package oggopus

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/haivivi/oggvoice/pkg/audio/codec/ogg"
	"github.com/haivivi/oggvoice/pkg/audio/codec/opus"
	"github.com/haivivi/oggvoice/pkg/audio/pcm"
)

// granuleRate is the clock of granule positions and pre-skip in a stream
// that follows RFC 7845.
const granuleRate = 48000

// DecodeOption configures Decode.
type DecodeOption func(*decodeOptions)

type decodeOptions struct {
	granuleRate int
}

// WithGranuleRate reads granule positions and the header pre-skip as
// samples at hz instead of 48 kHz. Streams written without WithTimebase48k
// count both at the encoder rate.
func WithGranuleRate(hz int) DecodeOption {
	return func(o *decodeOptions) { o.granuleRate = hz }
}

// Decode decodes the Opus stream in r to s16le PCM at sampleRate (0 means
// 48000) with the channel count of the stream. The pre-skip is dropped and
// the output is trimmed to the granule position of the last packet. fn
// receives each decoded chunk; the slice is not reused.
//
// A gap in the stream is concealed with packet loss concealment.
func Decode(r io.Reader, sampleRate int, fn func(pcm []byte) error, opts ...DecodeOption) (pcm.Format, error) {
	o := decodeOptions{granuleRate: granuleRate}
	for _, opt := range opts {
		opt(&o)
	}
	if sampleRate == 0 {
		sampleRate = granuleRate
	}
	if sampleRate < 0 || granuleRate%sampleRate != 0 {
		return pcm.Format{}, fmt.Errorf("%w: decode rate %d", ErrValidation, sampleRate)
	}
	if o.granuleRate <= 0 || granuleRate%o.granuleRate != 0 {
		return pcm.Format{}, fmt.Errorf("%w: granule rate %d", ErrValidation, o.granuleRate)
	}
	rd, err := NewReader(r)
	if err != nil {
		return pcm.Format{}, err
	}
	defer rd.Close()
	format := pcm.Format{SampleRate: sampleRate, Channels: int(rd.Head.Channels)}
	return format, decodePackets(rd, format, o.granuleRate, fn)
}

func decodePackets(rd *Reader, format pcm.Format, clock int, fn func([]byte) error) error {
	dec, err := opus.NewDecoder(format.SampleRate, format.Channels)
	if err != nil {
		return err
	}
	defer dec.Close()

	// toOutput converts a count on the stream clock to output samples.
	toOutput := func(n int64) int64 {
		return n * int64(format.SampleRate) / int64(clock)
	}
	preSkip := int64(rd.Head.PreSkip)
	skip := toOutput(preSkip)
	frameBytes := int64(format.FrameBytes())

	var (
		produced int64
		last     int
	)
	for p, err := range rd.Packets() {
		var out []byte
		switch {
		case errors.Is(err, ogg.ErrHole):
			slog.Warn("oggopus: hole in stream, concealing", "serial", rd.SerialNo)
			if last == 0 {
				continue
			}
			if out, err = dec.DecodePLC(last); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if out, err = dec.Decode(opus.Frame(p.Data)); err != nil {
				return err
			}
			last = len(out) / int(frameBytes)
		}

		if skip > 0 {
			d := min(skip, int64(len(out))/frameBytes)
			out = out[d*frameBytes:]
			skip -= d
		}
		if p != nil && p.EOS && p.GranulePos >= 0 {
			end := max(toOutput(p.GranulePos-preSkip), 0)
			if keep := end - produced; keep < int64(len(out))/frameBytes {
				out = out[:max(keep, 0)*frameBytes]
			}
		}
		if len(out) == 0 {
			continue
		}
		produced += int64(len(out)) / frameBytes
		if err := fn(out); err != nil {
			return err
		}
	}
	return nil
}

// DecodeAll decodes the whole stream in r into memory.
func DecodeAll(r io.Reader, sampleRate int, opts ...DecodeOption) ([]byte, pcm.Format, error) {
	var buf bytes.Buffer
	format, err := Decode(r, sampleRate, func(b []byte) error {
		buf.Write(b)
		return nil
	}, opts...)
	if err != nil {
		return nil, format, err
	}
	return slices.Clip(buf.Bytes()), format, nil
}
