package resampler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/haivivi/oggvoice/pkg/audio/pcm"
)

// Resampler wraps an io.Reader and resamples audio from srcFmt to dstFmt.
// It supports sample rate conversion and channel conversion (mono↔stereo).
// The resampler must be closed with Close() to release resources.
type Resampler interface {
	io.ReadCloser
	CloseWithError(error) error
}

// Converter resamples 16-bit PCM read from an io.Reader using a pure Go
// resampler.
type Converter struct {
	srcFmt pcm.Format
	src    io.Reader

	dstFmt  pcm.Format
	readBuf []byte

	mu            sync.Mutex
	closeErr      error
	resampler     resampling.Resampler
	leftover      []byte
	needsResample bool
}

var _ Resampler = (*Converter)(nil)

// New creates a Resampler that converts audio read from src in srcFmt to
// dstFmt. Both formats carry 16-bit signed little-endian samples with one or
// two channels.
func New(src io.Reader, srcFmt, dstFmt pcm.Format) (*Converter, error) {
	if err := srcFmt.Validate(); err != nil {
		return nil, fmt.Errorf("resampler: source: %w", err)
	}
	if err := dstFmt.Validate(); err != nil {
		return nil, fmt.Errorf("resampler: destination: %w", err)
	}
	needsResample := srcFmt.SampleRate != dstFmt.SampleRate

	var resampler resampling.Resampler
	if needsResample {
		config := &resampling.Config{
			InputRate:  float64(srcFmt.SampleRate),
			OutputRate: float64(dstFmt.SampleRate),
			Channels:   dstFmt.Channels,
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		}
		var err error
		resampler, err = resampling.New(config)
		if err != nil {
			return nil, fmt.Errorf("resampler: create: %w", err)
		}
	}

	return &Converter{
		srcFmt:        srcFmt,
		src:           newFrameReader(src, srcFmt.FrameBytes()),
		dstFmt:        dstFmt,
		resampler:     resampler,
		needsResample: needsResample,
	}, nil
}

// Convert resamples a whole buffer from srcFmt to dstFmt.
func Convert(b []byte, srcFmt, dstFmt pcm.Format) ([]byte, error) {
	if srcFmt == dstFmt {
		return b, nil
	}
	r, err := New(bytes.NewReader(b), srcFmt, dstFmt)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Read copies resampled audio data into p. It returns the number of bytes
// written and any encountered error.
func (r *Converter) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	frame := r.dstFmt.FrameBytes()
	if len(p) < frame {
		return 0, io.ErrShortBuffer
	}
	p = p[:len(p)/frame*frame]

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.leftover) > 0 {
		n := copy(p, r.leftover)
		r.leftover = r.leftover[n:]
		return n, nil
	}

	if r.closeErr != nil {
		return 0, r.closeErr
	}

	if !r.needsResample {
		return r.readPassthrough(p)
	}
	return r.readResampled(p)
}

func (r *Converter) readResampled(p []byte) (int, error) {
	// Estimate how much source data is needed based on the rate ratio.
	ratio := float64(r.srcFmt.SampleRate) / float64(r.dstFmt.SampleRate)
	need := int(float64(len(p))*ratio) + r.srcFmt.FrameBytes()*4
	need = need / r.dstFmt.FrameBytes() * r.dstFmt.FrameBytes()

	bytesRead, readErr := r.readChannels(need)
	if bytesRead == 0 {
		if readErr != nil {
			return 0, readErr
		}
		return 0, io.EOF
	}

	// Normalise to -1.0..1.0 for the resampler.
	input := make([]float64, bytesRead/2)
	for i := range input {
		sample := int16(r.readBuf[i*2]) | int16(r.readBuf[i*2+1])<<8
		input[i] = float64(sample) / 32768.0
	}

	output, err := r.resampler.Process(input)
	if err != nil {
		return 0, fmt.Errorf("resampler: process: %w", err)
	}
	if len(output) == 0 {
		return 0, readErr
	}

	out := make([]byte, len(output)*2)
	for i, s := range output {
		sample := int16(s * 32767.0)
		if s > 1.0 {
			sample = 32767
		} else if s < -1.0 {
			sample = -32768
		}
		out[i*2] = byte(sample)
		out[i*2+1] = byte(sample >> 8)
	}
	out = out[:len(out)/r.dstFmt.FrameBytes()*r.dstFmt.FrameBytes()]

	n := copy(p, out)
	if len(out) > n {
		r.leftover = append(r.leftover, out[n:]...)
	}
	if n == 0 {
		return 0, readErr
	}
	// Hold back EOF until the leftover is drained.
	if len(r.leftover) > 0 && errors.Is(readErr, io.EOF) {
		readErr = nil
	}
	return n, readErr
}

func (r *Converter) readPassthrough(p []byte) (int, error) {
	n, err := r.readChannels(len(p))
	if n == 0 {
		return 0, err
	}
	copy(p, r.readBuf[:n])
	return n, err
}

// readChannels reads from the source into readBuf and converts to the
// destination channel count. dstLen is the size wanted after conversion.
func (r *Converter) readChannels(dstLen int) (int, error) {
	switch {
	case r.srcFmt.Channels == r.dstFmt.Channels:
		r.grow(dstLen)
		return r.src.Read(r.readBuf[:dstLen])

	case r.srcFmt.Channels == 2:
		srcLen := dstLen * 2
		r.grow(srcLen)
		rn, err := r.src.Read(r.readBuf[:srcLen])
		if rn == 0 {
			return 0, err
		}
		return stereoToMono(r.readBuf[:rn]), err

	default:
		r.grow(dstLen)
		rn, err := r.src.Read(r.readBuf[:dstLen/2/2*2])
		if rn == 0 {
			return 0, err
		}
		return monoToStereo(r.readBuf[:rn*2]), err
	}
}

func (r *Converter) grow(n int) {
	if cap(r.readBuf) < n {
		r.readBuf = make([]byte, n)
	}
}

// Close releases resources and marks the resampler as closed.
// Subsequent Read calls will return io.ErrClosedPipe.
func (r *Converter) Close() error {
	return r.CloseWithError(fmt.Errorf("resampler: %w", io.ErrClosedPipe))
}

// CloseWithError releases resources with a custom error. Subsequent
// Read calls will return the provided error.
func (r *Converter) CloseWithError(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closeErr == nil {
		r.closeErr = err
	}
	r.resampler = nil
	return nil
}

// stereoToMono converts stereo 16-bit samples to mono in-place by averaging L
// and R channels.
func stereoToMono(b []byte) int {
	numFrames := len(b) / 4
	for i := range numFrames {
		j := i * 4
		k := i * 2
		l := int16(b[j]) | int16(b[j+1])<<8
		r := int16(b[j+2]) | int16(b[j+3])<<8
		m := int16((int32(l) + int32(r)) / 2)
		b[k] = byte(m)
		b[k+1] = byte(m >> 8)
	}
	return numFrames * 2
}

// monoToStereo converts mono 16-bit samples to stereo in-place by duplicating
// each sample.
func monoToStereo(b []byte) int {
	stereoLen := len(b)
	numSamples := stereoLen / 4
	for i := numSamples - 1; i >= 0; i-- {
		s0, s1 := b[i*2], b[i*2+1]
		j := i * 4
		b[j], b[j+1] = s0, s1
		b[j+2], b[j+3] = s0, s1
	}
	return stereoLen
}
