// Package opus provides Opus audio codec encoding and decoding.
//
// This package implements the Opus codec specification as defined in RFC 6716.
// It provides TOC (Table of Contents) parsing, frame handling, and encoding/decoding
// capabilities using libopus via CGO.
package opus

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

type (
	// TOC represents the table-of-contents (TOC) header that signals which of the
	// various modes and configurations a given packet uses. It is composed
	// of a configuration number, "config", a stereo flag, "s", and a frame
	// count code, "c", arranged as illustrated:
	//
	//            0 1 2 3 4 5 6 7
	//           +-+-+-+-+-+-+-+-+
	//           | config  |s| c |
	//           +-+-+-+-+-+-+-+-+
	//
	// https://datatracker.ietf.org/doc/html/rfc6716#section-3.1
	TOC byte

	// Configuration numbers in each range (e.g., 0...3 for NB SILK-
	// only) correspond to the various choices of frame size, in the same
	// order. For example, configuration 0 has a 10 ms frame size and
	// configuration 3 has a 60 ms frame size.
	//
	// +-----------------------+-----------+-----------+-------------------+
	// | Configuration         | Mode      | Bandwidth | Frame Sizes       |
	// | Number(s)             |           |           |                   |
	// +-----------------------+-----------+-----------+-------------------+
	// | 0...3                 | SILK-only | NB        | 10, 20, 40, 60 ms |
	// | 4...7                 | SILK-only | MB        | 10, 20, 40, 60 ms |
	// | 8...11                | SILK-only | WB        | 10, 20, 40, 60 ms |
	// | 12...13               | Hybrid    | SWB       | 10, 20 ms         |
	// | 14...15               | Hybrid    | FB        | 10, 20 ms         |
	// | 16...19               | CELT-only | NB        | 2.5, 5, 10, 20 ms |
	// | 20...23               | CELT-only | WB        | 2.5, 5, 10, 20 ms |
	// | 24...27               | CELT-only | SWB       | 2.5, 5, 10, 20 ms |
	// | 28...31               | CELT-only | FB        | 2.5, 5, 10, 20 ms |
	// +-----------------------+-----------+-----------+-------------------+
	//
	// https://datatracker.ietf.org/doc/html/rfc6716#section-3.1
	Configuration byte

	// ConfigurationMode represents the operating mode of the Opus codec.
	// The LP (SILK) layer and MDCT (CELT) layer can be combined in three
	// possible operating modes:
	//
	// 1. A SILK-only mode for use in low bitrate connections with an audio
	//    bandwidth of WB or less,
	//
	// 2. A Hybrid (SILK+CELT) mode for SWB or FB speech at medium bitrates, and
	//
	// 3. A CELT-only mode for very low delay speech transmission as well
	//    as music transmission (NB to FB).
	//
	// https://datatracker.ietf.org/doc/html/rfc6716#section-3.1
	ConfigurationMode byte

	// FrameDuration represents the duration of an Opus frame.
	// Opus can encode frames of 2.5, 5, 10, 20, 40, or 60 ms.
	//
	// https://datatracker.ietf.org/doc/html/rfc6716#section-2.1.4
	FrameDuration byte

	// Bandwidth represents the audio bandwidth of an Opus stream.
	// The codec allows input and output of various audio bandwidths.
	//
	// +----------------------+-----------------+-------------------------+
	// | Abbreviation         | Audio Bandwidth | Sample Rate (Effective) |
	// +----------------------+-----------------+-------------------------+
	// | NB (narrowband)      |           4 kHz |                   8 kHz |
	// | MB (medium-band)     |           6 kHz |                  12 kHz |
	// | WB (wideband)        |           8 kHz |                  16 kHz |
	// | SWB (super-wideband) |          12 kHz |                  24 kHz |
	// | FB (fullband)        |      20 kHz (*) |                  48 kHz |
	// +----------------------+-----------------+-------------------------+
	//
	// https://datatracker.ietf.org/doc/html/rfc6716#section-2
	Bandwidth byte

	// FrameCode represents the number of frames per packet (codes 0 to 3):
	//
	// - 0: 1 frame in the packet
	// - 1: 2 frames in the packet, each with equal compressed size
	// - 2: 2 frames in the packet, with different compressed sizes
	// - 3: an arbitrary number of frames in the packet
	//
	// https://datatracker.ietf.org/doc/html/rfc6716#section-3.1
	FrameCode byte
)

// Configuration returns the configuration number from the TOC byte.
func (t TOC) Configuration() Configuration {
	return Configuration(t >> 3)
}

// IsStereo returns true if the TOC indicates stereo audio.
func (t TOC) IsStereo() bool {
	return (t & 0b00000100) != 0
}

// FrameCode returns the frame count code from the TOC byte.
func (t TOC) FrameCode() FrameCode {
	return FrameCode(t & 0b00000011)
}

// String returns a human-readable representation of the TOC.
func (t TOC) String() string {
	return fmt.Sprintf(
		"opus_toc: stereo=%v, mode=%s, bw=%s, %s, %s",
		t.IsStereo(),
		t.Configuration().Mode(),
		t.Configuration().Bandwidth(),
		t.FrameCode(),
		t.Configuration().FrameDuration(),
	)
}

// Frame code constants.
const (
	OneFrame FrameCode = iota
	TwoEqualFrames
	TwoDifferentFrames
	ArbitraryFrames
)

// String returns a human-readable representation of the FrameCode.
func (c FrameCode) String() string {
	switch c {
	case OneFrame:
		return "One Frame"
	case TwoEqualFrames:
		return "Two Equal Frames"
	case TwoDifferentFrames:
		return "Two Different Frames"
	case ArbitraryFrames:
		return "Arbitrary Frames"
	}
	return "Invalid Frame Code"
}

// Configuration mode constants.
const (
	Silk ConfigurationMode = iota + 1
	CELT
	Hybrid
)

// String returns a human-readable representation of the ConfigurationMode.
func (c ConfigurationMode) String() string {
	switch c {
	case Silk:
		return "Silk"
	case CELT:
		return "CELT"
	case Hybrid:
		return "Hybrid"
	}
	return "Invalid Configuration Mode"
}

// Mode returns the configuration mode (SILK, CELT, or Hybrid) for this configuration.
// https://datatracker.ietf.org/doc/html/rfc6716#section-3.1
func (c Configuration) Mode() ConfigurationMode {
	switch {
	case c <= 11:
		return Silk
	case c >= 12 && c <= 15:
		return Hybrid
	case c >= 16 && c <= 31:
		return CELT
	default:
		return 0
	}
}

// Frame duration constants.
const (
	Duration2500us FrameDuration = iota + 1
	Duration5ms
	Duration10ms
	Duration20ms
	Duration40ms
	Duration60ms
)

// frameTenths holds each FrameDuration in tenths of a millisecond.
var frameTenths = [...]int{
	Duration2500us: 25,
	Duration5ms:    50,
	Duration10ms:   100,
	Duration20ms:   200,
	Duration40ms:   400,
	Duration60ms:   600,
}

// Tenths returns the duration in tenths of a millisecond, or 0 if f is not
// a valid duration.
func (f FrameDuration) Tenths() int {
	if int(f) >= len(frameTenths) {
		return 0
	}
	return frameTenths[f]
}

// Duration returns the duration as a time.Duration.
func (f FrameDuration) Duration() time.Duration {
	return time.Duration(f.Tenths()) * 100 * time.Microsecond
}

// Samples returns the number of samples per channel in a frame of this
// duration at sampleRate.
func (f FrameDuration) Samples(sampleRate int) int {
	return sampleRate * f.Tenths() / 10000
}

// String returns the duration in milliseconds, e.g. "2.5ms".
func (f FrameDuration) String() string {
	if f.Tenths() == 0 {
		return "Invalid Frame Duration"
	}
	return strconv.FormatFloat(float64(f.Tenths())/10, 'f', -1, 64) + "ms"
}

// FrameDuration returns the frame duration for this configuration. SILK
// configurations step through 10, 20, 40 and 60 ms, Hybrid through 10 and
// 20 ms and CELT through 2.5, 5, 10 and 20 ms.
// https://datatracker.ietf.org/doc/html/rfc6716#section-3.1
func (c Configuration) FrameDuration() FrameDuration {
	switch {
	case c <= 11:
		return Duration10ms + FrameDuration(c%4)
	case c <= 15:
		return Duration10ms + FrameDuration(c%2)
	case c <= 31:
		return Duration2500us + FrameDuration(c%4)
	}
	return 0
}

// Bandwidth constants.
const (
	// NB (narrowband) is 4 kHz audio bandwidth
	NB Bandwidth = iota + 1
	// MB (medium-band) is 6 kHz audio bandwidth
	MB
	// WB (wideband) is 8 kHz audio bandwidth
	WB
	// SWB (super-wideband) is 12 kHz audio bandwidth
	SWB
	// FB (fullband) is 20 kHz audio bandwidth
	FB
)

// celtBandwidths maps the four CELT-only configuration groups; CELT has no
// medium-band.
var celtBandwidths = [4]Bandwidth{NB, WB, SWB, FB}

// Bandwidth returns the audio bandwidth for this configuration.
// https://datatracker.ietf.org/doc/html/rfc6716#section-3.1
func (c Configuration) Bandwidth() Bandwidth {
	switch {
	case c <= 11:
		return NB + Bandwidth(c/4)
	case c <= 13:
		return SWB
	case c <= 15:
		return FB
	case c <= 31:
		return celtBandwidths[(c-16)/4]
	}
	return 0
}

// String returns a human-readable representation of the Bandwidth.
func (b Bandwidth) String() string {
	switch b {
	case NB:
		return "Narrowband"
	case MB:
		return "Mediumband"
	case WB:
		return "Wideband"
	case SWB:
		return "Superwideband"
	case FB:
		return "Fullband"
	}
	return "Invalid Bandwidth"
}

// ParseFrameCountByte parses the frame count byte following the TOC byte
// for packets with arbitrary frame counts (code 3).
//
//	 0
//	 0 1 2 3 4 5 6 7
//	+-+-+-+-+-+-+-+-+
//	|v|p|     M     |
//	+-+-+-+-+-+-+-+-+
//
// https://datatracker.ietf.org/doc/html/rfc6716#section-3.2.5
func ParseFrameCountByte(in byte) (isVBR, hasPadding bool, frameCount byte) {
	isVBR = (in & 0b10000000) != 0
	hasPadding = (in & 0b01000000) != 0
	frameCount = in & 0b00111111
	return
}

// FrameDurations lists every frame duration Opus can encode, shortest first.
var FrameDurations = []FrameDuration{
	Duration2500us, Duration5ms, Duration10ms, Duration20ms, Duration40ms, Duration60ms,
}

// ParseFrameDuration maps a length in milliseconds (2.5, 5, 10, 20, 40 or 60)
// to a FrameDuration. The value is compared in tenths of a millisecond.
func ParseFrameDuration(ms float64) (FrameDuration, error) {
	tenths := math.Round(ms * 10)
	for _, fd := range FrameDurations {
		if float64(fd.Tenths()) == tenths && math.Abs(ms*10-tenths) < 1e-6 {
			return fd, nil
		}
	}
	return 0, fmt.Errorf("opus: invalid frame duration %gms", ms)
}
