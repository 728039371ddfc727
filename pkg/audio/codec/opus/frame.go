package opus

import "time"

// Frame is one Opus packet: a TOC byte followed by one or more compressed
// frames (RFC 6716 section 3).
type Frame []byte

// TOC returns the packet's TOC byte, or 0 for an empty packet.
func (f Frame) TOC() TOC {
	if len(f) == 0 {
		return 0
	}
	return TOC(f[0])
}

// Frames returns how many frames the packet carries. A code 3 packet
// without its frame count byte counts as zero.
func (f Frame) Frames() int {
	if len(f) == 0 {
		return 0
	}
	switch f.TOC().FrameCode() {
	case OneFrame:
		return 1
	case TwoEqualFrames, TwoDifferentFrames:
		return 2
	}
	if len(f) < 2 {
		return 0
	}
	_, _, n := ParseFrameCountByte(f[1])
	return int(n)
}

// Duration returns the audio duration of the whole packet.
func (f Frame) Duration() time.Duration {
	return time.Duration(f.Frames()) * f.TOC().Configuration().FrameDuration().Duration()
}

// Samples returns the packet length in samples per channel at sampleRate.
// At 48000 this is the amount the packet advances an Ogg granule position.
func (f Frame) Samples(sampleRate int) int {
	return f.Frames() * f.TOC().Configuration().FrameDuration().Samples(sampleRate)
}

// Mode returns the coding mode of the packet.
func (f Frame) Mode() ConfigurationMode {
	return f.TOC().Configuration().Mode()
}

// Bandwidth returns the coded audio bandwidth of the packet.
func (f Frame) Bandwidth() Bandwidth {
	return f.TOC().Configuration().Bandwidth()
}
