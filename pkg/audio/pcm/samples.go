package pcm

import (
	"encoding/binary"
	"math"
	"time"
)

// Int16s decodes little-endian 16-bit samples. A trailing odd byte is
// ignored.
func Int16s(b []byte) []int16 {
	s := make([]int16, len(b)/2)
	for i := range s {
		s[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return s
}

// Bytes encodes samples as little-endian 16-bit PCM.
func Bytes(s []int16) []byte {
	b := make([]byte, len(s)*2)
	for i, v := range s {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}
	return b
}

// Sine generates d of a sine tone at freq Hz. amplitude is relative to full
// scale (0..1); every channel carries the same signal.
func (f Format) Sine(freq float64, d time.Duration, amplitude float64) []byte {
	n := f.SamplesInDuration(d)
	b := make([]byte, n*int64(f.FrameBytes()))
	amp := math.Min(math.Max(amplitude, 0), 1) * math.MaxInt16
	for i := int64(0); i < n; i++ {
		v := int16(math.Round(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(f.SampleRate))))
		for c := 0; c < f.Channels; c++ {
			binary.LittleEndian.PutUint16(b[(i*int64(f.Channels)+int64(c))*2:], uint16(v))
		}
	}
	return b
}

// Peak returns the largest absolute sample value in b.
func Peak(b []byte) int {
	peak := 0
	for i := 0; i+1 < len(b); i += 2 {
		v := int(int16(binary.LittleEndian.Uint16(b[i:])))
		if v < 0 {
			v = -v
		}
		peak = max(peak, v)
	}
	return peak
}

// PeakDBFS returns the peak level of b relative to full scale. Silence
// returns -Inf.
func PeakDBFS(b []byte) float64 {
	peak := Peak(b)
	if peak == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(float64(peak)/math.MaxInt16)
}

// Normalize scales b in place so its peak reaches full scale and returns
// the applied gain in dB. Silent input is left untouched.
func Normalize(b []byte) float64 {
	peak := Peak(b)
	if peak == 0 {
		return 0
	}
	gain := float64(math.MaxInt16) / float64(peak)
	ApplyGain(b, gain)
	return 20 * math.Log10(gain)
}

// ApplyGain multiplies every sample in b by gain, clipping to the 16-bit
// range.
func ApplyGain(b []byte, gain float64) {
	for i := 0; i+1 < len(b); i += 2 {
		v := math.Round(float64(int16(binary.LittleEndian.Uint16(b[i:]))) * gain)
		v = math.Max(math.MinInt16, math.Min(math.MaxInt16, v))
		binary.LittleEndian.PutUint16(b[i:], uint16(int16(v)))
	}
}
