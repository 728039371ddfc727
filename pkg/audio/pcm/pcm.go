package pcm

import (
	"fmt"
	"io"
	"time"
)

// Common formats.
var (
	// L16Mono16K represents audio/L16; rate=16000; channels=1
	L16Mono16K = Format{SampleRate: 16000, Channels: 1}
	// L16Mono24K represents audio/L16; rate=24000; channels=1
	L16Mono24K = Format{SampleRate: 24000, Channels: 1}
	// L16Mono48K represents audio/L16; rate=48000; channels=1
	L16Mono48K = Format{SampleRate: 48000, Channels: 1}
	// L16Stereo48K represents audio/L16; rate=48000; channels=2
	L16Stereo48K = Format{SampleRate: 48000, Channels: 2}
)

// Depth is the bit depth of every format in this package.
const Depth = 16

// Chunk is a chunk of audio data.
type Chunk interface {
	Len() int64
	Format() Format
	WriteTo(w io.Writer) (int64, error)
}

// Format describes signed 16-bit little-endian interleaved PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// Validate reports whether the format is usable.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("pcm: invalid sample rate %d", f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("pcm: invalid channel count %d", f.Channels)
	}
	return nil
}

// FrameBytes returns the size of one sample across all channels.
func (f Format) FrameBytes() int {
	return f.Channels * Depth / 8
}

// Samples returns the number of samples per channel in the given number of
// bytes.
func (f Format) Samples(bytes int64) int64 {
	return bytes / int64(f.FrameBytes())
}

// SamplesInDuration returns the number of samples in the given duration.
func (f Format) SamplesInDuration(d time.Duration) int64 {
	return int64(time.Duration(f.SampleRate) * d / time.Second)
}

// BytesInDuration returns the number of bytes in the given duration.
func (f Format) BytesInDuration(d time.Duration) int64 {
	return f.SamplesInDuration(d) * int64(f.FrameBytes())
}

// Duration returns the duration of the given number of bytes.
func (f Format) Duration(bytes int64) time.Duration {
	return time.Duration(f.Samples(bytes)) * time.Second / time.Duration(f.SampleRate)
}

// BytesRate returns the byte rate of the audio data.
func (f Format) BytesRate() int {
	return f.SampleRate * f.FrameBytes()
}

// SilenceChunk returns a chunk of the given number of silent samples per
// channel.
func (f Format) SilenceChunk(samples int64) Chunk {
	return &SilenceChunk{
		len: samples * int64(f.FrameBytes()),
		fmt: f,
	}
}

// DataChunk returns a chunk of audio data.
func (f Format) DataChunk(data []byte) Chunk {
	return &DataChunk{
		Data: data,
		fmt:  f,
	}
}

// String returns a human-readable string representation of the format.
func (f Format) String() string {
	return fmt.Sprintf("audio/L16; rate=%d; channels=%d", f.SampleRate, f.Channels)
}

// DataChunk is a chunk of audio data.
type DataChunk struct {
	Data []byte
	fmt  Format
}

// Len returns the length of the audio data in bytes.
func (c *DataChunk) Len() int64 {
	return int64(len(c.Data))
}

// Format returns the audio format of this chunk.
func (c *DataChunk) Format() Format {
	return c.fmt
}

// WriteTo writes the audio data to the writer.
func (c *DataChunk) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(c.Data)
	return int64(n), err
}

// SilenceChunk is a chunk of silence.
type SilenceChunk struct {
	len int64
	fmt Format
}

// Len returns the length of the silence in bytes.
func (c *SilenceChunk) Len() int64 {
	return c.len
}

// Format returns the audio format of this chunk.
func (c *SilenceChunk) Format() Format {
	return c.fmt
}

var emptyBytes [32000]byte

// WriteTo writes silence (zero bytes) to the writer.
func (c *SilenceChunk) WriteTo(w io.Writer) (int64, error) {
	tw := c.len
	wn := int64(0)
	for tw > 0 {
		silence := emptyBytes[:min(tw, int64(len(emptyBytes)))]
		tw -= int64(len(silence))
		n, err := w.Write(silence)
		wn += int64(n)
		if err != nil {
			return wn, err
		}
	}
	return wn, nil
}
