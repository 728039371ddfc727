// Package pcm provides types and utilities for working with 16-bit linear
// PCM audio.
//
// Key types:
//   - Format: sample rate and channel count of interleaved s16le audio
//   - Chunk: Interface for audio data chunks
//   - DataChunk: Concrete implementation of Chunk for raw audio data
//   - SilenceChunk: Chunk that produces a given number of silent samples
//
// The package also generates test tones, measures and normalises peak level,
// and reads and writes RIFF/WAVE framing.
//
// Example usage:
//
//	format := pcm.L16Mono48K
//
//	// Calculate bytes needed for 20ms of audio
//	bytes := format.BytesInDuration(20 * time.Millisecond)
//
//	// Write 480 samples of silence
//	format.SilenceChunk(480).WriteTo(w)
package pcm
