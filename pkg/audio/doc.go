// Package audio is the umbrella for the audio sub-packages:
//
//   - codec/opus: libopus encoder and decoder bindings and TOC parsing
//   - codec/ogg: libogg stream muxing and page reading
//   - opusenc: fixed-frame buffered Opus encoding of arbitrary-length PCM
//   - oggopus: RFC 7845 OggOpus stream writing, reading and decoding
//   - pcm: 16-bit PCM formats, test tones, levels and WAV headers
//   - resampler: sample rate and channel conversion
//
// Example usage:
//
//	import (
//	    "github.com/haivivi/oggvoice/pkg/audio/oggopus"
//	    "github.com/haivivi/oggvoice/pkg/audio/opusenc"
//	)
//
//	enc, _ := opusenc.NewFromConfig(opusenc.DefaultConfig())
//	w, _ := oggopus.Create("out.opus", enc)
//	w.Write(pcmData)
//	w.Close()
package audio
