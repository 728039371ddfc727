// Package resampler converts 16-bit PCM between sample rates and channel
// counts.
//
// It is used ahead of the Opus encoder, which only accepts 8, 12, 16, 24 and
// 48 kHz input. Sample rate conversion uses a pure Go resampler; channel
// conversion averages stereo down to mono or duplicates mono into stereo.
//
// Example usage:
//
//	src := pcm.Format{SampleRate: 44100, Channels: 2}
//	r, err := resampler.New(audioReader, src, pcm.L16Mono48K)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//	io.Copy(output, r)
package resampler
