package resampler

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/haivivi/oggvoice/pkg/audio/pcm"
)

func TestChannelConversion(t *testing.T) {
	mono := pcm.Bytes([]int16{100, -200, 300})
	stereo, err := Convert(mono, pcm.Format{SampleRate: 16000, Channels: 1}, pcm.Format{SampleRate: 16000, Channels: 2})
	if err != nil {
		t.Fatal(err)
	}
	want := []int16{100, 100, -200, -200, 300, 300}
	got := pcm.Int16s(stereo)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	back, err := Convert(stereo, pcm.Format{SampleRate: 16000, Channels: 2}, pcm.Format{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back, mono) {
		t.Errorf("downmix = %v, want %v", pcm.Int16s(back), pcm.Int16s(mono))
	}
}

func TestRateConversion(t *testing.T) {
	tests := []struct {
		name     string
		src, dst pcm.Format
	}{
		{"16k to 48k", pcm.L16Mono16K, pcm.L16Mono48K},
		{"48k to 24k", pcm.L16Mono48K, pcm.L16Mono24K},
		{"48k stereo to 16k mono", pcm.L16Stereo48K, pcm.L16Mono16K},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.src.Sine(440, time.Second, 0.5)
			out, err := Convert(in, tt.src, tt.dst)
			if err != nil {
				t.Fatalf("Convert: %v", err)
			}
			if len(out)%tt.dst.FrameBytes() != 0 {
				t.Errorf("output of %d bytes is not frame aligned", len(out))
			}
			got := tt.dst.Duration(int64(len(out)))
			// The filter delay may hold back a few milliseconds.
			if got < 900*time.Millisecond || got > 1100*time.Millisecond {
				t.Errorf("output duration %v, want about 1s", got)
			}
			t.Logf("%s: %d -> %d bytes, peak %.1f dBFS", tt.name, len(in), len(out), pcm.PeakDBFS(out))
		})
	}
}

func TestClosedConverter(t *testing.T) {
	r, err := New(bytes.NewReader(make([]byte, 64)), pcm.L16Mono16K, pcm.L16Mono48K)
	if err != nil {
		t.Fatal(err)
	}
	r.Close()
	if _, err := r.Read(make([]byte, 32)); err == nil || err == io.EOF {
		t.Errorf("Read after Close = %v", err)
	}
}

func TestInvalidFormat(t *testing.T) {
	if _, err := New(bytes.NewReader(nil), pcm.Format{SampleRate: 16000, Channels: 3}, pcm.L16Mono16K); err == nil {
		t.Error("3 channels should be rejected")
	}
}
