package oggopus

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/haivivi/oggvoice/pkg/audio/codec/ogg"
	"github.com/haivivi/oggvoice/pkg/audio/codec/opus"
	"github.com/haivivi/oggvoice/pkg/audio/opusenc"
	"github.com/haivivi/oggvoice/pkg/audio/pcm"
	"github.com/haivivi/oggvoice/pkg/storage"
)

// fakeNative returns a two-byte packet per frame and a fixed delay.
type fakeNative struct {
	lookahead int
	frames    int
}

func (f *fakeNative) EncodeBytes(b []byte, frameSize int) (opus.Frame, error) {
	f.frames++
	return opus.Frame{0xfc, byte(f.frames)}, nil
}

func (f *fakeNative) Lookahead() (int, error) { return f.lookahead, nil }
func (f *fakeNative) Close()                  {}

func newFakeEncoder(t *testing.T, channels, rate int, ms float64, lookahead int) *opusenc.Encoder {
	t.Helper()
	enc, err := opusenc.NewFromConfig(opusenc.Config{
		Channels:    channels,
		SampleRate:  rate,
		FrameMillis: ms,
		Application: "audio",
	}, opusenc.WithNativeFactory(func(opusenc.NativeParams) (opusenc.Native, error) {
		return &fakeNative{lookahead: lookahead}, nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	return enc
}

func readAll(t *testing.T, b []byte) []*ogg.PacketInfo {
	t.Helper()
	var pkts []*ogg.PacketInfo
	for p, err := range ogg.ReadPackets(bytes.NewReader(b)) {
		if err != nil {
			t.Fatalf("read packets: %v", err)
		}
		pkts = append(pkts, p)
	}
	return pkts
}

func TestPreSkip(t *testing.T) {
	tests := []struct {
		lookahead, rate, want int
	}{
		{312, 48000, 480},
		{0, 48000, 240},
		{120, 48000, 480},
		{104, 16000, 320},
		{2759, 48000, 2880},
	}
	for _, tt := range tests {
		got, err := PreSkip(tt.lookahead, tt.rate)
		if err != nil {
			t.Errorf("PreSkip(%d, %d): %v", tt.lookahead, tt.rate, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PreSkip(%d, %d) = %d, want %d", tt.lookahead, tt.rate, got, tt.want)
		}
	}

	if _, err := PreSkip(2760, 48000); !errors.Is(err, ErrValidation) {
		t.Errorf("PreSkip(2760) err = %v, want ErrValidation", err)
	}
}

func TestWriterStream(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, newFakeEncoder(t, 1, 48000, 20, 312), WithSerialNo(7))
	if err != nil {
		t.Fatal(err)
	}

	chunk := make([]byte, 1920)
	if _, err := w.Write(chunk); err != nil {
		t.Fatal(err)
	}
	// The first packet is held back until the next one exists.
	if st := w.Stats(); st.Granule != 0 || st.Packets != 0 || st.PreSkip != 480 {
		t.Errorf("after first write: %+v", st)
	}
	if _, err := w.Write(chunk); err != nil {
		t.Fatal(err)
	}
	if st := w.Stats(); st.Granule != 960 || st.Packets != 1 {
		t.Errorf("after second write: %+v", st)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	st := w.Stats()
	if st.Granule != 2400 || st.Packets != 3 || st.Samples != 1920 {
		t.Errorf("after close: %+v", st)
	}
	t.Logf("stats: %+v", st)

	pkts := readAll(t, buf.Bytes())
	if len(pkts) != 5 {
		t.Fatalf("got %d packets, want 5", len(pkts))
	}

	head, err := ParseOpusHead(pkts[0].Data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(OpusHead{Channels: 1, PreSkip: 480}, head); diff != "" {
		t.Errorf("OpusHead mismatch (-want +got):\n%s", diff)
	}
	tags, err := ParseOpusTags(pkts[1].Data)
	if err != nil {
		t.Fatal(err)
	}
	if tags.Vendor != DefaultVendor || len(tags.Comments) != 0 {
		t.Errorf("OpusTags = %+v", tags)
	}

	// OpusHead is alone on page 0 and OpusTags ends page 1.
	if !pkts[0].BOS || pkts[0].PageNo != 0 || pkts[1].PageNo != 1 || pkts[1].GranulePos != 0 {
		t.Errorf("header pages: %+v %+v", pkts[0], pkts[1])
	}
	for i, p := range pkts {
		if p.SerialNo != 7 {
			t.Errorf("packet %d serial = %d", i, p.SerialNo)
		}
		if p.PacketNo != int64(i) {
			t.Errorf("packet %d packetno = %d", i, p.PacketNo)
		}
		if i >= 2 && (p.PageNo < 2 || p.BOS) {
			t.Errorf("audio packet %d on a header page or BOS", i)
		}
		if p.EOS != (i == 4) {
			t.Errorf("packet %d EOS = %v", i, p.EOS)
		}
	}
	if got := pkts[4].GranulePos; got != 2400 {
		t.Errorf("final granule = %d, want 2400", got)
	}
}

func TestWriterGranules(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, newFakeEncoder(t, 2, 48000, 20, 312))
	if err != nil {
		t.Fatal(err)
	}
	// Six seconds of stereo plus the 480-sample warm-up: 300 full frames
	// and a 480-sample tail. A page holds at most 255 small packets.
	if _, err := w.Write(make([]byte, 6*48000*4)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	pkts := readAll(t, buf.Bytes())[2:]
	if len(pkts) != 301 {
		t.Fatalf("got %d audio packets, want 301", len(pkts))
	}
	var (
		pageGranule int64
		pageNo      int64 = -1
		pages       int
		sum         int64
	)
	for i, p := range pkts {
		if p.PageGranule < pageGranule {
			t.Errorf("page %d granule %d after %d", p.PageNo, p.PageGranule, pageGranule)
		}
		if p.PageNo != pageNo {
			pages++
		}
		pageGranule, pageNo = p.PageGranule, p.PageNo
		sum += int64(opus.Frame(p.Data).Samples(48000))
		if p.GranulePos >= 0 && !p.EOS && p.GranulePos != sum {
			t.Errorf("packet %d granule %d, packet lengths add up to %d", i, p.GranulePos, sum)
		}
	}
	if pages < 2 {
		t.Errorf("audio spans %d pages, want several", pages)
	}
	if last := pkts[len(pkts)-1]; !last.EOS || last.GranulePos != 288480 {
		t.Errorf("last packet: eos=%v granule=%d", last.EOS, last.GranulePos)
	}
}

func TestWriterSampleCount(t *testing.T) {
	tests := []struct {
		channels int
		write    int
		writes   int
		want     int64
	}{
		{1, 3, 4, 6},
		{2, 3, 8, 6},
		{2, 1922, 1, 480},
	}
	for _, tt := range tests {
		w, err := NewWriter(&bytes.Buffer{}, newFakeEncoder(t, tt.channels, 48000, 20, 312))
		if err != nil {
			t.Fatal(err)
		}
		for range tt.writes {
			if _, err := w.Write(make([]byte, tt.write)); err != nil {
				t.Fatal(err)
			}
		}
		if got := w.Stats().Samples; got != tt.want {
			t.Errorf("%d ch, %d writes of %d bytes: samples = %d, want %d", tt.channels, tt.writes, tt.write, got, tt.want)
		}
		w.Close()
	}
}

func TestWriterClose(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, newFakeEncoder(t, 1, 48000, 20, 312))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	size := buf.Len()
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if buf.Len() != size {
		t.Errorf("second Close wrote %d bytes", buf.Len()-size)
	}

	_, err = w.Write(make([]byte, 10))
	if !errors.Is(err, ErrStreamFinished) || !errors.Is(err, ErrStreamState) {
		t.Errorf("Write after Close err = %v", err)
	}

	// Close without Write still yields headers and the warm-up frame.
	pkts := readAll(t, buf.Bytes())
	if len(pkts) != 3 {
		t.Fatalf("got %d packets, want 3", len(pkts))
	}
	if last := pkts[2]; !last.EOS || last.GranulePos != 480 {
		t.Errorf("last packet: eos=%v granule=%d", last.EOS, last.GranulePos)
	}
}

func TestWriterCustomPreSkip(t *testing.T) {
	for _, n := range []int{-1, 65536} {
		_, err := NewWriter(&bytes.Buffer{}, newFakeEncoder(t, 1, 48000, 20, 312), WithPreSkip(n))
		if !errors.Is(err, ErrValidation) {
			t.Errorf("WithPreSkip(%d) err = %v, want ErrValidation", n, err)
		}
	}

	t.Run("no audio", func(t *testing.T) {
		var buf bytes.Buffer
		w, err := NewWriter(&buf, newFakeEncoder(t, 1, 48000, 20, 312), WithPreSkip(0))
		if err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		if pkts := readAll(t, buf.Bytes()); len(pkts) != 2 {
			t.Errorf("got %d packets, want headers only", len(pkts))
		}
	})

	t.Run("no warm-up", func(t *testing.T) {
		var buf bytes.Buffer
		w, err := NewWriter(&buf, newFakeEncoder(t, 1, 48000, 20, 312), WithPreSkip(312))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(make([]byte, 960)); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		pkts := readAll(t, buf.Bytes())
		if len(pkts) != 3 {
			t.Fatalf("got %d packets, want 3", len(pkts))
		}
		head, _ := ParseOpusHead(pkts[0].Data)
		if head.PreSkip != 312 {
			t.Errorf("pre-skip = %d, want 312", head.PreSkip)
		}
		if got := pkts[2].GranulePos; got != 480 {
			t.Errorf("granule = %d, want 480", got)
		}
	})
}

func TestWriterTimebase48k(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, newFakeEncoder(t, 1, 16000, 20, 104), WithTimebase48k(), WithInputSampleRate(16000))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(make([]byte, 640)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	pkts := readAll(t, buf.Bytes())
	if len(pkts) != 4 {
		t.Fatalf("got %d packets, want 4", len(pkts))
	}
	head, _ := ParseOpusHead(pkts[0].Data)
	if diff := cmp.Diff(OpusHead{Channels: 1, PreSkip: 960, InputSampleRate: 16000}, head); diff != "" {
		t.Errorf("OpusHead mismatch (-want +got):\n%s", diff)
	}
	if got := pkts[3].GranulePos; got != 1920 {
		t.Errorf("final granule = %d, want 1920", got)
	}
}

func TestWriterInputSampleRate(t *testing.T) {
	for _, hz := range []int{-1, -44100} {
		_, err := NewWriter(&bytes.Buffer{}, newFakeEncoder(t, 1, 48000, 20, 312), WithInputSampleRate(hz))
		if !errors.Is(err, ErrValidation) {
			t.Errorf("WithInputSampleRate(%d) err = %v, want ErrValidation", hz, err)
		}
	}
}

func TestWriterOptions(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, newFakeEncoder(t, 2, 48000, 10, 312),
		WithSerialNo(-5), WithVendor("test-vendor"), WithInputSampleRate(44100))
	if err != nil {
		t.Fatal(err)
	}
	if w.SerialNo() != -5 {
		t.Errorf("SerialNo = %d", w.SerialNo())
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.SerialNo != -5 || r.Head.Channels != 2 || r.Head.InputSampleRate != 44100 || r.Tags.Vendor != "test-vendor" {
		t.Errorf("reader: serial=%d head=%+v tags=%+v", r.SerialNo, r.Head, r.Tags)
	}
}

// failWriter fails every write after the first n bytes.
type failWriter struct {
	n   int
	err error
}

func (f *failWriter) Write(p []byte) (int, error) {
	if len(p) > f.n {
		return 0, f.err
	}
	f.n -= len(p)
	return len(p), nil
}

func TestWriterMuxError(t *testing.T) {
	sinkErr := errors.New("disk full")
	w, err := NewWriter(&failWriter{err: sinkErr}, newFakeEncoder(t, 1, 48000, 20, 312))
	if err != nil {
		t.Fatal(err)
	}

	_, err = w.Write(make([]byte, 1920))
	var me *MuxError
	if !errors.As(err, &me) {
		t.Fatalf("err = %v, want *MuxError", err)
	}
	if me.Stage != StageWrite {
		t.Errorf("stage = %q, want %q", me.Stage, StageWrite)
	}
	if !errors.Is(err, ErrNativeMux) || !errors.Is(err, sinkErr) {
		t.Errorf("err = %v does not wrap ErrNativeMux and the sink error", err)
	}

	if _, again := w.Write(make([]byte, 10)); !errors.Is(again, sinkErr) {
		t.Errorf("second Write err = %v, want the first failure", again)
	}
	w.Close()
}

func TestWriteChunk(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, newFakeEncoder(t, 1, 48000, 20, 312))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.WriteChunk(pcm.L16Mono16K.SilenceChunk(100)); !errors.Is(err, ErrValidation) {
		t.Errorf("mismatched chunk err = %v", err)
	}
	if err := w.WriteChunk(pcm.L16Mono48K.SilenceChunk(960)); err != nil {
		t.Fatal(err)
	}
	if got := w.Stats().Samples; got != 960 {
		t.Errorf("samples = %d, want 960", got)
	}
}

func TestCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.opus")
	w, err := Create(path, newFakeEncoder(t, 1, 48000, 20, 312))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(make([]byte, 4800)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := Create(path, newFakeEncoder(t, 1, 48000, 20, 312)); !errors.Is(err, fs.ErrExist) {
		t.Errorf("Create over existing file err = %v, want fs.ErrExist", err)
	}

	r, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	var n int
	for _, err := range r.Packets() {
		if err != nil {
			t.Fatal(err)
		}
		n++
	}
	// 480 warm-up + 2400 samples in 960-sample frames.
	if n != 3 {
		t.Errorf("got %d audio packets, want 3", n)
	}
}

func TestNewStoreWriter(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	w, err := NewStoreWriter(ctx, store, "takes/one.opus", newFakeEncoder(t, 1, 48000, 20, 312))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(make([]byte, 1920)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	rc, err := store.Read(ctx, "takes/one.opus")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	r, err := NewReader(rc)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.Head.PreSkip != 480 {
		t.Errorf("pre-skip = %d", r.Head.PreSkip)
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		format     pcm.Format
		frameMs    float64
		opts       []Option
		decodeRate int
		decodeOpts []DecodeOption
	}{
		{"48k mono", pcm.L16Mono48K, 20, nil, 48000, nil},
		{"48k stereo 10ms", pcm.L16Stereo48K, 10, nil, 48000, nil},
		{"16k mono 48k timebase", pcm.L16Mono16K, 20, []Option{WithTimebase48k()}, 16000, nil},
		{"24k mono 60ms", pcm.L16Mono24K, 60, []Option{WithTimebase48k()}, 24000, nil},
		{"16k mono encoder timebase", pcm.L16Mono16K, 20, nil, 16000, []DecodeOption{WithGranuleRate(16000)}},
		{"16k mono encoder timebase to 48k", pcm.L16Mono16K, 20, nil, 48000, []DecodeOption{WithGranuleRate(16000)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := opusenc.NewFromConfig(opusenc.Config{
				Channels:    tt.format.Channels,
				SampleRate:  tt.format.SampleRate,
				FrameMillis: tt.frameMs,
				Application: "audio",
			})
			if err != nil {
				t.Fatal(err)
			}
			defer enc.Close()

			in := tt.format.Sine(440, 1100*time.Millisecond, 0.5)
			var buf bytes.Buffer
			w, err := NewWriter(&buf, enc, tt.opts...)
			if err != nil {
				t.Fatal(err)
			}
			// Odd write sizes exercise the frame buffer.
			for b := in; len(b) > 0; {
				n := min(len(b), 1234*tt.format.Channels)
				if _, err := w.Write(b[:n]); err != nil {
					t.Fatal(err)
				}
				b = b[n:]
			}
			if err := w.Close(); err != nil {
				t.Fatal(err)
			}
			t.Logf("%d bytes pcm -> %d bytes ogg, stats %+v", len(in), buf.Len(), w.Stats())

			out, format, err := DecodeAll(bytes.NewReader(buf.Bytes()), tt.decodeRate, tt.decodeOpts...)
			if err != nil {
				t.Fatal(err)
			}
			want := pcm.Format{SampleRate: tt.decodeRate, Channels: tt.format.Channels}
			if format != want {
				t.Errorf("format = %v, want %v", format, want)
			}
			if wantLen := len(in) * tt.decodeRate / tt.format.SampleRate; len(out) != wantLen {
				t.Errorf("decoded %d bytes, want %d", len(out), wantLen)
			}
			if peak := pcm.Peak(out); peak < 8000 {
				t.Errorf("decoded peak = %d, signal lost", peak)
			}
		})
	}
}

func TestDecodeGranuleRate(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, newFakeEncoder(t, 1, 48000, 20, 312))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	for _, hz := range []int{0, -16000, 44100} {
		_, _, err := DecodeAll(bytes.NewReader(buf.Bytes()), 48000, WithGranuleRate(hz))
		if !errors.Is(err, ErrValidation) {
			t.Errorf("WithGranuleRate(%d) err = %v, want ErrValidation", hz, err)
		}
	}
}
