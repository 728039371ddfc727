package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haivivi/oggvoice/pkg/audio/pcm"
	"github.com/haivivi/oggvoice/pkg/catalog"
	"github.com/haivivi/oggvoice/pkg/cli"
)

// setupTestEnv points the home directory, and with it the config file and
// catalog, at a temporary directory.
func setupTestEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	globalConfig = nil
	t.Cleanup(func() { globalConfig = nil })
	return home
}

func runCmd(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	var outBuf, errBuf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); io.Copy(&outBuf, rOut) }()
	go func() { defer wg.Done(); io.Copy(&errBuf, rErr) }()

	verbose = false
	configPath = ""
	profileName = ""
	formatOutput = "table"

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	wOut.Close()
	wErr.Close()
	wg.Wait()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdout = outBuf.String()
	stderr = errBuf.String()
	if err != nil {
		exitCode = 1
		if stderr == "" {
			stderr = err.Error()
		} else {
			stderr += err.Error()
		}
	}

	resetFlags(rootCmd)
	return
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
		f.Value.Set(f.DefValue)
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, code := runCmd(t, args...)
	if code != 0 {
		t.Fatalf("oggvoice %s: exit %d: %s", strings.Join(args, " "), code, stderr)
	}
	return stdout
}

func writeWAV(t *testing.T, path string, f pcm.Format, data []byte) {
	t.Helper()
	var buf bytes.Buffer
	if err := pcm.WriteWAVHeader(&buf, f, uint32(len(data))); err != nil {
		t.Fatal(err)
	}
	buf.Write(data)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readWAV(t *testing.T, path string) (pcm.Format, []byte) {
	t.Helper()
	fh, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()
	f, size, err := pcm.ReadWAVHeader(fh)
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(fh)
	if err != nil {
		t.Fatal(err)
	}
	if int(size) != len(data) {
		t.Fatalf("wav data chunk says %d bytes, file has %d", size, len(data))
	}
	return f, data
}

func TestVersion(t *testing.T) {
	setupTestEnv(t)

	stdout := mustRun(t, "version")
	if !strings.Contains(stdout, "oggvoice") {
		t.Fatalf("expected 'oggvoice', got: %s", stdout)
	}
}

func TestVersionJSON(t *testing.T) {
	setupTestEnv(t)

	stdout := mustRun(t, "version", "--format", "json")
	if !strings.Contains(stdout, `"version"`) || !strings.Contains(stdout, `"opus"`) {
		t.Fatalf("expected JSON, got: %s", stdout)
	}
}

func TestConfigProfiles(t *testing.T) {
	home := setupTestEnv(t)

	mustRun(t, "config", "init")
	if _, err := os.Stat(filepath.Join(home, ".oggvoice", "config.yaml")); err != nil {
		t.Fatalf("config init did not write the file: %v", err)
	}

	mustRun(t, "config", "add-profile", "voice", "--rate", "16000", "--frame-ms", "10", "--application", "voip", "--use")
	stdout := mustRun(t, "config", "profiles")
	for _, want := range []string{"default", "voice", "16000", "10ms", "voip", "*"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("profiles output missing %q:\n%s", want, stdout)
		}
	}

	stdout = mustRun(t, "config", "show")
	if !strings.Contains(stdout, "current_profile: voice") {
		t.Errorf("config show:\n%s", stdout)
	}

	if _, _, code := runCmd(t, "config", "add-profile", "bad", "--channels", "3"); code == 0 {
		t.Error("add-profile accepted 3 channels")
	}
	if _, _, code := runCmd(t, "config", "use", "missing"); code == 0 {
		t.Error("use accepted an unknown profile")
	}

	mustRun(t, "config", "delete-profile", "voice")
	stdout = mustRun(t, "config", "profiles", "--format", "json")
	if strings.Contains(stdout, "voice") {
		t.Errorf("voice still listed after delete:\n%s", stdout)
	}
}

func TestConfigAddProfileFromFile(t *testing.T) {
	setupTestEnv(t)
	path := filepath.Join(t.TempDir(), "music.yaml")
	err := os.WriteFile(path, []byte("encoder:\n  channels: 2\n  sample_rate: 48000\n  frame_ms: 40\n  application: audio\n  bitrate: 96000\nnormalize: true\n"), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	mustRun(t, "config", "add-profile", "music", "-f", path, "--frame-ms", "60")
	stdout := mustRun(t, "config", "show")
	for _, want := range []string{"frame_ms: 60", "bitrate: 96000", "normalize: true", "channels: 2"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("config show missing %q:\n%s", want, stdout)
		}
	}
}

func TestSineInspectDecode(t *testing.T) {
	setupTestEnv(t)
	dir := t.TempDir()
	tone := filepath.Join(dir, "tone.opus")

	stdout := mustRun(t, "sine", "-o", tone, "--rate", "16000", "--seconds", "1", "--name", "tone")
	if !strings.Contains(stdout, "tone") || !strings.Contains(stdout, "16000 Hz") {
		t.Errorf("sine output:\n%s", stdout)
	}

	stdout = mustRun(t, "inspect", tone, "--format", "json")
	var res inspectResult
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("inspect json: %v\n%s", err, stdout)
	}
	if res.Channels != 1 || res.InputSampleRate != 16000 || res.Vendor == "" {
		t.Errorf("header = %+v", res)
	}
	if res.PreSkip == 0 {
		t.Error("pre-skip is 0")
	}
	// 16000 samples at 16 kHz are 48000 granule units.
	if got := res.FinalGranule - int64(res.PreSkip); got != 48000 {
		t.Errorf("final granule - pre-skip = %d, want 48000", got)
	}
	if res.Duration != time.Second {
		t.Errorf("duration = %v, want 1s", res.Duration)
	}
	if res.GranuleRate != 48000 || res.Resyncs != 0 {
		t.Errorf("granule rate = %d, resyncs = %d", res.GranuleRate, res.Resyncs)
	}
	last := len(res.Packets) - 1
	for i, p := range res.Packets {
		if p.EOS != (i == last) {
			t.Errorf("packet %d: eos = %v", i, p.EOS)
		}
		if p.PageNo < 2 {
			t.Errorf("packet %d on header page %d", i, p.PageNo)
		}
		if p.Samples != 960 {
			t.Errorf("packet %d: %d samples at 48 kHz, want 960", i, p.Samples)
		}
	}

	// Read with the wrong clock the same granules span three seconds.
	stdout = mustRun(t, "inspect", tone, "--format", "json", "--granule-rate", "16000")
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatal(err)
	}
	if res.Duration != 3*time.Second {
		t.Errorf("duration at 16 kHz clock = %v, want 3s", res.Duration)
	}

	stdout = mustRun(t, "inspect", tone)
	if !strings.Contains(stdout, "OggOpus stream") || !strings.Contains(stdout, "eos") {
		t.Errorf("inspect table:\n%s", stdout)
	}

	wav := filepath.Join(dir, "tone.wav")
	mustRun(t, "decode", "-i", tone, "-o", wav)
	f, data := readWAV(t, wav)
	if f != (pcm.Format{SampleRate: 48000, Channels: 1}) {
		t.Errorf("decoded format = %v", f)
	}
	if len(data) != 48000*2 {
		t.Errorf("decoded %d bytes, want %d", len(data), 48000*2)
	}

	raw := filepath.Join(dir, "tone.pcm")
	mustRun(t, "decode", "-i", tone, "-o", raw, "--rate", "16000")
	rawData, err := os.ReadFile(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(rawData) != 16000*2 {
		t.Errorf("decoded %d bytes at 16 kHz, want %d", len(rawData), 16000*2)
	}
	if _, _, code := runCmd(t, "decode", "-i", tone, "-o", raw); code == 0 {
		t.Error("decode overwrote an existing file without --force")
	}
}

func TestRecordings(t *testing.T) {
	setupTestEnv(t)
	dir := t.TempDir()
	first := filepath.Join(dir, "first.opus")
	second := filepath.Join(dir, "second.opus")

	mustRun(t, "sine", "-o", first, "--seconds", "0.2", "--name", "first")
	if _, _, code := runCmd(t, "sine", "-o", first, "--seconds", "0.2"); code == 0 {
		t.Error("sine overwrote an existing file without --force")
	}
	if _, _, code := runCmd(t, "sine", "-o", second, "--seconds", "0.2", "--name", "first"); code == 0 {
		t.Error("duplicate recording name accepted")
	}
	mustRun(t, "sine", "-o", second, "--seconds", "0.4", "--force")

	stdout := mustRun(t, "recordings", "list", "--format", "json")
	var list []*catalog.Recording
	if err := json.Unmarshal([]byte(stdout), &list); err != nil {
		t.Fatalf("list json: %v\n%s", err, stdout)
	}
	if len(list) != 2 {
		t.Fatalf("got %d recordings, want 2", len(list))
	}
	if list[0].Name != "first" || list[0].Location != first || list[1].Location != second {
		t.Errorf("recordings out of order: %+v %+v", list[0], list[1])
	}
	if list[1].Duration != 400*time.Millisecond {
		t.Errorf("second duration = %v", list[1].Duration)
	}

	stdout = mustRun(t, "recordings", "list")
	if !strings.Contains(stdout, "first") || !strings.Contains(stdout, "LOCATION") {
		t.Errorf("list table:\n%s", stdout)
	}

	stdout = mustRun(t, "recordings", "show", list[1].ID.String()[:20])
	if !strings.Contains(stdout, second) {
		t.Errorf("show by id prefix:\n%s", stdout)
	}

	mustRun(t, "recordings", "delete", "first")
	if _, _, code := runCmd(t, "recordings", "show", "first"); code == 0 {
		t.Error("show found a deleted recording")
	}
	if _, err := os.Stat(first); err != nil {
		t.Errorf("delete removed the stream: %v", err)
	}
}

func TestEncodeWAV(t *testing.T) {
	setupTestEnv(t)
	dir := t.TempDir()

	src := pcm.Format{SampleRate: 22050, Channels: 2}
	in := filepath.Join(dir, "in.wav")
	writeWAV(t, in, src, src.Sine(330, 500*time.Millisecond, 0.1))

	out := filepath.Join(dir, "out.opus")
	stdout := mustRun(t, "encode", "-i", in, "-o", out,
		"--rate", "24000", "--channels", "1", "--frame-ms", "60", "--normalize",
		"--no-catalog", "--format", "json")
	var rec catalog.Recording
	if err := json.Unmarshal([]byte(stdout), &rec); err != nil {
		t.Fatalf("encode json: %v\n%s", err, stdout)
	}
	if rec.SampleRate != 24000 || rec.Channels != 1 || rec.FrameMillis != 60 || rec.Packets == 0 {
		t.Errorf("recording = %+v", rec)
	}

	stdout = mustRun(t, "recordings", "list", "--format", "json")
	if strings.TrimSpace(stdout) != "[]" {
		t.Errorf("--no-catalog recording was catalogued: %s", stdout)
	}

	wav := filepath.Join(dir, "out.wav")
	mustRun(t, "decode", "-i", out, "-o", wav, "--rate", "24000")
	f, data := readWAV(t, wav)
	if f != (pcm.Format{SampleRate: 24000, Channels: 1}) {
		t.Errorf("decoded format = %v", f)
	}
	// The input peaks at a tenth of full scale; normalized output must be
	// far louder.
	if peak := pcm.Peak(data); peak < 20000 {
		t.Errorf("decoded peak = %d, want a normalized signal", peak)
	}
}

func TestEncodeRawPCM(t *testing.T) {
	setupTestEnv(t)
	dir := t.TempDir()

	src := pcm.Format{SampleRate: 48000, Channels: 1}
	in := filepath.Join(dir, "in.pcm")
	if err := os.WriteFile(in, src.Sine(440, 100*time.Millisecond, 0.5), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out.opus")
	mustRun(t, "encode", "-i", in, "-o", out, "--in-rate", "48000", "--pre-skip", "0", "--no-catalog")

	stdout := mustRun(t, "inspect", out, "--format", "json")
	var res inspectResult
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatal(err)
	}
	if res.PreSkip != 0 {
		t.Errorf("pre-skip = %d, want 0", res.PreSkip)
	}
	if res.FinalGranule != 4800 {
		t.Errorf("final granule = %d, want 4800", res.FinalGranule)
	}
	if len(res.Packets) != 5 {
		t.Errorf("got %d packets, want 5", len(res.Packets))
	}
}

func TestEncodeErrors(t *testing.T) {
	setupTestEnv(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.pcm")
	if err := os.WriteFile(in, make([]byte, 960), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"missing output", []string{"encode", "-i", in}},
		{"missing input file", []string{"encode", "-i", filepath.Join(dir, "nope.pcm"), "-o", filepath.Join(dir, "a.opus")}},
		{"bad frame", []string{"encode", "-i", in, "-o", filepath.Join(dir, "b.opus"), "--frame-ms", "15"}},
		{"bad rate", []string{"encode", "-i", in, "-o", filepath.Join(dir, "c.opus"), "--rate", "44100"}},
		{"unknown profile", []string{"encode", "-p", "nope", "-i", in, "-o", filepath.Join(dir, "d.opus")}},
		{"bad s3 location", []string{"encode", "-i", in, "-o", "s3://bucket-only"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, code := runCmd(t, tt.args...); code == 0 {
				t.Errorf("oggvoice %s succeeded", strings.Join(tt.args, " "))
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	home := setupTestEnv(t)
	mustRun(t, "config", "add-profile", "voice", "--rate", "16000", "--frame-ms", "40")

	catDir := filepath.Join(t.TempDir(), "catalog")
	t.Setenv("OGGVOICE_CATALOG_DIR", catDir)
	t.Setenv("OGGVOICE_PROFILE", "voice")

	out := filepath.Join(t.TempDir(), "tone.opus")
	stdout := mustRun(t, "sine", "-o", out, "--seconds", "0.2", "--format", "json")
	var rec catalog.Recording
	if err := json.Unmarshal([]byte(stdout), &rec); err != nil {
		t.Fatalf("sine json: %v\n%s", err, stdout)
	}
	if rec.SampleRate != 16000 || rec.FrameMillis != 40 {
		t.Errorf("OGGVOICE_PROFILE ignored: %+v", rec)
	}
	if _, err := os.Stat(filepath.Join(catDir, "MANIFEST")); err != nil {
		t.Errorf("catalog not opened in OGGVOICE_CATALOG_DIR: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, ".oggvoice", "catalog")); !os.IsNotExist(err) {
		t.Errorf("default catalog directory was used: %v", err)
	}

	// The --profile flag still wins over the environment.
	stdout = mustRun(t, "sine", "-o", out, "-f", "-p", "default", "--seconds", "0.2", "--format", "json")
	if err := json.Unmarshal([]byte(stdout), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.SampleRate != 48000 {
		t.Errorf("--profile default gave %d Hz", rec.SampleRate)
	}
}

func TestProfileFlags(t *testing.T) {
	f := newProfileFlags()
	cmd := &cobra.Command{Use: "profile"}
	f.register(cmd)
	if cmd.Flags().Lookup("frame-ms") != f.set.Lookup("frame-ms") {
		t.Fatal("command does not share the profile flags")
	}

	base := cli.BuiltinProfile()
	if diff := cmp.Diff(base, f.apply(base)); diff != "" {
		t.Errorf("no flags changed the profile (-want +got):\n%s", diff)
	}

	if err := cmd.ParseFlags([]string{"--rate", "16000", "--complexity", "3", "--normalize"}); err != nil {
		t.Fatal(err)
	}
	want := cli.BuiltinProfile()
	want.Encoder.SampleRate = 16000
	complexity := 3
	want.Encoder.Complexity = &complexity
	want.Normalize = true
	if diff := cmp.Diff(want, f.apply(base)); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}
	if base.Encoder.SampleRate != 48000 {
		t.Errorf("apply modified its input: rate %d", base.Encoder.SampleRate)
	}
}
