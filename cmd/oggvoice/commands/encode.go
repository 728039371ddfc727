package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haivivi/oggvoice/pkg/audio/oggopus"
	"github.com/haivivi/oggvoice/pkg/audio/opusenc"
	"github.com/haivivi/oggvoice/pkg/audio/pcm"
	"github.com/haivivi/oggvoice/pkg/audio/resampler"
	"github.com/haivivi/oggvoice/pkg/catalog"
	"github.com/haivivi/oggvoice/pkg/cli"
)

// profileFlags override profile settings from the command line. encode,
// sine and config add-profile each get their own set.
type profileFlags struct {
	set *pflag.FlagSet

	rate        int
	channels    int
	frameMs     float64
	application string
	bitrate     int
	complexity  int
	normalize   bool
	vendor      string
}

func newProfileFlags() *profileFlags {
	f := &profileFlags{set: pflag.NewFlagSet("profile", pflag.ContinueOnError)}
	fs := f.set
	fs.IntVar(&f.rate, "rate", 0, "encoder sample rate: 8000, 12000, 16000, 24000 or 48000")
	fs.IntVar(&f.channels, "channels", 0, "encoder channels: 1 or 2")
	fs.Float64Var(&f.frameMs, "frame-ms", 0, "frame length in ms: 2.5, 5, 10, 20, 40 or 60")
	fs.StringVar(&f.application, "application", "", "coding mode: voip, audio or restricted_lowdelay")
	fs.IntVar(&f.bitrate, "bitrate", 0, "target bitrate in bits per second")
	fs.IntVar(&f.complexity, "complexity", 0, "encoder complexity 0-10")
	fs.BoolVar(&f.normalize, "normalize", false, "scale the input to a 0 dBFS peak")
	fs.StringVar(&f.vendor, "vendor", "", "OpusTags vendor string")
	return f
}

func (f *profileFlags) register(cmd *cobra.Command) {
	cmd.Flags().AddFlagSet(f.set)
}

// apply returns a copy of p with every flag given on the command line
// applied to it. The flags are parsed by the command's own flag set, so
// Changed is read from each flag rather than from set.Visit.
func (f *profileFlags) apply(p *cli.Profile) *cli.Profile {
	out := *p
	f.set.VisitAll(func(fl *pflag.Flag) {
		if !fl.Changed {
			return
		}
		switch fl.Name {
		case "rate":
			out.Encoder.SampleRate = f.rate
		case "channels":
			out.Encoder.Channels = f.channels
		case "frame-ms":
			out.Encoder.FrameMillis = f.frameMs
		case "application":
			out.Encoder.Application = f.application
		case "bitrate":
			out.Encoder.Bitrate = f.bitrate
		case "complexity":
			c := f.complexity
			out.Encoder.Complexity = &c
		case "normalize":
			out.Normalize = f.normalize
		case "vendor":
			out.Vendor = f.vendor
		}
	})
	return &out
}

// resolveProfile resolves --profile against the config and applies the
// override flags.
func resolveProfile(cfg *cli.Config, f *profileFlags) (*cli.Profile, error) {
	p, err := cfg.ResolveProfile(profileName)
	if err != nil {
		return nil, err
	}
	return f.apply(p), nil
}

// encodeJob describes one stream to produce.
type encodeJob struct {
	profile *cli.Profile
	input   io.Reader
	format  pcm.Format
	output  string
	name    string
	force   bool

	preSkip    int
	hasPreSkip bool
	noCatalog  bool
}

// runEncode encodes job.input into job.output and records the result in
// the catalog.
func runEncode(ctx context.Context, cfg *cli.Config, job encodeJob) (*catalog.Recording, error) {
	enc, err := opusenc.NewFromConfig(job.profile.Encoder, opusenc.WithLogger(slog.Default()))
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	dst := pcm.Format{SampleRate: enc.SampleRate(), Channels: enc.Channels()}
	conv, err := resampler.New(job.input, job.format, dst)
	if err != nil {
		return nil, err
	}
	defer conv.Close()

	opts := []oggopus.Option{
		oggopus.WithTimebase48k(),
		oggopus.WithInputSampleRate(job.format.SampleRate),
		oggopus.WithLogger(slog.Default()),
	}
	if job.profile.Vendor != "" {
		opts = append(opts, oggopus.WithVendor(job.profile.Vendor))
	}
	if job.hasPreSkip {
		opts = append(opts, oggopus.WithPreSkip(job.preSkip))
	}

	w, location, err := createWriter(ctx, cfg, job.output, job.force, enc, opts...)
	if err != nil {
		return nil, err
	}

	if job.profile.Normalize {
		var data []byte
		data, err = io.ReadAll(conv)
		if err == nil {
			gain := pcm.Normalize(data)
			slog.Debug("normalized input", "gain_db", gain)
			_, err = w.Write(data)
		}
	} else {
		_, err = io.Copy(w, conv)
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", job.output, err)
	}

	st := w.Stats()
	rec := &catalog.Recording{
		Name:        job.name,
		Location:    location,
		SerialNo:    st.SerialNo,
		SampleRate:  dst.SampleRate,
		Channels:    dst.Channels,
		FrameMillis: job.profile.Encoder.FrameMillis,
		Application: enc.Application().String(),
		PreSkip:     st.PreSkip,
		Packets:     st.Packets,
		Pages:       st.Pages,
		Bytes:       st.Bytes,
		Granule:     st.Granule,
		Duration:    dst.Duration(st.Samples * int64(dst.FrameBytes())),
	}
	slog.Debug("stream written", "location", location, "packets", st.Packets, "pages", st.Pages, "bytes", st.Bytes)

	if job.noCatalog || location == stdio {
		return rec, nil
	}
	cat, err := openCatalog(cfg)
	if err != nil {
		return nil, err
	}
	defer cat.Close()
	if err := cat.Add(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

var (
	encodeFlags     = newProfileFlags()
	encodeIn        string
	encodeOut       string
	encodeName      string
	encodeForce     bool
	encodePreSkip   int
	encodeNoCatalog bool
	encodeInRate    int
	encodeInChans   int
)

var encodeCmd = &cobra.Command{
	Use:   "encode -i <input> -o <output>",
	Short: "Encode WAV or raw PCM into an OggOpus stream",
	Long: `Encode 16-bit WAV or raw s16le PCM into an OggOpus stream.

The input is converted to the profile's sample rate and channel count
before encoding. Raw PCM input is read at --in-rate and --in-channels,
which default to the profile format.

Granule positions and pre-skip are written in 48 kHz units so that any
RFC 7845 player computes the right duration.

Examples:
  oggvoice encode -i speech.wav -o speech.opus
  oggvoice encode -i speech.wav -o speech.opus --rate 16000 --application voip
  cat speech.pcm | oggvoice encode -i - --in-rate 16000 -o s3://voice/speech.opus
  oggvoice encode -p music -i song.wav -o song.opus --name "first take"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if encodeIn == "" || encodeOut == "" {
			return fmt.Errorf("flags -i and -o are required")
		}
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		profile, err := resolveProfile(cfg, encodeFlags)
		if err != nil {
			return err
		}

		src, err := openSource(cmd.Context(), cfg, encodeIn)
		if err != nil {
			return err
		}
		defer src.Close()

		raw := pcm.Format{SampleRate: profile.Encoder.SampleRate, Channels: profile.Encoder.Channels}
		if encodeInRate != 0 {
			raw.SampleRate = encodeInRate
		}
		if encodeInChans != 0 {
			raw.Channels = encodeInChans
		}
		in, err := readPCMInput(src, raw)
		if err != nil {
			return err
		}
		slog.Debug("encoding", "input", encodeIn, "format", in.Format, "wav", in.WAV, "profile", profile.Name)

		rec, err := runEncode(cmd.Context(), cfg, encodeJob{
			profile:    profile,
			input:      in,
			format:     in.Format,
			output:     encodeOut,
			name:       encodeName,
			force:      encodeForce,
			preSkip:    encodePreSkip,
			hasPreSkip: cmd.Flags().Changed("pre-skip"),
			noCatalog:  encodeNoCatalog,
		})
		if err != nil {
			return err
		}
		return printRecording(rec)
	},
}

func init() {
	encodeCmd.Flags().StringVarP(&encodeIn, "input", "i", "", "input WAV or raw PCM (path, s3:// or '-')")
	encodeCmd.Flags().StringVarP(&encodeOut, "output", "o", "", "output stream (path, s3:// or '-')")
	encodeCmd.Flags().StringVar(&encodeName, "name", "", "unique catalog name for the recording")
	encodeCmd.Flags().BoolVarP(&encodeForce, "force", "f", false, "overwrite an existing output file")
	encodeCmd.Flags().IntVar(&encodePreSkip, "pre-skip", 0, "write this pre-skip and skip the warm-up silence")
	encodeCmd.Flags().BoolVar(&encodeNoCatalog, "no-catalog", false, "do not record the stream in the catalog")
	encodeCmd.Flags().IntVar(&encodeInRate, "in-rate", 0, "sample rate of raw PCM input")
	encodeCmd.Flags().IntVar(&encodeInChans, "in-channels", 0, "channels of raw PCM input")
	encodeFlags.register(encodeCmd)
	rootCmd.AddCommand(encodeCmd)
}
