package commands

import (
	"bytes"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/oggvoice/pkg/audio/pcm"
)

var (
	sineFlags     = newProfileFlags()
	sineOut       string
	sineName      string
	sineForce     bool
	sineSeconds   float64
	sineFreq      float64
	sineAmplitude float64
)

var sineCmd = &cobra.Command{
	Use:   "sine -o <output>",
	Short: "Encode a generated sine tone",
	Long: `Generate a sine tone at the profile format and encode it.

Useful for checking a profile or a player without any input audio.

Examples:
  oggvoice sine -o tone.opus
  oggvoice sine -o tone.opus --seconds 3 --freq 1000 --rate 16000 --frame-ms 60`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if sineOut == "" {
			return fmt.Errorf("flag -o is required")
		}
		if sineSeconds <= 0 {
			return fmt.Errorf("--seconds must be positive, got %g", sineSeconds)
		}
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		profile, err := resolveProfile(cfg, sineFlags)
		if err != nil {
			return err
		}

		f := pcm.Format{SampleRate: profile.Encoder.SampleRate, Channels: profile.Encoder.Channels}
		if err := f.Validate(); err != nil {
			return err
		}
		tone := f.Sine(sineFreq, time.Duration(sineSeconds*float64(time.Second)), sineAmplitude)

		rec, err := runEncode(cmd.Context(), cfg, encodeJob{
			profile: profile,
			input:   bytes.NewReader(tone),
			format:  f,
			output:  sineOut,
			name:    sineName,
			force:   sineForce,
		})
		if err != nil {
			return err
		}
		return printRecording(rec)
	},
}

func init() {
	sineCmd.Flags().StringVarP(&sineOut, "output", "o", "", "output stream (path, s3:// or '-')")
	sineCmd.Flags().StringVar(&sineName, "name", "", "unique catalog name for the recording")
	sineCmd.Flags().BoolVarP(&sineForce, "force", "f", false, "overwrite an existing output file")
	sineCmd.Flags().Float64Var(&sineSeconds, "seconds", 1, "tone length in seconds")
	sineCmd.Flags().Float64Var(&sineFreq, "freq", 440, "tone frequency in Hz")
	sineCmd.Flags().Float64Var(&sineAmplitude, "amplitude", 0.5, "amplitude relative to full scale (0-1)")
	sineFlags.register(sineCmd)
	rootCmd.AddCommand(sineCmd)
}
