package commands

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/oggvoice/pkg/audio/oggopus"
	"github.com/haivivi/oggvoice/pkg/audio/pcm"
	"github.com/haivivi/oggvoice/pkg/cli"
)

var (
	decodeIn    string
	decodeOut   string
	decodeRate  int
	decodeClock int
	decodeForce bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode -i <input> -o <output>",
	Short: "Decode an OggOpus stream to WAV or raw PCM",
	Long: `Decode an OggOpus stream to 16-bit PCM.

Outputs ending in .wav get a RIFF header; anything else is raw s16le.
The pre-skip is dropped and the tail is trimmed to the final granule
position, so the output has exactly the length that was encoded.
Streams written by other tools at a non-48 kHz encoder rate without a
48 kHz granule clock need --granule-rate set to that rate.

Examples:
  oggvoice decode -i speech.opus -o speech.wav
  oggvoice decode -i s3://voice/speech.opus -o speech.pcm --rate 16000
  oggvoice decode -i speech.opus -o - | aplay -f S16_LE -r 48000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if decodeIn == "" || decodeOut == "" {
			return fmt.Errorf("flags -i and -o are required")
		}
		cfg, err := GetConfig()
		if err != nil {
			return err
		}

		src, err := openSource(cmd.Context(), cfg, decodeIn)
		if err != nil {
			return err
		}
		defer src.Close()

		sink, err := openSink(cmd.Context(), cfg, decodeOut, decodeForce)
		if err != nil {
			return err
		}

		var (
			format pcm.Format
			size   int64
		)
		if strings.EqualFold(filepath.Ext(decodeOut), ".wav") {
			var data []byte
			data, format, err = oggopus.DecodeAll(src, decodeRate, oggopus.WithGranuleRate(decodeClock))
			if err == nil && int64(len(data)) > math.MaxUint32-pcm.WAVHeaderSize {
				err = fmt.Errorf("decoded audio too large for wav: %d bytes", len(data))
			}
			if err == nil {
				err = pcm.WriteWAVHeader(sink, format, uint32(len(data)))
			}
			if err == nil {
				_, err = sink.Write(data)
				size = int64(len(data))
			}
		} else {
			format, err = oggopus.Decode(src, decodeRate, func(b []byte) error {
				n, err := sink.Write(b)
				size += int64(n)
				return err
			}, oggopus.WithGranuleRate(decodeClock))
		}
		if cerr := sink.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("decode %s: %w", decodeIn, err)
		}

		cli.PrintSuccess("Decoded %s of %s audio to %s (%s)",
			cli.FormatDuration(format.Duration(size)), format, decodeOut, cli.FormatBytes(size))
		return nil
	},
}

func init() {
	decodeCmd.Flags().StringVarP(&decodeIn, "input", "i", "", "input stream (path, s3:// or '-')")
	decodeCmd.Flags().StringVarP(&decodeOut, "output", "o", "", "output .wav or raw PCM (path, s3:// or '-')")
	decodeCmd.Flags().IntVar(&decodeRate, "rate", 48000, "decode sample rate; must divide 48000")
	decodeCmd.Flags().IntVar(&decodeClock, "granule-rate", 48000, "clock of the stream's granule positions and pre-skip")
	decodeCmd.Flags().BoolVarP(&decodeForce, "force", "f", false, "overwrite an existing output file")
	rootCmd.AddCommand(decodeCmd)
}
