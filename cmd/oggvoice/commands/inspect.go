package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/oggvoice/pkg/audio/codec/opus"
	"github.com/haivivi/oggvoice/pkg/audio/oggopus"
	"github.com/haivivi/oggvoice/pkg/cli"
)

// packetRow describes one audio packet of an inspected stream.
type packetRow struct {
	PacketNo  int64         `json:"packet_no" yaml:"packet_no"`
	PageNo    int64         `json:"page_no" yaml:"page_no"`
	Size      int           `json:"size" yaml:"size"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Samples   int           `json:"samples_48k" yaml:"samples_48k"`
	Mode      string        `json:"mode" yaml:"mode"`
	Bandwidth string        `json:"bandwidth" yaml:"bandwidth"`
	Granule   int64         `json:"granule" yaml:"granule"`
	EOS       bool          `json:"eos,omitempty" yaml:"eos,omitempty"`
}

// inspectResult is everything inspect reports about a stream.
type inspectResult struct {
	SerialNo        uint32        `json:"serial_no" yaml:"serial_no"`
	Channels        int           `json:"channels" yaml:"channels"`
	PreSkip         int           `json:"pre_skip" yaml:"pre_skip"`
	InputSampleRate int           `json:"input_sample_rate" yaml:"input_sample_rate"`
	OutputGain      float64       `json:"output_gain_db" yaml:"output_gain_db"`
	Vendor          string        `json:"vendor" yaml:"vendor"`
	Comments        []string      `json:"comments,omitempty" yaml:"comments,omitempty"`
	FinalGranule    int64         `json:"final_granule" yaml:"final_granule"`
	GranuleRate     int           `json:"granule_rate" yaml:"granule_rate"`
	Duration        time.Duration `json:"duration" yaml:"duration"`
	Resyncs         int           `json:"resyncs" yaml:"resyncs"`
	Packets         []packetRow   `json:"packets" yaml:"packets"`
}

func (r *inspectResult) fields() []cli.Field {
	inputRate := "unspecified"
	if r.InputSampleRate != 0 {
		inputRate = fmt.Sprintf("%d Hz", r.InputSampleRate)
	}
	fields := []cli.Field{
		{Label: "Serial", Value: strconv.FormatUint(uint64(r.SerialNo), 10)},
		{Label: "Channels", Value: strconv.Itoa(r.Channels)},
		{Label: "Pre-skip", Value: strconv.Itoa(r.PreSkip)},
		{Label: "Input rate", Value: inputRate},
		{Label: "Output gain", Value: fmt.Sprintf("%.2f dB", r.OutputGain)},
		{Label: "Vendor", Value: r.Vendor},
	}
	for _, c := range r.Comments {
		fields = append(fields, cli.Field{Label: "Comment", Value: c})
	}
	return append(fields,
		cli.Field{Label: "Packets", Value: strconv.Itoa(len(r.Packets))},
		cli.Field{Label: "Final granule", Value: fmt.Sprintf("%d @ %d Hz", r.FinalGranule, r.GranuleRate)},
		cli.Field{Label: "Duration", Value: cli.FormatDuration(r.Duration)},
		cli.Field{Label: "Resyncs", Value: strconv.Itoa(r.Resyncs)},
	)
}

func (r *inspectResult) Table() ([]string, [][]string) {
	headers := []string{"PACKET", "PAGE", "BYTES", "FRAME", "SAMPLES", "MODE", "BANDWIDTH", "GRANULE", "FLAGS"}
	rows := make([][]string, 0, len(r.Packets))
	for _, p := range r.Packets {
		granule := "-"
		if p.Granule >= 0 {
			granule = strconv.FormatInt(p.Granule, 10)
		}
		var flags []string
		if p.EOS {
			flags = append(flags, "eos")
		}
		rows = append(rows, []string{
			strconv.FormatInt(p.PacketNo, 10),
			strconv.FormatInt(p.PageNo, 10),
			strconv.Itoa(p.Size),
			p.Duration.String(),
			strconv.Itoa(p.Samples),
			p.Mode,
			p.Bandwidth,
			granule,
			strings.Join(flags, ","),
		})
	}
	return headers, rows
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <stream>",
	Short: "Show the headers, pages and packets of an OggOpus stream",
	Long: `Parse the OpusHead and OpusTags headers of a stream and list its
audio packets with the page each one ends on and its granule position.
Only the packet that completes a page carries a granule position.
SAMPLES is the packet length at 48 kHz. Resyncs counts the junk runs
skipped between pages.

Examples:
  oggvoice inspect speech.opus
  oggvoice inspect s3://voice/speech.opus --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		src, err := openSource(cmd.Context(), cfg, args[0])
		if err != nil {
			return err
		}
		defer src.Close()

		rd, err := oggopus.NewReader(src)
		if err != nil {
			return err
		}
		defer rd.Close()

		res := &inspectResult{
			SerialNo:        uint32(rd.SerialNo),
			Channels:        int(rd.Head.Channels),
			PreSkip:         int(rd.Head.PreSkip),
			InputSampleRate: int(rd.Head.InputSampleRate),
			OutputGain:      float64(rd.Head.OutputGain) / 256,
			Vendor:          rd.Tags.Vendor,
			Comments:        rd.Tags.Comments,
			GranuleRate:     inspectClock,
			Packets:         []packetRow{},
		}
		for p, err := range rd.Packets() {
			if err != nil {
				return err
			}
			frame := opus.Frame(p.Data)
			res.Packets = append(res.Packets, packetRow{
				PacketNo:  p.PacketNo,
				PageNo:    p.PageNo,
				Size:      len(p.Data),
				Duration:  frame.Duration(),
				Samples:   frame.Samples(48000),
				Mode:      frame.Mode().String(),
				Bandwidth: frame.Bandwidth().String(),
				Granule:   p.GranulePos,
				EOS:       p.EOS,
			})
			if p.GranulePos >= 0 {
				res.FinalGranule = p.GranulePos
			}
		}
		res.Resyncs = rd.Resyncs()
		if samples := res.FinalGranule - int64(res.PreSkip); samples > 0 && inspectClock > 0 {
			res.Duration = time.Duration(samples) * time.Second / time.Duration(inspectClock)
		}

		if cli.OutputFormat(formatOutput) != cli.FormatTable {
			return output(res)
		}
		styles := cli.NewStyles(cli.DefaultTheme)
		fmt.Println(styles.Fields("OggOpus stream", res.fields()))
		if len(res.Packets) > 0 {
			headers, rows := res.Table()
			fmt.Println(styles.Table(headers, rows, func(row int) bool {
				return res.Packets[row].EOS
			}))
		}
		return nil
	},
}

var inspectClock int

func init() {
	inspectCmd.Flags().IntVar(&inspectClock, "granule-rate", 48000, "clock of the stream's granule positions and pre-skip")
	rootCmd.AddCommand(inspectCmd)
}
