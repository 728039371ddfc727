package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/oggvoice/pkg/catalog"
	"github.com/haivivi/oggvoice/pkg/cli"
)

// recordingFields lists the fields shown for a single recording.
func recordingFields(r *catalog.Recording) []cli.Field {
	name := r.Name
	if name == "" {
		name = "-"
	}
	return []cli.Field{
		{Label: "ID", Value: r.ID.String()},
		{Label: "Name", Value: name},
		{Label: "Location", Value: r.Location},
		{Label: "Serial", Value: strconv.FormatInt(int64(uint32(r.SerialNo)), 10)},
		{Label: "Format", Value: fmt.Sprintf("%d Hz, %d ch, %g ms frames, %s", r.SampleRate, r.Channels, r.FrameMillis, r.Application)},
		{Label: "Pre-skip", Value: strconv.Itoa(r.PreSkip)},
		{Label: "Duration", Value: cli.FormatDuration(r.Duration)},
		{Label: "Packets", Value: strconv.FormatInt(r.Packets, 10)},
		{Label: "Pages", Value: strconv.FormatInt(r.Pages, 10)},
		{Label: "Size", Value: cli.FormatBytes(r.Bytes)},
		{Label: "Bitrate", Value: cli.FormatBitrate(r.Bytes, r.Duration)},
		{Label: "Granule", Value: strconv.FormatInt(r.Granule, 10)},
		{Label: "Created", Value: r.CreatedAt.Local().Format(time.DateTime)},
	}
}

// printRecording prints one recording as a field block in table mode and
// as a document otherwise.
func printRecording(r *catalog.Recording) error {
	if cli.OutputFormat(formatOutput) != cli.FormatTable {
		return output(r)
	}
	styles := cli.NewStyles(cli.DefaultTheme)
	fmt.Println(styles.Fields("Recording", recordingFields(r)))
	return nil
}

// recordingList renders as a table and marshals as a plain list.
type recordingList []*catalog.Recording

func (l recordingList) Table() ([]string, [][]string) {
	headers := []string{"ID", "NAME", "DURATION", "FORMAT", "SIZE", "CREATED", "LOCATION"}
	rows := make([][]string, 0, len(l))
	for _, r := range l {
		rows = append(rows, []string{
			r.ID.String()[:13],
			r.Name,
			cli.FormatDuration(r.Duration),
			fmt.Sprintf("%dk/%dch", r.SampleRate/1000, r.Channels),
			cli.FormatBytes(r.Bytes),
			r.CreatedAt.Local().Format(time.DateTime),
			r.Location,
		})
	}
	return headers, rows
}

var recordingsCmd = &cobra.Command{
	Use:     "recordings",
	Aliases: []string{"rec"},
	Short:   "Manage catalogued recordings",
	Long: `Every stream written by encode and sine is recorded in a catalog
kept in ~/.oggvoice/catalog (or catalog_dir in the config file).

Recordings are referenced by name, by ID or by a unique ID prefix.

Examples:
  oggvoice recordings list
  oggvoice recordings show "first take"
  oggvoice recordings delete 01928f3a`,
}

var recordingsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recordings, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		cat, err := openCatalog(cfg)
		if err != nil {
			return err
		}
		defer cat.Close()

		list := recordingList{}
		for r, err := range cat.List(cmd.Context()) {
			if err != nil {
				return err
			}
			list = append(list, r)
		}
		if len(list) == 0 && cli.OutputFormat(formatOutput) == cli.FormatTable {
			cli.PrintInfo("No recordings yet. Create one with: oggvoice encode -i <input> -o <output>")
			return nil
		}
		return output(list)
	},
}

var recordingsShowCmd = &cobra.Command{
	Use:   "show <name|id>",
	Short: "Show one recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		cat, err := openCatalog(cfg)
		if err != nil {
			return err
		}
		defer cat.Close()

		r, err := cat.Find(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printRecording(r)
	},
}

var recordingsDeleteCmd = &cobra.Command{
	Use:     "delete <name|id>",
	Aliases: []string{"rm"},
	Short:   "Remove a recording from the catalog",
	Long: `Remove a recording from the catalog. The encoded stream itself is
left in place.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		cat, err := openCatalog(cfg)
		if err != nil {
			return err
		}
		defer cat.Close()

		r, err := cat.Find(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := cat.Delete(cmd.Context(), r.ID); err != nil {
			return err
		}
		cli.PrintSuccess("Recording %s deleted.", r.ID)
		return nil
	},
}

func init() {
	recordingsCmd.AddCommand(recordingsListCmd)
	recordingsCmd.AddCommand(recordingsShowCmd)
	recordingsCmd.AddCommand(recordingsDeleteCmd)
	rootCmd.AddCommand(recordingsCmd)
}
