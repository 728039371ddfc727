package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/oggvoice/pkg/cli"
)

// profileList renders profiles as a table, marking the current one.
type profileList struct {
	current  string
	Profiles []*cli.Profile `json:"profiles" yaml:"profiles"`
}

func (l profileList) Table() ([]string, [][]string) {
	headers := []string{"CURRENT", "NAME", "RATE", "CHANNELS", "FRAME", "APPLICATION", "BITRATE", "NORMALIZE"}
	rows := make([][]string, 0, len(l.Profiles))
	for _, p := range l.Profiles {
		current := ""
		if p.Name == l.current {
			current = "*"
		}
		bitrate := "auto"
		if p.Encoder.Bitrate > 0 {
			bitrate = fmt.Sprintf("%d", p.Encoder.Bitrate)
		}
		rows = append(rows, []string{
			current,
			p.Name,
			fmt.Sprintf("%d", p.Encoder.SampleRate),
			fmt.Sprintf("%d", p.Encoder.Channels),
			fmt.Sprintf("%gms", p.Encoder.FrameMillis),
			p.Encoder.Application,
			bitrate,
			fmt.Sprintf("%t", p.Normalize),
		})
	}
	return headers, rows
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage encoding profiles and storage settings.

A profile is a named set of encoder settings. The current profile is
used by encode and sine unless --profile is given; without any
profile the built-in "default" profile (48 kHz mono, 20 ms) applies.

Examples:
  oggvoice config init
  oggvoice config add-profile voice --rate 16000 --frame-ms 10 --application voip
  oggvoice config add-profile music -f music.yaml
  oggvoice config use voice
  oggvoice config profiles
  oggvoice config show`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the built-in profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if _, ok := cfg.Profiles[cli.DefaultProfile]; !ok {
			if err := cfg.AddProfile(cli.DefaultProfile, cli.BuiltinProfile()); err != nil {
				return err
			}
		}
		if cfg.CurrentProfile == "" {
			if err := cfg.UseProfile(cli.DefaultProfile); err != nil {
				return err
			}
		}
		cli.PrintSuccess("Config written to %s", cfg.Path())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		format := cli.OutputFormat(formatOutput)
		if format == cli.FormatTable {
			format = cli.FormatYAML
		}
		return cli.Output(cfg, cli.OutputOptions{Format: format})
	},
}

var configProfilesCmd = &cobra.Command{
	Use:     "profiles",
	Aliases: []string{"ls"},
	Short:   "List profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		names := cfg.ListProfiles()
		if len(names) == 0 && cli.OutputFormat(formatOutput) == cli.FormatTable {
			cli.PrintInfo("No profiles configured; the built-in default profile is used.")
			cli.PrintInfo("Create one with: oggvoice config add-profile <name>")
			return nil
		}
		list := profileList{current: cfg.CurrentProfile, Profiles: []*cli.Profile{}}
		for _, name := range names {
			p, err := cfg.GetProfile(name)
			if err != nil {
				return err
			}
			list.Profiles = append(list.Profiles, p)
		}
		return output(list)
	},
}

var (
	profileFile        string
	addProfileFlags    = newProfileFlags()
	addProfileActivate bool
)

var configAddProfileCmd = &cobra.Command{
	Use:   "add-profile <name>",
	Short: "Create or replace a profile",
	Long: `Create or replace a profile. Settings start from the built-in
profile, or from a YAML/JSON profile file given with -f, and are then
overridden by flags.

Profile file example:
  encoder:
    channels: 1
    sample_rate: 16000
    frame_ms: 10
    application: voip
    bitrate: 24000
  normalize: true`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		base := cli.BuiltinProfile()
		if profileFile != "" {
			base = &cli.Profile{}
			if err := cli.LoadFile(profileFile, base); err != nil {
				return err
			}
		}
		p := addProfileFlags.apply(base)
		if err := cfg.AddProfile(args[0], p); err != nil {
			return err
		}
		if addProfileActivate {
			if err := cfg.UseProfile(args[0]); err != nil {
				return err
			}
		}
		cli.PrintSuccess("Profile %q saved.", args[0])
		return nil
	},
}

var configDeleteProfileCmd = &cobra.Command{
	Use:   "delete-profile <name>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteProfile(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Profile %q deleted.", args[0])
		return nil
	},
}

var configUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the current profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseProfile(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to profile %q.", args[0])
		return nil
	},
}

func init() {
	configAddProfileCmd.Flags().StringVarP(&profileFile, "file", "f", "", "YAML or JSON profile file")
	configAddProfileCmd.Flags().BoolVar(&addProfileActivate, "use", false, "make it the current profile")
	addProfileFlags.register(configAddProfileCmd)

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configProfilesCmd)
	configCmd.AddCommand(configAddProfileCmd)
	configCmd.AddCommand(configDeleteProfileCmd)
	configCmd.AddCommand(configUseCmd)
	rootCmd.AddCommand(configCmd)
}
