package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/oggvoice/cmd/oggvoice/internal/build"
	"github.com/haivivi/oggvoice/pkg/audio/codec/opus"
	"github.com/haivivi/oggvoice/pkg/cli"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showVersion()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func showVersion() error {
	info := build.Get()
	lib, err := opus.Load()
	if err != nil {
		info.Opus = "unavailable: " + err.Error()
	} else {
		info.Opus = lib.Version
	}

	if cli.OutputFormat(formatOutput) != cli.FormatTable {
		return output(info)
	}
	fmt.Println(build.String())
	if IsVerbose() {
		fmt.Printf("  go:     %s\n", info.Go)
		fmt.Printf("  opus:   %s\n", info.Opus)
		if cfg, err := GetConfig(); err == nil {
			fmt.Printf("  config: %s\n", cfg.Path())
		} else {
			fmt.Printf("  config: (unavailable: %v)\n", err)
		}
	}
	return nil
}
