package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/haivivi/oggvoice/pkg/cli"
)

var (
	// Global flags
	verbose      bool
	configPath   string
	profileName  string
	formatOutput string

	// Global configuration (loaded on first use)
	globalConfig *cli.Config

	// Environment overrides (loaded before every command)
	globalEnv *cli.Env
)

var rootCmd = &cobra.Command{
	Use:   "oggvoice",
	Short: "Encode, decode and inspect OggOpus voice recordings",
	Long: `oggvoice - OggOpus encoding from the command line.

Audio is encoded with libopus in fixed-size frames and muxed into an
RFC 7845 Ogg stream. Input and output locations may be local paths,
"-" for stdin/stdout, or s3://bucket/key objects.

Configuration is stored in ~/.oggvoice/config.yaml. Every encoded
stream is recorded in a catalog under ~/.oggvoice/catalog.

Examples:
  # Encode a WAV file with the current profile
  oggvoice encode -i speech.wav -o speech.opus

  # Encode 16 kHz voice in 10 ms frames and upload it
  oggvoice encode -i speech.wav -o s3://voice/speech.opus --rate 16000 --frame-ms 10

  # Decode back to WAV
  oggvoice decode -i speech.opus -o speech.wav

  # Look at the pages and packets of a stream
  oggvoice inspect speech.opus`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return loadEnv(cmd)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.oggvoice/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "encoding profile (default: current profile)")
	rootCmd.PersistentFlags().StringVar(&formatOutput, "format", "table", "output format: table, yaml, json")
}

// loadEnv loads .env files from the working directory and ~/.oggvoice and
// applies OGGVOICE_* variables to flags the user did not set.
func loadEnv(cmd *cobra.Command) error {
	files := []string{".env"}
	if paths, err := cli.NewPaths(); err == nil {
		files = append(files, filepath.Join(paths.BaseDir(), ".env"))
	}
	if err := cli.LoadDotEnv(files...); err != nil {
		return err
	}
	e, err := cli.LoadEnv(cmd.Context())
	if err != nil {
		return err
	}
	globalEnv = e
	if configPath == "" {
		configPath = e.ConfigPath
	}
	if profileName == "" {
		profileName = e.Profile
	}
	return nil
}

// getEnv returns the environment overrides.
func getEnv() *cli.Env {
	if globalEnv == nil {
		return &cli.Env{}
	}
	return globalEnv
}

// GetConfig returns the configuration, loading it on first use.
func GetConfig() (*cli.Config, error) {
	if globalConfig == nil || globalConfig.Path() != configPathOrDefault() {
		cfg, err := cli.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

func configPathOrDefault() string {
	if configPath != "" {
		return configPath
	}
	paths, err := cli.NewPaths()
	if err != nil {
		return ""
	}
	return paths.ConfigFile()
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}

// output prints a result to stdout in the selected format.
func output(result any) error {
	return cli.Output(result, cli.OutputOptions{Format: cli.OutputFormat(formatOutput)})
}
