// Package main is the entry point for the oggvoice CLI.
//
// Usage:
//
//	oggvoice [flags] <command> [subcommand] [args]
//
// Commands:
//
//	encode      - Encode WAV or raw PCM into an OggOpus stream
//	decode      - Decode an OggOpus stream to WAV or raw PCM
//	inspect     - Show the headers, pages and packets of a stream
//	sine        - Encode a generated test tone
//	recordings  - List, show and delete catalogued recordings
//	config      - Manage encoding profiles and storage settings
//	version     - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/oggvoice/cmd/oggvoice/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
