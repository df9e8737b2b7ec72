// Package main is the entry point for the whisper-stream CLI.
//
// Usage:
//
//	whisper-stream [flags] <command> [subcommand] [args]
//
// Commands:
//
//	models  - List, download and locate whisper.cpp models
//	record  - Save a raw float32 sample stream as a 16 kHz WAV file
//	audio   - Inspect recorded WAV files
//	doctor  - Check the model cache and configured artifacts
package main

import (
	"fmt"
	"os"

	"whisper-stream/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
