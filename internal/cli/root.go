// Package cli implements the whisper-stream command tree.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"whisper-stream/internal/bootstrap"
	"whisper-stream/internal/metrics"
)

// globals holds persistent flag values and the lazily built application.
type globals struct {
	configPath      string
	verbose         bool
	metricsTextfile string

	app *bootstrap.App
}

// loadApp builds the application on first use.
func (g *globals) loadApp() (*bootstrap.App, error) {
	if g.app != nil {
		return g.app, nil
	}
	app, err := bootstrap.New(bootstrap.Options{
		ConfigPath: g.configPath,
		Verbose:    g.verbose,
	})
	if err != nil {
		return nil, err
	}
	g.app = app
	return app, nil
}

// finish flushes logs and writes the metrics textfile when requested.
func (g *globals) finish() error {
	if g.app == nil {
		return nil
	}
	_ = g.app.Logger.Sync()
	if g.metricsTextfile == "" {
		return nil
	}
	if err := metrics.WriteTextfile(g.metricsTextfile, g.app.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// withApp wraps a command body so the app is built before it runs and
// finished afterwards, even when the body fails.
func (g *globals) withApp(fn func(cmd *cobra.Command, args []string, app *bootstrap.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := g.loadApp()
		if err != nil {
			return err
		}
		runErr := fn(cmd, args, app)
		if err := g.finish(); err != nil {
			return errors.Join(runErr, err)
		}
		return runErr
	}
}

// NewRootCommand assembles the full command tree.
func NewRootCommand() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "whisper-stream",
		Short: "Model cache and audio capture for whisper.cpp streaming",
		Long: `whisper-stream - fetch whisper.cpp models and record audio for transcription.

Models are cached in the platform data directory:
  macOS:   ~/Library/Application Support/whisper-stream/
  Linux:   ~/.local/share/whisper-stream/
  Windows: %LOCALAPPDATA%/whisper-stream/

Settings are read from <config dir>/whisper-stream/config.yaml:
  cache_dir       override the model cache directory
  model           default model (base.en, tiny.en, small.en)
  coreml_encoder  also fetch the Core ML encoder for base.en
  log_level       debug, info, warn or error
  log_file        rotate JSON logs into this file

Examples:
  whisper-stream models fetch tiny.en
  arecord -f FLOAT_LE -r 16000 -c 1 -t raw | whisper-stream record --out take.wav
  whisper-stream audio info take.wav`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "", "config file (default <config dir>/whisper-stream/config.yaml)")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")
	flags.StringVar(&g.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(
		newModelsCommand(g),
		newRecordCommand(g),
		newAudioCommand(),
		newDoctorCommand(g),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}
