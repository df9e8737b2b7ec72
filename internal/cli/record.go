package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"whisper-stream/internal/bootstrap"
)

func newRecordCommand(g *globals) *cobra.Command {
	var (
		out   string
		in    string
		chunk int
		padTo int
	)
	cmd := &cobra.Command{
		Use:   "record --out FILE",
		Short: "Save a raw float32 sample stream as a 16 kHz WAV file",
		Long: `Read little-endian float32 mono 16 kHz samples and save them as a
16-bit PCM WAV file. Recording stops at end of input or on interrupt; the
file header is completed in both cases.`,
		Args: cobra.NoArgs,
		RunE: g.withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
			if out == "" {
				return fmt.Errorf("--out is required")
			}

			var input io.Reader = cmd.InOrStdin()
			if in != "" && in != "-" {
				f, err := os.Open(in)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				input = f
			}

			ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := app.RecordStream(ctx, bootstrap.RecordRequest{
				Input:           input,
				OutputPath:      out,
				ChunkSamples:    chunk,
				MinChunkSamples: padTo,
			})
			if result.Message != "" {
				fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render(fmt.Sprintf(
				"%d samples in %d chunks", result.Samples, result.Chunks)))
			return nil
		}),
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "WAV file to write")
	cmd.Flags().StringVarP(&in, "in", "i", "-", "raw float32 input file, - for stdin")
	cmd.Flags().IntVar(&chunk, "chunk", bootstrap.DefaultChunkSamples, "samples per chunk")
	cmd.Flags().IntVar(&padTo, "pad-to", 0, "pad chunks shorter than this many samples with silence")
	return cmd
}

// cmdContext returns the command context, which is nil outside ExecuteContext.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
