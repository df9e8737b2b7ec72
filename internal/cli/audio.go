package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"whisper-stream/internal/audio"
)

func newAudioCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audio",
		Short: "Inspect recorded WAV files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "info FILE",
		Short: "Print format, length and peak level of a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wav, err := audio.ReadWAV(args[0])
			if err != nil {
				return err
			}

			var peak int
			for _, s := range wav.Samples {
				v := int(s)
				if v < 0 {
					v = -v
				}
				peak = max(peak, v)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, titleStyle.Render(args[0]))
			fmt.Fprintf(w, "%s %d Hz, %d channel(s), %d-bit PCM\n",
				padRight(labelStyle.Render("format"), 10),
				wav.Format.SampleRate, wav.Format.Channels, wav.Format.BitsPerSample)
			fmt.Fprintf(w, "%s %d\n", padRight(labelStyle.Render("samples"), 10), len(wav.Samples))
			fmt.Fprintf(w, "%s %s\n", padRight(labelStyle.Render("duration"), 10), wav.Duration())
			fmt.Fprintf(w, "%s %d\n", padRight(labelStyle.Render("peak"), 10), peak)
			return nil
		},
	})
	return cmd
}
