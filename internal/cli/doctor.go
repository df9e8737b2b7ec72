package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"whisper-stream/internal/bootstrap"
	"whisper-stream/internal/domain"
)

// errChecksFailed is returned by doctor so the exit status reflects the report.
var errChecksFailed = errors.New("one or more checks failed")

func newDoctorCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the model cache and configured artifacts",
		Args:  cobra.NoArgs,
		RunE: g.withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
			report, err := app.RefreshDiagnostics()
			if err != nil {
				return err
			}
			renderReport(cmd.OutOrStdout(), report)
			if report.HasFailures {
				return errChecksFailed
			}
			return nil
		}),
	}
}

func renderReport(w io.Writer, report domain.DiagnosticReport) {
	for _, item := range report.Items {
		status := passStyle.Render("PASS")
		if item.Status == domain.DiagnosticStatusFail {
			status = failStyle.Render("FAIL")
		}
		fmt.Fprintf(w, "%s %s %s\n", status, padRight(labelStyle.Render(item.Name), 16), item.Message)
		if item.Hint != "" {
			fmt.Fprintf(w, "     %s\n", dimStyle.Render(item.Hint))
		}
	}
	passed, failed := report.Counts()
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d passed, %d failed", passed, failed)))
}
