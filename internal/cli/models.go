package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"whisper-stream/internal/bootstrap"
	"whisper-stream/internal/domain"
)

func newModelsCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List, download and locate whisper.cpp models",
	}
	cmd.AddCommand(
		newModelsListCommand(g),
		newModelsFetchCommand(g),
		newModelsPathCommand(g),
	)
	return cmd
}

func newModelsListCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the model catalog and which models are cached",
		Args:  cobra.NoArgs,
		RunE: g.withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
			renderModels(cmd.OutOrStdout(), app.GetWhisperModels(), app.Settings.Model)
			return nil
		}),
	}
}

// renderModels prints one row per model, marking the configured default.
func renderModels(w io.Writer, models []domain.WhisperModelOption, selected string) {
	fmt.Fprintln(w, titleStyle.Render("whisper.cpp models"))
	for _, m := range models {
		marker := "  "
		if m.ID == selected {
			marker = "* "
		}
		status := dimStyle.Render("not downloaded")
		if m.Downloaded {
			status = passStyle.Render("cached") + " " + dimStyle.Render(m.LocalPath)
		}
		fmt.Fprintf(w, "%s%s %s %s  %s\n",
			marker,
			padRight(labelStyle.Render(m.ID), 10),
			padRight(m.Name, 16),
			padRight(dimStyle.Render(m.SizeLabel), 9),
			status,
		)
	}
}

func newModelsFetchCommand(g *globals) *cobra.Command {
	var use bool
	cmd := &cobra.Command{
		Use:   "fetch [MODEL]",
		Short: "Download a model into the cache if it is missing",
		Long: `Download a model into the cache if it is missing.

Without MODEL the configured default is fetched. When coreml_encoder is
enabled the Core ML encoder is downloaded and unpacked as well.`,
		Args: cobra.MaximumNArgs(1),
		RunE: g.withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			path, err := app.EnsureModel(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)

			if use && id != "" {
				settings, err := app.SelectModel(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "default model set to %s\n", settings.Model)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&use, "use", false, "also make MODEL the configured default")
	return cmd
}

func newModelsPathCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "path [MODEL]",
		Short: "Print where a model is cached without downloading it",
		Args:  cobra.MaximumNArgs(1),
		RunE: g.withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			path, present, err := app.ModelPath(id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			if !present {
				fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render("not downloaded yet"))
			}
			return nil
		}),
	}
}
