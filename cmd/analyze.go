package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/taptone/internal/app"
)

// analyzeCmd represents the offline analysis command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] <file.wav>",
	Short: "Run a WAV recording through the tap tracker",
	Long: `Analyze a WAV recording chunk by chunk with the same acceptance rules as
live capture, then report the retained peaks.

The file is read as fast as possible, one analysis window per tick. Use
--realtime to play it at its own rate instead.

Examples:
  # Peaks of the last tap in the recording
  taptone analyze tap.wav

  # Average every tap above 40% and write JSON
  taptone analyze --threshold 40 --averaging --max-averages 10 -o json tap.wav

  # Finer resolution for low body resonances
  taptone analyze --window-length 32768 --min-freq 60 --max-freq 300 body.wav`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	addSessionFlags(analyzeCmd)

	analyzeCmd.Flags().Bool("realtime", false, "play the file at its own rate")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	appCtx, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	if appCtx.Realtime, err = cmd.Flags().GetBool("realtime"); err != nil {
		return err
	}

	tapApp, err := app.NewTapApp(appCtx)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	if err := tapApp.Analyze(ctx, args[0]); err != nil {
		return fmt.Errorf("analysis of %s failed: %w", args[0], err)
	}
	return nil
}
