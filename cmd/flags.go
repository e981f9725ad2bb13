package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/taptone/internal/app"
	"github.com/RyanBlaney/taptone/pkg/audio/peaks"
)

// ANSI color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
)

// addSessionFlags registers the flags common to listen and analyze
func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().String("settings", "", "tracker settings file (yaml or json)")
	cmd.Flags().String("save-settings", "", "write the final tracker settings to this file")
	cmd.Flags().String("output-file", "", "write the result report to this file instead of stdout")
	cmd.Flags().BoolP("quiet", "q", false, "suppress log output")

	cmd.Flags().Int("threshold", 50, "trigger and peak threshold, 0-100")
	cmd.Flags().Float64("min-freq", 50, "lowest reported peak frequency in Hz")
	cmd.Flags().Float64("max-freq", 1000, "highest reported peak frequency in Hz")
	cmd.Flags().Bool("averaging", false, "average taps instead of replacing the spectrum")
	cmd.Flags().Int("max-averages", 0, "number of taps to average, 0-10")
	cmd.Flags().Bool("hold", false, "start with the display held")
}

// newAppContext builds the application context from the session flags. Only
// tracker flags given explicitly override the configuration and settings file.
func newAppContext(cmd *cobra.Command) (*app.Context, error) {
	flags := cmd.Flags()
	ctx := &app.Context{Verbose: opts.verbose}
	if flags.Changed("format") {
		ctx.OutputFormat = opts.outputFormat
	}

	var err error
	if ctx.SettingsFile, err = flags.GetString("settings"); err != nil {
		return nil, err
	}
	if ctx.SaveSettingsFile, err = flags.GetString("save-settings"); err != nil {
		return nil, err
	}
	if ctx.OutputFile, err = flags.GetString("output-file"); err != nil {
		return nil, err
	}
	if ctx.Quiet, err = flags.GetBool("quiet"); err != nil {
		return nil, err
	}

	overrides := &app.SettingsOverride{}
	if flags.Changed("threshold") {
		v, _ := flags.GetInt("threshold")
		overrides.ThresholdPercent = &v
	}
	if flags.Changed("min-freq") || flags.Changed("max-freq") {
		minHz, _ := flags.GetFloat64("min-freq")
		maxHz, _ := flags.GetFloat64("max-freq")
		if !flags.Changed("min-freq") || !flags.Changed("max-freq") {
			return nil, fmt.Errorf("--min-freq and --max-freq must be given together")
		}
		overrides.Window = &peaks.FrequencyWindow{Min: minHz, Max: maxHz}
	}
	if flags.Changed("averaging") {
		v, _ := flags.GetBool("averaging")
		overrides.Averaging = &v
	}
	if flags.Changed("max-averages") {
		v, _ := flags.GetInt("max-averages")
		overrides.MaxAverages = &v
	}
	if flags.Changed("hold") {
		v, _ := flags.GetBool("hold")
		overrides.Hold = &v
	}
	ctx.Overrides = overrides

	return ctx, nil
}

// signalContext is cancelled on interrupt or terminate
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
