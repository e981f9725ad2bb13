package cmd

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-sonar/algorithms/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/RyanBlaney/taptone/configs"
)

var titleCaser = cases.Title(language.English)

// configTestCmd represents the config test command
var configTestCmd = &cobra.Command{
	Use:   "config-test",
	Short: "Test and display all configuration values",
	Long: `Test configuration loading and display all values to verify proper parsing.

This command loads and validates the configuration and displays every value in
a structured format, together with the derived analysis resolution.

Examples:
  # Test with default config file
  taptone config-test

  # Test with specific config file
  taptone --config /path/to/taptone.yaml config-test`,
	RunE: runConfigTest,
}

func init() {
	rootCmd.AddCommand(configTestCmd)
}

func runConfigTest(cmd *cobra.Command, args []string) error {
	fmt.Println("TAPTONE CONFIGURATION TEST")
	fmt.Println(strings.Repeat("=", 80))

	config, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	printSection("APPLICATION SETTINGS")
	printKeyValue("Verbose", fmt.Sprintf("%t", config.Verbose))
	printKeyValue("Log Level", titleCaser.String(config.LogLevel))
	printKeyValue("Output Format", config.OutputFormat)
	printKeyValue("Config Directory", config.ConfigDir)
	printKeyValue("Data Directory", config.DataDir)
	printKeyValue("Settings File", valueOrNone(config.SettingsFile))

	printSection("CAPTURE CONFIGURATION")
	printKeyValue("Backend", titleCaser.String(config.Capture.Backend))
	printKeyValue("Device", valueOrNone(config.Capture.Device))
	printKeyValue("Sample Rate", fmt.Sprintf("%d Hz", config.Capture.SampleRate))
	printKeyValue("Max Pending Chunks", fmt.Sprintf("%d", config.Capture.MaxPending))
	printKeyValue("Command", valueOrNone(config.Capture.Command))

	printSection("ANALYSIS CONFIGURATION")
	printKeyValue("Window Length", fmt.Sprintf("%d samples", config.Analysis.WindowLength))
	printKeyValue("Window Function", titleCaser.String(strings.ReplaceAll(config.Analysis.WindowFunction, "_", " ")))

	fftSize := config.Analysis.FFTSize
	if fftSize == 0 {
		fftSize = common.NextPowerOfTwo(config.Analysis.WindowLength)
	}
	printKeyValue("FFT Size", fmt.Sprintf("%d", fftSize))
	if config.Capture.SampleRate > 0 && fftSize > 0 {
		printSubsection("Derived")
		printKeyValue("  Bin Resolution", fmt.Sprintf("%.3f Hz", float64(config.Capture.SampleRate)/float64(fftSize)))
		printKeyValue("  Chunk Duration", fmt.Sprintf("%.3f s", float64(config.Analysis.WindowLength)/float64(config.Capture.SampleRate)))
		printKeyValue("  Nyquist", fmt.Sprintf("%.0f Hz", float64(config.Capture.SampleRate)/2))
	}

	printSection("TRACKER CONFIGURATION")
	printKeyValue("Threshold", fmt.Sprintf("%d%%", config.Tracker.ThresholdPercent))
	printKeyValue("Frequency Window", fmt.Sprintf("%.1f - %.1f Hz", config.Tracker.MinFrequency, config.Tracker.MaxFrequency))
	printKeyValue("Averaging", fmt.Sprintf("%t", config.Tracker.Averaging))
	printKeyValue("Max Averages", fmt.Sprintf("%d", config.Tracker.MaxAverages))
	printKeyValue("Hold On Complete", fmt.Sprintf("%t", config.Tracker.HoldOnComplete))
	printKeyValue("Tick Interval", config.Tracker.TickInterval.String())

	printSection("SERVER CONFIGURATION")
	printKeyValue("Enabled", fmt.Sprintf("%t", config.Server.Enabled))
	printKeyValue("Address", config.Server.Addr)

	printSection("OUTPUT CONFIGURATION")
	printKeyValue("Precision", fmt.Sprintf("%d", config.Output.Precision))
	printKeyValue("Timestamps", fmt.Sprintf("%t", config.Output.Timestamps))
	printKeyValue("Colors", fmt.Sprintf("%t", config.Output.Colors))

	if err := configs.ValidateConfig(config); err != nil {
		fmt.Println()
		fmt.Println(ColorRed + strings.Repeat("-", 80))
		fmt.Printf("CONFIGURATION INVALID: %v\n", err)
		fmt.Println(strings.Repeat("=", 80) + ColorReset)
		return err
	}

	fmt.Println()
	fmt.Println(ColorGreen + strings.Repeat("-", 80))
	fmt.Println("CONFIGURATION TEST COMPLETED SUCCESSFULLY")
	fmt.Printf("Config file: %s\n", getConfigFilePath())
	fmt.Println(strings.Repeat("=", 80) + ColorReset)

	return nil
}

func printSection(title string) {
	fmt.Printf("\n%s%s%s\n", ColorCyan, title, ColorReset)
	fmt.Println(strings.Repeat("-", len(title)))
}

func printSubsection(title string) {
	fmt.Printf("\n  %s\n", title)
}

func printKeyValue(key, value string) {
	if value == "" {
		fmt.Printf("%-35s\n", key)
	} else {
		fmt.Printf("%-35s %s\n", key+":", value)
	}
}

func valueOrNone(v string) string {
	if v == "" {
		return "(none)"
	}
	return v
}

func getConfigFilePath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return "(defaults only)"
}
