package configs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// setDefaults sets default configuration values for all components
func setDefaults(v *viper.Viper) {
	// Capture defaults
	if !v.IsSet("capture.backend") {
		v.SetDefault("capture.backend", "portaudio")
	}
	if !v.IsSet("capture.device") {
		v.SetDefault("capture.device", "")
	}
	if !v.IsSet("capture.sample_rate") {
		v.SetDefault("capture.sample_rate", 44100)
	}
	if !v.IsSet("capture.max_pending") {
		v.SetDefault("capture.max_pending", 16)
	}
	if !v.IsSet("capture.command") {
		v.SetDefault("capture.command", "")
	}

	// Analysis defaults
	if !v.IsSet("analysis.window_length") {
		v.SetDefault("analysis.window_length", 16384)
	}
	if !v.IsSet("analysis.fft_size") {
		v.SetDefault("analysis.fft_size", 0)
	}
	if !v.IsSet("analysis.window_function") {
		v.SetDefault("analysis.window_function", "blackman")
	}

	// Tracker defaults
	if !v.IsSet("tracker.threshold_percent") {
		v.SetDefault("tracker.threshold_percent", 50)
	}
	if !v.IsSet("tracker.min_frequency") {
		v.SetDefault("tracker.min_frequency", 50.0)
	}
	if !v.IsSet("tracker.max_frequency") {
		v.SetDefault("tracker.max_frequency", 1000.0)
	}
	if !v.IsSet("tracker.averaging") {
		v.SetDefault("tracker.averaging", false)
	}
	if !v.IsSet("tracker.max_averages") {
		v.SetDefault("tracker.max_averages", 0)
	}
	if !v.IsSet("tracker.hold_on_complete") {
		v.SetDefault("tracker.hold_on_complete", true)
	}
	if !v.IsSet("tracker.tick_interval") {
		v.SetDefault("tracker.tick_interval", 100*time.Millisecond)
	}

	// Server defaults
	if !v.IsSet("server.enabled") {
		v.SetDefault("server.enabled", false)
	}
	if !v.IsSet("server.addr") {
		v.SetDefault("server.addr", "127.0.0.1:8642")
	}

	// Output defaults
	if !v.IsSet("output.precision") {
		v.SetDefault("output.precision", 2)
	}
	if !v.IsSet("output.timestamps") {
		v.SetDefault("output.timestamps", true)
	}
	if !v.IsSet("output.colors") {
		v.SetDefault("output.colors", true)
	}

	// Application defaults
	home, _ := os.UserHomeDir()
	if !v.IsSet("verbose") {
		v.SetDefault("verbose", false)
	}
	if !v.IsSet("log_level") {
		v.SetDefault("log_level", "info")
	}
	if !v.IsSet("output_format") {
		v.SetDefault("output_format", "table")
	}
	if !v.IsSet("config_dir") {
		v.SetDefault("config_dir", filepath.Join(home, ".config", "taptone"))
	}
	if !v.IsSet("data_dir") {
		v.SetDefault("data_dir", filepath.Join(home, ".local", "share", "taptone"))
	}
	if !v.IsSet("settings_file") {
		v.SetDefault("settings_file", "")
	}
}

// GetDefaultConfig returns a Config struct with all default values set
func GetDefaultConfig() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		// Application settings defaults
		Verbose:      false,
		LogLevel:     "info",
		OutputFormat: "table",
		ConfigDir:    filepath.Join(home, ".config", "taptone"),
		DataDir:      filepath.Join(home, ".local", "share", "taptone"),

		Capture:  GetDefaultCaptureConfig(),
		Analysis: GetDefaultAnalysisConfig(),
		Tracker:  GetDefaultTrackerConfig(),
		Server:   GetDefaultServerConfig(),
		Output:   GetDefaultOutputConfig(),
	}
}

// GetDefaultCaptureConfig returns default audio input settings
func GetDefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Backend:    "portaudio",
		SampleRate: 44100,
		MaxPending: 16,
	}
}

// GetDefaultAnalysisConfig returns default spectrum analysis settings
func GetDefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		WindowLength:   16384,
		WindowFunction: "blackman",
	}
}

// GetDefaultTrackerConfig returns the initial tracker controls
func GetDefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		ThresholdPercent: 50,
		MinFrequency:     50,
		MaxFrequency:     1000,
		HoldOnComplete:   true,
		TickInterval:     100 * time.Millisecond,
	}
}

func GetDefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr: "127.0.0.1:8642",
	}
}

// GetDefaultOutputConfig returns default output formatting settings
func GetDefaultOutputConfig() OutputConfig {
	return OutputConfig{
		Precision:  2,
		Timestamps: true,
		Colors:     true,
	}
}

// GetDefaultOutputConfigForFormat returns output config optimized for specific format
func GetDefaultOutputConfigForFormat(format string) OutputConfig {
	base := GetDefaultOutputConfig()

	switch format {
	case "json", "yaml":
		base.Colors = false
		base.Precision = 6
	case "csv":
		base.Colors = false
		base.Timestamps = false
	case "table":
		base.Colors = true
	default:
		// Keep defaults
	}

	return base
}
