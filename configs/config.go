package configs

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose      bool   `mapstructure:"verbose"`
	LogLevel     string `mapstructure:"log_level"`
	OutputFormat string `mapstructure:"output_format"`
	ConfigDir    string `mapstructure:"config_dir"`
	DataDir      string `mapstructure:"data_dir"`

	// Settings file with the tracker controls, yaml or json
	SettingsFile string `mapstructure:"settings_file"`

	// Audio input configuration
	Capture CaptureConfig `mapstructure:"capture"`

	// Spectrum analysis configuration
	Analysis AnalysisConfig `mapstructure:"analysis"`

	// Tap tracking controls
	Tracker TrackerConfig `mapstructure:"tracker"`

	// Live event stream
	Server ServerConfig `mapstructure:"server"`

	// Output configuration
	Output OutputConfig `mapstructure:"output"`
}

// CaptureConfig contains audio input settings. The chunk size is always the
// analysis window length.
type CaptureConfig struct {
	Backend    string `mapstructure:"backend"`
	Device     string `mapstructure:"device"`
	SampleRate int    `mapstructure:"sample_rate"`
	MaxPending int    `mapstructure:"max_pending"`
	Command    string `mapstructure:"command"`
}

// AnalysisConfig contains spectrum analysis settings
type AnalysisConfig struct {
	WindowLength   int    `mapstructure:"window_length"`
	FFTSize        int    `mapstructure:"fft_size"`
	WindowFunction string `mapstructure:"window_function"`
}

// TrackerConfig contains the initial tracker controls
type TrackerConfig struct {
	ThresholdPercent int           `mapstructure:"threshold_percent"`
	MinFrequency     float64       `mapstructure:"min_frequency"`
	MaxFrequency     float64       `mapstructure:"max_frequency"`
	Averaging        bool          `mapstructure:"averaging"`
	MaxAverages      int           `mapstructure:"max_averages"`
	HoldOnComplete   bool          `mapstructure:"hold_on_complete"`
	TickInterval     time.Duration `mapstructure:"tick_interval"`
}

// ServerConfig contains websocket server settings
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// OutputConfig contains output formatting settings
type OutputConfig struct {
	Precision  int  `mapstructure:"precision"`
	Timestamps bool `mapstructure:"timestamps"`
	Colors     bool `mapstructure:"colors"`
}

var (
	validBackends      = []string{"portaudio", "command", "wav"}
	validFormats       = []string{"json", "yaml", "table", "csv"}
	validLogLevels     = []string{"debug", "info", "warn", "error"}
	validWindowTypes   = []string{"blackman", "hann", "hamming", "blackman_harris", "bartlett", "rectangular", "welch"}
	maxAveragesAllowed = 10
)

// LoadConfig loads configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(viper.GetViper())
}

// LoadConfigFrom decodes the configuration held by v over the defaults
func LoadConfigFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	return config, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if !slices.Contains(validBackends, config.Capture.Backend) {
		return fmt.Errorf("capture backend must be one of %s", strings.Join(validBackends, ", "))
	}

	if config.Capture.SampleRate <= 0 {
		return fmt.Errorf("capture sample rate must be positive")
	}

	if config.Capture.MaxPending <= 0 {
		return fmt.Errorf("capture max pending must be positive")
	}

	if config.Analysis.WindowLength <= 0 {
		return fmt.Errorf("analysis window length must be positive")
	}

	if config.Analysis.FFTSize < 0 {
		return fmt.Errorf("analysis fft size cannot be negative")
	}

	if config.Analysis.FFTSize > 0 && config.Analysis.FFTSize < config.Analysis.WindowLength {
		return fmt.Errorf("analysis fft size %d is shorter than the window length %d",
			config.Analysis.FFTSize, config.Analysis.WindowLength)
	}

	if !slices.Contains(validWindowTypes, config.Analysis.WindowFunction) {
		return fmt.Errorf("unknown window function %q", config.Analysis.WindowFunction)
	}

	if config.Tracker.ThresholdPercent < 0 || config.Tracker.ThresholdPercent > 100 {
		return fmt.Errorf("threshold must be between 0 and 100")
	}

	nyquist := float64(config.Capture.SampleRate) / 2
	if config.Tracker.MinFrequency < 0 || config.Tracker.MaxFrequency > nyquist ||
		config.Tracker.MinFrequency >= config.Tracker.MaxFrequency {
		return fmt.Errorf("frequency window must satisfy 0 <= min < max <= %.1f", nyquist)
	}

	if config.Tracker.MaxAverages < 0 || config.Tracker.MaxAverages > maxAveragesAllowed {
		return fmt.Errorf("max averages must be between 0 and %d", maxAveragesAllowed)
	}

	if config.Tracker.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}

	if config.Server.Enabled && config.Server.Addr == "" {
		return fmt.Errorf("server address is required when the server is enabled")
	}

	if !slices.Contains(validFormats, config.OutputFormat) {
		return fmt.Errorf("output format must be one of %s", strings.Join(validFormats, ", "))
	}

	if !slices.Contains(validLogLevels, config.LogLevel) {
		return fmt.Errorf("log level must be one of %s", strings.Join(validLogLevels, ", "))
	}

	return nil
}
