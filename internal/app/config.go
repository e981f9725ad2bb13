package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RyanBlaney/sonido-sonar/logging"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/taptone/configs"
	"github.com/RyanBlaney/taptone/internal/tracker"
	"github.com/RyanBlaney/taptone/pkg/audio/peaks"
	"github.com/RyanBlaney/taptone/pkg/audio/spectral"
	"github.com/RyanBlaney/taptone/pkg/capture"
)

// SettingsOverride holds tracker controls from a settings file or the command
// line. Nil fields leave the underlying value alone.
type SettingsOverride struct {
	ThresholdPercent *int                   `json:"threshold_percent,omitempty" yaml:"threshold_percent,omitempty"`
	Window           *peaks.FrequencyWindow `json:"frequency_window,omitempty" yaml:"frequency_window,omitempty"`
	Averaging        *bool                  `json:"averaging,omitempty" yaml:"averaging,omitempty"`
	MaxAverages      *int                   `json:"max_averages,omitempty" yaml:"max_averages,omitempty"`
	Hold             *bool                  `json:"hold,omitempty" yaml:"hold,omitempty"`
}

// Apply writes the set fields of o over s
func (o *SettingsOverride) Apply(s tracker.Settings) tracker.Settings {
	if o == nil {
		return s
	}
	if o.ThresholdPercent != nil {
		s.ThresholdPercent = *o.ThresholdPercent
	}
	if o.Window != nil {
		s.Window = *o.Window
	}
	if o.Averaging != nil {
		s.Averaging = *o.Averaging
	}
	if o.MaxAverages != nil {
		s.MaxAverages = *o.MaxAverages
	}
	if o.Hold != nil {
		s.Hold = *o.Hold
	}
	return s
}

// loadSettingsFromFile loads tracker controls from a yaml or json file
func loadSettingsFromFile(filePath string) (*SettingsOverride, error) {
	// Check if file exists
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("settings file does not exist: %s", filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	// Determine file format
	switch filepath.Ext(filePath) {
	case ".yaml", ".yml":
		return parseSettingsYAML(data)
	case ".json":
		return parseSettingsJSON(data)
	default:
		// Try YAML first, then JSON
		if s, err := parseSettingsYAML(data); err == nil {
			return s, nil
		}
		return parseSettingsJSON(data)
	}
}

func parseSettingsYAML(data []byte) (*SettingsOverride, error) {
	var s SettingsOverride
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML settings: %w", err)
	}
	return &s, nil
}

func parseSettingsJSON(data []byte) (*SettingsOverride, error) {
	var s SettingsOverride
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse JSON settings: %w", err)
	}
	return &s, nil
}

// saveSettingsToFile writes the current controls so a later run can load them
func saveSettingsToFile(filePath string, s tracker.Settings) error {
	var (
		data []byte
		err  error
	)
	if filepath.Ext(filePath) == ".json" {
		data, err = json.MarshalIndent(s, "", "  ")
	} else {
		data, err = yaml.Marshal(s)
	}
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// settingsFromConfig builds the tracker controls of the base configuration
func settingsFromConfig(cfg *configs.Config) tracker.Settings {
	return tracker.Settings{
		ThresholdPercent: cfg.Tracker.ThresholdPercent,
		Window: peaks.FrequencyWindow{
			Min: cfg.Tracker.MinFrequency,
			Max: cfg.Tracker.MaxFrequency,
		},
		Averaging:   cfg.Tracker.Averaging,
		MaxAverages: cfg.Tracker.MaxAverages,
	}
}

// mergeSettings merges the base config, the settings file and CLI overrides,
// later sources winning
func mergeSettings(baseConfig *configs.Config, fileSettings, cliSettings *SettingsOverride) tracker.Settings {
	settings := settingsFromConfig(baseConfig)
	settings = fileSettings.Apply(settings)
	return cliSettings.Apply(settings)
}

// newAnalyzer builds the analyzer for the given sample rate
func newAnalyzer(cfg *configs.Config, sampleRate int, logger logging.Logger) (*spectral.Analyzer, error) {
	windowType, err := spectral.ParseWindowType(cfg.Analysis.WindowFunction)
	if err != nil {
		return nil, err
	}

	return spectral.NewAnalyzer(spectral.Config{
		SampleRate:   sampleRate,
		WindowLength: cfg.Analysis.WindowLength,
		FFTSize:      cfg.Analysis.FFTSize,
		WindowType:   windowType,
	}, logger)
}

// captureConfig derives the capture settings. Chunks are one analysis window long.
func captureConfig(cfg *configs.Config, path string) capture.Config {
	c := capture.Config{
		Backend:    capture.Backend(cfg.Capture.Backend),
		Device:     cfg.Capture.Device,
		SampleRate: cfg.Capture.SampleRate,
		ChunkSize:  cfg.Analysis.WindowLength,
		Command:    cfg.Capture.Command,
	}
	if path != "" {
		c.Backend = capture.BackendWAV
		c.Path = path
	}
	return c
}
