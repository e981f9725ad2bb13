package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/output"
	"github.com/RyanBlaney/sonido-sonar/logging"

	"github.com/RyanBlaney/taptone/configs"
	"github.com/RyanBlaney/taptone/internal/server"
	"github.com/RyanBlaney/taptone/internal/tracker"
	"github.com/RyanBlaney/taptone/pkg/capture"
	"github.com/RyanBlaney/taptone/pkg/events"
)

// Context holds the application context and configuration
type Context struct {
	// CLI arguments
	SettingsFile     string // Tracker controls file (optional)
	SaveSettingsFile string // Where to write the final controls (optional)
	OutputFile       string
	OutputFormat     string
	Duration         time.Duration // Listen time limit, zero runs until interrupted
	Realtime         bool          // Pace file analysis at the file's own rate
	Watch            bool          // Reload tracker controls when the config file changes
	Verbose          bool
	Quiet            bool
	Overrides        *SettingsOverride

	// Runtime context
	Logger   logging.Logger
	Config   *configs.Config
	Settings tracker.Settings

	// Console receives committed samples, defaults to stderr
	Console io.Writer
}

// TapApp handles the application lifecycle
type TapApp struct {
	ctx      *Context
	config   *configs.Config
	settings tracker.Settings
	logger   logging.Logger
	factory  *capture.Factory
}

// NewTapApp creates a new application from the loaded configuration
func NewTapApp(ctx *Context) (*TapApp, error) {
	// Load configuration
	config, settings, err := loadAndMergeConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	ctx.Config = config
	ctx.Settings = settings

	// Set up logging
	logger := ctx.Logger
	if logger == nil {
		logger = setupLogging(ctx, config)
		ctx.Logger = logger
	}

	if ctx.OutputFormat == "" {
		ctx.OutputFormat = config.OutputFormat
	}
	if ctx.Console == nil {
		ctx.Console = os.Stderr
	}

	logger.Debug("Application initialized", logging.Fields{
		"settings_file":     ctx.SettingsFile,
		"output_format":     ctx.OutputFormat,
		"backend":           config.Capture.Backend,
		"threshold_percent": settings.ThresholdPercent,
		"min_hz":            settings.Window.Min,
		"max_hz":            settings.Window.Max,
	})

	return &TapApp{
		ctx:      ctx,
		config:   config,
		settings: settings,
		logger:   logger,
		factory:  capture.NewFactory(),
	}, nil
}

// setupLogging configures logging based on context
func setupLogging(ctx *Context, config *configs.Config) logging.Logger {
	if ctx.Quiet {
		return &logging.NoOpLogger{}
	}

	logger := logging.NewDefaultLogger()
	switch {
	case ctx.Verbose || config.Verbose || config.LogLevel == "debug":
		logger.SetLevel(logging.DebugLevel)
	case config.LogLevel == "warn":
		logger.SetLevel(logging.WarnLevel)
	case config.LogLevel == "error":
		logger.SetLevel(logging.ErrorLevel)
	default:
		logger.SetLevel(logging.InfoLevel)
	}
	return logger
}

// loadAndMergeConfig loads configuration from viper and files and merges CLI overrides
func loadAndMergeConfig(ctx *Context) (*configs.Config, tracker.Settings, error) {
	// Load base configuration
	baseConfig := ctx.Config
	if baseConfig == nil {
		var err error
		baseConfig, err = configs.LoadConfig()
		if err != nil {
			return nil, tracker.Settings{}, fmt.Errorf("failed to load base configuration: %w", err)
		}
	}

	if err := configs.ValidateConfig(baseConfig); err != nil {
		return nil, tracker.Settings{}, fmt.Errorf("invalid configuration: %w", err)
	}

	settingsFile := ctx.SettingsFile
	if settingsFile == "" {
		settingsFile = baseConfig.SettingsFile
	}

	var fileSettings *SettingsOverride
	if settingsFile != "" {
		var err error
		fileSettings, err = loadSettingsFromFile(settingsFile)
		if err != nil {
			return nil, tracker.Settings{}, fmt.Errorf("failed to load settings: %w", err)
		}
	}

	settings := mergeSettings(baseConfig, fileSettings, ctx.Overrides)

	// checked against the configured rate here and against the source rate by the tracker
	if err := settings.Validate(baseConfig.Capture.SampleRate); err != nil {
		return nil, tracker.Settings{}, fmt.Errorf("invalid tracker settings: %w", err)
	}

	return baseConfig, settings, nil
}

// Settings returns the merged tracker controls
func (app *TapApp) Settings() tracker.Settings {
	return app.settings
}

// session is one analysis run: a source feeding a tracker through a queue
type session struct {
	source  capture.Source
	queue   *capture.Queue
	tracker *tracker.Tracker
	bus     *events.Bus
}

func (app *TapApp) newSession(path string, reporter events.Publisher) (*session, error) {
	queue := capture.NewQueue(app.config.Capture.MaxPending)

	source, err := app.factory.Create(captureConfig(app.config, path), queue, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture source: %w", err)
	}

	analyzer, err := newAnalyzer(app.config, source.SampleRate(), app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	bus := events.NewBus()
	publisher := events.Multi{bus}
	if reporter != nil {
		publisher = append(publisher, reporter)
	}

	tr, err := tracker.New(tracker.Config{
		Analyzer:       analyzer,
		Queue:          queue,
		Publisher:      publisher,
		Logger:         app.logger,
		Settings:       app.settings,
		TickInterval:   app.config.Tracker.TickInterval,
		HoldOnComplete: app.config.Tracker.HoldOnComplete,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracker: %w", err)
	}

	return &session{
		source:  source,
		queue:   queue,
		tracker: tr,
		bus:     bus,
	}, nil
}

// Listen analyzes the live input until ctx is done or the duration elapses
func (app *TapApp) Listen(ctx context.Context, path string) error {
	s, err := app.newSession(path, newConsoleReporter(app.ctx.Console, app.config.Output))
	if err != nil {
		return err
	}
	defer s.bus.Close()

	if app.ctx.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, app.ctx.Duration)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if app.config.Server.Enabled {
		srv := server.NewServer(app.config.Server.Addr, s.bus, s.tracker, app.logger)
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("failed to start web server: %w", err)
		}
	}

	if app.ctx.Watch {
		stop := app.watchConfig(s.tracker)
		defer stop()
	}

	if err := s.source.Start(ctx); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	defer func() {
		if err := s.source.Stop(); err != nil {
			app.logger.Error(err, "Failed to stop capture")
		}
	}()

	// a file source ends on its own
	if wav, ok := s.source.(*capture.WAVSource); ok {
		go func() {
			select {
			case <-wav.Done():
				// let the last chunk be picked up
				time.Sleep(2 * app.config.Tracker.TickInterval)
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	app.logger.Info("Listening for taps", logging.Fields{
		"source":      s.source.Name(),
		"sample_rate": s.source.SampleRate(),
		"resolution":  s.tracker.Analyzer().Resolution(),
	})

	if err := s.tracker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return app.finish(s.tracker)
}

// Analyze runs a WAV file through the tracker one chunk per tick as fast as it
// can be read. With Realtime set the file is played at its own rate instead.
func (app *TapApp) Analyze(ctx context.Context, path string) error {
	if app.ctx.Realtime {
		return app.Listen(ctx, path)
	}

	s, err := app.newSession(path, newConsoleReporter(app.ctx.Console, app.config.Output))
	if err != nil {
		return err
	}
	defer s.bus.Close()

	wav, ok := s.source.(*capture.WAVSource)
	if !ok {
		return fmt.Errorf("analyze requires a wav source, got %s", s.source.Name())
	}

	app.logger.Info("Analyzing file", logging.Fields{
		"path":       path,
		"chunks":     wav.ChunkCount(),
		"duration_s": wav.Duration().Seconds(),
		"resolution": s.tracker.Analyzer().Resolution(),
	})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, ok := wav.Next()
		if !ok {
			break
		}
		s.queue.Push(chunk)
		if res := s.tracker.Tick(); res.Err != nil {
			return fmt.Errorf("analysis failed: %w", res.Err)
		}
	}

	return app.finish(s.tracker)
}

// finish writes the result report and saves the controls if requested
func (app *TapApp) finish(tr *tracker.Tracker) error {
	if app.ctx.SaveSettingsFile != "" {
		if err := saveSettingsToFile(app.ctx.SaveSettingsFile, tr.Settings()); err != nil {
			return err
		}
		app.logger.Debug("Settings saved", logging.Fields{"settings_file": app.ctx.SaveSettingsFile})
	}

	return app.outputResults(buildReport(tr.Display(), tr.Stats(), tr.Analyzer(), app.config.Output))
}

// outputResults handles all result output
func (app *TapApp) outputResults(report *Report) error {
	// Create formatter
	var formatter output.Formatter
	switch app.ctx.OutputFormat {
	case "json":
		formatter = &output.JSONFormatter{}
	case "yaml":
		formatter = &output.YAMLFormatter{}
	case "csv":
		formatter = &output.CSVFormatter{}
	case "table":
		formatter = &output.TableFormatter{}
	default:
		formatter = &output.JSONFormatter{}
	}

	formattedData, err := formatter.Format(report.Map(), true)
	if err != nil {
		return fmt.Errorf("failed to format output data: %w", err)
	}

	// Write to file or stdout
	if app.ctx.OutputFile != "" {
		return app.writeToFile(formattedData)
	}

	_, err = os.Stdout.Write(formattedData)
	return err
}

// writeToFile writes data to the specified output file
func (app *TapApp) writeToFile(data []byte) error {
	// Ensure directory exists
	dir := filepath.Dir(app.ctx.OutputFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(app.ctx.OutputFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	app.logger.Debug("Results written to file", logging.Fields{
		"output_file": app.ctx.OutputFile,
		"size_bytes":  len(data),
	})

	return nil
}
