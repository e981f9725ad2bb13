package app

import (
	"fmt"
	"path/filepath"

	"github.com/RyanBlaney/sonido-sonar/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/taptone/configs"
	"github.com/RyanBlaney/taptone/internal/tracker"
)

// watchConfig reapplies the tracker controls whenever the config file or the
// settings file is written. The returned function stops watching.
func (app *TapApp) watchConfig(tr *tracker.Tracker) func() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		app.logger.Error(err, "Failed to create config watcher")
		return func() {}
	}

	configFile := viper.ConfigFileUsed()
	files := map[string]bool{}
	for _, p := range []string{configFile, app.settingsFile()} {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		files[abs] = p == configFile
		// editors replace files, so watch the directory
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			app.logger.Warn("Cannot watch config directory", logging.Fields{
				"path":  abs,
				"error": err.Error(),
			})
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				isConfig, watched := files[absPath(event.Name)]
				if !watched {
					continue
				}
				if err := app.reloadSettings(tr, isConfig); err != nil {
					app.logger.Warn("Config reload failed", logging.Fields{
						"file":  event.Name,
						"error": err.Error(),
					})
					continue
				}
				app.logger.Info("Config reloaded", logging.Fields{"file": event.Name})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				app.logger.Error(err, "Config watcher error")
			}
		}
	}()

	app.logger.Debug("Watching configuration", logging.Fields{"files": len(files)})

	return func() {
		watcher.Close()
		<-done
	}
}

// reloadSettings rebuilds the controls from the files and applies them.
// Hold is left as it is.
func (app *TapApp) reloadSettings(tr *tracker.Tracker, rereadConfig bool) error {
	cfg := app.config
	if rereadConfig {
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		reloaded, err := configs.LoadConfig()
		if err != nil {
			return err
		}
		if err := configs.ValidateConfig(reloaded); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = reloaded
	}

	var fileSettings *SettingsOverride
	if p := app.settingsFile(); p != "" {
		var err error
		if fileSettings, err = loadSettingsFromFile(p); err != nil {
			return err
		}
	}

	settings := mergeSettings(cfg, fileSettings, app.ctx.Overrides)
	settings.Hold = tr.Settings().Hold
	return tr.ApplySettings(settings)
}

func (app *TapApp) settingsFile() string {
	if app.ctx.SettingsFile != "" {
		return app.ctx.SettingsFile
	}
	return app.config.SettingsFile
}

func absPath(p string) string {
	if p == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
