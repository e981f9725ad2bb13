package app

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-sonar/logging"

	"github.com/RyanBlaney/taptone/configs"
	"github.com/RyanBlaney/taptone/internal/tracker"
	"github.com/RyanBlaney/taptone/pkg/audio/peaks"
	"github.com/RyanBlaney/taptone/pkg/audio/spectral"
	"github.com/RyanBlaney/taptone/pkg/events"
)

// Report is the result of an analysis session
type Report struct {
	Timestamp    time.Time
	State        string
	Settings     tracker.Settings
	SampleRate   int
	FFTSize      int
	ResolutionHz float64
	Peaks        peaks.PeakSet
	Averages     int
	Stats        tracker.Summary

	output configs.OutputConfig
}

func buildReport(display tracker.DisplayState, stats tracker.Summary, analyzer *spectral.Analyzer, out configs.OutputConfig) *Report {
	return &Report{
		Timestamp:    time.Now(),
		State:        display.StateStr,
		Settings:     display.Settings,
		SampleRate:   analyzer.SampleRate(),
		FFTSize:      analyzer.FFTSize(),
		ResolutionHz: analyzer.Resolution(),
		Peaks:        display.Peaks,
		Averages:     display.Averages,
		Stats:        stats,
		output:       out,
	}
}

// Map flattens the report for the output formatters
func (r *Report) Map() map[string]any {
	peakRows := make([]map[string]any, 0, len(r.Peaks))
	for _, p := range r.Peaks {
		peakRows = append(peakRows, map[string]any{
			"frequency_hz": r.round(p.FrequencyHz),
			"magnitude_db": r.round(p.MagnitudeDB),
		})
	}

	m := map[string]any{
		"state": r.State,
		"analysis": map[string]any{
			"sample_rate":   r.SampleRate,
			"fft_size":      r.FFTSize,
			"resolution_hz": r.round(r.ResolutionHz),
		},
		"settings": map[string]any{
			"threshold_percent": r.Settings.ThresholdPercent,
			"min_hz":            r.Settings.Window.Min,
			"max_hz":            r.Settings.Window.Max,
			"averaging":         r.Settings.Averaging,
			"max_averages":      r.Settings.MaxAverages,
		},
		"peaks":    peakRows,
		"averages": r.Averages,
		"stats": map[string]any{
			"ticks":              r.Stats.Ticks,
			"commits":            r.Stats.Commits,
			"held_ticks":         r.Stats.HeldTicks,
			"below_gate":         r.Stats.BelowGate,
			"errors":             r.Stats.Errors,
			"dropped_chunks":     r.Stats.DroppedChunks,
			"max_amplitude":      r.Stats.MaxAmplitude,
			"processing_mean_ms": r.round(r.Stats.ProcessingTime.Mean),
			"processing_p95_ms":  r.round(r.Stats.ProcessingTime.P95),
		},
	}
	if r.output.Timestamps {
		m["timestamp"] = r.Timestamp
	}
	return m
}

func (r *Report) round(v float64) float64 {
	scale := math.Pow(10, float64(r.output.Precision))
	return math.Round(v*scale) / scale
}

// consoleReporter prints every committed sample as one line
type consoleReporter struct {
	w   io.Writer
	out configs.OutputConfig

	mu      sync.Mutex
	pending bool
}

func newConsoleReporter(w io.Writer, out configs.OutputConfig) *consoleReporter {
	return &consoleReporter{w: w, out: out}
}

func (r *consoleReporter) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev := e.(type) {
	case events.NewSampleEvent:
		r.pending = ev.New
	case events.DisplayEvent:
		if !r.pending {
			return
		}
		r.pending = false
		r.printLine(r.formatPeaks(ev.Peaks))
	case events.AveragesEvent:
		if ev.Count > 0 {
			r.printLine(fmt.Sprintf("averages %d/%d", ev.Count, ev.MaxCount))
		}
	case events.HoldEvent:
		if ev.Hold {
			r.printLine(r.bold("hold"))
		} else {
			r.printLine("released")
		}
	}
}

func (r *consoleReporter) formatPeaks(ps peaks.PeakSet) string {
	if len(ps) == 0 {
		return "tap: no peaks in range"
	}

	strongest, _ := ps.Strongest()
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		s := fmt.Sprintf("%.*f Hz (%.1f dB)", r.out.Precision, p.FrequencyHz, p.MagnitudeDB)
		if p == strongest {
			s = r.bold(s)
		}
		parts = append(parts, s)
	}
	return "tap: " + strings.Join(parts, ", ")
}

func (r *consoleReporter) bold(s string) string {
	if !r.out.Colors {
		return s
	}
	return logging.ColorBold + s + logging.ColorReset
}

func (r *consoleReporter) printLine(line string) {
	if r.out.Timestamps {
		line = time.Now().Format("15:04:05") + " " + line
	}
	fmt.Fprintln(r.w, line)
}
