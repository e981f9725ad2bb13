// Package tracker runs the frame acceptance loop: it takes the newest captured
// chunk every tick, decides whether the frame replaces the retained spectrum and
// peaks, and publishes what should be displayed.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-sonar/logging"

	"github.com/RyanBlaney/taptone/pkg/audio/averaging"
	"github.com/RyanBlaney/taptone/pkg/audio/peaks"
	"github.com/RyanBlaney/taptone/pkg/audio/spectral"
	"github.com/RyanBlaney/taptone/pkg/capture"
	"github.com/RyanBlaney/taptone/pkg/events"
)

var (
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 100")
	ErrMissingAnalyzer  = errors.New("tracker requires an analyzer")
	ErrMissingQueue     = errors.New("tracker requires a capture queue")
)

// Config contains everything needed to build a Tracker
type Config struct {
	Analyzer  *spectral.Analyzer
	Queue     *capture.Queue
	Publisher events.Publisher
	Logger    logging.Logger
	Settings  Settings

	// Period of Run
	TickInterval time.Duration

	// Set hold automatically once averaging completes
	HoldOnComplete bool
}

// Tracker owns all analysis state. Settings may be changed from any goroutine;
// they are applied between ticks.
type Tracker struct {
	analyzer       *spectral.Analyzer
	detector       *peaks.Detector
	queue          *capture.Queue
	publisher      events.Publisher
	logger         logging.Logger
	tickInterval   time.Duration
	holdOnComplete bool
	now            func() time.Time

	mu          sync.Mutex
	settings    Settings
	state       State
	accumulator *averaging.Accumulator
	filter      *peaks.RangeFilter
	savedDB     []float64
	lastTick    time.Time
	stats       *Stats
}

// New validates cfg and builds a tracker in the idle state
func New(cfg Config) (*Tracker, error) {
	if cfg.Analyzer == nil {
		return nil, ErrMissingAnalyzer
	}
	if cfg.Queue == nil {
		return nil, ErrMissingQueue
	}
	if err := cfg.Settings.Validate(cfg.Analyzer.SampleRate()); err != nil {
		return nil, fmt.Errorf("invalid tracker settings: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.Discard
	}
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	acc, err := averaging.NewAccumulator(cfg.Settings.MaxAverages)
	if err != nil {
		return nil, err
	}

	return &Tracker{
		analyzer:       cfg.Analyzer,
		detector:       peaks.NewDetector(cfg.Analyzer.SampleRate(), cfg.Analyzer.FFTSize()),
		queue:          cfg.Queue,
		publisher:      publisher,
		logger:         logger.WithFields(logging.Fields{"component": "tracker"}),
		tickInterval:   interval,
		holdOnComplete: cfg.HoldOnComplete,
		now:            time.Now,
		settings:       cfg.Settings,
		state:          StateIdle,
		accumulator:    acc,
		filter:         peaks.NewRangeFilter(cfg.Settings.Window),
		stats:          NewStats(),
	}, nil
}

// Run ticks at the configured interval until ctx is done
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.tickInterval)
	defer ticker.Stop()

	t.logger.Info("Analysis loop started", logging.Fields{
		"tick_interval": t.tickInterval.String(),
		"fft_size":      t.analyzer.FFTSize(),
	})

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Analysis loop stopped", logging.Fields{
				"ticks":   t.Stats().Ticks,
				"commits": t.Stats().Commits,
			})
			return ctx.Err()
		case <-ticker.C:
			if res := t.Tick(); res.Err != nil {
				t.logger.Error(res.Err, "Frame analysis failed")
			}
		}
	}
}

// Tick processes the newest pending chunk. Older pending chunks are discarded.
// Without a pending chunk nothing happens.
func (t *Tracker) Tick() TickResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	chunk, discarded, ok := t.queue.TakeLatest()
	if !ok {
		return TickResult{State: t.state}
	}

	start := t.now()
	res := TickResult{Processed: true, Discarded: discarded}

	frame, err := t.analyzer.AnalyzeFloat32(chunk)
	if err != nil {
		res.Err = err
		res.State = t.state
		t.stats.record(res)
		return res
	}

	res.Amplitude = spectral.Amplitude(frame.MagnitudeDB)
	t.publisher.Publish(events.AmplitudeEvent{Amplitude: res.Amplitude})

	switch {
	case t.settings.Hold:
		t.state = StateHolding

	case spectral.Headroom(frame.MagnitudeDB) <= float64(t.settings.ThresholdPercent):
		t.state = StateSampling

	case t.settings.Averaging:
		res.NewSample = t.acceptAveraged(frame)

	default:
		res.NewSample = t.acceptSingle(frame)
	}

	res.Peaks = t.filter.Refresh()
	t.publisher.Publish(events.PeaksEvent{Peaks: res.Peaks})

	res.State = t.state
	res.Elapsed = t.now().Sub(start)
	t.publishTiming(start, res.Elapsed)
	t.stats.record(res)

	if res.NewSample {
		t.logger.Debug("New sample committed", logging.Fields{
			"amplitude": res.Amplitude,
			"peaks":     len(res.Peaks),
			"discarded": discarded,
		})
	}

	return res
}

// acceptSingle commits the frame when it has at least one peak above the gate
func (t *Tracker) acceptSingle(frame *spectral.SpectrumFrame) bool {
	detected := t.detector.FindFrame(frame, t.settings.ThresholdDB())
	if len(detected) == 0 {
		t.state = StateSampling
		return false
	}

	t.commit(frame.MagnitudeDB, detected)
	return true
}

// acceptAveraged probes the frame against the running average and commits it
// when the average clears the gate and has peaks
func (t *Tracker) acceptAveraged(frame *spectral.SpectrumFrame) bool {
	thresholdDB := t.settings.ThresholdDB()

	candidate, err := t.accumulator.Probe(frame.MagnitudeLinear, thresholdDB)
	switch {
	case errors.Is(err, averaging.ErrAveragingComplete):
		t.state = StateSampling
		return false
	case err != nil:
		t.logger.Warn("Discarding accumulated average", logging.Fields{"error": err.Error()})
		t.accumulator.Reset()
		t.state = StateSampling
		return false
	case !candidate.Cleared:
		t.state = StateSampling
		return false
	}

	detected := t.detector.Find(candidate.AverageDB, thresholdDB)
	if len(detected) == 0 {
		t.state = StateSampling
		return false
	}

	if err := t.accumulator.Commit(candidate); err != nil {
		t.logger.Warn("Average commit rejected", logging.Fields{"error": err.Error()})
		t.state = StateSampling
		return false
	}

	t.commit(candidate.AverageDB, detected)

	count, maxCount := t.accumulator.Count(), t.accumulator.MaxCount()
	t.publisher.Publish(events.AveragesEvent{Count: count, MaxCount: maxCount})

	if count >= maxCount && t.holdOnComplete && !t.settings.Hold {
		t.settings.Hold = true
		t.publisher.Publish(events.HoldEvent{Hold: true})
		t.logger.Info("Averaging complete, holding results", logging.Fields{"averages": count})
	}
	return true
}

func (t *Tracker) commit(magnitudeDB []float64, detected peaks.PeakSet) {
	t.savedDB = magnitudeDB
	t.filter.Update(detected)
	t.state = StateTriggered

	t.publisher.Publish(events.NewSampleEvent{New: true})
	t.publisher.Publish(t.displayEvent())
}

func (t *Tracker) publishTiming(start time.Time, elapsed time.Duration) {
	var interval time.Duration
	if !t.lastTick.IsZero() {
		interval = start.Sub(t.lastTick)
	}
	t.lastTick = start

	ev := events.TimingEvent{
		SampleInterval: interval.Seconds(),
		ProcessingTime: elapsed.Seconds(),
	}
	if interval > 0 {
		ev.FPS = 1 / interval.Seconds()
	}
	t.publisher.Publish(ev)
}

func (t *Tracker) displayEvent() events.DisplayEvent {
	bounds := t.bounds()
	return events.DisplayEvent{
		State:       t.state.String(),
		MagnitudeDB: t.savedDB,
		Peaks:       t.filter.Retained(),
		ThresholdDB: t.settings.ThresholdDB(),
		MinIndex:    bounds.MinIndex,
		MaxIndex:    bounds.MaxIndex,
	}
}

func (t *Tracker) bounds() FrequencyBounds {
	lo, hi := t.settings.Window.BinBounds(t.analyzer.SampleRate(), t.analyzer.FFTSize())
	return FrequencyBounds{MinIndex: lo, MaxIndex: hi}
}

// SetThreshold changes the gate and re-detects peaks on the retained spectrum
func (t *Tracker) SetThreshold(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: got %d", ErrInvalidThreshold, percent)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.setThreshold(percent)
	return nil
}

func (t *Tracker) setThreshold(percent int) {
	if t.settings.ThresholdPercent == percent {
		return
	}
	t.settings.ThresholdPercent = percent

	if t.savedDB != nil {
		t.filter.Update(t.detector.Find(t.savedDB, t.settings.ThresholdDB()))
	}
	t.publisher.Publish(events.PeaksEvent{Peaks: t.filter.Refresh()})
	t.publisher.Publish(t.displayEvent())

	t.logger.Debug("Threshold changed", logging.Fields{
		"threshold_percent": percent,
		"threshold_db":      t.settings.ThresholdDB(),
	})
}

// SetFrequencyWindow changes the reported band and re-filters the retained peaks
func (t *Tracker) SetFrequencyWindow(min, max float64) error {
	window, err := peaks.NewFrequencyWindow(min, max, t.analyzer.SampleRate())
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.setFrequencyWindow(window)
	return nil
}

func (t *Tracker) setFrequencyWindow(window peaks.FrequencyWindow) {
	if t.settings.Window == window {
		return
	}
	t.settings.Window = window

	t.publisher.Publish(events.PeaksEvent{Peaks: t.filter.SetWindow(window)})
	t.publisher.Publish(t.displayEvent())
}

// SetMaxAverages changes the number of frames averaged before completion
func (t *Tracker) SetMaxAverages(n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.setMaxAverages(n)
}

func (t *Tracker) setMaxAverages(n int) error {
	if err := t.accumulator.SetMaxCount(n); err != nil {
		return err
	}
	t.settings.MaxAverages = n
	t.publisher.Publish(events.AveragesEvent{Count: t.accumulator.Count(), MaxCount: n})
	return nil
}

// SetAveraging toggles averaging. Both enabling and disabling discard the running average.
func (t *Tracker) SetAveraging(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setAveraging(enabled)
}

func (t *Tracker) setAveraging(enabled bool) {
	if t.settings.Averaging == enabled {
		return
	}
	t.settings.Averaging = enabled
	t.accumulator.Reset()
	t.publisher.Publish(events.AveragesEvent{Count: 0, MaxCount: t.accumulator.MaxCount()})
}

// SetHold freezes or releases the display
func (t *Tracker) SetHold(hold bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setHold(hold)
}

func (t *Tracker) setHold(hold bool) {
	if t.settings.Hold == hold {
		return
	}
	t.settings.Hold = hold
	if !hold && t.state == StateHolding {
		t.state = StateSampling
	}
	t.publisher.Publish(events.HoldEvent{Hold: hold})
}

// ResetAveraging restarts averaging from zero and releases hold
func (t *Tracker) ResetAveraging() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.accumulator.Reset()
	t.publisher.Publish(events.AveragesEvent{Count: 0, MaxCount: t.accumulator.MaxCount()})
	t.setHold(false)
}

// ApplySettings validates s and applies every field in one step. No tick runs
// with a mix of old and new settings.
func (t *Tracker) ApplySettings(s Settings) error {
	if err := s.Validate(t.analyzer.SampleRate()); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.setMaxAverages(s.MaxAverages); err != nil {
		return err
	}
	t.setThreshold(s.ThresholdPercent)
	t.setFrequencyWindow(s.Window)
	t.setAveraging(s.Averaging)
	t.setHold(s.Hold)
	return nil
}

// Settings returns the current runtime settings
func (t *Tracker) Settings() Settings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings
}

// Display returns a copy of the retained display state
func (t *Tracker) Display() DisplayState {
	t.mu.Lock()
	defer t.mu.Unlock()

	var saved []float64
	if t.savedDB != nil {
		saved = make([]float64, len(t.savedDB))
		copy(saved, t.savedDB)
	}
	source := t.filter.Source()
	lo, hi := peaks.Bounds(source, t.settings.Window)

	return DisplayState{
		State:            t.state,
		StateStr:         t.state.String(),
		Settings:         t.settings,
		SavedMagnitudeDB: saved,
		DetectedPeaks:    append(peaks.PeakSet(nil), source...),
		Peaks:            append(peaks.PeakSet{}, t.filter.Retained()...),
		PeakLo:           lo,
		PeakHi:           hi,
		Bounds:           t.bounds(),
		Averages:         t.accumulator.Count(),
	}
}

// Stats returns the loop statistics so far
func (t *Tracker) Stats() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats.Summary(t.queue.Dropped())
}

// Analyzer returns the analyzer the tracker was built with
func (t *Tracker) Analyzer() *spectral.Analyzer {
	return t.analyzer
}
