package tracker

import (
	"fmt"
	"time"

	"github.com/RyanBlaney/taptone/pkg/audio/averaging"
	"github.com/RyanBlaney/taptone/pkg/audio/peaks"
	"github.com/RyanBlaney/taptone/pkg/audio/spectral"
)

// DefaultTickInterval is the analysis period
const DefaultTickInterval = 100 * time.Millisecond

// State is the frame acceptance state of the tracker
type State int

const (
	// StateIdle means nothing has been analyzed yet
	StateIdle State = iota
	// StateSampling means the last frame was below the gate and the display is unchanged
	StateSampling
	// StateTriggered means the last frame was committed
	StateTriggered
	// StateHolding means frames are read but the display is frozen
	StateHolding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSampling:
		return "sampling"
	case StateTriggered:
		return "triggered"
	case StateHolding:
		return "holding"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Settings are the runtime controls of the tracker
type Settings struct {
	// Gate for both frame acceptance and peak detection, 0-100
	ThresholdPercent int `json:"threshold_percent" yaml:"threshold_percent"`

	// Band of reported peaks
	Window peaks.FrequencyWindow `json:"frequency_window" yaml:"frequency_window"`

	// Averaging
	Averaging   bool `json:"averaging" yaml:"averaging"`
	MaxAverages int  `json:"max_averages" yaml:"max_averages"`

	// Freeze the display
	Hold bool `json:"hold" yaml:"hold"`
}

// Validate checks the settings against the analysis sample rate
func (s Settings) Validate(sampleRate int) error {
	if s.ThresholdPercent < 0 || s.ThresholdPercent > 100 {
		return fmt.Errorf("%w: got %d", ErrInvalidThreshold, s.ThresholdPercent)
	}
	if err := s.Window.Validate(sampleRate); err != nil {
		return err
	}
	if s.MaxAverages < 0 || s.MaxAverages > averaging.MaxAllowedCount {
		return fmt.Errorf("%w: got %d", averaging.ErrInvalidMaxCount, s.MaxAverages)
	}
	return nil
}

// ThresholdDB is the dB gate of the threshold percentage
func (s Settings) ThresholdDB() float64 {
	return spectral.ThresholdDB(s.ThresholdPercent)
}

// FrequencyBounds are the FFT bins at the edges of the frequency window
type FrequencyBounds struct {
	MinIndex int `json:"min_index"`
	MaxIndex int `json:"max_index"`
}

// DisplayState is a snapshot of what the tracker currently shows
type DisplayState struct {
	State    State    `json:"-"`
	StateStr string   `json:"state"`
	Settings Settings `json:"settings"`

	// Retained spectrum and peaks, updated only when a frame is committed
	SavedMagnitudeDB []float64     `json:"saved_magnitude_db,omitempty"`
	DetectedPeaks    peaks.PeakSet `json:"detected_peaks"`
	Peaks            peaks.PeakSet `json:"peaks"`

	// Peaks[i] == DetectedPeaks[PeakLo+i]
	PeakLo int `json:"peak_lo"`
	PeakHi int `json:"peak_hi"`

	Bounds   FrequencyBounds `json:"bounds"`
	Averages int             `json:"averages"`
}

// TickResult describes one pass of the analysis loop
type TickResult struct {
	// Processed is false when no chunk was available
	Processed bool

	State     State
	Amplitude int
	Discarded int
	NewSample bool
	Peaks     peaks.PeakSet
	Elapsed   time.Duration
	Err       error
}
