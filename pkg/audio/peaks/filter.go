package peaks

import (
	"errors"
	"fmt"
	"sync"

	"github.com/RyanBlaney/taptone/pkg/audio/spectral"
)

var ErrInvalidFrequencyWindow = errors.New("invalid frequency window")

// FrequencyWindow is the open band (Min, Max) in Hz inside which peaks are reported
type FrequencyWindow struct {
	Min float64 `json:"min_hz" yaml:"min_hz" mapstructure:"min_hz"`
	Max float64 `json:"max_hz" yaml:"max_hz" mapstructure:"max_hz"`
}

// NewFrequencyWindow validates the band against the Nyquist frequency
func NewFrequencyWindow(min, max float64, sampleRate int) (FrequencyWindow, error) {
	w := FrequencyWindow{Min: min, Max: max}
	if err := w.Validate(sampleRate); err != nil {
		return FrequencyWindow{}, err
	}
	return w, nil
}

// Validate checks 0 <= Min < Max <= sampleRate/2
func (w FrequencyWindow) Validate(sampleRate int) error {
	nyquist := float64(sampleRate) / 2
	switch {
	case w.Min >= w.Max:
		return fmt.Errorf("%w: min %.2f Hz must be below max %.2f Hz", ErrInvalidFrequencyWindow, w.Min, w.Max)
	case w.Min < 0:
		return fmt.Errorf("%w: min %.2f Hz is negative", ErrInvalidFrequencyWindow, w.Min)
	case sampleRate > 0 && w.Max > nyquist:
		return fmt.Errorf("%w: max %.2f Hz is above Nyquist (%.2f Hz)", ErrInvalidFrequencyWindow, w.Max, nyquist)
	}
	return nil
}

// Contains reports whether freq lies strictly inside the window
func (w FrequencyWindow) Contains(freq float64) bool {
	return w.Min < freq && freq < w.Max
}

// BinBounds returns the FFT bins at or below Min and Max
func (w FrequencyWindow) BinBounds(sampleRate, fftSize int) (minIndex, maxIndex int) {
	return spectral.FrequencyBin(w.Min, sampleRate, fftSize), spectral.FrequencyBin(w.Max, sampleRate, fftSize)
}

// Bounds returns the half-open index range [lo, hi) of the frequency-sorted peaks
// lying inside the window. lo == hi when none do.
func Bounds(peaks PeakSet, window FrequencyWindow) (lo, hi int) {
	lo = len(peaks)
	for i, p := range peaks {
		if p.FrequencyHz > window.Min {
			lo = i
			break
		}
	}

	hi = lo
	for hi < len(peaks) && peaks[hi].FrequencyHz < window.Max {
		hi++
	}
	return lo, hi
}

// Filter returns the peaks inside the window. The result is never nil.
func Filter(peaks PeakSet, window FrequencyWindow) PeakSet {
	lo, hi := Bounds(peaks, window)
	out := make(PeakSet, hi-lo)
	copy(out, peaks[lo:hi])
	return out
}

// RangeFilter keeps the last detected peak set and its in-window subset.
// A detection pass that finds nothing leaves the retained subset untouched.
type RangeFilter struct {
	mu       sync.RWMutex
	window   FrequencyWindow
	source   PeakSet
	retained PeakSet
}

func NewRangeFilter(window FrequencyWindow) *RangeFilter {
	return &RangeFilter{
		window:   window,
		retained: PeakSet{},
	}
}

// Update filters a fresh detection result. It returns the retained set and whether it changed.
func (f *RangeFilter) Update(detected PeakSet) (PeakSet, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(detected) == 0 {
		return f.retained, false
	}

	f.source = detected
	f.retained = Filter(detected, f.window)
	return f.retained, true
}

// SetWindow changes the band and re-filters the last detected set
func (f *RangeFilter) SetWindow(window FrequencyWindow) PeakSet {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.window = window
	f.retained = Filter(f.source, window)
	return f.retained
}

// Refresh re-filters the last detected set with the current window
func (f *RangeFilter) Refresh() PeakSet {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.retained = Filter(f.source, f.window)
	return f.retained
}

// Clear forgets all detected peaks
func (f *RangeFilter) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.source = nil
	f.retained = PeakSet{}
}

func (f *RangeFilter) Window() FrequencyWindow {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.window
}

// Retained returns the in-window peaks currently on display
func (f *RangeFilter) Retained() PeakSet {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.retained
}

// Source returns the last non-empty detection result
func (f *RangeFilter) Source() PeakSet {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.source
}
