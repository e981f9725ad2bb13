package spectral

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/RyanBlaney/sonido-sonar/algorithms/common"
	"github.com/RyanBlaney/sonido-sonar/logging"
	"github.com/cwbudde/algo-dsp/dsp/spectrum"
	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
)

// phaseTolerance zeroes tiny real/imaginary parts before the phase is taken
const phaseTolerance = 1e-14

// Config describes one analysis path. It is immutable for a session.
type Config struct {
	SampleRate   int        `json:"sample_rate"`
	WindowLength int        `json:"window_length"` // time-domain samples per chunk
	FFTSize      int        `json:"fft_size"`      // 0 selects the next power of 2 >= WindowLength
	WindowType   WindowType `json:"window_type"`
	Window       []float64  `json:"-"` // overrides WindowType when set
}

// SpectrumFrame is the result of analyzing one chunk
type SpectrumFrame struct {
	MagnitudeDB     []float64 `json:"magnitude_db"`
	MagnitudeLinear []float64 `json:"magnitude_linear"`
	Phase           []float64 `json:"phase"` // unwrapped
}

// Bins returns the number of non-negative frequency bins in the frame
func (f *SpectrumFrame) Bins() int {
	return len(f.MagnitudeDB)
}

// Analyzer computes zero-phase windowed magnitude spectra of fixed-size chunks
type Analyzer struct {
	sampleRate   int
	windowLength int
	fftSize      int
	window       []float64 // normalized to sum to 1
	logger       logging.Logger
}

// NewAnalyzer validates cfg and builds an analyzer. Every configuration problem is
// reported here as a *ConfigurationError.
func NewAnalyzer(cfg Config, logger logging.Logger) (*Analyzer, error) {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	if cfg.SampleRate <= 0 {
		return nil, newConfigurationError("sample_rate", cfg.SampleRate, ErrInvalidSampleRate)
	}
	if cfg.WindowLength <= 0 {
		return nil, newConfigurationError("window_length", cfg.WindowLength, ErrInvalidWindowLength)
	}

	fftSize := cfg.FFTSize
	if fftSize == 0 {
		fftSize = common.NextPowerOfTwo(cfg.WindowLength)
	}
	if !common.IsPowerOfTwo(fftSize) {
		return nil, newConfigurationError("fft_size", fftSize, ErrFFTSizeNotPowerOfTwo)
	}

	window := cfg.Window
	if window == nil {
		var err error
		window, err = NewWindow(cfg.WindowType, cfg.WindowLength)
		if err != nil {
			return nil, err
		}
	}
	if len(window) > fftSize {
		return nil, newConfigurationError("window_length", len(window), ErrWindowTooLong)
	}
	if len(window) != cfg.WindowLength {
		return nil, newConfigurationError("window_length", len(window), ErrWindowLengthMismatch)
	}

	sum := floats.Sum(window)
	if sum == 0 {
		return nil, newConfigurationError("window_length", len(window), ErrZeroWindow)
	}
	normalized := make([]float64, len(window))
	floats.ScaleTo(normalized, 1/sum, window)

	a := &Analyzer{
		sampleRate:   cfg.SampleRate,
		windowLength: cfg.WindowLength,
		fftSize:      fftSize,
		window:       normalized,
		logger: logger.WithFields(logging.Fields{
			"component":   "spectral_analyzer",
			"sample_rate": cfg.SampleRate,
		}),
	}

	a.logger.Debug("Spectral analyzer configured", logging.Fields{
		"window_length":   a.windowLength,
		"fft_size":        a.fftSize,
		"freq_resolution": a.Resolution(),
	})

	return a, nil
}

// SampleRate returns the configured sample rate in Hz
func (a *Analyzer) SampleRate() int { return a.sampleRate }

// WindowLength returns the number of time-domain samples per chunk
func (a *Analyzer) WindowLength() int { return a.windowLength }

// FFTSize returns the transform size
func (a *Analyzer) FFTSize() int { return a.fftSize }

// Bins returns the length of every spectrum produced, fftSize/2 + 1
func (a *Analyzer) Bins() int { return a.fftSize/2 + 1 }

// Resolution returns the bin spacing in Hz
func (a *Analyzer) Resolution() float64 {
	return float64(a.sampleRate) / float64(a.fftSize)
}

// Frequencies returns the centre frequency of every output bin
func (a *Analyzer) Frequencies() []float64 {
	freqs := make([]float64, a.Bins())
	for i := range freqs {
		freqs[i] = BinFrequency(float64(i), a.sampleRate, a.fftSize)
	}
	return freqs
}

// AnalyzeFloat32 analyzes a chunk as delivered by capture
func (a *Analyzer) AnalyzeFloat32(chunk []float32) (*SpectrumFrame, error) {
	samples := make([]float64, len(chunk))
	for i, s := range chunk {
		samples[i] = float64(s)
	}
	return a.Analyze(samples)
}

// Analyze computes the magnitude spectrum of one chunk. The windowed chunk is placed
// zero-phase in the FFT buffer so that phase is referenced to the window centre.
func (a *Analyzer) Analyze(chunk []float64) (*SpectrumFrame, error) {
	if len(chunk) != a.windowLength {
		return nil, fmt.Errorf("%w: got %d samples, want %d", ErrChunkLength, len(chunk), a.windowLength)
	}

	// half analysis window size by rounding and by floor
	half1 := (a.windowLength + 1) / 2
	half2 := a.windowLength / 2

	windowed := make([]float64, a.windowLength)
	floats.MulTo(windowed, chunk, a.window)

	buffer := make([]float64, a.fftSize)
	copy(buffer[:half1], windowed[half2:])
	copy(buffer[a.fftSize-half2:], windowed[:half2])

	dft := fft.FFTReal(buffer)

	bins := a.Bins()
	linear := make([]float64, bins)
	phase := make([]float64, bins)
	for i := 0; i < bins; i++ {
		linear[i] = math.Max(cmplx.Abs(dft[i]), Epsilon)

		re, im := real(dft[i]), imag(dft[i])
		if math.Abs(re) < phaseTolerance {
			re = 0
		}
		if math.Abs(im) < phaseTolerance {
			im = 0
		}
		phase[i] = math.Atan2(im, re)
	}

	return &SpectrumFrame{
		MagnitudeDB:     ToDB(linear),
		MagnitudeLinear: linear,
		Phase:           spectrum.UnwrapPhase(phase),
	}, nil
}
