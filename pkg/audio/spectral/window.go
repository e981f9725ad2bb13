package spectral

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-sonar/algorithms/windowing"
)

// WindowType names an analysis window function
type WindowType string

const (
	WindowBlackman       WindowType = "blackman"
	WindowBlackmanHarris WindowType = "blackman_harris"
	WindowHann           WindowType = "hann"
	WindowHamming        WindowType = "hamming"
	WindowBartlett       WindowType = "bartlett"
	WindowWelch          WindowType = "welch"
	WindowRectangular    WindowType = "rectangular"
)

// DefaultWindowType is used when no window type is configured
const DefaultWindowType = WindowBlackman

// ParseWindowType maps a configuration string to a WindowType
func ParseWindowType(name string) (WindowType, error) {
	switch WindowType(strings.ToLower(strings.TrimSpace(name))) {
	case "":
		return DefaultWindowType, nil
	case WindowBlackman:
		return WindowBlackman, nil
	case WindowBlackmanHarris, "blackmanharris":
		return WindowBlackmanHarris, nil
	case WindowHann, "hanning":
		return WindowHann, nil
	case WindowHamming:
		return WindowHamming, nil
	case WindowBartlett:
		return WindowBartlett, nil
	case WindowWelch:
		return WindowWelch, nil
	case WindowRectangular, "boxcar":
		return WindowRectangular, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownWindowType, name)
	}
}

// NewWindow generates the periodic (DFT-even) coefficients of the given window type.
// Periodic windows are the usual choice for spectral analysis.
func NewWindow(kind WindowType, size int) ([]float64, error) {
	if size <= 0 {
		return nil, newConfigurationError("window_length", size, ErrInvalidWindowLength)
	}

	switch kind {
	case WindowBlackman, "":
		return windowing.NewBlackman(size, false).GetCoefficients(), nil
	case WindowBlackmanHarris:
		return windowing.NewBlackmanHarris(size, false).GetCoefficients(), nil
	case WindowHann:
		return windowing.NewHann(size, false).GetCoefficients(), nil
	case WindowHamming:
		return windowing.NewHamming(size, false).GetCoefficients(), nil
	case WindowBartlett:
		return windowing.NewBartlett(size, false).GetCoefficients(), nil
	case WindowWelch:
		return windowing.NewWelch(size).GetCoefficients(), nil
	case WindowRectangular:
		return windowing.NewRectangular(size).GetCoefficients(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownWindowType, kind)
	}
}
