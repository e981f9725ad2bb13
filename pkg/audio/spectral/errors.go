package spectral

import (
	"errors"
	"fmt"
)

// Configuration failures, wrapped by ConfigurationError
var (
	ErrFFTSizeNotPowerOfTwo = errors.New("FFT size is not a power of 2")
	ErrWindowTooLong        = errors.New("window size is bigger than FFT size")
	ErrWindowLengthMismatch = errors.New("window function length does not match window length")
	ErrZeroWindow           = errors.New("window function sums to zero")
	ErrInvalidSampleRate    = errors.New("sample rate must be positive")
	ErrInvalidWindowLength  = errors.New("window length must be positive")
	ErrUnknownWindowType    = errors.New("unknown window type")
)

// ErrChunkLength is returned when a chunk does not match the configured window length
var ErrChunkLength = errors.New("chunk length does not match window length")

// ConfigurationError reports an analysis configuration that can never produce valid output.
// It is raised when the analyzer is built, never per frame.
type ConfigurationError struct {
	Field string `json:"field"`
	Value int    `json:"value"`
	Cause error  `json:"-"`
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid analysis configuration (%s=%d): %v", e.Field, e.Value, e.Cause)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

func newConfigurationError(field string, value int, cause error) *ConfigurationError {
	return &ConfigurationError{
		Field: field,
		Value: value,
		Cause: cause,
	}
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
