// Package capture delivers fixed-size mono float32 chunks from an audio input
// to the analysis loop through a drop-oldest Queue.
package capture

import (
	"context"
	"errors"
	"fmt"
)

// ErrPortAudioUnavailable is returned by the portaudio backend in builds without it
var ErrPortAudioUnavailable = errors.New("built without PortAudio support (cgo disabled or noaudio tag)")

// Backend names an audio input implementation
type Backend string

const (
	BackendPortAudio Backend = "portaudio"
	BackendCommand   Backend = "command"
	BackendWAV       Backend = "wav"
)

// Source produces chunks into a Queue until stopped
type Source interface {
	Start(ctx context.Context) error
	Stop() error
	SampleRate() int
	Name() string
}

// InputDevice describes an input-capable PortAudio device
type InputDevice struct {
	Index      int     `json:"index"`
	Name       string  `json:"name"`
	Channels   int     `json:"channels"`
	SampleRate float64 `json:"default_sample_rate"`
}

// Config selects and parameterizes a Source
type Config struct {
	Backend    Backend `json:"backend" mapstructure:"backend"`
	Device     string  `json:"device" mapstructure:"device"`
	SampleRate int     `json:"sample_rate" mapstructure:"sample_rate"`
	ChunkSize  int     `json:"chunk_size" mapstructure:"chunk_size"`

	// Command overrides the capture executable of the command backend
	Command string `json:"command,omitempty" mapstructure:"command"`

	// Path is the input file of the wav backend
	Path string `json:"path,omitempty" mapstructure:"path"`

	// Loop restarts a wav file at its end
	Loop bool `json:"loop,omitempty" mapstructure:"loop"`
}

func (c Config) validate() error {
	if c.SampleRate <= 0 && c.Backend != BackendWAV {
		return NewCaptureError(string(c.Backend), c.Device, ErrCodeInvalidFormat,
			fmt.Sprintf("invalid sample rate %d", c.SampleRate), nil)
	}
	if c.ChunkSize <= 0 {
		return NewCaptureError(string(c.Backend), c.Device, ErrCodeInvalidFormat,
			fmt.Sprintf("invalid chunk size %d", c.ChunkSize), nil)
	}
	return nil
}

// chunker assembles a sample stream into chunks of a fixed size
type chunker struct {
	size    int
	pending []float32
}

func newChunker(size int) *chunker {
	return &chunker{
		size:    size,
		pending: make([]float32, 0, size),
	}
}

// add appends samples and calls emit for each completed chunk. It stops early
// and returns false when emit does.
func (c *chunker) add(samples []float32, emit func([]float32) bool) bool {
	for len(samples) > 0 {
		n := min(c.size-len(c.pending), len(samples))
		c.pending = append(c.pending, samples[:n]...)
		samples = samples[n:]

		if len(c.pending) == c.size {
			chunk := c.pending
			c.pending = make([]float32, 0, c.size)
			if !emit(chunk) {
				return false
			}
		}
	}
	return true
}
