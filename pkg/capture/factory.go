package capture

import (
	"fmt"
	"slices"
	"sync"

	"github.com/RyanBlaney/sonido-sonar/logging"
)

// SourceFactory builds a Source that feeds queue
type SourceFactory func(cfg Config, queue *Queue, logger logging.Logger) (Source, error)

// Factory maps backends to source constructors
type Factory struct {
	sources map[Backend]SourceFactory
	mu      sync.RWMutex
}

// NewFactory creates a factory with the built-in backends registered
func NewFactory() *Factory {
	f := &Factory{
		sources: make(map[Backend]SourceFactory),
	}

	registerPortAudio(f)
	f.Register(BackendCommand, func(cfg Config, queue *Queue, logger logging.Logger) (Source, error) {
		return NewCommandSource(cfg, queue, logger)
	})
	f.Register(BackendWAV, func(cfg Config, queue *Queue, logger logging.Logger) (Source, error) {
		return NewWAVSource(cfg, queue, logger)
	})

	return f
}

// Create builds the source configured by cfg.Backend
func (f *Factory) Create(cfg Config, queue *Queue, logger logging.Logger) (Source, error) {
	f.mu.RLock()
	factory, exists := f.sources[cfg.Backend]
	f.mu.RUnlock()

	if !exists {
		return nil, NewCaptureError(
			string(cfg.Backend), cfg.Device, ErrCodeOpen,
			fmt.Sprintf("unsupported capture backend: %s", cfg.Backend),
			nil,
		)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return factory(cfg, queue, logger)
}

// Register adds or replaces a backend
func (f *Factory) Register(backend Backend, factory SourceFactory) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sources[backend] = factory
}

// SupportedBackends returns the registered backends in sorted order
func (f *Factory) SupportedBackends() []Backend {
	f.mu.RLock()
	defer f.mu.RUnlock()

	backends := make([]Backend, 0, len(f.sources))
	for backend := range f.sources {
		backends = append(backends, backend)
	}
	slices.Sort(backends)
	return backends
}
