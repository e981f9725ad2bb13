//go:build cgo && !noaudio
// +build cgo,!noaudio

package capture

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/RyanBlaney/sonido-sonar/logging"
	"github.com/gordonklaus/portaudio"
)

func registerPortAudio(f *Factory) {
	f.Register(BackendPortAudio, func(cfg Config, queue *Queue, logger logging.Logger) (Source, error) {
		return NewPortAudioSource(cfg, queue, logger)
	})
}

// PortAudioSource reads mono float32 input through a PortAudio callback stream
type PortAudioSource struct {
	cfg    Config
	queue  *Queue
	logger logging.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	running bool
	halt    chan struct{}
	done    chan struct{}
}

func NewPortAudioSource(cfg Config, queue *Queue, logger logging.Logger) (*PortAudioSource, error) {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &PortAudioSource{
		cfg:   cfg,
		queue: queue,
		logger: logger.WithFields(logging.Fields{
			"component": "portaudio_source",
			"device":    cfg.Device,
		}),
	}, nil
}

func (s *PortAudioSource) Name() string {
	if s.cfg.Device == "" {
		return "portaudio:default"
	}
	return "portaudio:" + s.cfg.Device
}

func (s *PortAudioSource) SampleRate() int {
	return s.cfg.SampleRate
}

// Start opens the input stream. Each callback buffer is exactly one chunk.
func (s *PortAudioSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return NewCaptureError(string(BackendPortAudio), s.cfg.Device, ErrCodeOpen, "failed to initialize PortAudio", err)
	}

	device, err := findInputDevice(s.cfg.Device)
	if err != nil {
		portaudio.Terminate()
		return err
	}

	p := portaudio.HighLatencyParameters(device, nil)
	p.Input.Channels = 1
	p.Output.Channels = 0
	p.SampleRate = float64(s.cfg.SampleRate)
	p.FramesPerBuffer = s.cfg.ChunkSize

	s.queue.Restart()
	s.halt = make(chan struct{}, 1)
	halt := s.halt

	stream, err := portaudio.OpenStream(p, func(in []float32) {
		chunk := make([]float32, len(in))
		copy(chunk, in)
		if !s.queue.Push(chunk) {
			select {
			case halt <- struct{}{}:
			default:
			}
		}
	})
	if err != nil {
		portaudio.Terminate()
		return NewCaptureError(string(BackendPortAudio), device.Name, ErrCodeOpen, "failed to open input stream", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return NewCaptureError(string(BackendPortAudio), device.Name, ErrCodeStart, "failed to start input stream", err)
	}

	s.stream = stream
	s.running = true
	s.done = make(chan struct{})

	go s.watch(ctx, halt, s.done)

	s.logger.Info("Audio capture started", logging.Fields{
		"device":      device.Name,
		"sample_rate": s.cfg.SampleRate,
		"chunk_size":  s.cfg.ChunkSize,
	})
	return nil
}

// watch halts the stream on context cancellation or once the callback has seen
// the stopped queue
func (s *PortAudioSource) watch(ctx context.Context, halt <-chan struct{}, done <-chan struct{}) {
	select {
	case <-ctx.Done():
	case <-halt:
	case <-done:
		return
	}
	if err := s.Stop(); err != nil {
		s.logger.Error(err, "Failed to stop audio capture")
	}
}

// Stop stops the queue first so that no chunk is appended afterwards, then the stream
func (s *PortAudioSource) Stop() error {
	s.queue.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.done)

	var firstErr error
	if err := s.stream.Stop(); err != nil {
		firstErr = NewCaptureError(string(BackendPortAudio), s.cfg.Device, ErrCodeRead, "failed to stop input stream", err)
	}
	if err := s.stream.Close(); err != nil && firstErr == nil {
		firstErr = NewCaptureError(string(BackendPortAudio), s.cfg.Device, ErrCodeRead, "failed to close input stream", err)
	}
	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = NewCaptureError(string(BackendPortAudio), s.cfg.Device, ErrCodeRead, "failed to terminate PortAudio", err)
	}
	s.stream = nil

	s.logger.Info("Audio capture stopped")
	return firstErr
}

// findInputDevice resolves a 1-based index or a name prefix. Empty selects the
// system default input.
func findInputDevice(dev string) (*portaudio.DeviceInfo, error) {
	if dev == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, NewCaptureError(string(BackendPortAudio), dev, ErrCodeDeviceNotFound, "no default input device", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, NewCaptureError(string(BackendPortAudio), dev, ErrCodeDeviceNotFound, "failed to list devices", err)
	}

	if i, err := strconv.Atoi(dev); err == nil && i > 0 && i <= len(devices) {
		if devices[i-1].MaxInputChannels > 0 {
			return devices[i-1], nil
		}
	}

	for _, d := range devices {
		if d.MaxInputChannels > 0 && strings.HasPrefix(d.Name, dev) {
			return d, nil
		}
	}

	return nil, NewCaptureError(string(BackendPortAudio), dev, ErrCodeDeviceNotFound,
		fmt.Sprintf("input device not found: %s", dev), nil)
}

// ListInputDevices enumerates the devices that can be passed as Config.Device
func ListInputDevices() ([]InputDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, NewCaptureError(string(BackendPortAudio), "", ErrCodeOpen, "failed to initialize PortAudio", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, NewCaptureError(string(BackendPortAudio), "", ErrCodeDeviceNotFound, "failed to list devices", err)
	}

	var list []InputDevice
	for i, d := range devices {
		if d.MaxInputChannels == 0 {
			continue
		}
		list = append(list, InputDevice{
			Index:      i + 1,
			Name:       d.Name,
			Channels:   d.MaxInputChannels,
			SampleRate: d.DefaultSampleRate,
		})
	}
	return list, nil
}
