package capture

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/RyanBlaney/sonido-sonar/logging"
)

// CommandSource captures through a child process writing raw mono float32
// little-endian PCM to stdout
type CommandSource struct {
	cfg    Config
	queue  *Queue
	logger logging.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	done    chan struct{}
	stderr  bytes.Buffer
	lastErr error
}

func NewCommandSource(cfg Config, queue *Queue, logger logging.Logger) (*CommandSource, error) {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &CommandSource{
		cfg:   cfg,
		queue: queue,
		logger: logger.WithFields(logging.Fields{
			"component": "command_source",
			"device":    cfg.Device,
		}),
	}, nil
}

func (s *CommandSource) Name() string {
	name, _ := CaptureCommand(s.cfg)
	return name + ":" + s.cfg.Device
}

func (s *CommandSource) SampleRate() int {
	return s.cfg.SampleRate
}

// CaptureCommand returns the platform capture command for cfg
func CaptureCommand(cfg Config) (string, []string) {
	rate := strconv.Itoa(cfg.SampleRate)
	device := cfg.Device

	switch runtime.GOOS {
	case "linux":
		if device == "" {
			device = "default"
		}
		name := "arecord"
		if cfg.Command != "" {
			name = cfg.Command
		}
		return name, []string{
			"-D", device,
			"-f", "FLOAT_LE",
			"-r", rate,
			"-c", "1",
			"-t", "raw",
			"-q",
			"-",
		}
	default:
		format := "avfoundation"
		if runtime.GOOS == "windows" {
			format = "dshow"
			if device != "" && !strings.HasPrefix(device, "audio=") {
				device = "audio=" + device
			}
		} else if device == "" {
			device = ":0"
		}
		name := "ffmpeg"
		if cfg.Command != "" {
			name = cfg.Command
		}
		return name, []string{
			"-f", format,
			"-i", device,
			"-nostdin",
			"-hide_banner",
			"-loglevel", "warning",
			"-vn",
			"-f", "f32le",
			"-ac", "1",
			"-ar", rate,
			"pipe:1",
		}
	}
}

// Start launches the capture process and a reader that pushes whole chunks
func (s *CommandSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return nil
	}

	name, args := CaptureCommand(s.cfg)

	procCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(procCtx, name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return NewCaptureError(name, s.cfg.Device, ErrCodeOpen, "failed to open capture pipe", err)
	}
	s.stderr.Reset()
	cmd.Stderr = &s.stderr

	s.queue.Restart()
	if err := cmd.Start(); err != nil {
		cancel()
		if errors.Is(err, exec.ErrNotFound) {
			return NewCaptureError(name, s.cfg.Device, ErrCodeDeviceNotFound, "capture command not found", err)
		}
		return NewCaptureError(name, s.cfg.Device, ErrCodeStart, "failed to start capture command", err)
	}

	s.cmd = cmd
	s.cancel = cancel
	s.done = make(chan struct{})
	s.lastErr = nil

	s.logger.Info("Audio capture started", logging.Fields{
		"command":     name,
		"sample_rate": s.cfg.SampleRate,
		"chunk_size":  s.cfg.ChunkSize,
	})

	go s.read(stdout, s.done)
	return nil
}

func (s *CommandSource) read(r io.Reader, done chan struct{}) {
	defer close(done)

	c := newChunker(s.cfg.ChunkSize)
	buf := make([]byte, 4*s.cfg.ChunkSize)
	samples := make([]float32, 0, s.cfg.ChunkSize)
	var carry []byte

	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			whole := len(data) - len(data)%4

			samples = samples[:0]
			for i := 0; i < whole; i += 4 {
				samples = append(samples, math.Float32frombits(binary.LittleEndian.Uint32(data[i:])))
			}
			carry = append(carry[:0:0], data[whole:]...)

			if !c.add(samples, s.queue.Push) {
				s.logger.Debug("Capture queue stopped, reader exiting")
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				s.mu.Lock()
				s.lastErr = NewCaptureError("command", s.cfg.Device, ErrCodeRead, "capture read failed", err)
				s.mu.Unlock()
			}
			return
		}
	}
}

// Stop stops the queue, then terminates the process and waits for the reader
func (s *CommandSource) Stop() error {
	s.queue.Stop()

	s.mu.Lock()
	cmd, cancel, done := s.cmd, s.cancel, s.done
	s.cmd, s.cancel = nil, nil
	s.mu.Unlock()

	if cmd == nil {
		return nil
	}

	cancel()
	<-done
	waitErr := cmd.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("Audio capture stopped")

	if s.lastErr != nil {
		return s.lastErr
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return NewCaptureError("command", s.cfg.Device, ErrCodeRead, "capture command failed", waitErr)
	}
	return nil
}

// Stderr returns the diagnostics written by the last capture process. Only
// meaningful after Stop.
func (s *CommandSource) Stderr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(s.stderr.String())
}
