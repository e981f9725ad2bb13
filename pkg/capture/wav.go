package capture

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-sonar/logging"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSource plays a WAV file as if it were a live input. The file is read fully
// into memory, downmixed to mono and normalized to [-1, 1).
type WAVSource struct {
	cfg        Config
	queue      *Queue
	logger     logging.Logger
	samples    []float32
	sampleRate int

	mu     sync.Mutex
	pos    int
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWAVSource(cfg Config, queue *Queue, logger logging.Logger) (*WAVSource, error) {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if cfg.ChunkSize <= 0 {
		return nil, NewCaptureError(string(BackendWAV), cfg.Path, ErrCodeInvalidFormat, "chunk size must be positive", nil)
	}

	samples, sampleRate, err := ReadWAV(cfg.Path)
	if err != nil {
		return nil, err
	}
	cfg.SampleRate = sampleRate

	s := &WAVSource{
		cfg:        cfg,
		queue:      queue,
		samples:    samples,
		sampleRate: sampleRate,
		logger: logger.WithFields(logging.Fields{
			"component": "wav_source",
			"path":      cfg.Path,
		}),
	}

	s.logger.Debug("WAV file loaded", logging.Fields{
		"sample_rate": sampleRate,
		"samples":     len(samples),
		"duration_s":  s.Duration().Seconds(),
	})
	return s, nil
}

// ReadWAV decodes a PCM WAV file into mono float32 samples and its sample rate
func ReadWAV(path string) ([]float32, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, NewCaptureError(string(BackendWAV), path, ErrCodeOpen, "could not open file", err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, 0, NewCaptureError(string(BackendWAV), path, ErrCodeInvalidFormat, "invalid WAV file", nil)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, NewCaptureError(string(BackendWAV), path, ErrCodeRead, "could not read PCM buffer", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 || buf.Format.NumChannels <= 0 {
		return nil, 0, NewCaptureError(string(BackendWAV), path, ErrCodeInvalidFormat, "missing audio format", nil)
	}

	return Downmix(buf), buf.Format.SampleRate, nil
}

// Downmix averages interleaved channels and scales integer PCM by its bit depth
func Downmix(buf *audio.IntBuffer) []float32 {
	channels := buf.Format.NumChannels
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := 1 / float64(int64(1)<<(bitDepth-1))

	frames := len(buf.Data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		out[i] = float32(sum / float64(channels) * scale)
	}
	return out
}

func (s *WAVSource) Name() string {
	return "wav:" + s.cfg.Path
}

func (s *WAVSource) SampleRate() int {
	return s.sampleRate
}

func (s *WAVSource) Duration() time.Duration {
	return time.Duration(float64(len(s.samples)) / float64(s.sampleRate) * float64(time.Second))
}

// ChunkCount is the number of whole chunks in the file
func (s *WAVSource) ChunkCount() int {
	return len(s.samples) / s.cfg.ChunkSize
}

// Next returns the next whole chunk. A trailing partial chunk is not returned.
func (s *WAVSource) Next() ([]float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos+s.cfg.ChunkSize > len(s.samples) {
		if !s.cfg.Loop || len(s.samples) < s.cfg.ChunkSize {
			return nil, false
		}
		s.pos = 0
	}

	chunk := make([]float32, s.cfg.ChunkSize)
	copy(chunk, s.samples[s.pos:s.pos+s.cfg.ChunkSize])
	s.pos += s.cfg.ChunkSize
	return chunk, true
}

// Start pushes one chunk per chunk duration until the file ends, ctx is done or
// the queue is stopped
func (s *WAVSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return nil
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.queue.Restart()

	interval := time.Duration(float64(s.cfg.ChunkSize) / float64(s.sampleRate) * float64(time.Second))
	go s.play(ctx, interval, s.done)

	s.logger.Info("WAV playback started", logging.Fields{
		"chunk_interval": interval.String(),
		"loop":           s.cfg.Loop,
	})
	return nil
}

func (s *WAVSource) play(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			chunk, ok := s.Next()
			if !ok {
				s.logger.Info("WAV playback finished")
				return
			}
			if !s.queue.Push(chunk) {
				return
			}
		}
	}
}

// Done is closed when playback ends. It is nil before Start.
func (s *WAVSource) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *WAVSource) Stop() error {
	s.queue.Stop()

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
