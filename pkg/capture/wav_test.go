package capture

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-sonar/logging"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestWAV(t *testing.T, sampleRate, channels int, data []int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tap.wav")
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	encoder := wav.NewEncoder(out, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	require.NoError(t, encoder.Write(buf))
	require.NoError(t, encoder.Close())
	return path
}

func TestReadWAVMono(t *testing.T) {
	data := make([]int, 100)
	for i := range data {
		data[i] = 16384
	}
	path := writeTestWAV(t, 8000, 1, data)

	samples, rate, err := ReadWAV(path)
	require.NoError(t, err)
	assert.Equal(t, 8000, rate)
	require.Len(t, samples, 100)
	assert.InDelta(t, 0.5, samples[0], 1e-6)
}

func TestReadWAVDownmix(t *testing.T) {
	data := make([]int, 0, 200)
	for i := 0; i < 100; i++ {
		data = append(data, 16384, -8192)
	}
	path := writeTestWAV(t, 11025, 2, data)

	samples, rate, err := ReadWAV(path)
	require.NoError(t, err)
	assert.Equal(t, 11025, rate)
	require.Len(t, samples, 100)
	assert.InDelta(t, 0.125, samples[50], 1e-6)
}

func TestReadWAVErrors(t *testing.T) {
	_, _, err := ReadWAV(filepath.Join(t.TempDir(), "missing.wav"))
	var capErr *CaptureError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, ErrCodeOpen, capErr.Code)

	bogus := filepath.Join(t.TempDir(), "bogus.wav")
	require.NoError(t, os.WriteFile(bogus, []byte("definitely not a riff file"), 0o644))
	_, _, err = ReadWAV(bogus)
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, ErrCodeInvalidFormat, capErr.Code)
}

func TestWAVSourceNext(t *testing.T) {
	data := make([]int, 10)
	for i := range data {
		data[i] = i * 1000
	}
	path := writeTestWAV(t, 8000, 1, data)

	src, err := NewWAVSource(Config{Backend: BackendWAV, Path: path, ChunkSize: 4}, NewQueue(4), &logging.NoOpLogger{})
	require.NoError(t, err)
	assert.Equal(t, 8000, src.SampleRate())
	assert.Equal(t, 2, src.ChunkCount())

	first, ok := src.Next()
	require.True(t, ok)
	assert.Len(t, first, 4)
	_, ok = src.Next()
	require.True(t, ok)

	// the trailing two samples never form a chunk
	_, ok = src.Next()
	assert.False(t, ok)

	looping, err := NewWAVSource(Config{Backend: BackendWAV, Path: path, ChunkSize: 4, Loop: true}, NewQueue(4), &logging.NoOpLogger{})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, ok = looping.Next()
		require.True(t, ok)
	}
	again, ok := looping.Next()
	require.True(t, ok)
	assert.Equal(t, first, again)
}

func TestWAVSourcePlayback(t *testing.T) {
	path := writeTestWAV(t, 8000, 1, make([]int, 800))

	queue := NewQueue(16)
	src, err := NewWAVSource(Config{Backend: BackendWAV, Path: path, ChunkSize: 80}, queue, &logging.NoOpLogger{})
	require.NoError(t, err)

	require.NoError(t, src.Start(context.Background()))
	select {
	case <-src.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("playback did not finish")
	}

	chunk, discarded, ok := queue.TakeLatest()
	require.True(t, ok)
	assert.Len(t, chunk, 80)
	assert.Equal(t, 9, discarded)

	require.NoError(t, src.Stop())
	assert.True(t, queue.Stopped())
}

func TestCaptureCommand(t *testing.T) {
	name, args := CaptureCommand(Config{SampleRate: 11025, Device: "hw:1"})

	switch runtime.GOOS {
	case "linux":
		assert.Equal(t, "arecord", name)
		assert.Equal(t, []string{"-D", "hw:1", "-f", "FLOAT_LE", "-r", "11025", "-c", "1", "-t", "raw", "-q", "-"}, args)
	default:
		assert.Equal(t, "ffmpeg", name)
		assert.Contains(t, args, "f32le")
		assert.Contains(t, args, "11025")
	}

	name, _ = CaptureCommand(Config{SampleRate: 11025, Command: "/usr/local/bin/rec"})
	assert.Equal(t, "/usr/local/bin/rec", name)
}
