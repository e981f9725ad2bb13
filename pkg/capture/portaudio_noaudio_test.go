//go:build !cgo || noaudio
// +build !cgo noaudio

package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortAudioUnavailable(t *testing.T) {
	f := NewFactory()
	assert.Contains(t, f.SupportedBackends(), BackendPortAudio)

	src, err := f.Create(Config{Backend: BackendPortAudio, SampleRate: 44100, ChunkSize: 1024}, NewQueue(1), nil)
	assert.Nil(t, src)
	var capErr *CaptureError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, ErrCodeOpen, capErr.Code)
	assert.ErrorIs(t, err, ErrPortAudioUnavailable)

	devices, err := ListInputDevices()
	assert.Empty(t, devices)
	require.ErrorAs(t, err, &capErr)
	assert.ErrorIs(t, err, ErrPortAudioUnavailable)

	// the other backends do not depend on PortAudio
	cmdSrc, err := f.Create(Config{Backend: BackendCommand, SampleRate: 44100, ChunkSize: 1024}, NewQueue(1), nil)
	require.NoError(t, err)
	assert.Equal(t, 44100, cmdSrc.SampleRate())
}
