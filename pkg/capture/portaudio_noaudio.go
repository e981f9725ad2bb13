//go:build !cgo || noaudio
// +build !cgo noaudio

package capture

import (
	"github.com/RyanBlaney/sonido-sonar/logging"
)

// registerPortAudio keeps the backend name known so configurations stay valid;
// creating the source reports that PortAudio is not linked in.
func registerPortAudio(f *Factory) {
	f.Register(BackendPortAudio, func(cfg Config, queue *Queue, logger logging.Logger) (Source, error) {
		return nil, NewCaptureError(string(BackendPortAudio), cfg.Device, ErrCodeOpen,
			"portaudio backend unavailable, use the command backend", ErrPortAudioUnavailable)
	})
}

// ListInputDevices is unavailable without PortAudio
func ListInputDevices() ([]InputDevice, error) {
	return nil, NewCaptureError(string(BackendPortAudio), "", ErrCodeOpen,
		"cannot list input devices", ErrPortAudioUnavailable)
}
