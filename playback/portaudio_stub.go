//go:build !portaudio

package playback

import (
	"context"
	"errors"
)

// ErrNoAudioDevice is returned by PortAudioOutputFactory in builds without
// the portaudio tag.
var ErrNoAudioDevice = errors.New("built without portaudio support")

// PortAudioOutputFactory returns a factory that always fails; build with
// -tags portaudio for speaker output.
func PortAudioOutputFactory() OutputFactory {
	return func(_ context.Context) (Output, error) {
		return nil, ErrNoAudioDevice
	}
}
