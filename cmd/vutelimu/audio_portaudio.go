//go:build portaudio

package main

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// initAudio initialises PortAudio for the process lifetime.
func initAudio() (func(), error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return func() { _ = portaudio.Terminate() }, nil
}
