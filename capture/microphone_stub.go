//go:build !portaudio

package capture

import (
	"context"
	"fmt"
)

func openMicrophone(_ context.Context) (AudioTrack, error) {
	return nil, fmt.Errorf("built without portaudio support: %w", ErrMediaAccessDenied)
}
