package capture

import (
	"context"
	"fmt"
)

// SystemDevice acquires the default microphone (PortAudio builds only) and a
// webcam through ffmpeg.
type SystemDevice struct {
	Camera CameraConfig
}

// Open implements Device.
func (d *SystemDevice) Open(ctx context.Context, c Constraints) (*Stream, error) {
	var mic AudioTrack
	var cam VideoTrack

	if c.Audio {
		m, err := openMicrophone(ctx)
		if err != nil {
			return nil, fmt.Errorf("microphone: %w", err)
		}
		mic = m
	}
	if c.Video {
		v, err := OpenFFmpegCamera(ctx, d.Camera)
		if err != nil {
			if mic != nil {
				mic.Stop()
			}
			return nil, fmt.Errorf("camera: %w", err)
		}
		cam = v
	}
	return NewStream(mic, cam), nil
}
