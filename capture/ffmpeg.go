package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"sync"

	"github.com/glosings0n/Vut-Elimu/logger"
)

// CameraConfig holds webcam configuration
type CameraConfig struct {
	DeviceIndex int // Camera device index (0 = default)
	Width       int // Capture width (default 640)
	Height      int // Capture height (default 480)
	FPS         int // Frames decoded from the camera per second (default 4)
}

func (c *CameraConfig) defaults() {
	if c.Width == 0 {
		c.Width = 640
	}
	if c.Height == 0 {
		c.Height = 480
	}
	if c.FPS == 0 {
		c.FPS = 4
	}
}

// maxFrameBytes caps a single MJPEG frame.
const maxFrameBytes = 1024 * 1024

// jpeg markers
var (
	jpegStart = []byte{0xFF, 0xD8} // SOI (Start of Image)
	jpegEnd   = []byte{0xFF, 0xD9} // EOI (End of Image)
)

// FFmpegCamera is a VideoTrack fed by a continuous ffmpeg MJPEG stream.
// Snapshot returns the most recent complete frame.
type FFmpegCamera struct {
	*trackState
	cmd    *exec.Cmd
	cancel context.CancelFunc

	mu     sync.Mutex
	latest []byte
	first  chan struct{}
	exited chan struct{}
	err    error
}

// OpenFFmpegCamera starts ffmpeg and waits for the first frame. A missing
// ffmpeg binary or camera maps to ErrMediaAccessDenied.
func OpenFFmpegCamera(ctx context.Context, cfg CameraConfig) (*FFmpegCamera, error) {
	cfg.defaults()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %v: %w", err, ErrMediaAccessDenied)
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, "ffmpeg", buildStreamingArgs(cfg)...) //nolint:gosec // fixed binary, numeric args
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start ffmpeg: %v: %w", err, ErrMediaAccessDenied)
	}

	c := &FFmpegCamera{
		trackState: newTrackState(),
		cmd:        cmd,
		cancel:     cancel,
		first:      make(chan struct{}),
		exited:     make(chan struct{}),
	}
	go c.readMJPEGStream(stdout)
	go func() {
		c.err = cmd.Wait()
		close(c.exited)
	}()

	select {
	case <-c.first:
		return c, nil
	case <-c.exited:
		cancel()
		return nil, fmt.Errorf("camera unavailable: %v: %w", c.err, ErrMediaAccessDenied)
	case <-ctx.Done():
		c.Stop()
		return nil, ctx.Err()
	}
}

// Kind implements Track.
func (c *FFmpegCamera) Kind() Kind { return KindVideo }

// Snapshot implements VideoTrack.
func (c *FFmpegCamera) Snapshot(_ context.Context) (image.Image, error) {
	if c.Stopped() {
		return nil, ErrTrackStopped
	}
	c.mu.Lock()
	data := c.latest
	c.mu.Unlock()
	if data == nil {
		return nil, fmt.Errorf("no camera frame yet")
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode camera frame: %w", err)
	}
	return img, nil
}

// Stop kills ffmpeg. It is idempotent.
func (c *FFmpegCamera) Stop() {
	c.trackState.Stop()
	c.cancel()
}

// readMJPEGStream splits ffmpeg output on JPEG SOI/EOI markers.
func (c *FFmpegCamera) readMJPEGStream(r io.Reader) {
	reader := bufio.NewReaderSize(r, 256*1024)
	var frame bytes.Buffer
	inFrame := false
	var once sync.Once

	for {
		b, err := reader.ReadByte()
		if err != nil {
			if err != io.EOF && !c.Stopped() {
				logger.Warn("camera stream read error", "error", err)
			}
			return
		}
		frame.WriteByte(b)

		if !inFrame && frame.Len() >= 2 {
			data := frame.Bytes()
			if bytes.HasSuffix(data, jpegStart) {
				frame.Reset()
				frame.Write(jpegStart)
				inFrame = true
			} else if frame.Len() > 2 {
				last := data[len(data)-1]
				frame.Reset()
				frame.WriteByte(last)
			}
		}

		if inFrame && frame.Len() > 2 && bytes.HasSuffix(frame.Bytes(), jpegEnd) {
			data := make([]byte, frame.Len())
			copy(data, frame.Bytes())
			c.mu.Lock()
			c.latest = data
			c.mu.Unlock()
			once.Do(func() { close(c.first) })
			frame.Reset()
			inFrame = false
		}

		if frame.Len() > maxFrameBytes {
			frame.Reset()
			inFrame = false
		}
	}
}

// buildStreamingArgs builds ffmpeg arguments for continuous MJPEG streaming
func buildStreamingArgs(cfg CameraConfig) []string {
	size := fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
	var args []string

	switch runtime.GOOS {
	case "darwin":
		args = []string{"-f", "avfoundation", "-framerate", "30", "-video_size", size, "-i", strconv.Itoa(cfg.DeviceIndex)}
	case "windows":
		args = []string{"-f", "dshow", "-framerate", "30", "-video_size", size, "-i", fmt.Sprintf("video=%d", cfg.DeviceIndex)}
	default:
		args = []string{"-f", "v4l2", "-framerate", "30", "-video_size", size, "-i", fmt.Sprintf("/dev/video%d", cfg.DeviceIndex)}
	}

	return append(args,
		"-an",
		"-vf", fmt.Sprintf("fps=%d", cfg.FPS),
		"-f", "mjpeg",
		"-q:v", "5",
		"-",
	)
}
