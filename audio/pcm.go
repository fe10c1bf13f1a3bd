// Package audio converts between captured float samples and the 16-bit PCM
// wire format used by the live endpoint.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// Sample rates fixed by the live endpoint.
const (
	InputSampleRate  = 16000 // microphone capture
	OutputSampleRate = 24000 // model speech

	// BytesPerSample is the size of one mono PCM16 sample.
	BytesPerSample = 2
)

// InputMIMEType is the media type of encoded microphone frames.
var InputMIMEType = fmt.Sprintf("audio/pcm;rate=%d", InputSampleRate)

var (
	// ErrDecode indicates an audio chunk that could not be decoded.
	ErrDecode = errors.New("audio decode failed")
	// ErrEmptyAudioData indicates no audio data provided
	ErrEmptyAudioData = errors.New("empty audio data")
	// ErrOddLength indicates PCM data not aligned to the sample size
	ErrOddLength = errors.New("pcm data not aligned to 16-bit samples")
)

const (
	pcmScale = 32768
	pcmMax   = math.MaxInt16
	pcmMin   = math.MinInt16
)

// Blob is a base64 media payload ready for JSON transport.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// EncodePCM16 converts float samples in [-1, 1] into 16-bit signed
// little-endian PCM. Out-of-range samples are clamped and NaN becomes silence.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(floatToInt16(s))) //nolint:gosec // two's complement store
	}
	return out
}

func floatToInt16(s float32) int16 {
	f := float64(s)
	if math.IsNaN(f) {
		return 0
	}
	v := math.Round(f * pcmScale)
	if v > pcmMax {
		return pcmMax
	}
	if v < pcmMin {
		return pcmMin
	}
	return int16(v)
}

// EncodeBlob encodes a capture frame for realtime input.
func EncodeBlob(samples []float32) Blob {
	return Blob{
		MIMEType: InputMIMEType,
		Data:     base64.StdEncoding.EncodeToString(EncodePCM16(samples)),
	}
}

// DecodePCM16 reads little-endian 16-bit samples.
func DecodePCM16(data []byte) ([]int16, error) {
	if len(data)%BytesPerSample != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrOddLength, len(data))
	}
	out := make([]int16, len(data)/BytesPerSample)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*BytesPerSample:])) //nolint:gosec // Safe PCM16 conversion
	}
	return out, nil
}

// PCM16ToFloat32 maps samples back into [-1, 1).
func PCM16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / pcmScale
	}
	return out
}

// Buffer is a decoded, playable mono buffer.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// DecodeBase64 decodes a base64 PCM16 chunk at the given sample rate.
// Every failure wraps ErrDecode.
func DecodeBase64(data string, sampleRate int) (*Buffer, error) {
	if data == "" {
		return nil, fmt.Errorf("%w: %w", ErrDecode, ErrEmptyAudioData)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %w", ErrDecode, err)
	}
	pcm, err := DecodePCM16(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return &Buffer{Samples: PCM16ToFloat32(pcm), SampleRate: sampleRate}, nil
}
