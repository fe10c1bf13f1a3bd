package audio

import (
	"math"
	"time"
)

// SineWave generates a mono test tone. Amplitude is clamped to [0, 1].
func SineWave(freq float64, sampleRate int, d time.Duration, amplitude float64) []float32 {
	amplitude = math.Max(0, math.Min(1, amplitude))
	n := int(d.Seconds() * float64(sampleRate))
	out := make([]float32, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freq*t))
	}
	return out
}
