package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResample(t *testing.T) {
	t.Run("same rate copies", func(t *testing.T) {
		in := []float32{0.1, 0.2}
		out, err := Resample(in, 16000, 16000)
		require.NoError(t, err)
		assert.Equal(t, in, out)
		out[0] = 1
		assert.InDelta(t, 0.1, in[0], 1e-6)
	})

	t.Run("downsample 48k to 16k", func(t *testing.T) {
		in := SineWave(440, 48000, time.Second, 0.8)
		out, err := Resample(in, 48000, InputSampleRate)
		require.NoError(t, err)
		assert.Len(t, out, InputSampleRate)
	})

	t.Run("upsample interpolates", func(t *testing.T) {
		out, err := Resample([]float32{0, 1}, 1, 2)
		require.NoError(t, err)
		require.Len(t, out, 4)
		assert.InDelta(t, 0.5, out[1], 1e-6)
		assert.InDelta(t, 1.0, out[3], 1e-6)
	})

	t.Run("empty", func(t *testing.T) {
		out, err := Resample(nil, 48000, 16000)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("invalid rates", func(t *testing.T) {
		_, err := Resample([]float32{1}, 0, 16000)
		assert.Error(t, err)
	})
}

func TestSineWave(t *testing.T) {
	wave := SineWave(1000, InputSampleRate, 10*time.Millisecond, 2)
	assert.Len(t, wave, 160)
	for _, s := range wave {
		assert.LessOrEqual(t, s, float32(1))
		assert.GreaterOrEqual(t, s, float32(-1))
	}
}
