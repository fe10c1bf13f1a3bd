package audio

import "fmt"

// Resample converts mono float samples between sample rates using linear
// interpolation. Devices that cannot open at InputSampleRate are resampled
// before framing.
func Resample(input []float32, fromRate, toRate int) ([]float32, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: from=%d, to=%d", fromRate, toRate)
	}

	if fromRate == toRate {
		result := make([]float32, len(input))
		copy(result, input)
		return result, nil
	}

	n := len(input)
	if n == 0 {
		return []float32{}, nil
	}

	outLen := int(float64(n) * float64(toRate) / float64(fromRate))
	out := make([]float32, outLen)
	ratio := float64(fromRate) / float64(toRate)

	for i := range out {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		if srcIdx >= n-1 {
			out[i] = input[n-1]
			continue
		}
		s0, s1 := input[srcIdx], input[srcIdx+1]
		out[i] = s0 + frac*(s1-s0)
	}
	return out, nil
}
