package detector

import "fmt"

// Smooth applies a causal moving average of length coef to every channel of
// an interleaved window and writes the result to out:
//
//	out[i] = (1/coef) × Σ_{j=0}^{coef-1} in[i-j]   (same channel, i-j >= 0)
//
// Terms before the start of the window are left out rather than zero padded,
// but the divisor stays coef. The first coef-1 outputs of each channel are
// therefore attenuated: a constant input v gives v/coef, 2v/coef, ... until
// the full average v is reached at index coef-1.
//
// out is cleared before accumulation. in and out must have the same length,
// a multiple of channels.
func Smooth(in, out []float64, channels, coef int) {
	if len(in) != len(out) {
		panic(fmt.Sprintf("detector: smooth length mismatch: in=%d out=%d", len(in), len(out)))
	}
	if channels < 1 || len(in)%channels != 0 {
		panic(fmt.Sprintf("detector: smooth window of %d values is not a multiple of %d channels", len(in), channels))
	}
	if coef < 1 {
		panic(fmt.Sprintf("detector: smooth coefficient must be >= 1, got %d", coef))
	}

	clear(out)

	div := float64(coef)
	for i := 0; i < len(in); i += channels {
		for j := 0; j < coef; j++ {
			back := i - j*channels
			if back < 0 {
				break
			}
			for c := 0; c < channels; c++ {
				out[i+c] += in[back+c]
			}
		}
		for c := 0; c < channels; c++ {
			out[i+c] /= div
		}
	}
}
