package layers

import (
	"math/rand"
)

// Noise corrupts its input by replacing each value, with probability Prob, by Value. It is the
// "destructive" part of a denoising autoencoder.
type Noise struct {
	Prob  float64
	Value float64

	rng *rand.Rand

	// which values were replaced on the most recent call to corrupt
	mask []bool
	buf  []float64
}

// NewNoise returns Noise for inputs of size 'n'. Corruption is drawn from 'rng', which must not
// be used concurrently elsewhere.
func NewNoise(n int, prob, value float64, rng *rand.Rand) *Noise {
	return &Noise{
		Prob:  prob,
		Value: value,
		rng:   rng,
		mask:  make([]bool, n),
		buf:   make([]float64, n),
	}
}

// Size returns the number of values the Noise expects
func (z *Noise) Size() int {
	return len(z.buf)
}

// returns a corrupted copy of 'x'. The copy is reused by the next call.
func (z *Noise) corrupt(x []float64) []float64 {
	for i, v := range x {
		z.mask[i] = z.rng.Float64() < z.Prob
		if z.mask[i] {
			z.buf[i] = z.Value
		} else {
			z.buf[i] = v
		}
	}

	return z.buf
}

// the corrupted values from the most recent call to corrupt
func (z *Noise) corrupted() []float64 {
	return z.buf
}

// zeroes the gradient of every value that was replaced, since those do not depend on the input
func (z *Noise) maskBeta(beta []float64) {
	for i, m := range z.mask {
		if m {
			beta[i] = 0
		}
	}
}
