package costfuncs

import (
	"math"
)

// outputs are clamped to [eps, 1-eps] so that the cost stays finite
const eps = 1e-12

type crossEntropy struct{}

// CrossEntropy returns the binary cross-entropy cost function, used for reconstructing inputs in
// [0, 1] from sigmoid outputs. It implements deeptorch.CostFunction.
func CrossEntropy() crossEntropy {
	return crossEntropy{}
}

// XEntropy is a proxy for CrossEntropy
func XEntropy() crossEntropy {
	return CrossEntropy()
}

func (c crossEntropy) TypeString() string {
	return "xentropy"
}

func clamp(o float64) float64 {
	return math.Min(math.Max(o, eps), 1-eps)
}

func (c crossEntropy) Cost(outs, targets []float64) float64 {
	var sum float64
	for i := range outs {
		o := clamp(outs[i])
		sum -= targets[i]*math.Log(o) + (1-targets[i])*math.Log(1-o)
	}

	return sum
}

func (c crossEntropy) Deriv(outs, targets, ds []float64) {
	for i := range outs {
		o := clamp(outs[i])
		ds[i] = (o - targets[i]) / (o * (1 - o))
	}
}
