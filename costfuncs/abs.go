package costfuncs

import (
	"math"
)

type abs struct{}

// Abs returns the Absolute Value cost function, which implements deeptorch.CostFunction.
func Abs() abs {
	return abs{}
}

// L1 is a proxy for Abs
func L1() abs {
	return Abs()
}

func (a abs) TypeString() string {
	return "abs"
}

func (a abs) Cost(outs, targets []float64) float64 {
	var sum float64
	for i := range outs {
		sum += math.Abs(outs[i] - targets[i])
	}

	return sum
}

func (a abs) Deriv(outs, targets, ds []float64) {
	for i := range outs {
		d := outs[i] - targets[i]
		if d == 0 {
			ds[i] = 0
		} else {
			ds[i] = math.Copysign(1, d)
		}
	}
}
