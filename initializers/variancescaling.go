package initializers

import (
	"math"
	"math/rand"

	bs "github.com/rbhambriiit/deeptorch"
)

type varianceScaling struct {
	// either: "in", "out", "avg"
	mode   string
	factor float64
}

const defaultVarianceMode string = "avg"

// VarianceScaling returns the variance scaling initializer, which has 3 modes and a user-defined
// scaling factor. Weights are drawn from a normal distribution truncated at 2 standard deviations,
// with variance factor/n, where n depends on the mode. The three modes can be set by In, Out, and
// Avg. It defaults to Avg, with a factor of 1.
func VarianceScaling() *varianceScaling {
	return &varianceScaling{defaultVarianceMode, 1}
}

// Factor sets the scaling factor to be used for the Initializer.
func (v *varianceScaling) Factor(f float64) *varianceScaling {
	v.factor = f
	return v
}

// In sets the scaling to be based on the number of input values to the Layer.
func (v *varianceScaling) In() *varianceScaling {
	v.mode = "in"
	return v
}

// Out sets the scaling to be based on the number of output values of the Layer.
func (v *varianceScaling) Out() *varianceScaling {
	v.mode = "out"
	return v
}

// Avg sets the scaling to be based on the average of the numbers of input and output values of the
// Layer.
func (v *varianceScaling) Avg() *varianceScaling {
	v.mode = "avg"
	return v
}

// Set is the implementation of deeptorch.Initializer
func (v *varianceScaling) Set(r *rand.Rand, nIn, nOut int, ws []float64) {
	var scale float64
	if v.mode == "in" {
		scale = float64(nIn)
	} else if v.mode == "out" {
		scale = float64(nOut)
	} else { // must be "avg"
		scale = float64(nIn+nOut) / 2
	}

	gen := TruncNormal().SD(math.Sqrt(v.factor / scale))

	for i := 0; i < len(ws); i++ {
		ws[i] = gen.Gen(r)
	}
}

// LeCun scales by the number of inputs to a coder: variance 1/nIn
func LeCun() bs.Initializer {
	return VarianceScaling().In()
}

// He is LeCun with twice the variance
func He() bs.Initializer {
	return VarianceScaling().In().Factor(2)
}

// Xavier scales by the average of the numbers of inputs and outputs: variance 2/(nIn+nOut)
func Xavier() bs.Initializer {
	return VarianceScaling().Avg()
}

// Glorot is another name for Xavier
func Glorot() bs.Initializer {
	return Xavier()
}
