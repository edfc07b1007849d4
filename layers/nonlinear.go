package layers

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Nonlinearity is the elementwise (or, for LogSoftMax, vector-wise) function applied after the
// linear part of a Coder.
type Nonlinearity string

const (
	Linear     Nonlinearity = "linear"
	Sigmoid    Nonlinearity = "sigmoid"
	Tanh       Nonlinearity = "tanh"
	LogSoftMax Nonlinearity = "logsoftmax"
)

// Valid returns whether or not the Nonlinearity is one of the known types
func (f Nonlinearity) Valid() bool {
	switch f {
	case Linear, Sigmoid, Tanh, LogSoftMax:
		return true
	}

	return false
}

// Bounded returns whether or not the outputs of the Nonlinearity are always in (0, 1), as is
// required for cross-entropy reconstruction.
func (f Nonlinearity) Bounded() bool {
	return f == Sigmoid
}

// sets 'out' to f(pre)
func (f Nonlinearity) apply(pre, out []float64) {
	switch f {
	case Sigmoid:
		for i, x := range pre {
			out[i] = 0.5 + 0.5*math.Tanh(0.5*x)
		}
	case Tanh:
		for i, x := range pre {
			out[i] = math.Tanh(x)
		}
	case LogSoftMax:
		lse := floats.LogSumExp(pre)
		for i, x := range pre {
			out[i] = x - lse
		}
	default:
		copy(out, pre)
	}
}

// sets 'delta' to the gradient with respect to the pre-activation values, given the outputs and
// the gradient with respect to them
func (f Nonlinearity) delta(out, gradOut, delta []float64) {
	switch f {
	case Sigmoid:
		for i, y := range out {
			delta[i] = gradOut[i] * y * (1 - y)
		}
	case Tanh:
		for i, y := range out {
			delta[i] = gradOut[i] * (1 - y*y)
		}
	case LogSoftMax:
		sum := floats.Sum(gradOut)
		for i, y := range out {
			delta[i] = gradOut[i] - math.Exp(y)*sum
		}
	default:
		copy(delta, gradOut)
	}
}
