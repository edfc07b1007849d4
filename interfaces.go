package deeptorch

import (
	"math/rand"
)

// Layer is a single transform inside a Graph. Layers keep their own output and beta buffers, which
// are overwritten by each call to Forward and Backward respectively. A Graph is itself a Layer, so
// graphs may be nested.
type Layer interface {
	// Name is only used for error messages and logging
	Name() string

	NumInputs() int
	NumOutputs() int

	// Forward computes the outputs of the Layer from the given input. The returned slice is the
	// same one given by Outputs.
	Forward(input []float64) []float64

	// Backward adds to the gradients of the parameters of the Layer and returns the gradient of
	// the loss with respect to 'input' (beta). 'input' must be the same values that were given to
	// the most recent call to Forward, and 'gradOut' is the gradient of the loss with respect to
	// the outputs.
	//
	// Layers that have partial backprop set still accumulate their parameter gradients.
	Backward(input, gradOut []float64) []float64

	Outputs() []float64
	Beta() []float64

	// Params returns every ParameterGroup the Layer reads from, whether it owns the group or
	// borrows it from another Layer.
	Params() []*ParameterGroup

	SetPartialBackprop(bool)
	PartialBackprop() bool
}

// Criterion maps the outputs of a Graph to a scalar loss and the gradient of that loss with
// respect to those outputs. Criteria own no parameters.
type Criterion interface {
	Forward(outputs []float64, ex *Example) (float64, error)

	// Backward returns the gradient of the loss with respect to the outputs. The returned slice
	// may be reused by the next call.
	Backward(outputs []float64, ex *Example) ([]float64, error)
}

// CostFunction is the elementwise part of a Criterion, comparing outputs with targets.
type CostFunction interface {
	TypeString() string

	// Cost can assume that both slices have the same length
	Cost(outs, targets []float64) float64

	// Deriv sets 'ds' to the derivative of the cost with respect to each output.
	Deriv(outs, targets, ds []float64)
}

// Penalty is a form of weight decay, applied to a single Block of parameters.
type Penalty interface {
	TypeString() string

	// Penalize adds the derivative of the penalty to each of the gradients
	Penalize(weights, grads []float64)
}

// Optimizer updates a set of values given their gradients.
type Optimizer interface {
	TypeString() string

	// arguments: number of values, gradient of value at index, add to value at index, learning
	// rate
	Run(size int, grad func(int) float64, add func(int, float64), learningRate float64) error
}

// HyperParameter is a value that may change over the course of training, such as the learning
// rate.
type HyperParameter interface {
	TypeString() string
	Value(iter int) float64
}

// Initializer sets the starting values of a block of weights for a Layer with the given number of
// inputs and outputs.
type Initializer interface {
	Set(r *rand.Rand, nIn, nOut int, ws []float64)
}
