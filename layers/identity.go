package layers

import (
	bs "github.com/rbhambriiit/deeptorch"
)

// Identity is a Layer that copies its input to its outputs. It is used as a stand-in for the raw
// input of a Graph, where a nested Graph needs a Node to read from.
type Identity struct {
	name    string
	outputs []float64
	beta    []float64
	partial bool
}

// NewIdentity returns an Identity Layer of size 'n'
func NewIdentity(name string, n int) *Identity {
	return &Identity{
		name:    name,
		outputs: make([]float64, n),
		beta:    make([]float64, n),
	}
}

func (t *Identity) Name() string {
	return t.name
}

func (t *Identity) NumInputs() int {
	return len(t.outputs)
}

func (t *Identity) NumOutputs() int {
	return len(t.outputs)
}

func (t *Identity) Forward(input []float64) []float64 {
	copy(t.outputs, input)
	return t.outputs
}

func (t *Identity) Backward(input, gradOut []float64) []float64 {
	if t.partial {
		for i := range t.beta {
			t.beta[i] = 0
		}
	} else {
		copy(t.beta, gradOut)
	}

	return t.beta
}

func (t *Identity) Outputs() []float64 {
	return t.outputs
}

func (t *Identity) Beta() []float64 {
	return t.beta
}

// Params returns nil; Identity has no parameters
func (t *Identity) Params() []*bs.ParameterGroup {
	return nil
}

func (t *Identity) SetPartialBackprop(p bool) {
	t.partial = p
}

func (t *Identity) PartialBackprop() bool {
	return t.partial
}
