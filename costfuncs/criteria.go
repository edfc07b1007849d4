package costfuncs

import (
	bs "github.com/rbhambriiit/deeptorch"
)

// Criterion adapts a CostFunction into a deeptorch.Criterion, reading its targets from a
// function of the current Example.
type Criterion struct {
	cf     bs.CostFunction
	target func(*bs.Example) []float64

	// whether or not to divide the cost and gradient by the number of outputs
	avg bool

	ds []float64
}

// Supervised returns a Criterion that compares outputs with the Targets of each Example.
func Supervised(cf bs.CostFunction) *Criterion {
	return &Criterion{
		cf:     cf,
		target: func(ex *bs.Example) []float64 { return ex.Targets },
	}
}

// Reconstruction returns a Criterion whose targets are given by 'target', typically either the
// inputs of the Example or the outputs of the encoder below the layer being reconstructed.
func Reconstruction(cf bs.CostFunction, target func(*bs.Example) []float64) *Criterion {
	return &Criterion{
		cf:     cf,
		target: target,
	}
}

// AverageFrameSize sets the Criterion to divide its cost and gradient by the number of outputs,
// returning the same Criterion.
func (c *Criterion) AverageFrameSize() *Criterion {
	c.avg = true
	return c
}

// CostFunction returns the underlying CostFunction
func (c *Criterion) CostFunction() bs.CostFunction {
	return c.cf
}

func (c *Criterion) targets(outputs []float64, ex *bs.Example) ([]float64, error) {
	t := c.target(ex)
	if len(t) != len(outputs) {
		return nil, bs.SizeMismatchError{What: "Targets for " + c.cf.TypeString(), Got: len(t), Want: len(outputs)}
	}

	return t, nil
}

func (c *Criterion) Forward(outputs []float64, ex *bs.Example) (float64, error) {
	t, err := c.targets(outputs, ex)
	if err != nil {
		return 0, err
	}

	cost := c.cf.Cost(outputs, t)
	if c.avg {
		cost /= float64(len(outputs))
	}

	return cost, nil
}

func (c *Criterion) Backward(outputs []float64, ex *bs.Example) ([]float64, error) {
	t, err := c.targets(outputs, ex)
	if err != nil {
		return nil, err
	}

	if len(c.ds) != len(outputs) {
		c.ds = make([]float64, len(outputs))
	}

	c.cf.Deriv(outputs, t, c.ds)
	if c.avg {
		n := float64(len(outputs))
		for i := range c.ds {
			c.ds[i] /= n
		}
	}

	return c.ds, nil
}
