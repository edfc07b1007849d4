package deeptorch

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// LossAggregate combines several Criteria, each reading its own consecutive segment of a Graph's
// outputs, into a single weighted loss. The gradient it returns is the concatenation of each
// Criterion's gradient, scaled by that Criterion's weight.
//
// LossAggregate implements Criterion.
type LossAggregate struct {
	terms   []Criterion
	weights []float64
	seg     segments

	losses []float64
	beta   []float64
}

// NewLossAggregate returns a LossAggregate whose terms read segments of the given sizes. Sizes
// typically come from *Graph.OutputSizes. If weights is nil, every term has weight 1.
func NewLossAggregate(sizes []int, terms []Criterion, weights []float64) (*LossAggregate, error) {
	if len(sizes) != len(terms) {
		return nil, SizeMismatchError{"Criteria list", len(terms), len(sizes)}
	} else if len(terms) == 0 {
		return nil, errors.Errorf("LossAggregate needs at least one Criterion")
	}

	for i, c := range terms {
		if c == nil {
			return nil, errors.Wrapf(NilArgError{"Criterion"}, "Term %d", i)
		}
	}

	a := &LossAggregate{
		terms:   terms,
		weights: make([]float64, len(terms)),
		seg:     newSegments(sizes),
		losses:  make([]float64, len(terms)),
	}

	a.beta = make([]float64, a.seg.size())

	if weights == nil {
		for i := range a.weights {
			a.weights[i] = 1
		}
	} else if err := a.SetWeights(weights); err != nil {
		return nil, err
	}

	return a, nil
}

// Len returns the number of terms
func (a *LossAggregate) Len() int {
	return len(a.terms)
}

// SetWeights replaces the weight of every term. The given slice is copied.
func (a *LossAggregate) SetWeights(weights []float64) error {
	if len(weights) != len(a.terms) {
		return SizeMismatchError{"Criterion weights", len(weights), len(a.terms)}
	}

	copy(a.weights, weights)
	return nil
}

// Weights returns a copy of the current weights
func (a *LossAggregate) Weights() []float64 {
	w := make([]float64, len(a.weights))
	copy(w, a.weights)
	return w
}

// SubLosses returns the unweighted losses of each term, as of the latest call to Forward
func (a *LossAggregate) SubLosses() []float64 {
	l := make([]float64, len(a.losses))
	copy(l, a.losses)
	return l
}

// Segment returns the part of 'outputs' read by term i
func (a *LossAggregate) Segment(outputs []float64, i int) []float64 {
	return a.seg.of(outputs, i)
}

// Forward returns the weighted sum of the losses of each term.
func (a *LossAggregate) Forward(outputs []float64, ex *Example) (float64, error) {
	if len(outputs) != a.seg.size() {
		return 0, SizeMismatchError{"Outputs given to LossAggregate", len(outputs), a.seg.size()}
	}

	for i, c := range a.terms {
		l, err := c.Forward(a.seg.of(outputs, i), ex)
		if err != nil {
			return 0, errors.Wrapf(err, "Forward of criterion %d failed\n", i)
		}

		a.losses[i] = l
	}

	return floats.Dot(a.weights, a.losses), nil
}

// Backward returns the weighted concatenation of the gradients of each term. The returned slice
// is reused by the next call.
func (a *LossAggregate) Backward(outputs []float64, ex *Example) ([]float64, error) {
	if len(outputs) != a.seg.size() {
		return nil, SizeMismatchError{"Outputs given to LossAggregate", len(outputs), a.seg.size()}
	}

	for i, c := range a.terms {
		b, err := c.Backward(a.seg.of(outputs, i), ex)
		if err != nil {
			return nil, errors.Wrapf(err, "Backward of criterion %d failed\n", i)
		}

		seg := a.seg.of(a.beta, i)
		if len(b) != len(seg) {
			return nil, SizeMismatchError{"Gradient of criterion", len(b), len(seg)}
		}

		floats.ScaleTo(seg, a.weights[i], b)
	}

	return a.beta, nil
}
