// Package profiler measures, for each hidden layer of a stacked autoencoder, how the gradients
// reaching that layer from different objectives relate to one another.
//
// For every profiled example, three gradients with respect to the output of encoder i are
// captured:
//
//	sup     from the supervised loss alone, through the layers above
//	upper   from the joint loss, through the layers above
//	unsup   from the reconstruction of layer i, through decoder i
//
// The Profiler accumulates their norms and the angles between each pair.
package profiler

import (
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
	bs "github.com/rbhambriiit/deeptorch"
	"github.com/rbhambriiit/deeptorch/sae"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Pair identifies the two gradients an angle is measured between
type Pair int

const (
	UpperSup   Pair = iota // 0
	UpperUnsup Pair = iota // 1
	SupUnsup   Pair = iota // 2
)

// Which identifies one of the three gradients
type Which int

const (
	Sup   Which = iota // 0
	Upper Which = iota // 1
	Unsup Which = iota // 2
)

func (p Pair) String() string {
	switch p {
	case UpperSup:
		return "upper/sup"
	case UpperUnsup:
		return "upper/unsup"
	case SupUnsup:
		return "sup/unsup"
	}

	return fmt.Sprintf("Pair(%d)", int(p))
}

// Profiler captures gradient statistics. It is only valid for models that are not noisy, since
// the decoders of noisy models read corrupted values.
type Profiler struct {
	m   *sae.Model
	sup bs.Criterion

	// the captured gradients of the current example, indexed by Which then layer
	grads [3][][]float64

	layers []*layerStats
}

type layerStats struct {
	angles [3][]float64
	norms  [3][]float64

	// examples where an angle was undefined because a gradient was zero
	skipped int
}

// New returns a Profiler for 'm', using 'sup' as the supervised Criterion on the outputs of the
// outputer.
func New(m *sae.Model, sup bs.Criterion) (*Profiler, error) {
	if m == nil {
		return nil, bs.NilArg("Model")
	} else if sup == nil {
		return nil, bs.NilArg("Criterion")
	} else if m.Config().Noisy() {
		return nil, &bs.ConfigError{Field: "profile_gradients", Reason: "cannot profile gradients of a noisy model"}
	}

	p := &Profiler{m: m, sup: sup}

	n := m.NumLayers()
	for w := range p.grads {
		p.grads[w] = make([][]float64, n)
		for i := range p.grads[w] {
			p.grads[w][i] = make([]float64, m.Encoder(i).NumOutputs())
		}
	}

	p.reset()
	return p, nil
}

func (p *Profiler) reset() {
	p.layers = make([]*layerStats, p.m.NumLayers())
	for i := range p.layers {
		p.layers[i] = new(layerStats)
	}
}

// Returns the gradient with respect to the output of encoder i from the layer above it
func (p *Profiler) fromAbove(i int) []float64 {
	if i == p.m.NumLayers()-1 {
		return p.m.Outputer().Beta()
	}

	return p.m.Encoder(i + 1).Beta()
}

// Example profiles a single example, which must be the one most recently run forward through the
// joint Graph of the model. 'jointBeta' is the gradient of the joint loss with respect to the
// outputs of that Graph.
//
// Example overwrites parameter gradients, and leaves them all at zero.
func (p *Profiler) Example(ex *bs.Example, jointBeta []float64) error {
	groups := p.m.Joint().Params()
	defer bs.ClearGradients(groups)

	bs.ClearGradients(groups)
	supBeta, err := p.sup.Backward(p.m.Outputer().Outputs(), ex)
	if err != nil {
		return errors.Wrapf(err, "Supervised backward failed\n")
	}

	p.m.Supervised().Backward(ex.Inputs, supBeta)
	for i := range p.layers {
		copy(p.grads[Sup][i], p.fromAbove(i))
	}

	bs.ClearGradients(groups)
	p.m.Joint().Backward(ex.Inputs, jointBeta)
	for i := range p.layers {
		copy(p.grads[Upper][i], p.fromAbove(i))
		copy(p.grads[Unsup][i], p.m.Decoder(i).Beta())
	}

	for i, ls := range p.layers {
		for w := range ls.norms {
			ls.norms[w] = append(ls.norms[w], floats.Norm(p.grads[w][i], 2))
		}

		upper, sup, unsup := p.grads[Upper][i], p.grads[Sup][i], p.grads[Unsup][i]

		us, ok1 := Angle(upper, sup)
		uu, ok2 := Angle(upper, unsup)
		su, ok3 := Angle(sup, unsup)
		if !(ok1 && ok2 && ok3) {
			ls.skipped++
			continue
		}

		ls.angles[UpperSup] = append(ls.angles[UpperSup], us)
		ls.angles[UpperUnsup] = append(ls.angles[UpperUnsup], uu)
		ls.angles[SupUnsup] = append(ls.angles[SupUnsup], su)
	}

	return nil
}

// Angle returns the angle, in radians, between two vectors. If either has zero length, the angle
// is undefined and Angle returns false.
func Angle(a, b []float64) (float64, bool) {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0, false
	}

	cos := floats.Dot(a, b) / (na * nb)
	return math.Acos(math.Max(-1, math.Min(1, cos))), true
}

// LayerReport summarizes the profiled examples of one layer
type LayerReport struct {
	Layer    int
	Examples int

	// examples for which the angles were undefined
	Skipped int

	AngleMean, AngleStd [3]float64
	NormMean, NormStd   [3]float64
}

// Report returns the statistics accumulated since the last call to Report, and resets them.
func (p *Profiler) Report() []LayerReport {
	reps := make([]LayerReport, len(p.layers))
	for i, ls := range p.layers {
		r := LayerReport{
			Layer:    i,
			Examples: len(ls.norms[Sup]),
			Skipped:  ls.skipped,
		}

		for k := range ls.angles {
			if len(ls.angles[k]) > 0 {
				r.AngleMean[k], r.AngleStd[k] = stat.MeanStdDev(ls.angles[k], nil)
			}

			if len(ls.norms[k]) > 0 {
				r.NormMean[k], r.NormStd[k] = stat.MeanStdDev(ls.norms[k], nil)
			}
		}

		reps[i] = r
	}

	p.reset()
	return reps
}

// WriteReport writes one line per layer to 'w', tagged with the iteration:
//	iteration layer examples skipped [angle mean, angle std]x3 [norm mean, norm std]x3
func WriteReport(w io.Writer, iter int, reps []LayerReport) error {
	for _, r := range reps {
		line := fmt.Sprintf("%d %d %d %d", iter, r.Layer, r.Examples, r.Skipped)
		for k := range r.AngleMean {
			line += fmt.Sprintf(" %g %g", r.AngleMean[k], r.AngleStd[k])
		}
		for k := range r.NormMean {
			line += fmt.Sprintf(" %g %g", r.NormMean[k], r.NormStd[k])
		}

		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return errors.Wrapf(err, "Writing profile of layer %d failed\n", r.Layer)
		}
	}

	return nil
}
