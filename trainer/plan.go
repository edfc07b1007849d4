package trainer

import (
	"fmt"

	"github.com/pkg/errors"
	bs "github.com/rbhambriiit/deeptorch"
)

// plan is everything needed to run one Phase, built when the Phase starts
type plan struct {
	forward *bs.Graph
	crit    bs.Criterion

	// set when crit is an aggregate; the first term is supervised if 'supervised' is set
	agg *bs.LossAggregate

	// with 'reweight', the weights of 'agg' are t.weights[offset:]
	reweight bool
	offset   int

	supervised bool
	profile    bool

	// runs the backward pass, given the gradient of the criterion
	backward func(ex *bs.Example, beta []float64)

	updates []update

	// undoes any changes to partial backprop flags
	restore func()
}

// update is a set of groups adjusted together. If 'fixed' is false, the phase's learning rate is
// used instead of 'rate'.
type update struct {
	groups []*bs.ParameterGroup
	rate   float64
	fixed  bool
}

// partialSetter is anything whose partial backprop flag can be changed
type partialSetter interface {
	SetPartialBackprop(bool)
	PartialBackprop() bool
}

// setPartial sets the flag of each Layer, returning a function that restores the previous flags
func setPartial(partial bool, ls ...partialSetter) func() {
	prev := make([]bool, len(ls))
	for i, l := range ls {
		prev[i] = l.PartialBackprop()
		l.SetPartialBackprop(partial)
	}

	return func() {
		for i := len(ls) - 1; i >= 0; i-- {
			ls[i].SetPartialBackprop(prev[i])
		}
	}
}

func graphBackward(g *bs.Graph) func(*bs.Example, []float64) {
	return func(ex *bs.Example, beta []float64) {
		g.Backward(ex.Inputs, beta)
	}
}

// planFor builds the plan of a Phase. It returns a nil plan if the Phase has nothing to do.
func (t *Trainer) planFor(p Phase) (*plan, error) {
	n := t.m.NumLayers()
	pl := &plan{restore: func() {}}

	switch p := p.(type) {
	case LayerwiseUnsup:
		if p.Layer < 0 || p.Layer >= n {
			return nil, errors.Errorf("Layer %d out of range (%d layers)", p.Layer, n)
		}

		i := p.Layer
		ae := t.m.Autoencoder(i)

		// the encoders below are run forward to get the input of the autoencoder, but only the
		// autoencoder is run backward
		pl.forward = t.m.Chained(i)
		pl.crit = t.unsup[i]
		pl.backward = func(ex *bs.Example, beta []float64) {
			ae.Backward(t.m.LayerInput(i, ex), beta)
		}
		pl.updates = []update{{groups: ae.Params()}}

	case SelectiveUnsup:
		g, err := t.m.Selective(p.Layers)
		if errors.Cause(err) == bs.ErrNothingSelected {
			t.log.Warn("no layers selected, skipping phase", "phase", p.String())
			return nil, nil
		} else if err != nil {
			return nil, err
		}

		var terms []bs.Criterion
		var setters []partialSetter
		for i := 0; i < n; i++ {
			setters = append(setters, t.m.Encoder(i))
			if p.Layers[i] {
				terms = append(terms, t.unsup[i])
				if t.m.Config().Noisy() {
					setters = append(setters, t.m.Autoencoder(i))
				}
			}
		}

		if pl.agg, err = bs.NewLossAggregate(g.OutputSizes(), terms, nil); err != nil {
			return nil, err
		}

		pl.forward = g
		pl.crit = pl.agg
		pl.backward = graphBackward(g)
		pl.updates = []update{{groups: g.Params()}}
		pl.restore = setPartial(p.PartialBackprop, setters...)

	case JointUnsup:
		for i := 1; i <= n; i++ {
			t.weights[i] = 1
		}

		if p.TrainOutputer {
			if err := t.jointPlan(pl); err != nil {
				return nil, err
			}

			pl.restore = setPartial(true, t.m.Outputer())
			break
		}

		g := t.m.Unsupervised()
		agg, err := bs.NewLossAggregate(g.OutputSizes(), t.unsup, t.weights[1:])
		if err != nil {
			return nil, err
		}

		pl.forward = g
		pl.crit = agg
		pl.agg = agg
		pl.reweight = true
		pl.offset = 1
		pl.backward = graphBackward(g)
		pl.updates = []update{{groups: g.Params()}}

	case JointSupUnsup:
		for i := 1; i <= n; i++ {
			t.weights[i] = p.UnsupWeight
		}

		if err := t.jointPlan(pl); err != nil {
			return nil, err
		}

		pl.profile = t.prof != nil

	case TopK:
		if p.K < 1 || p.K > n+1 {
			return nil, errors.Errorf("K must be in [1, %d] (%d)", n+1, p.K)
		}

		t.supervisedPlan(pl)

		// the lowest trained layer is K-1 below the outputer
		groups := []*bs.ParameterGroup{t.m.Outputer().Group()}
		if p.K == 1 {
			pl.restore = setPartial(true, t.m.Outputer())
		} else {
			lowest := n - (p.K - 1)
			pl.restore = setPartial(true, t.m.Encoder(lowest))
			for i := lowest; i < n; i++ {
				groups = append(groups, t.m.Encoder(i).Group())
			}
		}

		pl.updates = []update{{groups: groups}}

	case FineTune:
		t.supervisedPlan(pl)

		if p.LayerRates == nil {
			pl.updates = []update{{groups: t.m.Supervised().Params()}}
			break
		} else if len(p.LayerRates) != n+1 {
			return nil, bs.SizeMismatchError{What: "Fine-tuning rates", Got: len(p.LayerRates), Want: n + 1}
		}

		for i := 0; i < n; i++ {
			pl.updates = append(pl.updates, update{
				groups: []*bs.ParameterGroup{t.m.Encoder(i).Group()},
				rate:   p.LayerRates[i],
				fixed:  true,
			})
		}

		pl.updates = append(pl.updates, update{
			groups: []*bs.ParameterGroup{t.m.Outputer().Group()},
			rate:   p.LayerRates[n],
			fixed:  true,
		})

	default:
		panic(fmt.Sprintf("unknown phase type %T", p))
	}

	return pl, nil
}

// jointPlan fills 'pl' to train the Joint graph, weighted by t.weights
func (t *Trainer) jointPlan(pl *plan) error {
	g := t.m.Joint()

	terms := append([]bs.Criterion{t.sup}, t.unsup...)
	agg, err := bs.NewLossAggregate(g.OutputSizes(), terms, t.weights)
	if err != nil {
		return err
	}

	pl.forward = g
	pl.crit = agg
	pl.agg = agg
	pl.reweight = true
	pl.supervised = true
	pl.backward = graphBackward(g)
	pl.updates = []update{{groups: g.Params()}}
	return nil
}

func (t *Trainer) supervisedPlan(pl *plan) {
	g := t.m.Supervised()

	pl.forward = g
	pl.crit = t.sup
	pl.supervised = true
	pl.backward = graphBackward(g)
}
