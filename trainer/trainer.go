// Package trainer runs the phases of training a stacked autoencoder: unsupervised pretraining,
// joint supervised and unsupervised training, and supervised fine-tuning.
//
// Each Phase is a value given to Trainer.Run, which builds a plan for it (the Graph to run
// forward, the criterion, the backward target and the groups to update), runs its iterations over
// the training set, and undoes any temporary changes to the model on exit. Phases never run
// concurrently.
package trainer

import (
	"io"
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"github.com/pkg/errors"
	bs "github.com/rbhambriiit/deeptorch"
	"github.com/rbhambriiit/deeptorch/costfuncs"
	"github.com/rbhambriiit/deeptorch/hyperparams"
	"github.com/rbhambriiit/deeptorch/profiler"
	"github.com/rbhambriiit/deeptorch/results"
	"github.com/rbhambriiit/deeptorch/sae"
)

// Trainer trains a single sae.Model. It is safe to call Run from multiple goroutines, but the
// calls are serialized.
type Trainer struct {
	mux sync.Mutex

	m   *sae.Model
	cfg Config
	log *slog.Logger
	rng *rand.Rand

	hooks Hooks
	opt   bs.Optimizer

	sup   bs.Criterion
	unsup []bs.Criterion

	// weights of the supervised criterion, then each reconstruction, in the joint phases
	weights []float64

	// iterations run over all phases
	epoch int

	valid, test bs.DataSet

	prof    *profiler.Profiler
	profOut io.Writer
}

// Option configures a Trainer
type Option func(*Trainer)

// WithLogger sets the Logger, which is otherwise slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(t *Trainer) {
		t.log = l
	}
}

func WithHooks(h Hooks) Option {
	return func(t *Trainer) {
		t.hooks = h
	}
}

// WithEvaluation gives the sets on which the supervised phases measure their cost and
// classification error after each iteration. Either may be nil.
func WithEvaluation(valid, test bs.DataSet) Option {
	return func(t *Trainer) {
		t.valid, t.test = valid, test
	}
}

// WithProfileOutput sets where gradient profiles are written, if profiling is enabled
func WithProfileOutput(w io.Writer) Option {
	return func(t *Trainer) {
		t.profOut = w
	}
}

// New returns a Trainer for 'm'. The Config is validated against the model, and its weight decay
// is registered on the model's parameters.
func New(m *sae.Model, cfg Config, opts ...Option) (*Trainer, error) {
	if m == nil {
		return nil, bs.NilArg("Model")
	}

	if err := cfg.Validate(m.Config()); err != nil {
		return nil, err
	}

	if cfg.GradWarnThreshold <= 0 {
		cfg.GradWarnThreshold = DefaultGradWarnThreshold
	}

	opt, err := cfg.optimizer()
	if err != nil {
		return nil, err
	}

	biasPen, err := cfg.biasPenalty()
	if err != nil {
		return nil, err
	}

	t := &Trainer{
		m:   m,
		cfg: cfg,
		log: slog.Default(),
		rng: rand.New(rand.NewSource(cfg.Seed)),
		opt: opt,
	}

	for _, o := range opts {
		o(t)
	}

	t.sup = costfuncs.Supervised(costfuncs.ClassNLL())

	n := m.NumLayers()
	t.unsup = make([]bs.Criterion, n)
	for i := range t.unsup {
		cf, err := costfuncs.ByName(cfg.ReconsCost)
		if err != nil {
			return nil, errors.Wrapf(err, "Getting reconstruction cost failed\n")
		}

		layer := i
		c := costfuncs.Reconstruction(cf, func(ex *bs.Example) []float64 {
			return m.LayerInput(layer, ex)
		})
		if cfg.CriterAvgFrameSize {
			c.AverageFrameSize()
		}

		t.unsup[i] = c
	}

	t.weights = make([]float64, n+1)
	for i := range t.weights {
		t.weights[i] = 1
	}

	m.SetDecay(cfg.L1Decay, cfg.L2Decay, biasPen)

	if cfg.ProfileGradients {
		if t.prof, err = profiler.New(m, t.sup); err != nil {
			return nil, errors.Wrapf(err, "Creating profiler failed\n")
		}
	}

	return t, nil
}

// Model returns the model being trained
func (t *Trainer) Model() *sae.Model {
	return t.m
}

// Weights returns a copy of the current criterion weights of the joint phases: the supervised
// criterion, then each reconstruction.
func (t *Trainer) Weights() []float64 {
	w := make([]float64, len(t.weights))
	copy(w, t.weights)
	return w
}

// RunOptions controls a single call to Run
type RunOptions struct {
	Iterations   int
	LearningRate float64

	// Rate, if not nil, gives the learning rate of each iteration in place of LearningRate and
	// the configured decay
	Rate bs.HyperParameter

	// Sink receives the measurements of each iteration. It may be nil, and is not closed by Run.
	Sink results.Sink
}

// Run trains the model on 'data' for the given Phase, returning the Stats of the last iteration.
// A Phase with no iterations, or no data, is skipped.
func (t *Trainer) Run(p Phase, data bs.DataSet, opts RunOptions) (Stats, error) {
	t.mux.Lock()
	defer t.mux.Unlock()

	var stats Stats
	if opts.Iterations <= 0 || data == nil || data.Len() == 0 {
		t.log.Info("skipping phase", slog.String("phase", p.String()))
		return stats, nil
	}

	pl, err := t.planFor(p)
	if err != nil {
		return stats, errors.Wrapf(err, "Preparing phase %s failed\n", p)
	} else if pl == nil {
		return stats, nil
	}

	defer pl.restore()

	t.log.Info("phase started", slog.String("phase", p.String()), slog.Int("iterations", opts.Iterations),
		slog.Int("examples", data.Len()), slog.Float64("learning_rate", opts.LearningRate))
	t.hooks.beforePhase(p)

	lr := opts.Rate
	if lr == nil {
		lr = t.rate(opts.LearningRate)
	}
	prevCost := math.Inf(1)

	for iter := 0; iter < opts.Iterations; iter++ {
		t.hooks.beforeIteration(p, iter)

		if pl.reweight && t.cfg.EvalCriterionWeights && t.epoch > 0 {
			if err := t.reweight(data); err != nil {
				return stats, errors.Wrapf(err, "Evaluating criterion weights failed\n")
			} else if err := pl.agg.SetWeights(t.weights[pl.offset:]); err != nil {
				return stats, err
			}
		}

		if stats, err = t.iterate(pl, data, lr.Value(iter)); err != nil {
			return stats, errors.Wrapf(err, "Iteration %d of phase %s failed\n", iter, p)
		}

		stats.Iteration = iter
		t.epoch++

		t.log.Info("iteration", slog.String("phase", p.String()), slog.Int("iteration", iter),
			slog.Float64("cost", stats.Cost), slog.Float64("class_error", stats.ClassError))

		if err := t.record(p, pl, stats, opts.Sink); err != nil {
			return stats, err
		}

		if pl.profile {
			if err := t.writeProfile(iter); err != nil {
				return stats, err
			}
		}

		t.hooks.afterIteration(p, stats)

		if math.Abs(prevCost-stats.Cost) < t.cfg.EndAccuracy {
			t.log.Info("cost converged, ending phase early", slog.String("phase", p.String()), slog.Int("iteration", iter))
			break
		}

		prevCost = stats.Cost
	}

	t.hooks.afterPhase(p, stats)
	t.log.Info("phase finished", slog.String("phase", p.String()), slog.Float64("cost", stats.Cost))

	return stats, nil
}

// rate returns the learning rate of a phase starting at 'base'
func (t *Trainer) rate(base float64) bs.HyperParameter {
	if t.cfg.LearningRateDecay == 0 {
		return hyperparams.Constant(base)
	}

	return hyperparams.Decay(base, t.cfg.LearningRateDecay)
}

// RunSchedule runs each Stage in order on 'data'. If 'sinkFor' is not nil, it is called to get
// the Sink of each Stage, which is closed once the Stage finishes.
func (t *Trainer) RunSchedule(stages []Stage, data bs.DataSet, sinkFor func(Phase) (results.Sink, error)) error {
	for _, s := range stages {
		var sink results.Sink
		if sinkFor != nil {
			var err error
			if sink, err = sinkFor(s.Phase); err != nil {
				return errors.Wrapf(err, "Opening results for phase %s failed\n", s.Phase)
			}
		}

		_, err := t.Run(s.Phase, data, RunOptions{Iterations: s.Iterations, LearningRate: s.LearningRate, Rate: s.Rate, Sink: sink})
		if sink != nil {
			if cerr := sink.Close(); cerr != nil && err == nil {
				err = errors.Wrapf(cerr, "Closing results for phase %s failed\n", s.Phase)
			}
		}

		if err != nil {
			return err
		}
	}

	return nil
}

// iterate runs a single pass over the training set, in shuffled order
func (t *Trainer) iterate(pl *plan, data bs.DataSet, lr float64) (Stats, error) {
	stats := Stats{LearningRate: lr}
	if pl.agg != nil {
		stats.SubCosts = make([]float64, pl.agg.Len())
	}

	var wrong int
	for _, idx := range t.rng.Perm(data.Len()) {
		ex := data.Example(idx)

		outs, cost, err := t.step(pl, ex, lr)
		if err != nil {
			return stats, errors.Wrapf(err, "Example %d failed\n", idx)
		}

		stats.Cost += cost
		if pl.agg != nil {
			for i, l := range pl.agg.SubLosses() {
				stats.SubCosts[i] += l
			}
		}

		if pl.supervised {
			if pl.agg != nil {
				outs = pl.agg.Segment(outs, 0)
			}

			if !bs.CorrectHighest(outs, ex.Targets) {
				wrong++
			}
		}
	}

	n := float64(data.Len())
	stats.Cost /= n
	for i := range stats.SubCosts {
		stats.SubCosts[i] /= n
	}

	if pl.supervised {
		stats.ClassError = float64(wrong) / n
		stats.HasClassError = true
	}

	return stats, nil
}

// step trains on a single Example, returning the outputs of the forward Graph and the loss
func (t *Trainer) step(pl *plan, ex *bs.Example, lr float64) ([]float64, float64, error) {
	bs.ClearGradients(pl.forward.Params())

	outs := pl.forward.Forward(ex.Inputs)

	loss, err := pl.crit.Forward(outs, ex)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "Criterion forward failed\n")
	}

	beta, err := pl.crit.Backward(outs, ex)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "Criterion backward failed\n")
	}

	pl.backward(ex, beta)

	if err := t.update(pl, lr); err != nil {
		return nil, 0, err
	}

	if pl.profile {
		if err := t.prof.Example(ex, beta); err != nil {
			return nil, 0, errors.Wrapf(err, "Profiling failed\n")
		}
	}

	return outs, loss, nil
}

// update adjusts the groups of each update in the plan. A group reachable from more than one
// update is adjusted, and decayed, only the first time.
func (t *Trainer) update(pl *plan, lr float64) error {
	adjusted := make(map[*bs.ParameterGroup]bool)

	for _, u := range pl.updates {
		rate := lr
		if u.fixed {
			rate = u.rate
		}

		if rate <= 0 {
			continue
		}

		for _, g := range bs.Unique(u.groups) {
			if adjusted[g] {
				continue
			}

			if err := g.Adjust(t.opt, rate, true); err != nil {
				return errors.Wrapf(err, "Updating %s failed\n", g)
			}

			adjusted[g] = true
		}
	}

	return nil
}

// record sends the Stats of an iteration to the Sink, along with measurements on the validation
// and test sets for supervised phases
func (t *Trainer) record(p Phase, pl *plan, stats Stats, sink results.Sink) error {
	if sink == nil {
		return nil
	}

	res := results.Result{
		Phase:         p.String(),
		Iteration:     stats.Iteration,
		Set:           "train",
		Cost:          stats.Cost,
		ClassError:    stats.ClassError,
		HasClassError: stats.HasClassError,
		SubCosts:      stats.SubCosts,
	}

	if err := sink.Record(res); err != nil {
		return errors.Wrapf(err, "Recording results failed\n")
	}

	if !pl.supervised {
		return nil
	}

	sets := []struct {
		name string
		data bs.DataSet
	}{{"valid", t.valid}, {"test", t.test}}

	for _, s := range sets {
		if s.data == nil || s.data.Len() == 0 {
			continue
		}

		cost, classErr, err := bs.Evaluate(t.m.Supervised(), t.sup, s.data, bs.CorrectHighest)
		if err != nil {
			return errors.Wrapf(err, "Evaluating %s set failed\n", s.name)
		}

		err = sink.Record(results.Result{
			Phase:         p.String(),
			Iteration:     stats.Iteration,
			Set:           s.name,
			Cost:          cost,
			ClassError:    classErr,
			HasClassError: true,
		})
		if err != nil {
			return errors.Wrapf(err, "Recording results failed\n")
		}
	}

	return nil
}

func (t *Trainer) writeProfile(iter int) error {
	reps := t.prof.Report()
	for _, r := range reps {
		t.log.Debug("gradient profile", slog.Int("layer", r.Layer), slog.Int("examples", r.Examples),
			slog.Float64("upper_sup", r.AngleMean[profiler.UpperSup]),
			slog.Float64("upper_unsup", r.AngleMean[profiler.UpperUnsup]),
			slog.Float64("sup_unsup", r.AngleMean[profiler.SupUnsup]))
	}

	if t.profOut == nil {
		return nil
	}

	if err := profiler.WriteReport(t.profOut, iter, reps); err != nil {
		return errors.Wrapf(err, "Writing gradient profile failed\n")
	}

	return nil
}
