package trainer

import (
	"bytes"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"

	bs "github.com/rbhambriiit/deeptorch"
	"github.com/rbhambriiit/deeptorch/datasets"
	"github.com/rbhambriiit/deeptorch/hyperparams"
	"github.com/rbhambriiit/deeptorch/layers"
	"github.com/rbhambriiit/deeptorch/results"
	"github.com/rbhambriiit/deeptorch/sae"
)

func modelConfig(tied bool, corrupt float64) sae.Config {
	return sae.Config{
		Inputs:       4,
		Hidden:       []int{3, 2},
		Outputs:      2,
		Nonlinearity: layers.Sigmoid,
		TiedWeights:  tied,
		CorruptProb:  corrupt,
		Seed:         1,
	}
}

func trainConfig() Config {
	cfg := DefaultConfig()
	cfg.ReconsCost = "mse"
	cfg.EndAccuracy = 0
	return cfg
}

func testData() bs.DataSet {
	inputs := [][]float64{
		{0.9, 0.1, 0.8, 0.2},
		{0.1, 0.9, 0.2, 0.7},
		{0.8, 0.3, 0.9, 0.1},
		{0.2, 0.8, 0.1, 0.9},
		{0.7, 0.2, 0.6, 0.3},
		{0.3, 0.6, 0.2, 0.8},
	}

	var exs []*bs.Example
	for i, in := range inputs {
		exs = append(exs, &bs.Example{Inputs: in, Targets: bs.OneHot(i%2, 2)})
	}

	return datasets.NewMemory(exs)
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTrainer(t *testing.T, mc sae.Config, cfg Config, opts ...Option) *Trainer {
	t.Helper()

	m, err := sae.New(mc)
	if err != nil {
		t.Fatal(err)
	}

	tr, err := New(m, cfg, append([]Option{quiet()}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}

	return tr
}

// returns a copy of every value in the group
func snapshot(g *bs.ParameterGroup) []float64 {
	var vs []float64
	for _, b := range g.Blocks() {
		vs = append(vs, b.Values...)
	}

	return vs
}

func changed(before []float64, g *bs.ParameterGroup) bool {
	for i, v := range snapshot(g) {
		if v != before[i] {
			return true
		}
	}

	return false
}

// With tied weights, an encoder's weights are reached both through the encoder and through its
// decoder. Decay must still only be applied once per step.
func TestSingleDecay(t *testing.T) {
	const lambda, lr = 0.01, 0.5

	for _, tied := range []bool{false, true} {
		cfg := trainConfig()
		cfg.L2Decay = lambda

		tr := newTrainer(t, modelConfig(tied, 0), cfg)
		m := tr.Model()

		bs.ClearGradients(m.Params())
		before := append([]float64(nil), m.Encoder(0).Weights().Values...)
		biases := append([]float64(nil), m.Encoder(0).Biases().Values...)

		pl := &plan{updates: []update{
			{groups: m.Joint().Params()},
			{groups: m.Autoencoder(0).Params()},
			{groups: m.Params()},
		}}

		if err := tr.update(pl, lr); err != nil {
			t.Fatal(err)
		}

		for i, w := range m.Encoder(0).Weights().Values {
			want := before[i] * (1 - 2*lr*lambda)
			if math.Abs(w-want) > 1e-12 {
				t.Fatalf("tied = %v: weight %d is %v, expected %v", tied, i, w, want)
			}
		}

		for i, b := range m.Encoder(0).Biases().Values {
			if b != biases[i] {
				t.Fatalf("tied = %v: bias %d changed without bias decay", tied, i)
			}
		}
	}
}

func TestVarianceWeight(t *testing.T) {
	if w, ok := VarianceWeight(4, 1); !ok || w != 2 {
		t.Errorf("VarianceWeight(4, 1) = %v, %v; expected 2, true", w, ok)
	}
	if w, ok := VarianceWeight(1, 4); !ok || w != 0.5 {
		t.Errorf("VarianceWeight(1, 4) = %v, %v; expected 0.5, true", w, ok)
	}
	if _, ok := VarianceWeight(1, 0); ok {
		t.Errorf("VarianceWeight with zero layer variance should not be ok")
	}
}

func TestGradStats(t *testing.T) {
	s := NewGradStats(3)
	if i, _ := s.MaxVariance(); i != 0 {
		// no samples: every variance is zero, so the first is the largest
		t.Errorf("max variance index %d with no samples, expected 0", i)
	}

	s.Add([]float64{1, 5, 2})
	s.Add([]float64{3, 5, -2})

	if s.N() != 2 {
		t.Errorf("N() = %d, expected 2", s.N())
	}

	want := []float64{1, 0, 4}
	for i, v := range s.Variances() {
		if math.Abs(v-want[i]) > 1e-12 {
			t.Errorf("variance %d: %v, expected %v", i, v, want[i])
		}
	}

	if i, v := s.MaxVariance(); i != 2 || math.Abs(v-4) > 1e-12 {
		t.Errorf("MaxVariance() = %d, %v; expected 2, 4", i, v)
	}

	if i, _ := NewGradStats(0).MaxVariance(); i != -1 {
		t.Errorf("MaxVariance of empty stats gave index %d, expected -1", i)
	}
}

// Each phase must only change the parameters it trains
func TestPhaseIsolation(t *testing.T) {
	type which struct {
		name  string
		group func(m *sae.Model) *bs.ParameterGroup
	}

	all := []which{
		{"encoder 0", func(m *sae.Model) *bs.ParameterGroup { return m.Encoder(0).Group() }},
		{"encoder 1", func(m *sae.Model) *bs.ParameterGroup { return m.Encoder(1).Group() }},
		{"decoder 0", func(m *sae.Model) *bs.ParameterGroup { return m.Decoder(0).Group() }},
		{"decoder 1", func(m *sae.Model) *bs.ParameterGroup { return m.Decoder(1).Group() }},
		{"outputer", func(m *sae.Model) *bs.ParameterGroup { return m.Outputer().Group() }},
	}

	tests := []struct {
		phase   Phase
		changes map[string]bool
	}{
		{LayerwiseUnsup{0}, map[string]bool{"encoder 0": true, "decoder 0": true}},
		{LayerwiseUnsup{1}, map[string]bool{"encoder 1": true, "decoder 1": true}},
		{JointUnsup{}, map[string]bool{"encoder 0": true, "encoder 1": true, "decoder 0": true, "decoder 1": true}},
		{TopK{1}, map[string]bool{"outputer": true}},
		{TopK{2}, map[string]bool{"encoder 1": true, "outputer": true}},
		{FineTune{}, map[string]bool{"encoder 0": true, "encoder 1": true, "outputer": true}},
		{FineTune{[]float64{0, 0.1, 0.1}}, map[string]bool{"encoder 1": true, "outputer": true}},
		{SelectiveUnsup{Layers: []bool{false, true}, PartialBackprop: true}, map[string]bool{"encoder 1": true, "decoder 1": true}},
	}

	for _, tt := range tests {
		t.Run(tt.phase.String(), func(t *testing.T) {
			tr := newTrainer(t, modelConfig(false, 0), trainConfig())
			m := tr.Model()

			before := make(map[string][]float64)
			for _, w := range all {
				before[w.name] = snapshot(w.group(m))
			}

			_, err := tr.Run(tt.phase, testData(), RunOptions{Iterations: 1, LearningRate: 0.1})
			if err != nil {
				t.Fatal(err)
			}

			for _, w := range all {
				if c := changed(before[w.name], w.group(m)); c != tt.changes[w.name] {
					t.Errorf("%s changed: %v, expected %v", w.name, c, tt.changes[w.name])
				}
			}
		})
	}
}

// Phases run in sequence on one model: each layerwise phase only trains its own layer, and
// fine-tuning then trains every encoder
func TestPhaseSequence(t *testing.T) {
	tr := newTrainer(t, modelConfig(false, 0), trainConfig())
	m := tr.Model()

	groups := map[string]*bs.ParameterGroup{
		"encoder 0": m.Encoder(0).Group(),
		"encoder 1": m.Encoder(1).Group(),
		"decoder 0": m.Decoder(0).Group(),
		"decoder 1": m.Decoder(1).Group(),
		"outputer":  m.Outputer().Group(),
	}

	steps := []struct {
		phase   Phase
		changes map[string]bool
	}{
		{LayerwiseUnsup{0}, map[string]bool{"encoder 0": true, "decoder 0": true}},
		{LayerwiseUnsup{1}, map[string]bool{"encoder 1": true, "decoder 1": true}},
		{FineTune{}, map[string]bool{"encoder 0": true, "encoder 1": true, "outputer": true}},
	}

	for _, st := range steps {
		before := make(map[string][]float64)
		for name, g := range groups {
			before[name] = snapshot(g)
		}

		if _, err := tr.Run(st.phase, testData(), RunOptions{Iterations: 2, LearningRate: 0.1}); err != nil {
			t.Fatalf("%s: %v", st.phase, err)
		}

		for name, g := range groups {
			if c := changed(before[name], g); c != st.changes[name] {
				t.Errorf("%s: %s changed: %v, expected %v", st.phase, name, c, st.changes[name])
			}
		}
	}
}

func TestPartialFlagsRestored(t *testing.T) {
	tests := []struct {
		phase Phase
		check func(m *sae.Model) bool
	}{
		{SelectiveUnsup{Layers: []bool{true, true}, PartialBackprop: true}, func(m *sae.Model) bool {
			return m.Encoder(0).PartialBackprop() && m.Encoder(1).PartialBackprop()
		}},
		{JointUnsup{TrainOutputer: true}, func(m *sae.Model) bool {
			return m.Outputer().PartialBackprop()
		}},
		{TopK{1}, func(m *sae.Model) bool {
			return m.Outputer().PartialBackprop()
		}},
		{TopK{2}, func(m *sae.Model) bool {
			return m.Encoder(1).PartialBackprop() && !m.Encoder(0).PartialBackprop()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.phase.String(), func(t *testing.T) {
			m, err := sae.New(modelConfig(false, 0))
			if err != nil {
				t.Fatal(err)
			}

			var during bool
			tr, err := New(m, trainConfig(), quiet(), WithHooks(Hooks{
				BeforeIteration: func(p Phase, iter int) { during = tt.check(m) },
			}))
			if err != nil {
				t.Fatal(err)
			}

			if _, err := tr.Run(tt.phase, testData(), RunOptions{Iterations: 1, LearningRate: 0.1}); err != nil {
				t.Fatal(err)
			}

			if !during {
				t.Errorf("partial backprop flags not set during the phase")
			}

			ls := []bs.Layer{m.Encoder(0), m.Encoder(1), m.Outputer()}
			for _, l := range ls {
				if l.PartialBackprop() {
					t.Errorf("%s still has partial backprop after the phase", l.Name())
				}
			}
		})
	}
}

func TestSelectiveNothingSelected(t *testing.T) {
	tr := newTrainer(t, modelConfig(false, 0), trainConfig())
	before := snapshot(tr.Model().Encoder(0).Group())

	_, err := tr.Run(SelectiveUnsup{Layers: []bool{false, false}}, testData(), RunOptions{Iterations: 2, LearningRate: 0.1})
	if err != nil {
		t.Fatalf("expected the phase to be skipped, got %v", err)
	} else if changed(before, tr.Model().Encoder(0).Group()) {
		t.Errorf("skipped phase changed the model")
	}
}

func TestNoisyPhases(t *testing.T) {
	for _, tied := range []bool{false, true} {
		tr := newTrainer(t, modelConfig(tied, 0.3), trainConfig())

		phases := []Phase{
			LayerwiseUnsup{0},
			LayerwiseUnsup{1},
			SelectiveUnsup{Layers: []bool{true, true}, PartialBackprop: true},
			JointUnsup{},
			JointUnsup{TrainOutputer: true},
			JointSupUnsup{0.5},
			TopK{3},
			FineTune{},
		}

		for _, p := range phases {
			s, err := tr.Run(p, testData(), RunOptions{Iterations: 2, LearningRate: 0.05})
			if err != nil {
				t.Fatalf("tied = %v, phase %s: %v", tied, p, err)
			} else if math.IsNaN(s.Cost) || math.IsInf(s.Cost, 0) {
				t.Fatalf("tied = %v, phase %s: cost %v", tied, p, s.Cost)
			}
		}
	}
}

func TestJointStats(t *testing.T) {
	tr := newTrainer(t, modelConfig(false, 0), trainConfig())

	s, err := tr.Run(JointSupUnsup{0.5}, testData(), RunOptions{Iterations: 1, LearningRate: 0.1})
	if err != nil {
		t.Fatal(err)
	}

	if len(s.SubCosts) != 3 {
		t.Fatalf("got %d sub-costs, expected 3", len(s.SubCosts))
	}

	want := s.SubCosts[0] + 0.5*(s.SubCosts[1]+s.SubCosts[2])
	if math.Abs(s.Cost-want) > 1e-9 {
		t.Errorf("cost %v is not the weighted sum of sub-costs (%v)", s.Cost, want)
	}

	if !s.HasClassError || s.ClassError < 0 || s.ClassError > 1 {
		t.Errorf("invalid class error %v (set: %v)", s.ClassError, s.HasClassError)
	}

	if w := tr.Weights(); w[0] != 1 || w[1] != 0.5 || w[2] != 0.5 {
		t.Errorf("weights %v, expected [1 0.5 0.5]", w)
	}

	// JointUnsup resets the reconstruction weights
	if _, err := tr.Run(JointUnsup{}, testData(), RunOptions{Iterations: 1, LearningRate: 0.1}); err != nil {
		t.Fatal(err)
	} else if w := tr.Weights(); w[1] != 1 || w[2] != 1 {
		t.Errorf("weights %v after JointUnsup, expected [1 1 1]", w)
	}
}

func TestReweight(t *testing.T) {
	cfg := trainConfig()
	cfg.EvalCriterionWeights = true
	cfg.HessianSamples = 4

	tr := newTrainer(t, modelConfig(false, 0), cfg)

	if _, err := tr.Run(JointSupUnsup{0.5}, testData(), RunOptions{Iterations: 2, LearningRate: 0.1}); err != nil {
		t.Fatal(err)
	}

	w := tr.Weights()
	if w[0] != 1 {
		t.Errorf("supervised weight %v, expected 1", w[0])
	}

	for i, v := range w[1:] {
		if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			t.Errorf("weight of layer %d is %v", i, v)
		}
	}
}

// largest variance of any parameter's gradient, over the first n examples
func maxGradVariance(t *testing.T, g *bs.Graph, crit bs.Criterion, data bs.DataSet, n int) float64 {
	t.Helper()

	groups := bs.Unique(g.Params())
	defer bs.ClearGradients(groups)

	stats := NewGradStats(bs.CountParams(groups))
	for k := 0; k < n; k++ {
		ex := data.Example(k)

		bs.ClearGradients(groups)
		beta, err := crit.Backward(g.Forward(ex.Inputs), ex)
		if err != nil {
			t.Fatal(err)
		}

		g.Backward(ex.Inputs, beta)

		var flat []float64
		for _, pg := range groups {
			for _, b := range pg.Blocks() {
				flat = append(flat, b.Grads...)
			}
		}

		stats.Add(flat)
	}

	_, v := stats.MaxVariance()
	return v
}

func TestReweightFormula(t *testing.T) {
	cfg := trainConfig()
	cfg.HessianSamples = 4

	t.Run("variance ratio", func(t *testing.T) {
		tr := newTrainer(t, modelConfig(false, 0), cfg)
		m, data := tr.Model(), testData()

		ref := maxGradVariance(t, m.Supervised(), tr.sup, data, cfg.HessianSamples)
		if ref == 0 {
			t.Fatalf("supervised gradient has no variance")
		}

		want := []float64{1}
		for i := 0; i < m.NumLayers(); i++ {
			v := maxGradVariance(t, m.Chained(i), tr.unsup[i], data, cfg.HessianSamples)
			want = append(want, math.Sqrt(ref/v))
		}

		if err := tr.reweight(data); err != nil {
			t.Fatal(err)
		}

		for i, w := range tr.Weights() {
			if math.Abs(w-want[i]) > 1e-9*want[i] {
				t.Errorf("weight %d: %v, expected %v", i, w, want[i])
			}
		}
	})

	// identical examples give identical gradients, so nothing has any variance
	t.Run("zero variance", func(t *testing.T) {
		tr := newTrainer(t, modelConfig(false, 0), cfg)

		ex := testData().Example(0)
		data := datasets.NewMemory([]*bs.Example{ex, ex})

		tr.weights = []float64{1, 0.3, 0.7}
		if err := tr.reweight(data); err != nil {
			t.Fatal(err)
		}

		if w := tr.Weights(); w[0] != 1 || w[1] != 0.3 || w[2] != 0.7 {
			t.Errorf("weights %v, expected [1 0.3 0.7] to be kept", w)
		}
	})
}

func TestHooksAndEmptyRuns(t *testing.T) {
	var phases, iters, ends int
	var last Stats

	hooks := Hooks{
		BeforePhase:     func(p Phase) { phases++ },
		BeforeIteration: func(p Phase, iter int) { iters++ },
		AfterPhase: func(p Phase, s Stats) {
			ends++
			last = s
		},
	}

	tr := newTrainer(t, modelConfig(false, 0), trainConfig(), WithHooks(hooks))

	if _, err := tr.Run(FineTune{}, testData(), RunOptions{Iterations: 0, LearningRate: 0.1}); err != nil {
		t.Fatal(err)
	} else if _, err := tr.Run(FineTune{}, datasets.NewMemory(nil), RunOptions{Iterations: 3, LearningRate: 0.1}); err != nil {
		t.Fatal(err)
	} else if phases != 0 {
		t.Fatalf("empty runs called hooks")
	}

	if _, err := tr.Run(FineTune{}, testData(), RunOptions{Iterations: 3, LearningRate: 0.1}); err != nil {
		t.Fatal(err)
	}

	if phases != 1 || iters != 3 || ends != 1 {
		t.Errorf("hooks called %d, %d, %d times; expected 1, 3, 1", phases, iters, ends)
	} else if last.Iteration != 2 {
		t.Errorf("last iteration %d, expected 2", last.Iteration)
	}
}

func TestEndAccuracy(t *testing.T) {
	cfg := trainConfig()
	cfg.EndAccuracy = math.Inf(1)

	var iters int
	tr := newTrainer(t, modelConfig(false, 0), cfg, WithHooks(Hooks{
		AfterIteration: func(p Phase, s Stats) { iters++ },
	}))

	// the first iteration is compared against an infinite previous cost, so only the second can
	// converge
	if _, err := tr.Run(FineTune{}, testData(), RunOptions{Iterations: 10, LearningRate: 0.1}); err != nil {
		t.Fatal(err)
	} else if iters != 2 {
		t.Errorf("ran %d iterations, expected 2", iters)
	}
}

func TestProfiling(t *testing.T) {
	cfg := trainConfig()
	cfg.ProfileGradients = true

	var buf bytes.Buffer
	tr := newTrainer(t, modelConfig(false, 0), cfg, WithProfileOutput(&buf))

	if _, err := tr.Run(JointSupUnsup{1}, testData(), RunOptions{Iterations: 2, LearningRate: 0.1}); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2*2 {
		t.Fatalf("got %d profile lines, expected 4:\n%s", len(lines), buf.String())
	}

	for _, l := range lines {
		if f := strings.Fields(l); len(f) != 16 || f[2] != "6" {
			t.Errorf("unexpected profile line %q", l)
		}
	}

	// other phases are not profiled
	buf.Reset()
	if _, err := tr.Run(FineTune{}, testData(), RunOptions{Iterations: 1, LearningRate: 0.1}); err != nil {
		t.Fatal(err)
	} else if buf.Len() != 0 {
		t.Errorf("fine-tuning wrote a gradient profile")
	}
}

// Profiling reads gradients but must not change how the model is trained
func TestProfilingLeavesTraining(t *testing.T) {
	train := func(profile bool) []float64 {
		cfg := trainConfig()
		cfg.ProfileGradients = profile

		tr := newTrainer(t, modelConfig(false, 0), cfg, WithProfileOutput(io.Discard))
		if _, err := tr.Run(JointSupUnsup{0.5}, testData(), RunOptions{Iterations: 3, LearningRate: 0.1}); err != nil {
			t.Fatal(err)
		}

		var vs []float64
		for _, g := range tr.Model().Params() {
			vs = append(vs, snapshot(g)...)
		}

		return vs
	}

	with, without := train(true), train(false)
	if len(with) != len(without) {
		t.Fatalf("%d parameters with profiling, %d without", len(with), len(without))
	}

	for i := range with {
		if with[i] != without[i] {
			t.Fatalf("parameter %d: %v with profiling, %v without", i, with[i], without[i])
		}
	}
}

func TestRecord(t *testing.T) {
	var buf bytes.Buffer
	tr := newTrainer(t, modelConfig(false, 0), trainConfig(), WithEvaluation(testData(), nil))

	sink := results.NewText(&buf)
	if _, err := tr.Run(FineTune{}, testData(), RunOptions{Iterations: 2, LearningRate: 0.1, Sink: sink}); err != nil {
		t.Fatal(err)
	} else if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d result lines, expected 4:\n%s", len(lines), buf.String())
	}

	sets := []string{"train", "valid", "train", "valid"}
	for i, l := range lines {
		f := strings.Split(l, "\t")
		if f[0] != "fine_tune" || f[2] != sets[i] {
			t.Errorf("line %d: %q, expected phase fine_tune and set %s", i, l, sets[i])
		}
	}
}

func TestSchedule(t *testing.T) {
	cfg := trainConfig()
	cfg.LayerwiseIters = 2
	cfg.SelectiveIters = 1
	cfg.SelectiveLayers = []bool{true, false}
	cfg.UnsupIters = 3
	cfg.SupUnsupIters = 4
	cfg.UnsupWeight = 0.25
	cfg.TopKIters = 5
	cfg.TopK = 2
	cfg.FineTuneIters = 6
	cfg.UnsupLearningRate = 0.1
	cfg.SupLearningRate = 0.2

	stages := Schedule(cfg, 2)

	want := []struct {
		name  string
		iters int
		lr    float64
	}{
		{"layerwise_0", 2, 0.1},
		{"layerwise_1", 2, 0.1},
		{"selective", 1, 0.1},
		{"unsup", 3, 0.1},
		{"sup_unsup", 4, 0.2},
		{"top_2", 5, 0.2},
		{"fine_tune", 6, 0.2},
	}

	if len(stages) != len(want) {
		t.Fatalf("got %d stages, expected %d", len(stages), len(want))
	}

	for i, s := range stages {
		if s.Phase.String() != want[i].name || s.Iterations != want[i].iters || s.LearningRate != want[i].lr {
			t.Errorf("stage %d: %s for %d at %v, expected %s for %d at %v", i, s.Phase, s.Iterations,
				s.LearningRate, want[i].name, want[i].iters, want[i].lr)
		}

		if s.Phase.Pretraining() != (i < 4) {
			t.Errorf("stage %d (%s): Pretraining() = %v", i, s.Phase, s.Phase.Pretraining())
		}
	}

	if p := stages[4].Phase.(JointSupUnsup); p.UnsupWeight != 0.25 {
		t.Errorf("unsup weight %v, expected 0.25", p.UnsupWeight)
	}

	if len(Schedule(DefaultConfig(), 2)) != 0 {
		t.Errorf("default config should have no stages")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		field  string
		modify func(c *Config, m *sae.Config)
	}{
		{"layerwise_iters", func(c *Config, m *sae.Config) { c.LayerwiseIters = -1 }},
		{"hessian_samples", func(c *Config, m *sae.Config) { c.HessianSamples = -1 }},
		{"recons_cost", func(c *Config, m *sae.Config) { c.ReconsCost = "hinge" }},
		{"recons_cost", func(c *Config, m *sae.Config) {
			c.ReconsCost = "xentropy"
			m.Nonlinearity = layers.Tanh
		}},
		{"learning_rate", func(c *Config, m *sae.Config) { c.SupLearningRate = -0.1 }},
		{"learning_rate", func(c *Config, m *sae.Config) { c.LearningRateDecay = -1 }},
		{"unsup_weight", func(c *Config, m *sae.Config) { c.UnsupWeight = -1 }},
		{"fine_tune_rates", func(c *Config, m *sae.Config) {
			c.FineTuneIters = 1
			c.FineTuneRates = []float64{0.1, 0.1}
		}},
		{"fine_tune_rates", func(c *Config, m *sae.Config) {
			c.FineTuneIters = 1
			m.Hidden = []int{3, 3, 3, 3, 3}
			c.FineTuneRates = make([]float64, 6)
		}},
		{"selective_layers", func(c *Config, m *sae.Config) {
			c.SelectiveIters = 1
			c.SelectiveLayers = []bool{true}
		}},
		{"top_k", func(c *Config, m *sae.Config) {
			c.TopKIters = 1
			c.TopK = 4
		}},
		{"top_k", func(c *Config, m *sae.Config) {
			c.TopKIters = 1
			c.TopK = 0
		}},
		{"init_from_distributions", func(c *Config, m *sae.Config) {
			c.InitFromDistributions = true
			c.UnsupIters = 1
		}},
		{"profile_gradients", func(c *Config, m *sae.Config) {
			c.ProfileGradients = true
			m.CorruptProb = 0.1
		}},
		{"hessian_samples", func(c *Config, m *sae.Config) {
			c.EvalCriterionWeights = true
			c.HessianSamples = 0
		}},
		{"corrupt_prob", func(c *Config, m *sae.Config) { m.CorruptProb = 1 }},
		{"optimizer", func(c *Config, m *sae.Config) { c.Optimizer = "adam" }},
		{"bias_decay_type", func(c *Config, m *sae.Config) {
			c.BiasDecay = 0.1
			c.BiasDecayType = "l3"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			c, m := trainConfig(), modelConfig(false, 0)
			tt.modify(&c, &m)

			err := c.Validate(m)
			if ce, ok := err.(*bs.ConfigError); !ok {
				t.Errorf("expected *ConfigError, got %v", err)
			} else if ce.Field != tt.field {
				t.Errorf("error for field %q, expected %q: %v", ce.Field, tt.field, err)
			}
		})
	}

	valid := trainConfig()
	valid.LayerwiseIters = 1
	valid.SelectiveIters = 1
	valid.SelectiveLayers = []bool{true, false}
	valid.TopKIters = 1
	valid.TopK = 3
	valid.FineTuneRates = []float64{0.1, 0.1, 0.1}

	if err := valid.Validate(modelConfig(true, 0.2)); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	// per-layer rates are only checked when there is fine-tuning to use them
	unused := trainConfig()
	unused.FineTuneRates = make([]float64, 6)
	deep := modelConfig(false, 0)
	deep.Hidden = []int{3, 3, 3, 3, 3}

	if err := unused.Validate(deep); err != nil {
		t.Errorf("unused fine-tuning rates rejected: %v", err)
	}

	if _, err := New(nil, trainConfig()); err == nil {
		t.Errorf("expected error for nil model")
	}
}

func TestRate(t *testing.T) {
	var rates []float64
	tr := newTrainer(t, modelConfig(false, 0), trainConfig(), WithHooks(Hooks{
		AfterIteration: func(p Phase, s Stats) { rates = append(rates, s.LearningRate) },
	}))

	before := snapshot(tr.Model().Outputer().Group())

	// the rate drops to zero after the first iteration, so only that one changes the model
	opts := RunOptions{Iterations: 3, LearningRate: 1, Rate: hyperparams.Step(0.1).Add(1, 0)}
	if _, err := tr.Run(TopK{1}, testData(), opts); err != nil {
		t.Fatal(err)
	}

	if len(rates) != 3 || rates[0] != 0.1 || rates[1] != 0 || rates[2] != 0 {
		t.Errorf("learning rates %v, expected [0.1 0 0]", rates)
	}

	after := snapshot(tr.Model().Outputer().Group())
	if !changed(before, tr.Model().Outputer().Group()) {
		t.Fatalf("outputer did not change")
	}

	if _, err := tr.Run(TopK{1}, testData(), opts); err != nil {
		t.Fatal(err)
	}

	// a fresh phase starts the schedule over
	if !changed(after, tr.Model().Outputer().Group()) {
		t.Errorf("second phase did not change the outputer")
	}

	cfg := trainConfig()
	cfg.LearningRateDecay = 1
	rates = nil

	tr = newTrainer(t, modelConfig(false, 0), cfg, WithHooks(Hooks{
		AfterIteration: func(p Phase, s Stats) { rates = append(rates, s.LearningRate) },
	}))

	if _, err := tr.Run(FineTune{}, testData(), RunOptions{Iterations: 2, LearningRate: 0.2}); err != nil {
		t.Fatal(err)
	} else if len(rates) != 2 || rates[0] != 0.2 || rates[1] != 0.1 {
		t.Errorf("decayed learning rates %v, expected [0.2 0.1]", rates)
	}
}

func TestBiasDecay(t *testing.T) {
	cfg := trainConfig()
	cfg.BiasDecay = 0.1
	cfg.BiasDecayType = "l1"

	tr := newTrainer(t, modelConfig(false, 0), cfg)
	m := tr.Model()

	bs.ClearGradients(m.Params())
	before := append([]float64(nil), m.Encoder(1).Biases().Values...)

	if err := tr.update(&plan{updates: []update{{groups: m.Params()}}}, 1); err != nil {
		t.Fatal(err)
	}

	for i, b := range m.Encoder(1).Biases().Values {
		want := before[i] - 0.1*math.Copysign(1, before[i])
		if math.Abs(b-want) > 1e-12 {
			t.Errorf("bias %d: %v, expected %v", i, b, want)
		}
	}

	// the outputer's biases have no decay
	outBefore := append([]float64(nil), m.Outputer().Biases().Values...)
	if err := tr.update(&plan{updates: []update{{groups: m.Params()}}}, 1); err != nil {
		t.Fatal(err)
	}

	for i, b := range m.Outputer().Biases().Values {
		if b != outBefore[i] {
			t.Errorf("outputer bias %d changed", i)
		}
	}
}
