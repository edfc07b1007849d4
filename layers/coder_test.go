package layers

import (
	"math"
	"math/rand"
	"testing"

	bs "github.com/rbhambriiit/deeptorch"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

var fdSettings = fd.Settings{Formula: fd.Central, Step: 1e-6}

const fdTolerance float64 = 1e-5

func randomize(r *rand.Rand, vals []float64) {
	for i := range vals {
		vals[i] = r.Float64() - 0.5
	}
}

// checkGradients compares the gradients computed by Backward with finite differences, for every
// parameter of the Layer and every input. The loss is sum(g[i] * out[i]), so its gradient with
// respect to the outputs is g.
func checkGradients(t *testing.T, l bs.Layer, r *rand.Rand) {
	t.Helper()

	x := make([]float64, l.NumInputs())
	g := make([]float64, l.NumOutputs())
	randomize(r, x)
	randomize(r, g)

	bs.ClearGradients(l.Params())
	l.Forward(x)
	beta := append([]float64(nil), l.Backward(x, g)...)

	var blocks []*bs.Block
	for _, pg := range bs.Unique(l.Params()) {
		blocks = append(blocks, pg.Blocks()...)
	}

	var params, grads []float64
	for _, b := range blocks {
		params = append(params, b.Values...)
		grads = append(grads, b.Grads...)
	}

	setParams := func(ps []float64) {
		for _, b := range blocks {
			ps = ps[copy(b.Values, ps):]
		}
	}

	gv := mat.NewVecDense(len(g), g)
	loss := func(ps []float64) float64 {
		setParams(ps)
		return mat.Dot(mat.NewVecDense(len(g), l.Forward(x)), gv)
	}

	want := fd.Gradient(nil, loss, params, &fdSettings)
	setParams(params)

	for i := range want {
		if math.Abs(grads[i]-want[i]) > fdTolerance {
			t.Errorf("%s: parameter %d: gradient %v, finite difference %v", l.Name(), i, grads[i], want[i])
		}
	}

	jac := mat.NewDense(l.NumOutputs(), l.NumInputs(), nil)
	fd.Jacobian(jac, func(y, in []float64) {
		copy(y, l.Forward(in))
	}, x, &fd.JacobianSettings{Formula: fdSettings.Formula, Step: fdSettings.Step})

	var wantBeta mat.VecDense
	wantBeta.MulVec(jac.T(), gv)

	for i := range beta {
		if w := wantBeta.AtVec(i); math.Abs(beta[i]-w) > fdTolerance {
			t.Errorf("%s: input %d: beta %v, finite difference %v", l.Name(), i, beta[i], w)
		}
	}
}

func newRandomCoder(t *testing.T, r *rand.Rand, name string, nIn, nOut int, f Nonlinearity) *Coder {
	t.Helper()

	c, err := NewCoder(name, nIn, nOut, f)
	if err != nil {
		t.Fatal(err)
	}

	randomize(r, c.Weights().Values)
	randomize(r, c.Biases().Values)
	return c
}

func TestCoderGradients(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	for _, f := range []Nonlinearity{Linear, Sigmoid, Tanh, LogSoftMax} {
		t.Run(string(f), func(t *testing.T) {
			checkGradients(t, newRandomCoder(t, r, "coder", 5, 4, f), r)
		})
	}
}

func TestTiedCoder(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	enc := newRandomCoder(t, r, "enc", 5, 3, Sigmoid)

	dec, err := NewTiedCoder("dec", enc, Sigmoid)
	if err != nil {
		t.Fatal(err)
	}
	randomize(r, dec.Biases().Values)

	if dec.NumInputs() != 3 || dec.NumOutputs() != 5 {
		t.Fatalf("tied decoder has size %d -> %d, expected 3 -> 5", dec.NumInputs(), dec.NumOutputs())
	} else if dec.Weights() != enc.Weights() {
		t.Errorf("tied decoder does not share its encoder's weights")
	} else if len(dec.Group().Blocks()) != 1 || dec.Group().Block(BiasesBlock) == nil {
		t.Errorf("tied decoder should own only its biases")
	}

	params := dec.Params()
	if len(params) != 2 || params[0] != dec.Group() || params[1] != enc.Group() {
		t.Errorf("tied decoder params should be its own group, then its encoder's")
	}

	// W^T x, for the decoder, is the same as reading the encoder's weights column-wise
	h := []float64{0.3, -0.2, 0.7}
	out := dec.Forward(h)
	for j := 0; j < 5; j++ {
		pre := dec.Biases().Values[j]
		for i := 0; i < 3; i++ {
			pre += enc.Weights().Values[i*5+j] * h[i]
		}

		want := 1 / (1 + math.Exp(-pre))
		if math.Abs(out[j]-want) > 1e-12 {
			t.Errorf("output %d: %v, expected %v", j, out[j], want)
		}
	}

	checkGradients(t, dec, r)
}

func TestNoisyCoder(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	enc := newRandomCoder(t, r, "enc", 4, 3, Tanh)

	x := []float64{0.5, -0.5, 0.25, 1}

	t.Run("no corruption", func(t *testing.T) {
		noisy, err := NewNoisyCoder("noisy", enc, NewNoise(4, 0, 0, r))
		if err != nil {
			t.Fatal(err)
		}

		want := append([]float64(nil), enc.Forward(x)...)
		got := noisy.Forward(x)
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("output %d: %v, expected %v", i, got[i], want[i])
			}
		}

		if noisy.Group() != nil || noisy.Params()[0] != enc.Group() {
			t.Errorf("noisy coder should share its encoder's group and own none")
		}

		checkGradients(t, noisy, r)
	})

	t.Run("full corruption", func(t *testing.T) {
		noisy, err := NewNoisyCoder("noisy", enc, NewNoise(4, 1, 0.5, r))
		if err != nil {
			t.Fatal(err)
		}

		want := append([]float64(nil), enc.Forward([]float64{0.5, 0.5, 0.5, 0.5})...)
		got := noisy.Forward(x)
		for i := range want {
			if math.Abs(got[i]-want[i]) > 1e-12 {
				t.Errorf("output %d: %v, expected %v", i, got[i], want[i])
			}
		}

		bs.ClearGradients(noisy.Params())
		for i, v := range noisy.Backward(x, []float64{1, 1, 1}) {
			if v != 0 {
				t.Errorf("beta %d of a corrupted input is %v, expected 0", i, v)
			}
		}

		var sum float64
		for _, v := range enc.Weights().Grads {
			sum += math.Abs(v)
		}
		if sum == 0 {
			t.Errorf("noisy coder did not accumulate gradients into its encoder")
		}
	})

	t.Run("size mismatch", func(t *testing.T) {
		if _, err := NewNoisyCoder("noisy", enc, NewNoise(5, 0.5, 0, r)); err == nil {
			t.Errorf("expected error for noise of the wrong size")
		}
	})
}

func TestPartialCoder(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	c := newRandomCoder(t, r, "c", 3, 2, Sigmoid)
	c.SetPartialBackprop(true)

	x := []float64{1, 2, 3}
	c.Forward(x)
	bs.ClearGradients(c.Params())

	for _, v := range c.Backward(x, []float64{1, 1}) {
		if v != 0 {
			t.Fatalf("partial coder returned non-zero beta")
		}
	}

	var sum float64
	for _, v := range c.Weights().Grads {
		sum += math.Abs(v)
	}
	if sum == 0 {
		t.Errorf("partial coder did not compute its own gradients")
	}
}

func TestIdentity(t *testing.T) {
	id := NewIdentity("id", 3)

	x := []float64{1, 2, 3}
	out := id.Forward(x)
	beta := id.Backward(x, []float64{4, 5, 6})

	for i := range x {
		if out[i] != x[i] {
			t.Errorf("output %d: %v, expected %v", i, out[i], x[i])
		}
		if beta[i] != float64(4+i) {
			t.Errorf("beta %d: %v, expected %v", i, beta[i], 4+i)
		}
	}

	if len(id.Params()) != 0 {
		t.Errorf("Identity should have no parameters")
	}
}
