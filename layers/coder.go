package layers

import (
	"github.com/pkg/errors"
	bs "github.com/rbhambriiit/deeptorch"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Names of the Blocks in a Coder's ParameterGroup
const (
	WeightsBlock = "weights"
	BiasesBlock  = "biases"
)

// Coder is a fully-connected layer followed by a Nonlinearity: f(W·x + b). Encoders, decoders and
// the output classifier of a stacked autoencoder are all Coders.
//
// A Coder either owns its weights, or borrows them from another Coder:
//   - a tied Coder (from NewTiedCoder) uses the transpose of its encoder's weights, and owns only
//     its biases
//   - a noisy Coder (from NewNoisyCoder) corrupts its input and then uses its encoder's weights
//     and biases as-is
//
// In both cases the gradients are accumulated into the encoder's Blocks.
type Coder struct {
	name      string
	nIn, nOut int
	f         Nonlinearity

	// the group owned by this Coder; nil for noisy Coders
	own    *bs.ParameterGroup
	params []*bs.ParameterGroup

	// w is nOut x nIn, and is a view of the weights Block (transposed if tied). dw is the
	// gradient storage in the layout of the owning Coder.
	w    mat.Matrix
	wd   *mat.Dense
	dw   *mat.Dense
	tied bool

	b, db []float64

	noise *Noise

	pre, outputs, delta, beta []float64
	preVec, deltaVec, betaVec *mat.VecDense

	partial bool
}

// NewCoder returns a Coder that owns its weights, with the given size and Nonlinearity. The
// weights are all zero; they are set through Weights and Biases.
func NewCoder(name string, nIn, nOut int, f Nonlinearity) (*Coder, error) {
	if nIn < 1 || nOut < 1 {
		return nil, errors.Errorf("Coder %q must have positive size (%d -> %d)", name, nIn, nOut)
	} else if !f.Valid() {
		return nil, errors.Errorf("Coder %q has unknown nonlinearity %q", name, f)
	}

	c := newCoder(name, nIn, nOut, f)

	c.own = bs.NewParameterGroup(name)
	w := c.own.AddBlock(WeightsBlock, nOut*nIn)
	bias := c.own.AddBlock(BiasesBlock, nOut)

	c.wd = mat.NewDense(nOut, nIn, w.Values)
	c.w = c.wd
	c.dw = mat.NewDense(nOut, nIn, w.Grads)
	c.b, c.db = bias.Values, bias.Grads

	c.params = []*bs.ParameterGroup{c.own}
	return c, nil
}

// NewTiedCoder returns the decoder of 'enc', using the transpose of its weights. The decoder owns
// only its biases.
func NewTiedCoder(name string, enc *Coder, f Nonlinearity) (*Coder, error) {
	if enc == nil {
		return nil, bs.NilArg("Encoder")
	} else if enc.own == nil {
		return nil, errors.Errorf("Cannot tie %q to %q, which does not own its weights", name, enc.name)
	} else if !f.Valid() {
		return nil, errors.Errorf("Coder %q has unknown nonlinearity %q", name, f)
	}

	c := newCoder(name, enc.nOut, enc.nIn, f)

	c.own = bs.NewParameterGroup(name)
	bias := c.own.AddBlock(BiasesBlock, c.nOut)

	c.wd = enc.wd
	c.w = enc.wd.T()
	c.dw = enc.dw
	c.tied = true
	c.b, c.db = bias.Values, bias.Grads

	c.params = []*bs.ParameterGroup{c.own, enc.own}
	return c, nil
}

// NewNoisyCoder returns a Coder that corrupts its input with 'noise' and then applies the same
// transformation as 'enc', sharing all of its parameters.
func NewNoisyCoder(name string, enc *Coder, noise *Noise) (*Coder, error) {
	if enc == nil {
		return nil, bs.NilArg("Encoder")
	} else if noise == nil {
		return nil, bs.NilArg("Noise")
	} else if noise.Size() != enc.nIn {
		return nil, bs.SizeMismatchError{What: "Noise for " + name, Got: noise.Size(), Want: enc.nIn}
	}

	c := newCoder(name, enc.nIn, enc.nOut, enc.f)
	c.wd, c.w, c.dw, c.tied = enc.wd, enc.w, enc.dw, enc.tied
	c.b, c.db = enc.b, enc.db
	c.noise = noise

	c.params = enc.params
	return c, nil
}

func newCoder(name string, nIn, nOut int, f Nonlinearity) *Coder {
	c := &Coder{
		name:    name,
		nIn:     nIn,
		nOut:    nOut,
		f:       f,
		pre:     make([]float64, nOut),
		outputs: make([]float64, nOut),
		delta:   make([]float64, nOut),
		beta:    make([]float64, nIn),
	}

	c.preVec = mat.NewVecDense(nOut, c.pre)
	c.deltaVec = mat.NewVecDense(nOut, c.delta)
	c.betaVec = mat.NewVecDense(nIn, c.beta)
	return c
}

func (c *Coder) Name() string {
	return c.name
}

func (c *Coder) NumInputs() int {
	return c.nIn
}

func (c *Coder) NumOutputs() int {
	return c.nOut
}

func (c *Coder) Nonlinearity() Nonlinearity {
	return c.f
}

// Tied returns whether or not the Coder uses the transposed weights of another
func (c *Coder) Tied() bool {
	return c.tied
}

// Noisy returns whether or not the Coder corrupts its input
func (c *Coder) Noisy() bool {
	return c.noise != nil
}

// Group returns the ParameterGroup owned by the Coder, or nil for noisy Coders
func (c *Coder) Group() *bs.ParameterGroup {
	return c.own
}

// Weights returns the Block holding the weights used by the Coder, in the (nOut x nIn, row-major)
// layout of the Coder that owns them. For a tied Coder, this is the Block of its encoder.
func (c *Coder) Weights() *bs.Block {
	for _, g := range c.params {
		if b := g.Block(WeightsBlock); b != nil {
			return b
		}
	}

	return nil
}

// Biases returns the Block holding the biases used by the Coder
func (c *Coder) Biases() *bs.Block {
	return c.params[0].Block(BiasesBlock)
}

func (c *Coder) Params() []*bs.ParameterGroup {
	return c.params
}

func (c *Coder) Outputs() []float64 {
	return c.outputs
}

func (c *Coder) Beta() []float64 {
	return c.beta
}

func (c *Coder) SetPartialBackprop(p bool) {
	c.partial = p
}

func (c *Coder) PartialBackprop() bool {
	return c.partial
}

func (c *Coder) Forward(input []float64) []float64 {
	x := input
	if c.noise != nil {
		x = c.noise.corrupt(input)
	}

	c.preVec.MulVec(c.w, mat.NewVecDense(c.nIn, x))
	floats.Add(c.pre, c.b)
	c.f.apply(c.pre, c.outputs)

	return c.outputs
}

func (c *Coder) Backward(input, gradOut []float64) []float64 {
	x := input
	if c.noise != nil {
		x = c.noise.corrupted()
	}

	c.f.delta(c.outputs, gradOut, c.delta)
	floats.Add(c.db, c.delta)

	xVec := mat.NewVecDense(c.nIn, x)
	if c.tied {
		c.dw.RankOne(c.dw, 1, xVec, c.deltaVec)
	} else {
		c.dw.RankOne(c.dw, 1, c.deltaVec, xVec)
	}

	if c.partial {
		for i := range c.beta {
			c.beta[i] = 0
		}

		return c.beta
	}

	c.betaVec.MulVec(c.w.T(), c.deltaVec)
	if c.noise != nil {
		c.noise.maskBeta(c.beta)
	}

	return c.beta
}
