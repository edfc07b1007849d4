package sae

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
	bs "github.com/rbhambriiit/deeptorch"
	"github.com/rbhambriiit/deeptorch/initializers"
	"github.com/rbhambriiit/deeptorch/layers"
	"github.com/rbhambriiit/deeptorch/penalties"
)

// Model is a stacked autoencoder: the Layers making it up, and every Graph that is built from
// them. All Graphs share the same Layers, so training any one of them changes the rest.
type Model struct {
	cfg Config
	rng *rand.Rand

	encoders []*layers.Coder
	decoders []*layers.Coder
	outputer *layers.Coder

	// only set when the model is noisy
	noisyEncoders []*layers.Coder
	handle        *layers.Identity

	autoencoders []*bs.Graph
	chained      []*bs.Graph
	sup          *bs.Graph
	unsup        *bs.Graph
	joint        *bs.Graph
}

// New creates the Layers described by 'cfg', initializes their parameters, and builds every fixed
// Graph of the model.
func New(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	weights, err := initializers.ByName(cfg.Init)
	if err != nil {
		return nil, errors.Wrapf(err, "Getting initializer failed\n")
	}

	m := &Model{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}

	if err := m.makeLayers(); err != nil {
		return nil, errors.Wrapf(err, "Making layers failed\n")
	}

	m.Init(weights)

	if err := m.assemble(); err != nil {
		return nil, errors.Wrapf(err, "Assembling graphs failed\n")
	}

	return m, nil
}

func (m *Model) makeLayers() error {
	n := m.cfg.NumLayers()
	f := m.cfg.Nonlinearity

	m.encoders = make([]*layers.Coder, n)
	m.decoders = make([]*layers.Coder, n)

	for i := 0; i < n; i++ {
		nIn := m.layerInputs(i)

		enc, err := layers.NewCoder(fmt.Sprintf("encoder %d", i), nIn, m.cfg.Hidden[i], f)
		if err != nil {
			return err
		}

		var dec *layers.Coder
		if m.cfg.TiedWeights {
			dec, err = layers.NewTiedCoder(fmt.Sprintf("decoder %d", i), enc, f)
		} else {
			dec, err = layers.NewCoder(fmt.Sprintf("decoder %d", i), m.cfg.Hidden[i], nIn, f)
		}
		if err != nil {
			return err
		}

		m.encoders[i], m.decoders[i] = enc, dec
	}

	var err error
	m.outputer, err = layers.NewCoder("outputer", m.cfg.Hidden[n-1], m.cfg.Outputs, layers.LogSoftMax)
	if err != nil {
		return err
	}

	if !m.cfg.Noisy() {
		return nil
	}

	m.handle = layers.NewIdentity("input handle", m.cfg.Inputs)
	m.noisyEncoders = make([]*layers.Coder, n)

	for i, enc := range m.encoders {
		noise := layers.NewNoise(enc.NumInputs(), m.cfg.CorruptProb, m.cfg.CorruptValue, m.rng)
		if m.noisyEncoders[i], err = layers.NewNoisyCoder(fmt.Sprintf("noisy encoder %d", i), enc, noise); err != nil {
			return err
		}
	}

	return nil
}

// Returns the number of inputs to hidden layer i
func (m *Model) layerInputs(i int) int {
	if i == 0 {
		return m.cfg.Inputs
	}

	return m.cfg.Hidden[i-1]
}

// Init sets every parameter of the model. Weights are set by 'weights', and biases by
// initializers.FanIn.
func (m *Model) Init(weights bs.Initializer) {
	bias := initializers.FanIn()

	for _, c := range m.owners() {
		if w := c.Group().Block(layers.WeightsBlock); w != nil {
			weights.Set(m.rng, c.NumInputs(), c.NumOutputs(), w.Values)
		}

		bias.Set(m.rng, c.NumInputs(), c.NumOutputs(), c.Group().Block(layers.BiasesBlock).Values)
	}
}

// InitFromDistributions sets the weights and biases of every encoder by drawing from the given
// RNGs, typically Histograms of a previously trained model.
func (m *Model) InitFromDistributions(weights, biases initializers.RNG) error {
	if weights == nil || biases == nil {
		return bs.NilArg("Distribution")
	}

	for _, enc := range m.encoders {
		initializers.Random(weights).Set(m.rng, enc.NumInputs(), enc.NumOutputs(), enc.Weights().Values)
		initializers.Random(biases).Set(m.rng, enc.NumInputs(), enc.NumOutputs(), enc.Biases().Values)
	}

	return nil
}

// SetDecay registers weight decay on the model's parameters: 'l1' and 'l2' on the weights of the
// encoders, the outputer, and untied decoders; 'bias' on the biases of the encoders. Tied decoders
// have no weights of their own, so their encoder's decay is the only one applied.
//
// Passing zero for both rates and a nil 'bias' removes any decay.
func (m *Model) SetDecay(l1, l2 float64, bias bs.Penalty) {
	for _, enc := range m.encoders {
		enc.Weights().Penalty = penalties.Combine(l1, l2)
		enc.Biases().Penalty = bias
	}

	m.outputer.Weights().Penalty = penalties.Combine(l1, l2)

	if !m.cfg.TiedWeights {
		for _, dec := range m.decoders {
			dec.Weights().Penalty = penalties.Combine(l1, l2)
		}
	}
}

// Returns every Coder that owns its parameters, in save order: encoders, decoders, outputer
func (m *Model) owners() []*layers.Coder {
	cs := make([]*layers.Coder, 0, 2*len(m.encoders)+1)
	cs = append(cs, m.encoders...)
	cs = append(cs, m.decoders...)
	return append(cs, m.outputer)
}

// Config returns the configuration the model was created with
func (m *Model) Config() Config {
	return m.cfg
}

// NumLayers returns the number of hidden layers
func (m *Model) NumLayers() int {
	return len(m.encoders)
}

func (m *Model) Encoder(i int) *layers.Coder {
	return m.encoders[i]
}

func (m *Model) Decoder(i int) *layers.Coder {
	return m.decoders[i]
}

// NoisyEncoder returns the noisy version of encoder i, or nil if the model is not noisy
func (m *Model) NoisyEncoder(i int) *layers.Coder {
	if m.noisyEncoders == nil {
		return nil
	}

	return m.noisyEncoders[i]
}

// Coder returns the first Layer of autoencoder i: the noisy encoder if the model is noisy, and
// the encoder otherwise.
func (m *Model) Coder(i int) *layers.Coder {
	if m.cfg.Noisy() {
		return m.noisyEncoders[i]
	}

	return m.encoders[i]
}

func (m *Model) Outputer() *layers.Coder {
	return m.outputer
}

// InputHandle returns the Identity Layer standing in for the raw input, or nil if the model is
// not noisy.
func (m *Model) InputHandle() *layers.Identity {
	return m.handle
}

// Params returns every ParameterGroup of the model, in save order
func (m *Model) Params() []*bs.ParameterGroup {
	var groups []*bs.ParameterGroup
	for _, c := range m.owners() {
		groups = append(groups, c.Group())
	}

	return groups
}

// LayerInput returns the input of hidden layer i for the current example: the raw inputs for the
// first layer, and otherwise the current outputs of the encoder below. It is both the input of
// autoencoder i and its reconstruction target.
func (m *Model) LayerInput(i int, ex *bs.Example) []float64 {
	if i == 0 {
		return ex.Inputs
	}

	return m.encoders[i-1].Outputs()
}
