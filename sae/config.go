package sae

import (
	"fmt"

	bs "github.com/rbhambriiit/deeptorch"
	"github.com/rbhambriiit/deeptorch/layers"
)

// Config describes the topology of a stacked autoencoder and how its layers are built.
type Config struct {
	Inputs  int   `json:"inputs"`
	Hidden  []int `json:"hidden"`
	Outputs int   `json:"outputs"`

	// Nonlinearity of the encoders and decoders. The outputer is always LogSoftMax.
	Nonlinearity layers.Nonlinearity `json:"nonlinearity"`

	// TiedWeights makes each decoder use the transposed weights of its encoder
	TiedWeights bool `json:"tied_weights"`

	// With a CorruptProb above zero, the model is noisy: each autoencoder corrupts its input,
	// setting values to CorruptValue with probability CorruptProb.
	CorruptProb  float64 `json:"corrupt_prob"`
	CorruptValue float64 `json:"corrupt_value"`

	// Init is the name of the Initializer for weights (see initializers.ByName)
	Init string `json:"init"`

	Seed int64 `json:"seed"`
}

// Noisy returns whether or not the autoencoders corrupt their inputs
func (c Config) Noisy() bool {
	return c.CorruptProb > 0
}

// NumLayers returns the number of hidden layers
func (c Config) NumLayers() int {
	return len(c.Hidden)
}

// Validate checks the topology, returning a *deeptorch.ConfigError if it is unusable.
func (c Config) Validate() error {
	if c.Inputs < 1 {
		return &bs.ConfigError{Field: "inputs", Reason: fmt.Sprintf("must be positive (%d)", c.Inputs)}
	} else if c.Outputs < 1 {
		return &bs.ConfigError{Field: "outputs", Reason: fmt.Sprintf("must be positive (%d)", c.Outputs)}
	} else if len(c.Hidden) == 0 {
		return &bs.ConfigError{Field: "hidden", Reason: "at least one hidden layer is required"}
	}

	for i, h := range c.Hidden {
		if h < 1 {
			return &bs.ConfigError{Field: "hidden", Reason: fmt.Sprintf("layer %d must have positive size (%d)", i, h)}
		}
	}

	if !c.Nonlinearity.Valid() || c.Nonlinearity == layers.LogSoftMax {
		return &bs.ConfigError{Field: "nonlinearity", Reason: fmt.Sprintf("%q cannot be used for hidden layers", c.Nonlinearity)}
	} else if c.CorruptProb < 0 || c.CorruptProb >= 1 {
		return &bs.ConfigError{Field: "corrupt_prob", Reason: fmt.Sprintf("must be in [0, 1) (%v)", c.CorruptProb)}
	}

	return nil
}
