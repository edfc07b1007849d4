package initializers

import (
	"math"
	"math/rand"
)

type random struct {
	RNG
}

// Random returns an Initializer that uses the provided RNG to generate the weights. There is no
// scaling beyond that of the RNG.
func Random(g RNG) random {
	return random{g}
}

// Set is the implementation of deeptorch.Initializer
func (rd random) Set(r *rand.Rand, nIn, nOut int, ws []float64) {
	for i := 0; i < len(ws); i++ {
		ws[i] = rd.Gen(r)
	}
}

type fanIn struct{}

// FanIn returns an Initializer drawing uniformly from [-1/sqrt(nIn), 1/sqrt(nIn)], the usual
// range for fully-connected layers. It is used for both weights and biases.
func FanIn() fanIn {
	return fanIn{}
}

// Set is the implementation of deeptorch.Initializer
func (f fanIn) Set(r *rand.Rand, nIn, nOut int, ws []float64) {
	bound := 1 / math.Sqrt(float64(nIn))
	Random(Uniform().Bounds(-bound, bound)).Set(r, nIn, nOut, ws)
}
