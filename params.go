package deeptorch

import (
	"github.com/pkg/errors"
)

// Block is a single named, contiguous set of parameters, along with their gradients. Layers
// typically wrap Values and Grads in matrix views, so the slices themselves must never be
// reallocated after construction.
type Block struct {
	Name   string
	Values []float64
	Grads  []float64

	// Penalty is applied to the gradients before each update. It may be nil.
	Penalty Penalty
}

// ParameterGroup is an ordered sequence of Blocks, owned by exactly one Layer. Every Graph that
// includes the owning Layer (or any Layer that borrows from it) refers to the same group, so the
// identity of a ParameterGroup is its pointer.
type ParameterGroup struct {
	name   string
	blocks []*Block
}

// NewParameterGroup returns an empty ParameterGroup with the given name
func NewParameterGroup(name string) *ParameterGroup {
	return &ParameterGroup{name: name}
}

func (g *ParameterGroup) Name() string {
	return g.name
}

func (g *ParameterGroup) String() string {
	return g.name
}

// AddBlock allocates and appends a new Block of the given size
func (g *ParameterGroup) AddBlock(name string, size int) *Block {
	b := &Block{
		Name:   name,
		Values: make([]float64, size),
		Grads:  make([]float64, size),
	}

	g.blocks = append(g.blocks, b)
	return b
}

// Blocks returns the Blocks of the group, in order
func (g *ParameterGroup) Blocks() []*Block {
	return g.blocks
}

// Block returns the Block with the given name, or nil if there is none
func (g *ParameterGroup) Block(name string) *Block {
	for _, b := range g.blocks {
		if b.Name == name {
			return b
		}
	}

	return nil
}

// Size returns the total number of parameters in the group
func (g *ParameterGroup) Size() int {
	var s int
	for _, b := range g.blocks {
		s += len(b.Values)
	}

	return s
}

func (g *ParameterGroup) ClearGradients() {
	for _, b := range g.blocks {
		for i := range b.Grads {
			b.Grads[i] = 0
		}
	}
}

// Adjust runs the Optimizer on every Block of the group. If 'penalize' is true, each Block's
// Penalty is applied to its gradients first.
//
// Callers that may reach the same group more than once in a step are responsible for passing
// 'penalize' only the first time.
func (g *ParameterGroup) Adjust(opt Optimizer, learningRate float64, penalize bool) error {
	if opt == nil {
		return NilArgError{"Optimizer"}
	}

	for _, b := range g.blocks {
		if penalize && b.Penalty != nil {
			b.Penalty.Penalize(b.Values, b.Grads)
		}

		grads, values := b.Grads, b.Values
		grad := func(i int) float64 { return grads[i] }
		add := func(i int, v float64) { values[i] += v }

		if err := opt.Run(len(values), grad, add, learningRate); err != nil {
			return errors.Wrapf(err, "Running optimizer on block %q of group %q failed\n", b.Name, g.name)
		}
	}

	return nil
}

// Unique returns the groups with duplicates removed, keeping the first occurrence of each
func Unique(groups ...[]*ParameterGroup) []*ParameterGroup {
	seen := make(map[*ParameterGroup]bool)
	var unique []*ParameterGroup

	for _, gs := range groups {
		for _, g := range gs {
			if g == nil || seen[g] {
				continue
			}

			seen[g] = true
			unique = append(unique, g)
		}
	}

	return unique
}

// CountParams returns the number of parameters in all of the unique groups given
func CountParams(groups []*ParameterGroup) int {
	var n int
	for _, g := range Unique(groups) {
		n += g.Size()
	}

	return n
}

// ClearGradients sets the gradients of every given group to zero
func ClearGradients(groups []*ParameterGroup) {
	for _, g := range groups {
		g.ClearGradients()
	}
}
