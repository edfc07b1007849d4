package deeptorch

import (
	"github.com/pkg/errors"
)

type status int8

const (
	initialized status = iota // 0
	finalized   status = iota // 1
)

// NewGraph returns an empty Graph that takes 'nInputs' values as input. Nodes are added with Add,
// and the Graph is finished by Build.
//
// The standard procedure is:
//
//	g := deeptorch.NewGraph("sup", 784)
//	h := g.Add(encoder, g.Input())
//	out := g.Add(outputer, h)
//
//	if err := g.Build(out); err != nil {
//		return err
//	}
//
// Errors from Add are kept until Build, which returns the first of them.
func NewGraph(name string, nInputs int) *Graph {
	g := &Graph{
		name:    name,
		outputs: new(nodeGroup),
		layers:  make(map[Layer]bool),
		beta:    make([]float64, nInputs),
	}

	g.input = &Node{
		host:   g,
		id:     0,
		deltas: g.beta,
	}

	return g
}

// Input returns the Node that stands in for the raw input to the Graph.
func (g *Graph) Input() *Node {
	return g.input
}

// Err returns the first error encountered while constructing the Graph, if there was one.
func (g *Graph) Err() error {
	return g.err
}

// Add adds a new Node to the Graph, wrapping the given Layer and taking the concatenated values of
// 'inputs' as its input. The Layer may be another, already built, Graph, so long as it does not
// take the raw input of this Graph directly.
//
// If Add fails, it returns nil and the error is stored, to be returned by Build. Once an error has
// been stored, all further calls to Add will do nothing.
func (g *Graph) Add(l Layer, inputs ...*Node) *Node {
	if g.err != nil {
		return nil
	}

	n, err := g.add(l, inputs)
	if err != nil {
		g.err = errors.Wrapf(err, "Adding Layer to Graph %q failed\n", g.name)
		return nil
	}

	return n
}

func (g *Graph) add(l Layer, inputs []*Node) (*Node, error) {
	if g.stat >= finalized {
		return nil, ErrGraphBuilt
	} else if l == nil {
		return nil, NilArgError{"Layer"}
	} else if len(inputs) == 0 {
		return nil, ErrNoInputs
	}

	sub, nested := l.(*Graph)
	if nested && sub.stat < finalized {
		return nil, errors.Errorf("Nested Graph %q has not been built", sub.name)
	}

	var size int
	for i, in := range inputs {
		if in == nil {
			return nil, NilArgError{"Input Node"}
		} else if in.host != g {
			return nil, errors.Wrapf(ErrForeignNode, "Input %d to Layer %q", i, l.Name())
		} else if nested && in.IsInput() {
			return nil, errors.Wrapf(ErrSubgraphOnInput, "Layer %q", l.Name())
		}

		size += in.Size()
	}

	if size != l.NumInputs() {
		return nil, SizeMismatchError{"Inputs to Layer " + l.Name(), size, l.NumInputs()}
	}

	contained := layersOf(l)
	for _, c := range contained {
		if g.layers[c] {
			return nil, errors.Errorf("Layer %q is already in Graph %q", c.Name(), g.name)
		}
	}

	for _, c := range contained {
		g.layers[c] = true
	}

	n := &Node{
		host:   g,
		id:     len(g.nodes) + 1,
		layer:  l,
		inputs: new(nodeGroup),
		deltas: make([]float64, l.NumOutputs()),
	}

	n.inputs.add(inputs...)
	if num(n.inputs) > 1 {
		n.inbuf = make([]float64, size)
	}

	for _, in := range inputs {
		in.consumers = append(in.consumers, n)
	}

	g.nodes = append(g.nodes, n)
	return n, nil
}

// Returns the Layer and, if it is a Graph, every Layer nested inside it
func layersOf(l Layer) []Layer {
	ls := []Layer{l}

	if sub, ok := l.(*Graph); ok {
		for _, n := range sub.nodes {
			ls = append(ls, layersOf(n.layer)...)
		}
	}

	return ls
}

// Build finalizes the Graph, setting its outputs. The values of the output Nodes are concatenated
// in the order given. Build checks that every Node in the Graph affects at least one of the
// outputs.
//
// Build returns the first error from Add, if there was one.
func (g *Graph) Build(outputs ...*Node) error {
	if g.err != nil {
		return g.err
	} else if g.stat >= finalized {
		return ErrGraphBuilt
	} else if len(outputs) == 0 {
		return errors.Wrapf(ErrNoOutputs, "Building Graph %q failed\n", g.name)
	}

	for i, out := range outputs {
		if out == nil {
			return NilArgError{"Output Node"}
		} else if out.host != g {
			return errors.Wrapf(ErrForeignNode, "Output %d of Graph %q", i, g.name)
		} else if out.IsInput() {
			return errors.Errorf("Input of Graph %q cannot be one of its outputs", g.name)
		} else if out.isOutput {
			return errors.Errorf("Node %v given as output of Graph %q more than once", out, g.name)
		}

		out.isOutput = true
	}

	g.outputs.add(outputs...)

	if err := g.checkOutputs(); err != nil {
		for _, out := range outputs {
			out.isOutput = false
		}

		g.outputs = new(nodeGroup)
		return errors.Wrapf(err, "Building Graph %q failed\n", g.name)
	}

	g.values = make([]float64, g.outputs.size())

	var groups []*ParameterGroup
	for _, n := range g.nodes {
		groups = append(groups, n.layer.Params()...)
	}

	g.params = Unique(groups)

	g.stat = finalized
	return nil
}

// Sets all Nodes' field 'completed' to false
func (g *Graph) resetCompletion() {
	g.input.completed = false
	for _, n := range g.nodes {
		n.completed = false
	}
}

// Checks that all Nodes affect the outputs of the Graph
func (g *Graph) checkOutputs() error {
	defer g.resetCompletion()

	var mark func(*Node)
	mark = func(n *Node) {
		if n.completed {
			return
		}

		n.completed = true
		if n.IsInput() {
			return
		}

		for _, in := range n.inputs.nodes {
			mark(in)
		}
	}

	// Mark all Nodes that affect the outputs.
	for _, out := range g.outputs.nodes {
		mark(out)
	}

	// If any Nodes don't affect outputs, return error
	for _, n := range g.nodes {
		if !n.completed {
			return errors.Errorf("Node %v does not affect Graph outputs", n)
		}
	}

	return nil
}
