package deeptorch

// Name returns the name given to the Graph at creation
func (g *Graph) Name() string {
	return g.name
}

func (g *Graph) String() string {
	return "\"" + g.name + "\""
}

// NumInputs returns the number of values the Graph takes as input
func (g *Graph) NumInputs() int {
	return len(g.beta)
}

// NumOutputs returns the total size of the output Nodes of the Graph
func (g *Graph) NumOutputs() int {
	return g.outputs.size()
}

// OutputSizes returns the size of each output Node, in the order their values are concatenated.
func (g *Graph) OutputSizes() []int {
	return g.outputs.sizes()
}

// Outputs returns the concatenated values of the output Nodes, as of the latest evaluation of
// their Layers.
func (g *Graph) Outputs() []float64 {
	return g.outputs.getValues(g.values)
}

// Beta returns the gradient with respect to the input from the most recent call to Backward
func (g *Graph) Beta() []float64 {
	return g.beta
}

// Params returns every ParameterGroup reachable from the Layers of the Graph, with each group
// listed only once regardless of how many Layers refer to it.
func (g *Graph) Params() []*ParameterGroup {
	return g.params
}

// SetPartialBackprop sets whether or not the Graph, as a Layer inside another Graph, should stop
// its gradient from reaching the Nodes feeding it.
func (g *Graph) SetPartialBackprop(p bool) {
	g.partial = p
}

func (g *Graph) PartialBackprop() bool {
	return g.partial
}

// Nodes returns all non-input Nodes of the Graph, in evaluation order
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// OutputNodes returns the output Nodes of the Graph, in the order given to Build
func (g *Graph) OutputNodes() []*Node {
	return g.outputs.nodes
}

// NodeOf returns the Node that wraps the given Layer, or nil if the Layer is not directly part of
// the Graph.
func (g *Graph) NodeOf(l Layer) *Node {
	for _, n := range g.nodes {
		if n.layer == l {
			return n
		}
	}

	return nil
}

// Contains returns whether or not the Layer is part of the Graph, including through nested Graphs
func (g *Graph) Contains(l Layer) bool {
	return g.layers[l]
}

// IsBuilt returns whether or not Build has successfully been run on the Graph
func (g *Graph) IsBuilt() bool {
	return g.stat >= finalized
}
