package deeptorch

// Forward evaluates every Node of the Graph in order and returns the concatenated values of the
// output Nodes. Forward panics if the Graph has not been built or the input has the wrong size.
func (g *Graph) Forward(input []float64) []float64 {
	g.checkPass(input)

	g.input.values = input
	for _, n := range g.nodes {
		n.layer.Forward(n.inputValues())
	}

	return g.outputs.getValues(g.values)
}

// Backward propagates 'gradOut', the gradient of the loss with respect to the outputs of the
// Graph, back through every Node, accumulating parameter gradients along the way. It returns the
// gradient with respect to the input of the Graph.
//
// Backward only relies on the current outputs of its Layers, so it may be called on a Graph whose
// Layers were last evaluated as part of a different Graph, provided 'input' is the value the first
// Layers were given.
//
// After a Layer with partial backprop has run its own backward pass, its beta is set to zero and
// nothing is propagated to the Nodes feeding it. Nodes that would only receive gradient through
// such Layers are skipped entirely.
func (g *Graph) Backward(input, gradOut []float64) []float64 {
	g.checkPass(input)
	if len(gradOut) != len(g.values) {
		panic(SizeMismatchError{"Output gradient of Graph " + g.name, len(gradOut), len(g.values)})
	}

	g.input.values = input
	zero(g.beta)
	for _, n := range g.nodes {
		zero(n.deltas)
	}

	g.outputs.addDeltas(gradOut)
	g.markLive()

	for i := len(g.nodes) - 1; i >= 0; i-- {
		n := g.nodes[i]
		if !n.live {
			continue
		}

		beta := n.layer.Backward(n.inputValues(), n.deltas)
		if n.layer.PartialBackprop() {
			zero(beta)
			continue
		}

		n.inputs.addDeltas(beta)
	}

	if g.partial {
		zero(g.beta)
	}

	return g.beta
}

// Sets the field 'live' of each Node, marking whether or not gradient can reach it in the current
// backward pass
func (g *Graph) markLive() {
	for i := len(g.nodes) - 1; i >= 0; i-- {
		n := g.nodes[i]
		n.live = n.isOutput

		for _, c := range n.consumers {
			if n.live {
				break
			}

			n.live = c.live && !c.layer.PartialBackprop()
		}
	}
}

func (g *Graph) checkPass(input []float64) {
	if g.stat < finalized {
		panic(ErrGraphNotBuilt)
	} else if len(input) != len(g.beta) {
		panic(SizeMismatchError{"Input to Graph " + g.name, len(input), len(g.beta)})
	}
}

func zero(vals []float64) {
	for i := range vals {
		vals[i] = 0
	}
}
