// Package deeptorch provides the building blocks for training stacked autoencoders: Layers and
// their ParameterGroups, Graphs that connect Layers, Criteria and the LossAggregate that combines
// them. The model itself is built in the subpackage "sae", and trained by "trainer".
//
// Parameters and sharing
//
// Every Layer that has weights owns a single ParameterGroup, made of named Blocks. Other Layers
// may borrow that group: a tied decoder reads the transposed weights of its encoder, and a noisy
// encoder reads the same weights as the clean one. Gradients written through any of them land in
// the same Blocks, and the pointer of a group is its identity. *Graph.Params lists each group once.
//
// Graphs
//
// A Graph is built by adding Layers in evaluation order:
//
//		g := deeptorch.NewGraph("unsup", nIn)
//		h := g.Add(encoder, g.Input())
//		r := g.Add(decoder, h)
//
//		if err := g.Build(r); err != nil {
//			return err
//		}
//
// The first error from Add is returned by Build. Build checks that every Node affects the outputs.
// Because a Graph is also a Layer, a built Graph can be added to another, except directly on that
// Graph's input.
//
// The same Layer may be in any number of Graphs at once, but only once in each. Each Layer keeps
// the values of its latest pass, so Backward may be run on a Graph whose Layers were evaluated by a
// different Graph. This is how only part of a larger Graph is trained.
//
// Partial backprop
//
// A Layer with partial backprop set still computes the gradients of its own parameters, but its
// beta is zeroed after use, so nothing reaches the Layers that feed it.
//
// Losses
//
// A LossAggregate splits the concatenated outputs of a Graph into segments, one per Criterion,
// and returns their weighted sum. The subpackage "costfuncs" provides the CostFunctions and the
// supervised and reconstruction Criteria built from them.
package deeptorch
