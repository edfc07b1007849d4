// Package layers provides the concrete Layers used by stacked autoencoders: Coder, a
// fully-connected layer with a Nonlinearity, which may share its weights with another Coder, and
// Identity.
//
// Coders wrap the Blocks of their ParameterGroup in gonum matrices without copying, so a tied
// decoder is simply a transposed view of its encoder's weights:
//
//	enc, _ := layers.NewCoder("encoder 0", 784, 500, layers.Sigmoid)
//	dec, _ := layers.NewTiedCoder("decoder 0", enc, layers.Sigmoid)
//
// The parameters of a new Coder are all zero. They are usually set by the subpackage
// "initializers".
package layers
