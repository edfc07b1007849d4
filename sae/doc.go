// Package sae builds stacked autoencoders: a stack of encoders, each paired with a decoder that
// reconstructs the encoder's input, topped by a LogSoftMax classifier (the "outputer").
//
// A Model creates its Layers once, and then assembles every Graph needed for training from those
// same Layers:
//
//	Autoencoder(i)    encoder i (noisy if enabled) -> decoder i
//	Chained(i)        encoders 0..i-1 -> Autoencoder(i), flattened
//	Supervised()      encoders 0..n-1 -> outputer
//	Unsupervised()    encoders, with every reconstruction attached
//	Joint()           Supervised() with every reconstruction attached
//
// Selective and PartialEncoderStack build new Graphs on demand.
//
// When the model is noisy, the reconstruction attached at layer i is the whole Autoencoder(i),
// which takes the clean output of encoder i-1. For the first layer, an Identity input handle stands
// in for the raw input, because nested Graphs cannot consume it directly. Since the clean output of
// the last encoder is then unused, Unsupervised() leaves that encoder out.
package sae
