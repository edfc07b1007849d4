package sae

import (
	"fmt"

	"github.com/pkg/errors"
	bs "github.com/rbhambriiit/deeptorch"
)

// Builds every fixed Graph of the model. Autoencoders must be built first, as the others nest
// them.
func (m *Model) assemble() error {
	n := m.NumLayers()

	m.autoencoders = make([]*bs.Graph, n)
	m.chained = make([]*bs.Graph, n)

	for i := 0; i < n; i++ {
		ae := bs.NewGraph(fmt.Sprintf("autoencoder %d", i), m.layerInputs(i))
		h := ae.Add(m.Coder(i), ae.Input())
		if err := ae.Build(ae.Add(m.decoders[i], h)); err != nil {
			return err
		}

		m.autoencoders[i] = ae

		mesd := bs.NewGraph(fmt.Sprintf("chained %d", i), m.cfg.Inputs)
		encs, _ := m.addEncodersUpTo(mesd, i-1, false)
		h = mesd.Add(m.Coder(i), top(mesd, encs))
		if err := mesd.Build(mesd.Add(m.decoders[i], h)); err != nil {
			return err
		}

		m.chained[i] = mesd
	}

	var err error
	if m.sup, err = m.buildSupervised(); err != nil {
		return err
	} else if m.unsup, err = m.buildUnsupervised(); err != nil {
		return err
	} else if m.joint, err = m.buildJoint(); err != nil {
		return err
	}

	return nil
}

// Adds encoders 0 through k (inclusive), chained, to 'g'. If 'withHandle' is true and the model
// is noisy, the input handle is also added, taking the input of the Graph. With k < 0, only the
// handle is added, if at all.
func (m *Model) addEncodersUpTo(g *bs.Graph, k int, withHandle bool) (encs []*bs.Node, handle *bs.Node) {
	if withHandle && m.cfg.Noisy() {
		handle = g.Add(m.handle, g.Input())
	}

	prev := g.Input()
	for i := 0; i <= k; i++ {
		prev = g.Add(m.encoders[i], prev)
		encs = append(encs, prev)
	}

	return encs, handle
}

// Returns the last of the encoders, or the input of the Graph if there are none
func top(g *bs.Graph, encs []*bs.Node) *bs.Node {
	if len(encs) == 0 {
		return g.Input()
	}

	return encs[len(encs)-1]
}

// Adds the reconstruction of layer i to the Graph, given the encoders of the lower layers (and
// possibly layer i) and the input handle. If the model is noisy, this is the autoencoder of the
// layer, fed by the encoder below; otherwise it is the decoder alone, fed by the encoder of the
// layer.
func (m *Model) addReconstruction(g *bs.Graph, i int, encs []*bs.Node, handle *bs.Node) *bs.Node {
	if !m.cfg.Noisy() {
		return g.Add(m.decoders[i], encs[i])
	}

	src := handle
	if i > 0 {
		src = encs[i-1]
	}

	return g.Add(m.autoencoders[i], src)
}

func (m *Model) buildSupervised() (*bs.Graph, error) {
	g := bs.NewGraph("supervised", m.cfg.Inputs)
	encs, _ := m.addEncodersUpTo(g, m.NumLayers()-1, false)
	out := g.Add(m.outputer, top(g, encs))

	return g, g.Build(out)
}

func (m *Model) buildUnsupervised() (*bs.Graph, error) {
	n := m.NumLayers()
	g := bs.NewGraph("unsupervised", m.cfg.Inputs)

	// the clean output of the last encoder is only needed when it feeds its own decoder
	last := n - 1
	if m.cfg.Noisy() {
		last = n - 2
	}

	encs, handle := m.addEncodersUpTo(g, last, true)

	recons := make([]*bs.Node, n)
	for i := range recons {
		recons[i] = m.addReconstruction(g, i, encs, handle)
	}

	return g, g.Build(recons...)
}

func (m *Model) buildJoint() (*bs.Graph, error) {
	n := m.NumLayers()
	g := bs.NewGraph("joint", m.cfg.Inputs)

	encs, handle := m.addEncodersUpTo(g, n-1, true)
	outs := []*bs.Node{g.Add(m.outputer, top(g, encs))}

	for i := 0; i < n; i++ {
		outs = append(outs, m.addReconstruction(g, i, encs, handle))
	}

	return g, g.Build(outs...)
}

// PartialEncoderStack returns a new Graph of encoders 0 through k, chained. If 'withHandle' is true
// and the model is noisy, the input handle is included as well, and its values are the first
// outputs of the Graph. With k < 0 and the handle included, the handle is the only Layer of the
// Graph.
func (m *Model) PartialEncoderStack(k int, withHandle bool) (*bs.Graph, error) {
	if k >= m.NumLayers() {
		return nil, errors.Errorf("Layer %d out of range (%d layers)", k, m.NumLayers())
	}

	g := bs.NewGraph(fmt.Sprintf("encoders up to %d", k), m.cfg.Inputs)
	encs, handle := m.addEncodersUpTo(g, k, withHandle)

	var outs []*bs.Node
	if handle != nil {
		outs = append(outs, handle)
	}
	if len(encs) != 0 {
		outs = append(outs, top(g, encs))
	}

	if err := g.Build(outs...); err != nil {
		return nil, errors.Wrapf(err, "Building partial encoder stack failed\n")
	}

	return g, nil
}

// Selective returns a new Graph that reconstructs each selected layer, with the encoders below the
// topmost selected layer chained so that each reconstruction sees the representation of the
// already trained layers. The outputs are the reconstructions of the selected layers, in order.
//
// If no layer is selected, Selective returns deeptorch.ErrNothingSelected.
func (m *Model) Selective(selected []bool) (*bs.Graph, error) {
	if len(selected) != m.NumLayers() {
		return nil, bs.SizeMismatchError{What: "Selected layers", Got: len(selected), Want: m.NumLayers()}
	}

	topmost := -1
	for i, s := range selected {
		if s {
			topmost = i
		}
	}

	if topmost < 0 {
		return nil, bs.ErrNothingSelected
	}

	g := bs.NewGraph("selective", m.cfg.Inputs)

	// when noisy, the reconstruction of the topmost layer starts from the encoder below it
	k := topmost
	if m.cfg.Noisy() {
		k = topmost - 1
	}

	encs, handle := m.addEncodersUpTo(g, k, selected[0])

	var recons []*bs.Node
	for i, s := range selected {
		if s {
			recons = append(recons, m.addReconstruction(g, i, encs, handle))
		}
	}

	if err := g.Build(recons...); err != nil {
		return nil, errors.Wrapf(err, "Building selective graph failed\n")
	}

	return g, nil
}

// Autoencoder returns the Graph of layer i alone: its (possibly noisy) encoder, then its decoder.
func (m *Model) Autoencoder(i int) *bs.Graph {
	return m.autoencoders[i]
}

// Chained returns the Graph of encoders 0 through i-1, followed by autoencoder i, used to
// pretrain layer i on the representations of the layers below it.
func (m *Model) Chained(i int) *bs.Graph {
	return m.chained[i]
}

// Supervised returns the Graph of every encoder, followed by the outputer.
func (m *Model) Supervised() *bs.Graph {
	return m.sup
}

// Unsupervised returns the Graph reconstructing every layer. Its outputs are the reconstructions,
// in order.
func (m *Model) Unsupervised() *bs.Graph {
	return m.unsup
}

// Joint returns the Graph with both the outputer and the reconstruction of every layer. Its
// outputs are the outputer's, followed by each reconstruction.
func (m *Model) Joint() *bs.Graph {
	return m.joint
}

// Graphs returns every fixed Graph of the model
func (m *Model) Graphs() []*bs.Graph {
	gs := []*bs.Graph{m.sup, m.unsup, m.joint}
	gs = append(gs, m.autoencoders...)
	return append(gs, m.chained...)
}
