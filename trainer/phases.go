package trainer

import (
	"fmt"

	bs "github.com/rbhambriiit/deeptorch"
)

// Phase is one stage of training. The variants are LayerwiseUnsup, SelectiveUnsup, JointUnsup,
// JointSupUnsup, TopK and FineTune.
type Phase interface {
	fmt.Stringer

	// Pretraining returns whether the phase is unsupervised pretraining
	Pretraining() bool

	phase()
}

// LayerwiseUnsup trains a single autoencoder to reconstruct its input, with the encoders below it
// held fixed.
type LayerwiseUnsup struct {
	Layer int
}

// SelectiveUnsup trains the autoencoders of the selected layers together. With PartialBackprop,
// each encoder only learns from its own reconstruction.
type SelectiveUnsup struct {
	Layers          []bool
	PartialBackprop bool
}

// JointUnsup trains every autoencoder together. With TrainOutputer, the outputer is trained by the
// supervised criterion at the same time, but its gradient does not reach the encoders.
type JointUnsup struct {
	TrainOutputer bool
}

// JointSupUnsup trains everything on the supervised criterion plus every reconstruction, each
// weighted by UnsupWeight.
type JointSupUnsup struct {
	UnsupWeight float64
}

// TopK trains the outputer and the K-1 encoders below it on the supervised criterion.
type TopK struct {
	K int
}

// FineTune trains everything on the supervised criterion. If LayerRates is not nil, it holds the
// learning rate of each encoder followed by the outputer; a rate that is not positive freezes its
// layer.
type FineTune struct {
	LayerRates []float64
}

func (LayerwiseUnsup) phase() {}
func (SelectiveUnsup) phase() {}
func (JointUnsup) phase()     {}
func (JointSupUnsup) phase()  {}
func (TopK) phase()           {}
func (FineTune) phase()       {}

func (LayerwiseUnsup) Pretraining() bool { return true }
func (SelectiveUnsup) Pretraining() bool { return true }
func (JointUnsup) Pretraining() bool     { return true }
func (JointSupUnsup) Pretraining() bool  { return false }
func (TopK) Pretraining() bool           { return false }
func (FineTune) Pretraining() bool       { return false }

func (p LayerwiseUnsup) String() string {
	return fmt.Sprintf("layerwise_%d", p.Layer)
}

func (p SelectiveUnsup) String() string {
	return "selective"
}

func (p JointUnsup) String() string {
	if p.TrainOutputer {
		return "unsup_outputer"
	}

	return "unsup"
}

func (p JointSupUnsup) String() string {
	return "sup_unsup"
}

func (p TopK) String() string {
	return fmt.Sprintf("top_%d", p.K)
}

func (p FineTune) String() string {
	return "fine_tune"
}

// Stage is a Phase along with how long, and how fast, to run it
type Stage struct {
	Phase        Phase
	Iterations   int
	LearningRate float64

	// optional; see RunOptions
	Rate bs.HyperParameter
}

// Schedule returns the Stages enabled by 'cfg', in the order they are run: layerwise pretraining
// of each of the 'nLayers' hidden layers, selective pretraining, joint unsupervised training,
// joint supervised and unsupervised training, top-K training, and finally fine-tuning.
func Schedule(cfg Config, nLayers int) []Stage {
	var stages []Stage

	if cfg.LayerwiseIters > 0 {
		for i := 0; i < nLayers; i++ {
			stages = append(stages, Stage{Phase: LayerwiseUnsup{i}, Iterations: cfg.LayerwiseIters, LearningRate: cfg.UnsupLearningRate})
		}
	}

	if cfg.SelectiveIters > 0 {
		p := SelectiveUnsup{Layers: cfg.SelectiveLayers, PartialBackprop: cfg.SelectivePartialBackprop}
		stages = append(stages, Stage{Phase: p, Iterations: cfg.SelectiveIters, LearningRate: cfg.UnsupLearningRate})
	}

	if cfg.UnsupIters > 0 {
		stages = append(stages, Stage{Phase: JointUnsup{cfg.TrainOutputer}, Iterations: cfg.UnsupIters, LearningRate: cfg.UnsupLearningRate})
	}

	if cfg.SupUnsupIters > 0 {
		stages = append(stages, Stage{Phase: JointSupUnsup{cfg.UnsupWeight}, Iterations: cfg.SupUnsupIters, LearningRate: cfg.SupLearningRate})
	}

	if cfg.TopKIters > 0 {
		stages = append(stages, Stage{Phase: TopK{cfg.TopK}, Iterations: cfg.TopKIters, LearningRate: cfg.SupLearningRate})
	}

	if cfg.FineTuneIters > 0 {
		stages = append(stages, Stage{Phase: FineTune{cfg.FineTuneRates}, Iterations: cfg.FineTuneIters, LearningRate: cfg.SupLearningRate})
	}

	return stages
}
