package trainer

import (
	"fmt"

	bs "github.com/rbhambriiit/deeptorch"
	"github.com/rbhambriiit/deeptorch/costfuncs"
	"github.com/rbhambriiit/deeptorch/optimizers"
	"github.com/rbhambriiit/deeptorch/penalties"
	"github.com/rbhambriiit/deeptorch/sae"
)

// MaxFineTuneLayers is the largest number of hidden layers for which per-layer fine-tuning rates
// and selective pretraining are supported.
const MaxFineTuneLayers int = 4

// Defaults for the variance reweighting of criteria
const (
	DefaultHessianSamples    int     = 1000
	DefaultGradWarnThreshold float64 = 10
)

// Config holds everything about training that is not the topology of the model. Each phase runs
// for its number of iterations over the training set; a phase with zero iterations is skipped.
type Config struct {
	// Name of the reconstruction cost function: "mse", "xentropy", "huber" or "abs"
	ReconsCost string `json:"recons_cost"`

	// Divides each reconstruction cost by the size of the reconstruction
	CriterAvgFrameSize bool `json:"criter_avg_framesize"`

	L1Decay   float64 `json:"l1_decay"`
	L2Decay   float64 `json:"l2_decay"`
	BiasDecay float64 `json:"bias_decay"`

	// Name of the Penalty on encoder biases (see penalties.ByName); "l2" if empty
	BiasDecayType string `json:"bias_decay_type"`

	// Name of the Optimizer (see optimizers.ByName); "sgd" if empty
	Optimizer string `json:"optimizer"`

	// Learning rate of the unsupervised phases, and of the phases with a supervised criterion.
	UnsupLearningRate float64 `json:"unsup_learning_rate"`
	SupLearningRate   float64 `json:"sup_learning_rate"`

	// Each learning rate is divided by (1 + iter*LearningRateDecay) within a phase
	LearningRateDecay float64 `json:"learning_rate_decay"`

	// Iterations of pretraining for each layer, one at a time
	LayerwiseIters int `json:"layerwise_iters"`

	// Pretraining of the selected layers together
	SelectiveIters           int    `json:"selective_iters"`
	SelectiveLayers          []bool `json:"selective_layers"`
	SelectivePartialBackprop bool   `json:"selective_partial_backprop"`

	// Pretraining of every layer together; with TrainOutputer, the outputer is trained as well
	UnsupIters    int  `json:"unsup_iters"`
	TrainOutputer bool `json:"train_outputer"`

	// Joint supervised and unsupervised training, with reconstructions weighted by UnsupWeight
	SupUnsupIters int     `json:"sup_unsup_iters"`
	UnsupWeight   float64 `json:"unsup_weight"`

	// Supervised training of the outputer and the top TopK-1 encoders
	TopKIters int `json:"top_k_iters"`
	TopK      int `json:"top_k"`

	// Supervised training of everything. If FineTuneRates is set, it gives the learning rate of
	// each encoder and then the outputer, and must have one more element than there are hidden
	// layers.
	FineTuneIters int       `json:"fine_tune_iters"`
	FineTuneRates []float64 `json:"fine_tune_rates"`

	// Replaces the weights of the reconstruction criteria in the joint phases with ones
	// computed from the variance of the gradients, sampled over HessianSamples examples.
	EvalCriterionWeights bool    `json:"eval_criterion_weights"`
	HessianSamples       int     `json:"hessian_samples"`
	GradWarnThreshold    float64 `json:"grad_warn_threshold"`

	// A phase stops once the change in mean training cost between iterations is below this
	EndAccuracy float64 `json:"end_accuracy"`

	ProfileGradients bool `json:"profile_gradients"`

	// Set when the encoders are initialized from weight distributions instead of pretrained
	InitFromDistributions bool `json:"init_from_distributions"`

	// Seeds the shuffling of examples
	Seed int64 `json:"seed"`
}

// DefaultConfig returns the Config used when no other is given
func DefaultConfig() Config {
	return Config{
		ReconsCost:        "xentropy",
		BiasDecayType:     "l2",
		Optimizer:         "sgd",
		UnsupLearningRate: 0.01,
		SupLearningRate:   0.01,
		UnsupWeight:       1,
		TopK:              1,
		HessianSamples:    DefaultHessianSamples,
		GradWarnThreshold: DefaultGradWarnThreshold,
		EndAccuracy:       0.0001,
	}
}

func (c Config) optimizer() (bs.Optimizer, error) {
	if c.Optimizer == "" {
		return optimizers.ByName("sgd")
	}

	return optimizers.ByName(c.Optimizer)
}

// returns nil if there is no bias decay
func (c Config) biasPenalty() (bs.Penalty, error) {
	if c.BiasDecay == 0 {
		return nil, nil
	} else if c.BiasDecayType == "" {
		return penalties.ByName("l2", c.BiasDecay)
	}

	return penalties.ByName(c.BiasDecayType, c.BiasDecay)
}

// Pretraining returns whether any unsupervised pretraining phase is enabled
func (c Config) Pretraining() bool {
	return c.LayerwiseIters > 0 || c.SelectiveIters > 0 || c.UnsupIters > 0
}

// Validate checks the Config against the model it will train, returning a
// *deeptorch.ConfigError for the first problem found.
func (c Config) Validate(model sae.Config) error {
	if err := model.Validate(); err != nil {
		return err
	}

	n := model.NumLayers()

	budgets := []struct {
		field string
		v     int
	}{
		{"layerwise_iters", c.LayerwiseIters},
		{"selective_iters", c.SelectiveIters},
		{"unsup_iters", c.UnsupIters},
		{"sup_unsup_iters", c.SupUnsupIters},
		{"top_k_iters", c.TopKIters},
		{"fine_tune_iters", c.FineTuneIters},
		{"hessian_samples", c.HessianSamples},
	}

	for _, b := range budgets {
		if b.v < 0 {
			return &bs.ConfigError{Field: b.field, Reason: fmt.Sprintf("must not be negative (%d)", b.v)}
		}
	}

	cf, err := costfuncs.ByName(c.ReconsCost)
	if err != nil {
		return &bs.ConfigError{Field: "recons_cost", Reason: fmt.Sprintf("unknown cost function %q", c.ReconsCost)}
	}

	if cf.TypeString() == costfuncs.CrossEntropy().TypeString() && !model.Nonlinearity.Bounded() {
		return &bs.ConfigError{
			Field:  "recons_cost",
			Reason: fmt.Sprintf("cross-entropy requires sigmoid outputs, not %q", model.Nonlinearity),
		}
	}

	if _, err := c.optimizer(); err != nil {
		return &bs.ConfigError{Field: "optimizer", Reason: fmt.Sprintf("unknown optimizer %q", c.Optimizer)}
	} else if _, err := c.biasPenalty(); err != nil {
		return &bs.ConfigError{Field: "bias_decay_type", Reason: fmt.Sprintf("unknown penalty %q", c.BiasDecayType)}
	}

	if c.UnsupLearningRate < 0 || c.SupLearningRate < 0 || c.LearningRateDecay < 0 {
		return &bs.ConfigError{Field: "learning_rate", Reason: "learning rates and their decay must not be negative"}
	} else if c.UnsupWeight < 0 {
		return &bs.ConfigError{Field: "unsup_weight", Reason: fmt.Sprintf("must not be negative (%v)", c.UnsupWeight)}
	}

	if c.FineTuneIters > 0 && c.FineTuneRates != nil {
		if n > MaxFineTuneLayers {
			return &bs.ConfigError{
				Field:  "fine_tune_rates",
				Reason: fmt.Sprintf("per-layer rates support at most %d hidden layers, not %d", MaxFineTuneLayers, n),
			}
		} else if len(c.FineTuneRates) != n+1 {
			return &bs.ConfigError{
				Field:  "fine_tune_rates",
				Reason: fmt.Sprintf("need %d rates (one per hidden layer, then the outputer), got %d", n+1, len(c.FineTuneRates)),
			}
		}
	}

	if c.SelectiveIters > 0 {
		if n > MaxFineTuneLayers {
			return &bs.ConfigError{
				Field:  "selective_layers",
				Reason: fmt.Sprintf("selective pretraining supports at most %d hidden layers, not %d", MaxFineTuneLayers, n),
			}
		} else if len(c.SelectiveLayers) != n {
			return &bs.ConfigError{
				Field:  "selective_layers",
				Reason: fmt.Sprintf("need one flag per hidden layer (%d), got %d", n, len(c.SelectiveLayers)),
			}
		}
	}

	if c.TopKIters > 0 && (c.TopK < 1 || c.TopK > n+1) {
		return &bs.ConfigError{Field: "top_k", Reason: fmt.Sprintf("must be in [1, %d] (%d)", n+1, c.TopK)}
	}

	if c.InitFromDistributions && c.Pretraining() {
		return &bs.ConfigError{
			Field:  "init_from_distributions",
			Reason: "cannot initialize from distributions and also pretrain",
		}
	}

	if c.ProfileGradients && model.Noisy() {
		return &bs.ConfigError{Field: "profile_gradients", Reason: "cannot profile gradients of a noisy model"}
	}

	if c.EvalCriterionWeights && c.HessianSamples == 0 {
		return &bs.ConfigError{Field: "hessian_samples", Reason: "must be positive to evaluate criterion weights"}
	}

	return nil
}
