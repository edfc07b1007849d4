// Command xor trains a small stacked autoencoder on the XOR problem, then checks that saving and
// reloading the model leaves its outputs unchanged.
package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	bs "github.com/rbhambriiit/deeptorch"
	"github.com/rbhambriiit/deeptorch/costfuncs"
	"github.com/rbhambriiit/deeptorch/datasets"
	"github.com/rbhambriiit/deeptorch/layers"
	"github.com/rbhambriiit/deeptorch/sae"
	"github.com/rbhambriiit/deeptorch/trainer"
)

const (
	statusFrequency int = 100

	learningRate  float64 = 0.5
	pretrainIters int     = 200
	maxIterations int     = 2000
)

func dataset() bs.DataSet {
	xs := [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}

	var exs []*bs.Example
	for _, x := range xs {
		class := int(x[0]) ^ int(x[1])
		exs = append(exs, &bs.Example{Inputs: x, Targets: bs.OneHot(class, 2)})
	}

	return datasets.NewMemory(exs)
}

func test(m *sae.Model, data bs.DataSet) (float64, error) {
	cost, classErr, err := bs.Evaluate(m.Supervised(), costfuncs.Supervised(costfuncs.ClassNLL()), data, bs.CorrectHighest)
	if err != nil {
		return 0, err
	}

	fmt.Printf("Test cost %g, class error %g\n", cost, classErr)
	return classErr, nil
}

func run(log *slog.Logger) error {
	mc := sae.Config{
		Inputs:       2,
		Hidden:       []int{4, 4},
		Outputs:      2,
		Nonlinearity: layers.Sigmoid,
		Seed:         1,
	}

	m, err := sae.New(mc)
	if err != nil {
		return errors.Wrapf(err, "Setting up model failed\n")
	}

	cfg := trainer.DefaultConfig()
	cfg.ReconsCost = "mse"
	cfg.LayerwiseIters = pretrainIters
	cfg.FineTuneIters = maxIterations
	cfg.UnsupLearningRate = learningRate
	cfg.SupLearningRate = learningRate
	cfg.EndAccuracy = 1e-7

	hooks := trainer.Hooks{
		BeforePhase: func(p trainer.Phase) {
			fmt.Printf("Phase %s\nIteration, Cost, Class error\n", p)
		},
		AfterIteration: func(p trainer.Phase, s trainer.Stats) {
			if s.Iteration%statusFrequency == 0 {
				fmt.Printf("%d, %g, %g\n", s.Iteration, s.Cost, s.ClassError)
			}
		},
	}

	t, err := trainer.New(m, cfg, trainer.WithLogger(log), trainer.WithHooks(hooks))
	if err != nil {
		return err
	}

	data := dataset()
	if err := t.RunSchedule(trainer.Schedule(cfg, mc.NumLayers()), data, nil); err != nil {
		return errors.Wrapf(err, "Training failed\n")
	}

	before, err := test(m, data)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := m.Save(&buf); err != nil {
		return err
	}

	mc.Seed = 2
	loaded, err := sae.New(mc)
	if err != nil {
		return err
	} else if err := loaded.Load(&buf); err != nil {
		return err
	}

	after, err := test(loaded, data)
	if err != nil {
		return err
	} else if after != before {
		return errors.Errorf("Reloaded model has class error %g, expected %g", after, before)
	}

	return nil
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if err := run(log); err != nil {
		log.Error("xor failed", "error", err)
		os.Exit(1)
	}
}
