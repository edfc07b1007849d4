// Command sae trains a stacked autoencoder classifier.
//
// The model and training are configured by flags, or by a JSON file given with -config, whose
// values override the flags:
//
//	{"model": {...sae.Config...}, "train": {...trainer.Config...}}
//
// Data is read either from MAT files (-train, -valid, -test) or from the MNIST directory given
// with -mnist. Results of each phase are appended to a text file in -dir, and optionally to a
// SQLite database.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	bs "github.com/rbhambriiit/deeptorch"
	"github.com/rbhambriiit/deeptorch/datasets"
	"github.com/rbhambriiit/deeptorch/hyperparams"
	"github.com/rbhambriiit/deeptorch/initializers"
	"github.com/rbhambriiit/deeptorch/layers"
	"github.com/rbhambriiit/deeptorch/results"
	"github.com/rbhambriiit/deeptorch/sae"
	"github.com/rbhambriiit/deeptorch/trainer"
)

// number of bins in the weight histograms written by -save_histograms
const histogramBins int = 100

type fileConfig struct {
	Model sae.Config     `json:"model"`
	Train trainer.Config `json:"train"`
}

type options struct {
	configPath string

	trainPath, validPath, testPath string
	mnistDir                       string
	maxLoad                        int

	dir        string
	resultsDB  string
	runName    string
	loadModel  string
	saveOuts   bool
	saveHists  bool
	weightHist string
	biasHist   string
	verbose    bool

	hidden  string
	lrSteps string
	cfg     fileConfig
}

func parseFlags() (*options, error) {
	o := &options{cfg: fileConfig{Train: trainer.DefaultConfig()}}
	m, t := &o.cfg.Model, &o.cfg.Train

	flag.StringVar(&o.configPath, "config", "", "JSON file with the model and training configuration")

	flag.StringVar(&o.trainPath, "train", "", "training set, as a MAT file")
	flag.StringVar(&o.validPath, "valid", "", "validation set, as a MAT file")
	flag.StringVar(&o.testPath, "test", "", "test set, as a MAT file")
	flag.StringVar(&o.mnistDir, "mnist", "", "directory with the MNIST files, instead of MAT files")
	flag.IntVar(&o.maxLoad, "max_load", 0, "maximum number of examples to load from each set (0 for all)")

	flag.StringVar(&o.dir, "dir", ".", "directory for models, results and outputs")
	flag.StringVar(&o.resultsDB, "results_db", "", "SQLite database to also record results to")
	flag.StringVar(&o.runName, "run", "sae", "name of the run in the results database")
	flag.StringVar(&o.loadModel, "load", "", "load parameters from this file instead of initializing")
	flag.BoolVar(&o.saveOuts, "save_outputs", false, "write the outputs of the model on each set")
	flag.BoolVar(&o.saveHists, "save_histograms", false, "write histograms of the trained encoder parameters")
	flag.StringVar(&o.weightHist, "weight_hist", "", "histogram to initialize encoder weights from")
	flag.StringVar(&o.biasHist, "bias_hist", "", "histogram to initialize encoder biases from")
	flag.BoolVar(&o.verbose, "v", false, "log at debug level")

	flag.IntVar(&m.Inputs, "n_inputs", 784, "number of inputs")
	flag.IntVar(&m.Outputs, "n_classes", 10, "number of classes")
	flag.StringVar(&o.hidden, "hidden", "500,500", "comma-separated sizes of the hidden layers")
	nonlin := flag.String("nonlinearity", string(layers.Sigmoid), "nonlinearity of the hidden layers")
	flag.BoolVar(&m.TiedWeights, "tied", false, "tie the weights of each decoder to its encoder")
	flag.Float64Var(&m.CorruptProb, "corrupt_prob", 0, "probability of corrupting each input of an autoencoder")
	flag.Float64Var(&m.CorruptValue, "corrupt_value", 0, "value corrupted inputs are set to")
	flag.StringVar(&m.Init, "init", "", "weight initializer")
	flag.Int64Var(&m.Seed, "seed", 1, "random seed")

	flag.StringVar(&t.ReconsCost, "recons_cost", t.ReconsCost, "reconstruction cost: mse, xentropy, huber or abs")
	flag.BoolVar(&t.CriterAvgFrameSize, "criter_avg_framesize", false, "divide reconstruction costs by their size")
	flag.Float64Var(&t.UnsupLearningRate, "unsup_lr", t.UnsupLearningRate, "learning rate of unsupervised phases")
	flag.Float64Var(&t.SupLearningRate, "sup_lr", t.SupLearningRate, "learning rate of supervised phases")
	flag.Float64Var(&t.LearningRateDecay, "lr_decay", 0, "learning rate decay")
	flag.Float64Var(&t.L1Decay, "l1_decay", 0, "L1 weight decay")
	flag.Float64Var(&t.L2Decay, "l2_decay", 0, "L2 weight decay")
	flag.Float64Var(&t.BiasDecay, "bias_decay", 0, "decay of encoder biases")
	flag.StringVar(&t.BiasDecayType, "bias_decay_type", t.BiasDecayType, "penalty on encoder biases: l1 or l2")
	flag.StringVar(&t.Optimizer, "optimizer", t.Optimizer, "optimizer")
	flag.StringVar(&o.lrSteps, "sup_lr_steps", "", "learning rate steps of supervised phases, as iter:rate,...")
	flag.IntVar(&t.LayerwiseIters, "layerwise_iters", 0, "iterations of layerwise pretraining, per layer")
	flag.IntVar(&t.UnsupIters, "unsup_iters", 0, "iterations of joint unsupervised training")
	flag.BoolVar(&t.TrainOutputer, "train_outputer", false, "train the outputer during joint unsupervised training")
	flag.IntVar(&t.SupUnsupIters, "sup_unsup_iters", 0, "iterations of joint supervised and unsupervised training")
	flag.Float64Var(&t.UnsupWeight, "unsup_weight", t.UnsupWeight, "weight of the reconstructions in joint training")
	flag.IntVar(&t.TopKIters, "top_k_iters", 0, "iterations of top-K supervised training")
	flag.IntVar(&t.TopK, "top_k", t.TopK, "number of layers trained by top-K training")
	flag.IntVar(&t.FineTuneIters, "fine_tune_iters", 0, "iterations of supervised fine-tuning")
	flag.BoolVar(&t.EvalCriterionWeights, "eval_criterion_weights", false, "weight criteria by their gradient variance")
	flag.Float64Var(&t.EndAccuracy, "end_accuracy", t.EndAccuracy, "end a phase once the cost changes by less than this")
	flag.BoolVar(&t.ProfileGradients, "profile_gradients", false, "profile gradients during joint training")

	flag.Parse()

	m.Nonlinearity = layers.Nonlinearity(*nonlin)
	t.Seed = m.Seed

	for _, s := range strings.Split(o.hidden, ",") {
		h, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, errors.Wrapf(err, "Invalid hidden layer size %q\n", s)
		}

		m.Hidden = append(m.Hidden, h)
	}

	if o.configPath != "" {
		f, err := os.Open(o.configPath)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to open config %q\n", o.configPath)
		}
		defer f.Close()

		if err := json.NewDecoder(f).Decode(&o.cfg); err != nil {
			return nil, errors.Wrapf(err, "Decoding config %q failed\n", o.configPath)
		}
	}

	t.InitFromDistributions = t.InitFromDistributions || o.weightHist != "" || o.biasHist != ""
	return o, nil
}

// stepRate parses -sup_lr_steps into a function giving the schedule of a phase starting at a base
// rate. It returns nil if no steps were given.
func (o *options) stepRate() (func(base float64) bs.HyperParameter, error) {
	if o.lrSteps == "" {
		return nil, nil
	}

	type step struct {
		iter int
		rate float64
	}

	var steps []step
	for _, s := range strings.Split(o.lrSteps, ",") {
		parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("Invalid learning rate step %q", s)
		}

		iter, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, errors.Wrapf(err, "Invalid iteration in step %q\n", s)
		}
		rate, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "Invalid rate in step %q\n", s)
		}

		if len(steps) != 0 && iter <= steps[len(steps)-1].iter {
			return nil, errors.Errorf("Learning rate steps must be in increasing order of iteration")
		}

		steps = append(steps, step{iter, rate})
	}

	return func(base float64) bs.HyperParameter {
		h := hyperparams.Step(base)
		for _, s := range steps {
			h.Add(s.iter, s.rate)
		}

		return h
	}, nil
}

func (o *options) loadData() (train, valid, test bs.DataSet, err error) {
	m := o.cfg.Model

	if o.mnistDir != "" {
		tr, te, err := datasets.LoadMNIST(o.mnistDir, o.maxLoad)
		if err != nil {
			return nil, nil, nil, err
		}

		return tr, nil, te, nil
	}

	if o.trainPath == "" {
		return nil, nil, nil, errors.Errorf("No training data; set -train or -mnist")
	}

	load := func(path string) (bs.DataSet, error) {
		if path == "" {
			return nil, nil
		}

		return datasets.LoadMatFile(path, m.Inputs, m.Outputs, o.maxLoad)
	}

	if train, err = load(o.trainPath); err != nil {
		return
	} else if valid, err = load(o.validPath); err != nil {
		return
	} else if test, err = load(o.testPath); err != nil {
		return
	}

	return train, valid, test, nil
}

func loadHistogram(path string) (*initializers.Histogram, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open histogram %q\n", path)
	}
	defer f.Close()

	return initializers.LoadHistogram(f)
}

// initModel creates the model, and sets its parameters from a saved model or from histograms if
// requested
func (o *options) initModel() (*sae.Model, error) {
	m, err := sae.New(o.cfg.Model)
	if err != nil {
		return nil, err
	}

	if o.loadModel != "" {
		return m, m.LoadFile(o.loadModel)
	}

	if !o.cfg.Train.InitFromDistributions {
		return m, nil
	}

	if o.weightHist == "" || o.biasHist == "" {
		return nil, errors.Errorf("Both -weight_hist and -bias_hist are required")
	}

	wh, err := loadHistogram(o.weightHist)
	if err != nil {
		return nil, err
	}
	bh, err := loadHistogram(o.biasHist)
	if err != nil {
		return nil, err
	}

	return m, m.InitFromDistributions(wh, bh)
}

// saveHistograms writes histograms of every encoder weight and bias
func saveHistograms(m *sae.Model, dir string) error {
	var ws, bvs []float64
	for i := 0; i < m.NumLayers(); i++ {
		ws = append(ws, m.Encoder(i).Weights().Values...)
		bvs = append(bvs, m.Encoder(i).Biases().Values...)
	}

	for name, vs := range map[string][]float64{"weights.hist": ws, "biases.hist": bvs} {
		h, err := initializers.NewHistogram(vs, histogramBins)
		if err != nil {
			return errors.Wrapf(err, "Making histogram %s failed\n", name)
		}

		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrapf(err, "Failed to create file %q\n", path)
		}

		err = h.Save(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return errors.Wrapf(err, "Writing histogram %q failed\n", path)
		}
	}

	return nil
}

func saveOutputs(m *sae.Model, dir string, sets map[string]bs.DataSet) error {
	for name, data := range sets {
		if data == nil {
			continue
		}

		path := filepath.Join(dir, "outputs_"+name)
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrapf(err, "Failed to create file %q\n", path)
		}

		err = bs.WriteOutputs(f, m.Supervised(), data)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return errors.Wrapf(err, "Writing outputs of %s set failed\n", name)
		}
	}

	return nil
}

func run(o *options, log *slog.Logger) error {
	if err := os.MkdirAll(o.dir, 0755); err != nil {
		return errors.Wrapf(err, "Failed to create directory %q\n", o.dir)
	}

	train, valid, test, err := o.loadData()
	if err != nil {
		return errors.Wrapf(err, "Loading data failed\n")
	}

	log.Info("loaded data", "train", train.Len(), "valid", lenOf(valid), "test", lenOf(test))

	m, err := o.initModel()
	if err != nil {
		return errors.Wrapf(err, "Creating model failed\n")
	}

	var profOut *os.File
	opts := []trainer.Option{trainer.WithLogger(log), trainer.WithEvaluation(valid, test)}
	if o.cfg.Train.ProfileGradients {
		path := filepath.Join(o.dir, "gradient_profile")
		if profOut, err = os.Create(path); err != nil {
			return errors.Wrapf(err, "Failed to create file %q\n", path)
		}
		defer profOut.Close()

		opts = append(opts, trainer.WithProfileOutput(profOut))
	}

	tr, err := trainer.New(m, o.cfg.Train, opts...)
	if err != nil {
		return errors.Wrapf(err, "Creating trainer failed\n")
	}

	if err := m.SaveFile(filepath.Join(o.dir, "model_init")); err != nil {
		return err
	}

	var db *results.SQLite
	if o.resultsDB != "" {
		if db, err = results.OpenSQLite(o.resultsDB, o.runName); err != nil {
			return err
		}
		defer db.Close()
	}

	sinkFor := func(p trainer.Phase) (results.Sink, error) {
		text, err := results.AppendText(filepath.Join(o.dir, "results_"+p.String()))
		if err != nil {
			return nil, err
		}

		if db == nil {
			return text, nil
		}

		return results.Multi(text, results.NopCloser(db)), nil
	}

	stages := trainer.Schedule(o.cfg.Train, m.NumLayers())

	rate, err := o.stepRate()
	if err != nil {
		return err
	} else if rate != nil {
		for i := range stages {
			if !stages[i].Phase.Pretraining() {
				stages[i].Rate = rate(stages[i].LearningRate)
			}
		}
	}

	// pretraining stages come first, so the model is saved once they are all done
	var split int
	for split < len(stages) && stages[split].Phase.Pretraining() {
		split++
	}

	if err := tr.RunSchedule(stages[:split], train, sinkFor); err != nil {
		return err
	}

	if split > 0 {
		if err := m.SaveFile(filepath.Join(o.dir, "model_pretrained")); err != nil {
			return err
		}
	}

	if err := tr.RunSchedule(stages[split:], train, sinkFor); err != nil {
		return err
	}

	if err := m.SaveFile(filepath.Join(o.dir, "model_final")); err != nil {
		return err
	}

	if o.saveOuts {
		sets := map[string]bs.DataSet{"train": train, "valid": valid, "test": test}
		if err := saveOutputs(m, o.dir, sets); err != nil {
			return err
		}
	}

	if o.saveHists {
		if err := saveHistograms(m, o.dir); err != nil {
			return err
		}
	}

	return nil
}

func lenOf(d bs.DataSet) int {
	if d == nil {
		return 0
	}

	return d.Len()
}

func main() {
	o, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(o, log); err != nil {
		log.Error("training failed", "error", err)
		os.Exit(1)
	}
}
