// Command mnist converts MNIST into the MAT files read by the sae command.
//
// The input is either the directory of the four original gzipped files (-dir), or the CSV release
// (-csv_train and -csv_test), with rows of the form
//
//	<class>,img[0],img[1],...,img[783]
//
// where each pixel is an integer in [0, 255]. Pixels are scaled to [0, 1]. The training set may be
// split, with its last -valid examples written as a separate validation set.
package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	bs "github.com/rbhambriiit/deeptorch"
	"github.com/rbhambriiit/deeptorch/datasets"
)

const (
	imgSize  int     = 784 // 28x28
	maxInput float64 = 255
)

type options struct {
	dir               string
	csvTrain, csvTest string
	out               string
	maxLoad           int
	valid             int
}

func loadCSV(path string, maxLoad int) (*datasets.Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open file %q\n", path)
	}
	defer f.Close()

	data, err := datasets.LoadCSV(f, imgSize, datasets.MNISTClasses, maxInput, maxLoad)
	if err != nil {
		return nil, errors.Wrapf(err, "Loading %q failed\n", path)
	}

	return data, nil
}

func writeMat(path string, data bs.DataSet) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to create file %q\n", path)
	}

	if err = datasets.WriteMat(f, data); err != nil {
		f.Close()
		return errors.Wrapf(err, "Writing %q failed\n", path)
	}

	return f.Close()
}

func run(o *options, log *slog.Logger) error {
	var train, test *datasets.Memory
	var err error

	switch {
	case o.dir != "":
		train, test, err = datasets.LoadMNIST(o.dir, o.maxLoad)
	case o.csvTrain != "" && o.csvTest != "":
		if train, err = loadCSV(o.csvTrain, o.maxLoad); err == nil {
			test, err = loadCSV(o.csvTest, o.maxLoad)
		}
	default:
		return errors.New("Either -dir or both -csv_train and -csv_test must be given")
	}

	if err != nil {
		return err
	}

	log.Info("loaded MNIST", slog.Int("train", train.Len()), slog.Int("test", test.Len()))

	if o.valid < 0 || o.valid >= train.Len() {
		return errors.Errorf("Validation set size %d must be in [0, %d)", o.valid, train.Len())
	}

	if err := os.MkdirAll(o.out, 0755); err != nil {
		return errors.Wrapf(err, "Failed to create directory %q\n", o.out)
	}

	split := train.Len() - o.valid
	sets := []struct {
		name string
		data bs.DataSet
	}{
		{"train.mat", datasets.NewSubset(train, 0, split)},
		{"valid.mat", datasets.NewSubset(train, split, train.Len())},
		{"test.mat", test},
	}

	for _, s := range sets {
		if s.data.Len() == 0 {
			continue
		}

		path := filepath.Join(o.out, s.name)
		if err := writeMat(path, s.data); err != nil {
			return err
		}

		log.Info("wrote set", slog.String("path", path), slog.Int("examples", s.data.Len()))
	}

	return nil
}

func main() {
	o := new(options)

	flag.StringVar(&o.dir, "dir", "", "directory with the original gzipped MNIST files")
	flag.StringVar(&o.csvTrain, "csv_train", "", "training set, as CSV")
	flag.StringVar(&o.csvTest, "csv_test", "", "test set, as CSV")
	flag.StringVar(&o.out, "out", ".", "directory to write the MAT files to")
	flag.IntVar(&o.maxLoad, "max_load", 0, "maximum number of examples to load from each set (0 for all)")
	flag.IntVar(&o.valid, "valid", 0, "number of training examples to split off as a validation set")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(o, log); err != nil {
		log.Error("conversion failed", "error", err)
		os.Exit(1)
	}
}
