package datasets

import (
	"github.com/petar/GoMNIST"
	"github.com/pkg/errors"
	bs "github.com/rbhambriiit/deeptorch"
)

// MNISTClasses is the number of digit classes
const MNISTClasses int = 10

// FromMNIST converts up to 'maxLoad' images of an MNIST set into Examples, with pixels scaled to
// [0, 1] and one-hot targets. If maxLoad is not positive, every image is converted.
func FromMNIST(set *GoMNIST.Set, maxLoad int) (*Memory, error) {
	if set == nil {
		return nil, bs.NilArg("MNIST set")
	} else if len(set.Images) != len(set.Labels) {
		return nil, bs.SizeMismatchError{What: "MNIST labels", Got: len(set.Labels), Want: len(set.Images)}
	}

	n := len(set.Images)
	if maxLoad > 0 && maxLoad < n {
		n = maxLoad
	}

	size := set.NRow * set.NCol
	data := &Memory{examples: make([]*bs.Example, n)}
	for i := 0; i < n; i++ {
		img := set.Images[i]
		if len(img) != size {
			return nil, errors.Errorf("Image %d has %d pixels, expected %d", i, len(img), size)
		}

		ex := &bs.Example{Inputs: make([]float64, size)}
		for j, p := range img {
			ex.Inputs[j] = float64(p) / 255
		}

		label := int(set.Labels[i])
		if label >= MNISTClasses {
			return nil, errors.Errorf("Image %d has invalid label %d", i, label)
		}

		ex.Targets = bs.OneHot(label, MNISTClasses)
		data.examples[i] = ex
	}

	return data, nil
}

// LoadMNIST reads the MNIST training and test sets from the directory 'dir', which must hold the
// four original gzipped files, converting up to 'maxLoad' images of each.
func LoadMNIST(dir string, maxLoad int) (train, test *Memory, err error) {
	trainSet, testSet, err := GoMNIST.Load(dir)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "Loading MNIST from %q failed\n", dir)
	}

	if train, err = FromMNIST(trainSet, maxLoad); err != nil {
		return nil, nil, errors.Wrapf(err, "Converting MNIST training set failed\n")
	} else if test, err = FromMNIST(testSet, maxLoad); err != nil {
		return nil, nil, errors.Wrapf(err, "Converting MNIST test set failed\n")
	}

	return train, test, nil
}
