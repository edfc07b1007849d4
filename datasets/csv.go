package datasets

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"
	bs "github.com/rbhambriiit/deeptorch"
)

// LoadCSV reads Examples from comma-separated rows of the form
//	<class>,in[0],in[1],...,in[nInputs-1]
// as in the common CSV release of MNIST. Each input is divided by 'scale', and the class is turned
// into a one-hot target of size 'nClasses'.
//
// At most 'maxLoad' rows are read, unless maxLoad is not positive.
func LoadCSV(r io.Reader, nInputs, nClasses int, scale float64, maxLoad int) (*Memory, error) {
	if scale == 0 {
		return nil, errors.Errorf("Scale must not be zero")
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = nInputs + 1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	data := NewMemory(nil)
	for i := 0; maxLoad <= 0 || i < maxLoad; i++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Wrapf(err, "Reading row %d failed\n", i)
		}

		class, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, errors.Wrapf(err, "Parsing class of row %d failed\n", i)
		} else if class < 0 || class >= nClasses {
			return nil, errors.Errorf("Row %d has invalid class %d (%d classes)", i, class, nClasses)
		}

		ex := &bs.Example{Inputs: make([]float64, nInputs), Targets: bs.OneHot(class, nClasses)}
		for j, s := range rec[1:] {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "Parsing input %d of row %d failed\n", j, i)
			}

			ex.Inputs[j] = v / scale
		}

		data.Append(ex)
	}

	return data, nil
}
