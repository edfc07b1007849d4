package datasets

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	bs "github.com/rbhambriiit/deeptorch"
	"gonum.org/v1/gonum/floats"
)

// LoadMat reads a MAT text file: a header line "rows cols", followed by one row per Example
// of whitespace-separated numbers. The first 'nInputs' columns are the inputs, and the last is the
// class index, which is turned into a one-hot target of size 'nClasses'.
//
// At most 'maxLoad' rows are read, unless maxLoad is not positive.
func LoadMat(r io.Reader, nInputs, nClasses, maxLoad int) (*Memory, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	sc.Split(bufio.ScanWords)

	next := func(what string) (float64, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return 0, errors.Wrapf(err, "Reading %s failed\n", what)
			}

			return 0, errors.Errorf("Unexpected end of file while reading %s", what)
		}

		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return 0, errors.Wrapf(err, "Parsing %s failed\n", what)
		}

		return v, nil
	}

	rowsF, err := next("number of rows")
	if err != nil {
		return nil, err
	}
	colsF, err := next("number of columns")
	if err != nil {
		return nil, err
	}

	rows, cols := int(rowsF), int(colsF)
	if rows < 0 || float64(rows) != rowsF || float64(cols) != colsF {
		return nil, errors.Errorf("Invalid header %v %v", rowsF, colsF)
	} else if cols != nInputs+1 {
		return nil, bs.SizeMismatchError{What: "Columns of MAT file", Got: cols, Want: nInputs + 1}
	}

	if maxLoad > 0 && maxLoad < rows {
		rows = maxLoad
	}

	data := &Memory{examples: make([]*bs.Example, 0, rows)}
	for i := 0; i < rows; i++ {
		ex := &bs.Example{Inputs: make([]float64, nInputs)}
		for j := range ex.Inputs {
			if ex.Inputs[j], err = next("row " + strconv.Itoa(i)); err != nil {
				return nil, err
			}
		}

		c, err := next("class of row " + strconv.Itoa(i))
		if err != nil {
			return nil, err
		}

		class := int(c)
		if float64(class) != c || class < 0 || class >= nClasses {
			return nil, errors.Errorf("Row %d has invalid class %v (%d classes)", i, c, nClasses)
		}

		ex.Targets = bs.OneHot(class, nClasses)
		data.Append(ex)
	}

	return data, nil
}

// LoadMatFile calls LoadMat on the file at 'path'
func LoadMatFile(path string, nInputs, nClasses, maxLoad int) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open file %q\n", path)
	}
	defer f.Close()

	data, err := LoadMat(f, nInputs, nClasses, maxLoad)
	if err != nil {
		return nil, errors.Wrapf(err, "Loading %q failed\n", path)
	}

	return data, nil
}

// WriteMat writes 'data' in the format read by LoadMat. Targets must be one-hot.
func WriteMat(w io.Writer, data bs.DataSet) error {
	if data.Len() == 0 {
		_, err := io.WriteString(w, "0 0\n")
		return err
	}

	bw := bufio.NewWriter(w)
	cols := len(data.Example(0).Inputs) + 1
	if _, err := bw.WriteString(strconv.Itoa(data.Len()) + " " + strconv.Itoa(cols) + "\n"); err != nil {
		return err
	}

	fields := make([]string, cols)
	for i := 0; i < data.Len(); i++ {
		ex := data.Example(i)
		for j, v := range ex.Inputs {
			fields[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}

		fields[cols-1] = strconv.Itoa(floats.MaxIdx(ex.Targets))
		if _, err := bw.WriteString(strings.Join(fields, " ") + "\n"); err != nil {
			return errors.Wrapf(err, "Writing row %d failed\n", i)
		}
	}

	return bw.Flush()
}
