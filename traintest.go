package deeptorch

import (
	"bufio"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// Example is a single training or testing sample.
type Example struct {
	// Inputs must have the same size as the inputs of the Graph it is given to.
	Inputs []float64

	// Targets are the expected outputs of a supervised Graph, typically one-hot. Unsupervised
	// criteria ignore them, reading their targets from the model instead.
	Targets []float64
}

// DataSet is the source of Examples for both training and testing. The returned Example is only
// required to be valid until the next call to Example.
type DataSet interface {
	Len() int
	Example(i int) *Example
}

// Evaluate runs every Example of 'data' through 'g', returning the mean loss from 'crit' and the
// fraction of Examples for which 'isCorrect' returned false. If 'isCorrect' is nil, the
// classification error returned is zero.
//
// Evaluate does not touch any gradients.
func Evaluate(g *Graph, crit Criterion, data DataSet, isCorrect func(outs, targets []float64) bool) (cost, classErr float64, err error) {
	if data.Len() == 0 {
		return 0, 0, nil
	}

	var wrong int
	for i := 0; i < data.Len(); i++ {
		ex := data.Example(i)
		outs := g.Forward(ex.Inputs)

		l, err := crit.Forward(outs, ex)
		if err != nil {
			return 0, 0, errors.Wrapf(err, "Evaluating example %d failed\n", i)
		}

		cost += l
		if isCorrect != nil && !isCorrect(outs, ex.Targets) {
			wrong++
		}
	}

	n := float64(data.Len())
	return cost / n, float64(wrong) / n, nil
}

// WriteOutputs writes the outputs of 'g' for each Example of 'data' to 'w', one line per Example,
// with values separated by spaces.
func WriteOutputs(w io.Writer, g *Graph, data DataSet) error {
	bw := bufio.NewWriter(w)

	var line []byte
	for i := 0; i < data.Len(); i++ {
		outs := g.Forward(data.Example(i).Inputs)

		line = line[:0]
		for j, v := range outs {
			if j != 0 {
				line = append(line, ' ')
			}

			line = strconv.AppendFloat(line, v, 'g', -1, 64)
		}

		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return errors.Wrapf(err, "Writing outputs of example %d failed\n", i)
		}
	}

	if err := bw.Flush(); err != nil {
		return errors.Wrapf(err, "Flushing outputs failed\n")
	}

	return nil
}
