package deeptorch

import (
	"gonum.org/v1/gonum/floats"
)

// CorrectHighest returns whether or not the largest value in each is at the same index. It is the
// usual test of correctness for classification with one-hot targets.
func CorrectHighest(outs, targets []float64) bool {
	if len(outs) == 0 || len(outs) != len(targets) {
		return false
	}

	return floats.MaxIdx(outs) == floats.MaxIdx(targets)
}

// OneHot returns a slice of length 'n' with a 1 at index 'class'
func OneHot(class, n int) []float64 {
	t := make([]float64, n)
	t[class] = 1
	return t
}
