package costfuncs

type classNLL struct{}

// ClassNLL returns the negative log-likelihood of the target class, given outputs that are
// log-probabilities (such as from a LogSoftMax Coder) and one-hot targets. It implements
// deeptorch.CostFunction.
func ClassNLL() classNLL {
	return classNLL{}
}

func (c classNLL) TypeString() string {
	return "classnll"
}

func (c classNLL) Cost(outs, targets []float64) float64 {
	var sum float64
	for i := range outs {
		sum -= targets[i] * outs[i]
	}

	return sum
}

func (c classNLL) Deriv(outs, targets, ds []float64) {
	for i := range outs {
		ds[i] = -targets[i]
	}
}
