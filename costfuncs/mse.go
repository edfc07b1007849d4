package costfuncs

type mse struct{}

// MSE returns the squared error cost function, which implements deeptorch.CostFunction. The cost
// is the sum of 0.5*(out - target)^2 over all outputs.
func MSE() mse {
	return mse{}
}

// L2 is a proxy for MSE
func L2() mse {
	return MSE()
}

func (m mse) TypeString() string {
	return "mse"
}

func (m mse) Cost(outs, targets []float64) float64 {
	var sum float64
	for i := range outs {
		d := outs[i] - targets[i]
		sum += 0.5 * d * d
	}

	return sum
}

func (m mse) Deriv(outs, targets, ds []float64) {
	for i := range outs {
		ds[i] = outs[i] - targets[i]
	}
}
