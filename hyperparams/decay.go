package hyperparams

type decay struct {
	base, rate float64
}

// Decay returns a HyperParameter equal to base / (1 + iter*rate). With a rate of zero, it is the
// same as Constant(base).
func Decay(base, rate float64) *decay {
	return &decay{base, rate}
}

func (d *decay) TypeString() string {
	return "decay"
}

func (d *decay) Value(iter int) float64 {
	return d.base / (1 + float64(iter)*d.rate)
}
