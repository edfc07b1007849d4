package costfuncs

import (
	bs "github.com/rbhambriiit/deeptorch"
)

// DefaultHuberDelta is the δ used by the Huber cost function when it is created by name
const DefaultHuberDelta float64 = 1.0

func init() {
	list := map[string]func() bs.CostFunction{
		MSE().TypeString():          func() bs.CostFunction { return MSE() },
		Abs().TypeString():          func() bs.CostFunction { return Abs() },
		CrossEntropy().TypeString(): func() bs.CostFunction { return CrossEntropy() },
		ClassNLL().TypeString():     func() bs.CostFunction { return ClassNLL() },
		"huber":                     func() bs.CostFunction { return Huber(DefaultHuberDelta) },
	}

	for s, f := range list {
		err := bs.RegisterCostFunction(s, f)
		if err != nil {
			panic(err.Error())
		}
	}
}

// ByName returns a new instance of the CostFunction registered as 'name'
func ByName(name string) (bs.CostFunction, error) {
	return bs.NewCostFunction(name)
}
