package optimizers

import bs "github.com/rbhambriiit/deeptorch"

func init() {
	list := map[string]func() bs.Optimizer{
		"sgd": func() bs.Optimizer { return GradientDescent() },
	}

	for s, f := range list {
		err := bs.RegisterOptimizer(s, f)
		if err != nil {
			panic(err.Error())
		}
	}
}

// ByName returns a new instance of the Optimizer registered as 'name'
func ByName(name string) (bs.Optimizer, error) {
	return bs.NewOptimizer(name)
}
