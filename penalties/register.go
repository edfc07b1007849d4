package penalties

import (
	bs "github.com/rbhambriiit/deeptorch"
)

func init() {
	list := map[string]func(float64) bs.Penalty{
		L1(0).TypeString(): func(λ float64) bs.Penalty { return L1(λ) },
		L2(0).TypeString(): func(λ float64) bs.Penalty { return L2(λ) },
		"l1":               func(λ float64) bs.Penalty { return L1(λ) },
		"l2":               func(λ float64) bs.Penalty { return L2(λ) },
	}

	for s, f := range list {
		if err := bs.RegisterPenalty(s, f); err != nil {
			panic(err)
		}
	}
}

// ByName returns the Penalty registered as 'name', with strength λ
func ByName(name string, λ float64) (bs.Penalty, error) {
	return bs.NewPenalty(name, λ)
}
