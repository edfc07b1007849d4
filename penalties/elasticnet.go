package penalties

import (
	"math"

	bs "github.com/rbhambriiit/deeptorch"
)

type elasticNet struct {
	α float64
	λ float64
}

// λ is a small value close to 0 where λ > 0,
// α is a value that controls the ratio between L1 and L2
// Regularization, where 0 ≤ a ≤ 1. a = 1 is functionally identical to L1 and a = 0 is equivalent to
// L2.
func ElasticNet(α, λ float64) *elasticNet {
	return &elasticNet{α, λ}
}

func (p *elasticNet) TypeString() string {
	return "elastic-net"
}

func (p *elasticNet) Penalize(weights, grads []float64) {
	for i, w := range weights {
		var sign float64
		if w != 0 {
			sign = math.Copysign(1, w)
		}

		grads[i] += p.λ * ((1-p.α)*2*w + p.α*sign)
	}
}

// Combine returns the Penalty for separate L1 and L2 strengths: nil if both are zero, and
// otherwise whichever of L1, L2 or ElasticNet gives the sum of the two.
func Combine(l1, l2 float64) bs.Penalty {
	switch {
	case l1 == 0 && l2 == 0:
		return nil
	case l2 == 0:
		return L1(l1)
	case l1 == 0:
		return L2(l2)
	}

	// λ(1-α)·2w + λα·sign(w) == 2·l2·w + l1·sign(w)
	λ := l1 + l2
	return ElasticNet(l1/λ, λ)
}
