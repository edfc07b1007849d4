package penalties

import (
	"math"
)

// **********************************************
// L1 (Lasso)
// **********************************************

type l1 float64

// λ is a small value close to 0 where λ > 0
func L1(λ float64) *l1 {
	p := l1(λ)
	return &p
}

// λ is a small value close to 0 where λ > 0
func Lasso(λ float64) *l1 {
	return L1(λ)
}

func (p *l1) TypeString() string {
	return "l1-lasso"
}

func (p *l1) Penalize(weights, grads []float64) {
	λ := float64(*p)
	for i, w := range weights {
		if w != 0 {
			grads[i] += λ * math.Copysign(1, w)
		}
	}
}

// **********************************************
// L2 (Ridge)
// **********************************************

type l2 float64

// λ is a small value close to 0 where λ > 0
func L2(λ float64) *l2 {
	p := l2(λ)
	return &p
}

// λ is a small value close to 0 where λ > 0
func Ridge(λ float64) *l2 {
	return L2(λ)
}

func (p *l2) TypeString() string {
	return "l2-ridge"
}

func (p *l2) Penalize(weights, grads []float64) {
	λ := float64(*p)
	for i, w := range weights {
		grads[i] += 2 * λ * w
	}
}
