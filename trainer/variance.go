package trainer

import (
	"log/slog"
	"math"

	bs "github.com/rbhambriiit/deeptorch"
	"github.com/rbhambriiit/deeptorch/utils"
	"gonum.org/v1/gonum/floats"
)

// the number of large gradient components logged per probe before only counting them
const maxGradWarnings int = 10

// GradStats accumulates samples of a gradient vector, to find the variance of each component.
type GradStats struct {
	sum, sumSq []float64
	n          int
}

// NewGradStats returns an empty GradStats for gradients of the given size
func NewGradStats(size int) *GradStats {
	return &GradStats{
		sum:   make([]float64, size),
		sumSq: make([]float64, size),
	}
}

// Add records one sample. 'g' must have the size given to NewGradStats.
func (s *GradStats) Add(g []float64) {
	floats.Add(s.sum, g)
	for i, v := range g {
		s.sumSq[i] += v * v
	}

	s.n++
}

// N returns the number of samples added
func (s *GradStats) N() int {
	return s.n
}

// Variances returns the population variance of each component. With no samples, every variance
// is zero.
func (s *GradStats) Variances() []float64 {
	vs := make([]float64, len(s.sum))
	if s.n == 0 {
		return vs
	}

	n := float64(s.n)
	utils.MultiThread(0, len(vs), func(i int) {
		mean := s.sum[i] / n
		v := s.sumSq[i]/n - mean*mean
		if v < 0 {
			// rounding
			v = 0
		}

		vs[i] = v
	}, 1024)

	return vs
}

// MaxVariance returns the index and value of the largest component variance. It returns -1 if
// there are no components.
func (s *GradStats) MaxVariance() (int, float64) {
	vs := s.Variances()
	if len(vs) == 0 {
		return -1, 0
	}

	i := floats.MaxIdx(vs)
	return i, vs[i]
}

// VarianceWeight returns the weight for a criterion whose gradient has variance 'layer', relative
// to a reference criterion with variance 'ref': sqrt(ref / layer). If 'layer' is zero, there is no
// usable weight and VarianceWeight returns false.
func VarianceWeight(ref, layer float64) (float64, bool) {
	if layer == 0 {
		return 0, false
	}

	return math.Sqrt(ref / layer), true
}

// gradientVariance runs the first 'samples' examples of 'data' forward and backward through 'g'
// with 'crit', returning the largest variance of any parameter's gradient. Gradients are left at
// zero.
func (t *Trainer) gradientVariance(g *bs.Graph, crit bs.Criterion, data bs.DataSet, samples int) (float64, error) {
	groups := bs.Unique(g.Params())
	defer bs.ClearGradients(groups)

	stats := NewGradStats(bs.CountParams(groups))
	flat := make([]float64, bs.CountParams(groups))

	var warnings int
	for k := 0; k < samples; k++ {
		ex := data.Example(k)

		bs.ClearGradients(groups)
		outs := g.Forward(ex.Inputs)
		beta, err := crit.Backward(outs, ex)
		if err != nil {
			return 0, err
		}

		g.Backward(ex.Inputs, beta)

		flat = flat[:0]
		for _, pg := range groups {
			for _, b := range pg.Blocks() {
				for i, v := range b.Grads {
					if math.Abs(v) > t.cfg.GradWarnThreshold {
						if warnings < maxGradWarnings {
							t.log.Warn("large gradient", slog.String("graph", g.Name()), slog.String("group", pg.Name()),
								slog.String("block", b.Name), slog.Int("index", i), slog.Float64("value", v))
						}
						warnings++
					}
				}

				flat = append(flat, b.Grads...)
			}
		}

		stats.Add(flat)
	}

	if warnings > maxGradWarnings {
		t.log.Warn("large gradients not logged", slog.String("graph", g.Name()), slog.Int("count", warnings-maxGradWarnings))
	}

	_, v := stats.MaxVariance()
	return v, nil
}

// reweight sets the weight of each reconstruction criterion in t.weights from the variance of its
// gradient relative to that of the supervised criterion. A layer whose gradient has no variance
// keeps its previous weight.
func (t *Trainer) reweight(data bs.DataSet) error {
	samples := t.cfg.HessianSamples
	if samples > data.Len() {
		samples = data.Len()
	}

	ref, err := t.gradientVariance(t.m.Supervised(), t.sup, data, samples)
	if err != nil {
		return err
	}

	t.weights[0] = 1
	for i := 0; i < t.m.NumLayers(); i++ {
		v, err := t.gradientVariance(t.m.Chained(i), t.unsup[i], data, samples)
		if err != nil {
			return err
		}

		w, ok := VarianceWeight(ref, v)
		if !ok {
			t.log.Warn("reconstruction gradient has no variance, keeping weight",
				slog.Int("layer", i), slog.Float64("weight", t.weights[1+i]))
			continue
		}

		t.weights[1+i] = w
	}

	t.log.Info("criterion weights", slog.Float64("sup_variance", ref), slog.Any("weights", t.weights))
	return nil
}
