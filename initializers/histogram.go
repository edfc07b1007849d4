package initializers

import (
	"encoding/json"
	"io"
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Histogram is an RNG that draws from the empirical distribution of a set of samples, typically
// the weights of a previously trained model. A bin is chosen in proportion to its count, and the
// value is then uniform within that bin.
//
// The exported fields are stored by Save.
type Histogram struct {
	Dividers []float64 `json:"dividers"`
	Counts   []float64 `json:"counts"`

	// cumulative counts, for choosing bins
	cum []float64
}

// NewHistogram bins 'samples' into 'nBins' equal-width bins spanning their range.
func NewHistogram(samples []float64, nBins int) (*Histogram, error) {
	if len(samples) == 0 {
		return nil, errors.Errorf("Histogram needs at least one sample")
	} else if nBins < 1 {
		return nil, errors.Errorf("Histogram must have at least one bin (%d)", nBins)
	}

	x := make([]float64, len(samples))
	copy(x, samples)
	sort.Float64s(x)

	lo, hi := x[0], x[len(x)-1]
	if lo == hi {
		hi = lo + 1
	}

	dividers := make([]float64, nBins+1)
	floats.Span(dividers, lo, hi)
	// the last divider is exclusive
	dividers[nBins] = math.Nextafter(hi, math.Inf(1))

	h := &Histogram{
		Dividers: dividers,
		Counts:   stat.Histogram(nil, dividers, x, nil),
	}

	h.init()
	return h, nil
}

// LoadHistogram reads a Histogram written by Save
func LoadHistogram(r io.Reader) (*Histogram, error) {
	h := new(Histogram)
	if err := json.NewDecoder(r).Decode(h); err != nil {
		return nil, errors.Wrapf(err, "Failed to decode Histogram\n")
	} else if len(h.Dividers) != len(h.Counts)+1 || len(h.Counts) == 0 {
		return nil, errors.Errorf("Histogram has %d dividers for %d bins", len(h.Dividers), len(h.Counts))
	} else if floats.Sum(h.Counts) <= 0 {
		return nil, errors.Errorf("Histogram is empty")
	}

	h.init()
	return h, nil
}

// Save writes the Histogram as JSON
func (h *Histogram) Save(w io.Writer) error {
	if err := json.NewEncoder(w).Encode(h); err != nil {
		return errors.Wrapf(err, "Failed to encode Histogram\n")
	}

	return nil
}

func (h *Histogram) init() {
	h.cum = make([]float64, len(h.Counts))
	floats.CumSum(h.cum, h.Counts)
}

// Gen is the implementation of RNG for Histogram
func (h *Histogram) Gen(r *rand.Rand) float64 {
	total := h.cum[len(h.cum)-1]
	bin := sort.SearchFloat64s(h.cum, r.Float64()*total)

	// SearchFloat64s gives the first bin with cum >= v, which may be an empty one if v is exactly
	// on its lower edge
	for bin < len(h.Counts)-1 && h.Counts[bin] == 0 {
		bin++
	}

	lo, hi := h.Dividers[bin], h.Dividers[bin+1]
	return lo + r.Float64()*(hi-lo)
}
