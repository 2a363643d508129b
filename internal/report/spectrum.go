package report

import (
	"fmt"
	"math"

	"FlowSpectra/internal/table"
)

// Histogram holds equal-width bins over [Lo, Hi]. The last bin is closed.
type Histogram struct {
	Lo     float64
	Hi     float64
	Counts []float64
}

// Width returns the width of one bin.
func (h *Histogram) Width() float64 {
	return (h.Hi - h.Lo) / float64(len(h.Counts))
}

// Edges returns the lower edge of bin i and its upper edge.
func (h *Histogram) Edges(i int) (float64, float64) {
	w := h.Width()
	return h.Lo + float64(i)*w, h.Lo + float64(i+1)*w
}

// Total returns the sum over all bins.
func (h *Histogram) Total() float64 {
	var s float64
	for _, c := range h.Counts {
		s += c
	}
	return s
}

// Spectrum buckets values into bins equal-width slots over [lo, hi]. Values
// outside the range and NaNs are dropped. If weights is non-nil, each value
// contributes its weight instead of 1.
func Spectrum(values, weights []float64, bins int, lo, hi float64) (*Histogram, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("bin count must be positive, got %d", bins)
	}
	if !(hi > lo) {
		return nil, fmt.Errorf("invalid histogram range [%g, %g]", lo, hi)
	}
	if weights != nil && len(weights) != len(values) {
		return nil, fmt.Errorf("%d weights for %d values", len(weights), len(values))
	}

	h := &Histogram{Lo: lo, Hi: hi, Counts: make([]float64, bins)}
	scale := float64(bins) / (hi - lo)
	for i, v := range values {
		if math.IsNaN(v) || v < lo || v > hi {
			continue
		}
		b := int((v - lo) * scale)
		if b >= bins {
			b = bins - 1
		}
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		h.Counts[b] += w
	}
	return h, nil
}

// SpectrumOf histograms column col of t, weighting each row by the sum of the
// weight columns. ok is false when any of the columns is absent.
func SpectrumOf(t *table.Table, col string, weightCols []string, bins int, lo, hi float64) (h *Histogram, ok bool, err error) {
	if !t.Has(col) || !t.Has(weightCols...) {
		return nil, false, nil
	}
	raw, _ := t.Column(col)
	values := make([]float64, len(raw))
	for i, v := range raw {
		f, ok := table.Float(v)
		if !ok {
			f = math.NaN()
		}
		values[i] = f
	}

	var weights []float64
	if len(weightCols) > 0 {
		weights = make([]float64, len(raw))
		for _, wc := range weightCols {
			wv, _ := t.Column(wc)
			for i, v := range wv {
				f, _ := table.Float(v)
				weights[i] += f
			}
		}
	}

	h, err = Spectrum(values, weights, bins, lo, hi)
	if err != nil {
		return nil, true, err
	}
	return h, true, nil
}
