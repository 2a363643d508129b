// Package stats holds distribution helpers for flow metrics.
package stats

import (
	"errors"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// ErrEmpty is returned when a distribution has no finite samples.
var ErrEmpty = errors.New("no samples")

// finiteSorted copies the finite values of x and sorts them.
func finiteSorted(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}

// ECDF is the empirical cumulative distribution of a sample.
type ECDF struct {
	sorted []float64
}

// NewECDF builds the distribution of the finite values in x.
func NewECDF(x []float64) (*ECDF, error) {
	s := finiteSorted(x)
	if len(s) == 0 {
		return nil, ErrEmpty
	}
	return &ECDF{sorted: s}, nil
}

// Len returns the number of samples.
func (e *ECDF) Len() int {
	return len(e.sorted)
}

// Eval returns the fraction of samples less than or equal to x.
func (e *ECDF) Eval(x float64) float64 {
	return stat.CDF(x, stat.Empirical, e.sorted, nil)
}

// Points returns the step positions of the distribution: each distinct sample
// value with the fraction of samples at or below it.
func (e *ECDF) Points() (xs, ys []float64) {
	n := float64(len(e.sorted))
	for i, v := range e.sorted {
		if i+1 < len(e.sorted) && e.sorted[i+1] == v {
			continue
		}
		xs = append(xs, v)
		ys = append(ys, float64(i+1)/n)
	}
	return xs, ys
}

// Quantile returns the empirical p-quantile of the sample.
func (e *ECDF) Quantile(p float64) float64 {
	return stat.Quantile(p, stat.Empirical, e.sorted, nil)
}

// Fences returns the Tukey fences q1 - 1.5*IQR and q3 + 1.5*IQR of x.
func Fences(x []float64) (lo, hi float64, err error) {
	s := finiteSorted(x)
	if len(s) == 0 {
		return 0, 0, ErrEmpty
	}
	q1 := stat.Quantile(0.25, stat.Empirical, s, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, s, nil)
	iqr := q3 - q1
	return q1 - 1.5*iqr, q3 + 1.5*iqr, nil
}

// TrimIQR returns the values of x that lie within the Tukey fences, in their
// original order.
func TrimIQR(x []float64) ([]float64, error) {
	lo, hi, err := Fences(x)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if v >= lo && v <= hi {
			out = append(out, v)
		}
	}
	return out, nil
}
