// Package report turns flow tables into summary figures: proportions of flows
// showing a feature, histograms and time-binned series.
package report

import (
	"fmt"
	"io"
)

// Proportion is the share of flows for which a feature was observed.
type Proportion struct {
	Feature string
	Count   int
	Total   int
}

// NewProportion counts the true values of series.
func NewProportion(feature string, series []bool) Proportion {
	p := Proportion{Feature: feature, Total: len(series)}
	for _, v := range series {
		if v {
			p.Count++
		}
	}
	return p
}

// Observed reports whether the feature was seen on at least one flow.
func (p Proportion) Observed() bool {
	return p.Count > 0 && p.Total > 0
}

// Percent returns the share in percent, or 0 if the feature was not observed.
func (p Proportion) Percent() float64 {
	if !p.Observed() {
		return 0
	}
	return float64(p.Count) * 100 / float64(p.Total)
}

func (p Proportion) String() string {
	if !p.Observed() {
		return fmt.Sprintf("%-10s not observed", p.Feature)
	}
	return fmt.Sprintf("%-10s observed on %8d flows (%8.5f%%)", p.Feature, p.Count, p.Percent())
}

// And combines two series row by row.
func And(a, b []bool) []bool {
	out := make([]bool, len(a))
	for i := range a {
		out[i] = a[i] && i < len(b) && b[i]
	}
	return out
}

// Or combines two series row by row.
func Or(a, b []bool) []bool {
	out := make([]bool, len(a))
	for i := range a {
		out[i] = a[i] || (i < len(b) && b[i])
	}
	return out
}

// Fprintln writes one line per report item.
func Fprintln(w io.Writer, items ...fmt.Stringer) error {
	for _, it := range items {
		if _, err := fmt.Fprintln(w, it.String()); err != nil {
			return err
		}
	}
	return nil
}
