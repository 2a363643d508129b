package report

import (
	"fmt"

	"FlowSpectra/internal/table"
)

const (
	ColSourceAddress      = "sourceIPv4Address"
	ColDestinationAddress = "destinationIPv4Address"
)

// SourceShare is the share of distinct hosts involved in flows with a feature.
type SourceShare struct {
	Label string
	Verb  string
	Count int
	Total int
}

func (s SourceShare) String() string {
	if s.Count == 0 || s.Total == 0 {
		return fmt.Sprintf("%-4s not observed", s.Label)
	}
	return fmt.Sprintf("%-4s %s %8d sources (%8.5f%%)", s.Label, s.Verb, s.Count, float64(s.Count)*100/float64(s.Total))
}

// AllSources returns the number of distinct source and destination addresses.
func AllSources(t *table.Table) (int, bool) {
	src, ok1 := t.Column(ColSourceAddress)
	dst, ok2 := t.Column(ColDestinationAddress)
	if !ok1 || !ok2 {
		return 0, false
	}
	seen := make(map[any]struct{}, len(src))
	for i := range src {
		seen[src[i]] = struct{}{}
		seen[dst[i]] = struct{}{}
	}
	return len(seen), true
}

// SourcesGiven returns the number of distinct hosts that sent traffic showing a
// feature: the source of rows where fwd holds and the destination of rows where rev holds.
func SourcesGiven(t *table.Table, fwd, rev []bool) (int, bool) {
	src, ok1 := t.Column(ColSourceAddress)
	dst, ok2 := t.Column(ColDestinationAddress)
	if !ok1 || !ok2 {
		return 0, false
	}
	seen := make(map[any]struct{})
	for i := range src {
		if i < len(fwd) && fwd[i] {
			seen[src[i]] = struct{}{}
		}
		if i < len(rev) && rev[i] {
			seen[dst[i]] = struct{}{}
		}
	}
	return len(seen), true
}
