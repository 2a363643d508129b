// Package group splits flow tables into groups of records sharing a key whose
// consecutive start times are no more than a timeout apart.
package group

import (
	"errors"
	"fmt"
	"time"

	"FlowSpectra/internal/table"
)

// Output columns added by Group.
const (
	ColGroupID    = "groupId"
	ColGroupIndex = "groupIndex"
	ColKeyIAT     = "keyIat"
	ColGroupIAT   = "groupIat"
)

// DefaultTimeout is the gap after which a key starts a new group.
const DefaultTimeout = 15 * time.Second

var (
	// ErrBadTimeout is returned for negative timeouts.
	ErrBadTimeout = errors.New("grouping timeout must not be negative")
	// ErrBadTime is returned when a time cell is neither a timestamp nor a number.
	ErrBadTime = errors.New("unusable time value")
)

// Grouper assigns group ids over one or more key columns and a time column.
type Grouper struct {
	KeyFields []string
	TimeField string
	Timeout   time.Duration
}

// NewGrouper creates a grouper. At least one key field is required.
func NewGrouper(timeout time.Duration, timeField string, keyFields ...string) (*Grouper, error) {
	if timeout < 0 {
		return nil, fmt.Errorf("%w: %s", ErrBadTimeout, timeout)
	}
	if len(keyFields) == 0 {
		return nil, fmt.Errorf("at least one key field is required")
	}
	return &Grouper{KeyFields: keyFields, TimeField: timeField, Timeout: timeout}, nil
}

// Group returns a copy of t sorted by (keys, time) with groupId, groupIndex,
// keyIat and groupIat appended. Group ids start at 1 and increase by one at every
// key change or at every gap strictly greater than the timeout. Both IATs are
// the gap to the previous record of the group in seconds and 0 on its first row.
func (g *Grouper) Group(t *table.Table) (*table.Table, error) {
	if g.Timeout < 0 {
		return nil, fmt.Errorf("%w: %s", ErrBadTimeout, g.Timeout)
	}
	sortBy := append(append([]string{}, g.KeyFields...), g.TimeField)
	sorted, err := t.SortedBy(sortBy...)
	if err != nil {
		return nil, fmt.Errorf("failed to sort for grouping: %w", err)
	}

	n := sorted.Len()
	keys := make([][]any, len(g.KeyFields))
	for i, k := range g.KeyFields {
		keys[i], _ = sorted.Column(k)
	}
	times, _ := sorted.Column(g.TimeField)

	ids := make([]any, n)
	idx := make([]any, n)
	keyIat := make([]any, n)
	groupIat := make([]any, n)

	var (
		groupID    uint64
		groupIndex uint64
	)
	timeout := g.Timeout.Seconds()
	for r := 0; r < n; r++ {
		newGroup := r == 0 || !sameKey(keys, r-1, r)
		var gap float64
		if !newGroup {
			gap, err = elapsed(times[r-1], times[r])
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", r, err)
			}
			newGroup = gap > timeout
		} else if err := checkTime(times[r]); err != nil {
			return nil, fmt.Errorf("row %d: %w", r, err)
		}

		if newGroup {
			groupID++
			groupIndex = 0
			gap = 0
		} else {
			groupIndex++
		}
		ids[r] = groupID
		idx[r] = groupIndex
		keyIat[r] = gap
		// same value as keyIat; both reset identically at group boundaries
		groupIat[r] = gap
	}

	for _, c := range []struct {
		name string
		vals []any
	}{
		{ColGroupID, ids},
		{ColGroupIndex, idx},
		{ColKeyIAT, keyIat},
		{ColGroupIAT, groupIat},
	} {
		if err := sorted.SetColumn(c.name, c.vals); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}

func sameKey(keys [][]any, a, b int) bool {
	for _, col := range keys {
		if !table.Equal(col[a], col[b]) {
			return false
		}
	}
	return true
}

// elapsed returns cur - prev in seconds. Timestamps and numeric seconds are accepted.
func elapsed(prev, cur any) (float64, error) {
	p, pIsTime := prev.(time.Time)
	c, cIsTime := cur.(time.Time)
	switch {
	case pIsTime && cIsTime:
		return c.Sub(p).Seconds(), nil
	case pIsTime || cIsTime:
		return 0, fmt.Errorf("%w: mixed %T and %T", ErrBadTime, prev, cur)
	}
	pf, ok1 := table.Float(prev)
	cf, ok2 := table.Float(cur)
	if !ok1 || !ok2 {
		return 0, fmt.Errorf("%w: %T", ErrBadTime, cur)
	}
	return cf - pf, nil
}

func checkTime(v any) error {
	if _, ok := v.(time.Time); ok {
		return nil
	}
	if _, ok := v.(bool); ok {
		return fmt.Errorf("%w: bool", ErrBadTime)
	}
	if _, ok := table.Float(v); !ok {
		return fmt.Errorf("%w: %T", ErrBadTime, v)
	}
	return nil
}
