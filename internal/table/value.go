package table

import (
	"bytes"
	"cmp"
	"fmt"
	"net"
	"net/netip"
	"time"
)

// Normalize converts a decoded IPFIX value to the representation used in tables:
// unsigned integers become uint64, signed integers int64, floats float64 and
// addresses netip.Addr. Other values are returned unchanged.
func Normalize(v any) any {
	switch x := v.(type) {
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case uint:
		return uint64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case float32:
		return float64(x)
	case net.IP:
		if a, ok := netip.AddrFromSlice(x); ok {
			return a.Unmap()
		}
		return x.String()
	case *net.IP:
		if x == nil {
			return nil
		}
		return Normalize(*x)
	case net.HardwareAddr:
		return x.String()
	}
	return v
}

// Float converts a numeric value to float64. Timestamps convert to seconds since the epoch.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case uint64:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case time.Time:
		return float64(x.UnixNano()) / 1e9, true
	case time.Duration:
		return x.Seconds(), true
	}
	return 0, false
}

// Uint converts an integer value to uint64. Negative and non-integer values fail.
func Uint(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case int64:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	}
	return 0, false
}

// Compare orders two values of the same column. Values of different kinds are
// ordered by their type name so that sorting is total.
func Compare(a, b any) int {
	switch x := a.(type) {
	case uint64:
		if y, ok := b.(uint64); ok {
			return cmp.Compare(x, y)
		}
	case int64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y)
		}
	case string:
		if y, ok := b.(string); ok {
			return cmp.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case netip.Addr:
		if y, ok := b.(netip.Addr); ok {
			return x.Compare(y)
		}
	case netip.Prefix:
		if y, ok := b.(netip.Prefix); ok {
			if c := x.Addr().Compare(y.Addr()); c != 0 {
				return c
			}
			return cmp.Compare(x.Bits(), y.Bits())
		}
	case []byte:
		if y, ok := b.([]byte); ok {
			return bytes.Compare(x, y)
		}
	}
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	// mixed kinds; fall back to float comparison where both are numeric
	fa, okA := Float(a)
	fb, okB := Float(b)
	if okA && okB {
		return cmp.Compare(fa, fb)
	}
	return cmp.Compare(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b))
}

// Equal reports whether two cells hold the same value.
func Equal(a, b any) bool {
	return Compare(a, b) == 0
}
