package writer

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// timestampDirLayout names the per-export directories of file writers.
const timestampDirLayout = "2006-01-02_15-04-05"

// formatCell renders a normalized table value as text. Missing values are empty.
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case uint64:
		return strconv.FormatUint(x, 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format("2006-01-02 15:04:05.000")
	case []byte:
		return hex.EncodeToString(x)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// jsonCell converts values that encoding/json would render unhelpfully.
func jsonCell(v any) any {
	switch x := v.(type) {
	case []byte:
		return hex.EncodeToString(x)
	case time.Time:
		return x.UnixMilli()
	case fmt.Stringer:
		return x.String()
	}
	return v
}
