package frame

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Compare orders two cell values. Nil sorts first, numbers compare
// numerically, durations and times chronologically, everything else as text.
func Compare(a, b any) int {
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
	if ad, ok := a.(time.Duration); ok {
		if bd, ok := b.(time.Duration); ok {
			return cmp3(float64(ad), float64(bd))
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	if af, ok := Float(a); ok {
		if bf, ok := Float(b); ok {
			return cmp3(af, bf)
		}
	}
	return strings.Compare(String(a), String(b))
}

func cmp3(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Float converts numeric cell values, and numeric strings, to float64.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// Int converts a cell value to int when it holds a whole number.
func Int(v any) (int, bool) {
	f, ok := Float(v)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// Bool reports the truth of a cell value. Feed booleans arrive as bools,
// as 0/1 numbers, or as "true"/"false" strings.
func Bool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		p, err := strconv.ParseBool(b)
		return err == nil && p
	}
	if f, ok := Float(v); ok {
		return f != 0
	}
	return false
}

// String renders a cell value as text. Nil renders as the empty string.
func String(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case time.Time:
		return s.Format(time.RFC3339Nano)
	case map[string]any, []any:
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Sprint(s)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}

// IsNull reports whether v is nil or an empty string.
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
