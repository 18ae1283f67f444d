// Package starlark runs user-defined silver and gold tables written in
// Starlark. Scripts declare tables with silver_table and gold_table; each
// table function receives its sources as lists of dicts.
package starlark

import (
	"fmt"
	"sort"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// SessionInfo is exposed as the "session" argument of table functions that
// ask for it.
type SessionInfo struct {
	Key  int
	Name string
	Type string
	Path string
}

// ToStarlark converts SessionInfo to a Starlark struct value.
func (s *SessionInfo) ToStarlark() starlark.Value {
	return starlarkstruct.FromStringDict(starlark.String("session"), starlark.StringDict{
		"key":  starlark.MakeInt(s.Key),
		"name": starlark.String(s.Name),
		"type": starlark.String(s.Type),
		"path": starlark.String(s.Path),
	})
}

// GoToStarlark converts a Go value to a Starlark value.
// Durations become float seconds and times become RFC 3339 strings.
func GoToStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case string:
		return starlark.String(val), nil

	case int:
		return starlark.MakeInt(val), nil

	case int32:
		return starlark.MakeInt(int(val)), nil

	case int64:
		return starlark.MakeInt64(val), nil

	case float32:
		return starlark.Float(val), nil

	case float64:
		return starlark.Float(val), nil

	case bool:
		return starlark.Bool(val), nil

	case time.Duration:
		return starlark.Float(val.Seconds()), nil

	case time.Time:
		return starlark.String(val.Format(time.RFC3339Nano)), nil

	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil

	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		dict := starlark.NewDict(len(val))
		for _, k := range keys {
			sv, err := GoToStarlark(val[k])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict setkey %q: %w", k, err)
			}
		}
		return dict, nil

	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToGo converts a Starlark value back to a Go value.
// Returns: string, int64, float64, bool, []any, map[string]any, or nil
func ToGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil

	case starlark.String:
		return string(val), nil

	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			return val.String(), nil
		}
		return i64, nil

	case starlark.Float:
		return float64(val), nil

	case starlark.Bool:
		return bool(val), nil

	case *starlark.List:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := ToGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil

	case *starlark.Dict:
		result := make(map[string]any)
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %T", item[0])
			}
			gv, err := ToGo(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", key, err)
			}
			result[string(key)] = gv
		}
		return result, nil

	case starlark.Tuple:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := ToGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("tuple index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil

	case *starlarkstruct.Struct:
		d := starlark.StringDict{}
		val.ToStringDict(d)
		result := make(map[string]any, len(d))
		for k, sv := range d {
			gv, err := ToGo(sv)
			if err != nil {
				return nil, fmt.Errorf("struct field %q: %w", k, err)
			}
			result[k] = gv
		}
		return result, nil

	default:
		return val.String(), nil
	}
}
