package adapter

import (
	"encoding/json"
	"time"

	"github.com/leapstack-labs/livef1/pkg/core"
	"github.com/leapstack-labs/livef1/pkg/frame"
)

// InferColumns derives portable column types from the values of f.
// A column whose values disagree on kind falls back to text; a column with
// only null values is nullable text.
func InferColumns(f *frame.Frame) []core.Column {
	names := f.Columns()
	cols := make([]core.Column, len(names))
	for i, name := range names {
		col := core.Column{Name: name, Position: i + 1}
		var typ core.ColumnType
		for _, v := range f.Column(name) {
			if v == nil {
				col.Nullable = true
				continue
			}
			typ = merge(typ, kindOf(v))
		}
		if typ == "" {
			typ = core.ColumnTypeText
		}
		col.Type = typ
		cols[i] = col
	}
	return cols
}

func kindOf(v any) core.ColumnType {
	switch v.(type) {
	case bool:
		return core.ColumnTypeBoolean
	case int, int32, int64, uint64:
		return core.ColumnTypeInteger
	case float32, float64, time.Duration:
		return core.ColumnTypeDouble
	case map[string]any, []any:
		return core.ColumnTypeJSON
	}
	return core.ColumnTypeText
}

func merge(a, b core.ColumnType) core.ColumnType {
	switch {
	case a == "" || a == b:
		return b
	case a == core.ColumnTypeInteger && b == core.ColumnTypeDouble,
		a == core.ColumnTypeDouble && b == core.ColumnTypeInteger:
		return core.ColumnTypeDouble
	}
	return core.ColumnTypeText
}

// ToValue converts a frame cell to a value the database driver accepts for
// a column of type t. Durations are written as seconds.
func ToValue(t core.ColumnType, v any) any {
	if v == nil {
		return nil
	}
	switch t {
	case core.ColumnTypeInteger:
		if n, ok := frame.Int(v); ok {
			return int64(n)
		}
	case core.ColumnTypeDouble:
		if d, ok := v.(time.Duration); ok {
			return d.Seconds()
		}
		if f, ok := frame.Float(v); ok {
			return f
		}
	case core.ColumnTypeBoolean:
		return frame.Bool(v)
	case core.ColumnTypeJSON:
		b, err := json.Marshal(v)
		if err == nil {
			return string(b)
		}
	}
	if d, ok := v.(time.Duration); ok {
		return d.String()
	}
	return frame.String(v)
}
