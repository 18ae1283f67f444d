package starlark

import (
	"fmt"

	"github.com/leapstack-labs/livef1/pkg/frame"
	"go.starlark.net/starlark"
)

// FrameToStarlark converts a frame to a list of dicts, one per row, with
// every column present in every dict.
func FrameToStarlark(f *frame.Frame) (*starlark.List, error) {
	cols := f.Columns()
	rows := make([]starlark.Value, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		dict := starlark.NewDict(len(cols))
		for _, c := range cols {
			v, err := GoToStarlark(f.Value(i, c))
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, c, err)
			}
			if err := dict.SetKey(starlark.String(c), v); err != nil {
				return nil, err
			}
		}
		rows = append(rows, dict)
	}
	return starlark.NewList(rows), nil
}

// StarlarkToFrame converts a table function result to a frame. The result
// must be a list (or tuple) of dicts; None yields an empty frame. Columns keep
// the key order of the dicts.
func StarlarkToFrame(v starlark.Value) (*frame.Frame, error) {
	if v == starlark.None {
		return frame.New(), nil
	}
	iter, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("table function must return a list of dicts, got %s", v.Type())
	}
	if _, isDict := v.(*starlark.Dict); isDict {
		return nil, fmt.Errorf("table function must return a list of dicts, got dict")
	}

	out := frame.New()
	it := iter.Iterate()
	defer it.Done()
	var x starlark.Value
	for i := 0; it.Next(&x); i++ {
		dict, ok := x.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("row %d: expected dict, got %s", i, x.Type())
		}
		cols := make([]string, 0, dict.Len())
		rec := make(frame.Record, dict.Len())
		for _, item := range dict.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("row %d: column names must be strings, got %s", i, item[0].Type())
			}
			gv, err := ToGo(item[1])
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, key, err)
			}
			cols = append(cols, string(key))
			rec[string(key)] = normalize(gv)
		}
		out.AppendOrdered(cols, rec)
	}
	return out, nil
}

// normalize narrows Starlark's int64 to int when it fits, matching the values
// the feed parsers produce.
func normalize(v any) any {
	if n, ok := v.(int64); ok && int64(int(n)) == n {
		return int(n)
	}
	return v
}
