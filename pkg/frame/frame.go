// Package frame provides Frame, the in-memory table every lake level produces.
//
// A Frame is an ordered list of column names plus rows of Records. Feed topics
// are heterogeneous JSON documents, so a row may lack any column; a missing
// value reads as nil.
package frame

import (
	"fmt"
	"reflect"
	"slices"
)

// Record is a single flat row keyed by column name.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Frame is an ordered, column-labelled collection of records.
// Operations that change shape return a new Frame; the receiver is not modified.
type Frame struct {
	columns []string
	index   map[string]int
	rows    []Record
}

// New creates an empty frame with the given columns.
func New(columns ...string) *Frame {
	f := &Frame{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		f.addColumn(c)
	}
	return f
}

// FromRecords builds a frame from records. Column order follows the first
// appearance of each key; keys within one record are taken in sorted order
// because Go maps have no order of their own.
func FromRecords(records []Record) *Frame {
	f := New()
	for _, r := range records {
		f.Append(r)
	}
	return f
}

// FromRows builds a frame from rows aligned with columns.
func FromRows(columns []string, rows [][]any) (*Frame, error) {
	f := New(columns...)
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
		rec := make(Record, len(columns))
		for j, c := range columns {
			rec[c] = row[j]
		}
		f.rows = append(f.rows, rec)
	}
	return f, nil
}

func (f *Frame) addColumn(name string) {
	if f.index == nil {
		f.index = make(map[string]int)
	}
	if _, ok := f.index[name]; ok {
		return
	}
	f.index[name] = len(f.columns)
	f.columns = append(f.columns, name)
}

// Len returns the number of rows. A nil frame has zero rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.rows)
}

// Columns returns a copy of the column names in order.
func (f *Frame) Columns() []string {
	if f == nil {
		return nil
	}
	return slices.Clone(f.columns)
}

// HasColumn reports whether name is a column of f.
func (f *Frame) HasColumn(name string) bool {
	if f == nil {
		return false
	}
	_, ok := f.index[name]
	return ok
}

// Row returns the i-th row. The returned record must not be modified.
func (f *Frame) Row(i int) Record {
	return f.rows[i]
}

// Value returns the value at row i in column name, or nil when absent.
func (f *Frame) Value(i int, name string) any {
	return f.rows[i][name]
}

// Records returns copies of all rows.
func (f *Frame) Records() []Record {
	if f == nil {
		return nil
	}
	out := make([]Record, len(f.rows))
	for i, r := range f.rows {
		out[i] = r.Clone()
	}
	return out
}

// Values returns row-major values aligned with Columns.
func (f *Frame) Values() [][]any {
	if f == nil {
		return nil
	}
	out := make([][]any, len(f.rows))
	for i, r := range f.rows {
		row := make([]any, len(f.columns))
		for j, c := range f.columns {
			row[j] = r[c]
		}
		out[i] = row
	}
	return out
}

// Column returns every value of one column, nil where a row lacks it.
func (f *Frame) Column(name string) []any {
	if f == nil {
		return nil
	}
	out := make([]any, len(f.rows))
	for i, r := range f.rows {
		out[i] = r[name]
	}
	return out
}

// Append adds a copy of rec as a new row, extending the columns as needed.
func (f *Frame) Append(rec Record) {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		if !f.HasColumn(k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		f.addColumn(k)
	}
	f.rows = append(f.rows, rec.Clone())
}

// AppendOrdered adds rec, introducing new columns in the order given by cols.
func (f *Frame) AppendOrdered(cols []string, rec Record) {
	for _, c := range cols {
		f.addColumn(c)
	}
	f.Append(rec)
}

// Clone returns a copy of f that shares no rows with it.
func (f *Frame) Clone() *Frame {
	out := New(f.Columns()...)
	out.rows = f.Records()
	return out
}

// Assign returns a copy of f with column name set to fn(row) for every row.
func (f *Frame) Assign(name string, fn func(Record) any) *Frame {
	out := f.Clone()
	out.addColumn(name)
	for _, r := range out.rows {
		r[name] = fn(r)
	}
	return out
}

// AssignConst returns a copy of f with column name set to v on every row.
func (f *Frame) AssignConst(name string, v any) *Frame {
	return f.Assign(name, func(Record) any { return v })
}

// Filter returns the rows for which keep returns true.
func (f *Frame) Filter(keep func(Record) bool) *Frame {
	out := New(f.Columns()...)
	for _, r := range f.rows {
		if keep(r) {
			out.rows = append(out.rows, r.Clone())
		}
	}
	return out
}

// Select returns a frame with only the named columns, in the given order.
// Columns f does not have are created empty.
func (f *Frame) Select(columns ...string) *Frame {
	out := New(columns...)
	for _, r := range f.rows {
		rec := make(Record, len(columns))
		for _, c := range columns {
			if v, ok := r[c]; ok {
				rec[c] = v
			}
		}
		out.rows = append(out.rows, rec)
	}
	return out
}

// Rename returns a copy of f with columns renamed per mapping.
func (f *Frame) Rename(mapping map[string]string) *Frame {
	cols := f.Columns()
	for i, c := range cols {
		if n, ok := mapping[c]; ok {
			cols[i] = n
		}
	}
	out := New(cols...)
	for _, r := range f.rows {
		rec := make(Record, len(r))
		for k, v := range r {
			if n, ok := mapping[k]; ok {
				k = n
			}
			rec[k] = v
		}
		out.rows = append(out.rows, rec)
	}
	return out
}

// SortBy returns a copy of f stably sorted by the given columns, ascending.
func (f *Frame) SortBy(columns ...string) *Frame {
	out := f.Clone()
	slices.SortStableFunc(out.rows, func(a, b Record) int {
		for _, c := range columns {
			if n := Compare(a[c], b[c]); n != 0 {
				return n
			}
		}
		return 0
	})
	return out
}

// Unique returns the distinct values of a column in first-seen order.
func (f *Frame) Unique(name string) []any {
	var out []any
	seen := make(map[any]bool)
	for _, r := range f.rows {
		v := r[name]
		if !hashable(v) {
			continue
		}
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// Group is one partition produced by GroupBy.
type Group struct {
	Key   any
	Frame *Frame
}

// GroupBy partitions f by the value of one column, keeping first-seen key order.
func (f *Frame) GroupBy(name string) []Group {
	var groups []Group
	pos := make(map[any]int)
	for _, r := range f.rows {
		k := r[name]
		if !hashable(k) {
			k = fmt.Sprint(k)
		}
		i, ok := pos[k]
		if !ok {
			i = len(groups)
			pos[k] = i
			groups = append(groups, Group{Key: k, Frame: New(f.Columns()...)})
		}
		groups[i].Frame.rows = append(groups[i].Frame.rows, r.Clone())
	}
	return groups
}

// Concat stacks frames vertically, unioning their columns.
func Concat(frames ...*Frame) *Frame {
	out := New()
	for _, f := range frames {
		if f == nil {
			continue
		}
		for _, c := range f.columns {
			out.addColumn(c)
		}
		out.rows = append(out.rows, f.Records()...)
	}
	return out
}

func hashable(v any) bool {
	t := reflect.TypeOf(v)
	return t == nil || t.Comparable()
}
