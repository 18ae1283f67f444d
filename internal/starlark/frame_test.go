package starlark

import (
	"testing"
	"time"

	"github.com/leapstack-labs/livef1/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestFrameToStarlark(t *testing.T) {
	f := frame.New("DriverNo", "LapTime")
	f.Append(frame.Record{"DriverNo": "1", "LapTime": 90 * time.Second})
	f.Append(frame.Record{"DriverNo": "44"})

	list, err := FrameToStarlark(f)
	require.NoError(t, err)
	require.Equal(t, 2, list.Len())
	assert.Equal(t, `{"DriverNo": "1", "LapTime": 90.0}`, list.Index(0).String())
	assert.Equal(t, `{"DriverNo": "44", "LapTime": None}`, list.Index(1).String())
}

func TestStarlarkToFrame(t *testing.T) {
	thread := &starlark.Thread{Name: "test"}
	v, err := starlark.Eval(thread, "expr", `[{"b": 1, "a": "x"}, {"a": "y", "c": 2.5}]`, nil) //nolint:staticcheck // SA1019: will migrate to EvalOptions later
	require.NoError(t, err)

	f, err := StarlarkToFrame(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, f.Columns())
	assert.Equal(t, 1, f.Value(0, "b"), "ints narrow to int")
	assert.Equal(t, "y", f.Value(1, "a"))
	assert.Nil(t, f.Value(1, "b"))
	assert.Equal(t, 2.5, f.Value(1, "c"))
}

func TestStarlarkToFrame_Invalid(t *testing.T) {
	tests := []struct {
		name string
		val  starlark.Value
	}{
		{"int", starlark.MakeInt(1)},
		{"dict", starlark.NewDict(0)},
		{"list of ints", starlark.NewList([]starlark.Value{starlark.MakeInt(1)})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := StarlarkToFrame(tt.val)
			assert.Error(t, err)
		})
	}

	f, err := StarlarkToFrame(starlark.None)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Len())
}
