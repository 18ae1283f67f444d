package starlark

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

func TestGoToStarlark(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		wantStr string
		wantErr bool
	}{
		{
			name:    "string",
			input:   "hello",
			wantStr: `"hello"`,
		},
		{
			name:    "int",
			input:   42,
			wantStr: "42",
		},
		{
			name:    "int64",
			input:   int64(123456789),
			wantStr: "123456789",
		},
		{
			name:    "float64",
			input:   3.14,
			wantStr: "3.14",
		},
		{
			name:    "bool true",
			input:   true,
			wantStr: "True",
		},
		{
			name:    "bool false",
			input:   false,
			wantStr: "False",
		},
		{
			name:    "nil",
			input:   nil,
			wantStr: "None",
		},
		{
			name:    "string slice",
			input:   []string{"a", "b", "c"},
			wantStr: `["a", "b", "c"]`,
		},
		{
			name:    "empty string slice",
			input:   []string{},
			wantStr: "[]",
		},
		{
			name:    "any slice",
			input:   []any{"x", 1, true},
			wantStr: `["x", 1, True]`,
		},
		{
			name:    "map keys sorted",
			input:   map[string]any{"b": 2, "a": "x"},
			wantStr: `{"a": "x", "b": 2}`,
		},
		{
			name:    "duration as seconds",
			input:   1500 * time.Millisecond,
			wantStr: "1.5",
		},
		{
			name:    "time as text",
			input:   time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC),
			wantStr: `"2024-03-02T15:00:00Z"`,
		},
		{
			name:    "unsupported",
			input:   struct{}{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GoToStarlark(tt.input)
			if tt.wantErr {
				assert.Error(t, err, "expected error")
				return
			}
			require.NoError(t, err, "unexpected error")
			assert.Equal(t, tt.wantStr, got.String(), "GoToStarlark()")
		})
	}
}

func TestToGo(t *testing.T) {
	tests := []struct {
		name    string
		input   starlark.Value
		want    any
		wantErr bool
	}{
		{
			name:  "string",
			input: starlark.String("hello"),
			want:  "hello",
		},
		{
			name:  "int",
			input: starlark.MakeInt(42),
			want:  int64(42),
		},
		{
			name:  "float",
			input: starlark.Float(3.14),
			want:  3.14,
		},
		{
			name:  "bool true",
			input: starlark.Bool(true),
			want:  true,
		},
		{
			name:  "bool false",
			input: starlark.Bool(false),
			want:  false,
		},
		{
			name:  "none",
			input: starlark.None,
			want:  nil,
		},
		{
			name:  "tuple",
			input: starlark.Tuple{starlark.MakeInt(1), starlark.String("a")},
			want:  []any{int64(1), "a"},
		},
		{
			name:  "struct",
			input: starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{"x": starlark.MakeInt(1)}),
			want:  map[string]any{"x": int64(1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToGo(tt.input)
			if tt.wantErr {
				assert.Error(t, err, "expected error")
				return
			}
			require.NoError(t, err, "unexpected error")
			assert.Equal(t, tt.want, got, "ToGo()")
		})
	}
}

func TestSessionInfo_ToStarlark(t *testing.T) {
	info := &SessionInfo{Key: 9472, Name: "Race", Type: "Race", Path: "2024/bah/race/"}

	val := info.ToStarlark()
	s, ok := val.(*starlarkstruct.Struct)
	require.True(t, ok, "expected struct, got %T", val)

	key, err := s.Attr("key")
	require.NoError(t, err)
	assert.Equal(t, "9472", key.String())

	path, err := s.Attr("path")
	require.NoError(t, err)
	assert.Equal(t, `"2024/bah/race/"`, path.String())
}
