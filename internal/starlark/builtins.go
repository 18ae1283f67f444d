package starlark

import (
	"fmt"

	"github.com/leapstack-labs/livef1/pkg/core"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// tableDecl is one silver_table or gold_table call.
type tableDecl struct {
	Name           string
	Level          core.Level
	Sources        []string
	Fn             starlark.Callable
	IncludeSession bool
	Description    string
	Pos            string
}

// tableBuiltin returns the silver_table or gold_table builtin. Each call is
// passed to declare.
//
//	silver_table(name, sources, fn, include_session=False, description="")
func tableBuiltin(level core.Level, declare func(tableDecl) error) *starlark.Builtin {
	return starlark.NewBuiltin(string(level)+"_table", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var (
			name           string
			sources        starlark.Iterable
			fn             starlark.Callable
			includeSession bool
			description    string
		)
		if err := starlark.UnpackArgs(b.Name(), args, kwargs,
			"name", &name,
			"sources", &sources,
			"fn", &fn,
			"include_session?", &includeSession,
			"description?", &description,
		); err != nil {
			return nil, err
		}
		if name == "" {
			return nil, fmt.Errorf("%s: name must not be empty", b.Name())
		}

		var srcs []string
		it := sources.Iterate()
		defer it.Done()
		var x starlark.Value
		for it.Next(&x) {
			s, ok := starlark.AsString(x)
			if !ok {
				return nil, fmt.Errorf("%s: sources must be strings, got %s", b.Name(), x.Type())
			}
			srcs = append(srcs, s)
		}

		decl := tableDecl{
			Name:           name,
			Level:          level,
			Sources:        srcs,
			Fn:             fn,
			IncludeSession: includeSession,
			Description:    description,
		}
		if fr := thread.CallFrame(1); fr.Pos.IsValid() {
			decl.Pos = fr.Pos.String()
		}
		if err := declare(decl); err != nil {
			return nil, err
		}
		return fn, nil
	})
}

// Predeclared returns the globals available to table scripts.
func Predeclared(declare func(tableDecl) error) starlark.StringDict {
	return starlark.StringDict{
		"silver_table": tableBuiltin(core.LevelSilver, declare),
		"gold_table":   tableBuiltin(core.LevelGold, declare),
		"struct":       starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
}
