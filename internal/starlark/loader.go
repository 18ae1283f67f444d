package starlark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/livef1/internal/lake"
	"github.com/leapstack-labs/livef1/internal/registry"
	"github.com/leapstack-labs/livef1/pkg/core"
	"github.com/leapstack-labs/livef1/pkg/frame"
	"go.starlark.net/starlark"
)

// Loader executes table scripts and turns their declarations into specs.
type Loader struct {
	pool   *ThreadPool
	logger *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the loader's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(l)
	}
	l.pool = NewThreadPool(0, l.logger)
	return l
}

// Load executes every .star file in dir, in name order, and returns the
// tables they declare. A missing directory declares nothing.
func (l *Loader) Load(dir string) ([]registry.TableSpec, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to access tables directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("tables path is not a directory: %s", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.star"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan tables directory: %w", err)
	}

	var specs []registry.TableSpec
	seen := make(map[string]string)
	for _, file := range files {
		fileSpecs, err := l.LoadFile(file)
		if err != nil {
			return nil, err
		}
		for _, spec := range fileSpecs {
			if prev, ok := seen[spec.Name]; ok {
				return nil, &LoadError{File: file, Message: fmt.Sprintf("table %q already declared in %s", spec.Name, filepath.Base(prev))}
			}
			seen[spec.Name] = file
		}
		specs = append(specs, fileSpecs...)
	}
	return specs, nil
}

// LoadFile executes one script and returns the tables it declares.
func (l *Loader) LoadFile(path string) ([]registry.TableSpec, error) {
	content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the configured tables directory
	if err != nil {
		return nil, &LoadError{File: path, Message: fmt.Sprintf("failed to read file: %v", err)}
	}
	return l.LoadSource(path, content)
}

// LoadSource executes script content as if read from path.
func (l *Loader) LoadSource(path string, content []byte) ([]registry.TableSpec, error) {
	var decls []tableDecl
	names := make(map[string]string)
	declare := func(d tableDecl) error {
		if prev, ok := names[d.Name]; ok {
			return fmt.Errorf("table %q already declared at %s", d.Name, prev)
		}
		names[d.Name] = d.Pos
		decls = append(decls, d)
		return nil
	}

	thread := l.pool.Get("load:" + filepath.Base(path))
	defer l.pool.Put(thread)

	globals, err := starlark.ExecFile(thread, path, content, Predeclared(declare)) //nolint:staticcheck // SA1019: will migrate to ExecFileOptions later
	if err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return nil, &LoadError{File: path, Message: evalErr.Backtrace()}
		}
		return nil, &LoadError{File: path, Message: fmt.Sprintf("Starlark execution error: %v", err)}
	}
	// Table functions may run on several threads at once.
	globals.Freeze()

	specs := make([]registry.TableSpec, 0, len(decls))
	for _, d := range decls {
		specs = append(specs, registry.TableSpec{
			Name:           d.Name,
			Level:          d.Level,
			Sources:        d.Sources,
			IncludeSession: d.IncludeSession,
			Func:           l.tableFunc(path, d),
			Description:    d.Description,
			Origin:         path,
		})
	}
	l.logger.Debug("loaded table script", "file", path, "tables", len(specs))
	return specs, nil
}

// tableFunc adapts a script function to a lake table function. Sources are
// passed as keyword arguments named by ParamName.
func (l *Loader) tableFunc(path string, d tableDecl) lake.TableFunc {
	return func(ctx context.Context, in lake.Inputs) (*frame.Frame, error) {
		thread := l.pool.Get(filepath.Base(path) + ":" + d.Name)
		defer l.pool.Put(thread)
		stop := context.AfterFunc(ctx, func() { thread.Cancel(context.Cause(ctx).Error()) })
		defer stop()

		kwargs := make([]starlark.Tuple, 0, len(d.Sources)+1)
		for _, src := range d.Sources {
			f, err := sourceFrame(in, src)
			if err != nil {
				return nil, err
			}
			rows, err := FrameToStarlark(f)
			if err != nil {
				return nil, fmt.Errorf("source %q: %w", src, err)
			}
			kwargs = append(kwargs, starlark.Tuple{starlark.String(ParamName(src)), rows})
		}
		if d.IncludeSession {
			kwargs = append(kwargs, starlark.Tuple{starlark.String("session"), sessionValue(in.Session)})
		}

		result, err := starlark.Call(thread, d.Fn, nil, kwargs)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &EvalError{File: path, Table: d.Name, Message: err.Error()}
		}
		df, err := StarlarkToFrame(result)
		if err != nil {
			return nil, &EvalError{File: path, Table: d.Name, Message: err.Error()}
		}
		return df, nil
	}
}

// sourceFrame finds a source by the name it was declared with or, for
// level-qualified references such as "silver.laps", by its bare name.
func sourceFrame(in lake.Inputs, src string) (*frame.Frame, error) {
	if f, ok := in.Sources[src]; ok {
		return f, nil
	}
	return in.Frame(stripLevel(src))
}

func stripLevel(ref string) string {
	if prefix, rest, ok := strings.Cut(ref, "."); ok {
		if _, err := core.ParseLevel(prefix); err == nil {
			return rest
		}
	}
	return ref
}

// ParamName is the keyword argument a source is passed as: the bare table
// name with every character that cannot appear in an identifier replaced by
// an underscore. "CarData.z" is passed as CarData_z.
func ParamName(src string) string {
	src = stripLevel(src)
	var b strings.Builder
	for i, r := range src {
		switch {
		case r == '_' || isLetter(r) || (i > 0 && isDigit(r)):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

type sessionDetails interface {
	Name() string
	Type() string
	Path() string
}

func sessionValue(s lake.Session) starlark.Value {
	if s == nil {
		return starlark.None
	}
	info := &SessionInfo{Key: s.Key()}
	if d, ok := s.(sessionDetails); ok {
		info.Name, info.Type, info.Path = d.Name(), d.Type(), d.Path()
	}
	return info.ToStarlark()
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// LoadError reports a script that failed to execute.
type LoadError struct {
	File    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("tables/%s: %s", filepath.Base(e.File), e.Message)
}

// EvalError reports a table function that failed.
type EvalError struct {
	File    string
	Table   string
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s: table %q: %s", filepath.Base(e.File), e.Table, e.Message)
}
