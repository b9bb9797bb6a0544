// Package expression evaluates the inline expressions of manifests: workflow
// API cells and assertion arguments. Expressions use the expr language with a
// closed table of helper functions; a string that does not parse as one
// expression is run as a block of `name = expr` statements instead.
package expression

import (
	"context"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/parser"
	"github.com/pkg/errors"

	"github.com/dhwoox/Final-RAG/pkg/logger"
	"github.com/dhwoox/Final-RAG/pkg/types/skills"
)

// Func is a helper callable from expressions.
type Func func(params ...any) (any, error)

// constants are always bound and never written back.
var constants = map[string]any{
	"True":  true,
	"False": false,
	"None":  nil,
}

var assignment = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*=([^=].*)$`)

// Evaluator evaluates expressions against a variable environment.
type Evaluator struct {
	funcs   map[string]Func
	options []expr.Option

	// lastErr is the most recent error returned by a helper during the
	// current evaluation. Helper errors keep their kind this way instead of
	// surfacing as an expr runtime error.
	lastErr error
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithFunction registers a helper function.
func WithFunction(name string, fn Func) Option {
	return func(e *Evaluator) {
		e.funcs[name] = fn
	}
}

// WithFunctions registers several helper functions.
func WithFunctions(funcs map[string]Func) Option {
	return func(e *Evaluator) {
		for name, fn := range funcs {
			e.funcs[name] = fn
		}
	}
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{funcs: make(map[string]Func)}
	for _, opt := range opts {
		opt(e)
	}
	for name, fn := range e.funcs {
		e.options = append(e.options, expr.Function(name, e.track(fn)))
	}
	return e
}

func (e *Evaluator) track(fn Func) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		out, err := fn(params...)
		if err != nil {
			e.lastErr = err
		}
		return out, err
	}
}

// Functions returns the names of the registered helpers.
func (e *Evaluator) Functions() []string {
	names := make([]string, 0, len(e.funcs))
	for name := range e.funcs {
		names = append(names, name)
	}
	return names
}

// Evaluate runs src against an environment made of the reserved bindings,
// every entry of vars and the helper functions. The string is first parsed
// as a single expression; only when it does not parse is it run as a
// statement block. A runtime failure of a single expression is returned as
// is. Afterwards every non-reserved binding is written back into vars.
func (e *Evaluator) Evaluate(ctx context.Context, src string, reserved, vars map[string]any) (any, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, nil
	}

	env := e.buildEnv(reserved, vars)
	var (
		result any
		err    error
	)
	if _, parseErr := parser.Parse(src); parseErr == nil {
		result, err = e.eval(src, env)
	} else {
		logger.G(ctx).WithField("expression", src).Debug("not a single expression, running as statements")
		result, err = e.exec(src, env, parseErr)
	}
	e.writeBack(env, reserved, vars)
	return result, err
}

func (e *Evaluator) buildEnv(reserved, vars map[string]any) map[string]any {
	env := make(map[string]any, len(vars)+len(reserved)+len(constants))
	for k, v := range vars {
		if _, isFunc := e.funcs[k]; isFunc {
			continue
		}
		env[k] = v
	}
	for k, v := range constants {
		env[k] = v
	}
	for k, v := range reserved {
		env[k] = v
	}
	return env
}

func (e *Evaluator) writeBack(env, reserved, vars map[string]any) {
	for k, v := range env {
		if _, ok := reserved[k]; ok {
			continue
		}
		if _, ok := constants[k]; ok {
			continue
		}
		vars[k] = v
	}
}

func (e *Evaluator) eval(src string, env map[string]any) (any, error) {
	e.lastErr = nil

	options := append([]expr.Option{expr.Env(env)}, e.options...)
	program, err := expr.Compile(src, options...)
	if err != nil {
		return nil, skills.WrapError(err, skills.KindExpression, "failed to compile %q", src)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		if e.lastErr != nil {
			return nil, e.lastErr
		}
		return nil, skills.WrapError(err, skills.KindExpression, "failed to evaluate %q", src)
	}
	return out, nil
}

// exec runs src as `;` or newline separated statements. Each statement is
// either `name = expr`, binding the value into env, or a bare expression.
// A statement block has no value: exec always returns nil on success.
func (e *Evaluator) exec(src string, env map[string]any, parseErr error) (any, error) {
	statements := splitStatements(src)
	if len(statements) == 0 {
		return nil, skills.WrapError(parseErr, skills.KindExpression, "invalid expression %q", src)
	}

	for _, stmt := range statements {
		target, body := "", stmt
		if m := assignment.FindStringSubmatch(stmt); m != nil {
			target, body = m[1], strings.TrimSpace(m[2])
		}
		if _, err := parser.Parse(body); err != nil {
			return nil, skills.WrapError(err, skills.KindExpression, "invalid statement %q", stmt)
		}
		value, err := e.eval(body, env)
		if err != nil {
			return nil, errors.Wrapf(err, "statement %q", stmt)
		}
		if target != "" {
			if _, isFunc := e.funcs[target]; isFunc {
				return nil, skills.NewError(skills.KindExpression, "cannot assign to helper %q", target)
			}
			env[target] = value
		}
	}
	return nil, nil
}

// splitStatements splits on `;` and newlines outside of quotes.
func splitStatements(src string) []string {
	var (
		out   []string
		cur   strings.Builder
		quote rune
	)
	push := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	for _, r := range src {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			cur.WriteRune(r)
		case r == '"' || r == '\'' || r == '`':
			quote = r
			cur.WriteRune(r)
		case r == ';' || r == '\n':
			push()
		default:
			cur.WriteRune(r)
		}
	}
	push()
	return out
}
