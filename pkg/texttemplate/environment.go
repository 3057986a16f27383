// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package texttemplate

import (
	"fmt"
	"strings"

	"carvel.dev/tektonc/pkg/library"
	"carvel.dev/tektonc/pkg/template/core"
	"github.com/k14s/starlark-go/resolve"
	"github.com/k14s/starlark-go/starlark"
	"github.com/k14s/starlark-go/syntax"
)

func init() {
	resolve.AllowFloat = true
	resolve.AllowSet = true
	resolve.AllowLambda = true
	resolve.AllowNestedDef = true
	resolve.AllowBitwise = true
	resolve.AllowRecursion = true
	resolve.AllowGlobalReassign = true
}

// Mode decides what happens to identifiers that are not defined.
type Mode int

const (
	// Strict fails when an undefined identifier is used.
	Strict Mode = iota
	// Passthrough keeps expressions that use undefined identifiers as
	// template text for a later render.
	Passthrough
)

func (m Mode) String() string {
	if m == Passthrough {
		return "passthrough"
	}
	return "strict"
}

// Environment holds filters, tests and globals shared by templates.
// It is safe for concurrent use.
type Environment struct {
	mode    Mode
	globals starlark.StringDict
}

func NewEnvironment(mode Mode) *Environment {
	env := &Environment{mode: mode, globals: starlark.StringDict{}}

	for name, val := range library.Globals() {
		env.globals[name] = val
	}
	for name, filter := range library.Filters() {
		env.addFilter(name, filter)
	}
	env.addFilter("default", env.defaultFilter)

	for name, test := range valueTests {
		env.addTest(name, test)
	}
	env.globals[concatFunc] = starlark.NewBuiltin("~", core.ErrWrapper(env.concat))
	env.globals[compareFunc] = starlark.NewBuiltin("compare", core.ErrWrapper(env.compare))

	env.globals["true"] = starlark.True
	env.globals["false"] = starlark.False
	env.globals["none"] = starlark.None

	env.globals.Freeze()
	return env
}

func (e *Environment) Mode() Mode { return e.mode }

// Parse compiles template text. Each goroutine should use its own Template.
func (e *Environment) Parse(name, src string) (*Template, error) {
	nodes, err := NewParser().Parse(src, name)
	if err != nil {
		return nil, err
	}
	return &Template{env: e, name: name, nodes: nodes}, nil
}

// Render parses and renders template text in one go.
func (e *Environment) Render(name, src string, vars starlark.StringDict) (string, error) {
	tpl, err := e.Parse(name, src)
	if err != nil {
		return "", err
	}
	return tpl.Render(vars)
}

// RenderDocument is like Render but keeps the trailing newline of src, so
// that a block scalar ending a YAML document keeps its line break.
func (e *Environment) RenderDocument(name, src string, vars starlark.StringDict) (string, error) {
	result, err := e.Render(name, src, vars)
	if err != nil {
		return "", err
	}
	if strings.HasSuffix(src, "\n") && !strings.HasSuffix(result, "\n") {
		result += "\n"
	}
	return result, nil
}

// addFilter registers a filter. When rendering in passthrough mode a filter
// whose arguments are unresolved is not called; the filter expression is
// kept instead.
func (e *Environment) addFilter(name string, filter core.StarlarkFunc) {
	wrapped := core.ErrWrapper(filter)

	if e.mode == Strict && name != "default" {
		inner := wrapped
		wrapped = func(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			for _, arg := range args {
				if unresolved, ok := arg.(*Unresolved); ok {
					return nil, unresolved.undefinedErr()
				}
			}
			return inner(thread, f, args, kwargs)
		}
	}

	if e.mode == Passthrough {
		inner := wrapped
		wrapped = func(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if !hasUnresolved(args, kwargs) {
				return inner(thread, f, args, kwargs)
			}
			expr := exprRepr(args.Index(0)) + "|" + name
			if args.Len() > 1 || len(kwargs) > 0 {
				expr += "(" + argsRepr(args[1:], kwargs) + ")"
			}
			return NewUnresolved(expr), nil
		}
	}

	e.globals[filterPrefix+name] = starlark.NewBuiltin(name, wrapped)
}

func (e *Environment) addTest(name string, test func(starlark.Value) bool) {
	fn := func(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var val starlark.Value
		negated := false
		if err := starlark.UnpackPositionalArgs(name, args, kwargs, 1, &val, &negated); err != nil {
			return nil, err
		}
		if unresolved, ok := val.(*Unresolved); ok && !unresolved.strict {
			op := " is "
			if negated {
				op = " is not "
			}
			return NewUnresolved("(" + unresolved.expr + op + name + ")"), nil
		}
		return starlark.Bool(test(val) != negated), nil
	}
	e.globals[testPrefix+name] = starlark.NewBuiltin(name, core.ErrWrapper(fn))
}

var valueTests = map[string]func(starlark.Value) bool{
	"defined":   func(val starlark.Value) bool { return !isUndefined(val) },
	"undefined": isUndefined,
	"none":      func(val starlark.Value) bool { return val == starlark.None },
	"string":    func(val starlark.Value) bool { _, ok := val.(starlark.String); return ok },
	"mapping":   func(val starlark.Value) bool { _, ok := val.(starlark.IterableMapping); return ok },
	"number": func(val starlark.Value) bool {
		switch val.(type) {
		case starlark.Int, starlark.Float:
			return true
		}
		return false
	},
	"sequence": func(val starlark.Value) bool {
		switch val.(type) {
		case *starlark.List, starlark.Tuple, starlark.String:
			return true
		}
		return false
	},
}

func isUndefined(val starlark.Value) bool {
	unresolved, ok := val.(*Unresolved)
	return ok && unresolved.strict
}

// defaultFilter returns its fallback when the value is undefined
// (or falsy when the second argument is true).
func (e *Environment) defaultFilter(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var val starlark.Value
	var fallback starlark.Value = starlark.String("")
	boolean := false
	if err := starlark.UnpackArgs(f.Name(), args, kwargs, "value", &val, "default_value?", &fallback, "boolean?", &boolean); err != nil {
		return nil, err
	}
	if isUndefined(val) || (boolean && !bool(val.Truth())) {
		return fallback, nil
	}
	return val, nil
}

func (e *Environment) concat(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("unexpected keyword arguments")
	}
	var pieces []string
	for _, arg := range args {
		if unresolved, ok := arg.(*Unresolved); ok && unresolved.strict {
			return nil, unresolved.undefinedErr()
		}
	}
	if hasUnresolved(args, nil) {
		for _, arg := range args {
			pieces = append(pieces, exprRepr(arg))
		}
		return NewUnresolved("(" + strings.Join(pieces, " ~ ") + ")"), nil
	}
	for _, arg := range args {
		pieces = append(pieces, core.AsText(arg))
	}
	return starlark.String(strings.Join(pieces, "")), nil
}

// compare evaluates a comparison. Starlark decides equality of values of
// different types without consulting them, so undefined operands are
// checked here: they fail when rendering strictly and produce a falsy
// Unresolved comparison otherwise.
func (e *Environment) compare(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var opStr string
	var x, y starlark.Value
	if err := starlark.UnpackPositionalArgs(f.Name(), args, kwargs, 3, &opStr, &x, &y); err != nil {
		return nil, err
	}
	op, found := comparisonOps[opStr]
	if !found {
		return nil, fmt.Errorf("unknown comparison '%s'", opStr)
	}

	for _, val := range []starlark.Value{x, y} {
		if unresolved, ok := val.(*Unresolved); ok && unresolved.strict {
			return nil, unresolved.undefinedErr()
		}
	}
	if hasUnresolved(starlark.Tuple{x, y}, nil) {
		return NewUnresolved("(" + exprRepr(x) + " " + opStr + " " + exprRepr(y) + ")"), nil
	}

	switch op {
	case syntax.IN, syntax.NOT_IN:
		return starlark.Binary(op, x, y)
	default:
		result, err := starlark.Compare(op, x, y)
		if err != nil {
			return nil, err
		}
		return starlark.Bool(result), nil
	}
}

func hasUnresolved(args starlark.Tuple, kwargs []starlark.Tuple) bool {
	for _, arg := range args {
		if _, ok := arg.(*Unresolved); ok {
			return true
		}
	}
	for _, kwarg := range kwargs {
		if _, ok := kwarg[1].(*Unresolved); ok {
			return true
		}
	}
	return false
}
