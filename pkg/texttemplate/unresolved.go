// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package texttemplate

import (
	"fmt"
	"strings"

	"github.com/k14s/starlark-go/starlark"
	"github.com/k14s/starlark-go/syntax"
)

// Unresolved stands for an identifier that is not known while rendering.
//
// In passthrough mode it remembers the expression text used to reach it:
// attribute access, indexing, calls, arithmetic, comparisons and filters all
// produce a new Unresolved with a longer expression, and converting it to
// text yields "{{ <expr> }}" so that a later strict render can evaluate it.
// It is always falsy.
//
// In strict mode any use other than a test (is defined) or the default
// filter fails with an UndefinedError.
type Unresolved struct {
	expr   string
	strict bool
}

var _ starlark.Value = (*Unresolved)(nil)
var _ starlark.HasAttrs = (*Unresolved)(nil)
var _ starlark.Mapping = (*Unresolved)(nil)
var _ starlark.Sequence = (*Unresolved)(nil)
var _ starlark.Callable = (*Unresolved)(nil)
var _ starlark.HasBinary = (*Unresolved)(nil)

func NewUnresolved(expr string) *Unresolved { return &Unresolved{expr: expr} }

func newUndefined(name string) *Unresolved { return &Unresolved{expr: name, strict: true} }

// Expr returns the expression text this value stands for.
func (u *Unresolved) Expr() string { return u.expr }

func (u *Unresolved) IsStrict() bool { return u.strict }

func (u *Unresolved) String() string {
	if u.strict {
		return ""
	}
	return "{{ " + u.expr + " }}"
}

func (u *Unresolved) Type() string          { return "unresolved" }
func (u *Unresolved) Freeze()               {}
func (u *Unresolved) Truth() starlark.Bool  { return false }
func (u *Unresolved) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: unresolved") }
func (u *Unresolved) Len() int              { return 0 }
func (u *Unresolved) Name() string          { return u.expr }
func (u *Unresolved) AttrNames() []string   { return nil }

func (u *Unresolved) Iterate() starlark.Iterator { return emptyIterator{} }

func (u *Unresolved) Attr(name string) (starlark.Value, error) {
	if u.strict {
		return nil, u.undefinedErr()
	}
	return &Unresolved{expr: u.expr + "." + name}, nil
}

func (u *Unresolved) Get(key starlark.Value) (starlark.Value, bool, error) {
	if u.strict {
		return nil, false, u.undefinedErr()
	}
	return &Unresolved{expr: u.expr + "[" + exprRepr(key) + "]"}, true, nil
}

func (u *Unresolved) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if u.strict {
		return nil, u.undefinedErr()
	}
	return &Unresolved{expr: u.expr + "(" + argsRepr(args, kwargs) + ")"}, nil
}

func (u *Unresolved) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	if u.strict {
		return nil, u.undefinedErr()
	}
	if other, ok := y.(*Unresolved); ok && other.strict {
		return nil, other.undefinedErr()
	}
	left, right := u.expr, exprRepr(y)
	if side == starlark.Right {
		left, right = right, left
	}
	return &Unresolved{expr: "(" + left + " " + op.String() + " " + right + ")"}, nil
}

// AsGoValue is used when an unresolved value is nested in a structure
// that gets converted to a document value.
func (u *Unresolved) AsGoValue() (interface{}, error) {
	if u.strict {
		return nil, u.undefinedErr()
	}
	return u.String(), nil
}

func (u *Unresolved) undefinedErr() error { return &UndefinedError{Name: u.expr} }

type emptyIterator struct{}

func (emptyIterator) Next(*starlark.Value) bool { return false }
func (emptyIterator) Done()                     {}

// exprRepr formats a value the way it would be written in a template
// expression. Strings use single quotes unless they contain one.
func exprRepr(val starlark.Value) string {
	switch typedVal := val.(type) {
	case *Unresolved:
		return typedVal.expr
	case starlark.String:
		return quoteString(string(typedVal))
	default:
		return val.String()
	}
}

func argsRepr(args starlark.Tuple, kwargs []starlark.Tuple) string {
	var pieces []string
	for _, arg := range args {
		pieces = append(pieces, exprRepr(arg))
	}
	for _, kwarg := range kwargs {
		pieces = append(pieces, string(kwarg[0].(starlark.String))+"="+exprRepr(kwarg[1]))
	}
	return strings.Join(pieces, ", ")
}

func quoteString(s string) string {
	quote := "'"
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		quote = `"`
	}
	var sb strings.Builder
	sb.WriteString(quote)
	for _, r := range s {
		switch {
		case r == '\\':
			sb.WriteString(`\\`)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == '\t':
			sb.WriteString(`\t`)
		case string(r) == quote:
			sb.WriteString(`\` + quote)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteString(quote)
	return sb.String()
}
