// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package texttemplate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"carvel.dev/tektonc/pkg/orderedmap"
	"carvel.dev/tektonc/pkg/template/core"
	"github.com/k14s/starlark-go/resolve"
	"github.com/k14s/starlark-go/starlark"
)

var undefinedNameRegexp = regexp.MustCompile(`^undefined: ([A-Za-z_][A-Za-z0-9_]*)`)

// Template is a parsed template. It is not safe for concurrent use.
type Template struct {
	env   *Environment
	name  string
	nodes []Node
}

func (t *Template) Name() string { return t.name }

// Render evaluates the template with vars layered over the environment's
// globals and returns the produced text.
func (t *Template) Render(vars starlark.StringDict) (string, error) {
	frame := make(starlark.StringDict, len(t.env.globals)+len(vars))
	for name, val := range t.env.globals {
		frame[name] = val
	}
	for name, val := range vars {
		frame[name] = val
	}

	ctx := &renderCtx{
		tpl:    t,
		thread: &starlark.Thread{Name: t.name},
		vars:   frame,
	}

	var out strings.Builder
	err := ctx.renderNodes(t.nodes, &out)
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

type renderCtx struct {
	tpl    *Template
	thread *starlark.Thread
	vars   starlark.StringDict
}

func (c *renderCtx) child() *renderCtx {
	vars := make(starlark.StringDict, len(c.vars)+2)
	for name, val := range c.vars {
		vars[name] = val
	}
	return &renderCtx{tpl: c.tpl, thread: c.thread, vars: vars}
}

func (c *renderCtx) renderNodes(nodes []Node, out *strings.Builder) error {
	for _, node := range nodes {
		var err error

		switch typedNode := node.(type) {
		case *NodeText:
			out.WriteString(typedNode.Content)

		case *NodeExpr:
			var val starlark.Value
			val, err = c.evalDefined(typedNode)
			if err == nil {
				out.WriteString(core.AsText(val))
			}

		case *NodeIf:
			err = c.renderIf(typedNode, out)

		case *NodeFor:
			err = c.renderFor(typedNode, out)

		case *NodeSet:
			err = c.renderSet(typedNode)

		default:
			panic(fmt.Sprintf("unknown template node type %T", node))
		}

		if err != nil {
			return err
		}
	}
	return nil
}

func (c *renderCtx) renderIf(node *NodeIf, out *strings.Builder) error {
	for _, branch := range node.Branches {
		cond, err := c.evalDefined(branch.Cond)
		if err != nil {
			return err
		}
		if cond.Truth() {
			return c.renderNodes(branch.Body, out)
		}
	}
	return c.renderNodes(node.Else, out)
}

func (c *renderCtx) renderFor(node *NodeFor, out *strings.Builder) error {
	iterVal, err := c.evalDefined(node.Iter)
	if err != nil {
		return err
	}

	items, err := iterableItems(iterVal)
	if err != nil {
		return c.evalErr(node.Iter, err)
	}

	type iteration struct {
		ctx  *renderCtx
		item starlark.Value
	}
	var iterations []iteration

	for _, item := range items {
		iterCtx := c.child()
		err := iterCtx.assign(node.Targets, item)
		if err != nil {
			return c.evalErr(node.Iter, err)
		}
		if node.Filter != nil {
			keep, err := iterCtx.evalDefined(node.Filter)
			if err != nil {
				return err
			}
			if !keep.Truth() {
				continue
			}
		}
		iterations = append(iterations, iteration{iterCtx, item})
	}

	if len(iterations) == 0 {
		return c.renderNodes(node.Else, out)
	}

	for i, iter := range iterations {
		loop := orderedmap.NewMap()
		loop.Set("index", starlark.MakeInt(i+1))
		loop.Set("index0", starlark.MakeInt(i))
		loop.Set("revindex", starlark.MakeInt(len(iterations)-i))
		loop.Set("revindex0", starlark.MakeInt(len(iterations)-i-1))
		loop.Set("first", starlark.Bool(i == 0))
		loop.Set("last", starlark.Bool(i == len(iterations)-1))
		loop.Set("length", starlark.MakeInt(len(iterations)))
		if i > 0 {
			loop.Set("previtem", iterations[i-1].item)
		} else {
			loop.Set("previtem", starlark.None)
		}
		if i < len(iterations)-1 {
			loop.Set("nextitem", iterations[i+1].item)
		} else {
			loop.Set("nextitem", starlark.None)
		}
		iter.ctx.vars["loop"] = core.NewStarlarkStruct(loop)

		err := iter.ctx.renderNodes(node.Body, out)
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *renderCtx) renderSet(node *NodeSet) error {
	if node.Expr != nil {
		val, err := c.eval(node.Expr)
		if err != nil {
			return err
		}
		err = c.assign(node.Targets, val)
		if err != nil {
			return c.evalErr(node.Expr, err)
		}
		return nil
	}

	var body strings.Builder
	err := c.renderNodes(node.Body, &body)
	if err != nil {
		return err
	}
	c.vars[node.Targets[0]] = starlark.String(body.String())
	return nil
}

func (c *renderCtx) assign(targets []string, val starlark.Value) error {
	if len(targets) == 1 {
		c.vars[targets[0]] = val
		return nil
	}

	items, err := iterableItems(val)
	if err != nil {
		return err
	}
	if len(items) != len(targets) {
		return fmt.Errorf("expected %d values to unpack into %s, got %d",
			len(targets), strings.Join(targets, ", "), len(items))
	}
	for i, target := range targets {
		c.vars[target] = items[i]
	}
	return nil
}

// evalDefined evaluates an expression whose value is about to be used
// (printed, tested or iterated) and so must not be undefined.
func (c *renderCtx) evalDefined(expr *NodeExpr) (starlark.Value, error) {
	val, err := c.eval(expr)
	if err != nil {
		return nil, err
	}
	if unresolved, ok := val.(*Unresolved); ok && unresolved.strict {
		return nil, c.evalErr(expr, unresolved.undefinedErr())
	}
	return val, nil
}

// eval evaluates an expression. Identifiers that are not defined are bound
// to Unresolved values according to the environment's mode and the
// expression is evaluated again.
func (c *renderCtx) eval(expr *NodeExpr) (starlark.Value, error) {
	const maxAttempts = 32

	env := c.vars
	for attempt := 0; ; attempt++ {
		parsed, err := parseCode(c.tpl.name, expr.Code)
		if err != nil {
			return nil, newSyntaxError(expr.Position, "in expression '%s': %s", expr.Src, err)
		}

		val, err := starlark.EvalExpr(c.thread, parsed, env)
		if err == nil {
			return val, nil
		}

		names := undefinedNames(err)
		if len(names) == 0 || attempt == maxAttempts {
			return nil, c.evalErr(expr, err)
		}

		if attempt == 0 {
			env = make(starlark.StringDict, len(c.vars)+len(names))
			for name, val := range c.vars {
				env[name] = val
			}
		}
		for _, name := range names {
			if c.tpl.env.mode == Passthrough {
				env[name] = NewUnresolved(name)
			} else {
				env[name] = newUndefined(name)
			}
		}
	}
}

func (c *renderCtx) evalErr(expr *NodeExpr, err error) error {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		err = errors.New(evalErr.Msg)
	}
	return &EvalError{Position: expr.Position, Expr: expr.Src, Err: err}
}

func undefinedNames(err error) []string {
	var errList resolve.ErrorList
	if !errors.As(err, &errList) {
		return nil
	}
	var names []string
	for _, resolveErr := range errList {
		match := undefinedNameRegexp.FindStringSubmatch(resolveErr.Msg)
		if match == nil {
			return nil
		}
		names = append(names, match[1])
	}
	return names
}

func iterableItems(val starlark.Value) ([]starlark.Value, error) {
	var items []starlark.Value

	switch typedVal := val.(type) {
	case starlark.String:
		for _, r := range string(typedVal) {
			items = append(items, starlark.String(string(r)))
		}
	case starlark.Iterable:
		iter := typedVal.Iterate()
		defer iter.Done()

		var x starlark.Value
		for iter.Next(&x) {
			items = append(items, x)
		}
	default:
		return nil, fmt.Errorf("value of type %s is not iterable", val.Type())
	}
	return items, nil
}
