// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package expand

import (
	"errors"
	"fmt"
	"strings"

	"carvel.dev/tektonc/pkg/inlineblock"
	"carvel.dev/tektonc/pkg/orderedmap"
	"carvel.dev/tektonc/pkg/template/core"
	"carvel.dev/tektonc/pkg/texttemplate"
	"carvel.dev/tektonc/pkg/yamlmeta"
	"github.com/k14s/starlark-go/starlark"
	"golang.org/x/sync/errgroup"
)

const (
	specKey    = "spec"
	finallyKey = "finally"
)

// Options control how an Expander evaluates loops.
type Options struct {
	// Parallelism above 1 renders bindings of a loop concurrently.
	Parallelism int
}

// Expander renders tasks with a strict environment: every identifier
// must be bound by the scope by the time a task is rendered.
type Expander struct {
	env  *texttemplate.Environment
	opts Options
}

// NewExpander returns an Expander rendering with env, which is expected
// to be a Strict environment.
func NewExpander(env *texttemplate.Environment, opts Options) *Expander {
	return &Expander{env: env, opts: opts}
}

// ExpandDocument expands spec.tasks and spec.finally of a copy of doc.
// doc itself is not modified.
func (e *Expander) ExpandDocument(doc *orderedmap.Map, scope *Scope) (*orderedmap.Map, error) {
	result := doc.DeepCopy()

	specVal, found := result.Get(specKey)
	if !found {
		return nil, &StructureError{Key: specKey, Reason: "Expected document to have a spec"}
	}
	spec, ok := specVal.(*orderedmap.Map)
	if !ok {
		return nil, &StructureError{Key: specKey,
			Reason: fmt.Sprintf("Expected a map, but was %s", typeName(specVal))}
	}

	if _, found := spec.Get(tasksKey); !found {
		return nil, &StructureError{Key: specKey + "." + tasksKey, Reason: "Expected spec to have tasks"}
	}

	for _, key := range []string{tasksKey, finallyKey} {
		tasksVal, found := spec.Get(key)
		if !found {
			continue
		}

		var tasks []interface{}
		if tasksVal != nil {
			tasks, ok = tasksVal.([]interface{})
			if !ok {
				return nil, &StructureError{Key: specKey + "." + key,
					Reason: fmt.Sprintf("Expected a sequence, but was %s", typeName(tasksVal))}
			}
		}

		expanded, err := e.ExpandList(tasks, scope)
		if err != nil {
			return nil, fmt.Errorf("Expanding %s.%s: %w", specKey, key, err)
		}
		spec.Set(key, expanded)
	}

	return result, nil
}

// ExpandList expands nodes into a flat list of tasks. Loops contribute
// their tasks for every binding in binding order; inline blocks contribute
// whatever they render to.
func (e *Expander) ExpandList(nodes []interface{}, scope *Scope) ([]interface{}, error) {
	result := []interface{}{}

	for i, node := range nodes {
		typedNode, ok := node.(*orderedmap.Map)
		if !ok {
			return nil, &StructureError{
				Reason: fmt.Sprintf("Expected task %d to be a map, but was %s", i, typeName(node))}
		}

		loop, isLoop, err := newLoopNode(typedNode)
		if err != nil {
			return nil, err
		}

		var expanded []interface{}

		switch {
		case isLoop:
			expanded, err = e.expandLoop(loop, scope)
		case isInlineBlock(typedNode):
			expanded, err = e.expandInlineBlock(typedNode, scope)
		default:
			var task *orderedmap.Map
			task, err = e.expandTask(typedNode, i, scope)
			expanded = []interface{}{task}
		}
		if err != nil {
			return nil, err
		}

		result = append(result, expanded...)
	}

	return result, nil
}

func (e *Expander) expandLoop(loop *loopNode, scope *Scope) ([]interface{}, error) {
	bindings, err := loop.Bindings()
	if err != nil {
		return nil, err
	}

	results := make([][]interface{}, len(bindings))
	errs := make([]error, len(bindings))

	if e.opts.Parallelism > 1 && len(bindings) > 1 {
		var group errgroup.Group
		group.SetLimit(e.opts.Parallelism)

		for i := range bindings {
			i := i
			group.Go(func() error {
				results[i], errs[i] = e.expandBinding(loop, bindings[i], scope)
				return nil
			})
		}
		_ = group.Wait()
	} else {
		for i := range bindings {
			results[i], errs[i] = e.expandBinding(loop, bindings[i], scope)
			if errs[i] != nil {
				break
			}
		}
	}

	result := []interface{}{}
	for i := range bindings {
		// lowest binding index wins regardless of completion order
		if errs[i] != nil {
			return nil, errs[i]
		}
		result = append(result, results[i]...)
	}
	return result, nil
}

func (e *Expander) expandBinding(loop *loopNode, binding starlark.StringDict, scope *Scope) ([]interface{}, error) {
	child := scope.Push(binding)

	if loop.Vars != nil {
		err := loop.Vars.IterateErr(func(k, v interface{}) error {
			name := fmt.Sprintf("%v", k)
			val, err := e.evalVar(name, v, child)
			if err != nil {
				return &VarError{Loop: loop.Name, Var: name, Binding: describeBinding(binding), Err: err}
			}
			child = child.With(name, val)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	tasks, err := e.ExpandList(loop.Tasks, child)
	if err != nil {
		var structErr *StructureError
		if errors.As(err, &structErr) && len(structErr.Binding) == 0 {
			structErr.Binding = describeBinding(binding)
		}
		return nil, err
	}
	return tasks, nil
}

// evalVar renders a string var as a template; other values get their
// string leaves rendered. Map keys are left as is.
func (e *Expander) evalVar(name string, val interface{}, scope *Scope) (starlark.Value, error) {
	vars := scope.Vars()

	if typedVal, ok := val.(string); ok {
		rendered, err := e.env.Render(varsKey+"."+name, typedVal, vars)
		if err != nil {
			return nil, err
		}
		return starlark.String(rendered), nil
	}

	rendered, err := e.renderLeaves(varsKey+"."+name, val, vars)
	if err != nil {
		return nil, err
	}
	return core.NewGoValue(rendered).AsStarlarkValue(), nil
}

func (e *Expander) renderLeaves(name string, val interface{}, vars starlark.StringDict) (interface{}, error) {
	switch typedVal := val.(type) {
	case *orderedmap.Map:
		result := orderedmap.NewMap()
		err := typedVal.IterateErr(func(k, v interface{}) error {
			rendered, err := e.renderLeaves(fmt.Sprintf("%s.%v", name, k), v, vars)
			if err != nil {
				return err
			}
			result.Set(k, rendered)
			return nil
		})
		return result, err

	case []interface{}:
		result := make([]interface{}, 0, len(typedVal))
		for i, item := range typedVal {
			rendered, err := e.renderLeaves(fmt.Sprintf("%s[%d]", name, i), item, vars)
			if err != nil {
				return nil, err
			}
			result = append(result, rendered)
		}
		return result, nil

	case string:
		return e.env.Render(name, typedVal, vars)

	default:
		return val, nil
	}
}

func isInlineBlock(node *orderedmap.Map) bool {
	if node.Len() != 1 {
		return false
	}
	_, found := node.Get(inlineblock.Key)
	return found
}

func (e *Expander) expandInlineBlock(node *orderedmap.Map, scope *Scope) ([]interface{}, error) {
	val, _ := node.Get(inlineblock.Key)
	text, ok := val.(string)
	if !ok {
		return nil, &StructureError{Key: inlineblock.Key,
			Reason: fmt.Sprintf("Expected inline block to be a string, but was %s", typeName(val)),
			Hint:   fmt.Sprintf("use a block scalar such as '%s: |'", inlineblock.Key)}
	}

	rendered, err := e.env.RenderDocument(inlineblock.Key, inlineblock.Restore(text), scope.Vars())
	if err != nil {
		return nil, fmt.Errorf("Rendering inline block (scope: %s): %w", strings.Join(scope.Names(), ", "), err)
	}

	parsed, err := yamlmeta.NewParser().ParseBytes([]byte(rendered), "rendered "+inlineblock.Key)
	if err != nil {
		return nil, err
	}

	switch typedVal := parsed.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		return typedVal, nil
	case *orderedmap.Map:
		return []interface{}{typedVal}, nil
	default:
		return nil, &StructureError{Key: inlineblock.Key,
			Reason: fmt.Sprintf("Expected inline block to render to a sequence or a map, but was %s", typeName(parsed))}
	}
}

// expandTask renders the whole task as one template so that variables set
// in its preamble are visible to all of its fields.
func (e *Expander) expandTask(node *orderedmap.Map, idx int, scope *Scope) (*orderedmap.Map, error) {
	desc := taskDesc(node, idx)

	text, err := yamlmeta.NewPrinter(nil).PrintBytes(node.DeepCopy())
	if err != nil {
		return nil, fmt.Errorf("Printing %s: %w", desc, err)
	}

	rendered, err := e.env.RenderDocument(desc, inlineblock.Restore(string(text)), scope.Vars())
	if err != nil {
		return nil, fmt.Errorf("Rendering %s (scope: %s): %w", desc, strings.Join(scope.Names(), ", "), err)
	}

	parsed, err := yamlmeta.NewParser().ParseBytes([]byte(rendered), "rendered "+desc)
	if err != nil {
		return nil, err
	}

	task, ok := parsed.(*orderedmap.Map)
	if !ok {
		return nil, &StructureError{
			Reason: fmt.Sprintf("Expected %s to render to a map, but was %s", desc, typeName(parsed))}
	}
	task.Delete(inlineblock.Key)
	return task, nil
}

func taskDesc(node *orderedmap.Map, idx int) string {
	if name, found := node.Get("name"); found {
		if typedName, ok := name.(string); ok {
			return fmt.Sprintf("task '%s'", typedName)
		}
	}
	return fmt.Sprintf("task %d", idx)
}

func describeBinding(binding starlark.StringDict) string {
	var pieces []string
	for _, name := range binding.Keys() {
		pieces = append(pieces, fmt.Sprintf("%s=%s", name, core.AsText(binding[name])))
	}
	return strings.Join(pieces, ", ")
}
