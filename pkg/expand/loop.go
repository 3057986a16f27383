// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package expand

import (
	"fmt"
	"sort"

	"carvel.dev/tektonc/pkg/orderedmap"
	"carvel.dev/tektonc/pkg/template/core"
	"github.com/k14s/starlark-go/starlark"
)

const (
	loopNameKey = "loopName"
	foreachKey  = "foreach"
	domainKey   = "domain"
	varsKey     = "vars"
	tasksKey    = "tasks"

	unnamedLoop = "<unnamed>"
)

type loopNode struct {
	Name   string
	Domain *orderedmap.Map
	Vars   *orderedmap.Map
	Tasks  []interface{}
}

// newLoopNode returns false when node is not meant to be a loop.
// A map that names a loop or carries foreach must be a complete loop.
func newLoopNode(node *orderedmap.Map) (*loopNode, bool, error) {
	nameVal, hasName := node.Get(loopNameKey)
	foreachVal, hasForeach := node.Get(foreachKey)
	if !hasName && !hasForeach {
		return nil, false, nil
	}

	loop := &loopNode{Name: unnamedLoop}
	if hasName && nameVal != nil {
		loop.Name = fmt.Sprintf("%v", nameVal)
	}

	if !hasName {
		return nil, true, &StructureError{Loop: loop.Name, Key: loopNameKey,
			Reason: "Expected loop to be named"}
	}

	foreach, ok := foreachVal.(*orderedmap.Map)
	if !ok {
		return nil, true, &StructureError{Loop: loop.Name, Key: foreachKey,
			Reason: fmt.Sprintf("Expected a map with '%s', but was %s", domainKey, typeName(foreachVal))}
	}

	domainVal, found := foreach.Get(domainKey)
	if !found {
		return nil, true, &StructureError{Loop: loop.Name, Key: foreachKey,
			Reason: fmt.Sprintf("Expected a map with '%s'", domainKey)}
	}
	loop.Domain, ok = domainVal.(*orderedmap.Map)
	if !ok {
		return nil, true, &StructureError{Loop: loop.Name, Key: foreachKey + "." + domainKey,
			Reason: fmt.Sprintf("Expected a map of variable names to sequences, but was %s", typeName(domainVal))}
	}

	tasksVal, found := node.Get(tasksKey)
	if !found {
		return nil, true, &StructureError{Loop: loop.Name, Key: tasksKey,
			Reason: "Expected loop to have tasks"}
	}
	loop.Tasks, ok = tasksVal.([]interface{})
	if !ok {
		return nil, true, &StructureError{Loop: loop.Name, Key: tasksKey,
			Reason: fmt.Sprintf("Expected a sequence, but was %s", typeName(tasksVal)),
			Hint:   "check indentation: the child task list must be indented under the loop's 'tasks:' key"}
	}

	if varsVal, found := node.Get(varsKey); found && varsVal != nil {
		loop.Vars, ok = varsVal.(*orderedmap.Map)
		if !ok {
			return nil, true, &StructureError{Loop: loop.Name, Key: varsKey,
				Reason: fmt.Sprintf("Expected a map of variable names to values, but was %s", typeName(varsVal))}
		}
	}

	return loop, true, nil
}

// Bindings returns every assignment of domain variables in cartesian
// order: variables sorted by name, the last one varying fastest.
// An empty domain has exactly one (empty) binding; an empty axis has none.
func (l *loopNode) Bindings() ([]starlark.StringDict, error) {
	var names []string
	l.Domain.Iterate(func(k, _ interface{}) {
		names = append(names, fmt.Sprintf("%v", k))
	})
	sort.Strings(names)

	axes := make([][]starlark.Value, len(names))
	total := 1

	for i, name := range names {
		val, _ := l.Domain.Get(name)
		key := foreachKey + "." + domainKey + "." + name

		switch typedVal := val.(type) {
		case nil:
			return nil, &StructureError{Loop: l.Name, Key: key,
				Reason: "Expected a sequence of values, but was null"}

		case string:
			return nil, &StructureError{Loop: l.Name, Key: key,
				Reason: "Expected a sequence of values, but was a string",
				Hint:   fmt.Sprintf("use a list such as [%s]", typedVal)}

		case []interface{}:
			for _, item := range typedVal {
				starlarkVal := core.NewGoValue(item).AsStarlarkValue()
				starlarkVal.Freeze()
				axes[i] = append(axes[i], starlarkVal)
			}
			total *= len(typedVal)

		default:
			return nil, &StructureError{Loop: l.Name, Key: key,
				Reason: fmt.Sprintf("Expected a sequence of values, but was %s", typeName(val))}
		}
	}

	bindings := make([]starlark.StringDict, 0, total)
	if total == 0 {
		return bindings, nil
	}

	idxs := make([]int, len(names))
	for {
		binding := make(starlark.StringDict, len(names))
		for i, name := range names {
			binding[name] = axes[i][idxs[i]]
		}
		bindings = append(bindings, binding)

		pos := len(idxs) - 1
		for ; pos >= 0; pos-- {
			idxs[pos]++
			if idxs[pos] < len(axes[pos]) {
				break
			}
			idxs[pos] = 0
		}
		if pos < 0 {
			return bindings, nil
		}
	}
}
