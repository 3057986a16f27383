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

// Scope is an immutable stack of name layers; later layers shadow
// earlier ones. Pushing returns a new Scope and never changes the receiver.
type Scope struct {
	layers []starlark.StringDict
}

func NewScope() *Scope {
	return &Scope{}
}

// NewScopeFromValues returns a scope with a single layer holding values.
func NewScopeFromValues(values *orderedmap.Map) *Scope {
	layer := starlark.StringDict{}
	if values != nil {
		values.Iterate(func(k, v interface{}) {
			layer[fmt.Sprintf("%v", k)] = core.NewGoValue(v).AsStarlarkValue()
		})
	}
	return NewScope().Push(layer)
}

// Push returns a child scope with a copy of layer on top. Values are frozen
// so that sibling scopes sharing them cannot observe mutations.
func (s *Scope) Push(layer starlark.StringDict) *Scope {
	copied := make(starlark.StringDict, len(layer))
	for name, val := range layer {
		val.Freeze()
		copied[name] = val
	}

	layers := make([]starlark.StringDict, 0, len(s.layers)+1)
	layers = append(layers, s.layers...)
	layers = append(layers, copied)
	return &Scope{layers: layers}
}

func (s *Scope) With(name string, val starlark.Value) *Scope {
	return s.Push(starlark.StringDict{name: val})
}

// Vars flattens all layers into a single dictionary.
func (s *Scope) Vars() starlark.StringDict {
	result := starlark.StringDict{}
	for _, layer := range s.layers {
		for name, val := range layer {
			result[name] = val
		}
	}
	return result
}

// Names returns visible names, sorted.
func (s *Scope) Names() []string {
	var names []string
	for name := range s.Vars() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
