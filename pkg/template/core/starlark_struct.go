// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"fmt"
	"strings"

	"carvel.dev/tektonc/pkg/orderedmap"
	"github.com/k14s/starlark-go/starlark"
)

// StarlarkStruct is an immutable ordered mapping exposed to templates.
// Keys shadow the mapping methods (items, keys, values, get).
type StarlarkStruct struct {
	data *orderedmap.Map // [string]starlark.Value
}

func NewStarlarkStruct(goStringKeyToStarlarkValue *orderedmap.Map) *StarlarkStruct {
	return &StarlarkStruct{data: goStringKeyToStarlarkValue}
}

var _ starlark.Value = (*StarlarkStruct)(nil)
var _ starlark.HasAttrs = (*StarlarkStruct)(nil)
var _ starlark.IterableMapping = (*StarlarkStruct)(nil)
var _ starlark.Sequence = (*StarlarkStruct)(nil)

func (s *StarlarkStruct) Type() string          { return "map" }
func (s *StarlarkStruct) Truth() starlark.Bool  { return s.data.Len() > 0 }
func (s *StarlarkStruct) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: map") }
func (s *StarlarkStruct) Len() int              { return s.data.Len() }

func (s *StarlarkStruct) Freeze() {
	s.data.Iterate(func(_, v interface{}) {
		v.(starlark.Value).Freeze()
	})
}

func (s *StarlarkStruct) String() string {
	var pieces []string
	s.data.Iterate(func(k, v interface{}) {
		pieces = append(pieces, starlark.String(k.(string)).String()+": "+v.(starlark.Value).String())
	})
	return "{" + strings.Join(pieces, ", ") + "}"
}

// Attr returns (nil, nil) if attribute not present
func (s *StarlarkStruct) Attr(name string) (starlark.Value, error) {
	val, found := s.data.Get(name)
	if found {
		return val.(starlark.Value), nil
	}
	if method, found := structMethods[name]; found {
		return starlark.NewBuiltin(name, ErrWrapper(method)).BindReceiver(s), nil
	}
	return nil, nil
}

// AttrNames lists keys followed by methods not shadowed by keys.
func (s *StarlarkStruct) AttrNames() []string {
	var names []string
	s.data.Iterate(func(key, _ interface{}) {
		names = append(names, key.(string))
	})
	for _, name := range []string{"get", "items", "keys", "values"} {
		if _, found := s.data.Get(name); !found {
			names = append(names, name)
		}
	}
	return names
}

func (s *StarlarkStruct) Get(key starlark.Value) (val starlark.Value, found bool, err error) {
	keyStr, ok := key.(starlark.String)
	if !ok {
		return nil, false, fmt.Errorf("expected key %s to be a string but is a %s", key, key.Type())
	}
	v, found := s.data.Get(string(keyStr))
	if found {
		return v.(starlark.Value), true, nil
	}
	return nil, false, nil
}

func (s *StarlarkStruct) Iterate() starlark.Iterator {
	return &StarlarkStructIterator{
		keys: s.data.Keys(),
	}
}

func (s *StarlarkStruct) Items() (items []starlark.Tuple) {
	s.data.Iterate(func(key, val interface{}) {
		items = append(items, starlark.Tuple{
			starlark.String(key.(string)),
			val.(starlark.Value),
		})
	})
	return
}

type StarlarkStructIterator struct {
	keys []interface{}
	idx  int
}

var _ starlark.Iterator = &StarlarkStructIterator{}

func (s *StarlarkStructIterator) Next(p *starlark.Value) bool {
	if s.idx < len(s.keys) {
		*p = starlark.String(s.keys[s.idx].(string))
		s.idx++
		return true
	}
	return false
}

func (s *StarlarkStructIterator) Done() { /* intentionally blank. */ }

var structMethods = map[string]StarlarkFunc{
	"items": func(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(f.Name(), args, kwargs, 0); err != nil {
			return nil, err
		}
		var result []starlark.Value
		for _, item := range f.Receiver().(*StarlarkStruct).Items() {
			result = append(result, item)
		}
		return starlark.NewList(result), nil
	},
	"keys": func(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(f.Name(), args, kwargs, 0); err != nil {
			return nil, err
		}
		var result []starlark.Value
		for _, item := range f.Receiver().(*StarlarkStruct).Items() {
			result = append(result, item[0])
		}
		return starlark.NewList(result), nil
	},
	"values": func(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(f.Name(), args, kwargs, 0); err != nil {
			return nil, err
		}
		var result []starlark.Value
		for _, item := range f.Receiver().(*StarlarkStruct).Items() {
			result = append(result, item[1])
		}
		return starlark.NewList(result), nil
	},
	"get": func(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var key starlark.Value
		var defaultVal starlark.Value = starlark.None
		if err := starlark.UnpackPositionalArgs(f.Name(), args, kwargs, 1, &key, &defaultVal); err != nil {
			return nil, err
		}
		val, found, err := f.Receiver().(*StarlarkStruct).Get(key)
		if err != nil {
			return nil, err
		}
		if !found {
			return defaultVal, nil
		}
		return val, nil
	},
}
