// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package library

import (
	"fmt"
	"strconv"
	"strings"

	"carvel.dev/tektonc/pkg/template/core"
	"github.com/k14s/starlark-go/starlark"
)

type stringsModule struct{}

func (b stringsModule) Lower(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return b.mapText(f, args, kwargs, strings.ToLower)
}

func (b stringsModule) Upper(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return b.mapText(f, args, kwargs, strings.ToUpper)
}

func (b stringsModule) Trim(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return b.mapText(f, args, kwargs, strings.TrimSpace)
}

func (b stringsModule) String(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return b.mapText(f, args, kwargs, func(s string) string { return s })
}

func (b stringsModule) mapText(f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple, fn func(string) string) (starlark.Value, error) {
	if args.Len() != 1 || len(kwargs) > 0 {
		return starlark.None, fmt.Errorf("expected exactly one argument")
	}
	return starlark.String(fn(core.AsText(args.Index(0)))), nil
}

func (b stringsModule) Replace(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var val starlark.Value
	var old, replacement string
	count := -1
	if err := starlark.UnpackArgs(f.Name(), args, kwargs, "value", &val, "old", &old, "new", &replacement, "count?", &count); err != nil {
		return starlark.None, err
	}
	return starlark.String(strings.Replace(core.AsText(val), old, replacement, count)), nil
}

func (b stringsModule) Join(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var val starlark.Iterable
	var sep string
	if err := starlark.UnpackArgs(f.Name(), args, kwargs, "value", &val, "d?", &sep); err != nil {
		return starlark.None, err
	}

	iter := val.Iterate()
	defer iter.Done()

	var pieces []string
	var x starlark.Value
	for iter.Next(&x) {
		pieces = append(pieces, core.AsText(x))
	}
	return starlark.String(strings.Join(pieces, sep)), nil
}

func (b stringsModule) Length(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if args.Len() != 1 || len(kwargs) > 0 {
		return starlark.None, fmt.Errorf("expected exactly one argument")
	}
	length := starlark.Len(args.Index(0))
	if length < 0 {
		return starlark.None, fmt.Errorf("value of type %s has no length", args.Index(0).Type())
	}
	return starlark.MakeInt(length), nil
}

// Int converts strings and floats to integers, falling back to default
// when conversion is not possible.
func (b stringsModule) Int(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var val starlark.Value
	var defaultVal starlark.Value = starlark.MakeInt(0)
	if err := starlark.UnpackArgs(f.Name(), args, kwargs, "value", &val, "default?", &defaultVal); err != nil {
		return starlark.None, err
	}

	switch typedVal := val.(type) {
	case starlark.Int:
		return typedVal, nil
	case starlark.Float:
		return starlark.NumberToInt(typedVal)
	case starlark.Bool:
		if typedVal {
			return starlark.MakeInt(1), nil
		}
		return starlark.MakeInt(0), nil
	case starlark.String:
		trimmed := strings.TrimSpace(string(typedVal))
		if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return starlark.MakeInt64(i), nil
		}
		if fl, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return starlark.NumberToInt(starlark.Float(fl))
		}
	}
	return defaultVal, nil
}

func (b stringsModule) First(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	items, err := b.items(args, kwargs)
	if err != nil || len(items) == 0 {
		return starlark.None, err
	}
	return items[0], nil
}

func (b stringsModule) Last(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	items, err := b.items(args, kwargs)
	if err != nil || len(items) == 0 {
		return starlark.None, err
	}
	return items[len(items)-1], nil
}

func (b stringsModule) items(args starlark.Tuple, kwargs []starlark.Tuple) ([]starlark.Value, error) {
	if args.Len() != 1 || len(kwargs) > 0 {
		return nil, fmt.Errorf("expected exactly one argument")
	}
	iterable, ok := args.Index(0).(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("expected a sequence, but was %s", args.Index(0).Type())
	}

	iter := iterable.Iterate()
	defer iter.Done()

	var result []starlark.Value
	var x starlark.Value
	for iter.Next(&x) {
		result = append(result, x)
	}
	return result, nil
}
