// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package library

import (
	"fmt"

	"carvel.dev/tektonc/pkg/orderedmap"
	"carvel.dev/tektonc/pkg/template/core"
	"github.com/k14s/starlark-go/starlark"
)

type enumerateModule struct{}

// EnumerateList returns one record per item with its neighbours, which makes
// serial chains (runAfter the previous item) easy to express.
// Values that cannot be iterated produce an empty list.
func (b enumerateModule) EnumerateList(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if args.Len() != 1 || len(kwargs) > 0 {
		return starlark.None, fmt.Errorf("expected exactly one argument")
	}

	items := b.items(args.Index(0))
	count := len(items)

	var result []starlark.Value
	for i, item := range items {
		record := orderedmap.NewMap()
		record.Set("i", starlark.MakeInt(i))
		record.Set("item", item)
		record.Set("prev_i", starlark.MakeInt(i-1))
		record.Set("next_i", b.neighbourIdx(i+1, count))
		record.Set("is_first", starlark.Bool(i == 0))
		record.Set("is_last", starlark.Bool(i == count-1))
		record.Set("prev_item", b.neighbour(items, i-1))
		record.Set("next_item", b.neighbour(items, i+1))
		result = append(result, core.NewStarlarkStruct(record))
	}
	return starlark.NewList(result), nil
}

func (enumerateModule) items(val starlark.Value) []starlark.Value {
	var result []starlark.Value
	switch typedVal := val.(type) {
	case starlark.String:
		for _, r := range string(typedVal) {
			result = append(result, starlark.String(string(r)))
		}
	case starlark.Iterable:
		iter := typedVal.Iterate()
		defer iter.Done()

		var x starlark.Value
		for iter.Next(&x) {
			result = append(result, x)
		}
	}
	return result
}

func (enumerateModule) neighbourIdx(idx, count int) starlark.Value {
	if idx < count {
		return starlark.MakeInt(idx)
	}
	return starlark.None
}

func (enumerateModule) neighbour(items []starlark.Value, idx int) starlark.Value {
	if idx >= 0 && idx < len(items) {
		return items[idx]
	}
	return starlark.None
}
