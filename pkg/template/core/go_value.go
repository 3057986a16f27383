// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"fmt"

	"carvel.dev/tektonc/pkg/orderedmap"
	"github.com/k14s/starlark-go/starlark"
)

type GoValueToStarlarkValueConversion interface {
	AsStarlarkValue() starlark.Value
}

// GoValue converts document values (as produced by yamlmeta) into starlark values.
// Maps become ordered structs so that templates can use both m.key and m['key'].
type GoValue struct {
	val interface{}
}

func NewGoValue(val interface{}) GoValue {
	return GoValue{val}
}

func (e GoValue) AsStarlarkValue() starlark.Value {
	return e.asStarlarkValue(e.val)
}

func (e GoValue) asStarlarkValue(val interface{}) starlark.Value {
	if obj, ok := val.(GoValueToStarlarkValueConversion); ok {
		return obj.AsStarlarkValue()
	}
	if obj, ok := val.(starlark.Value); ok {
		return obj
	}

	switch typedVal := val.(type) {
	case nil:
		return starlark.None

	case bool:
		return starlark.Bool(typedVal)

	case string:
		return starlark.String(typedVal)

	case int:
		return starlark.MakeInt(typedVal)

	case int64:
		return starlark.MakeInt64(typedVal)

	case uint:
		return starlark.MakeUint(typedVal)

	case uint64:
		return starlark.MakeUint64(typedVal)

	case float64:
		return starlark.Float(typedVal)

	case *orderedmap.Map:
		return e.mapAsStarlarkValue(typedVal)

	case map[string]interface{}:
		return e.asStarlarkValue(orderedmap.Conversion{Object: typedVal}.FromUnorderedMaps())

	case []interface{}:
		return e.listAsStarlarkValue(typedVal)

	default:
		panic(fmt.Sprintf("unknown type %T for conversion to starlark value", val))
	}
}

func (e GoValue) mapAsStarlarkValue(val *orderedmap.Map) starlark.Value {
	data := orderedmap.NewMap()
	val.Iterate(func(k, v interface{}) {
		data.Set(fmt.Sprintf("%v", k), e.asStarlarkValue(v))
	})
	return NewStarlarkStruct(data)
}

func (e GoValue) listAsStarlarkValue(val []interface{}) *starlark.List {
	result := make([]starlark.Value, 0, len(val))
	for _, v := range val {
		result = append(result, e.asStarlarkValue(v))
	}
	return starlark.NewList(result)
}
