// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package library

import (
	tplcore "carvel.dev/tektonc/pkg/template/core"
	"github.com/k14s/starlark-go/starlark"
)

// Filters returns all filters keyed by the name used after a pipe.
func Filters() map[string]tplcore.StarlarkFunc {
	return map[string]tplcore.StarlarkFunc{
		"dns":  namesModule{}.DNS,
		"slug": namesModule{}.Slug,

		"tojson": jsonModule{}.ToJSON,

		"lower":   stringsModule{}.Lower,
		"upper":   stringsModule{}.Upper,
		"trim":    stringsModule{}.Trim,
		"string":  stringsModule{}.String,
		"replace": stringsModule{}.Replace,
		"join":    stringsModule{}.Join,
		"length":  stringsModule{}.Length,
		"int":     stringsModule{}.Int,
		"first":   stringsModule{}.First,
		"last":    stringsModule{}.Last,
	}
}

// Globals returns functions callable by name from any expression.
func Globals() starlark.StringDict {
	return starlark.StringDict{
		"enumerate_list": starlark.NewBuiltin("enumerate_list", tplcore.ErrWrapper(enumerateModule{}.EnumerateList)),
	}
}
