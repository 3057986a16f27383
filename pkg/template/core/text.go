// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"github.com/k14s/starlark-go/starlark"
)

// AsText converts a value into the text inserted into rendered output.
// Strings are inserted as is, everything else uses its repr.
func AsText(val starlark.Value) string {
	switch typedVal := val.(type) {
	case starlark.String:
		return string(typedVal)
	case nil:
		return ""
	default:
		return typedVal.String()
	}
}
