// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package expand

import (
	"fmt"
	"strings"

	"carvel.dev/tektonc/pkg/orderedmap"
)

// StructureError reports a document shape that cannot be expanded,
// such as a loop whose tasks are not a sequence.
type StructureError struct {
	Loop   string
	Key    string
	Reason string
	Hint   string
	// Binding lists the closest enclosing loop binding, e.g. "model=a, rate=1".
	Binding string
}

var _ error = &StructureError{}

func (e *StructureError) Error() string {
	var prefix []string
	if len(e.Loop) > 0 {
		prefix = append(prefix, fmt.Sprintf("Loop '%s'", e.Loop))
	}
	if len(e.Key) > 0 {
		prefix = append(prefix, fmt.Sprintf("key '%s'", e.Key))
	}

	msg := e.Reason
	if len(prefix) > 0 {
		msg = strings.Join(prefix, " ") + ": " + msg
	}
	if len(e.Binding) > 0 {
		msg += fmt.Sprintf(" (binding: %s)", e.Binding)
	}
	if len(e.Hint) > 0 {
		msg += fmt.Sprintf(" (hint: %s)", e.Hint)
	}
	return msg
}

// VarError reports a loop var that could not be evaluated for a binding.
type VarError struct {
	Loop    string
	Var     string
	Binding string
	Err     error
}

var _ error = &VarError{}

func (e *VarError) Error() string {
	return fmt.Sprintf("Loop '%s': evaluating var '%s' (%s): %s", e.Loop, e.Var, e.Binding, e.Err)
}

func (e *VarError) Unwrap() error { return e.Err }

func typeName(val interface{}) string {
	switch val.(type) {
	case nil:
		return "null"
	case *orderedmap.Map:
		return "map"
	case []interface{}:
		return "sequence"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int64, uint64:
		return "integer"
	case float64:
		return "float"
	default:
		return fmt.Sprintf("%T", val)
	}
}
