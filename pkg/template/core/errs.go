// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"fmt"
	"runtime/debug"

	"github.com/k14s/starlark-go/starlark"
)

type StarlarkFunc func(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

// BuiltinPanicError reports a builtin that panicked instead of returning an error.
type BuiltinPanicError struct {
	Name  string
	Value interface{}
	Stack []byte
}

func (e *BuiltinPanicError) Error() string {
	return fmt.Sprintf("%s: unexpected failure: %v (backtrace: %s)", e.Name, e.Value, e.Stack)
}

// ErrWrapper prefixes errors with the builtin name so that messages read
// "<filter>: <problem>", and turns panics into BuiltinPanicError.
func ErrWrapper(wrappedFunc StarlarkFunc) StarlarkFunc {
	return func(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (val starlark.Value, resultErr error) {
		defer func() {
			if rec := recover(); rec != nil {
				val = nil
				resultErr = &BuiltinPanicError{Name: f.Name(), Value: rec, Stack: debug.Stack()}
			}
		}()

		val, err := wrappedFunc(thread, f, args, kwargs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name(), err)
		}
		return val, nil
	}
}
