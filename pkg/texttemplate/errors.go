// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package texttemplate

import (
	"fmt"

	"carvel.dev/tektonc/pkg/filepos"
)

// SyntaxError reports malformed template text. It is fatal in both modes.
type SyntaxError struct {
	Position *filepos.Position
	Msg      string
}

func newSyntaxError(pos *filepos.Position, msg string, args ...interface{}) *SyntaxError {
	return &SyntaxError{Position: pos, Msg: fmt.Sprintf(msg, args...)}
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("template syntax error at %s: %s", e.Position.AsCompactString(), e.Msg)
}

// EvalError reports a failure while evaluating an expression, e.g. an
// identifier that is not defined when rendering strictly.
type EvalError struct {
	Position *filepos.Position
	Expr     string
	Err      error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluating '%s' at %s: %s", e.Expr, e.Position.AsCompactString(), e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

// UndefinedError is returned when a strictly undefined value is used.
type UndefinedError struct {
	Name string
}

func (e *UndefinedError) Error() string {
	return fmt.Sprintf("'%s' is undefined", e.Name)
}
