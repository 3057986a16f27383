// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"fmt"
	"io"
	"os"

	"carvel.dev/tektonc/pkg/files"
)

// PlainUI prints results to stdout and diagnostics to stderr.
type PlainUI struct {
	debug  bool
	stdout io.Writer
	stderr io.Writer
}

var _ files.UI = PlainUI{}

func NewPlainUI(debug bool) PlainUI { return PlainUI{debug, os.Stdout, os.Stderr} }

// NewWriterUI is like NewPlainUI but writes to the given writers.
func NewWriterUI(debug bool, stdout, stderr io.Writer) PlainUI {
	return PlainUI{debug, stdout, stderr}
}

func (ui PlainUI) Printf(str string, args ...interface{}) {
	fmt.Fprintf(ui.stdout, str, args...)
}

func (ui PlainUI) Warnf(str string, args ...interface{}) {
	fmt.Fprintf(ui.stderr, str, args...)
}

func (ui PlainUI) Debugf(str string, args ...interface{}) {
	if ui.debug {
		fmt.Fprintf(ui.stderr, str, args...)
	}
}

func (ui PlainUI) DebugWriter() io.Writer {
	if ui.debug {
		return ui.stderr
	}
	return noopWriter{}
}

type noopWriter struct{}

var _ io.Writer = noopWriter{}

func (w noopWriter) Write(data []byte) (int, error) { return len(data), nil }
