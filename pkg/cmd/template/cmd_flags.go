// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package template

// CmdFlags interface decouples this package from
// depending on cobra.Command/flags concrete types.
type CmdFlags interface {
	BoolVar(p *bool, name string, value bool, usage string)

	IntVar(p *int, name string, value int, usage string)

	StringVarP(p *string, name, shorthand string, value string, usage string)

	StringSliceVar(p *[]string, name string, value []string, usage string)
}
