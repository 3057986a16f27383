// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"carvel.dev/tektonc/pkg/cmd/template"
	"carvel.dev/tektonc/pkg/version"
	"github.com/cppforlife/cobrautil"
	"github.com/spf13/cobra"
)

type TektoncOptions struct {
	Template *template.Options
}

func NewDefaultTektoncOptions() *TektoncOptions {
	return &TektoncOptions{Template: template.NewOptions()}
}

func NewDefaultTektoncCmd() *cobra.Command {
	return NewTektoncCmd(NewDefaultTektoncOptions())
}

func NewTektoncCmd(o *TektoncOptions) *cobra.Command {
	cmd := NewTemplateCmd(o.Template)

	cmd.Use = "tektonc"
	cmd.Version = version.Version
	cmd.Short = "tektonc expands loops in Tekton pipeline templates"
	cmd.Long = `tektonc expands loops in Tekton pipeline templates.

Templates are rendered twice: first with values, keeping expressions that
refer to loop variables, then once per task with every loop binding in scope.
Tasks of the form {loopName, foreach: {domain}, vars, tasks} are replaced by
one copy of their tasks per combination of domain values.`

	// Affects children as well
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	// Disable docs header
	cmd.DisableAutoGenTag = true

	cmd.AddCommand(NewVersionCmd(NewVersionOptions()))

	// Reconfigure Commands
	cobrautil.VisitCommands(cmd, cobrautil.ReconfigureCmdWithSubcmd,
		cobrautil.DisallowExtraArgs, cobrautil.WrapRunEForCmd(cobrautil.ResolveFlagsForCmd))

	return cmd
}
