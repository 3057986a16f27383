// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"carvel.dev/tektonc/pkg/cmd/template"
	"github.com/spf13/cobra"
)

// NewTemplateCmd constructs the expanding command. It lives outside of the
// "template" package so that "template" package does not carry dependency on cobra.
func NewTemplateCmd(o *template.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Expand a pipeline template into a flat Tekton pipeline",
		RunE:  func(c *cobra.Command, args []string) error { return o.Run() },
	}
	o.BindFlags(cmd.Flags())
	return cmd
}
