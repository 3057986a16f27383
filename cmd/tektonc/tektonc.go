// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"carvel.dev/tektonc/pkg/cmd"
	uierrs "github.com/cppforlife/go-cli-ui/errors"
)

func main() {
	opts := cmd.NewDefaultTektoncOptions()
	command := cmd.NewTektoncCmd(opts)

	err := command.Execute()
	if err != nil {
		if opts.Template.Debug {
			fmt.Fprintf(os.Stderr, "tektonc: Error: %s\n", uierrs.NewMultiLineError(err))
		} else {
			fmt.Fprintf(os.Stderr, "tektonc: Error: %s\n", err)
		}
		os.Exit(1)
	}
}
