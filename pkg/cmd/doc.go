// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package cmd is home to tektonc's cobra commands
(not to be confused with ./cmd which contains the bootstrapping for executing tektonc).

The root command expands a pipeline template:

	$ tektonc -t pipeline.yaml.j2 -f values.yaml -o build/pipeline.yaml
*/
package cmd
