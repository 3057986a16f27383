// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package library holds the filters and global functions available to pipeline
templates.

Filters receive the piped value as their first positional argument, so
`{{ name|replace("_", "-") }}` calls replace(name, "_", "-").
*/
package library
