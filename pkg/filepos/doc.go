// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package filepos provides the concept of Position: a source name (a file, stdin
or a rendered task node) plus line and column within that source.

Template errors carry a Position so that the user can find the offending tag.
The zero-value of Position (see NewUnknownPosition()) represents text that has
no known origin, e.g. text produced by an earlier rendering pass.
*/
package filepos
