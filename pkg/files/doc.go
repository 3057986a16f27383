// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package files reads template and values inputs from local paths, standard
input ("-") or HTTP URLs, and writes rendered pipelines to output files.

The rest of tektonc works on bytes plus a description of where they came from
so that error messages can name the input.
*/
package files
