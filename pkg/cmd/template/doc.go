// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package template implements the default tektonc command: read a pipeline
template and values, expand it, and write the resulting pipeline.

It does not depend on cobra so that it can be driven as a library.
*/
package template
