// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package inlineblock shields YAML block scalars keyed by "__jinja__" from the
first template pass.

Inside such a block the template delimiters are swapped for placeholders
that the template language does not recognize; Restore swaps them back
right before the block is rendered by the second pass.
*/
package inlineblock
