// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package pipeline turns a pipeline template into a flat pipeline document.

Rendering happens in two passes. The first pass renders the whole template
with the values in passthrough mode, so expressions that refer to loop
variables survive as template text. Inline "__jinja__" blocks are protected
from the first pass entirely. The result is parsed as YAML and handed to the
loop expander, which renders every task strictly in its loop scope.
*/
package pipeline
