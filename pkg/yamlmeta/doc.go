// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package yamlmeta parses YAML into document trees and prints them back.

A document tree is made of *orderedmap.Map (keys in source order),
[]interface{} and scalars (string, int, float64, bool, nil). Timestamps and
binary values are kept as strings so that printing a parsed document
never changes its scalars.
*/
package yamlmeta
