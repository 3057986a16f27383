// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package orderedmap provides a map implementation where the order of keys is
maintained (unlike the native Go map).

Every mapping of a pipeline document is held in a Map so that expanding the
same document twice produces byte-identical output.
*/
package orderedmap
