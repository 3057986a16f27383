// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

// Package values loads top-level template values from YAML, JSON or TOML
// and merges selected run-descriptor parameters into them.
package values
