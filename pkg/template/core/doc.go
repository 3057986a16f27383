// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

/*
Package core converts values between document trees and starlark, and holds
helpers shared by builtins exposed to template expressions.
*/
package core
