// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package files

import (
	"io"
)

// SetStdinForTest replaces standard input and forgets earlier reads.
func SetStdinForTest(r io.Reader) {
	stdinLock.Lock()
	defer stdinLock.Unlock()
	stdin = r
	hasStdinBeenRead = false
}
