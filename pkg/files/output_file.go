// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package files

import (
	"fmt"
	"os"
	"path/filepath"
)

type OutputFile struct {
	path string
	data []byte
}

func NewOutputFile(path string, data []byte) OutputFile {
	return OutputFile{path, data}
}

func (f OutputFile) Path() string  { return f.path }
func (f OutputFile) Bytes() []byte { return f.data }

// Create writes data next to the destination and renames it into place,
// so readers never observe a partially written file.
func (f OutputFile) Create() error {
	dir := filepath.Dir(f.path)

	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return fmt.Errorf("Creating output directory '%s': %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("Creating output file '%s': %w", f.path, err)
	}

	_, err = tmp.Write(f.data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmp.Name(), 0644)
	}
	if err == nil {
		err = os.Rename(tmp.Name(), f.path)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("Writing output file '%s': %w", f.path, err)
	}
	return nil
}
