// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package files

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// StdinPath is the path argument that refers to standard input.
const StdinPath = "-"

type Source interface {
	Description() string
	// Name is the base name used for format detection and error messages.
	Name() string
	Bytes() ([]byte, error)
}

var _ []Source = []Source{BytesSource{}, StdinSource{}, LocalSource{}, HTTPSource{}}

// NewSource picks a source for a command line path argument.
func NewSource(p string) Source {
	switch {
	case p == StdinPath:
		return StdinSource{}
	case strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://"):
		return NewHTTPSource(p)
	default:
		return NewLocalSource(p)
	}
}

type BytesSource struct {
	name string
	data []byte
}

func NewBytesSource(name string, data []byte) BytesSource { return BytesSource{name, data} }

func (s BytesSource) Description() string    { return s.name }
func (s BytesSource) Name() string           { return s.name }
func (s BytesSource) Bytes() ([]byte, error) { return s.data, nil }

type StdinSource struct{}

func (s StdinSource) Description() string    { return "stdin" }
func (s StdinSource) Name() string           { return "stdin.yaml" }
func (s StdinSource) Bytes() ([]byte, error) { return ReadStdin() }

type LocalSource struct {
	path string
}

func NewLocalSource(path string) LocalSource { return LocalSource{path} }

func (s LocalSource) Description() string { return fmt.Sprintf("file '%s'", s.path) }
func (s LocalSource) Name() string        { return filepath.Base(s.path) }

func (s LocalSource) Bytes() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("Reading %s: %w", s.Description(), err)
	}
	return data, nil
}

type HTTPSource struct {
	url    string
	Client *http.Client
}

func NewHTTPSource(url string) HTTPSource { return HTTPSource{url, &http.Client{}} }

func (s HTTPSource) Description() string { return fmt.Sprintf("HTTP URL '%s'", s.url) }
func (s HTTPSource) Name() string        { return path.Base(s.url) }

func (s HTTPSource) Bytes() ([]byte, error) {
	resp, err := s.Client.Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("Requesting URL '%s': %s", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("Requesting URL '%s': %s", s.url, resp.Status)
	}

	result, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("Reading URL '%s': %s", s.url, err)
	}
	return result, nil
}
