// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package library

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"carvel.dev/tektonc/pkg/template/core"
	"github.com/k14s/starlark-go/starlark"
)

const (
	dnsLabelMaxLen = 63
	dnsHashLen     = 8
)

var (
	dnsInvalidRunsRegexp  = regexp.MustCompile(`[^a-z0-9-]+`)
	slugInvalidRunsRegexp = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)
)

// DNS turns s into a DNS-1123 label. Labels longer than 63 characters are
// shortened and suffixed with a hash of the full label, so distinct long
// inputs stay distinct.
func DNS(s string) string {
	label := strings.Trim(dnsInvalidRunsRegexp.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(label) <= dnsLabelMaxLen {
		return label
	}
	sum := sha1.Sum([]byte(label))
	hash := hex.EncodeToString(sum[:])[:dnsHashLen]
	return strings.Trim(label[:dnsLabelMaxLen-1-dnsHashLen]+"-"+hash, "-")
}

// Slug replaces runs of characters outside [A-Za-z0-9_.-] with a dash.
func Slug(s string) string {
	return slugInvalidRunsRegexp.ReplaceAllString(s, "-")
}

type namesModule struct{}

func (b namesModule) DNS(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if args.Len() != 1 || len(kwargs) > 0 {
		return starlark.None, fmt.Errorf("expected exactly one argument")
	}
	return starlark.String(DNS(core.AsText(args.Index(0)))), nil
}

func (b namesModule) Slug(thread *starlark.Thread, f *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if args.Len() != 1 || len(kwargs) > 0 {
		return starlark.None, fmt.Errorf("expected exactly one argument")
	}
	return starlark.String(Slug(core.AsText(args.Index(0)))), nil
}
