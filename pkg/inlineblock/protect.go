// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package inlineblock

import (
	"strings"
)

const (
	// Key marks both inline-block nodes and task preambles.
	Key = "__jinja__"

	tabWidth = 8
)

var delimiters = []struct {
	Delim       string
	Placeholder string
}{
	{"{{", "<@@"},
	{"}}", "@@>"},
	{"{%", "<@%"},
	{"%}", "%@>"},
	{"{#", "<@#"},
	{"#}", "#@>"},
}

var (
	protector *strings.Replacer
	restorer  *strings.Replacer
)

func init() {
	var protectPairs, restorePairs []string
	for _, d := range delimiters {
		protectPairs = append(protectPairs, d.Delim, d.Placeholder)
		restorePairs = append(restorePairs, d.Placeholder, d.Delim)
	}
	protector = strings.NewReplacer(protectPairs...)
	restorer = strings.NewReplacer(restorePairs...)
}

// Protect replaces template delimiters inside every "__jinja__: |" (or ">")
// block scalar of src. Everything else, including line endings, is left as is.
func Protect(src string) string {
	var out strings.Builder
	out.Grow(len(src))

	scan := &scanner{}
	for _, line := range strings.SplitAfter(src, "\n") {
		out.WriteString(scan.Line(line))
	}
	return out.String()
}

// Restore is the inverse of Protect's substitution.
func Restore(text string) string {
	return restorer.Replace(text)
}

type scanner struct {
	inBlock bool
	keyCol  int
}

// Line consumes one line (including its line ending) and returns it,
// protected when it belongs to a block.
func (s *scanner) Line(line string) string {
	content := strings.TrimLeft(line, " \t")
	col := column(line[:len(line)-len(content)])

	if s.inBlock {
		if len(strings.TrimSpace(content)) == 0 || col > s.keyCol {
			return protector.Replace(line)
		}
		s.inBlock = false
	}

	if keyCol, found := blockStart(content, col); found {
		s.inBlock = true
		s.keyCol = keyCol
	}
	return line
}

// blockStart checks whether content (a line without its indentation,
// which is col wide) opens a block scalar under Key, optionally as a list
// item. It returns the column the key starts at.
func blockStart(content string, col int) (int, bool) {
	keyCol := col

	if strings.HasPrefix(content, "- ") {
		afterDash := content[2:]
		trimmed := strings.TrimLeft(afterDash, " \t")
		keyCol = col + 2 + len(afterDash) - len(trimmed)
		content = trimmed
	}

	if !strings.HasPrefix(content, Key) {
		return 0, false
	}
	tail := strings.TrimLeft(content[len(Key):], " \t")
	if !strings.HasPrefix(tail, ":") {
		return 0, false
	}
	tail = strings.TrimLeft(tail[1:], " \t")
	if len(tail) == 0 || (tail[0] != '|' && tail[0] != '>') {
		return 0, false
	}
	return keyCol, true
}

// column returns the display width of leading whitespace,
// expanding tabs to the next multiple of tabWidth.
func column(indent string) int {
	col := 0
	for _, ch := range indent {
		if ch == '\t' {
			col += tabWidth - col%tabWidth
		} else {
			col++
		}
	}
	return col
}
