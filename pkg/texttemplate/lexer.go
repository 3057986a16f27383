// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package texttemplate

import (
	"regexp"
	"sort"
	"strings"

	"carvel.dev/tektonc/pkg/filepos"
)

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenExpr
	tokenStmt
)

type token struct {
	Kind     tokenKind
	Content  string
	Position *filepos.Position
}

const (
	exprOpen     = "{{"
	exprClose    = "}}"
	stmtOpen     = "{%"
	stmtClose    = "%}"
	commentOpen  = "{#"
	commentClose = "#}"
)

var (
	rawStartRegexp = regexp.MustCompile(`^raw\s*$`)
	rawEndRegexp   = regexp.MustCompile(`\{%([-+]?)\s*endraw\s*([-+]?)%\}`)
)

// lexer splits template source into text, expression and statement tokens.
// Whitespace control follows Jinja with trim_blocks and lstrip_blocks enabled:
// the first newline after a statement or comment tag is dropped, and spaces
// before such a tag are dropped when nothing else precedes it on its line.
// A '-' next to a delimiter strips all adjacent whitespace; '+' disables the
// implicit trimming for that side.
type lexer struct {
	name       string
	data       string
	lineStarts []int
}

func newLexer(name, data string) *lexer {
	// Like Jinja, a single trailing newline is not part of the output
	if strings.HasSuffix(data, "\r\n") {
		data = data[:len(data)-2]
	} else if strings.HasSuffix(data, "\n") {
		data = data[:len(data)-1]
	}

	lineStarts := []int{0}
	for i, ch := range data {
		if ch == '\n' {
			lineStarts = append(lineStarts, i+1)
		}
	}
	return &lexer{name: name, data: data, lineStarts: lineStarts}
}

type trimMode int

const (
	trimNone trimMode = iota
	trimNewline
	trimAllWhitespace
)

func (l *lexer) Tokens() ([]token, error) {
	var tokens []token
	var pendingTrim trimMode
	pos := 0

	for {
		tagStart, tagOpen := l.nextTagStart(pos)

		textEnd := len(l.data)
		if tagStart >= 0 {
			textEnd = tagStart
		}
		textStart := pos
		text := l.data[pos:textEnd]

		switch pendingTrim {
		case trimAllWhitespace:
			trimmed := strings.TrimLeft(text, " \t\r\n")
			textStart += len(text) - len(trimmed)
			text = trimmed
		case trimNewline:
			if strings.HasPrefix(text, "\r\n") {
				text = text[2:]
				textStart += 2
			} else if strings.HasPrefix(text, "\n") {
				text = text[1:]
				textStart++
			}
		}
		pendingTrim = trimNone

		if tagStart < 0 {
			if len(text) > 0 {
				tokens = append(tokens, token{Kind: tokenText, Content: text, Position: l.position(textStart)})
			}
			return tokens, nil
		}

		innerStart := tagStart + len(tagOpen)
		openMarker := l.markerAt(innerStart)
		if openMarker != 0 {
			innerStart++
		}

		switch {
		case openMarker == '-':
			text = strings.TrimRight(text, " \t\r\n")
		case openMarker != '+' && tagOpen != exprOpen:
			text = l.lstrip(text, textStart)
		}
		if len(text) > 0 {
			tokens = append(tokens, token{Kind: tokenText, Content: text, Position: l.position(textStart)})
		}

		innerEnd, tagEnd, err := l.findTagEnd(tagOpen, tagStart, innerStart)
		if err != nil {
			return nil, err
		}

		closeMarker := byte(0)
		if innerEnd > innerStart && (l.data[innerEnd-1] == '-' || l.data[innerEnd-1] == '+') {
			closeMarker = l.data[innerEnd-1]
			innerEnd--
		}

		switch {
		case closeMarker == '-':
			pendingTrim = trimAllWhitespace
		case closeMarker != '+' && tagOpen != exprOpen:
			pendingTrim = trimNewline
		}

		content := strings.TrimSpace(l.data[innerStart:innerEnd])

		switch tagOpen {
		case commentOpen:
			// dropped
		case exprOpen:
			if len(content) == 0 {
				return nil, l.syntaxErr(tagStart, "expected an expression between '{{' and '}}'")
			}
			tokens = append(tokens, token{Kind: tokenExpr, Content: content, Position: l.position(tagStart)})
		case stmtOpen:
			if rawStartRegexp.MatchString(content) {
				rawTokens, nextPos, nextTrim, err := l.raw(tagStart, tagEnd, pendingTrim)
				if err != nil {
					return nil, err
				}
				tokens = append(tokens, rawTokens...)
				pos, pendingTrim = nextPos, nextTrim
				continue
			}
			tokens = append(tokens, token{Kind: tokenStmt, Content: content, Position: l.position(tagStart)})
		}

		pos = tagEnd
	}
}

func (l *lexer) nextTagStart(pos int) (int, string) {
	for i := pos; i+1 < len(l.data); i++ {
		if l.data[i] != '{' {
			continue
		}
		switch l.data[i+1] {
		case '{':
			return i, exprOpen
		case '%':
			return i, stmtOpen
		case '#':
			return i, commentOpen
		}
	}
	return -1, ""
}

func (l *lexer) markerAt(idx int) byte {
	if idx < len(l.data) && (l.data[idx] == '-' || l.data[idx] == '+') {
		return l.data[idx]
	}
	return 0
}

// lstrip drops spaces and tabs that precede a tag on its own line.
func (l *lexer) lstrip(text string, textStart int) string {
	lineStart := strings.LastIndex(text, "\n") + 1
	if lineStart == 0 && textStart != 0 && l.data[textStart-1] != '\n' {
		return text
	}
	if strings.Trim(text[lineStart:], " \t") == "" {
		return text[:lineStart]
	}
	return text
}

// findTagEnd returns the offset where tag content ends and the offset right
// after the closing delimiter. Quoted strings and brackets are skipped over
// so that '}}' inside a string or a dict literal does not close the tag.
func (l *lexer) findTagEnd(tagOpen string, tagStart, innerStart int) (int, int, error) {
	if tagOpen == commentOpen {
		idx := strings.Index(l.data[innerStart:], commentClose)
		if idx < 0 {
			return 0, 0, l.syntaxErr(tagStart, "missing comment closing '#}'")
		}
		return innerStart + idx, innerStart + idx + len(commentClose), nil
	}

	closing := exprClose
	if tagOpen == stmtOpen {
		closing = stmtClose
	}

	var quote byte
	depth := 0
	for i := innerStart; i < len(l.data); i++ {
		ch := l.data[i]
		switch {
		case quote != 0:
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '(' || ch == '[' || ch == '{':
			depth++
		case depth == 0 && strings.HasPrefix(l.data[i:], closing):
			return i, i + len(closing), nil
		case ch == ')' || ch == ']' || ch == '}':
			if depth > 0 {
				depth--
			}
		}
	}
	return 0, 0, l.syntaxErr(tagStart, "missing closing '%s' for '%s'", closing, tagOpen)
}

// raw emits everything up to the matching endraw tag as text.
func (l *lexer) raw(tagStart, rawStart int, afterStart trimMode) ([]token, int, trimMode, error) {
	loc := rawEndRegexp.FindStringSubmatchIndex(l.data[rawStart:])
	if loc == nil {
		return nil, 0, trimNone, l.syntaxErr(tagStart, "missing '{%% endraw %%}'")
	}
	endTagStart := rawStart + loc[0]
	endTagEnd := rawStart + loc[1]
	openMarker := l.data[rawStart+loc[2] : rawStart+loc[3]]
	closeMarker := l.data[rawStart+loc[4] : rawStart+loc[5]]

	contentStart := rawStart
	content := l.data[rawStart:endTagStart]

	switch afterStart {
	case trimAllWhitespace:
		trimmed := strings.TrimLeft(content, " \t\r\n")
		contentStart += len(content) - len(trimmed)
		content = trimmed
	case trimNewline:
		if strings.HasPrefix(content, "\r\n") {
			content = content[2:]
			contentStart += 2
		} else if strings.HasPrefix(content, "\n") {
			content = content[1:]
			contentStart++
		}
	}

	switch openMarker {
	case "-":
		content = strings.TrimRight(content, " \t\r\n")
	case "":
		content = l.lstrip(content, contentStart)
	}

	nextTrim := trimNewline
	switch closeMarker {
	case "-":
		nextTrim = trimAllWhitespace
	case "+":
		nextTrim = trimNone
	}

	var tokens []token
	if len(content) > 0 {
		tokens = append(tokens, token{Kind: tokenText, Content: content, Position: l.position(contentStart)})
	}
	return tokens, endTagEnd, nextTrim, nil
}

func (l *lexer) position(offset int) *filepos.Position {
	line := sort.Search(len(l.lineStarts), func(i int) bool { return l.lineStarts[i] > offset })
	return filepos.NewPositionInFile(line, offset-l.lineStarts[line-1]+1, l.name)
}

func (l *lexer) syntaxErr(offset int, msg string, args ...interface{}) error {
	return newSyntaxError(l.position(offset), msg, args...)
}
