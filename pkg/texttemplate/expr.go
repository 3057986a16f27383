// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package texttemplate

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/k14s/starlark-go/syntax"
)

const (
	filterPrefix = "__filter_"
	testPrefix   = "__test_"
	concatFunc   = "__concat"
	compareFunc  = "__compare"
)

// Expressions are starlark expressions extended with a few Jinja forms.
// Before evaluation they are rewritten into plain starlark calls:
//
//	x|f             -> __filter_f(x)
//	x|f(a, b)       -> __filter_f(x, a, b)
//	x is defined    -> __test_defined(x)
//	x is not none   -> __test_none(x, True)
//	a ~ b ~ c       -> __concat(a, b, c)
//	a == b          -> __compare('==', a, b)
//	a not in b      -> __compare('not in', a, b)
//
// Filters and tests bind to the closest operand (a name followed by any
// attribute, index or call suffixes), and '~' binds tighter than '+' and '-'
// but looser than '*' and '/', as in Jinja. Comparisons do not chain, so
// each one takes the operands up to the closest keyword, comma or other
// comparison.

type exprTokenKind int

const (
	exprTokenName exprTokenKind = iota
	exprTokenNumber
	exprTokenString
	exprTokenOp
	exprTokenOpen
	exprTokenClose
)

type exprToken struct {
	kind exprTokenKind
	text string
}

type pieceKind int

const (
	pieceName pieceKind = iota
	pieceKeyword
	pieceLiteral
	pieceGroup
	pieceCall
	pieceOp
)

type piece struct {
	kind pieceKind
	text string
	open byte
}

var exprKeywords = map[string]struct{}{
	"and": {}, "or": {}, "not": {}, "in": {}, "if": {}, "else": {},
	"for": {}, "is": {}, "lambda": {},
}

// rewriteExpr converts Jinja expression syntax into starlark source.
func rewriteExpr(src string) (string, error) {
	tokens, err := tokenizeExpr(src)
	if err != nil {
		return "", err
	}
	rewriter := exprRewriter{tokens: tokens}
	result, err := rewriter.level(0)
	if err != nil {
		return "", err
	}
	if rewriter.idx < len(tokens) {
		return "", fmt.Errorf("unexpected '%s'", tokens[rewriter.idx].text)
	}
	return result, nil
}

func tokenizeExpr(src string) ([]exprToken, error) {
	var tokens []exprToken
	for i := 0; i < len(src); {
		ch := src[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++

		case ch == '\'' || ch == '"':
			end := i + 1
			for ; end < len(src) && src[end] != ch; end++ {
				if src[end] == '\\' {
					end++
				}
			}
			if end >= len(src) {
				return nil, fmt.Errorf("unterminated string starting at offset %d", i)
			}
			tokens = append(tokens, exprToken{exprTokenString, src[i : end+1]})
			i = end + 1

		case isNameStart(ch):
			end := i + 1
			for end < len(src) && isNamePart(src[end]) {
				end++
			}
			tokens = append(tokens, exprToken{exprTokenName, src[i:end]})
			i = end

		case ch >= '0' && ch <= '9' || ch == '.' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9':
			end := i + 1
			for end < len(src) && (isNamePart(src[end]) || src[end] == '.' ||
				(src[end] == '-' || src[end] == '+') && (src[end-1] == 'e' || src[end-1] == 'E')) {
				end++
			}
			tokens = append(tokens, exprToken{exprTokenNumber, src[i:end]})
			i = end

		case ch == '(' || ch == '[' || ch == '{':
			tokens = append(tokens, exprToken{exprTokenOpen, string(ch)})
			i++

		case ch == ')' || ch == ']' || ch == '}':
			tokens = append(tokens, exprToken{exprTokenClose, string(ch)})
			i++

		default:
			op := string(ch)
			if i+1 < len(src) {
				switch two := src[i : i+2]; two {
				case "==", "!=", "<=", ">=", "//", "**":
					op = two
				}
			}
			if !strings.Contains("+-*/%<>=!.,:|~&^", op[:1]) {
				return nil, fmt.Errorf("unexpected character '%c'", ch)
			}
			tokens = append(tokens, exprToken{exprTokenOp, op})
			i += len(op)
		}
	}
	return tokens, nil
}

func isNameStart(ch byte) bool {
	return ch == '_' || ch < utf8RuneSelf && unicode.IsLetter(rune(ch))
}

func isNamePart(ch byte) bool {
	return isNameStart(ch) || ch >= '0' && ch <= '9'
}

const utf8RuneSelf = 0x80

var closingBrackets = map[string]string{"(": ")", "[": "]", "{": "}"}

type exprRewriter struct {
	tokens []exprToken
	idx    int
}

// level rewrites tokens until the closing bracket that ends this level
// (or the end of input when closing is empty).
func (r *exprRewriter) level(depth int) (string, error) {
	var pieces []piece

	for r.idx < len(r.tokens) {
		tok := r.tokens[r.idx]

		switch tok.kind {
		case exprTokenClose:
			if depth == 0 {
				return "", fmt.Errorf("unexpected '%s'", tok.text)
			}
			return r.join(pieces)

		case exprTokenOpen:
			group, err := r.group()
			if err != nil {
				return "", err
			}
			pieces = append(pieces, group)

		case exprTokenName:
			r.idx++
			if tok.text == "is" {
				var err error
				pieces, err = r.applyTest(pieces)
				if err != nil {
					return "", err
				}
				continue
			}
			kind := pieceName
			if _, found := exprKeywords[tok.text]; found {
				kind = pieceKeyword
			}
			pieces = append(pieces, piece{kind: kind, text: tok.text})

		case exprTokenString, exprTokenNumber:
			r.idx++
			pieces = append(pieces, piece{kind: pieceLiteral, text: tok.text})

		case exprTokenOp:
			r.idx++
			if tok.text == "|" {
				var err error
				pieces, err = r.applyFilter(pieces)
				if err != nil {
					return "", err
				}
				continue
			}
			pieces = append(pieces, piece{kind: pieceOp, text: tok.text})
		}
	}

	if depth > 0 {
		return "", fmt.Errorf("missing closing bracket")
	}
	return r.join(pieces)
}

func (r *exprRewriter) group() (piece, error) {
	open := r.tokens[r.idx].text
	r.idx++

	inner, err := r.level(1)
	if err != nil {
		return piece{}, err
	}
	if r.idx >= len(r.tokens) || r.tokens[r.idx].text != closingBrackets[open] {
		return piece{}, fmt.Errorf("missing closing '%s'", closingBrackets[open])
	}
	r.idx++
	return piece{kind: pieceGroup, text: open + inner + closingBrackets[open], open: open[0]}, nil
}

// applyFilter consumes "name" or "name(args)" following a pipe.
func (r *exprRewriter) applyFilter(pieces []piece) ([]piece, error) {
	name, args, err := r.nameWithArgs("filter")
	if err != nil {
		return nil, err
	}
	start, err := r.operandStart(pieces, "|"+name)
	if err != nil {
		return nil, err
	}
	operand := r.joinRaw(pieces[start:])
	call := filterPrefix + name + "(" + operand
	if len(args) > 0 {
		call += ", " + args
	}
	call += ")"
	return append(pieces[:start], piece{kind: pieceCall, text: call}), nil
}

// applyTest consumes "[not] name" following 'is'.
func (r *exprRewriter) applyTest(pieces []piece) ([]piece, error) {
	negated := false
	if r.idx < len(r.tokens) && r.tokens[r.idx].text == "not" {
		negated = true
		r.idx++
	}
	name, args, err := r.nameWithArgs("test")
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		return nil, fmt.Errorf("test '%s' does not accept arguments", name)
	}
	start, err := r.operandStart(pieces, "is "+name)
	if err != nil {
		return nil, err
	}
	call := testPrefix + name + "(" + r.joinRaw(pieces[start:])
	if negated {
		call += ", True"
	}
	call += ")"
	return append(pieces[:start], piece{kind: pieceCall, text: call}), nil
}

func (r *exprRewriter) nameWithArgs(what string) (string, string, error) {
	if r.idx >= len(r.tokens) || r.tokens[r.idx].kind != exprTokenName {
		return "", "", fmt.Errorf("expected %s name", what)
	}
	name := r.tokens[r.idx].text
	r.idx++

	if r.idx < len(r.tokens) && r.tokens[r.idx].text == "(" {
		group, err := r.group()
		if err != nil {
			return "", "", err
		}
		return name, strings.TrimSpace(group.text[1 : len(group.text)-1]), nil
	}
	return name, "", nil
}

// operandStart finds where the operand of a postfix filter or test begins:
// an atom followed by any number of .name, [...] or (...) suffixes.
func (r *exprRewriter) operandStart(pieces []piece, desc string) (int, error) {
	j := len(pieces) - 1
	if j < 0 || !pieces[j].isOperandEnd() {
		return 0, fmt.Errorf("expected a value before '%s'", desc)
	}
	for {
		p := pieces[j]
		switch {
		case p.kind == pieceGroup && (p.open == '(' || p.open == '[') && j > 0 && pieces[j-1].isOperandEnd():
			j--
		case p.kind == pieceName && j >= 2 && pieces[j-1].kind == pieceOp && pieces[j-1].text == ".":
			j -= 2
		default:
			return j, nil
		}
	}
}

func (p piece) isOperandEnd() bool {
	switch p.kind {
	case pieceName, pieceLiteral, pieceGroup, pieceCall:
		return true
	}
	return false
}

// join resolves '~' concatenations and produces starlark source.
func (r *exprRewriter) join(pieces []piece) (string, error) {
	for i := 0; i < len(pieces); i++ {
		if !pieces[i].isConcat() {
			continue
		}

		start := i
		for start > 0 && !pieces[start-1].isConcatStop() {
			start--
		}
		if start == i {
			return "", fmt.Errorf("expected a value before '~'")
		}

		operands := []string{r.joinRaw(pieces[start:i])}
		end := i
		for end < len(pieces) && pieces[end].isConcat() {
			next := end + 1
			for next < len(pieces) && !pieces[next].isConcatStop() {
				next++
			}
			if next == end+1 {
				return "", fmt.Errorf("expected a value after '~'")
			}
			operands = append(operands, r.joinRaw(pieces[end+1:next]))
			end = next
		}

		call := piece{kind: pieceCall, text: concatFunc + "(" + strings.Join(operands, ", ") + ")"}
		pieces = append(pieces[:start], append([]piece{call}, pieces[end:]...)...)
		i = start
	}

	pieces, err := r.comparisons(pieces)
	if err != nil {
		return "", err
	}
	return r.joinRaw(pieces), nil
}

var comparisonOps = map[string]syntax.Token{
	"==":     syntax.EQL,
	"!=":     syntax.NEQ,
	"<":      syntax.LT,
	">":      syntax.GT,
	"<=":     syntax.LE,
	">=":     syntax.GE,
	"in":     syntax.IN,
	"not in": syntax.NOT_IN,
}

// comparisons rewrites comparison operators into calls so that undefined
// operands are noticed. The 'in' of a comprehension's 'for' is left alone.
func (r *exprRewriter) comparisons(pieces []piece) ([]piece, error) {
	inComprehension := false

	for i := 0; i < len(pieces); i++ {
		if pieces[i].kind == pieceKeyword && pieces[i].text == "for" {
			inComprehension = true
			continue
		}

		op, width := comparisonAt(pieces, i)
		if len(op) == 0 {
			continue
		}
		if op == "in" && inComprehension {
			inComprehension = false
			continue
		}

		start := i
		for start > 0 && !pieces[start-1].isComparisonStop() {
			start--
		}
		if start == i {
			return nil, fmt.Errorf("expected a value before '%s'", op)
		}

		end := i + width
		for end < len(pieces) && !pieces[end].isComparisonStop() {
			end++
		}
		if end == i+width {
			return nil, fmt.Errorf("expected a value after '%s'", op)
		}

		call := piece{kind: pieceCall, text: compareFunc + "('" + op + "', " +
			r.joinRaw(pieces[start:i]) + ", " + r.joinRaw(pieces[i+width:end]) + ")"}
		pieces = append(pieces[:start], append([]piece{call}, pieces[end:]...)...)
		i = start
	}
	return pieces, nil
}

func comparisonAt(pieces []piece, i int) (string, int) {
	p := pieces[i]
	switch p.kind {
	case pieceOp:
		if _, found := comparisonOps[p.text]; found {
			return p.text, 1
		}
	case pieceKeyword:
		if p.text == "in" {
			return "in", 1
		}
		if p.text == "not" && i+1 < len(pieces) && pieces[i+1].kind == pieceKeyword && pieces[i+1].text == "in" {
			return "not in", 2
		}
	}
	return "", 0
}

func (p piece) isComparisonStop() bool {
	switch p.kind {
	case pieceKeyword:
		return true
	case pieceOp:
		if _, found := comparisonOps[p.text]; found {
			return true
		}
		switch p.text {
		case ",", ":", "=":
			return true
		}
	}
	return false
}

// parseCode parses rewritten expression source. The starlark parser
// reports some malformed input by panicking, which is turned into an error.
func parseCode(name, code string) (expr syntax.Expr, err error) {
	defer func() {
		if r := recover(); r != nil {
			expr = nil
			switch typedErr := r.(type) {
			case syntax.Error:
				err = errors.New(typedErr.Msg)
			case error:
				err = typedErr
			default:
				err = fmt.Errorf("%v", r)
			}
		}
	}()

	expr, err = syntax.ParseExpr(name, code, 0)
	if err != nil {
		var syntaxErr syntax.Error
		if errors.As(err, &syntaxErr) {
			err = errors.New(syntaxErr.Msg)
		}
	}
	return expr, err
}

func (p piece) isConcat() bool { return p.kind == pieceOp && p.text == "~" }

func (p piece) isConcatStop() bool {
	switch p.kind {
	case pieceKeyword:
		return true
	case pieceOp:
		switch p.text {
		case "*", "/", "//", "%", ".":
			return false
		}
		return true
	}
	return false
}

func (r *exprRewriter) joinRaw(pieces []piece) string {
	var sb strings.Builder
	for i, p := range pieces {
		if i > 0 && needsSpace(pieces[i-1], p) {
			sb.WriteString(" ")
		}
		sb.WriteString(p.text)
	}
	return sb.String()
}

func needsSpace(prev, next piece) bool {
	if next.kind == pieceOp && (next.text == "." || next.text == ",") {
		return false
	}
	if prev.kind == pieceOp && prev.text == "." {
		return false
	}
	if next.kind == pieceGroup && (next.open == '(' || next.open == '[') && prev.isOperandEnd() {
		return false
	}
	return true
}
