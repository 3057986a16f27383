// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package texttemplate

import (
	"regexp"
	"strings"

	"carvel.dev/tektonc/pkg/filepos"
)

var (
	identifierRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	forRegexp        = regexp.MustCompile(`^for\s+(.+?)\s+in\s+(.+)$`)
	setRegexp        = regexp.MustCompile(`^set\s+([^=]+?)\s*(?:=([^=].*))?$`)
)

type Parser struct {
	associatedName string

	tokens []token
	idx    int
}

func NewParser() *Parser {
	return &Parser{}
}

// Parse returns the statement tree of a template.
func (p *Parser) Parse(data string, associatedName string) ([]Node, error) {
	p.associatedName = associatedName
	p.idx = 0

	tokens, err := newLexer(associatedName, data).Tokens()
	if err != nil {
		return nil, err
	}
	p.tokens = tokens

	nodes, stop, err := p.parseUntil(nil)
	if err != nil {
		return nil, err
	}
	if stop != nil {
		return nil, newSyntaxError(stop.Position, "unexpected '%s'", stop.Content)
	}
	return nodes, nil
}

// parseUntil parses nodes until a statement whose keyword is in stopAt.
// The stop token is consumed and returned.
func (p *Parser) parseUntil(stopAt []string) ([]Node, *token, error) {
	var nodes []Node

	for p.idx < len(p.tokens) {
		tok := p.tokens[p.idx]
		p.idx++

		switch tok.Kind {
		case tokenText:
			nodes = append(nodes, &NodeText{Position: tok.Position, Content: tok.Content})

		case tokenExpr:
			expr, err := p.newExpr(tok.Content, tok.Position)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, expr)

		case tokenStmt:
			keyword := p.keyword(tok.Content)
			for _, stop := range stopAt {
				if keyword == stop {
					return nodes, &tok, nil
				}
			}

			var node Node
			var err error

			switch keyword {
			case "if":
				node, err = p.parseIf(tok)
			case "for":
				node, err = p.parseFor(tok)
			case "set":
				node, err = p.parseSet(tok)
			case "elif", "else", "endif", "endfor", "endset":
				return nil, nil, newSyntaxError(tok.Position, "unexpected '%s'", keyword)
			default:
				return nil, nil, newSyntaxError(tok.Position, "unknown statement '%s'", keyword)
			}
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, node)
		}
	}

	if len(stopAt) > 0 {
		return nil, nil, newSyntaxError(p.endPosition(), "unexpected end of template, expected '%s'", strings.Join(stopAt, "' or '"))
	}
	return nodes, nil, nil
}

func (p *Parser) parseIf(tok token) (Node, error) {
	node := &NodeIf{Position: tok.Position}
	cond := strings.TrimSpace(strings.TrimPrefix(tok.Content, "if"))

	for {
		condExpr, err := p.newExpr(cond, tok.Position)
		if err != nil {
			return nil, err
		}
		body, stop, err := p.parseUntil([]string{"elif", "else", "endif"})
		if err != nil {
			return nil, err
		}
		node.Branches = append(node.Branches, NodeIfBranch{Cond: condExpr, Body: body})

		switch p.keyword(stop.Content) {
		case "endif":
			return node, nil
		case "elif":
			tok = *stop
			cond = strings.TrimSpace(strings.TrimPrefix(stop.Content, "elif"))
		case "else":
			node.Else, _, err = p.parseUntil([]string{"endif"})
			if err != nil {
				return nil, err
			}
			return node, nil
		}
	}
}

func (p *Parser) parseFor(tok token) (Node, error) {
	match := forRegexp.FindStringSubmatch(tok.Content)
	if match == nil {
		return nil, newSyntaxError(tok.Position, "expected 'for <name> in <expression>', got '%s'", tok.Content)
	}

	targets, err := p.targets(match[1], tok.Position)
	if err != nil {
		return nil, err
	}

	iterSrc, filterSrc := splitForFilter(match[2])

	node := &NodeFor{Position: tok.Position, Targets: targets}
	node.Iter, err = p.newExpr(iterSrc, tok.Position)
	if err != nil {
		return nil, err
	}
	if len(filterSrc) > 0 {
		node.Filter, err = p.newExpr(filterSrc, tok.Position)
		if err != nil {
			return nil, err
		}
	}

	body, stop, err := p.parseUntil([]string{"else", "endfor"})
	if err != nil {
		return nil, err
	}
	node.Body = body

	if p.keyword(stop.Content) == "else" {
		node.Else, _, err = p.parseUntil([]string{"endfor"})
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (p *Parser) parseSet(tok token) (Node, error) {
	match := setRegexp.FindStringSubmatch(tok.Content)
	if match == nil {
		return nil, newSyntaxError(tok.Position, "expected 'set <name> = <expression>', got '%s'", tok.Content)
	}

	targets, err := p.targets(match[1], tok.Position)
	if err != nil {
		return nil, err
	}

	node := &NodeSet{Position: tok.Position, Targets: targets}

	if len(strings.TrimSpace(match[2])) > 0 {
		node.Expr, err = p.newExpr(strings.TrimSpace(match[2]), tok.Position)
		return node, err
	}

	if len(targets) != 1 {
		return nil, newSyntaxError(tok.Position, "block assignment expects a single name")
	}
	node.Body, _, err = p.parseUntil([]string{"endset"})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (p *Parser) targets(src string, pos *filepos.Position) ([]string, error) {
	src = strings.TrimSpace(src)
	if strings.HasPrefix(src, "(") && strings.HasSuffix(src, ")") {
		src = src[1 : len(src)-1]
	}
	var names []string
	for _, name := range strings.Split(src, ",") {
		name = strings.TrimSpace(name)
		if !identifierRegexp.MatchString(name) {
			return nil, newSyntaxError(pos, "expected a name to assign to, got '%s'", name)
		}
		names = append(names, name)
	}
	return names, nil
}

func (p *Parser) newExpr(src string, pos *filepos.Position) (*NodeExpr, error) {
	if len(src) == 0 {
		return nil, newSyntaxError(pos, "expected an expression")
	}
	code, err := rewriteExpr(src)
	if err != nil {
		return nil, newSyntaxError(pos, "in expression '%s': %s", src, err)
	}
	_, err = parseCode(p.associatedName, code)
	if err != nil {
		return nil, newSyntaxError(pos, "in expression '%s': %s", src, err)
	}
	return &NodeExpr{Position: pos, Src: src, Code: code}, nil
}

func (p *Parser) keyword(content string) string {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (p *Parser) endPosition() *filepos.Position {
	if len(p.tokens) == 0 {
		return filepos.NewPositionInFile(1, 0, p.associatedName)
	}
	return p.tokens[len(p.tokens)-1].Position
}

// splitForFilter separates "xs if cond" into its iterable and condition.
// Only a top-level 'if' (outside brackets and strings) counts.
func splitForFilter(src string) (string, string) {
	tokens, err := tokenizeExpr(src)
	if err != nil {
		return src, ""
	}
	depth := 0
	offset := 0
	for _, tok := range tokens {
		idx := strings.Index(src[offset:], tok.text)
		if idx < 0 {
			break
		}
		tokStart := offset + idx
		offset = tokStart + len(tok.text)

		switch tok.kind {
		case exprTokenOpen:
			depth++
		case exprTokenClose:
			depth--
		case exprTokenName:
			if depth == 0 && tok.text == "if" {
				return strings.TrimSpace(src[:tokStart]), strings.TrimSpace(src[offset:])
			}
		}
	}
	return src, ""
}
