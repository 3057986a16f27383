// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package texttemplate

import (
	"carvel.dev/tektonc/pkg/filepos"
)

type Node interface {
	GetPosition() *filepos.Position
}

type NodeText struct {
	Position *filepos.Position
	Content  string
}

// NodeExpr outputs the value of an expression ({{ ... }}).
type NodeExpr struct {
	Position *filepos.Position
	Src      string // as written in the template
	Code     string // starlark source
}

type NodeIf struct {
	Position *filepos.Position
	Branches []NodeIfBranch
	Else     []Node
}

type NodeIfBranch struct {
	Cond *NodeExpr
	Body []Node
}

type NodeFor struct {
	Position *filepos.Position
	Targets  []string
	Iter     *NodeExpr
	Filter   *NodeExpr // optional "for x in xs if cond"
	Body     []Node
	Else     []Node
}

// NodeSet assigns an expression ({% set x = ... %}) or, when Expr is nil,
// the rendered body ({% set x %}...{% endset %}).
type NodeSet struct {
	Position *filepos.Position
	Targets  []string
	Expr     *NodeExpr
	Body     []Node
}

var _ = []Node{&NodeText{}, &NodeExpr{}, &NodeIf{}, &NodeFor{}, &NodeSet{}}

func (n *NodeText) GetPosition() *filepos.Position { return n.Position }
func (n *NodeExpr) GetPosition() *filepos.Position { return n.Position }
func (n *NodeIf) GetPosition() *filepos.Position   { return n.Position }
func (n *NodeFor) GetPosition() *filepos.Position  { return n.Position }
func (n *NodeSet) GetPosition() *filepos.Position  { return n.Position }
