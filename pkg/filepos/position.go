// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package filepos

import (
	"fmt"
)

type Position struct {
	lineNum int // 1 based
	colNum  int // 1 based; 0 when unknown
	file    string
	known   bool
}

func NewPosition(lineNum, colNum int) *Position {
	if lineNum <= 0 {
		panic("Lines are 1 based")
	}
	return &Position{lineNum: lineNum, colNum: colNum, known: true}
}

// NewPositionInFile returns the Position of line "lineNum", column "colNum" within "file"
func NewPositionInFile(lineNum, colNum int, file string) *Position {
	p := NewPosition(lineNum, colNum)
	p.file = file
	return p
}

// NewUnknownPosition is equivalent of zero value *Position
func NewUnknownPosition() *Position {
	return &Position{}
}

func (p *Position) IsKnown() bool { return p != nil && p.known }

func (p *Position) LineNum() int {
	if !p.IsKnown() {
		panic("Position is unknown")
	}
	return p.lineNum
}

func (p *Position) ColNum() int {
	if !p.IsKnown() {
		panic("Position is unknown")
	}
	return p.colNum
}

func (p *Position) GetFile() string {
	if p == nil {
		return ""
	}
	return p.file
}

func (p *Position) AsString() string {
	return "line " + p.AsCompactString()
}

func (p *Position) AsCompactString() string {
	filePrefix := p.GetFile()
	if len(filePrefix) > 0 {
		filePrefix += ":"
	}
	if !p.IsKnown() {
		return fmt.Sprintf("%s?", filePrefix)
	}
	if p.colNum > 0 {
		return fmt.Sprintf("%s%d:%d", filePrefix, p.lineNum, p.colNum)
	}
	return fmt.Sprintf("%s%d", filePrefix, p.lineNum)
}
