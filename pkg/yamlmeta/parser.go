// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package yamlmeta

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"

	"carvel.dev/tektonc/pkg/orderedmap"
	"go.yaml.in/yaml/v3"
)

const (
	nullTag  = "!!null"
	boolTag  = "!!bool"
	intTag   = "!!int"
	floatTag = "!!float"
	strTag   = "!!str"
	mergeTag = "!!merge"
)

var (
	// eg "yaml: line 2: found character that cannot start any token"
	lineErrRegexp = regexp.MustCompile(`^yaml: line (\d+): (.+)$`)
)

type Parser struct {
	associatedName string
}

func NewParser() *Parser {
	return &Parser{}
}

// ParseBytes parses a single YAML document. An empty input yields nil.
func (p *Parser) ParseBytes(data []byte, associatedName string) (interface{}, error) {
	p.associatedName = associatedName

	dec := yaml.NewDecoder(bytes.NewReader(data))

	var node yaml.Node
	err := dec.Decode(&node)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, p.wrapErr(err)
	}

	var extra yaml.Node
	err = dec.Decode(&extra)
	if err == nil {
		return nil, fmt.Errorf("Expected a single YAML document in %s, but found more than one", p.name())
	}
	if !errors.Is(err, io.EOF) {
		return nil, p.wrapErr(err)
	}

	return p.convert(&node)
}

func (p *Parser) convert(node *yaml.Node) (interface{}, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return p.convert(node.Content[0])

	case yaml.AliasNode:
		return p.convert(node.Alias)

	case yaml.SequenceNode:
		result := make([]interface{}, 0, len(node.Content))
		for _, item := range node.Content {
			val, err := p.convert(item)
			if err != nil {
				return nil, err
			}
			result = append(result, val)
		}
		return result, nil

	case yaml.MappingNode:
		return p.convertMap(node)

	case yaml.ScalarNode:
		return p.convertScalar(node)

	default:
		return nil, fmt.Errorf("Unexpected YAML node kind %d at %s", node.Kind, p.position(node))
	}
}

func (p *Parser) convertMap(node *yaml.Node) (*orderedmap.Map, error) {
	result := orderedmap.NewMap()
	var merged []*orderedmap.Map

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]

		if keyNode.Kind == yaml.ScalarNode && keyNode.ShortTag() == mergeTag {
			maps, err := p.mergeSources(valNode)
			if err != nil {
				return nil, err
			}
			merged = append(merged, maps...)
			continue
		}

		if keyNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("Expected map key to be a scalar at %s", p.position(keyNode))
		}

		val, err := p.convert(valNode)
		if err != nil {
			return nil, err
		}
		result.Set(keyNode.Value, val)
	}

	// Explicit keys win over merged ones; earlier merge sources win over later ones
	for _, src := range merged {
		src.Iterate(func(k, v interface{}) {
			if _, found := result.Get(k); !found {
				result.Set(k, v)
			}
		})
	}
	return result, nil
}

func (p *Parser) mergeSources(node *yaml.Node) ([]*orderedmap.Map, error) {
	nodes := []*yaml.Node{node}
	if node.Kind == yaml.SequenceNode {
		nodes = node.Content
	}

	var result []*orderedmap.Map
	for _, n := range nodes {
		val, err := p.convert(n)
		if err != nil {
			return nil, err
		}
		typedVal, ok := val.(*orderedmap.Map)
		if !ok {
			return nil, fmt.Errorf("Expected merge key value to be a map at %s", p.position(n))
		}
		result = append(result, typedVal)
	}
	return result, nil
}

func (p *Parser) convertScalar(node *yaml.Node) (interface{}, error) {
	switch node.ShortTag() {
	case nullTag:
		return nil, nil

	case boolTag, intTag, floatTag:
		var val interface{}
		err := node.Decode(&val)
		if err != nil {
			return nil, fmt.Errorf("Decoding scalar at %s: %w", p.position(node), err)
		}
		switch typedVal := val.(type) {
		case int64:
			return int(typedVal), nil
		case uint64:
			return float64(typedVal), nil
		}
		return val, nil

	default:
		// strings, timestamps, binary and custom tags keep their source text
		return node.Value, nil
	}
}

func (p *Parser) wrapErr(err error) error {
	match := lineErrRegexp.FindStringSubmatch(err.Error())
	if match != nil {
		return fmt.Errorf("Parsing YAML %s: line %s: %s", p.name(), match[1], match[2])
	}
	return fmt.Errorf("Parsing YAML %s: %w", p.name(), err)
}

func (p *Parser) position(node *yaml.Node) string {
	return fmt.Sprintf("%s:%d:%d", p.name(), node.Line, node.Column)
}

func (p *Parser) name() string {
	if len(p.associatedName) == 0 {
		return "<input>"
	}
	return p.associatedName
}
