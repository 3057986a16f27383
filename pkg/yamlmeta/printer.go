// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package yamlmeta

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"carvel.dev/tektonc/pkg/orderedmap"
	"go.yaml.in/yaml/v3"
)

type Printer struct {
	writer io.Writer
}

func NewPrinter(writer io.Writer) Printer {
	return Printer{writer}
}

// Print writes val as a single YAML document indented by two spaces.
func (p Printer) Print(val interface{}) error {
	node, err := AsNode(val)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(p.writer)
	enc.SetIndent(2)

	err = enc.Encode(node)
	if err != nil {
		return fmt.Errorf("Printing YAML: %w", err)
	}
	return enc.Close()
}

func (p Printer) PrintBytes(val interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	err := NewPrinter(buf).Print(val)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// AsNode builds the YAML representation of a document tree.
// Strings that hold single quotes are printed in a style that keeps them
// unescaped so that template expressions are still valid after printing.
func AsNode(val interface{}) (*yaml.Node, error) {
	switch typedVal := val.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: nullTag, Value: "null"}, nil

	case *orderedmap.Map:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		err := typedVal.IterateErr(func(k, v interface{}) error {
			valNode, err := AsNode(v)
			if err != nil {
				return err
			}
			node.Content = append(node.Content, stringNode(fmt.Sprintf("%v", k)), valNode)
			return nil
		})
		return node, err

	case map[string]interface{}:
		keys := make([]string, 0, len(typedVal))
		for k := range typedVal {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		result := orderedmap.NewMap()
		for _, k := range keys {
			result.Set(k, typedVal[k])
		}
		return AsNode(result)

	case []interface{}:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range typedVal {
			itemNode, err := AsNode(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, itemNode)
		}
		return node, nil

	case string:
		return stringNode(typedVal), nil

	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: boolTag, Value: strconv.FormatBool(typedVal)}, nil

	case int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: intTag, Value: strconv.Itoa(typedVal)}, nil

	case int64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: intTag, Value: strconv.FormatInt(typedVal, 10)}, nil

	case uint64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: intTag, Value: strconv.FormatUint(typedVal, 10)}, nil

	case float64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: floatTag, Value: formatFloat(typedVal)}, nil

	default:
		node := &yaml.Node{}
		err := node.Encode(val)
		if err != nil {
			return nil, fmt.Errorf("Printing value of type %T: %w", val, err)
		}
		return node, nil
	}
}

func stringNode(val string) *yaml.Node {
	node := &yaml.Node{Kind: yaml.ScalarNode, Tag: strTag, Value: val}

	switch {
	case strings.Contains(val, "\n"):
		node.Style = yaml.LiteralStyle
	case strings.Contains(val, "'") && !strings.ContainsAny(val, "\"\\"):
		node.Style = yaml.DoubleQuotedStyle
	case strings.Contains(val, "'") && hasTemplateTags(val):
		// double quoting would escape '"' and '\' inside expressions
		node.Style = yaml.LiteralStyle
	}
	return node
}

func hasTemplateTags(val string) bool {
	return strings.Contains(val, "{{") || strings.Contains(val, "{%")
}

func formatFloat(val float64) string {
	switch {
	case math.IsInf(val, 1):
		return ".inf"
	case math.IsInf(val, -1):
		return "-.inf"
	case math.IsNaN(val):
		return ".nan"
	}
	str := strconv.FormatFloat(val, 'g', -1, 64)
	if !strings.ContainsAny(str, ".e") {
		// keep whole floats floats when parsed again
		str += ".0"
	}
	return str
}
