// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package values

import (
	"bytes"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/v2"
)

type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatForPath picks the format by file extension; anything unknown
// (including stdin) is YAML.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".toml":
		return FormatTOML
	default:
		return FormatYAML
	}
}

func (f Format) parser() koanf.Parser {
	switch f {
	case FormatJSON:
		return normalizingParser{json.Parser(), true}
	case FormatTOML:
		return normalizingParser{tomlParser{}, false}
	default:
		return normalizingParser{yaml.Parser(), false}
	}
}

type tomlParser struct{}

var _ koanf.Parser = tomlParser{}

func (tomlParser) Unmarshal(data []byte) (map[string]interface{}, error) {
	result := map[string]interface{}{}
	err := toml.Unmarshal(data, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (tomlParser) Marshal(val map[string]interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	err := toml.NewEncoder(buf).Encode(val)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// normalizingParser converts parsed scalars to the types used by document
// trees: int for integers, strings for timestamps.
type normalizingParser struct {
	koanf.Parser
	wholeFloatsAsInts bool
}

func (p normalizingParser) Unmarshal(data []byte) (map[string]interface{}, error) {
	result, err := p.Parser.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return map[string]interface{}{}, nil
	}
	return p.normalize(result).(map[string]interface{}), nil
}

func (p normalizingParser) normalize(val interface{}) interface{} {
	switch typedVal := val.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(typedVal))
		for k, v := range typedVal {
			result[k] = p.normalize(v)
		}
		return result

	case map[interface{}]interface{}:
		result := make(map[string]interface{}, len(typedVal))
		for k, v := range typedVal {
			result[fmt.Sprintf("%v", k)] = p.normalize(v)
		}
		return result

	case []interface{}:
		result := make([]interface{}, len(typedVal))
		for i, item := range typedVal {
			result[i] = p.normalize(item)
		}
		return result

	case []map[string]interface{}:
		result := make([]interface{}, len(typedVal))
		for i, item := range typedVal {
			result[i] = p.normalize(item)
		}
		return result

	case int64:
		return int(typedVal)

	case uint64:
		if typedVal <= math.MaxInt64 {
			return int(typedVal)
		}
		return float64(typedVal)

	case float64:
		if p.wholeFloatsAsInts && typedVal == math.Trunc(typedVal) && math.Abs(typedVal) < 1<<53 {
			return int(typedVal)
		}
		return typedVal

	case time.Time:
		if typedVal.Equal(typedVal.Truncate(24*time.Hour)) && typedVal.Location() == time.UTC {
			return typedVal.Format("2006-01-02")
		}
		return typedVal.Format(time.RFC3339Nano)

	default:
		return typedVal
	}
}
