// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package values

import (
	"bytes"
	"fmt"

	"carvel.dev/tektonc/pkg/orderedmap"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// keyDelim only matters for koanf's flattened view; value keys
// commonly contain dots so a separator that is unlikely in keys is used.
const keyDelim = "::"

// DefaultRunParams are the run-descriptor parameters merged into values.
var DefaultRunParams = []string{"stack", "workload"}

// Loader accumulates values. Later loads are deep-merged over earlier ones:
// maps merge key by key, everything else is replaced.
type Loader struct {
	k *koanf.Koanf
}

func NewLoader() *Loader {
	return &Loader{k: koanf.New(keyDelim)}
}

// Load merges a values document (which must be a map at the top level).
func (l *Loader) Load(data []byte, format Format, associatedName string) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	err := l.k.Load(rawbytes.Provider(data), format.parser())
	if err != nil {
		return fmt.Errorf("Loading values from %s: %w", associatedName, err)
	}
	return nil
}

// MergeRunParams merges spec.params entries of a run descriptor (such as a
// PipelineRun) whose name is in allowed. Each entry contributes its value
// under its name.
func (l *Loader) MergeRunParams(data []byte, format Format, associatedName string, allowed []string) error {
	descriptor := NewLoader()
	err := descriptor.Load(data, format, associatedName)
	if err != nil {
		return err
	}

	params, err := runParams(descriptor.k.Raw(), allowed)
	if err != nil {
		return fmt.Errorf("Reading params of %s: %w", associatedName, err)
	}
	if len(params) == 0 {
		return nil
	}

	err = l.k.Load(confmap.Provider(params, ""), nil)
	if err != nil {
		return fmt.Errorf("Merging params of %s: %w", associatedName, err)
	}
	return nil
}

// Values returns the merged values with map keys sorted.
func (l *Loader) Values() *orderedmap.Map {
	return orderedmap.Conversion{Object: l.k.Raw()}.FromUnorderedMaps().(*orderedmap.Map)
}

func runParams(descriptor map[string]interface{}, allowed []string) (map[string]interface{}, error) {
	result := map[string]interface{}{}

	spec, ok := descriptor["spec"].(map[string]interface{})
	if !ok {
		return result, nil
	}
	paramsVal, found := spec["params"]
	if !found || paramsVal == nil {
		return result, nil
	}
	params, ok := paramsVal.([]interface{})
	if !ok {
		return nil, fmt.Errorf("Expected spec.params to be a sequence, but was %T", paramsVal)
	}

	allowedNames := map[string]struct{}{}
	for _, name := range allowed {
		allowedNames[name] = struct{}{}
	}

	for i, paramVal := range params {
		param, ok := paramVal.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("Expected spec.params[%d] to be a map, but was %T", i, paramVal)
		}
		name, ok := param["name"].(string)
		if !ok {
			return nil, fmt.Errorf("Expected spec.params[%d].name to be a string", i)
		}
		if _, found := allowedNames[name]; found {
			result[name] = param["value"]
		}
	}
	return result, nil
}
