// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package orderedmap

import (
	"fmt"
	"sort"
)

// Conversion turns native Go maps, as produced by decoders that do not keep
// key order, into *Map. Object is not modified.
type Conversion struct {
	Object interface{}
}

// FromUnorderedMaps sorts keys of every native map so that the result is
// stable. Nested *Map values keep their order.
func (c Conversion) FromUnorderedMaps() interface{} {
	return fromUnordered(c.Object)
}

func fromUnordered(object interface{}) interface{} {
	switch typedObj := object.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(typedObj))
		for key := range typedObj {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		result := NewMap()
		for _, key := range keys {
			result.Set(key, fromUnordered(typedObj[key]))
		}
		return result

	case map[interface{}]interface{}:
		keys := make([]interface{}, 0, len(typedObj))
		for key := range typedObj {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprintf("%v", keys[i]) < fmt.Sprintf("%v", keys[j])
		})

		result := NewMap()
		for _, key := range keys {
			result.Set(key, fromUnordered(typedObj[key]))
		}
		return result

	case *Map:
		result := NewMap()
		typedObj.Iterate(func(k, v interface{}) {
			result.Set(k, fromUnordered(v))
		})
		return result

	case []interface{}:
		result := make([]interface{}, len(typedObj))
		for i, item := range typedObj {
			result[i] = fromUnordered(item)
		}
		return result

	default:
		return typedObj
	}
}
