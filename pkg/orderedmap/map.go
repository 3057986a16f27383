// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package orderedmap

// Map keeps keys in insertion order. Keys are YAML scalars (strings,
// numbers, booleans, null) and so must be comparable.
// The zero value is an empty map ready to use.
type Map struct {
	items []MapItem
	index map[interface{}]int
}

type MapItem struct {
	Key   interface{}
	Value interface{}
}

func NewMap() *Map {
	return &Map{}
}

// NewMapWithItems keeps the last value of a repeated key at the position
// of its first occurrence.
func NewMapWithItems(items []MapItem) *Map {
	m := NewMap()
	for _, item := range items {
		m.Set(item.Key, item.Value)
	}
	return m
}

func (m *Map) Set(key, value interface{}) {
	if i, found := m.lookup(key); found {
		m.items[i].Value = value
		return
	}
	if m.index == nil {
		m.index = map[interface{}]int{}
	}
	m.index[key] = len(m.items)
	m.items = append(m.items, MapItem{key, value})
}

func (m *Map) Get(key interface{}) (interface{}, bool) {
	if i, found := m.lookup(key); found {
		return m.items[i].Value, true
	}
	return nil, false
}

func (m *Map) Delete(key interface{}) bool {
	i, found := m.lookup(key)
	if !found {
		return false
	}
	// full slice expression so that slices returned by Items stay intact
	m.items = append(m.items[:i:i], m.items[i+1:]...)
	delete(m.index, key)
	for j := i; j < len(m.items); j++ {
		m.index[m.items[j].Key] = j
	}
	return true
}

func (m *Map) lookup(key interface{}) (int, bool) {
	if m == nil || m.index == nil {
		return 0, false
	}
	i, found := m.index[key]
	return i, found
}

func (m *Map) Keys() (keys []interface{}) {
	for _, item := range m.items {
		keys = append(keys, item.Key)
	}
	return
}

func (m *Map) Iterate(iterFunc func(k, v interface{})) {
	for _, item := range m.items {
		iterFunc(item.Key, item.Value)
	}
}

// IterateErr stops at the first error returned by iterFunc.
func (m *Map) IterateErr(iterFunc func(k, v interface{}) error) error {
	for _, item := range m.items {
		err := iterFunc(item.Key, item.Value)
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Map) Len() int { return len(m.items) }

// Items returns a copy of the entries in insertion order.
func (m *Map) Items() []MapItem {
	return append([]MapItem(nil), m.items...)
}

// DeepCopy copies nested maps and sequences; scalars are shared.
func (m *Map) DeepCopy() *Map {
	return DeepCopy(m).(*Map)
}

// DeepCopy copies a document tree made of *Map, []interface{} and scalars.
func DeepCopy(val interface{}) interface{} {
	switch typedVal := val.(type) {
	case *Map:
		if typedVal == nil {
			return typedVal
		}
		result := NewMap()
		for _, item := range typedVal.items {
			result.Set(item.Key, DeepCopy(item.Value))
		}
		return result

	case []interface{}:
		if typedVal == nil {
			return typedVal
		}
		result := make([]interface{}, len(typedVal))
		for i, item := range typedVal {
			result[i] = DeepCopy(item)
		}
		return result

	default:
		return typedVal
	}
}
