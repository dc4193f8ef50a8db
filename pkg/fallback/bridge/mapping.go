// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"github.com/gomlx/jitfallback/pkg/hostlang"
	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Mapping is an insertion ordered mapping of wrapped keys to wrapped values, the bridge
// representation of a host dict.
type Mapping struct {
	m *orderedmap.OrderedMap[string, mappingEntry]
}

type mappingEntry struct {
	key, value *Value
}

// NewMapping creates an empty Mapping.
func NewMapping() *Mapping {
	return &Mapping{m: orderedmap.New[string, mappingEntry]()}
}

// keyOf returns the identity of a key: keys that are equal in the interpreter (1 and 1.0, for
// instance) share it.
func keyOf(key *Value) (string, error) {
	return hostlang.HashKey(ToHost(key))
}

// Set inserts or replaces key. Keys must be hashable host values.
func (m *Mapping) Set(key, value any) error {
	k := Wrap(key)
	id, err := keyOf(k)
	if err != nil {
		return errors.WithMessage(err, "bridge.Mapping.Set")
	}
	m.m.Set(id, mappingEntry{key: k, value: Wrap(value)})
	return nil
}

func (m *Mapping) mustSetString(key string, value *Value) {
	m.m.Set("s"+key, mappingEntry{key: Wrap(key), value: value})
}

// Get returns the value stored under key.
func (m *Mapping) Get(key any) (*Value, bool) {
	id, err := keyOf(Wrap(key))
	if err != nil {
		return nil, false
	}
	entry, found := m.m.Get(id)
	return entry.value, found
}

// Len returns the number of entries.
func (m *Mapping) Len() int { return m.m.Len() }

// Keys in insertion order.
func (m *Mapping) Keys() []*Value {
	keys := make([]*Value, 0, m.m.Len())
	for pair := m.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Value.key)
	}
	return keys
}

// Each calls fn for every entry in insertion order, stopping at the first error.
func (m *Mapping) Each(fn func(key, value *Value) error) error {
	for pair := m.m.Oldest(); pair != nil; pair = pair.Next() {
		if err := fn(pair.Value.key, pair.Value.value); err != nil {
			return err
		}
	}
	return nil
}

// Equal compares entries, including their order.
func (m *Mapping) Equal(other *Mapping) bool {
	if m.Len() != other.Len() {
		return false
	}
	a, b := m.m.Oldest(), other.m.Oldest()
	for ; a != nil; a, b = a.Next(), b.Next() {
		if a.Key != b.Key || !Equal(a.Value.value, b.Value.value) {
			return false
		}
	}
	return true
}
