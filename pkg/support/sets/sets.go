// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sets implements a set over map[T]struct{}, used by the tracer to track names and
// visited host functions.
package sets

// Set of comparable keys. The zero value is nil: it can be read but not inserted into.
type Set[T comparable] map[T]struct{}

// Make returns an empty Set, with an optional capacity hint.
func Make[T comparable](size ...int) Set[T] {
	if len(size) == 0 {
		return make(Set[T])
	}
	return make(Set[T], size[0])
}

// MakeWith returns a Set holding the given keys.
func MakeWith[T comparable](keys ...T) Set[T] {
	s := Make[T](len(keys))
	s.Insert(keys...)
	return s
}

// Has reports whether key is in s. It works on a nil Set.
func (s Set[T]) Has(key T) bool {
	_, found := s[key]
	return found
}

// Insert keys into s.
func (s Set[T]) Insert(keys ...T) {
	for _, key := range keys {
		s[key] = struct{}{}
	}
}

// Add inserts key and reports whether it was not there before.
func (s Set[T]) Add(key T) bool {
	if s.Has(key) {
		return false
	}
	s[key] = struct{}{}
	return true
}

// Unique returns keys without repetitions, in order of first occurrence, inserting them into s.
// Keys already in s are dropped.
func (s Set[T]) Unique(keys ...T) []T {
	unique := make([]T, 0, len(keys))
	for _, key := range keys {
		if s.Add(key) {
			unique = append(unique, key)
		}
	}
	return unique
}
