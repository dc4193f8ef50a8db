// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := Make[string](4)
	assert.Len(t, s, 0)
	s.Insert("x", "y")
	assert.True(t, s.Has("x"))
	assert.False(t, s.Has("z"))

	assert.True(t, s.Add("z"))
	assert.False(t, s.Add("z"))
	assert.Len(t, s, 3)

	var empty Set[int]
	assert.False(t, empty.Has(1))
}

func TestUnique(t *testing.T) {
	s := MakeWith("a")
	assert.Equal(t, []string{"b", "c"}, s.Unique("a", "b", "c", "b", "a"))
	assert.True(t, s.Has("c"))
	assert.Empty(t, s.Unique("a", "b"))
}
