// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xsync

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDynamicWaitGroup(t *testing.T) {
	wg := NewDynamicWaitGroup()
	wg.Wait() // Zero count returns immediately.

	// Each task spawns a child until the depth is reached, adding to the group while Wait runs.
	var finished atomic.Int32
	var spawn func(depth int)
	spawn = func(depth int) {
		defer wg.Done()
		if depth > 0 {
			wg.Add(1)
			go spawn(depth - 1)
		}
		finished.Add(1)
	}
	wg.Add(1)
	go spawn(9)
	wg.Wait()
	assert.Equal(t, int32(10), finished.Load())
	assert.Equal(t, 0, wg.Count())

	assert.Panics(t, func() { wg.Done() })
}
