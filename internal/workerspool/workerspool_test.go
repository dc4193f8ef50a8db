// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workerspool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitToStart(t *testing.T) {
	t.Run("limited", func(t *testing.T) {
		const limit = 3
		pool := New(limit)
		require.True(t, pool.IsEnabled())
		require.False(t, pool.IsUnlimited())

		var current, peak atomic.Int32
		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			pool.WaitToStart(func() {
				defer wg.Done()
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				current.Add(-1)
			})
		}
		wg.Wait()
		assert.LessOrEqual(t, int(peak.Load()), limit)
		assert.Eventually(t, func() bool { return pool.Running() == 0 }, time.Second, time.Millisecond)
	})

	t.Run("inline", func(t *testing.T) {
		pool := New(0)
		assert.False(t, pool.IsEnabled())
		ran := false
		pool.WaitToStart(func() { ran = true })
		assert.True(t, ran, "with parallelism disabled the task runs before WaitToStart returns")
	})

	t.Run("unlimited", func(t *testing.T) {
		pool := New(-1)
		assert.True(t, pool.IsUnlimited())
		release := make(chan struct{})
		var started sync.WaitGroup
		for range 10 {
			started.Add(1)
			pool.WaitToStart(func() {
				started.Done()
				<-release
			})
		}
		started.Wait()
		assert.Equal(t, 10, pool.Running())
		close(release)
	})
}

func TestYield(t *testing.T) {
	pool := New(1)
	blocked := make(chan struct{})
	release := make(chan struct{})
	pool.WaitToStart(func() {
		resume := pool.Yield()
		close(blocked)
		<-release
		resume()
	})
	<-blocked

	// The single slot is held by a yielded task, so another one can start.
	done := make(chan struct{})
	pool.WaitToStart(func() { close(done) })
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task didn't start while the running one yielded its slot")
	}
	close(release)
	assert.Eventually(t, func() bool { return pool.Running() == 0 }, time.Second, time.Millisecond)
}
