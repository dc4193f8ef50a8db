// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool bounds the number of graph nodes executing concurrently.
//
// Interpreter nodes spend most of their time waiting for the interpreter lock, so a node that
// blocks on it can hand its slot to a native node with Yield.
package workerspool

import (
	"sync"
	"sync/atomic"
)

// Pool runs tasks in goroutines, at most MaxParallelism at a time (plus the slots yielded by
// blocked tasks).
type Pool struct {
	maxParallelism int

	mu      sync.Mutex
	cond    sync.Cond // signaled when running decreases or a slot is yielded
	running int

	yielded atomic.Int32
}

// New returns a pool running at most parallelism tasks at once: 0 runs every task inline in
// the caller, a negative value means no limit.
func New(parallelism int) *Pool {
	p := &Pool{maxParallelism: parallelism}
	p.cond.L = &p.mu
	return p
}

// IsEnabled returns whether tasks run in their own goroutines.
func (p *Pool) IsEnabled() bool { return p.maxParallelism != 0 }

// IsUnlimited returns whether any number of tasks may run at once.
func (p *Pool) IsUnlimited() bool { return p.maxParallelism < 0 }

// MaxParallelism the pool was created with.
func (p *Pool) MaxParallelism() int { return p.maxParallelism }

// Running returns the number of tasks started and not yet finished.
func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// lockedIsFull must be called with mu held.
func (p *Pool) lockedIsFull() bool {
	if p.maxParallelism < 0 {
		return false
	}
	return p.running >= p.maxParallelism+int(p.yielded.Load())
}

// WaitToStart blocks until a slot is free and starts task in a new goroutine. With parallelism
// disabled, task runs inline and WaitToStart returns when it is done.
func (p *Pool) WaitToStart(task func()) {
	switch {
	case p.maxParallelism == 0:
		task()
		return
	case p.IsUnlimited():
		p.mu.Lock()
		p.running++
		p.mu.Unlock()
		go p.run(task)
		return
	}
	p.mu.Lock()
	for p.lockedIsFull() {
		p.cond.Wait()
	}
	p.running++
	p.mu.Unlock()
	go p.run(task)
}

func (p *Pool) run(task func()) {
	defer func() {
		p.mu.Lock()
		p.running--
		p.cond.Signal()
		p.mu.Unlock()
	}()
	task()
}

// Yield marks the calling task as blocked, freeing its slot until the returned function is
// called.
func (p *Pool) Yield() (resume func()) {
	p.yielded.Add(1)
	p.mu.Lock()
	p.cond.Signal()
	p.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { p.yielded.Add(-1) }) }
}
