// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlang

import (
	"sync"
	"sync/atomic"

	"k8s.io/klog/v2"
)

// NamedLock is a process wide mutex guarding a named resource.
type NamedLock struct {
	name     string
	mu       sync.Mutex
	held     atomic.Bool
	acquires atomic.Int64
}

// NewNamedLock creates an unlocked NamedLock.
func NewNamedLock(name string) *NamedLock {
	return &NamedLock{name: name}
}

// InterpreterLock serializes all host evaluations: interpreter objects are not safe for
// concurrent use.
var InterpreterLock = NewNamedLock("interpreter")

// Name of the guarded resource.
func (l *NamedLock) Name() string { return l.name }

// Acquire blocks until the lock is held and returns the function that releases it.
// The usual pattern is:
//
//	defer hostlang.InterpreterLock.Acquire()()
func (l *NamedLock) Acquire() (release func()) {
	l.mu.Lock()
	l.held.Store(true)
	l.acquires.Add(1)
	if klog.V(3).Enabled() {
		klog.Infof("acquired lock %q", l.name)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.held.Store(false)
			l.mu.Unlock()
		})
	}
}

// Held reports whether the lock is currently held by someone.
func (l *NamedLock) Held() bool { return l.held.Load() }

// Acquisitions counts how many times the lock was acquired.
func (l *NamedLock) Acquisitions() int64 { return l.acquires.Load() }
