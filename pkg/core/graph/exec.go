// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"sync"

	"github.com/gomlx/jitfallback/pkg/fallback/bridge"
	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Exec calls a function through compiled graphs, one per input signature, created on first use
// and cached.
//
// Arguments are specialized with ArgOf, except for the positions declared with SetInputs. The
// cache key includes the module version, so graphs compiled before a Module.SetGlobal are not
// reused.
//
// Exec is safe for concurrent use. Two goroutines missing the cache for the same key compile
// concurrently, and the first graph inserted is the one used.
type Exec struct {
	fn   *Function
	opts options

	// Protects cache, maxCacheSize and inputSpecs.
	cacheMu      sync.RWMutex
	cache        *orderedmap.OrderedMap[string, *CompiledGraph]
	maxCacheSize int
	inputSpecs   []ArgSpec
}

// NewExec creates an Exec for fn. Options set the defaults of the compilations, see Option.
func NewExec(fn *Function, opts ...Option) (*Exec, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Exec{
		fn:           fn,
		opts:         o,
		cache:        orderedmap.New[string, *CompiledGraph](),
		maxCacheSize: o.maxCache,
	}, nil
}

// Function called by the Exec.
func (e *Exec) Function() *Function { return e.fn }

// SetMaxCache sets the maximum number of cached graphs, -1 for unlimited. Past the limit, new
// signatures are compiled for every call.
// It returns a reference to itself so calls can be cascaded.
func (e *Exec) SetMaxCache(maxCacheSize int) *Exec {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.maxCacheSize = maxCacheSize
	return e
}

// SetInputs declares the specs of the first arguments, e.g. with DynamicTensor, so calls with
// different dimensions share one graph. Use ArgSpec{} to leave a position to ArgOf.
// It returns a reference to itself so calls can be cascaded.
func (e *Exec) SetInputs(specs ...ArgSpec) *Exec {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.inputSpecs = append([]ArgSpec{}, specs...)
	return e
}

// CacheSize returns the number of cached graphs.
func (e *Exec) CacheSize() int {
	e.cacheMu.RLock()
	defer e.cacheMu.RUnlock()
	return e.cache.Len()
}

// Specializations returns the cached graphs, in compilation order.
func (e *Exec) Specializations() []*CompiledGraph {
	e.cacheMu.RLock()
	defer e.cacheMu.RUnlock()
	graphs := make([]*CompiledGraph, 0, e.cache.Len())
	for pair := e.cache.Oldest(); pair != nil; pair = pair.Next() {
		graphs = append(graphs, pair.Value)
	}
	return graphs
}

// SignatureOf returns the input signature args are specialized with.
func (e *Exec) SignatureOf(args ...any) InputSignature {
	e.cacheMu.RLock()
	specs := e.inputSpecs
	e.cacheMu.RUnlock()
	sig := SignatureOfArgs(args...)
	for i, spec := range specs {
		if i < len(sig) && spec.defined {
			sig[i] = spec
		}
	}
	return sig
}

// Call executes the function with args, compiling a graph for their signature if needed.
// Errors are *CompileError, *RuntimeError or, for arguments, *hostlang.Error.
func (e *Exec) Call(args ...any) ([]*bridge.Value, error) {
	cg, err := e.Specialization(args...)
	if err != nil {
		return nil, err
	}
	return cg.Execute(args...)
}

// Specialization returns the graph args execute with, compiling it if needed.
func (e *Exec) Specialization(args ...any) (*CompiledGraph, error) {
	return e.specialize(e.SignatureOf(args...))
}

// Warmup compiles the graphs of the given signatures concurrently.
func (e *Exec) Warmup(sigs ...InputSignature) error {
	var group errgroup.Group
	if e.opts.parallelism > 0 {
		group.SetLimit(e.opts.parallelism)
	}
	for _, sig := range sigs {
		group.Go(func() error {
			_, err := e.specialize(sig)
			return err
		})
	}
	return errors.WithMessagef(group.Wait(), "warming up %s()", e.fn.name)
}

func (e *Exec) key(sig InputSignature) string {
	m := e.fn.module
	return fmt.Sprintf("%s@%d/%s(%s)", m.id, m.version.Load(), e.fn.name, sig.Key())
}

// specialize returns the cached graph for sig or compiles it. Compilation runs without holding
// cacheMu.
func (e *Exec) specialize(sig InputSignature) (*CompiledGraph, error) {
	key := e.key(sig)
	e.cacheMu.RLock()
	cg, found := e.cache.Get(key)
	e.cacheMu.RUnlock()
	if found {
		return cg, nil
	}

	cg, err := compile(e.fn, sig, e.opts)
	if err != nil {
		return nil, err
	}

	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	if existing, found := e.cache.Get(key); found {
		klog.V(1).Infof("%s: graph compiled concurrently for %s, keeping the first one", e.fn.name, sig)
		return existing, nil
	}
	if e.maxCacheSize >= 0 && e.cache.Len() >= e.maxCacheSize {
		klog.V(1).Infof("%s: cache full (%d graphs), %s is not cached", e.fn.name, e.maxCacheSize, sig)
		return cg, nil
	}
	e.cache.Set(key, cg)
	return cg, nil
}
