// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/jitfallback/pkg/support/envconfig"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Option configures Compile and NewExec. Defaults come from the environment, see envconfig.
type Option func(*options)

type options struct {
	syntaxLevel   envconfig.SyntaxLevel
	parallelism   int
	maxCache      int
	debugLowering bool
}

// WithSyntaxLevel sets how much of the function may fall back to the interpreter.
func WithSyntaxLevel(level envconfig.SyntaxLevel) Option {
	return func(o *options) { o.syntaxLevel = level }
}

// WithParallelism sets the number of concurrent node executions: 0 runs nodes sequentially in
// topological order, -1 is unlimited.
func WithParallelism(parallelism int) Option {
	return func(o *options) { o.parallelism = parallelism }
}

// WithMaxCache sets the number of specializations an Exec keeps, -1 for unlimited.
func WithMaxCache(maxCache int) Option {
	return func(o *options) { o.maxCache = maxCache }
}

// WithDebugLowering logs every lowering decision at info level, instead of klog.V(2).
func WithDebugLowering(enabled bool) Option {
	return func(o *options) { o.debugLowering = enabled }
}

func buildOptions(opts []Option) (options, error) {
	var o options
	var err error
	if o.syntaxLevel, err = envconfig.SyntaxLevelFromEnv(); err != nil {
		return o, err
	}
	if o.parallelism, err = envconfig.Parallelism(); err != nil {
		return o, err
	}
	if o.maxCache, err = envconfig.MaxCache(); err != nil {
		return o, err
	}
	o.debugLowering = envconfig.DebugLowering()
	for _, opt := range opts {
		opt(&o)
	}
	return o, nil
}

// Compile traces fn for the given input signature into a finalized graph.
//
// Lowering failures are returned as *CompileError. Exceptions the function raises for this
// signature are not compile errors: they are deferred to Execute.
func Compile(fn *Function, sig InputSignature, opts ...Option) (*CompiledGraph, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return compile(fn, sig, o)
}

func compile(fn *Function, sig InputSignature, o options) (*CompiledGraph, error) {
	start := time.Now()
	g := newGraph(fmt.Sprintf("%s%s", fn.name, sig), fn.module.name, fn.module.ast.Source)
	t := newTracer(fn, g, o)
	err := exceptions.TryCatch[error](func() { t.trace(sig) })
	if err != nil {
		var compileErr *CompileError
		if errors.As(err, &compileErr) {
			return nil, compileErr
		}
		return nil, errors.WithMessagef(err, "compiling %s", g.name)
	}
	g.Finalize()
	if klog.V(1).Enabled() {
		klog.Infof("compiled %s in %s: %s nodes, %d interpreted, %d parameters", g.name,
			time.Since(start), humanize.Comma(int64(len(g.nodes))), g.CountKind(NodeKindInterpreter), len(g.parameters))
	}
	return newCompiledGraph(fn, sig, g, o), nil
}
