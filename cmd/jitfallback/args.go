// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"strings"

	"github.com/gomlx/jitfallback/pkg/core/shapes"
	"github.com/gomlx/jitfallback/pkg/core/tensors/numpy"
	"github.com/gomlx/jitfallback/pkg/fallback/bridge"
	"github.com/gomlx/jitfallback/pkg/hostlang"
	"github.com/gomlx/jitfallback/pkg/hostlang/syntax"
	"github.com/gomlx/jitfallback/pkg/support/fsutil"
	"github.com/pkg/errors"
)

const (
	mutablePrefix = "mutable:"
	tensorPrefix  = "t:"
)

// argParser converts --arg values to function arguments. Literals are evaluated by a private
// interpreter, so they follow the host syntax.
type argParser struct {
	interp  *hostlang.Interpreter
	globals *hostlang.Env
}

func newArgParser() *argParser {
	interp := hostlang.New()
	return &argParser{interp: interp, globals: interp.NewGlobals("<args>")}
}

// parse accepts:
//
//   - literals: 3, -1.5, True, None, 'text', [1, 2], (2, 3), {'a': 1};
//   - bare words, taken as strings;
//   - t:<dtype>:<literal> tensors, e.g. t:float32:[[1, 2], [3, 4]];
//   - paths ending in .npy;
//   - any of the above prefixed by "mutable:".
func (p *argParser) parse(text string) (any, error) {
	if rest, found := strings.CutPrefix(text, mutablePrefix); found {
		value, err := p.parse(rest)
		if err != nil {
			return nil, err
		}
		return bridge.Mutable(value, false), nil
	}

	if rest, found := strings.CutPrefix(text, tensorPrefix); found {
		dtypeName, literal, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, errors.Errorf("tensor argument %q must be t:<dtype>:<literal>", text)
		}
		dtype, err := shapes.ParseDType(dtypeName)
		if err != nil {
			return nil, err
		}
		obj, err := p.literal(literal)
		if err != nil {
			return nil, err
		}
		defer hostlang.InterpreterLock.Acquire()()
		return hostlang.ToTensor(obj, dtype, dtype)
	}

	if strings.HasSuffix(text, ".npy") {
		path, err := fsutil.ResolveFile(text)
		if err != nil {
			return nil, err
		}
		return numpy.FromNpyFile(path)
	}

	obj, err := p.literal(text)
	if err != nil {
		return nil, err
	}
	defer hostlang.InterpreterLock.Acquire()()
	return bridge.FromHost(obj), nil
}

// literal evaluates a literal expression. Names other than True, False and None make the whole
// text a string.
func (p *argParser) literal(text string) (hostlang.Object, error) {
	expr, err := syntax.ParseExpr(text)
	if err != nil {
		return nil, errors.WithMessagef(err, "parsing %q", text)
	}
	if name, ok := expr.(*syntax.Name); ok {
		return hostlang.Str(name.ID), nil
	}
	var invalid syntax.Node
	syntax.Inspect(expr, func(n syntax.Node) bool {
		switch n.(type) {
		case *syntax.Name, *syntax.Call, *syntax.Attribute, *syntax.Lambda, *syntax.Subscript:
			if invalid == nil {
				invalid = n
			}
			return false
		}
		return true
	})
	if invalid != nil {
		return nil, errors.Errorf("%q is not a literal: %q is not allowed", text, invalid.NodeSpan().Text(text))
	}
	defer hostlang.InterpreterLock.Acquire()()
	return p.interp.Eval(expr, hostlang.NewEnv(p.globals))
}
