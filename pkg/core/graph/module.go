// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"sync/atomic"

	"github.com/gomlx/jitfallback/pkg/core/ops"
	"github.com/gomlx/jitfallback/pkg/fallback/annotations"
	"github.com/gomlx/jitfallback/pkg/fallback/bridge"
	"github.com/gomlx/jitfallback/pkg/hostlang"
	"github.com/gomlx/jitfallback/pkg/hostlang/syntax"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Module is a loaded hostlang source file: its parsed body, its pragmas and the globals left by
// executing its top-level statements.
type Module struct {
	name string
	id   uuid.UUID

	// version changes with every SetGlobal, invalidating cached specializations.
	version atomic.Int64

	ast         *syntax.Module
	annotations *annotations.Table

	interp  *hostlang.Interpreter
	globals *hostlang.Env
}

// LoadModule parses source, scans its pragmas and executes its top-level statements.
//
// Syntax errors and malformed pragmas are *syntax.Error, exceptions raised by the top-level
// statements *hostlang.Error.
func LoadModule(name, source string, opts ...hostlang.Option) (*Module, error) {
	ast, err := syntax.Parse(name, source)
	if err != nil {
		return nil, err
	}
	table, err := annotations.Scan(name, source)
	if err != nil {
		return nil, err
	}
	m := &Module{name: name, id: uuid.New(), ast: ast, annotations: table, interp: hostlang.New(opts...)}
	m.interp.RegisterModule(ops.HostModule())
	m.globals = m.interp.NewGlobals(name)

	release := hostlang.InterpreterLock.Acquire()
	defer release()
	if err := m.interp.ExecModule(ast, m.globals); err != nil {
		return nil, errors.WithMessagef(err, "loading module %q", name)
	}
	return m, nil
}

// Name of the module, used as file name in locations.
func (m *Module) Name() string { return m.name }

// Id uniquely identifies the module instance.
func (m *Module) Id() uuid.UUID { return m.id }

// Annotations found in the module source.
func (m *Module) Annotations() *annotations.Table { return m.annotations }

// SetGlobal defines or replaces a global of the module. Go values that are not host objects are
// injected as opaque objects. Specializations compiled before are not reused.
func (m *Module) SetGlobal(name string, value any) {
	obj := hostlang.FromGo(value)
	if v, ok := value.(*bridge.Value); ok {
		obj = bridge.ToHost(v)
	}
	release := hostlang.InterpreterLock.Acquire()
	m.globals.Set(name, obj)
	release()
	m.version.Add(1)
}

// Global returns the current value of a global.
func (m *Module) Global(name string) (hostlang.Object, bool) {
	defer hostlang.InterpreterLock.Acquire()()
	return m.globals.LookupLocal(name)
}

// lookupGlobal resolves a name in the globals and builtins. The caller holds the interpreter lock.
func (m *Module) lookupGlobal(name string) (hostlang.Object, bool) {
	return m.globals.Lookup(name)
}

// Function returns the function defined with "def" (or bound to a lambda) under name.
func (m *Module) Function(name string) (*Function, error) {
	obj, found := m.Global(name)
	if !found {
		return nil, errors.Errorf("module %q has no function %q", m.name, name)
	}
	fn, ok := obj.(*hostlang.Function)
	if !ok {
		return nil, errors.Errorf("%q in module %q is a %s, not a function", name, m.name, obj.TypeName())
	}
	return &Function{module: m, name: name, fn: fn}, nil
}

// Function is a hostlang function that can be compiled.
type Function struct {
	module *Module
	name   string
	fn     *hostlang.Function
}

// Name of the function.
func (f *Function) Name() string { return f.name }

// Module defining the function.
func (f *Function) Module() *Module { return f.module }

// Params returns the names of the positional parameters.
func (f *Function) Params() []string { return f.fn.Params.Names }

// body returns the statements traced for the function.
func (f *Function) body() []syntax.Stmt {
	if f.fn.Lambda != nil {
		return []syntax.Stmt{&syntax.Return{Span: f.fn.Lambda.Body.NodeSpan(), Value: f.fn.Lambda.Body}}
	}
	return f.fn.Def.Body
}

// span of the function definition.
func (f *Function) span() syntax.Span {
	if f.fn.Lambda != nil {
		return f.fn.Lambda.Span
	}
	return f.fn.Def.Span
}

// Interpret calls the function in the interpreter, without compiling it. It is the reference
// behavior of compiled graphs.
func (f *Function) Interpret(args ...any) (value *bridge.Value, err error) {
	hostArgs := make([]hostlang.Object, len(args))
	for i, arg := range args {
		hostArgs[i] = bridge.ToHost(bridge.Wrap(arg))
	}
	release := hostlang.InterpreterLock.Acquire()
	defer release()
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic interpreting %s(): %v", f.name, r)
		}
	}()
	result, err := f.fn.Call(hostArgs, nil)
	if err != nil {
		return nil, err
	}
	return bridge.FromHost(result), nil
}
