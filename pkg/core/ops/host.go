// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"slices"

	"github.com/gomlx/jitfallback/pkg/fallback/bridge"
	"github.com/gomlx/jitfallback/pkg/hostlang"
)

// HostModuleName is the name under which HostModule is imported by host code.
const HostModuleName = "jit.ops"

// ArgNames returns the host argument names of the op: its inputs (only one for variadic ops)
// followed by its parameters.
func (op *Op) ArgNames() []string {
	inputs := op.InputNames
	if op.Variadic {
		inputs = inputs[:1]
	}
	return slices.Concat(inputs, op.ParamNames)
}

// NumInputArgs is the number of required host arguments.
func (op *Op) NumInputArgs() int {
	if op.Variadic {
		return 1
	}
	return len(op.InputNames)
}

// BindArgs aligns the host call arguments with ArgNames and splits them into operands and
// parameters. Missing optional parameters are nil.
//
// The arguments are not interpreted: graph construction binds placeholders for its nodes the
// same way the host module binds values.
func (op *Op) BindArgs(args []hostlang.Object, kwargs []hostlang.Kwarg) (inputs, params []hostlang.Object, err error) {
	aligned, err := hostlang.ParseArgs(op.hostName(), args, kwargs, op.NumInputArgs(), op.ArgNames()...)
	if err != nil {
		return nil, nil, err
	}
	n := op.NumInputArgs()
	return aligned[:n], aligned[n:], nil
}

// CallHost executes the op eagerly on host values.
func (op *Op) CallHost(args []hostlang.Object, kwargs []hostlang.Kwarg) (hostlang.Object, error) {
	hostInputs, hostParams, err := op.BindArgs(args, kwargs)
	if err != nil {
		return nil, err
	}
	if op.Variadic {
		if hostInputs, err = hostlang.Iterate(hostInputs[0]); err != nil {
			return nil, err
		}
	}
	params, err := op.ParamsFromHost(hostParams)
	if err != nil {
		return nil, err
	}
	inputs := make([]*bridge.Value, len(hostInputs))
	for i, in := range hostInputs {
		inputs[i] = bridge.FromHost(in)
	}
	out, err := op.Exec(inputs, params)
	if err != nil {
		return nil, err
	}
	return bridge.ToHost(out), nil
}

// HostModule returns a new "jit.ops" module with one function per op with a HostName. Each
// function records its op in Builtin.Native.
func HostModule() *hostlang.Module {
	m := hostlang.NewModule(HostModuleName)
	for _, name := range Names() {
		op := registry[name]
		if op.HostName == "" {
			continue
		}
		m.Set(op.HostName, &hostlang.Builtin{Name: op.HostName, Fn: op.CallHost, Native: op.Name})
	}
	return m
}
