// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ops is the registry of native graph operations.
//
// Each Op has a static shape inference function (Infer), used while the graph is built, and a
// CPU implementation (Exec) run by the executor. Both work on bridge values/signatures, so an
// op may receive host scalars and sequences as well as tensors.
//
// Failures that the host interpreter would raise (bad index, incompatible shapes, ...) are
// reported as *hostlang.Error, both by Exec and by Infer when the inputs are known well enough
// to tell the op will fail.
//
// Most ops are also exposed to host code in the "jit.ops" module (see HostModule), with the
// op name recorded in hostlang.Builtin.Native so graph construction can lower those calls.
package ops

import (
	"slices"
	"sort"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/fallback/bridge"
	"github.com/gomlx/jitfallback/pkg/hostlang"
)

// Params configures an op. Only the fields named in Op.ParamNames are used.
type Params struct {
	// DType for Cast and MakeTensor. InvalidDType means "inferred".
	DType dtypes.DType

	// Axis for ArgMaxWithValue and Concat.
	Axis int

	// Axes reduced by ReduceSum, nil for all.
	Axes []int

	// Index for TupleGetItem, TensorGetItem and TensorSetItem.
	Index int

	// DynamicLength for Identity: the marked sequence may change length between calls.
	DynamicLength bool
}

// DefaultParams returns the parameters used when the host code doesn't specify them.
func DefaultParams() Params {
	return Params{DType: dtypes.InvalidDType}
}

// Op is a native operation.
type Op struct {
	Name string

	// HostName is the function name in the "jit.ops" host module, "" if not exposed.
	HostName string

	// InputNames of the operands. Variadic ops take their operands as the elements of the single
	// sequence argument named InputNames[0] in host code.
	InputNames []string
	Variadic   bool

	// ParamNames lists the host arguments following the operands, among "dtype", "axis",
	// "axes", "index" and "dynamic_len". They must be compile-time constants.
	ParamNames []string

	// Infer returns the output signature for the given input signatures.
	Infer func(inputs []bridge.Signature, p Params) (bridge.Signature, error)

	// Exec computes the output. Inputs are never modified.
	Exec func(inputs []*bridge.Value, p Params) (*bridge.Value, error)
}

var registry = make(map[string]*Op)

// Register adds an op to the registry. It panics if the name is taken.
func Register(op *Op) {
	if _, found := registry[op.Name]; found {
		exceptions.Panicf("ops.Register(%q): op already registered", op.Name)
	}
	registry[op.Name] = op
}

// Get returns the registered op with the given name.
func Get(name string) (*Op, bool) {
	op, found := registry[name]
	return op, found
}

// MustGet is like Get but panics if the op doesn't exist.
func MustGet(name string) *Op {
	op, found := registry[name]
	if !found {
		exceptions.Panicf("ops.MustGet(%q): unknown op", name)
	}
	return op
}

// Names of all registered ops, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParamsFromHost converts the host values of the op parameters (aligned with ParamNames, nil for
// the ones not given) to Params.
func (op *Op) ParamsFromHost(values []hostlang.Object) (Params, error) {
	p := DefaultParams()
	for i, name := range op.ParamNames {
		if i >= len(values) || hostlang.IsNone(values[i]) {
			continue
		}
		value := values[i]
		var err error
		switch name {
		case "dtype":
			p.DType, err = hostlang.DTypeOf(value)
		case "axis":
			p.Axis, err = hostInt(op, name, value)
		case "index":
			p.Index, err = hostInt(op, name, value)
		case "axes":
			p.Axes, err = hostInts(op, value)
		case "dynamic_len":
			p.DynamicLength, err = hostlang.Truth(value)
		default:
			exceptions.Panicf("op %s: unknown parameter %q", op.Name, name)
		}
		if err != nil {
			return p, err
		}
	}
	return p, nil
}

func hostInt(op *Op, name string, value hostlang.Object) (int, error) {
	switch v := value.(type) {
	case hostlang.Int:
		return int(v), nil
	case hostlang.Bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, hostlang.Errorf(hostlang.TypeError, "%s() argument '%s' must be an integer, not '%s'",
		op.hostName(), name, value.TypeName())
}

func hostInts(op *Op, value hostlang.Object) ([]int, error) {
	if _, isInt := value.(hostlang.Int); isInt {
		axis, err := hostInt(op, "axes", value)
		return []int{axis}, err
	}
	elems, err := hostlang.Iterate(value)
	if err != nil {
		return nil, err
	}
	axes := make([]int, len(elems))
	for i, elem := range elems {
		if axes[i], err = hostInt(op, "axes", elem); err != nil {
			return nil, err
		}
	}
	return axes, nil
}

func (op *Op) hostName() string {
	if op.HostName != "" {
		return op.HostName
	}
	return op.Name
}

// checkArity validates the number of inputs given to Infer or Exec.
func (op *Op) checkArity(n int) error {
	if op.Variadic {
		if n == 0 {
			return hostlang.Errorf(hostlang.ValueError, "%s() needs at least one input", op.hostName())
		}
		return nil
	}
	if n != len(op.InputNames) {
		return hostlang.Errorf(hostlang.TypeError, "%s() takes %d inputs (%d given)", op.hostName(), len(op.InputNames), n)
	}
	return nil
}

// register wraps Infer and Exec with the arity check and adds op to the registry.
func register(op *Op) *Op {
	infer, exec := op.Infer, op.Exec
	op.Infer = func(inputs []bridge.Signature, p Params) (bridge.Signature, error) {
		if err := op.checkArity(len(inputs)); err != nil {
			return bridge.Unknown(), err
		}
		sig, err := infer(inputs, p)
		if err != nil {
			return bridge.Unknown(), err
		}
		if slices.ContainsFunc(inputs, func(s bridge.Signature) bool { return s.Dynamic }) {
			sig.Dynamic = true
		}
		return sig, nil
	}
	op.Exec = func(inputs []*bridge.Value, p Params) (*bridge.Value, error) {
		if err := op.checkArity(len(inputs)); err != nil {
			return nil, err
		}
		return exec(inputs, p)
	}
	Register(op)
	return op
}
