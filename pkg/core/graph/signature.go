// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/shapes"
	"github.com/gomlx/jitfallback/pkg/fallback/bridge"
	"github.com/gomlx/jitfallback/pkg/hostlang"
)

// ArgSpec describes one argument of a specialization: either a parameter of the graph with a
// (possibly partial) signature, or a host value baked into the graph as a constant.
type ArgSpec struct {
	Signature bridge.Signature

	// Constant is the baked value, nil for parameters.
	Constant *bridge.Value

	// Mutable parameters make every node depending on them dynamic.
	Mutable bool

	defined bool
}

// IsParameter returns whether the argument is passed at run time.
func (s ArgSpec) IsParameter() bool { return s.Constant == nil }

// Key identifies the spec in the Exec cache.
func (s ArgSpec) Key() string {
	if s.Constant != nil {
		return fmt.Sprintf("const:%s:%s", s.Constant.TypeName(), s.Constant)
	}
	if s.Mutable {
		return "mutable:" + s.Signature.String()
	}
	return s.Signature.String()
}

func (s ArgSpec) String() string {
	if s.Constant != nil {
		return "=" + s.Constant.String()
	}
	return s.Signature.String()
}

// ArgOf returns the spec of a concrete argument:
//
//   - tensors are parameters with their dtype and dimensions;
//   - mutable values are parameters with their kind, dtype and, unless declared with a dynamic
//     length, their length;
//   - opaque objects (Go values, user objects) are parameters, except dtypes;
//   - containers holding any of the above are parameters with their exact signature;
//   - other host values, dtypes included, are baked as constants.
func ArgOf(arg any) ArgSpec {
	v := bridge.Wrap(arg)
	if v.IsMutable() {
		return ArgSpec{Signature: bridge.SignatureOf(v), Mutable: true, defined: true}
	}
	if holdsRuntimeData(v) {
		return ArgSpec{Signature: bridge.SignatureOf(v), defined: true}
	}
	return ArgSpec{Signature: bridge.SignatureOf(v), Constant: v, defined: true}
}

// holdsRuntimeData returns whether v contains tensors or opaque objects other than dtypes,
// which are never baked.
func holdsRuntimeData(v *bridge.Value) bool {
	switch v.Kind() {
	case bridge.KindTensor:
		return true
	case bridge.KindOpaque:
		_, isDType := v.Opaque().(*hostlang.DType)
		return !isDType
	case bridge.KindSequence:
		for _, e := range v.Elements() {
			if holdsRuntimeData(e) {
				return true
			}
		}
	case bridge.KindMapping:
		found := false
		_ = v.Mapping().Each(func(key, value *bridge.Value) error {
			if holdsRuntimeData(key) || holdsRuntimeData(value) {
				found = true
			}
			return nil
		})
		return found
	}
	return false
}

// DynamicTensor returns the spec of a tensor parameter whose dimensions given as -1 are only
// known at run time.
func DynamicTensor(dtype dtypes.DType, dims ...int) ArgSpec {
	dims = slices.Clone(dims)
	for i, dim := range dims {
		if dim < 0 {
			dims[i] = shapes.DimUnknown
		}
	}
	return ArgSpec{Signature: bridge.TensorSignature(shapes.MakeDynamic(dtype, dims...)), defined: true}
}

// InputSignature is the list of argument specs of a specialization.
type InputSignature []ArgSpec

// SignatureOfArgs returns the default input signature of concrete arguments, see ArgOf.
func SignatureOfArgs(args ...any) InputSignature {
	sig := make(InputSignature, len(args))
	for i, arg := range args {
		sig[i] = ArgOf(arg)
	}
	return sig
}

// Key identifies the input signature in the Exec cache.
func (s InputSignature) Key() string {
	keys := make([]string, len(s))
	for i, spec := range s {
		keys[i] = spec.Key()
	}
	return strings.Join(keys, "; ")
}

func (s InputSignature) String() string {
	parts := make([]string, len(s))
	for i, spec := range s {
		parts[i] = spec.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// check validates a concrete argument against its spec.
func (s ArgSpec) check(position int, v *bridge.Value) error {
	if s.Constant != nil {
		if !bridge.Equal(s.Constant, v) {
			return hostlang.Errorf(hostlang.TypeError, "argument #%d was compiled as the constant %s, got %s",
				position, s.Constant, v)
		}
		return nil
	}
	if got := bridge.SignatureOf(v); !s.Signature.Accepts(got) {
		return hostlang.Errorf(hostlang.TypeError, "argument #%d doesn't match the compiled signature %s, got %s",
			position, s.Signature, got)
	}
	return nil
}
