// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package bridge marshals values crossing between a compiled graph and the host interpreter.
//
// Every value flowing along a graph edge is a *Value: a tagged union over scalars, sequences,
// mappings, tensors and opaque objects. A Value also records whether its type and shape were
// statically known when the graph was built (IsDynamic) and whether it was declared mutable.
//
// Values are ephemeral: they are created when a node executes and dropped once its consumers
// finished. Containers are copied when converted to interpreter objects (ToHost), so nodes never
// alias each other's data.
package bridge

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/tensors"
	"github.com/gomlx/jitfallback/pkg/hostlang"
	"golang.org/x/exp/maps"
)

// Kind is the tag of a Value.
type Kind int

//go:generate go tool enumer -type=Kind -trimprefix=Kind -output=gen_kind_enumer.go value.go

const (
	// KindAny is only used as an expectation (Unwrap) or for signatures whose kind is unknown.
	KindAny Kind = iota
	KindScalar
	KindSequence
	KindMapping
	KindTensor
	KindOpaque
)

// Tuple is the Go representation of a host tuple. A plain []any is a host list.
type Tuple []any

// Value is a value crossing the graph/interpreter boundary.
type Value struct {
	kind Kind

	// scalar is nil (None), bool, int64, float64 or string.
	scalar any

	tensor *tensors.Tensor
	numpy  bool

	elems []*Value
	tuple bool

	mapping *Mapping

	// opaque holds either a hostlang.Object without a structural representation (functions,
	// modules, user objects) or an arbitrary Go value.
	opaque any

	dynamic       bool
	mutable       bool
	dynamicLength bool
}

// None returns a new Value holding the host None.
func None() *Value { return &Value{kind: KindScalar} }

// NewTensor wraps a tensor.
func NewTensor(t *tensors.Tensor) *Value { return &Value{kind: KindTensor, tensor: t} }

// NewSequence creates a tuple (tuple=true) or list Value from already wrapped elements.
func NewSequence(tuple bool, elems ...*Value) *Value {
	return &Value{kind: KindSequence, elems: elems, tuple: tuple}
}

// Wrap converts a Go value to a Value. It never fails: values of unknown types become
// KindOpaque.
//
// Go ints and uints are normalized to int64, floats to float64. Numeric Go slices (of any
// number of dimensions) become tensors. []any is a list, Tuple a tuple, map[string]any a
// mapping with sorted keys. hostlang.Object values are converted with FromHost.
func Wrap(raw any) *Value {
	switch v := raw.(type) {
	case *Value:
		return v
	case nil:
		return None()
	case bool, string:
		return &Value{kind: KindScalar, scalar: v}
	case int:
		return scalarInt(int64(v))
	case int8:
		return scalarInt(int64(v))
	case int16:
		return scalarInt(int64(v))
	case int32:
		return scalarInt(int64(v))
	case int64:
		return scalarInt(v)
	case uint8:
		return scalarInt(int64(v))
	case uint16:
		return scalarInt(int64(v))
	case uint32:
		return scalarInt(int64(v))
	case uint64:
		return scalarInt(int64(v))
	case float32:
		return &Value{kind: KindScalar, scalar: float64(v)}
	case float64:
		return &Value{kind: KindScalar, scalar: v}
	case *tensors.Tensor:
		return NewTensor(v)
	case dtypes.DType:
		return FromHost(&hostlang.DType{DType: v})
	case Tuple:
		return NewSequence(true, wrapAll(v)...)
	case []any:
		return NewSequence(false, wrapAll(v)...)
	case map[string]any:
		m := NewMapping()
		keys := maps.Keys(v)
		slices.Sort(keys)
		for _, key := range keys {
			m.mustSetString(key, Wrap(v[key]))
		}
		return &Value{kind: KindMapping, mapping: m}
	case *Mapping:
		return &Value{kind: KindMapping, mapping: v}
	case hostlang.Object:
		return FromHost(v)
	}
	if rv := reflect.ValueOf(raw); rv.Kind() == reflect.Slice {
		if t, err := tensors.FromAnyValue(raw); err == nil {
			return NewTensor(t)
		}
	}
	return &Value{kind: KindOpaque, opaque: raw}
}

func scalarInt(v int64) *Value { return &Value{kind: KindScalar, scalar: v} }

func wrapAll(raws []any) []*Value {
	values := make([]*Value, len(raws))
	for i, raw := range raws {
		values[i] = Wrap(raw)
	}
	return values
}

// Mutable wraps raw and marks it mutable: graphs consuming it treat its content (and, if
// dynamicLength is set, its length) as unknown until run time.
func Mutable(raw any, dynamicLength bool) *Value {
	v := Wrap(raw).shallowCopy()
	v.mutable = true
	v.dynamic = true
	v.dynamicLength = dynamicLength
	return v
}

// IsDynamic returns whether the value's type/shape was unknown when the graph was built.
func IsDynamic(v *Value) bool { return v != nil && v.dynamic }

// WithDynamic returns a shallow copy of v with the dynamic flag set as given.
func (v *Value) WithDynamic(dynamic bool) *Value {
	c := v.shallowCopy()
	c.dynamic = dynamic
	return c
}

func (v *Value) shallowCopy() *Value {
	c := *v
	return &c
}

// Kind of the value.
func (v *Value) Kind() Kind { return v.kind }

// IsMutable returns whether the value was declared mutable with Mutable or jit.mutable.
func (v *Value) IsMutable() bool { return v.mutable }

// HasDynamicLength returns whether the length of a mutable sequence may change between calls.
func (v *Value) HasDynamicLength() bool { return v.dynamicLength }

// IsNone returns whether v holds None.
func (v *Value) IsNone() bool { return v.kind == KindScalar && v.scalar == nil }

// Scalar returns the scalar held: nil, bool, int64, float64 or string.
func (v *Value) Scalar() any { return v.scalar }

// Tensor held, or nil.
func (v *Value) Tensor() *tensors.Tensor { return v.tensor }

// IsNumPy returns whether a tensor value is a numpy array in the interpreter.
func (v *Value) IsNumPy() bool { return v.numpy }

// IsTuple returns whether a sequence is a tuple (as opposed to a list).
func (v *Value) IsTuple() bool { return v.tuple }

// Elements of a sequence. The returned slice must not be modified.
func (v *Value) Elements() []*Value { return v.elems }

// Mapping held, or nil.
func (v *Value) Mapping() *Mapping { return v.mapping }

// Opaque returns the opaque object held.
func (v *Value) Opaque() any { return v.opaque }

// Len returns the length of sequences and mappings, or -1 for other kinds.
func (v *Value) Len() int {
	switch v.kind {
	case KindSequence:
		return len(v.elems)
	case KindMapping:
		return v.mapping.Len()
	}
	return -1
}

// TypeName is the name of the value's type in the interpreter.
func (v *Value) TypeName() string {
	switch v.kind {
	case KindScalar:
		return scalarTypeName(v.scalar)
	case KindTensor:
		if v.numpy {
			return "numpy.ndarray"
		}
		return "Tensor"
	case KindSequence:
		if v.tuple {
			return "tuple"
		}
		return "list"
	case KindMapping:
		return "dict"
	}
	if obj, ok := v.opaque.(hostlang.Object); ok {
		return obj.TypeName()
	}
	return fmt.Sprintf("%T", v.opaque)
}

func scalarTypeName(scalar any) string {
	switch scalar.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	}
	return fmt.Sprintf("%T", scalar)
}

// String renders the value as the interpreter's repr() would.
func (v *Value) String() string {
	if v == nil {
		return "<nil>"
	}
	return hostlang.Repr(ToHost(v))
}

// Equal reports whether a and b hold the same data: same kind, same scalars, tensors with equal
// shape and content, element-wise equal containers. Opaque values are compared by identity,
// except dtypes which are compared by value.
// Dynamic and mutable flags are ignored.
func Equal(a, b *Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindScalar:
		return a.scalar == b.scalar
	case KindTensor:
		return a.tensor.Equal(b.tensor)
	case KindSequence:
		if a.tuple != b.tuple {
			return false
		}
		return slices.EqualFunc(a.elems, b.elems, Equal)
	case KindMapping:
		return a.mapping.Equal(b.mapping)
	case KindOpaque:
		return opaqueIdentical(a.opaque, b.opaque)
	}
	return false
}

func opaqueIdentical(a, b any) bool {
	if da, ok := a.(*hostlang.DType); ok {
		db, ok := b.(*hostlang.DType)
		return ok && da.DType == db.DType
	}
	defer func() { _ = recover() }()
	return a == b
}
