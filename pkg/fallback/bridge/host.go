// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"fmt"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/tensors"
	"github.com/gomlx/jitfallback/pkg/hostlang"
)

// ToHost converts a Value to an interpreter object. Containers are copied, so the interpreter
// can modify the result freely.
func ToHost(v *Value) hostlang.Object {
	if v == nil {
		return hostlang.None
	}
	switch v.kind {
	case KindScalar:
		switch s := v.scalar.(type) {
		case bool:
			return hostlang.Bool(s)
		case int64:
			return hostlang.Int(s)
		case float64:
			return hostlang.Float(s)
		case string:
			return hostlang.Str(s)
		}
		return hostlang.None
	case KindTensor:
		return &hostlang.Tensor{Value: v.tensor, NumPy: v.numpy}
	case KindSequence:
		elems := make([]hostlang.Object, len(v.elems))
		for i, e := range v.elems {
			elems[i] = ToHost(e)
		}
		if v.tuple {
			return hostlang.NewTuple(elems...)
		}
		return hostlang.NewList(elems...)
	case KindMapping:
		d := hostlang.NewDict()
		_ = v.mapping.Each(func(key, value *Value) error {
			// Keys were validated on insertion.
			_ = d.Set(ToHost(key), ToHost(value))
			return nil
		})
		return d
	}
	return hostlang.FromGo(v.opaque)
}

// FromHost converts an interpreter object to a Value, copying containers.
//
// Objects with no structural representation (functions, modules, dtypes, user objects) are
// kept as KindOpaque and returned unchanged by ToHost.
func FromHost(obj hostlang.Object) *Value {
	switch o := obj.(type) {
	case nil, *hostlang.NoneType:
		return None()
	case hostlang.Bool:
		return &Value{kind: KindScalar, scalar: bool(o)}
	case hostlang.Int:
		return scalarInt(int64(o))
	case hostlang.Float:
		return &Value{kind: KindScalar, scalar: float64(o)}
	case hostlang.Str:
		return &Value{kind: KindScalar, scalar: string(o)}
	case *hostlang.Tensor:
		return &Value{kind: KindTensor, tensor: o.Value, numpy: o.NumPy}
	case *hostlang.List:
		return NewSequence(false, fromHostAll(o.Elems)...)
	case *hostlang.Tuple:
		return NewSequence(true, fromHostAll(o.Elems)...)
	case *hostlang.Dict:
		m := NewMapping()
		for _, item := range o.Items() {
			key := FromHost(item[0])
			id, _ := keyOf(key)
			m.m.Set(id, mappingEntry{key: key, value: FromHost(item[1])})
		}
		return &Value{kind: KindMapping, mapping: m}
	case *hostlang.Opaque:
		return &Value{kind: KindOpaque, opaque: o.Value}
	}
	return &Value{kind: KindOpaque, opaque: obj}
}

func fromHostAll(objs []hostlang.Object) []*Value {
	values := make([]*Value, len(objs))
	for i, obj := range objs {
		values[i] = FromHost(obj)
	}
	return values
}

// UnwrapError is returned when a Value doesn't hold what the caller expected.
type UnwrapError struct {
	Expected, Got Kind
	TypeName      string
	Reason        string
}

func (e *UnwrapError) Error() string {
	msg := fmt.Sprintf("cannot unwrap %s value of type '%s' as %s", e.Got, e.TypeName, e.Expected)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Unwrap returns the Go value held by v, failing with *UnwrapError if v's kind is not expected.
// KindAny accepts every value.
//
// The Go representation is the one accepted by Wrap: nil/bool/int64/float64/string for scalars,
// *tensors.Tensor, Tuple or []any (elements unwrapped recursively), *Mapping, or the opaque
// object.
func Unwrap(v *Value, expected Kind) (any, error) {
	if v == nil {
		return nil, &UnwrapError{Expected: expected, Got: KindAny, TypeName: "<nil>", Reason: "missing value"}
	}
	if expected != KindAny && expected != v.kind {
		return nil, &UnwrapError{Expected: expected, Got: v.kind, TypeName: v.TypeName()}
	}
	return v.raw(), nil
}

func (v *Value) raw() any {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindTensor:
		return v.tensor
	case KindSequence:
		out := make([]any, len(v.elems))
		for i, e := range v.elems {
			out[i] = e.raw()
		}
		if v.tuple {
			return Tuple(out)
		}
		return out
	case KindMapping:
		return v.mapping
	}
	return v.opaque
}

// SequenceToTensor converts a sequence to a tensor. It is only legal for non-empty sequences
// that are not nested and are homogeneous: either all numeric scalars or all tensors of the same
// shape and dtype. Otherwise an *UnwrapError explains why.
//
// If dtype is InvalidDType it is inferred: host floats become Float32.
func SequenceToTensor(v *Value, dtype dtypes.DType) (*tensors.Tensor, error) {
	fail := func(format string, args ...any) error {
		return &UnwrapError{Expected: KindTensor, Got: v.kind, TypeName: v.TypeName(), Reason: fmt.Sprintf(format, args...)}
	}
	if v.kind != KindSequence {
		return nil, fail("not a sequence")
	}
	if len(v.elems) == 0 {
		return nil, fail("empty sequence")
	}
	first := v.elems[0]
	for i, e := range v.elems {
		switch e.kind {
		case KindSequence, KindMapping:
			return nil, fail("nested %s at position %d", e.TypeName(), i)
		case KindScalar:
			if first.kind != KindScalar {
				return nil, fail("mixes tensors and scalars")
			}
			switch e.scalar.(type) {
			case bool, int64, float64:
			default:
				return nil, fail("non-numeric element of type '%s' at position %d", e.TypeName(), i)
			}
		case KindTensor:
			if first.kind != KindTensor {
				return nil, fail("mixes tensors and scalars")
			}
			if !e.tensor.Shape().Equal(first.tensor.Shape()) {
				return nil, fail("element %d has shape %s, expected %s", i, e.tensor.Shape(), first.tensor.Shape())
			}
		default:
			return nil, fail("element of type '%s' at position %d", e.TypeName(), i)
		}
	}
	t, err := hostlang.ToTensor(ToHost(v), dtype, dtypes.Float32)
	if err != nil {
		return nil, fail("%s", err.Error())
	}
	return t, nil
}
