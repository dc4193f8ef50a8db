// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/shapes"
)

// Signature is the static description of the values a graph edge may carry.
//
// It is exact for values known when the graph is built, and partial for dynamic ones: the kind
// may be KindAny, a tensor shape may have unknown dimensions or rank, a sequence an unknown
// Length (-1) and no Elements.
type Signature struct {
	Kind Kind

	// Shape of tensors and numeric scalars (rank 0). DType is InvalidDType when unknown or not
	// applicable.
	Shape shapes.Shape

	// Length of sequences and mappings, -1 if unknown.
	Length int

	// Elements of a sequence, only set if Length is known.
	Elements []Signature

	// Tuple distinguishes tuples from lists.
	Tuple bool

	// TypeName is the host type name, when known.
	TypeName string

	// Dynamic is set when the value is only known at run time.
	Dynamic bool
}

// Unknown is the signature of a value about which nothing is known.
func Unknown() Signature {
	return Signature{Kind: KindAny, Shape: shapes.UnknownRank(dtypes.InvalidDType), Length: -1, Dynamic: true}
}

// TensorSignature returns the signature of a tensor of the given (possibly partially known) shape.
func TensorSignature(shape shapes.Shape) Signature {
	return Signature{Kind: KindTensor, Shape: shape.Clone(), Length: -1, TypeName: "Tensor", Dynamic: shape.IsDynamic()}
}

// ScalarSignature returns the signature of a host scalar of the given type name ("int",
// "float", "bool", "str" or "NoneType").
func ScalarSignature(typeName string) Signature {
	sig := Signature{Kind: KindScalar, Shape: shapes.Invalid(), Length: -1, TypeName: typeName}
	switch typeName {
	case "int":
		sig.Shape = shapes.Scalar(dtypes.Int64)
	case "float":
		sig.Shape = shapes.Scalar(dtypes.Float64)
	case "bool":
		sig.Shape = shapes.Scalar(dtypes.Bool)
	}
	return sig
}

// SequenceSignature returns the signature of a tuple or list with the given elements.
func SequenceSignature(tuple bool, elems ...Signature) Signature {
	sig := Signature{Kind: KindSequence, Shape: shapes.Invalid(), Length: len(elems), Elements: slices.Clone(elems), Tuple: tuple}
	sig.TypeName = "list"
	if tuple {
		sig.TypeName = "tuple"
	}
	for _, e := range elems {
		if e.Dynamic {
			sig.Dynamic = true
		}
	}
	return sig
}

// SignatureOf returns the signature of a concrete value.
//
// It is exact, except for mutable values: those keep only their kind, dtype and, unless they
// have a dynamic length, their length.
func SignatureOf(v *Value) Signature {
	sig := Signature{Kind: v.kind, Shape: shapes.Invalid(), Length: -1, TypeName: v.TypeName(), Dynamic: v.dynamic}
	switch v.kind {
	case KindScalar:
		if dtype := scalarDType(v.scalar); dtype != dtypes.InvalidDType {
			sig.Shape = shapes.Scalar(dtype)
		}
	case KindTensor:
		sig.Shape = v.tensor.Shape().Clone()
		if v.mutable {
			sig.Shape = shapes.UnknownRank(v.tensor.DType())
		}
	case KindSequence:
		sig.Tuple = v.tuple
		sig.Length = len(v.elems)
		if v.mutable {
			if v.dynamicLength {
				sig.Length = -1
			}
			break
		}
		sig.Elements = make([]Signature, len(v.elems))
		for i, e := range v.elems {
			sig.Elements[i] = SignatureOf(e)
			if sig.Elements[i].Dynamic {
				sig.Dynamic = true
			}
		}
	case KindMapping:
		sig.Length = v.mapping.Len()
		if v.mutable && v.dynamicLength {
			sig.Length = -1
		}
	}
	return sig
}

func scalarDType(scalar any) dtypes.DType {
	switch scalar.(type) {
	case bool:
		return dtypes.Bool
	case int64:
		return dtypes.Int64
	case float64:
		return dtypes.Float64
	}
	return dtypes.InvalidDType
}

// DType of tensors and numeric scalars, InvalidDType otherwise or if unknown.
func (s Signature) DType() dtypes.DType { return s.Shape.DType }

// IsKnown returns whether the signature describes exactly one kind of value with a fully known
// structure.
func (s Signature) IsKnown() bool {
	if s.Dynamic || s.Kind == KindAny {
		return false
	}
	switch s.Kind {
	case KindTensor:
		return s.Shape.IsFullyKnown()
	case KindSequence:
		if s.Length < 0 || len(s.Elements) != s.Length {
			return false
		}
		for _, e := range s.Elements {
			if !e.IsKnown() {
				return false
			}
		}
	case KindMapping:
		return s.Length >= 0
	}
	return true
}

// AsDynamic returns the signature with its run-time varying parts erased: the kind, dtype and
// type name are kept, the tensor rank and the sequence length and elements are not.
func (s Signature) AsDynamic() Signature {
	out := Signature{Kind: s.Kind, Shape: shapes.Invalid(), Length: -1, Tuple: s.Tuple, TypeName: s.TypeName, Dynamic: true}
	switch s.Kind {
	case KindTensor, KindAny:
		out.Shape = shapes.UnknownRank(s.Shape.DType)
	case KindScalar:
		out.Shape = s.Shape.Clone()
	}
	return out
}

// Equal compares two signatures exactly.
func (s Signature) Equal(other Signature) bool {
	if s.Kind != other.Kind || s.Length != other.Length || s.Tuple != other.Tuple ||
		s.TypeName != other.TypeName || s.Dynamic != other.Dynamic || !s.Shape.Equal(other.Shape) {
		return false
	}
	return slices.EqualFunc(s.Elements, other.Elements, Signature.Equal)
}

// Accepts reports whether a concrete value with signature concrete satisfies s. Unknown parts
// of s act as wildcards.
func (s Signature) Accepts(concrete Signature) bool {
	if s.Kind == KindAny {
		return true
	}
	if s.Kind != concrete.Kind {
		return false
	}
	switch s.Kind {
	case KindTensor, KindScalar:
		if s.Shape.DType != dtypes.InvalidDType && s.Shape.DType != concrete.Shape.DType {
			return false
		}
		return s.Kind == KindScalar || s.Shape.Compatible(concrete.Shape)
	case KindSequence:
		if s.Length >= 0 && s.Length != concrete.Length {
			return false
		}
		if len(s.Elements) == len(concrete.Elements) {
			for i, e := range s.Elements {
				if !e.Accepts(concrete.Elements[i]) {
					return false
				}
			}
		}
	case KindMapping:
		return s.Length < 0 || s.Length == concrete.Length
	case KindOpaque:
		return s.TypeName == "" || s.TypeName == concrete.TypeName
	}
	return true
}

// String renders the signature compactly, e.g. "Tensor(Float32)[2 ?]", "tuple(int, str)",
// "list[...]". Dynamic signatures are prefixed with "~".
func (s Signature) String() string {
	var b strings.Builder
	if s.Dynamic {
		b.WriteByte('~')
	}
	switch s.Kind {
	case KindAny:
		b.WriteString("any")
		if s.Shape.DType != dtypes.InvalidDType {
			fmt.Fprintf(&b, "(%s)", s.Shape.DType)
		}
	case KindScalar:
		b.WriteString(s.TypeName)
	case KindTensor:
		name := s.TypeName
		if name == "" {
			name = "Tensor"
		}
		b.WriteString(name)
		b.WriteString(s.Shape.String())
	case KindSequence:
		open, closing := "[", "]"
		name := "list"
		if s.Tuple {
			open, closing, name = "(", ")", "tuple"
		}
		b.WriteString(name)
		b.WriteString(open)
		switch {
		case s.Length < 0:
			b.WriteString("...")
		case len(s.Elements) != s.Length:
			fmt.Fprintf(&b, "len=%d", s.Length)
		default:
			for i, e := range s.Elements {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(e.String())
			}
		}
		b.WriteString(closing)
	case KindMapping:
		if s.Length < 0 {
			b.WriteString("dict{...}")
		} else {
			fmt.Fprintf(&b, "dict{len=%d}", s.Length)
		}
	case KindOpaque:
		b.WriteString("object:")
		b.WriteString(s.TypeName)
	default:
		b.WriteString(s.Kind.String())
	}
	return b.String()
}
