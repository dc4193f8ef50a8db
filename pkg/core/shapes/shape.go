// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape, the dtype and dimensions of a tensor or of the expected output
// of a graph node.
//
// Unlike fully compiled frameworks, a Shape here may be only partially known: individual
// dimensions may be DimUnknown, and the rank itself may be unknown (see UnknownRank).
// Those are produced by graph nodes whose output is only discovered at run time, for instance
// an interpreted host expression or an op with data-dependent output (NonZero).
//
// Example: the multi-dimensional array `[][]int32{{0, 1, 2}, {3, 4, 5}}` has shape
// `(Int32)[2 3]`, created with `shapes.Make(dtypes.Int32, 2, 3)`. A batch of unknown size
// of 3-vectors is `shapes.MakeDynamic(dtypes.Float32, shapes.DimUnknown, 3)`, printed as
// `(Float32)[? 3]`.
package shapes

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// DimUnknown marks an axis whose dimension is only known at run time.
const DimUnknown = -1

// Shape of a tensor or of the expected value of a graph node.
//
// Use Make, MakeDynamic or UnknownRank to create one.
type Shape struct {
	DType      dtypes.DType
	Dimensions []int

	// RankUnknown is set when not even the number of axes is known. Dimensions is then nil.
	RankUnknown bool
}

// Make returns a fully known Shape. Dimensions must be >= 0.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{DType: dtype, Dimensions: slices.Clone(dimensions)}
	for _, dim := range dimensions {
		if dim < 0 {
			exceptions.Panicf("shapes.Make(%s): cannot create a shape with an axis with dimension < 0, use MakeDynamic for unknown dimensions", s)
		}
	}
	return s
}

// MakeDynamic returns a Shape where some dimensions may be DimUnknown.
func MakeDynamic(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{DType: dtype, Dimensions: slices.Clone(dimensions)}
	for _, dim := range dimensions {
		if dim < DimUnknown {
			exceptions.Panicf("shapes.MakeDynamic(%s): invalid dimension %d", s, dim)
		}
	}
	return s
}

// UnknownRank returns a shape with the given dtype (possibly dtypes.InvalidDType) and no
// information about its axes.
func UnknownRank(dtype dtypes.DType) Shape {
	return Shape{DType: dtype, RankUnknown: true}
}

// Scalar returns the shape of a scalar of the given dtype.
func Scalar(dtype dtypes.DType) Shape {
	return Shape{DType: dtype}
}

// Invalid returns an invalid shape: Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// Ok returns whether the dtype is set.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Rank returns the number of axes, or -1 if the rank is unknown.
func (s Shape) Rank() int {
	if s.RankUnknown {
		return -1
	}
	return len(s.Dimensions)
}

// IsScalar returns whether the shape is known to have rank 0.
func (s Shape) IsScalar() bool { return !s.RankUnknown && len(s.Dimensions) == 0 }

// Dim returns the dimension of the given axis, negative axes count from the end.
// It may return DimUnknown. It panics for an out-of-bound axis or if the rank is unknown.
func (s Shape) Dim(axis int) int {
	if s.RankUnknown {
		exceptions.Panicf("Shape.Dim(%d) on shape %s with unknown rank", axis, s)
	}
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// IsFullyKnown returns whether the rank and all dimensions are known.
func (s Shape) IsFullyKnown() bool {
	if s.RankUnknown {
		return false
	}
	return !slices.Contains(s.Dimensions, DimUnknown)
}

// IsDynamic is the opposite of IsFullyKnown.
func (s Shape) IsDynamic() bool { return !s.IsFullyKnown() }

// Size returns the number of elements, or -1 if it is not known.
func (s Shape) Size() int {
	if !s.IsFullyKnown() {
		return -1
	}
	size := 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return size
}

// String implements fmt.Stringer, e.g.: "(Float32)[2 ?]" or "(Int32)[...]".
func (s Shape) String() string {
	if s.RankUnknown {
		return fmt.Sprintf("(%s)[...]", s.DType)
	}
	if len(s.Dimensions) == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	parts := make([]string, len(s.Dimensions))
	for ii, dim := range s.Dimensions {
		if dim == DimUnknown {
			parts[ii] = "?"
		} else {
			parts[ii] = fmt.Sprintf("%d", dim)
		}
	}
	return fmt.Sprintf("(%s)[%s]", s.DType, strings.Join(parts, " "))
}

// Equal compares dtype, rank knowledge and dimensions exactly (DimUnknown only equals DimUnknown).
func (s Shape) Equal(s2 Shape) bool {
	if s.DType != s2.DType || s.RankUnknown != s2.RankUnknown {
		return false
	}
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// EqualDimensions compares only the dimensions; dtypes can differ.
func (s Shape) EqualDimensions(s2 Shape) bool {
	return s.RankUnknown == s2.RankUnknown && slices.Equal(s.Dimensions, s2.Dimensions)
}

// Compatible reports whether a value of shape s2 could satisfy the (possibly partially known) shape s.
// Unknown rank, unknown dimensions and InvalidDType act as wildcards.
func (s Shape) Compatible(s2 Shape) bool {
	if s.DType != dtypes.InvalidDType && s2.DType != dtypes.InvalidDType && s.DType != s2.DType {
		return false
	}
	if s.RankUnknown || s2.RankUnknown {
		return true
	}
	if len(s.Dimensions) != len(s2.Dimensions) {
		return false
	}
	for ii, dim := range s.Dimensions {
		dim2 := s2.Dimensions[ii]
		if dim != DimUnknown && dim2 != DimUnknown && dim != dim2 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (s Shape) Clone() Shape {
	return Shape{DType: s.DType, Dimensions: slices.Clone(s.Dimensions), RankUnknown: s.RankUnknown}
}

// WithDType returns a copy of the shape with the dtype replaced.
func (s Shape) WithDType(dtype dtypes.DType) Shape {
	s2 := s.Clone()
	s2.DType = dtype
	return s2
}

// ConcatenateDimensions of two shapes, the result takes the dtype of s1.
// If either rank is unknown the result has unknown rank.
func ConcatenateDimensions(s1, s2 Shape) Shape {
	if s1.RankUnknown || s2.RankUnknown {
		return UnknownRank(s1.DType)
	}
	dims := make([]int, 0, len(s1.Dimensions)+len(s2.Dimensions))
	dims = append(dims, s1.Dimensions...)
	dims = append(dims, s2.Dimensions...)
	return Shape{DType: s1.DType, Dimensions: dims}
}
