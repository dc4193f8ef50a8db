// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/shapes"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"
)

type realNumber interface {
	constraints.Integer | constraints.Float
}

func numbersToFloat64s[T realNumber](flat []T) []float64 {
	out := make([]float64, len(flat))
	for ii, v := range flat {
		out[ii] = float64(v)
	}
	return out
}

func numbersToInt64s[T realNumber](flat []T) []int64 {
	out := make([]int64, len(flat))
	for ii, v := range flat {
		out[ii] = int64(v)
	}
	return out
}

func convertNumbers[From, To realNumber](flat []From) []To {
	out := make([]To, len(flat))
	for ii, v := range flat {
		out[ii] = To(v)
	}
	return out
}

// ToFloat64s returns a copy of the tensor elements converted to float64.
// Booleans become 0 or 1.
func ToFloat64s(t *Tensor) []float64 {
	switch flat := t.flat.(type) {
	case []bool:
		out := make([]float64, len(flat))
		for ii, v := range flat {
			if v {
				out[ii] = 1
			}
		}
		return out
	case []float16.Float16:
		out := make([]float64, len(flat))
		for ii, v := range flat {
			out[ii] = float64(v.Float32())
		}
		return out
	case []float32:
		return numbersToFloat64s(flat)
	case []float64:
		return numbersToFloat64s(flat)
	case []int8:
		return numbersToFloat64s(flat)
	case []int16:
		return numbersToFloat64s(flat)
	case []int32:
		return numbersToFloat64s(flat)
	case []int64:
		return numbersToFloat64s(flat)
	case []uint8:
		return numbersToFloat64s(flat)
	case []uint16:
		return numbersToFloat64s(flat)
	case []uint32:
		return numbersToFloat64s(flat)
	case []uint64:
		return numbersToFloat64s(flat)
	}
	exceptions.Panicf("tensors.ToFloat64s: unsupported dtype %s", t.DType())
	return nil
}

// ToInt64s returns a copy of the tensor elements converted to int64 (floats are truncated).
func ToInt64s(t *Tensor) []int64 {
	switch flat := t.flat.(type) {
	case []int64:
		return numbersToInt64s(flat)
	case []int32:
		return numbersToInt64s(flat)
	case []int16:
		return numbersToInt64s(flat)
	case []int8:
		return numbersToInt64s(flat)
	case []uint8:
		return numbersToInt64s(flat)
	case []uint16:
		return numbersToInt64s(flat)
	case []uint32:
		return numbersToInt64s(flat)
	case []uint64:
		return numbersToInt64s(flat)
	}
	floats := ToFloat64s(t)
	out := make([]int64, len(floats))
	for ii, v := range floats {
		out[ii] = int64(v)
	}
	return out
}

// ToBools returns a copy of the tensor elements converted to bool (non-zero is true).
func ToBools(t *Tensor) []bool {
	if flat, ok := t.flat.([]bool); ok {
		out := make([]bool, len(flat))
		copy(out, flat)
		return out
	}
	floats := ToFloat64s(t)
	out := make([]bool, len(floats))
	for ii, v := range floats {
		out[ii] = v != 0
	}
	return out
}

// FromFloat64s creates a tensor of the given dtype and dimensions, converting the values.
func FromFloat64s(dtype dtypes.DType, dimensions []int, values []float64) *Tensor {
	shape := shapes.Make(dtype, dimensions...)
	if shape.Size() != len(values) {
		exceptions.Panicf("tensors.FromFloat64s(%s): got %d values", shape, len(values))
	}
	var flat any
	switch dtype {
	case dtypes.Bool:
		bools := make([]bool, len(values))
		for ii, v := range values {
			bools[ii] = v != 0
		}
		flat = bools
	case dtypes.Float16:
		halfs := make([]float16.Float16, len(values))
		for ii, v := range values {
			halfs[ii] = float16.Fromfloat32(float32(v))
		}
		flat = halfs
	case dtypes.Float32:
		flat = convertNumbers[float64, float32](values)
	case dtypes.Float64:
		flat = convertNumbers[float64, float64](values)
	case dtypes.Int8:
		flat = convertNumbers[float64, int8](values)
	case dtypes.Int16:
		flat = convertNumbers[float64, int16](values)
	case dtypes.Int32:
		flat = convertNumbers[float64, int32](values)
	case dtypes.Int64:
		flat = convertNumbers[float64, int64](values)
	case dtypes.Uint8:
		flat = convertNumbers[float64, uint8](values)
	case dtypes.Uint16:
		flat = convertNumbers[float64, uint16](values)
	case dtypes.Uint32:
		flat = convertNumbers[float64, uint32](values)
	case dtypes.Uint64:
		flat = convertNumbers[float64, uint64](values)
	default:
		exceptions.Panicf("tensors.FromFloat64s: unsupported dtype %s", dtype)
	}
	return &Tensor{shape: shape, flat: flat}
}

// FromInt64s creates a tensor of the given dtype and dimensions, converting the values.
// It preserves the full int64 range for integer dtypes.
func FromInt64s(dtype dtypes.DType, dimensions []int, values []int64) *Tensor {
	shape := shapes.Make(dtype, dimensions...)
	if shape.Size() != len(values) {
		exceptions.Panicf("tensors.FromInt64s(%s): got %d values", shape, len(values))
	}
	var flat any
	switch dtype {
	case dtypes.Int8:
		flat = convertNumbers[int64, int8](values)
	case dtypes.Int16:
		flat = convertNumbers[int64, int16](values)
	case dtypes.Int32:
		flat = convertNumbers[int64, int32](values)
	case dtypes.Int64:
		flat = convertNumbers[int64, int64](values)
	case dtypes.Uint8:
		flat = convertNumbers[int64, uint8](values)
	case dtypes.Uint16:
		flat = convertNumbers[int64, uint16](values)
	case dtypes.Uint32:
		flat = convertNumbers[int64, uint32](values)
	case dtypes.Uint64:
		flat = convertNumbers[int64, uint64](values)
	default:
		return FromFloat64s(dtype, dimensions, convertNumbers[int64, float64](values))
	}
	return &Tensor{shape: shape, flat: flat}
}

// FromBools creates a Bool tensor with the given dimensions.
func FromBools(dimensions []int, values []bool) *Tensor {
	return FromFlatDataAndDimensions(values, dimensions...)
}

// ConvertDType returns a copy of the tensor converted to dtype.
func (t *Tensor) ConvertDType(dtype dtypes.DType) *Tensor {
	if t.DType() == dtype {
		return t.Clone()
	}
	if dtype == dtypes.Bool {
		return FromBools(t.shape.Dimensions, ToBools(t))
	}
	if !t.DType().IsFloat() && t.DType() != dtypes.Bool && !dtype.IsFloat() {
		return FromInt64s(dtype, t.shape.Dimensions, ToInt64s(t))
	}
	return FromFloat64s(dtype, t.shape.Dimensions, ToFloat64s(t))
}

// HasNonFinite returns whether any element is NaN or ±Inf.
func (t *Tensor) HasNonFinite() bool {
	if !t.DType().IsFloat() {
		return false
	}
	for _, v := range ToFloat64s(t) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
