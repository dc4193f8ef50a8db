// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements Tensor, a local, flat, row-major (C order) multidimensional array.
//
// Tensors are treated as immutable once built: kernels and interpreted host expressions always
// return new tensors. Use FromShape plus MutableFlatData (or one of the From* constructors) to
// build one.
package tensors

import (
	"math"
	"reflect"
	"slices"
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/shapes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Supported lists the Go types that can be stored in a Tensor.
type Supported interface {
	bool | float16.Float16 | float32 | float64 | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64
}

// Tensor is a local multidimensional array with a fully known shape.
type Tensor struct {
	shape shapes.Shape
	flat  any // []T, where T is the Go type for shape.DType.
}

// DTypeOf returns the dtype for the generic type T.
func DTypeOf[T Supported]() dtypes.DType {
	var zero T
	switch any(zero).(type) {
	case bool:
		return dtypes.Bool
	case float16.Float16:
		return dtypes.Float16
	case float32:
		return dtypes.Float32
	case float64:
		return dtypes.Float64
	case int8:
		return dtypes.Int8
	case int16:
		return dtypes.Int16
	case int32:
		return dtypes.Int32
	case int64:
		return dtypes.Int64
	case uint8:
		return dtypes.Uint8
	case uint16:
		return dtypes.Uint16
	case uint32:
		return dtypes.Uint32
	case uint64:
		return dtypes.Uint64
	}
	return dtypes.InvalidDType
}

// goTypeFor returns the Go element type used to store the dtype.
func goTypeFor(dtype dtypes.DType) reflect.Type {
	switch dtype {
	case dtypes.Bool:
		return reflect.TypeOf(false)
	case dtypes.Float16:
		return reflect.TypeOf(float16.Float16(0))
	case dtypes.Float32:
		return reflect.TypeOf(float32(0))
	case dtypes.Float64:
		return reflect.TypeOf(float64(0))
	case dtypes.Int8:
		return reflect.TypeOf(int8(0))
	case dtypes.Int16:
		return reflect.TypeOf(int16(0))
	case dtypes.Int32:
		return reflect.TypeOf(int32(0))
	case dtypes.Int64:
		return reflect.TypeOf(int64(0))
	case dtypes.Uint8:
		return reflect.TypeOf(uint8(0))
	case dtypes.Uint16:
		return reflect.TypeOf(uint16(0))
	case dtypes.Uint32:
		return reflect.TypeOf(uint32(0))
	case dtypes.Uint64:
		return reflect.TypeOf(uint64(0))
	}
	return nil
}

// FromShape returns a zero-initialized tensor with the given shape.
// It panics if the shape is not fully known or the dtype is not supported.
func FromShape(shape shapes.Shape) *Tensor {
	if !shape.IsFullyKnown() {
		exceptions.Panicf("tensors.FromShape(%s): shape must be fully known", shape)
	}
	goType := goTypeFor(shape.DType)
	if goType == nil {
		exceptions.Panicf("tensors.FromShape(%s): dtype not supported", shape)
	}
	size := shape.Size()
	return &Tensor{
		shape: shape.Clone(),
		flat:  reflect.MakeSlice(reflect.SliceOf(goType), size, size).Interface(),
	}
}

// FromScalar creates a scalar tensor.
func FromScalar[T Supported](value T) *Tensor {
	return FromFlatDataAndDimensions([]T{value})
}

// FromScalarAndDimensions creates a tensor with the given dimensions filled with value.
func FromScalarAndDimensions[T Supported](value T, dimensions ...int) *Tensor {
	t := FromShape(shapes.Make(DTypeOf[T](), dimensions...))
	flat := t.flat.([]T)
	for ii := range flat {
		flat[ii] = value
	}
	return t
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, with a copy of data.
// It panics if the size of data is wrong for the shape.
func FromFlatDataAndDimensions[T Supported](data []T, dimensions ...int) *Tensor {
	shape := shapes.Make(DTypeOf[T](), dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("FromFlatDataAndDimensions(%s): data size is %d, but dimensions size is %d",
			shape, len(data), shape.Size())
	}
	return &Tensor{shape: shape, flat: slices.Clone(data)}
}

// FromFlatAny creates a tensor from a flat slice ([]T, T matching dtype) given as any.
// The slice is owned by the tensor afterwards.
func FromFlatAny(shape shapes.Shape, flat any) (*Tensor, error) {
	goType := goTypeFor(shape.DType)
	if goType == nil || reflect.TypeOf(flat) != reflect.SliceOf(goType) {
		return nil, errors.Errorf("tensors.FromFlatAny(%s): flat data of type %T doesn't match", shape, flat)
	}
	if !shape.IsFullyKnown() || reflect.ValueOf(flat).Len() != shape.Size() {
		return nil, errors.Errorf("tensors.FromFlatAny(%s): flat data length %d doesn't match", shape, reflect.ValueOf(flat).Len())
	}
	return &Tensor{shape: shape.Clone(), flat: flat}, nil
}

// FromAnyValue creates a tensor from a Go scalar or a regular multidimensional slice.
// If value is already a *Tensor it is returned as is. Go `int` values are stored as Int64.
func FromAnyValue(value any) (*Tensor, error) {
	if t, ok := value.(*Tensor); ok {
		return t, nil
	}
	if value == nil {
		return nil, errors.New("cannot create tensor from nil")
	}
	value = normalizeInts(reflect.ValueOf(value)).Interface()
	shape, err := shapes.FromAnyValue(value)
	if err != nil {
		return nil, errors.WithMessagef(err, "cannot create tensor from %T", value)
	}
	t := FromShape(shape)
	flatV := reflect.ValueOf(t.flat)
	if shape.IsScalar() {
		flatV.Index(0).Set(reflect.ValueOf(value))
		return t, nil
	}
	pos := 0
	copyRecursively(flatV, reflect.ValueOf(value), &pos)
	return t, nil
}

// normalizeInts converts (nested) slices of `int` to the same structure with int64.
func normalizeInts(v reflect.Value) reflect.Value {
	base := v.Type()
	depth := 0
	for base.Kind() == reflect.Slice {
		base = base.Elem()
		depth++
	}
	if base.Kind() != reflect.Int {
		return v
	}
	if depth == 0 {
		return reflect.ValueOf(v.Int())
	}
	var convert func(v reflect.Value, depth int) reflect.Value
	convert = func(v reflect.Value, depth int) reflect.Value {
		elemType := reflect.TypeOf(int64(0))
		for range depth - 1 {
			elemType = reflect.SliceOf(elemType)
		}
		out := reflect.MakeSlice(reflect.SliceOf(elemType), v.Len(), v.Len())
		for ii := range v.Len() {
			if depth == 1 {
				out.Index(ii).SetInt(v.Index(ii).Int())
			} else {
				out.Index(ii).Set(convert(v.Index(ii), depth-1))
			}
		}
		return out
	}
	return convert(v, depth)
}

func copyRecursively(flatV, mdSlice reflect.Value, pos *int) {
	if mdSlice.Kind() != reflect.Slice {
		flatV.Index(*pos).Set(mdSlice)
		*pos++
		return
	}
	for ii := range mdSlice.Len() {
		copyRecursively(flatV, mdSlice.Index(ii), pos)
	}
}

// Shape returns the shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType returns the dtype of the tensor.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank returns the number of axes.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size returns the number of elements.
func (t *Tensor) Size() int { return t.shape.Size() }

// Dimensions returns a copy of the dimensions.
func (t *Tensor) Dimensions() []int { return slices.Clone(t.shape.Dimensions) }

// Flat returns the underlying flat slice ([]T). It must not be modified.
func (t *Tensor) Flat() any { return t.flat }

// MutableFlatData calls accessFn with the underlying flat slice, for tensors under construction.
func (t *Tensor) MutableFlatData(accessFn func(flat any)) { accessFn(t.flat) }

// Flat returns the typed flat data. It panics if T doesn't match the dtype.
func Flat[T Supported](t *Tensor) []T {
	flat, ok := t.flat.([]T)
	if !ok {
		exceptions.Panicf("tensors.Flat[%T]: tensor has dtype %s", *new(T), t.shape.DType)
	}
	return flat
}

// ToScalar returns the only element of a tensor of size 1.
func ToScalar[T Supported](t *Tensor) T {
	flat := Flat[T](t)
	if len(flat) != 1 {
		exceptions.Panicf("tensors.ToScalar: tensor %s is not a scalar", t.shape)
	}
	return flat[0]
}

// ConstBytes calls accessFn with the raw bytes of the flat data, which must not be modified.
func (t *Tensor) ConstBytes(accessFn func(data []byte)) {
	accessFn(t.bytes())
}

// MutableBytes calls accessFn with the raw bytes of the flat data, for tensors under construction.
func (t *Tensor) MutableBytes(accessFn func(data []byte)) {
	accessFn(t.bytes())
}

func (t *Tensor) bytes() []byte {
	flatV := reflect.ValueOf(t.flat)
	if flatV.Len() == 0 {
		return nil
	}
	elemSize := int(flatV.Type().Elem().Size())
	return unsafe.Slice((*byte)(flatV.UnsafePointer()), flatV.Len()*elemSize)
}

// Value returns a multidimensional Go slice (or a scalar for rank 0) with a copy of the data.
func (t *Tensor) Value() any {
	flatV := reflect.ValueOf(t.flat)
	if t.shape.IsScalar() {
		return flatV.Index(0).Interface()
	}
	var build func(dims []int, offset int) reflect.Value
	build = func(dims []int, offset int) reflect.Value {
		sliceType := flatV.Type()
		for range len(dims) - 1 {
			sliceType = reflect.SliceOf(sliceType)
		}
		out := reflect.MakeSlice(sliceType, dims[0], dims[0])
		if len(dims) == 1 {
			reflect.Copy(out, flatV.Slice(offset, offset+dims[0]))
			return out
		}
		stride := 1
		for _, d := range dims[1:] {
			stride *= d
		}
		for ii := range dims[0] {
			out.Index(ii).Set(build(dims[1:], offset+ii*stride))
		}
		return out
	}
	return build(t.shape.Dimensions, 0).Interface()
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	flatV := reflect.ValueOf(t.flat)
	clone := reflect.MakeSlice(flatV.Type(), flatV.Len(), flatV.Len())
	reflect.Copy(clone, flatV)
	return &Tensor{shape: t.shape.Clone(), flat: clone.Interface()}
}

// Reshape returns a tensor sharing no data with t, with the same elements and new dimensions.
func (t *Tensor) Reshape(dimensions ...int) (*Tensor, error) {
	shape := shapes.Make(t.DType(), dimensions...)
	if shape.Size() != t.Size() {
		return nil, errors.Errorf("cannot reshape %s to %v", t.shape, dimensions)
	}
	clone := t.Clone()
	clone.shape = shape
	return clone, nil
}

// Equal checks whether the tensors have the same shape and elements.
func (t *Tensor) Equal(other *Tensor) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil || !t.shape.Equal(other.shape) {
		return false
	}
	v0, v1 := reflect.ValueOf(t.flat), reflect.ValueOf(other.flat)
	for ii := range v0.Len() {
		if !v0.Index(ii).Equal(v1.Index(ii)) {
			return false
		}
	}
	return true
}

// InDelta checks whether the tensors have the same shape and every element differs by at most delta.
func (t *Tensor) InDelta(other *Tensor, delta float64) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil || !t.shape.Equal(other.shape) {
		return false
	}
	f0, f1 := ToFloat64s(t), ToFloat64s(other)
	for ii := range f0 {
		diff := f0[ii] - f1[ii]
		if math.IsNaN(f0[ii]) != math.IsNaN(f1[ii]) || diff > delta || diff < -delta {
			return false
		}
	}
	return true
}
