// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"reflect"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/shapes"
	"github.com/gomlx/jitfallback/pkg/core/tensors"
)

// rowSize returns the number of elements of each sub-tensor along axis 0.
func rowSize(t *tensors.Tensor) int {
	size := 1
	for _, d := range t.Shape().Dimensions[1:] {
		size *= d
	}
	return size
}

// NormalizeIndex converts a possibly negative index into [0, length), or returns an IndexError.
func NormalizeIndex(index, length int, what string) (int, error) {
	if index < 0 {
		index += length
	}
	if index < 0 || index >= length {
		return 0, indexErrorf("%s index out of range", what)
	}
	return index, nil
}

// GetItem returns t[index] along axis 0.
func GetItem(t *tensors.Tensor, index int) (*tensors.Tensor, error) {
	if t.Rank() == 0 {
		return nil, indexErrorf("invalid index of a 0-dim tensor")
	}
	dim := t.Shape().Dimensions[0]
	pos, err := NormalizeIndex(index, dim, "tensor")
	if err != nil {
		return nil, indexErrorf("index %d is out of bounds for axis 0 with size %d", index, dim)
	}
	index = pos
	row := rowSize(t)
	flat := reflect.ValueOf(t.Flat())
	sub := reflect.MakeSlice(flat.Type(), row, row)
	reflect.Copy(sub, flat.Slice(index*row, (index+1)*row))
	return tensors.FromFlatAny(shapes.Make(t.DType(), t.Shape().Dimensions[1:]...), sub.Interface())
}

// SliceIndices resolves Python slice semantics for a sequence of the given length.
// Nil bounds take the defaults. It returns the selected indices.
func SliceIndices(length int, start, stop, step *int) ([]int, error) {
	st := 1
	if step != nil {
		st = *step
	}
	if st == 0 {
		return nil, valueErrorf("slice step cannot be zero")
	}
	clamp := func(v *int, def int, lower, upper int) int {
		if v == nil {
			return def
		}
		x := *v
		if x < 0 {
			x += length
		}
		return min(max(x, lower), upper)
	}
	var indices []int
	if st > 0 {
		begin, end := clamp(start, 0, 0, length), clamp(stop, length, 0, length)
		for ii := begin; ii < end; ii += st {
			indices = append(indices, ii)
		}
	} else {
		begin, end := clamp(start, length-1, -1, length-1), clamp(stop, -1, -1, length-1)
		if stop == nil {
			end = -1
		}
		for ii := begin; ii > end; ii += st {
			indices = append(indices, ii)
		}
	}
	return indices, nil
}

// Take gathers the given rows along axis 0.
func Take(t *tensors.Tensor, rows []int) (*tensors.Tensor, error) {
	if t.Rank() == 0 {
		return nil, indexErrorf("invalid index of a 0-dim tensor")
	}
	row := rowSize(t)
	flat := reflect.ValueOf(t.Flat())
	out := reflect.MakeSlice(flat.Type(), len(rows)*row, len(rows)*row)
	for ii, r := range rows {
		reflect.Copy(out.Slice(ii*row, (ii+1)*row), flat.Slice(r*row, (r+1)*row))
	}
	dims := slices.Clone(t.Shape().Dimensions)
	dims[0] = len(rows)
	return tensors.FromFlatAny(shapes.Make(t.DType(), dims...), out.Interface())
}

// SetItem returns a copy of t with t[index] (axis 0) replaced by value, broadcast to the row shape.
func SetItem(t, value *tensors.Tensor, index int) (*tensors.Tensor, error) {
	if t.Rank() == 0 {
		return nil, indexErrorf("invalid index of a 0-dim tensor")
	}
	dim := t.Shape().Dimensions[0]
	pos, err := NormalizeIndex(index, dim, "tensor")
	if err != nil {
		return nil, indexErrorf("index %d is out of bounds for axis 0 with size %d", index, dim)
	}
	index = pos
	rowDims := t.Shape().Dimensions[1:]
	if outDims, err := BroadcastDimensions(rowDims, value.Shape().Dimensions); err != nil || !slices.Equal(outDims, rowDims) {
		return nil, valueErrorf("could not broadcast input array from shape %s into shape %s",
			pyShape(value.Shape().Dimensions), pyShape(rowDims))
	}
	value = value.ConvertDType(t.DType())
	rowValues := reflect.ValueOf(broadcastAny(value.Flat(), value.Shape().Dimensions, rowDims))
	out := t.Clone()
	row := rowSize(t)
	out.MutableFlatData(func(flat any) {
		reflect.Copy(reflect.ValueOf(flat).Slice(index*row, (index+1)*row), rowValues)
	})
	return out, nil
}

// broadcastAny expands a flat slice ([]T given as any) to outDims.
func broadcastAny(flat any, srcDims, outDims []int) any {
	src := reflect.ValueOf(flat)
	size := 1
	for _, d := range outDims {
		size *= d
	}
	positions := make([]int, src.Len())
	for ii := range positions {
		positions[ii] = ii
	}
	mapping := broadcast(positions, srcDims, outDims)
	out := reflect.MakeSlice(src.Type(), size, size)
	for ii, pos := range mapping {
		out.Index(ii).Set(src.Index(pos))
	}
	return out.Interface()
}

// Fill returns a tensor with the given dimensions filled with the scalar value.
func Fill(dims []int, value *tensors.Tensor) (*tensors.Tensor, error) {
	if value.Size() != 1 {
		return nil, valueErrorf("fill value must be a scalar, got shape %s", pyShape(value.Shape().Dimensions))
	}
	for _, d := range dims {
		if d < 0 {
			return nil, valueErrorf("negative dimensions are not allowed: %s", pyShape(dims))
		}
	}
	shape := shapes.Make(value.DType(), dims...)
	flat := broadcastAny(value.Flat(), nil, dims)
	return tensors.FromFlatAny(shape, flat)
}

// Concat concatenates tensors along the axis. All must have the same dtype and rank.
func Concat(inputs []*tensors.Tensor, axis int) (*tensors.Tensor, error) {
	if len(inputs) == 0 {
		return nil, valueErrorf("need at least one array to concatenate")
	}
	first := inputs[0]
	rank := first.Rank()
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return nil, valueErrorf("axis %d is out of bounds for array of dimension %d", axis, rank)
	}
	outDims := slices.Clone(first.Shape().Dimensions)
	outDims[axis] = 0
	for _, t := range inputs {
		if t.DType() != first.DType() || t.Rank() != rank {
			return nil, valueErrorf("all the input arrays must have same dtype and number of dimensions")
		}
		for ii, d := range t.Shape().Dimensions {
			if ii != axis && d != first.Shape().Dimensions[ii] {
				return nil, valueErrorf("all the input array dimensions except for the concatenation axis must match exactly")
			}
		}
		outDims[axis] += t.Shape().Dimensions[axis]
	}
	outer := 1
	for _, d := range outDims[:axis] {
		outer *= d
	}
	out := tensors.FromShape(shapes.Make(first.DType(), outDims...))
	out.MutableFlatData(func(flat any) {
		dst := reflect.ValueOf(flat)
		pos := 0
		for o := range outer {
			for _, t := range inputs {
				chunk := t.Size() / outer
				reflect.Copy(dst.Slice(pos, pos+chunk), reflect.ValueOf(t.Flat()).Slice(o*chunk, (o+1)*chunk))
				pos += chunk
			}
		}
	})
	return out, nil
}

// ArgMaxWithValue returns the indices (Int32) of the maximum values along axis and the values.
func ArgMaxWithValue(t *tensors.Tensor, axis int) (indices, values *tensors.Tensor, err error) {
	rank := t.Rank()
	if rank == 0 {
		return tensors.FromScalar(int32(0)), t.Clone(), nil
	}
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return nil, nil, valueErrorf("axis %d is out of bounds for array of dimension %d", axis, rank)
	}
	dims := t.Shape().Dimensions
	if dims[axis] == 0 {
		return nil, nil, valueErrorf("attempt to get argmax of an empty sequence")
	}
	outer, inner := 1, 1
	for _, d := range dims[:axis] {
		outer *= d
	}
	for _, d := range dims[axis+1:] {
		inner *= d
	}
	data := tensors.ToFloat64s(t)
	idx := make([]int64, outer*inner)
	best := make([]float64, outer*inner)
	for o := range outer {
		for i := range inner {
			bestIdx := 0
			bestValue := data[o*dims[axis]*inner+i]
			for a := 1; a < dims[axis]; a++ {
				v := data[(o*dims[axis]+a)*inner+i]
				if v > bestValue {
					bestIdx, bestValue = a, v
				}
			}
			idx[o*inner+i] = int64(bestIdx)
			best[o*inner+i] = bestValue
		}
	}
	outDims := slices.Delete(slices.Clone(dims), axis, axis+1)
	indices = tensors.FromInt64s(dtypes.Int32, outDims, idx)
	values = tensors.FromFloat64s(t.DType(), outDims, best)
	return indices, values, nil
}

// GatherNd gathers slices of x indexed by the last axis of indices.
// The output shape is indices.shape[:-1] + x.shape[indices.shape[-1]:].
func GatherNd(x, indices *tensors.Tensor) (*tensors.Tensor, error) {
	if indices.DType().IsFloat() || indices.DType() == dtypes.Bool {
		return nil, typeErrorf("gather_nd indices must be integers, got %s", indices.DType())
	}
	if indices.Rank() == 0 {
		return nil, valueErrorf("gather_nd indices must have rank >= 1")
	}
	idxDims := indices.Shape().Dimensions
	depth := idxDims[len(idxDims)-1]
	xDims := x.Shape().Dimensions
	if depth > len(xDims) {
		return nil, valueErrorf("gather_nd index depth %d larger than rank %d", depth, len(xDims))
	}
	sliceSize := 1
	for _, d := range xDims[depth:] {
		sliceSize *= d
	}
	numSlices := 1
	for _, d := range idxDims[:len(idxDims)-1] {
		numSlices *= d
	}
	outDims := slices.Concat(idxDims[:len(idxDims)-1], xDims[depth:])
	idx := tensors.ToInt64s(indices)
	src := reflect.ValueOf(x.Flat())
	out := tensors.FromShape(shapes.Make(x.DType(), outDims...))
	var err error
	out.MutableFlatData(func(flat any) {
		dst := reflect.ValueOf(flat)
		for s := range numSlices {
			offset := 0
			for d := range depth {
				i := int(idx[s*depth+d])
				if i < 0 {
					i += xDims[d]
				}
				if i < 0 || i >= xDims[d] {
					err = indexErrorf("index %d is out of bounds for axis %d with size %d", idx[s*depth+d], d, xDims[d])
					return
				}
				offset = offset*xDims[d] + i
			}
			offset *= sliceSize
			reflect.Copy(dst.Slice(s*sliceSize, (s+1)*sliceSize), src.Slice(offset, offset+sliceSize))
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NonZero returns the Int64 coordinates (n, rank) of the non-zero elements of x.
func NonZero(x *tensors.Tensor) *tensors.Tensor {
	values := tensors.ToBools(x)
	dims := x.Shape().Dimensions
	var coords []int64
	count := 0
	index := make([]int, len(dims))
	for _, v := range values {
		if v {
			count++
			for _, i := range index {
				coords = append(coords, int64(i))
			}
		}
		for axis := len(dims) - 1; axis >= 0; axis-- {
			index[axis]++
			if index[axis] < dims[axis] {
				break
			}
			index[axis] = 0
		}
	}
	return tensors.FromInt64s(dtypes.Int64, []int{count, len(dims)}, coords)
}

// ReduceKind selects the reduction of Reduce.
type ReduceKind int

const (
	ReduceKindSum ReduceKind = iota
	ReduceKindMax
	ReduceKindMin
	ReduceKindMean
)

// ReduceSum sums over the given axes (all axes if none given).
func ReduceSum(x *tensors.Tensor, axes ...int) (*tensors.Tensor, error) {
	return Reduce(x, ReduceKindSum, axes...)
}

// Reduce reduces x over the given axes (all axes if none given). Max and Min of an empty
// reduction are a ValueError, as in numpy.
func Reduce(x *tensors.Tensor, kind ReduceKind, axes ...int) (*tensors.Tensor, error) {
	dims := x.Shape().Dimensions
	rank := len(dims)
	reduce := make([]bool, rank)
	if len(axes) == 0 {
		for ii := range reduce {
			reduce[ii] = true
		}
	}
	for _, axis := range axes {
		if axis < 0 {
			axis += rank
		}
		if axis < 0 || axis >= rank {
			return nil, valueErrorf("axis %d is out of bounds for array of dimension %d", axis, rank)
		}
		reduce[axis] = true
	}
	var outDims []int
	reducedCount := 1
	for ii, d := range dims {
		if !reduce[ii] {
			outDims = append(outDims, d)
		} else {
			reducedCount *= d
		}
	}
	outSize := 1
	for _, d := range outDims {
		outSize *= d
	}
	if reducedCount == 0 && (kind == ReduceKindMax || kind == ReduceKindMin) {
		return nil, valueErrorf("zero-size array to reduction operation which has no identity")
	}
	acc := make([]float64, outSize)
	seen := make([]bool, outSize)
	index := make([]int, rank)
	for _, v := range tensors.ToFloat64s(x) {
		pos := 0
		for ii, d := range dims {
			if !reduce[ii] {
				pos = pos*d + index[ii]
			}
		}
		switch {
		case kind == ReduceKindSum || kind == ReduceKindMean:
			acc[pos] += v
		case !seen[pos]:
			acc[pos] = v
		case kind == ReduceKindMax:
			acc[pos] = max(acc[pos], v)
		default:
			acc[pos] = min(acc[pos], v)
		}
		seen[pos] = true
		for axis := rank - 1; axis >= 0; axis-- {
			index[axis]++
			if index[axis] < dims[axis] {
				break
			}
			index[axis] = 0
		}
	}
	dtype := x.DType()
	switch kind {
	case ReduceKindMean:
		for ii := range acc {
			acc[ii] /= float64(reducedCount)
		}
		if !dtype.IsFloat() {
			dtype = dtypes.Float32
		}
	case ReduceKindSum:
		if dtype == dtypes.Bool {
			dtype = dtypes.Int64
		}
	}
	return tensors.FromFloat64s(dtype, outDims, acc), nil
}

// FromSequence builds a tensor of dtype from homogeneous scalars (float64 values) or rows.
func FromSequence(dtype dtypes.DType, rows []*tensors.Tensor) (*tensors.Tensor, error) {
	if len(rows) == 0 {
		return nil, valueErrorf("cannot create a tensor from an empty sequence")
	}
	rowShape := rows[0].Shape()
	values := make([]float64, 0, len(rows)*max(rowShape.Size(), 1))
	for _, r := range rows {
		if !r.Shape().EqualDimensions(rowShape) {
			return nil, valueErrorf("setting an array element with a sequence. The requested array has an inhomogeneous shape")
		}
		values = append(values, tensors.ToFloat64s(r)...)
	}
	dims := slices.Concat([]int{len(rows)}, rowShape.Dimensions)
	if dtype == dtypes.InvalidDType {
		dtype = rowShape.DType
	}
	if !dtype.IsFloat() && dtype != dtypes.Bool && rowShape.DType != dtypes.Bool && !rowShape.DType.IsFloat() {
		ints := make([]int64, 0, len(values))
		for _, r := range rows {
			ints = append(ints, tensors.ToInt64s(r)...)
		}
		return tensors.FromInt64s(dtype, dims, ints), nil
	}
	return tensors.FromFloat64s(dtype, dims, values), nil
}
