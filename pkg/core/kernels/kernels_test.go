// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryResultDType(t *testing.T) {
	assert.Equal(t, dtypes.Float64, BinaryResultDType(Add, dtypes.Int64, dtypes.Float64, false, false))
	assert.Equal(t, dtypes.Float32, BinaryResultDType(Mul, dtypes.Float64, dtypes.Float32, true, false))
	assert.Equal(t, dtypes.Float32, BinaryResultDType(Mul, dtypes.Float64, dtypes.Int32, true, false))
	assert.Equal(t, dtypes.Int32, BinaryResultDType(Add, dtypes.Int32, dtypes.Int64, false, true))
	assert.Equal(t, dtypes.Float32, BinaryResultDType(Div, dtypes.Int32, dtypes.Int32, false, false))
	assert.Equal(t, dtypes.Bool, BinaryResultDType(Less, dtypes.Int32, dtypes.Float32, false, false))
}

func TestBinary(t *testing.T) {
	x := tensors.FromFlatDataAndDimensions([]int64{1, 2, 3, 4}, 2, 2)
	y := tensors.FromFlatDataAndDimensions([]float64{0.5, 1.5}, 2)
	out, err := Binary(Add, x, y, BinaryResultDType(Add, x.DType(), y.DType(), false, false))
	require.NoError(t, err)
	require.Equal(t, [][]float64{{1.5, 3.5}, {3.5, 5.5}}, out.Value())

	out, err = Binary(Mod, tensors.FromFlatDataAndDimensions([]int32{-7, 7}, 2), tensors.FromScalar(int32(3)), dtypes.Int32)
	require.NoError(t, err)
	require.Equal(t, []int32{2, 1}, out.Value())

	out, err = Binary(Less, x, tensors.FromScalar(int64(3)), dtypes.Bool)
	require.NoError(t, err)
	require.Equal(t, [][]bool{{true, true}, {false, false}}, out.Value())

	_, err = Binary(Add, tensors.FromFlatDataAndDimensions([]float32{1, 2, 3, 4}, 4),
		tensors.FromFlatDataAndDimensions([]float32{1, 2, 3}, 3), dtypes.Float32)
	require.Error(t, err)
	var kernelErr *Error
	require.ErrorAs(t, err, &kernelErr)
	require.Equal(t, ValueError, kernelErr.Kind)
	require.Contains(t, err.Error(), "(4,) (3,)")
}

func TestUnary(t *testing.T) {
	x := tensors.FromFlatDataAndDimensions([]float32{-1, 0, 2}, 3)
	out, err := Unary(Relu, x)
	require.NoError(t, err)
	require.Equal(t, []float32{0, 0, 2}, out.Value())

	out, err = Unary(Tanh, tensors.FromFlatDataAndDimensions([]int32{0}, 1))
	require.NoError(t, err)
	require.Equal(t, dtypes.Float32, out.DType())

	out, err = Unary(Abs, tensors.FromFlatDataAndDimensions([]int64{-3, 3}, 2))
	require.NoError(t, err)
	require.Equal(t, []int64{3, 3}, out.Value())
}

func TestIndexing(t *testing.T) {
	x := tensors.FromFlatDataAndDimensions([]int32{1, 2, 3, 4, 5, 6}, 3, 2)
	row, err := GetItem(x, -1)
	require.NoError(t, err)
	require.Equal(t, []int32{5, 6}, row.Value())
	_, err = GetItem(x, 3)
	require.ErrorContains(t, err, "out of bounds")

	updated, err := SetItem(x, row, 0)
	require.NoError(t, err)
	require.Equal(t, [][]int32{{5, 6}, {3, 4}, {5, 6}}, updated.Value())
	require.Equal(t, [][]int32{{1, 2}, {3, 4}, {5, 6}}, x.Value(), "input must not be modified")

	stop := 1
	step := -1
	indices, err := SliceIndices(5, nil, &stop, &step)
	require.NoError(t, err)
	require.Equal(t, []int{4, 3, 2}, indices)
	indices, err = SliceIndices(4, nil, nil, nil)
	require.NoError(t, err)
	taken, err := Take(x, indices[:2])
	require.NoError(t, err)
	require.Equal(t, [][]int32{{1, 2}, {3, 4}}, taken.Value())
}

func TestShapeOps(t *testing.T) {
	filled, err := Fill([]int{2, 3}, tensors.FromScalar(int32(7)))
	require.NoError(t, err)
	require.Equal(t, [][]int32{{7, 7, 7}, {7, 7, 7}}, filled.Value())

	a := tensors.FromFlatDataAndDimensions([]float32{1, 2}, 1, 2)
	b := tensors.FromFlatDataAndDimensions([]float32{3, 4, 5, 6}, 2, 2)
	cat, err := Concat([]*tensors.Tensor{a, b}, 0)
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1, 2}, {3, 4}, {5, 6}}, cat.Value())

	idx, values, err := ArgMaxWithValue(tensors.FromFlatDataAndDimensions([]float32{1, 9, 3, 7, 2, 8}, 2, 3), -1)
	require.NoError(t, err)
	require.Equal(t, []int32{1, 2}, idx.Value())
	require.Equal(t, []float32{9, 8}, values.Value())

	nz := NonZero(tensors.FromFlatDataAndDimensions([]int32{0, 3, 0, 4}, 2, 2))
	require.Equal(t, [][]int64{{0, 1}, {1, 1}}, nz.Value())

	gathered, err := GatherNd(tensors.FromFlatDataAndDimensions([]int32{0, 3, 0, 4}, 2, 2), nz)
	require.NoError(t, err)
	require.Equal(t, []int32{3, 4}, gathered.Value())

	sum, err := ReduceSum(tensors.FromFlatDataAndDimensions([]int32{1, 2, 3, 4}, 2, 2), 1)
	require.NoError(t, err)
	require.Equal(t, []int32{3, 7}, sum.Value())

	seq, err := FromSequence(dtypes.Int32, []*tensors.Tensor{tensors.FromScalar(int64(2)), tensors.FromScalar(int64(3))})
	require.NoError(t, err)
	require.Equal(t, []int32{2, 3}, seq.Value())
}

func TestReduce(t *testing.T) {
	x := tensors.FromFlatDataAndDimensions([]int32{1, 5, 3, 4, 2, 6}, 2, 3)
	for _, tc := range []struct {
		kind ReduceKind
		axes []int
		want any
	}{
		{ReduceKindMax, []int{1}, []int32{5, 6}},
		{ReduceKindMin, []int{0}, []int32{1, 2, 3}},
		{ReduceKindMean, nil, float32(3.5)},
		{ReduceKindSum, []int{-1}, []int32{9, 12}},
	} {
		out, err := Reduce(x, tc.kind, tc.axes...)
		require.NoError(t, err)
		assert.Equal(t, tc.want, out.Value(), "kind=%d axes=%v", tc.kind, tc.axes)
	}

	_, err := Reduce(tensors.FromShape(x.Shape().WithDType(dtypes.Float32)), ReduceKindSum, 2)
	require.ErrorContains(t, err, "axis 2 is out of bounds")

	empty := tensors.FromFlatDataAndDimensions([]float32{}, 0)
	_, err = Reduce(empty, ReduceKindMax)
	require.ErrorContains(t, err, "zero-size array to reduction operation which has no identity")
	sum, err := Reduce(empty, ReduceKindSum)
	require.NoError(t, err)
	assert.Equal(t, float32(0), sum.Value())
}
