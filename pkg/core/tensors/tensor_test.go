// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestFromAnyValue(t *testing.T) {
	tensor, err := FromAnyValue([][]float32{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	require.True(t, tensor.Shape().Equal(shapes.Make(dtypes.Float32, 2, 3)))
	require.Equal(t, []float32{1, 2, 3, 4, 5, 6}, Flat[float32](tensor))
	require.Equal(t, [][]float32{{1, 2, 3}, {4, 5, 6}}, tensor.Value())

	// Go ints are stored as Int64.
	tensor, err = FromAnyValue([]int{7, 8})
	require.NoError(t, err)
	require.Equal(t, dtypes.Int64, tensor.DType())
	require.Equal(t, []int64{7, 8}, tensor.Value())

	tensor, err = FromAnyValue(int32(3))
	require.NoError(t, err)
	require.True(t, tensor.Shape().IsScalar())
	require.Equal(t, int32(3), ToScalar[int32](tensor))

	_, err = FromAnyValue([][]int32{{1}, {2, 3}})
	require.Error(t, err)
	_, err = FromAnyValue(nil)
	require.Error(t, err)
}

func TestZeroSize(t *testing.T) {
	tensor := FromShape(shapes.Make(dtypes.Int64, 0, 2))
	require.Equal(t, 0, tensor.Size())
	require.Equal(t, [][]int64{}, tensor.Value())
	require.Equal(t, "[]", tensor.ValueString())
}

func TestConvert(t *testing.T) {
	tensor := FromFlatDataAndDimensions([]float64{1.5, -2, 0}, 3)
	assert.Equal(t, []int64{1, -2, 0}, ToInt64s(tensor))
	assert.Equal(t, []bool{true, true, false}, ToBools(tensor))

	asInt32 := tensor.ConvertDType(dtypes.Int32)
	assert.Equal(t, []int32{1, -2, 0}, Flat[int32](asInt32))

	asHalf := tensor.ConvertDType(dtypes.Float16)
	assert.Equal(t, float16.Fromfloat32(1.5), Flat[float16.Float16](asHalf)[0])

	big := FromInt64s(dtypes.Int64, []int{1}, []int64{1<<62 + 1})
	assert.Equal(t, int64(1<<62+1), Flat[int64](big)[0])
}

func TestEqualAndInDelta(t *testing.T) {
	a := FromFlatDataAndDimensions([]float32{1, 2, 3, 4}, 2, 2)
	b := a.Clone()
	require.True(t, a.Equal(b))
	Flat[float32](b)[3] = 4.000001
	require.False(t, a.Equal(b))
	require.True(t, a.InDelta(b, 1e-5))
	c, err := a.Reshape(4)
	require.NoError(t, err)
	require.False(t, a.Equal(c))
	_, err = a.Reshape(3)
	require.Error(t, err)
}

func TestString(t *testing.T) {
	tensor := FromFlatDataAndDimensions([]int32{1, 2, 3, 4}, 2, 2)
	assert.Equal(t, "Tensor(shape=[2, 2], dtype=Int32, value=[[1 2] [3 4]])", tensor.String())
	long := FromFlatDataAndDimensions([]int64{0, 1, 2, 3, 4, 5, 6, 7}, 8)
	assert.Equal(t, "[0 1 2 ... 5 6 7]", long.ValueString())
	assert.Equal(t, "True", FromScalar(true).ValueString())
}

func TestBytes(t *testing.T) {
	tensor := FromFlatDataAndDimensions([]uint16{1, 256}, 2)
	tensor.ConstBytes(func(data []byte) {
		require.Equal(t, []byte{1, 0, 0, 1}, data)
	})
}
