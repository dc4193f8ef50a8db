// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	invalidShape := Invalid()
	require.False(t, invalidShape.Ok())

	shape0 := Make(dtypes.Float64)
	require.True(t, shape0.Ok())
	require.True(t, shape0.IsScalar())
	require.Equal(t, 0, shape0.Rank())
	require.Equal(t, 1, shape0.Size())

	shape1 := Make(dtypes.Float32, 4, 3, 2)
	require.False(t, shape1.IsScalar())
	require.Equal(t, 3, shape1.Rank())
	require.Equal(t, 4*3*2, shape1.Size())
	require.True(t, shape1.IsFullyKnown())
	require.Equal(t, "(Float32)[4 3 2]", shape1.String())

	require.Panics(t, func() { _ = Make(dtypes.Float32, -1) })
}

func TestDim(t *testing.T) {
	shape := Make(dtypes.Float32, 4, 3, 2)
	require.Equal(t, 4, shape.Dim(0))
	require.Equal(t, 2, shape.Dim(2))
	require.Equal(t, 4, shape.Dim(-3))
	require.Equal(t, 2, shape.Dim(-1))
	require.Panics(t, func() { _ = shape.Dim(3) })
	require.Panics(t, func() { _ = shape.Dim(-4) })
	require.Panics(t, func() { _ = UnknownRank(dtypes.Float32).Dim(0) })
}

func TestDynamic(t *testing.T) {
	dyn := MakeDynamic(dtypes.Int32, DimUnknown, 3)
	assert.False(t, dyn.IsFullyKnown())
	assert.Equal(t, -1, dyn.Size())
	assert.Equal(t, "(Int32)[? 3]", dyn.String())
	assert.True(t, dyn.Compatible(Make(dtypes.Int32, 7, 3)))
	assert.False(t, dyn.Compatible(Make(dtypes.Int32, 7, 4)))
	assert.False(t, dyn.Compatible(Make(dtypes.Float32, 7, 3)))

	unknown := UnknownRank(dtypes.Int32)
	assert.Equal(t, -1, unknown.Rank())
	assert.Equal(t, "(Int32)[...]", unknown.String())
	assert.True(t, unknown.Compatible(Make(dtypes.Int32, 1, 2, 3)))
	assert.True(t, UnknownRank(dtypes.InvalidDType).Compatible(Make(dtypes.Bool)))
	assert.False(t, unknown.Equal(Make(dtypes.Int32)))
}

func TestParseDType(t *testing.T) {
	for name, want := range map[string]dtypes.DType{
		"int32": dtypes.Int32, "Float32": dtypes.Float32, "float64": dtypes.Float64,
		"bool_": dtypes.Bool, " float16 ": dtypes.Float16,
	} {
		got, err := ParseDType(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseDType("complex256")
	require.Error(t, err)
	assert.Equal(t, "float32", DTypeName(dtypes.Float32))
}

func TestPromoteDTypes(t *testing.T) {
	assert.Equal(t, dtypes.Float64, PromoteDTypes(dtypes.Int64, dtypes.Float64))
	assert.Equal(t, dtypes.Float32, PromoteDTypes(dtypes.Float32, dtypes.Int32))
	assert.Equal(t, dtypes.Int32, PromoteDTypes(dtypes.Bool, dtypes.Int32))
	assert.Equal(t, dtypes.InvalidDType, PromoteDTypes(dtypes.InvalidDType, dtypes.Int32))
}

func TestFromAnyValue(t *testing.T) {
	shape, err := FromAnyValue([]int32{1, 2, 3})
	require.NoError(t, err)
	require.True(t, shape.Equal(Make(dtypes.Int32, 3)))

	shape, err = FromAnyValue([][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	require.True(t, shape.Equal(Make(dtypes.Float64, 2, 3)))

	shape, err = FromAnyValue(float32(1))
	require.NoError(t, err)
	require.True(t, shape.IsScalar())

	_, err = FromAnyValue([][]float32{{1, 2, 3}, {4, 5}})
	require.Error(t, err)
	_, err = FromAnyValue([]string{"a"})
	require.Error(t, err)
}
