// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/shapes"
	"github.com/gomlx/jitfallback/pkg/core/tensors"
	"github.com/gomlx/jitfallback/pkg/fallback/bridge"
	"github.com/gomlx/jitfallback/pkg/hostlang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	names := Names()
	for _, name := range []string{"Add", "Tanh", "MakeTensor", "Identity", "TupleGetItem", "NonZero"} {
		assert.Contains(t, names, name)
	}
	assert.Same(t, Add, MustGet("Add"))
	_, found := Get("Conv")
	assert.False(t, found)
	assert.Panics(t, func() { Register(&Op{Name: "Add"}) })

	op, found := BinaryForSymbol("<=")
	require.True(t, found)
	assert.Same(t, LessEqual, op)
	_, found = BinaryForSymbol("@")
	assert.False(t, found)
}

// TestInferMatchesExec checks that the statically inferred signature accepts the signature of
// the value actually computed.
func TestInferMatchesExec(t *testing.T) {
	matrix := tensors.FromFlatDataAndDimensions([]float32{1, 5, 3, 4, 2, 6}, 2, 3)
	ints := tensors.FromFlatDataAndDimensions([]int32{3, -1, 4}, 3)
	withDType := func(dtype dtypes.DType) Params {
		p := DefaultParams()
		p.DType = dtype
		return p
	}
	withAxis := func(axis int) Params {
		p := DefaultParams()
		p.Axis = axis
		return p
	}
	withIndex := func(index int) Params {
		p := DefaultParams()
		p.Index = index
		return p
	}
	testCases := []struct {
		name   string
		op     *Op
		inputs []any
		params Params
		want   bridge.Signature
	}{
		{"tensor+int", Add, []any{ints, 1}, DefaultParams(), bridge.TensorSignature(shapes.Make(dtypes.Int32, 3))},
		{"tensor/int", Div, []any{ints, 2}, DefaultParams(), bridge.TensorSignature(shapes.Make(dtypes.Float32, 3))},
		{"float*tensor", Mul, []any{2.5, ints}, DefaultParams(), bridge.TensorSignature(shapes.Make(dtypes.Float32, 3))},
		{"broadcast", Sub, []any{matrix, tensors.FromFlatDataAndDimensions([]float32{1, 2, 3}, 3)}, DefaultParams(),
			bridge.TensorSignature(shapes.Make(dtypes.Float32, 2, 3))},
		{"less", Less, []any{matrix, 3.0}, DefaultParams(), bridge.TensorSignature(shapes.Make(dtypes.Bool, 2, 3))},
		{"int+int", Add, []any{1, 2}, DefaultParams(), bridge.ScalarSignature("int")},
		{"int/int", Div, []any{1, 2}, DefaultParams(), bridge.ScalarSignature("float")},
		{"maximum", Maximum, []any{ints, 0}, DefaultParams(), bridge.TensorSignature(shapes.Make(dtypes.Int32, 3))},
		{"tanh", Tanh, []any{matrix}, DefaultParams(), bridge.TensorSignature(shapes.Make(dtypes.Float32, 2, 3))},
		{"abs scalar", Abs, []any{-3}, DefaultParams(), bridge.ScalarSignature("int")},
		{"cast", Cast, []any{ints}, withDType(dtypes.Float64), bridge.TensorSignature(shapes.Make(dtypes.Float64, 3))},
		{"fill", Fill, []any{bridge.Tuple{2, 3}, 1.5}, DefaultParams(),
			bridge.TensorSignature(shapes.MakeDynamic(dtypes.Float32, shapes.DimUnknown, shapes.DimUnknown))},
		{"shape", Shape, []any{matrix}, DefaultParams(),
			bridge.SequenceSignature(true, bridge.ScalarSignature("int"), bridge.ScalarSignature("int"))},
		{"make tensor", MakeTensor, []any{[]any{1, 2, 3}}, DefaultParams(), bridge.TensorSignature(shapes.Make(dtypes.Int64, 3))},
		{"make tensor int32", MakeTensor, []any{[]any{1.0, 2}}, withDType(dtypes.Int32),
			bridge.TensorSignature(shapes.Make(dtypes.Int32, 2))},
		{"make tuple", MakeTuple, []any{1, "a"}, DefaultParams(),
			bridge.SequenceSignature(true, bridge.ScalarSignature("int"), bridge.ScalarSignature("str"))},
		{"tuple getitem", TupleGetItem, []any{bridge.Tuple{1, "a"}}, withIndex(-1), bridge.ScalarSignature("str")},
		{"tensor getitem", TensorGetItem, []any{matrix}, withIndex(-1), bridge.TensorSignature(shapes.Make(dtypes.Float32, 3))},
		{"tensor setitem", TensorSetItem, []any{matrix, 0}, withIndex(1), bridge.TensorSignature(shapes.Make(dtypes.Float32, 2, 3))},
		{"argmax", ArgMaxWithValue, []any{matrix}, withAxis(1), bridge.SequenceSignature(true,
			bridge.TensorSignature(shapes.Make(dtypes.Int32, 2)), bridge.TensorSignature(shapes.Make(dtypes.Float32, 2)))},
		{"concat", Concat, []any{matrix, matrix}, withAxis(0), bridge.TensorSignature(shapes.Make(dtypes.Float32, 4, 3))},
		{"gather_nd", GatherNd, []any{matrix, tensors.FromFlatDataAndDimensions([]int64{1, 0}, 2, 1)}, DefaultParams(),
			bridge.TensorSignature(shapes.Make(dtypes.Float32, 2, 3))},
		{"nonzero", NonZero, []any{ints}, DefaultParams(),
			bridge.TensorSignature(shapes.MakeDynamic(dtypes.Int64, shapes.DimUnknown, 1))},
		{"reduce_sum", ReduceSum, []any{matrix}, Params{Axes: []int{0}}, bridge.TensorSignature(shapes.Make(dtypes.Float32, 3))},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			values := make([]*bridge.Value, len(tc.inputs))
			sigs := make([]bridge.Signature, len(tc.inputs))
			for i, in := range tc.inputs {
				values[i] = bridge.Wrap(in)
				sigs[i] = bridge.SignatureOf(values[i])
			}
			inferred, err := tc.op.Infer(sigs, tc.params)
			require.NoError(t, err)
			assert.Equal(t, tc.want.String(), inferred.String())

			out, err := tc.op.Exec(values, tc.params)
			require.NoError(t, err)
			concrete := bridge.SignatureOf(out)
			assert.Truef(t, inferred.Accepts(concrete), "inferred %s does not accept %s", inferred, concrete)
		})
	}
}

func TestExecValues(t *testing.T) {
	ints := tensors.FromFlatDataAndDimensions([]int32{3, -1, 4}, 3)

	out, err := Maximum.Exec([]*bridge.Value{bridge.Wrap(ints), bridge.Wrap(0)}, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, []int32{3, 0, 4}, tensors.Flat[int32](out.Tensor()))

	out, err = Minimum.Exec([]*bridge.Value{bridge.Wrap(2.5), bridge.Wrap(1)}, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Scalar())

	p := DefaultParams()
	p.Index = 1
	out, err = TensorSetItem.Exec([]*bridge.Value{bridge.Wrap(ints), bridge.Wrap(7)}, p)
	require.NoError(t, err)
	assert.Equal(t, []int32{3, 7, 4}, tensors.Flat[int32](out.Tensor()))
	assert.Equal(t, []int32{3, -1, 4}, tensors.Flat[int32](ints), "input must not be modified")

	out, err = Fill.Exec([]*bridge.Value{bridge.Wrap(tensors.FromFlatDataAndDimensions([]int32{2, 2}, 2)), bridge.Wrap(1)}, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 1, 1, 1}, tensors.Flat[int64](out.Tensor()))

	out, err = Identity.Exec([]*bridge.Value{bridge.Wrap(bridge.Tuple{1, 2})}, Params{DynamicLength: true})
	require.NoError(t, err)
	assert.True(t, out.IsMutable())
	assert.True(t, out.HasDynamicLength())
	assert.Equal(t, -1, bridge.SignatureOf(out).Length)
}

func TestInferErrors(t *testing.T) {
	known := func(dims ...int) bridge.Signature {
		return bridge.TensorSignature(shapes.Make(dtypes.Float32, dims...))
	}
	partial := bridge.TensorSignature(shapes.MakeDynamic(dtypes.Float32, shapes.DimUnknown, 3))

	_, err := Add.Infer([]bridge.Signature{known(2, 3), known(4)}, DefaultParams())
	require.Error(t, err)
	hostErr, ok := hostlang.AsError(err)
	require.True(t, ok)
	assert.Equal(t, hostlang.ValueError, hostErr.Kind)
	assert.Contains(t, hostErr.Msg, "could not be broadcast")

	// Only provably failing inputs are errors.
	sig, err := Add.Infer([]bridge.Signature{partial, known(1, 3)}, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, "~Tensor(Float32)[? 3]", sig.String())

	p := DefaultParams()
	p.Index = 5
	_, err = TensorGetItem.Infer([]bridge.Signature{known(3, 2)}, p)
	hostErr, ok = hostlang.AsError(err)
	require.True(t, ok)
	assert.Equal(t, hostlang.IndexError, hostErr.Kind)

	sig, err = TensorGetItem.Infer([]bridge.Signature{partial}, p)
	require.NoError(t, err)
	assert.True(t, sig.Dynamic)

	_, err = TupleGetItem.Infer([]bridge.Signature{bridge.SequenceSignature(true, known(1))}, p)
	hostErr, ok = hostlang.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "tuple index out of range", hostErr.Msg)

	_, err = Add.Infer([]bridge.Signature{known(1)}, DefaultParams())
	hostErr, ok = hostlang.AsError(err)
	require.True(t, ok)
	assert.Equal(t, hostlang.TypeError, hostErr.Kind)

	// Dynamic inputs make dynamic outputs.
	sig, err = Neg.Infer([]bridge.Signature{known(2).AsDynamic()}, DefaultParams())
	require.NoError(t, err)
	assert.True(t, sig.Dynamic)
}

func TestHostModule(t *testing.T) {
	m := HostModule()
	assert.Equal(t, HostModuleName, m.Name)
	_, found := m.Attr("MakeTensor")
	assert.False(t, found)

	obj, found := m.Attr("fill")
	require.True(t, found)
	fill := obj.(*hostlang.Builtin)
	assert.Equal(t, "Fill", fill.Native)
	out, err := fill.Fn([]hostlang.Object{hostlang.NewTuple(hostlang.Int(2)), hostlang.Float(0.5)}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, tensors.Flat[float32](out.(*hostlang.Tensor).Value))

	obj, _ = m.Attr("concat")
	x := hostlang.NewTensor(tensors.FromFlatDataAndDimensions([]int32{1, 2}, 2))
	out, err = obj.(*hostlang.Builtin).Fn([]hostlang.Object{hostlang.NewList(x, x)},
		[]hostlang.Kwarg{{Name: "axis", Value: hostlang.Int(0)}})
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 1, 2}, tensors.Flat[int32](out.(*hostlang.Tensor).Value))

	obj, _ = m.Attr("arg_max_with_value")
	out, err = obj.(*hostlang.Builtin).Fn([]hostlang.Object{x}, nil)
	require.NoError(t, err)
	pair := out.(*hostlang.Tuple)
	require.Len(t, pair.Elems, 2)
	assert.Equal(t, int32(1), tensors.ToScalar[int32](pair.Elems[0].(*hostlang.Tensor).Value))
	assert.Equal(t, int32(2), tensors.ToScalar[int32](pair.Elems[1].(*hostlang.Tensor).Value))

	obj, _ = m.Attr("reduce_sum")
	_, err = obj.(*hostlang.Builtin).Fn(nil, nil)
	hostErr, ok := hostlang.AsError(err)
	require.True(t, ok)
	assert.Equal(t, hostlang.TypeError, hostErr.Kind)
	assert.Contains(t, hostErr.Msg, "reduce_sum()")

	inputs, params, err := Cast.BindArgs([]hostlang.Object{x}, []hostlang.Kwarg{{Name: "dtype", Value: hostlang.Str("int64")}})
	require.NoError(t, err)
	assert.Len(t, inputs, 1)
	require.Len(t, params, 1)
	p, err := Cast.ParamsFromHost(params)
	require.NoError(t, err)
	assert.Equal(t, dtypes.Int64, p.DType)
}
