// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/shapes"
	"github.com/gomlx/jitfallback/pkg/core/tensors"
	"github.com/gomlx/jitfallback/pkg/hostlang"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

type point struct{ x, y int }

func TestWrap(t *testing.T) {
	p := &point{1, 2}
	testCases := []struct {
		name     string
		raw      any
		kind     Kind
		typeName string
	}{
		{"nil", nil, KindScalar, "NoneType"},
		{"bool", true, KindScalar, "bool"},
		{"int", 3, KindScalar, "int"},
		{"uint8", uint8(3), KindScalar, "int"},
		{"float32", float32(1.5), KindScalar, "float"},
		{"string", "x", KindScalar, "str"},
		{"flat slice", []float32{1, 2}, KindTensor, "Tensor"},
		{"matrix", [][]int{{1, 2}, {3, 4}}, KindTensor, "Tensor"},
		{"tensor", tensors.FromScalar(int32(7)), KindTensor, "Tensor"},
		{"tuple", Tuple{1, "a"}, KindSequence, "tuple"},
		{"list", []any{1.0}, KindSequence, "list"},
		{"map", map[string]any{"b": 1, "a": 2}, KindMapping, "dict"},
		{"host int", hostlang.Int(3), KindScalar, "int"},
		{"host ndarray", &hostlang.Tensor{Value: tensors.FromScalar(1.0), NumPy: true}, KindTensor, "numpy.ndarray"},
		{"host function", &hostlang.Builtin{Name: "f"}, KindOpaque, "builtin_function_or_method"},
		{"dtype", dtypes.Int32, KindOpaque, "dtype"},
		{"go pointer", p, KindOpaque, "*bridge.point"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := Wrap(tc.raw)
			assert.Equal(t, tc.kind, v.Kind())
			assert.Equal(t, tc.typeName, v.TypeName())
			assert.False(t, IsDynamic(v))
		})
	}

	t.Run("normalization", func(t *testing.T) {
		assert.Equal(t, int64(3), Wrap(int32(3)).Scalar())
		assert.Equal(t, 1.5, Wrap(float32(1.5)).Scalar())
		assert.True(t, Wrap(nil).IsNone())
		m := Wrap(map[string]any{"b": 1, "a": 2}).Mapping()
		keys := m.Keys()
		require.Len(t, keys, 2)
		assert.Equal(t, "a", keys[0].Scalar())
		assert.Equal(t, "b", keys[1].Scalar())
		matrix := Wrap([][]int{{1, 2}, {3, 4}}).Tensor()
		assert.Equal(t, shapes.Make(dtypes.Int64, 2, 2), matrix.Shape())
	})

	t.Run("dtypes", func(t *testing.T) {
		v := Wrap(dtypes.Float32)
		dtype, ok := v.Opaque().(*hostlang.DType)
		require.True(t, ok, "got %T", v.Opaque())
		assert.Equal(t, dtypes.Float32, dtype.DType)
		assert.True(t, Equal(v, Wrap(&hostlang.DType{DType: dtypes.Float32})))
		assert.False(t, Equal(v, Wrap(dtypes.Float64)))
	})

	t.Run("values are not rewrapped", func(t *testing.T) {
		v := Wrap(1)
		assert.Same(t, v, Wrap(v))
	})
}

func TestTensorRoundTrip(t *testing.T) {
	for name, tensor := range map[string]*tensors.Tensor{
		"float32": tensors.FromFlatDataAndDimensions([]float32{1, 2, 3, 4, 5, 6}, 2, 3),
		"int32":   tensors.FromFlatDataAndDimensions([]int32{-1, 0, 7}, 3),
		"bool":    tensors.FromFlatDataAndDimensions([]bool{true, false}, 2, 1),
		"float16": tensors.FromFlatDataAndDimensions([]float16.Float16{float16.Fromfloat32(0.5)}, 1),
		"scalar":  tensors.FromScalar(3.25),
		"empty":   tensors.FromFlatDataAndDimensions([]float64{}, 0, 4),
	} {
		t.Run(name, func(t *testing.T) {
			raw, err := Unwrap(Wrap(tensor), KindTensor)
			require.NoError(t, err)
			got, ok := raw.(*tensors.Tensor)
			require.True(t, ok)
			assert.Equal(t, tensor.DType(), got.DType())
			assert.Equal(t, tensor.Shape(), got.Shape())
			assert.True(t, tensor.Equal(got))

			// Through the interpreter representation and back.
			back := FromHost(ToHost(Wrap(tensor)))
			raw, err = Unwrap(back, KindTensor)
			require.NoError(t, err)
			assert.True(t, tensor.Equal(raw.(*tensors.Tensor)))
		})
	}
}

func TestUnwrap(t *testing.T) {
	t.Run("kind mismatch", func(t *testing.T) {
		_, err := Unwrap(Wrap([]any{1}), KindTensor)
		require.Error(t, err)
		var unwrapErr *UnwrapError
		require.True(t, errors.As(err, &unwrapErr))
		assert.Equal(t, KindTensor, unwrapErr.Expected)
		assert.Equal(t, KindSequence, unwrapErr.Got)
		assert.Equal(t, "cannot unwrap Sequence value of type 'list' as Tensor", err.Error())
	})

	t.Run("any", func(t *testing.T) {
		raw, err := Unwrap(Wrap(Tuple{1, []any{"a", nil}}), KindAny)
		require.NoError(t, err)
		assert.Equal(t, Tuple{int64(1), []any{"a", nil}}, raw)
	})

	t.Run("opaque", func(t *testing.T) {
		p := &point{3, 4}
		raw, err := Unwrap(Wrap(p), KindOpaque)
		require.NoError(t, err)
		assert.Same(t, p, raw)
		_, err = Unwrap(Wrap(p), KindScalar)
		require.Error(t, err)
	})

	t.Run("nil", func(t *testing.T) {
		_, err := Unwrap(nil, KindAny)
		require.Error(t, err)
	})
}

func TestHostConversion(t *testing.T) {
	t.Run("containers are copied", func(t *testing.T) {
		v := Wrap([]any{1, 2})
		host := ToHost(v).(*hostlang.List)
		host.Elems = append(host.Elems, hostlang.Int(3))
		host.Elems[0] = hostlang.Str("changed")
		assert.Equal(t, 2, v.Len())
		assert.Equal(t, int64(1), v.Elements()[0].Scalar())

		list := hostlang.NewList(hostlang.Int(1))
		fromHost := FromHost(list)
		list.Elems[0] = hostlang.Int(5)
		assert.Equal(t, int64(1), fromHost.Elements()[0].Scalar())
	})

	t.Run("dict", func(t *testing.T) {
		d := hostlang.NewDict()
		require.NoError(t, d.Set(hostlang.Str("z"), hostlang.Int(1)))
		require.NoError(t, d.Set(hostlang.NewTuple(hostlang.Int(1), hostlang.Int(2)), hostlang.NewList()))
		v := FromHost(d)
		require.Equal(t, KindMapping, v.Kind())
		keys := v.Mapping().Keys()
		require.Len(t, keys, 2)
		assert.Equal(t, "z", keys[0].Scalar())
		assert.True(t, keys[1].IsTuple())
		assert.True(t, Equal(v, FromHost(ToHost(v))))
		assert.Equal(t, "{'z': 1, (1, 2): []}", v.String())
	})

	t.Run("opaque objects are kept", func(t *testing.T) {
		p := &point{1, 2}
		v := Wrap(p)
		host := ToHost(v)
		opaque, ok := host.(*hostlang.Opaque)
		require.True(t, ok)
		assert.Same(t, p, opaque.Value)
		assert.True(t, Equal(v, FromHost(host)))

		fn := &hostlang.Builtin{Name: "f"}
		assert.Same(t, hostlang.Object(fn), ToHost(FromHost(fn)))
	})

	t.Run("repr", func(t *testing.T) {
		assert.Equal(t, "(1, [2.5, 'x'], None)", Wrap(Tuple{1, []any{2.5, "x"}, nil}).String())
		assert.Equal(t, "True", Wrap(true).String())
	})
}

func TestMutable(t *testing.T) {
	t.Run("fixed length", func(t *testing.T) {
		v := Mutable([]any{2, 3}, false)
		assert.True(t, IsDynamic(v))
		assert.True(t, v.IsMutable())
		sig := SignatureOf(v)
		assert.Equal(t, KindSequence, sig.Kind)
		assert.Equal(t, 2, sig.Length)
		assert.Nil(t, sig.Elements)
		assert.True(t, sig.Dynamic)
		assert.False(t, sig.IsKnown())
		assert.Equal(t, "~list[len=2]", sig.String())
	})

	t.Run("dynamic length", func(t *testing.T) {
		sig := SignatureOf(Mutable(Tuple{2, 3}, true))
		assert.Equal(t, -1, sig.Length)
		assert.Equal(t, "~tuple(...)", sig.String())
	})

	t.Run("tensor", func(t *testing.T) {
		sig := SignatureOf(Mutable(tensors.FromFlatDataAndDimensions([]float32{1, 2}, 2), false))
		assert.Equal(t, shapes.UnknownRank(dtypes.Float32), sig.Shape)
		assert.True(t, sig.Dynamic)
	})

	t.Run("original value is unchanged", func(t *testing.T) {
		v := Wrap([]any{1})
		m := Mutable(v, false)
		assert.False(t, v.IsMutable())
		assert.True(t, m.IsMutable())
		assert.True(t, Equal(v, m))
	})
}

func TestSignatureOf(t *testing.T) {
	matrix := tensors.FromFlatDataAndDimensions([]int32{1, 2, 3, 4, 5, 6}, 2, 3)
	testCases := []struct {
		name string
		raw  any
		want Signature
	}{
		{"int", 1, ScalarSignature("int")},
		{"float", 1.5, ScalarSignature("float")},
		{"str", "a", ScalarSignature("str")},
		{"tensor", matrix, TensorSignature(shapes.Make(dtypes.Int32, 2, 3))},
		{"list", []any{1, "a"}, SequenceSignature(false, ScalarSignature("int"), ScalarSignature("str"))},
		{"nested tuple", Tuple{Tuple{}, matrix}, SequenceSignature(true,
			SequenceSignature(true), TensorSignature(shapes.Make(dtypes.Int32, 2, 3)))},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := SignatureOf(Wrap(tc.raw))
			if diff := cmp.Diff(tc.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("SignatureOf(%v) mismatch (-want +got):\n%s", tc.raw, diff)
			}
			assert.True(t, got.IsKnown())
			assert.True(t, tc.want.Equal(got), "%s != %s", tc.want, got)
		})
	}
	assert.Equal(t, "tuple(tuple(), Tensor(Int32)[2 3])", SignatureOf(Wrap(Tuple{Tuple{}, matrix})).String())
}

func TestSignatureAccepts(t *testing.T) {
	matrix := SignatureOf(Wrap(tensors.FromFlatDataAndDimensions([]int32{1, 2, 3, 4, 5, 6}, 2, 3)))
	assert.True(t, Unknown().Accepts(matrix))
	assert.True(t, TensorSignature(shapes.MakeDynamic(dtypes.Int32, shapes.DimUnknown, 3)).Accepts(matrix))
	assert.True(t, TensorSignature(shapes.UnknownRank(dtypes.Int32)).Accepts(matrix))
	assert.False(t, TensorSignature(shapes.UnknownRank(dtypes.Float32)).Accepts(matrix))
	assert.False(t, TensorSignature(shapes.MakeDynamic(dtypes.Int32, 3, shapes.DimUnknown)).Accepts(matrix))
	assert.False(t, ScalarSignature("int").Accepts(matrix))

	pair := SignatureOf(Wrap([]any{1, 2}))
	assert.True(t, pair.AsDynamic().Accepts(pair))
	assert.False(t, pair.Accepts(SignatureOf(Wrap([]any{1}))))
	assert.Equal(t, "~list[...]", pair.AsDynamic().String())
	assert.Equal(t, "~Tensor(Int32)[...]", matrix.AsDynamic().String())
}

func TestSequenceToTensor(t *testing.T) {
	t.Run("legal", func(t *testing.T) {
		got, err := SequenceToTensor(Wrap([]any{1, 2, 3}), dtypes.InvalidDType)
		require.NoError(t, err)
		assert.Equal(t, shapes.Make(dtypes.Int64, 3), got.Shape())

		got, err = SequenceToTensor(Wrap([]any{1, 2.5}), dtypes.InvalidDType)
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2.5}, tensors.Flat[float32](got))

		got, err = SequenceToTensor(Wrap(Tuple{1, 2}), dtypes.Int32)
		require.NoError(t, err)
		assert.Equal(t, []int32{1, 2}, tensors.Flat[int32](got))

		row := tensors.FromFlatDataAndDimensions([]float32{1, 2}, 2)
		got, err = SequenceToTensor(Wrap([]any{row, row}), dtypes.InvalidDType)
		require.NoError(t, err)
		assert.Equal(t, shapes.Make(dtypes.Float32, 2, 2), got.Shape())
	})

	row := tensors.FromFlatDataAndDimensions([]float32{1, 2}, 2)
	for name, tc := range map[string]struct {
		raw    any
		reason string
	}{
		"empty":        {[]any{}, "empty sequence"},
		"nested":       {[]any{1, []any{2}}, "nested list at position 1"},
		"mixed":        {[]any{row, 1}, "mixes tensors and scalars"},
		"string":       {[]any{1, "a"}, "non-numeric element of type 'str' at position 1"},
		"shapes":       {[]any{row, tensors.FromScalar(float32(1))}, "element 1 has shape (Float32), expected (Float32)[2]"},
		"not sequence": {3, "not a sequence"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := SequenceToTensor(Wrap(tc.raw), dtypes.InvalidDType)
			require.Error(t, err)
			var unwrapErr *UnwrapError
			require.True(t, errors.As(err, &unwrapErr))
			assert.Equal(t, tc.reason, unwrapErr.Reason)
		})
	}
}

func TestMapping(t *testing.T) {
	m := NewMapping()
	require.NoError(t, m.Set("a", 1))
	require.NoError(t, m.Set(1, "one"))
	require.NoError(t, m.Set(1.0, "uno"))
	assert.Equal(t, 2, m.Len())
	v, found := m.Get(1)
	require.True(t, found)
	assert.Equal(t, "uno", v.Scalar())
	_, found = m.Get("b")
	assert.False(t, found)

	err := m.Set([]any{1}, 2)
	require.Error(t, err)
	hostErr, ok := hostlang.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "unhashable type: 'list'", hostErr.Msg)

	other := NewMapping()
	require.NoError(t, other.Set(1, "uno"))
	require.NoError(t, other.Set("a", 1))
	assert.False(t, m.Equal(other), "order matters")
	assert.True(t, Equal(Wrap(m), FromHost(ToHost(Wrap(m)))))
}
