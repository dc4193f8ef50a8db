// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/kernels"
	"github.com/gomlx/jitfallback/pkg/core/shapes"
	"github.com/gomlx/jitfallback/pkg/core/tensors"
	"github.com/gomlx/jitfallback/pkg/fallback/bridge"
	"github.com/gomlx/jitfallback/pkg/hostlang"
)

var (
	// Cast converts a tensor (or host scalar) to Params.DType.
	Cast = register(&Op{
		Name: "Cast", HostName: "cast", InputNames: []string{"x"}, ParamNames: []string{"dtype"},
		Infer: func(inputs []bridge.Signature, p Params) (bridge.Signature, error) {
			if p.DType == dtypes.InvalidDType {
				return bridge.Unknown(), hostlang.Errorf(hostlang.TypeError, "cast() missing required argument 'dtype'")
			}
			switch x := inputs[0]; {
			case x.Kind == bridge.KindTensor:
				return bridge.TensorSignature(x.Shape.WithDType(p.DType)), nil
			case isNumericScalar(x):
				return bridge.TensorSignature(shapes.Scalar(p.DType)), nil
			}
			return bridge.TensorSignature(shapes.UnknownRank(p.DType)), nil
		},
		Exec: func(inputs []*bridge.Value, p Params) (*bridge.Value, error) {
			if p.DType == dtypes.InvalidDType {
				return nil, hostlang.Errorf(hostlang.TypeError, "cast() missing required argument 'dtype'")
			}
			t, err := hostlang.ToTensor(bridge.ToHost(inputs[0]), p.DType, dtypes.Float32)
			if err != nil {
				return nil, err
			}
			return bridge.NewTensor(t), nil
		},
	})

	// Fill creates a tensor of the given shape (a sequence of ints or a 1D integer tensor) filled
	// with a scalar value. Its dtype is the value's: host ints are Int64, host floats Float32.
	Fill = register(&Op{
		Name: "Fill", HostName: "fill", InputNames: []string{"shape", "value"},
		Infer: func(inputs []bridge.Signature, _ Params) (bridge.Signature, error) {
			dtype := valueDType(inputs[1])
			switch shape := inputs[0]; {
			case shape.Kind == bridge.KindSequence && shape.Length >= 0:
				return bridge.TensorSignature(unknownDims(dtype, shape.Length)), nil
			case shape.Kind == bridge.KindTensor && shape.Shape.Rank() == 1 && shape.Shape.Dimensions[0] >= 0:
				return bridge.TensorSignature(unknownDims(dtype, shape.Shape.Dimensions[0])), nil
			}
			return bridge.TensorSignature(shapes.UnknownRank(dtype)), nil
		},
		Exec: func(inputs []*bridge.Value, _ Params) (*bridge.Value, error) {
			dims, err := dimsOf("fill", inputs[0])
			if err != nil {
				return nil, err
			}
			value, err := hostlang.ToTensor(bridge.ToHost(inputs[1]), dtypes.InvalidDType, dtypes.Float32)
			if err != nil {
				return nil, err
			}
			out, err := kernels.Fill(dims, value)
			if err != nil {
				return nil, hostlang.FromKernelError(err)
			}
			return bridge.NewTensor(out), nil
		},
	})

	// Shape returns the dimensions of a tensor as a host tuple of ints.
	Shape = register(&Op{
		Name: "Shape", HostName: "shape", InputNames: []string{"x"},
		Infer: func(inputs []bridge.Signature, _ Params) (bridge.Signature, error) {
			x := inputs[0]
			if x.Kind != bridge.KindTensor && x.Kind != bridge.KindAny {
				return bridge.Unknown(), hostlang.Errorf(hostlang.TypeError, "shape(): expected a tensor, got '%s'", x.TypeName)
			}
			if x.Kind == bridge.KindAny || x.Shape.RankUnknown {
				sig := bridge.SequenceSignature(true).AsDynamic()
				return sig, nil
			}
			elems := make([]bridge.Signature, x.Shape.Rank())
			for i := range elems {
				elems[i] = bridge.ScalarSignature("int")
			}
			sig := bridge.SequenceSignature(true, elems...)
			sig.Dynamic = x.Shape.IsDynamic()
			return sig, nil
		},
		Exec: func(inputs []*bridge.Value, _ Params) (*bridge.Value, error) {
			t, err := tensorInput("shape", inputs[0])
			if err != nil {
				return nil, err
			}
			return bridge.FromHost(hostlang.ShapeTuple(t.Shape().Dimensions)), nil
		},
	})

	// MakeTensor implements jit.tensor(data, dtype).
	MakeTensor = register(&Op{
		Name: "MakeTensor", InputNames: []string{"data"}, ParamNames: []string{"dtype"},
		Infer: func(inputs []bridge.Signature, p Params) (bridge.Signature, error) {
			return inferMakeTensor(inputs[0], p.DType)
		},
		Exec: func(inputs []*bridge.Value, p Params) (*bridge.Value, error) {
			args := []hostlang.Object{bridge.ToHost(inputs[0])}
			if p.DType != dtypes.InvalidDType {
				args = append(args, &hostlang.DType{DType: p.DType})
			}
			out, err := hostlang.JITTensor(args, nil)
			if err != nil {
				return nil, err
			}
			return bridge.FromHost(out), nil
		},
	})

	MakeTuple = register(makeSequenceOp("MakeTuple", true))
	MakeList  = register(makeSequenceOp("MakeList", false))

	// TupleGetItem indexes a tuple or list with a constant index.
	TupleGetItem = register(&Op{
		Name: "TupleGetItem", InputNames: []string{"sequence"}, ParamNames: []string{"index"},
		Infer: func(inputs []bridge.Signature, p Params) (bridge.Signature, error) {
			seq := inputs[0]
			if seq.Kind != bridge.KindSequence || seq.Length < 0 {
				return bridge.Unknown(), nil
			}
			index, err := kernels.NormalizeIndex(p.Index, seq.Length, seq.TypeName)
			if err != nil {
				return bridge.Unknown(), hostlang.Errorf(hostlang.IndexError, "%s index out of range", seq.TypeName)
			}
			if len(seq.Elements) != seq.Length {
				return bridge.Unknown(), nil
			}
			return seq.Elements[index], nil
		},
		Exec: func(inputs []*bridge.Value, p Params) (*bridge.Value, error) {
			seq := inputs[0]
			if seq.Kind() != bridge.KindSequence {
				return nil, hostlang.Errorf(hostlang.TypeError, "'%s' object is not subscriptable", seq.TypeName())
			}
			index, err := kernels.NormalizeIndex(p.Index, seq.Len(), seq.TypeName())
			if err != nil {
				return nil, hostlang.Errorf(hostlang.IndexError, "%s index out of range", seq.TypeName())
			}
			return seq.Elements()[index], nil
		},
	})

	// TensorGetItem returns x[index] along the first axis.
	TensorGetItem = register(&Op{
		Name: "TensorGetItem", InputNames: []string{"x"}, ParamNames: []string{"index"},
		Infer: func(inputs []bridge.Signature, p Params) (bridge.Signature, error) {
			x := inputs[0]
			if x.Shape.RankUnknown {
				return bridge.TensorSignature(x.Shape), nil
			}
			if x.Shape.Rank() == 0 {
				return bridge.Unknown(), hostlang.Errorf(hostlang.IndexError, "invalid index of a 0-dim tensor")
			}
			if dim := x.Shape.Dimensions[0]; dim != shapes.DimUnknown {
				if _, err := kernels.NormalizeIndex(p.Index, dim, "tensor"); err != nil {
					return bridge.Unknown(), hostlang.Errorf(hostlang.IndexError,
						"index %d is out of bounds for axis 0 with size %d", p.Index, dim)
				}
			}
			return bridge.TensorSignature(shapes.MakeDynamic(x.DType(), x.Shape.Dimensions[1:]...)), nil
		},
		Exec: func(inputs []*bridge.Value, p Params) (*bridge.Value, error) {
			t, err := tensorInput("getitem", inputs[0])
			if err != nil {
				return nil, err
			}
			out, err := kernels.GetItem(t, p.Index)
			if err != nil {
				return nil, hostlang.FromKernelError(err)
			}
			return bridge.NewTensor(out), nil
		},
	})

	// TensorSetItem returns a copy of x with x[index] (first axis) replaced by value.
	TensorSetItem = register(&Op{
		Name: "TensorSetItem", InputNames: []string{"x", "value"}, ParamNames: []string{"index"},
		Infer: func(inputs []bridge.Signature, p Params) (bridge.Signature, error) {
			x := inputs[0]
			if !x.Shape.RankUnknown && x.Shape.Rank() == 0 {
				return bridge.Unknown(), hostlang.Errorf(hostlang.IndexError, "invalid index of a 0-dim tensor")
			}
			return bridge.TensorSignature(x.Shape), nil
		},
		Exec: func(inputs []*bridge.Value, p Params) (*bridge.Value, error) {
			t, err := tensorInput("setitem", inputs[0])
			if err != nil {
				return nil, err
			}
			value, err := hostlang.ToTensor(bridge.ToHost(inputs[1]), t.DType(), t.DType())
			if err != nil {
				return nil, err
			}
			out, err := kernels.SetItem(t, value, p.Index)
			if err != nil {
				return nil, hostlang.FromKernelError(err)
			}
			return bridge.NewTensor(out), nil
		},
	})

	// ArgMaxWithValue returns the tuple (indices, values) of the maxima along Params.Axis.
	ArgMaxWithValue = register(&Op{
		Name: "ArgMaxWithValue", HostName: "arg_max_with_value", InputNames: []string{"x"}, ParamNames: []string{"axis"},
		Infer: func(inputs []bridge.Signature, p Params) (bridge.Signature, error) {
			x := inputs[0]
			reduced, err := removeAxes(x.Shape, []int{p.Axis})
			if err != nil {
				return bridge.Unknown(), err
			}
			return bridge.SequenceSignature(true,
				bridge.TensorSignature(reduced.WithDType(dtypes.Int32)),
				bridge.TensorSignature(reduced.WithDType(x.DType()))), nil
		},
		Exec: func(inputs []*bridge.Value, p Params) (*bridge.Value, error) {
			t, err := tensorInput("arg_max_with_value", inputs[0])
			if err != nil {
				return nil, err
			}
			indices, values, err := kernels.ArgMaxWithValue(t, p.Axis)
			if err != nil {
				return nil, hostlang.FromKernelError(err)
			}
			return bridge.NewSequence(true, bridge.NewTensor(indices), bridge.NewTensor(values)), nil
		},
	})

	// Concat concatenates tensors along Params.Axis.
	Concat = register(&Op{
		Name: "Concat", HostName: "concat", InputNames: []string{"tensors"}, Variadic: true, ParamNames: []string{"axis"},
		Infer: func(inputs []bridge.Signature, p Params) (bridge.Signature, error) {
			first := inputs[0]
			if first.Kind != bridge.KindTensor || first.Shape.RankUnknown {
				return bridge.TensorSignature(shapes.UnknownRank(first.DType())), nil
			}
			rank := first.Shape.Rank()
			axis := p.Axis
			if axis < 0 {
				axis += rank
			}
			if axis < 0 || axis >= rank {
				return bridge.Unknown(), hostlang.Errorf(hostlang.ValueError,
					"axis %d is out of bounds for array of dimension %d", p.Axis, rank)
			}
			dims := slices.Clone(first.Shape.Dimensions)
			for _, in := range inputs[1:] {
				if in.Kind != bridge.KindTensor || in.Shape.Rank() != rank {
					dims[axis] = shapes.DimUnknown
					continue
				}
				if dims[axis] != shapes.DimUnknown && in.Shape.Dimensions[axis] != shapes.DimUnknown {
					dims[axis] += in.Shape.Dimensions[axis]
				} else {
					dims[axis] = shapes.DimUnknown
				}
			}
			return bridge.TensorSignature(shapes.MakeDynamic(first.DType(), dims...)), nil
		},
		Exec: func(inputs []*bridge.Value, p Params) (*bridge.Value, error) {
			ts := make([]*tensors.Tensor, len(inputs))
			for i, in := range inputs {
				var err error
				if ts[i], err = tensorInput("concat", in); err != nil {
					return nil, err
				}
			}
			out, err := kernels.Concat(ts, p.Axis)
			if err != nil {
				return nil, hostlang.FromKernelError(err)
			}
			return bridge.NewTensor(out), nil
		},
	})

	// GatherNd gathers slices of x indexed by the last axis of indices.
	GatherNd = register(&Op{
		Name: "GatherNd", HostName: "gather_nd", InputNames: []string{"x", "indices"},
		Infer: func(inputs []bridge.Signature, _ Params) (bridge.Signature, error) {
			x, indices := inputs[0], inputs[1]
			if indices.Kind == bridge.KindTensor && indices.DType() != dtypes.InvalidDType &&
				(indices.DType().IsFloat() || indices.DType() == dtypes.Bool) {
				return bridge.Unknown(), hostlang.Errorf(hostlang.TypeError, "gather_nd indices must be integers, got %s", indices.DType())
			}
			if x.Shape.RankUnknown || indices.Shape.RankUnknown || indices.Shape.Rank() == 0 {
				return bridge.TensorSignature(shapes.UnknownRank(x.DType())), nil
			}
			idxDims := indices.Shape.Dimensions
			depth := idxDims[len(idxDims)-1]
			if depth == shapes.DimUnknown {
				return bridge.TensorSignature(shapes.UnknownRank(x.DType())), nil
			}
			if depth > x.Shape.Rank() {
				return bridge.Unknown(), hostlang.Errorf(hostlang.ValueError,
					"gather_nd index depth %d larger than rank %d", depth, x.Shape.Rank())
			}
			dims := slices.Concat(idxDims[:len(idxDims)-1], x.Shape.Dimensions[depth:])
			return bridge.TensorSignature(shapes.MakeDynamic(x.DType(), dims...)), nil
		},
		Exec: func(inputs []*bridge.Value, _ Params) (*bridge.Value, error) {
			x, err := tensorInput("gather_nd", inputs[0])
			if err != nil {
				return nil, err
			}
			indices, err := hostlang.ToTensor(bridge.ToHost(inputs[1]), dtypes.InvalidDType, dtypes.Float32)
			if err != nil {
				return nil, err
			}
			out, err := kernels.GatherNd(x, indices)
			if err != nil {
				return nil, hostlang.FromKernelError(err)
			}
			return bridge.NewTensor(out), nil
		},
	})

	// NonZero returns the Int64 coordinates of the non-zero elements: its first output
	// dimension depends on the data.
	NonZero = register(&Op{
		Name: "NonZero", HostName: "nonzero", InputNames: []string{"x"},
		Infer: func(inputs []bridge.Signature, _ Params) (bridge.Signature, error) {
			x := inputs[0]
			rank := shapes.DimUnknown
			if !x.Shape.RankUnknown && x.Kind == bridge.KindTensor {
				rank = x.Shape.Rank()
			}
			sig := bridge.TensorSignature(shapes.MakeDynamic(dtypes.Int64, shapes.DimUnknown, rank))
			sig.Dynamic = true
			return sig, nil
		},
		Exec: func(inputs []*bridge.Value, _ Params) (*bridge.Value, error) {
			x, err := tensorInput("nonzero", inputs[0])
			if err != nil {
				return nil, err
			}
			return bridge.NewTensor(kernels.NonZero(x)), nil
		},
	})

	// ReduceSum sums over Params.Axes, all axes if empty.
	ReduceSum = register(&Op{
		Name: "ReduceSum", HostName: "reduce_sum", InputNames: []string{"x"}, ParamNames: []string{"axes"},
		Infer: func(inputs []bridge.Signature, p Params) (bridge.Signature, error) {
			x := inputs[0]
			dtype := x.DType()
			if dtype == dtypes.Bool {
				dtype = dtypes.Int64
			}
			if len(p.Axes) == 0 {
				if x.Kind == bridge.KindTensor || isNumericScalar(x) {
					return bridge.TensorSignature(shapes.Scalar(dtype)), nil
				}
				return bridge.TensorSignature(shapes.UnknownRank(dtype)), nil
			}
			reduced, err := removeAxes(x.Shape, p.Axes)
			if err != nil {
				return bridge.Unknown(), err
			}
			return bridge.TensorSignature(reduced.WithDType(dtype)), nil
		},
		Exec: func(inputs []*bridge.Value, p Params) (*bridge.Value, error) {
			x, err := tensorInput("reduce_sum", inputs[0])
			if err != nil {
				return nil, err
			}
			out, err := kernels.ReduceSum(x, p.Axes...)
			if err != nil {
				return nil, hostlang.FromKernelError(err)
			}
			return bridge.NewTensor(out), nil
		},
	})

	// Identity marks its input mutable: consumers treat it as only known at run time.
	// It implements jit.mutable.
	Identity = register(&Op{
		Name: "Identity", InputNames: []string{"obj"}, ParamNames: []string{"dynamic_len"},
		Infer: func(inputs []bridge.Signature, p Params) (bridge.Signature, error) {
			x := inputs[0]
			sig := x.AsDynamic()
			if x.Kind == bridge.KindSequence && !p.DynamicLength {
				sig.Length = x.Length
			}
			return sig, nil
		},
		Exec: func(inputs []*bridge.Value, p Params) (*bridge.Value, error) {
			return bridge.Mutable(inputs[0], p.DynamicLength), nil
		},
	})
)

func makeSequenceOp(name string, tuple bool) *Op {
	return &Op{
		Name: name, InputNames: []string{"elements"}, Variadic: true,
		Infer: func(inputs []bridge.Signature, _ Params) (bridge.Signature, error) {
			return bridge.SequenceSignature(tuple, inputs...), nil
		},
		Exec: func(inputs []*bridge.Value, _ Params) (*bridge.Value, error) {
			return bridge.NewSequence(tuple, inputs...), nil
		},
	}
}

// valueDType is the dtype a fill value takes.
func valueDType(value bridge.Signature) dtypes.DType {
	if value.Kind == bridge.KindScalar && value.DType().IsFloat() {
		return dtypes.Float32
	}
	return value.DType()
}

func unknownDims(dtype dtypes.DType, rank int) shapes.Shape {
	dims := make([]int, rank)
	for i := range dims {
		dims[i] = shapes.DimUnknown
	}
	return shapes.MakeDynamic(dtype, dims...)
}

// dimsOf reads dimensions from a host sequence of ints or an integer tensor of rank <= 1.
func dimsOf(opName string, v *bridge.Value) ([]int, error) {
	switch v.Kind() {
	case bridge.KindTensor:
		t := v.Tensor()
		if t.Rank() > 1 || t.DType().IsFloat() || t.DType() == dtypes.Bool {
			return nil, hostlang.Errorf(hostlang.TypeError, "%s(): shape must be a 1D integer tensor, got %s", opName, t.Shape())
		}
		dims := make([]int, 0, t.Size())
		for _, d := range tensors.ToInt64s(t) {
			dims = append(dims, int(d))
		}
		return dims, nil
	case bridge.KindSequence:
		dims := make([]int, v.Len())
		for i, e := range v.Elements() {
			d, ok := e.Scalar().(int64)
			if !ok || e.Kind() != bridge.KindScalar {
				return nil, hostlang.Errorf(hostlang.TypeError, "%s(): shape elements must be integers, got '%s'", opName, e.TypeName())
			}
			dims[i] = int(d)
		}
		return dims, nil
	case bridge.KindScalar:
		if d, ok := v.Scalar().(int64); ok {
			return []int{int(d)}, nil
		}
	}
	return nil, hostlang.Errorf(hostlang.TypeError, "%s(): invalid shape of type '%s'", opName, v.TypeName())
}

func tensorInput(opName string, v *bridge.Value) (*tensors.Tensor, error) {
	if v.Kind() != bridge.KindTensor {
		return nil, hostlang.Errorf(hostlang.TypeError, "%s(): expected a tensor, got '%s'", opName, v.TypeName())
	}
	return v.Tensor(), nil
}

// removeAxes returns the shape without the given axes, for reductions.
func removeAxes(shape shapes.Shape, axes []int) (shapes.Shape, error) {
	if shape.RankUnknown {
		return shapes.UnknownRank(shape.DType), nil
	}
	rank := shape.Rank()
	drop := make([]bool, rank)
	for _, axis := range axes {
		adjusted := axis
		if adjusted < 0 {
			adjusted += rank
		}
		if rank == 0 && (axis == 0 || axis == -1) {
			continue
		}
		if adjusted < 0 || adjusted >= rank {
			return shapes.Invalid(), hostlang.Errorf(hostlang.ValueError, "axis %d is out of bounds for array of dimension %d", axis, rank)
		}
		drop[adjusted] = true
	}
	var dims []int
	for i, d := range shape.Dimensions {
		if !drop[i] {
			dims = append(dims, d)
		}
	}
	return shapes.MakeDynamic(shape.DType, dims...), nil
}

// inferMakeTensor follows jit.tensor: a legal sequence becomes a tensor with one more axis, host
// floats default to Float32.
func inferMakeTensor(data bridge.Signature, dtype dtypes.DType) (bridge.Signature, error) {
	result := func(shape shapes.Shape, inferred dtypes.DType) (bridge.Signature, error) {
		if dtype != dtypes.InvalidDType {
			inferred = dtype
		}
		return bridge.TensorSignature(shape.WithDType(inferred)), nil
	}
	switch data.Kind {
	case bridge.KindTensor:
		return result(data.Shape, data.DType())
	case bridge.KindScalar:
		if !isNumericScalar(data) {
			return bridge.Unknown(), hostlang.Errorf(hostlang.TypeError, "cannot convert '%s' object to a tensor", data.TypeName)
		}
		return result(shapes.Scalar(dtypes.InvalidDType), valueDType(data))
	case bridge.KindSequence:
		if data.Length < 0 {
			return result(shapes.UnknownRank(dtypes.InvalidDType), dtypes.InvalidDType)
		}
		if len(data.Elements) != data.Length {
			// Mutable sequence: the length is known, the elements are assumed to be scalars.
			return result(shapes.MakeDynamic(dtypes.InvalidDType, data.Length), dtypes.InvalidDType)
		}
		if data.Length == 0 {
			return result(shapes.Make(dtypes.InvalidDType, 0), dtypes.Float32)
		}
		first := data.Elements[0]
		inferred := dtypes.InvalidDType
		for _, e := range data.Elements {
			switch {
			case isNumericScalar(e) && first.Kind == bridge.KindScalar:
				elemDType := valueDType(e)
				if inferred == dtypes.InvalidDType {
					inferred = elemDType
				} else {
					inferred = shapes.PromoteDTypes(inferred, elemDType)
				}
			case e.Kind == bridge.KindTensor && first.Kind == bridge.KindTensor && e.Shape.Equal(first.Shape):
				inferred = first.DType()
			default:
				return result(shapes.UnknownRank(dtypes.InvalidDType), dtypes.InvalidDType)
			}
		}
		dims := []int{data.Length}
		if first.Kind == bridge.KindTensor {
			if first.Shape.RankUnknown {
				return result(shapes.UnknownRank(dtypes.InvalidDType), inferred)
			}
			dims = append(dims, first.Shape.Dimensions...)
		}
		return result(shapes.MakeDynamic(dtypes.InvalidDType, dims...), inferred)
	}
	return result(shapes.UnknownRank(dtypes.InvalidDType), dtypes.InvalidDType)
}
