// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/kernels"
	"github.com/gomlx/jitfallback/pkg/core/shapes"
	"github.com/gomlx/jitfallback/pkg/core/tensors"
	"github.com/gomlx/jitfallback/pkg/fallback/bridge"
	"github.com/gomlx/jitfallback/pkg/hostlang"
)

// Binary operators: the host operator symbol each op implements.
var binarySymbols = map[kernels.BinaryOp]string{
	kernels.Add: "+", kernels.Sub: "-", kernels.Mul: "*", kernels.Div: "/", kernels.FloorDiv: "//",
	kernels.Mod: "%", kernels.Pow: "**",
	kernels.Equal: "==", kernels.NotEqual: "!=", kernels.Less: "<", kernels.LessEqual: "<=",
	kernels.Greater: ">", kernels.GreaterEqual: ">=",
}

var (
	Add          = registerBinary(kernels.Add, "add")
	Sub          = registerBinary(kernels.Sub, "sub")
	Mul          = registerBinary(kernels.Mul, "mul")
	Div          = registerBinary(kernels.Div, "div")
	FloorDiv     = registerBinary(kernels.FloorDiv, "floor_div")
	Mod          = registerBinary(kernels.Mod, "mod")
	Pow          = registerBinary(kernels.Pow, "pow")
	Maximum      = registerBinary(kernels.Maximum, "maximum")
	Minimum      = registerBinary(kernels.Minimum, "minimum")
	Equal        = registerBinary(kernels.Equal, "equal")
	NotEqual     = registerBinary(kernels.NotEqual, "not_equal")
	Less         = registerBinary(kernels.Less, "less")
	LessEqual    = registerBinary(kernels.LessEqual, "less_equal")
	Greater      = registerBinary(kernels.Greater, "greater")
	GreaterEqual = registerBinary(kernels.GreaterEqual, "greater_equal")

	Neg     = registerUnary(kernels.Neg, "neg")
	Abs     = registerUnary(kernels.Abs, "abs")
	Tanh    = registerUnary(kernels.Tanh, "tanh")
	Exp     = registerUnary(kernels.Exp, "exp")
	Log     = registerUnary(kernels.Log, "log")
	Sqrt    = registerUnary(kernels.Sqrt, "sqrt")
	Relu    = registerUnary(kernels.Relu, "relu")
	Sigmoid = registerUnary(kernels.Sigmoid, "sigmoid")
)

// BinaryForSymbol returns the op implementing a host operator ("+", "<=", ...).
func BinaryForSymbol(symbol string) (*Op, bool) {
	for kernelOp, s := range binarySymbols {
		if s == symbol {
			return MustGet(kernelOp.String()), true
		}
	}
	return nil, false
}

func registerBinary(kernelOp kernels.BinaryOp, hostName string) *Op {
	return register(&Op{
		Name:       kernelOp.String(),
		HostName:   hostName,
		InputNames: []string{"x", "y"},
		Infer: func(inputs []bridge.Signature, _ Params) (bridge.Signature, error) {
			return inferBinary(kernelOp, inputs[0], inputs[1])
		},
		Exec: func(inputs []*bridge.Value, _ Params) (*bridge.Value, error) {
			return execBinary(kernelOp, inputs[0], inputs[1])
		},
	})
}

// isNumericScalar returns whether the signature is a host bool, int or float.
func isNumericScalar(s bridge.Signature) bool {
	return s.Kind == bridge.KindScalar && s.DType() != dtypes.InvalidDType
}

func inferBinary(op kernels.BinaryOp, a, b bridge.Signature) (bridge.Signature, error) {
	switch {
	case isNumericScalar(a) && isNumericScalar(b):
		return scalarBinarySignature(op, a.DType(), b.DType()), nil

	case a.Kind == bridge.KindTensor && (b.Kind == bridge.KindTensor || isNumericScalar(b)),
		b.Kind == bridge.KindTensor && isNumericScalar(a):
		dtype := kernels.BinaryResultDType(op, a.DType(), b.DType(), a.Kind == bridge.KindScalar, b.Kind == bridge.KindScalar)
		shape, err := broadcastShapes(a.Shape, b.Shape)
		if err != nil {
			return bridge.Unknown(), err
		}
		return bridge.TensorSignature(shape.WithDType(dtype)), nil

	case a.Kind == bridge.KindTensor || b.Kind == bridge.KindTensor:
		// The other operand is only known at run time: the result is a tensor or an error.
		dtype := dtypes.InvalidDType
		if op.IsComparison() {
			dtype = dtypes.Bool
		}
		return bridge.TensorSignature(shapes.UnknownRank(dtype)), nil
	}
	return bridge.Unknown(), nil
}

// scalarBinarySignature is the type of "a op b" for host scalars, following the host
// arithmetic rules: bool arithmetic yields int, true division yields float.
func scalarBinarySignature(op kernels.BinaryOp, a, b dtypes.DType) bridge.Signature {
	if op.IsComparison() {
		return bridge.ScalarSignature("bool")
	}
	if op == kernels.Maximum || op == kernels.Minimum {
		if a == b {
			return bridge.ScalarSignature(hostScalarName(a))
		}
		return bridge.Unknown()
	}
	if a.IsFloat() || b.IsFloat() || op == kernels.Div {
		return bridge.ScalarSignature("float")
	}
	return bridge.ScalarSignature("int")
}

func hostScalarName(dtype dtypes.DType) string {
	switch {
	case dtype == dtypes.Bool:
		return "bool"
	case dtype.IsFloat():
		return "float"
	}
	return "int"
}

// broadcastShapes is the numpy broadcast of two possibly partially known shapes. Only fully
// known shapes can be reported as incompatible.
func broadcastShapes(a, b shapes.Shape) (shapes.Shape, error) {
	if a.RankUnknown || b.RankUnknown {
		return shapes.UnknownRank(dtypes.InvalidDType), nil
	}
	if a.IsFullyKnown() && b.IsFullyKnown() {
		dims, err := kernels.BroadcastDimensions(a.Dimensions, b.Dimensions)
		if err != nil {
			return shapes.Invalid(), hostlang.FromKernelError(err)
		}
		return shapes.Make(dtypes.InvalidDType, dims...), nil
	}
	rank := max(len(a.Dimensions), len(b.Dimensions))
	dims := make([]int, rank)
	for i := range rank {
		da, db := 1, 1
		if j := i - (rank - len(a.Dimensions)); j >= 0 {
			da = a.Dimensions[j]
		}
		if j := i - (rank - len(b.Dimensions)); j >= 0 {
			db = b.Dimensions[j]
		}
		switch {
		case da == db:
			dims[i] = da
		case da == 1:
			dims[i] = db
		case db == 1:
			dims[i] = da
		case da == shapes.DimUnknown:
			dims[i] = db
		case db == shapes.DimUnknown:
			dims[i] = da
		default:
			dims[i] = shapes.DimUnknown
		}
	}
	return shapes.MakeDynamic(dtypes.InvalidDType, dims...), nil
}

func execBinary(op kernels.BinaryOp, a, b *bridge.Value) (*bridge.Value, error) {
	hostA, hostB := bridge.ToHost(a), bridge.ToHost(b)
	var (
		out hostlang.Object
		err error
	)
	switch {
	case op == kernels.Maximum || op == kernels.Minimum:
		out, err = extremum(op, a, b)
	case op.IsComparison():
		out, err = hostlang.Compare(binarySymbols[op], hostA, hostB)
	default:
		out, err = hostlang.BinaryOp(binarySymbols[op], hostA, hostB)
	}
	if err != nil {
		return nil, err
	}
	return bridge.FromHost(out), nil
}

// extremum implements Maximum and Minimum: elementwise for tensors, host max/min for scalars.
func extremum(op kernels.BinaryOp, a, b *bridge.Value) (hostlang.Object, error) {
	if a.Kind() == bridge.KindScalar && b.Kind() == bridge.KindScalar {
		cmp := ">"
		if op == kernels.Minimum {
			cmp = "<"
		}
		bWins, err := hostlang.Compare(cmp, bridge.ToHost(b), bridge.ToHost(a))
		if err != nil {
			return nil, err
		}
		if bWins == hostlang.Bool(true) {
			return bridge.ToHost(b), nil
		}
		return bridge.ToHost(a), nil
	}
	x, xWeak, err := operand(op.String(), a)
	if err != nil {
		return nil, err
	}
	y, yWeak, err := operand(op.String(), b)
	if err != nil {
		return nil, err
	}
	outDType := kernels.BinaryResultDType(op, x.DType(), y.DType(), xWeak, yWeak)
	out, err := kernels.Binary(op, x, y, outDType)
	if err != nil {
		return nil, hostlang.FromKernelError(err)
	}
	return &hostlang.Tensor{Value: out, NumPy: a.IsNumPy() || b.IsNumPy()}, nil
}

// operand converts an op input to a tensor. Host scalars are weak: they adopt the dtype of the
// other operand.
func operand(opName string, v *bridge.Value) (t *tensors.Tensor, weak bool, err error) {
	switch v.Kind() {
	case bridge.KindTensor:
		return v.Tensor(), false, nil
	case bridge.KindScalar, bridge.KindSequence:
		t, err = hostlang.ToTensor(bridge.ToHost(v), dtypes.InvalidDType, dtypes.Float64)
		if err == nil {
			return t, v.Kind() == bridge.KindScalar, nil
		}
	}
	return nil, false, hostlang.Errorf(hostlang.TypeError, "%s(): unsupported operand type '%s'", opName, v.TypeName())
}

func registerUnary(kernelOp kernels.UnaryOp, hostName string) *Op {
	return register(&Op{
		Name:       kernelOp.String(),
		HostName:   hostName,
		InputNames: []string{"x"},
		Infer: func(inputs []bridge.Signature, _ Params) (bridge.Signature, error) {
			return inferUnary(kernelOp, inputs[0]), nil
		},
		Exec: func(inputs []*bridge.Value, _ Params) (*bridge.Value, error) {
			return execUnary(kernelOp, inputs[0])
		},
	})
}

// keepsHostScalars returns whether the op applied to a host scalar yields a host scalar, as
// "-x" and "abs(x)" do. The other unary ops convert host scalars to tensors.
func keepsHostScalars(op kernels.UnaryOp) bool {
	return op == kernels.Neg || op == kernels.Abs
}

func inferUnary(op kernels.UnaryOp, x bridge.Signature) bridge.Signature {
	switch {
	case isNumericScalar(x) && keepsHostScalars(op):
		if x.DType() == dtypes.Bool {
			return bridge.ScalarSignature("int")
		}
		return bridge.ScalarSignature(x.TypeName)
	case isNumericScalar(x):
		dtype := dtypes.Int64
		if x.DType().IsFloat() {
			dtype = dtypes.Float32
		} else if x.DType() == dtypes.Bool {
			dtype = dtypes.Bool
		}
		return bridge.TensorSignature(shapes.Scalar(kernels.UnaryResultDType(op, dtype)))
	case x.Kind == bridge.KindTensor:
		return bridge.TensorSignature(x.Shape.WithDType(kernels.UnaryResultDType(op, x.DType())))
	}
	return bridge.Unknown()
}

func execUnary(op kernels.UnaryOp, x *bridge.Value) (*bridge.Value, error) {
	if x.Kind() == bridge.KindScalar && keepsHostScalars(op) {
		host := bridge.ToHost(x)
		if op == kernels.Neg {
			out, err := hostlang.UnaryOp("-", host)
			if err != nil {
				return nil, err
			}
			return bridge.FromHost(out), nil
		}
		switch v := host.(type) {
		case hostlang.Int:
			return bridge.Wrap(max(int64(v), -int64(v))), nil
		case hostlang.Bool:
			if v {
				return bridge.Wrap(1), nil
			}
			return bridge.Wrap(0), nil
		case hostlang.Float:
			if v < 0 {
				return bridge.Wrap(-float64(v)), nil
			}
			return bridge.Wrap(float64(v)), nil
		}
		return nil, hostlang.Errorf(hostlang.TypeError, "bad operand type for abs(): '%s'", x.TypeName())
	}
	var t *tensors.Tensor
	switch x.Kind() {
	case bridge.KindTensor:
		t = x.Tensor()
	case bridge.KindScalar:
		var err error
		if t, err = hostlang.ToTensor(bridge.ToHost(x), dtypes.InvalidDType, dtypes.Float32); err != nil {
			return nil, err
		}
	default:
		if op == kernels.Abs {
			return nil, hostlang.Errorf(hostlang.TypeError, "bad operand type for abs(): '%s'", x.TypeName())
		}
		return nil, hostlang.Errorf(hostlang.TypeError, "%s(): expected a tensor, got '%s'", op, x.TypeName())
	}
	out, err := kernels.Unary(op, t)
	if err != nil {
		return nil, hostlang.FromKernelError(err)
	}
	result := bridge.NewTensor(out)
	if x.IsNumPy() {
		result = bridge.FromHost(&hostlang.Tensor{Value: out, NumPy: true})
	}
	return result, nil
}
