// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/shapes"
	"github.com/gomlx/jitfallback/pkg/core/tensors"
	"gonum.org/v1/gonum/floats"
)

// BinaryOp enumerates the elementwise binary kernels.
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	FloorDiv
	Mod
	Pow
	Maximum
	Minimum
	Equal
	NotEqual
	Less
	LessEqual
	Greater
	GreaterEqual
	LogicalAnd
	LogicalOr
)

var binaryOpNames = [...]string{"Add", "Sub", "Mul", "Div", "FloorDiv", "Mod", "Pow", "Maximum", "Minimum",
	"Equal", "NotEqual", "Less", "LessEqual", "Greater", "GreaterEqual", "LogicalAnd", "LogicalOr"}

func (op BinaryOp) String() string {
	if int(op) < 0 || int(op) >= len(binaryOpNames) {
		return fmt.Sprintf("BinaryOp(%d)", int(op))
	}
	return binaryOpNames[op]
}

// IsComparison returns whether the op returns booleans.
func (op BinaryOp) IsComparison() bool {
	return op >= Equal
}

// UnaryOp enumerates the elementwise unary kernels.
type UnaryOp int

const (
	Neg UnaryOp = iota
	Abs
	Relu
	LogicalNot
	Tanh
	Exp
	Log
	Sqrt
	Sigmoid
	Floor
	Ceil
	IsInf
	IsNaN
	IsFinite
)

var unaryOpNames = [...]string{"Neg", "Abs", "Relu", "LogicalNot", "Tanh", "Exp", "Log", "Sqrt", "Sigmoid",
	"Floor", "Ceil", "IsInf", "IsNaN", "IsFinite"}

func (op UnaryOp) String() string {
	if int(op) < 0 || int(op) >= len(unaryOpNames) {
		return fmt.Sprintf("UnaryOp(%d)", int(op))
	}
	return unaryOpNames[op]
}

// BinaryResultDType returns the dtype of `a op b`.
//
// A "weak" operand is a host scalar (Python int/float): it adopts the dtype of the tensor on
// the other side, except that a weak float combined with an integer tensor yields Float32.
// Division of integers yields Float32.
func BinaryResultDType(op BinaryOp, a, b dtypes.DType, aWeak, bWeak bool) dtypes.DType {
	if op.IsComparison() {
		return dtypes.Bool
	}
	var base dtypes.DType
	switch {
	case aWeak && !bWeak:
		base = weakPromotion(b, a)
	case bWeak && !aWeak:
		base = weakPromotion(a, b)
	default:
		base = shapes.PromoteDTypes(a, b)
	}
	if base == dtypes.InvalidDType {
		return base
	}
	if base == dtypes.Bool {
		base = dtypes.Int64
	}
	if op == Div && !base.IsFloat() {
		return dtypes.Float32
	}
	return base
}

func weakPromotion(strong, weak dtypes.DType) dtypes.DType {
	if strong == dtypes.InvalidDType {
		return dtypes.InvalidDType
	}
	if weak.IsFloat() && !strong.IsFloat() {
		return dtypes.Float32
	}
	return strong
}

// UnaryResultDType returns the dtype of `op(x)`.
func UnaryResultDType(op UnaryOp, x dtypes.DType) dtypes.DType {
	switch op {
	case LogicalNot, IsInf, IsNaN, IsFinite:
		return dtypes.Bool
	case Neg, Abs, Relu:
		if x == dtypes.Bool {
			return dtypes.Int64
		}
		return x
	}
	if x.IsFloat() || x == dtypes.InvalidDType {
		return x
	}
	return dtypes.Float32
}

// BroadcastDimensions returns the numpy-style broadcast of two fully known dimensions.
func BroadcastDimensions(a, b []int) ([]int, error) {
	rank := max(len(a), len(b))
	out := make([]int, rank)
	for ii := range rank {
		da, db := 1, 1
		if axis := ii - (rank - len(a)); axis >= 0 {
			da = a[axis]
		}
		if axis := ii - (rank - len(b)); axis >= 0 {
			db = b[axis]
		}
		switch {
		case da == db:
			out[ii] = da
		case da == 1:
			out[ii] = db
		case db == 1:
			out[ii] = da
		default:
			return nil, valueErrorf("operands could not be broadcast together with shapes %s %s", pyShape(a), pyShape(b))
		}
	}
	return out, nil
}

// pyShape formats dimensions as a Python tuple, e.g. "(4,)".
func pyShape(dims []int) string {
	if len(dims) == 1 {
		return fmt.Sprintf("(%d,)", dims[0])
	}
	parts := make([]string, len(dims))
	for ii, d := range dims {
		parts[ii] = fmt.Sprint(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// broadcast expands src (with srcDims right-aligned) to outDims.
func broadcast[T any](src []T, srcDims, outDims []int) []T {
	if slices.Equal(srcDims, outDims) {
		return src
	}
	size := 1
	for _, d := range outDims {
		size *= d
	}
	out := make([]T, size)
	if size == 0 {
		return out
	}
	// Strides of src for each output axis, 0 on broadcast axes.
	strides := make([]int, len(outDims))
	stride := 1
	for ii := len(outDims) - 1; ii >= 0; ii-- {
		axis := ii - (len(outDims) - len(srcDims))
		if axis < 0 {
			continue
		}
		if srcDims[axis] != 1 {
			strides[ii] = stride
		}
		stride *= srcDims[axis]
	}
	index := make([]int, len(outDims))
	srcPos := 0
	for ii := range out {
		out[ii] = src[srcPos]
		for axis := len(outDims) - 1; axis >= 0; axis-- {
			index[axis]++
			srcPos += strides[axis]
			if index[axis] < outDims[axis] {
				break
			}
			srcPos -= strides[axis] * index[axis]
			index[axis] = 0
		}
	}
	return out
}

// Binary computes `a op b` with broadcasting, producing a tensor of outDType
// (see BinaryResultDType).
func Binary(op BinaryOp, a, b *tensors.Tensor, outDType dtypes.DType) (*tensors.Tensor, error) {
	dims, err := BroadcastDimensions(a.Shape().Dimensions, b.Shape().Dimensions)
	if err != nil {
		return nil, err
	}
	inputDType := shapes.PromoteDTypes(a.DType(), b.DType())
	integerMath := !inputDType.IsFloat() && (!outDType.IsFloat() || op.IsComparison())
	if op == LogicalAnd || op == LogicalOr {
		ba := broadcast(tensors.ToBools(a), a.Shape().Dimensions, dims)
		bb := broadcast(tensors.ToBools(b), b.Shape().Dimensions, dims)
		out := make([]bool, len(ba))
		for ii := range out {
			if op == LogicalAnd {
				out[ii] = ba[ii] && bb[ii]
			} else {
				out[ii] = ba[ii] || bb[ii]
			}
		}
		return tensors.FromBools(dims, out), nil
	}
	if op.IsComparison() {
		return comparison(op, a, b, dims, integerMath), nil
	}
	if integerMath {
		return integerBinary(op, a, b, dims, outDType)
	}
	fa := broadcast(tensors.ToFloat64s(a), a.Shape().Dimensions, dims)
	fb := broadcast(tensors.ToFloat64s(b), b.Shape().Dimensions, dims)
	dst := make([]float64, len(fa))
	switch op {
	case Add:
		floats.AddTo(dst, fa, fb)
	case Sub:
		floats.SubTo(dst, fa, fb)
	case Mul:
		floats.MulTo(dst, fa, fb)
	case Div:
		floats.DivTo(dst, fa, fb)
	default:
		for ii := range dst {
			dst[ii] = floatBinary(op, fa[ii], fb[ii])
		}
	}
	return tensors.FromFloat64s(outDType, dims, dst), nil
}

func floatBinary(op BinaryOp, x, y float64) float64 {
	switch op {
	case FloorDiv:
		return math.Floor(x / y)
	case Mod:
		r := math.Mod(x, y)
		if r != 0 && (r < 0) != (y < 0) {
			r += y
		}
		return r
	case Pow:
		return math.Pow(x, y)
	case Maximum:
		if math.IsNaN(x) || math.IsNaN(y) {
			return math.NaN()
		}
		return max(x, y)
	case Minimum:
		if math.IsNaN(x) || math.IsNaN(y) {
			return math.NaN()
		}
		return min(x, y)
	}
	return math.NaN()
}

func integerBinary(op BinaryOp, a, b *tensors.Tensor, dims []int, outDType dtypes.DType) (*tensors.Tensor, error) {
	ia := broadcast(tensors.ToInt64s(a), a.Shape().Dimensions, dims)
	ib := broadcast(tensors.ToInt64s(b), b.Shape().Dimensions, dims)
	dst := make([]int64, len(ia))
	for ii := range dst {
		x, y := ia[ii], ib[ii]
		switch op {
		case Add:
			dst[ii] = x + y
		case Sub:
			dst[ii] = x - y
		case Mul:
			dst[ii] = x * y
		case FloorDiv, Mod:
			if y == 0 {
				dst[ii] = 0
				continue
			}
			q, r := x/y, x%y
			if r != 0 && (r < 0) != (y < 0) {
				q--
				r += y
			}
			if op == FloorDiv {
				dst[ii] = q
			} else {
				dst[ii] = r
			}
		case Pow:
			if y < 0 {
				return nil, valueErrorf("Integers to negative integer powers are not allowed.")
			}
			result := int64(1)
			for range y {
				result *= x
			}
			dst[ii] = result
		case Maximum:
			dst[ii] = max(x, y)
		case Minimum:
			dst[ii] = min(x, y)
		default:
			return nil, typeErrorf("unsupported integer operation %s", op)
		}
	}
	return tensors.FromInt64s(outDType, dims, dst), nil
}

func comparison(op BinaryOp, a, b *tensors.Tensor, dims []int, integerMath bool) *tensors.Tensor {
	var cmp []int
	if integerMath {
		ia := broadcast(tensors.ToInt64s(a), a.Shape().Dimensions, dims)
		ib := broadcast(tensors.ToInt64s(b), b.Shape().Dimensions, dims)
		cmp = make([]int, len(ia))
		for ii := range ia {
			switch {
			case ia[ii] < ib[ii]:
				cmp[ii] = -1
			case ia[ii] > ib[ii]:
				cmp[ii] = 1
			}
		}
	} else {
		fa := broadcast(tensors.ToFloat64s(a), a.Shape().Dimensions, dims)
		fb := broadcast(tensors.ToFloat64s(b), b.Shape().Dimensions, dims)
		cmp = make([]int, len(fa))
		for ii := range fa {
			switch {
			case math.IsNaN(fa[ii]) || math.IsNaN(fb[ii]):
				cmp[ii] = 2 // Unordered.
			case fa[ii] < fb[ii]:
				cmp[ii] = -1
			case fa[ii] > fb[ii]:
				cmp[ii] = 1
			}
		}
	}
	out := make([]bool, len(cmp))
	for ii, c := range cmp {
		switch op {
		case Equal:
			out[ii] = c == 0
		case NotEqual:
			out[ii] = c != 0
		case Less:
			out[ii] = c == -1
		case LessEqual:
			out[ii] = c == -1 || c == 0
		case Greater:
			out[ii] = c == 1
		case GreaterEqual:
			out[ii] = c == 1 || c == 0
		}
	}
	return tensors.FromBools(dims, out)
}

// Unary computes op(x) elementwise.
func Unary(op UnaryOp, x *tensors.Tensor) (*tensors.Tensor, error) {
	outDType := UnaryResultDType(op, x.DType())
	dims := x.Shape().Dimensions
	if op == LogicalNot {
		values := tensors.ToBools(x)
		for ii, v := range values {
			values[ii] = !v
		}
		return tensors.FromBools(dims, values), nil
	}
	if !x.DType().IsFloat() && (op == Neg || op == Abs || op == Relu) {
		values := tensors.ToInt64s(x)
		for ii, v := range values {
			switch {
			case op == Neg:
				values[ii] = -v
			case v < 0:
				values[ii] = 0
				if op == Abs {
					values[ii] = -v
				}
			}
		}
		return tensors.FromInt64s(outDType, dims, values), nil
	}
	values := tensors.ToFloat64s(x)
	if op == IsInf || op == IsNaN || op == IsFinite {
		out := make([]bool, len(values))
		for ii, v := range values {
			switch op {
			case IsInf:
				out[ii] = math.IsInf(v, 0)
			case IsNaN:
				out[ii] = math.IsNaN(v)
			default:
				out[ii] = !math.IsInf(v, 0) && !math.IsNaN(v)
			}
		}
		return tensors.FromBools(dims, out), nil
	}
	if op == Neg {
		floats.Scale(-1, values)
		return tensors.FromFloat64s(outDType, dims, values), nil
	}
	for ii, v := range values {
		values[ii] = FloatUnary(op, v)
	}
	return tensors.FromFloat64s(outDType, dims, values), nil
}

// FloatUnary applies a unary op to a single float64, as used for host scalars.
func FloatUnary(op UnaryOp, v float64) float64 {
	switch op {
	case Neg:
		return -v
	case Abs:
		return math.Abs(v)
	case Relu:
		return max(v, 0)
	case Tanh:
		return math.Tanh(v)
	case Exp:
		return math.Exp(v)
	case Log:
		return math.Log(v)
	case Sqrt:
		return math.Sqrt(v)
	case Sigmoid:
		return 1 / (1 + math.Exp(-v))
	case Floor:
		return math.Floor(v)
	case Ceil:
		return math.Ceil(v)
	}
	return math.NaN()
}
