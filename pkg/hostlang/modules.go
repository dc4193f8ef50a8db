// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlang

import (
	"math"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/kernels"
	"github.com/gomlx/jitfallback/pkg/core/shapes"
	"github.com/gomlx/jitfallback/pkg/core/tensors"
	"github.com/gomlx/jitfallback/pkg/core/tensors/numpy"
)

var (
	// TensorType is jit.Tensor: any tensor is an instance.
	TensorType = &Type{Name: "Tensor", Instance: isA[*Tensor]}

	// NDArrayType is numpy.ndarray.
	NDArrayType = &Type{Name: "ndarray", Instance: func(obj Object) bool {
		t, ok := obj.(*Tensor)
		return ok && t.NumPy
	}}
)

// ModuleDTypes lists the dtypes exposed as module attributes (jit.float32, np.int64, ...).
var ModuleDTypes = []dtypes.DType{dtypes.Bool, dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
	dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64, dtypes.Float16, dtypes.Float32, dtypes.Float64}

func standardModules() []*Module {
	return []*Module{mathModule(), numpyModule(), functoolsModule(), jitModule()}
}

func addFunc(m *Module, name string, fn func(args []Object, kwargs []Kwarg) (Object, error)) *Builtin {
	b := &Builtin{Name: name, Fn: fn}
	m.Set(name, b)
	return b
}

func setDTypes(m *Module) {
	for _, dtype := range ModuleDTypes {
		m.Set(shapes.DTypeName(dtype), &DType{DType: dtype})
	}
}

func mathModule() *Module {
	m := NewModule("math")
	m.Set("pi", Float(math.Pi))
	m.Set("e", Float(math.E))
	m.Set("inf", Float(math.Inf(1)))
	m.Set("nan", Float(math.NaN()))

	realArg := func(fname string, obj Object) (float64, error) {
		if t, ok := obj.(*Tensor); ok && t.Value.Size() == 1 {
			return tensors.ToFloat64s(t.Value)[0], nil
		}
		_, f, _, ok := numeric(obj)
		if !ok {
			return 0, Errorf(TypeError, "must be real number, not %s", obj.TypeName())
		}
		return f, nil
	}
	unary := func(name string, fn func(float64) float64, domain func(float64) bool) {
		addFunc(m, name, func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs(name, args, kwargs, 1, "x")
			if err != nil {
				return nil, err
			}
			x, err := realArg(name, a[0])
			if err != nil {
				return nil, err
			}
			if domain != nil && !domain(x) {
				return nil, Errorf(ValueError, "math domain error")
			}
			return Float(fn(x)), nil
		})
	}
	unary("sqrt", math.Sqrt, func(x float64) bool { return x >= 0 || math.IsNaN(x) })
	unary("exp", math.Exp, nil)
	unary("tanh", math.Tanh, nil)
	unary("erf", math.Erf, nil)
	unary("cos", math.Cos, nil)
	unary("sin", math.Sin, nil)
	unary("fabs", math.Abs, nil)
	addFunc(m, "log", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("log", args, kwargs, 1, "x", "base")
		if err != nil {
			return nil, err
		}
		x, err := realArg("log", a[0])
		if err != nil {
			return nil, err
		}
		if x <= 0 {
			return nil, Errorf(ValueError, "math domain error")
		}
		if a[1] == nil {
			return Float(math.Log(x)), nil
		}
		base, err := realArg("log", a[1])
		if err != nil {
			return nil, err
		}
		if base <= 0 || base == 1 {
			return nil, Errorf(ValueError, "math domain error")
		}
		return Float(math.Log(x) / math.Log(base)), nil
	})
	for _, name := range []string{"floor", "ceil"} {
		round := math.Floor
		if name == "ceil" {
			round = math.Ceil
		}
		addFunc(m, name, func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs(name, args, kwargs, 1, "x")
			if err != nil {
				return nil, err
			}
			if i, ok := a[0].(Int); ok {
				return i, nil
			}
			x, err := realArg(name, a[0])
			if err != nil {
				return nil, err
			}
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, Errorf(ValueError, "cannot convert float %s to integer", formatFloat(x))
			}
			return Int(int64(round(x))), nil
		})
	}
	for _, name := range []string{"isnan", "isinf"} {
		addFunc(m, name, func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs(name, args, kwargs, 1, "x")
			if err != nil {
				return nil, err
			}
			x, err := realArg(name, a[0])
			if err != nil {
				return nil, err
			}
			if name == "isnan" {
				return Bool(math.IsNaN(x)), nil
			}
			return Bool(math.IsInf(x, 0)), nil
		})
	}
	addFunc(m, "pow", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("pow", args, kwargs, 2, "x", "y")
		if err != nil {
			return nil, err
		}
		x, err := realArg("pow", a[0])
		if err != nil {
			return nil, err
		}
		y, err := realArg("pow", a[1])
		if err != nil {
			return nil, err
		}
		if x < 0 && y != math.Trunc(y) {
			return nil, Errorf(ValueError, "math domain error")
		}
		return Float(math.Pow(x, y)), nil
	})
	return m
}

// npTensor converts an argument of a numpy function; host floats become float64.
func npTensor(obj Object) (*tensors.Tensor, error) {
	return ToTensor(obj, dtypes.InvalidDType, dtypes.Float64)
}

func npResult(t *tensors.Tensor, err error) (Object, error) {
	if err != nil {
		return nil, fromKernelError(err)
	}
	return &Tensor{Value: t, NumPy: true}, nil
}

// npDType parses an optional dtype argument.
func npDType(obj Object, dflt dtypes.DType) (dtypes.DType, error) {
	if IsNone(obj) {
		return dflt, nil
	}
	return DTypeOf(obj)
}

// npShape parses a shape argument: an int or a sequence of ints.
func npShape(obj Object) ([]int, error) {
	if _, isInt := obj.(Int); isInt {
		return intsOf([]Object{obj}, "shape")
	}
	items, err := Iterate(obj)
	if err != nil {
		return nil, Errorf(TypeError, "'%s' object cannot be interpreted as an integer", obj.TypeName())
	}
	return intsOf(items, "shape")
}

func numpyModule() *Module {
	m := NewModule("numpy")
	m.Set("ndarray", NDArrayType)
	m.Set("pi", Float(math.Pi))
	m.Set("e", Float(math.E))
	m.Set("inf", Float(math.Inf(1)))
	m.Set("nan", Float(math.NaN()))
	setDTypes(m)
	m.Set("float_", &DType{DType: dtypes.Float64})

	for _, name := range []string{"array", "asarray"} {
		addFunc(m, name, func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs(name, args, kwargs, 1, "object", "dtype")
			if err != nil {
				return nil, err
			}
			dtype, err := npDType(a[1], dtypes.InvalidDType)
			if err != nil {
				return nil, err
			}
			t, err := ToTensor(a[0], dtype, dtypes.Float64)
			if err != nil {
				return nil, err
			}
			if src, ok := a[0].(*Tensor); ok && name == "array" && src.Value == t {
				t = t.Clone()
			}
			return &Tensor{Value: t, NumPy: true}, nil
		})
	}
	for _, name := range []string{"zeros", "ones"} {
		value := 0.0
		if name == "ones" {
			value = 1
		}
		addFunc(m, name, func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs(name, args, kwargs, 1, "shape", "dtype")
			if err != nil {
				return nil, err
			}
			dims, err := npShape(a[0])
			if err != nil {
				return nil, err
			}
			dtype, err := npDType(a[1], dtypes.Float64)
			if err != nil {
				return nil, err
			}
			return npResult(kernels.Fill(dims, tensors.FromFloat64s(dtype, nil, []float64{value})))
		})
	}
	addFunc(m, "full", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("full", args, kwargs, 2, "shape", "fill_value", "dtype")
		if err != nil {
			return nil, err
		}
		dims, err := npShape(a[0])
		if err != nil {
			return nil, err
		}
		dtype, err := npDType(a[2], dtypes.InvalidDType)
		if err != nil {
			return nil, err
		}
		fill, err := ToTensor(a[1], dtype, dtypes.Float64)
		if err != nil {
			return nil, err
		}
		return npResult(kernels.Fill(dims, fill))
	})
	addFunc(m, "arange", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("arange", args, kwargs, 1, "start", "stop", "step", "dtype")
		if err != nil {
			return nil, err
		}
		bounds := []Object{Int(0), a[0], Int(1)}
		if a[1] != nil && !IsNone(a[1]) {
			bounds[0], bounds[1] = a[0], a[1]
		}
		if a[2] != nil {
			bounds[2] = a[2]
		}
		values := make([]float64, 3)
		allInts := true
		for i, b := range bounds {
			_, f, isFloat, ok := numeric(b)
			if !ok {
				return nil, Errorf(TypeError, "arange() arguments must be numbers, got %s", b.TypeName())
			}
			values[i] = f
			allInts = allInts && !isFloat
		}
		if values[2] == 0 {
			return nil, &Error{Kind: ZeroDivisionError, ExceptionName: "ZeroDivisionError", Msg: "division by zero"}
		}
		n := max(int(math.Ceil((values[1]-values[0])/values[2])), 0)
		out := make([]float64, n)
		for i := range out {
			out[i] = values[0] + float64(i)*values[2]
		}
		dflt := dtypes.Float64
		if allInts {
			dflt = dtypes.Int64
		}
		dtype, err := npDType(a[3], dflt)
		if err != nil {
			return nil, err
		}
		return npResult(tensors.FromFloat64s(dtype, []int{n}, out), nil)
	})

	reductions := map[string]kernels.ReduceKind{"sum": kernels.ReduceKindSum, "mean": kernels.ReduceKindMean,
		"max": kernels.ReduceKindMax, "min": kernels.ReduceKindMin}
	for _, name := range []string{"sum", "mean", "max", "min"} {
		kind := reductions[name]
		addFunc(m, name, func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs(name, args, kwargs, 1, "a", "axis")
			if err != nil {
				return nil, err
			}
			t, err := npTensor(a[0])
			if err != nil {
				return nil, err
			}
			return reduceTensor(&Tensor{Value: t, NumPy: true}, kind, a[1])
		})
	}

	unaries := map[string]kernels.UnaryOp{"abs": kernels.Abs, "tanh": kernels.Tanh, "exp": kernels.Exp,
		"log": kernels.Log, "sqrt": kernels.Sqrt}
	for _, name := range []string{"abs", "tanh", "exp", "log", "sqrt"} {
		op := unaries[name]
		addFunc(m, name, func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs(name, args, kwargs, 1, "x")
			if err != nil {
				return nil, err
			}
			t, err := npTensor(a[0])
			if err != nil {
				return nil, err
			}
			return npResult(kernels.Unary(op, t))
		})
	}
	m.Set("absolute", m.attrs["abs"])

	binaries := map[string]kernels.BinaryOp{"power": kernels.Pow, "maximum": kernels.Maximum,
		"minimum": kernels.Minimum, "add": kernels.Add, "subtract": kernels.Sub, "multiply": kernels.Mul,
		"divide": kernels.Div}
	for _, name := range []string{"power", "maximum", "minimum", "add", "subtract", "multiply", "divide"} {
		op := binaries[name]
		addFunc(m, name, func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs(name, args, kwargs, 2, "x1", "x2")
			if err != nil {
				return nil, err
			}
			x, xWeak, _, xOk := tensorOperand(a[0])
			y, yWeak, _, yOk := tensorOperand(a[1])
			if !xOk || !yOk {
				return nil, unsupportedOperands(name, a[0], a[1])
			}
			if xWeak && yWeak {
				xWeak, yWeak = false, false
			}
			return npResult(kernels.Binary(op, x, y, kernels.BinaryResultDType(op, x.DType(), y.DType(), xWeak, yWeak)))
		})
	}

	addFunc(m, "concatenate", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("concatenate", args, kwargs, 1, "arrays", "axis")
		if err != nil {
			return nil, err
		}
		axis := 0
		if a[1] != nil {
			if axis, err = indexValue(a[1], "axis"); err != nil {
				return nil, err
			}
		}
		items, err := Iterate(a[0])
		if err != nil {
			return nil, err
		}
		inputs := make([]*tensors.Tensor, len(items))
		dtype := dtypes.InvalidDType
		for i, item := range items {
			if inputs[i], err = npTensor(item); err != nil {
				return nil, err
			}
			if i == 0 {
				dtype = inputs[i].DType()
			} else {
				dtype = shapes.PromoteDTypes(dtype, inputs[i].DType())
			}
		}
		for i, t := range inputs {
			if t.DType() != dtype {
				inputs[i] = t.ConvertDType(dtype)
			}
		}
		return npResult(kernels.Concat(inputs, axis))
	})
	addFunc(m, "argmax", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("argmax", args, kwargs, 1, "a", "axis")
		if err != nil {
			return nil, err
		}
		t, err := npTensor(a[0])
		if err != nil {
			return nil, err
		}
		axis := 0
		if IsNone(a[1]) {
			if t, err = t.Reshape(t.Size()); err != nil {
				return nil, err
			}
		} else if axis, err = indexValue(a[1], "axis"); err != nil {
			return nil, err
		}
		indices, _, err := kernels.ArgMaxWithValue(t, axis)
		if err != nil {
			return nil, fromKernelError(err)
		}
		return npResult(indices.ConvertDType(dtypes.Int64), nil)
	})
	addFunc(m, "reshape", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("reshape", args, kwargs, 2, "a", "newshape")
		if err != nil {
			return nil, err
		}
		t, err := npTensor(a[0])
		if err != nil {
			return nil, err
		}
		dims, err := npShape(a[1])
		if err != nil {
			return nil, err
		}
		reshaped, err := reshapeTensor(t, dims)
		return npResult(reshaped, err)
	})
	addFunc(m, "shape", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("shape", args, kwargs, 1, "a")
		if err != nil {
			return nil, err
		}
		t, err := npTensor(a[0])
		if err != nil {
			return nil, err
		}
		return ShapeTuple(t.Dimensions()), nil
	})
	addFunc(m, "allclose", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("allclose", args, kwargs, 2, "a", "b", "rtol", "atol")
		if err != nil {
			return nil, err
		}
		rtol, atol := 1e-5, 1e-8
		if a[2] != nil {
			_, rtol, _, _ = numeric(a[2])
		}
		if a[3] != nil {
			_, atol, _, _ = numeric(a[3])
		}
		x, err := npTensor(a[0])
		if err != nil {
			return nil, err
		}
		y, err := npTensor(a[1])
		if err != nil {
			return nil, err
		}
		diff, err := kernels.Binary(kernels.Sub, x, y, dtypes.Float64)
		if err != nil {
			return nil, fromKernelError(err)
		}
		zeros, err := kernels.Fill(diff.Dimensions(), tensors.FromScalar(0.0))
		if err != nil {
			return nil, fromKernelError(err)
		}
		yb, err := kernels.Binary(kernels.Add, zeros, y, dtypes.Float64)
		if err != nil {
			return nil, fromKernelError(err)
		}
		reference := tensors.ToFloat64s(yb)
		for i, d := range tensors.ToFloat64s(diff) {
			if !(math.Abs(d) <= atol+rtol*math.Abs(reference[i])) {
				return Bool(false), nil
			}
		}
		return Bool(true), nil
	})
	addFunc(m, "array_equal", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("array_equal", args, kwargs, 2, "a1", "a2")
		if err != nil {
			return nil, err
		}
		x, err := npTensor(a[0])
		if err != nil {
			return nil, err
		}
		y, err := npTensor(a[1])
		if err != nil {
			return nil, err
		}
		if !slices.Equal(x.Dimensions(), y.Dimensions()) {
			return Bool(false), nil
		}
		return Bool(slices.Equal(tensors.ToFloat64s(x), tensors.ToFloat64s(y))), nil
	})
	addFunc(m, "save", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("save", args, kwargs, 2, "file", "arr")
		if err != nil {
			return nil, err
		}
		path, ok := a[0].(Str)
		if !ok {
			return nil, Errorf(TypeError, "expected str file name, got %s", a[0].TypeName())
		}
		t, err := npTensor(a[1])
		if err != nil {
			return nil, err
		}
		if err := numpy.ToNpyFile(t, string(path)); err != nil {
			return nil, &Error{Kind: UserRaised, ExceptionName: "OSError", Msg: err.Error()}
		}
		return None, nil
	}).Impure = true
	addFunc(m, "load", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("load", args, kwargs, 1, "file")
		if err != nil {
			return nil, err
		}
		path, ok := a[0].(Str)
		if !ok {
			return nil, Errorf(TypeError, "expected str file name, got %s", a[0].TypeName())
		}
		t, err := numpy.FromNpyFile(string(path))
		if err != nil {
			return nil, &Error{Kind: UserRaised, ExceptionName: "OSError", Msg: err.Error()}
		}
		return &Tensor{Value: t, NumPy: true}, nil
	}).Impure = true
	return m
}

func functoolsModule() *Module {
	m := NewModule("functools")
	addFunc(m, "reduce", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("reduce", args, kwargs, 2, "function", "iterable", "initial")
		if err != nil {
			return nil, err
		}
		items, err := Iterate(a[1])
		if err != nil {
			return nil, err
		}
		acc := a[2]
		if acc == nil {
			if len(items) == 0 {
				return nil, Errorf(TypeError, "reduce() of empty iterable with no initial value")
			}
			acc, items = items[0], items[1:]
		}
		for _, item := range items {
			if acc, err = Call(a[0], []Object{acc, item}, nil); err != nil {
				return nil, err
			}
		}
		return acc, nil
	})
	return m
}

// JITTensor implements jit.tensor(data, dtype=None): host floats default to float32.
func JITTensor(args []Object, kwargs []Kwarg) (Object, error) {
	a, err := parseArgs("tensor", args, kwargs, 1, "data", "dtype")
	if err != nil {
		return nil, err
	}
	dtype, err := npDType(a[1], dtypes.InvalidDType)
	if err != nil {
		return nil, err
	}
	t, err := ToTensor(a[0], dtype, dtypes.Float32)
	if err != nil {
		return nil, err
	}
	if src, ok := a[0].(*Tensor); ok && src.Value == t {
		t = t.Clone()
	}
	return &Tensor{Value: t}, nil
}

func jitModule() *Module {
	m := NewModule("jit")
	TensorType.New = JITTensor
	m.Set("Tensor", TensorType)
	setDTypes(m)
	m.Set("bool", &DType{DType: dtypes.Bool})
	addFunc(m, "tensor", JITTensor).Native = "MakeTensor"
	addFunc(m, "mutable", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("mutable", args, kwargs, 1, "obj", "dynamic_len")
		if err != nil {
			return nil, err
		}
		return a[0], nil
	}).Native = "Identity"
	return m
}
