// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlang

import (
	"slices"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/kernels"
	"github.com/gomlx/jitfallback/pkg/core/shapes"
	"github.com/gomlx/jitfallback/pkg/core/tensors"
)

// Tensor is a host reference to a tensor. NumPy marks arrays created through the numpy module,
// which only changes how they are named and printed.
//
// Item assignment replaces Value with an updated copy, so tensors shared with other objects
// are never modified in place.
type Tensor struct {
	Value *tensors.Tensor
	NumPy bool
}

// NewTensor wraps a tensor.
func NewTensor(t *tensors.Tensor) *Tensor { return &Tensor{Value: t} }

func (t *Tensor) TypeName() string {
	if t.NumPy {
		return "numpy.ndarray"
	}
	return "Tensor"
}

func (t *Tensor) Repr() string {
	if t.NumPy {
		return "array(" + t.Value.ValueString() + ", dtype=" + shapes.DTypeName(t.Value.DType()) + ")"
	}
	return t.Value.String()
}

func (t *Tensor) Len() int {
	if t.Value.Rank() == 0 {
		return 0
	}
	return t.Value.Shape().Dimensions[0]
}

func (t *Tensor) wrap(value *tensors.Tensor) *Tensor { return &Tensor{Value: value, NumPy: t.NumPy} }

func (t *Tensor) Iter() ([]Object, error) {
	if t.Value.Rank() == 0 {
		return nil, Errorf(TypeError, "iteration over a 0-d tensor")
	}
	rows := make([]Object, t.Len())
	for i := range rows {
		row, err := kernels.GetItem(t.Value, i)
		if err != nil {
			return nil, fromKernelError(err)
		}
		rows[i] = t.wrap(row)
	}
	return rows, nil
}

func (t *Tensor) GetItem(key Object) (Object, error) {
	items := []Object{key}
	if tuple, ok := key.(*Tuple); ok {
		items = tuple.Elems
	}
	out, err := indexTensor(t.Value, items)
	if err != nil {
		return nil, err
	}
	return t.wrap(out), nil
}

// indexTensor applies one index item per leading axis: integers remove the axis, slices keep it.
func indexTensor(x *tensors.Tensor, items []Object) (*tensors.Tensor, error) {
	if len(items) == 0 {
		return x, nil
	}
	if len(items) > x.Rank() {
		return nil, Errorf(IndexError, "too many indices for tensor: tensor is %d-dimensional, but %d were indexed", x.Rank(), len(items))
	}
	if slice, ok := items[0].(*SliceObject); ok {
		rows, err := slice.Indices(x.Shape().Dimensions[0])
		if err != nil {
			return nil, err
		}
		taken, err := kernels.Take(x, rows)
		if err != nil {
			return nil, fromKernelError(err)
		}
		if len(items) == 1 {
			return taken, nil
		}
		if len(rows) == 0 {
			return nil, Errorf(IndexError, "multi-axis slicing of an empty selection is not supported")
		}
		indexed := make([]*tensors.Tensor, len(rows))
		for i := range rows {
			row, err := kernels.GetItem(taken, i)
			if err != nil {
				return nil, fromKernelError(err)
			}
			if indexed[i], err = indexTensor(row, items[1:]); err != nil {
				return nil, err
			}
		}
		out, err := kernels.FromSequence(x.DType(), indexed)
		return out, fromKernelError(err)
	}
	idx, err := indexValue(items[0], "tensor")
	if err != nil {
		return nil, Errorf(IndexError, "only integers, slices and tuples of them are valid tensor indices, got %s", items[0].TypeName())
	}
	row, err := kernels.GetItem(x, idx)
	if err != nil {
		return nil, fromKernelError(err)
	}
	return indexTensor(row, items[1:])
}

func (t *Tensor) SetItem(key, value Object) error {
	idx, err := indexValue(key, "tensor")
	if err != nil {
		return Errorf(TypeError, "tensor item assignment only supports integer indices, got %s", key.TypeName())
	}
	v, err := ToTensor(value, t.Value.DType(), dtypes.Float32)
	if err != nil {
		return err
	}
	updated, err := kernels.SetItem(t.Value, v, idx)
	if err != nil {
		return fromKernelError(err)
	}
	t.Value = updated
	return nil
}

// ShapeTuple returns the dimensions as a host tuple of ints.
func ShapeTuple(dims []int) *Tuple {
	elems := make([]Object, len(dims))
	for i, d := range dims {
		elems[i] = Int(d)
	}
	return &Tuple{Elems: elems}
}

var tensorAttrNames = []string{"all", "any", "asnumpy", "astype", "dtype", "item", "max", "mean", "min",
	"ndim", "reshape", "shape", "size", "sum", "tolist"}

func (t *Tensor) AttrNames() []string { return slices.Clone(tensorAttrNames) }

func (t *Tensor) Attr(name string) (Object, bool) {
	switch name {
	case "shape":
		return ShapeTuple(t.Value.Dimensions()), true
	case "ndim":
		return Int(t.Value.Rank()), true
	case "dtype":
		return &DType{DType: t.Value.DType()}, true
	case "size":
		return Int(t.Value.Size()), true
	}
	m := func(fn func(args []Object, kwargs []Kwarg) (Object, error)) (Object, bool) {
		return &Builtin{Name: name, Fn: fn, Self: t}, true
	}
	switch name {
	case "sum", "mean", "max", "min":
		kind := map[string]kernels.ReduceKind{"sum": kernels.ReduceKindSum, "mean": kernels.ReduceKindMean,
			"max": kernels.ReduceKindMax, "min": kernels.ReduceKindMin}[name]
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs(name, args, kwargs, 0, "axis")
			if err != nil {
				return nil, err
			}
			return reduceTensor(t, kind, a[0])
		})
	case "all", "any":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			values := tensors.ToBools(t.Value)
			result := name == "all"
			for _, v := range values {
				if v != result {
					result = !result
					break
				}
			}
			return t.wrap(tensors.FromScalar(result)), nil
		})
	case "reshape":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			if len(args) == 1 {
				if _, isInt := args[0].(Int); !isInt {
					var err error
					if args, err = Iterate(args[0]); err != nil {
						return nil, err
					}
				}
			}
			dims, err := intsOf(args, "reshape")
			if err != nil {
				return nil, err
			}
			reshaped, err := reshapeTensor(t.Value, dims)
			if err != nil {
				return nil, err
			}
			return t.wrap(reshaped), nil
		})
	case "astype":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs("astype", args, kwargs, 1, "dtype")
			if err != nil {
				return nil, err
			}
			dtype, err := DTypeOf(a[0])
			if err != nil {
				return nil, err
			}
			return t.wrap(t.Value.ConvertDType(dtype)), nil
		})
	case "asnumpy":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			return &Tensor{Value: t.Value.Clone(), NumPy: true}, nil
		})
	case "tolist":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) { return TensorToList(t.Value), nil })
	case "item":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			if t.Value.Size() != 1 {
				return nil, Errorf(ValueError, "can only convert an array of size 1 to a Python scalar")
			}
			flat, _ := t.Value.Reshape()
			return TensorToList(flat), nil
		})
	}
	return nil, false
}

func reduceTensor(t *Tensor, kind kernels.ReduceKind, axis Object) (Object, error) {
	var axes []int
	if !IsNone(axis) {
		items := []Object{axis}
		if tuple, ok := axis.(*Tuple); ok {
			items = tuple.Elems
		}
		var err error
		if axes, err = intsOf(items, "axis"); err != nil {
			return nil, err
		}
	}
	out, err := kernels.Reduce(t.Value, kind, axes...)
	if err != nil {
		return nil, fromKernelError(err)
	}
	return t.wrap(out), nil
}

// reshapeTensor reshapes with support for one -1 dimension.
func reshapeTensor(t *tensors.Tensor, dims []int) (*tensors.Tensor, error) {
	unknown := -1
	known := 1
	for i, d := range dims {
		switch {
		case d == -1 && unknown < 0:
			unknown = i
		case d < 0:
			return nil, Errorf(ValueError, "can only specify one unknown dimension")
		default:
			known *= d
		}
	}
	if unknown >= 0 && known > 0 && t.Size()%known == 0 {
		dims = slices.Clone(dims)
		dims[unknown] = t.Size() / known
	}
	out, err := t.Reshape(dims...)
	if err != nil {
		return nil, Errorf(ValueError, "cannot reshape array of size %d into shape %s", t.Size(), Repr(ShapeTuple(dims)))
	}
	return out, nil
}

func intsOf(objs []Object, what string) ([]int, error) {
	out := make([]int, len(objs))
	for i, obj := range objs {
		v, err := indexValue(obj, what)
		if err != nil {
			return nil, Errorf(TypeError, "%s: expected integers, got %s", what, obj.TypeName())
		}
		out[i] = v
	}
	return out, nil
}

// TensorToList converts a tensor to nested host lists, or to a host scalar for rank 0.
func TensorToList(t *tensors.Tensor) Object {
	var convert func(v any) Object
	convert = func(v any) Object {
		switch x := v.(type) {
		case bool:
			return Bool(x)
		case float32:
			return Float(x)
		case float64:
			return Float(x)
		case int64:
			return Int(x)
		case int32:
			return Int(x)
		case int16:
			return Int(x)
		case int8:
			return Int(x)
		case uint8:
			return Int(x)
		case uint16:
			return Int(x)
		case uint32:
			return Int(x)
		case uint64:
			return Int(x)
		}
		if t.DType() == dtypes.Float16 && t.Rank() == 0 {
			return Float(tensors.ToFloat64s(t)[0])
		}
		return None
	}
	if t.Rank() == 0 {
		return convert(t.Value())
	}
	var build func(t *tensors.Tensor) Object
	build = func(t *tensors.Tensor) Object {
		if t.Rank() == 0 {
			if t.DType() == dtypes.Float16 {
				return Float(tensors.ToFloat64s(t)[0])
			}
			return convert(t.Value())
		}
		rows := make([]Object, t.Shape().Dimensions[0])
		for i := range rows {
			row, _ := kernels.GetItem(t, i)
			rows[i] = build(row)
		}
		return &List{Elems: rows}
	}
	return build(t)
}

func tensorScalarInt(t *tensors.Tensor) int64 { return tensors.ToInt64s(t)[0] }

// DType is a host reference to a tensor dtype, e.g. jit.int32 or np.float32.
type DType struct {
	DType dtypes.DType
}

func (*DType) TypeName() string { return "dtype" }

func (d *DType) Repr() string { return shapes.DTypeName(d.DType) }

func (d *DType) Attr(name string) (Object, bool) {
	if name == "name" {
		return Str(shapes.DTypeName(d.DType)), true
	}
	return nil, false
}

func (d *DType) AttrNames() []string { return []string{"name"} }

// Call converts a value to a tensor of the dtype, like np.float32(x).
func (d *DType) Call(args []Object, kwargs []Kwarg) (Object, error) {
	a, err := parseArgs(shapes.DTypeName(d.DType), args, kwargs, 1, "value")
	if err != nil {
		return nil, err
	}
	t, err := ToTensor(a[0], d.DType, d.DType)
	if err != nil {
		return nil, err
	}
	return &Tensor{Value: t, NumPy: true}, nil
}

// DTypeOf accepts a *DType, a dtype name string or one of the types int, float, bool.
func DTypeOf(obj Object) (dtypes.DType, error) {
	switch v := obj.(type) {
	case *DType:
		return v.DType, nil
	case Str:
		dtype, err := shapes.ParseDType(string(v))
		if err != nil {
			return dtypes.InvalidDType, Errorf(TypeError, "data type %s not understood", Repr(v))
		}
		return dtype, nil
	case *Type:
		switch v.Name {
		case "int":
			return dtypes.Int64, nil
		case "float":
			return dtypes.Float64, nil
		case "bool":
			return dtypes.Bool, nil
		}
	}
	return dtypes.InvalidDType, Errorf(TypeError, "data type %s not understood", Repr(obj))
}

// ScalarDType is the dtype host scalars take when converted to tensors; floatDType is used for
// host floats.
func ScalarDType(obj Object, floatDType dtypes.DType) dtypes.DType {
	switch obj.(type) {
	case Bool:
		return dtypes.Bool
	case Int:
		return dtypes.Int64
	case Float:
		return floatDType
	}
	return dtypes.InvalidDType
}

// ToTensor converts host scalars, (nested) lists/tuples and tensors to a tensor.
// If dtype is InvalidDType it is inferred, with host floats taking floatDType.
func ToTensor(obj Object, dtype, floatDType dtypes.DType) (*tensors.Tensor, error) {
	t, err := toTensor(obj, floatDType)
	if err != nil {
		return nil, err
	}
	if dtype != dtypes.InvalidDType && t.DType() != dtype {
		t = t.ConvertDType(dtype)
	}
	return t, nil
}

func toTensor(obj Object, floatDType dtypes.DType) (*tensors.Tensor, error) {
	switch v := obj.(type) {
	case *Tensor:
		return v.Value, nil
	case Bool:
		return tensors.FromScalar(bool(v)), nil
	case Int:
		return tensors.FromScalar(int64(v)), nil
	case Float:
		return tensors.FromFloat64s(floatDType, nil, []float64{float64(v)}), nil
	case *List, *Tuple:
		elems, _ := Iterate(v)
		if len(elems) == 0 {
			return tensors.FromShape(shapes.Make(floatDType, 0)), nil
		}
		rows := make([]*tensors.Tensor, len(elems))
		dtype := dtypes.InvalidDType
		for i, e := range elems {
			row, err := toTensor(e, floatDType)
			if err != nil {
				return nil, err
			}
			rows[i] = row
			if dtype == dtypes.InvalidDType {
				dtype = row.DType()
			} else {
				dtype = shapes.PromoteDTypes(dtype, row.DType())
			}
		}
		out, err := kernels.FromSequence(dtype, rows)
		return out, fromKernelError(err)
	}
	return nil, Errorf(TypeError, "cannot convert '%s' object to a tensor", obj.TypeName())
}

// tensorOperand converts the operand of a tensor operation, reporting whether it is a weak
// host scalar.
func tensorOperand(obj Object) (t *tensors.Tensor, weak bool, numpy bool, ok bool) {
	switch v := obj.(type) {
	case *Tensor:
		return v.Value, false, v.NumPy, true
	case Bool, Int, Float:
		t, _ := toTensor(v, dtypes.Float64)
		return t, true, false, true
	case *List, *Tuple:
		t, err := toTensor(v, dtypes.Float64)
		if err != nil {
			return nil, false, false, false
		}
		return t, false, false, true
	}
	return nil, false, false, false
}

// describeTensorShape renders dims like a host tuple, e.g. "(2, 3)".
func describeTensorShape(dims []int) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = Repr(Int(d))
	}
	if len(dims) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
