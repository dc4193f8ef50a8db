// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlang

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/jitfallback/pkg/core/kernels"
	"github.com/pkg/errors"
)

// Built-in types.
var (
	IntType = &Type{Name: "int", New: newInt, Instance: func(obj Object) bool {
		switch obj.(type) {
		case Int, Bool:
			return true
		}
		return false
	}}
	FloatType = &Type{Name: "float", New: newFloat, Instance: isA[Float]}
	BoolType  = &Type{Name: "bool", Instance: isA[Bool], New: func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("bool", args, kwargs, 0, "x")
		if err != nil || a[0] == nil {
			return Bool(false), err
		}
		truth, err := Truth(a[0])
		return Bool(truth), err
	}}
	StrType = &Type{Name: "str", Instance: isA[Str], New: func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("str", args, kwargs, 0, "object")
		if err != nil || a[0] == nil {
			return Str(""), err
		}
		return Str(ToStr(a[0])), nil
	}}
	ListType = &Type{Name: "list", Instance: isA[*List], New: func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("list", args, kwargs, 0, "iterable")
		if err != nil || a[0] == nil {
			return &List{}, err
		}
		elems, err := Iterate(a[0])
		return &List{Elems: elems}, err
	}}
	TupleType = &Type{Name: "tuple", Instance: isA[*Tuple], New: func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("tuple", args, kwargs, 0, "iterable")
		if err != nil || a[0] == nil {
			return &Tuple{}, err
		}
		elems, err := Iterate(a[0])
		return &Tuple{Elems: elems}, err
	}}
	DictType  = &Type{Name: "dict", Instance: isA[*Dict], New: newDict}
	RangeType = &Type{Name: "range", Instance: isA[*Range], New: newRange}
)

func isA[T Object](obj Object) bool {
	_, ok := obj.(T)
	return ok
}

func newInt(args []Object, kwargs []Kwarg) (Object, error) {
	a, err := parseArgs("int", args, kwargs, 0, "x")
	if err != nil || a[0] == nil {
		return Int(0), err
	}
	switch v := a[0].(type) {
	case Str:
		s := strings.ReplaceAll(strings.TrimSpace(string(v)), "_", "")
		i, err := strconv.ParseInt(s, 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			return nil, &Error{Kind: UserRaised, ExceptionName: "OverflowError", Msg: "int literal " + Repr(v) + " does not fit in 64 bits"}
		}
		if err != nil {
			return nil, Errorf(ValueError, "invalid literal for int() with base 10: %s", Repr(v))
		}
		return Int(i), nil
	case *Tensor:
		if v.Value.Size() != 1 {
			return nil, Errorf(TypeError, "only length-1 arrays can be converted to Python scalars")
		}
		return Int(tensorScalarInt(v.Value)), nil
	}
	i, f, isFloat, ok := numeric(a[0])
	if !ok {
		return nil, Errorf(TypeError, "int() argument must be a string, a bytes-like object or a real number, not '%s'", a[0].TypeName())
	}
	if isFloat {
		if math.IsNaN(f) {
			return nil, Errorf(ValueError, "cannot convert float NaN to integer")
		}
		if math.IsInf(f, 0) {
			return nil, &Error{Kind: UserRaised, ExceptionName: "OverflowError", Msg: "cannot convert float infinity to integer"}
		}
		if f >= 1<<63 || f < -(1<<63) {
			return nil, &Error{Kind: UserRaised, ExceptionName: "OverflowError", Msg: "float " + formatFloat(f) + " does not fit in a 64 bits int"}
		}
		return Int(int64(f)), nil
	}
	return Int(i), nil
}

func newFloat(args []Object, kwargs []Kwarg) (Object, error) {
	a, err := parseArgs("float", args, kwargs, 0, "x")
	if err != nil || a[0] == nil {
		return Float(0), err
	}
	switch v := a[0].(type) {
	case Str:
		s := strings.ToLower(strings.TrimSpace(string(v)))
		switch strings.TrimLeft(s, "+-") {
		case "inf", "infinity", "nan":
			f, _ := strconv.ParseFloat(s, 64)
			return Float(f), nil
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, "_", ""), 64)
		if err != nil {
			return nil, Errorf(ValueError, "could not convert string to float: %s", Repr(v))
		}
		return Float(f), nil
	case *Tensor:
		if v.Value.Size() != 1 {
			return nil, Errorf(TypeError, "only length-1 arrays can be converted to Python scalars")
		}
		flat, _ := v.Value.Reshape()
		obj := TensorToList(flat)
		_, f, _, _ := numeric(obj)
		return Float(f), nil
	}
	_, f, _, ok := numeric(a[0])
	if !ok {
		return nil, Errorf(TypeError, "float() argument must be a string or a real number, not '%s'", a[0].TypeName())
	}
	return Float(f), nil
}

func newDict(args []Object, kwargs []Kwarg) (Object, error) {
	if len(args) > 1 {
		return nil, Errorf(TypeError, "dict expected at most 1 argument, got %d", len(args))
	}
	d := NewDict()
	if len(args) == 1 {
		if other, ok := args[0].(*Dict); ok {
			d = other.Copy()
		} else {
			items, err := Iterate(args[0])
			if err != nil {
				return nil, err
			}
			for i, item := range items {
				pair, err := Iterate(item)
				if err != nil || len(pair) != 2 {
					return nil, Errorf(ValueError, "dictionary update sequence element #%d has wrong length", i)
				}
				if err := d.Set(pair[0], pair[1]); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, kw := range kwargs {
		if err := d.Set(Str(kw.Name), kw.Value); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func newRange(args []Object, kwargs []Kwarg) (Object, error) {
	if len(kwargs) > 0 {
		return nil, Errorf(TypeError, "range() takes no keyword arguments")
	}
	if len(args) < 1 || len(args) > 3 {
		return nil, Errorf(TypeError, "range expected at most 3 arguments, got %d", len(args))
	}
	ints := make([]int64, len(args))
	for i, arg := range args {
		v, err := indexValue(arg, "range")
		if err != nil {
			return nil, Errorf(TypeError, "'%s' object cannot be interpreted as an integer", arg.TypeName())
		}
		ints[i] = int64(v)
	}
	r := &Range{Step: 1}
	switch len(ints) {
	case 1:
		r.Stop = ints[0]
	case 2:
		r.Start, r.Stop = ints[0], ints[1]
	case 3:
		r.Start, r.Stop, r.Step = ints[0], ints[1], ints[2]
	}
	if r.Step == 0 {
		return nil, Errorf(ValueError, "range() arg 3 must not be zero")
	}
	return r, nil
}

// Exception classes.
var (
	BaseExceptionType     = &Type{Name: "BaseException", Exception: true, Kind: UserRaised}
	ExceptionType         = exceptionType("Exception", BaseExceptionType, UserRaised)
	ArithmeticErrorType   = exceptionType("ArithmeticError", ExceptionType, UserRaised)
	LookupErrorType       = exceptionType("LookupError", ExceptionType, UserRaised)
	ValueErrorType        = exceptionType("ValueError", ExceptionType, ValueError)
	TypeErrorType         = exceptionType("TypeError", ExceptionType, TypeError)
	AttributeErrorType    = exceptionType("AttributeError", ExceptionType, AttributeError)
	NameErrorType         = exceptionType("NameError", ExceptionType, NameError)
	IndexErrorType        = exceptionType("IndexError", LookupErrorType, IndexError)
	KeyErrorType          = exceptionType("KeyError", LookupErrorType, KeyError)
	ZeroDivisionErrorType = exceptionType("ZeroDivisionError", ArithmeticErrorType, ZeroDivisionError)
	RuntimeErrorType      = exceptionType("RuntimeError", ExceptionType, UserRaised)
	NotImplementedType    = exceptionType("NotImplementedError", RuntimeErrorType, UserRaised)
	AssertionErrorType    = exceptionType("AssertionError", ExceptionType, UserRaised)
)

func exceptionType(name string, base *Type, kind ErrorKind) *Type {
	t := &Type{Name: name, Base: base, Exception: true, Kind: kind}
	t.New = func(args []Object, kwargs []Kwarg) (Object, error) {
		if len(kwargs) > 0 {
			return nil, Errorf(TypeError, "%s() takes no keyword arguments", name)
		}
		return &Exception{Type: t, Args: slices.Clone(args)}, nil
	}
	t.Instance = func(obj Object) bool {
		exc, ok := obj.(*Exception)
		return ok && exc.Type.IsSubclass(t)
	}
	return t
}

func init() {
	BaseExceptionType.New = func(args []Object, kwargs []Kwarg) (Object, error) {
		return &Exception{Type: BaseExceptionType, Args: slices.Clone(args)}, nil
	}
	BaseExceptionType.Instance = isA[*Exception]
}

func (it *Interpreter) installBuiltins() {
	for _, t := range []*Type{IntType, FloatType, BoolType, StrType, ListType, TupleType, DictType, RangeType,
		BaseExceptionType, ExceptionType, ArithmeticErrorType, LookupErrorType, ValueErrorType, TypeErrorType,
		AttributeErrorType, NameErrorType, IndexErrorType, KeyErrorType, ZeroDivisionErrorType, RuntimeErrorType,
		NotImplementedType, AssertionErrorType} {
		it.builtins.Set(t.Name, t)
	}
	def := func(name string, fn func(args []Object, kwargs []Kwarg) (Object, error)) *Builtin {
		b := &Builtin{Name: name, Fn: fn}
		it.builtins.Set(name, b)
		return b
	}

	def("len", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("len", args, kwargs, 1, "obj")
		if err != nil {
			return nil, err
		}
		n, err := Len(a[0])
		return Int(n), err
	})
	def("repr", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("repr", args, kwargs, 1, "obj")
		if err != nil {
			return nil, err
		}
		return Str(Repr(a[0])), nil
	})
	def("abs", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("abs", args, kwargs, 1, "x")
		if err != nil {
			return nil, err
		}
		if t, ok := a[0].(*Tensor); ok {
			out, err := kernels.Unary(kernels.Abs, t.Value)
			return t.wrapResult(out, err)
		}
		i, f, isFloat, ok := numeric(a[0])
		if !ok {
			return nil, Errorf(TypeError, "bad operand type for abs(): '%s'", a[0].TypeName())
		}
		if isFloat {
			return Float(math.Abs(f)), nil
		}
		if i == math.MinInt64 {
			return nil, intOverflow("abs")
		}
		return Int(int64(absUint(i))), nil
	}).Native = "Abs"
	def("min", func(args []Object, kwargs []Kwarg) (Object, error) { return extremum("min", "<", args, kwargs) })
	def("max", func(args []Object, kwargs []Kwarg) (Object, error) { return extremum("max", ">", args, kwargs) })
	def("sum", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("sum", args, kwargs, 1, "iterable", "start")
		if err != nil {
			return nil, err
		}
		var total Object = Int(0)
		if a[1] != nil {
			total = a[1]
		}
		if t, ok := a[0].(*Tensor); ok && a[1] == nil {
			return reduceTensor(t, kernels.ReduceKindSum, None)
		}
		items, err := Iterate(a[0])
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if total, err = BinaryOp("+", total, item); err != nil {
				return nil, err
			}
		}
		return total, nil
	})
	for _, name := range []string{"all", "any"} {
		def(name, func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs(name, args, kwargs, 1, "iterable")
			if err != nil {
				return nil, err
			}
			items, err := Iterate(a[0])
			if err != nil {
				return nil, err
			}
			want := name == "any"
			for _, item := range items {
				truth, err := Truth(item)
				if err != nil {
					return nil, err
				}
				if truth == want {
					return Bool(want), nil
				}
			}
			return Bool(!want), nil
		})
	}
	def("isinstance", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("isinstance", args, kwargs, 2, "obj", "class_or_tuple")
		if err != nil {
			return nil, err
		}
		ok, err := isInstance(a[0], a[1])
		return Bool(ok), err
	})
	def("getattr", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("getattr", args, kwargs, 2, "obj", "name", "default")
		if err != nil {
			return nil, err
		}
		name, ok := a[1].(Str)
		if !ok {
			return nil, Errorf(TypeError, "attribute name must be string, not '%s'", a[1].TypeName())
		}
		value, err := GetAttr(a[0], string(name))
		if err != nil && a[2] != nil {
			if hostErr, isHost := AsError(err); isHost && hostErr.Kind == AttributeError {
				return a[2], nil
			}
		}
		return value, err
	})
	def("hasattr", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("hasattr", args, kwargs, 2, "obj", "name")
		if err != nil {
			return nil, err
		}
		name, ok := a[1].(Str)
		if !ok {
			return nil, Errorf(TypeError, "attribute name must be string, not '%s'", a[1].TypeName())
		}
		return Bool(HasAttr(a[0], string(name))), nil
	})
	def("setattr", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("setattr", args, kwargs, 3, "obj", "name", "value")
		if err != nil {
			return nil, err
		}
		name, ok := a[1].(Str)
		if !ok {
			return nil, Errorf(TypeError, "attribute name must be string, not '%s'", a[1].TypeName())
		}
		return None, SetAttr(a[0], string(name), a[2])
	}).Impure = true
	def("print", func(args []Object, kwargs []Kwarg) (Object, error) {
		if err := onlyKwargs("print", kwargs, "sep", "end"); err != nil {
			return nil, err
		}
		sep, end := " ", "\n"
		if v := kwarg(kwargs, "sep"); v != nil && !IsNone(v) {
			sep = ToStr(v)
		}
		if v := kwarg(kwargs, "end"); v != nil && !IsNone(v) {
			end = ToStr(v)
		}
		parts := make([]string, len(args))
		for i, arg := range args {
			parts[i] = ToStr(arg)
		}
		_, err := fmt.Fprint(it.Stdout, strings.Join(parts, sep)+end)
		return None, err
	}).Impure = true
	def("enumerate", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("enumerate", args, kwargs, 1, "iterable", "start")
		if err != nil {
			return nil, err
		}
		start := 0
		if a[1] != nil {
			if start, err = indexValue(a[1], "enumerate"); err != nil {
				return nil, err
			}
		}
		items, err := Iterate(a[0])
		if err != nil {
			return nil, err
		}
		out := make([]Object, len(items))
		for i, item := range items {
			out[i] = NewTuple(Int(start+i), item)
		}
		return &List{Elems: out}, nil
	})
	def("zip", func(args []Object, kwargs []Kwarg) (Object, error) {
		if err := onlyKwargs("zip", kwargs); err != nil {
			return nil, err
		}
		columns := make([][]Object, len(args))
		n := -1
		for i, arg := range args {
			items, err := Iterate(arg)
			if err != nil {
				return nil, Errorf(TypeError, "zip argument #%d must support iteration", i+1)
			}
			columns[i] = items
			if n < 0 || len(items) < n {
				n = len(items)
			}
		}
		out := make([]Object, max(n, 0))
		for row := range out {
			elems := make([]Object, len(columns))
			for i, column := range columns {
				elems[i] = column[row]
			}
			out[row] = &Tuple{Elems: elems}
		}
		return &List{Elems: out}, nil
	})
	def("reversed", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("reversed", args, kwargs, 1, "sequence")
		if err != nil {
			return nil, err
		}
		items, err := Iterate(a[0])
		if err != nil {
			return nil, err
		}
		slices.Reverse(items)
		return &List{Elems: items}, nil
	})
	def("sorted", func(args []Object, kwargs []Kwarg) (Object, error) {
		if len(args) != 1 {
			return nil, Errorf(TypeError, "sorted expected 1 argument, got %d", len(args))
		}
		items, err := Iterate(args[0])
		if err != nil {
			return nil, err
		}
		sorted, err := sortObjects(items, kwargs)
		return &List{Elems: sorted}, err
	})
	def("round", func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs("round", args, kwargs, 1, "number", "ndigits")
		if err != nil {
			return nil, err
		}
		i, f, isFloat, ok := numeric(a[0])
		if !ok {
			return nil, Errorf(TypeError, "type %s doesn't define __round__ method", a[0].TypeName())
		}
		if IsNone(a[1]) {
			if !isFloat {
				return Int(i), nil
			}
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, Errorf(ValueError, "cannot convert float %s to integer", formatFloat(f))
			}
			return Int(int64(math.RoundToEven(f))), nil
		}
		digits, err := indexValue(a[1], "round")
		if err != nil {
			return nil, err
		}
		if !isFloat {
			return Int(i), nil
		}
		scale := math.Pow(10, float64(digits))
		return Float(math.RoundToEven(f*scale) / scale), nil
	})
	it.builtins.Set("range", RangeType)
}

// extremum implements min() and max().
func extremum(name, op string, args []Object, kwargs []Kwarg) (Object, error) {
	if err := onlyKwargs(name, kwargs, "key", "default"); err != nil {
		return nil, err
	}
	keyFn, dflt := kwarg(kwargs, "key"), kwarg(kwargs, "default")
	items := args
	if len(args) == 1 {
		if t, ok := args[0].(*Tensor); ok && keyFn == nil {
			kind := kernels.ReduceKindMax
			if name == "min" {
				kind = kernels.ReduceKindMin
			}
			if t.Value.Rank() == 1 {
				return reduceTensor(t, kind, None)
			}
		}
		var err error
		if items, err = Iterate(args[0]); err != nil {
			return nil, err
		}
	} else if len(args) == 0 {
		return nil, Errorf(TypeError, "%s expected at least 1 argument, got 0", name)
	}
	if len(items) == 0 {
		if dflt != nil {
			return dflt, nil
		}
		return nil, Errorf(ValueError, "%s() arg is an empty sequence", name)
	}
	key := func(obj Object) (Object, error) {
		if keyFn == nil || IsNone(keyFn) {
			return obj, nil
		}
		return Call(keyFn, []Object{obj}, nil)
	}
	best := items[0]
	bestKey, err := key(best)
	if err != nil {
		return nil, err
	}
	for _, item := range items[1:] {
		k, err := key(item)
		if err != nil {
			return nil, err
		}
		better, err := Compare(op, k, bestKey)
		if err != nil {
			return nil, err
		}
		if truth, err := Truth(better); err != nil {
			return nil, err
		} else if truth {
			best, bestKey = item, k
		}
	}
	return best, nil
}

func isInstance(obj, classes Object) (bool, error) {
	switch c := classes.(type) {
	case *Type:
		if c.Instance == nil {
			return false, nil
		}
		return c.Instance(obj), nil
	case *Tuple:
		for _, elem := range c.Elems {
			ok, err := isInstance(obj, elem)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
	return false, Errorf(TypeError, "isinstance() arg 2 must be a type or tuple of types")
}
