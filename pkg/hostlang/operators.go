// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlang

import (
	"math"
	"math/bits"
	"reflect"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/kernels"
	"github.com/gomlx/jitfallback/pkg/core/tensors"
)

// GetAttr implements "obj.name", with the uniform AttributeError for missing attributes.
func GetAttr(obj Object, name string) (Object, error) {
	attributer, ok := obj.(Attributer)
	if !ok {
		return nil, attributeError(obj.TypeName(), name, nil)
	}
	if value, found := attributer.Attr(name); found {
		return value, nil
	}
	if m, isModule := obj.(*Module); isModule {
		err := Errorf(AttributeError, "module '%s' has no attribute '%s'", m.Name, name)
		if suggestion := closestName(name, m.AttrNames()); suggestion != "" {
			err.Msg += ". Did you mean: '" + suggestion + "'?"
		}
		return nil, err
	}
	return nil, attributeError(obj.TypeName(), name, attributer.AttrNames())
}

// HasAttr reports whether GetAttr would succeed.
func HasAttr(obj Object, name string) bool {
	if attributer, ok := obj.(Attributer); ok {
		_, found := attributer.Attr(name)
		return found
	}
	return false
}

// SetAttr implements "obj.name = value".
func SetAttr(obj Object, name string, value Object) error {
	if setter, ok := obj.(AttrSetter); ok {
		return setter.SetAttr(name, value)
	}
	if HasAttr(obj, name) {
		return Errorf(AttributeError, "'%s' object attribute '%s' is read-only", obj.TypeName(), name)
	}
	return attributeError(obj.TypeName(), name, nil)
}

// GetItem implements "obj[key]".
func GetItem(obj, key Object) (Object, error) {
	switch o := obj.(type) {
	case Str:
		runes := []rune(string(o))
		elems := make([]Object, len(runes))
		for i, r := range runes {
			elems[i] = Str(r)
		}
		item, err := sequenceGetItem("string", elems, key, func(elems []Object) Object {
			var b strings.Builder
			for _, e := range elems {
				b.WriteString(string(e.(Str)))
			}
			return Str(b.String())
		})
		return item, err
	case Indexer:
		return o.GetItem(key)
	case *Type:
		// Generic aliases such as list[int] are accepted and ignored.
		return o, nil
	}
	return nil, Errorf(TypeError, "'%s' object is not subscriptable", obj.TypeName())
}

// SetItem implements "obj[key] = value".
func SetItem(obj, key, value Object) error {
	if setter, ok := obj.(ItemSetter); ok {
		return setter.SetItem(key, value)
	}
	return Errorf(TypeError, "'%s' object does not support item assignment", obj.TypeName())
}

// Call calls a callable object.
func Call(fn Object, args []Object, kwargs []Kwarg) (Object, error) {
	caller, ok := fn.(Caller)
	if !ok {
		return nil, Errorf(TypeError, "'%s' object is not callable", fn.TypeName())
	}
	return caller.Call(args, kwargs)
}

// Len implements len().
func Len(obj Object) (int, error) {
	switch o := obj.(type) {
	case Str:
		return len([]rune(string(o))), nil
	case *Tensor:
		if o.Value.Rank() == 0 {
			return 0, Errorf(TypeError, "len() of unsized object")
		}
		return o.Len(), nil
	case Lener:
		return o.Len(), nil
	}
	return 0, Errorf(TypeError, "object of type '%s' has no len()", obj.TypeName())
}

// Iterate materializes the items of an iterable.
func Iterate(obj Object) ([]Object, error) {
	switch o := obj.(type) {
	case Str:
		var out []Object
		for _, r := range string(o) {
			out = append(out, Str(r))
		}
		return out, nil
	case Iterable:
		return o.Iter()
	}
	return nil, Errorf(TypeError, "'%s' object is not iterable", obj.TypeName())
}

// Truth implements truthiness.
func Truth(obj Object) (bool, error) {
	switch o := obj.(type) {
	case nil, *NoneType:
		return false, nil
	case Bool:
		return bool(o), nil
	case Int:
		return o != 0, nil
	case Float:
		return o != 0, nil
	case Str:
		return o != "", nil
	case *Tensor:
		if o.Value.Size() != 1 {
			return false, Errorf(ValueError, "The truth value of an array with more than one element is ambiguous. Use a.any() or a.all()")
		}
		return tensors.ToFloat64s(o.Value)[0] != 0, nil
	case Lener:
		return o.Len() != 0, nil
	}
	return true, nil
}

// numeric returns the value of bool/int/float objects, and whether it is a float.
func numeric(obj Object) (i int64, f float64, isFloat, ok bool) {
	switch v := obj.(type) {
	case Bool:
		if v {
			return 1, 1, false, true
		}
		return 0, 0, false, true
	case Int:
		return int64(v), float64(v), false, true
	case Float:
		return 0, float64(v), true, true
	}
	return 0, 0, false, false
}

var binaryKernels = map[string]kernels.BinaryOp{
	"+": kernels.Add, "-": kernels.Sub, "*": kernels.Mul, "/": kernels.Div, "//": kernels.FloorDiv,
	"%": kernels.Mod, "**": kernels.Pow, "&": kernels.LogicalAnd, "|": kernels.LogicalOr,
	"==": kernels.Equal, "!=": kernels.NotEqual, "<": kernels.Less, "<=": kernels.LessEqual,
	">": kernels.Greater, ">=": kernels.GreaterEqual,
}

func unsupportedOperands(op string, a, b Object) error {
	return Errorf(TypeError, "unsupported operand type(s) for %s: '%s' and '%s'", op, a.TypeName(), b.TypeName())
}

// BinaryOp implements the arithmetic and bitwise operators.
func BinaryOp(op string, a, b Object) (Object, error) {
	_, aTensor := a.(*Tensor)
	_, bTensor := b.(*Tensor)
	if aTensor || bTensor {
		return tensorBinary(op, a, b)
	}
	ai, af, aFloat, aNum := numeric(a)
	bi, bf, bFloat, bNum := numeric(b)
	if aNum && bNum {
		_, aBool := a.(Bool)
		_, bBool := b.(Bool)
		if aBool && bBool && (op == "&" || op == "|" || op == "^") {
			switch op {
			case "&":
				return Bool(ai&bi != 0), nil
			case "|":
				return Bool(ai|bi != 0), nil
			}
			return Bool(ai^bi != 0), nil
		}
		if aFloat || bFloat {
			return floatBinary(op, af, bf, a, b)
		}
		return intBinary(op, ai, bi, a, b)
	}
	switch av := a.(type) {
	case Str:
		switch bv := b.(type) {
		case Str:
			if op == "+" {
				return av + bv, nil
			}
		case Int, Bool:
			if op == "*" {
				return Str(strings.Repeat(string(av), max(0, int(bi)))), nil
			}
		}
	case *List:
		if bv, ok := b.(*List); ok && op == "+" {
			return &List{Elems: append(append([]Object{}, av.Elems...), bv.Elems...)}, nil
		}
		if bNum && !bFloat && op == "*" {
			return &List{Elems: repeatObjects(av.Elems, bi)}, nil
		}
	case *Tuple:
		if bv, ok := b.(*Tuple); ok && op == "+" {
			return &Tuple{Elems: append(append([]Object{}, av.Elems...), bv.Elems...)}, nil
		}
		if bNum && !bFloat && op == "*" {
			return &Tuple{Elems: repeatObjects(av.Elems, bi)}, nil
		}
	case Int, Bool:
		if op == "*" {
			switch b.(type) {
			case Str, *List, *Tuple:
				return BinaryOp(op, b, a)
			}
		}
	}
	return nil, unsupportedOperands(op, a, b)
}

func repeatObjects(elems []Object, n int64) []Object {
	var out []Object
	for range max(0, n) {
		out = append(out, elems...)
	}
	return out
}

func floatBinary(op string, x, y float64, a, b Object) (Object, error) {
	switch op {
	case "+":
		return Float(x + y), nil
	case "-":
		return Float(x - y), nil
	case "*":
		return Float(x * y), nil
	case "/":
		if y == 0 {
			return nil, Errorf(ZeroDivisionError, "float division by zero")
		}
		return Float(x / y), nil
	case "//":
		if y == 0 {
			return nil, Errorf(ZeroDivisionError, "float floor division by zero")
		}
		return Float(math.Floor(x / y)), nil
	case "%":
		if y == 0 {
			return nil, Errorf(ZeroDivisionError, "float modulo")
		}
		return Float(x - math.Floor(x/y)*y), nil
	case "**":
		if x == 0 && y < 0 {
			return nil, Errorf(ZeroDivisionError, "0.0 cannot be raised to a negative power")
		}
		return Float(math.Pow(x, y)), nil
	}
	return nil, unsupportedOperands(op, a, b)
}

func intBinary(op string, x, y int64, a, b Object) (Object, error) {
	switch op {
	case "+":
		s := x + y
		if (x >= 0) == (y >= 0) && (s >= 0) != (x >= 0) {
			return nil, intOverflow(op)
		}
		return Int(s), nil
	case "-":
		d := x - y
		if (x >= 0) != (y >= 0) && (d >= 0) != (x >= 0) {
			return nil, intOverflow(op)
		}
		return Int(d), nil
	case "*":
		p, overflow := mulInt(x, y)
		if overflow {
			return nil, intOverflow(op)
		}
		return Int(p), nil
	case "/":
		if y == 0 {
			return nil, Errorf(ZeroDivisionError, "division by zero")
		}
		return Float(float64(x) / float64(y)), nil
	case "//", "%":
		if y == 0 {
			return nil, Errorf(ZeroDivisionError, "integer division or modulo by zero")
		}
		if x == math.MinInt64 && y == -1 {
			if op == "%" {
				return Int(0), nil
			}
			return nil, intOverflow(op)
		}
		q, r := x/y, x%y
		if r != 0 && (r < 0) != (y < 0) {
			q--
			r += y
		}
		if op == "//" {
			return Int(q), nil
		}
		return Int(r), nil
	case "**":
		if y < 0 {
			if x == 0 {
				return nil, Errorf(ZeroDivisionError, "0.0 cannot be raised to a negative power")
			}
			return Float(math.Pow(float64(x), float64(y))), nil
		}
		result, overflow := powInt(x, y)
		if overflow {
			return nil, intOverflow(op)
		}
		return Int(result), nil
	case "&":
		return Int(x & y), nil
	case "|":
		return Int(x | y), nil
	case "^":
		return Int(x ^ y), nil
	case "<<":
		if y < 0 {
			return nil, Errorf(ValueError, "negative shift count")
		}
		if x == 0 {
			return Int(0), nil
		}
		if y >= 64 {
			return nil, intOverflow(op)
		}
		shifted := x << uint(y)
		if shifted>>uint(y) != x {
			return nil, intOverflow(op)
		}
		return Int(shifted), nil
	case ">>":
		if y < 0 {
			return nil, Errorf(ValueError, "negative shift count")
		}
		return Int(x >> uint(y)), nil
	}
	return nil, unsupportedOperands(op, a, b)
}

// intOverflow is raised when an int result doesn't fit in 64 bits.
func intOverflow(op string) *Error {
	return &Error{Kind: UserRaised, ExceptionName: "OverflowError", Msg: "int result of '" + op + "' does not fit in 64 bits"}
}

// mulInt multiplies x and y, reporting whether the product overflows int64.
func mulInt(x, y int64) (int64, bool) {
	if x == 0 || y == 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(absUint(x), absUint(y))
	if hi != 0 {
		return 0, true
	}
	if (x < 0) != (y < 0) {
		if lo > 1<<63 {
			return 0, true
		}
		return int64(-lo), false
	}
	if lo > math.MaxInt64 {
		return 0, true
	}
	return int64(lo), false
}

// powInt computes x**y for y >= 0 by squaring, reporting whether the result overflows int64.
func powInt(x, y int64) (int64, bool) {
	result := int64(1)
	var overflow bool
	for y > 0 {
		if y&1 == 1 {
			if result, overflow = mulInt(result, x); overflow {
				return 0, true
			}
		}
		y >>= 1
		if y > 0 {
			if x, overflow = mulInt(x, x); overflow {
				return 0, true
			}
		}
	}
	return result, false
}

func absUint(x int64) uint64 {
	if x < 0 {
		return uint64(-x)
	}
	return uint64(x)
}

// tensorBinary evaluates an operator with at least one tensor operand, numpy style.
func tensorBinary(op string, a, b Object) (Object, error) {
	kernelOp, found := binaryKernels[op]
	if !found {
		return nil, unsupportedOperands(op, a, b)
	}
	x, xWeak, xNumPy, xOk := tensorOperand(a)
	y, yWeak, yNumPy, yOk := tensorOperand(b)
	if !xOk || !yOk {
		return nil, unsupportedOperands(op, a, b)
	}
	if (op == "&" || op == "|") && (x.DType() != dtypes.Bool || y.DType() != dtypes.Bool) {
		return nil, Errorf(TypeError, "operator %s is only supported for boolean tensors", op)
	}
	outDType := kernels.BinaryResultDType(kernelOp, x.DType(), y.DType(), xWeak, yWeak)
	out, err := kernels.Binary(kernelOp, x, y, outDType)
	if err != nil {
		return nil, fromKernelError(err)
	}
	return &Tensor{Value: out, NumPy: xNumPy || yNumPy}, nil
}

// UnaryOp implements "-x", "+x", "~x" and "not x".
func UnaryOp(op string, x Object) (Object, error) {
	if op == "not" {
		truth, err := Truth(x)
		if err != nil {
			return nil, err
		}
		return Bool(!truth), nil
	}
	if t, ok := x.(*Tensor); ok {
		switch op {
		case "+":
			return t, nil
		case "-":
			out, err := kernels.Unary(kernels.Neg, t.Value)
			return t.wrapResult(out, err)
		case "~":
			if t.Value.DType() == dtypes.Bool {
				out, err := kernels.Unary(kernels.LogicalNot, t.Value)
				return t.wrapResult(out, err)
			}
		}
		return nil, Errorf(TypeError, "bad operand type for unary %s: '%s'", op, x.TypeName())
	}
	i, f, isFloat, ok := numeric(x)
	if !ok {
		return nil, Errorf(TypeError, "bad operand type for unary %s: '%s'", op, x.TypeName())
	}
	switch op {
	case "-":
		if isFloat {
			return Float(-f), nil
		}
		if i == math.MinInt64 {
			return nil, intOverflow("unary -")
		}
		return Int(-i), nil
	case "+":
		if isFloat {
			return Float(f), nil
		}
		return Int(i), nil
	case "~":
		if !isFloat {
			return Int(^i), nil
		}
	}
	return nil, Errorf(TypeError, "bad operand type for unary %s: '%s'", op, x.TypeName())
}

func (t *Tensor) wrapResult(out *tensors.Tensor, err error) (Object, error) {
	if err != nil {
		return nil, fromKernelError(err)
	}
	return t.wrap(out), nil
}

// Compare implements the comparison operators, including "in", "not in", "is" and "is not".
// Comparisons involving tensors are elementwise and return a boolean tensor.
func Compare(op string, a, b Object) (Object, error) {
	switch op {
	case "is", "is not":
		same := identical(a, b)
		return Bool(same == (op == "is")), nil
	case "in", "not in":
		found, err := contains(b, a)
		if err != nil {
			return nil, err
		}
		return Bool(found == (op == "in")), nil
	}
	_, aTensor := a.(*Tensor)
	_, bTensor := b.(*Tensor)
	if aTensor || bTensor {
		return tensorBinary(op, a, b)
	}
	if op == "==" || op == "!=" {
		eq, err := Equal(a, b)
		if err != nil {
			return nil, err
		}
		return Bool(eq == (op == "==")), nil
	}
	cmp, err := order(op, a, b)
	if err != nil {
		return nil, err
	}
	switch op {
	case "<":
		return Bool(cmp < 0), nil
	case "<=":
		return Bool(cmp <= 0), nil
	case ">":
		return Bool(cmp > 0), nil
	}
	return Bool(cmp >= 0), nil
}

func identical(a, b Object) bool {
	if IsNone(a) || IsNone(b) {
		return IsNone(a) && IsNone(b)
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// order returns -1, 0 or 1 comparing a and b.
func order(op string, a, b Object) (int, error) {
	ai, af, aFloat, aNum := numeric(a)
	bi, bf, bFloat, bNum := numeric(b)
	if aNum && bNum {
		if aFloat || bFloat {
			return cmp3(af, bf), nil
		}
		return cmp3(ai, bi), nil
	}
	switch av := a.(type) {
	case Str:
		if bv, ok := b.(Str); ok {
			return strings.Compare(string(av), string(bv)), nil
		}
	case *List:
		if bv, ok := b.(*List); ok {
			return orderSequences(op, av.Elems, bv.Elems)
		}
	case *Tuple:
		if bv, ok := b.(*Tuple); ok {
			return orderSequences(op, av.Elems, bv.Elems)
		}
	}
	return 0, Errorf(TypeError, "'%s' not supported between instances of '%s' and '%s'", op, a.TypeName(), b.TypeName())
}

func cmp3[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func orderSequences(op string, a, b []Object) (int, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		eq, err := Equal(a[i], b[i])
		if err != nil {
			return 0, err
		}
		if !eq {
			return order(op, a[i], b[i])
		}
	}
	return cmp3(int64(len(a)), int64(len(b))), nil
}

// Equal implements "==" for host values. Tensors compare equal when shape, dtype and contents match.
func Equal(a, b Object) (bool, error) {
	if IsNone(a) || IsNone(b) {
		return IsNone(a) && IsNone(b), nil
	}
	ai, af, aFloat, aNum := numeric(a)
	bi, bf, bFloat, bNum := numeric(b)
	if aNum && bNum {
		if aFloat || bFloat {
			return af == bf, nil
		}
		return ai == bi, nil
	}
	switch av := a.(type) {
	case Str:
		bv, ok := b.(Str)
		return ok && av == bv, nil
	case *List:
		bv, ok := b.(*List)
		return ok && equalSequences(av.Elems, bv.Elems), nil
	case *Tuple:
		bv, ok := b.(*Tuple)
		return ok && equalSequences(av.Elems, bv.Elems), nil
	case *Dict:
		bv, ok := b.(*Dict)
		if !ok || av.Len() != bv.Len() {
			return false, nil
		}
		for _, item := range av.Items() {
			other, found, err := bv.Get(item[0])
			if err != nil || !found {
				return false, err
			}
			if eq, err := Equal(item[1], other); err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	case *DType:
		bv, ok := b.(*DType)
		return ok && av.DType == bv.DType, nil
	case *Tensor:
		bv, ok := b.(*Tensor)
		return ok && av.Value.Equal(bv.Value), nil
	case *Range:
		bv, ok := b.(*Range)
		return ok && *av == *bv, nil
	}
	return identical(a, b), nil
}

func equalSequences(a, b []Object) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if eq, err := Equal(a[i], b[i]); err != nil || !eq {
			return false
		}
	}
	return true
}

func contains(container, item Object) (bool, error) {
	switch c := container.(type) {
	case Str:
		s, ok := item.(Str)
		if !ok {
			return false, Errorf(TypeError, "'in <string>' requires string as left operand, not %s", item.TypeName())
		}
		return strings.Contains(string(c), string(s)), nil
	case *Dict:
		_, found, err := c.Get(item)
		return found, err
	case *Tensor:
		_, _, _, isNum := numeric(item)
		if !isNum {
			return false, nil
		}
		_, f, _, _ := numeric(item)
		for _, v := range tensors.ToFloat64s(c.Value) {
			if v == f {
				return true, nil
			}
		}
		return false, nil
	}
	items, err := Iterate(container)
	if err != nil {
		return false, Errorf(TypeError, "argument of type '%s' is not iterable", container.TypeName())
	}
	for _, e := range items {
		if eq, err := Equal(e, item); err != nil || eq {
			return eq, err
		}
	}
	return false, nil
}
