// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlang

import (
	"bytes"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/tensors"
	"github.com/gomlx/jitfallback/pkg/hostlang/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runModule executes src and returns its globals.
func runModule(t *testing.T, it *Interpreter, src string) *Env {
	t.Helper()
	mod, err := syntax.Parse("test.py", src)
	require.NoError(t, err)
	globals := it.NewGlobals("test")
	require.NoError(t, it.ExecModule(mod, globals))
	return globals
}

// evalString evaluates a single expression in a fresh module scope.
func evalString(it *Interpreter, src string) (Object, error) {
	expr, err := syntax.ParseExpr(src)
	if err != nil {
		return nil, err
	}
	globals := it.NewGlobals("test")
	return it.Eval(expr, globals)
}

func mustEval(t *testing.T, it *Interpreter, src string) Object {
	t.Helper()
	value, err := evalString(it, src)
	require.NoError(t, err, "evaluating %q", src)
	return value
}

func requireHostError(t *testing.T, err error, kind ErrorKind, msg string) {
	t.Helper()
	require.Error(t, err)
	hostErr, ok := AsError(err)
	require.True(t, ok, "expected a host exception, got %T: %v", err, err)
	assert.Equal(t, kind, hostErr.Kind)
	assert.Equal(t, msg, hostErr.Msg)
}

func TestArithmetic(t *testing.T) {
	it := New()
	for src, want := range map[string]Object{
		"7 // 2":            Int(3),
		"-7 // 2":           Int(-4),
		"-7 % 3":            Int(2),
		"7 / 2":             Float(3.5),
		"2 ** 10":           Int(1024),
		"2 ** -1":           Float(0.5),
		"-2 ** 2":           Int(-4),
		"1 + 2 * 3":         Int(7),
		"(1 + 2) * 3":       Int(9),
		"7.5 // 2":          Float(3),
		"True + True":       Int(2),
		"'ab' * 2":          Str("abab"),
		"[1] + [2, 3]":      NewList(Int(1), Int(2), Int(3)),
		"(1,) * 2":          NewTuple(Int(1), Int(1)),
		"1 < 2 < 3":         Bool(true),
		"3 > 2 > 2":         Bool(false),
		"1 == 1.0":          Bool(true),
		"2 in [1, 2]":       Bool(true),
		"'x' not in 'ab'":   Bool(true),
		"None is None":      Bool(true),
		"0 or 'x'":          Str("x"),
		"1 and 0":           Int(0),
		"not []":            Bool(true),
		"1 if 0 else 2":     Int(2),
		"6 & 3 | 8":         Int(10),
		"1 << 4":            Int(16),
		"abs(-3)":           Int(3),
		"round(2.5)":        Int(2),
		"round(3.14159, 2)": Float(3.14),
	} {
		t.Run(src, func(t *testing.T) {
			got := mustEval(t, it, src)
			eq, err := Equal(got, want)
			require.NoError(t, err)
			assert.True(t, eq, "%s = %s, wanted %s", src, Repr(got), Repr(want))
			assert.Equal(t, want.TypeName(), got.TypeName())
		})
	}

	_, err := evalString(it, "1 / 0")
	requireHostError(t, err, ZeroDivisionError, "division by zero")
	_, err = evalString(it, "1 % 0")
	requireHostError(t, err, ZeroDivisionError, "integer division or modulo by zero")
	_, err = evalString(it, "1 + 'a'")
	requireHostError(t, err, TypeError, "unsupported operand type(s) for +: 'int' and 'str'")
	_, err = evalString(it, "[1] < 'a'")
	requireHostError(t, err, TypeError, "'<' not supported between instances of 'list' and 'str'")
}

func TestIntOverflow(t *testing.T) {
	it := New()
	for src, want := range map[string]Object{
		"9223372036854775806 + 1":         Int(math.MaxInt64),
		"-9223372036854775807 - 1":        Int(math.MinInt64),
		"(-2) ** 63":                      Int(math.MinInt64),
		"2 ** 62":                         Int(1 << 62),
		"(-1) ** 1000000000001":           Int(-1),
		"3037000499 * 3037000499":         Int(9223372030926249001),
		"(-9223372036854775807 - 1) % -1": Int(0),
		"1 << 62":                         Int(1 << 62),
		"int(-9.2e18)":                    Int(-9200000000000000000),
		"abs(-9223372036854775807)":       Int(math.MaxInt64),
		"f'{-9223372036854775807 - 1:d}'": Str("-9223372036854775808"),
	} {
		t.Run(src, func(t *testing.T) {
			got := mustEval(t, it, src)
			eq, err := Equal(got, want)
			require.NoError(t, err)
			assert.True(t, eq, "%s = %s, wanted %s", src, Repr(got), Repr(want))
		})
	}

	for _, src := range []string{
		"2 ** 63",
		"10 ** 20",
		"9223372036854775807 + 1",
		"-9223372036854775807 - 2",
		"3037000500 * 3037000500",
		"(-9223372036854775807 - 1) * -1",
		"(-9223372036854775807 - 1) // -1",
		"-(-9223372036854775807 - 1)",
		"abs(-9223372036854775807 - 1)",
		"1 << 63",
		"3 << 62",
		"int(1e20)",
		"int(-1e19)",
		"int('99999999999999999999')",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := evalString(it, src)
			require.Error(t, err)
			hostErr, ok := AsError(err)
			require.True(t, ok, "expected a host exception, got %T: %v", err, err)
			assert.Equal(t, UserRaised, hostErr.Kind)
			assert.Equal(t, "OverflowError", hostErr.Name())
		})
	}
}

func TestReprAndFormat(t *testing.T) {
	it := New()
	for src, want := range map[string]string{
		"repr(1.0)":                           "1.0",
		"repr(1e20)":                          "1e+20",
		"repr(0.1 + 0.2)":                     "0.30000000000000004",
		"repr(\"it's\")":                      `"it's"`,
		"repr((1,))":                          "(1,)",
		"repr([None, True, 'a'])":             "[None, True, 'a']",
		"repr({'b': 1, 'a': 2})":              "{'b': 1, 'a': 2}",
		"str(1.5)":                            "1.5",
		"f'{3.14159:.2f}'":                    "3.14",
		"f'{42:>5}|{\"x\":<3}|'":              "   42|x  |",
		"f'{1234567:,}'":                      "1,234,567",
		"f'{0.25:.1%}'":                       "25.0%",
		"f'{\"a\"!r} {{x}}'":                  "'a' {x}",
		"'{} and {name}'.format(1, name='b')": "1 and b",
		"'-'.join(['a', 'b'])":                "a-b",
		"' x '.strip().upper()":               "X",
		"'a,b'.split(',')[1]":                 "b",
	} {
		t.Run(src, func(t *testing.T) {
			got := mustEval(t, it, src)
			assert.Equal(t, want, ToStr(got))
		})
	}
}

func TestStatements(t *testing.T) {
	it := New()
	globals := runModule(t, it, `
import math
from functools import reduce
import numpy as np

def fib(n):
    a, b = 0, 1
    for _ in range(n):
        a, b = b, a + b
    return a

def collatz(n):
    steps = 0
    while n != 1:
        if n % 2 == 0:
            n //= 2
        else:
            n = 3 * n + 1
        steps += 1
    return steps

def varargs(first, scale=2, *rest, **extra):
    return (first, len(rest), scale, sorted(extra))

def make_adder(k):
    return lambda x: x + k

first, *middle, last = [1, 2, 3, 4, 5]
squares = [x * x for x in range(6) if x % 2 == 0]
pairs = {k: v for k, v in zip("abc", range(3))}
total = reduce(lambda a, b: a + b, [1, 2, 3, 4])
gen_sum = sum(x for x in range(5))
nested = [(i, j) for i in range(3) for j in range(i)]
add3 = make_adder(3)
counts = {}
for word in ["a", "b", "a"]:
    counts[word] = counts.get(word, 0) + 1
found = -1
for i, v in enumerate([5, 7, 9]):
    if v == 7:
        found = i
        break
acc = []
acc += [1]
acc.append(2)
r = math.floor(math.sqrt(17))
`)
	get := func(name string) Object {
		value, found := globals.Lookup(name)
		require.True(t, found, "global %q", name)
		return value
	}
	call := func(name string, args ...Object) Object {
		out, err := Call(get(name), args, nil)
		require.NoError(t, err)
		return out
	}

	assert.Equal(t, Int(55), call("fib", Int(10)))
	assert.Equal(t, Int(111), call("collatz", Int(27)))
	out, err := Call(get("varargs"), []Object{Int(1), Int(5), Int(3), Int(4)}, []Kwarg{{"z", Int(0)}, {"y", Int(0)}})
	require.NoError(t, err)
	assert.Equal(t, "(1, 2, 5, ['y', 'z'])", Repr(out))
	assert.Equal(t, Int(1), get("first"))
	assert.Equal(t, "[2, 3, 4]", Repr(get("middle")))
	assert.Equal(t, Int(5), get("last"))
	assert.Equal(t, "[0, 4, 16]", Repr(get("squares")))
	assert.Equal(t, "{'a': 0, 'b': 1, 'c': 2}", Repr(get("pairs")))
	assert.Equal(t, Int(10), get("total"))
	assert.Equal(t, Int(10), get("gen_sum"))
	assert.Equal(t, "[(1, 0), (2, 0), (2, 1)]", Repr(get("nested")))
	assert.Equal(t, Int(8), call("add3", Int(5)))
	assert.Equal(t, "{'a': 2, 'b': 1}", Repr(get("counts")))
	assert.Equal(t, Int(1), get("found"))
	assert.Equal(t, "[1, 2]", Repr(get("acc")))
	assert.Equal(t, Int(4), get("r"))

	t.Run("call errors", func(t *testing.T) {
		_, err := Call(get("fib"), nil, nil)
		requireHostError(t, err, TypeError, "fib() missing 1 required positional argument: 'n'")
		_, err = Call(get("fib"), []Object{Int(1), Int(2)}, nil)
		requireHostError(t, err, TypeError, "fib() takes 1 positional arguments but 2 were given")
		_, err = Call(get("fib"), []Object{Int(1)}, []Kwarg{{"m", Int(2)}})
		requireHostError(t, err, TypeError, "fib() got an unexpected keyword argument 'm'")
	})
}

func TestErrors(t *testing.T) {
	it := New()
	for _, tc := range []struct {
		src  string
		kind ErrorKind
		msg  string
	}{
		{"undefined_name", NameError, "name 'undefined_name' is not defined"},
		{"lenn([])", NameError, "name 'lenn' is not defined. Did you mean: 'len'?"},
		{"[1, 2][5]", IndexError, "list index out of range"},
		{"(1, 2)[-3]", IndexError, "tuple index out of range"},
		{"{'a': 1}['b']", KeyError, "'b'"},
		{"int('x')", ValueError, "invalid literal for int() with base 10: 'x'"},
		{"[1, 2].shape", AttributeError, "'list' object has no attribute 'shape'"},
		{"(1, 2).shape", AttributeError, "'tuple' object has no attribute 'shape'"},
		{"{'a': 1}.shape", AttributeError, "'dict' object has no attribute 'shape'"},
		{"{'a': 1}.item()", AttributeError, "'dict' object has no attribute 'item'. Did you mean: 'items'?"},
		{"[].apend(1)", AttributeError, "'list' object has no attribute 'apend'. Did you mean: 'append'?"},
		{"(3).foo", AttributeError, "'int' object has no attribute 'foo'"},
		{"1()", TypeError, "'int' object is not callable"},
		{"len(1)", TypeError, "object of type 'int' has no len()"},
		{"{[1]: 2}", TypeError, "unhashable type: 'list'"},
		{"max([])", ValueError, "max() arg is an empty sequence"},
	} {
		t.Run(tc.src, func(t *testing.T) {
			_, err := evalString(it, tc.src)
			requireHostError(t, err, tc.kind, tc.msg)
		})
	}

	t.Run("tensor attribute", func(t *testing.T) {
		globals := it.NewGlobals("test")
		globals.Set("x", NewTensor(tensors.FromFlatDataAndDimensions([]float32{1, 2}, 2)))
		expr, err := syntax.ParseExpr("x.shap")
		require.NoError(t, err)
		_, err = it.Eval(expr, globals)
		requireHostError(t, err, AttributeError, "'Tensor' object has no attribute 'shap'. Did you mean: 'shape'?")
	})

	t.Run("raise", func(t *testing.T) {
		mod, err := syntax.Parse("raise.py", `
class_name = "x"
def check(n):
    if n > 1:
        raise ValueError(f"too big: {n}")
    if n < 0:
        raise KeyError("neg")
    if n == 1:
        raise RuntimeError
    assert n == 0, "unreachable"
`)
		require.NoError(t, err)
		globals := it.NewGlobals("raise")
		require.NoError(t, it.ExecModule(mod, globals))
		check, _ := globals.Lookup("check")
		_, err = Call(check, []Object{Int(5)}, nil)
		requireHostError(t, err, ValueError, "too big: 5")
		assert.Equal(t, "ValueError: too big: 5", err.Error())
		_, err = Call(check, []Object{Int(-1)}, nil)
		requireHostError(t, err, KeyError, "'neg'")
		_, err = Call(check, []Object{Int(1)}, nil)
		requireHostError(t, err, UserRaised, "")
		hostErr, _ := AsError(err)
		assert.Equal(t, "RuntimeError", hostErr.Name())
		_, err = Call(check, []Object{Int(0)}, nil)
		require.NoError(t, err)
	})

	t.Run("unpack", func(t *testing.T) {
		mod, err := syntax.Parse("unpack.py", "a, b = [1, 2, 3]\n")
		require.NoError(t, err)
		err = it.ExecModule(mod, it.NewGlobals("unpack"))
		requireHostError(t, err, ValueError, "too many values to unpack (expected 2)")
		mod, err = syntax.Parse("unpack.py", "a, b, c = (1, 2)\n")
		require.NoError(t, err)
		err = it.ExecModule(mod, it.NewGlobals("unpack"))
		requireHostError(t, err, ValueError, "not enough values to unpack (expected 3, got 2)")
	})

	t.Run("recursion", func(t *testing.T) {
		mod, err := syntax.Parse("rec.py", "def f(n):\n    return f(n + 1)\n")
		require.NoError(t, err)
		globals := it.NewGlobals("rec")
		require.NoError(t, it.ExecModule(mod, globals))
		f, _ := globals.Lookup("f")
		_, err = Call(f, []Object{Int(0)}, nil)
		hostErr, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, "RecursionError", hostErr.Name())
	})
}

func TestDictOrder(t *testing.T) {
	it := New()
	globals := runModule(t, it, `
d = {"z": 1, "a": 2}
d["m"] = 3
d["z"] = 4
removed = d.pop("a")
keys = list(d.keys())
items = list(d.items())
d2 = dict(d, extra=5)
merged = {**d2, "z": 0}
`)
	keys, _ := globals.Lookup("keys")
	assert.Equal(t, "['z', 'm']", Repr(keys))
	items, _ := globals.Lookup("items")
	assert.Equal(t, "[('z', 4), ('m', 3)]", Repr(items))
	merged, _ := globals.Lookup("merged")
	assert.Equal(t, "{'z': 0, 'm': 3, 'extra': 5}", Repr(merged))

	d := NewDict()
	require.NoError(t, d.Set(Int(1), Str("int")))
	require.NoError(t, d.Set(Float(1), Str("float")))
	assert.Equal(t, 1, d.Len(), "1 and 1.0 are the same key")
}

func TestTensors(t *testing.T) {
	it := New()
	globals := runModule(t, it, `
import jit
import numpy as np

x = jit.tensor([[1.0, 2.0], [3.0, 4.0]])
y = x * 2 + 1
z = x + jit.tensor([1, 2], dtype=jit.int64)
total = y.sum()
rows = y.sum(axis=1)
row = x[1]
col = x[:, 0]
shape = x.shape
a = np.array([1, 2, 3])
b = a / 2
c = np.maximum(a, 2)
cmp = a > 1
m = np.arange(6).reshape((2, -1))
idx = np.argmax(np.array([1.0, 5.0, 2.0]))
ok = np.allclose(np.array([1.0, 2.0]), np.array([1.0, 2.0 + 1e-9]))
w = jit.tensor([0, 0, 0])
w[1] = 7
`)
	get := func(name string) *Tensor {
		value, found := globals.Lookup(name)
		require.True(t, found)
		tensor, ok := value.(*Tensor)
		require.True(t, ok, "%s is a %s", name, value.TypeName())
		return tensor
	}
	assert.Equal(t, dtypes.Float32, get("x").Value.DType())
	assert.Equal(t, []float64{3, 5, 7, 9}, tensors.ToFloat64s(get("y").Value))
	assert.Equal(t, dtypes.Float32, get("z").Value.DType())
	assert.Equal(t, []float64{24}, tensors.ToFloat64s(get("total").Value))
	assert.Equal(t, []float64{8, 16}, tensors.ToFloat64s(get("rows").Value))
	assert.Equal(t, []float64{3, 4}, tensors.ToFloat64s(get("row").Value))
	assert.Equal(t, []float64{1, 3}, tensors.ToFloat64s(get("col").Value))
	shape, _ := globals.Lookup("shape")
	assert.Equal(t, "(2, 2)", Repr(shape))

	assert.Equal(t, dtypes.Int64, get("a").Value.DType())
	assert.Equal(t, "numpy.ndarray", get("a").TypeName())
	assert.Equal(t, dtypes.Float32, get("b").Value.DType(), "integer division yields float32")
	assert.Equal(t, []int64{2, 2, 3}, tensors.ToInt64s(get("c").Value))
	assert.Equal(t, []bool{false, true, true}, tensors.ToBools(get("cmp").Value))
	assert.Equal(t, []int{2, 3}, get("m").Value.Dimensions())
	assert.Equal(t, []int64{1}, tensors.ToInt64s(get("idx").Value))
	ok, _ := globals.Lookup("ok")
	assert.Equal(t, Bool(true), ok)
	assert.Equal(t, []int64{0, 7, 0}, tensors.ToInt64s(get("w").Value))

	t.Run("truth of arrays", func(t *testing.T) {
		_, err := Truth(get("a"))
		requireHostError(t, err, ValueError,
			"The truth value of an array with more than one element is ambiguous. Use a.any() or a.all()")
	})
}

func TestNumpySaveLoad(t *testing.T) {
	var out bytes.Buffer
	it := New(WithStdout(&out))
	path := filepath.Join(t.TempDir(), "x.npy")
	globals := it.NewGlobals("io")
	globals.Set("path", Str(path))
	mod, err := syntax.Parse("io.py", `
import numpy as np
np.save(path, np.array([[1, 2], [3, 4]], dtype=np.int32))
y = np.load(path)
print("loaded", y.shape, sep=":")
`)
	require.NoError(t, err)
	require.NoError(t, it.ExecModule(mod, globals))
	y, _ := globals.Lookup("y")
	assert.Equal(t, dtypes.Int32, y.(*Tensor).Value.DType())
	assert.Equal(t, []int64{1, 2, 3, 4}, tensors.ToInt64s(y.(*Tensor).Value))
	assert.Equal(t, "loaded:(2, 2)\n", out.String())

	printFn, _ := it.Builtins().Lookup("print")
	assert.True(t, printFn.(*Builtin).Impure)
	save, _ := mustImport(t, it, "numpy").Attr("save")
	assert.True(t, save.(*Builtin).Impure)
}

func mustImport(t *testing.T, it *Interpreter, name string) *Module {
	m, err := it.Import(name)
	require.NoError(t, err)
	return m
}

func TestImports(t *testing.T) {
	it := New()
	ops := NewModule("jit.ops")
	ops.Set("relu", &Builtin{Name: "relu", Fn: func([]Object, []Kwarg) (Object, error) { return None, nil }})
	it.RegisterModule(ops)
	globals := runModule(t, it, `
import jit
from jit.ops import relu
from jit import ops as o
`)
	jit, _ := globals.Lookup("jit")
	sub, err := GetAttr(jit, "ops")
	require.NoError(t, err)
	assert.Same(t, ops, sub)
	relu, _ := globals.Lookup("relu")
	assert.Equal(t, "relu", relu.(*Builtin).Name)
	o, _ := globals.Lookup("o")
	assert.Same(t, ops, o)

	mod, err := syntax.Parse("bad.py", "import torch\n")
	require.NoError(t, err)
	err = it.ExecModule(mod, it.NewGlobals("bad"))
	require.Error(t, err)
	assert.Equal(t, "ModuleNotFoundError: No module named 'torch'", err.Error())

	_, err = evalString(it, "jit.tensr")
	requireHostError(t, err, NameError, "name 'jit' is not defined")
	globals.Set("m", jit)
	expr, _ := syntax.ParseExpr("m.tensr")
	_, err = it.Eval(expr, globals)
	requireHostError(t, err, AttributeError, "module 'jit' has no attribute 'tensr'. Did you mean: 'tensor'?")
}

func TestPanicsBecomeErrors(t *testing.T) {
	it := New()
	globals := it.NewGlobals("panics")
	globals.Set("boom", &Builtin{Name: "boom", Fn: func([]Object, []Kwarg) (Object, error) { panic("kaboom") }})
	expr, err := syntax.ParseExpr("boom()")
	require.NoError(t, err)
	_, err = it.Eval(expr, globals)
	require.ErrorContains(t, err, "kaboom")
}

func TestNamedLock(t *testing.T) {
	lock := NewNamedLock("test")
	var wg sync.WaitGroup
	counter := 0
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := lock.Acquire()
			defer release()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, counter)
	assert.False(t, lock.Held())
	assert.Equal(t, int64(20), lock.Acquisitions())

	release := lock.Acquire()
	assert.True(t, lock.Held())
	release()
	release()
	assert.False(t, lock.Held())
}
