// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/ops"
	"github.com/gomlx/jitfallback/pkg/core/tensors"
	"github.com/gomlx/jitfallback/pkg/fallback/bridge"
	"github.com/gomlx/jitfallback/pkg/hostlang"
	"github.com/gomlx/jitfallback/pkg/support/envconfig"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFunction(t *testing.T, source, name string, opts ...hostlang.Option) *Function {
	t.Helper()
	m, err := LoadModule("test_module.py", source, opts...)
	require.NoError(t, err)
	fn, err := m.Function(name)
	require.NoError(t, err)
	return fn
}

func mustCompile(t *testing.T, fn *Function, args []any, opts ...Option) *CompiledGraph {
	t.Helper()
	cg, err := Compile(fn, SignatureOfArgs(args...), opts...)
	require.NoErrorf(t, err, "compiling %s()", fn.Name())
	return cg
}

func floats(t *testing.T, v *bridge.Value) []float64 {
	t.Helper()
	require.Equal(t, bridge.KindTensor, v.Kind(), "expected a tensor, got %s", v)
	return tensors.ToFloat64s(v.Tensor())
}

// findOp returns the first native node executing op.
func findOp(g *Graph, op *ops.Op) *Node {
	for _, n := range g.Nodes() {
		if n.Op() == op {
			return n
		}
	}
	return nil
}

const geluSource = `
import math
import numpy as np
import jit

def gelu(x):
    return 0.5 * x * (1.0 + jit.ops.tanh(math.sqrt(2.0 / math.pi) * (x + 0.044715 * x * x * x)))

def np_tanh(v):
    return np.tanh(v)

def gelu_host(x):
    return 0.5 * x * (1.0 + np_tanh(math.sqrt(2.0 / math.pi) * (x + 0.044715 * x * x * x)))
`

func TestGelu(t *testing.T) {
	x := tensors.FromFlatDataAndDimensions([]float32{-2, -0.5, 0, 0.5, 2}, 5)
	native := mustFunction(t, geluSource, "gelu")
	host := mustFunction(t, geluSource, "gelu_host")

	nativeGraph := mustCompile(t, native, []any{x})
	fmt.Printf("%s\n", nativeGraph.Graph())
	assert.NotNil(t, findOp(nativeGraph.Graph(), ops.Tanh), "jit.ops.tanh must be lowered to the Tanh op")
	assert.Equal(t, 0, nativeGraph.Graph().CountKind(NodeKindInterpreter))
	require.Len(t, nativeGraph.OutputSignatures(), 1)
	assert.Equal(t, dtypes.Float32, nativeGraph.OutputSignatures()[0].DType())

	hostGraph := mustCompile(t, host, []any{x})
	assert.Less(t, 0, hostGraph.Graph().CountKind(NodeKindInterpreter), "np_tanh is a user function, it must be interpreted")

	nativeOut, err := nativeGraph.Execute(x)
	require.NoError(t, err)
	hostOut, err := hostGraph.Execute(x)
	require.NoError(t, err)
	want := floats(t, nativeOut[0])
	assert.InDeltaSlice(t, want, floats(t, hostOut[0]), 1e-5)

	reference, err := native.Interpret(x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, floats(t, reference), want, 1e-5)

	// Repeated executions are bit-identical, also when nodes run in parallel.
	parallel := mustCompile(t, host, []any{x}, WithParallelism(4))
	first, err := parallel.Execute(x)
	require.NoError(t, err)
	for range 5 {
		again, err := parallel.Execute(x)
		require.NoError(t, err)
		assert.Equal(t, floats(t, first[0]), floats(t, again[0]))
	}
}

const shapeCheckSource = `
def check(x, expected):
    if x.shape != expected:
        raise IndexError(f"shape {x.shape} does not match the shape {expected}")
    return x * 2

def check_not_equal(x, expected):
    if not (x.shape == expected):
        raise IndexError(f"shape {x.shape} does not match the shape {expected}")
    return x * 2
`

func TestShapeCheck(t *testing.T) {
	x := tensors.FromFlatDataAndDimensions([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	for _, name := range []string{"check", "check_not_equal"} {
		fn := mustFunction(t, shapeCheckSource, name)
		t.Run(name+"/match", func(t *testing.T) {
			cg := mustCompile(t, fn, []any{x, bridge.Tuple{2, 3}})
			assert.Equal(t, 0, cg.Graph().CountKind(NodeKindInterpreter), "the check must be folded away:\n%s", cg.Graph())
			out, err := cg.Execute(x, bridge.Tuple{2, 3})
			require.NoError(t, err)
			assert.Equal(t, []float64{2, 4, 6, 8, 10, 12}, floats(t, out[0]))
		})

		t.Run(name+"/mismatch", func(t *testing.T) {
			cg := mustCompile(t, fn, []any{x, bridge.Tuple{3, 2}})
			_, err := cg.Execute(x, bridge.Tuple{3, 2})
			require.Error(t, err)
			var rtErr *RuntimeError
			require.ErrorAs(t, err, &rtErr)
			assert.Equal(t, HostEvaluationError, rtErr.Kind)
			require.NotNil(t, rtErr.Host)
			assert.Equal(t, "IndexError", rtErr.Host.Name())
			assert.Contains(t, err.Error(), "IndexError: shape (2, 3) does not match the shape (3, 2)")

			_, interpErr := fn.Interpret(x, bridge.Tuple{3, 2})
			hostErr, ok := hostlang.AsError(interpErr)
			require.True(t, ok)
			assert.Equal(t, hostErr.Error(), rtErr.Host.Error())
		})

		t.Run(name+"/mutable", func(t *testing.T) {
			mutableX := bridge.Mutable(x, false)
			cg := mustCompile(t, fn, []any{mutableX, bridge.Tuple{2, 3}})
			var blocks int
			for _, n := range cg.Graph().Nodes() {
				if n.Interpreter() != nil && n.Interpreter().Expr.Kind == HostExprBlock {
					blocks++
				}
			}
			assert.Equal(t, 1, blocks, "the data-dependent if must be interpreted as a block:\n%s", cg.Graph())

			out, err := cg.Execute(mutableX, bridge.Tuple{2, 3})
			require.NoError(t, err)
			assert.Equal(t, []float64{2, 4, 6, 8, 10, 12}, floats(t, out[0]))

			other := bridge.Mutable(tensors.FromFlatDataAndDimensions([]float32{1, 2, 3}, 3), false)
			_, err = cg.Execute(other, bridge.Tuple{2, 3})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "IndexError: shape (3,) does not match the shape (2, 3)")
		})
	}
}

func TestMutableShapeAnnotation(t *testing.T) {
	fn := mustFunction(t, `
import numpy as np
import jit

def make(shape):
    z = np.zeros(jit.mutable(shape), np.int32)  # @jit.typing: () -> tensor_type[int32]
    return z
`, "make")
	exec, err := NewExec(fn)
	require.NoError(t, err)
	for _, dims := range [][]int{{2, 3}, {4, 5}} {
		shape := bridge.Mutable(bridge.Tuple{dims[0], dims[1]}, false)
		out, err := exec.Call(shape)
		require.NoError(t, err)
		require.Len(t, out, 1)
		require.Equal(t, bridge.KindTensor, out[0].Kind())
		assert.Equal(t, dtypes.Int32, out[0].Tensor().DType())
		assert.Equal(t, dims, out[0].Tensor().Shape().Dimensions)
	}
	assert.Equal(t, 1, exec.CacheSize(), "calls with different mutable shapes must share one graph")

	cg := exec.Specializations()[0]
	sigs := cg.OutputSignatures()
	require.Len(t, sigs, 1)
	assert.Equal(t, dtypes.Int32, sigs[0].DType())
	assert.True(t, sigs[0].Dynamic)
}

func TestDTypeArgumentAnnotation(t *testing.T) {
	fn := mustFunction(t, `
import numpy as np

def make(x, dtype):
    z = np.ones(x.shape, dtype)  # @jit.typing: () -> tensor_type[{dtype}]
    return z
`, "make")
	x := bridge.Mutable(tensors.FromFlatDataAndDimensions([]int32{2, 2}, 2), false)

	sig := SignatureOfArgs(x, dtypes.Int32)
	require.NotNil(t, sig[1].Constant, "dtype arguments are baked as constants")
	cg, err := Compile(fn, sig)
	require.NoError(t, err)
	require.Len(t, cg.OutputSignatures(), 1)
	assert.Equal(t, dtypes.Int32, cg.OutputSignatures()[0].DType())
	assert.NotNil(t, cg.Graph().Outputs()[0].Annotation())

	exec, err := NewExec(fn)
	require.NoError(t, err)
	testCases := []struct {
		dtype any
		want  dtypes.DType
	}{
		{dtypes.Int32, dtypes.Int32},
		{&hostlang.DType{DType: dtypes.Float32}, dtypes.Float32},
		{dtypes.Int32, dtypes.Int32},
	}
	for _, tc := range testCases {
		out, err := exec.Call(x, tc.dtype)
		require.NoError(t, err)
		require.Len(t, out, 1)
		require.Equal(t, bridge.KindTensor, out[0].Kind())
		assert.Equal(t, tc.want, out[0].Tensor().DType())
		assert.Equal(t, []float64{1, 1}, floats(t, out[0]))
	}
	assert.Equal(t, 2, exec.CacheSize(), "one graph per dtype")
}

func TestMutabilityPropagation(t *testing.T) {
	fn := mustFunction(t, `
import numpy as np

def f(x, y):
    a = x + 1
    b = np.abs(a) * y
    n = len(x.shape)
    return b, n, y * 3
`, "f")
	x := bridge.Mutable(tensors.FromFlatDataAndDimensions([]float32{-1, 2, -3}, 3), false)
	y := tensors.FromFlatDataAndDimensions([]float32{1, 1, 1}, 3)
	cg := mustCompile(t, fn, []any{x, y})
	g := cg.Graph()
	params := g.Parameters()
	require.Len(t, params, 2)
	assert.True(t, params[0].IsMutable())
	assert.False(t, params[1].IsMutable())

	reached := g.ReachableFrom(params[0])
	require.NotEmpty(t, reached)
	for _, n := range reached {
		assert.Truef(t, n.IsMutable(), "node %s depends on a mutable parameter", n)
		assert.Truef(t, n.Signature().Dynamic, "node %s depends on a mutable parameter", n)
	}

	outputs := g.Outputs()
	require.Len(t, outputs, 3)
	assert.False(t, outputs[2].IsMutable(), "y * 3 doesn't depend on x")
	assert.False(t, outputs[2].Signature().Dynamic)

	values, err := cg.Execute(x, y)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3, 2}, floats(t, values[0]))
	assert.Equal(t, int64(1), values[1].Scalar())
}

func TestFoldingSoundness(t *testing.T) {
	fn := mustFunction(t, `
import math

SIZES = (2, 3)

def summary(x):
    n = len(SIZES) * 2
    label = f"{n}-{math.sqrt(16)}"
    weights = {"a": 1, "b": n}
    total = sum([w * 2 for w in weights.values()])
    return x * total, label
`, "summary")
	x := tensors.FromFlatDataAndDimensions([]float32{1, 2}, 2)
	cg := mustCompile(t, fn, []any{x})

	// Folded interpreter nodes evaluate again to values of the same signature.
	var folded int
	for _, n := range cg.Graph().Nodes() {
		if !n.IsFolded() || n.Interpreter() == nil {
			continue
		}
		folded++
		inputs := make([]*bridge.Value, len(n.Inputs()))
		for i, in := range n.Inputs() {
			require.Equal(t, NodeKindConstant, in.Kind())
			inputs[i] = in.Value()
		}
		v, err := n.Interpreter().Execute(inputs)
		require.NoError(t, err)
		if diff := cmp.Diff(n.Signature().String(), bridge.SignatureOf(v).String()); diff != "" {
			t.Errorf("node %s folded to a different signature (-folded +executed):\n%s", n, diff)
		}
	}
	assert.GreaterOrEqual(t, folded, 3, "graph:\n%s", cg.Graph())
	assert.Equal(t, 0, cg.Graph().CountKind(NodeKindInterpreter))

	out, err := cg.Execute(x)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20}, floats(t, out[0]))
	assert.Equal(t, "4-4.0", out[1].Scalar())
}

func TestImpureNotFolded(t *testing.T) {
	var stdout bytes.Buffer
	fn := mustFunction(t, `
def noisy(x):
    print("a")
    y = x + 1
    print("b", y.shape)
    return y
`, "noisy", hostlang.WithStdout(&stdout))
	x := tensors.FromFlatDataAndDimensions([]float32{1, 2, 3}, 3)
	for _, parallelism := range []int{0, 4} {
		t.Run(fmt.Sprintf("parallelism=%d", parallelism), func(t *testing.T) {
			stdout.Reset()
			cg := mustCompile(t, fn, []any{x}, WithParallelism(parallelism))
			assert.Empty(t, stdout.String(), "print must not run while compiling")

			var effects []*Node
			for _, n := range cg.Graph().Nodes() {
				if n.IsSideEffect() {
					effects = append(effects, n)
				}
			}
			require.Len(t, effects, 2)
			assert.Equal(t, []*Node{effects[0]}, effects[1].ControlInputs())

			for range 3 {
				stdout.Reset()
				out, err := cg.Execute(x)
				require.NoError(t, err)
				assert.Equal(t, "a\nb (3,)\n", stdout.String())
				assert.Equal(t, []float64{2, 3, 4}, floats(t, out[0]))
			}
		})
	}
}

func TestStopsAfterFirstFailure(t *testing.T) {
	var stdout bytes.Buffer
	fn := mustFunction(t, `
def f(x):
    y = x[5]
    print("after")
    return x
`, "f", hostlang.WithStdout(&stdout))
	x := bridge.Mutable(tensors.FromFlatDataAndDimensions([]float32{1, 2, 3}, 3), false)
	for _, parallelism := range []int{0, 1} {
		t.Run(fmt.Sprintf("parallelism=%d", parallelism), func(t *testing.T) {
			cg := mustCompile(t, fn, []any{x}, WithParallelism(parallelism))
			assert.Equal(t, parallelism, cg.Parallelism())
			for range 3 {
				stdout.Reset()
				_, err := cg.Execute(x)
				var rtErr *RuntimeError
				require.ErrorAs(t, err, &rtErr)
				require.NotNil(t, rtErr.Host)
				assert.Equal(t, "IndexError", rtErr.Host.Name())
				assert.Empty(t, stdout.String(), "nodes scheduled after the failure must not run")
			}
		})
	}
}

func TestGlobalContainerCallsNotFolded(t *testing.T) {
	source := `
CACHE = []

def add(v):
    CACHE.append(v)
    return len(CACHE)

def f(x):
    return x * add(1)
`
	x := tensors.FromFlatDataAndDimensions([]float32{1, 2}, 2)
	want := [][]float64{{1, 2}, {2, 4}, {3, 6}}

	interpreted := mustFunction(t, source, "f")
	for _, w := range want {
		out, err := interpreted.Interpret(x)
		require.NoError(t, err)
		assert.Equal(t, w, floats(t, out))
	}

	// A fresh module, so CACHE starts empty again.
	fn := mustFunction(t, source, "f")
	cg := mustCompile(t, fn, []any{x})
	for _, n := range cg.Graph().Nodes() {
		assert.Falsef(t, n.IsFolded() && n.Interpreter() != nil, "add(1) must not be folded:\n%s", cg.Graph())
	}
	for _, w := range want {
		out, err := cg.Execute(x)
		require.NoError(t, err)
		assert.Equal(t, w, floats(t, out[0]))
	}
}

func TestUnboundBlockOutputs(t *testing.T) {
	source := `
def f(x):
    y = x
    if x.sum() > 0:
        y = y * 2
    else:
        z = 3
    return y, z

def unused(x):
    if x.sum() > 0:
        z = 3
    return x

def rebound(x):
    if x.sum() > 0:
        z = 1
    if x.sum() < 100:
        z = 2
    return x * z
`
	positive := bridge.Mutable(tensors.FromFlatDataAndDimensions([]float32{1, 2}, 2), false)
	negative := bridge.Mutable(tensors.FromFlatDataAndDimensions([]float32{-1, -2}, 2), false)

	t.Run("read after the block", func(t *testing.T) {
		fn := mustFunction(t, source, "f")
		cg := mustCompile(t, fn, []any{positive})
		_, err := cg.Execute(positive)
		var rtErr *RuntimeError
		require.ErrorAs(t, err, &rtErr)
		require.NotNil(t, rtErr.Host)
		assert.Equal(t, hostlang.NameError, rtErr.Host.Kind)
		assert.Equal(t, "UnboundLocalError", rtErr.Host.Name())
		assert.Contains(t, rtErr.Host.Msg, "'z'")

		_, interpErr := fn.Interpret(positive)
		hostErr, ok := hostlang.AsError(interpErr)
		require.True(t, ok)
		assert.Equal(t, hostlang.NameError, hostErr.Kind)

		out, err := cg.Execute(negative)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, []float64{-1, -2}, floats(t, out[0]))
		assert.Equal(t, int64(3), out[1].Scalar())
	})

	t.Run("never read", func(t *testing.T) {
		fn := mustFunction(t, source, "unused")
		cg := mustCompile(t, fn, []any{negative})
		out, err := cg.Execute(negative)
		require.NoError(t, err)
		assert.Equal(t, []float64{-1, -2}, floats(t, out[0]))
	})

	t.Run("assigned by a later block", func(t *testing.T) {
		fn := mustFunction(t, source, "rebound")
		cg := mustCompile(t, fn, []any{negative})
		out, err := cg.Execute(negative)
		require.NoError(t, err)
		assert.Equal(t, []float64{-2, -4}, floats(t, out[0]))
	})
}

func TestAttributeErrorsOnMutableContainers(t *testing.T) {
	fn := mustFunction(t, `
def f(x, c):
    y = c.missing_attr
    return x + 1
`, "f")
	x := tensors.FromFlatDataAndDimensions([]float32{1, 2}, 2)
	testCases := []struct {
		name      string
		container any
		typeName  string
	}{
		{"list", []any{1, 2}, "list"},
		{"tuple", bridge.Tuple{1, 2}, "tuple"},
		{"dict", map[string]any{"a": 1}, "dict"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := bridge.Mutable(tc.container, false)
			cg := mustCompile(t, fn, []any{x, c})
			_, err := cg.Execute(x, c)
			var rtErr *RuntimeError
			require.ErrorAs(t, err, &rtErr)
			assert.Equal(t, HostEvaluationError, rtErr.Kind)
			require.NotNil(t, rtErr.Host)
			assert.Equal(t, hostlang.AttributeError, rtErr.Host.Kind)
			assert.Contains(t, rtErr.Host.Error(), "'"+tc.typeName+"' object has no attribute 'missing_attr'")

			_, interpErr := fn.Interpret(x, c)
			hostErr, ok := hostlang.AsError(interpErr)
			require.True(t, ok)
			assert.Equal(t, hostErr.Error(), rtErr.Host.Error())
		})
	}
}

func TestAttributeErrors(t *testing.T) {
	source := `
def missing(x):
    y = x.missing_attr
    return x + 1

def tolerant(x):
    # @jit.best_effort
    y = x.missing_attr
    return x + 1
`
	x := tensors.FromFlatDataAndDimensions([]float32{1, 2}, 2)

	t.Run("uniform message", func(t *testing.T) {
		fn := mustFunction(t, source, "missing")
		cg := mustCompile(t, fn, []any{x})
		var deferred *Node
		for _, n := range cg.Graph().Nodes() {
			if n.IsDeferredRaise() {
				deferred = n
			}
		}
		require.NotNil(t, deferred, "graph:\n%s", cg.Graph())
		assert.Equal(t, hostlang.AttributeError, deferred.DeferredError().Kind)

		_, err := cg.Execute(x)
		var rtErr *RuntimeError
		require.ErrorAs(t, err, &rtErr)
		require.NotNil(t, rtErr.Host)

		_, interpErr := fn.Interpret(x)
		hostErr, ok := hostlang.AsError(interpErr)
		require.True(t, ok)
		assert.Equal(t, hostErr.Error(), rtErr.Host.Error())
	})

	t.Run("best effort", func(t *testing.T) {
		fn := mustFunction(t, source, "tolerant")
		cg := mustCompile(t, fn, []any{x})
		var deferred *Node
		for _, n := range cg.Graph().Nodes() {
			if n.IsDeferredRaise() {
				deferred = n
			}
		}
		require.NotNil(t, deferred)
		assert.True(t, deferred.IsBestEffort())
		out, err := cg.Execute(x)
		require.NoError(t, err)
		assert.Equal(t, []float64{2, 3}, floats(t, out[0]))
	})
}

func TestSyntaxLevels(t *testing.T) {
	fn := mustFunction(t, shapeCheckSource, "check")
	x := bridge.Mutable(tensors.FromFlatDataAndDimensions([]float32{1, 2}, 2), false)
	sig := SignatureOfArgs(x, bridge.Tuple{2})

	testCases := []struct {
		level envconfig.SyntaxLevel
		msg   string
	}{
		{envconfig.SyntaxLevelStrict, "needs the interpreter"},
		{envconfig.SyntaxLevelCompatible, "data-dependent 'if'"},
		{envconfig.SyntaxLevelLax, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.level.String(), func(t *testing.T) {
			_, err := Compile(fn, sig, WithSyntaxLevel(tc.level))
			if tc.msg == "" {
				require.NoError(t, err)
				return
			}
			var compileErr *CompileError
			require.ErrorAs(t, err, &compileErr)
			assert.Equal(t, LoweringFailed, compileErr.Kind)
			assert.Contains(t, compileErr.Msg, tc.msg)
			assert.Equal(t, "check", compileErr.Function)
			assert.True(t, strings.HasPrefix(compileErr.Location, "test_module.py:"), compileErr.Location)
		})
	}

	// Statically resolved code compiles at every level.
	gelu := mustFunction(t, geluSource, "gelu")
	_, err := Compile(gelu, SignatureOfArgs(tensors.FromFlatDataAndDimensions([]float32{1}, 1)),
		WithSyntaxLevel(envconfig.SyntaxLevelStrict))
	require.NoError(t, err)
}

func TestCompileErrors(t *testing.T) {
	source := `
def early(x, flag):
    if flag > 0:
        return x
    return x * 2

def wrong_dtype(x):
    y = x + 1  # @jit.typing: () -> tensor_type[int32]
    return y

def conflict(x):
    c = 3  # @jit.typing: () -> tensor_type[float32]
    return x * c
`
	x := tensors.FromFlatDataAndDimensions([]float32{1, 2}, 2)
	testCases := []struct {
		name string
		args []any
		kind CompileErrorKind
		msg  string
	}{
		{"early", []any{x, tensors.FromScalar(int32(1))}, LoweringFailed, "'return' inside a data-dependent 'if'"},
		{"wrong_dtype", []any{x}, TypeMismatch, "int32"},
		{"conflict", []any{x}, AnnotationConflict, "float32"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fn := mustFunction(t, source, tc.name)
			_, err := Compile(fn, SignatureOfArgs(tc.args...))
			var compileErr *CompileError
			require.ErrorAs(t, err, &compileErr)
			assert.Equal(t, tc.kind, compileErr.Kind)
			assert.Contains(t, compileErr.Error(), tc.msg)
			assert.NotEmpty(t, compileErr.Snippet)
		})
	}
}

func TestTensorSetItem(t *testing.T) {
	fn := mustFunction(t, `
def shift(z):
    z[2] = z[1]
    return z
`, "shift")
	z := tensors.FromFlatDataAndDimensions([]float32{1, 2, 3, 4}, 4)
	cg := mustCompile(t, fn, []any{z})
	assert.NotNil(t, findOp(cg.Graph(), ops.TensorSetItem), "graph:\n%s", cg.Graph())
	assert.Equal(t, 0, cg.Graph().CountKind(NodeKindInterpreter))

	out, err := cg.Execute(z)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 2, 4}, floats(t, out[0]))
}

func TestPromotion(t *testing.T) {
	fn := mustFunction(t, "def add(a, b):\n    return a + b\n", "add")
	a := tensors.FromFlatDataAndDimensions([]int64{1, 2}, 2)
	b := tensors.FromFlatDataAndDimensions([]float64{0.5, 0.25}, 2)
	cg := mustCompile(t, fn, []any{a, b})
	require.Len(t, cg.OutputSignatures(), 1)
	assert.Equal(t, dtypes.Float64, cg.OutputSignatures()[0].DType())

	out, err := cg.Execute(a, b)
	require.NoError(t, err)
	assert.Equal(t, dtypes.Float64, out[0].Tensor().DType())
	assert.Equal(t, []float64{1.5, 2.25}, floats(t, out[0]))
}

func TestDecisionsFinalized(t *testing.T) {
	fn := mustFunction(t, shapeCheckSource, "check")
	x := tensors.FromFlatDataAndDimensions([]float32{1, 2}, 2)
	cg := mustCompile(t, fn, []any{x, bridge.Tuple{2}})
	g := cg.Graph()
	assert.True(t, g.IsFinalized())
	assert.Panics(t, func() { g.AssertBuilding() })
	require.NotEmpty(t, g.Decisions())
	for _, d := range g.Decisions() {
		assert.Equal(t, Finalized, d.State, "decision %s", d)
		assert.Contains(t, []DecisionState{NativeLowered, Interpreted}, d.Outcome)
	}
}

func TestUnrolledLoops(t *testing.T) {
	fn := mustFunction(t, `
def accumulate(x, n):
    total = x
    for i in range(n):
        total = total + i
    while n > 0:
        total = total * 2
        n -= 1
    return total
`, "accumulate")
	x := tensors.FromFlatDataAndDimensions([]float32{1, 2}, 2)
	cg := mustCompile(t, fn, []any{x, 3})
	assert.Equal(t, 0, cg.Graph().CountKind(NodeKindInterpreter), "graph:\n%s", cg.Graph())
	out, err := cg.Execute(x, 3)
	require.NoError(t, err)
	// (x + 0 + 1 + 2) * 8
	assert.Equal(t, []float64{32, 40}, floats(t, out[0]))
}

func TestAnnotatedDTypeChecked(t *testing.T) {
	fn := mustFunction(t, `
import numpy as np

def convert(x):
    y = np.asarray(x)  # @jit.typing: () -> tensor_type[int32]
    return y
`, "convert")
	x := tensors.FromFlatDataAndDimensions([]float32{1, 2}, 2)
	cg := mustCompile(t, fn, []any{x})
	require.Len(t, cg.OutputSignatures(), 1)
	assert.Equal(t, dtypes.Int32, cg.OutputSignatures()[0].DType())
	assert.NotNil(t, cg.Graph().Outputs()[0].Annotation())

	_, err := cg.Execute(x)
	var rtErr *RuntimeError
	require.ErrorAs(t, err, &rtErr)
	assert.Equal(t, BridgeUnwrapFailure, rtErr.Kind)
	assert.Contains(t, err.Error(), "annotated as int32, got float32")
}

func TestProbedSignature(t *testing.T) {
	fn := mustFunction(t, `
import numpy as np

def host_only(x):
    return np.tanh(x)
`, "host_only")
	x := tensors.FromFlatDataAndDimensions([]float32{0, 1}, 2)
	cg := mustCompile(t, fn, []any{x})
	out := cg.Graph().Outputs()[0]
	require.Equal(t, NodeKindInterpreter, out.Kind())
	_, found := cg.ProbedSignature(out.Id())
	assert.False(t, found, "nothing is probed before the first execution")

	_, err := cg.Execute(x)
	require.NoError(t, err)
	probed, found := cg.ProbedSignature(out.Id())
	require.True(t, found)
	assert.Equal(t, dtypes.Float32, probed.DType())
}
