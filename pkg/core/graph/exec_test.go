// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"math"
	"sync"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/tensors"
	"github.com/gomlx/jitfallback/pkg/fallback/bridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const distanceSource = `
import jit

def distance(a, b):
    diff = a - b
    return jit.ops.sqrt(jit.ops.reduce_sum(diff * diff))
`

func vector(dim int, value float32) *tensors.Tensor {
	data := make([]float32, dim)
	for i := range data {
		data[i] = value
	}
	return tensors.FromFlatDataAndDimensions(data, dim)
}

func TestExec(t *testing.T) {
	fn := mustFunction(t, distanceSource, "distance")
	exec, err := NewExec(fn)
	require.NoError(t, err)
	exec.SetMaxCache(10)
	for dim := 1; dim <= 5; dim++ {
		out, err := exec.Call(vector(dim, 0), vector(dim, 1))
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.InDeltaSlice(t, []float64{sqrt(dim)}, floats(t, out[0]), 1e-5)
	}
	assert.Equal(t, 5, exec.CacheSize())

	// Same signatures hit the cache.
	_, err = exec.Call(vector(3, 2), vector(3, 0))
	require.NoError(t, err)
	assert.Equal(t, 5, exec.CacheSize())

	// Past the limit graphs are still compiled, but not kept.
	exec.SetMaxCache(5)
	out, err := exec.Call(vector(7, 0), vector(7, 1))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{sqrt(7)}, floats(t, out[0]), 1e-5)
	assert.Equal(t, 5, exec.CacheSize())

	// Baked constants are part of the key.
	_, err = exec.Call(vector(2, 0), 1.0)
	require.NoError(t, err)
	assert.Equal(t, 5, exec.CacheSize())
	exec.SetMaxCache(-1)
	_, err = exec.Call(vector(2, 0), 1.0)
	require.NoError(t, err)
	_, err = exec.Call(vector(2, 0), 2.0)
	require.NoError(t, err)
	assert.Equal(t, 7, exec.CacheSize())
}

func sqrt(dim int) float64 { return math.Sqrt(float64(dim)) }

func TestExecSetInputs(t *testing.T) {
	fn := mustFunction(t, distanceSource, "distance")
	exec, err := NewExec(fn)
	require.NoError(t, err)
	exec.SetInputs(DynamicTensor(dtypes.Float32, -1), DynamicTensor(dtypes.Float32, -1))
	for dim := 1; dim <= 4; dim++ {
		out, err := exec.Call(vector(dim, 0), vector(dim, 1))
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{sqrt(dim)}, floats(t, out[0]), 1e-5)
	}
	assert.Equal(t, 1, exec.CacheSize())
	sig := exec.Specializations()[0].InputSignature()
	require.Len(t, sig, 2)
	assert.True(t, sig[0].IsParameter())

	// The declared dtype is checked.
	_, err = exec.Call(tensors.FromFlatDataAndDimensions([]int32{1}, 1), vector(1, 0))
	require.Error(t, err)
}

func TestExecConcurrentCalls(t *testing.T) {
	fn := mustFunction(t, geluSource, "gelu_host")
	exec, err := NewExec(fn, WithParallelism(2))
	require.NoError(t, err)
	x := tensors.FromFlatDataAndDimensions([]float32{-1, 0, 1}, 3)
	want, err := fn.Interpret(x)
	require.NoError(t, err)

	const numCallers = 8
	var wg sync.WaitGroup
	results := make([][]*bridge.Value, numCallers)
	errs := make([]error, numCallers)
	for i := range numCallers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = exec.Call(x)
		}()
	}
	wg.Wait()
	for i := range numCallers {
		require.NoError(t, errs[i])
		assert.InDeltaSlice(t, floats(t, want), floats(t, results[i][0]), 1e-5)
	}
	assert.Equal(t, 1, exec.CacheSize(), "concurrent misses of the same key keep a single graph")
}

func TestExecWarmup(t *testing.T) {
	fn := mustFunction(t, distanceSource, "distance")
	exec, err := NewExec(fn, WithParallelism(2))
	require.NoError(t, err)
	var sigs []InputSignature
	for dim := 1; dim <= 3; dim++ {
		sigs = append(sigs, exec.SignatureOf(vector(dim, 0), vector(dim, 0)))
	}
	require.NoError(t, exec.Warmup(sigs...))
	assert.Equal(t, 3, exec.CacheSize())

	cg, err := exec.Specialization(vector(2, 1), vector(2, 1))
	require.NoError(t, err)
	assert.Contains(t, exec.Specializations(), cg)
	assert.Equal(t, 3, exec.CacheSize())
}

func TestExecSetGlobal(t *testing.T) {
	fn := mustFunction(t, `
SCALE = 2

def scale(x):
    return x * SCALE
`, "scale")
	exec, err := NewExec(fn)
	require.NoError(t, err)
	x := tensors.FromFlatDataAndDimensions([]float32{1, 2}, 2)
	out, err := exec.Call(x)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4}, floats(t, out[0]))

	fn.Module().SetGlobal("SCALE", 3)
	out, err = exec.Call(x)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 6}, floats(t, out[0]))
	assert.Equal(t, 2, exec.CacheSize())
}

func TestExecuteArgumentErrors(t *testing.T) {
	fn := mustFunction(t, distanceSource, "distance")
	x := vector(3, 1)
	cg := mustCompile(t, fn, []any{x, x})

	_, err := cg.Execute(x)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compiled for 2 arguments")

	_, err = cg.Execute(x, vector(4, 1))
	require.Error(t, err)
}
