// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/tensors"
	"github.com/gomlx/jitfallback/pkg/core/tensors/numpy"
	"github.com/gomlx/jitfallback/pkg/fallback/bridge"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArg(t *testing.T) {
	parser := newArgParser()

	t.Run("literals", func(t *testing.T) {
		v := bridge.Wrap(must.M1(parser.parse("3")))
		assert.Equal(t, int64(3), v.Scalar())
		v = bridge.Wrap(must.M1(parser.parse("-1.5")))
		assert.Equal(t, -1.5, v.Scalar())
		v = bridge.Wrap(must.M1(parser.parse("hello")))
		assert.Equal(t, "hello", v.Scalar())
		v = bridge.Wrap(must.M1(parser.parse("(2, 3)")))
		require.Equal(t, bridge.KindSequence, v.Kind())
		assert.Equal(t, 2, v.Len())
		v = bridge.Wrap(must.M1(parser.parse("[1, 2.5]")))
		require.Equal(t, bridge.KindSequence, v.Kind())
		assert.False(t, bridge.SignatureOf(v).Tuple)
	})

	t.Run("tensor", func(t *testing.T) {
		v := bridge.Wrap(must.M1(parser.parse("t:float32:[[1, 2], [3, 4]]")))
		require.Equal(t, bridge.KindTensor, v.Kind())
		assert.Equal(t, dtypes.Float32, v.Tensor().DType())
		assert.Equal(t, []int{2, 2}, v.Tensor().Shape().Dimensions)
		assert.Equal(t, []float64{1, 2, 3, 4}, tensors.ToFloat64s(v.Tensor()))

		_, err := parser.parse("t:float33:[1]")
		assert.Error(t, err)
		_, err = parser.parse("t:[1]")
		assert.Error(t, err)
	})

	t.Run("npy", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "x.npy")
		want := tensors.FromFlatDataAndDimensions([]int32{1, 2, 3}, 3)
		require.NoError(t, numpy.ToNpyFile(want, path))
		v := bridge.Wrap(must.M1(parser.parse(path)))
		require.Equal(t, bridge.KindTensor, v.Kind())
		assert.Equal(t, dtypes.Int32, v.Tensor().DType())
		assert.Equal(t, []int64{1, 2, 3}, tensors.ToInt64s(v.Tensor()))
	})

	t.Run("mutable", func(t *testing.T) {
		v := bridge.Wrap(must.M1(parser.parse("mutable:(2, 3)")))
		assert.True(t, v.IsMutable())
		assert.Equal(t, bridge.KindSequence, v.Kind())
	})

	t.Run("not a literal", func(t *testing.T) {
		_, err := parser.parse("open('x')")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is not a literal")
	})
}

const cliSource = `
import jit

def scale(x, factor):
    return x * factor

def check(x, expected):
    if x.shape != expected:
        raise IndexError(f"shape {x.shape} does not match the shape {expected}")
    return jit.ops.tanh(x)
`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	file := filepath.Join(dir, "model.py")
	require.NoError(t, os.WriteFile(file, []byte(cliSource), 0o644))
	for i, arg := range args {
		args[i] = strings.ReplaceAll(arg, "$FILE", file)
	}
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func TestCommands(t *testing.T) {
	t.Run("run", func(t *testing.T) {
		out, err := runCLI(t, "run", "$FILE", "--fn", "scale", "--arg", "t:float32:[1, 2]", "--arg", "3")
		require.NoError(t, err)
		assert.Contains(t, out, "3")
		assert.Contains(t, out, "6")

		interpreted, err := runCLI(t, "run", "$FILE", "--fn", "scale", "--arg", "t:float32:[1, 2]", "--arg", "3", "--interpret")
		require.NoError(t, err)
		assert.Contains(t, interpreted, "6")
	})

	t.Run("run error", func(t *testing.T) {
		_, err := runCLI(t, "run", "$FILE", "--fn", "check", "--arg", "t:float32:[1, 2]", "--arg", "(3,)")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "IndexError: shape (2,) does not match the shape (3,)")

		var buf bytes.Buffer
		printError(&buf, err)
		assert.Contains(t, buf.String(), "HostEvaluationError")
	})

	t.Run("graph", func(t *testing.T) {
		out, err := runCLI(t, "graph", "$FILE", "--fn", "check", "--arg", "mutable:t:float32:[1, 2]", "--arg", "(2,)")
		require.NoError(t, err)
		assert.Contains(t, out, "Tanh")
		assert.Contains(t, out, "Interpret[Block]")
		assert.Contains(t, out, "data-dependent if")
	})

	t.Run("strict", func(t *testing.T) {
		_, err := runCLI(t, "graph", "$FILE", "--fn", "check", "--arg", "mutable:t:float32:[1, 2]", "--arg", "(2,)",
			"--syntax-level", "strict")
		require.Error(t, err)
		var buf bytes.Buffer
		printError(&buf, err)
		assert.Contains(t, buf.String(), "LoweringFailed")
	})

	t.Run("bench", func(t *testing.T) {
		out, err := runCLI(t, "bench", "$FILE", "--fn", "scale", "--arg", "t:float32:[1, 2]", "--arg", "2",
			"-n", "5", "--no-progress")
		require.NoError(t, err)
		assert.Contains(t, out, "calls:    5")

		out, err = runCLI(t, "bench", "$FILE", "--fn", "scale", "--arg", "t:float32:[1, 2]", "--arg", "2",
			"-n", "2", "--no-progress", "--parallelism", "2")
		require.NoError(t, err)
		assert.Contains(t, out, "workers:  2")

		out, err = runCLI(t, "bench", "$FILE", "--fn", "scale", "--arg", "t:float32:[1, 2]", "--arg", "2",
			"-n", "2", "--no-progress", "--parallelism", "-1")
		require.NoError(t, err)
		assert.Contains(t, out, "workers:  unlimited")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := runCLI(t, "run", "does_not_exist.py")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}
