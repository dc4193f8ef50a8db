// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package annotations

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/hostlang/syntax"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dynTensorSource = `def create(x):
    # @jit.typing: () -> tensor_type[int32]
    shape_tensor1 = jit.tensor(jit.mutable(x.shape), jit.int32)
    output1 = jit.ops.fill(shape_tensor1, 1)

    shape_tensor2 = jit.tensor(jit.mutable(x.shape), jit.int32)  # @jit.typing: () -> tensor_type[int32]
    return output1 + jit.ops.fill(shape_tensor2, 1)


def with_dtype(x, dtype):
    #@jit.typing:()->tensor_type[{dtype}]
    t = jit.tensor(jit.mutable(x.shape), dtype)
    msg = "# @jit.typing: () -> tensor_type[float64]"  # a comment after a string with a hash
    doc = """
    # @jit.typing: () -> tensor_type[float16]
    """
    # @jit.best_effort
    # a regular comment in between
    y = lookup(t)
    z = other(t)  # @jit.best_effort
    return t
`

func TestScan(t *testing.T) {
	table, err := Scan("dyn.py", dynTensorSource)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 6, 12}, table.Lines())

	a, found := table.TypeAt(3)
	require.True(t, found)
	assert.Equal(t, dtypes.Int32, a.DType)
	assert.False(t, a.Trailing)
	assert.Equal(t, 2, a.PragmaLine)
	assert.Equal(t, "() -> tensor_type[int32]", a.String())

	a, found = table.TypeAt(6)
	require.True(t, found)
	assert.True(t, a.Trailing)
	assert.Equal(t, 6, a.PragmaLine)

	a, found = table.TypeAt(12)
	require.True(t, found)
	assert.True(t, a.IsBound())
	assert.Equal(t, "dtype", a.BoundName)
	assert.Equal(t, "() -> tensor_type[{dtype}]", a.String())

	_, found = table.TypeAt(13)
	assert.False(t, found, "pragma text inside string literals must be ignored")
	_, found = table.TypeAt(16)
	assert.False(t, found, "pragma text inside triple quoted strings must be ignored")

	assert.True(t, table.BestEffortIn(19, 19))
	assert.True(t, table.BestEffortIn(20, 20))
	assert.False(t, table.BestEffortIn(10, 18))

	a, found = table.TypeIn(1, 4)
	require.True(t, found)
	assert.Equal(t, 3, a.Line)
}

func TestResolve(t *testing.T) {
	lookup := func(name string) (dtypes.DType, error) {
		if name == "dtype" {
			return dtypes.Float16, nil
		}
		return dtypes.InvalidDType, errors.Errorf("name %q is not bound", name)
	}
	bound := &TypeAnnotation{BoundName: "dtype", PragmaLine: 3}
	dtype, err := bound.Resolve(lookup)
	require.NoError(t, err)
	assert.Equal(t, dtypes.Float16, dtype)

	_, err = (&TypeAnnotation{BoundName: "other", PragmaLine: 7}).Resolve(lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at line 7")

	dtype, err = (&TypeAnnotation{DType: dtypes.Bool}).Resolve(lookup)
	require.NoError(t, err)
	assert.Equal(t, dtypes.Bool, dtype)
}

func TestScanErrors(t *testing.T) {
	for name, tc := range map[string]struct {
		source string
		line   int
		msg    string
	}{
		"malformed": {
			source: "x = 1\ny = f(x)  # @jit.typing: tensor_type[int32]\n",
			line:   2,
			msg:    "malformed pragma",
		},
		"unknown dtype": {
			source: "# @jit.typing: () -> tensor_type[int33]\nx = 1\n",
			line:   1,
			msg:    `unknown dtype "int33"`,
		},
		"dangling": {
			source: "x = 1\n# @jit.typing: () -> tensor_type[int32]\n\n",
			line:   2,
			msg:    "not followed by a statement",
		},
		"duplicate": {
			source: "# @jit.typing: () -> tensor_type[int32]\nx = f()  # @jit.typing: () -> tensor_type[int64]\n",
			line:   2,
			msg:    "more than one type annotation",
		},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Scan("bad.py", tc.source)
			require.Error(t, err)
			var syntaxErr *syntax.Error
			require.True(t, errors.As(err, &syntaxErr))
			assert.Equal(t, tc.line, syntaxErr.Pos.Line)
			assert.Contains(t, syntaxErr.Msg, tc.msg)
		})
	}
}

func TestSplitLines(t *testing.T) {
	lines := splitLines("a = 'it''s # not'  # yes\n\"\"\"doc\n# inside\n\"\"\" # after\n  # own line\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "# yes", lines[0].comment)
	assert.Equal(t, 20, lines[0].commentCol)
	assert.Equal(t, "", lines[1].comment)
	assert.Equal(t, "", lines[2].comment)
	assert.True(t, lines[2].hasCode)
	assert.Equal(t, "# after", lines[3].comment)
	assert.Equal(t, "# own line", lines[4].comment)
	assert.False(t, lines[4].hasCode)
	assert.False(t, lines[5].hasCode)
}
