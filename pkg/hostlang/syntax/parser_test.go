// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenKinds(tokens []Token) []TokenKind {
	kinds := make([]TokenKind, len(tokens))
	for i, tok := range tokens {
		kinds[i] = tok.Kind
	}
	return kinds
}

func TestTokenize(t *testing.T) {
	t.Run("indentation", func(t *testing.T) {
		src := "def f(x):\n    if x:\n        return 1\n\n    # comment\n    return (2 +\n  3)\n"
		tokens, err := Tokenize(src)
		require.NoError(t, err)
		kinds := tokenKinds(tokens)
		assert.Equal(t, 2, countKind(kinds, INDENT))
		assert.Equal(t, 2, countKind(kinds, DEDENT))
		assert.Equal(t, EOF, kinds[len(kinds)-1])
	})

	t.Run("literals", func(t *testing.T) {
		tokens, err := Tokenize(`1_000 0x1f 2.5e-3 .5 'a\tb' r'\d' """x
y""" f"{a}!"`)
		require.NoError(t, err)
		assert.Equal(t, Token{Kind: INT, Value: "1000"}.Value, tokens[0].Value)
		assert.Equal(t, INT, tokens[1].Kind)
		assert.Equal(t, FLOAT, tokens[2].Kind)
		assert.Equal(t, FLOAT, tokens[3].Kind)
		assert.Equal(t, "a\tb", tokens[4].Value)
		assert.Equal(t, `\d`, tokens[5].Value)
		assert.Equal(t, "x\ny", tokens[6].Value)
		assert.Equal(t, FSTRING, tokens[7].Kind)
		assert.Equal(t, "{a}!", tokens[7].Value)
	})

	t.Run("positions", func(t *testing.T) {
		tokens, err := Tokenize("a = 1\nbb.c")
		require.NoError(t, err)
		assert.Equal(t, Pos{Offset: 6, Line: 2, Col: 1}, tokens[4].Span.Start)
		assert.Equal(t, "bb", tokens[4].Value)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := Tokenize("x = 'abc\n")
		require.ErrorContains(t, err, "unterminated string literal")
		_, err = Tokenize("if x:\n    a\n  b\n")
		require.ErrorContains(t, err, "unindent does not match")
		_, err = Tokenize("f(a]")
		require.ErrorContains(t, err, "does not match")
		_, err = Tokenize("x = $")
		require.ErrorContains(t, err, "invalid character")
	})
}

func countKind(kinds []TokenKind, kind TokenKind) int {
	n := 0
	for _, k := range kinds {
		if k == kind {
			n++
		}
	}
	return n
}

func TestParse(t *testing.T) {
	src := `
import numpy as np
from jit import ops as P, tensor

def f(x, y=2, *args):
    a, b = x.shape
    z = [i * 2 for i in range(a) if i > 0]
    z[0] += -x ** 2
    if a < b <= 3 and not y:
        return lambda q: q + a
    elif y is not None:
        pass
    else:
        raise ValueError(f"bad {a!r:>3} and {{b}}")
    return np.sum(x[1:, ::2], axis=0), {'k': 1}
`
	module, err := Parse("test.py", src)
	require.NoError(t, err)
	require.Len(t, module.Body, 3)

	imp := module.Body[0].(*Import)
	assert.Equal(t, "np", imp.Names[0].Bound())
	from := module.Body[1].(*ImportFrom)
	assert.Equal(t, "jit", from.Module)
	assert.Equal(t, []Alias{{Name: "ops", AsName: "P"}, {Name: "tensor"}}, from.Names)

	fn := module.Body[2].(*FunctionDef)
	assert.Equal(t, "f", fn.Name)
	assert.Equal(t, []string{"x", "y"}, fn.Params.Names)
	assert.Len(t, fn.Params.Defaults, 1)
	assert.Equal(t, "args", fn.Params.VarArg)
	require.Len(t, fn.Body, 5)

	unpack := fn.Body[0].(*Assign)
	assert.IsType(t, &Tuple{}, unpack.Targets[0])
	assert.Equal(t, "x.shape", unpack.Value.NodeSpan().Text(src))

	comp := fn.Body[1].(*Assign).Value.(*ListComp)
	require.Len(t, comp.Generators, 1)
	assert.Len(t, comp.Generators[0].Ifs, 1)

	aug := fn.Body[2].(*AugAssign)
	assert.Equal(t, "+", aug.Op)
	neg := aug.Value.(*UnaryOp)
	assert.Equal(t, "-", neg.Op)
	assert.Equal(t, "**", neg.Operand.(*BinOp).Op, "** binds tighter than unary minus")

	ifStmt := fn.Body[3].(*If)
	boolOp := ifStmt.Test.(*BoolOp)
	assert.Equal(t, "and", boolOp.Op)
	chain := boolOp.Values[0].(*Compare)
	assert.Equal(t, []string{"<", "<="}, chain.Ops)
	assert.IsType(t, &Lambda{}, ifStmt.Body[0].(*Return).Value)
	elif := ifStmt.Else[0].(*If)
	assert.Equal(t, []string{"is not"}, elif.Test.(*Compare).Ops)
	raise := elif.Else[0].(*Raise)
	fstr := raise.Exc.(*Call).Args[0].(*FString)
	require.Len(t, fstr.Parts, 3)
	assert.Equal(t, "bad ", fstr.Parts[0].(*Constant).Value)
	field := fstr.Parts[1].(*FormattedValue)
	assert.Equal(t, byte('r'), field.Conversion)
	assert.Equal(t, ">3", field.FormatSpec)
	assert.Equal(t, " and {b}", fstr.Parts[2].(*Constant).Value)

	ret := fn.Body[4].(*Return).Value.(*Tuple)
	call := ret.Elts[0].(*Call)
	require.Len(t, call.Keywords, 1)
	index := call.Args[0].(*Subscript).Index.(*Tuple)
	assert.IsType(t, &Slice{}, index.Elts[0])
	assert.Nil(t, index.Elts[1].(*Slice).Upper)
	assert.IsType(t, &Dict{}, ret.Elts[1])
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct{ name, src, msg string }{
		{"missing colon", "if x\n  pass\n", "expected ':'"},
		{"bad target", "f() = 3\n", "cannot assign"},
		{"no block", "while x:\npass\n", "expected an indented block"},
		{"class", "class A:\n  pass\n", "not supported"},
		{"dangling op", "x = 1 +\n", "invalid syntax"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse("bad.py", tc.src)
			require.Error(t, err)
			var synErr *Error
			require.ErrorAs(t, err, &synErr)
			assert.Contains(t, synErr.Msg, tc.msg)
			assert.Contains(t, err.Error(), "bad.py:")
			assert.Contains(t, err.Error(), "^")
		})
	}
}

func TestSnippet(t *testing.T) {
	got := Snippet("a = 1\nb = (\nc = 3", 2, 5)
	want := "   1 | a = 1\n   2 | b = (\n     |     ^\n   3 | c = 3\n"
	assert.Equal(t, want, got)
}

func TestFreeVars(t *testing.T) {
	expr, err := ParseExpr("[f(v) + k for v in xs if v > lim] + (lambda q, r=d: q * r + s)(1)")
	require.NoError(t, err)
	assert.Equal(t, []string{"xs", "lim", "f", "k", "d", "s"}, FreeVars(expr))

	module, err := Parse("block.py", "y = y + x\nfor i in range(n):\n    acc += i\ndef g(a):\n    b = a\n    return b + c\n")
	require.NoError(t, err)
	loaded, stored := BlockNames(module.Body)
	assert.Equal(t, []string{"y", "x", "range", "n", "i", "acc", "c"}, loaded)
	assert.Equal(t, []string{"y", "i", "acc", "g"}, stored)
}
