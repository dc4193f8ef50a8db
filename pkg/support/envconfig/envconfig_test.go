// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package envconfig

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntaxLevel(t *testing.T) {
	for value, want := range map[string]SyntaxLevel{
		"0": SyntaxLevelStrict, "1": SyntaxLevelCompatible, "2": SyntaxLevelLax,
		"STRICT": SyntaxLevelStrict, "compatible": SyntaxLevelCompatible, " Lax ": SyntaxLevelLax,
	} {
		got, err := ParseSyntaxLevel(value)
		require.NoError(t, err, "value %q", value)
		assert.Equal(t, want, got, "value %q", value)
	}
	for _, value := range []string{"3", "-1", "loose"} {
		_, err := ParseSyntaxLevel(value)
		assert.Error(t, err, "value %q", value)
	}

	t.Setenv(SyntaxLevelEnv, "")
	level, err := SyntaxLevelFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultSyntaxLevel, level)

	t.Setenv(SyntaxLevelEnv, "strict")
	level, err = SyntaxLevelFromEnv()
	require.NoError(t, err)
	assert.Equal(t, SyntaxLevelStrict, level)
	assert.Equal(t, "Strict", level.String())

	t.Setenv(SyntaxLevelEnv, "7")
	_, err = SyntaxLevelFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), SyntaxLevelEnv)
}

func TestIntegers(t *testing.T) {
	t.Setenv(MaxCacheEnv, "")
	n, err := MaxCache()
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxCache, n)

	t.Setenv(MaxCacheEnv, "3")
	n, err = MaxCache()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	t.Setenv(MaxCacheEnv, "-3")
	_, err = MaxCache()
	assert.Error(t, err)

	t.Setenv(ParallelismEnv, "")
	n, err = Parallelism()
	require.NoError(t, err)
	assert.Equal(t, runtime.NumCPU(), n)

	t.Setenv(ParallelismEnv, "zero")
	_, err = Parallelism()
	assert.Error(t, err)

	t.Setenv(DebugLoweringEnv, "true")
	assert.True(t, DebugLowering())
	t.Setenv(DebugLoweringEnv, "nope")
	assert.False(t, DebugLowering())
}
