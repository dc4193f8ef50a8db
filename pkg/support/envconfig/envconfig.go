// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package envconfig reads the default configuration of graph compilation and execution from the
// environment. Each setting can be overridden per compilation with options of the graph package.
package envconfig

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// SyntaxLevel controls how much of the host language may fall back to interpretation.
type SyntaxLevel int

//go:generate go tool enumer -type=SyntaxLevel -trimprefix=SyntaxLevel -output=gen_syntaxlevel_enumer.go envconfig.go

const (
	// SyntaxLevelStrict disables interpreter fallback: every construct must be lowered natively
	// or folded to a constant at compile time.
	SyntaxLevelStrict SyntaxLevel = iota

	// SyntaxLevelCompatible allows interpreted expressions, but not data-dependent statement
	// blocks (if/for/while on run-time values).
	SyntaxLevelCompatible

	// SyntaxLevelLax allows everything.
	SyntaxLevelLax
)

// Environment variables.
const (
	// SyntaxLevelEnv accepts 0-2 or the level names (case-insensitive).
	SyntaxLevelEnv = "JITFALLBACK_SYNTAX_LEVEL"

	// MaxCacheEnv is the number of compiled specializations kept by each Exec.
	MaxCacheEnv = "JITFALLBACK_MAX_CACHE"

	// ParallelismEnv is the number of concurrent native node executions: 0 runs nodes
	// sequentially, -1 is unlimited.
	ParallelismEnv = "JITFALLBACK_PARALLELISM"

	// DebugLoweringEnv, if set to a true value, logs every lowering decision at info level.
	DebugLoweringEnv = "JITFALLBACK_DEBUG_LOWERING"
)

// Defaults used when the environment variables are not set.
const (
	DefaultSyntaxLevel = SyntaxLevelLax
	DefaultMaxCache    = 32
)

// ParseSyntaxLevel parses a level number or name.
func ParseSyntaxLevel(value string) (SyntaxLevel, error) {
	value = strings.TrimSpace(value)
	if n, err := strconv.Atoi(value); err == nil {
		level := SyntaxLevel(n)
		if !level.IsASyntaxLevel() {
			return DefaultSyntaxLevel, errors.Errorf("invalid syntax level %d, valid values are 0 (STRICT), 1 (COMPATIBLE) and 2 (LAX)", n)
		}
		return level, nil
	}
	level, err := SyntaxLevelString(value)
	if err != nil {
		return DefaultSyntaxLevel, errors.Errorf("invalid syntax level %q, valid values are STRICT, COMPATIBLE and LAX (or 0-2)", value)
	}
	return level, nil
}

// SyntaxLevelFromEnv returns the level set in JITFALLBACK_SYNTAX_LEVEL, or DefaultSyntaxLevel.
// An invalid value is an error.
func SyntaxLevelFromEnv() (SyntaxLevel, error) {
	value, found := os.LookupEnv(SyntaxLevelEnv)
	if !found || value == "" {
		return DefaultSyntaxLevel, nil
	}
	level, err := ParseSyntaxLevel(value)
	return level, errors.WithMessagef(err, "environment variable %s", SyntaxLevelEnv)
}

// MaxCache returns the cache bound set in JITFALLBACK_MAX_CACHE, or DefaultMaxCache.
func MaxCache() (int, error) {
	n, err := intFromEnv(MaxCacheEnv, DefaultMaxCache)
	if err == nil && n < 0 {
		err = errors.Errorf("environment variable %s must be >= 0, got %d", MaxCacheEnv, n)
	}
	return n, err
}

// Parallelism returns the parallelism set in JITFALLBACK_PARALLELISM, or runtime.NumCPU().
func Parallelism() (int, error) {
	return intFromEnv(ParallelismEnv, runtime.NumCPU())
}

// DebugLowering returns whether JITFALLBACK_DEBUG_LOWERING is set to a true value.
func DebugLowering() bool {
	value, found := os.LookupEnv(DebugLoweringEnv)
	if !found {
		return false
	}
	enabled, err := strconv.ParseBool(value)
	return err == nil && enabled
}

func intFromEnv(name string, defaultValue int) (int, error) {
	value, found := os.LookupEnv(name)
	if !found || value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue, errors.Wrapf(err, "environment variable %s", name)
	}
	return n, nil
}
