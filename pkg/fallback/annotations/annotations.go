// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package annotations extracts the out-of-band pragmas that host code writes in comments:
//
//	x = jit.tensor(shape, jit.int32)  # @jit.typing: () -> tensor_type[int32]
//
//	# @jit.typing: () -> tensor_type[{dtype}]
//	y = jit.tensor(jit.mutable(shape), dtype)
//
//	# @jit.best_effort
//	z = lookup(table, key)
//
// A trailing pragma annotates the statement on its line, a pragma on a line of its own
// annotates the next line holding code. The dtype is either a literal name or, between braces,
// the name of a variable bound to a dtype when the annotated statement runs.
//
// Pragmas are found by scanning the raw source text, independently of the parser: comments are
// located with a quote-aware scan, so "#" characters inside string literals are ignored.
package annotations

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/shapes"
	"github.com/gomlx/jitfallback/pkg/hostlang/syntax"
	"github.com/pkg/errors"
)

var (
	// pragmaPrefix matches any comment that intends to be a pragma, so malformed ones are reported.
	pragmaPrefix = regexp2.MustCompile(`^#\s*@jit\.(?<directive>[A-Za-z_]+)`, regexp2.None)

	typingPragma = regexp2.MustCompile(
		`^#\s*@jit\.typing\s*:\s*\(\s*\)\s*->\s*tensor_type\s*\[\s*`+
			`(?:(?<dtype>[A-Za-z_][A-Za-z0-9_]*)|\{\s*(?<bound>[A-Za-z_][A-Za-z0-9_]*)\s*\})`+
			`\s*\]\s*(?:#.*)?$`, regexp2.None)

	bestEffortPragma = regexp2.MustCompile(`^#\s*@jit\.best_effort\s*(?:#.*)?$`, regexp2.None)
)

// TypeAnnotation is the static output type declared for a statement: a tensor of the given
// dtype, with a shape only known at run time.
type TypeAnnotation struct {
	// Line of the annotated statement and line of the pragma itself (they are equal for
	// trailing pragmas). 1-based.
	Line, PragmaLine int
	Trailing         bool

	// DType is set for literal annotations, BoundName for "tensor_type[{name}]".
	DType     dtypes.DType
	BoundName string
}

// IsBound returns whether the dtype is taken from a variable.
func (a *TypeAnnotation) IsBound() bool { return a.BoundName != "" }

// Resolve returns the annotated dtype, calling lookup to resolve bound names.
func (a *TypeAnnotation) Resolve(lookup func(name string) (dtypes.DType, error)) (dtypes.DType, error) {
	if !a.IsBound() {
		return a.DType, nil
	}
	dtype, err := lookup(a.BoundName)
	if err != nil {
		return dtypes.InvalidDType, errors.WithMessagef(err, "resolving dtype of annotation %s at line %d", a, a.PragmaLine)
	}
	return dtype, nil
}

func (a *TypeAnnotation) String() string {
	if a.IsBound() {
		return fmt.Sprintf("() -> tensor_type[{%s}]", a.BoundName)
	}
	return fmt.Sprintf("() -> tensor_type[%s]", shapes.DTypeName(a.DType))
}

// Table holds the pragmas of one source file, keyed by the line of the statement they annotate.
type Table struct {
	types      map[int]*TypeAnnotation
	bestEffort map[int]bool
}

// Empty returns a table without annotations.
func Empty() *Table {
	return &Table{types: make(map[int]*TypeAnnotation), bestEffort: make(map[int]bool)}
}

// Scan extracts the pragmas of source. Malformed pragmas are reported as *syntax.Error.
func Scan(filename, source string) (*Table, error) {
	table := Empty()
	var pendingType *TypeAnnotation
	pendingBestEffort := false
	for _, line := range splitLines(source) {
		if line.hasCode {
			if pendingType != nil {
				pendingType.Line = line.number
				table.types[line.number] = pendingType
				pendingType = nil
			}
			if pendingBestEffort {
				table.bestEffort[line.number] = true
				pendingBestEffort = false
			}
		}
		if line.comment == "" {
			continue
		}
		if m, _ := pragmaPrefix.FindStringMatch(line.comment); m == nil {
			continue
		}
		syntaxErr := func(format string, args ...any) error {
			return &syntax.Error{Filename: filename, Source: source, Msg: fmt.Sprintf(format, args...),
				Pos: syntax.Pos{Line: line.number, Col: line.commentCol}}
		}
		if m, _ := bestEffortPragma.FindStringMatch(line.comment); m != nil {
			if line.hasCode {
				table.bestEffort[line.number] = true
			} else {
				pendingBestEffort = true
			}
			continue
		}
		m, _ := typingPragma.FindStringMatch(line.comment)
		if m == nil {
			return nil, syntaxErr("malformed pragma %q, expected \"# @jit.typing: () -> tensor_type[<dtype>]\" or \"# @jit.best_effort\"",
				strings.TrimSpace(line.comment))
		}
		annotation := &TypeAnnotation{PragmaLine: line.number, Trailing: line.hasCode, DType: dtypes.InvalidDType}
		if bound := m.GroupByName("bound"); bound != nil && bound.Length > 0 {
			annotation.BoundName = bound.String()
		} else {
			name := m.GroupByName("dtype").String()
			dtype, err := shapes.ParseDType(name)
			if err != nil {
				return nil, syntaxErr("unknown dtype %q in type annotation", name)
			}
			annotation.DType = dtype
		}
		if line.hasCode {
			annotation.Line = line.number
			if _, found := table.types[line.number]; found {
				return nil, syntaxErr("statement at line %d has more than one type annotation", line.number)
			}
			table.types[line.number] = annotation
			continue
		}
		if pendingType != nil {
			return nil, syntaxErr("type annotation at line %d is not followed by a statement", pendingType.PragmaLine)
		}
		pendingType = annotation
	}
	if pendingType != nil {
		return nil, &syntax.Error{Filename: filename, Source: source, Pos: syntax.Pos{Line: pendingType.PragmaLine, Col: 1},
			Msg: "type annotation is not followed by a statement"}
	}
	return table, nil
}

// TypeAt returns the type annotation of the statement starting at line.
func (t *Table) TypeAt(line int) (*TypeAnnotation, bool) {
	a, found := t.types[line]
	return a, found
}

// TypeIn returns the first type annotation attached to a line in [first, last], for
// statements spanning several lines.
func (t *Table) TypeIn(first, last int) (*TypeAnnotation, bool) {
	for line := first; line <= last; line++ {
		if a, found := t.types[line]; found {
			return a, true
		}
	}
	return nil, false
}

// BestEffortIn returns whether a line in [first, last] is marked best-effort.
func (t *Table) BestEffortIn(first, last int) bool {
	for line := first; line <= last; line++ {
		if t.bestEffort[line] {
			return true
		}
	}
	return false
}

// Lines returns the annotated statement lines, sorted.
func (t *Table) Lines() []int {
	lines := make([]int, 0, len(t.types))
	for line := range t.types {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines
}

// Len returns the number of type annotations.
func (t *Table) Len() int { return len(t.types) }
