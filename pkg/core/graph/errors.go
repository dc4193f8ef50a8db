// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"strings"

	"github.com/gomlx/jitfallback/pkg/hostlang"
	"github.com/gomlx/jitfallback/pkg/hostlang/syntax"
)

// CompileErrorKind classifies the failures of a graph construction.
type CompileErrorKind int

//go:generate go tool enumer -type=CompileErrorKind -output=gen_compileerrorkind_enumer.go errors.go

const (
	// LoweringFailed is a construct that can be neither lowered nor interpreted: unsupported
	// statements, return inside a data-dependent block, fallback disabled by the syntax level.
	LoweringFailed CompileErrorKind = iota

	// TypeMismatch is a native node whose inferred dtype disagrees with its annotation, or a
	// value that can't be unwrapped as required.
	TypeMismatch

	// AnnotationConflict is an annotation that disagrees with the constant folded value.
	AnnotationConflict
)

// CompileError aborts the compilation of one specialization.
type CompileError struct {
	Kind     CompileErrorKind
	Function string

	// Location is "file:line:col".
	Location string
	Msg      string

	// Snippet is the offending source line with a caret, if known.
	Snippet string
}

func (e *CompileError) Error() string {
	var b strings.Builder
	if e.Location != "" {
		b.WriteString(e.Location)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "%s", e.Kind)
	if e.Function != "" {
		fmt.Fprintf(&b, " in %s()", e.Function)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Snippet != "" {
		b.WriteString("\n")
		b.WriteString(e.Snippet)
	}
	return b.String()
}

// location formats a position as "file:line:col".
func location(filename string, pos syntax.Pos) string {
	return fmt.Sprintf("%s:%d:%d", filename, pos.Line, pos.Col)
}

// RuntimeErrorKind classifies failures while executing a compiled graph.
type RuntimeErrorKind int

//go:generate go tool enumer -type=RuntimeErrorKind -output=gen_runtimeerrorkind_enumer.go errors.go

const (
	// HostEvaluationError is an exception raised by host code (or by a native op with host
	// semantics), including deferred raises.
	HostEvaluationError RuntimeErrorKind = iota

	// BridgeUnwrapFailure is a value that doesn't match the kind or dtype its node declares.
	BridgeUnwrapFailure
)

// RuntimeError is the failure of one node during Execute.
//
// Error() contains the host exception as "<Kind>: <message>" verbatim, and errors.As reaches the
// *hostlang.Error.
type RuntimeError struct {
	Kind RuntimeErrorKind

	// Node that failed, described as in Graph.String.
	Node     NodeId
	NodeDesc string

	// Location of the node's construct, "file:line:col".
	Location string

	// Host is the host exception, for HostEvaluationError.
	Host *hostlang.Error

	cause error
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	if e.Location != "" {
		b.WriteString(e.Location)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "%s in node #%d %s: ", e.Kind, e.Node, e.NodeDesc)
	if e.Host != nil {
		b.WriteString(e.Host.Error())
	} else if e.cause != nil {
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

// Unwrap returns the host exception or the underlying failure.
func (e *RuntimeError) Unwrap() error {
	if e.Host != nil {
		return e.Host
	}
	return e.cause
}
