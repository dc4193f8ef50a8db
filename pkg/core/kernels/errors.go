// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package kernels implements the CPU computations behind the native graph ops and the tensor
// arithmetic of the host interpreter.
//
// Kernels never modify their inputs. Failures are returned as *Error, whose Kind tells the
// host interpreter which exception class to raise.
package kernels

import (
	"fmt"
)

// ErrorKind classifies kernel failures the same way host exceptions are classified.
type ErrorKind int

const (
	ValueError ErrorKind = iota
	IndexError
	TypeError
)

// Error is returned by kernels on invalid arguments.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func valueErrorf(format string, args ...any) error {
	return &Error{Kind: ValueError, Msg: fmt.Sprintf(format, args...)}
}

func indexErrorf(format string, args ...any) error {
	return &Error{Kind: IndexError, Msg: fmt.Sprintf(format, args...)}
}

func typeErrorf(format string, args ...any) error {
	return &Error{Kind: TypeError, Msg: fmt.Sprintf(format, args...)}
}
