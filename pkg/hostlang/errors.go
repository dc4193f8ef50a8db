// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlang

import (
	"fmt"
	"sort"

	"github.com/agnivade/levenshtein"
	"github.com/gomlx/jitfallback/pkg/core/kernels"
	"github.com/pkg/errors"
)

// ErrorKind is the class of a host exception.
type ErrorKind int

//go:generate go tool enumer -type=ErrorKind -output=gen_errorkind_enumer.go errors.go

const (
	AttributeError ErrorKind = iota
	IndexError
	TypeError
	ValueError
	KeyError
	NameError
	ZeroDivisionError
	// UserRaised is any other exception class raised explicitly; Error.ExceptionName holds its name.
	UserRaised
)

// Error is a host exception escaping an evaluation.
//
// Error() renders as "<ExceptionName>: <Msg>", with Msg verbatim.
type Error struct {
	Kind          ErrorKind
	ExceptionName string
	Msg           string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Name()
	}
	return e.Name() + ": " + e.Msg
}

// Name of the exception class.
func (e *Error) Name() string {
	if e.ExceptionName != "" {
		return e.ExceptionName
	}
	return e.Kind.String()
}

// Errorf creates a host exception of a built-in kind.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, ExceptionName: kind.String(), Msg: fmt.Sprintf(format, args...)}
}

// AsError extracts the *Error from err, if any.
func AsError(err error) (*Error, bool) {
	var hostErr *Error
	if errors.As(err, &hostErr) {
		return hostErr, true
	}
	return nil, false
}

// FromKernelError converts a kernel failure into the host exception the interpreter would raise.
func FromKernelError(err error) error { return fromKernelError(err) }

// fromKernelError converts failures of tensor kernels into host exceptions.
func fromKernelError(err error) error {
	if err == nil {
		return nil
	}
	var kernelErr *kernels.Error
	if errors.As(err, &kernelErr) {
		switch kernelErr.Kind {
		case kernels.IndexError:
			return Errorf(IndexError, "%s", kernelErr.Msg)
		case kernels.TypeError:
			return Errorf(TypeError, "%s", kernelErr.Msg)
		}
		return Errorf(ValueError, "%s", kernelErr.Msg)
	}
	if _, ok := AsError(err); ok {
		return err
	}
	return Errorf(ValueError, "%s", err.Error())
}

// attributeError builds the uniform "object has no attribute" error, with a suggestion taken
// from candidates when one is close enough.
func attributeError(typeName, attr string, candidates []string) *Error {
	err := Errorf(AttributeError, "'%s' object has no attribute '%s'", typeName, attr)
	if suggestion := closestName(attr, candidates); suggestion != "" {
		err.Msg += fmt.Sprintf(". Did you mean: '%s'?", suggestion)
	}
	return err
}

// closestName returns the candidate nearest to name by edit distance, or "" if none is close.
// Ties are broken alphabetically.
func closestName(name string, candidates []string) string {
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)
	best, bestDist := "", max(1, len(name)/3)+1
	for _, candidate := range sorted {
		if candidate == name {
			continue
		}
		if dist := levenshtein.ComputeDistance(name, candidate); dist < bestDist {
			best, bestDist = candidate, dist
		}
	}
	return best
}
