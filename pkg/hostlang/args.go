// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlang

import (
	"slices"
)

// ParseArgs matches positional and keyword arguments of a Go builtin against its parameter
// names, raising the same TypeErrors as the interpreter's own builtins.
func ParseArgs(fname string, args []Object, kwargs []Kwarg, nRequired int, names ...string) ([]Object, error) {
	return parseArgs(fname, args, kwargs, nRequired, names...)
}

// parseArgs matches positional and keyword arguments of a builtin against its parameter names.
// The returned slice is aligned with names; optional arguments not given are nil.
func parseArgs(fname string, args []Object, kwargs []Kwarg, nRequired int, names ...string) ([]Object, error) {
	if len(args) > len(names) {
		if nRequired == len(names) {
			return nil, Errorf(TypeError, "%s() takes exactly %d arguments (%d given)", fname, len(names), len(args))
		}
		return nil, Errorf(TypeError, "%s() takes at most %d arguments (%d given)", fname, len(names), len(args))
	}
	out := make([]Object, len(names))
	copy(out, args)
	for _, kw := range kwargs {
		idx := slices.Index(names, kw.Name)
		if idx < 0 {
			return nil, Errorf(TypeError, "%s() got an unexpected keyword argument '%s'", fname, kw.Name)
		}
		if out[idx] != nil {
			return nil, Errorf(TypeError, "%s() got multiple values for argument '%s'", fname, kw.Name)
		}
		out[idx] = kw.Value
	}
	for i := range nRequired {
		if out[i] == nil {
			return nil, Errorf(TypeError, "%s() missing required argument '%s' (pos %d)", fname, names[i], i+1)
		}
	}
	return out, nil
}

// kwarg returns the value of the named keyword argument, or nil.
func kwarg(kwargs []Kwarg, name string) Object {
	for _, kw := range kwargs {
		if kw.Name == name {
			return kw.Value
		}
	}
	return nil
}

// onlyKwargs checks that all keyword arguments are among the allowed names.
func onlyKwargs(fname string, kwargs []Kwarg, allowed ...string) error {
	for _, kw := range kwargs {
		if !slices.Contains(allowed, kw.Name) {
			return Errorf(TypeError, "%s() got an unexpected keyword argument '%s'", fname, kw.Name)
		}
	}
	return nil
}
