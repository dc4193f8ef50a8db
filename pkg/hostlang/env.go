// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlang

import (
	"sort"
)

// Env is a variable scope. Lookups fall back to the parent scope: function locals, then
// enclosing function scopes, then module globals, then builtins.
type Env struct {
	vars   map[string]Object
	parent *Env
}

// NewEnv creates a scope nested in parent (which may be nil).
func NewEnv(parent *Env) *Env {
	return &Env{vars: make(map[string]Object), parent: parent}
}

// Parent scope, or nil.
func (e *Env) Parent() *Env { return e.parent }

// Lookup finds name in this scope or its ancestors.
func (e *Env) Lookup(name string) (Object, bool) {
	for scope := e; scope != nil; scope = scope.parent {
		if v, found := scope.vars[name]; found {
			return v, true
		}
	}
	return nil, false
}

// LookupLocal finds name in this scope only.
func (e *Env) LookupLocal(name string) (Object, bool) {
	v, found := e.vars[name]
	return v, found
}

// Set binds name in this scope.
func (e *Env) Set(name string, value Object) { e.vars[name] = value }

// Delete unbinds name from this scope.
func (e *Env) Delete(name string) { delete(e.vars, name) }

// LocalNames returns the names bound in this scope, sorted.
func (e *Env) LocalNames() []string {
	names := make([]string, 0, len(e.vars))
	for name := range e.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Names returns all names visible from this scope, sorted.
func (e *Env) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for scope := e; scope != nil; scope = scope.parent {
		for name := range scope.vars {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

func nameError(name string, env *Env) *Error {
	err := Errorf(NameError, "name '%s' is not defined", name)
	if suggestion := closestName(name, env.Names()); suggestion != "" {
		err.Msg += ". Did you mean: '" + suggestion + "'?"
	}
	return err
}
