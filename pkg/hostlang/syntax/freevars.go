// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package syntax

// FreeVars returns the names an expression reads from its enclosing scope, in order of first
// occurrence. Names bound inside the expression (lambda parameters, comprehension targets) are
// excluded.
func FreeVars(expr Expr) []string {
	c := newNameCollector()
	c.expr(expr)
	return c.loaded
}

// BlockNames returns the names a statement block reads and the names it assigns, each in order of
// first occurrence. A name assigned and later read appears in both lists. Nested function bodies
// contribute only the names they close over.
func BlockNames(stmts []Stmt) (loaded, stored []string) {
	c := newNameCollector()
	c.stmts(stmts)
	return c.loaded, c.stored
}

type nameCollector struct {
	scopes     []map[string]bool
	loaded     []string
	stored     []string
	seenLoad   map[string]bool
	seenStored map[string]bool
}

func newNameCollector() *nameCollector {
	return &nameCollector{seenLoad: make(map[string]bool), seenStored: make(map[string]bool)}
}

func (c *nameCollector) isBound(name string) bool {
	for _, scope := range c.scopes {
		if scope[name] {
			return true
		}
	}
	return false
}

func (c *nameCollector) load(name string) {
	if c.isBound(name) || c.seenLoad[name] {
		return
	}
	c.seenLoad[name] = true
	c.loaded = append(c.loaded, name)
}

func (c *nameCollector) store(name string) {
	if len(c.scopes) > 0 {
		c.scopes[len(c.scopes)-1][name] = true
		return
	}
	if !c.seenStored[name] {
		c.seenStored[name] = true
		c.stored = append(c.stored, name)
	}
}

func (c *nameCollector) push(names ...string) {
	scope := make(map[string]bool, len(names))
	for _, name := range names {
		scope[name] = true
	}
	c.scopes = append(c.scopes, scope)
}

func (c *nameCollector) pop() { c.scopes = c.scopes[:len(c.scopes)-1] }

func paramNames(params *Params) []string {
	names := append([]string(nil), params.Names...)
	if params.VarArg != "" {
		names = append(names, params.VarArg)
	}
	if params.KwArg != "" {
		names = append(names, params.KwArg)
	}
	return names
}

func (c *nameCollector) comprehension(gens []*Comprehension, elts ...Expr) {
	c.expr(gens[0].Iter)
	c.push()
	for i, gen := range gens {
		if i > 0 {
			c.expr(gen.Iter)
		}
		c.target(gen.Target)
		for _, cond := range gen.Ifs {
			c.expr(cond)
		}
	}
	for _, elt := range elts {
		c.expr(elt)
	}
	c.pop()
}

func (c *nameCollector) expr(expr Expr) {
	if expr == nil {
		return
	}
	switch e := expr.(type) {
	case *Name:
		c.load(e.ID)
	case *Lambda:
		for _, def := range e.Params.Defaults {
			c.expr(def)
		}
		c.push(paramNames(e.Params)...)
		c.expr(e.Body)
		c.pop()
	case *ListComp:
		c.comprehension(e.Generators, e.Elt)
	case *GeneratorExp:
		c.comprehension(e.Generators, e.Elt)
	case *DictComp:
		c.comprehension(e.Generators, e.Key, e.Value)
	default:
		Inspect(expr, func(n Node) bool {
			if n == expr {
				return true
			}
			if child, ok := n.(Expr); ok {
				c.expr(child)
			}
			return false
		})
	}
}

// target records the names bound by an assignment target; attribute and subscript targets read
// their receivers.
func (c *nameCollector) target(expr Expr) {
	switch e := expr.(type) {
	case *Name:
		c.store(e.ID)
	case *Tuple:
		for _, elt := range e.Elts {
			c.target(elt)
		}
	case *List:
		for _, elt := range e.Elts {
			c.target(elt)
		}
	case *Starred:
		c.target(e.Value)
	case *Attribute:
		c.expr(e.Value)
	case *Subscript:
		c.expr(e.Value)
		c.expr(e.Index)
	}
}

func (c *nameCollector) stmts(stmts []Stmt) {
	for _, stmt := range stmts {
		c.stmt(stmt)
	}
}

func (c *nameCollector) stmt(stmt Stmt) {
	switch s := stmt.(type) {
	case *Assign:
		c.expr(s.Value)
		for _, target := range s.Targets {
			c.target(target)
		}
	case *AugAssign:
		c.expr(s.Value)
		if name, ok := s.Target.(*Name); ok {
			c.load(name.ID)
		}
		c.target(s.Target)
	case *For:
		c.expr(s.Iter)
		c.target(s.Target)
		c.stmts(s.Body)
	case *While:
		c.expr(s.Test)
		c.stmts(s.Body)
	case *If:
		c.expr(s.Test)
		c.stmts(s.Body)
		c.stmts(s.Else)
	case *FunctionDef:
		for _, def := range s.Params.Defaults {
			c.expr(def)
		}
		c.store(s.Name)
		innerLoaded, innerStored := BlockNames(s.Body)
		c.push(paramNames(s.Params)...)
		c.push(innerStored...)
		for _, name := range innerLoaded {
			c.load(name)
		}
		c.pop()
		c.pop()
	case *Import:
		for _, alias := range s.Names {
			name := alias.Bound()
			if alias.AsName == "" {
				// "import a.b" binds "a".
				for i := range len(name) {
					if name[i] == '.' {
						name = name[:i]
						break
					}
				}
			}
			c.store(name)
		}
	case *ImportFrom:
		for _, alias := range s.Names {
			c.store(alias.Bound())
		}
	case *Return:
		c.expr(s.Value)
	case *ExprStmt:
		c.expr(s.Value)
	case *Raise:
		c.expr(s.Exc)
	case *Assert:
		c.expr(s.Test)
		c.expr(s.Msg)
	}
}
