// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package syntax

// Inspect traverses the AST in depth-first order, calling f for each node. If f returns false the
// children of that node are skipped.
func Inspect(node Node, f func(Node) bool) {
	if node == nil || !f(node) {
		return
	}
	visitExprs := func(exprs ...Expr) {
		for _, e := range exprs {
			if e != nil {
				Inspect(e, f)
			}
		}
	}
	visitStmts := func(stmts []Stmt) {
		for _, s := range stmts {
			Inspect(s, f)
		}
	}
	visitParams := func(params *Params) {
		if params != nil {
			visitExprs(params.Defaults...)
		}
	}
	visitGens := func(gens []*Comprehension) {
		for _, gen := range gens {
			visitExprs(gen.Iter, gen.Target)
			visitExprs(gen.Ifs...)
		}
	}
	switch n := node.(type) {
	case *Name, *Constant, *Break, *Continue, *Pass, *Import, *ImportFrom:
	case *FString:
		visitExprs(n.Parts...)
	case *FormattedValue:
		visitExprs(n.Value)
	case *Attribute:
		visitExprs(n.Value)
	case *Subscript:
		visitExprs(n.Value, n.Index)
	case *Slice:
		visitExprs(n.Lower, n.Upper, n.Step)
	case *Call:
		visitExprs(n.Func)
		visitExprs(n.Args...)
		for _, kw := range n.Keywords {
			visitExprs(kw.Value)
		}
	case *Starred:
		visitExprs(n.Value)
	case *BinOp:
		visitExprs(n.Left, n.Right)
	case *UnaryOp:
		visitExprs(n.Operand)
	case *BoolOp:
		visitExprs(n.Values...)
	case *Compare:
		visitExprs(n.Left)
		visitExprs(n.Comparators...)
	case *IfExp:
		visitExprs(n.Test, n.Body, n.Else)
	case *Lambda:
		visitParams(n.Params)
		visitExprs(n.Body)
	case *Tuple:
		visitExprs(n.Elts...)
	case *List:
		visitExprs(n.Elts...)
	case *Dict:
		visitExprs(n.Keys...)
		visitExprs(n.Values...)
	case *ListComp:
		visitGens(n.Generators)
		visitExprs(n.Elt)
	case *GeneratorExp:
		visitGens(n.Generators)
		visitExprs(n.Elt)
	case *DictComp:
		visitGens(n.Generators)
		visitExprs(n.Key, n.Value)
	case *FunctionDef:
		visitParams(n.Params)
		visitStmts(n.Body)
	case *Return:
		visitExprs(n.Value)
	case *Assign:
		visitExprs(n.Targets...)
		visitExprs(n.Value)
	case *AugAssign:
		visitExprs(n.Target, n.Value)
	case *ExprStmt:
		visitExprs(n.Value)
	case *If:
		visitExprs(n.Test)
		visitStmts(n.Body)
		visitStmts(n.Else)
	case *For:
		visitExprs(n.Target, n.Iter)
		visitStmts(n.Body)
	case *While:
		visitExprs(n.Test)
		visitStmts(n.Body)
	case *Raise:
		visitExprs(n.Exc)
	case *Assert:
		visitExprs(n.Test, n.Msg)
	}
}

func (s *Span) setSpan(span Span) { *s = span }

// relocate sets the span of every node of expr. Used for expressions parsed out of f-strings,
// whose own offsets are relative to the field text.
func relocate(expr Expr, span Span) {
	Inspect(expr, func(n Node) bool {
		if setter, ok := n.(interface{ setSpan(Span) }); ok {
			setter.setSpan(span)
		}
		return true
	})
}
