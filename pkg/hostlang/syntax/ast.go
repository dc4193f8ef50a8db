// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package syntax

// Node is implemented by all AST nodes. Every node embeds its Span.
type Node interface {
	NodeSpan() Span
}

// NodeSpan implements Node for the embedding node types.
func (s Span) NodeSpan() Span { return s }

// Text returns the source text covered by the span.
func (s Span) Text(src string) string {
	if s.Start.Offset < 0 || s.End.Offset > len(src) || s.Start.Offset > s.End.Offset {
		return ""
	}
	return src[s.Start.Offset:s.End.Offset]
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expressions.
type (
	// Name is a reference to a variable.
	Name struct {
		Span
		ID string
	}

	// Constant holds a literal: nil (None), bool, int64, float64 or string.
	Constant struct {
		Span
		Value any
	}

	// FString is a formatted string literal. Parts are either *Constant strings or *FormattedValue.
	FString struct {
		Span
		Parts []Expr
	}

	// FormattedValue is a "{value!conversion:spec}" field of an f-string.
	FormattedValue struct {
		Span
		Value      Expr
		Conversion byte // 0, 'r' or 's'.
		FormatSpec string
	}

	Attribute struct {
		Span
		Value Expr
		Attr  string
	}

	Subscript struct {
		Span
		Value Expr
		Index Expr
	}

	// Slice is a "lower:upper:step" index; any part may be nil.
	Slice struct {
		Span
		Lower, Upper, Step Expr
	}

	Call struct {
		Span
		Func     Expr
		Args     []Expr // May contain *Starred.
		Keywords []Keyword
	}

	// Starred is "*value" in a call or display.
	Starred struct {
		Span
		Value Expr
	}

	BinOp struct {
		Span
		Op          string
		Left, Right Expr
	}

	// UnaryOp is one of "-", "+", "~" or "not".
	UnaryOp struct {
		Span
		Op      string
		Operand Expr
	}

	// BoolOp is a chain of "and" or "or".
	BoolOp struct {
		Span
		Op     string
		Values []Expr
	}

	// Compare is a comparison chain: Left Ops[0] Comparators[0] Ops[1] Comparators[1] ...
	// Ops use "not in" and "is not" for the two-word operators.
	Compare struct {
		Span
		Left        Expr
		Ops         []string
		Comparators []Expr
	}

	IfExp struct {
		Span
		Test, Body, Else Expr
	}

	Lambda struct {
		Span
		Params *Params
		Body   Expr
	}

	Tuple struct {
		Span
		Elts []Expr
	}

	List struct {
		Span
		Elts []Expr
	}

	// Dict is a display; a nil key means "**value".
	Dict struct {
		Span
		Keys   []Expr
		Values []Expr
	}

	ListComp struct {
		Span
		Elt        Expr
		Generators []*Comprehension
	}

	GeneratorExp struct {
		Span
		Elt        Expr
		Generators []*Comprehension
	}

	DictComp struct {
		Span
		Key, Value Expr
		Generators []*Comprehension
	}
)

// Keyword is a "name=value" call argument; an empty Name means "**value".
type Keyword struct {
	Name  string
	Value Expr
}

// Comprehension is one "for target in iter if cond..." clause.
type Comprehension struct {
	Target Expr
	Iter   Expr
	Ifs    []Expr
}

// Params of a def or lambda. Defaults align with the last len(Defaults) names.
type Params struct {
	Names    []string
	Defaults []Expr
	VarArg   string
	KwArg    string
}

func (*Name) exprNode()           {}
func (*Constant) exprNode()       {}
func (*FString) exprNode()        {}
func (*FormattedValue) exprNode() {}
func (*Attribute) exprNode()      {}
func (*Subscript) exprNode()      {}
func (*Slice) exprNode()          {}
func (*Call) exprNode()           {}
func (*Starred) exprNode()        {}
func (*BinOp) exprNode()          {}
func (*UnaryOp) exprNode()        {}
func (*BoolOp) exprNode()         {}
func (*Compare) exprNode()        {}
func (*IfExp) exprNode()          {}
func (*Lambda) exprNode()         {}
func (*Tuple) exprNode()          {}
func (*List) exprNode()           {}
func (*Dict) exprNode()           {}
func (*ListComp) exprNode()       {}
func (*GeneratorExp) exprNode()   {}
func (*DictComp) exprNode()       {}

// Statements.
type (
	FunctionDef struct {
		Span
		Name   string
		Params *Params
		Body   []Stmt
	}

	Return struct {
		Span
		Value Expr // nil for a bare return.
	}

	// Assign is "t1 = t2 = ... = value".
	Assign struct {
		Span
		Targets []Expr
		Value   Expr
	}

	// AugAssign is "target op= value"; Op is the binary operator, without "=".
	AugAssign struct {
		Span
		Target Expr
		Op     string
		Value  Expr
	}

	ExprStmt struct {
		Span
		Value Expr
	}

	// If holds elif chains as a nested *If in Else.
	If struct {
		Span
		Test Expr
		Body []Stmt
		Else []Stmt
	}

	For struct {
		Span
		Target Expr
		Iter   Expr
		Body   []Stmt
	}

	While struct {
		Span
		Test Expr
		Body []Stmt
	}

	Break    struct{ Span }
	Continue struct{ Span }
	Pass     struct{ Span }

	Raise struct {
		Span
		Exc Expr // nil re-raises, which is not supported at run time.
	}

	Assert struct {
		Span
		Test Expr
		Msg  Expr
	}

	Import struct {
		Span
		Names []Alias
	}

	ImportFrom struct {
		Span
		Module string
		Names  []Alias
	}
)

// Alias is "name as asname" in imports; AsName may be empty.
type Alias struct {
	Name   string
	AsName string
}

// Bound returns the name the alias binds in the importing scope.
func (a Alias) Bound() string {
	if a.AsName != "" {
		return a.AsName
	}
	return a.Name
}

func (*FunctionDef) stmtNode() {}
func (*Return) stmtNode()      {}
func (*Assign) stmtNode()      {}
func (*AugAssign) stmtNode()   {}
func (*ExprStmt) stmtNode()    {}
func (*If) stmtNode()          {}
func (*For) stmtNode()         {}
func (*While) stmtNode()       {}
func (*Break) stmtNode()       {}
func (*Continue) stmtNode()    {}
func (*Pass) stmtNode()        {}
func (*Raise) stmtNode()       {}
func (*Assert) stmtNode()      {}
func (*Import) stmtNode()      {}
func (*ImportFrom) stmtNode()  {}

// Module is a parsed source file.
type Module struct {
	Filename string
	Source   string
	Body     []Stmt
}
