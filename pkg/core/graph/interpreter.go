// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"strconv"

	"github.com/gomlx/jitfallback/pkg/fallback/annotations"
	"github.com/gomlx/jitfallback/pkg/fallback/bridge"
	"github.com/gomlx/jitfallback/pkg/hostlang"
	"github.com/gomlx/jitfallback/pkg/hostlang/syntax"
	"github.com/pkg/errors"
)

// HostExprKind is the shape of the host code captured by an interpreter node.
type HostExprKind int

//go:generate go tool enumer -type=HostExprKind -trimprefix=HostExpr -output=gen_hostexprkind_enumer.go interpreter.go

const (
	// HostExprConstruct is a single construct whose operands were replaced by synthetic names
	// bound to the node inputs.
	HostExprConstruct HostExprKind = iota

	// HostExprClosure is an expression subtree (lambda, comprehension, f-string, ...) evaluated
	// with its free variables bound to the node inputs.
	HostExprClosure

	// HostExprBlock is a statement block. Its result is the tuple of the values of Outputs after
	// the block ran.
	HostExprBlock

	// HostExprRaise raises its single input.
	HostExprRaise
)

// HostExpression is the host code evaluated by an interpreter node.
type HostExpression struct {
	Kind HostExprKind

	// Source text of the construct, for messages.
	Source string

	// Expr is evaluated by construct and closure expressions.
	Expr syntax.Expr

	// Stmts of a block.
	Stmts []syntax.Stmt

	// Bindings are the names the node inputs are bound to, in order.
	Bindings []string

	// Outputs of a block: names whose values form the result tuple. Names left unbound by the
	// block yield a marker that raises UnboundLocalError when a later node reads it.
	Outputs []string
}

// unboundLocal is the value of a block output the block left unbound.
type unboundLocal struct{ name string }

func (*unboundLocal) TypeName() string { return "unbound" }

func (u *unboundLocal) err() *hostlang.Error {
	return &hostlang.Error{Kind: hostlang.NameError, ExceptionName: "UnboundLocalError",
		Msg: "cannot access local variable '" + u.name + "' where it is not associated with a value"}
}

// unboundError returns the error of the first value left unbound by a block, or nil.
func unboundError(values []*bridge.Value) *hostlang.Error {
	for _, v := range values {
		if v.Kind() != bridge.KindOpaque {
			continue
		}
		if u, ok := v.Opaque().(*unboundLocal); ok {
			return u.err()
		}
	}
	return nil
}

// operandName is the binding of the i-th operand of a construct. It is not a valid host
// identifier, so it never shadows a user name.
func operandName(i int) string { return "$" + strconv.Itoa(i) }

// InterpreterNode evaluates a HostExpression with the interpreter of the traced module.
type InterpreterNode struct {
	Expr       *HostExpression
	Annotation *annotations.TypeAnnotation

	interp  *hostlang.Interpreter
	globals *hostlang.Env
}

// NewInterpreterNode creates the evaluator of expr, resolving free names in globals.
func NewInterpreterNode(expr *HostExpression, annotation *annotations.TypeAnnotation,
	interp *hostlang.Interpreter, globals *hostlang.Env) *InterpreterNode {
	return &InterpreterNode{Expr: expr, Annotation: annotation, interp: interp, globals: globals}
}

// Execute binds the inputs and evaluates the expression under hostlang.InterpreterLock.
//
// Host exceptions are returned as *hostlang.Error, Go panics inside builtins as errors. The lock
// is released on every path.
func (in *InterpreterNode) Execute(bindings []*bridge.Value) (result *bridge.Value, err error) {
	if len(bindings) != len(in.Expr.Bindings) {
		return nil, errors.Errorf("interpreter node %q expects %d bindings, got %d",
			in.Expr.Source, len(in.Expr.Bindings), len(bindings))
	}
	defer hostlang.InterpreterLock.Acquire()()
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = errors.Wrapf(e, "panic evaluating %q", in.Expr.Source)
			} else {
				err = errors.Errorf("panic evaluating %q: %v", in.Expr.Source, r)
			}
		}
	}()

	env := hostlang.NewEnv(in.globals)
	for i, name := range in.Expr.Bindings {
		obj := bridge.ToHost(bindings[i])
		if u, ok := obj.(*unboundLocal); ok {
			if in.Expr.Kind != HostExprBlock {
				return nil, u.err()
			}
			// Statements may assign it, reading it raises NameError.
			continue
		}
		env.Set(name, obj)
	}

	var obj hostlang.Object
	switch in.Expr.Kind {
	case HostExprConstruct, HostExprClosure:
		obj, err = in.interp.Eval(in.Expr.Expr, env)
	case HostExprRaise:
		var exc hostlang.Object
		if exc, err = in.interp.Eval(in.Expr.Expr, env); err == nil {
			err = hostlang.RaiseObject(exc)
		}
	case HostExprBlock:
		var hasReturned bool
		if _, hasReturned, err = in.interp.ExecBlock(in.Expr.Stmts, env); err == nil && hasReturned {
			err = errors.Errorf("'return' executed inside the statement block %q", in.Expr.Source)
		}
		if err == nil {
			outputs := make([]hostlang.Object, len(in.Expr.Outputs))
			for i, name := range in.Expr.Outputs {
				value, found := env.LookupLocal(name)
				if !found {
					value = &unboundLocal{name: name}
				}
				outputs[i] = value
			}
			obj = hostlang.NewTuple(outputs...)
		}
	default:
		err = errors.Errorf("unknown host expression kind %s", in.Expr.Kind)
	}
	if err != nil {
		return nil, err
	}
	return bridge.FromHost(obj), nil
}
