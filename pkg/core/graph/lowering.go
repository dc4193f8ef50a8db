// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/ops"
	"github.com/gomlx/jitfallback/pkg/core/tensors"
	"github.com/gomlx/jitfallback/pkg/fallback/bridge"
	"github.com/gomlx/jitfallback/pkg/hostlang"
	"github.com/gomlx/jitfallback/pkg/hostlang/syntax"
)

// expr lowers an expression and returns the node holding its value.
func (t *tracer) expr(e syntax.Expr) *Node {
	switch x := e.(type) {
	case *syntax.Constant:
		return t.constant(bridge.FromHost(hostlang.ConstantValue(x)), x.Span)
	case *syntax.Name:
		return t.name(x)
	case *syntax.Attribute:
		return t.attribute(x, t.expr(x.Value))
	case *syntax.Subscript:
		return t.subscript(x)
	case *syntax.Call:
		return t.call(x)
	case *syntax.BinOp:
		return t.binary(x, x.Op, t.expr(x.Left), t.expr(x.Right))
	case *syntax.UnaryOp:
		return t.unary(x)
	case *syntax.Compare:
		return t.compare(x)
	case *syntax.Tuple:
		return t.display(x, x.Elts, true)
	case *syntax.List:
		return t.display(x, x.Elts, false)
	case *syntax.BoolOp:
		return t.closure(x, "short-circuit "+x.Op)
	case *syntax.IfExp:
		return t.closure(x, "conditional expression")
	case *syntax.Lambda:
		return t.closure(x, "lambda")
	case *syntax.FString:
		return t.closure(x, "f-string")
	case *syntax.Dict:
		return t.closure(x, "dict display")
	case *syntax.ListComp, *syntax.GeneratorExp, *syntax.DictComp:
		return t.closure(x, "comprehension")
	case *syntax.Starred:
		t.fail(LoweringFailed, x.Span, "starred expression is only allowed in calls and displays")
	case *syntax.Slice:
		t.fail(LoweringFailed, x.Span, "slice is only allowed in subscripts")
	}
	t.fail(LoweringFailed, e.NodeSpan(), "unsupported expression %T", e)
	return nil
}

// construct collects the operands of a host construct rebuilt with synthetic names.
type construct struct {
	inputs   []*Node
	bindings []string
}

// operand binds n to the next synthetic name and returns the reference to it.
func (c *construct) operand(n *Node, span syntax.Span) syntax.Expr {
	name := operandName(len(c.inputs))
	c.inputs = append(c.inputs, n)
	c.bindings = append(c.bindings, name)
	return &syntax.Name{Span: span, ID: name}
}

// interpretConstruct creates the interpreter node of the construct e, rebuilt as ast.
func (t *tracer) interpretConstruct(e syntax.Node, ast syntax.Expr, c *construct, hint dtypes.DType, reason string) *Node {
	span := e.NodeSpan()
	expr := &HostExpression{Kind: HostExprConstruct, Source: span.Text(t.g.source), Expr: ast, Bindings: c.bindings}
	n := t.interpreted(expr, c.inputs, span, hint)
	t.decideInterpreted(n, reason)
	return n
}

// closure creates an interpreter node evaluating e with its free variables bound to their
// current values.
func (t *tracer) closure(e syntax.Expr, reason string) *Node {
	var inputs []*Node
	var bindings []string
	for _, name := range syntax.FreeVars(e) {
		if n, found := t.scope[name]; found {
			inputs = append(inputs, n)
			bindings = append(bindings, name)
		}
	}
	span := e.NodeSpan()
	expr := &HostExpression{Kind: HostExprClosure, Source: span.Text(t.g.source), Expr: e, Bindings: bindings}
	n := t.interpreted(expr, inputs, span, dtypes.InvalidDType)
	t.decideInterpreted(n, reason)
	return n
}

// name resolves a variable: locals, then globals and builtins, which are constants of the graph.
func (t *tracer) name(x *syntax.Name) *Node {
	if n, found := t.scope[x.ID]; found {
		return n
	}
	if obj, found := t.global(x.ID); found {
		n := t.constant(bridge.FromHost(obj), x.Span)
		n.label = x.ID
		return n
	}
	return t.deferredRaise(hostlang.Errorf(hostlang.NameError, "name '%s' is not defined", x.ID), x.Span)
}

// attribute lowers "recv.attr". Static tensor metadata becomes constants, dynamic shapes the
// Shape op.
func (t *tracer) attribute(x *syntax.Attribute, recv *Node) *Node {
	sig := recv.signature
	if recv.kind != NodeKindConstant && recv.deferred == nil && sig.Kind == bridge.KindTensor {
		shape := sig.Shape
		switch {
		case x.Attr == "shape" && !recv.mutable && shape.IsFullyKnown() && !sig.Dynamic:
			n := t.constant(bridge.FromHost(hostlang.ShapeTuple(shape.Dimensions)), x.Span)
			t.decide(x.Span, NativeLowered, n, "static shape %s", shape)
			return n
		case x.Attr == "shape":
			n := t.native(ops.Shape, ops.DefaultParams(), x.Span, recv)
			t.decide(x.Span, NativeLowered, n, "shape of a tensor known at run time")
			return n
		case x.Attr == "ndim" && !recv.mutable && !shape.RankUnknown:
			n := t.constant(bridge.Wrap(int64(shape.Rank())), x.Span)
			t.decide(x.Span, NativeLowered, n, "static rank")
			return n
		case x.Attr == "dtype" && !recv.mutable && shape.DType != dtypes.InvalidDType:
			n := t.constant(bridge.FromHost(&hostlang.DType{DType: shape.DType}), x.Span)
			t.decide(x.Span, NativeLowered, n, "static dtype")
			return n
		}
	}
	if recv.deferred != nil {
		return recv
	}
	if recv.kind != NodeKindConstant {
		if err := missingAttribute(sig, x.Attr); err != nil {
			return t.deferredRaise(err, x.Span)
		}
	}
	c := &construct{}
	ast := &syntax.Attribute{Span: x.Span, Value: c.operand(recv, x.Value.NodeSpan()), Attr: x.Attr}
	return t.interpretConstruct(x, ast, c, dtypes.InvalidDType, "attribute access")
}

// missingAttribute returns the AttributeError raised when reading attr from any value of the
// signature, or nil if the attribute exists or the type is not known.
func missingAttribute(sig bridge.Signature, attr string) *hostlang.Error {
	var sample hostlang.Object
	switch sig.Kind {
	case bridge.KindTensor:
		sample = &hostlang.Tensor{Value: tensors.FromScalar(float32(0)), NumPy: sig.TypeName == "numpy.ndarray"}
	case bridge.KindSequence:
		if sig.Tuple {
			sample = hostlang.NewTuple()
		} else {
			sample = hostlang.NewList()
		}
	case bridge.KindMapping:
		sample = hostlang.NewDict()
	case bridge.KindScalar:
		switch sig.TypeName {
		case "int":
			sample = hostlang.Int(0)
		case "float":
			sample = hostlang.Float(0)
		case "bool":
			sample = hostlang.Bool(false)
		case "str":
			sample = hostlang.Str("")
		case "NoneType":
			sample = hostlang.None
		}
	}
	if sample == nil || hostlang.HasAttr(sample, attr) {
		return nil
	}
	_, err := hostlang.GetAttr(sample, attr)
	hostErr, _ := hostlang.AsError(err)
	return hostErr
}

// subscript lowers "recv[index]": constant indices of sequences with known length and of tensors
// are native ops, anything else is interpreted.
func (t *tracer) subscript(x *syntax.Subscript) *Node {
	recv := t.expr(x.Value)
	if recv.deferred != nil {
		return recv
	}
	sig := recv.signature
	if sl, ok := x.Index.(*syntax.Slice); ok {
		c := &construct{}
		value := c.operand(recv, x.Value.NodeSpan())
		parts := []syntax.Expr{sl.Lower, sl.Upper, sl.Step}
		bounds := make([]hostlang.Object, len(parts))
		static := sig.Kind == bridge.KindSequence && sig.Length >= 0
		for i, part := range parts {
			bounds[i] = hostlang.None
			if part == nil {
				continue
			}
			n := t.expr(part)
			if n.kind == NodeKindConstant {
				bounds[i] = bridge.ToHost(n.value)
			} else {
				static = false
			}
			parts[i] = c.operand(n, part.NodeSpan())
		}
		if static {
			so := &hostlang.SliceObject{Start: bounds[0], Stop: bounds[1], Step: bounds[2]}
			indices, err := so.Indices(sig.Length)
			if err != nil {
				if hostErr, ok := hostlang.AsError(err); ok {
					return t.deferredRaise(hostErr, x.Span)
				}
			} else {
				n := t.sequence(x.Span, sig.Tuple, recv, indices)
				t.decide(x.Span, NativeLowered, n, "constant slice of a sequence of length %d", sig.Length)
				return n
			}
		}
		ast := &syntax.Subscript{Span: x.Span, Value: value, Index: &syntax.Slice{Span: sl.Span, Lower: parts[0], Upper: parts[1], Step: parts[2]}}
		return t.interpretConstruct(x, ast, c, dtypes.InvalidDType, "slice")
	}

	index := t.expr(x.Index)
	if i, ok := constantInt(index); ok {
		switch {
		case sig.Kind == bridge.KindSequence && sig.Length >= 0:
			n := t.native(ops.TupleGetItem, ops.Params{Index: i}, x.Span, recv)
			t.decide(x.Span, NativeLowered, n, "constant index of a sequence of length %d", sig.Length)
			return n
		case sig.Kind == bridge.KindTensor:
			n := t.native(ops.TensorGetItem, ops.Params{Index: i}, x.Span, recv)
			t.decide(x.Span, NativeLowered, n, "constant index of a tensor")
			return n
		}
	}
	c := &construct{}
	ast := &syntax.Subscript{Span: x.Span, Value: c.operand(recv, x.Value.NodeSpan()), Index: c.operand(index, x.Index.NodeSpan())}
	return t.interpretConstruct(x, ast, c, dtypes.InvalidDType, "subscript")
}

// sequence builds a tuple or list from the elements of seq at the given indices.
func (t *tracer) sequence(span syntax.Span, tuple bool, seq *Node, indices []int) *Node {
	if len(indices) == 0 {
		return t.constant(bridge.NewSequence(tuple), span)
	}
	elems := make([]*Node, len(indices))
	for i, idx := range indices {
		elems[i] = t.native(ops.TupleGetItem, ops.Params{Index: idx}, span, seq)
	}
	op := ops.MakeList
	if tuple {
		op = ops.MakeTuple
	}
	return t.native(op, ops.DefaultParams(), span, elems...)
}

func constantInt(n *Node) (int, bool) {
	if n.kind != NodeKindConstant || n.value.Kind() != bridge.KindScalar {
		return 0, false
	}
	i, ok := n.value.Scalar().(int64)
	return int(i), ok
}

// callArg is a lowered argument of a call.
type callArg struct {
	node    *Node
	span    syntax.Span
	keyword string
	starred bool
	kwSplat bool
}

func (t *tracer) lowerArgs(x *syntax.Call) []callArg {
	var args []callArg
	for _, a := range x.Args {
		if s, ok := a.(*syntax.Starred); ok {
			args = append(args, callArg{node: t.expr(s.Value), span: s.Span, starred: true})
			continue
		}
		args = append(args, callArg{node: t.expr(a), span: a.NodeSpan()})
	}
	for _, kw := range x.Keywords {
		args = append(args, callArg{node: t.expr(kw.Value), span: kw.Value.NodeSpan(), keyword: kw.Name, kwSplat: kw.Name == ""})
	}
	return args
}

// rebuildCall rebuilds x calling fn, with its arguments bound to synthetic names.
func rebuildCall(x *syntax.Call, fn syntax.Expr, c *construct, args []callArg) *syntax.Call {
	call := &syntax.Call{Span: x.Span, Func: fn}
	for _, a := range args {
		ref := c.operand(a.node, a.span)
		switch {
		case a.keyword != "" || a.kwSplat:
			call.Keywords = append(call.Keywords, syntax.Keyword{Name: a.keyword, Value: ref})
		case a.starred:
			call.Args = append(call.Args, &syntax.Starred{Span: a.span, Value: ref})
		default:
			call.Args = append(call.Args, ref)
		}
	}
	return call
}

// call lowers a call. Builtins implemented by a primitive (see Builtin.Native) become native
// nodes when their parameters are constants. Method calls on run-time values are interpreted as
// a whole, so the method is resolved on the actual receiver.
func (t *tracer) call(x *syntax.Call) *Node {
	var callee *Node
	if attr, ok := x.Func.(*syntax.Attribute); ok {
		recv := t.expr(attr.Value)
		if recv.deferred != nil {
			return recv
		}
		if recv.kind != NodeKindConstant {
			if err := missingAttribute(recv.signature, attr.Attr); err != nil {
				return t.deferredRaise(err, attr.Span)
			}
			args := t.lowerArgs(x)
			c := &construct{}
			method := &syntax.Attribute{Span: attr.Span, Value: c.operand(recv, attr.Value.NodeSpan()), Attr: attr.Attr}
			var hint dtypes.DType
			if attr.Attr == "astype" {
				hint = t.dtypeArg(args, 0, "dtype")
			}
			return t.interpretConstruct(x, rebuildCall(x, method, c, args), c, hint, "method call")
		}
		callee = t.attribute(attr, recv)
	} else {
		callee = t.expr(x.Func)
	}
	if callee.deferred != nil {
		return callee
	}
	args := t.lowerArgs(x)

	var builtin *hostlang.Builtin
	if callee.kind == NodeKindConstant {
		builtin, _ = callee.value.Opaque().(*hostlang.Builtin)
	}
	if builtin != nil && builtin.Native != "" {
		if n := t.nativeCall(x, builtin, args); n != nil {
			return n
		}
	}
	var hint dtypes.DType
	if builtin != nil {
		switch builtin.Name {
		case "array", "asarray", "zeros", "ones":
			hint = t.dtypeArg(args, 1, "dtype")
		case "full":
			hint = t.dtypeArg(args, 2, "dtype")
		}
	}
	c := &construct{}
	fn := c.operand(callee, x.Func.NodeSpan())
	return t.interpretConstruct(x, rebuildCall(x, fn, c, args), c, hint, "call")
}

// dtypeArg returns the dtype passed as a constant in the given position or keyword.
func (t *tracer) dtypeArg(args []callArg, position int, keyword string) dtypes.DType {
	var arg *Node
	positional := 0
	for _, a := range args {
		switch {
		case a.starred || a.kwSplat:
			return dtypes.InvalidDType
		case a.keyword == keyword:
			arg = a.node
		case a.keyword == "":
			if positional == position {
				arg = a.node
			}
			positional++
		}
	}
	if arg == nil || arg.kind != NodeKindConstant {
		return dtypes.InvalidDType
	}
	dtype, err := hostlang.DTypeOf(bridge.ToHost(arg.value))
	if err != nil {
		return dtypes.InvalidDType
	}
	return dtype
}

// nativeCall lowers a call of a builtin implemented by a primitive. It returns nil if the call
// must be interpreted: starred arguments, parameters only known at run time or variadic inputs
// of unknown length.
func (t *tracer) nativeCall(x *syntax.Call, builtin *hostlang.Builtin, args []callArg) *Node {
	op, found := ops.Get(builtin.Native)
	if !found {
		return nil
	}
	var positional []hostlang.Object
	var keywords []hostlang.Kwarg
	for i, a := range args {
		placeholder := &hostlang.Opaque{Value: i}
		switch {
		case a.starred || a.kwSplat:
			return nil
		case a.keyword != "":
			keywords = append(keywords, hostlang.Kwarg{Name: a.keyword, Value: placeholder})
		default:
			positional = append(positional, placeholder)
		}
	}
	inputs, params, err := op.BindArgs(positional, keywords)
	if err != nil {
		if hostErr, ok := hostlang.AsError(err); ok {
			return t.deferredRaise(hostErr, x.Span)
		}
		return nil
	}
	argOf := func(obj hostlang.Object) *Node {
		if placeholder, ok := obj.(*hostlang.Opaque); ok {
			return args[placeholder.Value.(int)].node
		}
		return nil
	}

	paramValues := make([]hostlang.Object, len(params))
	for i, p := range params {
		if p == nil {
			continue
		}
		n := argOf(p)
		if n == nil || n.kind != NodeKindConstant {
			return nil
		}
		paramValues[i] = bridge.ToHost(n.value)
	}
	p, err := op.ParamsFromHost(paramValues)
	if err != nil {
		if hostErr, ok := hostlang.AsError(err); ok {
			return t.deferredRaise(hostErr, x.Span)
		}
		return nil
	}

	var inputNodes []*Node
	if op.Variadic {
		seq := argOf(inputs[0])
		if seq == nil {
			return nil
		}
		if inputNodes = t.elementsOf(seq, x.Span); inputNodes == nil {
			return nil
		}
	} else {
		for _, in := range inputs {
			n := argOf(in)
			if n == nil {
				return nil
			}
			inputNodes = append(inputNodes, n)
		}
	}
	n := t.native(op, p, x.Span, inputNodes...)
	if op == ops.Identity {
		n.mutable = true
		n.signature.Dynamic = true
		t.decide(x.Span, NativeLowered, n, "value declared mutable")
	} else {
		t.decide(x.Span, NativeLowered, n, "primitive %s", op.Name)
	}
	return n
}

// elementsOf returns nodes for the elements of a sequence of known length, nil otherwise.
func (t *tracer) elementsOf(seq *Node, span syntax.Span) []*Node {
	if seq.op == ops.MakeTuple || seq.op == ops.MakeList {
		return seq.inputs
	}
	if seq.kind == NodeKindConstant && seq.value.Kind() == bridge.KindSequence {
		elems := make([]*Node, seq.value.Len())
		for i, e := range seq.value.Elements() {
			elems[i] = t.constant(e, span)
		}
		return elems
	}
	sig := seq.signature
	if sig.Kind != bridge.KindSequence || sig.Length < 0 {
		return nil
	}
	elems := make([]*Node, sig.Length)
	for i := range elems {
		elems[i] = t.native(ops.TupleGetItem, ops.Params{Index: i}, span, seq)
	}
	return elems
}

// numericOperand reports whether a value of the signature is handled by the arithmetic
// primitives: tensors and numeric host scalars.
func numericOperand(sig bridge.Signature) bool {
	switch sig.Kind {
	case bridge.KindTensor:
		return true
	case bridge.KindScalar:
		return sig.DType() != dtypes.InvalidDType
	}
	return false
}

// binary lowers "l op r", for e a BinOp, a Compare or an AugAssign.
func (t *tracer) binary(e syntax.Node, op string, l, r *Node) *Node {
	span := e.NodeSpan()
	if l.deferred != nil {
		return l
	}
	if r.deferred != nil {
		return r
	}
	if nativeOp, ok := ops.BinaryForSymbol(op); ok && numericOperand(l.signature) && numericOperand(r.signature) {
		n := t.native(nativeOp, ops.DefaultParams(), span, l, r)
		t.decide(span, NativeLowered, n, "%s on %s and %s", nativeOp.Name, l.signature, r.signature)
		return n
	}
	c := &construct{}
	left, right := c.operand(l, span), c.operand(r, span)
	var ast syntax.Expr
	if _, isCompare := e.(*syntax.Compare); isCompare {
		ast = &syntax.Compare{Span: span, Left: left, Ops: []string{op}, Comparators: []syntax.Expr{right}}
	} else {
		ast = &syntax.BinOp{Span: span, Op: op, Left: left, Right: right}
	}
	return t.interpretConstruct(e, ast, c, dtypes.InvalidDType, fmt.Sprintf("operator %s on %s and %s", op, l.signature, r.signature))
}

func (t *tracer) unary(x *syntax.UnaryOp) *Node {
	operand := t.expr(x.Operand)
	if operand.deferred != nil {
		return operand
	}
	if x.Op == "-" && numericOperand(operand.signature) {
		n := t.native(ops.Neg, ops.DefaultParams(), x.Span, operand)
		t.decide(x.Span, NativeLowered, n, "negation of %s", operand.signature)
		return n
	}
	c := &construct{}
	ast := &syntax.UnaryOp{Span: x.Span, Op: x.Op, Operand: c.operand(operand, x.Operand.NodeSpan())}
	return t.interpretConstruct(x, ast, c, dtypes.InvalidDType, "unary "+x.Op)
}

// compare lowers comparisons: single numeric comparisons are primitives, chains and identity or
// membership tests are interpreted.
func (t *tracer) compare(x *syntax.Compare) *Node {
	if len(x.Ops) == 1 {
		return t.binary(x, x.Ops[0], t.expr(x.Left), t.expr(x.Comparators[0]))
	}
	c := &construct{}
	ast := &syntax.Compare{Span: x.Span, Ops: x.Ops}
	ast.Left = c.operand(t.expr(x.Left), x.Left.NodeSpan())
	for _, comparator := range x.Comparators {
		ast.Comparators = append(ast.Comparators, c.operand(t.expr(comparator), comparator.NodeSpan()))
	}
	return t.interpretConstruct(x, ast, c, dtypes.InvalidDType, "comparison chain")
}

// display lowers tuple and list displays to MakeTuple and MakeList.
func (t *tracer) display(e syntax.Expr, elts []syntax.Expr, tuple bool) *Node {
	span := e.NodeSpan()
	for _, elt := range elts {
		if _, starred := elt.(*syntax.Starred); starred {
			return t.closure(e, "display with starred elements")
		}
	}
	if len(elts) == 0 {
		return t.constant(bridge.NewSequence(tuple), span)
	}
	nodes := make([]*Node, len(elts))
	for i, elt := range elts {
		nodes[i] = t.expr(elt)
	}
	op := ops.MakeList
	if tuple {
		op = ops.MakeTuple
	}
	n := t.native(op, ops.DefaultParams(), span, nodes...)
	t.decide(span, NativeLowered, n, "%s display", op.Name)
	return n
}
