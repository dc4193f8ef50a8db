// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/ops"
	"github.com/gomlx/jitfallback/pkg/core/shapes"
	"github.com/gomlx/jitfallback/pkg/fallback/annotations"
	"github.com/gomlx/jitfallback/pkg/fallback/bridge"
	"github.com/gomlx/jitfallback/pkg/hostlang"
	"github.com/gomlx/jitfallback/pkg/hostlang/syntax"
	"github.com/gomlx/jitfallback/pkg/support/envconfig"
	"github.com/gomlx/jitfallback/pkg/support/sets"
	"k8s.io/klog/v2"
)

// constant creates a constant node holding v.
func (t *tracer) constant(v *bridge.Value, span syntax.Span) *Node {
	n := t.g.newNode(NodeKindConstant, span)
	n.value = v
	n.signature = bridge.SignatureOf(v)
	return n
}

// native creates a node executing op. Ops whose inputs are all constants are executed right away
// and the node becomes a folded constant, except Identity, which marks values as mutable.
//
// Signature errors that are host exceptions (the op would raise for any value with these
// signatures) turn the node into a deferred raise.
func (t *tracer) native(op *ops.Op, p ops.Params, span syntax.Span, inputs ...*Node) *Node {
	sigs := make([]bridge.Signature, len(inputs))
	for i, in := range inputs {
		sigs[i] = in.signature
	}
	n := t.g.newNode(NodeKindNative, span, inputs...)
	n.op, n.params = op, p
	for _, in := range inputs {
		if in.kind != NodeKindConstant {
			continue
		}
		if unbound := unboundError([]*bridge.Value{in.value}); unbound != nil {
			return t.toDeferred(n, unbound)
		}
	}
	sig, err := op.Infer(sigs, p)
	if err != nil {
		if hostErr, ok := hostlang.AsError(err); ok {
			return t.toDeferred(n, hostErr)
		}
		t.fail(LoweringFailed, span, "%s: %v", op.Name, err)
	}
	n.signature = sig
	if n.mutable {
		n.signature.Dynamic = true
	}
	if op == ops.Identity || n.mutable || !allConstant(inputs) {
		return n
	}
	values := make([]*bridge.Value, len(inputs))
	for i, in := range inputs {
		values[i] = in.value
	}
	v, err := op.Exec(values, p)
	if err != nil {
		hostErr, ok := hostlang.AsError(err)
		if !ok {
			hostErr = hostlang.Errorf(hostlang.TypeError, "%s", err)
		}
		return t.toDeferred(n, hostErr)
	}
	n.kind = NodeKindConstant
	n.value = v
	n.folded = true
	n.signature = bridge.SignatureOf(v)
	return n
}

func allConstant(nodes []*Node) bool {
	for _, n := range nodes {
		if n.kind != NodeKindConstant {
			return false
		}
	}
	return true
}

// deferredRaise creates a node that raises err when executed.
func (t *tracer) deferredRaise(err *hostlang.Error, span syntax.Span) *Node {
	return t.toDeferred(t.g.newNode(NodeKindInterpreter, span), err)
}

// toDeferred turns n into a deferred raise. The raise is ordered after the side effects traced
// before it and, unless best-effort, ends the tracing of the current block.
func (t *tracer) toDeferred(n *Node, err *hostlang.Error) *Node {
	n.kind = NodeKindInterpreter
	n.deferred = err
	n.signature = bridge.Unknown()
	n.probe = nil
	n.bestEffort = t.bestEffort
	t.addEffect(n)
	if !n.bestEffort {
		t.raised = true
	}
	t.decide(n.span, Interpreted, n, "raises %s for every value of this signature, deferred to execution", err.Name())
	return n
}

// addEffect chains n after the previous side effect.
func (t *tracer) addEffect(n *Node) {
	if n.sideEffect {
		return
	}
	if t.lastEffect != nil {
		n.controlInputs = append(n.controlInputs, t.lastEffect)
	}
	n.sideEffect = true
	t.lastEffect = n
}

// interpreted creates an interpreter node for expr and unifies its signature: the node is folded
// when it can be evaluated now, otherwise its signature comes from the hint (a dtype fixed by the
// construct) or from a probe of its first run-time value.
func (t *tracer) interpreted(expr *HostExpression, inputs []*Node, span syntax.Span, hint dtypes.DType) *Node {
	n := t.g.newNode(NodeKindInterpreter, span, inputs...)
	n.interp = NewInterpreterNode(expr, nil, t.module.interp, t.module.globals)
	n.label = expr.Source
	n.bestEffort = t.bestEffort
	if expr.Kind != HostExprRaise && t.foldable(n) {
		t.fold(n)
		return n
	}
	switch {
	case hint != dtypes.InvalidDType:
		n.signature = bridge.TensorSignature(shapes.UnknownRank(hint))
		n.signature.Dynamic = true
	default:
		n.signature = bridge.Unknown()
		n.probe = &dtypeProbe{}
	}
	if t.opts.syntaxLevel == envconfig.SyntaxLevelStrict {
		t.fail(LoweringFailed, span, "%q needs the interpreter, which syntax level %s doesn't allow",
			expr.Source, t.opts.syntaxLevel)
	}
	return n
}

// fold evaluates the interpreter node n now. Host exceptions turn it into a deferred raise.
func (t *tracer) fold(n *Node) {
	values := make([]*bridge.Value, len(n.inputs))
	for i, in := range n.inputs {
		values[i] = in.value
	}
	v, err := n.interp.Execute(values)
	if err != nil {
		hostErr, ok := hostlang.AsError(err)
		if !ok {
			t.fail(LoweringFailed, n.span, "evaluating %q while compiling: %v", n.interp.Expr.Source, err)
		}
		t.toDeferred(n, hostErr)
		return
	}
	n.kind = NodeKindConstant
	n.value = v
	n.folded = true
	n.signature = bridge.SignatureOf(v)
}

// foldable returns whether evaluating n now gives the value it would have at run time: its inputs
// are immutable constants without user objects, and neither the code nor the functions it may
// call have side effects.
func (t *tracer) foldable(n *Node) bool {
	if n.mutable || !allConstant(n.inputs) {
		return false
	}
	defer hostlang.InterpreterLock.Acquire()()
	visited := sets.Make[*hostlang.Function]()
	for _, in := range n.inputs {
		if !pureValue(in.value, visited) {
			return false
		}
	}
	expr := n.interp.Expr
	var loaded []string
	var roots []syntax.Node
	switch expr.Kind {
	case HostExprConstruct, HostExprClosure:
		loaded, roots = syntax.FreeVars(expr.Expr), []syntax.Node{expr.Expr}
	case HostExprBlock:
		loaded, _ = syntax.BlockNames(expr.Stmts)
		for _, s := range expr.Stmts {
			roots = append(roots, s)
		}
	}
	bound := sets.MakeWith(expr.Bindings...)
	for _, name := range loaded {
		if bound.Has(name) {
			continue
		}
		obj, found := t.module.lookupGlobal(name)
		if !found {
			continue
		}
		if expr.Kind == HostExprBlock && isContainer(obj) {
			// Statements may modify global containers.
			return false
		}
		if !pureObject(obj, visited) {
			return false
		}
	}
	for _, root := range roots {
		if !pureAttributes(root, t.module.globals, bound, visited) {
			return false
		}
	}
	return true
}

func isContainer(obj hostlang.Object) bool {
	switch obj.(type) {
	case *hostlang.List, *hostlang.Dict:
		return true
	}
	return false
}

// pureValue reports whether a constant holds only values that can be used at compile time.
func pureValue(v *bridge.Value, visited sets.Set[*hostlang.Function]) bool {
	switch v.Kind() {
	case bridge.KindOpaque:
		obj, ok := v.Opaque().(hostlang.Object)
		return ok && hostlang.IsBuiltinObject(obj) && pureObject(obj, visited)
	case bridge.KindSequence:
		for _, e := range v.Elements() {
			if !pureValue(e, visited) {
				return false
			}
		}
	case bridge.KindMapping:
		pure := true
		_ = v.Mapping().Each(func(key, value *bridge.Value) error {
			pure = pure && pureValue(key, visited) && pureValue(value, visited)
			return nil
		})
		return pure
	}
	return true
}

// pureObject reports whether calling obj can't have side effects: impure builtins are not, and
// user functions are pure if every global they reference is. The caller holds the interpreter
// lock.
func pureObject(obj hostlang.Object, visited sets.Set[*hostlang.Function]) bool {
	switch x := obj.(type) {
	case *hostlang.Builtin:
		return !x.Impure
	case *hostlang.Function:
		if visited.Has(x) {
			return true
		}
		visited.Insert(x)
		var loaded []string
		var root syntax.Node
		if x.Def != nil {
			loaded, _ = syntax.BlockNames(x.Def.Body)
			root = x.Def
		} else {
			loaded, root = syntax.FreeVars(x.Lambda), x.Lambda
		}
		for _, name := range loaded {
			global, found := x.Globals.Lookup(name)
			if !found {
				continue
			}
			if isContainer(global) || !pureObject(global, visited) {
				// The function may modify or read global containers that change between calls.
				return false
			}
		}
		return pureAttributes(root, x.Globals, nil, visited)
	case *hostlang.List:
		for _, e := range x.Elems {
			if !pureObject(e, visited) {
				return false
			}
		}
	case *hostlang.Tuple:
		for _, e := range x.Elems {
			if !pureObject(e, visited) {
				return false
			}
		}
	}
	return hostlang.IsBuiltinObject(obj)
}

// pureAttributes checks the module attributes referenced as "name.attr" in root, e.g. np.save.
func pureAttributes(root syntax.Node, globals *hostlang.Env, bound sets.Set[string], visited sets.Set[*hostlang.Function]) bool {
	pure := true
	syntax.Inspect(root, func(node syntax.Node) bool {
		attr, ok := node.(*syntax.Attribute)
		if !ok || !pure {
			return pure
		}
		name, ok := attr.Value.(*syntax.Name)
		if !ok || bound.Has(name.ID) {
			return true
		}
		obj, found := globals.Lookup(name.ID)
		if !found {
			return true
		}
		if m, isModule := obj.(*hostlang.Module); isModule {
			if member, found := m.Attr(attr.Attr); found && !pureObject(member, visited) {
				pure = false
			}
		}
		return pure
	})
	return pure
}

// annotationOf returns the type annotation covering the lines of a simple statement.
func (t *tracer) annotationOf(s syntax.Stmt) (*annotations.TypeAnnotation, bool) {
	span := s.NodeSpan()
	return t.module.annotations.TypeIn(span.Start.Line, span.End.Line)
}

// annotate applies a type annotation to the value n of an annotated statement. Annotations are
// final: interpreter nodes of the statement take the annotated tensor dtype (checked when they
// run), other nodes must agree with it.
func (t *tracer) annotate(n *Node, ann *annotations.TypeAnnotation, span syntax.Span) *Node {
	dtype := t.resolveAnnotation(ann, span)
	sig := n.signature
	createdHere := int(n.id) >= t.stmtStart
	switch {
	case n.deferred != nil:
		return n

	case n.kind == NodeKindConstant:
		if sig.Kind != bridge.KindTensor || sig.DType() != dtype {
			t.fail(AnnotationConflict, span, "annotated as %s, but the value is known while compiling: %s of type %s",
				ann, sig, n.value.TypeName())
		}
		n.annotation = ann

	case n.kind == NodeKindInterpreter && createdHere:
		n.annotation = ann
		n.interp.Annotation = ann
		n.signature = bridge.TensorSignature(shapes.UnknownRank(dtype))
		n.signature.Dynamic = true
		n.checkedDType = dtype
		n.probe = nil
		t.decide(span, Interpreted, n, "annotated as %s", ann)

	default:
		if sig.Kind != bridge.KindAny && sig.Kind != bridge.KindTensor {
			t.fail(TypeMismatch, span, "annotated as %s, but the value is a %s", ann, sig)
		}
		if current := sig.DType(); current != dtypes.InvalidDType && current != dtype {
			t.fail(TypeMismatch, span, "annotated as %s, but the value has dtype %s", ann, shapes.DTypeName(current))
		}
		if !createdHere {
			return n
		}
		n.annotation = ann
		n.checkedDType = dtype
		if sig.Kind == bridge.KindAny {
			n.signature = bridge.TensorSignature(shapes.UnknownRank(dtype))
			n.signature.Dynamic = true
		} else if sig.DType() == dtypes.InvalidDType {
			n.signature.Shape = sig.Shape.WithDType(dtype)
		}
	}
	return n
}

// resolveAnnotation returns the dtype of an annotation; names bound by "# type: is <name>" must
// be dtypes known while compiling.
func (t *tracer) resolveAnnotation(ann *annotations.TypeAnnotation, span syntax.Span) dtypes.DType {
	dtype, err := ann.Resolve(func(name string) (dtypes.DType, error) {
		var obj hostlang.Object
		if n, found := t.scope[name]; found {
			if n.kind != NodeKindConstant {
				return dtypes.InvalidDType, fmt.Errorf("%q is only known at run time", name)
			}
			obj = bridge.ToHost(n.value)
		} else if global, found := t.global(name); found {
			obj = global
		} else {
			return dtypes.InvalidDType, fmt.Errorf("name %q is not defined", name)
		}
		return hostlang.DTypeOf(obj)
	})
	if err != nil {
		t.fail(LoweringFailed, span, "type annotation %s: %v", ann, err)
	}
	return dtype
}

// decide records how the construct at span was lowered.
func (t *tracer) decide(span syntax.Span, outcome DecisionState, n *Node, format string, args ...any) {
	d := Decision{
		Construct: span.Text(t.g.source),
		Location:  location(t.g.filename, span.Start),
		Span:      span,
		State:     outcome,
		Outcome:   outcome,
		Reason:    fmt.Sprintf(format, args...),
		Node:      -1,
	}
	if n != nil {
		d.Node = n.id
	}
	t.g.decisions = append(t.g.decisions, d)
	if t.opts.debugLowering {
		klog.Infof("lowering %s", d)
	} else {
		klog.V(2).Infof("lowering %s", d)
	}
}

// decideInterpreted records the decision for an interpreter node created for a construct.
func (t *tracer) decideInterpreted(n *Node, reason string) {
	switch {
	case n.deferred != nil:
		// Already recorded by toDeferred.
	case n.folded:
		t.decide(n.span, Interpreted, n, "%s, evaluated while compiling", reason)
	default:
		t.decide(n.span, Interpreted, n, "%s", reason)
	}
}
