// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/ops"
	"github.com/gomlx/jitfallback/pkg/fallback/bridge"
	"github.com/gomlx/jitfallback/pkg/hostlang"
	"github.com/gomlx/jitfallback/pkg/hostlang/syntax"
	"github.com/gomlx/jitfallback/pkg/support/envconfig"
	"github.com/gomlx/jitfallback/pkg/support/sets"
	"github.com/pkg/errors"
)

// maxUnroll is the maximum number of iterations of a loop unrolled while tracing. Longer loops
// are interpreted as a block.
const maxUnroll = 1000

// flow is how tracing continues after a statement.
type flow int

const (
	flowNext flow = iota
	flowBreak
	flowContinue

	// flowStop ends the function: it returned or raised for every value of the signature.
	flowStop
)

// errRetryAsBlock is panicked when a data-dependent block inside an unrolled loop contains
// "break" or "continue": the whole loop is then interpreted as a block.
var errRetryAsBlock = errors.New("loop control inside a data-dependent block")

// mutatingMethods of lists and dicts.
var mutatingMethods = sets.MakeWith(
	"append", "extend", "insert", "pop", "remove", "clear", "sort", "reverse",
	"update", "setdefault", "popitem")

// tracer builds the graph of one function for one input signature by walking its body.
type tracer struct {
	fn     *Function
	module *Module
	g      *Graph
	opts   options

	// scope maps local names to the node holding their current value.
	scope map[string]*Node

	// lastEffect is the last side-effecting node, the next one is chained after it.
	lastEffect *Node

	returned, raised bool
	loopDepth        int

	// Statement being lowered: id of its first node and whether it is marked best-effort.
	stmtStart  int
	bestEffort bool
}

func newTracer(fn *Function, g *Graph, o options) *tracer {
	return &tracer{fn: fn, module: fn.module, g: g, opts: o, scope: make(map[string]*Node)}
}

// fail aborts the compilation with a CompileError pointing at span.
func (t *tracer) fail(kind CompileErrorKind, span syntax.Span, format string, args ...any) {
	panic(&CompileError{
		Kind:     kind,
		Function: t.fn.name,
		Location: location(t.g.filename, span.Start),
		Msg:      fmt.Sprintf(format, args...),
		Snippet:  syntax.Snippet(t.g.source, span.Start.Line, span.Start.Col),
	})
}

// global looks up a global or builtin name.
func (t *tracer) global(name string) (hostlang.Object, bool) {
	defer hostlang.InterpreterLock.Acquire()()
	return t.module.lookupGlobal(name)
}

// truth evaluates the truth value of a constant.
func (t *tracer) truth(v *bridge.Value) (bool, error) {
	defer hostlang.InterpreterLock.Acquire()()
	return hostlang.Truth(bridge.ToHost(v))
}

type checkpoint struct {
	numNodes, numDecisions int
	scope                  map[string]*Node
	lastEffect             *Node
	raised                 bool
}

func (t *tracer) checkpoint() checkpoint {
	return checkpoint{
		numNodes:     len(t.g.nodes),
		numDecisions: len(t.g.decisions),
		scope:        maps.Clone(t.scope),
		lastEffect:   t.lastEffect,
		raised:       t.raised,
	}
}

// rollback drops everything traced since cp.
func (t *tracer) rollback(cp checkpoint) {
	t.g.truncate(cp.numNodes, cp.numDecisions)
	t.scope = cp.scope
	t.lastEffect = cp.lastEffect
	t.raised = cp.raised
}

// trace creates the parameters, binds them to the function parameters and lowers the body.
func (t *tracer) trace(sig InputSignature) {
	params := t.fn.fn.Params
	defSpan := t.fn.span()
	args := make([]*Node, len(sig))
	for i, spec := range sig {
		if !spec.IsParameter() {
			args[i] = t.constant(spec.Constant, defSpan)
			continue
		}
		n := t.g.newNode(NodeKindParameter, defSpan)
		n.signature = spec.Signature
		n.paramIndex = i
		if spec.Mutable {
			n.mutable = true
			n.signature.Dynamic = true
		}
		if i < len(params.Names) {
			n.label = params.Names[i]
		}
		t.g.parameters = append(t.g.parameters, n)
		args[i] = n
	}

	if len(args) > len(params.Names) && params.VarArg == "" {
		t.fail(LoweringFailed, defSpan, "%s() takes %d positional arguments but %d were given",
			t.fn.name, len(params.Names), len(args))
	}
	firstDefault := len(params.Names) - len(t.fn.fn.Defaults)
	for i, name := range params.Names {
		switch {
		case i < len(args):
			t.scope[name] = args[i]
		case i >= firstDefault:
			t.scope[name] = t.constant(t.defaultValue(i-firstDefault), defSpan)
		default:
			t.fail(LoweringFailed, defSpan, "%s() missing required argument %q", t.fn.name, name)
		}
	}
	if params.VarArg != "" {
		var rest []*Node
		if len(args) > len(params.Names) {
			rest = args[len(params.Names):]
		}
		if len(rest) == 0 {
			t.scope[params.VarArg] = t.constant(bridge.NewSequence(true), defSpan)
		} else {
			t.scope[params.VarArg] = t.native(ops.MakeTuple, ops.DefaultParams(), defSpan, rest...)
		}
	}
	if params.KwArg != "" {
		t.scope[params.KwArg] = t.constant(bridge.Wrap(map[string]any{}), defSpan)
	}

	if f := t.stmts(t.fn.body()); !t.returned && f != flowStop {
		t.g.outputs = []*Node{t.constant(bridge.None(), defSpan)}
	}
}

func (t *tracer) defaultValue(i int) *bridge.Value {
	defer hostlang.InterpreterLock.Acquire()()
	return bridge.FromHost(t.fn.fn.Defaults[i])
}

// stmts lowers a block of statements, stopping at break, continue, return or raise.
func (t *tracer) stmts(stmts []syntax.Stmt) flow {
	for _, s := range stmts {
		if f := t.stmt(s); f != flowNext {
			return f
		}
	}
	return flowNext
}

// stmt lowers one statement. A deferred raise that isn't best-effort ends the block.
func (t *tracer) stmt(s syntax.Stmt) flow {
	savedStart, savedBestEffort := t.stmtStart, t.bestEffort
	defer func() { t.stmtStart, t.bestEffort = savedStart, savedBestEffort }()
	span := s.NodeSpan()
	t.stmtStart = len(t.g.nodes)
	t.bestEffort = savedBestEffort || t.module.annotations.BestEffortIn(span.Start.Line, span.Start.Line)
	t.raised = false

	f := t.dispatch(s)
	if t.raised && f == flowNext {
		f = flowStop
	}
	return f
}

func (t *tracer) dispatch(s syntax.Stmt) flow {
	switch x := s.(type) {
	case *syntax.Assign:
		t.assign(x)
	case *syntax.AugAssign:
		t.augAssign(x)
	case *syntax.ExprStmt:
		t.exprStmt(x)
	case *syntax.Return:
		t.ret(x)
		return flowStop
	case *syntax.If:
		return t.ifStmt(x)
	case *syntax.For:
		return t.forStmt(x)
	case *syntax.While:
		return t.whileStmt(x)
	case *syntax.Break:
		if t.loopDepth == 0 {
			t.fail(LoweringFailed, x.Span, "'break' outside loop")
		}
		return flowBreak
	case *syntax.Continue:
		if t.loopDepth == 0 {
			t.fail(LoweringFailed, x.Span, "'continue' not properly in loop")
		}
		return flowContinue
	case *syntax.Pass:
	case *syntax.Raise:
		t.raise(x)
		return flowStop
	case *syntax.Assert:
		t.assert(x)
	case *syntax.Import:
		t.importStmt(x)
	case *syntax.ImportFrom:
		t.importFrom(x)
	case *syntax.FunctionDef:
		t.block([]syntax.Stmt{x}, x.Span, nil, nil, "nested function definition")
	default:
		t.fail(LoweringFailed, s.NodeSpan(), "unsupported statement %T", s)
	}
	return flowNext
}

func (t *tracer) ret(s *syntax.Return) {
	var outputs []*Node
	switch v := s.Value.(type) {
	case nil:
		outputs = []*Node{t.constant(bridge.None(), s.Span)}
	case *syntax.Tuple:
		if hasStarred(v.Elts) {
			outputs = []*Node{t.expr(v)}
			break
		}
		for _, elt := range v.Elts {
			outputs = append(outputs, t.expr(elt))
		}
	default:
		outputs = []*Node{t.expr(v)}
	}
	if ann, found := t.annotationOf(s); found && len(outputs) == 1 {
		outputs[0] = t.annotate(outputs[0], ann, s.Span)
	}
	t.g.outputs = outputs
	t.returned = true
}

func hasStarred(elts []syntax.Expr) bool {
	for _, elt := range elts {
		if _, ok := elt.(*syntax.Starred); ok {
			return true
		}
	}
	return false
}

func (t *tracer) assign(s *syntax.Assign) {
	if mutated := t.mutatedLocals(s.Value); len(mutated) > 0 {
		t.block([]syntax.Stmt{s}, s.Span, mutated, nil, "assignment calling a method that may modify a local container")
		return
	}
	value := t.expr(s.Value)
	if ann, found := t.annotationOf(s); found {
		value = t.annotate(value, ann, s.Span)
	}
	for _, target := range s.Targets {
		t.bind(target, value, s)
	}
}

// bind assigns value to an assignment target of stmt.
func (t *tracer) bind(target syntax.Expr, value *Node, stmt syntax.Stmt) {
	switch x := target.(type) {
	case *syntax.Name:
		if value.label == "" {
			value.label = x.ID
		}
		t.scope[x.ID] = value
	case *syntax.Tuple:
		t.unpack(x, x.Elts, value, stmt)
	case *syntax.List:
		t.unpack(x, x.Elts, value, stmt)
	case *syntax.Subscript:
		t.storeItem(x, value, stmt)
	case *syntax.Attribute:
		t.storeBlock(x, value, stmt)
	default:
		t.fail(LoweringFailed, target.NodeSpan(), "can't assign to %T", target)
	}
}

// unpack assigns the elements of value to the targets elts. Sequences of known length and tensors
// with a known first dimension are split with native ops.
func (t *tracer) unpack(target syntax.Expr, elts []syntax.Expr, value *Node, stmt syntax.Stmt) {
	if value.deferred != nil {
		for _, name := range targetNames(target) {
			t.scope[name] = value
		}
		return
	}
	if hasStarred(elts) {
		t.storeBlock(target, value, stmt)
		return
	}
	span := target.NodeSpan()
	sig := value.signature
	length, op := -1, ops.TupleGetItem
	switch {
	case sig.Kind == bridge.KindSequence && sig.Length >= 0:
		length = sig.Length
	case sig.Kind == bridge.KindTensor && !value.mutable && sig.Shape.Rank() > 0 && sig.Shape.Dimensions[0] >= 0:
		length, op = sig.Shape.Dimensions[0], ops.TensorGetItem
	}
	if length < 0 {
		t.storeBlock(target, value, stmt)
		return
	}
	if length != len(elts) {
		var err *hostlang.Error
		if length > len(elts) {
			err = hostlang.Errorf(hostlang.ValueError, "too many values to unpack (expected %d)", len(elts))
		} else {
			err = hostlang.Errorf(hostlang.ValueError, "not enough values to unpack (expected %d, got %d)", len(elts), length)
		}
		t.deferredRaise(err, span)
		return
	}
	t.decide(span, NativeLowered, nil, "unpacking %d elements of %s", length, sig)
	for i, elt := range elts {
		t.bind(elt, t.native(op, ops.Params{Index: i}, span, value), stmt)
	}
}

// targetNames returns the names bound by an assignment target.
func targetNames(target syntax.Expr) []string {
	var names []string
	syntax.Inspect(target, func(n syntax.Node) bool {
		switch x := n.(type) {
		case *syntax.Name:
			names = append(names, x.ID)
		case *syntax.Subscript, *syntax.Attribute:
			return false
		}
		return true
	})
	return names
}

// rootName returns the variable at the root of an item or attribute target, "" if none.
func rootName(target syntax.Expr) string {
	for {
		switch x := target.(type) {
		case *syntax.Name:
			return x.ID
		case *syntax.Subscript:
			target = x.Value
		case *syntax.Attribute:
			target = x.Value
		default:
			return ""
		}
	}
}

// storeItem lowers "recv[index] = value". Constant indices of local tensors are TensorSetItem,
// which rebinds the name to the updated tensor.
func (t *tracer) storeItem(x *syntax.Subscript, value *Node, stmt syntax.Stmt) {
	if name, ok := x.Value.(*syntax.Name); ok {
		if recv, found := t.scope[name.ID]; found && recv.signature.Kind == bridge.KindTensor {
			cp := t.checkpoint()
			index := t.expr(x.Index)
			if i, ok := constantInt(index); ok {
				n := t.native(ops.TensorSetItem, ops.Params{Index: i}, x.Span, recv, value)
				n.label = name.ID
				t.scope[name.ID] = n
				t.decide(x.Span, NativeLowered, n, "item assignment to a tensor with a constant index")
				return
			}
			t.rollback(cp)
		}
	}
	t.storeBlock(x, value, stmt)
}

// storeBlock interprets the assignment of value to target as a block, with value bound to a
// synthetic name. The root variable of item and attribute targets is an output of the block.
func (t *tracer) storeBlock(target syntax.Expr, value *Node, stmt syntax.Stmt) {
	span := stmt.NodeSpan()
	valueName := operandName(0)
	assign := &syntax.Assign{Span: span, Targets: []syntax.Expr{target}, Value: &syntax.Name{Span: span, ID: valueName}}
	var outputs []string
	if root := rootName(target); root != "" {
		if _, found := t.scope[root]; found {
			outputs = append(outputs, root)
		}
	}
	reason := "assignment to an item"
	switch target.(type) {
	case *syntax.Attribute:
		reason = "assignment to an attribute"
	case *syntax.Tuple, *syntax.List:
		reason = "unpacking of a value of unknown length"
	}
	t.block([]syntax.Stmt{assign}, span, outputs, []namedNode{{valueName, value}}, reason)
}

func (t *tracer) augAssign(s *syntax.AugAssign) {
	name, isName := s.Target.(*syntax.Name)
	if !isName || len(t.mutatedLocals(s.Value)) > 0 {
		var outputs []string
		if root := rootName(s.Target); root != "" {
			if _, found := t.scope[root]; found {
				outputs = append(outputs, root)
			}
		}
		outputs = append(outputs, t.mutatedLocals(s.Value)...)
		t.block([]syntax.Stmt{s}, s.Span, outputs, nil, "augmented assignment")
		return
	}
	n := t.binary(s, s.Op, t.name(name), t.expr(s.Value))
	if ann, found := t.annotationOf(s); found {
		n = t.annotate(n, ann, s.Span)
	}
	if n.label == "" {
		n.label = name.ID
	}
	t.scope[name.ID] = n
}

func (t *tracer) exprStmt(s *syntax.ExprStmt) {
	if _, isConstant := s.Value.(*syntax.Constant); isConstant {
		return
	}
	if mutated := t.mutatedLocals(s.Value); len(mutated) > 0 {
		t.block([]syntax.Stmt{s}, s.Span, mutated, nil, "method call that may modify a local container")
		return
	}
	n := t.expr(s.Value)
	if n.kind == NodeKindInterpreter && n.deferred == nil && int(n.id) >= t.stmtStart {
		t.addEffect(n)
	}
}

// mutatedLocals returns the local lists and dicts (or values of unknown type) whose mutating
// methods are called in e. Interpreter nodes work on copies, so such calls are lowered as blocks
// that return the modified containers.
func (t *tracer) mutatedLocals(e syntax.Expr) []string {
	var names []string
	syntax.Inspect(e, func(node syntax.Node) bool {
		switch x := node.(type) {
		case *syntax.Lambda:
			return false
		case *syntax.Call:
			attr, ok := x.Func.(*syntax.Attribute)
			if !ok || !mutatingMethods.Has(attr.Attr) {
				return true
			}
			name, ok := attr.Value.(*syntax.Name)
			if !ok {
				return true
			}
			local, found := t.scope[name.ID]
			if !found {
				return true
			}
			sig := local.signature
			container := sig.Kind == bridge.KindAny || sig.Kind == bridge.KindMapping ||
				(sig.Kind == bridge.KindSequence && !sig.Tuple)
			if container && !slices.Contains(names, name.ID) {
				names = append(names, name.ID)
			}
		}
		return true
	})
	return names
}

func (t *tracer) ifStmt(s *syntax.If) flow {
	cp := t.checkpoint()
	test := t.expr(s.Test)
	if test.deferred != nil {
		return flowNext
	}
	if test.kind == NodeKindConstant {
		truth, err := t.truth(test.value)
		if err != nil {
			if hostErr, ok := hostlang.AsError(err); ok {
				t.deferredRaise(hostErr, s.Test.NodeSpan())
				return flowNext
			}
			t.fail(LoweringFailed, s.Test.NodeSpan(), "truth value of %s: %v", test.value, err)
		}
		t.decide(s.Test.NodeSpan(), NativeLowered, nil, "condition is %v for every value of the signature", truth)
		if truth {
			return t.stmts(s.Body)
		}
		return t.stmts(s.Else)
	}
	t.rollback(cp)
	t.dataDependent(s, "if", append(append([]syntax.Stmt{}, s.Body...), s.Else...))
	t.block([]syntax.Stmt{s}, s.Span, nil, nil, "data-dependent if")
	return flowNext
}

// dataDependent checks that a statement whose control flow depends on run-time values can be
// interpreted as a block.
func (t *tracer) dataDependent(s syntax.Stmt, what string, body []syntax.Stmt) {
	if t.opts.syntaxLevel < envconfig.SyntaxLevelLax {
		t.fail(LoweringFailed, s.NodeSpan(), "data-dependent '%s' requires syntax level %s, the level is %s",
			what, envconfig.SyntaxLevelLax, t.opts.syntaxLevel)
	}
	if containsReturn(body) {
		t.fail(LoweringFailed, s.NodeSpan(), "'return' inside a data-dependent '%s' is not supported", what)
	}
	if t.loopDepth > 0 && escapesLoop(body) {
		panic(errRetryAsBlock)
	}
}

// containsReturn reports whether a return statement is reachable in stmts, outside nested
// function definitions.
func containsReturn(stmts []syntax.Stmt) bool {
	for _, s := range stmts {
		switch x := s.(type) {
		case *syntax.Return:
			return true
		case *syntax.If:
			if containsReturn(x.Body) || containsReturn(x.Else) {
				return true
			}
		case *syntax.For:
			if containsReturn(x.Body) {
				return true
			}
		case *syntax.While:
			if containsReturn(x.Body) {
				return true
			}
		}
	}
	return false
}

// escapesLoop reports whether stmts contain a break or continue of an enclosing loop.
func escapesLoop(stmts []syntax.Stmt) bool {
	for _, s := range stmts {
		switch x := s.(type) {
		case *syntax.Break, *syntax.Continue:
			return true
		case *syntax.If:
			if escapesLoop(x.Body) || escapesLoop(x.Else) {
				return true
			}
		}
	}
	return false
}

// unroll runs body, which traces loop iterations. retry is set if the loop must be interpreted
// as a whole instead.
func (t *tracer) unroll(body func() flow) (f flow, retry bool) {
	t.loopDepth++
	defer func() {
		t.loopDepth--
		if r := recover(); r != nil {
			if err, ok := r.(error); ok && err == errRetryAsBlock {
				f, retry = flowNext, true
				return
			}
			panic(r)
		}
	}()
	return body(), false
}

func (t *tracer) forStmt(s *syntax.For) flow {
	cp := t.checkpoint()
	iter := t.expr(s.Iter)
	if iter.deferred != nil {
		return flowNext
	}
	count, elem, ok := t.iteration(iter, s.Iter.NodeSpan())
	if ok {
		f, retry := t.unroll(func() flow {
			for i := range count {
				t.bind(s.Target, elem(i), s)
				switch t.stmts(s.Body) {
				case flowBreak:
					return flowNext
				case flowStop:
					return flowStop
				}
			}
			return flowNext
		})
		if !retry {
			t.decide(s.Iter.NodeSpan(), NativeLowered, nil, "loop unrolled over %d elements", count)
			return f
		}
	}
	t.rollback(cp)
	t.dataDependent(s, "for", s.Body)
	t.block([]syntax.Stmt{s}, s.Span, nil, nil, "loop over values known at run time")
	return flowNext
}

// iteration returns the number of elements of iter and a function creating the node of each
// element, if the loop over iter can be unrolled.
func (t *tracer) iteration(iter *Node, span syntax.Span) (count int, elem func(i int) *Node, ok bool) {
	sig := iter.signature
	switch {
	case iter.kind == NodeKindConstant:
		release := hostlang.InterpreterLock.Acquire()
		items, err := hostlang.Iterate(bridge.ToHost(iter.value))
		release()
		if err != nil || len(items) > maxUnroll {
			// Raising is left to the interpreted loop.
			return 0, nil, false
		}
		return len(items), func(i int) *Node {
			release := hostlang.InterpreterLock.Acquire()
			v := bridge.FromHost(items[i])
			release()
			return t.constant(v, span)
		}, true

	case sig.Kind == bridge.KindSequence && sig.Length >= 0 && sig.Length <= maxUnroll:
		return sig.Length, func(i int) *Node {
			return t.native(ops.TupleGetItem, ops.Params{Index: i}, span, iter)
		}, true

	case sig.Kind == bridge.KindTensor && !iter.mutable && sig.Shape.Rank() > 0 &&
		sig.Shape.Dimensions[0] >= 0 && sig.Shape.Dimensions[0] <= maxUnroll:
		return sig.Shape.Dimensions[0], func(i int) *Node {
			return t.native(ops.TensorGetItem, ops.Params{Index: i}, span, iter)
		}, true
	}
	return 0, nil, false
}

func (t *tracer) whileStmt(s *syntax.While) flow {
	start := t.checkpoint()
	f, retry := t.unroll(func() flow {
		for iteration := 0; ; iteration++ {
			cp := t.checkpoint()
			test := t.expr(s.Test)
			if test.deferred != nil {
				return flowStop
			}
			if test.kind != NodeKindConstant || iteration >= maxUnroll {
				// The rest of the loop runs in the interpreter.
				t.rollback(cp)
				t.dataDependent(s, "while", s.Body)
				t.block([]syntax.Stmt{s}, s.Span, nil, nil, "loop condition known at run time")
				return flowNext
			}
			truth, err := t.truth(test.value)
			if err != nil {
				if hostErr, ok := hostlang.AsError(err); ok {
					t.deferredRaise(hostErr, s.Test.NodeSpan())
					return flowStop
				}
				t.fail(LoweringFailed, s.Test.NodeSpan(), "truth value of %s: %v", test.value, err)
			}
			if !truth {
				t.decide(s.Test.NodeSpan(), NativeLowered, nil, "loop unrolled over %d iterations", iteration)
				return flowNext
			}
			switch t.stmts(s.Body) {
			case flowBreak:
				return flowNext
			case flowStop:
				return flowStop
			}
		}
	})
	if retry {
		t.rollback(start)
		t.dataDependent(s, "while", s.Body)
		t.block([]syntax.Stmt{s}, s.Span, nil, nil, "loop with data-dependent break or continue")
		return flowNext
	}
	return f
}

func (t *tracer) raise(s *syntax.Raise) {
	if s.Exc == nil {
		t.deferredRaise(&hostlang.Error{Kind: hostlang.UserRaised, ExceptionName: "RuntimeError",
			Msg: "No active exception to reraise"}, s.Span)
		return
	}
	exc := t.expr(s.Exc)
	if exc.deferred != nil {
		return
	}
	if exc.kind == NodeKindConstant {
		release := hostlang.InterpreterLock.Acquire()
		err := hostlang.RaiseObject(bridge.ToHost(exc.value))
		release()
		hostErr, _ := hostlang.AsError(err)
		t.deferredRaise(hostErr, s.Span)
		return
	}
	expr := &HostExpression{
		Kind:     HostExprRaise,
		Source:   s.Span.Text(t.g.source),
		Expr:     &syntax.Name{Span: s.Exc.NodeSpan(), ID: operandName(0)},
		Bindings: []string{operandName(0)},
	}
	n := t.interpreted(expr, []*Node{exc}, s.Span, dtypes.InvalidDType)
	t.addEffect(n)
	t.decide(s.Span, Interpreted, n, "raise of an exception built at run time")
}

func (t *tracer) assert(s *syntax.Assert) {
	cp := t.checkpoint()
	test := t.expr(s.Test)
	if test.deferred != nil {
		return
	}
	if test.kind == NodeKindConstant {
		if truth, err := t.truth(test.value); err == nil && truth {
			t.decide(s.Span, NativeLowered, nil, "assertion holds for every value of the signature")
			return
		}
	}
	t.rollback(cp)
	t.block([]syntax.Stmt{s}, s.Span, nil, nil, "assertion checked at run time")
}

func (t *tracer) importStmt(s *syntax.Import) {
	for _, alias := range s.Names {
		name, bound := alias.Name, alias.AsName
		if bound == "" {
			// "import a.b" binds a.
			name, _, _ = strings.Cut(alias.Name, ".")
			bound = name
		}
		m, err := t.module.interp.Import(name)
		if err != nil {
			if hostErr, ok := hostlang.AsError(err); ok {
				t.deferredRaise(hostErr, s.Span)
				return
			}
			t.fail(LoweringFailed, s.Span, "import %s: %v", name, err)
		}
		t.scope[bound] = t.constant(bridge.FromHost(m), s.Span)
	}
	t.decide(s.Span, NativeLowered, nil, "import resolved while compiling")
}

func (t *tracer) importFrom(s *syntax.ImportFrom) {
	m, err := t.module.interp.Import(s.Module)
	if err != nil {
		if hostErr, ok := hostlang.AsError(err); ok {
			t.deferredRaise(hostErr, s.Span)
			return
		}
		t.fail(LoweringFailed, s.Span, "import %s: %v", s.Module, err)
	}
	for _, alias := range s.Names {
		release := hostlang.InterpreterLock.Acquire()
		obj, err := hostlang.GetAttr(m, alias.Name)
		release()
		if err != nil {
			t.deferredRaise(&hostlang.Error{Kind: hostlang.UserRaised, ExceptionName: "ImportError",
				Msg: fmt.Sprintf("cannot import name '%s' from '%s'", alias.Name, s.Module)}, s.Span)
			return
		}
		t.scope[alias.Bound()] = t.constant(bridge.FromHost(obj), s.Span)
	}
	t.decide(s.Span, NativeLowered, nil, "import resolved while compiling")
}

// namedNode binds a node to a synthetic name in a block.
type namedNode struct {
	name string
	node *Node
}

// block lowers statements to one interpreter node. Its inputs are the local variables the
// statements use, its result the tuple of the variables they assign (plus extra outputs), which
// are then rebound to the elements of the tuple. Blocks that can't be folded are side effects.
func (t *tracer) block(stmts []syntax.Stmt, span syntax.Span, extraOutputs []string, synthetic []namedNode, reason string) {
	loaded, stored := syntax.BlockNames(stmts)
	var inputs []*Node
	var bindings []string
	for _, s := range synthetic {
		inputs = append(inputs, s.node)
		bindings = append(bindings, s.name)
	}
	for _, name := range sets.Make[string]().Unique(append(append([]string{}, loaded...), stored...)...) {
		if n, found := t.scope[name]; found {
			inputs = append(inputs, n)
			bindings = append(bindings, name)
		}
	}
	outputs := append([]string{}, stored...)
	outputs = append(outputs, sets.MakeWith(stored...).Unique(extraOutputs...)...)

	expr := &HostExpression{Kind: HostExprBlock, Source: span.Text(t.g.source), Stmts: stmts, Bindings: bindings, Outputs: outputs}
	n := t.interpreted(expr, inputs, span, dtypes.InvalidDType)
	if n.deferred != nil {
		for _, name := range outputs {
			t.scope[name] = n
		}
		return
	}
	if n.kind == NodeKindInterpreter {
		elems := make([]bridge.Signature, len(outputs))
		for i := range elems {
			elems[i] = bridge.Unknown()
		}
		n.signature = bridge.SequenceSignature(true, elems...)
		n.signature.Dynamic = true
		n.probe = nil
		t.addEffect(n)
	}
	t.decideInterpreted(n, reason)
	for i, name := range outputs {
		out := t.native(ops.TupleGetItem, ops.Params{Index: i}, span, n)
		out.label = name
		t.scope[name] = out
	}
}
