// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/ops"
	"github.com/gomlx/jitfallback/pkg/fallback/annotations"
	"github.com/gomlx/jitfallback/pkg/fallback/bridge"
	"github.com/gomlx/jitfallback/pkg/hostlang"
	"github.com/gomlx/jitfallback/pkg/hostlang/syntax"
)

// NodeId is the index of a node in its Graph. Inputs always have smaller ids than their
// consumers, so ids are a topological order.
type NodeId int

// NodeKind tags what a node executes.
type NodeKind int

//go:generate go tool enumer -type=NodeKind -trimprefix=NodeKind -output=gen_nodekind_enumer.go node.go

const (
	NodeKindParameter NodeKind = iota
	NodeKindConstant
	NodeKindNative
	NodeKindInterpreter
)

// MaxSizeToPrint is the number of characters of a constant value printed by Node.String.
const MaxSizeToPrint = 40

// Node is one operation of a Graph.
//
// Folded nodes (native or interpreted constructs evaluated at compile time) are constants that
// keep their op or host expression and their inputs, for inspection.
type Node struct {
	graph *Graph
	id    NodeId
	kind  NodeKind

	inputs []*Node

	// controlInputs order side effects: the node only runs after them.
	controlInputs []*Node

	signature bridge.Signature

	// value of constants, including folded nodes.
	value  *bridge.Value
	folded bool

	// paramIndex is the position of a parameter in the input signature.
	paramIndex int

	op     *ops.Op
	params ops.Params

	interp *InterpreterNode

	// deferred is the exception raised when the node executes. The node was proven to raise
	// while the graph was built.
	deferred *hostlang.Error

	// mutable is set for nodes depending on a value declared mutable.
	mutable bool

	// bestEffort nodes yield None instead of failing.
	bestEffort bool
	sideEffect bool

	// checkedDType is verified on the run-time value when it is not InvalidDType: the node's
	// signature comes from a type annotation.
	checkedDType dtypes.DType
	annotation   *annotations.TypeAnnotation

	span  syntax.Span
	label string

	probe *dtypeProbe
}

// Graph holding the node.
func (n *Node) Graph() *Graph { return n.graph }

// Id of the node within its graph.
func (n *Node) Id() NodeId { return n.id }

// Kind of the node.
func (n *Node) Kind() NodeKind { return n.kind }

// Inputs are the data dependencies, in the order the node consumes them.
func (n *Node) Inputs() []*Node { return n.inputs }

// ControlInputs are the nodes that must run before this one, without passing it values.
func (n *Node) ControlInputs() []*Node { return n.controlInputs }

// Signature declared for the node's output.
func (n *Node) Signature() bridge.Signature { return n.signature }

// Value of a constant node, nil for other kinds.
func (n *Node) Value() *bridge.Value { return n.value }

// IsFolded returns whether the node was evaluated at compile time.
func (n *Node) IsFolded() bool { return n.folded }

// IsMutable returns whether the node depends on a value declared mutable.
func (n *Node) IsMutable() bool { return n.mutable }

// IsBestEffort returns whether a failure of the node is replaced by None.
func (n *Node) IsBestEffort() bool { return n.bestEffort }

// IsSideEffect returns whether the node is ordered with control edges and always executed.
func (n *Node) IsSideEffect() bool { return n.sideEffect }

// Op of native nodes (and folded native nodes), nil otherwise.
func (n *Node) Op() *ops.Op { return n.op }

// Interpreter holds the host expression of interpreter nodes, nil otherwise.
func (n *Node) Interpreter() *InterpreterNode { return n.interp }

// DeferredError is the exception a deferred-raise node raises when executed.
func (n *Node) DeferredError() *hostlang.Error { return n.deferred }

// IsDeferredRaise returns whether the node was proven to raise while building the graph.
func (n *Node) IsDeferredRaise() bool { return n.deferred != nil }

// Annotation attached to the node by a type pragma, or nil.
func (n *Node) Annotation() *annotations.TypeAnnotation { return n.annotation }

// Label is the variable name or source text the node was created for, if any.
func (n *Node) Label() string { return n.label }

// Span of the source construct that created the node.
func (n *Node) Span() syntax.Span { return n.span }

// Location of the source construct as "file:line:col", or "" for nodes without one.
func (n *Node) Location() string {
	if n.span.Start.Line == 0 {
		return ""
	}
	return location(n.graph.filename, n.span.Start)
}

// Describe returns a short description of the operation, without inputs.
func (n *Node) Describe() string {
	switch {
	case n.deferred != nil:
		return "Raise[" + n.deferred.Name() + "]"
	case n.kind == NodeKindParameter:
		return fmt.Sprintf("Parameter#%d", n.paramIndex)
	case n.op != nil:
		return n.op.Name
	case n.interp != nil:
		return fmt.Sprintf("Interpret[%s]", n.interp.Expr.Kind)
	}
	return n.kind.String()
}

// String renders the node as in Graph.String.
func (n *Node) String() string {
	if n == nil {
		return "Node(nil)"
	}
	var b strings.Builder
	b.WriteString(n.Describe())
	if len(n.inputs) > 0 {
		ids := make([]string, len(n.inputs))
		for i, in := range n.inputs {
			ids[i] = fmt.Sprintf("#%d", in.id)
		}
		fmt.Fprintf(&b, "(%s)", strings.Join(ids, ", "))
	}
	if len(n.controlInputs) > 0 {
		ids := make([]string, len(n.controlInputs))
		for i, in := range n.controlInputs {
			ids[i] = fmt.Sprintf("#%d", in.id)
		}
		fmt.Fprintf(&b, " after(%s)", strings.Join(ids, ", "))
	}
	fmt.Fprintf(&b, " -> %s", n.signature)
	if n.kind == NodeKindConstant {
		repr := n.value.String()
		if len(repr) > MaxSizeToPrint {
			repr = repr[:MaxSizeToPrint] + "..."
		}
		b.WriteString(" = ")
		b.WriteString(repr)
		if n.folded {
			b.WriteString(" (folded)")
		}
	}
	var flags []string
	if n.mutable {
		flags = append(flags, "mutable")
	}
	if n.bestEffort {
		flags = append(flags, "best-effort")
	}
	if n.sideEffect {
		flags = append(flags, "effect")
	}
	if len(flags) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(flags, ","))
	}
	if n.label != "" {
		fmt.Fprintf(&b, "  # %s", n.label)
	}
	return b.String()
}

// dtypeProbe records the signature of the first run-time value of a node whose dtype couldn't
// be inferred.
type dtypeProbe struct {
	once   sync.Once
	probed atomic.Pointer[bridge.Signature]
}
