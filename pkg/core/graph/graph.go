// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graph compiles hostlang functions into computation graphs that mix native ops with
// nodes evaluated by the host interpreter.
//
// Compile traces a function for one input signature: each construct of its body is either
// lowered to a native op (pkg/core/ops) or captured as an interpreter node holding the host
// expression, evaluated at run time under hostlang.InterpreterLock. Interpreter nodes whose
// inputs are all known while tracing are folded into constants, and constructs proven to raise
// become deferred-raise nodes that fail when executed.
//
// Exec caches one CompiledGraph per input signature:
//
//	module := must.M1(graph.LoadModule("gelu.py", source))
//	gelu := must.M1(graph.NewExec(must.M1(module.Function("gelu"))))
//	outputs, err := gelu.Call([]float32{-1, 0, 1})
package graph

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/jitfallback/pkg/fallback/bridge"
	"github.com/gomlx/jitfallback/pkg/hostlang/syntax"
)

// DecisionState is the lowering state of a source construct.
type DecisionState int

//go:generate go tool enumer -type=DecisionState -output=gen_decisionstate_enumer.go graph.go

const (
	Unresolved DecisionState = iota
	NativeLowered
	Interpreted
	Finalized
)

// Decision records how one construct was lowered.
type Decision struct {
	// Construct is the source text.
	Construct string
	Location  string
	Span      syntax.Span

	// State is Finalized once the graph is finalized, Outcome is NativeLowered or Interpreted.
	State   DecisionState
	Outcome DecisionState
	Reason  string

	// Node implementing the construct, -1 if none (folded branches, unrolled loops).
	Node NodeId
}

func (d Decision) String() string {
	return fmt.Sprintf("%s: %s %q: %s", d.Location, d.Outcome, d.Construct, d.Reason)
}

// Graph is the result of tracing one function for one input signature.
type Graph struct {
	name             string
	filename, source string

	nodes      []*Node
	parameters []*Node
	outputs    []*Node
	decisions  []Decision

	finalized bool
}

func newGraph(name, filename, source string) *Graph {
	return &Graph{name: name, filename: filename, source: source}
}

// Name of the graph: the function name and its input signature.
func (g *Graph) Name() string { return g.name }

// Nodes in creation order, which is a topological order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// NodeById returns the node with the given id, or nil.
func (g *Graph) NodeById(id NodeId) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

// Parameters in input signature order. Positions baked as constants have no parameter.
func (g *Graph) Parameters() []*Node { return g.parameters }

// Outputs of the function: one per element of a returned tuple display, one otherwise.
func (g *Graph) Outputs() []*Node { return g.outputs }

// Decisions taken per construct, in tracing order.
func (g *Graph) Decisions() []Decision { return g.decisions }

// IsFinalized returns whether the graph is frozen.
func (g *Graph) IsFinalized() bool { return g.finalized }

// Finalize freezes the graph. Decisions move to the Finalized state.
func (g *Graph) Finalize() {
	if g.finalized {
		return
	}
	for i := range g.decisions {
		g.decisions[i].State = Finalized
	}
	g.finalized = true
}

// AssertBuilding panics if the graph is already finalized.
func (g *Graph) AssertBuilding() {
	if g.finalized {
		exceptions.Panicf("graph %q is already finalized", g.name)
	}
}

// CountKind returns the number of nodes of the given kind.
func (g *Graph) CountKind(kind NodeKind) int {
	count := 0
	for _, n := range g.nodes {
		if n.kind == kind {
			count++
		}
	}
	return count
}

func (g *Graph) String() string {
	if g == nil {
		return "Graph(nil)"
	}
	var finalized string
	if g.finalized {
		finalized = " (*)"
	}
	parts := []string{fmt.Sprintf("Graph %q%s: %d nodes, %d parameters", g.name, finalized, len(g.nodes), len(g.parameters))}
	for _, n := range g.nodes {
		parts = append(parts, fmt.Sprintf("\t#%d\t%s", n.id, n))
	}
	outputs := make([]string, len(g.outputs))
	for i, out := range g.outputs {
		outputs[i] = fmt.Sprintf("#%d", out.id)
	}
	parts = append(parts, fmt.Sprintf("\toutputs: %s", strings.Join(outputs, ", ")))
	return strings.Join(parts, "\n")
}

// newNode appends a node to the graph. Dependencies must already be in the graph.
func (g *Graph) newNode(kind NodeKind, span syntax.Span, inputs ...*Node) *Node {
	g.AssertBuilding()
	n := &Node{graph: g, id: NodeId(len(g.nodes)), kind: kind, inputs: inputs, span: span, paramIndex: -1}
	for _, in := range inputs {
		if in.mutable {
			n.mutable = true
		}
	}
	g.nodes = append(g.nodes, n)
	return n
}

// truncate drops the nodes and decisions created after a checkpoint.
func (g *Graph) truncate(numNodes, numDecisions int) {
	g.nodes = g.nodes[:numNodes]
	g.decisions = g.decisions[:numDecisions]
}

// consumers lists, for each node, the nodes depending on it by data or control edges.
func (g *Graph) consumers() [][]*Node {
	consumers := make([][]*Node, len(g.nodes))
	for _, n := range g.nodes {
		for _, in := range n.inputs {
			consumers[in.id] = append(consumers[in.id], n)
		}
		for _, in := range n.controlInputs {
			consumers[in.id] = append(consumers[in.id], n)
		}
	}
	return consumers
}

// ReachableFrom returns the nodes depending, directly or not, on the given node by data edges.
func (g *Graph) ReachableFrom(source *Node) []*Node {
	reached := make([]bool, len(g.nodes))
	reached[source.id] = true
	var result []*Node
	for _, n := range g.nodes[source.id+1:] {
		for _, in := range n.inputs {
			if reached[in.id] {
				reached[n.id] = true
				result = append(result, n)
				break
			}
		}
	}
	return result
}

// OutputSignatures of the graph outputs.
func (g *Graph) OutputSignatures() []bridge.Signature {
	sigs := make([]bridge.Signature, len(g.outputs))
	for i, out := range g.outputs {
		sigs[i] = out.signature
	}
	return sigs
}
