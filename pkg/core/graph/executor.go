// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"sync"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/internal/workerspool"
	"github.com/gomlx/jitfallback/pkg/core/shapes"
	"github.com/gomlx/jitfallback/pkg/fallback/bridge"
	"github.com/gomlx/jitfallback/pkg/hostlang"
	"github.com/gomlx/jitfallback/pkg/support/xsync"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// CompiledGraph is a finalized graph specialized for one input signature.
//
// Execute can be called concurrently: interpreter nodes serialize on hostlang.InterpreterLock,
// native nodes run in parallel.
type CompiledGraph struct {
	fn     *Function
	inputs InputSignature
	graph  *Graph
	opts   options

	workers *workerspool.Pool

	// dependents of each node, by data and control edges.
	dependents [][]*Node
}

func newCompiledGraph(fn *Function, sig InputSignature, g *Graph, o options) *CompiledGraph {
	return &CompiledGraph{fn: fn, inputs: sig, graph: g, opts: o, workers: workerspool.New(o.parallelism),
		dependents: g.consumers()}
}

// Graph returns the traced graph.
func (cg *CompiledGraph) Graph() *Graph { return cg.graph }

// Function compiled.
func (cg *CompiledGraph) Function() *Function { return cg.fn }

// InputSignature the graph was specialized for.
func (cg *CompiledGraph) InputSignature() InputSignature { return cg.inputs }

// Parallelism returns the maximum number of nodes executed at once: 0 if they run sequentially,
// -1 if there is no limit.
func (cg *CompiledGraph) Parallelism() int {
	if cg.workers.IsUnlimited() {
		return -1
	}
	return cg.workers.MaxParallelism()
}

// OutputSignatures declared by the graph outputs.
func (cg *CompiledGraph) OutputSignatures() []bridge.Signature { return cg.graph.OutputSignatures() }

// ProbedSignature returns the signature observed on the first execution of a node whose
// signature was unknown when compiling.
func (cg *CompiledGraph) ProbedSignature(id NodeId) (bridge.Signature, bool) {
	n := cg.graph.NodeById(id)
	if n == nil || n.probe == nil {
		return bridge.Signature{}, false
	}
	sig := n.probe.probed.Load()
	if sig == nil {
		return bridge.Signature{}, false
	}
	return *sig, true
}

// Execute runs the graph with the given arguments, one per position of the input signature
// (constant positions must be passed the same value). Arguments are wrapped with bridge.Wrap.
//
// Every node is executed, also those not reaching the outputs. Host exceptions are returned as
// *RuntimeError wrapping the *hostlang.Error; argument mismatches as *hostlang.Error.
func (cg *CompiledGraph) Execute(args ...any) ([]*bridge.Value, error) {
	if len(args) != len(cg.inputs) {
		return nil, hostlang.Errorf(hostlang.TypeError, "%s() compiled for %d arguments, %d given",
			cg.fn.name, len(cg.inputs), len(args))
	}
	values := make([]*bridge.Value, len(args))
	for i, arg := range args {
		values[i] = bridge.Wrap(arg)
		if err := cg.inputs[i].check(i, values[i]); err != nil {
			return nil, err
		}
	}
	results := make([]*bridge.Value, len(cg.graph.nodes))
	for _, n := range cg.graph.nodes {
		switch n.kind {
		case NodeKindParameter:
			results[n.id] = values[n.paramIndex]
		case NodeKindConstant:
			results[n.id] = n.value
		}
	}

	var err error
	if cg.workers.IsEnabled() {
		err = cg.executeParallel(results)
	} else {
		err = cg.executeSequentially(results)
	}
	if err != nil {
		return nil, err
	}
	outputs := make([]*bridge.Value, len(cg.graph.outputs))
	for i, out := range cg.graph.outputs {
		outputs[i] = results[out.id]
	}
	for i, out := range cg.graph.outputs {
		if unbound := unboundError(outputs[i : i+1]); unbound != nil {
			return nil, newRuntimeError(out, unbound)
		}
	}
	return outputs, nil
}

// executeSequentially runs the nodes in id order, which is a topological order.
func (cg *CompiledGraph) executeSequentially(results []*bridge.Value) error {
	for _, n := range cg.graph.nodes {
		if err := cg.executeNode(n, results); err != nil {
			return err
		}
	}
	return nil
}

// executeParallel runs each node as soon as its data and control dependencies are done. The
// first error stops scheduling, nodes already running are waited for.
func (cg *CompiledGraph) executeParallel(results []*bridge.Value) error {
	nodes := cg.graph.nodes
	var (
		execMu    sync.Mutex
		firstErr  error // protected by execMu
		completed int   // protected by execMu
	)
	remainingDeps := make([]int, len(nodes)) // protected by execMu
	readyToExecute := make(chan *Node, len(nodes))
	stopExecutionFn := sync.OnceFunc(func() { close(readyToExecute) })
	for _, n := range nodes {
		remainingDeps[n.id] = len(n.inputs) + len(n.controlInputs)
		if remainingDeps[n.id] == 0 {
			readyToExecute <- n
		}
	}
	if len(nodes) == 0 {
		stopExecutionFn()
	}

	running := xsync.NewDynamicWaitGroup()
	for n := range readyToExecute {
		execMu.Lock()
		stopped := firstErr != nil
		execMu.Unlock()
		if stopped {
			// Drain nodes queued before the failure without running them.
			continue
		}
		running.Add(1)
		if klog.V(3).Enabled() {
			klog.Infof("scheduling %s: %d nodes in flight, %d running", n.Describe(), running.Count(), cg.workers.Running())
		}
		cg.workers.WaitToStart(func() {
			defer running.Done()
			execMu.Lock()
			stopped := firstErr != nil
			execMu.Unlock()
			if stopped {
				return
			}
			err := cg.executeNode(n, results)

			execMu.Lock()
			defer execMu.Unlock()
			if firstErr != nil {
				return
			}
			if err != nil {
				firstErr = err
				stopExecutionFn()
				return
			}
			completed++
			if completed == len(nodes) {
				stopExecutionFn()
				return
			}
			for _, dep := range cg.dependents[n.id] {
				remainingDeps[dep.id]--
				if remainingDeps[dep.id] == 0 {
					readyToExecute <- dep
				}
			}
		})
	}
	running.Wait()
	return firstErr
}

// executeNode computes the value of n from the values of its inputs.
func (cg *CompiledGraph) executeNode(n *Node, results []*bridge.Value) error {
	if n.kind == NodeKindParameter || n.kind == NodeKindConstant {
		return nil
	}
	inputs := make([]*bridge.Value, len(n.inputs))
	for i, in := range n.inputs {
		inputs[i] = results[in.id]
	}
	var value *bridge.Value
	var err error
	switch {
	case n.deferred != nil:
		err = n.deferred
	case n.kind == NodeKindNative:
		if unbound := unboundError(inputs); unbound != nil {
			err = unbound
			break
		}
		value, err = n.op.Exec(inputs, n.params)
	case cg.workers.IsEnabled():
		// Interpreter nodes mostly wait for the interpreter lock: their slot goes to native nodes.
		resume := cg.workers.Yield()
		value, err = n.interp.Execute(inputs)
		resume()
	default:
		value, err = n.interp.Execute(inputs)
	}
	if err == nil && n.checkedDType != dtypes.InvalidDType {
		err = checkDType(value, n.checkedDType)
	}
	if err != nil {
		if n.bestEffort {
			klog.Warningf("%s: best-effort %s failed, using None: %v", n.Location(), n.Describe(), err)
			results[n.id] = bridge.None()
			return nil
		}
		return newRuntimeError(n, err)
	}
	if n.probe != nil {
		n.probe.observe(n, value)
	}
	results[n.id] = value
	return nil
}

// checkDType verifies the value of an annotated node.
func checkDType(v *bridge.Value, dtype dtypes.DType) error {
	if v.Kind() != bridge.KindTensor {
		return &bridge.UnwrapError{Expected: bridge.KindTensor, Got: v.Kind(), TypeName: v.TypeName(),
			Reason: "annotated as a " + shapes.DTypeName(dtype) + " tensor"}
	}
	if got := v.Tensor().DType(); got != dtype {
		return &bridge.UnwrapError{Expected: bridge.KindTensor, Got: v.Kind(), TypeName: v.TypeName(),
			Reason: "annotated as " + shapes.DTypeName(dtype) + ", got " + shapes.DTypeName(got)}
	}
	return nil
}

func newRuntimeError(n *Node, err error) *RuntimeError {
	rtErr := &RuntimeError{Node: n.id, NodeDesc: n.Describe(), Location: n.Location(), cause: err}
	var unwrapErr *bridge.UnwrapError
	if errors.As(err, &unwrapErr) {
		rtErr.Kind = BridgeUnwrapFailure
		return rtErr
	}
	rtErr.Kind = HostEvaluationError
	if hostErr, ok := hostlang.AsError(err); ok {
		rtErr.Host = hostErr
	}
	return rtErr
}

// observe records the first signature of the node's values, and warns when later values change
// kind or dtype.
func (p *dtypeProbe) observe(n *Node, v *bridge.Value) {
	sig := bridge.SignatureOf(v)
	p.once.Do(func() {
		p.probed.Store(&sig)
		klog.V(1).Infof("%s: probed %s -> %s", n.Location(), n.Describe(), sig)
	})
	if first := p.probed.Load(); first != nil && (first.Kind != sig.Kind || first.DType() != sig.DType()) {
		klog.Warningf("%s: %s returned %s, but %s when first executed", n.Location(), n.Describe(), sig, *first)
	}
}
