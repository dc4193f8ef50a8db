// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/jitfallback/pkg/core/graph"
	"github.com/gomlx/jitfallback/pkg/fallback/bridge"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func newRunCmd() *cobra.Command {
	var (
		flags     programFlags
		interpret bool
	)
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Compile a function for the given arguments and print its outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := flags.load(cmd, args[0])
			if err != nil {
				return err
			}
			if interpret {
				value, err := p.fn.Interpret(p.args...)
				if err != nil {
					return err
				}
				printOutputs(cmd, []*bridge.Value{value})
				return nil
			}

			start := time.Now()
			exec, err := graph.NewExec(p.fn, p.opts...)
			if err != nil {
				return err
			}
			cg, err := exec.Specialization(p.args...)
			if err != nil {
				return err
			}
			klog.V(1).Infof("compiled %s() in %s: %s nodes", p.fn.Name(), time.Since(start),
				humanize.Comma(int64(len(cg.Graph().Nodes()))))
			outputs, err := cg.Execute(p.args...)
			if err != nil {
				return err
			}
			printOutputs(cmd, outputs)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&interpret, "interpret", false, "Run the function in the interpreter, without compiling it.")
	return cmd
}

func printOutputs(cmd *cobra.Command, outputs []*bridge.Value) {
	w := cmd.OutOrStdout()
	if len(outputs) == 1 {
		fmt.Fprintln(w, outputs[0])
		return
	}
	for i, out := range outputs {
		fmt.Fprintf(w, "#%d: %s\n", i, out)
	}
}
