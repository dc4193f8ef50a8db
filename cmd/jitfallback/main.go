// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// jitfallback compiles functions of a host source file into graphs, falling back to the
// interpreter where needed, and runs, inspects or benchmarks them.
//
// Examples:
//
//	jitfallback run model.py --fn gelu --arg 't:float32:[-1, 0, 1]'
//	jitfallback graph model.py --fn check --arg mutable:x.npy --arg '(2, 3)'
//	jitfallback bench model.py --fn gelu --arg x.npy -n 1000
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/jitfallback/pkg/core/graph"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	kindStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	snippetStyle = lipgloss.NewStyle().Faint(true).PaddingLeft(2)
	titleStyle   = lipgloss.NewStyle().Bold(true).Padding(1, 0, 0, 0)
)

func main() {
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	lipgloss.SetColorProfile(termenv.NewOutput(os.Stderr).EnvColorProfile())

	root := newRootCmd()
	root.PersistentFlags().AddGoFlagSet(klogFlags)
	err := root.Execute()
	klog.Flush()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "jitfallback",
		Short:         "Compile host functions into graphs with interpreter fallback",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.AddCommand(newRunCmd(), newGraphCmd(), newBenchCmd())
	return root
}

// printError renders compile and runtime errors with their kind and source snippet highlighted.
func printError(w io.Writer, err error) {
	var compileErr *graph.CompileError
	var runtimeErr *graph.RuntimeError
	switch {
	case errors.As(err, &compileErr):
		fmt.Fprintf(w, "%s %s %s: %s\n", errorStyle.Render("error:"), compileErr.Location,
			kindStyle.Render(compileErr.Kind.String()), compileErr.Msg)
		if compileErr.Snippet != "" {
			fmt.Fprintln(w, snippetStyle.Render(compileErr.Snippet))
		}
	case errors.As(err, &runtimeErr):
		fmt.Fprintf(w, "%s %s %s in %s\n", errorStyle.Render("error:"), runtimeErr.Location,
			kindStyle.Render(runtimeErr.Kind.String()), runtimeErr.NodeDesc)
		if cause := errors.Unwrap(runtimeErr); cause != nil {
			fmt.Fprintf(w, "  %s\n", cause)
		}
	default:
		fmt.Fprintf(w, "%s %v\n", errorStyle.Render("error:"), err)
	}
}
