// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/gomlx/jitfallback/pkg/core/graph"
	"github.com/gomlx/jitfallback/pkg/hostlang"
	"github.com/gomlx/jitfallback/pkg/support/envconfig"
	"github.com/gomlx/jitfallback/pkg/support/fsutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// programFlags are the flags shared by the commands: which function to compile, its arguments
// and the compilation options.
type programFlags struct {
	fn            string
	args          []string
	syntaxLevel   string
	parallelism   int
	debugLowering bool
}

func (f *programFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.fn, "fn", "main", "Name of the function to compile.")
	flags.StringArrayVar(&f.args, "arg", nil,
		"Positional argument, repeatable: a literal (3, 1.5, [1, 2], (2, 3), 'text'), a tensor "+
			"t:<dtype>:<literal>, a .npy file, any of them prefixed by mutable:")
	flags.StringVar(&f.syntaxLevel, "syntax-level", "",
		"strict, compatible or lax. Defaults to $"+envconfig.SyntaxLevelEnv+".")
	flags.IntVar(&f.parallelism, "parallelism", 0,
		"Number of nodes executed concurrently, -1 for unlimited. Defaults to $"+envconfig.ParallelismEnv+".")
	flags.BoolVar(&f.debugLowering, "debug-lowering", false, "Log every lowering decision.")
}

// program is a loaded function and its parsed arguments.
type program struct {
	fn   *graph.Function
	args []any
	opts []graph.Option
}

func (f *programFlags) load(cmd *cobra.Command, file string) (*program, error) {
	path, err := fsutil.ResolveFile(file)
	if err != nil {
		return nil, err
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", file)
	}
	module, err := graph.LoadModule(file, string(source), hostlang.WithStdout(cmd.OutOrStdout()))
	if err != nil {
		return nil, err
	}
	fn, err := module.Function(f.fn)
	if err != nil {
		return nil, err
	}

	p := &program{fn: fn}
	parser := newArgParser()
	for i, text := range f.args {
		arg, err := parser.parse(text)
		if err != nil {
			return nil, errors.WithMessagef(err, "--arg #%d %q", i+1, text)
		}
		p.args = append(p.args, arg)
	}

	if f.syntaxLevel != "" {
		level, err := envconfig.ParseSyntaxLevel(f.syntaxLevel)
		if err != nil {
			return nil, errors.WithMessage(err, "--syntax-level")
		}
		p.opts = append(p.opts, graph.WithSyntaxLevel(level))
	}
	if cmd.Flags().Changed("parallelism") {
		p.opts = append(p.opts, graph.WithParallelism(f.parallelism))
	}
	if f.debugLowering {
		p.opts = append(p.opts, graph.WithDebugLowering(true))
	}
	return p, nil
}

func (p *program) compile() (*graph.CompiledGraph, error) {
	return graph.Compile(p.fn, graph.SignatureOfArgs(p.args...), p.opts...)
}
