// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/jitfallback/pkg/core/graph"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	var (
		flags      programFlags
		iterations int
		noProgress bool
	)
	cmd := &cobra.Command{
		Use:   "bench FILE",
		Short: "Compile a function once and time repeated executions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if iterations <= 0 {
				return errors.Errorf("-n must be positive, got %d", iterations)
			}
			p, err := flags.load(cmd, args[0])
			if err != nil {
				return err
			}
			compileStart := time.Now()
			cg, err := p.compile()
			if err != nil {
				return err
			}
			compileTime := time.Since(compileStart)

			var bar *progressbar.ProgressBar
			if !noProgress {
				bar = progressbar.NewOptions(iterations,
					progressbar.OptionSetDescription("executing"),
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("calls"),
					progressbar.OptionSetTheme(progressbar.ThemeASCII),
					progressbar.OptionClearOnFinish())
			}
			var total, fastest time.Duration
			for i := range iterations {
				start := time.Now()
				if _, err := cg.Execute(p.args...); err != nil {
					return errors.WithMessagef(err, "execution #%d", i+1)
				}
				elapsed := time.Since(start)
				total += elapsed
				if i == 0 || elapsed < fastest {
					fastest = elapsed
				}
				if bar != nil {
					_ = bar.Add(1)
				}
			}
			if bar != nil {
				_ = bar.Finish()
			}

			w := cmd.OutOrStdout()
			g := cg.Graph()
			mean := total / time.Duration(iterations)
			fmt.Fprintf(w, "%s(): %s nodes (%s interpreted)\n", p.fn.Name(),
				humanize.Comma(int64(len(g.Nodes()))), humanize.Comma(int64(g.CountKind(graph.NodeKindInterpreter))))
			fmt.Fprintf(w, "workers:  %s\n", describeParallelism(cg.Parallelism()))
			fmt.Fprintf(w, "compile:  %s\n", humanize.SIWithDigits(compileTime.Seconds(), 2, "s"))
			fmt.Fprintf(w, "calls:    %s\n", humanize.Comma(int64(iterations)))
			fmt.Fprintf(w, "mean:     %s\n", humanize.SIWithDigits(mean.Seconds(), 2, "s"))
			fmt.Fprintf(w, "fastest:  %s\n", humanize.SIWithDigits(fastest.Seconds(), 2, "s"))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVarP(&iterations, "iterations", "n", 100, "Number of executions.")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Don't display the progress bar.")
	return cmd
}

func describeParallelism(parallelism int) string {
	switch {
	case parallelism < 0:
		return "unlimited"
	case parallelism == 0:
		return "sequential"
	}
	return strconv.Itoa(parallelism)
}
