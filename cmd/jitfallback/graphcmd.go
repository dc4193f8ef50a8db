// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/jitfallback/pkg/core/graph"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	var flags programFlags
	var noDecisions bool
	cmd := &cobra.Command{
		Use:   "graph FILE",
		Short: "Print the compiled graph of a function and how each construct was lowered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := flags.load(cmd, args[0])
			if err != nil {
				return err
			}
			cg, err := p.compile()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			g := cg.Graph()
			fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s%s", p.fn.Name(), cg.InputSignature())))
			fmt.Fprintf(w, "%s nodes, %s interpreted, %s parameters\n",
				humanize.Comma(int64(len(g.Nodes()))),
				humanize.Comma(int64(g.CountKind(graph.NodeKindInterpreter))),
				humanize.Comma(int64(len(g.Parameters()))))
			writeNodes(w, g)
			if !noDecisions {
				fmt.Fprintln(w, titleStyle.Render("Lowering decisions"))
				writeDecisions(w, g.Decisions())
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&noDecisions, "no-decisions", false, "Don't print the lowering decisions.")
	return cmd
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("  ")
	return table
}

func writeNodes(w io.Writer, g *graph.Graph) {
	outputs := make(map[graph.NodeId]int)
	for i, out := range g.Outputs() {
		outputs[out.Id()] = i
	}
	table := newTable(w, "ID", "OP", "INPUTS", "SIGNATURE", "FLAGS", "LABEL", "LOCATION")
	for _, n := range g.Nodes() {
		inputs := make([]string, 0, len(n.Inputs())+len(n.ControlInputs()))
		for _, in := range n.Inputs() {
			inputs = append(inputs, "#"+strconv.Itoa(int(in.Id())))
		}
		for _, in := range n.ControlInputs() {
			inputs = append(inputs, "after #"+strconv.Itoa(int(in.Id())))
		}
		table.Append([]string{
			"#" + strconv.Itoa(int(n.Id())),
			n.Describe(),
			strings.Join(inputs, ", "),
			n.Signature().String(),
			nodeFlags(n, outputs),
			truncate(n.Label(), 30),
			n.Location(),
		})
	}
	table.Render()
}

func nodeFlags(n *graph.Node, outputs map[graph.NodeId]int) string {
	var flags []string
	if i, found := outputs[n.Id()]; found {
		flags = append(flags, fmt.Sprintf("out%d", i))
	}
	if n.IsFolded() {
		flags = append(flags, "folded")
	}
	if n.IsMutable() {
		flags = append(flags, "mutable")
	}
	if n.IsSideEffect() {
		flags = append(flags, "effect")
	}
	if n.IsBestEffort() {
		flags = append(flags, "best-effort")
	}
	return strings.Join(flags, ",")
}

func writeDecisions(w io.Writer, decisions []graph.Decision) {
	table := newTable(w, "LOCATION", "OUTCOME", "CONSTRUCT", "REASON")
	for _, d := range decisions {
		table.Append([]string{d.Location, d.Outcome.String(), truncate(d.Construct, 40), d.Reason})
	}
	table.Render()
}

// truncate shortens s to its first line, at most n runes.
func truncate(s string, n int) string {
	s, _, multiline := strings.Cut(s, "\n")
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n-3]) + "..."
	}
	if multiline {
		return s + " ..."
	}
	return s
}
