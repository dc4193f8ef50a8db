// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package syntax

import (
	"fmt"
	"strings"
)

// Error is a lexing or parsing failure, positioned in the source.
//
// Error() includes a caret snippet of the offending line when the source is known.
type Error struct {
	Filename string
	Pos      Pos
	Msg      string

	// Source is the full text being parsed, used to render the snippet. Optional.
	Source string
}

func (e *Error) Error() string {
	var b strings.Builder
	name := e.Filename
	if name == "" {
		name = "<source>"
	}
	fmt.Fprintf(&b, "%s:%d:%d: SyntaxError: %s", name, e.Pos.Line, e.Pos.Col, e.Msg)
	if e.Source != "" {
		b.WriteString("\n")
		b.WriteString(Snippet(e.Source, e.Pos.Line, e.Pos.Col))
	}
	return b.String()
}

// Snippet renders the given 1-based line of src with up to one line of context before and after,
// and a caret under the 1-based column. Out-of-range coordinates are clamped.
func Snippet(src string, line, col int) string {
	lines := strings.Split(src, "\n")
	line = min(max(line, 1), len(lines))
	col = max(col, 1)

	var b strings.Builder
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lines[line-1])
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", col-1))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}

func errorAt(pos Pos, format string, args ...any) *Error {
	return &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
