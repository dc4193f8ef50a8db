// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package annotations

import "strings"

// scannedLine is one source line split into code and comment.
type scannedLine struct {
	number  int
	hasCode bool

	// comment is the text from "#" to the end of the line, "" if there is none. commentCol is
	// its 1-based column.
	comment    string
	commentCol int
}

// splitLines locates the comment of every line, skipping "#" characters inside string
// literals. Strings may span lines when triple quoted or when a newline is escaped.
func splitLines(source string) []scannedLine {
	var (
		lines []scannedLine
		quote string // delimiter of the string literal being scanned, "" outside strings.
	)
	for i, text := range strings.Split(source, "\n") {
		line := scannedLine{number: i + 1, hasCode: quote != ""}
		text = strings.TrimSuffix(text, "\r")
		for pos := 0; pos < len(text); pos++ {
			c := text[pos]
			if quote != "" {
				switch {
				case c == '\\':
					pos++
				case strings.HasPrefix(text[pos:], quote):
					pos += len(quote) - 1
					quote = ""
				}
				continue
			}
			switch c {
			case '#':
				line.comment = text[pos:]
				line.commentCol = pos + 1
				pos = len(text)
			case '\'', '"':
				line.hasCode = true
				quote = string(c)
				if strings.HasPrefix(text[pos:], strings.Repeat(quote, 3)) {
					quote = strings.Repeat(quote, 3)
					pos += 2
				}
			case ' ', '\t', '\f':
			default:
				line.hasCode = true
			}
		}
		if len(quote) == 1 && !strings.HasSuffix(text, "\\") {
			// Unterminated single-quoted string: the parser reports it, the scan just resyncs.
			quote = ""
		}
		lines = append(lines, line)
	}
	return lines
}
