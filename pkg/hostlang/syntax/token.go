// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package syntax

import "fmt"

// TokenKind enumerates lexical tokens.
type TokenKind int

const (
	EOF TokenKind = iota
	NEWLINE
	INDENT
	DEDENT
	NAME
	INT
	FLOAT
	STRING
	FSTRING
	OP
	KEYWORD
)

var tokenKindNames = [...]string{"EOF", "NEWLINE", "INDENT", "DEDENT", "NAME", "INT", "FLOAT", "STRING", "FSTRING", "OP", "KEYWORD"}

func (k TokenKind) String() string {
	if int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

var keywords = map[string]bool{
	"def": true, "return": true, "if": true, "elif": true, "else": true, "for": true, "while": true,
	"in": true, "not": true, "and": true, "or": true, "is": true, "None": true, "True": true, "False": true,
	"pass": true, "break": true, "continue": true, "raise": true, "import": true, "from": true, "as": true,
	"lambda": true, "global": true, "del": true, "try": true, "except": true, "class": true, "with": true,
	"assert": true, "yield": true,
}

// Pos is a position in the source: byte offset plus 1-based line and column.
type Pos struct {
	Offset, Line, Col int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// Span is the half-open source range [Start, End) of a token or AST node.
type Span struct {
	Start, End Pos
}

// Token is one lexical token. Value holds the decoded string for STRING and FSTRING tokens and
// the raw text otherwise.
type Token struct {
	Kind  TokenKind
	Value string
	Span  Span
}

func (t Token) String() string {
	switch t.Kind {
	case EOF, NEWLINE, INDENT, DEDENT:
		return t.Kind.String()
	case STRING, FSTRING:
		return fmt.Sprintf("%s(%q)", t.Kind, t.Value)
	}
	return fmt.Sprintf("%s(%s)", t.Kind, t.Value)
}

// Is returns whether the token is the given operator or keyword.
func (t Token) Is(text string) bool {
	return (t.Kind == OP || t.Kind == KEYWORD) && t.Value == text
}
