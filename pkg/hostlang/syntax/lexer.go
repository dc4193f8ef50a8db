// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package syntax

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// operators sorted so that longer operators are tried first.
var operators = []string{
	"**=", "//=", ">>=", "<<=", "...",
	"**", "//", "==", "!=", "<=", ">=", "->", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=", ":=", "<<", ">>",
	"+", "-", "*", "/", "%", "<", ">", "=", "(", ")", "[", "]", "{", "}", ",", ":", ".", ";", "@", "~", "&", "|", "^",
}

type lexer struct {
	src      string
	offset   int
	line     int
	col      int
	depth    int // bracket nesting, newlines are ignored when > 0.
	indents  []int
	tokens   []Token
	newLine  bool
	brackets []Pos
}

// Tokenize splits src into tokens, emitting NEWLINE, INDENT and DEDENT tokens the way an
// indentation sensitive grammar needs them. Newlines inside brackets and after a backslash are
// joined. The returned slice always ends with EOF.
func Tokenize(src string) ([]Token, error) {
	lx := &lexer{src: src, line: 1, col: 1, indents: []int{0}, newLine: true}
	if err := lx.run(); err != nil {
		err.Source = src
		return nil, err
	}
	return lx.tokens, nil
}

func (lx *lexer) pos() Pos { return Pos{Offset: lx.offset, Line: lx.line, Col: lx.col} }

func (lx *lexer) peekByte(ahead int) byte {
	if lx.offset+ahead < len(lx.src) {
		return lx.src[lx.offset+ahead]
	}
	return 0
}

func (lx *lexer) advance(n int) {
	for range n {
		if lx.offset >= len(lx.src) {
			return
		}
		if lx.src[lx.offset] == '\n' {
			lx.line++
			lx.col = 1
		} else {
			lx.col++
		}
		lx.offset++
	}
}

func (lx *lexer) emit(kind TokenKind, value string, start Pos) {
	lx.tokens = append(lx.tokens, Token{Kind: kind, Value: value, Span: Span{Start: start, End: lx.pos()}})
}

func (lx *lexer) lastKind() TokenKind {
	if len(lx.tokens) == 0 {
		return NEWLINE
	}
	return lx.tokens[len(lx.tokens)-1].Kind
}

func (lx *lexer) run() *Error {
	for {
		if lx.newLine && lx.depth == 0 {
			if err := lx.indentation(); err != nil {
				return err
			}
		}
		if lx.offset >= len(lx.src) {
			break
		}
		c := lx.src[lx.offset]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\f':
			lx.advance(1)
		case c == '\\' && lx.peekByte(1) == '\n':
			lx.advance(2)
		case c == '\\' && lx.peekByte(1) == '\r' && lx.peekByte(2) == '\n':
			lx.advance(3)
		case c == '#':
			for lx.offset < len(lx.src) && lx.src[lx.offset] != '\n' {
				lx.advance(1)
			}
		case c == '\n':
			start := lx.pos()
			lx.advance(1)
			if lx.depth == 0 {
				if lx.lastKind() != NEWLINE {
					lx.tokens = append(lx.tokens, Token{Kind: NEWLINE, Span: Span{Start: start, End: start}})
				}
				lx.newLine = true
			}
		case c >= '0' && c <= '9' || (c == '.' && isDigit(lx.peekByte(1))):
			if err := lx.number(); err != nil {
				return err
			}
		case c == '"' || c == '\'':
			if err := lx.str("", lx.pos()); err != nil {
				return err
			}
		case isIdentStart(c):
			if err := lx.identOrPrefixedString(); err != nil {
				return err
			}
		default:
			if err := lx.operator(); err != nil {
				return err
			}
		}
	}
	end := lx.pos()
	if len(lx.brackets) > 0 {
		return errorAt(lx.brackets[len(lx.brackets)-1], "'%c' was never closed", lx.src[lx.brackets[len(lx.brackets)-1].Offset])
	}
	if lx.lastKind() != NEWLINE {
		lx.tokens = append(lx.tokens, Token{Kind: NEWLINE, Span: Span{Start: end, End: end}})
	}
	for len(lx.indents) > 1 {
		lx.indents = lx.indents[:len(lx.indents)-1]
		lx.tokens = append(lx.tokens, Token{Kind: DEDENT, Span: Span{Start: end, End: end}})
	}
	lx.tokens = append(lx.tokens, Token{Kind: EOF, Span: Span{Start: end, End: end}})
	return nil
}

// indentation measures the indentation of the next logical line and emits INDENT/DEDENT tokens.
// Blank and comment-only lines are skipped.
func (lx *lexer) indentation() *Error {
	for {
		width := 0
		probe := lx.offset
		for probe < len(lx.src) && (lx.src[probe] == ' ' || lx.src[probe] == '\t' || lx.src[probe] == '\f') {
			if lx.src[probe] == '\t' {
				width = (width/8 + 1) * 8
			} else {
				width++
			}
			probe++
		}
		if probe >= len(lx.src) {
			lx.advance(probe - lx.offset)
			lx.newLine = false
			return nil
		}
		c := lx.src[probe]
		if c == '\n' || c == '\r' || c == '#' {
			// Blank or comment-only line.
			lx.advance(probe - lx.offset)
			for lx.offset < len(lx.src) && lx.src[lx.offset] != '\n' {
				lx.advance(1)
			}
			lx.advance(1)
			continue
		}
		lx.advance(probe - lx.offset)
		lx.newLine = false
		start := lx.pos()
		top := lx.indents[len(lx.indents)-1]
		switch {
		case width > top:
			lx.indents = append(lx.indents, width)
			lx.tokens = append(lx.tokens, Token{Kind: INDENT, Span: Span{Start: start, End: start}})
		case width < top:
			for width < lx.indents[len(lx.indents)-1] {
				lx.indents = lx.indents[:len(lx.indents)-1]
				lx.tokens = append(lx.tokens, Token{Kind: DEDENT, Span: Span{Start: start, End: start}})
			}
			if width != lx.indents[len(lx.indents)-1] {
				return errorAt(start, "unindent does not match any outer indentation level")
			}
		}
		return nil
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func (lx *lexer) identOrPrefixedString() *Error {
	start := lx.pos()
	end := lx.offset
	for end < len(lx.src) {
		r, size := utf8.DecodeRuneInString(lx.src[end:])
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			end += size
			continue
		}
		break
	}
	word := lx.src[lx.offset:end]
	if end < len(lx.src) && (lx.src[end] == '"' || lx.src[end] == '\'') {
		prefix := strings.ToLower(word)
		switch prefix {
		case "r", "f", "b", "u", "rb", "br", "fr", "rf":
			lx.advance(len(word))
			return lx.str(prefix, start)
		}
	}
	lx.advance(len(word))
	if keywords[word] {
		lx.emit(KEYWORD, word, start)
	} else {
		lx.emit(NAME, word, start)
	}
	return nil
}

func (lx *lexer) number() *Error {
	start := lx.pos()
	end := lx.offset
	src := lx.src
	isFloat := false
	if src[end] == '0' && end+1 < len(src) && strings.ContainsRune("xXoObB", rune(src[end+1])) {
		end += 2
		for end < len(src) && (isHexDigit(src[end]) || src[end] == '_') {
			end++
		}
	} else {
		for end < len(src) && (isDigit(src[end]) || src[end] == '_') {
			end++
		}
		if end < len(src) && src[end] == '.' {
			isFloat = true
			end++
			for end < len(src) && (isDigit(src[end]) || src[end] == '_') {
				end++
			}
		}
		if end < len(src) && (src[end] == 'e' || src[end] == 'E') {
			probe := end + 1
			if probe < len(src) && (src[probe] == '+' || src[probe] == '-') {
				probe++
			}
			if probe < len(src) && isDigit(src[probe]) {
				isFloat = true
				end = probe
				for end < len(src) && isDigit(src[end]) {
					end++
				}
			}
		}
	}
	text := src[lx.offset:end]
	clean := strings.ReplaceAll(text, "_", "")
	lx.advance(end - lx.offset)
	if end < len(src) && isIdentStart(src[end]) {
		return errorAt(start, "invalid decimal literal")
	}
	if isFloat {
		if _, err := strconv.ParseFloat(clean, 64); err != nil {
			return errorAt(start, "invalid float literal %q", text)
		}
		lx.emit(FLOAT, clean, start)
		return nil
	}
	if _, err := strconv.ParseInt(clean, 0, 64); err != nil {
		return errorAt(start, "invalid integer literal %q", text)
	}
	lx.emit(INT, clean, start)
	return nil
}

func isHexDigit(c byte) bool {
	return isDigit(c) || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

// str lexes a string literal whose opening quote is at the current offset.
func (lx *lexer) str(prefix string, start Pos) *Error {
	raw := strings.Contains(prefix, "r")
	formatted := strings.Contains(prefix, "f")
	quote := lx.src[lx.offset]
	triple := lx.peekByte(1) == quote && lx.peekByte(2) == quote
	delim := string(quote)
	if triple {
		delim = strings.Repeat(delim, 3)
	}
	lx.advance(len(delim))
	var b strings.Builder
	for {
		if lx.offset >= len(lx.src) {
			return errorAt(start, "unterminated string literal")
		}
		if strings.HasPrefix(lx.src[lx.offset:], delim) {
			lx.advance(len(delim))
			break
		}
		c := lx.src[lx.offset]
		if c == '\n' && !triple {
			return errorAt(start, "unterminated string literal")
		}
		if c == '\\' && lx.offset+1 < len(lx.src) {
			next := lx.src[lx.offset+1]
			if raw {
				b.WriteByte(c)
				b.WriteByte(next)
				lx.advance(2)
				continue
			}
			lx.advance(2)
			switch next {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '0':
				b.WriteByte(0)
			case '\\', '\'', '"':
				b.WriteByte(next)
			case '\n':
				// Escaped newline: joined.
			case 'x':
				if lx.offset+2 > len(lx.src) {
					return errorAt(start, "truncated \\xXX escape")
				}
				v, err := strconv.ParseUint(lx.src[lx.offset:lx.offset+2], 16, 8)
				if err != nil {
					return errorAt(start, "truncated \\xXX escape")
				}
				b.WriteRune(rune(v))
				lx.advance(2)
			default:
				b.WriteByte('\\')
				b.WriteByte(next)
			}
			continue
		}
		b.WriteByte(c)
		lx.advance(1)
	}
	if formatted {
		lx.emit(FSTRING, b.String(), start)
	} else {
		lx.emit(STRING, b.String(), start)
	}
	return nil
}

func (lx *lexer) operator() *Error {
	start := lx.pos()
	rest := lx.src[lx.offset:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			switch op {
			case "(", "[", "{":
				lx.depth++
				lx.brackets = append(lx.brackets, start)
			case ")", "]", "}":
				if lx.depth == 0 {
					return errorAt(start, "unmatched '%s'", op)
				}
				open := lx.src[lx.brackets[len(lx.brackets)-1].Offset]
				if !matchingBracket(open, op[0]) {
					return errorAt(start, "closing parenthesis '%s' does not match opening parenthesis '%c'", op, open)
				}
				lx.depth--
				lx.brackets = lx.brackets[:len(lx.brackets)-1]
			}
			lx.advance(len(op))
			lx.emit(OP, op, start)
			return nil
		}
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return errorAt(start, "invalid character '%c' (U+%04X)", r, r)
}

func matchingBracket(open, closing byte) bool {
	switch open {
	case '(':
		return closing == ')'
	case '[':
		return closing == ']'
	}
	return closing == '}'
}
