// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package syntax

import (
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
)

// Parse parses a whole source file.
//
// The returned error is always a *Error, with the Filename and Source set.
func Parse(filename, src string) (module *Module, err error) {
	tokens, err := Tokenize(src)
	if err != nil {
		err.(*Error).Filename = filename
		return nil, err
	}
	p := &parser{tokens: tokens, src: src}
	synErr := exceptions.TryCatch[*Error](func() {
		module = &Module{Filename: filename, Source: src}
		for p.peek().Kind != EOF {
			if p.peek().Kind == NEWLINE {
				p.next()
				continue
			}
			module.Body = append(module.Body, p.statement()...)
		}
	})
	if synErr != nil {
		synErr.Filename = filename
		synErr.Source = src
		return nil, synErr
	}
	return module, nil
}

// ParseExpr parses a single expression, e.g. a snippet passed on a command line.
func ParseExpr(src string) (expr Expr, err error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, src: src}
	synErr := exceptions.TryCatch[*Error](func() {
		expr = p.testList(false)
		for p.peek().Kind == NEWLINE {
			p.next()
		}
		if tok := p.peek(); tok.Kind != EOF {
			p.failAt(tok, "invalid syntax")
		}
	})
	if synErr != nil {
		synErr.Source = src
		return nil, synErr
	}
	return expr, nil
}

// parser is a recursive descent parser with precedence climbing for binary operators.
// Errors are raised as panics of *Error and caught in Parse.
type parser struct {
	tokens []Token
	pos    int
	src    string
}

func (p *parser) peek() Token { return p.tokens[p.pos] }

func (p *parser) peekAt(ahead int) Token {
	if p.pos+ahead < len(p.tokens) {
		return p.tokens[p.pos+ahead]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *parser) next() Token {
	tok := p.tokens[p.pos]
	if tok.Kind != EOF {
		p.pos++
	}
	return tok
}

// prevEnd is the end position of the last consumed token.
func (p *parser) prevEnd() Pos {
	if p.pos == 0 {
		return Pos{Line: 1, Col: 1}
	}
	return p.tokens[p.pos-1].Span.End
}

func (p *parser) spanFrom(start Pos) Span { return Span{Start: start, End: p.prevEnd()} }

func (p *parser) failAt(tok Token, format string, args ...any) {
	panic(errorAt(tok.Span.Start, format, args...))
}

func (p *parser) accept(text string) bool {
	if p.peek().Is(text) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(text string) Token {
	tok := p.peek()
	if !tok.Is(text) {
		p.failAt(tok, "expected '%s', got %s", text, describe(tok))
	}
	return p.next()
}

func (p *parser) expectKind(kind TokenKind) Token {
	tok := p.peek()
	if tok.Kind != kind {
		p.failAt(tok, "expected %s, got %s", kind, describe(tok))
	}
	return p.next()
}

func describe(tok Token) string {
	switch tok.Kind {
	case EOF:
		return "end of input"
	case NEWLINE:
		return "end of line"
	case INDENT:
		return "unexpected indent"
	case DEDENT:
		return "unindent"
	}
	return "'" + tok.Value + "'"
}

// Statements --------------------------------------------------------------------------------

func (p *parser) statement() []Stmt {
	tok := p.peek()
	if tok.Kind == INDENT {
		p.failAt(tok, "unexpected indent")
	}
	if tok.Kind == KEYWORD {
		switch tok.Value {
		case "def":
			return []Stmt{p.funcDef()}
		case "if":
			return []Stmt{p.ifStmt()}
		case "for":
			return []Stmt{p.forStmt()}
		case "while":
			return []Stmt{p.whileStmt()}
		case "class", "try", "with":
			p.failAt(tok, "'%s' statements are not supported", tok.Value)
		}
	}
	if tok.Is("@") {
		p.failAt(tok, "decorators are not supported")
	}
	return p.simpleStatements()
}

// simpleStatements parses "small (';' small)* NEWLINE".
func (p *parser) simpleStatements() []Stmt {
	var stmts []Stmt
	for {
		stmts = append(stmts, p.smallStatement())
		if !p.accept(";") {
			break
		}
		if p.peek().Kind == NEWLINE {
			break
		}
	}
	if tok := p.peek(); tok.Kind != NEWLINE && tok.Kind != EOF {
		p.failAt(tok, "invalid syntax")
	}
	if p.peek().Kind == NEWLINE {
		p.next()
	}
	return stmts
}

var augOps = map[string]string{
	"+=": "+", "-=": "-", "*=": "*", "/=": "/", "//=": "//", "%=": "%", "**=": "**",
	"&=": "&", "|=": "|", "^=": "^", "<<=": "<<", ">>=": ">>", "@=": "@",
}

func (p *parser) smallStatement() Stmt {
	tok := p.peek()
	start := tok.Span.Start
	if tok.Kind == KEYWORD {
		switch tok.Value {
		case "pass":
			p.next()
			return &Pass{Span: p.spanFrom(start)}
		case "break":
			p.next()
			return &Break{Span: p.spanFrom(start)}
		case "continue":
			p.next()
			return &Continue{Span: p.spanFrom(start)}
		case "return":
			p.next()
			var value Expr
			if !p.atStatementEnd() {
				value = p.testList(true)
			}
			return &Return{Span: p.spanFrom(start), Value: value}
		case "raise":
			p.next()
			var exc Expr
			if !p.atStatementEnd() {
				exc = p.test()
				if p.accept("from") {
					p.test()
				}
			}
			return &Raise{Span: p.spanFrom(start), Exc: exc}
		case "assert":
			p.next()
			test := p.test()
			var msg Expr
			if p.accept(",") {
				msg = p.test()
			}
			return &Assert{Span: p.spanFrom(start), Test: test, Msg: msg}
		case "import":
			p.next()
			var names []Alias
			for {
				alias := Alias{Name: p.dottedName()}
				if p.accept("as") {
					alias.AsName = p.expectKind(NAME).Value
				}
				names = append(names, alias)
				if !p.accept(",") {
					break
				}
			}
			return &Import{Span: p.spanFrom(start), Names: names}
		case "from":
			p.next()
			module := p.dottedName()
			p.expect("import")
			parens := p.accept("(")
			var names []Alias
			for {
				alias := Alias{Name: p.expectKind(NAME).Value}
				if p.accept("as") {
					alias.AsName = p.expectKind(NAME).Value
				}
				names = append(names, alias)
				if !p.accept(",") || (parens && p.peek().Is(")")) {
					break
				}
			}
			if parens {
				p.expect(")")
			}
			return &ImportFrom{Span: p.spanFrom(start), Module: module, Names: names}
		case "global", "del", "yield":
			p.failAt(tok, "'%s' is not supported", tok.Value)
		}
	}

	expr := p.testList(true)
	if op, found := augOps[p.peek().Value]; found && p.peek().Kind == OP {
		p.checkTarget(expr, false)
		p.next()
		value := p.testList(true)
		return &AugAssign{Span: p.spanFrom(start), Target: expr, Op: op, Value: value}
	}
	if p.peek().Is("=") {
		targets := []Expr{expr}
		var value Expr
		for p.accept("=") {
			value = p.testList(true)
			targets = append(targets, value)
		}
		targets = targets[:len(targets)-1]
		for _, target := range targets {
			p.checkTarget(target, true)
		}
		return &Assign{Span: p.spanFrom(start), Targets: targets, Value: value}
	}
	return &ExprStmt{Span: p.spanFrom(start), Value: expr}
}

func (p *parser) atStatementEnd() bool {
	tok := p.peek()
	return tok.Kind == NEWLINE || tok.Kind == EOF || tok.Is(";")
}

func (p *parser) dottedName() string {
	parts := []string{p.expectKind(NAME).Value}
	for p.accept(".") {
		parts = append(parts, p.expectKind(NAME).Value)
	}
	return strings.Join(parts, ".")
}

// checkTarget verifies expr can be assigned to.
func (p *parser) checkTarget(expr Expr, allowUnpack bool) {
	switch target := expr.(type) {
	case *Name, *Attribute, *Subscript:
		return
	case *Tuple:
		if allowUnpack {
			for _, elt := range target.Elts {
				p.checkTarget(elt, true)
			}
			return
		}
	case *List:
		if allowUnpack {
			for _, elt := range target.Elts {
				p.checkTarget(elt, true)
			}
			return
		}
	case *Starred:
		if allowUnpack {
			p.checkTarget(target.Value, false)
			return
		}
	}
	panic(errorAt(expr.NodeSpan().Start, "cannot assign to expression"))
}

// block parses ':' followed by an indented suite or a one-line simple statement list.
func (p *parser) block() []Stmt {
	p.expect(":")
	if p.peek().Kind != NEWLINE {
		return p.simpleStatements()
	}
	p.next()
	if p.peek().Kind != INDENT {
		p.failAt(p.peek(), "expected an indented block")
	}
	p.next()
	var body []Stmt
	for p.peek().Kind != DEDENT && p.peek().Kind != EOF {
		body = append(body, p.statement()...)
	}
	if p.peek().Kind == DEDENT {
		p.next()
	}
	return body
}

func (p *parser) funcDef() Stmt {
	start := p.expect("def").Span.Start
	name := p.expectKind(NAME).Value
	p.expect("(")
	params := p.params(")")
	p.expect(")")
	if p.accept("->") {
		p.test()
	}
	body := p.block()
	return &FunctionDef{Span: p.spanFrom(start), Name: name, Params: params, Body: body}
}

// params parses a parameter list up to (not including) the closing token.
func (p *parser) params(closing string) *Params {
	params := &Params{}
	for !p.peek().Is(closing) {
		switch {
		case p.accept("**"):
			params.KwArg = p.expectKind(NAME).Value
		case p.accept("*"):
			params.VarArg = p.expectKind(NAME).Value
		default:
			nameTok := p.expectKind(NAME)
			if params.VarArg != "" || params.KwArg != "" {
				p.failAt(nameTok, "keyword-only parameters are not supported")
			}
			if closing == ")" && p.accept(":") {
				p.test()
			}
			params.Names = append(params.Names, nameTok.Value)
			if p.accept("=") {
				params.Defaults = append(params.Defaults, p.test())
			} else if len(params.Defaults) > 0 {
				p.failAt(nameTok, "non-default argument follows default argument")
			}
		}
		if !p.accept(",") {
			break
		}
	}
	return params
}

func (p *parser) ifStmt() Stmt {
	start := p.next().Span.Start // "if" or "elif"
	test := p.namedTest()
	body := p.block()
	node := &If{Test: test, Body: body}
	switch {
	case p.peek().Is("elif"):
		node.Else = []Stmt{p.ifStmt()}
	case p.peek().Is("else"):
		p.next()
		node.Else = p.block()
	}
	node.Span = p.spanFrom(start)
	return node
}

func (p *parser) forStmt() Stmt {
	start := p.expect("for").Span.Start
	target := p.targetList()
	p.expect("in")
	iter := p.testList(false)
	body := p.block()
	if p.peek().Is("else") {
		p.failAt(p.peek(), "'for ... else' is not supported")
	}
	return &For{Span: p.spanFrom(start), Target: target, Iter: iter, Body: body}
}

func (p *parser) whileStmt() Stmt {
	start := p.expect("while").Span.Start
	test := p.namedTest()
	body := p.block()
	if p.peek().Is("else") {
		p.failAt(p.peek(), "'while ... else' is not supported")
	}
	return &While{Span: p.spanFrom(start), Test: test, Body: body}
}

func (p *parser) namedTest() Expr {
	expr := p.test()
	if tok := p.peek(); tok.Is(":=") {
		p.failAt(tok, "assignment expressions are not supported")
	}
	return expr
}

// targetList parses loop targets at bitwise-or precedence, so "in" is not consumed.
func (p *parser) targetList() Expr {
	start := p.peek().Span.Start
	first := p.starOr(func() Expr { return p.binary(0) })
	if !p.peek().Is(",") {
		p.checkTarget(first, true)
		return first
	}
	elts := []Expr{first}
	for p.accept(",") {
		if p.peek().Is("in") {
			break
		}
		elts = append(elts, p.starOr(func() Expr { return p.binary(0) }))
	}
	tuple := &Tuple{Span: p.spanFrom(start), Elts: elts}
	p.checkTarget(tuple, true)
	return tuple
}

// Expressions -------------------------------------------------------------------------------

// testList parses "test (',' test)* [',']", returning a *Tuple when there is a comma.
// allowStar permits "*x" elements.
func (p *parser) testList(allowStar bool) Expr {
	start := p.peek().Span.Start
	item := func() Expr {
		if allowStar {
			return p.starOr(p.test)
		}
		return p.test()
	}
	first := item()
	if !p.peek().Is(",") {
		return first
	}
	elts := []Expr{first}
	for p.accept(",") {
		if p.atExprListEnd() {
			break
		}
		elts = append(elts, item())
	}
	return &Tuple{Span: p.spanFrom(start), Elts: elts}
}

func (p *parser) atExprListEnd() bool {
	tok := p.peek()
	if tok.Kind == NEWLINE || tok.Kind == EOF {
		return true
	}
	return tok.Kind == OP && strings.Contains(") ] } = ; :", tok.Value) || tok.Is("in")
}

func (p *parser) starOr(parse func() Expr) Expr {
	if tok := p.peek(); tok.Is("*") {
		p.next()
		value := p.binary(0)
		return &Starred{Span: p.spanFrom(tok.Span.Start), Value: value}
	}
	return parse()
}

// test parses a full expression: lambda, conditional expression or or-test.
func (p *parser) test() Expr {
	tok := p.peek()
	if tok.Is("lambda") {
		p.next()
		params := p.params(":")
		p.expect(":")
		body := p.test()
		return &Lambda{Span: p.spanFrom(tok.Span.Start), Params: params, Body: body}
	}
	start := tok.Span.Start
	expr := p.orTest()
	if p.peek().Is("if") {
		p.next()
		cond := p.orTest()
		p.expect("else")
		orElse := p.test()
		return &IfExp{Span: p.spanFrom(start), Test: cond, Body: expr, Else: orElse}
	}
	return expr
}

// testNoCond is used in comprehension conditions, where a trailing "if" starts the next clause.
func (p *parser) testNoCond() Expr {
	if p.peek().Is("lambda") {
		return p.test()
	}
	return p.orTest()
}

func (p *parser) orTest() Expr {
	start := p.peek().Span.Start
	first := p.andTest()
	if !p.peek().Is("or") {
		return first
	}
	values := []Expr{first}
	for p.accept("or") {
		values = append(values, p.andTest())
	}
	return &BoolOp{Span: p.spanFrom(start), Op: "or", Values: values}
}

func (p *parser) andTest() Expr {
	start := p.peek().Span.Start
	first := p.notTest()
	if !p.peek().Is("and") {
		return first
	}
	values := []Expr{first}
	for p.accept("and") {
		values = append(values, p.notTest())
	}
	return &BoolOp{Span: p.spanFrom(start), Op: "and", Values: values}
}

func (p *parser) notTest() Expr {
	if tok := p.peek(); tok.Is("not") {
		p.next()
		operand := p.notTest()
		return &UnaryOp{Span: p.spanFrom(tok.Span.Start), Op: "not", Operand: operand}
	}
	return p.comparison()
}

var comparisonOps = map[string]bool{"<": true, ">": true, "==": true, "!=": true, "<=": true, ">=": true}

func (p *parser) comparison() Expr {
	start := p.peek().Span.Start
	left := p.binary(0)
	var ops []string
	var comparators []Expr
	for {
		tok := p.peek()
		var op string
		switch {
		case tok.Kind == OP && comparisonOps[tok.Value]:
			op = tok.Value
			p.next()
		case tok.Is("in"):
			op = "in"
			p.next()
		case tok.Is("not") && p.peekAt(1).Is("in"):
			op = "not in"
			p.next()
			p.next()
		case tok.Is("is"):
			p.next()
			op = "is"
			if p.accept("not") {
				op = "is not"
			}
		}
		if op == "" {
			break
		}
		ops = append(ops, op)
		comparators = append(comparators, p.binary(0))
	}
	if len(ops) == 0 {
		return left
	}
	return &Compare{Span: p.spanFrom(start), Left: left, Ops: ops, Comparators: comparators}
}

// binaryPrecedence of the binary operators below comparisons; higher binds tighter.
var binaryPrecedence = map[string]int{
	"|": 1, "^": 2, "&": 3, "<<": 4, ">>": 4, "+": 5, "-": 5, "*": 6, "/": 6, "//": 6, "%": 6, "@": 6,
}

// binary is the precedence climbing loop: it parses operators binding tighter than minPrec.
func (p *parser) binary(minPrec int) Expr {
	start := p.peek().Span.Start
	left := p.unary()
	for {
		tok := p.peek()
		prec, found := binaryPrecedence[tok.Value]
		if tok.Kind != OP || !found || prec <= minPrec {
			return left
		}
		p.next()
		right := p.binary(prec)
		left = &BinOp{Span: p.spanFrom(start), Op: tok.Value, Left: left, Right: right}
	}
}

func (p *parser) unary() Expr {
	tok := p.peek()
	if tok.Kind == OP && (tok.Value == "-" || tok.Value == "+" || tok.Value == "~") {
		p.next()
		operand := p.unary()
		return &UnaryOp{Span: p.spanFrom(tok.Span.Start), Op: tok.Value, Operand: operand}
	}
	return p.power()
}

// power parses "primary ['**' unary]"; "**" is right associative and binds tighter than a
// unary operator on its left.
func (p *parser) power() Expr {
	start := p.peek().Span.Start
	base := p.primary()
	if p.accept("**") {
		exponent := p.unary()
		return &BinOp{Span: p.spanFrom(start), Op: "**", Left: base, Right: exponent}
	}
	return base
}

func (p *parser) primary() Expr {
	start := p.peek().Span.Start
	expr := p.atom()
	for {
		switch tok := p.peek(); {
		case tok.Is("."):
			p.next()
			attr := p.expectKind(NAME).Value
			expr = &Attribute{Span: p.spanFrom(start), Value: expr, Attr: attr}
		case tok.Is("["):
			p.next()
			index := p.subscriptList()
			p.expect("]")
			expr = &Subscript{Span: p.spanFrom(start), Value: expr, Index: index}
		case tok.Is("("):
			p.next()
			call := &Call{Func: expr}
			p.callArgs(call)
			p.expect(")")
			call.Span = p.spanFrom(start)
			expr = call
		default:
			return expr
		}
	}
}

func (p *parser) callArgs(call *Call) {
	for !p.peek().Is(")") {
		tok := p.peek()
		switch {
		case tok.Is("**"):
			p.next()
			call.Keywords = append(call.Keywords, Keyword{Value: p.test()})
		case tok.Is("*"):
			p.next()
			value := p.test()
			call.Args = append(call.Args, &Starred{Span: p.spanFrom(tok.Span.Start), Value: value})
		case tok.Kind == NAME && p.peekAt(1).Is("="):
			p.next()
			p.next()
			call.Keywords = append(call.Keywords, Keyword{Name: tok.Value, Value: p.test()})
		default:
			if len(call.Keywords) > 0 {
				p.failAt(tok, "positional argument follows keyword argument")
			}
			arg := p.test()
			if p.peek().Is("for") {
				gens := p.comprehensions()
				arg = &GeneratorExp{Span: p.spanFrom(tok.Span.Start), Elt: arg, Generators: gens}
			}
			call.Args = append(call.Args, arg)
		}
		if !p.accept(",") {
			break
		}
	}
}

func (p *parser) subscriptList() Expr {
	start := p.peek().Span.Start
	first := p.subscriptItem()
	if !p.peek().Is(",") {
		return first
	}
	elts := []Expr{first}
	for p.accept(",") {
		if p.peek().Is("]") {
			break
		}
		elts = append(elts, p.subscriptItem())
	}
	return &Tuple{Span: p.spanFrom(start), Elts: elts}
}

func (p *parser) subscriptItem() Expr {
	start := p.peek().Span.Start
	var lower Expr
	if !p.peek().Is(":") {
		lower = p.test()
		if !p.peek().Is(":") {
			return lower
		}
	}
	slice := &Slice{Lower: lower}
	p.expect(":")
	if !p.peek().Is(":") && !p.peek().Is("]") && !p.peek().Is(",") {
		slice.Upper = p.test()
	}
	if p.accept(":") {
		if !p.peek().Is("]") && !p.peek().Is(",") {
			slice.Step = p.test()
		}
	}
	slice.Span = p.spanFrom(start)
	return slice
}

func (p *parser) comprehensions() []*Comprehension {
	var gens []*Comprehension
	for p.accept("for") {
		gen := &Comprehension{Target: p.targetList()}
		p.expect("in")
		gen.Iter = p.orTest()
		for p.accept("if") {
			gen.Ifs = append(gen.Ifs, p.testNoCond())
		}
		gens = append(gens, gen)
	}
	return gens
}

func (p *parser) atom() Expr {
	tok := p.peek()
	start := tok.Span.Start
	switch tok.Kind {
	case NAME:
		p.next()
		return &Name{Span: tok.Span, ID: tok.Value}
	case INT:
		p.next()
		v, err := strconv.ParseInt(tok.Value, 0, 64)
		if err != nil {
			p.failAt(tok, "invalid integer literal %q", tok.Value)
		}
		return &Constant{Span: tok.Span, Value: v}
	case FLOAT:
		p.next()
		v, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			p.failAt(tok, "invalid float literal %q", tok.Value)
		}
		return &Constant{Span: tok.Span, Value: v}
	case STRING, FSTRING:
		return p.strings()
	case KEYWORD:
		switch tok.Value {
		case "None":
			p.next()
			return &Constant{Span: tok.Span, Value: nil}
		case "True", "False":
			p.next()
			return &Constant{Span: tok.Span, Value: tok.Value == "True"}
		}
	case OP:
		switch tok.Value {
		case "(":
			p.next()
			if p.accept(")") {
				return &Tuple{Span: p.spanFrom(start)}
			}
			first := p.starOr(p.test)
			if p.peek().Is("for") {
				gens := p.comprehensions()
				p.expect(")")
				return &GeneratorExp{Span: p.spanFrom(start), Elt: first, Generators: gens}
			}
			if p.accept(")") {
				if _, starred := first.(*Starred); starred {
					p.failAt(tok, "cannot use starred expression here")
				}
				return first
			}
			elts := []Expr{first}
			for p.accept(",") {
				if p.peek().Is(")") {
					break
				}
				elts = append(elts, p.starOr(p.test))
			}
			p.expect(")")
			return &Tuple{Span: p.spanFrom(start), Elts: elts}
		case "[":
			p.next()
			if p.accept("]") {
				return &List{Span: p.spanFrom(start)}
			}
			first := p.starOr(p.test)
			if p.peek().Is("for") {
				gens := p.comprehensions()
				p.expect("]")
				return &ListComp{Span: p.spanFrom(start), Elt: first, Generators: gens}
			}
			elts := []Expr{first}
			for p.accept(",") {
				if p.peek().Is("]") {
					break
				}
				elts = append(elts, p.starOr(p.test))
			}
			p.expect("]")
			return &List{Span: p.spanFrom(start), Elts: elts}
		case "{":
			return p.dictDisplay()
		}
	}
	p.failAt(tok, "invalid syntax: unexpected %s", describe(tok))
	return nil
}

func (p *parser) dictDisplay() Expr {
	start := p.expect("{").Span.Start
	dict := &Dict{}
	for !p.peek().Is("}") {
		if p.accept("**") {
			dict.Keys = append(dict.Keys, nil)
			dict.Values = append(dict.Values, p.binary(0))
		} else {
			key := p.test()
			if !p.peek().Is(":") {
				p.failAt(p.peek(), "sets are not supported")
			}
			p.next()
			value := p.test()
			if len(dict.Keys) == 0 && p.peek().Is("for") {
				gens := p.comprehensions()
				p.expect("}")
				return &DictComp{Span: p.spanFrom(start), Key: key, Value: value, Generators: gens}
			}
			dict.Keys = append(dict.Keys, key)
			dict.Values = append(dict.Values, value)
		}
		if !p.accept(",") {
			break
		}
	}
	p.expect("}")
	dict.Span = p.spanFrom(start)
	return dict
}

// strings concatenates adjacent string literals; any f-string makes the result an *FString.
func (p *parser) strings() Expr {
	start := p.peek().Span.Start
	var parts []Expr
	isFormatted := false
	for tok := p.peek(); tok.Kind == STRING || tok.Kind == FSTRING; tok = p.peek() {
		p.next()
		if tok.Kind == STRING {
			parts = append(parts, &Constant{Span: tok.Span, Value: tok.Value})
			continue
		}
		isFormatted = true
		parts = append(parts, p.fstringParts(tok)...)
	}
	span := p.spanFrom(start)
	if !isFormatted {
		var b strings.Builder
		for _, part := range parts {
			b.WriteString(part.(*Constant).Value.(string))
		}
		return &Constant{Span: span, Value: b.String()}
	}
	return &FString{Span: span, Parts: parts}
}

// fstringParts splits the body of an f-string into literal and formatted parts.
// Expressions are parsed from their own text, and spans point at the f-string token.
func (p *parser) fstringParts(tok Token) []Expr {
	body := tok.Value
	var parts []Expr
	var literal strings.Builder
	flush := func() {
		if literal.Len() > 0 {
			parts = append(parts, &Constant{Span: tok.Span, Value: literal.String()})
			literal.Reset()
		}
	}
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '}' {
			if i+1 < len(body) && body[i+1] == '}' {
				literal.WriteByte('}')
				i++
				continue
			}
			p.failAt(tok, "f-string: single '}' is not allowed")
		}
		if c != '{' {
			literal.WriteByte(c)
			continue
		}
		if i+1 < len(body) && body[i+1] == '{' {
			literal.WriteByte('{')
			i++
			continue
		}
		// Find the matching '}', honoring nested brackets and quotes.
		depth := 0
		end := -1
		var quote byte
		for j := i + 1; j < len(body) && end < 0; j++ {
			switch ch := body[j]; {
			case quote != 0:
				if ch == quote {
					quote = 0
				}
			case ch == '\'' || ch == '"':
				quote = ch
			case ch == '(' || ch == '[' || ch == '{':
				depth++
			case ch == ')' || ch == ']':
				depth--
			case ch == '}':
				if depth == 0 {
					end = j
				} else {
					depth--
				}
			}
		}
		if end < 0 {
			p.failAt(tok, "f-string: expecting '}'")
		}
		field := body[i+1 : end]
		i = end
		value := &FormattedValue{Span: tok.Span}
		if idx := topLevelIndex(field, ':'); idx >= 0 {
			value.FormatSpec = field[idx+1:]
			field = field[:idx]
		}
		if idx := topLevelIndex(field, '!'); idx >= 0 && idx+1 < len(field) && field[idx+1] != '=' {
			value.Conversion = field[idx+1]
			field = field[:idx]
		}
		if strings.TrimSpace(field) == "" {
			p.failAt(tok, "f-string: empty expression not allowed")
		}
		expr, err := ParseExpr(strings.TrimSpace(field))
		if err != nil {
			p.failAt(tok, "f-string: %s", err.(*Error).Msg)
		}
		relocate(expr, tok.Span)
		value.Value = expr
		flush()
		parts = append(parts, value)
	}
	flush()
	return parts
}

// topLevelIndex finds c outside of brackets and quotes.
func topLevelIndex(s string, c byte) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '(' || ch == '[' || ch == '{':
			depth++
		case ch == ')' || ch == ']' || ch == '}':
			depth--
		case ch == c && depth == 0:
			if c == '!' && i+1 < len(s) && s[i+1] == '=' {
				continue
			}
			return i
		}
	}
	return -1
}
