// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlang

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/gomlx/jitfallback/pkg/hostlang/syntax"
	"github.com/pkg/errors"
)

// MaxRecursionDepth bounds nested calls of hostlang functions.
const MaxRecursionDepth = 256

// Interpreter evaluates hostlang code. It holds the builtins and the registry of importable
// modules. An Interpreter is not safe for concurrent evaluation: callers serialize on
// InterpreterLock.
type Interpreter struct {
	builtins *Env
	modules  map[string]*Module

	// Stdout receives the output of print().
	Stdout io.Writer

	depth atomic.Int32
}

// Option configures a new Interpreter.
type Option func(*Interpreter)

// WithStdout redirects print().
func WithStdout(w io.Writer) Option {
	return func(it *Interpreter) { it.Stdout = w }
}

// New creates an interpreter with the builtins and the standard modules (math, numpy,
// functools and jit) registered.
func New(opts ...Option) *Interpreter {
	it := &Interpreter{
		builtins: NewEnv(nil),
		modules:  make(map[string]*Module),
		Stdout:   os.Stdout,
	}
	for _, opt := range opts {
		opt(it)
	}
	it.installBuiltins()
	for _, m := range standardModules() {
		it.RegisterModule(m)
	}
	return it
}

// Builtins is the outermost scope.
func (it *Interpreter) Builtins() *Env { return it.builtins }

// RegisterModule makes a module importable. Dotted names are also attached as attributes of
// their (registered) parent module, so "jit.ops" is reachable as "jit.ops" after "import jit".
func (it *Interpreter) RegisterModule(m *Module) {
	it.modules[m.Name] = m
	if idx := strings.LastIndexByte(m.Name, '.'); idx > 0 {
		if parent, found := it.modules[m.Name[:idx]]; found {
			parent.Set(m.Name[idx+1:], m)
		}
	}
	for name, sub := range it.modules {
		if strings.HasPrefix(name, m.Name+".") && !strings.Contains(name[len(m.Name)+1:], ".") {
			m.Set(name[len(m.Name)+1:], sub)
		}
	}
}

// Import returns a registered module.
func (it *Interpreter) Import(name string) (*Module, error) {
	if m, found := it.modules[name]; found {
		return m, nil
	}
	return nil, &Error{Kind: UserRaised, ExceptionName: "ModuleNotFoundError", Msg: "No module named " + quoteString(name)}
}

// NewGlobals creates a module scope.
func (it *Interpreter) NewGlobals(moduleName string) *Env {
	globals := NewEnv(it.builtins)
	globals.Set("__name__", Str(moduleName))
	return globals
}

// ExecModule executes the top-level statements of a module in globals.
func (it *Interpreter) ExecModule(mod *syntax.Module, globals *Env) (err error) {
	defer recoverPanic(&err)
	fr := &frame{it: it, filename: mod.Filename, source: mod.Source}
	flow, _, err := fr.execStmts(mod.Body, globals)
	if err != nil {
		return err
	}
	if flow != flowNormal {
		return &Error{Kind: UserRaised, ExceptionName: "SyntaxError", Msg: "'return' outside function"}
	}
	return nil
}

// Eval evaluates an expression in env.
func (it *Interpreter) Eval(expr syntax.Expr, env *Env) (result Object, err error) {
	defer recoverPanic(&err)
	fr := &frame{it: it}
	return fr.eval(expr, env)
}

// ExecBlock executes statements in env. If a return statement executes, returned is its
// value and hasReturned is true. A break or continue escaping the block is an error.
func (it *Interpreter) ExecBlock(stmts []syntax.Stmt, env *Env) (returned Object, hasReturned bool, err error) {
	defer recoverPanic(&err)
	fr := &frame{it: it}
	flow, value, err := fr.execStmts(stmts, env)
	if err != nil {
		return nil, false, err
	}
	switch flow {
	case flowReturn:
		return value, true, nil
	case flowBreak, flowContinue:
		return nil, false, &Error{Kind: UserRaised, ExceptionName: "SyntaxError", Msg: "'break' outside loop"}
	}
	return None, false, nil
}

// Define creates a function object for a def statement, with its defaults evaluated in env.
func (it *Interpreter) Define(def *syntax.FunctionDef, env *Env, filename, source string) (*Function, error) {
	fr := &frame{it: it, filename: filename, source: source}
	return fr.define(def, env)
}

// recoverPanic converts a Go panic raised inside a builtin into an error.
func recoverPanic(err *error) {
	if r := recover(); r != nil {
		if e, ok := r.(error); ok {
			*err = errors.Wrap(e, "panic during host evaluation")
			return
		}
		*err = errors.Errorf("panic during host evaluation: %v", r)
	}
}

type flowKind int

const (
	flowNormal flowKind = iota
	flowBreak
	flowContinue
	flowReturn
)

// frame carries the source being executed, for functions it defines.
type frame struct {
	it               *Interpreter
	filename, source string
}

func (fr *frame) execStmts(stmts []syntax.Stmt, env *Env) (flowKind, Object, error) {
	for _, stmt := range stmts {
		flow, value, err := fr.exec(stmt, env)
		if err != nil || flow != flowNormal {
			return flow, value, err
		}
	}
	return flowNormal, nil, nil
}

func (fr *frame) exec(stmt syntax.Stmt, env *Env) (flowKind, Object, error) {
	switch s := stmt.(type) {
	case *syntax.ExprStmt:
		_, err := fr.eval(s.Value, env)
		return flowNormal, nil, err

	case *syntax.Assign:
		value, err := fr.eval(s.Value, env)
		if err != nil {
			return flowNormal, nil, err
		}
		for _, target := range s.Targets {
			if err := fr.assign(target, value, env); err != nil {
				return flowNormal, nil, err
			}
		}
		return flowNormal, nil, nil

	case *syntax.AugAssign:
		return flowNormal, nil, fr.augAssign(s, env)

	case *syntax.FunctionDef:
		fn, err := fr.define(s, env)
		if err != nil {
			return flowNormal, nil, err
		}
		env.Set(s.Name, fn)
		return flowNormal, nil, nil

	case *syntax.Return:
		if s.Value == nil {
			return flowReturn, None, nil
		}
		value, err := fr.eval(s.Value, env)
		return flowReturn, value, err

	case *syntax.If:
		test, err := fr.eval(s.Test, env)
		if err != nil {
			return flowNormal, nil, err
		}
		truth, err := Truth(test)
		if err != nil {
			return flowNormal, nil, err
		}
		if truth {
			return fr.execStmts(s.Body, env)
		}
		return fr.execStmts(s.Else, env)

	case *syntax.While:
		for {
			test, err := fr.eval(s.Test, env)
			if err != nil {
				return flowNormal, nil, err
			}
			truth, err := Truth(test)
			if err != nil || !truth {
				return flowNormal, nil, err
			}
			flow, value, err := fr.execStmts(s.Body, env)
			if err != nil || flow == flowReturn {
				return flow, value, err
			}
			if flow == flowBreak {
				return flowNormal, nil, nil
			}
		}

	case *syntax.For:
		iterable, err := fr.eval(s.Iter, env)
		if err != nil {
			return flowNormal, nil, err
		}
		items, err := Iterate(iterable)
		if err != nil {
			return flowNormal, nil, err
		}
		for _, item := range items {
			if err := fr.assign(s.Target, item, env); err != nil {
				return flowNormal, nil, err
			}
			flow, value, err := fr.execStmts(s.Body, env)
			if err != nil || flow == flowReturn {
				return flow, value, err
			}
			if flow == flowBreak {
				break
			}
		}
		return flowNormal, nil, nil

	case *syntax.Break:
		return flowBreak, nil, nil
	case *syntax.Continue:
		return flowContinue, nil, nil
	case *syntax.Pass:
		return flowNormal, nil, nil

	case *syntax.Raise:
		return flowNormal, nil, fr.raise(s, env)

	case *syntax.Assert:
		test, err := fr.eval(s.Test, env)
		if err != nil {
			return flowNormal, nil, err
		}
		truth, err := Truth(test)
		if err != nil || truth {
			return flowNormal, nil, err
		}
		msg := ""
		if s.Msg != nil {
			value, err := fr.eval(s.Msg, env)
			if err != nil {
				return flowNormal, nil, err
			}
			msg = ToStr(value)
		}
		return flowNormal, nil, &Error{Kind: UserRaised, ExceptionName: "AssertionError", Msg: msg}

	case *syntax.Import:
		for _, alias := range s.Names {
			if _, err := fr.it.Import(alias.Name); err != nil {
				return flowNormal, nil, err
			}
			if alias.AsName != "" {
				m, _ := fr.it.Import(alias.Name)
				env.Set(alias.AsName, m)
				continue
			}
			top, _, _ := strings.Cut(alias.Name, ".")
			m, err := fr.it.Import(top)
			if err != nil {
				return flowNormal, nil, err
			}
			env.Set(top, m)
		}
		return flowNormal, nil, nil

	case *syntax.ImportFrom:
		m, err := fr.it.Import(s.Module)
		if err != nil {
			return flowNormal, nil, err
		}
		for _, alias := range s.Names {
			value, found := m.Attr(alias.Name)
			if !found {
				sub, err := fr.it.Import(s.Module + "." + alias.Name)
				if err != nil {
					return flowNormal, nil, &Error{Kind: UserRaised, ExceptionName: "ImportError",
						Msg: "cannot import name " + quoteString(alias.Name) + " from " + quoteString(s.Module)}
				}
				value = sub
			}
			env.Set(alias.Bound(), value)
		}
		return flowNormal, nil, nil
	}
	return flowNormal, nil, Errorf(TypeError, "unsupported statement %T", stmt)
}

func (fr *frame) define(def *syntax.FunctionDef, env *Env) (*Function, error) {
	defaults, err := fr.evalDefaults(def.Params, env)
	if err != nil {
		return nil, err
	}
	return &Function{
		Name:     def.Name,
		Params:   def.Params,
		Defaults: defaults,
		Def:      def,
		Globals:  fr.it.globalsOf(env),
		Closure:  env,
		Filename: fr.filename,
		Source:   fr.source,
		interp:   fr.it,
	}, nil
}

func (fr *frame) evalDefaults(params *syntax.Params, env *Env) ([]Object, error) {
	defaults := make([]Object, len(params.Defaults))
	for i, expr := range params.Defaults {
		value, err := fr.eval(expr, env)
		if err != nil {
			return nil, err
		}
		defaults[i] = value
	}
	return defaults, nil
}

// globalsOf returns the module scope enclosing env.
func (it *Interpreter) globalsOf(env *Env) *Env {
	for scope := env; scope != nil; scope = scope.parent {
		if scope.parent == it.builtins {
			return scope
		}
	}
	return env
}

func (fr *frame) raise(s *syntax.Raise, env *Env) error {
	if s.Exc == nil {
		return &Error{Kind: UserRaised, ExceptionName: "RuntimeError", Msg: "No active exception to reraise"}
	}
	value, err := fr.eval(s.Exc, env)
	if err != nil {
		return err
	}
	return RaiseObject(value)
}

// RaiseObject converts the operand of a raise statement to the error it raises.
func RaiseObject(value Object) error {
	switch exc := value.(type) {
	case *Exception:
		return exc.ToError()
	case *Type:
		if exc.Exception {
			return (&Exception{Type: exc}).ToError()
		}
	}
	return Errorf(TypeError, "exceptions must derive from BaseException")
}

// assign binds value to an assignment target.
func (fr *frame) assign(target syntax.Expr, value Object, env *Env) error {
	switch t := target.(type) {
	case *syntax.Name:
		env.Set(t.ID, value)
		return nil
	case *syntax.Tuple:
		return fr.unpack(t.Elts, value, env)
	case *syntax.List:
		return fr.unpack(t.Elts, value, env)
	case *syntax.Attribute:
		obj, err := fr.eval(t.Value, env)
		if err != nil {
			return err
		}
		return SetAttr(obj, t.Attr, value)
	case *syntax.Subscript:
		obj, err := fr.eval(t.Value, env)
		if err != nil {
			return err
		}
		key, err := fr.evalIndex(t.Index, env)
		if err != nil {
			return err
		}
		return SetItem(obj, key, value)
	}
	return Errorf(TypeError, "cannot assign to %T", target)
}

func (fr *frame) unpack(targets []syntax.Expr, value Object, env *Env) error {
	items, err := Iterate(value)
	if err != nil {
		return Errorf(TypeError, "cannot unpack non-iterable %s object", value.TypeName())
	}
	starAt := -1
	for i, target := range targets {
		if _, ok := target.(*syntax.Starred); ok {
			starAt = i
		}
	}
	if starAt < 0 {
		if len(items) < len(targets) {
			return Errorf(ValueError, "not enough values to unpack (expected %d, got %d)", len(targets), len(items))
		}
		if len(items) > len(targets) {
			return Errorf(ValueError, "too many values to unpack (expected %d)", len(targets))
		}
		for i, target := range targets {
			if err := fr.assign(target, items[i], env); err != nil {
				return err
			}
		}
		return nil
	}
	nAfter := len(targets) - starAt - 1
	if len(items) < len(targets)-1 {
		return Errorf(ValueError, "not enough values to unpack (expected at least %d, got %d)", len(targets)-1, len(items))
	}
	for i := range starAt {
		if err := fr.assign(targets[i], items[i], env); err != nil {
			return err
		}
	}
	rest := &List{Elems: append([]Object(nil), items[starAt:len(items)-nAfter]...)}
	if err := fr.assign(targets[starAt].(*syntax.Starred).Value, rest, env); err != nil {
		return err
	}
	for i := range nAfter {
		if err := fr.assign(targets[starAt+1+i], items[len(items)-nAfter+i], env); err != nil {
			return err
		}
	}
	return nil
}

func (fr *frame) augAssign(s *syntax.AugAssign, env *Env) error {
	value, err := fr.eval(s.Value, env)
	if err != nil {
		return err
	}
	inPlace := func(current Object) (Object, error) {
		if l, ok := current.(*List); ok && s.Op == "+" {
			items, err := Iterate(value)
			if err != nil {
				return nil, err
			}
			l.Elems = append(l.Elems, items...)
			return l, nil
		}
		return BinaryOp(s.Op, current, value)
	}
	switch t := s.Target.(type) {
	case *syntax.Name:
		current, found := env.Lookup(t.ID)
		if !found {
			return nameError(t.ID, env)
		}
		result, err := inPlace(current)
		if err != nil {
			return err
		}
		env.Set(t.ID, result)
		return nil
	case *syntax.Attribute:
		obj, err := fr.eval(t.Value, env)
		if err != nil {
			return err
		}
		current, err := GetAttr(obj, t.Attr)
		if err != nil {
			return err
		}
		result, err := inPlace(current)
		if err != nil {
			return err
		}
		return SetAttr(obj, t.Attr, result)
	case *syntax.Subscript:
		obj, err := fr.eval(t.Value, env)
		if err != nil {
			return err
		}
		key, err := fr.evalIndex(t.Index, env)
		if err != nil {
			return err
		}
		current, err := GetItem(obj, key)
		if err != nil {
			return err
		}
		result, err := inPlace(current)
		if err != nil {
			return err
		}
		return SetItem(obj, key, result)
	}
	return Errorf(TypeError, "illegal expression for augmented assignment")
}

// ConstantValue converts a literal to its object.
func ConstantValue(c *syntax.Constant) Object {
	switch v := c.Value.(type) {
	case bool:
		return Bool(v)
	case int64:
		return Int(v)
	case float64:
		return Float(v)
	case string:
		return Str(v)
	}
	return None
}

func (fr *frame) eval(expr syntax.Expr, env *Env) (Object, error) {
	switch e := expr.(type) {
	case *syntax.Name:
		if value, found := env.Lookup(e.ID); found {
			return value, nil
		}
		return nil, nameError(e.ID, env)

	case *syntax.Constant:
		return ConstantValue(e), nil

	case *syntax.FString:
		var b strings.Builder
		for _, part := range e.Parts {
			switch p := part.(type) {
			case *syntax.Constant:
				b.WriteString(ToStr(ConstantValue(p)))
			case *syntax.FormattedValue:
				value, err := fr.eval(p.Value, env)
				if err != nil {
					return nil, err
				}
				switch p.Conversion {
				case 'r':
					value = Str(Repr(value))
				case 's':
					value = Str(ToStr(value))
				}
				formatted, err := FormatValue(value, p.FormatSpec)
				if err != nil {
					return nil, err
				}
				b.WriteString(formatted)
			}
		}
		return Str(b.String()), nil

	case *syntax.Attribute:
		obj, err := fr.eval(e.Value, env)
		if err != nil {
			return nil, err
		}
		return GetAttr(obj, e.Attr)

	case *syntax.Subscript:
		obj, err := fr.eval(e.Value, env)
		if err != nil {
			return nil, err
		}
		key, err := fr.evalIndex(e.Index, env)
		if err != nil {
			return nil, err
		}
		return GetItem(obj, key)

	case *syntax.Call:
		fn, err := fr.eval(e.Func, env)
		if err != nil {
			return nil, err
		}
		args, err := fr.evalElems(e.Args, env)
		if err != nil {
			return nil, err
		}
		kwargs, err := fr.evalKeywords(e.Keywords, env)
		if err != nil {
			return nil, err
		}
		return Call(fn, args, kwargs)

	case *syntax.BinOp:
		left, err := fr.eval(e.Left, env)
		if err != nil {
			return nil, err
		}
		right, err := fr.eval(e.Right, env)
		if err != nil {
			return nil, err
		}
		return BinaryOp(e.Op, left, right)

	case *syntax.UnaryOp:
		operand, err := fr.eval(e.Operand, env)
		if err != nil {
			return nil, err
		}
		if e.Op == "not" {
			truth, err := Truth(operand)
			return Bool(!truth), err
		}
		return UnaryOp(e.Op, operand)

	case *syntax.BoolOp:
		var value Object
		for _, operand := range e.Values {
			var err error
			value, err = fr.eval(operand, env)
			if err != nil {
				return nil, err
			}
			truth, err := Truth(value)
			if err != nil {
				return nil, err
			}
			if truth == (e.Op == "or") {
				return value, nil
			}
		}
		return value, nil

	case *syntax.Compare:
		left, err := fr.eval(e.Left, env)
		if err != nil {
			return nil, err
		}
		for i, op := range e.Ops {
			right, err := fr.eval(e.Comparators[i], env)
			if err != nil {
				return nil, err
			}
			result, err := Compare(op, left, right)
			if err != nil || i == len(e.Ops)-1 {
				return result, err
			}
			truth, err := Truth(result)
			if err != nil {
				return nil, err
			}
			if !truth {
				return result, nil
			}
			left = right
		}
		return Bool(true), nil

	case *syntax.IfExp:
		test, err := fr.eval(e.Test, env)
		if err != nil {
			return nil, err
		}
		truth, err := Truth(test)
		if err != nil {
			return nil, err
		}
		if truth {
			return fr.eval(e.Body, env)
		}
		return fr.eval(e.Else, env)

	case *syntax.Lambda:
		defaults, err := fr.evalDefaults(e.Params, env)
		if err != nil {
			return nil, err
		}
		return &Function{
			Name:     "<lambda>",
			Params:   e.Params,
			Defaults: defaults,
			Lambda:   e,
			Globals:  fr.it.globalsOf(env),
			Closure:  env,
			Filename: fr.filename,
			Source:   fr.source,
			interp:   fr.it,
		}, nil

	case *syntax.Tuple:
		elems, err := fr.evalElems(e.Elts, env)
		if err != nil {
			return nil, err
		}
		return &Tuple{Elems: elems}, nil

	case *syntax.List:
		elems, err := fr.evalElems(e.Elts, env)
		if err != nil {
			return nil, err
		}
		return &List{Elems: elems}, nil

	case *syntax.Dict:
		d := NewDict()
		for i, keyExpr := range e.Keys {
			value, err := fr.eval(e.Values[i], env)
			if err != nil {
				return nil, err
			}
			if keyExpr == nil {
				other, ok := value.(*Dict)
				if !ok {
					return nil, Errorf(TypeError, "'%s' object is not a mapping", value.TypeName())
				}
				for _, item := range other.Items() {
					if err := d.Set(item[0], item[1]); err != nil {
						return nil, err
					}
				}
				continue
			}
			key, err := fr.eval(keyExpr, env)
			if err != nil {
				return nil, err
			}
			if err := d.Set(key, value); err != nil {
				return nil, err
			}
		}
		return d, nil

	case *syntax.ListComp:
		var elems []Object
		err := fr.comprehension(e.Generators, NewEnv(env), func(scope *Env) error {
			value, err := fr.eval(e.Elt, scope)
			elems = append(elems, value)
			return err
		})
		return &List{Elems: elems}, err

	case *syntax.GeneratorExp:
		var elems []Object
		err := fr.comprehension(e.Generators, NewEnv(env), func(scope *Env) error {
			value, err := fr.eval(e.Elt, scope)
			elems = append(elems, value)
			return err
		})
		return &List{Elems: elems}, err

	case *syntax.DictComp:
		d := NewDict()
		err := fr.comprehension(e.Generators, NewEnv(env), func(scope *Env) error {
			key, err := fr.eval(e.Key, scope)
			if err != nil {
				return err
			}
			value, err := fr.eval(e.Value, scope)
			if err != nil {
				return err
			}
			return d.Set(key, value)
		})
		return d, err

	case *syntax.Starred:
		return nil, Errorf(TypeError, "can't use starred expression here")
	case *syntax.Slice:
		return fr.evalIndex(e, env)
	}
	return nil, Errorf(TypeError, "unsupported expression %T", expr)
}

// evalIndex evaluates a subscript, turning slices into *SliceObject.
func (fr *frame) evalIndex(index syntax.Expr, env *Env) (Object, error) {
	switch idx := index.(type) {
	case *syntax.Slice:
		s := &SliceObject{Start: None, Stop: None, Step: None}
		for _, part := range []struct {
			expr syntax.Expr
			dst  *Object
		}{{idx.Lower, &s.Start}, {idx.Upper, &s.Stop}, {idx.Step, &s.Step}} {
			if part.expr == nil {
				continue
			}
			value, err := fr.eval(part.expr, env)
			if err != nil {
				return nil, err
			}
			*part.dst = value
		}
		return s, nil
	case *syntax.Tuple:
		elems := make([]Object, len(idx.Elts))
		for i, elt := range idx.Elts {
			value, err := fr.evalIndex(elt, env)
			if err != nil {
				return nil, err
			}
			elems[i] = value
		}
		return &Tuple{Elems: elems}, nil
	}
	return fr.eval(index, env)
}

// evalElems evaluates display elements or call arguments, expanding *starred ones.
func (fr *frame) evalElems(exprs []syntax.Expr, env *Env) ([]Object, error) {
	out := make([]Object, 0, len(exprs))
	for _, expr := range exprs {
		if starred, ok := expr.(*syntax.Starred); ok {
			value, err := fr.eval(starred.Value, env)
			if err != nil {
				return nil, err
			}
			items, err := Iterate(value)
			if err != nil {
				return nil, Errorf(TypeError, "argument after * must be an iterable, not %s", value.TypeName())
			}
			out = append(out, items...)
			continue
		}
		value, err := fr.eval(expr, env)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}

func (fr *frame) evalKeywords(keywords []syntax.Keyword, env *Env) ([]Kwarg, error) {
	var kwargs []Kwarg
	for _, kw := range keywords {
		value, err := fr.eval(kw.Value, env)
		if err != nil {
			return nil, err
		}
		if kw.Name != "" {
			kwargs = append(kwargs, Kwarg{Name: kw.Name, Value: value})
			continue
		}
		d, ok := value.(*Dict)
		if !ok {
			return nil, Errorf(TypeError, "argument after ** must be a mapping, not %s", value.TypeName())
		}
		for _, item := range d.Items() {
			key, ok := item[0].(Str)
			if !ok {
				return nil, Errorf(TypeError, "keywords must be strings")
			}
			kwargs = append(kwargs, Kwarg{Name: string(key), Value: item[1]})
		}
	}
	return kwargs, nil
}

// comprehension runs body for every combination of the generator clauses, with the loop
// targets bound in scope.
func (fr *frame) comprehension(gens []*syntax.Comprehension, scope *Env, body func(*Env) error) error {
	if len(gens) == 0 {
		return body(scope)
	}
	gen := gens[0]
	iterable, err := fr.eval(gen.Iter, scope)
	if err != nil {
		return err
	}
	items, err := Iterate(iterable)
	if err != nil {
		return err
	}
items:
	for _, item := range items {
		if err := fr.assign(gen.Target, item, scope); err != nil {
			return err
		}
		for _, cond := range gen.Ifs {
			value, err := fr.eval(cond, scope)
			if err != nil {
				return err
			}
			truth, err := Truth(value)
			if err != nil {
				return err
			}
			if !truth {
				continue items
			}
		}
		if err := fr.comprehension(gens[1:], scope, body); err != nil {
			return err
		}
	}
	return nil
}

// Call invokes the function: parameters are bound in a new scope nested in the closure.
func (f *Function) Call(args []Object, kwargs []Kwarg) (result Object, err error) {
	it := f.interp
	if it.depth.Add(1) > MaxRecursionDepth {
		it.depth.Add(-1)
		return nil, &Error{Kind: UserRaised, ExceptionName: "RecursionError", Msg: "maximum recursion depth exceeded"}
	}
	defer it.depth.Add(-1)

	env := NewEnv(f.Closure)
	if err := f.bind(env, args, kwargs); err != nil {
		return nil, err
	}
	fr := &frame{it: it, filename: f.Filename, source: f.Source}
	if f.Lambda != nil {
		return fr.eval(f.Lambda.Body, env)
	}
	flow, value, err := fr.execStmts(f.Def.Body, env)
	if err != nil {
		return nil, err
	}
	if flow == flowReturn {
		return value, nil
	}
	return None, nil
}

func (f *Function) bind(env *Env, args []Object, kwargs []Kwarg) error {
	params := f.Params
	bound := make([]Object, len(params.Names))
	n := min(len(args), len(params.Names))
	copy(bound, args[:n])
	if len(args) > len(params.Names) {
		if params.VarArg == "" {
			return Errorf(TypeError, "%s() takes %d positional arguments but %d were given", f.Name, len(params.Names), len(args))
		}
	}
	if params.VarArg != "" {
		env.Set(params.VarArg, &Tuple{Elems: append([]Object(nil), args[n:]...)})
	}
	var extra *Dict
	if params.KwArg != "" {
		extra = NewDict()
		env.Set(params.KwArg, extra)
	}
kwargs:
	for _, kw := range kwargs {
		for i, name := range params.Names {
			if name == kw.Name {
				if bound[i] != nil {
					return Errorf(TypeError, "%s() got multiple values for argument '%s'", f.Name, name)
				}
				bound[i] = kw.Value
				continue kwargs
			}
		}
		if extra == nil {
			return Errorf(TypeError, "%s() got an unexpected keyword argument '%s'", f.Name, kw.Name)
		}
		if err := extra.Set(Str(kw.Name), kw.Value); err != nil {
			return err
		}
	}
	firstDefault := len(params.Names) - len(f.Defaults)
	var missing []string
	for i, name := range params.Names {
		if bound[i] == nil && i >= firstDefault {
			bound[i] = f.Defaults[i-firstDefault]
		}
		if bound[i] == nil {
			missing = append(missing, "'"+name+"'")
			continue
		}
		env.Set(name, bound[i])
	}
	if len(missing) > 0 {
		plural := "argument"
		if len(missing) > 1 {
			plural = "arguments"
		}
		return Errorf(TypeError, "%s() missing %d required positional %s: %s", f.Name, len(missing), plural, strings.Join(missing, " and "))
	}
	return nil
}
