// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlang

import (
	"slices"

	"github.com/gomlx/jitfallback/pkg/hostlang/syntax"
)

// Object is any value manipulated by the interpreter.
//
// Behavior beyond TypeName is opted into through the capability interfaces below (Attributer,
// Indexer, ...). Go values injected by users only need to implement Object plus whichever
// capabilities they support.
type Object interface {
	TypeName() string
}

// Attributer objects expose attributes. AttrNames is used to suggest names on AttributeError.
type Attributer interface {
	Object
	Attr(name string) (Object, bool)
	AttrNames() []string
}

// AttrSetter objects accept attribute assignment.
type AttrSetter interface {
	Object
	SetAttr(name string, value Object) error
}

// Indexer objects support "obj[key]".
type Indexer interface {
	Object
	GetItem(key Object) (Object, error)
}

// ItemSetter objects support "obj[key] = value".
type ItemSetter interface {
	Object
	SetItem(key, value Object) error
}

// Caller objects can be called.
type Caller interface {
	Object
	Call(args []Object, kwargs []Kwarg) (Object, error)
}

// Lener objects support len().
type Lener interface {
	Object
	Len() int
}

// Iterable objects can be iterated. Iteration is eager.
type Iterable interface {
	Object
	Iter() ([]Object, error)
}

// Reprer objects provide their own repr().
type Reprer interface {
	Object
	Repr() string
}

// Kwarg is a keyword argument of a call.
type Kwarg struct {
	Name  string
	Value Object
}

// NoneType is the type of None.
type NoneType struct{}

// None is the only instance of NoneType.
var None = &NoneType{}

func (*NoneType) TypeName() string { return "NoneType" }

type (
	Bool  bool
	Int   int64
	Float float64
	Str   string
)

func (Bool) TypeName() string  { return "bool" }
func (Int) TypeName() string   { return "int" }
func (Float) TypeName() string { return "float" }
func (Str) TypeName() string   { return "str" }

// IsNone returns whether obj is None (a nil Object counts as None).
func IsNone(obj Object) bool {
	return obj == nil || obj == Object(None)
}

// Function is a function defined in hostlang, by "def" or "lambda".
type Function struct {
	Name     string
	Params   *syntax.Params
	Defaults []Object

	// Def is set for functions defined with "def", Lambda for lambdas.
	Def    *syntax.FunctionDef
	Lambda *syntax.Lambda

	// Globals is the module scope the function was defined in, Closure the innermost scope.
	Globals *Env
	Closure *Env

	// Source of the defining module, used to report locations.
	Filename, Source string

	interp *Interpreter
}

func (*Function) TypeName() string { return "function" }

// Interpreter that defined the function.
func (f *Function) Interpreter() *Interpreter { return f.interp }

func (f *Function) Repr() string { return "<function " + f.Name + ">" }

// Builtin is a function implemented in Go.
type Builtin struct {
	Name string
	Fn   func(args []Object, kwargs []Kwarg) (Object, error)

	// Impure builtins have side effects (I/O) and must never be evaluated at compile time.
	Impure bool

	// Native names the graph primitive implementing the builtin, if any.
	Native string

	// Self is the receiver for builtin methods, only used for repr.
	Self Object
}

func (b *Builtin) TypeName() string {
	if b.Self != nil {
		return "builtin_method"
	}
	return "builtin_function_or_method"
}

func (b *Builtin) Call(args []Object, kwargs []Kwarg) (Object, error) { return b.Fn(args, kwargs) }

func (b *Builtin) Repr() string {
	if b.Self != nil {
		return "<built-in method " + b.Name + " of " + b.Self.TypeName() + " object>"
	}
	return "<built-in function " + b.Name + ">"
}

// Module is an importable namespace.
type Module struct {
	Name  string
	names []string
	attrs map[string]Object
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{Name: name, attrs: make(map[string]Object)}
}

func (*Module) TypeName() string { return "module" }

// Set defines or replaces a module attribute.
func (m *Module) Set(name string, value Object) {
	if _, found := m.attrs[name]; !found {
		m.names = append(m.names, name)
	}
	m.attrs[name] = value
}

func (m *Module) Attr(name string) (Object, bool) {
	v, found := m.attrs[name]
	return v, found
}

func (m *Module) AttrNames() []string { return slices.Clone(m.names) }

func (m *Module) SetAttr(name string, value Object) error {
	m.Set(name, value)
	return nil
}

func (m *Module) Repr() string { return "<module '" + m.Name + "'>" }

// Type is a class object: the built-in types and the exception classes.
type Type struct {
	Name string

	// New constructs an instance when the type is called.
	New func(args []Object, kwargs []Kwarg) (Object, error)

	// Instance reports whether obj is an instance of the type.
	Instance func(obj Object) bool

	// Exception classes: Base is the parent class and Kind the ErrorKind raised.
	Base      *Type
	Exception bool
	Kind      ErrorKind
}

func (*Type) TypeName() string { return "type" }

func (t *Type) Repr() string { return "<class '" + t.Name + "'>" }

func (t *Type) Call(args []Object, kwargs []Kwarg) (Object, error) {
	if t.New == nil {
		return nil, Errorf(TypeError, "cannot create '%s' instances", t.Name)
	}
	return t.New(args, kwargs)
}

// IsSubclass reports whether t is other or derives from it.
func (t *Type) IsSubclass(other *Type) bool {
	for c := t; c != nil; c = c.Base {
		if c == other {
			return true
		}
	}
	return false
}

// Exception is an instance of an exception class.
type Exception struct {
	Type *Type
	Args []Object
}

func (e *Exception) TypeName() string { return e.Type.Name }

func (e *Exception) Attr(name string) (Object, bool) {
	if name == "args" {
		return &Tuple{Elems: slices.Clone(e.Args)}, true
	}
	return nil, false
}

func (e *Exception) AttrNames() []string { return []string{"args"} }

// Message is str() of the exception.
func (e *Exception) Message() string {
	switch len(e.Args) {
	case 0:
		return ""
	case 1:
		return ToStr(e.Args[0])
	}
	return Repr(&Tuple{Elems: e.Args})
}

func (e *Exception) Repr() string {
	return e.Type.Name + Repr(&Tuple{Elems: e.Args})
}

// ToError converts the exception to the Go error carried out of the interpreter.
func (e *Exception) ToError() *Error {
	kind := e.Type.Kind
	msg := e.Message()
	if kind == KeyError && len(e.Args) == 1 {
		msg = Repr(e.Args[0])
	}
	return &Error{Kind: kind, ExceptionName: e.Type.Name, Msg: msg}
}

// Opaque wraps an arbitrary Go value with no host capabilities.
type Opaque struct {
	Value any
}

func (o *Opaque) TypeName() string { return "object" }

// FromGo converts a Go value to an Object: Objects are returned as is, Go scalars and strings
// become the corresponding host scalars and anything else is wrapped as *Opaque.
func FromGo(value any) Object {
	switch v := value.(type) {
	case nil:
		return None
	case Object:
		return v
	case bool:
		return Bool(v)
	case int:
		return Int(v)
	case int32:
		return Int(v)
	case int64:
		return Int(v)
	case float32:
		return Float(v)
	case float64:
		return Float(v)
	case string:
		return Str(v)
	}
	return &Opaque{Value: value}
}

// IsBuiltinObject reports whether obj is one of the interpreter's own object types, as opposed
// to a user supplied Go value.
func IsBuiltinObject(obj Object) bool {
	switch obj.(type) {
	case *NoneType, Bool, Int, Float, Str, *List, *Tuple, *Dict, *SliceObject, *Range, *Tensor, *DType,
		*Function, *Builtin, *Module, *Type, *Exception:
		return true
	}
	return false
}
