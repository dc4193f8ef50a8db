// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlang

import (
	"slices"
	"sort"
	"strings"

	"github.com/gomlx/jitfallback/pkg/core/kernels"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// List is a mutable sequence.
type List struct {
	Elems []Object
}

// Tuple is an immutable sequence.
type Tuple struct {
	Elems []Object
}

// NewTuple creates a tuple of the given elements.
func NewTuple(elems ...Object) *Tuple { return &Tuple{Elems: elems} }

// NewList creates a list of the given elements.
func NewList(elems ...Object) *List { return &List{Elems: elems} }

func (*List) TypeName() string  { return "list" }
func (*Tuple) TypeName() string { return "tuple" }

func (l *List) Len() int  { return len(l.Elems) }
func (t *Tuple) Len() int { return len(t.Elems) }

func (l *List) Iter() ([]Object, error)  { return slices.Clone(l.Elems), nil }
func (t *Tuple) Iter() ([]Object, error) { return slices.Clone(t.Elems), nil }

func (l *List) GetItem(key Object) (Object, error) {
	return sequenceGetItem("list", l.Elems, key, func(elems []Object) Object { return &List{Elems: elems} })
}

func (t *Tuple) GetItem(key Object) (Object, error) {
	return sequenceGetItem("tuple", t.Elems, key, func(elems []Object) Object { return &Tuple{Elems: elems} })
}

// sequenceGetItem implements integer and slice indexing of lists and tuples.
func sequenceGetItem(kind string, elems []Object, key Object, build func([]Object) Object) (Object, error) {
	if slice, ok := key.(*SliceObject); ok {
		indices, err := slice.Indices(len(elems))
		if err != nil {
			return nil, err
		}
		out := make([]Object, len(indices))
		for i, idx := range indices {
			out[i] = elems[idx]
		}
		return build(out), nil
	}
	idx, err := indexValue(key, kind)
	if err != nil {
		return nil, err
	}
	pos, err := kernels.NormalizeIndex(idx, len(elems), kind)
	if err != nil {
		return nil, Errorf(IndexError, "%s index out of range", kind)
	}
	return elems[pos], nil
}

// indexValue converts an index object (int, bool or a scalar integer tensor) to an int.
func indexValue(key Object, container string) (int, error) {
	switch k := key.(type) {
	case Int:
		return int(k), nil
	case Bool:
		if k {
			return 1, nil
		}
		return 0, nil
	case *Tensor:
		if k.Value.Rank() == 0 && !k.Value.DType().IsFloat() {
			return int(tensorScalarInt(k.Value)), nil
		}
	}
	return 0, Errorf(TypeError, "%s indices must be integers or slices, not %s", container, key.TypeName())
}

func (l *List) SetItem(key, value Object) error {
	idx, err := indexValue(key, "list")
	if err != nil {
		return err
	}
	pos, err := kernels.NormalizeIndex(idx, len(l.Elems), "list")
	if err != nil {
		return Errorf(IndexError, "list assignment index out of range")
	}
	l.Elems[pos] = value
	return nil
}

func (l *List) Attr(name string) (Object, bool) {
	m := func(fn func(args []Object, kwargs []Kwarg) (Object, error)) (Object, bool) {
		return &Builtin{Name: name, Fn: fn, Self: l}, true
	}
	switch name {
	case "append":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs("append", args, kwargs, 1, "object")
			if err != nil {
				return nil, err
			}
			l.Elems = append(l.Elems, a[0])
			return None, nil
		})
	case "extend":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs("extend", args, kwargs, 1, "iterable")
			if err != nil {
				return nil, err
			}
			items, err := Iterate(a[0])
			if err != nil {
				return nil, err
			}
			l.Elems = append(l.Elems, items...)
			return None, nil
		})
	case "insert":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs("insert", args, kwargs, 2, "index", "object")
			if err != nil {
				return nil, err
			}
			idx, err := indexValue(a[0], "list")
			if err != nil {
				return nil, err
			}
			if idx < 0 {
				idx = max(0, idx+len(l.Elems))
			}
			idx = min(idx, len(l.Elems))
			l.Elems = slices.Insert(l.Elems, idx, a[1])
			return None, nil
		})
	case "pop":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs("pop", args, kwargs, 0, "index")
			if err != nil {
				return nil, err
			}
			if len(l.Elems) == 0 {
				return nil, Errorf(IndexError, "pop from empty list")
			}
			idx := len(l.Elems) - 1
			if a[0] != nil {
				if idx, err = indexValue(a[0], "list"); err != nil {
					return nil, err
				}
			}
			pos, err := kernels.NormalizeIndex(idx, len(l.Elems), "pop")
			if err != nil {
				return nil, Errorf(IndexError, "pop index out of range")
			}
			value := l.Elems[pos]
			l.Elems = slices.Delete(l.Elems, pos, pos+1)
			return value, nil
		})
	case "reverse":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			slices.Reverse(l.Elems)
			return None, nil
		})
	case "copy":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			return &List{Elems: slices.Clone(l.Elems)}, nil
		})
	case "sort":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			sorted, err := sortObjects(l.Elems, kwargs)
			if err != nil {
				return nil, err
			}
			l.Elems = sorted
			return None, nil
		})
	case "index", "count":
		return sequenceMethod(l, name, l.Elems)
	}
	return nil, false
}

func (l *List) AttrNames() []string {
	return []string{"append", "copy", "count", "extend", "index", "insert", "pop", "reverse", "sort"}
}

func (t *Tuple) Attr(name string) (Object, bool) {
	if name == "index" || name == "count" {
		return sequenceMethod(t, name, t.Elems)
	}
	return nil, false
}

func (t *Tuple) AttrNames() []string { return []string{"count", "index"} }

func sequenceMethod(self Object, name string, elems []Object) (Object, bool) {
	return &Builtin{Name: name, Self: self, Fn: func(args []Object, kwargs []Kwarg) (Object, error) {
		a, err := parseArgs(name, args, kwargs, 1, "value")
		if err != nil {
			return nil, err
		}
		count := 0
		for i, e := range elems {
			eq, err := Equal(e, a[0])
			if err != nil {
				return nil, err
			}
			if eq {
				if name == "index" {
					return Int(i), nil
				}
				count++
			}
		}
		if name == "index" {
			return nil, Errorf(ValueError, "%s is not in %s", Repr(a[0]), self.TypeName())
		}
		return Int(count), nil
	}}, true
}

// sortObjects sorts with the optional "key" and "reverse" keyword arguments.
func sortObjects(elems []Object, kwargs []Kwarg) ([]Object, error) {
	var keyFn, reverse Object = None, Bool(false)
	for _, kw := range kwargs {
		switch kw.Name {
		case "key":
			keyFn = kw.Value
		case "reverse":
			reverse = kw.Value
		default:
			return nil, Errorf(TypeError, "sort() got an unexpected keyword argument '%s'", kw.Name)
		}
	}
	keys := slices.Clone(elems)
	if !IsNone(keyFn) {
		for i, e := range elems {
			k, err := Call(keyFn, []Object{e}, nil)
			if err != nil {
				return nil, err
			}
			keys[i] = k
		}
	}
	order := make([]int, len(elems))
	for i := range order {
		order[i] = i
	}
	var sortErr error
	sort.SliceStable(order, func(i, j int) bool {
		less, err := Compare("<", keys[order[i]], keys[order[j]])
		if err != nil {
			sortErr = err
			return false
		}
		truth, _ := Truth(less)
		return truth
	})
	if sortErr != nil {
		return nil, sortErr
	}
	out := make([]Object, len(elems))
	for i, idx := range order {
		out[i] = elems[idx]
	}
	if rev, _ := Truth(reverse); rev {
		slices.Reverse(out)
	}
	return out, nil
}

// Dict is an insertion ordered mapping. Keys must be hashable: None, bool, int, float, str,
// tuples of hashable values, types and dtypes.
type Dict struct {
	m *orderedmap.OrderedMap[string, dictEntry]
}

type dictEntry struct {
	Key, Value Object
}

// NewDict creates an empty dict.
func NewDict() *Dict {
	return &Dict{m: orderedmap.New[string, dictEntry]()}
}

func (*Dict) TypeName() string { return "dict" }

func (d *Dict) Len() int { return d.m.Len() }

// Keys in insertion order.
func (d *Dict) Keys() []Object {
	keys := make([]Object, 0, d.m.Len())
	for pair := d.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Value.Key)
	}
	return keys
}

// Items returns the (key, value) pairs in insertion order.
func (d *Dict) Items() [][2]Object {
	items := make([][2]Object, 0, d.m.Len())
	for pair := d.m.Oldest(); pair != nil; pair = pair.Next() {
		items = append(items, [2]Object{pair.Value.Key, pair.Value.Value})
	}
	return items
}

func (d *Dict) Iter() ([]Object, error) { return d.Keys(), nil }

// Get returns the value for key.
func (d *Dict) Get(key Object) (Object, bool, error) {
	hk, err := hashKey(key)
	if err != nil {
		return nil, false, err
	}
	entry, found := d.m.Get(hk)
	if !found {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// Set inserts or replaces key. Replacing keeps the original insertion position.
func (d *Dict) Set(key, value Object) error {
	hk, err := hashKey(key)
	if err != nil {
		return err
	}
	if entry, found := d.m.Get(hk); found {
		key = entry.Key
	}
	d.m.Set(hk, dictEntry{Key: key, Value: value})
	return nil
}

// Delete removes key, returning the removed value.
func (d *Dict) Delete(key Object) (Object, bool, error) {
	hk, err := hashKey(key)
	if err != nil {
		return nil, false, err
	}
	entry, found := d.m.Delete(hk)
	if !found {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (d *Dict) GetItem(key Object) (Object, error) {
	value, found, err := d.Get(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &Error{Kind: KeyError, ExceptionName: "KeyError", Msg: Repr(key)}
	}
	return value, nil
}

func (d *Dict) SetItem(key, value Object) error { return d.Set(key, value) }

// Copy returns a shallow copy.
func (d *Dict) Copy() *Dict {
	out := NewDict()
	for pair := d.m.Oldest(); pair != nil; pair = pair.Next() {
		out.m.Set(pair.Key, pair.Value)
	}
	return out
}

func (d *Dict) Attr(name string) (Object, bool) {
	m := func(fn func(args []Object, kwargs []Kwarg) (Object, error)) (Object, bool) {
		return &Builtin{Name: name, Fn: fn, Self: d}, true
	}
	switch name {
	case "keys":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) { return &List{Elems: d.Keys()}, nil })
	case "values":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			var values []Object
			for _, item := range d.Items() {
				values = append(values, item[1])
			}
			return &List{Elems: values}, nil
		})
	case "items":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			var items []Object
			for _, item := range d.Items() {
				items = append(items, NewTuple(item[0], item[1]))
			}
			return &List{Elems: items}, nil
		})
	case "get":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs("get", args, kwargs, 1, "key", "default")
			if err != nil {
				return nil, err
			}
			value, found, err := d.Get(a[0])
			if err != nil || found {
				return value, err
			}
			if a[1] == nil {
				return None, nil
			}
			return a[1], nil
		})
	case "pop":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs("pop", args, kwargs, 1, "key", "default")
			if err != nil {
				return nil, err
			}
			value, found, err := d.Delete(a[0])
			if err != nil || found {
				return value, err
			}
			if a[1] == nil {
				return nil, &Error{Kind: KeyError, ExceptionName: "KeyError", Msg: Repr(a[0])}
			}
			return a[1], nil
		})
	case "setdefault":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs("setdefault", args, kwargs, 1, "key", "default")
			if err != nil {
				return nil, err
			}
			value, found, err := d.Get(a[0])
			if err != nil || found {
				return value, err
			}
			if a[1] == nil {
				a[1] = None
			}
			return a[1], d.Set(a[0], a[1])
		})
	case "update":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs("update", args, nil, 0, "other")
			if err != nil {
				return nil, err
			}
			if other, ok := a[0].(*Dict); ok {
				for _, item := range other.Items() {
					if err := d.Set(item[0], item[1]); err != nil {
						return nil, err
					}
				}
			} else if a[0] != nil {
				return nil, Errorf(TypeError, "dict.update() argument must be a dict, not %s", a[0].TypeName())
			}
			for _, kw := range kwargs {
				if err := d.Set(Str(kw.Name), kw.Value); err != nil {
					return nil, err
				}
			}
			return None, nil
		})
	case "copy":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) { return d.Copy(), nil })
	}
	return nil, false
}

func (d *Dict) AttrNames() []string {
	return []string{"copy", "get", "items", "keys", "pop", "setdefault", "update", "values"}
}

// HashKey returns the canonical key a Dict stores obj under, or a TypeError for unhashable values.
func HashKey(obj Object) (string, error) { return hashKey(obj) }

// hashKey returns the canonical key used to store obj in a Dict. Numbers that compare equal
// share a key, as in Python.
func hashKey(obj Object) (string, error) {
	switch v := obj.(type) {
	case *NoneType:
		return "N", nil
	case Bool:
		if v {
			return "i1", nil
		}
		return "i0", nil
	case Int:
		return "i" + Repr(v), nil
	case Float:
		if float64(v) == float64(int64(v)) {
			return "i" + Repr(Int(int64(v))), nil
		}
		return "f" + Repr(v), nil
	case Str:
		return "s" + string(v), nil
	case *Tuple:
		var b strings.Builder
		b.WriteString("t(")
		for _, e := range v.Elems {
			k, err := hashKey(e)
			if err != nil {
				return "", err
			}
			b.WriteString(k)
			b.WriteByte(0)
		}
		b.WriteString(")")
		return b.String(), nil
	case *Type:
		return "T" + v.Name, nil
	case *DType:
		return "d" + v.DType.String(), nil
	}
	return "", Errorf(TypeError, "unhashable type: '%s'", obj.TypeName())
}

// SliceObject is the value of a "start:stop:step" subscript.
type SliceObject struct {
	Start, Stop, Step Object
}

func (*SliceObject) TypeName() string { return "slice" }

func (s *SliceObject) Repr() string {
	return "slice(" + Repr(orNone(s.Start)) + ", " + Repr(orNone(s.Stop)) + ", " + Repr(orNone(s.Step)) + ")"
}

func orNone(obj Object) Object {
	if obj == nil {
		return None
	}
	return obj
}

// Indices resolves the slice against a sequence length.
func (s *SliceObject) Indices(length int) ([]int, error) {
	bound := func(obj Object) (*int, error) {
		if IsNone(obj) {
			return nil, nil
		}
		v, err := indexValue(obj, "slice")
		if err != nil {
			return nil, Errorf(TypeError, "slice indices must be integers or None")
		}
		return &v, nil
	}
	start, err := bound(s.Start)
	if err != nil {
		return nil, err
	}
	stop, err := bound(s.Stop)
	if err != nil {
		return nil, err
	}
	step, err := bound(s.Step)
	if err != nil {
		return nil, err
	}
	indices, err := kernels.SliceIndices(length, start, stop, step)
	return indices, fromKernelError(err)
}

// Range is the result of range().
type Range struct {
	Start, Stop, Step int64
}

func (*Range) TypeName() string { return "range" }

func (r *Range) Len() int {
	if r.Step > 0 && r.Stop > r.Start {
		return int((r.Stop - r.Start + r.Step - 1) / r.Step)
	}
	if r.Step < 0 && r.Start > r.Stop {
		return int((r.Start - r.Stop - r.Step - 1) / -r.Step)
	}
	return 0
}

func (r *Range) Iter() ([]Object, error) {
	n := r.Len()
	out := make([]Object, n)
	for i := range n {
		out[i] = Int(r.Start + int64(i)*r.Step)
	}
	return out, nil
}

func (r *Range) GetItem(key Object) (Object, error) {
	items, _ := r.Iter()
	return sequenceGetItem("range object", items, key, func(elems []Object) Object { return &List{Elems: elems} })
}

func (r *Range) Repr() string {
	if r.Step == 1 {
		return "range(" + Repr(Int(r.Start)) + ", " + Repr(Int(r.Stop)) + ")"
	}
	return "range(" + Repr(Int(r.Start)) + ", " + Repr(Int(r.Stop)) + ", " + Repr(Int(r.Step)) + ")"
}
