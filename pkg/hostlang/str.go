// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlang

import (
	"strings"
)

var strAttrNames = []string{"endswith", "format", "join", "lower", "replace", "split", "startswith", "strip", "upper"}

func (s Str) AttrNames() []string { return append([]string(nil), strAttrNames...) }

func (s Str) Attr(name string) (Object, bool) {
	m := func(fn func(args []Object, kwargs []Kwarg) (Object, error)) (Object, bool) {
		return &Builtin{Name: name, Fn: fn, Self: s}, true
	}
	str := string(s)
	switch name {
	case "upper":
		return m(func([]Object, []Kwarg) (Object, error) { return Str(strings.ToUpper(str)), nil })
	case "lower":
		return m(func([]Object, []Kwarg) (Object, error) { return Str(strings.ToLower(str)), nil })
	case "strip":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs("strip", args, kwargs, 0, "chars")
			if err != nil {
				return nil, err
			}
			if IsNone(a[0]) {
				return Str(strings.TrimSpace(str)), nil
			}
			chars, ok := a[0].(Str)
			if !ok {
				return nil, Errorf(TypeError, "strip arg must be None or str")
			}
			return Str(strings.Trim(str, string(chars))), nil
		})
	case "split":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs("split", args, kwargs, 0, "sep")
			if err != nil {
				return nil, err
			}
			var parts []string
			if IsNone(a[0]) {
				parts = strings.Fields(str)
			} else if sep, ok := a[0].(Str); ok && sep != "" {
				parts = strings.Split(str, string(sep))
			} else {
				return nil, Errorf(ValueError, "empty separator")
			}
			out := make([]Object, len(parts))
			for i, p := range parts {
				out[i] = Str(p)
			}
			return &List{Elems: out}, nil
		})
	case "join":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs("join", args, kwargs, 1, "iterable")
			if err != nil {
				return nil, err
			}
			items, err := Iterate(a[0])
			if err != nil {
				return nil, err
			}
			parts := make([]string, len(items))
			for i, item := range items {
				itemStr, ok := item.(Str)
				if !ok {
					return nil, Errorf(TypeError, "sequence item %d: expected str instance, %s found", i, item.TypeName())
				}
				parts[i] = string(itemStr)
			}
			return Str(strings.Join(parts, str)), nil
		})
	case "startswith", "endswith":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs(name, args, kwargs, 1, "prefix")
			if err != nil {
				return nil, err
			}
			affix, ok := a[0].(Str)
			if !ok {
				return nil, Errorf(TypeError, "%s arg must be str, not %s", name, a[0].TypeName())
			}
			if name == "startswith" {
				return Bool(strings.HasPrefix(str, string(affix))), nil
			}
			return Bool(strings.HasSuffix(str, string(affix))), nil
		})
	case "replace":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			a, err := parseArgs("replace", args, kwargs, 2, "old", "new")
			if err != nil {
				return nil, err
			}
			oldStr, ok1 := a[0].(Str)
			newStr, ok2 := a[1].(Str)
			if !ok1 || !ok2 {
				return nil, Errorf(TypeError, "replace() arguments must be str")
			}
			return Str(strings.ReplaceAll(str, string(oldStr), string(newStr))), nil
		})
	case "format":
		return m(func(args []Object, kwargs []Kwarg) (Object, error) {
			out, err := formatString(str, args, kwargs)
			return Str(out), err
		})
	}
	return nil, false
}
