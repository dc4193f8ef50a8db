// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlang

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Repr implements repr().
func Repr(obj Object) string {
	switch o := obj.(type) {
	case nil, *NoneType:
		return "None"
	case Bool:
		if o {
			return "True"
		}
		return "False"
	case Int:
		return strconv.FormatInt(int64(o), 10)
	case Float:
		return formatFloat(float64(o))
	case Str:
		return quoteString(string(o))
	case *List:
		return "[" + joinRepr(o.Elems) + "]"
	case *Tuple:
		if len(o.Elems) == 1 {
			return "(" + Repr(o.Elems[0]) + ",)"
		}
		return "(" + joinRepr(o.Elems) + ")"
	case *Dict:
		parts := make([]string, 0, o.Len())
		for _, item := range o.Items() {
			parts = append(parts, Repr(item[0])+": "+Repr(item[1]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case Reprer:
		return o.Repr()
	case *Opaque:
		return fmt.Sprintf("<%T object>", o.Value)
	}
	return "<" + obj.TypeName() + " object>"
}

// ToStr implements str().
func ToStr(obj Object) string {
	switch o := obj.(type) {
	case Str:
		return string(o)
	case *Tensor:
		return o.Value.ValueString()
	case *Exception:
		return o.Message()
	}
	return Repr(obj)
}

func joinRepr(elems []Object) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = Repr(e)
	}
	return strings.Join(parts, ", ")
}

// formatFloat follows Python's repr for floats: shortest round-trip digits, always with a
// decimal point or exponent.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

func quoteString(s string) string {
	quote := "'"
	if strings.Contains(s, "'") && !strings.Contains(s, "\"") {
		quote = "\""
	}
	var b strings.Builder
	b.WriteString(quote)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\r':
			b.WriteString(`\r`)
		case string(r) == quote:
			b.WriteString(`\` + quote)
		case r < 0x20:
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteString(quote)
	return b.String()
}

// FormatValue implements format(obj, spec) for the common subset of the format mini-language:
// [[fill]align][sign][0][width][,][.precision][type], with types d, f, e, g, %, s and r.
func FormatValue(obj Object, spec string) (string, error) {
	if spec == "" {
		return ToStr(obj), nil
	}
	fill, align := " ", byte(0)
	rest := spec
	if len(rest) >= 2 && strings.ContainsRune("<>^=", rune(rest[1])) {
		fill, align, rest = rest[:1], rest[1], rest[2:]
	} else if len(rest) >= 1 && strings.ContainsRune("<>^=", rune(rest[0])) {
		align, rest = rest[0], rest[1:]
	}
	sign := byte('-')
	if len(rest) > 0 && (rest[0] == '+' || rest[0] == ' ' || rest[0] == '-') {
		sign, rest = rest[0], rest[1:]
	}
	if len(rest) > 0 && rest[0] == '0' {
		fill, rest = "0", rest[1:]
		if align == 0 {
			align = '='
		}
	}
	width := 0
	for len(rest) > 0 && rest[0] >= '0' && rest[0] <= '9' {
		width = width*10 + int(rest[0]-'0')
		rest = rest[1:]
	}
	grouping := false
	if len(rest) > 0 && rest[0] == ',' {
		grouping, rest = true, rest[1:]
	}
	precision := -1
	if len(rest) > 0 && rest[0] == '.' {
		rest = rest[1:]
		precision = 0
		for len(rest) > 0 && rest[0] >= '0' && rest[0] <= '9' {
			precision = precision*10 + int(rest[0]-'0')
			rest = rest[1:]
		}
	}
	verb := byte(0)
	if len(rest) == 1 {
		verb, rest = rest[0], ""
	}
	if rest != "" {
		return "", Errorf(ValueError, "Invalid format specifier '%s' for object of type '%s'", spec, obj.TypeName())
	}

	var body string
	numericValue := false
	if t, ok := obj.(*Tensor); ok && t.Value.Size() == 1 {
		flat, _ := t.Value.Reshape()
		obj = TensorToList(flat)
	}
	i, f, isFloat, isNum := numeric(obj)
	switch {
	case verb == 's' || verb == 0 && !isNum:
		if isNum && verb == 's' {
			return "", Errorf(ValueError, "Unknown format code 's' for object of type '%s'", obj.TypeName())
		}
		body = ToStr(obj)
		if precision >= 0 && precision < len(body) {
			body = body[:precision]
		}
	case verb == 'r':
		body = Repr(obj)
	case !isNum:
		return "", Errorf(ValueError, "Unknown format code '%c' for object of type '%s'", verb, obj.TypeName())
	case verb == 'd':
		if isFloat {
			return "", Errorf(ValueError, "Unknown format code 'd' for object of type 'float'")
		}
		body, numericValue = strconv.FormatUint(absUint(i), 10), true
	case verb == 0 && !isFloat && precision < 0:
		body, numericValue = strconv.FormatUint(absUint(i), 10), true
	default:
		if precision < 0 {
			precision = 6
		}
		numericValue = true
		v := math.Abs(f)
		switch verb {
		case 'f', 'F':
			body = strconv.FormatFloat(v, 'f', precision, 64)
		case 'e', 'E':
			body = strconv.FormatFloat(v, 'e', precision, 64)
		case '%':
			body = strconv.FormatFloat(v*100, 'f', precision, 64) + "%"
		case 'g', 'G', 0:
			if verb == 0 && precision == 6 && !strings.Contains(spec, ".") {
				body = strings.TrimPrefix(formatFloat(v), "-")
			} else {
				body = strconv.FormatFloat(v, 'g', max(precision, 1), 64)
			}
		default:
			return "", Errorf(ValueError, "Unknown format code '%c' for object of type '%s'", verb, obj.TypeName())
		}
	}
	if numericValue {
		if grouping {
			body = groupThousands(body)
		}
		negative := f < 0 || i < 0
		switch {
		case negative:
			body = "-" + body
		case sign == '+':
			body = "+" + body
		case sign == ' ':
			body = " " + body
		}
		if align == 0 {
			align = '>'
		}
	} else if align == 0 {
		align = '<'
	}
	pad := width - len([]rune(body))
	if pad <= 0 {
		return body, nil
	}
	switch align {
	case '<':
		return body + strings.Repeat(fill, pad), nil
	case '^':
		return strings.Repeat(fill, pad/2) + body + strings.Repeat(fill, pad-pad/2), nil
	case '=':
		if numericValue && len(body) > 0 && strings.ContainsRune("+- ", rune(body[0])) {
			return body[:1] + strings.Repeat(fill, pad) + body[1:], nil
		}
	}
	return strings.Repeat(fill, pad) + body, nil
}

func groupThousands(digits string) string {
	intPart, frac := digits, ""
	if idx := strings.IndexAny(digits, ".e%"); idx >= 0 {
		intPart, frac = digits[:idx], digits[idx:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String() + frac
}

// formatString implements str.format with positional "{}"/"{0}" and keyword "{name}" fields.
func formatString(format string, args []Object, kwargs []Kwarg) (string, error) {
	var b strings.Builder
	auto := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c == '}' {
			if i+1 < len(format) && format[i+1] == '}' {
				i++
			}
			b.WriteByte('}')
			continue
		}
		if c != '{' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(format) && format[i+1] == '{' {
			b.WriteByte('{')
			i++
			continue
		}
		end := strings.IndexByte(format[i:], '}')
		if end < 0 {
			return "", Errorf(ValueError, "Single '{' encountered in format string")
		}
		field := format[i+1 : i+end]
		i += end
		spec := ""
		if idx := strings.IndexByte(field, ':'); idx >= 0 {
			field, spec = field[:idx], field[idx+1:]
		}
		var value Object
		switch {
		case field == "":
			if auto >= len(args) {
				return "", Errorf(IndexError, "Replacement index %d out of range for positional args tuple", auto)
			}
			value = args[auto]
			auto++
		case field[0] >= '0' && field[0] <= '9':
			idx, err := strconv.Atoi(field)
			if err != nil || idx >= len(args) {
				return "", Errorf(IndexError, "Replacement index %s out of range for positional args tuple", field)
			}
			value = args[idx]
		default:
			for _, kw := range kwargs {
				if kw.Name == field {
					value = kw.Value
				}
			}
			if value == nil {
				return "", &Error{Kind: KeyError, ExceptionName: "KeyError", Msg: Repr(Str(field))}
			}
		}
		formatted, err := FormatValue(value, spec)
		if err != nil {
			return "", err
		}
		b.WriteString(formatted)
	}
	return b.String(), nil
}
