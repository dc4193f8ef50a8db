// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/x448/float16"
)

// maxPrintedElements per axis before eliding with "...".
const maxPrintedElements = 6

var typeFloat16 = reflect.TypeOf(float16.Float16(0))

// String implements fmt.Stringer, e.g.: "Tensor(shape=[2], dtype=Float32, value=[1 2.5])".
func (t *Tensor) String() string {
	if t == nil {
		return "Tensor(nil)"
	}
	return fmt.Sprintf("Tensor(shape=%v, dtype=%s, value=%s)", dimsString(t.shape.Dimensions), t.DType(), t.ValueString())
}

func dimsString(dims []int) string {
	parts := make([]string, len(dims))
	for ii, d := range dims {
		parts[ii] = strconv.Itoa(d)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ValueString formats the elements in numpy style, eliding large axes.
func (t *Tensor) ValueString() string {
	values := reflect.ValueOf(t.flat)
	var sb strings.Builder
	formatElem := func(v reflect.Value) {
		if v.Type() == typeFloat16 {
			sb.WriteString(strconv.FormatFloat(float64(v.Interface().(float16.Float16).Float32()), 'g', 6, 32))
			return
		}
		switch v.Kind() {
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			sb.WriteString(strconv.FormatInt(v.Int(), 10))
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			sb.WriteString(strconv.FormatUint(v.Uint(), 10))
		case reflect.Float32:
			sb.WriteString(strconv.FormatFloat(v.Float(), 'g', 6, 32))
		case reflect.Float64:
			sb.WriteString(strconv.FormatFloat(v.Float(), 'g', 8, 64))
		case reflect.Bool:
			if v.Bool() {
				sb.WriteString("True")
			} else {
				sb.WriteString("False")
			}
		default:
			fmt.Fprintf(&sb, "%v", v.Interface())
		}
	}
	dims := t.shape.Dimensions
	if len(dims) == 0 {
		formatElem(values.Index(0))
		return sb.String()
	}
	var printAxis func(offset int, dims []int)
	printAxis = func(offset int, dims []int) {
		stride := 1
		for _, d := range dims[1:] {
			stride *= d
		}
		sb.WriteByte('[')
		for ii := range dims[0] {
			if dims[0] > maxPrintedElements && ii == maxPrintedElements/2 {
				sb.WriteString(" ...")
				continue
			}
			if dims[0] > maxPrintedElements && ii > maxPrintedElements/2 && ii < dims[0]-maxPrintedElements/2 {
				continue
			}
			if ii > 0 {
				sb.WriteByte(' ')
			}
			if len(dims) == 1 {
				formatElem(values.Index(offset + ii))
			} else {
				printAxis(offset+ii*stride, dims[1:])
			}
		}
		sb.WriteByte(']')
	}
	printAxis(0, dims)
	return sb.String()
}
