// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"reflect"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// dtypeNames maps the names accepted in host code and annotations to dtypes.
// Lookups are case-insensitive.
var dtypeNames = map[string]dtypes.DType{
	"bool":    dtypes.Bool,
	"bool_":   dtypes.Bool,
	"int8":    dtypes.Int8,
	"int16":   dtypes.Int16,
	"int32":   dtypes.Int32,
	"int64":   dtypes.Int64,
	"int":     dtypes.Int64,
	"uint8":   dtypes.Uint8,
	"uint16":  dtypes.Uint16,
	"uint32":  dtypes.Uint32,
	"uint64":  dtypes.Uint64,
	"float16": dtypes.Float16,
	"half":    dtypes.Float16,
	"float32": dtypes.Float32,
	"float":   dtypes.Float32,
	"float64": dtypes.Float64,
	"double":  dtypes.Float64,
}

// ParseDType converts a dtype name like "int32" or "Float32" to a DType.
func ParseDType(name string) (dtypes.DType, error) {
	if dtype, found := dtypeNames[strings.ToLower(strings.TrimSpace(name))]; found {
		return dtype, nil
	}
	return dtypes.InvalidDType, errors.Errorf("unknown dtype %q", name)
}

// DTypeName returns the lower-case name used in host code for the dtype, e.g. "float32".
func DTypeName(dtype dtypes.DType) string {
	if dtype == dtypes.Bool {
		return "bool_"
	}
	return strings.ToLower(dtype.String())
}

// IsSupportedDType returns whether tensors of the dtype can be created by this module.
func IsSupportedDType(dtype dtypes.DType) bool {
	switch dtype {
	case dtypes.Bool, dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
		dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64,
		dtypes.Float16, dtypes.Float32, dtypes.Float64:
		return true
	}
	return false
}

// promotionRank orders dtypes for binary-op promotion.
func promotionRank(dtype dtypes.DType) int {
	switch dtype {
	case dtypes.Bool:
		return 0
	case dtypes.Uint8:
		return 1
	case dtypes.Int8:
		return 2
	case dtypes.Uint16:
		return 3
	case dtypes.Int16:
		return 4
	case dtypes.Uint32:
		return 5
	case dtypes.Int32:
		return 6
	case dtypes.Uint64:
		return 7
	case dtypes.Int64:
		return 8
	case dtypes.Float16:
		return 9
	case dtypes.Float32:
		return 10
	case dtypes.Float64:
		return 11
	}
	return -1
}

// PromoteDTypes returns the dtype of a binary operation between two tensors, e.g. Int64 and
// Float64 promote to Float64. InvalidDType is returned if either is unknown.
func PromoteDTypes(a, b dtypes.DType) dtypes.DType {
	if a == dtypes.InvalidDType || b == dtypes.InvalidDType {
		return dtypes.InvalidDType
	}
	if promotionRank(a) >= promotionRank(b) {
		return a
	}
	return b
}

// FromAnyValue returns the shape of a Go scalar or (possibly multidimensional) slice of a supported type.
// Irregular slices are rejected.
func FromAnyValue(value any) (Shape, error) {
	if value == nil {
		return Invalid(), errors.New("shapes.FromAnyValue(nil)")
	}
	var dims []int
	v := reflect.ValueOf(value)
	t := v.Type()
	for t.Kind() == reflect.Slice {
		dims = append(dims, v.Len())
		t = t.Elem()
		if v.Len() > 0 {
			v = v.Index(0)
		} else {
			v = reflect.Zero(t)
		}
	}
	dtype := goTypeDType(t)
	if dtype == dtypes.InvalidDType {
		return Invalid(), errors.Errorf("shapes.FromAnyValue: unsupported element type %s", t)
	}
	shape := Shape{DType: dtype, Dimensions: dims}
	if err := checkRegular(reflect.ValueOf(value), dims); err != nil {
		return Invalid(), err
	}
	return shape, nil
}

func goTypeDType(t reflect.Type) (dtype dtypes.DType) {
	defer func() {
		if recover() != nil {
			dtype = dtypes.InvalidDType
		}
	}()
	dtype = dtypes.FromGoType(t)
	if !IsSupportedDType(dtype) {
		dtype = dtypes.InvalidDType
	}
	return
}

func checkRegular(v reflect.Value, dims []int) error {
	if len(dims) == 0 {
		return nil
	}
	if v.Len() != dims[0] {
		return errors.Errorf("irregular slice: expected length %d, got %d", dims[0], v.Len())
	}
	for ii := range v.Len() {
		if err := checkRegular(v.Index(ii), dims[1:]); err != nil {
			return err
		}
	}
	return nil
}
