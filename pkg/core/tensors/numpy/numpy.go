// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package numpy reads and writes tensors in NumPy's .npy format (and reads .npz archives).
//
// It backs the host `np.save` / `np.load` builtins and the command line loading of arguments.
package numpy

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/shapes"
	"github.com/gomlx/jitfallback/pkg/core/tensors"
	"github.com/pkg/errors"
)

const magic = "\x93NUMPY"

var (
	reDescr   = regexp2.MustCompile(`'descr'\s*:\s*'(?<descr>[^']*)'`, regexp2.None)
	reFortran = regexp2.MustCompile(`'fortran_order'\s*:\s*(?<fortran>True|False)`, regexp2.None)
	reShape   = regexp2.MustCompile(`'shape'\s*:\s*\((?<shape>[^)]*)\)`, regexp2.None)
)

// FromNpyFile reads a .npy file.
func FromNpyFile(filePath string) (*tensors.Tensor, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open .npy file %q", filePath)
	}
	defer func() { _ = file.Close() }()
	return FromNpyReader(file)
}

// FromNpyReader reads a tensor in .npy format.
func FromNpyReader(r io.Reader) (*tensors.Tensor, error) {
	preamble := make([]byte, len(magic)+2)
	if _, err := io.ReadFull(r, preamble); err != nil {
		return nil, errors.Wrapf(err, "failed to read .npy preamble")
	}
	if string(preamble[:len(magic)]) != magic {
		return nil, errors.Errorf("invalid .npy file format: magic string mismatch")
	}
	major := preamble[len(magic)]
	var headerLen int
	switch {
	case major == 1:
		lenBytes := make([]byte, 2)
		if _, err := io.ReadFull(r, lenBytes); err != nil {
			return nil, errors.Wrapf(err, "failed to read header length (v1.0)")
		}
		headerLen = int(binary.LittleEndian.Uint16(lenBytes))
	case major >= 2:
		lenBytes := make([]byte, 4)
		if _, err := io.ReadFull(r, lenBytes); err != nil {
			return nil, errors.Wrapf(err, "failed to read header length (v2.0+)")
		}
		headerLen = int(binary.LittleEndian.Uint32(lenBytes))
	default:
		return nil, errors.Errorf("unsupported .npy version: %d.%d", major, preamble[len(magic)+1])
	}
	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, errors.Wrapf(err, "failed to read header")
	}
	descr, dims, fortranOrder, err := parseNpyHeader(string(headerBytes))
	if err != nil {
		return nil, errors.WithMessage(err, "failed to parse .npy header")
	}
	if strings.HasPrefix(descr, ">") && !strings.HasSuffix(descr, "1") {
		return nil, errors.Errorf("big-endian .npy files (%q) are not supported", descr)
	}
	dtype, err := npyDTypeToDType(descr)
	if err != nil {
		return nil, err
	}
	shape := shapes.Make(dtype, dims...)
	tensor := tensors.FromShape(shape)
	tensor.MutableBytes(func(data []byte) {
		if !fortranOrder || shape.Rank() <= 1 {
			_, err = io.ReadFull(r, data)
			return
		}
		fortranData := make([]byte, len(data))
		if _, err = io.ReadFull(r, fortranData); err != nil {
			return
		}
		err = FortranToCLayout(dtype.Size(), dims, fortranData, data)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tensor data for %s", shape)
	}
	return tensor, nil
}

// FortranToCLayout reorders column-major data into row-major order.
func FortranToCLayout(dtypeSize int, dims []int, fortranData, cData []byte) error {
	if dtypeSize <= 0 {
		return errors.Errorf("dtypeSize must be positive, got %d", dtypeSize)
	}
	total := 1
	for _, d := range dims {
		total *= d
	}
	if len(fortranData) != total*dtypeSize || len(cData) != total*dtypeSize {
		return errors.Errorf("data has incorrect size: got %d and %d bytes, want %d",
			len(fortranData), len(cData), total*dtypeSize)
	}
	coordinates := make([]int, len(dims))
	for cIndex := range total {
		rest := cIndex
		for axis := len(dims) - 1; axis >= 0; axis-- {
			coordinates[axis] = rest % dims[axis]
			rest /= dims[axis]
		}
		fortranIndex, multiplier := 0, 1
		for axis, dim := range dims {
			fortranIndex += coordinates[axis] * multiplier
			multiplier *= dim
		}
		copy(cData[cIndex*dtypeSize:(cIndex+1)*dtypeSize], fortranData[fortranIndex*dtypeSize:(fortranIndex+1)*dtypeSize])
	}
	return nil
}

func groupOf(re *regexp2.Regexp, header, name string) (string, bool) {
	m, err := re.FindStringMatch(header)
	if err != nil || m == nil {
		return "", false
	}
	group := m.GroupByName(name)
	if group == nil || len(group.Captures) == 0 {
		return "", false
	}
	return group.String(), true
}

// parseNpyHeader extracts dtype, dimensions and fortran_order from the header dictionary, e.g.:
// "{'descr': '<f4', 'fortran_order': False, 'shape': (1, 2, 3), }"
func parseNpyHeader(header string) (descr string, dims []int, fortranOrder bool, err error) {
	var found bool
	if descr, found = groupOf(reDescr, header, "descr"); !found {
		return "", nil, false, errors.Errorf("could not find 'descr' in header: %q", header)
	}
	fortran, found := groupOf(reFortran, header, "fortran")
	if !found {
		return "", nil, false, errors.Errorf("could not find 'fortran_order' in header: %q", header)
	}
	fortranOrder = fortran == "True"
	shapeStr, found := groupOf(reShape, header, "shape")
	if !found {
		return "", nil, false, errors.Errorf("could not find 'shape' in header: %q", header)
	}
	dims = []int{}
	for _, part := range strings.Split(shapeStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dim, convErr := strconv.Atoi(part)
		if convErr != nil {
			return "", nil, false, errors.Wrapf(convErr, "invalid shape value %q in header", part)
		}
		dims = append(dims, dim)
	}
	return descr, dims, fortranOrder, nil
}

var npyToDType = map[string]dtypes.DType{
	"b1": dtypes.Bool, "?": dtypes.Bool,
	"i1": dtypes.Int8, "u1": dtypes.Uint8,
	"i2": dtypes.Int16, "u2": dtypes.Uint16,
	"i4": dtypes.Int32, "u4": dtypes.Uint32,
	"i8": dtypes.Int64, "u8": dtypes.Uint64,
	"f2": dtypes.Float16, "f4": dtypes.Float32, "f8": dtypes.Float64,
}

func npyDTypeToDType(descr string) (dtypes.DType, error) {
	key := strings.TrimLeft(descr, "<>=|")
	if dtype, found := npyToDType[key]; found {
		return dtype, nil
	}
	return dtypes.InvalidDType, errors.Errorf("unsupported NumPy dtype: %s", descr)
}

func dtypeToNpy(dtype dtypes.DType) (string, error) {
	switch dtype {
	case dtypes.Bool:
		return "|b1", nil
	case dtypes.Int8:
		return "|i1", nil
	case dtypes.Uint8:
		return "|u1", nil
	}
	for key, candidate := range npyToDType {
		if candidate == dtype && key != "?" && key != "b1" {
			return "<" + key, nil
		}
	}
	return "", errors.Errorf("unsupported DType for .npy: %s", dtype)
}

// ToNpyWriter serializes a tensor in .npy (version 1.0) format.
func ToNpyWriter(tensor *tensors.Tensor, w io.Writer) error {
	shape := tensor.Shape()
	descr, err := dtypeToNpy(shape.DType)
	if err != nil {
		return err
	}
	var shapeTuple string
	switch shape.Rank() {
	case 0:
		shapeTuple = "()"
	case 1:
		shapeTuple = fmt.Sprintf("(%d,)", shape.Dimensions[0])
	default:
		parts := make([]string, shape.Rank())
		for ii, dim := range shape.Dimensions {
			parts[ii] = strconv.Itoa(dim)
		}
		shapeTuple = "(" + strings.Join(parts, ", ") + ")"
	}
	var header bytes.Buffer
	fmt.Fprintf(&header, "{'descr': '%s', 'fortran_order': False, 'shape': %s, }", descr, shapeTuple)
	// Preamble (10 bytes) + header + newline is padded to a multiple of 64.
	for (10+header.Len()+1)%64 != 0 {
		header.WriteByte(' ')
	}
	header.WriteByte('\n')

	var preamble bytes.Buffer
	preamble.WriteString(magic)
	preamble.Write([]byte{1, 0})
	_ = binary.Write(&preamble, binary.LittleEndian, uint16(header.Len()))
	if _, err = w.Write(preamble.Bytes()); err != nil {
		return errors.Wrapf(err, "failed to write .npy preamble")
	}
	if _, err = w.Write(header.Bytes()); err != nil {
		return errors.Wrapf(err, "failed to write .npy header")
	}
	tensor.ConstBytes(func(data []byte) {
		_, err = w.Write(data)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to write tensor data")
	}
	return nil
}

// ToNpyFile writes the tensor to a .npy file.
func ToNpyFile(tensor *tensors.Tensor, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create .npy file %q", filePath)
	}
	if err = ToNpyWriter(tensor, file); err != nil {
		_ = file.Close()
		return err
	}
	return errors.Wrapf(file.Close(), "failed to close .npy file %q", filePath)
}

// FromNpzFile reads all .npy entries of a .npz archive, keyed by entry name without extension.
func FromNpzFile(filePath string) (map[string]*tensors.Tensor, error) {
	reader, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open .npz file %q", filePath)
	}
	defer func() { _ = reader.Close() }()
	results := make(map[string]*tensors.Tensor)
	for _, f := range reader.File {
		cleanPath := path.Clean(f.Name)
		if path.IsAbs(cleanPath) || strings.HasPrefix(cleanPath, "..") {
			return nil, errors.Errorf("invalid path in .npz archive: %q", f.Name)
		}
		if !strings.HasSuffix(f.Name, ".npy") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open %q within .npz", f.Name)
		}
		tensor, err := FromNpyReader(rc)
		_ = rc.Close()
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to read tensor %q from .npz", f.Name)
		}
		results[strings.TrimSuffix(f.Name, ".npy")] = tensor
	}
	return results, nil
}
