// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package numpy

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/jitfallback/pkg/core/tensors"
	"github.com/stretchr/testify/require"
)

func TestNpyRoundTrip(t *testing.T) {
	for _, tensor := range []*tensors.Tensor{
		tensors.FromFlatDataAndDimensions([]float32{1, 2, 3, 4, 5, 6}, 2, 3),
		tensors.FromFlatDataAndDimensions([]int64{-1, 7}, 2),
		tensors.FromScalar(true),
		tensors.FromScalar(int32(42)),
	} {
		var buf bytes.Buffer
		require.NoError(t, ToNpyWriter(tensor, &buf))
		// Header is aligned to 64 bytes.
		headerLen := int(binary.LittleEndian.Uint16(buf.Bytes()[8:10]))
		require.Equal(t, 0, (10+headerLen)%64)
		got, err := FromNpyReader(&buf)
		require.NoError(t, err)
		require.True(t, tensor.Equal(got), "want %s, got %s", tensor, got)
	}
}

func TestNpyFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "x.npy")
	tensor := tensors.FromFlatDataAndDimensions([]float64{0.5, 1.5}, 2, 1)
	require.NoError(t, ToNpyFile(tensor, filePath))
	got, err := FromNpyFile(filePath)
	require.NoError(t, err)
	require.True(t, tensor.Equal(got))
}

func TestParseNpyHeader(t *testing.T) {
	descr, dims, fortran, err := parseNpyHeader("{'descr': '<f4', 'fortran_order': True, 'shape': (10,), }")
	require.NoError(t, err)
	require.Equal(t, "<f4", descr)
	require.Equal(t, []int{10}, dims)
	require.True(t, fortran)

	_, dims, _, err = parseNpyHeader("{'descr': '|b1', 'fortran_order': False, 'shape': (), }")
	require.NoError(t, err)
	require.Empty(t, dims)

	_, _, _, err = parseNpyHeader("{'fortran_order': False}")
	require.Error(t, err)

	dtype, err := npyDTypeToDType("<i4")
	require.NoError(t, err)
	require.Equal(t, dtypes.Int32, dtype)
	_, err = npyDTypeToDType("<U7")
	require.Error(t, err)
}

func TestFortranToCLayout(t *testing.T) {
	// Column-major [[1, 2, 3], [4, 5, 6]] is stored as 1 4 2 5 3 6.
	fortran := []byte{1, 4, 2, 5, 3, 6}
	c := make([]byte, 6)
	require.NoError(t, FortranToCLayout(1, []int{2, 3}, fortran, c))
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, c)
}
