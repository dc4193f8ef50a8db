// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandTilde(t *testing.T) {
	usr, err := user.Current()
	require.NoError(t, err)
	for path, want := range map[string]string{
		"~":             usr.HomeDir,
		"~/data/x.npy":  filepath.Join(usr.HomeDir, "data/x.npy"),
		"/tmp/x.npy":    "/tmp/x.npy",
		"relative/~/ok": "relative/~/ok",
	} {
		got, err := ExpandTilde(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}
	_, err = ExpandTilde("~no_such_user_for_sure/x")
	assert.Error(t, err)
}

func TestResolveFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.py")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0o644))

	got, err := ResolveFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = ResolveFile(filepath.Join(dir, "missing.py"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
