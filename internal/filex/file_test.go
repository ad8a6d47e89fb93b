package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() { _ = os.Chdir(old) }
}

func TestEnsureDir_CreatesRelativeDirectoryInCWD(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	got, err := EnsureDir("tunnels")
	require.NoError(t, err)

	want := filepath.Join(tmp, "tunnels")
	require.Equal(t, want, got)

	fi, err := os.Stat(want)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700)
	}
}

func TestEnsureDir_AbsoluteAndIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	first, err := EnsureDir(dir)
	require.NoError(t, err)
	require.Equal(t, dir, first)

	second, err := EnsureDir(dir)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestEnsureDir_FailsIfFileWithSameNameExists(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	require.NoError(t, os.WriteFile("tunnels", []byte("x"), 0o660))

	_, err := EnsureDir("tunnels")
	require.Error(t, err, "should fail when a file exists with the same name")
}

func TestWriteExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wg.conf")

	require.NoError(t, WriteExclusive(path, []byte("first"), 0o600))

	err := WriteExclusive(path, []byte("second"), 0o600)
	require.ErrorIs(t, err, os.ErrExist)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "first", string(b))

	if runtime.GOOS != "windows" {
		fi, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
	}
}

func TestRemoveIfExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wg.conf")
	require.NoError(t, RemoveIfExists(path))

	require.NoError(t, os.WriteFile(path, nil, 0o600))
	require.NoError(t, RemoveIfExists(path))
	_, err := os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)
}
