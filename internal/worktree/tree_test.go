package worktree

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sperrors "sprig/internal/errors"
)

func TestReadWriteRemove(t *testing.T) {
	tree, err := New(afero.NewMemMapFs())
	require.NoError(t, err)

	require.NoError(t, tree.Write("a/b/c.txt", []byte("deep")))
	got, err := tree.Read("a/b/c.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("deep"), got)

	ok, err := tree.Exists("a/b/c.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tree.Exists("a/b")
	require.NoError(t, err)
	assert.False(t, ok, "directories are not files")

	require.NoError(t, tree.Remove("a/b/c.txt"))
	require.NoError(t, tree.Remove("a/b/c.txt"))

	_, err = tree.Read("a/b/c.txt")
	assert.True(t, errors.Is(err, sperrors.ErrFileNotFound))
}

func TestListSkipsMetadataAndIgnored(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := map[string]string{
		".sprig/HEAD":   "main",
		IgnoreFile:      "*.log\nbuild/\n",
		"keep.txt":      "k",
		"debug.log":     "noise",
		"src/main.go":   "package main",
		"build/out.bin": "bin",
	}
	for name, body := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(body), 0644))
	}

	tree, err := New(fs)
	require.NoError(t, err)

	names, err := tree.List(false)
	require.NoError(t, err)
	assert.Equal(t, []string{IgnoreFile, "keep.txt", "src/main.go"}, names)

	all, err := tree.List(true)
	require.NoError(t, err)
	assert.Equal(t, []string{IgnoreFile, "build/out.bin", "debug.log", "keep.txt", "src/main.go"}, all)

	assert.True(t, tree.Ignored("debug.log", false))
	assert.False(t, tree.Ignored("keep.txt", false))
}

func TestClean(t *testing.T) {
	good := map[string]string{
		"a.txt":       "a.txt",
		"./a.txt":     "a.txt",
		"dir//b.txt":  "dir/b.txt",
		"dir/../c.go": "c.go",
	}
	for in, want := range good {
		got, err := Clean(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", ".", "..", "../x", "/etc/passwd", ".sprig/HEAD", ".sprig"} {
		_, err := Clean(in)
		assert.True(t, errors.Is(err, sperrors.ErrInvalidArgument), in)
	}
}

func TestFindRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, MetaDir), 0755))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	got, err := FindRoot(nested)
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	gotResolved, err := filepath.EvalSymlinks(got)
	require.NoError(t, err)
	assert.Equal(t, want, gotResolved)

	_, err = FindRoot(t.TempDir())
	assert.True(t, errors.Is(err, sperrors.ErrNotInitialized))
}
