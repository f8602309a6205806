// Package worktree reads and writes the user's files. Names are
// slash-separated paths relative to the repository root.
package worktree

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	gitignore "github.com/denormal/go-gitignore"
	"github.com/spf13/afero"

	sperrors "sprig/internal/errors"
)

const (
	MetaDir    = ".sprig"
	IgnoreFile = ".sprigignore"
)

type Tree struct {
	fs     afero.Fs
	ignore gitignore.GitIgnore
}

// New opens the tree rooted at fs and loads its ignore file, if any.
func New(fsys afero.Fs) (*Tree, error) {
	t := &Tree{fs: fsys}
	if err := t.Reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Reload re-reads the ignore file.
func (t *Tree) Reload() error {
	data, err := afero.ReadFile(t.fs, IgnoreFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", IgnoreFile, err)
	}
	t.ignore = nil
	if len(data) > 0 {
		t.ignore = gitignore.New(bytes.NewReader(data), "/", func(gitignore.Error) bool {
			return true
		})
	}
	return nil
}

// FindRoot walks up from startDir looking for a repository.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if info, err := os.Stat(filepath.Join(dir, MetaDir)); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", sperrors.New(sperrors.KindNotInitialized, "Not in an initialized sprig directory.")
}

// Clean normalizes a user-supplied name and rejects names outside the tree
// or inside the metadata directory.
func Clean(name string) (string, error) {
	n := path.Clean(filepath.ToSlash(name))
	if n == "." || n == "" || strings.HasPrefix(n, "../") || n == ".." || path.IsAbs(n) {
		return "", sperrors.Newf(sperrors.KindInvalidArgument, "Invalid file name %q.", name)
	}
	if n == MetaDir || strings.HasPrefix(n, MetaDir+"/") {
		return "", sperrors.Newf(sperrors.KindInvalidArgument, "Invalid file name %q.", name)
	}
	return n, nil
}

func (t *Tree) Read(name string) ([]byte, error) {
	data, err := afero.ReadFile(t.fs, filepath.FromSlash(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, sperrors.New(sperrors.KindFileNotFound, "File does not exist.")
		}
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

func (t *Tree) Write(name string, data []byte) error {
	p := filepath.FromSlash(name)
	if dir := filepath.Dir(p); dir != "." {
		if err := t.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", name, err)
		}
	}
	if err := afero.WriteFile(t.fs, p, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// Remove deletes name. A file that is already gone is not an error.
func (t *Tree) Remove(name string) error {
	err := t.fs.Remove(filepath.FromSlash(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", name, err)
	}
	return nil
}

func (t *Tree) Exists(name string) (bool, error) {
	info, err := t.fs.Stat(filepath.FromSlash(name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// Ignored reports whether name matches the ignore file.
func (t *Tree) Ignored(name string, isDir bool) bool {
	if t.ignore == nil {
		return false
	}
	m := t.ignore.Relative(name, isDir)
	return m != nil && m.Ignore()
}

// List returns every regular file outside the metadata directory, sorted.
// Ignored files are left out unless includeIgnored is set. The ignore file
// is re-read first.
func (t *Tree) List(includeIgnored bool) ([]string, error) {
	if err := t.Reload(); err != nil {
		return nil, err
	}

	var names []string
	err := afero.Walk(t.fs, ".", func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		name := filepath.ToSlash(p)
		if name == "." {
			return nil
		}
		if info.IsDir() {
			if name == MetaDir || (!includeIgnored && t.Ignored(name, true)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if !includeIgnored && t.Ignored(name, false) {
			return nil
		}
		names = append(names, name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing working tree: %w", err)
	}
	sort.Strings(names)
	return names, nil
}
