package refs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	sperrors "sprig/internal/errors"
)

const DefaultBranch = "main"

const (
	headFile  = "HEAD"
	headsDir  = "refs/heads"
	tmpSuffix = ".tmp"
)

// Table stores branch tips as one file per branch under refs/heads and the
// current branch name in HEAD.
type Table struct {
	fs  afero.Fs
	dir string
}

func NewTable(fs afero.Fs, dir string) *Table {
	return &Table{fs: fs, dir: dir}
}

// ValidName reports whether name can be used as a branch name.
func ValidName(name string) error {
	switch {
	case name == "":
		return sperrors.New(sperrors.KindInvalidArgument, "Branch name must not be empty.")
	case strings.ContainsAny(name, "/\\ \t\n"):
		return sperrors.Newf(sperrors.KindInvalidArgument, "Invalid branch name %q.", name)
	case strings.HasPrefix(name, "."), strings.HasPrefix(name, "-"):
		return sperrors.Newf(sperrors.KindInvalidArgument, "Invalid branch name %q.", name)
	case strings.HasSuffix(name, tmpSuffix):
		// Reserved for in-flight writes, which List skips.
		return sperrors.Newf(sperrors.KindInvalidArgument, "Invalid branch name %q.", name)
	}
	return nil
}

func (t *Table) Head() (string, error) {
	data, err := afero.ReadFile(t.fs, filepath.Join(t.dir, headFile))
	if err != nil {
		return "", fmt.Errorf("reading HEAD: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (t *Table) SetHead(branch string) error {
	return t.write(filepath.Join(t.dir, headFile), branch)
}

// Tip returns the commit the branch points at.
func (t *Table) Tip(branch string) (string, error) {
	data, err := afero.ReadFile(t.fs, t.branchPath(branch))
	if errors.Is(err, os.ErrNotExist) {
		return "", sperrors.Newf(sperrors.KindNoSuchBranch, "No such branch %s.", branch)
	}
	if err != nil {
		return "", fmt.Errorf("reading branch %s: %w", branch, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (t *Table) SetTip(branch, digest string) error {
	if err := ValidName(branch); err != nil {
		return err
	}
	return t.write(t.branchPath(branch), digest)
}

func (t *Table) Delete(branch string) error {
	err := t.fs.Remove(t.branchPath(branch))
	if errors.Is(err, os.ErrNotExist) {
		return sperrors.Newf(sperrors.KindNoSuchBranch, "No such branch %s.", branch)
	}
	return err
}

// Tips returns every branch and its tip.
func (t *Table) Tips() (map[string]string, error) {
	names, err := t.List()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(names))
	for _, n := range names {
		tip, err := t.Tip(n)
		if err != nil {
			return nil, err
		}
		out[n] = tip
	}
	return out, nil
}

// List returns the branch names in sorted order.
func (t *Table) List() ([]string, error) {
	infos, err := afero.ReadDir(t.fs, filepath.Join(t.dir, headsDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing branches: %w", err)
	}

	var names []string
	for _, fi := range infos {
		if fi.IsDir() || strings.HasSuffix(fi.Name(), tmpSuffix) {
			continue
		}
		names = append(names, fi.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (t *Table) branchPath(branch string) string {
	return filepath.Join(t.dir, headsDir, branch)
}

func (t *Table) write(path, value string) error {
	if err := t.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + tmpSuffix
	if err := afero.WriteFile(t.fs, tmp, []byte(value+"\n"), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return t.fs.Rename(tmp, path)
}
