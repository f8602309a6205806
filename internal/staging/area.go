// Package staging holds the changes queued for the next commit: pending
// additions with a snapshot of the content at add time, and pending
// removals.
package staging

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

const (
	recordFile = "record.json"
	blobsDir   = "blobs"
)

type record struct {
	Additions map[string]string `json:"additions"`
	Removals  []string          `json:"removals"`
}

// Area is loaded once per command, mutated in memory, and written back with
// Save. Snapshot files are written eagerly so that the bytes seen at add
// time are what gets committed; unreferenced ones are removed on Save.
type Area struct {
	fs        afero.Fs
	dir       string
	additions map[string]string
	removals  map[string]struct{}
}

// Load reads the staging area under dir. A missing record is an empty area.
func Load(fs afero.Fs, dir string) (*Area, error) {
	a := &Area{
		fs:        fs,
		dir:       dir,
		additions: make(map[string]string),
		removals:  make(map[string]struct{}),
	}

	data, err := afero.ReadFile(fs, filepath.Join(dir, recordFile))
	if errors.Is(err, os.ErrNotExist) {
		return a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading staging record: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding staging record: %w", err)
	}
	for n, d := range rec.Additions {
		a.additions[n] = d
	}
	for _, n := range rec.Removals {
		a.removals[n] = struct{}{}
	}
	return a, nil
}

// StageForAddition records that name should be committed with the given
// content. Any pending removal of name is cancelled.
func (a *Area) StageForAddition(name, digest string, content []byte) error {
	path := a.snapshotPath(name)
	if err := a.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	if err := afero.WriteFile(a.fs, path, content, 0644); err != nil {
		return fmt.Errorf("writing snapshot of %s: %w", name, err)
	}
	a.additions[name] = digest
	delete(a.removals, name)
	return nil
}

// StageForRemoval records that name should be dropped from the next commit.
// Any pending addition of name is cancelled.
func (a *Area) StageForRemoval(name string) {
	delete(a.additions, name)
	a.removals[name] = struct{}{}
}

// Unstage leaves name neither added nor removed.
func (a *Area) Unstage(name string) {
	delete(a.additions, name)
	delete(a.removals, name)
}

// Addition returns the staged digest for name.
func (a *Area) Addition(name string) (string, bool) {
	d, ok := a.additions[name]
	return d, ok
}

func (a *Area) IsRemoved(name string) bool {
	_, ok := a.removals[name]
	return ok
}

// PendingAdditions returns a copy of the staged additions.
func (a *Area) PendingAdditions() map[string]string {
	out := make(map[string]string, len(a.additions))
	for n, d := range a.additions {
		out[n] = d
	}
	return out
}

// AddedNames returns the staged additions in sorted order.
func (a *Area) AddedNames() []string {
	names := make([]string, 0, len(a.additions))
	for n := range a.additions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PendingRemovals returns the staged removals in sorted order.
func (a *Area) PendingRemovals() []string {
	names := make([]string, 0, len(a.removals))
	for n := range a.removals {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the content captured when name was staged.
func (a *Area) Snapshot(name string) ([]byte, error) {
	if _, ok := a.additions[name]; !ok {
		return nil, fmt.Errorf("%s is not staged for addition", name)
	}
	return afero.ReadFile(a.fs, a.snapshotPath(name))
}

func (a *Area) IsEmpty() bool {
	return len(a.additions) == 0 && len(a.removals) == 0
}

// Clear drops every pending change. Snapshots are deleted by Save.
func (a *Area) Clear() {
	a.additions = make(map[string]string)
	a.removals = make(map[string]struct{})
}

// Save writes the record back and then deletes snapshots the record no
// longer refers to.
func (a *Area) Save() error {
	rec := record{
		Additions: a.PendingAdditions(),
		Removals:  a.PendingRemovals(),
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	if err := a.fs.MkdirAll(a.dir, 0755); err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	tmp := filepath.Join(a.dir, recordFile+".tmp")
	if err := afero.WriteFile(a.fs, tmp, data, 0644); err != nil {
		return fmt.Errorf("writing staging record: %w", err)
	}
	if err := a.fs.Rename(tmp, filepath.Join(a.dir, recordFile)); err != nil {
		return fmt.Errorf("publishing staging record: %w", err)
	}
	return a.sweep()
}

func (a *Area) sweep() error {
	root := filepath.Join(a.dir, blobsDir)
	if len(a.additions) == 0 {
		return a.fs.RemoveAll(root)
	}

	var stale []string
	err := afero.Walk(a.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if _, ok := a.additions[filepath.ToSlash(rel)]; !ok {
			stale = append(stale, p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sweeping snapshots: %w", err)
	}
	for _, p := range stale {
		if err := a.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing stale snapshot: %w", err)
		}
	}
	return nil
}

func (a *Area) snapshotPath(name string) string {
	return filepath.Join(a.dir, blobsDir, filepath.FromSlash(name))
}
