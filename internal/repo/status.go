package repo

import (
	"sort"

	"sprig/internal/diff"
	"sprig/internal/worktree"
)

type FileChange struct {
	Name    string
	Deleted bool
}

type Status struct {
	Branch    string
	Branches  []string
	Staged    []string
	Removed   []string
	Modified  []FileChange
	Untracked []string
}

// Clean reports whether there is nothing to show besides branches.
func (s *Status) Clean() bool {
	return len(s.Staged) == 0 && len(s.Removed) == 0 && len(s.Modified) == 0 && len(s.Untracked) == 0
}

func (r *Repository) Status() (*Status, error) {
	st, err := r.loadState()
	if err != nil {
		return nil, err
	}
	head, err := r.graph.Load(st.tip())
	if err != nil {
		return nil, err
	}

	out := &Status{
		Branch:   st.branch,
		Branches: st.branchNames(),
		Staged:   st.staging.AddedNames(),
		Removed:  st.staging.PendingRemovals(),
	}

	candidates := make(map[string]struct{})
	for n := range head.Files {
		candidates[n] = struct{}{}
	}
	for _, n := range out.Staged {
		candidates[n] = struct{}{}
	}
	names := make([]string, 0, len(candidates))
	for n := range candidates {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		tracked, isTracked := head.Tracks(name)
		staged, isStaged := st.staging.Addition(name)
		if !isStaged && (!isTracked || st.staging.IsRemoved(name)) {
			continue
		}

		want := staged
		if !isStaged {
			want = tracked
		}

		data, err := r.tree.Read(name)
		if err != nil {
			exists, xerr := r.tree.Exists(name)
			if xerr != nil || exists {
				return nil, err
			}
			out.Modified = append(out.Modified, FileChange{Name: name, Deleted: true})
			continue
		}
		if r.objects.Digest(data) != want {
			out.Modified = append(out.Modified, FileChange{Name: name})
		}
	}

	working, err := r.tree.List(false)
	if err != nil {
		return nil, err
	}
	for _, name := range working {
		if _, ok := st.staging.Addition(name); ok {
			continue
		}
		if _, ok := head.Tracks(name); ok && !st.staging.IsRemoved(name) {
			continue
		}
		out.Untracked = append(out.Untracked, name)
	}

	return out, nil
}

type FileDiff struct {
	Name   string
	Result *diff.DiffResult
}

// Diff compares the working tree against the staged snapshot of each file,
// or the current commit when nothing is staged. With no names, every
// tracked or staged file is considered. Unchanged files are left out.
func (r *Repository) Diff(names ...string) ([]FileDiff, error) {
	st, err := r.loadState()
	if err != nil {
		return nil, err
	}
	head, err := r.graph.Load(st.tip())
	if err != nil {
		return nil, err
	}

	if len(names) == 0 {
		set := make(map[string]struct{})
		for n := range head.Files {
			set[n] = struct{}{}
		}
		for _, n := range st.staging.AddedNames() {
			set[n] = struct{}{}
		}
		for n := range set {
			names = append(names, n)
		}
	} else {
		cleaned := make([]string, 0, len(names))
		for _, n := range names {
			c, err := worktree.Clean(n)
			if err != nil {
				return nil, err
			}
			cleaned = append(cleaned, c)
		}
		names = cleaned
	}
	sort.Strings(names)

	var out []FileDiff
	for _, name := range names {
		var base []byte
		if _, ok := st.staging.Addition(name); ok {
			if base, err = st.staging.Snapshot(name); err != nil {
				return nil, err
			}
		} else if blob, ok := head.Tracks(name); ok && !st.staging.IsRemoved(name) {
			if base, err = r.objects.Get(blob); err != nil {
				return nil, err
			}
		}

		var current []byte
		exists, err := r.tree.Exists(name)
		if err != nil {
			return nil, err
		}
		if exists {
			if current, err = r.tree.Read(name); err != nil {
				return nil, err
			}
		}

		res, err := r.differ.Diff(base, current)
		if err != nil {
			return nil, err
		}
		if !res.Empty() {
			out = append(out, FileDiff{Name: name, Result: res})
		}
	}
	return out, nil
}
