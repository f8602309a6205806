package repo

import (
	"fmt"
	"sort"

	"sprig/internal/staging"
)

// state is everything a command may change: the current branch, the
// branch table and the staging area. It is loaded once at the start of a
// command and persisted once at the end.
type state struct {
	branch       string
	loadedBranch string
	tips         map[string]string
	loaded       map[string]string
	staging      *staging.Area
}

func (s *state) tip() string {
	return s.tips[s.branch]
}

func (s *state) branchNames() []string {
	names := make([]string, 0, len(s.tips))
	for n := range s.tips {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Repository) loadState() (*state, error) {
	branch, err := r.refs.Head()
	if err != nil {
		return nil, err
	}
	tips, err := r.refs.Tips()
	if err != nil {
		return nil, err
	}
	if _, ok := tips[branch]; !ok {
		return nil, fmt.Errorf("HEAD names missing branch %q", branch)
	}
	area, err := staging.Load(r.fs, stagingDir)
	if err != nil {
		return nil, err
	}

	loaded := make(map[string]string, len(tips))
	for n, d := range tips {
		loaded[n] = d
	}
	return &state{
		branch:       branch,
		loadedBranch: branch,
		tips:         tips,
		loaded:       loaded,
		staging:      area,
	}, nil
}

// saveState writes branch pointers, then HEAD, then the staging area.
func (r *Repository) saveState(st *state) error {
	for _, name := range st.branchNames() {
		if st.loaded[name] == st.tips[name] {
			continue
		}
		if err := r.refs.SetTip(name, st.tips[name]); err != nil {
			return fmt.Errorf("updating branch %s: %w", name, err)
		}
	}
	for name := range st.loaded {
		if _, ok := st.tips[name]; ok {
			continue
		}
		if err := r.refs.Delete(name); err != nil {
			return fmt.Errorf("deleting branch %s: %w", name, err)
		}
	}
	if st.branch != st.loadedBranch {
		if err := r.refs.SetHead(st.branch); err != nil {
			return err
		}
	}
	return st.staging.Save()
}
