package repo

import (
	"go.uber.org/zap"

	sperrors "sprig/internal/errors"
	"sprig/internal/refs"
)

// Branch creates name at the current commit without switching to it.
func (r *Repository) Branch(name string) error {
	if err := refs.ValidName(name); err != nil {
		return err
	}

	st, err := r.loadState()
	if err != nil {
		return err
	}
	if _, ok := st.tips[name]; ok {
		return sperrors.New(sperrors.KindBranchExists, "A branch with that name already exists.")
	}

	st.tips[name] = st.tip()
	if err := r.saveState(st); err != nil {
		return err
	}
	r.logger.Info("created branch", zap.String("branch", name), zap.String("tip", st.tip()))
	return nil
}

// RemoveBranch deletes the pointer name. Commits are kept.
func (r *Repository) RemoveBranch(name string) error {
	st, err := r.loadState()
	if err != nil {
		return err
	}
	if _, ok := st.tips[name]; !ok {
		return sperrors.New(sperrors.KindNoSuchBranch, "A branch with that name does not exist.")
	}
	if name == st.branch {
		return sperrors.New(sperrors.KindCannotRemoveCurrent, "Cannot remove the current branch.")
	}

	delete(st.tips, name)
	if err := r.saveState(st); err != nil {
		return err
	}
	r.logger.Info("removed branch", zap.String("branch", name))
	return nil
}

// Branches returns the current branch and all branch names, sorted.
func (r *Repository) Branches() (string, []string, error) {
	st, err := r.loadState()
	if err != nil {
		return "", nil, err
	}
	return st.branch, st.branchNames(), nil
}
