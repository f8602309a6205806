package repo

import (
	"go.uber.org/zap"

	sperrors "sprig/internal/errors"
	"sprig/internal/worktree"
)

// Add stages the working copy of name. If it matches the current commit
// any pending change to name is dropped instead.
func (r *Repository) Add(name string) error {
	name, err := worktree.Clean(name)
	if err != nil {
		return err
	}

	st, err := r.loadState()
	if err != nil {
		return err
	}
	head, err := r.graph.Load(st.tip())
	if err != nil {
		return err
	}

	data, err := r.tree.Read(name)
	if err != nil {
		return err
	}
	d := r.objects.Digest(data)

	if tracked, ok := head.Tracks(name); ok && tracked == d {
		st.staging.Unstage(name)
		r.logger.Debug("add matches head, unstaged", zap.String("file", name))
	} else {
		if err := st.staging.StageForAddition(name, d, data); err != nil {
			return err
		}
		r.logger.Debug("staged for addition", zap.String("file", name), zap.String("digest", d))
	}

	return r.saveState(st)
}

// Rm unstages name and, if the current commit tracks it, stages its
// removal and deletes it from the working tree.
func (r *Repository) Rm(name string) error {
	name, err := worktree.Clean(name)
	if err != nil {
		return err
	}

	st, err := r.loadState()
	if err != nil {
		return err
	}
	head, err := r.graph.Load(st.tip())
	if err != nil {
		return err
	}

	_, staged := st.staging.Addition(name)
	_, tracked := head.Tracks(name)
	if !staged && !tracked {
		return sperrors.New(sperrors.KindNothingToRemove, "No reason to remove the file.")
	}

	if tracked {
		st.staging.StageForRemoval(name)
	} else {
		st.staging.Unstage(name)
	}
	if err := r.saveState(st); err != nil {
		return err
	}

	if tracked {
		if err := r.tree.Remove(name); err != nil {
			return err
		}
	}
	r.logger.Debug("removed", zap.String("file", name), zap.Bool("tracked", tracked))
	return nil
}
