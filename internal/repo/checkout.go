package repo

import (
	"go.uber.org/zap"

	"sprig/internal/commit"
	sperrors "sprig/internal/errors"
	"sprig/internal/worktree"
)

// CheckoutBranch makes branch current and replaces the working tree with
// its tip.
func (r *Repository) CheckoutBranch(branch string) error {
	st, err := r.loadState()
	if err != nil {
		return err
	}
	tip, ok := st.tips[branch]
	if !ok {
		return sperrors.New(sperrors.KindNoSuchBranch, "No such branch exists.")
	}
	if branch == st.branch {
		return sperrors.New(sperrors.KindSameBranch, "No need to checkout the current branch.")
	}

	cur, err := r.graph.Load(st.tip())
	if err != nil {
		return err
	}
	target, err := r.graph.Load(tip)
	if err != nil {
		return err
	}

	if err := r.replaceTree(cur, target); err != nil {
		return err
	}

	st.branch = branch
	st.staging.Clear()
	if err := r.saveState(st); err != nil {
		return err
	}
	r.logger.Info("checked out branch", zap.String("branch", branch), zap.String("tip", tip))
	return nil
}

// CheckoutFile restores name from the commit ref points at, or from the
// current commit when ref is empty. The staging area is left alone.
func (r *Repository) CheckoutFile(ref, name string) error {
	name, err := worktree.Clean(name)
	if err != nil {
		return err
	}

	var c *commit.Commit
	if ref == "" {
		st, err := r.loadState()
		if err != nil {
			return err
		}
		c, err = r.graph.Load(st.tip())
		if err != nil {
			return err
		}
	} else {
		c, err = r.graph.LoadRef(ref)
		if err != nil {
			return err
		}
	}

	blob, ok := c.Tracks(name)
	if !ok {
		return sperrors.New(sperrors.KindFileNotInCommit, "File does not exist in that commit.")
	}
	data, err := r.objects.Get(blob)
	if err != nil {
		return err
	}
	return r.tree.Write(name, data)
}

// Reset moves the current branch to the commit ref points at and replaces
// the working tree with it.
func (r *Repository) Reset(ref string) error {
	target, err := r.graph.LoadRef(ref)
	if err != nil {
		return err
	}

	st, err := r.loadState()
	if err != nil {
		return err
	}
	cur, err := r.graph.Load(st.tip())
	if err != nil {
		return err
	}

	if err := r.replaceTree(cur, target); err != nil {
		return err
	}

	st.tips[st.branch] = target.Digest
	st.staging.Clear()
	if err := r.saveState(st); err != nil {
		return err
	}
	r.logger.Info("reset branch", zap.String("branch", st.branch), zap.String("tip", target.Digest))
	return nil
}

// checkUntracked fails if any of names exists in the working tree without
// being tracked by cur. Ignored files may be overwritten.
func (r *Repository) checkUntracked(cur *commit.Commit, names []string) error {
	if err := r.tree.Reload(); err != nil {
		return err
	}
	for _, name := range names {
		if _, ok := cur.Tracks(name); ok {
			continue
		}
		if r.tree.Ignored(name, false) {
			continue
		}
		exists, err := r.tree.Exists(name)
		if err != nil {
			return err
		}
		if exists {
			r.logger.Debug("untracked file in the way", zap.String("file", name))
			return sperrors.New(sperrors.KindUntrackedFileConflict,
				"There is an untracked file in the way; delete it, or add and commit it first.")
		}
	}
	return nil
}

// replaceTree swaps the working tree from cur's snapshot to target's. The
// untracked-file check runs before anything is written.
func (r *Repository) replaceTree(cur, target *commit.Commit) error {
	if err := r.checkUntracked(cur, target.Names()); err != nil {
		return err
	}

	for _, name := range target.Names() {
		data, err := r.objects.Get(target.Files[name])
		if err != nil {
			return err
		}
		if err := r.tree.Write(name, data); err != nil {
			return err
		}
	}
	for _, name := range cur.Names() {
		if _, ok := target.Tracks(name); ok {
			continue
		}
		if err := r.tree.Remove(name); err != nil {
			return err
		}
	}
	return nil
}
