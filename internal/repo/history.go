package repo

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"sprig/internal/commit"
	sperrors "sprig/internal/errors"
)

// Commit records the staged changes as a child of the current commit and
// advances the current branch to it.
func (r *Repository) Commit(message string) (*commit.Commit, error) {
	if strings.TrimSpace(message) == "" {
		return nil, sperrors.New(sperrors.KindEmptyMessage, "Please enter a commit message.")
	}

	st, err := r.loadState()
	if err != nil {
		return nil, err
	}
	if st.staging.IsEmpty() {
		return nil, sperrors.New(sperrors.KindNothingStaged, "No changes added to the commit.")
	}
	head, err := r.graph.Load(st.tip())
	if err != nil {
		return nil, err
	}

	return r.commitStaged(st, head, message, "")
}

// commitStaged persists staged blobs, then the commit, then moves the
// branch and clears the staging area.
func (r *Repository) commitStaged(st *state, head *commit.Commit, message, mergeParent string) (*commit.Commit, error) {
	b := commit.NewBuilder(head).
		Message(message).
		Author(r.cfg.User.Name).
		At(r.now())
	if mergeParent != "" {
		b.MergeParent(mergeParent)
	}

	for _, name := range st.staging.AddedNames() {
		data, err := st.staging.Snapshot(name)
		if err != nil {
			return nil, fmt.Errorf("reading staged %s: %w", name, err)
		}
		d, err := r.objects.Put(data)
		if err != nil {
			return nil, err
		}
		if want, _ := st.staging.Addition(name); want != d {
			return nil, sperrors.Newf(sperrors.KindCorruptObject, "staged snapshot of %s changed since it was added", name)
		}
		b.Track(name, d)
	}
	for _, name := range st.staging.PendingRemovals() {
		b.Untrack(name)
	}

	c, err := r.graph.Store(b)
	if err != nil {
		return nil, err
	}

	st.tips[st.branch] = c.Digest
	st.staging.Clear()
	if err := r.saveState(st); err != nil {
		return nil, err
	}

	r.logger.Info("committed",
		zap.String("branch", st.branch),
		zap.String("digest", c.Digest),
		zap.Int("files", len(c.Files)),
		zap.Bool("merge", c.IsMerge()))
	return c, nil
}

// Log returns the first-parent history of the current branch, newest
// first.
func (r *Repository) Log() ([]*commit.Commit, error) {
	st, err := r.loadState()
	if err != nil {
		return nil, err
	}
	return r.graph.History(st.tip())
}

// GlobalLog returns every commit ever made, newest first.
func (r *Repository) GlobalLog() ([]*commit.Commit, error) {
	summaries, err := r.graph.All()
	if err != nil {
		return nil, err
	}

	out := make([]*commit.Commit, 0, len(summaries))
	for _, s := range summaries {
		c, err := r.graph.Load(s.Digest)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sortNewestFirst(out)
	return out, nil
}

// Find returns the ids of every commit whose message is exactly message.
func (r *Repository) Find(message string) ([]string, error) {
	summaries, err := r.graph.All()
	if err != nil {
		return nil, err
	}

	var matches []commit.Summary
	for _, s := range summaries {
		if s.Message == message {
			matches = append(matches, s)
		}
	}
	if len(matches) == 0 {
		return nil, sperrors.New(sperrors.KindNoSuchCommit, "Found no commit with that message.")
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].Timestamp.Equal(matches[j].Timestamp) {
			return matches[i].Timestamp.After(matches[j].Timestamp)
		}
		return matches[i].Digest < matches[j].Digest
	})
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.Digest
	}
	return ids, nil
}

func sortNewestFirst(cs []*commit.Commit) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].Timestamp.Equal(cs[j].Timestamp) {
			return cs[i].Timestamp.After(cs[j].Timestamp)
		}
		return cs[i].Digest < cs[j].Digest
	})
}
