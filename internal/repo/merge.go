package repo

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"sprig/internal/commit"
	sperrors "sprig/internal/errors"
)

type Outcome int

const (
	// Ancestor means the other branch was already contained in the
	// current one; nothing changed.
	Ancestor Outcome = iota
	// FastForward means the current branch moved to the other tip.
	FastForward
	// Merged means a merge commit was created.
	Merged
)

type MergeResult struct {
	Outcome   Outcome
	Conflict  bool
	Conflicts []string
	// Commit is the merge commit, or the new tip after a fast-forward.
	Commit *commit.Commit
}

// Message is the line reported to the user for the outcome.
func (m *MergeResult) Message() string {
	switch {
	case m.Outcome == Ancestor:
		return "Given branch is an ancestor of the current branch."
	case m.Outcome == FastForward:
		return "Current branch fast-forwarded."
	case m.Conflict:
		return "Encountered a merge conflict."
	}
	return ""
}

type mergeAction int

const (
	keepCurrent mergeAction = iota
	takeOther
	removeFile
	conflict
)

type mergeStep struct {
	name   string
	action mergeAction
	cur    string
	other  string
}

// planMerge classifies every file in the three snapshots. An empty digest
// means the file is absent from that snapshot.
func planMerge(split, cur, other *commit.Commit) []mergeStep {
	names := make(map[string]struct{})
	for _, c := range []*commit.Commit{split, cur, other} {
		for n := range c.Files {
			names[n] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	var plan []mergeStep
	for _, n := range sorted {
		s, c, o := split.Files[n], cur.Files[n], other.Files[n]
		step := mergeStep{name: n, cur: c, other: o}

		switch {
		case c == o:
			// Same on both sides, including both deleted.
			continue
		case c == s:
			// Only the other side changed it.
			if o == "" {
				step.action = removeFile
			} else {
				step.action = takeOther
			}
		case o == s:
			// Only the current side changed it.
			continue
		default:
			step.action = conflict
		}
		plan = append(plan, step)
	}
	return plan
}

func conflictContent(cur, other []byte) []byte {
	out := make([]byte, 0, len(cur)+len(other)+32)
	out = append(out, "<<<<<<< HEAD\n"...)
	out = append(out, cur...)
	out = append(out, "=======\n"...)
	out = append(out, other...)
	out = append(out, ">>>>>>>\n"...)
	return out
}

// Merge integrates branch into the current branch.
func (r *Repository) Merge(branch string) (*MergeResult, error) {
	st, err := r.loadState()
	if err != nil {
		return nil, err
	}
	if !st.staging.IsEmpty() {
		return nil, sperrors.New(sperrors.KindDirtyStagingArea, "You have uncommitted changes.")
	}
	otherTip, ok := st.tips[branch]
	if !ok {
		return nil, sperrors.New(sperrors.KindNoSuchBranch, "A branch with that name does not exist.")
	}
	if branch == st.branch {
		return nil, sperrors.New(sperrors.KindSelfMerge, "Cannot merge a branch with itself.")
	}

	cur, err := r.graph.Load(st.tip())
	if err != nil {
		return nil, err
	}
	other, err := r.graph.Load(otherTip)
	if err != nil {
		return nil, err
	}

	splitDigest, err := r.graph.FindLCA(cur.Digest, other.Digest)
	if err != nil {
		return nil, err
	}
	log := r.logger.With(
		zap.String("current", st.branch),
		zap.String("other", branch),
		zap.String("split", splitDigest))

	if splitDigest == other.Digest {
		log.Info("merge: other branch is an ancestor")
		return &MergeResult{Outcome: Ancestor}, nil
	}

	if splitDigest == cur.Digest {
		if err := r.replaceTree(cur, other); err != nil {
			return nil, err
		}
		st.tips[st.branch] = other.Digest
		st.staging.Clear()
		if err := r.saveState(st); err != nil {
			return nil, err
		}
		log.Info("merge: fast-forwarded")
		return &MergeResult{Outcome: FastForward, Commit: other}, nil
	}

	split, err := r.graph.Load(splitDigest)
	if err != nil {
		return nil, err
	}
	plan := planMerge(split, cur, other)

	touched := make([]string, len(plan))
	for i, step := range plan {
		touched[i] = step.name
	}
	if err := r.checkUntracked(cur, touched); err != nil {
		return nil, err
	}

	result := &MergeResult{Outcome: Merged}
	for _, step := range plan {
		if err := r.applyMergeStep(st, step, result); err != nil {
			return nil, err
		}
	}

	msg := fmt.Sprintf("Merged %s into %s.", branch, st.branch)
	c, err := r.commitStaged(st, cur, msg, other.Digest)
	if err != nil {
		return nil, err
	}
	result.Commit = c

	log.Info("merge: created merge commit",
		zap.String("digest", c.Digest),
		zap.Strings("conflicts", result.Conflicts))
	return result, nil
}

func (r *Repository) applyMergeStep(st *state, step mergeStep, result *MergeResult) error {
	switch step.action {
	case takeOther:
		data, err := r.objects.Get(step.other)
		if err != nil {
			return err
		}
		if err := r.tree.Write(step.name, data); err != nil {
			return err
		}
		return st.staging.StageForAddition(step.name, step.other, data)

	case removeFile:
		st.staging.StageForRemoval(step.name)
		return r.tree.Remove(step.name)

	case conflict:
		curData, err := r.blobOrEmpty(step.cur)
		if err != nil {
			return err
		}
		otherData, err := r.blobOrEmpty(step.other)
		if err != nil {
			return err
		}
		data := conflictContent(curData, otherData)
		if err := r.tree.Write(step.name, data); err != nil {
			return err
		}
		result.Conflict = true
		result.Conflicts = append(result.Conflicts, step.name)
		return st.staging.StageForAddition(step.name, r.objects.Digest(data), data)
	}
	return nil
}

func (r *Repository) blobOrEmpty(hash string) ([]byte, error) {
	if hash == "" {
		return nil, nil
	}
	return r.objects.Get(hash)
}
