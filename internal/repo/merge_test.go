package repo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprig/internal/commit"
	sperrors "sprig/internal/errors"
)

func TestMergeConflict(t *testing.T) {
	tr := newTestRepo(t)
	tr.commitFile(t, "foo.txt", "v1\n", "c1")
	c2 := tr.commitFile(t, "foo.txt", "v2\n", "c2")

	require.NoError(t, tr.Branch("feature"))
	require.NoError(t, tr.CheckoutBranch("feature"))
	c3 := tr.commitFile(t, "foo.txt", "v3\n", "c3")

	require.NoError(t, tr.CheckoutBranch("main"))
	c4 := tr.commitFile(t, "foo.txt", "v4\n", "c4")

	split, err := tr.graph.FindLCA(c4.Digest, c3.Digest)
	require.NoError(t, err)
	assert.Equal(t, c2.Digest, split)

	res, err := tr.Merge("feature")
	require.NoError(t, err)

	assert.Equal(t, Merged, res.Outcome)
	assert.True(t, res.Conflict)
	assert.Equal(t, []string{"foo.txt"}, res.Conflicts)
	assert.Equal(t, "Encountered a merge conflict.", res.Message())

	want := "<<<<<<< HEAD\nv4\n=======\nv3\n>>>>>>>\n"
	assert.Equal(t, want, tr.read(t, "foo.txt"))

	mc := res.Commit
	require.NotNil(t, mc)
	assert.Equal(t, []string{c4.Digest, c3.Digest}, mc.Parents)
	assert.Equal(t, "Merged feature into main.", mc.Message)

	data, err := tr.objects.Get(mc.Files["foo.txt"])
	require.NoError(t, err)
	assert.Equal(t, want, string(data))

	head := tr.tip(t)
	assert.Equal(t, mc.Digest, head.Digest)

	st, err := tr.Status()
	require.NoError(t, err)
	assert.True(t, st.Clean())
}

func TestMergeConflictWithDeletion(t *testing.T) {
	tr := newTestRepo(t)
	tr.commitFile(t, "foo.txt", "base\n", "c1")
	require.NoError(t, tr.Branch("feature"))

	require.NoError(t, tr.Rm("foo.txt"))
	_, err := tr.Commit("drop on main")
	require.NoError(t, err)

	require.NoError(t, tr.CheckoutBranch("feature"))
	tr.commitFile(t, "foo.txt", "edited\n", "edit on feature")
	require.NoError(t, tr.CheckoutBranch("main"))

	res, err := tr.Merge("feature")
	require.NoError(t, err)
	assert.True(t, res.Conflict)
	assert.Equal(t, "<<<<<<< HEAD\n=======\nedited\n>>>>>>>\n", tr.read(t, "foo.txt"))
}

func TestMergeWithoutConflict(t *testing.T) {
	tr := newTestRepo(t)
	tr.commitFile(t, "changed.txt", "base", "c1")
	tr.commitFile(t, "gone.txt", "base", "c2")
	tr.commitFile(t, "kept.txt", "base", "c3")
	require.NoError(t, tr.Branch("feature"))

	require.NoError(t, tr.CheckoutBranch("feature"))
	tr.commitFile(t, "changed.txt", "feature", "f1")
	require.NoError(t, tr.Rm("gone.txt"))
	_, err := tr.Commit("f2")
	require.NoError(t, err)
	tr.commitFile(t, "added.txt", "feature", "f3")

	require.NoError(t, tr.CheckoutBranch("main"))
	tr.commitFile(t, "kept.txt", "main", "m1")

	res, err := tr.Merge("feature")
	require.NoError(t, err)
	assert.Equal(t, Merged, res.Outcome)
	assert.False(t, res.Conflict)
	assert.Empty(t, res.Message())

	assert.Equal(t, "feature", tr.read(t, "changed.txt"))
	assert.Equal(t, "feature", tr.read(t, "added.txt"))
	assert.Equal(t, "main", tr.read(t, "kept.txt"))
	assert.False(t, tr.exists(t, "gone.txt"))

	mc := res.Commit
	assert.True(t, mc.IsMerge())
	assert.Equal(t, []string{"added.txt", "changed.txt", "kept.txt"}, mc.Names())

	// Merging again finds the branch already contained.
	again, err := tr.Merge("feature")
	require.NoError(t, err)
	assert.Equal(t, Ancestor, again.Outcome)
}

func TestMergeFastForward(t *testing.T) {
	tr := newTestRepo(t)
	base := tr.commitFile(t, "a.txt", "a", "base")
	require.NoError(t, tr.Branch("feature"))
	require.NoError(t, tr.CheckoutBranch("feature"))
	tr.commitFile(t, "b.txt", "b", "f1")
	f2 := tr.commitFile(t, "a.txt", "a2", "f2")
	require.NoError(t, tr.CheckoutBranch("main"))

	before, err := tr.GlobalLog()
	require.NoError(t, err)

	res, err := tr.Merge("feature")
	require.NoError(t, err)
	assert.Equal(t, FastForward, res.Outcome)
	assert.Equal(t, "Current branch fast-forwarded.", res.Message())

	branch, head, err := tr.Head()
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
	assert.Equal(t, f2.Digest, head.Digest)
	assert.NotEqual(t, base.Digest, head.Digest)

	assert.Equal(t, "a2", tr.read(t, "a.txt"))
	assert.Equal(t, "b", tr.read(t, "b.txt"))

	after, err := tr.GlobalLog()
	require.NoError(t, err)
	assert.Len(t, after, len(before), "no commit is created")
}

func TestMergeAncestor(t *testing.T) {
	tr := newTestRepo(t)
	tr.commitFile(t, "a.txt", "a", "base")
	require.NoError(t, tr.Branch("old"))
	ahead := tr.commitFile(t, "a.txt", "a2", "ahead")

	res, err := tr.Merge("old")
	require.NoError(t, err)
	assert.Equal(t, Ancestor, res.Outcome)
	assert.Equal(t, "Given branch is an ancestor of the current branch.", res.Message())
	assert.Equal(t, ahead.Digest, tr.tip(t).Digest)
	assert.Equal(t, "a2", tr.read(t, "a.txt"))
}

func TestMergePreconditions(t *testing.T) {
	tr := newTestRepo(t)
	tr.commitFile(t, "a.txt", "a", "base")
	require.NoError(t, tr.Branch("feature"))

	t.Run("self", func(t *testing.T) {
		_, err := tr.Merge("main")
		assert.True(t, errors.Is(err, sperrors.ErrSelfMerge))
	})

	t.Run("missing branch", func(t *testing.T) {
		_, err := tr.Merge("ghost")
		assert.True(t, errors.Is(err, sperrors.ErrNoSuchBranch))
	})

	t.Run("dirty staging checked first", func(t *testing.T) {
		tr.write(t, "b.txt", "b")
		require.NoError(t, tr.Add("b.txt"))
		_, err := tr.Merge("ghost")
		assert.True(t, errors.Is(err, sperrors.ErrDirtyStagingArea))
		require.NoError(t, tr.Rm("b.txt"))
	})

	t.Run("untracked file in the way", func(t *testing.T) {
		require.NoError(t, tr.CheckoutBranch("feature"))
		tr.commitFile(t, "new.txt", "feature", "f1")
		require.NoError(t, tr.CheckoutBranch("main"))
		tr.commitFile(t, "a.txt", "main", "m1")

		tr.write(t, "new.txt", "local")
		head := tr.tip(t)

		_, err := tr.Merge("feature")
		assert.True(t, errors.Is(err, sperrors.ErrUntrackedFileConflict))
		assert.Equal(t, "local", tr.read(t, "new.txt"))
		assert.Equal(t, head.Digest, tr.tip(t).Digest)
		assert.Equal(t, "main", tr.read(t, "a.txt"))
	})
}

func TestPlanMerge(t *testing.T) {
	mk := func(files map[string]string) *commit.Commit {
		return &commit.Commit{Files: files}
	}
	split := mk(map[string]string{"same": "s", "ours": "s", "theirs": "s", "both": "s", "deleted": "s"})
	cur := mk(map[string]string{"same": "s", "ours": "c", "theirs": "s", "both": "c", "deleted": "s", "new": "x"})
	other := mk(map[string]string{"same": "s", "ours": "s", "theirs": "o", "both": "o", "new": "y"})

	plan := planMerge(split, cur, other)

	got := make(map[string]mergeAction, len(plan))
	for _, s := range plan {
		got[s.name] = s.action
	}
	assert.Equal(t, map[string]mergeAction{
		"theirs":  takeOther,
		"both":    conflict,
		"deleted": removeFile,
		"new":     conflict,
	}, got)
}
