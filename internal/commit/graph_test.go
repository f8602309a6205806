package commit

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sperrors "sprig/internal/errors"
	"sprig/internal/safe"
	"sprig/internal/storage"
)

type fixture struct {
	graph *Graph
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	db, err := storage.OpenDB("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	objects, err := safe.New(afero.NewMemMapFs(), db, safe.Options{Root: "objects"})
	require.NoError(t, err)
	t.Cleanup(objects.Close)

	return &fixture{
		graph: NewGraph(objects, NewIndex(db), nil),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) root(t *testing.T) *Commit {
	c, err := f.graph.Store(NewRoot())
	require.NoError(t, err)
	return c
}

func (f *fixture) child(t *testing.T, msg string, parent *Commit, merged ...*Commit) *Commit {
	f.clock = f.clock.Add(time.Minute)
	b := NewBuilder(parent).Message(msg).At(f.clock).Track(msg+".txt", strings.Repeat("a", 64))
	for _, m := range merged {
		b.MergeParent(m.Digest)
	}
	c, err := f.graph.Store(b)
	require.NoError(t, err)
	return c
}

func TestEncodeIsCanonical(t *testing.T) {
	b := NewRoot().Message("m").Track("b", "2").Track("a", "1")
	c1, data1, err := b.Build()
	require.NoError(t, err)

	b2 := NewRoot().Message("m").Track("a", "1").Track("b", "2")
	_, data2, err := b2.Build()
	require.NoError(t, err)

	assert.Equal(t, data1, data2)

	decoded, err := Decode(data1)
	require.NoError(t, err)
	assert.Equal(t, c1, decoded)
}

func TestDecodeRejectsNonCommits(t *testing.T) {
	for _, in := range []string{
		"hello world",
		`{"message":"x"}`,
		`{"message":"x","timestamp":"2024-01-01T00:00:00Z","files":{},"extra":1}`,
		`{"message":"x","timestamp":"2024-01-01T00:00:00Z","files":{},"parents":["a","b","c"]}`,
	} {
		_, err := Decode([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestBuilderDoesNotAliasParent(t *testing.T) {
	f := newFixture(t)
	root := f.root(t)

	c := f.child(t, "c1", root)
	assert.Empty(t, root.Files)
	assert.Len(t, c.Files, 1)
	assert.Equal(t, []string{root.Digest}, c.Parents)
}

func TestStoreAndLoad(t *testing.T) {
	f := newFixture(t)
	root := f.root(t)
	assert.Equal(t, RootMessage, root.Message)
	assert.Equal(t, int64(0), root.Timestamp.Unix())

	again := f.root(t)
	assert.Equal(t, root.Digest, again.Digest, "identical content yields identical digest")

	c := f.child(t, "c1", root)
	loaded, err := f.graph.Load(c.Digest)
	require.NoError(t, err)
	assert.Equal(t, c, loaded)
}

func TestLoadBlobIsNotACommit(t *testing.T) {
	f := newFixture(t)
	hash, err := f.graph.objects.PutKind(safe.KindBlob, []byte("plain file"))
	require.NoError(t, err)

	_, err = f.graph.Load(hash)
	assert.True(t, errors.Is(err, sperrors.ErrNoSuchCommit))
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	root := f.root(t)
	c := f.child(t, "c1", root)

	t.Run("full id", func(t *testing.T) {
		got, err := f.graph.Resolve(c.Digest)
		require.NoError(t, err)
		assert.Equal(t, c.Digest, got)
	})

	t.Run("abbreviated id", func(t *testing.T) {
		got, err := f.graph.Resolve(c.Digest[:8])
		require.NoError(t, err)
		assert.Equal(t, c.Digest, got)

		got, err = f.graph.Resolve(strings.ToUpper(c.Digest[:8]))
		require.NoError(t, err)
		assert.Equal(t, c.Digest, got)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := f.graph.Resolve(c.Digest[:3])
		assert.True(t, errors.Is(err, sperrors.ErrNoSuchCommit))
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := f.graph.Resolve(strings.Repeat("0", 64))
		assert.True(t, errors.Is(err, sperrors.ErrNoSuchCommit))

		_, err = f.graph.Resolve("not-hex")
		assert.True(t, errors.Is(err, sperrors.ErrNoSuchCommit))
	})
}

func TestHistoryFollowsFirstParent(t *testing.T) {
	f := newFixture(t)
	root := f.root(t)
	c1 := f.child(t, "c1", root)
	side := f.child(t, "side", root)
	m := f.child(t, "merge", c1, side)

	hist, err := f.graph.History(m.Digest)
	require.NoError(t, err)

	var msgs []string
	for _, c := range hist {
		msgs = append(msgs, c.Message)
	}
	assert.Equal(t, []string{"merge", "c1", RootMessage}, msgs)
}

func TestWalkOrders(t *testing.T) {
	f := newFixture(t)
	root := f.root(t)
	a := f.child(t, "a", root)
	b := f.child(t, "b", root)
	a2 := f.child(t, "a2", a)
	m := f.child(t, "m", a2, b)

	collect := func(order Order) []string {
		var got []string
		require.NoError(t, f.graph.Walk([]string{m.Digest}, order, func(c *Commit) error {
			got = append(got, c.Message)
			return nil
		}))
		return got
	}

	bfs := collect(BreadthFirst)
	assert.Equal(t, []string{"m", "a2", "b", "a", RootMessage}, bfs)

	dfs := collect(DepthFirst)
	assert.Len(t, dfs, 5)
	assert.Equal(t, "m", dfs[0])
	assert.ElementsMatch(t, bfs, dfs)
}

func TestAncestors(t *testing.T) {
	f := newFixture(t)
	root := f.root(t)
	a := f.child(t, "a", root)
	b := f.child(t, "b", root)
	m := f.child(t, "m", a, b)

	anc, err := f.graph.Ancestors(m.Digest)
	require.NoError(t, err)
	assert.Len(t, anc, 4)
	assert.Contains(t, anc, b.Digest)

	anc, err = f.graph.Ancestors(a.Digest)
	require.NoError(t, err)
	assert.Len(t, anc, 2)
	assert.NotContains(t, anc, b.Digest)
}

func TestFindLCA(t *testing.T) {
	f := newFixture(t)
	root := f.root(t)
	c1 := f.child(t, "c1", root)
	c2 := f.child(t, "c2", c1)
	feature := f.child(t, "feature", c2)
	main := f.child(t, "main", c2)

	t.Run("linear history", func(t *testing.T) {
		split, err := f.graph.FindLCA(c2.Digest, c1.Digest)
		require.NoError(t, err)
		assert.Equal(t, c1.Digest, split)

		split, err = f.graph.FindLCA(c1.Digest, c2.Digest)
		require.NoError(t, err)
		assert.Equal(t, c1.Digest, split)
	})

	t.Run("same commit", func(t *testing.T) {
		split, err := f.graph.FindLCA(c2.Digest, c2.Digest)
		require.NoError(t, err)
		assert.Equal(t, c2.Digest, split)
	})

	t.Run("diverged", func(t *testing.T) {
		split, err := f.graph.FindLCA(main.Digest, feature.Digest)
		require.NoError(t, err)
		assert.Equal(t, c2.Digest, split)
	})

	t.Run("after merge", func(t *testing.T) {
		merged := f.child(t, "merged", main, feature)
		more := f.child(t, "more", feature)

		split, err := f.graph.FindLCA(merged.Digest, more.Digest)
		require.NoError(t, err)
		assert.Equal(t, feature.Digest, split)
	})
}

func TestFindLCATieGoesToClosest(t *testing.T) {
	f := newFixture(t)
	root := f.root(t)

	// Two commits with the same timestamp; the one nearer b must win.
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	x, err := f.graph.Store(NewBuilder(root).Message("x").At(at))
	require.NoError(t, err)
	y, err := f.graph.Store(NewBuilder(x).Message("y").At(at))
	require.NoError(t, err)

	f.clock = at
	a := f.child(t, "a", y)
	b := f.child(t, "b", y)

	split, err := f.graph.FindLCA(a.Digest, b.Digest)
	require.NoError(t, err)
	assert.Equal(t, y.Digest, split)
}

func TestAllListsIndexedCommits(t *testing.T) {
	f := newFixture(t)
	root := f.root(t)
	f.child(t, "c1", root)

	all, err := f.graph.All()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
