package refs

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sperrors "sprig/internal/errors"
)

func TestTable(t *testing.T) {
	table := NewTable(afero.NewMemMapFs(), ".sprig")

	names, err := table.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, table.SetTip("main", "aaaa"))
	require.NoError(t, table.SetTip("feature", "bbbb"))
	require.NoError(t, table.SetHead("main"))

	head, err := table.Head()
	require.NoError(t, err)
	assert.Equal(t, "main", head)

	tip, err := table.Tip("feature")
	require.NoError(t, err)
	assert.Equal(t, "bbbb", tip)

	names, err = table.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"feature", "main"}, names)

	tips, err := table.Tips()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"main": "aaaa", "feature": "bbbb"}, tips)

	require.NoError(t, table.SetTip("feature", "cccc"))
	tip, err = table.Tip("feature")
	require.NoError(t, err)
	assert.Equal(t, "cccc", tip)

	require.NoError(t, table.Delete("feature"))
	_, err = table.Tip("feature")
	assert.True(t, errors.Is(err, sperrors.ErrNoSuchBranch))
	assert.True(t, errors.Is(table.Delete("feature"), sperrors.ErrNoSuchBranch))
}

func TestValidName(t *testing.T) {
	for _, name := range []string{"main", "feature-1", "fix_2"} {
		assert.NoError(t, ValidName(name), name)
	}
	for _, name := range []string{"", "a/b", ".hidden", "-x", "has space", "fix.tmp"} {
		assert.True(t, errors.Is(ValidName(name), sperrors.ErrInvalidArgument), name)
	}
}

func TestTableSetTipRejectsReservedSuffix(t *testing.T) {
	table := NewTable(afero.NewMemMapFs(), ".sprig")
	require.NoError(t, table.SetTip("main", "aaaa"))

	err := table.SetTip("fix.tmp", "bbbb")
	assert.True(t, errors.Is(err, sperrors.ErrInvalidArgument))

	names, err := table.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, names)
}
