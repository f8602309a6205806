package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := Newf(KindNoSuchBranch, "branch %q does not exist", "feature")
	wrapped := fmt.Errorf("checking out: %w", err)

	assert.True(t, stderrors.Is(wrapped, ErrNoSuchBranch))
	assert.False(t, stderrors.Is(wrapped, ErrSameBranch))
	assert.Equal(t, KindNoSuchBranch, KindOf(wrapped))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("disk on fire")
	err := Wrap(KindCorruptObject, cause, "decoding commit")

	assert.Equal(t, "decoding commit: disk on fire", err.Error())
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, stderrors.Is(err, ErrCorruptObject))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(stderrors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}
