package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashers(t *testing.T) {
	for _, name := range []string{SHA256, BLAKE3} {
		t.Run(name, func(t *testing.T) {
			h, err := New(name)
			require.NoError(t, err)
			assert.Equal(t, name, h.Name())

			a := h.Sum([]byte("hello"))
			b := h.Sum([]byte("hello"))
			c := h.Sum([]byte("hello!"))

			assert.Equal(t, a, b)
			assert.NotEqual(t, a, c)
			assert.True(t, Valid(a))
		})
	}
}

func TestKnownSHA256(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Default().Sum(nil))
}

func TestAlgorithmsDisagree(t *testing.T) {
	s, _ := New(SHA256)
	b, _ := New(BLAKE3)
	assert.NotEqual(t, s.Sum([]byte("x")), b.Sum([]byte("x")))
}

func TestUnknownAlgorithm(t *testing.T) {
	_, err := New("md5")
	assert.Error(t, err)
}

func TestValid(t *testing.T) {
	assert.False(t, Valid("abc"))
	assert.False(t, Valid("zz"+Default().Sum(nil)[2:]))
	assert.Equal(t, "e3b0c44", Short(Default().Sum(nil)))
	assert.Equal(t, "abc", Short("abc"))
}
