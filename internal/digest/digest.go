// Package digest computes the content identifiers used throughout the
// repository. A digest is the lowercase hex encoding of a 256-bit hash.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"lukechampine.com/blake3"
)

const (
	SHA256 = "sha256"
	BLAKE3 = "blake3"

	// Size is the length of a digest in hex characters.
	Size = 64
)

type Hasher interface {
	Name() string
	Sum(content []byte) string
}

type sha256Hasher struct{}

func (sha256Hasher) Name() string { return SHA256 }

func (sha256Hasher) Sum(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

type blake3Hasher struct{}

func (blake3Hasher) Name() string { return BLAKE3 }

func (blake3Hasher) Sum(content []byte) string {
	h := blake3.Sum256(content)
	return hex.EncodeToString(h[:])
}

// New returns the hasher registered under name.
func New(name string) (Hasher, error) {
	switch strings.ToLower(name) {
	case "", SHA256:
		return sha256Hasher{}, nil
	case BLAKE3:
		return blake3Hasher{}, nil
	}
	return nil, fmt.Errorf("unknown hash algorithm %q", name)
}

// Default is the sha256 hasher.
func Default() Hasher {
	return sha256Hasher{}
}

// Valid reports whether s looks like a full digest.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Short abbreviates a digest for display.
func Short(s string) string {
	if len(s) <= 7 {
		return s
	}
	return s[:7]
}
