// Package commit implements the commit graph: immutable snapshots linked to
// their parents, stored in the object store and addressed by the digest of
// their canonical encoding.
package commit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

const RootMessage = "initial commit"

type Commit struct {
	Digest    string            `json:"-"`
	Message   string            `json:"message"`
	Author    string            `json:"author,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Parents   []string          `json:"parents"`
	Files     map[string]string `json:"files"`
}

// Parent returns the first parent, or "" for the root commit.
func (c *Commit) Parent() string {
	if len(c.Parents) == 0 {
		return ""
	}
	return c.Parents[0]
}

func (c *Commit) IsMerge() bool {
	return len(c.Parents) == 2
}

// Tracks reports whether name is in the snapshot and returns its blob.
func (c *Commit) Tracks(name string) (string, bool) {
	d, ok := c.Files[name]
	return d, ok
}

// Names returns the tracked file names in sorted order.
func (c *Commit) Names() []string {
	names := make([]string, 0, len(c.Files))
	for n := range c.Files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Encode returns the canonical serialization. Field order is fixed by the
// struct and encoding/json sorts map keys, so equal commits always encode to
// equal bytes.
func (c *Commit) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// Decode parses a canonical serialization. It rejects anything that is not
// shaped like a commit so that blob ids are not mistaken for commits.
func Decode(data []byte) (*Commit, error) {
	var wire struct {
		Message   *string           `json:"message"`
		Author    string            `json:"author"`
		Timestamp *time.Time        `json:"timestamp"`
		Parents   []string          `json:"parents"`
		Files     map[string]string `json:"files"`
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding commit: %w", err)
	}
	if wire.Message == nil || wire.Timestamp == nil || wire.Files == nil {
		return nil, fmt.Errorf("decoding commit: missing required field")
	}
	if len(wire.Parents) > 2 {
		return nil, fmt.Errorf("decoding commit: %d parents", len(wire.Parents))
	}

	return &Commit{
		Message:   *wire.Message,
		Author:    wire.Author,
		Timestamp: wire.Timestamp.UTC(),
		Parents:   wire.Parents,
		Files:     wire.Files,
	}, nil
}

// Builder assembles a commit before it is persisted. A persisted Commit is
// never mutated.
type Builder struct {
	c Commit
}

// NewRoot starts the parentless commit every repository begins with.
func NewRoot() *Builder {
	return &Builder{c: Commit{
		Message:   RootMessage,
		Timestamp: time.Unix(0, 0).UTC(),
		Files:     map[string]string{},
	}}
}

// NewBuilder starts a child of parent that initially tracks the same files.
func NewBuilder(parent *Commit) *Builder {
	files := make(map[string]string, len(parent.Files))
	for n, d := range parent.Files {
		files[n] = d
	}
	return &Builder{c: Commit{
		Parents: []string{parent.Digest},
		Files:   files,
	}}
}

func (b *Builder) Message(msg string) *Builder {
	b.c.Message = msg
	return b
}

func (b *Builder) Author(name string) *Builder {
	b.c.Author = name
	return b
}

func (b *Builder) At(t time.Time) *Builder {
	b.c.Timestamp = t.UTC().Round(0)
	return b
}

// MergeParent records the second parent of a merge commit.
func (b *Builder) MergeParent(digest string) *Builder {
	if len(b.c.Parents) == 0 {
		panic("commit: merge parent on a commit without a first parent")
	}
	b.c.Parents = append(b.c.Parents[:1:1], digest)
	return b
}

func (b *Builder) Track(name, blob string) *Builder {
	b.c.Files[name] = blob
	return b
}

func (b *Builder) Untrack(name string) *Builder {
	delete(b.c.Files, name)
	return b
}

// Build returns the finished commit with its encoding. The digest is left
// for the store to fill in.
func (b *Builder) Build() (*Commit, []byte, error) {
	c := b.c
	c.Files = make(map[string]string, len(b.c.Files))
	for n, d := range b.c.Files {
		c.Files[n] = d
	}
	if len(b.c.Parents) > 0 {
		c.Parents = append([]string(nil), b.c.Parents...)
	}

	data, err := c.Encode()
	if err != nil {
		return nil, nil, err
	}
	return &c, data, nil
}
