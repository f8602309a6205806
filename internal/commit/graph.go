package commit

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"sprig/internal/digest"
	sperrors "sprig/internal/errors"
	"sprig/internal/safe"
)

// MinPrefix is the shortest abbreviated id Resolve accepts.
const MinPrefix = 4

// Objects is the part of the object store the graph needs.
type Objects interface {
	PutKind(kind safe.Kind, content []byte) (string, error)
	Get(hash string) ([]byte, error)
}

type Graph struct {
	objects Objects
	index   *Index
	logger  *zap.Logger
}

func NewGraph(objects Objects, index *Index, logger *zap.Logger) *Graph {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Graph{objects: objects, index: index, logger: logger}
}

// Store persists the commit built by b and indexes it.
func (g *Graph) Store(b *Builder) (*Commit, error) {
	c, data, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("encoding commit: %w", err)
	}

	hash, err := g.objects.PutKind(safe.KindCommit, data)
	if err != nil {
		return nil, fmt.Errorf("storing commit: %w", err)
	}
	c.Digest = hash

	if err := g.index.Record(c); err != nil {
		return nil, fmt.Errorf("indexing commit: %w", err)
	}

	g.logger.Debug("stored commit",
		zap.String("digest", hash),
		zap.Strings("parents", c.Parents),
		zap.Int("files", len(c.Files)))
	return c, nil
}

// Load reads the commit stored under a full digest.
func (g *Graph) Load(hash string) (*Commit, error) {
	data, err := g.objects.Get(hash)
	if err != nil {
		if errors.Is(err, sperrors.ErrObjectNotFound) {
			return nil, sperrors.Wrap(sperrors.KindNoSuchCommit, err, "No commit with that id exists.")
		}
		return nil, err
	}

	c, err := Decode(data)
	if err != nil {
		return nil, sperrors.Wrap(sperrors.KindNoSuchCommit, err, "No commit with that id exists.")
	}
	c.Digest = hash
	return c, nil
}

// Resolve expands a full or abbreviated commit id to a full digest.
func (g *Graph) Resolve(ref string) (string, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if len(ref) < MinPrefix || len(ref) > digest.Size || !isHex(ref) {
		return "", sperrors.New(sperrors.KindNoSuchCommit, "No commit with that id exists.")
	}

	if len(ref) == digest.Size {
		ok, err := g.index.Has(ref)
		if err != nil {
			return "", err
		}
		if ok {
			return ref, nil
		}
		// Not indexed; the object store is authoritative.
		c, err := g.Load(ref)
		if err != nil {
			return "", err
		}
		if err := g.index.Record(c); err != nil {
			g.logger.Warn("failed to re-index commit", zap.String("digest", ref), zap.Error(err))
		}
		return ref, nil
	}

	matches, err := g.index.Match(ref)
	if err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", sperrors.New(sperrors.KindNoSuchCommit, "No commit with that id exists.")
	case 1:
		return matches[0], nil
	}
	return "", sperrors.Newf(sperrors.KindInvalidArgument, "Commit id %s is ambiguous.", ref)
}

// LoadRef resolves ref and loads the commit.
func (g *Graph) LoadRef(ref string) (*Commit, error) {
	hash, err := g.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return g.Load(hash)
}

// All returns every indexed commit summary.
func (g *Graph) All() ([]Summary, error) {
	return g.index.All()
}

// History follows first parents from start back to the root.
func (g *Graph) History(start string) ([]*Commit, error) {
	var out []*Commit
	for hash := start; hash != ""; {
		c, err := g.Load(hash)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		hash = c.Parent()
	}
	return out, nil
}

// Order selects the frontier discipline used by Walk.
type Order int

const (
	DepthFirst Order = iota
	BreadthFirst
)

type frontier interface {
	push(string)
	pop() string
	len() int
}

type stack []string

func (s *stack) push(h string) { *s = append(*s, h) }
func (s *stack) pop() string {
	old := *s
	h := old[len(old)-1]
	*s = old[:len(old)-1]
	return h
}
func (s *stack) len() int { return len(*s) }

type queue []string

func (q *queue) push(h string) { *q = append(*q, h) }
func (q *queue) pop() string {
	old := *q
	h := old[0]
	*q = old[1:]
	return h
}
func (q *queue) len() int { return len(*q) }

// Walk visits every commit reachable from start exactly once, following all
// parent edges. Each commit is visited when it is taken off the frontier.
func (g *Graph) Walk(start []string, order Order, visit func(*Commit) error) error {
	var f frontier
	if order == BreadthFirst {
		f = &queue{}
	} else {
		f = &stack{}
	}

	seen := make(map[string]struct{})
	for _, h := range start {
		if _, ok := seen[h]; ok || h == "" {
			continue
		}
		seen[h] = struct{}{}
		f.push(h)
	}

	for f.len() > 0 {
		c, err := g.Load(f.pop())
		if err != nil {
			return err
		}
		if err := visit(c); err != nil {
			return err
		}
		for _, p := range c.Parents {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			f.push(p)
		}
	}
	return nil
}

// Ancestors returns start and every commit reachable from it.
func (g *Graph) Ancestors(start string) (map[string]*Commit, error) {
	out := make(map[string]*Commit)
	err := g.Walk([]string{start}, DepthFirst, func(c *Commit) error {
		out[c.Digest] = c
		return nil
	})
	return out, err
}

// FindLCA returns the split point of a and b: among the common ancestors
// reached from b, the one with the newest timestamp. Ties go to the one
// discovered first by the breadth-first walk from b, which is the closest
// to b.
func (g *Graph) FindLCA(a, b string) (string, error) {
	ancestorsOfA, err := g.Ancestors(a)
	if err != nil {
		return "", err
	}

	type candidate struct {
		c     *Commit
		order int
	}
	var candidates []candidate
	err = g.Walk([]string{b}, BreadthFirst, func(c *Commit) error {
		if _, ok := ancestorsOfA[c.Digest]; ok {
			candidates = append(candidates, candidate{c: c, order: len(candidates)})
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		// Every history starts at a root commit; this means the store
		// holds more than one unrelated root.
		return "", sperrors.Newf(sperrors.KindCorruptObject,
			"commits %s and %s share no ancestor", digest.Short(a), digest.Short(b))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ti, tj := candidates[i].c.Timestamp, candidates[j].c.Timestamp
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return candidates[i].order < candidates[j].order
	})

	split := candidates[0].c.Digest
	g.logger.Debug("found split point",
		zap.String("a", a), zap.String("b", b), zap.String("split", split))
	return split, nil
}

func isHex(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}
