// Package safe is the content-addressed object store. Objects are written
// once under objects/<first two digest chars>/<remaining chars> and are
// never modified afterwards.
package safe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"sprig/internal/digest"
	sperrors "sprig/internal/errors"
	"sprig/internal/storage"
)

type Kind string

const (
	KindBlob   Kind = "blob"
	KindCommit Kind = "commit"
)

// ObjectMeta is the index record kept for every stored object. The object
// file is authoritative; the record only speeds up lookups.
type ObjectMeta struct {
	Hash       string    `json:"hash"`
	Kind       Kind      `json:"kind"`
	Size       int64     `json:"size"`
	StoredSize int64     `json:"stored_size"`
	Compressed bool      `json:"compressed"`
	CreatedAt  time.Time `json:"created_at"`
}

type Safe struct {
	fs     afero.Fs
	root   string
	hasher digest.Hasher
	meta   *storage.Table[ObjectMeta]
	cache  *lru.Cache[string, []byte]
	codec  *compressionManager
	logger *zap.Logger
}

type Options struct {
	Root        string // objects directory, relative to the filesystem
	CacheSize   int    // entries; zero disables the cache
	Compression CompressionOptions
	Hasher      digest.Hasher
	Logger      *zap.Logger
}

func New(fs afero.Fs, db *badger.DB, opts Options) (*Safe, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	if opts.Hasher == nil {
		opts.Hasher = digest.Default()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if err := fs.MkdirAll(opts.Root, 0755); err != nil {
		return nil, fmt.Errorf("creating root directory: %w", err)
	}

	var cache *lru.Cache[string, []byte]
	if opts.CacheSize > 0 {
		c, err := lru.New[string, []byte](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating cache: %w", err)
		}
		cache = c
	}

	codec, err := newCompressionManager(opts.Compression)
	if err != nil {
		return nil, err
	}

	return &Safe{
		fs:     fs,
		root:   opts.Root,
		hasher: opts.Hasher,
		meta:   storage.NewTable(db, "object", func(m *ObjectMeta) string { return m.Hash }),
		cache:  cache,
		codec:  codec,
		logger: opts.Logger,
	}, nil
}

func (s *Safe) Close() {
	s.codec.close()
}

// Hasher is the digest function objects are addressed by.
func (s *Safe) Hasher() digest.Hasher {
	return s.hasher
}

// Digest returns the address content would be stored under without storing
// it.
func (s *Safe) Digest(content []byte) string {
	return s.hasher.Sum(content)
}

// Put stores content as a blob.
func (s *Safe) Put(content []byte) (string, error) {
	return s.PutKind(KindBlob, content)
}

// PutKind stores content and returns its digest. Storing the same bytes
// twice is a no-op.
func (s *Safe) PutKind(kind Kind, content []byte) (string, error) {
	if content == nil {
		content = []byte{}
	}
	hash := s.hasher.Sum(content)
	path := s.contentPath(hash)

	exists, err := afero.Exists(s.fs, path)
	if err != nil {
		return "", fmt.Errorf("checking existence: %w", err)
	}
	if exists {
		return hash, nil
	}

	if err := s.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating content directory: %w", err)
	}

	stored, compressed := s.codec.compress(content)

	// Write to a temp name and rename so a crash never leaves a partial
	// object under its final address.
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, stored, 0444); err != nil {
		return "", fmt.Errorf("writing content file: %w", err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		s.fs.Remove(tmp)
		return "", fmt.Errorf("publishing content file: %w", err)
	}

	meta := &ObjectMeta{
		Hash:       hash,
		Kind:       kind,
		Size:       int64(len(content)),
		StoredSize: int64(len(stored)),
		Compressed: compressed,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.meta.Put(meta); err != nil {
		// The object itself is durable; a missing index record is tolerated.
		s.logger.Warn("failed to index object", zap.String("hash", hash), zap.Error(err))
	}

	if s.cache != nil {
		s.cache.Add(hash, content)
	}

	s.logger.Debug("stored object",
		zap.String("hash", hash),
		zap.String("kind", string(kind)),
		zap.Int("size", len(content)),
		zap.Bool("compressed", compressed))

	return hash, nil
}

// Get returns the bytes stored under hash, verifying them against it.
func (s *Safe) Get(hash string) ([]byte, error) {
	if !digest.Valid(hash) {
		return nil, sperrors.Newf(sperrors.KindObjectNotFound, "invalid object id %q", hash)
	}

	if s.cache != nil {
		if content, ok := s.cache.Get(hash); ok {
			return content, nil
		}
	}

	raw, err := afero.ReadFile(s.fs, s.contentPath(hash))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, sperrors.Newf(sperrors.KindObjectNotFound, "object %s not found", hash)
		}
		return nil, fmt.Errorf("reading content: %w", err)
	}

	content, err := s.decode(hash, raw)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Add(hash, content)
	}
	return content, nil
}

// decode undoes compression and checks the digest. Small raw objects may
// happen to start with the zstd magic, so a raw match is accepted too.
func (s *Safe) decode(hash string, raw []byte) ([]byte, error) {
	if isCompressed(raw) {
		content, err := s.codec.decompress(raw)
		if err == nil && s.hasher.Sum(content) == hash {
			return content, nil
		}
	}
	if s.hasher.Sum(raw) == hash {
		return raw, nil
	}
	s.logger.Error("object failed verification", zap.String("hash", hash))
	return nil, sperrors.Newf(sperrors.KindCorruptObject, "object %s is corrupt", hash)
}

func (s *Safe) Exists(hash string) (bool, error) {
	if !digest.Valid(hash) {
		return false, nil
	}
	if s.cache != nil && s.cache.Contains(hash) {
		return true, nil
	}
	return afero.Exists(s.fs, s.contentPath(hash))
}

// Stat returns the index record for hash.
func (s *Safe) Stat(hash string) (*ObjectMeta, error) {
	meta, err := s.meta.Get(hash)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, sperrors.Wrap(sperrors.KindObjectNotFound, err, "no index record")
	}
	return meta, err
}

// Verify re-reads hash from disk, bypassing the cache.
func (s *Safe) Verify(hash string) error {
	if s.cache != nil {
		s.cache.Remove(hash)
	}
	_, err := s.Get(hash)
	return err
}

func (s *Safe) contentPath(hash string) string {
	return filepath.Join(s.root, hash[:2], hash[2:])
}
