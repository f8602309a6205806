// Package repo is the version-control engine. Every exported operation
// loads the repository state from disk, applies one command, and writes
// the state back; nothing is cached between calls except object bytes.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"sprig/internal/commit"
	"sprig/internal/config"
	"sprig/internal/diff"
	"sprig/internal/digest"
	sperrors "sprig/internal/errors"
	"sprig/internal/refs"
	"sprig/internal/safe"
	"sprig/internal/staging"
	"sprig/internal/storage"
	"sprig/internal/worktree"
)

const (
	MetaDir = worktree.MetaDir

	objectsDir = MetaDir + "/objects"
	stagingDir = MetaDir + "/staging"
	configFile = MetaDir + "/" + config.RepoFileName
	indexDir   = "index"
)

type Options struct {
	// Fs is rooted at the working tree; the metadata directory lives
	// inside it.
	Fs afero.Fs
	// Root is the on-disk path of Fs, used for the index database. When
	// empty the index is kept in memory.
	Root   string
	Config *config.Config
	Logger *zap.Logger
	// Now overrides the commit clock.
	Now func() time.Time
}

type Repository struct {
	fs      afero.Fs
	root    string
	cfg     *config.Config
	db      *badger.DB
	objects *safe.Safe
	graph   *commit.Graph
	refs    *refs.Table
	tree    *worktree.Tree
	differ  *diff.Engine
	logger  *zap.Logger
	now     func() time.Time
}

// Init creates a repository in opts.Fs with a root commit on the default
// branch.
func Init(opts Options) (*Repository, error) {
	if opts.Fs == nil {
		return nil, fmt.Errorf("filesystem is required")
	}
	exists, err := afero.DirExists(opts.Fs, MetaDir)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, sperrors.New(sperrors.KindAlreadyInitialized,
			"A sprig version-control system already exists in the current directory.")
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if _, err := digest.New(cfg.Core.Hash); err != nil {
		return nil, sperrors.Wrap(sperrors.KindConfig, err, "core.hash")
	}

	if err := opts.Fs.MkdirAll(objectsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", MetaDir, err)
	}
	repoConfig, err := config.RepoFile(cfg.Core.Hash)
	if err != nil {
		return nil, err
	}
	if err := afero.WriteFile(opts.Fs, configFile, repoConfig, 0644); err != nil {
		return nil, fmt.Errorf("writing repository config: %w", err)
	}

	r, err := open(opts, cfg.Core.Hash)
	if err != nil {
		return nil, err
	}

	root, err := r.graph.Store(commit.NewRoot())
	if err != nil {
		r.Close()
		return nil, err
	}

	area, err := staging.Load(r.fs, stagingDir)
	if err != nil {
		r.Close()
		return nil, err
	}
	st := &state{
		branch:  refs.DefaultBranch,
		tips:    map[string]string{refs.DefaultBranch: root.Digest},
		loaded:  map[string]string{},
		staging: area,
	}
	if err := r.saveState(st); err != nil {
		r.Close()
		return nil, err
	}

	r.logger.Info("initialized repository",
		zap.String("hash", cfg.Core.Hash),
		zap.String("root_commit", root.Digest))
	return r, nil
}

// Open attaches to an existing repository.
func Open(opts Options) (*Repository, error) {
	if opts.Fs == nil {
		return nil, fmt.Errorf("filesystem is required")
	}
	exists, err := afero.DirExists(opts.Fs, MetaDir)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, sperrors.New(sperrors.KindNotInitialized, "Not in an initialized sprig directory.")
	}

	hash := digest.SHA256
	data, err := afero.ReadFile(opts.Fs, configFile)
	switch {
	case err == nil:
		if hash, err = config.RepoHash(data); err != nil {
			return nil, sperrors.Wrap(sperrors.KindConfig, err, "reading repository config")
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	return open(opts, hash)
}

func open(opts Options, hash string) (*Repository, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	hasher, err := digest.New(hash)
	if err != nil {
		return nil, sperrors.Wrap(sperrors.KindConfig, err, "core.hash")
	}

	dbDir := ""
	if opts.Root != "" {
		dbDir = filepath.Join(opts.Root, MetaDir, indexDir)
	}
	db, err := storage.OpenDB(dbDir)
	if err != nil {
		return nil, err
	}

	objects, err := safe.New(opts.Fs, db, safe.Options{
		Root:      objectsDir,
		CacheSize: cfg.Store.CacheSize,
		Compression: safe.CompressionOptions{
			MinSize: cfg.Store.CompressMinSize,
			Level:   cfg.Store.CompressLevel,
		},
		Hasher: hasher,
		Logger: logger.Named("safe"),
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing object store: %w", err)
	}

	tree, err := worktree.New(opts.Fs)
	if err != nil {
		objects.Close()
		db.Close()
		return nil, err
	}

	return &Repository{
		fs:      opts.Fs,
		root:    opts.Root,
		cfg:     cfg,
		db:      db,
		objects: objects,
		graph:   commit.NewGraph(objects, commit.NewIndex(db), logger.Named("graph")),
		refs:    refs.NewTable(opts.Fs, MetaDir),
		tree:    tree,
		differ:  diff.NewEngine(3),
		logger:  logger,
		now:     now,
	}, nil
}

func (r *Repository) Close() error {
	r.objects.Close()
	return r.db.Close()
}

// Root is the on-disk path of the working tree, or "" for in-memory
// repositories.
func (r *Repository) Root() string {
	return r.root
}

// HashName is the digest algorithm objects are addressed by.
func (r *Repository) HashName() string {
	return r.objects.Hasher().Name()
}

// Head returns the current branch and its tip commit.
func (r *Repository) Head() (string, *commit.Commit, error) {
	st, err := r.loadState()
	if err != nil {
		return "", nil, err
	}
	c, err := r.graph.Load(st.tip())
	if err != nil {
		return "", nil, err
	}
	return st.branch, c, nil
}

// VerifyReport summarizes a Verify run. Sizes come from the object index
// and leave out objects it has no record for.
type VerifyReport struct {
	Objects     int
	Bytes       int64
	StoredBytes int64
}

// Verify re-reads every object reachable from any branch and checks it
// against its digest.
func (r *Repository) Verify() (*VerifyReport, error) {
	st, err := r.loadState()
	if err != nil {
		return nil, err
	}

	starts := make([]string, 0, len(st.tips))
	for _, tip := range st.tips {
		starts = append(starts, tip)
	}

	report := &VerifyReport{}
	check := func(hash string) error {
		if err := r.objects.Verify(hash); err != nil {
			return err
		}
		report.Objects++
		meta, err := r.objects.Stat(hash)
		switch {
		case errors.Is(err, sperrors.ErrObjectNotFound):
			r.logger.Debug("object has no index record", zap.String("hash", hash))
		case err != nil:
			return err
		default:
			report.Bytes += meta.Size
			report.StoredBytes += meta.StoredSize
		}
		return nil
	}

	seenBlobs := make(map[string]struct{})
	err = r.graph.Walk(starts, commit.DepthFirst, func(c *commit.Commit) error {
		if err := check(c.Digest); err != nil {
			return err
		}
		for _, blob := range c.Files {
			if _, ok := seenBlobs[blob]; ok {
				continue
			}
			seenBlobs[blob] = struct{}{}
			if err := check(blob); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}
