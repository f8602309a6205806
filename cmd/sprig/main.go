// cmd/sprig/main.go
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sprig/internal/config"
	sperrors "sprig/internal/errors"
	"sprig/internal/logging"
	"sprig/internal/repo"
	"sprig/internal/worktree"
)

// app carries what every command needs once the root command has parsed
// its flags.
type app struct {
	out     io.Writer
	dir     string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	rootCmd := &cobra.Command{
		Use:   "sprig",
		Short: "Sprig is a small local version control system",
		Long: `Sprig keeps snapshots of a working tree in a content-addressed store,
with branches, a commit graph and three-way merges.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				a.logger.Sync()
			}
		},
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().StringVarP(&a.dir, "dir", "C", "", "Run as if started in this directory")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(
		a.initCmd(),
		a.addCmd(),
		a.rmCmd(),
		a.commitCmd(),
		a.checkoutCmd(),
		a.branchCmd(),
		a.rmBranchCmd(),
		a.resetCmd(),
		a.mergeCmd(),
		a.logCmd(),
		a.globalLogCmd(),
		a.findCmd(),
		a.statusCmd(),
		a.diffCmd(),
		a.verifyCmd(),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
		a.dir = cwd
	}
	dir, err := filepath.Abs(a.dir)
	if err != nil {
		return err
	}
	a.dir = dir

	var repoConfig []byte
	if root, err := worktree.FindRoot(a.dir); err == nil {
		data, err := os.ReadFile(filepath.Join(root, worktree.MetaDir, config.RepoFileName))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("reading repository config: %w", err)
		}
		repoConfig = data
	}

	cfg, err := config.Load(config.LoadOptions{
		UserFile:   config.UserConfigPath(),
		RepoConfig: repoConfig,
	})
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	a.cfg = cfg

	level := cfg.Log.Level
	if a.verbose {
		level = "debug"
	}
	logger, err := logging.NewLogger(level)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	a.logger = logger.WithInvocation(uuid.NewString(), cmd.Name())

	color.NoColor = !a.useColor()
	return nil
}

func (a *app) useColor() bool {
	switch a.cfg.Color {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := a.out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// openRepo attaches to the repository containing the working directory.
func (a *app) openRepo() (*repo.Repository, error) {
	root, err := worktree.FindRoot(a.dir)
	if err != nil {
		return nil, err
	}
	return repo.Open(repo.Options{
		Fs:     afero.NewBasePathFs(afero.NewOsFs(), root),
		Root:   root,
		Config: a.cfg,
		Logger: a.logger,
	})
}

// withRepo opens the repository, runs fn and closes it again.
func (a *app) withRepo(fn func(r *repo.Repository) error) error {
	r, err := a.openRepo()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil {
			a.logger.Warn("closing repository", zap.Error(cerr))
		}
	}()
	return fn(r)
}

// errorText is the line printed for a failed command. Engine errors carry
// a message meant for the user; anything else is marked as coming from
// sprig itself.
func errorText(err error) string {
	if sperrors.KindOf(err) != "" {
		return err.Error()
	}
	return "sprig: " + err.Error()
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorText(err))
		os.Exit(1)
	}
}
