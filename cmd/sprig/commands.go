package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sprig/internal/digest"
	sperrors "sprig/internal/errors"
	"sprig/internal/repo"
	"sprig/internal/watch"
	"sprig/internal/worktree"
)

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a new repository in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Init(repo.Options{
				Fs:     afero.NewBasePathFs(afero.NewOsFs(), a.dir),
				Root:   a.dir,
				Config: a.cfg,
				Logger: a.logger,
			})
			if err != nil {
				return err
			}
			defer r.Close()

			fmt.Fprintf(a.out, "Initialized empty sprig repository in %s (%s)\n", a.dir, r.HashName())
			return nil
		},
	}
}

func (a *app) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <file>",
		Short: "Stage a file for the next commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(r *repo.Repository) error {
				return r.Add(args[0])
			})
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <file>",
		Short: "Unstage a file, or stage a tracked file for removal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(r *repo.Repository) error {
				return r.Rm(args[0])
			})
		},
	}
}

func (a *app) commitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit <message>",
		Short: "Record the staged changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(r *repo.Repository) error {
				c, err := r.Commit(args[0])
				if err != nil {
					return err
				}
				branch, _, err := r.Head()
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "[%s %s] %s\n", branch, digest.Short(c.Digest), c.Message)
				return nil
			})
		},
	}
}

func (a *app) checkoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <branch> | -- <file> | <commit> -- <file>",
		Short: "Switch branches or restore a file",
		Long: `checkout <branch>            switch to branch and replace the working tree
checkout -- <file>           restore file from the current commit
checkout <commit> -- <file>  restore file from the given commit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dash := cmd.ArgsLenAtDash()
			return a.withRepo(func(r *repo.Repository) error {
				switch {
				case dash == -1 && len(args) == 1:
					return r.CheckoutBranch(args[0])
				case dash == 0 && len(args) == 1:
					return r.CheckoutFile("", args[0])
				case dash == 1 && len(args) == 2:
					return r.CheckoutFile(args[0], args[1])
				}
				return sperrors.New(sperrors.KindInvalidArgument, "Incorrect operands.")
			})
		},
	}
}

func (a *app) branchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "branch [name]",
		Short: "Create a branch, or list branches",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(r *repo.Repository) error {
				if len(args) == 1 {
					return r.Branch(args[0])
				}
				current, names, err := r.Branches()
				if err != nil {
					return err
				}
				printBranches(a.out, current, names)
				return nil
			})
		},
	}
}

func (a *app) rmBranchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm-branch <name>",
		Short: "Delete a branch pointer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(r *repo.Repository) error {
				return r.RemoveBranch(args[0])
			})
		},
	}
}

func (a *app) resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <commit>",
		Short: "Move the current branch to a commit and check it out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(r *repo.Repository) error {
				return r.Reset(args[0])
			})
		},
	}
}

func (a *app) mergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <branch>",
		Short: "Merge a branch into the current branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(r *repo.Repository) error {
				res, err := r.Merge(args[0])
				if err != nil {
					return err
				}
				if msg := res.Message(); msg != "" {
					fmt.Fprintln(a.out, msg)
				}
				return nil
			})
		},
	}
}

func (a *app) logCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "Show the history of the current branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(r *repo.Repository) error {
				commits, err := r.Log()
				if err != nil {
					return err
				}
				printLog(a.out, commits)
				return nil
			})
		},
	}
}

func (a *app) globalLogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "global-log",
		Short: "Show every commit ever made",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(r *repo.Repository) error {
				commits, err := r.GlobalLog()
				if err != nil {
					return err
				}
				printLog(a.out, commits)
				return nil
			})
		},
	}
}

func (a *app) findCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find <message>",
		Short: "Print the ids of commits with the given message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(r *repo.Repository) error {
				ids, err := r.Find(args[0])
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(a.out, id)
				}
				return nil
			})
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	var watchFlag bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show branches, staged files and working tree changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The repository is opened per refresh so that a watching
			// status never holds the index lock between refreshes.
			show := func() error {
				return a.withRepo(func(r *repo.Repository) error {
					st, err := r.Status()
					if err != nil {
						return err
					}
					printStatus(a.out, st)
					return nil
				})
			}
			if err := show(); err != nil {
				return err
			}
			if !watchFlag {
				return nil
			}

			root, err := worktree.FindRoot(a.dir)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.watchStatus(ctx, root, show)
		},
	}
	cmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Print status again whenever the working tree changes")
	return cmd
}

func (a *app) watchStatus(ctx context.Context, root string, show func() error) error {
	w, err := watch.New(root, watch.Options{
		SkipDirs: []string{worktree.MetaDir},
		Logger:   a.logger.Named("watch"),
	})
	if err != nil {
		return err
	}

	err = w.Run(ctx, func() {
		fmt.Fprintln(a.out)
		// Another command may hold the index for a moment; the next
		// change triggers another refresh.
		if err := show(); err != nil {
			a.logger.Warn("refreshing status", zap.Error(err))
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff [file...]",
		Short: "Show unstaged changes in the working tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(r *repo.Repository) error {
				diffs, err := r.Diff(args...)
				if err != nil {
					return err
				}
				for _, d := range diffs {
					printDiff(a.out, d)
				}
				return nil
			})
		},
	}
}

func (a *app) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check every reachable object against its digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(r *repo.Repository) error {
				report, err := r.Verify()
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Verified %d objects (%d bytes, %d stored).\n",
					report.Objects, report.Bytes, report.StoredBytes)
				return nil
			})
		},
	}
}
