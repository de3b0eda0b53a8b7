// cmd/gitdock/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gitdock/git"
	"gitdock/internal/config"
	"gitdock/internal/logging"
	"gitdock/internal/watcher"
	"gitdock/patch"
	"gitdock/repository"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	workdir string
	cfg     *config.Config
	logger  = logging.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "gitdock",
	Short: "Gitdock is a stateful git facade for editors and tools",
	Long: `Gitdock wraps a git working directory behind a caching facade: reads are
memoized until a mutation invalidates them, mutations run one at a time,
and destructive discards keep an undo history.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger, err = logging.NewDevelopment(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a gitdock config file")
	rootCmd.PersistentFlags().StringVarP(&workdir, "workdir", "C", "", "run as if started in this directory")

	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize a git repository in the working directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Destroy()

			if err := repo.Init(cmd.Context(), ""); err != nil {
				return fmt.Errorf("initializing repository: %w", err)
			}
			fmt.Println("Initialized repository in", repo.Dir())
			return nil
		},
	}

	var cloneCmd = &cobra.Command{
		Use:   "clone <url> [dir]",
		Short: "Clone a repository",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			dest := cloneDest(url)
			if len(args) == 2 {
				dest = args[1]
			}

			repo := repository.NewAbsent(
				repository.WithLogger(logger),
				repository.WithBlobCacheSize(cfg.BlobCacheSize),
			)
			defer repo.Destroy()

			if err := repo.Clone(cmd.Context(), url, dest); err != nil {
				return fmt.Errorf("cloning %s: %w", url, err)
			}
			fmt.Println("Cloned into", repo.Dir())
			return nil
		},
	}

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show staged, unstaged and merge state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := openRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Destroy()

			amending, _ := cmd.Flags().GetBool("amend")
			return printStatus(ctx, repo, amending)
		},
	}
	statusCmd.Flags().Bool("amend", false, "also show changes staged relative to the parent commit")

	var stageCmd = &cobra.Command{
		Use:   "stage <paths...>",
		Short: "Stage paths into the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Destroy()

			fromParent, _ := cmd.Flags().GetBool("parent")
			if fromParent {
				if err := repo.StageFilesFromParentCommit(cmd.Context(), args...); err != nil {
					return fmt.Errorf("staging from parent commit: %w", err)
				}
			} else if err := repo.StageFiles(cmd.Context(), args...); err != nil {
				return fmt.Errorf("staging: %w", err)
			}
			return nil
		},
	}
	stageCmd.Flags().Bool("parent", false, "stage the parent commit's version of the paths (for amend flows)")

	var unstageCmd = &cobra.Command{
		Use:   "unstage <paths...>",
		Short: "Remove paths from the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Destroy()

			if err := repo.UnstageFiles(cmd.Context(), args...); err != nil {
				return fmt.Errorf("unstaging: %w", err)
			}
			return nil
		},
	}

	var commitCmd = &cobra.Command{
		Use:   "commit",
		Short: "Record the staged changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := openRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Destroy()

			message, _ := cmd.Flags().GetString("message")
			amend, _ := cmd.Flags().GetBool("amend")
			allowEmpty, _ := cmd.Flags().GetBool("allow-empty")

			if err := repo.Commit(ctx, message, repository.CommitOptions{
				Amend:      amend,
				AllowEmpty: allowEmpty,
			}); err != nil {
				return fmt.Errorf("committing: %w", err)
			}

			head, err := repo.LastCommit(ctx)
			if err != nil {
				return fmt.Errorf("reading new HEAD: %w", err)
			}
			fmt.Printf("[%s] %s\n", head.OID[:8], head.Subject)
			return nil
		},
	}
	commitCmd.Flags().StringP("message", "m", "", "commit message")
	commitCmd.Flags().Bool("amend", false, "amend the previous commit")
	commitCmd.Flags().Bool("allow-empty", false, "allow a commit with no changes")
	commitCmd.MarkFlagRequired("message")

	var logCmd = &cobra.Command{
		Use:   "log",
		Short: "List recent commits",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := openRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Destroy()

			limit, _ := cmd.Flags().GetInt("limit")
			if limit <= 0 {
				limit = cfg.RecentCommits
			}
			commits, err := repo.RecentCommits(ctx, limit)
			if err != nil {
				return fmt.Errorf("listing commits: %w", err)
			}
			if len(commits) == 0 {
				fmt.Println("No commits yet")
				return nil
			}

			yellow := color.New(color.FgYellow).SprintFunc()
			for _, c := range commits {
				fmt.Printf("%s  %s  %s  %s\n",
					yellow(c.OID[:8]),
					c.AuthoredAt.Format(time.RFC3339),
					c.AuthorName,
					c.Subject,
				)
			}
			return nil
		},
	}
	logCmd.Flags().IntP("limit", "n", 0, "number of commits to show")

	var diffCmd = &cobra.Command{
		Use:   "diff <path>",
		Short: "Show the patch for one path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := openRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Destroy()

			staged, _ := cmd.Flags().GetBool("staged")
			amending, _ := cmd.Flags().GetBool("amend")
			p, err := repo.FilePatchForPath(ctx, args[0], repository.PatchOptions{
				Staged:   staged,
				Amending: amending,
			})
			if err != nil {
				return fmt.Errorf("computing patch for %s: %w", args[0], err)
			}
			if p == nil {
				fmt.Println("No changes for", args[0])
				return nil
			}
			printPatch(p.Text())
			return nil
		},
	}
	diffCmd.Flags().Bool("staged", false, "diff the index against HEAD instead of the working tree")
	diffCmd.Flags().Bool("amend", false, "diff against the parent commit, as an amend would see it")

	var applyCmd = &cobra.Command{
		Use:   "apply <patch-file>",
		Short: "Apply a single-file patch to the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading patch: %w", err)
			}
			p, err := patch.ParseFile(string(raw))
			if err != nil {
				return fmt.Errorf("parsing patch: %w", err)
			}
			if p == nil {
				return fmt.Errorf("no patch content in %s", args[0])
			}
			if reverse, _ := cmd.Flags().GetBool("reverse"); reverse {
				p = p.Invert()
			}

			repo, err := openRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Destroy()

			if err := repo.ApplyPatchToIndex(cmd.Context(), p); err != nil {
				return fmt.Errorf("applying patch: %w", err)
			}
			fmt.Println("Applied patch to", p.Path())
			return nil
		},
	}
	applyCmd.Flags().BoolP("reverse", "R", false, "apply the patch in reverse")

	var branchesCmd = &cobra.Command{
		Use:   "branches",
		Short: "List local branches",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := openRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Destroy()

			branches, err := repo.Branches(ctx)
			if err != nil {
				return fmt.Errorf("listing branches: %w", err)
			}
			current, err := repo.CurrentBranch(ctx)
			if err != nil {
				return fmt.Errorf("reading current branch: %w", err)
			}

			green := color.New(color.FgGreen).SprintFunc()
			for _, b := range branches {
				marker, name := " ", b.Name
				if !current.Detached && b.Name == current.Name {
					marker, name = green("*"), green(b.Name)
				}
				line := fmt.Sprintf("%s %s", marker, name)
				if b.Upstream != "" {
					line += " -> " + b.Upstream
				}
				fmt.Println(line)
			}
			if current.Detached {
				fmt.Printf("* (detached at %s)\n", current.Name)
				return nil
			}

			remote, err := repo.RemoteForBranch(ctx, current.Name)
			switch {
			case errors.Is(err, git.ErrNoRemote):
			case err != nil:
				return fmt.Errorf("resolving remote: %w", err)
			default:
				fmt.Printf("\nRemote for %s: %s %s\n", current.Name, remote.Name, remote.FetchURL)
			}
			return nil
		},
	}

	var remotesCmd = &cobra.Command{
		Use:   "remotes",
		Short: "List configured remotes",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Destroy()

			remotes, err := repo.Remotes(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing remotes: %w", err)
			}
			for _, r := range remotes {
				fmt.Printf("%s\t%s (fetch)\n", r.Name, r.FetchURL)
				fmt.Printf("%s\t%s (push)\n", r.Name, r.PushURL)
			}
			return nil
		},
	}

	var fetchCmd = &cobra.Command{
		Use:   "fetch [branch]",
		Short: "Fetch a branch from its remote",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := openRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Destroy()

			branch, err := branchArg(ctx, repo, args)
			if err != nil {
				return err
			}
			if err := repo.Fetch(ctx, branch); err != nil {
				return fmt.Errorf("fetching %s: %w", branch, err)
			}
			return printTrackingCounts(ctx, repo, branch)
		},
	}

	var pullCmd = &cobra.Command{
		Use:   "pull [branch]",
		Short: "Fetch and merge a branch from its remote",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := openRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Destroy()

			branch, err := branchArg(ctx, repo, args)
			if err != nil {
				return err
			}
			if err := repo.Pull(ctx, branch); err != nil {
				return fmt.Errorf("pulling %s: %w", branch, err)
			}
			return printTrackingCounts(ctx, repo, branch)
		},
	}

	var pushCmd = &cobra.Command{
		Use:   "push [branch]",
		Short: "Push a branch to its remote",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := openRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Destroy()

			branch, err := branchArg(ctx, repo, args)
			if err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool("force")
			setUpstream, _ := cmd.Flags().GetBool("set-upstream")
			if err := repo.Push(ctx, branch, repository.PushOptions{
				Force:       force,
				SetUpstream: setUpstream,
			}); err != nil {
				return fmt.Errorf("pushing %s: %w", branch, err)
			}
			return printTrackingCounts(ctx, repo, branch)
		},
	}
	pushCmd.Flags().BoolP("force", "f", false, "force push")
	pushCmd.Flags().BoolP("set-upstream", "u", false, "set the upstream for the branch")

	var mergeCmd = &cobra.Command{
		Use:   "merge [ref]",
		Short: "Merge a ref into the current branch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := openRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Destroy()

			if abort, _ := cmd.Flags().GetBool("abort"); abort {
				if err := repo.AbortMerge(ctx); err != nil {
					return fmt.Errorf("aborting merge: %w", err)
				}
				fmt.Println("Merge aborted")
				return nil
			}

			if len(args) != 1 {
				return fmt.Errorf("name a ref to merge")
			}
			if err := repo.Merge(ctx, args[0]); err != nil {
				printConflicts(ctx, repo)
				return fmt.Errorf("merging %s: %w", args[0], err)
			}
			fmt.Println("Merged", args[0])
			return nil
		},
	}
	mergeCmd.Flags().Bool("abort", false, "abort the merge in progress")

	var conflictsCmd = &cobra.Command{
		Use:   "conflicts",
		Short: "Show unmerged paths and their three-way classification",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := openRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Destroy()

			conflicts, err := repo.MergeConflicts(ctx)
			if err != nil {
				return fmt.Errorf("listing conflicts: %w", err)
			}
			if len(conflicts) == 0 {
				fmt.Println("No unmerged paths")
				return nil
			}

			red := color.New(color.FgRed).SprintFunc()
			for _, c := range conflicts {
				markers, err := repo.PathHasMergeMarkers(ctx, c.Path)
				if err != nil {
					return fmt.Errorf("checking %s for markers: %w", c.Path, err)
				}
				line := fmt.Sprintf("%s: file %s, ours %s, theirs %s", c.Path, c.File, c.Ours, c.Theirs)
				if markers {
					line += " [unresolved markers]"
				}
				fmt.Printf("\t%s %s\n", red("U"), line)
			}
			return nil
		},
	}

	var discardCmd = &cobra.Command{
		Use:   "discard [paths...]",
		Short: "Revert working tree changes, keeping an undo snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := openRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Destroy()

			undo, _ := cmd.Flags().GetBool("undo")
			list, _ := cmd.Flags().GetBool("list")
			switch {
			case list:
				history := repo.DiscardHistory()
				if len(history) == 0 {
					fmt.Println("No discard history")
					return nil
				}
				for i := len(history) - 1; i >= 0; i-- {
					snap := history[i]
					fmt.Printf("%2d  %s  %s\n",
						len(history)-i,
						snap.Time().Format(time.RFC3339),
						strings.Join(snap.Paths(), ", "),
					)
				}
				return nil

			case undo:
				snap, err := repo.PopDiscardHistory(ctx)
				if err != nil {
					return fmt.Errorf("undoing discard: %w", err)
				}
				if snap == nil {
					fmt.Println("Nothing to undo")
					return nil
				}
				fmt.Println("Restored:", strings.Join(snap.Paths(), ", "))
				return nil

			default:
				if len(args) == 0 {
					return fmt.Errorf("name paths to discard")
				}
				if err := repo.DiscardWorkDirChanges(ctx, args...); err != nil {
					return fmt.Errorf("discarding: %w", err)
				}
				fmt.Println("Discarded:", strings.Join(args, ", "))
				return nil
			}
		},
	}
	discardCmd.Flags().Bool("undo", false, "restore the most recently discarded changes")
	discardCmd.Flags().Bool("list", false, "list the discard history, newest first")

	var configCmd = &cobra.Command{
		Use:   "config",
		Short: "Read and write git configuration",
	}
	configCmd.PersistentFlags().Bool("local", false, "repository-local configuration only")

	var configGetCmd = &cobra.Command{
		Use:   "get <key>",
		Short: "Print a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Destroy()

			local, _ := cmd.Flags().GetBool("local")
			value, err := repo.Config(cmd.Context(), args[0], repository.ConfigOptions{Local: local})
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			fmt.Println(value)
			return nil
		},
	}

	var configSetCmd = &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Destroy()

			local, _ := cmd.Flags().GetBool("local")
			if err := repo.SetConfig(cmd.Context(), args[0], args[1], repository.ConfigOptions{Local: local}); err != nil {
				return fmt.Errorf("setting %s: %w", args[0], err)
			}
			return nil
		},
	}

	var showCmd = &cobra.Command{
		Use:   "show <path>",
		Short: "Print a file's staged content from the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Destroy()

			data, err := repo.ReadFileFromIndex(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("reading %s from index: %w", args[0], err)
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}

	var watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Watch the working tree and report changes as they settle",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := openRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Destroy()

			changed := make(chan struct{}, 1)
			w, err := watcher.New(repo.Dir(), func() {
				repo.Refresh()
				select {
				case changed <- struct{}{}:
				default:
				}
			}, watcher.WithDelay(cfg.WatchDelay), watcher.WithLogger(logger.Logger))
			if err != nil {
				return fmt.Errorf("starting watcher: %w", err)
			}
			defer w.Close()

			fmt.Println("Watching", repo.Dir(), "(ctrl-c to stop)")
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-changed:
					if err := printChangeCounts(ctx, repo); err != nil {
						return err
					}
				}
			}
		},
	}

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(cloneCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stageCmd)
	rootCmd.AddCommand(unstageCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(branchesCmd)
	rootCmd.AddCommand(remotesCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(conflictsCmd)
	rootCmd.AddCommand(discardCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(watchCmd)

	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}

// openRepository opens the facade over the working directory and waits
// for it to settle. Callers own the returned repository and must
// Destroy it.
func openRepository(ctx context.Context) (*repository.Repository, error) {
	dir := workdir
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting current directory: %w", err)
		}
	}

	repo := repository.Open(dir,
		repository.WithLogger(logger),
		repository.WithBlobCacheSize(cfg.BlobCacheSize),
	)
	if err := repo.WaitLoaded(ctx); err != nil {
		repo.Destroy()
		return nil, fmt.Errorf("loading repository: %w", err)
	}
	return repo, nil
}

func printStatus(ctx context.Context, repo *repository.Repository, amending bool) error {
	branch, err := repo.CurrentBranch(ctx)
	if err != nil {
		return fmt.Errorf("reading current branch: %w", err)
	}
	head, err := repo.LastCommit(ctx)
	if err != nil {
		return fmt.Errorf("reading HEAD: %w", err)
	}

	bold := color.New(color.Bold).SprintFunc()
	if branch.Detached {
		fmt.Printf("Detached HEAD at %s\n", bold(branch.Name))
	} else {
		fmt.Printf("On branch %s\n", bold(branch.Name))
	}
	if head.Unborn {
		fmt.Println("No commits yet")
	} else {
		fmt.Printf("HEAD %s %s\n", head.OID[:8], head.Subject)
	}
	if branch.Upstream != "" {
		if err := printTrackingCounts(ctx, repo, branch.Name); err != nil {
			return err
		}
	}

	merging, err := repo.IsMerging(ctx)
	if err != nil {
		return fmt.Errorf("probing merge state: %w", err)
	}
	if merging {
		fmt.Printf("\n%s\n", color.New(color.FgRed).Sprint("Merge in progress"))
		printConflicts(ctx, repo)
	}

	staged, err := repo.StagedChanges(ctx)
	if err != nil {
		return fmt.Errorf("listing staged changes: %w", err)
	}
	unstaged, err := repo.UnstagedChanges(ctx)
	if err != nil {
		return fmt.Errorf("listing unstaged changes: %w", err)
	}

	if len(staged) == 0 && len(unstaged) == 0 && !merging {
		fmt.Println("\nWorking tree clean")
		return nil
	}

	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	if len(staged) > 0 {
		fmt.Println("\nStaged changes:")
		fmt.Println("  (use \"gitdock unstage <file>...\" to unstage)")
		for _, c := range staged {
			fmt.Printf("\t%s %s\n", green(statusLetter(c.Status)), describeChange(c))
		}
	}

	if amending {
		sinceParent, err := repo.StagedChangesSinceParent(ctx)
		if err != nil {
			return fmt.Errorf("listing changes since parent: %w", err)
		}
		if len(sinceParent) > 0 {
			fmt.Println("\nStaged relative to the parent commit:")
			for _, c := range sinceParent {
				fmt.Printf("\t%s %s\n", green(statusLetter(c.Status)), describeChange(c))
			}
		}
	}

	if len(unstaged) > 0 {
		fmt.Println("\nUnstaged changes:")
		fmt.Println("  (use \"gitdock stage <file>...\" to stage)")
		for _, c := range unstaged {
			line := describeChange(c)
			partial, err := repo.IsPartiallyStaged(ctx, c.Path)
			if err != nil {
				return fmt.Errorf("checking partial staging: %w", err)
			}
			if partial {
				line += " (partially staged)"
			}
			fmt.Printf("\t%s %s\n", yellow(statusLetter(c.Status)), line)
		}
	}
	return nil
}

func printTrackingCounts(ctx context.Context, repo *repository.Repository, branch string) error {
	ahead, err := repo.AheadCount(ctx, branch)
	if err != nil {
		return fmt.Errorf("counting ahead: %w", err)
	}
	behind, err := repo.BehindCount(ctx, branch)
	if err != nil {
		return fmt.Errorf("counting behind: %w", err)
	}
	fmt.Printf("%s: ahead %d, behind %d\n", branch, ahead, behind)
	return nil
}

// printConflicts is best-effort output around a merge failure; listing
// errors are swallowed so the primary error stays visible.
func printConflicts(ctx context.Context, repo *repository.Repository) {
	conflicts, err := repo.MergeConflicts(ctx)
	if err != nil || len(conflicts) == 0 {
		return
	}
	red := color.New(color.FgRed).SprintFunc()
	for _, c := range conflicts {
		fmt.Printf("\t%s %s (ours %s, theirs %s)\n", red("U"), c.Path, c.Ours, c.Theirs)
	}
}

func branchArg(ctx context.Context, repo *repository.Repository, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	current, err := repo.CurrentBranch(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving current branch: %w", err)
	}
	if current.Detached {
		return "", fmt.Errorf("HEAD is detached, name a branch")
	}
	return current.Name, nil
}

func statusLetter(s patch.Status) string {
	switch s {
	case patch.Added:
		return "A"
	case patch.Deleted:
		return "D"
	case patch.Renamed:
		return "R"
	default:
		return "M"
	}
}

func describeChange(c git.ChangedFile) string {
	if c.Status == patch.Renamed && c.OrigPath != "" {
		return c.OrigPath + " -> " + c.Path
	}
	return c.Path
}

// cloneDest derives a directory name from a clone URL the way git
// does: the last path segment, minus any .git suffix.
func cloneDest(url string) string {
	base := url[strings.LastIndexAny(url, "/:")+1:]
	return strings.TrimSuffix(base, ".git")
}

func printPatch(text string) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)

	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			header.Println(line)
		case strings.HasPrefix(line, "+"):
			added.Println(line)
		case strings.HasPrefix(line, "-"):
			removed.Println(line)
		default:
			fmt.Println(line)
		}
	}
}

func printChangeCounts(ctx context.Context, repo *repository.Repository) error {
	staged, err := repo.StagedChanges(ctx)
	if err != nil {
		return fmt.Errorf("listing staged changes: %w", err)
	}
	unstaged, err := repo.UnstagedChanges(ctx)
	if err != nil {
		return fmt.Errorf("listing unstaged changes: %w", err)
	}
	fmt.Printf("%s  %d staged, %d unstaged\n",
		time.Now().Format("15:04:05"), len(staged), len(unstaged))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
