package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/thiagokokada/tmplstore/internal/config"
	"github.com/thiagokokada/tmplstore/internal/git/backend"
	"github.com/thiagokokada/tmplstore/internal/project"
	"github.com/thiagokokada/tmplstore/internal/store"
)

// skipSetup marks commands that run without loading the configuration.
const skipSetup = "tmplstore/skip-setup"

type app struct {
	cfgFile   string
	dataDir   string
	backend   string
	projectID string
	branch    string
	verbose   bool

	cfg       *config.Config
	manager   *project.Manager
	highlight *highlighter
}

// Execute runs the command line with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "tmplstore",
		Short: "Versioned template store backed by git",
		Long: `tmplstore keeps prompt templates in git repositories: a root template
tree plus one repository per project. Every change is a single commit on a
branch, so templates can be branched, diffed and traced through renames.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: ./tmplstore.yaml or ~/.tmplstore/tmplstore.yaml)")
	pf.StringVar(&a.dataDir, "data-dir", "", "data directory (default: ~/.tmplstore)")
	pf.StringVar(&a.backend, "backend", "", "repository backend: native or gitcli")
	pf.StringVarP(&a.projectID, "project", "p", "", "project id (default: the root template tree)")
	pf.StringVarP(&a.branch, "branch", "b", "", "branch to read from or commit to (default: the default branch)")
	pf.BoolVar(&a.verbose, "verbose", false, "enable debug logging")

	root.AddCommand(
		a.initCommand(),
		a.lsCommand(),
		a.catCommand(),
		a.putCommand(),
		a.mkdirCommand(),
		a.rmCommand(),
		a.mvCommand(),
		a.branchCommand(),
		a.logCommand(),
		a.diffCommand(),
		a.findCommand(),
		a.projectCommand(),
		a.watchCommand(),
		configCommand(),
		versionCommand(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[skipSetup] != "" {
		return nil
	}
	cfg, err := config.Load(a.cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if a.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	open := backend.OpenNative
	if cfg.Backend == config.BackendGitCLI {
		open = backend.OpenCLI
	}
	m, err := project.NewManager(cfg.DataDir,
		project.WithBackend(open),
		project.WithStoreOptions(
			store.WithDefaultBranch(cfg.DefaultBranch),
			store.WithCacheSize(cfg.CacheSize),
			store.WithDefaultBranchProtection(cfg.ProtectDefaultBranch),
			store.WithWatchDelay(cfg.WatchDelay),
			store.WithLogger(logger),
		),
	)
	if err != nil {
		return err
	}
	slog.Debug("configuration loaded",
		slog.String("file", cfg.File),
		slog.String("data_dir", m.DataDir()),
		slog.String("backend", cfg.Backend),
	)
	a.cfg = cfg
	a.manager = m
	a.highlight = newHighlighter(cfg.HighlightStyle)
	return nil
}

// store returns the repository selected by --project.
func (a *app) store() (*store.Store, error) {
	if a.projectID == "" {
		return a.manager.Templates()
	}
	return a.manager.Project(a.projectID)
}

func (a *app) author() backend.Signature {
	return backend.Signature{
		Name:  a.cfg.Author.Name,
		Email: a.cfg.Author.Email,
		When:  time.Now(),
	}
}

// commit runs one transaction on the selected branch that applies fn and
// commits it with message.
func (a *app) commit(ctx context.Context, message string, fn func(tx *store.Tx) error) (string, error) {
	s, err := a.store()
	if err != nil {
		return "", err
	}
	var id string
	err = s.Run(ctx, func(tx *store.Tx) error {
		if err := tx.Checkout(a.branch); err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			return err
		}
		var err error
		id, err = tx.Commit(message, a.author())
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func shortID(id string) string {
	if len(id) > 7 {
		return id[:7]
	}
	return id
}

func printCommitted(cmd *cobra.Command, id string) {
	fmt.Fprintf(cmd.OutOrStdout(), "committed %s\n", shortID(id))
}
