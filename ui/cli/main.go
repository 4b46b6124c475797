// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the root command, configuration loading and the shared
// state every subcommand uses to reach the service.

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/genepanels/panelapp/internal/config"
	"github.com/genepanels/panelapp/internal/core"
	"github.com/genepanels/panelapp/internal/db"
	"github.com/genepanels/panelapp/internal/i18n"
	"github.com/genepanels/panelapp/internal/logging"
	"github.com/genepanels/panelapp/internal/model"
)

var version = "dev"   // this will be set by the linker
var gitCommit = "dev" // set at build time with the short commit SHA
var buildDate = ""    // set at build time (RFC3339)

const modulePath = "github.com/genepanels/panelapp"

// app is the state shared by one invocation of the root command.
type app struct {
	cfgFile  string
	username string
	verbose  bool

	cfg   config.Config
	store *db.BunStore
	svc   *core.Service
}

// service opens the configured database on first use. Options only apply to
// the first call.
func (a *app) service(opts ...core.Option) (*core.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	store, err := db.NewStoreFromDSN(a.cfg.Database.Type, a.cfg.Database.Dsn, db.PoolOptions{
		MaxOpenConns:    a.cfg.Database.MaxOpenConns,
		MaxIdleConns:    a.cfg.Database.MaxIdleConns,
		ConnMaxLifetime: a.cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", a.cfg.Database.Type, err)
	}
	opts = append([]core.Option{core.WithHighConfidenceSources(a.cfg.Status.HighConfidenceSources)}, opts...)
	a.store = store
	a.svc = core.NewService(store, opts...)
	return a.svc, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logging.Warnf("closing database: %v", err)
		}
		a.store, a.svc = nil, nil
	}
}

// actor resolves --user; commands that change data require it.
func (a *app) actor(ctx context.Context) (*core.Service, *model.User, error) {
	svc, err := a.service()
	if err != nil {
		return nil, nil, err
	}
	if a.username == "" {
		return nil, nil, errors.New(i18n.T("errors.no_user"))
	}
	u, err := svc.ResolveUser(ctx, a.username)
	if err != nil {
		return nil, nil, err
	}
	return svc, u, nil
}

// viewer is like actor but anonymous when --user is not given.
func (a *app) viewer(ctx context.Context) (*core.Service, *model.User, error) {
	if a.username == "" {
		svc, err := a.service()
		return svc, nil, err
	}
	return a.actor(ctx)
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	var file *string
	if cmd.Flags().Changed("config") {
		if _, err := os.Stat(a.cfgFile); err != nil {
			return fmt.Errorf("config file specified via --config flag not found or is not accessible: %w", err)
		}
		file = &a.cfgFile
	}
	cfg, err := config.LoadConfig[config.Config](cmd, config.Defaults(), file)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	a.cfg = cfg

	logging.SetLevel(cfg.Log.Level)
	if a.verbose {
		logging.SetDebug(true)
		db.SetDebug(true)
	}
	i18n.Init(cfg.Language)
	return nil
}

// Execute runs the CLI entrypoint. The main package should call this
// function and handle process exit.
func Execute() error {
	a := &app{}
	defer a.close()
	return newRootCmd(a).Execute()
}

// NewRootCmd creates a fresh root command with its own state.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	// Messages are needed for help texts before the config is read.
	i18n.Init(i18n.GetLang())

	cmd := &cobra.Command{
		Use:           "panelapp",
		Short:         i18n.T("root.short"),
		Long:          i18n.T("root.long"),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
	}
	cmd.Version = compositeVersion()

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default panelapp.yaml in the user, system or working directory)")
	cmd.PersistentFlags().StringVarP(&a.username, "user", "u", os.Getenv("PANELAPP_USER"), "acting user (env PANELAPP_USER)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging, including database logs")
	cmd.PersistentFlags().String("language", "en", `message language ("en", "de")`)
	cmd.PersistentFlags().String("database.type", "sqlite", "database type (sqlite, postgres, mysql)")
	cmd.PersistentFlags().String("database.dsn", "./panelapp.db", "database connection string (DSN)")

	cmd.AddCommand(
		newServeCmd(a),
		newPanelCmd(a),
		newEntityCmd(a),
		newReviewCmd(a),
		newUserCmd(a),
		newGeneCmd(a),
		newImportCmd(a),
		newExportCmd(a),
		newActivityCmd(a),
		newBrowseCmd(a),
		newBackupCmd(a),
		newRestoreCmd(a),
		newMigrateCmd(a),
		newDBMaintainCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return cmd
}

func compositeVersion() string {
	v, c, d := resolveBuildVersion(nil)
	out := v
	if c != "" && c != "dev" {
		out += " (" + c + ")"
	}
	if d != "" {
		out += " built: " + d
	}
	return out
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: i18n.T("version.short"),
		Run: func(cmd *cobra.Command, args []string) {
			v, c, d := resolveBuildVersion(nil)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version: %s\n", v)
			fmt.Fprintf(out, "commit: %s\n", c)
			if d != "" {
				fmt.Fprintf(out, "built: %s\n", d)
			}
		},
	}
}

// resolveBuildVersion computes the best-available version, commit and build
// date for the running binary. If info is nil, it reads build info from the
// runtime.
func resolveBuildVersion(info *debug.BuildInfo) (versionOut, commitOut, dateOut string) {
	resolvedVersion := version
	resolvedCommit := gitCommit
	resolvedDate := buildDate

	if info == nil {
		if local, ok := debug.ReadBuildInfo(); ok {
			info = local
		}
	}
	if info != nil {
		if resolvedVersion == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			resolvedVersion = info.Main.Version
		}
		// Some build paths only record the module as a dependency.
		if resolvedVersion == "dev" {
			for _, dep := range info.Deps {
				if dep.Path == modulePath && dep.Version != "" {
					resolvedVersion = dep.Version
					break
				}
			}
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if s.Value != "" {
					resolvedCommit = s.Value
				}
			case "vcs.time":
				if s.Value != "" {
					resolvedDate = s.Value
				}
			}
		}
	}

	if resolvedVersion == "dev" && gitCommit != "dev" && gitCommit != "" {
		resolvedVersion = gitCommit
	}
	return resolvedVersion, resolvedCommit, resolvedDate
}
