// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/genepanels/panelapp/internal/config"
	"github.com/genepanels/panelapp/internal/db"
	"github.com/genepanels/panelapp/internal/i18n"
	"github.com/genepanels/panelapp/internal/model"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: i18n.T("user.short"),
	}
	var u model.User
	var curator bool
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a reviewer or curator account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			u.Username = args[0]
			if curator {
				u.Role = model.RoleCurator
			}
			created, err := svc.CreateUser(cmd.Context(), u)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("user.created", created.Username))
			return nil
		},
	}
	f := add.Flags()
	f.BoolVar(&curator, "curator", false, "grant curator rights")
	f.StringVar(&u.Email, "email", "", "e-mail address")
	f.StringVar(&u.FirstName, "first-name", "", "first name")
	f.StringVar(&u.LastName, "last-name", "", "last name")
	f.StringVar(&u.Affiliation, "affiliation", "", "institution")

	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			users, err := svc.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(users))
			for _, u := range users {
				rows = append(rows, []string{u.Username, string(u.Role), strings.TrimSpace(u.FirstName + " " + u.LastName), u.Affiliation})
			}
			printTable(cmd.OutOrStdout(), []string{"Username", "Role", "Name", "Affiliation"}, rows)
			return nil
		},
	}
	cmd.AddCommand(add, list)
	return cmd
}

func newGeneCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gene",
		Short: i18n.T("gene.short"),
	}
	imp := &cobra.Command{
		Use:   "import <genes.json>",
		Short: "Load or refresh the reference gene table from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, actor, err := a.actor(cmd.Context())
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			n, err := svc.ImportGenes(cmd.Context(), actor, f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("gene.imported", n))
			return nil
		},
	}
	show := &cobra.Command{
		Use:   "show <symbol>",
		Short: "Show a gene and the live panels it is on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, viewer, err := a.viewer(ctx)
			if err != nil {
				return err
			}
			g, err := svc.GetGene(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s %s\n", g.Symbol, g.HGNCID, g.Name)
			if len(g.OMIMGene) > 0 {
				fmt.Fprintf(out, "OMIM: %s\n", strings.Join(g.OMIMGene, ";"))
			}
			if !g.Active {
				fmt.Fprintln(out, "inactive in the reference table")
			}
			hits, err := svc.FindEntity(ctx, viewer, model.EntityGene, g.Symbol)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(hits))
			for _, h := range hits {
				rows = append(rows, []string{strconv.FormatInt(h.Panel.ID, 10), h.Panel.Name, h.Version.String(), levelLabel(h.Entity.Status), h.Entity.ModeOfInheritance})
			}
			printTable(out, []string{"ID", "Panel", "Version", "Status", "Mode of inheritance"}, rows)
			return nil
		},
	}
	cmd.AddCommand(imp, show)
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: i18n.T("import.short"),
	}
	panels := &cobra.Command{
		Use:   "panels <file.tsv>...",
		Short: "Import panels in the download TSV format; each file is all-or-nothing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, actor, err := a.actor(cmd.Context())
			if err != nil {
				return err
			}
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				sum, err := svc.ImportPanels(cmd.Context(), actor, f)
				_ = f.Close()
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("import.summary", map[string]any{"Entities": sum.Entities, "Panels": sum.Panels}))
			}
			return nil
		},
	}
	reviews := &cobra.Command{
		Use:   "reviews <file.tsv>...",
		Short: "Import reviews; each file is all-or-nothing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, actor, err := a.actor(cmd.Context())
			if err != nil {
				return err
			}
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				sum, err := svc.ImportReviews(cmd.Context(), actor, f)
				_ = f.Close()
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("import.summary", map[string]any{"Entities": sum.Entities, "Panels": sum.Panels}))
			}
			return nil
		},
	}
	cmd.AddCommand(panels, reviews)
	return cmd
}

func newActivityCmd(a *app) *cobra.Command {
	var panel, by, since, until string
	var limit int
	cmd := &cobra.Command{
		Use:   "activity",
		Short: i18n.T("activity.short"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, viewer, err := a.viewer(ctx)
			if err != nil {
				return err
			}
			filter := model.ActivityFilter{User: by, Limit: limit}
			if panel != "" {
				if filter.PanelID, err = resolvePanel(ctx, svc, viewer, panel); err != nil {
					return err
				}
			}
			if filter.Since, err = parseTimeFlag(since); err != nil {
				return err
			}
			if filter.Until, err = parseTimeFlag(until); err != nil {
				return err
			}
			acts, err := svc.Activities(ctx, viewer, filter)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(acts))
			for _, act := range acts {
				entity := ""
				if act.EntityName != "" {
					entity = string(act.EntityType) + " " + act.EntityName
				}
				rows = append(rows, []string{act.CreatedAt.Format("2006-01-02 15:04"), act.PanelName, act.Version.String(), act.User, entity, act.Text})
			}
			printTable(cmd.OutOrStdout(), []string{"When", "Panel", "Version", "User", "Entity", "Activity"}, rows)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&panel, "panel", "", "only this panel (id or name)")
	f.StringVar(&by, "by", "", "only activities of this user")
	f.StringVar(&since, "since", "", "from date (YYYY-MM-DD or RFC 3339)")
	f.StringVar(&until, "until", "", "until date (exclusive)")
	f.IntVar(&limit, "limit", 50, "maximum number of lines, 0 for all")
	return cmd
}

func newBackupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backup [output-file]",
		Short: i18n.T("backup.short"),
		Long: `Dumps users, genes, panels with every archived version and the activity log
into a single Zstandard-compressed JSON file.

If no output file is given, panelapp-backup-YYYY-MM-DD.json.zst is used; '.zst'
is appended when missing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			output := fmt.Sprintf("panelapp-backup-%s.json.zst", time.Now().Format("2006-01-02"))
			if len(args) == 1 {
				output = args[0]
				if !strings.HasSuffix(output, ".zst") {
					output += ".zst"
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("backup.cli_starting"))
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if _, err := svc.Backup(cmd.Context(), f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("backup.cli_success", output))
			return nil
		},
	}
}

func newRestoreCmd(a *app) *cobra.Command {
	var full, yes bool
	cmd := &cobra.Command{
		Use:   "restore <backup-file.zst>",
		Short: i18n.T("restore.short"),
		Long: `Restores a backup written by 'panelapp backup'. By default only records that do
not exist yet are added. --full wipes the database first; it asks for
confirmation unless --yes is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			if full && !yes {
				ok, err := confirm(cmd, i18n.T("restore.confirm_full"))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), i18n.T("restore.aborted"))
					return nil
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("restore.cli_starting", args[0]))
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			if _, err := svc.Restore(cmd.Context(), f, full); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("restore.cli_success"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "wipe all existing data before restoring")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// confirm asks a yes/no question on the command's input. A non-interactive
// stdin cannot confirm.
func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		return false, errors.New("refusing to continue without confirmation; pass --yes")
	}
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func newMigrateCmd(a *app) *cobra.Command {
	var targetType, targetDSN string
	cmd := &cobra.Command{
		Use:   "migrate --type <db-type> --dsn <target-dsn>",
		Short: i18n.T("migrate.short"),
		Long: `Copies every user, gene, panel version and activity from the configured
database into a new one. The target schema is created first and any data in
it is replaced.

Example:
  panelapp migrate --type postgres --dsn "postgres://panelapp@localhost/panelapp"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			target, err := db.NewStoreFromDSN(targetType, targetDSN, db.PoolOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = target.Close() }()
			if err := svc.Migrate(cmd.Context(), target); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("migrate.cli_success", targetType))
			return nil
		},
	}
	cmd.Flags().StringVar(&targetType, "type", "", "target database type (sqlite, postgres, mysql)")
	cmd.Flags().StringVar(&targetDSN, "dsn", "", "target DSN")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("dsn")
	return cmd
}

func newDBMaintainCmd(a *app) *cobra.Command {
	var skipIntegrity bool
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "db-maintain",
		Short: i18n.T("dbmaintain.short"),
		Long:  `Runs engine-specific maintenance tasks (VACUUM, OPTIMIZE TABLE, PRAGMA optimize).`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			if err := db.RunDBMaintenance(ctx, a.cfg.Database.Type, a.cfg.Database.Dsn, skipIntegrity); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("dbmaintain.done"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipIntegrity, "skip-integrity", false, "skip integrity_check (SQLite)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort after this long (0 means the built-in limit)")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or write the configuration file",
	}
	var system, force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to panelapp.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.GetConfigPath(system)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; pass --force to overwrite", path)
			}
			written, err := config.WriteConfigFile(&a.cfg, system)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), written)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&system, "system", false, "write the system-wide file instead of the user file")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
