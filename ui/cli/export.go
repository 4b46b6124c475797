// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/genepanels/panelapp/internal/blob"
	"github.com/genepanels/panelapp/internal/core"
	"github.com/genepanels/panelapp/internal/exports"
	"github.com/genepanels/panelapp/internal/i18n"
	"github.com/genepanels/panelapp/internal/model"
)

func newExportCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: i18n.T("export.short"),
		Long: `Writes a report to stdout, a local file or directory, or a blob sink URL
(file://, s3://bucket/prefix, sftp://user@host/dir).`,
	}
	cmd.PersistentFlags().StringVarP(&output, "output", "o", "-", "destination: '-', a path or a sink URL")

	var panelVersion string
	panel := &cobra.Command{
		Use:   "panel <panel>",
		Short: "Download a panel as TSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, viewer, err := a.viewer(cmd.Context())
			if err != nil {
				return err
			}
			id, err := resolvePanel(cmd.Context(), svc, viewer, args[0])
			if err != nil {
				return err
			}
			v, err := parseVersionFlag(panelVersion)
			if err != nil {
				return err
			}
			return a.export(cmd, output, core.ReportRequest{Kind: core.ReportPanel, PanelID: id, Version: v})
		},
	}
	panel.Flags().StringVar(&panelVersion, "version", "", "archived version to export")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Counts of rated entities per panel (CSV)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.export(cmd, output, core.ReportRequest{Kind: core.ReportPanelStats})
		},
	}

	var entityType string
	entities := &cobra.Command{
		Use:   "entities",
		Short: "Every entity of one type across panels (CSV)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := model.ParseEntityType(entityType)
			if err != nil {
				return err
			}
			return a.export(cmd, output, core.ReportRequest{Kind: core.ReportEntities, EntityType: t})
		},
	}
	entities.Flags().StringVar(&entityType, "type", "gene", "gene, region or str")

	var actPanel, since, until string
	var reviewers bool
	activity := &cobra.Command{
		Use:   "activity",
		Short: "Activity log or per-reviewer counts (CSV)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := core.ReportRequest{Kind: core.ReportActivity}
			if reviewers {
				req.Kind = core.ReportReviewerActivity
			}
			var err error
			if req.Since, err = parseTimeFlag(since); err != nil {
				return err
			}
			if req.Until, err = parseTimeFlag(until); err != nil {
				return err
			}
			if actPanel != "" {
				svc, viewer, err := a.viewer(cmd.Context())
				if err != nil {
					return err
				}
				if req.PanelID, err = resolvePanel(cmd.Context(), svc, viewer, actPanel); err != nil {
					return err
				}
			}
			return a.export(cmd, output, req)
		},
	}
	activity.Flags().StringVar(&actPanel, "panel", "", "only this panel (id or name)")
	activity.Flags().StringVar(&since, "since", "", "from date (YYYY-MM-DD or RFC 3339)")
	activity.Flags().StringVar(&until, "until", "", "until date (exclusive)")
	activity.Flags().BoolVar(&reviewers, "reviewers", false, "count reviews per reviewer instead")

	cmd.AddCommand(panel, stats, entities, activity)
	return cmd
}

// export renders req and routes it to dest.
func (a *app) export(cmd *cobra.Command, dest string, req core.ReportRequest) error {
	ctx := cmd.Context()
	svc, viewer, err := a.viewer(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if dest == "" || dest == "-" {
		_, err := svc.WriteReport(ctx, viewer, out, req)
		return err
	}

	var buf bytes.Buffer
	name, err := svc.WriteReport(ctx, viewer, &buf, req)
	if err != nil {
		return err
	}
	if !strings.Contains(dest, "://") {
		if st, err := os.Stat(dest); err == nil && st.IsDir() {
			dest = filepath.Join(dest, name)
		}
		if err := os.WriteFile(dest, buf.Bytes(), 0o644); err != nil {
			return err
		}
		fmt.Fprintln(out, i18n.T("export.written", dest))
		return nil
	}

	cfg := a.cfg
	if strings.HasPrefix(dest, "sftp://") && cfg.Blob.SFTP.Password == "" && cfg.Blob.SFTP.KeyFile == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(out, "SFTP password: ")
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return err
		}
		cfg.Blob.SFTP.Password = string(pw)
	}
	sink, err := blob.Open(ctx, dest, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = sink.Close() }()
	info, err := sink.Put(ctx, name, &buf, exports.ContentType(name))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, i18n.T("export.written", strings.TrimSuffix(dest, "/")+"/"+info.Key))
	return nil
}
