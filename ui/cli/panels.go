// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/genepanels/panelapp/internal/core"
	"github.com/genepanels/panelapp/internal/i18n"
	"github.com/genepanels/panelapp/internal/model"
)

func newPanelCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "panel",
		Short: i18n.T("panel.short"),
	}
	cmd.AddCommand(
		newPanelCreateCmd(a),
		newPanelListCmd(a),
		newPanelShowCmd(a),
		newPanelInfoCmd(a),
		newPanelStatusCmd(a),
		newPanelIncrementCmd(a),
		newPanelPromoteCmd(a),
		newPanelChildrenCmd(a),
		newPanelVersionsCmd(a),
	)
	return cmd
}

func newPanelCreateCmd(a *app) *cobra.Command {
	var in core.PanelInput
	var status string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a panel at version 0.0",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, actor, err := a.actor(cmd.Context())
			if err != nil {
				return err
			}
			in.Name = args[0]
			in.Status = model.PanelStatus(status)
			view, err := svc.CreatePanel(cmd.Context(), actor, in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("panel.created", fmt.Sprintf("%q (id %d)", view.Panel.Name, view.Panel.ID), view.Snapshot.Version))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Description, "description", "", "free-text description")
	f.StringVar(&in.DiseaseGroup, "group", "", "disease group (Level3)")
	f.StringVar(&in.DiseaseSubGroup, "sub-group", "", "disease sub-group (Level2)")
	f.StringSliceVar(&in.Types, "type", nil, "panel type, repeatable")
	f.StringVar(&status, "status", "", "internal, public, promoted or retired (default internal)")
	return cmd
}

func newPanelListCmd(a *app) *cobra.Command {
	var filter model.PanelFilter
	var statuses []string
	var retired bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List panels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, viewer, err := a.viewer(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range statuses {
				st, err := model.ParsePanelStatus(s)
				if err != nil {
					return err
				}
				filter.Statuses = append(filter.Statuses, st)
			}
			if retired {
				filter.Statuses = append(filter.Statuses, model.PanelRetired)
			}
			panels, err := svc.ListPanels(cmd.Context(), viewer, filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(panels) == 0 {
				fmt.Fprintln(out, i18n.T("panel.none"))
				return nil
			}
			rows := make([][]string, 0, len(panels))
			for _, p := range panels {
				rows = append(rows, []string{
					strconv.FormatInt(p.Panel.ID, 10),
					p.Panel.Name,
					p.Snapshot.Version.String(),
					string(p.Panel.Status),
					strings.Join(p.Snapshot.Types, ","),
					statsCell(p.Snapshot.Stats.Genes),
					strconv.Itoa(p.Snapshot.Stats.Regions.Total + p.Snapshot.Stats.STRs.Total),
				})
			}
			printTable(out, []string{"ID", "Name", "Version", "Status", "Types", "Genes G/A/R", "Regions+STRs"}, rows)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&filter.Name, "name", "", "substring of the panel name")
	f.StringVar(&filter.Type, "type", "", "panel type")
	f.StringSliceVar(&statuses, "status", nil, "statuses to list, comma separated")
	f.BoolVar(&retired, "retired", false, "include retired panels")
	f.BoolVar(&filter.ExcludeSuper, "no-super", false, "leave out superpanels")
	return cmd
}

func newPanelShowCmd(a *app) *cobra.Command {
	var versionFlag string
	cmd := &cobra.Command{
		Use:   "show <panel>",
		Short: "Show a panel and its entities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, viewer, err := a.viewer(ctx)
			if err != nil {
				return err
			}
			id, err := resolvePanel(ctx, svc, viewer, args[0])
			if err != nil {
				return err
			}
			v, err := parseVersionFlag(versionFlag)
			if err != nil {
				return err
			}
			view, err := svc.GetPanel(ctx, viewer, id, v)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			s := view.Snapshot
			fmt.Fprintf(out, "%s (id %d) v%s [%s]\n", s.Name, view.Panel.ID, s.Version, view.Panel.Status)
			if s.DiseaseGroup != "" || s.DiseaseSubGroup != "" {
				fmt.Fprintf(out, "Disease group: %s / %s\n", s.DiseaseGroup, s.DiseaseSubGroup)
			}
			if s.Description != "" {
				fmt.Fprintln(out, s.Description)
			}
			for _, c := range s.Children {
				fmt.Fprintf(out, "Child panel: %s (id %d) v%s\n", c.Name, c.PanelID, c.Version)
			}
			rows := make([][]string, 0, len(view.Entities))
			for _, e := range view.Entities {
				source := ""
				if e.SourcePanel != nil {
					source = e.SourcePanel.Name
				}
				ready := ""
				if e.Ready {
					ready = "yes"
				}
				rows = append(rows, []string{
					string(e.Type), e.Name, levelLabel(e.Status), e.ModeOfInheritance,
					strconv.Itoa(len(e.Evaluations)), ready, strings.Join(e.Tags, ","), source,
				})
			}
			printTable(out, []string{"Type", "Name", "Status", "Mode of inheritance", "Reviews", "Ready", "Tags", "Panel"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&versionFlag, "version", "", "show an archived version, e.g. 1.3")
	return cmd
}

func newPanelInfoCmd(a *app) *cobra.Command {
	var name, description, group, subGroup string
	var types []string
	cmd := &cobra.Command{
		Use:   "info <panel>",
		Short: "Change a panel's name, description, disease group or types",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, actor, err := a.actor(ctx)
			if err != nil {
				return err
			}
			id, err := resolvePanel(ctx, svc, actor, args[0])
			if err != nil {
				return err
			}
			var patch core.PanelInfoPatch
			f := cmd.Flags()
			if f.Changed("name") {
				patch.Name = &name
			}
			if f.Changed("description") {
				patch.Description = &description
			}
			if f.Changed("group") {
				patch.DiseaseGroup = &group
			}
			if f.Changed("sub-group") {
				patch.DiseaseSubGroup = &subGroup
			}
			if f.Changed("type") {
				patch.Types = types
			}
			view, err := svc.UpdatePanelInfo(ctx, actor, id, patch)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("panel.updated", view.Panel.ID, view.Snapshot.Version))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "new name")
	f.StringVar(&description, "description", "", "new description")
	f.StringVar(&group, "group", "", "disease group (Level3)")
	f.StringVar(&subGroup, "sub-group", "", "disease sub-group (Level2)")
	f.StringSliceVar(&types, "type", nil, "panel types; replaces the current list")
	return cmd
}

func newPanelStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <panel> <internal|public|promoted|retired>",
		Short: "Set a panel's publication status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, actor, err := a.actor(ctx)
			if err != nil {
				return err
			}
			id, err := resolvePanel(ctx, svc, actor, args[0])
			if err != nil {
				return err
			}
			st, err := model.ParsePanelStatus(args[1])
			if err != nil {
				return err
			}
			p, err := svc.SetPanelStatus(ctx, actor, id, st)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("panel.status_set", p.ID, p.Status))
			return nil
		},
	}
}

func newPanelIncrementCmd(a *app) *cobra.Command {
	var major bool
	var comment string
	cmd := &cobra.Command{
		Use:   "increment <panel>",
		Short: "Create a new minor or major version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, actor, err := a.actor(ctx)
			if err != nil {
				return err
			}
			id, err := resolvePanel(ctx, svc, actor, args[0])
			if err != nil {
				return err
			}
			view, err := svc.IncrementVersion(ctx, actor, id, major, comment)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("panel.updated", view.Panel.ID, view.Snapshot.Version))
			return nil
		},
	}
	cmd.Flags().BoolVar(&major, "major", false, "bump the major version")
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "version comment")
	return cmd
}

func newPanelPromoteCmd(a *app) *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "promote <panel>",
		Short: "Sign off a panel: bump the major version and mark it promoted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, actor, err := a.actor(ctx)
			if err != nil {
				return err
			}
			id, err := resolvePanel(ctx, svc, actor, args[0])
			if err != nil {
				return err
			}
			view, err := svc.Promote(ctx, actor, id, comment)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("panel.updated", view.Panel.ID, view.Snapshot.Version))
			return nil
		},
	}
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "version comment")
	return cmd
}

func newPanelChildrenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "children <panel> [child...]",
		Short: "Set the child panels of a superpanel; no children clears the list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, actor, err := a.actor(ctx)
			if err != nil {
				return err
			}
			id, err := resolvePanel(ctx, svc, actor, args[0])
			if err != nil {
				return err
			}
			children := make([]int64, 0, len(args)-1)
			for _, ref := range args[1:] {
				child, err := resolvePanel(ctx, svc, actor, ref)
				if err != nil {
					return err
				}
				children = append(children, child)
			}
			view, err := svc.SetChildPanels(ctx, actor, id, children)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("panel.updated", view.Panel.ID, view.Snapshot.Version))
			return nil
		},
	}
}

func newPanelVersionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <panel>",
		Short: "List the versions of a panel, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, viewer, err := a.viewer(ctx)
			if err != nil {
				return err
			}
			id, err := resolvePanel(ctx, svc, viewer, args[0])
			if err != nil {
				return err
			}
			versions, err := svc.PanelVersions(ctx, viewer, id)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(versions))
			for _, v := range versions {
				live := ""
				if v.Live {
					live = "live"
				}
				rows = append(rows, []string{v.Version.String(), v.CreatedAt.Format("2006-01-02 15:04"), live, v.Comment})
			}
			printTable(cmd.OutOrStdout(), []string{"Version", "Created", "", "Comment"}, rows)
			return nil
		},
	}
}
