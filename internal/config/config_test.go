// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/genepanels/panelapp/internal/config"
	"github.com/spf13/cobra"
)

// isolate points the user config dir at a temp dir and runs from another
// temp dir so no real panelapp.yaml is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "xdg"))
	t.Setenv("HOME", tmp)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(tmp); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return tmp
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)
	c, err := config.LoadConfig[config.Config](&cobra.Command{}, config.Defaults(), nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Database.Type != "sqlite" || c.Database.Dsn != "./panelapp.db" {
		t.Fatalf("database = %+v", c.Database)
	}
	if c.Server.ReadTimeout != 15*time.Second || c.Database.ConnMaxLifetime != 30*time.Minute {
		t.Fatalf("durations not decoded: read=%s lifetime=%s", c.Server.ReadTimeout, c.Database.ConnMaxLifetime)
	}
	if c.Server.PageSize != 100 || c.Exports.Workers != 2 {
		t.Fatalf("server=%+v exports=%+v", c.Server, c.Exports)
	}
}

func TestLoadConfig_ReadsExplicitFile(t *testing.T) {
	tmp := isolate(t)
	data := strings.Join([]string{
		"database:",
		"  type: postgres",
		"  dsn: postgresql://panelapp@/panelapp",
		"language: de",
		"api:",
		"  tokens:",
		"    s3cr3t: curator",
		"status:",
		"  high_confidence_sources:",
		"    - UKGTN",
		"",
	}, "\n")
	file := filepath.Join(tmp, "custom.yaml")
	if err := os.WriteFile(file, []byte(data), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	c, err := config.LoadConfig[config.Config](&cobra.Command{}, config.Defaults(), &file)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Database.Type != "postgres" || c.Language != "de" {
		t.Fatalf("file values not applied: %+v", c)
	}
	if c.API.Tokens["s3cr3t"] != "curator" {
		t.Fatalf("tokens = %v", c.API.Tokens)
	}
	if len(c.Status.HighConfidenceSources) != 1 {
		t.Fatalf("sources = %v", c.Status.HighConfidenceSources)
	}
	if c.Server.Addr != ":8080" {
		t.Fatalf("unset keys must keep defaults, addr = %q", c.Server.Addr)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	tmp := isolate(t)
	if err := os.WriteFile(filepath.Join(tmp, "panelapp.yaml"), []byte("log:\n  level: warn\nserver:\n  addr: \":9000\"\n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	t.Setenv("PANELAPP_SERVER_ADDR", ":7000")
	c, err := config.LoadConfig[config.Config](&cobra.Command{}, config.Defaults(), nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Log.Level != "warn" {
		t.Fatalf("file in working directory not read, level = %q", c.Log.Level)
	}
	if c.Server.Addr != ":7000" {
		t.Fatalf("env must override file, addr = %q", c.Server.Addr)
	}
}

func TestWriteConfigFile(t *testing.T) {
	isolate(t)
	var c config.Config
	c.Database.Type = "mysql"
	c.Database.Dsn = "panelapp:pw@tcp(localhost:3306)/panelapp?parseTime=true"
	c.Language = "en"

	path, err := config.WriteConfigFile(&c, false)
	if err != nil {
		t.Fatalf("WriteConfigFile: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", info.Mode().Perm())
	}
	got, err := config.LoadConfig[config.Config](&cobra.Command{}, config.Defaults(), &path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Database.Type != "mysql" || got.Database.Dsn != c.Database.Dsn {
		t.Fatalf("reloaded database = %+v", got.Database)
	}
}

func TestLoadConfig_BindsOnlyConfigFlags(t *testing.T) {
	isolate(t)
	cmd := &cobra.Command{Use: "create"}
	cmd.Flags().String("database.dsn", "./panelapp.db", "")
	cmd.Flags().StringSlice("status", nil, "")
	cmd.Flags().String("group", "", "")
	if err := cmd.Flags().Parse([]string{"--database.dsn", "file:x.db", "--status", "public"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	c, err := config.LoadConfig[config.Config](cmd, config.Defaults(), nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Database.Dsn != "file:x.db" {
		t.Fatalf("flag not applied, dsn = %q", c.Database.Dsn)
	}
	if len(c.Status.HighConfidenceSources) != 0 {
		t.Fatalf("status flag leaked into config: %v", c.Status.HighConfidenceSources)
	}
}
