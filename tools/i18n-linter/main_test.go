package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestFlattenYAML_FlatAndNested(t *testing.T) {
	keys := make(map[string]struct{})
	flattenYAML("", map[string]any{
		"panel.created": "Panel %s created.",
		"entity":        map[string]any{"added": "Added %s."},
	}, keys)
	for _, want := range []string{"panel.created", "entity.added"} {
		if _, ok := keys[want]; !ok {
			t.Fatalf("missing %s in %v", want, keys)
		}
	}
}

func TestLint(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ui", "cli", "panels.go"), `package cli
func f() {
	_ = i18n.T("panel.created", name)
	_ = i18n.T("panel.lost")
	run(a, "entity.added")
	_ = viper.GetString("database.dsn")
}`)
	writeFile(t, filepath.Join(root, "ui", "cli", "panels_test.go"), `package cli
var _ = i18n.T("test.only")`)
	writeFile(t, filepath.Join(root, "tools", "x", "main.go"), `package main
var _ = i18n.T("tool.only")`)
	writeFile(t, filepath.Join(root, localesDir, "en.yaml"), `"panel.created": "Panel %s created."
"entity.added": "Added %s."
"entity.removed": "Removed %s."
`)
	writeFile(t, filepath.Join(root, localesDir, "de.yaml"), `"panel.created": "Panel %s angelegt."
"entity.removed": "%s entfernt."
`)

	r, err := lint(root)
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if _, ok := r.used["entity.added"]; !ok {
		t.Errorf("indirect ID entity.added not detected")
	}
	if _, ok := r.used["database.dsn"]; ok {
		t.Errorf("config key database.dsn counted as a message ID")
	}
	for _, id := range []string{"test.only", "tool.only"} {
		if _, ok := r.used[id]; ok {
			t.Errorf("%s should not be scanned", id)
		}
	}
	if strings.Join(r.undefined, ",") != "panel.lost" {
		t.Errorf("undefined = %v", r.undefined)
	}
	if strings.Join(r.orphaned, ",") != "entity.removed" {
		t.Errorf("orphaned = %v", r.orphaned)
	}
	if strings.Join(r.missing["de.yaml"], ",") != "entity.added" {
		t.Errorf("missing in de.yaml = %v", r.missing["de.yaml"])
	}
	if !r.failed() {
		t.Errorf("expected failure")
	}

	var out bytes.Buffer
	printReport(&out, r)
	for _, want := range []string{"undefined: panel.lost", "orphaned: entity.removed", "missing in de.yaml: entity.added"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("report missing %q:\n%s", want, out.String())
		}
	}
}
