// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

// i18n-linter checks that every message ID used by the CLI exists in the
// English catalogue, that every other locale carries the same IDs, and that
// no catalogue entry is orphaned.
//
// Usage (from the repository root):
//
//	go run ./tools/i18n-linter
package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	localesDir    = "internal/i18n/locales"
	primaryLocale = "en.yaml"
)

// Location stores the file and line of a message ID.
type Location struct {
	Filepath string
	Line     int
}

// report is the outcome of one lint run.
type report struct {
	used      map[string]Location
	undefined []string            // used in code, absent from the primary locale
	orphaned  []string            // in the primary locale, never used
	missing   map[string][]string // locale file -> IDs it lacks
}

func (r report) failed() bool {
	if len(r.undefined) > 0 {
		return true
	}
	for _, ids := range r.missing {
		if len(ids) > 0 {
			return true
		}
	}
	return false
}

func main() {
	r, err := lint(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "i18n-linter: %v\n", err)
		os.Exit(2)
	}
	printReport(os.Stdout, r)
	if r.failed() {
		os.Exit(1)
	}
}

func lint(root string) (report, error) {
	r := report{missing: map[string][]string{}}
	direct, indirect, err := findUsedKeys(root)
	if err != nil {
		return r, err
	}
	dir := filepath.Join(root, localesDir)
	primary, err := loadKeysFromLocale(filepath.Join(dir, primaryLocale))
	if err != nil {
		return r, fmt.Errorf("primary locale: %w", err)
	}
	r.used = direct
	for id, loc := range indirect {
		if _, ok := primary[id]; ok {
			if _, seen := r.used[id]; !seen {
				r.used[id] = loc
			}
		}
	}
	for id := range r.used {
		if _, ok := primary[id]; !ok {
			r.undefined = append(r.undefined, id)
		}
	}
	for id := range primary {
		if _, ok := r.used[id]; !ok {
			r.orphaned = append(r.orphaned, id)
		}
	}
	sort.Strings(r.undefined)
	sort.Strings(r.orphaned)

	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return r, err
	}
	for _, file := range files {
		if filepath.Base(file) == primaryLocale {
			continue
		}
		keys, err := loadKeysFromLocale(file)
		if err != nil {
			return r, fmt.Errorf("%s: %w", file, err)
		}
		var lacking []string
		for id := range primary {
			if _, ok := keys[id]; !ok {
				lacking = append(lacking, id)
			}
		}
		sort.Strings(lacking)
		r.missing[filepath.Base(file)] = lacking
	}
	return r, nil
}

func printReport(w io.Writer, r report) {
	fmt.Fprintf(w, "%d message IDs used in source code.\n", len(r.used))
	for _, id := range r.undefined {
		loc := r.used[id]
		fmt.Fprintf(w, "undefined: %s (%s:%d)\n", id, loc.Filepath, loc.Line)
	}
	for _, id := range r.orphaned {
		fmt.Fprintf(w, "orphaned: %s\n", id)
	}
	locales := make([]string, 0, len(r.missing))
	for name := range r.missing {
		locales = append(locales, name)
	}
	sort.Strings(locales)
	for _, name := range locales {
		for _, id := range r.missing[name] {
			fmt.Fprintf(w, "missing in %s: %s\n", name, id)
		}
	}
	if !r.failed() && len(r.orphaned) == 0 {
		fmt.Fprintln(w, "All translation files are consistent.")
	}
}

var (
	// i18n.T("panel.created", ...)
	callRe = regexp.MustCompile(`i18n\.T\("([^"]+)"`)
	// IDs passed indirectly, e.g. entityAction(a, "entity.added", ...)
	literalRe = regexp.MustCompile(`"([a-z]+\.[a-z_]+)"`)
)

// findUsedKeys scans non-test Go files under root for message IDs. Direct
// IDs are arguments of i18n.T; indirect ones are any "group.id" literal and
// only count once they are found in the primary locale.
func findUsedKeys(root string) (direct, indirect map[string]Location, err error) {
	direct = map[string]Location{}
	indirect = map[string]Location{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); path != root && (name == "tools" || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		for i, line := range strings.Split(string(content), "\n") {
			loc := Location{Filepath: path, Line: i + 1}
			for _, m := range callRe.FindAllStringSubmatch(line, -1) {
				if _, seen := direct[m[1]]; !seen {
					direct[m[1]] = loc
				}
			}
			for _, m := range literalRe.FindAllStringSubmatch(line, -1) {
				if _, seen := indirect[m[1]]; !seen {
					indirect[m[1]] = loc
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return direct, indirect, nil
}

// loadKeysFromLocale reads a locale file. Flat "group.id" keys and nested
// maps are both accepted.
func loadKeysFromLocale(path string) (map[string]struct{}, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, err
	}
	keys := make(map[string]struct{})
	flattenYAML("", data, keys)
	return keys, nil
}

func flattenYAML(prefix string, node any, keys map[string]struct{}) {
	m, ok := node.(map[string]any)
	if !ok {
		if prefix != "" {
			keys[prefix] = struct{}{}
		}
		return
	}
	for k, v := range m {
		if prefix != "" {
			k = prefix + "." + k
		}
		flattenYAML(k, v, keys)
	}
}
