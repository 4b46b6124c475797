// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"strings"
	"testing"
	"time"
)

// newTestStore opens a migrated shared-cache in-memory sqlite store that is
// private to the calling test.
func newTestStore(t *testing.T) *BunStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(TypeSQLite, "file:test_"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
