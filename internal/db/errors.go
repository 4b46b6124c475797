// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/genepanels/panelapp/internal/core"
)

// MapDBError inspects low-level driver errors and maps common constraint
// violations to core.ErrDuplicate. The mapping is string based so no driver
// package has to be imported here.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}
	le := strings.ToLower(err.Error())
	// MySQL duplicate entry (1062), Postgres unique violation (23505), SQLite unique constraint
	if strings.Contains(le, "duplicate") || strings.Contains(le, "unique") || strings.Contains(le, "23505") || strings.Contains(le, "1062") {
		return fmt.Errorf("%w: %v", core.ErrDuplicate, err)
	}
	return err
}

// notFoundOr converts sql.ErrNoRows into a core.NotFoundError.
func notFoundOr(err error, kind string, key any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.NotFoundError{Kind: kind, Key: fmt.Sprint(key)}
	}
	return err
}
