// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"time"

	"github.com/uptrace/bun"

	"github.com/genepanels/panelapp/internal/logging"
)

var debugEnabled atomic.Bool

// SetDebug turns on logging of pool setup, migrations and every SQL
// statement. Off by default.
func SetDebug(enabled bool) {
	debugEnabled.Store(enabled)
}

func dbLogf(format string, v ...any) {
	if debugEnabled.Load() {
		logging.Debugf(format, v...)
	}
}

// queryLogger is a bun.QueryHook that logs statements while debug is on.
type queryLogger struct{}

var _ bun.QueryHook = queryLogger{}

func (queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (queryLogger) AfterQuery(_ context.Context, ev *bun.QueryEvent) {
	if !debugEnabled.Load() {
		return
	}
	took := time.Since(ev.StartTime).Round(time.Microsecond)
	if ev.Err != nil && !errors.Is(ev.Err, sql.ErrNoRows) {
		logging.Debugf("db: %s [%s] failed: %v", ev.Query, took, ev.Err)
		return
	}
	logging.Debugf("db: %s [%s]", ev.Query, took)
}
