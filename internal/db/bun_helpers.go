// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
)

// rawQuerier is satisfied by both *bun.DB and bun.Tx.
type rawQuerier interface {
	NewRaw(query string, args ...any) *bun.RawQuery
}

// ExecRaw runs a statement that returns no rows.
func ExecRaw(ctx context.Context, q rawQuerier, query string, args ...any) (sql.Result, error) {
	return q.NewRaw(query, args...).Exec(ctx)
}

// QueryRawInto scans the rows of query into dest (a slice or struct pointer).
func QueryRawInto(ctx context.Context, q rawQuerier, dest any, query string, args ...any) error {
	return q.NewRaw(query, args...).Scan(ctx, dest)
}

// WithTx runs fn in a transaction; it commits when fn returns nil and rolls
// back otherwise, including on panic.
func WithTx(ctx context.Context, bdb *bun.DB, fn func(ctx context.Context, tx bun.Tx) error) error {
	return bdb.RunInTx(ctx, &sql.TxOptions{}, fn)
}
