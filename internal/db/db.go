// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

// package db provides the data access layer for PanelApp.
// It hides the underlying database (SQLite, PostgreSQL or MySQL) behind the
// core.Store interface and keeps the schema current with embedded migrations.
package db // import "github.com/genepanels/panelapp/internal/db"

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	// SQL drivers for every supported backend.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var (
	//go:embed migrations
	embeddedMigrations embed.FS
	// sqlOpenFunc allows tests to override database opening behavior.
	sqlOpenFunc = sql.Open
)

// Supported database types.
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
)

// PoolOptions tunes the sql.DB connection pool. Zero values select defaults.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = time.Minute
)

func (o PoolOptions) withDefaults() PoolOptions {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = defaultMaxOpenConns
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = defaultMaxIdleConns
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = defaultConnMaxLifetime
	}
	if o.ConnMaxIdleTime <= 0 {
		o.ConnMaxIdleTime = defaultConnMaxIdleTime
	}
	return o
}

// driverName maps a database type to the registered database/sql driver.
// The pgx stdlib registers driver name "pgx".
func driverName(dbType string) string {
	if dbType == TypePostgres {
		return "pgx"
	}
	return dbType
}

// isMemorySQLite reports whether dsn names a private in-memory SQLite
// database. Each connection to such a DSN sees its own empty database.
func isMemorySQLite(dbType, dsn string) bool {
	return dbType == TypeSQLite && (dsn == ":memory:" || dsn == "file::memory:")
}

// Open is NewStoreFromDSN with default pool options.
func Open(dbType, dsn string) (*BunStore, error) {
	return NewStoreFromDSN(dbType, dsn, PoolOptions{})
}

// NewStoreFromDSN opens a sql.DB for the given DSN, runs migrations, and
// returns a store backed by a long-lived *bun.DB.
func NewStoreFromDSN(dbType, dsn string, pool PoolOptions) (*BunStore, error) {
	switch dbType {
	case TypeSQLite, TypePostgres, TypeMySQL:
	default:
		return nil, fmt.Errorf("unsupported database type: '%s'", dbType)
	}
	start := time.Now()
	sqlDB, err := sqlOpenFunc(driverName(dbType), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pool = pool.withDefaults()
	if isMemorySQLite(dbType, dsn) {
		pool.MaxOpenConns = 1
		pool.MaxIdleConns = 1
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	dbLogf("db: opened %s driver in %s (conn max open=%d, idle=%s, maxLifetime=%s)",
		driverName(dbType), time.Since(start), pool.MaxOpenConns, pool.ConnMaxIdleTime, pool.ConnMaxLifetime)

	if dbType == TypeSQLite {
		// Foreign keys are off by default in SQLite.
		if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	migStart := time.Now()
	if err := RunMigrations(sqlDB, dbType); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	dbLogf("db: migrations for %s completed in %s", dbType, time.Since(migStart))

	return newBunStore(createBunDB(sqlDB, dbType), dbType), nil
}

// createBunDB constructs a *bun.DB for the provided *sql.DB and dbType.
func createBunDB(sqlDB *sql.DB, dbType string) *bun.DB {
	var bdb *bun.DB
	switch dbType {
	case TypePostgres:
		bdb = bun.NewDB(sqlDB, pgdialect.New())
	case TypeMySQL:
		bdb = bun.NewDB(sqlDB, mysqldialect.New())
	default:
		bdb = bun.NewDB(sqlDB, sqlitedialect.New())
	}
	bdb.AddQueryHook(queryLogger{})
	return bdb
}

// RunMigrations applies the embedded migrations for dbType that are not yet
// recorded in schema_migrations. Each file runs in its own transaction.
func RunMigrations(db *sql.DB, dbType string) error {
	migrationsPath := fmt.Sprintf("migrations/%s", dbType)

	entries, err := fs.ReadDir(embeddedMigrations, migrationsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			dbLogf("db: no migrations embedded for %s", dbType)
			return nil
		}
		return fmt.Errorf("failed to read embedded migrations (%s): %w", migrationsPath, err)
	}

	var ups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)

	if err := ensureSchemaMigrationsTable(db, dbType); err != nil {
		return fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}

	placeholder := func(n int) string {
		if dbType == TypePostgres {
			return fmt.Sprintf("$%d", n)
		}
		return "?"
	}

	for _, fname := range ups {
		version := strings.TrimSuffix(fname, ".up.sql")

		var exists int
		err := db.QueryRow("SELECT 1 FROM schema_migrations WHERE version = "+placeholder(1), version).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check migration version %s: %w", version, err)
		}

		p := path.Join(migrationsPath, fname)
		data, err := embeddedMigrations.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", p, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %s: %w", version, err)
		}
		for _, stmt := range splitStatements(string(data)) {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("failed to execute migration %s: %w", version, err)
			}
		}
		insert := fmt.Sprintf("INSERT INTO schema_migrations(version, applied_at) VALUES(%s, %s)", placeholder(1), placeholder(2))
		if _, err := tx.Exec(insert, version, time.Now().UTC()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", version, err)
		}
		dbLogf("db: applied migration %s", version)
	}
	return nil
}

// splitStatements splits a migration file on ';' line endings. The MySQL
// driver rejects multi-statement Exec calls unless multiStatements=true.
func splitStatements(script string) []string {
	var out []string
	var cur strings.Builder
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			if stmt := strings.TrimSpace(cur.String()); stmt != "" {
				out = append(out, stmt)
			}
			cur.Reset()
		}
	}
	if stmt := strings.TrimSpace(cur.String()); stmt != "" {
		out = append(out, stmt)
	}
	return out
}

// ensureSchemaMigrationsTable creates schema_migrations if missing.
// MySQL does not permit TEXT columns as keys without a length.
func ensureSchemaMigrationsTable(db *sql.DB, dbType string) error {
	ddl := `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMP)`
	if dbType == TypeMySQL {
		ddl = `CREATE TABLE IF NOT EXISTS schema_migrations (version VARCHAR(191) PRIMARY KEY, applied_at TIMESTAMP NULL)`
	}
	_, err := db.Exec(ddl)
	return err
}

// AppliedMigrations lists the recorded migration versions in order.
func AppliedMigrations(ctx context.Context, s *BunStore) ([]string, error) {
	var versions []string
	if err := QueryRawInto(ctx, s.bun, &versions, "SELECT version FROM schema_migrations ORDER BY version"); err != nil {
		return nil, err
	}
	return versions, nil
}

// RunDBMaintenance performs engine-specific maintenance tasks for the given
// database DSN. For SQLite this runs PRAGMA optimize, VACUUM, a WAL checkpoint
// and (unless skipIntegrity) an integrity check. For Postgres it runs VACUUM
// ANALYZE. For MySQL it runs OPTIMIZE TABLE for all tables.
func RunDBMaintenance(ctx context.Context, dbType, dsn string, skipIntegrity bool) error {
	sqlDB, err := sqlOpenFunc(driverName(dbType), dsn)
	if err != nil {
		return fmt.Errorf("failed to open database for maintenance: %w", err)
	}
	defer func() { _ = sqlDB.Close() }()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	switch dbType {
	case TypeSQLite:
		// PRAGMA optimize is not useful on every filesystem; treat errors as non-fatal.
		if _, err := sqlDB.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
			dbLogf("db: sqlite optimize failed (ignored): %v", err)
		}
		if _, err := sqlDB.ExecContext(ctx, "VACUUM;"); err != nil {
			return fmt.Errorf("sqlite vacuum failed: %w", err)
		}
		_, _ = sqlDB.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE);")
		if !skipIntegrity {
			var res string
			if err := sqlDB.QueryRowContext(ctx, "PRAGMA integrity_check;").Scan(&res); err != nil {
				return fmt.Errorf("sqlite integrity_check failed: %w", err)
			}
			if res != "ok" {
				return fmt.Errorf("sqlite integrity_check failed: %s", res)
			}
		}
	case TypePostgres:
		if _, err := sqlDB.ExecContext(ctx, "VACUUM ANALYZE;"); err != nil {
			return fmt.Errorf("postgres vacuum failed: %w", err)
		}
	case TypeMySQL:
		rows, err := sqlDB.QueryContext(ctx, "SHOW TABLES")
		if err != nil {
			return fmt.Errorf("mysql show tables failed: %w", err)
		}
		var tables []string
		for rows.Next() {
			var table string
			if err := rows.Scan(&table); err != nil {
				_ = rows.Close()
				return fmt.Errorf("mysql read table name failed: %w", err)
			}
			tables = append(tables, table)
		}
		_ = rows.Close()
		var lastErr error
		for _, table := range tables {
			if _, err := sqlDB.ExecContext(ctx, fmt.Sprintf("OPTIMIZE TABLE `%s`", table)); err != nil {
				dbLogf("db: mysql optimize table %s failed: %v", table, err)
				lastErr = err
			}
		}
		if lastErr != nil {
			return fmt.Errorf("mysql optimize encountered errors: %w", lastErr)
		}
	default:
		return fmt.Errorf("unsupported db type for maintenance: %s", dbType)
	}
	return nil
}
