package db

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func TestRunMigrationsSqlite(t *testing.T) {
	dbConn, err := sql.Open("sqlite", "file:test_migrations?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	defer func() { _ = dbConn.Close() }()

	if err := RunMigrations(dbConn, TypeSQLite); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}
	// Second run must be a no-op.
	if err := RunMigrations(dbConn, TypeSQLite); err != nil {
		t.Fatalf("RunMigrations (again) failed: %v", err)
	}

	var n int
	if err := dbConn.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", "000001_create_initial_tables").Scan(&n); err != nil {
		t.Fatalf("query schema_migrations failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected initial migration recorded once, got %d", n)
	}

	for _, table := range []string{"users", "genes", "panels", "panel_snapshots", "snapshot_children", "snapshot_entities", "historical_snapshots", "activities"} {
		if _, err := dbConn.Exec("SELECT 1 FROM " + table + " LIMIT 1"); err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestEmbeddedMigrationsExistForEveryBackend(t *testing.T) {
	for _, dbType := range []string{TypeSQLite, TypePostgres, TypeMySQL} {
		data, err := embeddedMigrations.ReadFile("migrations/" + dbType + "/000001_create_initial_tables.up.sql")
		if err != nil {
			t.Fatalf("%s: %v", dbType, err)
		}
		if len(splitStatements(string(data))) < 8 {
			t.Fatalf("%s: expected at least one statement per table", dbType)
		}
	}
}

func TestSplitStatements_SkipsCommentsAndBlankLines(t *testing.T) {
	script := "-- header\n\nCREATE TABLE a (\n  id INT\n);\n-- mid\nCREATE INDEX i ON a(id);\n"
	got := splitStatements(script)
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if got[1] != "CREATE INDEX i ON a(id);" {
		t.Fatalf("unexpected second statement %q", got[1])
	}
}

func TestAppliedMigrations(t *testing.T) {
	s := newTestStore(t)
	got, err := AppliedMigrations(context.Background(), s)
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(got) != 1 || got[0] != "000001_create_initial_tables" {
		t.Fatalf("unexpected migrations: %v", got)
	}
}

func TestRunDBMaintenanceSqlite_Smoke(t *testing.T) {
	if err := RunDBMaintenance(context.Background(), TypeSQLite, "file:test_maint?mode=memory&cache=shared", false); err != nil {
		t.Fatalf("RunDBMaintenance failed: %v", err)
	}
}

func TestOpenRejectsUnknownType(t *testing.T) {
	if _, err := Open("oracle", "x"); err == nil {
		t.Fatal("expected error for unsupported database type")
	}
}
