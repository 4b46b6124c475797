package db

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/genepanels/panelapp/internal/core"
)

func TestMapDBError(t *testing.T) {
	dups := []string{
		"UNIQUE constraint failed: panels.name_key",
		"ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)",
		"Error 1062 (23000): Duplicate entry 'x' for key 'username'",
	}
	for _, msg := range dups {
		if err := MapDBError(errors.New(msg)); !errors.Is(err, core.ErrDuplicate) {
			t.Fatalf("MapDBError(%q) = %v, want ErrDuplicate", msg, err)
		}
	}
	other := errors.New("connection refused")
	if err := MapDBError(other); err != other {
		t.Fatalf("unrelated error should pass through, got %v", err)
	}
	if MapDBError(nil) != nil {
		t.Fatal("nil should map to nil")
	}
}

func TestNotFoundOr(t *testing.T) {
	err := notFoundOr(sql.ErrNoRows, "panel", 7)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err.Error() != "panel 7 not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
