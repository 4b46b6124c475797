// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a panel, version, entity, user or gene is missing.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when inserting a record that already exists.
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict is returned when another writer created the same panel version first.
	ErrConflict = errors.New("panel was modified concurrently")
	// ErrPermissionDenied is returned when the actor's role does not allow the operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidInput wraps validation failures of caller supplied values.
	ErrInvalidInput = errors.New("invalid input")
)

// NotFoundError names the missing record. It matches ErrNotFound with errors.Is.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(kind string, key any) error {
	return NotFoundError{Kind: kind, Key: fmt.Sprint(key)}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func denied(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermissionDenied, fmt.Sprintf(format, args...))
}
