// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrImport is matched by every bulk import failure.
var ErrImport = errors.New("import failed")

// ErrTSVIncorrectFormat reports a row that cannot be parsed.
type ErrTSVIncorrectFormat struct {
	Line   int
	Reason string
}

func (e ErrTSVIncorrectFormat) Error() string {
	return fmt.Sprintf("line %d: incorrect format: %s", e.Line, e.Reason)
}

func (e ErrTSVIncorrectFormat) Unwrap() error { return ErrImport }

// UsersDoNotExistError lists every unknown username referenced by an import.
type UsersDoNotExistError struct {
	Usernames []string
}

func (e UsersDoNotExistError) Error() string {
	return "users do not exist: " + strings.Join(e.Usernames, ", ")
}

func (e UsersDoNotExistError) Unwrap() error { return ErrImport }

// GenesDoNotExistError lists every gene symbol missing from the catalogue.
type GenesDoNotExistError struct {
	Symbols []string
}

func (e GenesDoNotExistError) Error() string {
	return "genes do not exist: " + strings.Join(e.Symbols, ", ")
}

func (e GenesDoNotExistError) Unwrap() error { return ErrImport }

// UserDoesNotExistError is returned when a single referenced user is unknown.
type UserDoesNotExistError struct {
	Username string
}

func (e UserDoesNotExistError) Error() string {
	return fmt.Sprintf("user %q does not exist", e.Username)
}

func (e UserDoesNotExistError) Unwrap() []error { return []error{ErrImport, ErrNotFound} }

// GeneDoesNotExistError is returned when a single gene symbol is unknown.
type GeneDoesNotExistError struct {
	Symbol string
}

func (e GeneDoesNotExistError) Error() string {
	return fmt.Sprintf("gene %q does not exist", e.Symbol)
}

func (e GeneDoesNotExistError) Unwrap() []error { return []error{ErrImport, ErrNotFound} }

// IncorrectRatingError reports a rating outside GREEN/AMBER/RED.
type IncorrectRatingError struct {
	Line  int
	Value string
}

func (e IncorrectRatingError) Error() string {
	return fmt.Sprintf("line %d: incorrect rating %q", e.Line, e.Value)
}

func (e IncorrectRatingError) Unwrap() error { return ErrImport }

// IsSuperPanelError is returned when entities are added to a superpanel.
type IsSuperPanelError struct {
	Panel string
}

func (e IsSuperPanelError) Error() string {
	return fmt.Sprintf("panel %q is a superpanel and cannot hold entities", e.Panel)
}

func (e IsSuperPanelError) Unwrap() []error { return []error{ErrImport, ErrInvalidInput} }
