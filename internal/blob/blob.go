// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

// Package blob stores generated report files. A sink URL selects the
// backend: file://dir, memory://, s3://bucket/prefix or sftp://host/dir.
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a blob backend.
type Driver string

const (
	DriverFilesystem Driver = "file"
	DriverMemory     Driver = "memory"
	DriverS3         Driver = "s3"
	DriverSFTP       Driver = "sftp"
)

// Info describes a stored blob.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is the minimal object store used by the export workers. Put
// replaces an existing blob with the same key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	Driver() Driver
	Close() error
}

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("blob: not found")

// ErrInvalidKey rejects empty keys and keys escaping the store root.
var ErrInvalidKey = errors.New("blob: invalid key")
