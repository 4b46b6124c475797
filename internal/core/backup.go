// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/genepanels/panelapp/internal/logging"
	"github.com/genepanels/panelapp/internal/model"
	"github.com/klauspost/compress/zstd"
)

// Backup streams a zstd-compressed JSON dump of the whole database to w.
func (s *Service) Backup(ctx context.Context, w io.Writer) (data *model.BackupData, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "backup", start, err) }()
	data, err = s.store.ExportData(ctx)
	if err != nil {
		return nil, fmt.Errorf("export data: %w", err)
	}
	if err := WriteBackup(w, data); err != nil {
		return nil, err
	}
	logging.Infof("backup written: %d panels, %d archived versions, %d activities", len(data.Panels), len(data.Historical), len(data.Activities))
	return data, nil
}

// Restore reads a dump produced by Backup. With full set every table is
// wiped first; otherwise records that already exist are skipped.
func (s *Service) Restore(ctx context.Context, r io.Reader, full bool) (data *model.BackupData, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "restore", start, err) }()
	data, err = ReadBackup(r)
	if err != nil {
		return nil, err
	}
	if data.SchemaVersion > model.BackupSchemaVersion {
		return nil, invalid("backup schema version %d is newer than supported version %d", data.SchemaVersion, model.BackupSchemaVersion)
	}
	if err := s.store.ImportData(ctx, data, full); err != nil {
		return nil, fmt.Errorf("import data: %w", err)
	}
	return data, nil
}

// Migrate copies every record of this service's store into dst, replacing
// whatever dst held. dst must already have its schema applied.
func (s *Service) Migrate(ctx context.Context, dst Store) (err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "migrate", start, err) }()
	data, err := s.store.ExportData(ctx)
	if err != nil {
		return fmt.Errorf("export data: %w", err)
	}
	if err := dst.ImportData(ctx, data, true); err != nil {
		return fmt.Errorf("import into target: %w", err)
	}
	logging.Infof("migrated %d panels and %d users", len(data.Panels), len(data.Users))
	return nil
}

// WriteBackup encodes data as indented JSON inside a zstd stream.
func WriteBackup(w io.Writer, data *model.BackupData) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("could not create zstd writer: %w", err)
	}
	enc := json.NewEncoder(zw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		_ = zw.Close()
		return fmt.Errorf("could not encode json to zstd writer: %w", err)
	}
	return zw.Close()
}

// ReadBackup decodes a stream written by WriteBackup.
func ReadBackup(r io.Reader) (*model.BackupData, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("could not create zstd reader: %w", err)
	}
	defer zr.Close()
	var data model.BackupData
	if err := json.NewDecoder(zr).Decode(&data); err != nil {
		return nil, fmt.Errorf("could not decode json from zstd reader: %w", err)
	}
	return &data, nil
}
