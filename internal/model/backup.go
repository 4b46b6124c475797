// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package model

// BackupSchemaVersion is bumped whenever BackupData changes shape.
const BackupSchemaVersion = 1

// BackupData is a container for all data to be exported for a backup.
// Snapshot entities are keyed by the snapshot's panel ID because only the
// live snapshot of each panel keeps rows; older versions travel inside
// Historical.
type BackupData struct {
	// SchemaVersion helps in handling migrations during restore.
	SchemaVersion int `json:"schema_version"`

	Users      []User               `json:"users"`
	Genes      []Gene               `json:"genes"`
	Panels     []Panel              `json:"panels"`
	Snapshots  []Snapshot           `json:"snapshots"`
	Entities   map[int64][]Entity   `json:"entities"`
	Historical []HistoricalSnapshot `json:"historical_snapshots"`
	Activities []Activity           `json:"activities"`
}
