// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

// Package tui is a read-only terminal browser for panels. Presentation and
// input handling live here; data comes from core.Service through Source.
package tui
