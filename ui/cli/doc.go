// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.
//
// Package cli implements the command-line interface for PanelApp using Cobra.
// It loads configuration, opens the configured database and delegates every
// command to core.Service. CLI code stays thin: parsing flags, resolving the
// acting user and printing localized results.
package cli
