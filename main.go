// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for PanelApp.
//
// Usage:
//
//	go run . [flags]
//	./panelapp serve
//
// See --help for the full command tree.
package main

import (
	"os"

	"github.com/genepanels/panelapp/internal/logging"
	"github.com/genepanels/panelapp/ui/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		logging.Errorf("panelapp: %v", err)
		os.Exit(1)
	}
}
