// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a panel version, rendered as "major.minor".
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

// String returns the "major.minor" representation.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Next returns the version that follows v. A major bump resets minor to 0.
func (v Version) Next(major bool) Version {
	if major {
		return Version{Major: v.Major + 1}
	}
	return Version{Major: v.Major, Minor: v.Minor + 1}
}

// Less orders versions by major, then minor.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	return v.Minor < o.Minor
}

// ParseVersion parses "M.m". A bare "M" is read as "M.0".
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, fmt.Errorf("empty version")
	}
	majorStr, minorStr, found := strings.Cut(s, ".")
	major, err := strconv.Atoi(majorStr)
	if err != nil || major < 0 {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	if !found {
		return Version{Major: major}, nil
	}
	minor, err := strconv.Atoi(minorStr)
	if err != nil || minor < 0 {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	return Version{Major: major, Minor: minor}, nil
}
