// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package model

// TypeStats counts the entities of one type by colour.
type TypeStats struct {
	Total int `json:"total"`
	Green int `json:"green"`
	Amber int `json:"amber"`
	Red   int `json:"red"`
	Grey  int `json:"grey"`
}

// Add counts one entity at the given level.
func (s *TypeStats) Add(level ConfidenceLevel) {
	s.Total++
	switch level.Colour() {
	case "green":
		s.Green++
	case "amber":
		s.Amber++
	case "red":
		s.Red++
	default:
		s.Grey++
	}
}

// PanelStats are the saved counters of a snapshot.
type PanelStats struct {
	Genes                     TypeStats `json:"genes"`
	Regions                   TypeStats `json:"regions"`
	STRs                      TypeStats `json:"strs"`
	NumberOfReviewers         int       `json:"number_of_reviewers"`
	NumberOfEvaluatedEntities int       `json:"number_of_evaluated_entities"`
	NumberOfReadyEntities     int       `json:"number_of_ready_entities"`
}

// ForType returns a pointer to the counters of the given type.
func (s *PanelStats) ForType(t EntityType) *TypeStats {
	switch t {
	case EntityRegion:
		return &s.Regions
	case EntitySTR:
		return &s.STRs
	default:
		return &s.Genes
	}
}

// Total is the number of entities of all types.
func (s PanelStats) Total() int {
	return s.Genes.Total + s.Regions.Total + s.STRs.Total
}
