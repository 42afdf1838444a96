// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package runmeta records what a run was: its name, its parameter changes,
// and how each replicate ended. Records land in two places, a
// run_metadata.json next to each replicate's outputs and a shared
// experiment_log.csv rolling up one row per run.
package runmeta

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vcornea-orchestrator/internal/params"
)

// MetadataFileName is the per-replicate metadata file.
const MetadataFileName = "run_metadata.json"

// Injury type names as they appear in metadata and the experiment log. The
// simulation encodes the mechanism as a boolean; records spell it out.
const (
	InjuryChemical = "chemical"
	InjuryAblation = "ablation"
)

// InjuryTypeName translates the InjuryType boolean.
func InjuryTypeName(injuryType bool) string {
	if injuryType {
		return InjuryChemical
	}
	return InjuryAblation
}

// SimulationConfig summarizes the run's headline settings.
type SimulationConfig struct {
	SimTime    int64  `json:"sim_time"`
	HasInjury  bool   `json:"has_injury"`
	InjuryType string `json:"injury_type"`
}

// Metadata is the full record for one replicate of a run. It is created at
// launch and finalized exactly once when the replicate reaches a terminal
// state. Replicate ID 0 marks the run-level record aggregated into the
// batch result; it is never written to a replicate directory.
type Metadata struct {
	RunName           string                   `json:"run_name"`
	ReplicateID       int                      `json:"replicate_id,omitempty"`
	TotalReplicates   int                      `json:"total_replicates"`
	CreatedAt         time.Time                `json:"created_at"`
	CompletedAt       *time.Time               `json:"completed_at,omitempty"`
	TotalParameters   int                      `json:"total_parameters"`
	ChangedParameters int                      `json:"changed_parameters"`
	ParameterChanges  map[string]params.Change `json:"parameter_changes"`
	SimulationConfig  SimulationConfig         `json:"simulation_config"`
	SimulationSuccess *bool                    `json:"simulation_success"`
	HealingTime       *float64                 `json:"healing_time"`
	Error             string                   `json:"error,omitempty"`
	OutputDir         string                   `json:"output_directory,omitempty"`
	FilesGenerated    []string                 `json:"files_generated,omitempty"`
	FilesCollected    []string                 `json:"files_collected,omitempty"`
}

// New builds the launch-time metadata for one replicate.
func New(runName string, replicateID, totalReplicates int, merged params.Set, changes map[string]params.Change, now time.Time) *Metadata {
	return &Metadata{
		RunName:           runName,
		ReplicateID:       replicateID,
		TotalReplicates:   totalReplicates,
		CreatedAt:         now,
		TotalParameters:   len(merged),
		ChangedParameters: len(changes),
		ParameterChanges:  changes,
		SimulationConfig: SimulationConfig{
			SimTime:    merged["SimTime"].AsInt(),
			HasInjury:  merged["IsInjury"].AsBool(),
			InjuryType: InjuryTypeName(merged["InjuryType"].AsBool()),
		},
	}
}

// Finalize records the terminal state. Success stays nil until this point,
// so a metadata file written before finalization reads as in-flight.
func (m *Metadata) Finalize(success bool, errMsg string, now time.Time) {
	m.SimulationSuccess = &success
	m.Error = errMsg
	m.CompletedAt = &now
}

// WriteFile writes the record as run_metadata.json inside dir.
func (m *Metadata) WriteFile(dir string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run metadata: %w", err)
	}
	path := filepath.Join(dir, MetadataFileName)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write run metadata: %w", err)
	}
	return nil
}

// ReadFile loads a run_metadata.json from dir.
func ReadFile(dir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFileName))
	if err != nil {
		return nil, fmt.Errorf("read run metadata: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode run metadata: %w", err)
	}
	return &m, nil
}
