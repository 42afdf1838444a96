// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package collect

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// recoveryFraction is the share of the pre-injury basal cell count the
// tissue must regain to count as healed.
const recoveryFraction = 0.95

// Results holds what the collector could read out of a replicate's output
// directory after the run.
type Results struct {
	// CellCounts maps column name to the per-timepoint series from the
	// cell count CSV. Nil when no cell count file was found.
	CellCounts map[string][]float64

	// CellCountFile and ThicknessFile are the base names of the files the
	// series came from. Empty when absent.
	CellCountFile string
	ThicknessFile string

	// HealingTime is the simulation time from injury to basal recovery.
	// Zero for uninjured runs, nil when the tissue never recovered.
	HealingTime *float64
}

// Results parses the collected outputs for one replicate. A missing cell
// count file yields a CollectionWarning alongside whatever could still be
// determined; the caller logs it and keeps the partial results.
func (c *Collector) Results(outputDir string, simTime int64, isInjury bool, injuryTime int64, replicateID int) (*Results, error) {
	res := &Results{}
	d := simTime + 1

	if name := findOutput(outputDir, fmt.Sprintf("thickness_rep_%d.parquet", d), "thickness_rep_*.parquet"); name != "" {
		res.ThicknessFile = name
	}

	cellFile := findOutput(outputDir, fmt.Sprintf("cell_count_%d.csv", d), "cell_count_*.csv")
	if cellFile == "" {
		return res, &CollectionWarning{ReplicateID: replicateID, Err: fmt.Errorf("no cell count file in %s", outputDir)}
	}
	res.CellCountFile = cellFile

	counts, err := ParseCellCounts(filepath.Join(outputDir, cellFile))
	if err != nil {
		return res, &CollectionWarning{ReplicateID: replicateID, Err: err}
	}
	res.CellCounts = counts
	res.HealingTime = HealingTime(counts, isInjury, injuryTime)
	if isInjury && res.HealingTime == nil {
		c.log.Warnf("replicate %d: tissue did not recover within the run", replicateID)
	}
	return res, nil
}

// findOutput returns the base name of the first file in dir matching the
// exact name, then the wildcard pattern. Empty files do not count.
func findOutput(dir, exact, pattern string) string {
	path := filepath.Join(dir, exact)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return exact
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return ""
	}
	sort.Strings(matches)
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Size() > 0 {
			return filepath.Base(m)
		}
	}
	return ""
}

// ParseCellCounts reads a cell count CSV into per-column series. The
// first row names the columns; every later row contributes one float per
// column. Short rows are tolerated, non-numeric cells are not.
func ParseCellCounts(path string) (map[string][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("parse %s: no data rows", path)
	}

	header := rows[0]
	counts := make(map[string][]float64, len(header))
	for _, row := range rows[1:] {
		for i, cell := range row {
			if i >= len(header) {
				break
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s: column %s: %w", path, header[i], err)
			}
			counts[header[i]] = append(counts[header[i]], v)
		}
	}
	return counts, nil
}

// HealingTime derives the time from injury to recovery. Recovery is the
// first timepoint after the injury where the basal count reaches 95% of
// its last pre-injury value. Uninjured runs heal in zero time; an injured
// run that never reaches the threshold returns nil.
func HealingTime(counts map[string][]float64, isInjury bool, injuryTime int64) *float64 {
	if !isInjury {
		zero := 0.0
		return &zero
	}
	times := counts["Time"]
	basal := counts["Basal"]
	n := len(times)
	if len(basal) < n {
		n = len(basal)
	}
	if n == 0 {
		return nil
	}

	injury := float64(injuryTime)
	baseline := basal[0]
	for i := 0; i < n; i++ {
		if times[i] <= injury {
			baseline = basal[i]
		}
	}

	threshold := recoveryFraction * baseline
	for i := 0; i < n; i++ {
		if times[i] > injury && basal[i] >= threshold {
			healed := times[i] - injury
			return &healed
		}
	}
	return nil
}
