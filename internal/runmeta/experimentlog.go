// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package runmeta

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"vcornea-orchestrator/internal/params"
)

// ExperimentLogFileName is the rolling run log at the output base.
const ExperimentLogFileName = "experiment_log.csv"

// Logger is the logging surface the experiment log needs.
type Logger interface {
	Warnf(format string, args ...interface{})
}

// Fixed columns, in order. Dynamic <param>_value/<param>_default pairs
// follow, sorted by parameter name.
var fixedColumns = []string{
	"run_name",
	"created_at",
	"completed_at",
	"simulation_success",
	"replicates",
	"sim_time",
	"has_injury",
	"injury_type",
	"healing_time",
	"changed_parameters",
	"output_dir",
	"error",
}

// UpsertExperimentLog writes or updates the run's row in the CSV at path,
// keyed by run name. Each replicate finalization calls this, so the row
// converges to the run's terminal state; a recorded failure is never
// overwritten back to success by a later replicate. Rows written by older
// versions of the tool may carry different columns: the upsert keeps their
// cells and renders missing ones empty, and a log it cannot parse at all is
// warned about and restarted rather than failing the run.
func UpsertExperimentLog(path string, md *Metadata, log Logger) error {
	lock := logLocks.get(path)
	lock.Lock()
	defer lock.Unlock()

	headers, rows := readTable(path, log)

	row := rowFor(md)
	headers = mergeHeaders(headers, rowColumns(md))

	updated := false
	for i, existing := range rows {
		if existing["run_name"] != md.RunName {
			continue
		}
		if existing["simulation_success"] == "False" {
			row["simulation_success"] = "False"
		}
		// Keep cells from columns this row does not carry.
		for col, cell := range existing {
			if _, ok := row[col]; !ok {
				row[col] = cell
			}
		}
		rows[i] = row
		updated = true
		break
	}
	if !updated {
		rows = append(rows, row)
	}

	return writeTable(path, headers, rows)
}

// readTable loads the existing log. A missing file yields an empty table; a
// corrupt one is reported and discarded.
func readTable(path string, log Logger) ([]string, []map[string]string) {
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) && log != nil {
			log.Warnf("cannot open experiment log %s, starting fresh: %v", path, err)
		}
		return nil, nil
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		if log != nil {
			log.Warnf("experiment log %s is corrupt, starting fresh: %v", path, err)
		}
		return nil, nil
	}
	if len(records) == 0 {
		return nil, nil
	}

	headers := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(headers))
		for i, col := range headers {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return headers, rows
}

func writeTable(path string, headers []string, rows []map[string]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".experiment_log-*.csv")
	if err != nil {
		return fmt.Errorf("create experiment log temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(headers); err != nil {
		tmp.Close()
		return fmt.Errorf("write experiment log header: %w", err)
	}
	record := make([]string, len(headers))
	for _, row := range rows {
		for i, col := range headers {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("write experiment log row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush experiment log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close experiment log temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace experiment log: %w", err)
	}
	return nil
}

func rowFor(md *Metadata) map[string]string {
	row := map[string]string{
		"run_name":           md.RunName,
		"created_at":         md.CreatedAt.Format(time.RFC3339),
		"simulation_success": "",
		"replicates":         fmt.Sprintf("%d", md.TotalReplicates),
		"sim_time":           fmt.Sprintf("%d", md.SimulationConfig.SimTime),
		"has_injury":         pythonBool(md.SimulationConfig.HasInjury),
		"injury_type":        md.SimulationConfig.InjuryType,
		"healing_time":       "",
		"changed_parameters": fmt.Sprintf("%d", md.ChangedParameters),
		"output_dir":         md.OutputDir,
		"error":              md.Error,
		"completed_at":       "",
	}
	if md.SimulationSuccess != nil {
		row["simulation_success"] = pythonBool(*md.SimulationSuccess)
	}
	if md.CompletedAt != nil {
		row["completed_at"] = md.CompletedAt.Format(time.RFC3339)
	}
	if md.HealingTime != nil {
		row["healing_time"] = params.Float(*md.HealingTime).PythonLiteral()
	}
	for name, change := range md.ParameterChanges {
		row[name+"_value"] = cellValue(change.Current)
		row[name+"_default"] = cellValue(change.Default)
	}
	return row
}

func rowColumns(md *Metadata) []string {
	cols := make([]string, 0, len(fixedColumns)+2*len(md.ParameterChanges))
	cols = append(cols, fixedColumns...)

	names := make([]string, 0, len(md.ParameterChanges))
	for name := range md.ParameterChanges {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cols = append(cols, name+"_value", name+"_default")
	}
	return cols
}

// mergeHeaders keeps the existing column order and appends new columns at
// the end, so rows written by earlier runs stay aligned.
func mergeHeaders(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, col := range existing {
		if !seen[col] {
			seen[col] = true
			merged = append(merged, col)
		}
	}
	for _, col := range incoming {
		if !seen[col] {
			seen[col] = true
			merged = append(merged, col)
		}
	}
	return merged
}

// cellValue renders a parameter value for a CSV cell: Python literals for
// bools and numbers, raw text for strings.
func cellValue(v params.Value) string {
	if v.Kind() == params.KindString {
		return v.AsString()
	}
	return v.PythonLiteral()
}

func pythonBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
