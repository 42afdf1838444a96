// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package commands

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"vcornea-orchestrator/internal/params"
)

// Sweep command flags
var (
	sweepFlags  batchFlags
	sweepParam  string
	sweepValues string
	sweepSets   []string
)

// SweepCmd runs one parameter across several values.
var SweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Sweep one parameter across a list of values",
	Long: `Run one batch per value of a single parameter, with a fixed set of
base overrides applied to every batch.

Each value gets its own named run directory and its own experiment log row;
the per-replicate healing times are additionally aggregated into a sweep
summary CSV under the output base directory.`,
	Example: `  # SLS concentration sweep, 2 replicates per value
  vcornea-batch sweep --project ~/vCornea -r 2 \
    --param SLS_Concentration --values 500.0,1500.0,2500.0 \
    --set SimTime=500 --set IsInjury=True --set InjuryTime=50 --set InjuryType=True`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := sweepFlags.load(cmd)
		if err != nil {
			return err
		}

		values := splitValues(sweepValues)
		if sweepParam == "" || len(values) == 0 {
			return fmt.Errorf("sweep needs --param and at least one --values entry")
		}

		base, baseOrder, err := parseOverrides(sweepSets)
		if err != nil {
			return err
		}

		ctx, stop := commandContext()
		defer stop()

		s, err := newSession(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.close(ctx)

		type sweepRow struct {
			value       params.Value
			replicateID int
			healing     *float64
			success     bool
		}
		var rows []sweepRow
		failures := 0

		for _, raw := range values {
			value := params.Parse(raw)
			fmt.Printf("--- Running sweep for %s: %s ---\n", sweepParam, value.PythonLiteral())

			overrides := base.Clone()
			overrides[sweepParam] = value
			order := baseOrder
			if _, fixed := base[sweepParam]; !fixed {
				order = append(append([]string(nil), baseOrder...), sweepParam)
			}

			result, err := s.runBatch(ctx, overrides, order, "")
			if err != nil {
				return err
			}
			for _, rep := range result.ReplicateResults {
				if !rep.Success {
					failures++
				}
				var healing *float64
				if rep.Results != nil {
					healing = rep.Results.HealingTime
				}
				rows = append(rows, sweepRow{value: value, replicateID: rep.ReplicateID, healing: healing, success: rep.Success})
			}
		}

		summaryPath := filepath.Join(cfg.Output.BaseDir, strings.ToLower(sweepParam)+"_sweep_results.csv")
		file, err := os.Create(summaryPath)
		if err != nil {
			return fmt.Errorf("failed to write sweep summary: %w", err)
		}
		writer := csv.NewWriter(file)
		_ = writer.Write([]string{sweepParam, "replicate_id", "healing_time_mcs", "simulation_success"})
		for _, row := range rows {
			_ = writer.Write([]string{
				row.value.PythonLiteral(),
				fmt.Sprintf("%d", row.replicateID),
				healingLabel(row.healing),
				fmt.Sprintf("%v", row.success),
			})
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return fmt.Errorf("failed to write sweep summary: %w", err)
		}
		if err := file.Close(); err != nil {
			return err
		}

		fmt.Printf("\n--- Parameter sweep complete ---\n")
		fmt.Printf("Results saved to %s\n", summaryPath)
		if failures > 0 {
			return fmt.Errorf("%d replicate(s) failed across the sweep", failures)
		}
		return nil
	},
}

func splitValues(raw string) []string {
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

func init() {
	sweepFlags.register(SweepCmd)
	SweepCmd.Flags().StringVar(&sweepParam, "param", "", "Parameter name to sweep")
	SweepCmd.Flags().StringVar(&sweepValues, "values", "", "Comma-separated values to sweep over")
	SweepCmd.Flags().StringArrayVar(&sweepSets, "set", nil, "Fixed parameter override name=value applied to every batch (repeatable)")
}
