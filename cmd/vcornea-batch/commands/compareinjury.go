// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package commands

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"vcornea-orchestrator/internal/params"
	"vcornea-orchestrator/internal/runmeta"
)

// Compare-injury command flags
var (
	compareFlags batchFlags
	compareSets  []string
)

// CompareInjuryCmd runs an ablation group and a chemical group back to
// back and summarizes healing times.
var CompareInjuryCmd = &cobra.Command{
	Use:   "compare-injury",
	Short: "Compare healing of ablation and chemical injuries",
	Long: `Run two groups of replicates, one with an ablation injury and one with
a chemical (SLS) injury, holding every other parameter fixed.

Per-replicate healing times land in injury_comparison_results.csv under the
output base directory, followed by a mean/std summary per group.`,
	Example: `  # Three replicates per injury type
  vcornea-batch compare-injury --project ~/vCornea -r 3 \
    --set SimTime=5000 --set InjuryTime=500`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := compareFlags.load(cmd)
		if err != nil {
			return err
		}

		base, baseOrder, err := parseOverrides(compareSets)
		if err != nil {
			return err
		}
		// Study defaults, overridable with --set.
		defaults := []struct {
			name  string
			value params.Value
		}{
			{"SimTime", params.Int(5000)},
			{"InjuryTime", params.Int(500)},
		}
		for _, d := range defaults {
			if _, ok := base[d.name]; !ok {
				base[d.name] = d.value
				baseOrder = append(baseOrder, d.name)
			}
		}

		ctx, stop := commandContext()
		defer stop()

		s, err := newSession(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.close(ctx)

		type groupRow struct {
			injuryType  string
			replicateID int
			healing     *float64
			success     bool
		}
		var rows []groupRow
		healedByGroup := map[string][]float64{}
		failures := 0

		for _, chemical := range []bool{false, true} {
			group := runmeta.InjuryTypeName(chemical)
			fmt.Printf("--- Running experiment: %s injury ---\n", group)

			overrides := base.Clone()
			overrides["IsInjury"] = params.Bool(true)
			overrides["InjuryType"] = params.Bool(chemical)
			order := append(append([]string(nil), baseOrder...), "IsInjury", "InjuryType")

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
				if healing != nil {
					healedByGroup[group] = append(healedByGroup[group], *healing)
				}
				rows = append(rows, groupRow{injuryType: group, replicateID: rep.ReplicateID, healing: healing, success: rep.Success})
			}
		}

		summaryPath := filepath.Join(cfg.Output.BaseDir, "injury_comparison_results.csv")
		file, err := os.Create(summaryPath)
		if err != nil {
			return fmt.Errorf("failed to write comparison results: %w", err)
		}
		writer := csv.NewWriter(file)
		_ = writer.Write([]string{"injury_type", "replicate_id", "healing_time_mcs", "simulation_success"})
		for _, row := range rows {
			_ = writer.Write([]string{
				row.injuryType,
				fmt.Sprintf("%d", row.replicateID),
				healingLabel(row.healing),
				fmt.Sprintf("%v", row.success),
			})
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return fmt.Errorf("failed to write comparison results: %w", err)
		}
		if err := file.Close(); err != nil {
			return err
		}

		fmt.Printf("\n--- Comparative study complete ---\n")
		fmt.Printf("Results saved to %s\n", summaryPath)
		fmt.Printf("\nSummary of healing times:\n")
		for _, group := range []string{runmeta.InjuryAblation, runmeta.InjuryChemical} {
			mean, std := meanStd(healedByGroup[group])
			fmt.Printf("  %-9s n=%d  mean=%.1f  std=%.1f\n", group, len(healedByGroup[group]), mean, std)
		}
		if failures > 0 {
			return fmt.Errorf("%d replicate(s) failed across the comparison", failures)
		}
		return nil
	},
}

// meanStd returns the sample mean and standard deviation.
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}
	ss := 0.0
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(ss / float64(len(values)-1))
}

func init() {
	compareFlags.register(CompareInjuryCmd)
	CompareInjuryCmd.Flags().StringArrayVar(&compareSets, "set", nil, "Fixed parameter override name=value applied to both groups (repeatable)")
}
