// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"vcornea-orchestrator/internal/batch"
)

// Run command flags
var (
	runFlags  batchFlags
	runName   string
	runSets   []string
	runFormat string
)

// RunCmd executes one batch of replicates.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one batch of simulation replicates",
	Long: `Run N replicates of the vCornea simulation with the given parameter
overrides.

Each replicate gets an isolated workspace copied from the project template,
its own process, and its own output directory under a run directory named
after the changed parameters. Results are aggregated once every replicate
has terminated; a failing replicate never aborts the others.`,
	Example: `  # One replicate with defaults
  vcornea-batch run --project ~/vCornea

  # Chemical injury study, 4 replicates
  vcornea-batch run --project ~/vCornea -r 4 \
    --set SLS_Concentration=1500.0 --set InjuryTime=10 --set InjuryType=True

  # Short no-injury smoke run with an explicit name
  vcornea-batch run --project ~/vCornea --run-name smoke \
    --set IsInjury=False --set SimTime=100`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := runFlags.load(cmd)
		if err != nil {
			return err
		}
		cfg.Naming.RunName = firstNonEmpty(runName, cfg.Naming.RunName)

		overrides, order, err := parseOverrides(runSets)
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

		result, err := s.runBatch(ctx, overrides, order, cfg.Naming.RunName)
		if err != nil {
			return err
		}
		return printResult(result, runFormat)
	},
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// printResult renders the batch result and maps failure onto the exit
// code.
func printResult(result *batch.Result, format string) error {
	if format == "json" {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		fmt.Printf("Run:    %s\n", result.RunName)
		fmt.Printf("Output: %s\n", result.OutputDir)
		for _, rep := range result.ReplicateResults {
			if rep.Success {
				healing := ""
				if rep.Results != nil && rep.Results.HealingTime != nil {
					healing = fmt.Sprintf("  healing_time=%.1f", *rep.Results.HealingTime)
				}
				fmt.Printf("  replicate %d: ok  collected=%d%s\n", rep.ReplicateID, len(rep.FilesCollected), healing)
			} else {
				fmt.Printf("  replicate %d: FAILED  %s\n", rep.ReplicateID, rep.ErrorMessage)
			}
		}
	}

	failed := 0
	for _, rep := range result.ReplicateResults {
		if !rep.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d replicate(s) failed", failed)
	}
	return nil
}

func init() {
	runFlags.register(RunCmd)
	RunCmd.Flags().StringVar(&runName, "run-name", "", "Explicit run name (skips name generation)")
	RunCmd.Flags().StringArrayVar(&runSets, "set", nil, "Parameter override name=value (repeatable)")
	RunCmd.Flags().StringVar(&runFormat, "format", "text", "Output format (text|json)")
}
