// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package main provides the CLI entry point for vcornea-batch.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vcornea-orchestrator/cmd/vcornea-batch/commands"
)

var (
	version = "1.0.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vcornea-batch",
	Short: "Batch replicate orchestrator for vCornea simulations",
	Long: `vcornea-batch runs the vCornea corneal epithelium model (a CompuCell3D
simulation) as batches of independent replicates.

It provides:
  - Isolated per-replicate workspaces stamped from a template project
  - Concurrent subprocess monitoring with per-replicate timeouts
  - Artifact collection into a deterministically named output tree
  - A cumulative experiment log across runs
  - Parameter sweeps and injury comparison studies`,
	Version: version,
}

func init() {
	commands.Version = version

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.SweepCmd)
	rootCmd.AddCommand(commands.CompareInjuryCmd)
	rootCmd.AddCommand(commands.ParamsCmd)
}
