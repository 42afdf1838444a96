// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"vcornea-orchestrator/internal/catalog"
)

// Params command flags
var (
	paramsFilter string
	paramsFormat string
)

// ParamsCmd lists the simulation parameter catalog.
var ParamsCmd = &cobra.Command{
	Use:   "params",
	Short: "List tunable simulation parameters",
	Long: `List every parameter the orchestrator can override, with its group,
type, and default value.

The --filter flag takes a CEL expression evaluated against each entry's
name, group, kind, default, and description fields.`,
	Example: `  # Everything in the injury group
  vcornea-batch params --filter 'group == "injury"'

  # Numeric defaults above 1000
  vcornea-batch params --filter 'kind == "int" && default >= 1000'

  # Machine-readable listing
  vcornea-batch params --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := catalog.NewFilter()
		if err != nil {
			return err
		}
		entries, err := filter.Select(paramsFilter)
		if err != nil {
			return err
		}

		if paramsFormat == "json" {
			type view struct {
				Name        string `json:"name"`
				Group       string `json:"group"`
				Kind        string `json:"kind"`
				Default     string `json:"default"`
				Description string `json:"description"`
			}
			views := make([]view, 0, len(entries))
			for _, e := range entries {
				views = append(views, view{
					Name:        e.Name,
					Group:       e.Group,
					Kind:        e.Default.Kind().String(),
					Default:     e.Default.PythonLiteral(),
					Description: e.Description,
				})
			}
			data, err := json.MarshalIndent(views, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("%-28s %-12s %-7s %-12s %s\n", "NAME", "GROUP", "KIND", "DEFAULT", "DESCRIPTION")
		for _, e := range entries {
			fmt.Printf("%-28s %-12s %-7s %-12s %s\n",
				e.Name, e.Group, e.Default.Kind().String(), e.Default.PythonLiteral(), e.Description)
		}
		fmt.Printf("\n%d of %d parameters\n", len(entries), catalog.Len())
		return nil
	},
}

func init() {
	ParamsCmd.Flags().StringVar(&paramsFilter, "filter", "", "CEL expression selecting entries, e.g. 'group == \"injury\"'")
	ParamsCmd.Flags().StringVar(&paramsFormat, "format", "text", "Output format: text or json")
}
