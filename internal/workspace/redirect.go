// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package workspace

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// The v1 output contract: legacy batch scripts hardcode their output
// location in one assignment. RedirectScriptOutput rewrites that line in
// the workspace copy so the simulation writes straight into the replicate's
// output directory. v2 scripts accept --output and never need this.
const legacyOutputAssignment = "OUTPUT_DIR = os.path.join(os.getcwd(), 'Output')"

// legacyOutputPattern is the fallback for scripts that drifted from the
// canonical assignment but still bind OUTPUT_DIR at the top level.
var legacyOutputPattern = regexp.MustCompile(`(?m)^([ \t]*)OUTPUT_DIR\s*=.*$`)

// RedirectScriptOutput patches the copied batch script to write outputs to
// outputDir. It tries the exact assignment first, then the looser pattern,
// and reports whether either matched. An unmatched script is left exactly
// as copied; collection then depends on scanning the workspace after the
// run.
func RedirectScriptOutput(scriptPath, outputDir string) (bool, error) {
	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return false, fmt.Errorf("read batch script: %w", err)
	}
	content := string(data)
	replacement := fmt.Sprintf("OUTPUT_DIR = r'%s'", outputDir)

	if strings.Contains(content, legacyOutputAssignment) {
		content = strings.Replace(content, legacyOutputAssignment, replacement, 1)
	} else if loc := legacyOutputPattern.FindStringSubmatchIndex(content); loc != nil {
		indent := content[loc[2]:loc[3]]
		content = content[:loc[0]] + indent + replacement + content[loc[1]:]
	} else {
		return false, nil
	}

	if err := os.WriteFile(scriptPath, []byte(content), 0644); err != nil {
		return false, fmt.Errorf("write patched batch script: %w", err)
	}
	return true, nil
}
