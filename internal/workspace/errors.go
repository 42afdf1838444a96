// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package workspace

import (
	"fmt"
	"strings"
)

// ConfigurationError reports an unusable simulation template. It is raised
// once at orchestrator construction and is fatal: no batch can run against
// a template missing its marker files.
type ConfigurationError struct {
	Path    string
	Missing []string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid vCornea project at %s: required vCornea file not found: %s",
		e.Path, strings.Join(e.Missing, ", "))
}

// SetupError reports a failure while building one replicate's workspace.
// It is scoped to that replicate and converted to a failure outcome rather
// than aborting the batch.
type SetupError struct {
	ReplicateID int
	Stage       string
	Err         error
}

// Error implements the error interface.
func (e *SetupError) Error() string {
	return fmt.Sprintf("replicate %d workspace %s: %v", e.ReplicateID, e.Stage, e.Err)
}

// Unwrap allows error wrapping.
func (e *SetupError) Unwrap() error {
	return e.Err
}
